package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/restopos-api/internal/domain/entity"
)

// BatchRepository define el puerto de persistencia para lotes. Todas las
// lecturas y escrituras de lotes pasan por aquí: ningún caller arma queries
// propias contra la tabla, para que el orden determinista y la atomicidad no
// puedan saltearse.
type BatchRepository interface {
	Create(b *entity.Batch) error
	GetByID(id string) (*entity.Batch, error)
	// GetByIDForUpdate bloquea la fila del lote (SELECT FOR UPDATE).
	GetByIDForUpdate(id string) (*entity.Batch, error)
	// Update persiste QuantityRemaining, Status y UpdatedAt.
	Update(b *entity.Batch) error

	// ListActiveForUpdate devuelve los lotes activos del ingrediente en orden
	// de estrategia, bloqueados para update. Orden determinista:
	//   FIFO: purchase_date ASC, id ASC
	//   FEFO: expiry_date ASC (NULL al final), purchase_date ASC, id ASC
	// Lotes con restante 0 nunca aparecen (ya están en depleted).
	ListActiveForUpdate(ingredientID, strategy string) ([]*entity.Batch, error)
	// ListActive es la variante de solo lectura (sin lock) para reportes y
	// consultas externas, mismo orden.
	ListActive(ctx context.Context, ingredientID, strategy string) ([]*entity.Batch, error)

	// NextBatchSequence devuelve el siguiente consecutivo de lote del
	// ingrediente (para el número legible LOTE-NNNN).
	NextBatchSequence(ingredientID string) (int, error)
	// SumActiveRemaining suma el restante de los lotes activos del ingrediente
	// (fuente de verdad del cache de stock).
	SumActiveRemaining(ingredientID string) (decimal.Decimal, error)

	// ListIngredientsWithExpired devuelve los ids de ingredientes que tienen
	// lotes activos vencidos estrictamente antes de asOf (candidatos a barrido).
	ListIngredientsWithExpired(asOf time.Time) ([]string, error)
	// ListExpiringBefore devuelve lotes activos con vencimiento hasta la fecha
	// límite inclusive, orden expiry_date ASC. Incluye los ya vencidos sin barrer.
	ListExpiringBefore(ctx context.Context, until time.Time) ([]*entity.Batch, error)
	// TotalActiveValue suma quantity_remaining * cost_per_unit de todos los
	// lotes activos (valuación de inventario).
	TotalActiveValue(ctx context.Context) (decimal.Decimal, error)
}
