package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/restopos-api/internal/domain/entity"
)

// IngredientRepository define el puerto de persistencia para ingredientes.
// Los métodos sin ctx se usan dentro de transacciones (repos atados a tx).
type IngredientRepository interface {
	Create(ing *entity.Ingredient) error
	GetByID(id string) (*entity.Ingredient, error)
	// GetForUpdate bloquea la fila del ingrediente (SELECT FOR UPDATE).
	// Es el punto de serialización por-ingrediente de todas las mutaciones.
	GetForUpdate(id string) (*entity.Ingredient, error)
	// UpdateStock actualiza el cache de stock (debe llamarse en la misma tx
	// que modificó los lotes de los que deriva).
	UpdateStock(id string, quantity decimal.Decimal, updatedAt time.Time) error

	// ListBelowReorderLevel devuelve ingredientes con stock en o bajo su punto
	// de reorden (reorder_level > 0), mayor déficit primero.
	ListBelowReorderLevel(ctx context.Context) ([]*entity.Ingredient, error)
}
