package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/restopos-api/internal/domain/entity"
)

// MovementRepository define el puerto de persistencia del libro de movimientos
// (append-only: no hay Update ni Delete).
type MovementRepository interface {
	Create(m *entity.Movement) error
	ListByIngredient(ctx context.Context, ingredientID string, from, to *time.Time, limit, offset int) ([]*entity.Movement, error)
	ListByBatch(ctx context.Context, batchID string) ([]*entity.Movement, error)
	// SumByBatch suma Quantity de los movimientos del lote (identidad de
	// conciliación: QuantityPurchased + suma = QuantityRemaining).
	SumByBatch(batchID string) (decimal.Decimal, error)
}
