package inventory

import (
	"context"

	"github.com/jhoicas/restopos-api/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando
// repositorios atados a esa tx. Garantiza atomicidad para el motor de lotes:
// o se confirman todas las escrituras de la operación, o ninguna.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		batchRepo repository.BatchRepository,
		movRepo repository.MovementRepository,
		ingredientRepo repository.IngredientRepository,
	) error) error
}
