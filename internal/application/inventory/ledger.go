package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/restopos-api/internal/domain"
	"github.com/jhoicas/restopos-api/internal/domain/entity"
	"github.com/jhoicas/restopos-api/internal/domain/repository"
)

// BatchLedger agrupa las operaciones directas sobre lotes dentro de una
// transacción. Se construye con los repositorios atados a la tx del TxRunner;
// toda mutación de lotes pasa por aquí para que el clamp a depleted y la
// consistencia del cache de stock no puedan saltearse.
type BatchLedger struct {
	batches     repository.BatchRepository
	ingredients repository.IngredientRepository
}

// NewBatchLedger construye el libro de lotes sobre repos de la misma tx.
func NewBatchLedger(batches repository.BatchRepository, ingredients repository.IngredientRepository) *BatchLedger {
	return &BatchLedger{batches: batches, ingredients: ingredients}
}

// CreateBatch crea un lote nuevo: restante = comprado, estado activo, número
// legible consecutivo por ingrediente. Falla con ErrInvalidInput si la
// cantidad no es positiva o el costo es negativo.
func (l *BatchLedger) CreateBatch(in PurchaseInput, now time.Time) (*entity.Batch, error) {
	if !in.Quantity.GreaterThan(decimal.Zero) {
		return nil, fmt.Errorf("cantidad de compra debe ser positiva: %w", domain.ErrInvalidInput)
	}
	if in.CostPerUnit.IsNegative() {
		return nil, fmt.Errorf("costo unitario negativo: %w", domain.ErrInvalidInput)
	}
	seq, err := l.batches.NextBatchSequence(in.IngredientID)
	if err != nil {
		return nil, err
	}
	purchaseDate := in.PurchaseDate
	if purchaseDate.IsZero() {
		purchaseDate = now
	}
	b := &entity.Batch{
		ID:                uuid.New().String(),
		IngredientID:      in.IngredientID,
		BatchNumber:       fmt.Sprintf("LOTE-%04d", seq),
		SupplierID:        in.SupplierID,
		QuantityPurchased: in.Quantity,
		QuantityRemaining: in.Quantity,
		CostPerUnit:       in.CostPerUnit,
		PurchaseDate:      purchaseDate,
		ManufacturingDate: in.ManufacturingDate,
		ExpiryDate:        in.ExpiryDate,
		Status:            entity.BatchStatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := l.batches.Create(b); err != nil {
		return nil, err
	}
	return b, nil
}

// AdjustRemaining aplica delta al restante del lote (negativo = deducción).
// Relee la fila bajo lock, nunca deja el restante negativo ni por encima de lo
// comprado, y transiciona el estado: a depleted exactamente en 0, de vuelta a
// active si un ajuste correctivo restaura cantidad.
func (l *BatchLedger) AdjustRemaining(batchID string, delta decimal.Decimal, now time.Time) (*entity.Batch, error) {
	b, err := l.batches.GetByIDForUpdate(batchID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("lote %s: %w", batchID, domain.ErrNotFound)
	}
	if b.Status != entity.BatchStatusActive && b.Status != entity.BatchStatusDepleted {
		return nil, fmt.Errorf("lote %s en estado %s: %w", batchID, b.Status, domain.ErrBatchNotActive)
	}
	newQty := b.QuantityRemaining.Add(delta)
	if newQty.IsNegative() {
		return nil, &domain.InsufficientQuantityError{
			BatchID:   batchID,
			Requested: delta.Neg(),
			Available: b.QuantityRemaining,
		}
	}
	if newQty.GreaterThan(b.QuantityPurchased) {
		return nil, fmt.Errorf("ajuste supera la cantidad comprada del lote %s: %w", batchID, domain.ErrInvalidInput)
	}
	b.QuantityRemaining = newQty
	switch {
	case newQty.IsZero():
		b.Status = entity.BatchStatusDepleted
	case b.Status == entity.BatchStatusDepleted:
		b.Status = entity.BatchStatusActive
	}
	b.UpdatedAt = now
	if err := l.batches.Update(b); err != nil {
		return nil, err
	}
	return b, nil
}

// RefreshIngredientStock recomputa el cache de stock del ingrediente como la
// suma del restante de sus lotes activos, dentro de la misma tx que los
// modificó. Devuelve el valor escrito.
func (l *BatchLedger) RefreshIngredientStock(ingredientID string, now time.Time) (decimal.Decimal, error) {
	sum, err := l.batches.SumActiveRemaining(ingredientID)
	if err != nil {
		return decimal.Zero, err
	}
	if err := l.ingredients.UpdateStock(ingredientID, sum, now); err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}
