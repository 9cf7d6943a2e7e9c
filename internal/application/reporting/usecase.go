package reporting

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/restopos-api/internal/domain"
	"github.com/jhoicas/restopos-api/internal/domain/entity"
	"github.com/jhoicas/restopos-api/internal/domain/repository"
	"github.com/jhoicas/restopos-api/pkg/metrics"
)

// ReporterUseCase agrupa las consultas de solo lectura sobre el libro de lotes
// (valuación, vencimientos, bajo stock) que consumen los reportes del panel.
// No muta nada; puede ser eventualmente consistente con asignaciones en vuelo
// pero nunca ve un estado parcialmente confirmado (lecturas read-committed).
type ReporterUseCase struct {
	batchRepo      repository.BatchRepository
	ingredientRepo repository.IngredientRepository
	met            *metrics.Metrics
}

// NewReporterUseCase construye el caso de uso de reportes.
func NewReporterUseCase(
	batchRepo repository.BatchRepository,
	ingredientRepo repository.IngredientRepository,
	met *metrics.Metrics,
) *ReporterUseCase {
	return &ReporterUseCase{batchRepo: batchRepo, ingredientRepo: ingredientRepo, met: met}
}

// ExpiringBatchDTO lote por vencer con los días restantes ya calculados.
// DaysUntilExpiry negativo = vencido pero aún no barrido.
type ExpiringBatchDTO struct {
	Batch           *entity.Batch
	DaysUntilExpiry int
}

// InventoryValuation devuelve la suma de restante * costo unitario sobre todos
// los lotes activos. Sin escrituras de por medio, dos llamadas devuelven lo mismo.
func (uc *ReporterUseCase) InventoryValuation(ctx context.Context) (decimal.Decimal, error) {
	total, err := uc.batchRepo.TotalActiveValue(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	uc.met.SetInventoryValue(total)
	return total, nil
}

// ExpiringBatches devuelve los lotes activos que vencen dentro de withinDays
// días (incluye los ya vencidos sin barrer, con días negativos), ordenados por
// fecha de vencimiento ascendente.
func (uc *ReporterUseCase) ExpiringBatches(ctx context.Context, withinDays int) ([]ExpiringBatchDTO, error) {
	if withinDays < 0 {
		return nil, domain.ErrInvalidInput
	}
	now := time.Now()
	until := now.AddDate(0, 0, withinDays)
	batches, err := uc.batchRepo.ListExpiringBefore(ctx, until)
	if err != nil {
		return nil, err
	}
	result := make([]ExpiringBatchDTO, 0, len(batches))
	for _, b := range batches {
		days, ok := b.DaysUntilExpiry(now)
		if !ok {
			continue
		}
		result = append(result, ExpiringBatchDTO{Batch: b, DaysUntilExpiry: days})
	}
	return result, nil
}

// AverageUnitCost devuelve el costo promedio ponderado del stock restante de un
// ingrediente: suma(restante * costo) / suma(restante) sobre los lotes activos.
// Sin stock devuelve cero.
func (uc *ReporterUseCase) AverageUnitCost(ctx context.Context, ingredientID string) (decimal.Decimal, error) {
	batches, err := uc.batchRepo.ListActive(ctx, ingredientID, entity.StrategyFIFO)
	if err != nil {
		return decimal.Zero, err
	}
	qty := decimal.Zero
	value := decimal.Zero
	for _, b := range batches {
		qty = qty.Add(b.QuantityRemaining)
		value = value.Add(b.QuantityRemaining.Mul(b.CostPerUnit))
	}
	if !qty.GreaterThan(decimal.Zero) {
		return decimal.Zero, nil
	}
	return value.Div(qty), nil
}

// LowStock devuelve los ingredientes con stock en o bajo su punto de reorden
// (solo los que tienen reorder_level > 0), mayor déficit primero.
func (uc *ReporterUseCase) LowStock(ctx context.Context) ([]*entity.Ingredient, error) {
	items, err := uc.ingredientRepo.ListBelowReorderLevel(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*entity.Ingredient{}
	}
	return items, nil
}

// ActiveBatches expone la lista ordenada de lotes activos de un ingrediente
// para el panel (lectura sin lock, mismo orden determinista del motor).
func (uc *ReporterUseCase) ActiveBatches(ctx context.Context, ingredientID, strategy string) ([]*entity.Batch, error) {
	if strategy != entity.StrategyFIFO && strategy != entity.StrategyFEFO {
		return nil, domain.ErrUnknownStrategy
	}
	return uc.batchRepo.ListActive(ctx, ingredientID, strategy)
}
