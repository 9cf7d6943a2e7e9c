package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/restopos-api/internal/domain"
	"github.com/jhoicas/restopos-api/internal/domain/entity"
	"github.com/jhoicas/restopos-api/internal/domain/repository"
	"github.com/jhoicas/restopos-api/pkg/logger"
	"github.com/jhoicas/restopos-api/pkg/metrics"
)

// MovementRecorderUseCase es el único punto de entrada por el que pasan todas
// las altas y bajas de stock, para que el libro de movimientos y el libro de
// lotes nunca diverjan. Cada operación corre en una transacción con bloqueo de
// fila por ingrediente (SELECT FOR UPDATE): dos consumos simultáneos del mismo
// ingrediente se serializan; ingredientes distintos avanzan en paralelo.
type MovementRecorderUseCase struct {
	txRunner   TxRunner
	settings   repository.SettingsRepository
	log        *logger.Logger
	met        *metrics.Metrics
	autoExpire bool
}

// NewMovementRecorderUseCase construye el caso de uso. autoExpire habilita el
// barrido de vencimientos (política INVENTORY_AUTO_EXPIRE).
func NewMovementRecorderUseCase(
	txRunner TxRunner,
	settings repository.SettingsRepository,
	log *logger.Logger,
	met *metrics.Metrics,
	autoExpire bool,
) *MovementRecorderUseCase {
	return &MovementRecorderUseCase{
		txRunner:   txRunner,
		settings:   settings,
		log:        log,
		met:        met,
		autoExpire: autoExpire,
	}
}

// PurchaseInput entrada para registrar una compra (crea un lote).
type PurchaseInput struct {
	IngredientID      string
	Quantity          decimal.Decimal
	CostPerUnit       decimal.Decimal
	PurchaseDate      time.Time // cero = ahora
	ManufacturingDate *time.Time
	ExpiryDate        *time.Time // nil = nunca vence
	SupplierID        *string
	Notes             string
	CreatedBy         string
}

// ConsumptionInput entrada para registrar un consumo por venta/preparación.
type ConsumptionInput struct {
	IngredientID string
	Quantity     decimal.Decimal
	Reference    string // orden/venta que origina el consumo
	Notes        string
	CreatedBy    string
}

// WasteInput entrada para registrar merma. BatchID nil = el lote lo elige la
// estrategia vigente; con BatchID se deduce directo de ese lote.
type WasteInput struct {
	IngredientID string
	Quantity     decimal.Decimal
	Reason       string
	Notes        string
	BatchID      *string
	CreatedBy    string
}

// AdjustmentInput entrada para un ajuste correctivo sobre un lote puntual.
type AdjustmentInput struct {
	BatchID   string
	Delta     decimal.Decimal // positivo restaura, negativo deduce
	Notes     string
	CreatedBy string
}

// ConsumptionResult desglose de una asignación confirmada.
type ConsumptionResult struct {
	TransactionID string
	IngredientID  string
	Lines         []AllocationLine
	TotalQuantity decimal.Decimal
	TotalCost     decimal.Decimal
}

// WasteResult resultado de una merma confirmada.
type WasteResult struct {
	ConsumptionResult
	Reason string
}

// RecordPurchase crea el lote vía BatchLedger y escribe el movimiento
// PURCHASE con cantidad positiva, todo en una transacción.
func (uc *MovementRecorderUseCase) RecordPurchase(ctx context.Context, in PurchaseInput) (*entity.Batch, error) {
	if in.IngredientID == "" {
		return nil, domain.ErrInvalidInput
	}
	if !in.Quantity.GreaterThan(decimal.Zero) {
		return nil, fmt.Errorf("cantidad de compra debe ser positiva: %w", domain.ErrInvalidInput)
	}

	now := time.Now()
	txID := uuid.New().String()
	var batch *entity.Batch

	err := uc.txRunner.Run(ctx, func(
		batchRepo repository.BatchRepository,
		movRepo repository.MovementRepository,
		ingredientRepo repository.IngredientRepository,
	) error {
		ing, err := ingredientRepo.GetForUpdate(in.IngredientID)
		if err != nil {
			return err
		}
		if ing == nil {
			return fmt.Errorf("ingrediente %s: %w", in.IngredientID, domain.ErrNotFound)
		}
		ledger := NewBatchLedger(batchRepo, ingredientRepo)
		batch, err = ledger.CreateBatch(in, now)
		if err != nil {
			return err
		}
		mov := &entity.Movement{
			ID:            uuid.New().String(),
			TransactionID: txID,
			IngredientID:  in.IngredientID,
			BatchID:       &batch.ID,
			Type:          entity.MovementTypePurchase,
			Quantity:      in.Quantity,
			UnitCost:      in.CostPerUnit,
			TotalCost:     in.Quantity.Mul(in.CostPerUnit),
			Notes:         in.Notes,
			Date:          now,
			CreatedAt:     now,
			CreatedBy:     in.CreatedBy,
		}
		if err := movRepo.Create(mov); err != nil {
			return err
		}
		_, err = ledger.RefreshIngredientStock(in.IngredientID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info().
		Str("ingredient_id", in.IngredientID).
		Str("batch_number", batch.BatchNumber).
		Str("quantity", in.Quantity.String()).
		Msg("compra registrada")
	return batch, nil
}

// RecordConsumption asigna la cantidad pedida sobre los lotes activos en el
// orden de la estrategia vigente (FIFO/FEFO), escribe un movimiento
// CONSUMPTION por lote tocado y actualiza el cache de stock. Todo-o-nada: si
// los lotes no alcanzan, falla con InsufficientStockError sin deducir nada.
func (uc *MovementRecorderUseCase) RecordConsumption(ctx context.Context, in ConsumptionInput) (*ConsumptionResult, error) {
	result, err := uc.deplete(ctx, in.IngredientID, in.Quantity, entity.MovementTypeConsumption, "", in.Reference, in.Notes, in.CreatedBy)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RecordWaste registra una merma. Con BatchID deduce directo de ese lote
// (puenteando la estrategia) y falla con InsufficientQuantityError si no
// alcanza; sin BatchID se comporta como un consumo pero con tipo WASTE y
// código de razón. Nunca confirma una cantidad parcial.
func (uc *MovementRecorderUseCase) RecordWaste(ctx context.Context, in WasteInput) (*WasteResult, error) {
	if !entity.ValidWasteReason(in.Reason) {
		return nil, fmt.Errorf("razón de merma %q: %w", in.Reason, domain.ErrInvalidInput)
	}
	if in.BatchID == nil {
		result, err := uc.deplete(ctx, in.IngredientID, in.Quantity, entity.MovementTypeWaste, in.Reason, "", in.Notes, in.CreatedBy)
		if err != nil {
			return nil, err
		}
		uc.met.IncWaste(in.Reason)
		return &WasteResult{ConsumptionResult: *result, Reason: in.Reason}, nil
	}
	result, err := uc.wasteFromBatch(ctx, in)
	if err != nil {
		return nil, err
	}
	uc.met.IncWaste(in.Reason)
	return result, nil
}

// RecordAdjustment aplica un ajuste correctivo (positivo o negativo) sobre un
// lote puntual y deja el movimiento ADJUSTMENT correspondiente.
func (uc *MovementRecorderUseCase) RecordAdjustment(ctx context.Context, in AdjustmentInput) (*entity.Batch, error) {
	if in.BatchID == "" || in.Delta.IsZero() {
		return nil, domain.ErrInvalidInput
	}
	now := time.Now()
	txID := uuid.New().String()
	var adjusted *entity.Batch

	err := uc.txRunner.Run(ctx, func(
		batchRepo repository.BatchRepository,
		movRepo repository.MovementRepository,
		ingredientRepo repository.IngredientRepository,
	) error {
		// Lectura sin lock solo para conocer el ingrediente; el orden de
		// bloqueo es siempre ingrediente -> lote.
		b, err := batchRepo.GetByID(in.BatchID)
		if err != nil {
			return err
		}
		if b == nil {
			return fmt.Errorf("lote %s: %w", in.BatchID, domain.ErrNotFound)
		}
		if _, err := ingredientRepo.GetForUpdate(b.IngredientID); err != nil {
			return err
		}
		ledger := NewBatchLedger(batchRepo, ingredientRepo)
		adjusted, err = ledger.AdjustRemaining(in.BatchID, in.Delta, now)
		if err != nil {
			return err
		}
		mov := &entity.Movement{
			ID:            uuid.New().String(),
			TransactionID: txID,
			IngredientID:  adjusted.IngredientID,
			BatchID:       &adjusted.ID,
			Type:          entity.MovementTypeAdjustment,
			Quantity:      in.Delta,
			UnitCost:      adjusted.CostPerUnit,
			TotalCost:     in.Delta.Mul(adjusted.CostPerUnit),
			Notes:         in.Notes,
			Date:          now,
			CreatedAt:     now,
			CreatedBy:     in.CreatedBy,
		}
		if err := movRepo.Create(mov); err != nil {
			return err
		}
		_, err = ledger.RefreshIngredientStock(adjusted.IngredientID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().
		Str("batch_id", in.BatchID).
		Str("delta", in.Delta.String()).
		Msg("ajuste registrado")
	return adjusted, nil
}

// SweepExpired transiciona a expired los lotes activos cuya fecha de
// vencimiento quedó estrictamente antes de asOf (el día del vencimiento el
// lote todavía es utilizable). Idempotente: un segundo barrido con la misma
// fecha no cambia nada. Devuelve la cantidad de lotes vencidos.
func (uc *MovementRecorderUseCase) SweepExpired(ctx context.Context, asOf time.Time) (int, error) {
	if !uc.autoExpire {
		return 0, nil
	}
	expired := 0
	err := uc.txRunner.Run(ctx, func(
		batchRepo repository.BatchRepository,
		movRepo repository.MovementRepository,
		ingredientRepo repository.IngredientRepository,
	) error {
		ids, err := batchRepo.ListIngredientsWithExpired(asOf)
		if err != nil {
			return err
		}
		// Orden estable de bloqueo entre ingredientes para evitar deadlocks
		// con asignaciones concurrentes.
		sort.Strings(ids)
		ledger := NewBatchLedger(batchRepo, ingredientRepo)
		for _, ingredientID := range ids {
			if _, err := ingredientRepo.GetForUpdate(ingredientID); err != nil {
				return err
			}
			batches, err := batchRepo.ListActiveForUpdate(ingredientID, entity.StrategyFEFO)
			if err != nil {
				return err
			}
			for _, b := range batches {
				if !b.IsExpiredAt(asOf) {
					continue
				}
				b.Status = entity.BatchStatusExpired
				b.UpdatedAt = asOf
				if err := batchRepo.Update(b); err != nil {
					return err
				}
				expired++
			}
			if _, err := ledger.RefreshIngredientStock(ingredientID, asOf); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		uc.met.AddExpiredBatches(expired)
		uc.log.Info().Int("batches", expired).Msg("barrido de vencimientos aplicado")
	}
	return expired, nil
}

// deplete es el camino común de consumo y merma por estrategia: lee la
// estrategia vigente, bloquea el ingrediente, asigna sobre los lotes en orden
// y escribe un movimiento por lote tocado.
func (uc *MovementRecorderUseCase) deplete(
	ctx context.Context,
	ingredientID string,
	quantity decimal.Decimal,
	movType, reason, reference, notes, createdBy string,
) (*ConsumptionResult, error) {
	if ingredientID == "" {
		return nil, domain.ErrInvalidInput
	}
	if quantity.IsNegative() {
		return nil, fmt.Errorf("cantidad negativa: %w", domain.ErrInvalidInput)
	}
	if quantity.IsZero() {
		// No-op exitoso con desglose vacío.
		return &ConsumptionResult{IngredientID: ingredientID, TotalQuantity: decimal.Zero, TotalCost: decimal.Zero}, nil
	}

	strategy, err := uc.settings.ConsumptionStrategy(ctx)
	if err != nil {
		return nil, err
	}
	if strategy != entity.StrategyFIFO && strategy != entity.StrategyFEFO {
		return nil, fmt.Errorf("estrategia %q: %w", strategy, domain.ErrUnknownStrategy)
	}

	now := time.Now()
	txID := uuid.New().String()
	result := &ConsumptionResult{
		TransactionID: txID,
		IngredientID:  ingredientID,
		TotalQuantity: quantity,
	}

	err = uc.txRunner.Run(ctx, func(
		batchRepo repository.BatchRepository,
		movRepo repository.MovementRepository,
		ingredientRepo repository.IngredientRepository,
	) error {
		ing, err := ingredientRepo.GetForUpdate(ingredientID)
		if err != nil {
			return err
		}
		if ing == nil {
			return fmt.Errorf("ingrediente %s: %w", ingredientID, domain.ErrNotFound)
		}
		// Releer los lotes dentro del lock: el orden de estrategia debe salir
		// del estado actual, no de una lista externa potencialmente vieja.
		batches, err := batchRepo.ListActiveForUpdate(ingredientID, strategy)
		if err != nil {
			return err
		}
		lines, shortfall := PlanAllocation(batches, quantity)
		if shortfall.GreaterThan(decimal.Zero) {
			return &domain.InsufficientStockError{
				IngredientID: ingredientID,
				Requested:    quantity,
				Available:    quantity.Sub(shortfall),
				Shortfall:    shortfall,
			}
		}

		ledger := NewBatchLedger(batchRepo, ingredientRepo)
		total := decimal.Zero
		for _, line := range lines {
			if _, err := ledger.AdjustRemaining(line.BatchID, line.Quantity.Neg(), now); err != nil {
				return err
			}
			batchID := line.BatchID
			mov := &entity.Movement{
				ID:            uuid.New().String(),
				TransactionID: txID,
				IngredientID:  ingredientID,
				BatchID:       &batchID,
				Type:          movType,
				Quantity:      line.Quantity.Neg(),
				UnitCost:      line.UnitCost,
				TotalCost:     line.Quantity.Neg().Mul(line.UnitCost),
				Reason:        reason,
				Notes:         joinReference(reference, notes),
				Date:          now,
				CreatedAt:     now,
				CreatedBy:     createdBy,
			}
			if err := movRepo.Create(mov); err != nil {
				return err
			}
			total = total.Add(line.TotalCost())
		}
		result.Lines = lines
		result.TotalCost = total
		_, err = ledger.RefreshIngredientStock(ingredientID, now)
		return err
	})
	if err != nil {
		uc.observeDepleteFailure(strategy, err)
		return nil, err
	}

	uc.met.IncAllocation(strategy)
	uc.log.Info().
		Str("ingredient_id", ingredientID).
		Str("strategy", strategy).
		Str("quantity", quantity.String()).
		Int("batches", len(result.Lines)).
		Msg("asignación confirmada")
	return result, nil
}

// wasteFromBatch deduce una merma directo del lote indicado, puenteando la
// estrategia de consumo.
func (uc *MovementRecorderUseCase) wasteFromBatch(ctx context.Context, in WasteInput) (*WasteResult, error) {
	if in.IngredientID == "" {
		return nil, domain.ErrInvalidInput
	}
	if in.Quantity.IsNegative() {
		return nil, fmt.Errorf("cantidad negativa: %w", domain.ErrInvalidInput)
	}
	if in.Quantity.IsZero() {
		return &WasteResult{
			ConsumptionResult: ConsumptionResult{IngredientID: in.IngredientID, TotalQuantity: decimal.Zero, TotalCost: decimal.Zero},
			Reason:            in.Reason,
		}, nil
	}

	now := time.Now()
	txID := uuid.New().String()
	result := &WasteResult{
		ConsumptionResult: ConsumptionResult{
			TransactionID: txID,
			IngredientID:  in.IngredientID,
			TotalQuantity: in.Quantity,
		},
		Reason: in.Reason,
	}

	err := uc.txRunner.Run(ctx, func(
		batchRepo repository.BatchRepository,
		movRepo repository.MovementRepository,
		ingredientRepo repository.IngredientRepository,
	) error {
		ing, err := ingredientRepo.GetForUpdate(in.IngredientID)
		if err != nil {
			return err
		}
		if ing == nil {
			return fmt.Errorf("ingrediente %s: %w", in.IngredientID, domain.ErrNotFound)
		}
		ledger := NewBatchLedger(batchRepo, ingredientRepo)
		b, err := batchRepo.GetByID(*in.BatchID)
		if err != nil {
			return err
		}
		if b == nil {
			return fmt.Errorf("lote %s: %w", *in.BatchID, domain.ErrNotFound)
		}
		if b.IngredientID != in.IngredientID {
			return fmt.Errorf("lote %s no pertenece al ingrediente %s: %w", *in.BatchID, in.IngredientID, domain.ErrInvalidInput)
		}
		adjusted, err := ledger.AdjustRemaining(*in.BatchID, in.Quantity.Neg(), now)
		if err != nil {
			return err
		}
		mov := &entity.Movement{
			ID:            uuid.New().String(),
			TransactionID: txID,
			IngredientID:  in.IngredientID,
			BatchID:       in.BatchID,
			Type:          entity.MovementTypeWaste,
			Quantity:      in.Quantity.Neg(),
			UnitCost:      adjusted.CostPerUnit,
			TotalCost:     in.Quantity.Neg().Mul(adjusted.CostPerUnit),
			Reason:        in.Reason,
			Notes:         in.Notes,
			Date:          now,
			CreatedAt:     now,
			CreatedBy:     in.CreatedBy,
		}
		if err := movRepo.Create(mov); err != nil {
			return err
		}
		result.Lines = []AllocationLine{{
			BatchID:     adjusted.ID,
			BatchNumber: adjusted.BatchNumber,
			Quantity:    in.Quantity,
			UnitCost:    adjusted.CostPerUnit,
		}}
		result.TotalCost = in.Quantity.Mul(adjusted.CostPerUnit)
		_, err = ledger.RefreshIngredientStock(in.IngredientID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info().
		Str("ingredient_id", in.IngredientID).
		Str("batch_id", *in.BatchID).
		Str("reason", in.Reason).
		Msg("merma directa registrada")
	return result, nil
}

func (uc *MovementRecorderUseCase) observeDepleteFailure(strategy string, err error) {
	var insufficient *domain.InsufficientStockError
	var conflict *domain.ConcurrencyConflictError
	switch {
	case errors.As(err, &insufficient):
		uc.met.IncAllocationFailure("insufficient_stock")
		uc.log.Warn().
			Str("ingredient_id", insufficient.IngredientID).
			Str("shortfall", insufficient.Shortfall.String()).
			Msg("asignación rechazada por stock insuficiente")
	case errors.As(err, &conflict):
		uc.met.IncAllocationFailure("conflict")
		uc.log.Warn().Str("strategy", strategy).Err(err).Msg("conflicto de concurrencia en asignación")
	}
}

func joinReference(reference, notes string) string {
	switch {
	case reference == "":
		return notes
	case notes == "":
		return reference
	}
	return reference + ": " + notes
}
