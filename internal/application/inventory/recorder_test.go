package inventory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/restopos-api/internal/application/inventory"
	"github.com/jhoicas/restopos-api/internal/domain"
	"github.com/jhoicas/restopos-api/internal/domain/entity"
	"github.com/jhoicas/restopos-api/internal/infrastructure/memory"
	"github.com/jhoicas/restopos-api/pkg/logger"
)

func day(d int) time.Time { return time.Date(2025, 5, d, 0, 0, 0, 0, time.UTC) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newEngine(t *testing.T, strategy string) (*memory.Store, *inventory.MovementRecorderUseCase) {
	t.Helper()
	store := memory.NewStore(strategy)
	rec := inventory.NewMovementRecorderUseCase(store, store, logger.Nop(), nil, true)
	return store, rec
}

func seedIngredient(t *testing.T, store *memory.Store, id string) {
	t.Helper()
	_, _, ingredientRepo := store.Repos()
	require.NoError(t, ingredientRepo.Create(&entity.Ingredient{
		ID:           id,
		Name:         id,
		Unit:         "kg",
		ReorderLevel: decimal.Zero,
		CostPerUnit:  dec("10"),
		CurrentStock: decimal.Zero,
		CreatedAt:    day(1),
		UpdatedAt:    day(1),
	}))
}

func purchase(t *testing.T, rec *inventory.MovementRecorderUseCase, ingredientID, qty, cost string, purchaseDay int, expiryDay int) *entity.Batch {
	t.Helper()
	in := inventory.PurchaseInput{
		IngredientID: ingredientID,
		Quantity:     dec(qty),
		CostPerUnit:  dec(cost),
		PurchaseDate: day(purchaseDay),
		CreatedBy:    "test",
	}
	if expiryDay > 0 {
		expiry := day(expiryDay)
		in.ExpiryDate = &expiry
	}
	b, err := rec.RecordPurchase(context.Background(), in)
	require.NoError(t, err)
	return b
}

// currentStock lee el cache del ingrediente.
func currentStock(t *testing.T, store *memory.Store, ingredientID string) decimal.Decimal {
	t.Helper()
	_, _, ingredientRepo := store.Repos()
	ing, err := ingredientRepo.GetByID(ingredientID)
	require.NoError(t, err)
	require.NotNil(t, ing)
	return ing.CurrentStock
}

// assertCacheConsistent verifica el invariante: cache de stock == suma del
// restante de los lotes activos.
func assertCacheConsistent(t *testing.T, store *memory.Store, ingredientID string) {
	t.Helper()
	batchRepo, _, _ := store.Repos()
	sum, err := batchRepo.SumActiveRemaining(ingredientID)
	require.NoError(t, err)
	cache := currentStock(t, store, ingredientID)
	assert.True(t, cache.Equal(sum), "cache %s != suma de lotes activos %s", cache, sum)
}

func TestRecordPurchase_CreaLoteYMovimiento(t *testing.T) {
	store, rec := newEngine(t, entity.StrategyFIFO)
	seedIngredient(t, store, "harina")

	b := purchase(t, rec, "harina", "25", "1.80", 1, 0)

	assert.Equal(t, "LOTE-0001", b.BatchNumber)
	assert.Equal(t, entity.BatchStatusActive, b.Status)
	assert.True(t, b.QuantityRemaining.Equal(b.QuantityPurchased))
	assert.True(t, currentStock(t, store, "harina").Equal(dec("25")))

	_, movRepo, _ := store.Repos()
	movs, err := movRepo.ListByBatch(context.Background(), b.ID)
	require.NoError(t, err)
	require.Len(t, movs, 1)
	assert.Equal(t, entity.MovementTypePurchase, movs[0].Type)
	assert.True(t, movs[0].Quantity.Equal(dec("25")), "la compra se registra con cantidad positiva")

	b2 := purchase(t, rec, "harina", "10", "2.00", 2, 0)
	assert.Equal(t, "LOTE-0002", b2.BatchNumber, "consecutivo por ingrediente")
}

func TestRecordPurchase_CantidadInvalida(t *testing.T) {
	store, rec := newEngine(t, entity.StrategyFIFO)
	seedIngredient(t, store, "harina")

	_, err := rec.RecordPurchase(context.Background(), inventory.PurchaseInput{
		IngredientID: "harina",
		Quantity:     dec("0"),
		CostPerUnit:  dec("1"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRecordConsumption_FIFO(t *testing.T) {
	store, rec := newEngine(t, entity.StrategyFIFO)
	seedIngredient(t, store, "harina")
	b1 := purchase(t, rec, "harina", "10", "1.00", 1, 0)
	b2 := purchase(t, rec, "harina", "10", "1.50", 2, 0)

	result, err := rec.RecordConsumption(context.Background(), inventory.ConsumptionInput{
		IngredientID: "harina",
		Quantity:     dec("15"),
		Reference:    "orden-77",
		CreatedBy:    "test",
	})
	require.NoError(t, err)

	require.Len(t, result.Lines, 2)
	assert.Equal(t, b1.ID, result.Lines[0].BatchID, "FIFO: primero el comprado más antiguo")
	assert.True(t, result.Lines[0].Quantity.Equal(dec("10")))
	assert.Equal(t, b2.ID, result.Lines[1].BatchID)
	assert.True(t, result.Lines[1].Quantity.Equal(dec("5")))
	assert.True(t, result.TotalCost.Equal(dec("17.5")), "costo ponderado por lote: 10*1.00 + 5*1.50")

	batchRepo, _, _ := store.Repos()
	got1, _ := batchRepo.GetByID(b1.ID)
	got2, _ := batchRepo.GetByID(b2.ID)
	assert.Equal(t, entity.BatchStatusDepleted, got1.Status, "el lote agotado pasa a depleted")
	assert.True(t, got1.QuantityRemaining.IsZero())
	assert.True(t, got2.QuantityRemaining.Equal(dec("5")))
	assert.True(t, currentStock(t, store, "harina").Equal(dec("5")))
	assertCacheConsistent(t, store, "harina")
}

func TestRecordConsumption_FEFO(t *testing.T) {
	store, rec := newEngine(t, entity.StrategyFEFO)
	seedIngredient(t, store, "pollo")
	// b1 comprado antes pero vence después; b2 comprado después y vence antes.
	b1 := purchase(t, rec, "pollo", "10", "3.00", 1, 10)
	b2 := purchase(t, rec, "pollo", "10", "3.20", 2, 5)

	result, err := rec.RecordConsumption(context.Background(), inventory.ConsumptionInput{
		IngredientID: "pollo",
		Quantity:     dec("5"),
		CreatedBy:    "test",
	})
	require.NoError(t, err)

	require.Len(t, result.Lines, 1)
	assert.Equal(t, b2.ID, result.Lines[0].BatchID, "FEFO: primero el que vence más pronto, sin importar orden de compra")

	batchRepo, _, _ := store.Repos()
	got1, _ := batchRepo.GetByID(b1.ID)
	assert.True(t, got1.QuantityRemaining.Equal(dec("10")), "el lote que vence después queda intacto")
	assertCacheConsistent(t, store, "pollo")
}

func TestRecordConsumption_FEFO_SinVencimientoAlFinal(t *testing.T) {
	store, rec := newEngine(t, entity.StrategyFEFO)
	seedIngredient(t, store, "sal")
	eterno := purchase(t, rec, "sal", "10", "0.50", 1, 0) // sin vencimiento
	porVencer := purchase(t, rec, "sal", "10", "0.55", 2, 7)

	result, err := rec.RecordConsumption(context.Background(), inventory.ConsumptionInput{
		IngredientID: "sal",
		Quantity:     dec("12"),
		CreatedBy:    "test",
	})
	require.NoError(t, err)

	require.Len(t, result.Lines, 2)
	assert.Equal(t, porVencer.ID, result.Lines[0].BatchID, "NULL expiry ordena al final en FEFO")
	assert.Equal(t, eterno.ID, result.Lines[1].BatchID)
}

func TestRecordConsumption_TodoONada(t *testing.T) {
	store, rec := newEngine(t, entity.StrategyFIFO)
	seedIngredient(t, store, "queso")
	purchase(t, rec, "queso", "5", "4.00", 1, 0)
	purchase(t, rec, "queso", "3", "4.10", 2, 0)

	_, err := rec.RecordConsumption(context.Background(), inventory.ConsumptionInput{
		IngredientID: "queso",
		Quantity:     dec("10"),
		CreatedBy:    "test",
	})

	var insufficient *domain.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, insufficient.Shortfall.Equal(dec("2")), "el error lleva el faltante")
	assert.True(t, insufficient.Available.Equal(dec("8")))

	// Nada quedó deducido: rollback completo.
	assert.True(t, currentStock(t, store, "queso").Equal(dec("8")))
	batchRepo, _, _ := store.Repos()
	sum, _ := batchRepo.SumActiveRemaining("queso")
	assert.True(t, sum.Equal(dec("8")))

	_, movRepo, _ := store.Repos()
	movs, _ := movRepo.ListByIngredient(context.Background(), "queso", nil, nil, 50, 0)
	for _, m := range movs {
		assert.NotEqual(t, entity.MovementTypeConsumption, m.Type, "no debe quedar ningún movimiento de consumo")
	}
}

func TestRecordConsumption_CantidadCero(t *testing.T) {
	store, rec := newEngine(t, entity.StrategyFIFO)
	seedIngredient(t, store, "aceite")
	purchase(t, rec, "aceite", "5", "2.00", 1, 0)

	result, err := rec.RecordConsumption(context.Background(), inventory.ConsumptionInput{
		IngredientID: "aceite",
		Quantity:     decimal.Zero,
	})
	require.NoError(t, err, "cantidad cero es un no-op exitoso")
	assert.Empty(t, result.Lines)
	assert.True(t, currentStock(t, store, "aceite").Equal(dec("5")))
}

func TestRecordConsumption_IngredienteInexistente(t *testing.T) {
	_, rec := newEngine(t, entity.StrategyFIFO)

	_, err := rec.RecordConsumption(context.Background(), inventory.ConsumptionInput{
		IngredientID: "fantasma",
		Quantity:     dec("1"),
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordWaste_LoteDirecto(t *testing.T) {
	store, rec := newEngine(t, entity.StrategyFEFO)
	seedIngredient(t, store, "leche")
	porVencer := purchase(t, rec, "leche", "10", "1.00", 1, 3)
	objetivo := purchase(t, rec, "leche", "10", "1.10", 2, 20)

	result, err := rec.RecordWaste(context.Background(), inventory.WasteInput{
		IngredientID: "leche",
		Quantity:     dec("4"),
		Reason:       entity.WasteReasonSpoiled,
		BatchID:      &objetivo.ID,
		CreatedBy:    "test",
	})
	require.NoError(t, err)

	require.Len(t, result.Lines, 1)
	assert.Equal(t, objetivo.ID, result.Lines[0].BatchID, "el lote explícito puentea la estrategia")

	batchRepo, _, _ := store.Repos()
	got, _ := batchRepo.GetByID(porVencer.ID)
	assert.True(t, got.QuantityRemaining.Equal(dec("10")), "el lote que vence antes queda intacto")
	assertCacheConsistent(t, store, "leche")
}

func TestRecordWaste_LoteDirecto_Insuficiente(t *testing.T) {
	store, rec := newEngine(t, entity.StrategyFIFO)
	seedIngredient(t, store, "leche")
	b := purchase(t, rec, "leche", "3", "1.00", 1, 0)

	_, err := rec.RecordWaste(context.Background(), inventory.WasteInput{
		IngredientID: "leche",
		Quantity:     dec("5"),
		Reason:       entity.WasteReasonSpoiled,
		BatchID:      &b.ID,
	})

	var insufficient *domain.InsufficientQuantityError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, b.ID, insufficient.BatchID)
	assert.True(t, insufficient.Available.Equal(dec("3")))

	// Sin deducción parcial ni movimiento huérfano.
	assert.True(t, currentStock(t, store, "leche").Equal(dec("3")))
	_, movRepo, _ := store.Repos()
	movs, _ := movRepo.ListByBatch(context.Background(), b.ID)
	require.Len(t, movs, 1)
	assert.Equal(t, entity.MovementTypePurchase, movs[0].Type)
}

func TestRecordWaste_PorEstrategia(t *testing.T) {
	store, rec := newEngine(t, entity.StrategyFIFO)
	seedIngredient(t, store, "tomate")
	b1 := purchase(t, rec, "tomate", "6", "0.80", 1, 0)

	result, err := rec.RecordWaste(context.Background(), inventory.WasteInput{
		IngredientID: "tomate",
		Quantity:     dec("2"),
		Reason:       entity.WasteReasonBurnt,
		Notes:        "bandeja quemada",
		CreatedBy:    "test",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.WasteReasonBurnt, result.Reason)

	_, movRepo, _ := store.Repos()
	movs, _ := movRepo.ListByBatch(context.Background(), b1.ID)
	require.Len(t, movs, 2)
	assert.Equal(t, entity.MovementTypeWaste, movs[1].Type)
	assert.Equal(t, entity.WasteReasonBurnt, movs[1].Reason)
	assert.True(t, movs[1].Quantity.Equal(dec("-2")), "la merma se registra con cantidad negativa")
	assertCacheConsistent(t, store, "tomate")
}

func TestRecordWaste_RazonInvalida(t *testing.T) {
	_, rec := newEngine(t, entity.StrategyFIFO)

	_, err := rec.RecordWaste(context.Background(), inventory.WasteInput{
		IngredientID: "tomate",
		Quantity:     dec("1"),
		Reason:       "SE_CAYO",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRecordAdjustment_RestauraYLimita(t *testing.T) {
	store, rec := newEngine(t, entity.StrategyFIFO)
	seedIngredient(t, store, "azucar")
	b := purchase(t, rec, "azucar", "5", "1.00", 1, 0)

	// Agotar el lote por consumo.
	_, err := rec.RecordConsumption(context.Background(), inventory.ConsumptionInput{
		IngredientID: "azucar",
		Quantity:     dec("5"),
	})
	require.NoError(t, err)

	batchRepo, _, _ := store.Repos()
	got, _ := batchRepo.GetByID(b.ID)
	require.Equal(t, entity.BatchStatusDepleted, got.Status)

	// Ajuste correctivo positivo: vuelve a active.
	adjusted, err := rec.RecordAdjustment(context.Background(), inventory.AdjustmentInput{
		BatchID:   b.ID,
		Delta:     dec("2"),
		Notes:     "conteo físico",
		CreatedBy: "test",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.BatchStatusActive, adjusted.Status)
	assert.True(t, adjusted.QuantityRemaining.Equal(dec("2")))
	assert.True(t, currentStock(t, store, "azucar").Equal(dec("2")))

	// Nunca por encima de lo comprado ni por debajo de cero.
	_, err = rec.RecordAdjustment(context.Background(), inventory.AdjustmentInput{BatchID: b.ID, Delta: dec("4")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = rec.RecordAdjustment(context.Background(), inventory.AdjustmentInput{BatchID: b.ID, Delta: dec("-3")})
	var insufficient *domain.InsufficientQuantityError
	assert.ErrorAs(t, err, &insufficient)
	assertCacheConsistent(t, store, "azucar")
}

func TestSweepExpired_Limite(t *testing.T) {
	store, rec := newEngine(t, entity.StrategyFIFO)
	seedIngredient(t, store, "crema")
	b := purchase(t, rec, "crema", "8", "2.50", 1, 10) // vence el día 10

	// El día del vencimiento todavía no se barre.
	n, err := rec.SweepExpired(context.Background(), day(10))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, currentStock(t, store, "crema").Equal(dec("8")))

	// Un día después sí.
	n, err = rec.SweepExpired(context.Background(), day(11))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	batchRepo, _, _ := store.Repos()
	got, _ := batchRepo.GetByID(b.ID)
	assert.Equal(t, entity.BatchStatusExpired, got.Status)
	assert.True(t, got.QuantityRemaining.Equal(dec("8")), "el restante queda para auditoría")
	assert.True(t, currentStock(t, store, "crema").IsZero(), "los lotes expired salen del stock disponible")

	// Idempotente.
	n, err = rec.SweepExpired(context.Background(), day(11))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweepExpired_PoliticaDeshabilitada(t *testing.T) {
	store := memory.NewStore(entity.StrategyFIFO)
	rec := inventory.NewMovementRecorderUseCase(store, store, logger.Nop(), nil, false)
	seedIngredient(t, store, "crema")
	purchase(t, rec, "crema", "8", "2.50", 1, 2)

	n, err := rec.SweepExpired(context.Background(), day(30))
	require.NoError(t, err)
	assert.Zero(t, n, "con auto-expire apagado el barrido no hace nada")
}

func TestSweepExpired_ExcluyeDeAsignacion(t *testing.T) {
	store, rec := newEngine(t, entity.StrategyFIFO)
	seedIngredient(t, store, "crema")
	purchase(t, rec, "crema", "8", "2.50", 1, 2)
	fresco := purchase(t, rec, "crema", "4", "2.60", 3, 20)

	_, err := rec.SweepExpired(context.Background(), day(5))
	require.NoError(t, err)

	result, err := rec.RecordConsumption(context.Background(), inventory.ConsumptionInput{
		IngredientID: "crema",
		Quantity:     dec("3"),
	})
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	assert.Equal(t, fresco.ID, result.Lines[0].BatchID, "un lote barrido nunca vuelve a asignarse")
}

func TestCambioDeEstrategia_AplicaALaSiguienteOperacion(t *testing.T) {
	store, rec := newEngine(t, entity.StrategyFIFO)
	seedIngredient(t, store, "carne")
	antiguo := purchase(t, rec, "carne", "10", "5.00", 1, 20)
	porVencer := purchase(t, rec, "carne", "10", "5.20", 2, 5)

	result, err := rec.RecordConsumption(context.Background(), inventory.ConsumptionInput{IngredientID: "carne", Quantity: dec("1")})
	require.NoError(t, err)
	assert.Equal(t, antiguo.ID, result.Lines[0].BatchID, "bajo FIFO sale el más antiguo")

	store.SetConsumptionStrategy(entity.StrategyFEFO)

	result, err = rec.RecordConsumption(context.Background(), inventory.ConsumptionInput{IngredientID: "carne", Quantity: dec("1")})
	require.NoError(t, err)
	assert.Equal(t, porVencer.ID, result.Lines[0].BatchID, "el cambio de setting aplica a la siguiente asignación")
}

func TestConciliacion_LibroDeMovimientos(t *testing.T) {
	store, rec := newEngine(t, entity.StrategyFIFO)
	seedIngredient(t, store, "papa")
	b1 := purchase(t, rec, "papa", "10", "0.90", 1, 0)
	b2 := purchase(t, rec, "papa", "6", "0.95", 2, 0)

	_, err := rec.RecordConsumption(context.Background(), inventory.ConsumptionInput{IngredientID: "papa", Quantity: dec("7.5")})
	require.NoError(t, err)
	_, err = rec.RecordWaste(context.Background(), inventory.WasteInput{
		IngredientID: "papa", Quantity: dec("1.25"), Reason: entity.WasteReasonDamaged,
	})
	require.NoError(t, err)

	// Identidad: comprado + suma de variaciones = restante, para cada lote.
	batchRepo, movRepo, _ := store.Repos()
	for _, id := range []string{b1.ID, b2.ID} {
		b, err := batchRepo.GetByID(id)
		require.NoError(t, err)
		sum, err := movRepo.SumByBatch(id)
		require.NoError(t, err)
		assert.True(t, b.QuantityPurchased.Add(sum).Equal(b.QuantityRemaining),
			"lote %s: %s + %s != %s", b.BatchNumber, b.QuantityPurchased, sum, b.QuantityRemaining)
	}
	assertCacheConsistent(t, store, "papa")
}

func TestConcurrencia_DosConsumosNoSobregiran(t *testing.T) {
	store, rec := newEngine(t, entity.StrategyFIFO)
	seedIngredient(t, store, "aceite")
	purchase(t, rec, "aceite", "10", "2.00", 1, 0)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = rec.RecordConsumption(context.Background(), inventory.ConsumptionInput{
				IngredientID: "aceite",
				Quantity:     dec("6"),
			})
		}(i)
	}
	wg.Wait()

	var okCount, insufficientCount int
	for _, err := range errs {
		if err == nil {
			okCount++
			continue
		}
		var insufficient *domain.InsufficientStockError
		if assert.ErrorAs(t, err, &insufficient) {
			insufficientCount++
		}
	}
	assert.Equal(t, 1, okCount, "exactamente un consumo debe entrar")
	assert.Equal(t, 1, insufficientCount, "el otro debe rechazarse por stock insuficiente")

	assert.True(t, currentStock(t, store, "aceite").Equal(dec("4")), "nunca -2: sin doble deducción")
	assertCacheConsistent(t, store, "aceite")
}
