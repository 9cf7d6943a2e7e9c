package reporting_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/restopos-api/internal/application/reporting"
	"github.com/jhoicas/restopos-api/internal/domain"
	"github.com/jhoicas/restopos-api/internal/domain/entity"
	"github.com/jhoicas/restopos-api/internal/infrastructure/memory"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newReporter(t *testing.T) (*memory.Store, *reporting.ReporterUseCase) {
	t.Helper()
	store := memory.NewStore(entity.StrategyFEFO)
	batchRepo, _, ingredientRepo := store.Repos()
	return store, reporting.NewReporterUseCase(batchRepo, ingredientRepo, nil)
}

// seedBatch inserta un lote directo al store, sin pasar por el motor.
func seedBatch(t *testing.T, store *memory.Store, id, ingredientID, status string, remaining, cost string, expiry *time.Time) {
	t.Helper()
	batchRepo, _, _ := store.Repos()
	qty := dec(remaining)
	require.NoError(t, batchRepo.Create(&entity.Batch{
		ID:                id,
		IngredientID:      ingredientID,
		BatchNumber:       "LOTE-" + id,
		QuantityPurchased: qty,
		QuantityRemaining: qty,
		CostPerUnit:       dec(cost),
		PurchaseDate:      time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		ExpiryDate:        expiry,
		Status:            status,
	}))
}

func daysFromNow(d int) *time.Time {
	t := time.Now().UTC().AddDate(0, 0, d)
	return &t
}

func TestInventoryValuation(t *testing.T) {
	store, rep := newReporter(t)
	seedBatch(t, store, "a", "harina", entity.BatchStatusActive, "10", "2.00", nil)
	seedBatch(t, store, "b", "harina", entity.BatchStatusActive, "4", "2.50", nil)
	seedBatch(t, store, "c", "harina", entity.BatchStatusExpired, "99", "9.99", nil)

	total, err := rep.InventoryValuation(context.Background())
	require.NoError(t, err)
	assert.True(t, total.Equal(dec("30")), "10*2.00 + 4*2.50; los no activos no valúan, total: %s", total)

	// Sin escrituras de por medio la valuación es estable.
	again, err := rep.InventoryValuation(context.Background())
	require.NoError(t, err)
	assert.True(t, again.Equal(total))
}

func TestInventoryValuation_Vacia(t *testing.T) {
	_, rep := newReporter(t)

	total, err := rep.InventoryValuation(context.Background())
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestExpiringBatches_VentanaYOrden(t *testing.T) {
	store, rep := newReporter(t)
	seedBatch(t, store, "manana", "leche", entity.BatchStatusActive, "5", "1", daysFromNow(1))
	seedBatch(t, store, "semana", "leche", entity.BatchStatusActive, "5", "1", daysFromNow(6))
	seedBatch(t, store, "lejano", "leche", entity.BatchStatusActive, "5", "1", daysFromNow(30))
	seedBatch(t, store, "vencido", "leche", entity.BatchStatusActive, "5", "1", daysFromNow(-2))
	seedBatch(t, store, "eterno", "leche", entity.BatchStatusActive, "5", "1", nil)

	list, err := rep.ExpiringBatches(context.Background(), 7)
	require.NoError(t, err)

	require.Len(t, list, 3)
	assert.Equal(t, "vencido", list[0].Batch.ID, "vencimiento ascendente: el ya vencido primero")
	assert.Equal(t, "manana", list[1].Batch.ID)
	assert.Equal(t, "semana", list[2].Batch.ID)
	assert.Equal(t, -2, list[0].DaysUntilExpiry, "vencido sin barrer reporta días negativos")
	assert.Equal(t, 1, list[1].DaysUntilExpiry)
}

func TestExpiringBatches_VentanaNegativa(t *testing.T) {
	_, rep := newReporter(t)

	_, err := rep.ExpiringBatches(context.Background(), -1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAverageUnitCost(t *testing.T) {
	store, rep := newReporter(t)
	seedBatch(t, store, "a", "harina", entity.BatchStatusActive, "10", "2.00", nil)
	seedBatch(t, store, "b", "harina", entity.BatchStatusActive, "5", "3.50", nil)

	avg, err := rep.AverageUnitCost(context.Background(), "harina")
	require.NoError(t, err)
	assert.True(t, avg.Equal(dec("2.5")), "(10*2.00 + 5*3.50) / 15, promedio: %s", avg)

	avg, err = rep.AverageUnitCost(context.Background(), "inexistente")
	require.NoError(t, err)
	assert.True(t, avg.IsZero(), "sin stock el promedio es cero")
}

func TestLowStock(t *testing.T) {
	store, rep := newReporter(t)
	_, _, ingredientRepo := store.Repos()
	seed := func(id string, reorder, stock string) {
		require.NoError(t, ingredientRepo.Create(&entity.Ingredient{
			ID: id, Name: id, Unit: "kg",
			ReorderLevel: dec(reorder),
			CurrentStock: dec(stock),
		}))
	}
	seed("critico", "10", "1")  // déficit 9
	seed("justo", "5", "5")     // en el punto de reorden: alerta
	seed("sano", "5", "20")     // sobre el nivel
	seed("sinNivel", "0", "0")  // reorder_level 0 no alerta

	list, err := rep.LowStock(context.Background())
	require.NoError(t, err)

	require.Len(t, list, 2)
	assert.Equal(t, "critico", list[0].ID, "mayor déficit primero")
	assert.Equal(t, "justo", list[1].ID)
}

func TestLowStock_SinResultados(t *testing.T) {
	_, rep := newReporter(t)

	list, err := rep.LowStock(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list, "lista vacía, no nil")
	assert.Empty(t, list)
}

func TestActiveBatches_EstrategiaInvalida(t *testing.T) {
	_, rep := newReporter(t)

	_, err := rep.ActiveBatches(context.Background(), "harina", "LIFO")
	assert.ErrorIs(t, err, domain.ErrUnknownStrategy)
}

func TestActiveBatches_OrdenFEFO(t *testing.T) {
	store, rep := newReporter(t)
	seedBatch(t, store, "tarde", "leche", entity.BatchStatusActive, "5", "1", daysFromNow(10))
	seedBatch(t, store, "pronto", "leche", entity.BatchStatusActive, "5", "1", daysFromNow(2))
	seedBatch(t, store, "nunca", "leche", entity.BatchStatusActive, "5", "1", nil)

	list, err := rep.ActiveBatches(context.Background(), "leche", entity.StrategyFEFO)
	require.NoError(t, err)

	require.Len(t, list, 3)
	assert.Equal(t, "pronto", list[0].ID)
	assert.Equal(t, "tarde", list[1].ID)
	assert.Equal(t, "nunca", list[2].ID, "sin vencimiento al final")
}
