package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de movimiento de inventario.
const (
	MovementTypePurchase    = "PURCHASE"    // entrada por compra (crea lote)
	MovementTypeConsumption = "CONSUMPTION" // salida por venta/preparación
	MovementTypeWaste       = "WASTE"       // merma con código de razón
	MovementTypeAdjustment  = "ADJUSTMENT"  // ajuste correctivo sobre un lote
)

// Códigos de razón de merma.
const (
	WasteReasonExpired   = "EXPIRED"
	WasteReasonSpoiled   = "SPOILED"
	WasteReasonBurnt     = "BURNT"
	WasteReasonReturned  = "RETURNED"
	WasteReasonPrepError = "PREP_ERROR"
	WasteReasonLost      = "LOST"
	WasteReasonTheft     = "THEFT"
	WasteReasonDamaged   = "DAMAGED"
	WasteReasonOther     = "OTHER"
)

// Movement es una fila inmutable del libro de movimientos. Identidad de
// conciliación: para cada lote, QuantityPurchased + Σ Quantity de sus
// movimientos distintos de PURCHASE = QuantityRemaining.
type Movement struct {
	ID            string
	TransactionID string // agrupa los movimientos de una misma operación
	IngredientID  string
	BatchID       *string // nil solo en registros legados previos al rastreo por lote
	Type          string
	Quantity      decimal.Decimal // negativo = consumo/merma, positivo = entrada
	UnitCost      decimal.Decimal
	TotalCost     decimal.Decimal
	Reason        string // código de razón de merma; vacío en otros tipos
	Notes         string
	Date          time.Time
	CreatedAt     time.Time
	CreatedBy     string
}

// ValidWasteReason verifica que el código de razón de merma sea conocido.
func ValidWasteReason(reason string) bool {
	switch reason {
	case WasteReasonExpired, WasteReasonSpoiled, WasteReasonBurnt, WasteReasonReturned,
		WasteReasonPrepError, WasteReasonLost, WasteReasonTheft, WasteReasonDamaged, WasteReasonOther:
		return true
	}
	return false
}
