package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de un lote.
const (
	BatchStatusActive   = "active"   // disponible para asignación
	BatchStatusDepleted = "depleted" // QuantityRemaining llegó a 0
	BatchStatusExpired  = "expired"  // venció con cantidad restante (barrido de vencimiento)
	BatchStatusDisposed = "disposed" // baja manual, estado terminal
)

// Estrategias de consumo de lotes.
const (
	StrategyFIFO = "FIFO" // primero el lote comprado más antiguo
	StrategyFEFO = "FEFO" // primero el lote que vence más pronto
)

// Batch representa un lote de compra de un ingrediente: cantidad, costo y
// vencimiento propios. Los lotes nunca se borran; solo cambian de estado
// (rastro de auditoría append-only).
type Batch struct {
	ID                string
	IngredientID      string
	BatchNumber       string  // legible, único por ingrediente (ej. LOTE-0003)
	SupplierID        *string
	QuantityPurchased decimal.Decimal // inmutable después de creado
	QuantityRemaining decimal.Decimal // 0 <= QuantityRemaining <= QuantityPurchased
	CostPerUnit       decimal.Decimal // inmutable por lote; lotes distintos pueden tener costos distintos
	PurchaseDate      time.Time
	ManufacturingDate *time.Time
	ExpiryDate        *time.Time // nil = nunca vence
	Status            string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CanAllocate indica si el lote es candidato para asignación de consumo.
func (b *Batch) CanAllocate() bool {
	return b.Status == BatchStatusActive && b.QuantityRemaining.GreaterThan(decimal.Zero)
}

// IsExpiredAt indica si el lote está vencido en la fecha dada. Un lote vence
// solo cuando la fecha actual es estrictamente posterior a ExpiryDate: el día
// del vencimiento todavía es utilizable.
func (b *Batch) IsExpiredAt(now time.Time) bool {
	if b.ExpiryDate == nil {
		return false
	}
	return dateOnly(now).After(dateOnly(*b.ExpiryDate))
}

// DaysUntilExpiry devuelve los días (piso de la diferencia de fechas) hasta el
// vencimiento. Negativo = ya vencido pero aún no barrido. ok=false si no vence.
func (b *Batch) DaysUntilExpiry(now time.Time) (int, bool) {
	if b.ExpiryDate == nil {
		return 0, false
	}
	diff := dateOnly(*b.ExpiryDate).Sub(dateOnly(now))
	return int(diff.Hours() / 24), true
}

// RemainingValue devuelve el valor monetario del restante del lote.
func (b *Batch) RemainingValue() decimal.Decimal {
	return b.QuantityRemaining.Mul(b.CostPerUnit)
}

// dateOnly trunca a medianoche UTC para comparar por fecha calendario.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
