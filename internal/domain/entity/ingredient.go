package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ingredient representa un ingrediente de cocina (materia prima del restaurante).
// CurrentStock es un cache derivado: debe ser igual a la suma de QuantityRemaining
// de los lotes activos del ingrediente después de cada operación confirmada.
type Ingredient struct {
	ID           string
	Name         string
	Unit         string          // kg, g, l, ml, pcs
	ReorderLevel decimal.Decimal // umbral de reorden; 0 = sin alerta
	CostPerUnit  decimal.Decimal // costo de referencia (informativo; el costo real vive en cada lote)
	CurrentStock decimal.Decimal
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BelowReorderLevel indica si el ingrediente está en o bajo su punto de reorden.
func (i *Ingredient) BelowReorderLevel() bool {
	return i.ReorderLevel.GreaterThan(decimal.Zero) && i.CurrentStock.LessThanOrEqual(i.ReorderLevel)
}
