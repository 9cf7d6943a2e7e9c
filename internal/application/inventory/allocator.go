package inventory

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/restopos-api/internal/domain/entity"
)

// AllocationLine es una toma sobre un lote dentro de una asignación: cuánto se
// dedujo y a qué costo unitario. Los callers de consumo (ej. reporte de COGS)
// necesitan el desglose ponderado por lote, no un costo único.
type AllocationLine struct {
	BatchID     string
	BatchNumber string
	Quantity    decimal.Decimal
	UnitCost    decimal.Decimal
}

// TotalCost devuelve Quantity * UnitCost de la línea.
func (l AllocationLine) TotalCost() decimal.Decimal {
	return l.Quantity.Mul(l.UnitCost)
}

// PlanAllocation recorre los lotes en el orden recibido (el orden de estrategia
// lo decide el repositorio) y arma el desglose de tomas: de cada lote toma
// min(faltante, restante del lote) hasta cubrir quantity o agotar lotes.
// No muta nada: devuelve el plan y el faltante (cero si quedó cubierto).
func PlanAllocation(batches []*entity.Batch, quantity decimal.Decimal) ([]AllocationLine, decimal.Decimal) {
	remaining := quantity
	var lines []AllocationLine
	for _, b := range batches {
		if !remaining.GreaterThan(decimal.Zero) {
			break
		}
		if !b.CanAllocate() {
			continue
		}
		take := decimal.Min(remaining, b.QuantityRemaining)
		lines = append(lines, AllocationLine{
			BatchID:     b.ID,
			BatchNumber: b.BatchNumber,
			Quantity:    take,
			UnitCost:    b.CostPerUnit,
		})
		remaining = remaining.Sub(take)
	}
	return lines, remaining
}
