package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Metrics contadores Prometheus del motor de lotes. Un receptor nil es un
// no-op, así los casos de uso no necesitan chequear si hay métricas cableadas.
type Metrics struct {
	allocationsTotal   *prometheus.CounterVec
	allocationFailures *prometheus.CounterVec
	wasteTotal         *prometheus.CounterVec
	expiredBatches     prometheus.Counter
	inventoryValue     prometheus.Gauge
}

// New registra las métricas en el Registerer dado (usar prometheus.DefaultRegisterer
// en producción, un registry propio en tests).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		allocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_allocations_total",
			Help: "Asignaciones de lotes confirmadas, por estrategia.",
		}, []string{"strategy"}),
		allocationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_allocation_failures_total",
			Help: "Asignaciones rechazadas, por causa.",
		}, []string{"reason"}),
		wasteTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_waste_total",
			Help: "Mermas registradas, por código de razón.",
		}, []string{"reason"}),
		expiredBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inventory_expired_batches_total",
			Help: "Lotes transicionados a expired por el barrido.",
		}),
		inventoryValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "inventory_valuation",
			Help: "Última valuación de inventario calculada.",
		}),
	}
	reg.MustRegister(m.allocationsTotal, m.allocationFailures, m.wasteTotal, m.expiredBatches, m.inventoryValue)
	return m
}

// IncAllocation cuenta una asignación confirmada.
func (m *Metrics) IncAllocation(strategy string) {
	if m == nil {
		return
	}
	m.allocationsTotal.WithLabelValues(strategy).Inc()
}

// IncAllocationFailure cuenta una asignación rechazada.
func (m *Metrics) IncAllocationFailure(reason string) {
	if m == nil {
		return
	}
	m.allocationFailures.WithLabelValues(reason).Inc()
}

// IncWaste cuenta una merma registrada.
func (m *Metrics) IncWaste(reason string) {
	if m == nil {
		return
	}
	m.wasteTotal.WithLabelValues(reason).Inc()
}

// AddExpiredBatches suma lotes vencidos por un barrido.
func (m *Metrics) AddExpiredBatches(n int) {
	if m == nil {
		return
	}
	m.expiredBatches.Add(float64(n))
}

// SetInventoryValue publica la última valuación calculada.
func (m *Metrics) SetInventoryValue(v decimal.Decimal) {
	if m == nil {
		return
	}
	f, _ := v.Float64()
	m.inventoryValue.Set(f)
}
