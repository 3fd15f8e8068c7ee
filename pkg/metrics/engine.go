package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics counts order, refund and stock outcomes. A nil receiver is a no-op.
type EngineMetrics struct {
	ordersCreated   *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	refunds         *prometheus.CounterVec
	stockRejections *prometheus.CounterVec
}

// NewEngineMetrics registers the engine counters on the provided registerer.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		return &EngineMetrics{}
	}
	m := &EngineMetrics{
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_orders_created_total",
			Help: "Orders created, by source (checkout or manual).",
		}, []string{"source"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_order_transitions_total",
			Help: "Order state transitions, by axis and target state.",
		}, []string{"axis", "to"}),
		refunds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_refunds_total",
			Help: "Refund attempts, by path and outcome.",
		}, []string{"path", "outcome"}),
		stockRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_stock_rejections_total",
			Help: "Stock checks that blocked a cart or order operation.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.ordersCreated, m.transitions, m.refunds, m.stockRejections)
	return m
}

func (m *EngineMetrics) IncOrderCreated(source string) {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.WithLabelValues(normalizeLabel(source)).Inc()
}

func (m *EngineMetrics) IncTransition(axis, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(axis), normalizeLabel(to)).Inc()
}

func (m *EngineMetrics) IncRefund(path, outcome string) {
	if m == nil || m.refunds == nil {
		return
	}
	m.refunds.WithLabelValues(normalizeLabel(path), normalizeLabel(outcome)).Inc()
}

func (m *EngineMetrics) IncStockRejection(reason string) {
	if m == nil || m.stockRejections == nil {
		return
	}
	m.stockRejections.WithLabelValues(normalizeLabel(reason)).Inc()
}
