package metrics

import "github.com/prometheus/client_golang/prometheus"

// PaymentMetrics counts gateway callback traffic and reconciliation outcomes.
// Channel is "return" or "ipn"; outcome is the reconciler's disposition.
type PaymentMetrics struct {
	callbacks        *prometheus.CounterVec
	materializations prometheus.Counter
	duplicates       prometheus.Counter
}

// NewPaymentMetrics registers the payment counters on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	callbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_callbacks_total",
		Help: "Inbound payment gateway callbacks by channel and outcome.",
	}, []string{"channel", "outcome"})
	materializations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_materialized_total",
		Help: "Orders committed from staged gateway payments.",
	})
	duplicates := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_duplicate_callbacks_total",
		Help: "Callbacks resolved as already-processed transaction ids.",
	})
	reg.MustRegister(callbacks, materializations, duplicates)
	return &PaymentMetrics{
		callbacks:        callbacks,
		materializations: materializations,
		duplicates:       duplicates,
	}
}

// ObserveCallback counts one inbound callback for the channel/outcome pair.
func (p *PaymentMetrics) ObserveCallback(channel, outcome string) {
	if p == nil || p.callbacks == nil {
		return
	}
	p.callbacks.WithLabelValues(normalizeLabel(channel), normalizeLabel(outcome)).Inc()
}

// IncMaterialized counts one committed order.
func (p *PaymentMetrics) IncMaterialized() {
	if p == nil || p.materializations == nil {
		return
	}
	p.materializations.Inc()
}

// IncDuplicate counts one idempotent no-op resolution.
func (p *PaymentMetrics) IncDuplicate() {
	if p == nil || p.duplicates == nil {
		return
	}
	p.duplicates.Inc()
}
