package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics tracks checkout and order lifecycle activity.
type OrderMetrics struct {
	checkouts   *prometheus.CounterVec
	transitions *prometheus.CounterVec
	redemptions *prometheus.CounterVec
}

// NewOrderMetrics registers the order metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_total",
		Help: "Checkout attempts by payment method and outcome.",
	}, []string{"payment_method", "outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Order status transitions by target status.",
	}, []string{"to_status"})
	redemptions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reward_redemptions_total",
		Help: "Reward redemptions by reward kind.",
	}, []string{"kind"})
	reg.MustRegister(checkouts, transitions, redemptions)
	return &OrderMetrics{
		checkouts:   checkouts,
		transitions: transitions,
		redemptions: redemptions,
	}
}

// IncCheckout counts a checkout attempt.
func (o *OrderMetrics) IncCheckout(paymentMethod, outcome string) {
	if o == nil || o.checkouts == nil {
		return
	}
	o.checkouts.WithLabelValues(normalizeLabel(paymentMethod), normalizeLabel(outcome)).Inc()
}

// IncTransition counts a status transition.
func (o *OrderMetrics) IncTransition(toStatus string) {
	if o == nil || o.transitions == nil {
		return
	}
	o.transitions.WithLabelValues(normalizeLabel(toStatus)).Inc()
}

// IncRedemption counts a reward redemption.
func (o *OrderMetrics) IncRedemption(kind string) {
	if o == nil || o.redemptions == nil {
		return
	}
	o.redemptions.WithLabelValues(normalizeLabel(kind)).Inc()
}
