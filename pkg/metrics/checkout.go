package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records cart and order submission activity.
type CheckoutMetrics struct {
	placed    *prometheus.CounterVec
	failures  *prometheus.CounterVec
	duration  prometheus.Histogram
	mutations *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	placed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_orders_placed_total",
		Help: "Orders accepted by the marketplace backend.",
	}, []string{"order_type", "payment_method"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_order_failures_total",
		Help: "Checkout failures by stage.",
	}, []string{"stage"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_submit_duration_seconds",
		Help:    "Duration of order submissions in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Cart mutations by operation.",
	}, []string{"op"})
	reg.MustRegister(placed, failures, duration, mutations)
	return &CheckoutMetrics{
		placed:    placed,
		failures:  failures,
		duration:  duration,
		mutations: mutations,
	}
}

// IncPlaced counts an order accepted by the backend.
func (c *CheckoutMetrics) IncPlaced(orderType, paymentMethod string) {
	if c == nil || c.placed == nil {
		return
	}
	c.placed.WithLabelValues(normalizeLabel(orderType), normalizeLabel(paymentMethod)).Inc()
}

// IncFailure counts a failure at the named stage (validation, order, payment).
func (c *CheckoutMetrics) IncFailure(stage string) {
	if c == nil || c.failures == nil {
		return
	}
	c.failures.WithLabelValues(normalizeLabel(stage)).Inc()
}

// ObserveSubmit records how long a submission took.
func (c *CheckoutMetrics) ObserveSubmit(duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.Observe(duration.Seconds())
}

// IncMutation counts a cart mutation.
func (c *CheckoutMetrics) IncMutation(op string) {
	if c == nil || c.mutations == nil {
		return
	}
	c.mutations.WithLabelValues(normalizeLabel(op)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
