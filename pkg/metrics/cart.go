package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics records the outcome of cart mutations and per-shop fetches.
type CartMetrics struct {
	opDuration    *prometheus.HistogramVec
	opSuccess     *prometheus.CounterVec
	opFailure     *prometheus.CounterVec
	staleRecovery prometheus.Counter
	shopFetch     *prometheus.CounterVec
}

// NewCartMetrics registers the cart metrics on the provided registerer. A
// nil registerer yields a no-op instance, which keeps tests quiet.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	opDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_op_duration_seconds",
		Help:    "Duration of remote cart operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	opSuccess := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_op_success",
		Help: "Successful cart operations.",
	}, []string{"op"})
	opFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_op_failure",
		Help: "Failed cart operations.",
	}, []string{"op"})
	staleRecovery := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_stale_recoveries",
		Help: "Times a stale cart was transparently replaced with a fresh one.",
	})
	shopFetch := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_shop_fetch_total",
		Help: "Per-shop cart fetch outcomes during aggregation.",
	}, []string{"result"})
	reg.MustRegister(opDuration, opSuccess, opFailure, staleRecovery, shopFetch)
	return &CartMetrics{
		opDuration:    opDuration,
		opSuccess:     opSuccess,
		opFailure:     opFailure,
		staleRecovery: staleRecovery,
		shopFetch:     shopFetch,
	}
}

// ObserveOp records the duration and outcome for the named operation.
func (c *CartMetrics) ObserveOp(op string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	op = normalizeLabel(op)
	if c.opDuration != nil {
		c.opDuration.WithLabelValues(op).Observe(duration.Seconds())
	}
	if err != nil {
		if c.opFailure != nil {
			c.opFailure.WithLabelValues(op).Inc()
		}
		return
	}
	if c.opSuccess != nil {
		c.opSuccess.WithLabelValues(op).Inc()
	}
}

// IncStaleRecovery counts a transparent stale-cart replacement.
func (c *CartMetrics) IncStaleRecovery() {
	if c == nil || c.staleRecovery == nil {
		return
	}
	c.staleRecovery.Inc()
}

// IncShopFetch counts one per-shop fetch outcome ("active", "checked_out",
// "unavailable").
func (c *CartMetrics) IncShopFetch(result string) {
	if c == nil || c.shopFetch == nil {
		return
	}
	c.shopFetch.WithLabelValues(normalizeLabel(result)).Inc()
}

func normalizeLabel(label string) string {
	if label == "" {
		return "unknown"
	}
	return label
}
