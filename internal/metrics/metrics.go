package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for this service.
	Registry = prometheus.NewRegistry()

	// Deliveries counts delivery attempts by event type and outcome
	// (success, failed, exhausted).
	Deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Delivery attempts by event type and outcome."},
		[]string{"event_type", "outcome"},
	)
	// DeliveryLatency tracks delivery round-trip latency in milliseconds.
	DeliveryLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "outcome"},
	)
	// RetriesScheduled counts attempts that owed another retry.
	RetriesScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "webhook_retries_scheduled_total", Help: "Retries scheduled after failed attempts."},
	)
	// DeliveriesDropped counts deliveries dropped because the worker
	// queue was saturated at publish time.
	DeliveriesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "webhook_deliveries_dropped_total", Help: "Deliveries dropped due to a saturated worker queue."},
	)
	// InboundCalls counts inbound webhook calls by result
	// (accepted, missing_signature, unknown_subscription, bad_signature, rate_limited).
	InboundCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_inbound_calls_total", Help: "Inbound webhook calls by result."},
		[]string{"result"},
	)
)

var regOnce sync.Once

// Register registers all collectors on the service registry.
func Register() {
	regOnce.Do(func() {
		Registry.MustRegister(Deliveries)
		Registry.MustRegister(DeliveryLatency)
		Registry.MustRegister(RetriesScheduled)
		Registry.MustRegister(DeliveriesDropped)
		Registry.MustRegister(InboundCalls)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
