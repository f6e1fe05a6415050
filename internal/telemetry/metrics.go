package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_switch_operations_total",
		Help: "Payment pipeline executions by operation and result.",
	}, []string{"operation", "result"})

	ConnectorCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_switch_connector_call_duration_seconds",
		Help:    "Latency of outbound connector calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"connector", "flow", "outcome"})

	PretaskFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_switch_pretask_failures_total",
		Help: "Connector pre-task steps that failed and aborted the primary call.",
	}, []string{"connector", "step"})

	WebhooksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_switch_webhooks_total",
		Help: "Inbound connector webhooks by outcome.",
	}, []string{"connector", "outcome"})

	StateTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_switch_state_transitions_total",
		Help: "Committed payment intent status changes.",
	}, []string{"from", "to"})
)
