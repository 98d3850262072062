// Package metrics exposes transport-layer counters through Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bind and inbound message outcomes used as the "result" label.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultDropped = "dropped"
)

// Recorder receives transport-layer events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	// RecordStackFailure records an address whose stack could not be created.
	RecordStackFailure(address string)
	// RecordBind records the outcome of one (address, kind) endpoint attempt.
	RecordBind(kind string, success bool)
	// SetEndpoints publishes the number of registered endpoints for a kind.
	SetEndpoints(kind string, n int)
	// RecordInbound records one inbound message with its result.
	RecordInbound(kind, result string)
	// RecordDispatch records one message routed by the observer.
	RecordDispatch(method string)
}

// PrometheusMetrics implements Recorder against its own registry.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	bindAttempts  *prometheus.CounterVec
	stackFailures prometheus.Counter
	endpoints     *prometheus.GaugeVec
	inbound       *prometheus.CounterVec
	dispatched    *prometheus.CounterVec
}

// NewPrometheusMetrics creates the collectors and registers them on a fresh
// registry so several instances can coexist in one process (tests).
func NewPrometheusMetrics() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		registry: reg,
		bindAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "siplayer_bind_attempts_total",
			Help: "Total number of listening point and provider creation attempts",
		}, []string{"kind", "result"}),
		stackFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "siplayer_stack_failures_total",
			Help: "Total number of monitor addresses whose SIP stack could not be created",
		}),
		endpoints: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "siplayer_endpoints",
			Help: "Number of registered transport endpoints",
		}, []string{"kind"}),
		inbound: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "siplayer_inbound_messages_total",
			Help: "Total number of inbound SIP messages",
		}, []string{"kind", "result"}), // result: success, dropped, failure
		dispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "siplayer_dispatched_messages_total",
			Help: "Total number of inbound SIP messages routed to a processor",
		}, []string{"method"}),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *PrometheusMetrics) RecordStackFailure(address string) {
	m.stackFailures.Inc()
}

func (m *PrometheusMetrics) RecordBind(kind string, success bool) {
	result := ResultFailure
	if success {
		result = ResultSuccess
	}
	m.bindAttempts.WithLabelValues(kind, result).Inc()
}

func (m *PrometheusMetrics) SetEndpoints(kind string, n int) {
	m.endpoints.WithLabelValues(kind).Set(float64(n))
}

func (m *PrometheusMetrics) RecordInbound(kind, result string) {
	m.inbound.WithLabelValues(kind, result).Inc()
}

func (m *PrometheusMetrics) RecordDispatch(method string) {
	m.dispatched.WithLabelValues(method).Inc()
}

// Nop discards every event.
type Nop struct{}

func (Nop) RecordStackFailure(string)    {}
func (Nop) RecordBind(string, bool)      {}
func (Nop) SetEndpoints(string, int)     {}
func (Nop) RecordInbound(string, string) {}
func (Nop) RecordDispatch(string)        {}

var (
	_ Recorder = (*PrometheusMetrics)(nil)
	_ Recorder = Nop{}
)
