package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "passkey_wallet"

var (
	registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests processed.",
	}, []string{"handler", "method", "code"})

	httpErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_request_errors_total",
		Help:      "Total number of HTTP requests that resulted in a server error.",
	}, []string{"handler", "method"})

	httpLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"handler", "method"})

	stageTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transaction_stage_total",
		Help:      "Transaction pipeline stage executions by outcome.",
	}, []string{"stage", "outcome"})

	stageLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "transaction_stage_duration_seconds",
		Help:      "Duration of transaction pipeline stages in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})

	interpretations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "interpretations_total",
		Help:      "Commands interpreted, by the strategy that recognised them.",
	}, []string{"strategy", "intent"})

	commands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_total",
		Help:      "Queued commands by final status.",
	}, []string{"status"})

	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "command_queue_depth",
		Help:      "Commands accepted but not yet processed.",
	})
)

func init() {
	registry.MustRegister(
		httpRequests, httpErrors, httpLatency,
		stageTotal, stageLatency,
		interpretations, commands, queueDepth,
		collectors.NewGoCollector(),
	)
}

// ObserveHTTPRequest records metrics about an HTTP request lifecycle.
func ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(handler, method, strconv.Itoa(status)).Inc()
	if status >= 500 {
		httpErrors.WithLabelValues(handler, method).Inc()
	}
	httpLatency.WithLabelValues(handler, method).Observe(duration.Seconds())
}

// ObserveStage records one create, sign or send execution.
func ObserveStage(stage string, err error, duration time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	stageTotal.WithLabelValues(stage, outcome).Inc()
	stageLatency.WithLabelValues(stage).Observe(duration.Seconds())
}

// ObserveInterpretation counts which strategy recognised a command.
func ObserveInterpretation(strategy, intent string) {
	if strategy == "" {
		strategy = "none"
	}
	interpretations.WithLabelValues(strategy, intent).Inc()
}

// ObserveCommand counts a finished queued command.
func ObserveCommand(status string) {
	commands.WithLabelValues(status).Inc()
}

// SetQueueDepth reports the number of pending commands.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// Handler exposes the metrics in Prometheus text exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
