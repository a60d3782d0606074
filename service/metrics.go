package service

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector tracks workflow actions and chain requests. Every
// collector owns its registry so several can live in one process.
type MetricsCollector struct {
	registry       *prometheus.Registry
	actionCounter  *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
	chainRequests  *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec

	mu      sync.RWMutex
	actions map[string]*OperationMetrics
}

// OperationMetrics contains timing information for an action
type OperationMetrics struct {
	Count          int       `json:"count"`
	Errors         int       `json:"errors"`
	LastAt         time.Time `json:"last_at"`
	ProcessingTime int64     `json:"processing_time_ms"`
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &MetricsCollector{
		registry: reg,
		actionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "evote",
				Subsystem: "workflow",
				Name:      "actions_total",
				Help:      "Workflow actions by outcome",
			},
			[]string{"action", "outcome"},
		),
		actionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "evote",
				Subsystem: "workflow",
				Name:      "action_duration_seconds",
				Help:      "Workflow action duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"action"},
		),
		chainRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "evote",
				Subsystem: "chain",
				Name:      "requests_total",
				Help:      "Contract queries and transactions by outcome",
			},
			[]string{"kind", "outcome"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "evote",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "evote",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		actions: make(map[string]*OperationMetrics),
	}
}

// Registry is what the /metrics handler serves.
func (mc *MetricsCollector) Registry() *prometheus.Registry {
	return mc.registry
}

// ObserveAction records one finished workflow action
func (mc *MetricsCollector) ObserveAction(action, outcome string, took time.Duration) {
	mc.actionCounter.WithLabelValues(action, outcome).Inc()
	mc.actionDuration.WithLabelValues(action).Observe(took.Seconds())

	mc.mu.Lock()
	defer mc.mu.Unlock()

	op, ok := mc.actions[action]
	if !ok {
		op = &OperationMetrics{}
		mc.actions[action] = op
	}
	op.Count++
	if outcome == "error" {
		op.Errors++
	}
	op.LastAt = time.Now()
	op.ProcessingTime += took.Milliseconds()
}

// ObserveChainRequest records one contract query or transaction
func (mc *MetricsCollector) ObserveChainRequest(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	mc.chainRequests.WithLabelValues(kind, outcome).Inc()
}

// ObserveHTTPRequest records one served API request
func (mc *MetricsCollector) ObserveHTTPRequest(method, route string, status int, took time.Duration) {
	mc.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	mc.httpDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

// GetMetrics returns a copy of the per action totals
func (mc *MetricsCollector) GetMetrics() map[string]OperationMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	out := make(map[string]OperationMetrics, len(mc.actions))
	for k, v := range mc.actions {
		out[k] = *v
	}
	return out
}
