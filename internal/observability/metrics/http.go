// Package metrics exposes Prometheus instrumentation for the API server
// and the ingestion pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mzwaMoj/bedrock-rag/internal/core/domain"
)

type ServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	queryTotal      *prometheus.CounterVec
	queryDuration   *prometheus.HistogramVec
	retrievedChunks *prometheus.HistogramVec
	llmTokensTotal  *prometheus.CounterVec

	embeddingFallbackTotal *prometheus.CounterVec

	pipelineRunsTotal *prometheus.CounterVec
	pipelineDuration  prometheus.Histogram
}

func NewServerMetrics(service string) *ServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rag",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rag",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rag",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queryTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rag",
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Total chat queries by mode and outcome.",
		},
		[]string{"service", "mode", "status"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rag",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Query execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "mode"},
	)
	retrievedChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rag",
			Subsystem: "query",
			Name:      "retrieved_chunks",
			Help:      "Distribution of retrieved sources per successful grounded query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	llmTokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rag",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Reported token usage by direction.",
		},
		[]string{"service", "direction", "model"},
	)
	embeddingFallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rag",
			Subsystem: "embed",
			Name:      "fallback_total",
			Help:      "Total zero-vector fallbacks; a rising rate means degraded retrieval quality.",
		},
		[]string{"service", "model"},
	)
	pipelineRunsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rag",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total pipeline runs by resulting state.",
		},
		[]string{"service", "state"},
	)
	pipelineDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rag",
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Full ingestion run duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		queryTotal,
		queryDuration,
		retrievedChunks,
		llmTokensTotal,
		embeddingFallbackTotal,
		pipelineRunsTotal,
		pipelineDuration,
	)

	return &ServerMetrics{
		registry:               registry,
		requestTotal:           requestTotal,
		requestDuration:        requestDuration,
		requestInFlight:        requestInFlight,
		queryTotal:             queryTotal,
		queryDuration:          queryDuration,
		retrievedChunks:        retrievedChunks,
		llmTokensTotal:         llmTokensTotal,
		embeddingFallbackTotal: embeddingFallbackTotal,
		pipelineRunsTotal:      pipelineRunsTotal,
		pipelineDuration:       pipelineDuration,
	}
}

func (m *ServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RequestStarted increments the in-flight gauge and returns the matching
// decrement for the caller to invoke when the request completes.
func (m *ServerMetrics) RequestStarted() func() {
	m.requestInFlight.Inc()
	return m.requestInFlight.Dec
}

func (m *ServerMetrics) RecordHTTPRequest(service, method, path string, status int, duration time.Duration) {
	m.requestTotal.WithLabelValues(service, method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

func (m *ServerMetrics) RecordQuery(service string, mode domain.QueryMode, status string, sourceCount int, duration time.Duration) {
	modeLabel := string(mode)
	if modeLabel == "" {
		modeLabel = string(domain.ModeGrounded)
	}
	if status == "" {
		status = "unknown"
	}
	m.queryTotal.WithLabelValues(service, modeLabel, status).Inc()
	m.queryDuration.WithLabelValues(service, modeLabel).Observe(duration.Seconds())
	if status == "ok" && mode != domain.ModeBypass {
		m.retrievedChunks.WithLabelValues(service).Observe(float64(sourceCount))
	}
}

func (m *ServerMetrics) RecordTokenUsage(service, model string, promptTokens, responseTokens int) {
	if model == "" {
		model = "unknown"
	}
	if promptTokens > 0 {
		m.llmTokensTotal.WithLabelValues(service, "in", model).Add(float64(promptTokens))
	}
	if responseTokens > 0 {
		m.llmTokensTotal.WithLabelValues(service, "out", model).Add(float64(responseTokens))
	}
}

func (m *ServerMetrics) RecordEmbeddingFallback(service, model string) {
	if model == "" {
		model = "unknown"
	}
	m.embeddingFallbackTotal.WithLabelValues(service, model).Inc()
}

func (m *ServerMetrics) RecordPipelineRun(service string, state domain.PipelineState, duration time.Duration) {
	m.pipelineRunsTotal.WithLabelValues(service, string(state)).Inc()
	m.pipelineDuration.Observe(duration.Seconds())
}

