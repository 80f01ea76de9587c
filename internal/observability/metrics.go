package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsActive  prometheus.Gauge

	// Detection metrics
	DetectionPassesTotal *prometheus.CounterVec
	FieldsPerPass        prometheus.Histogram
	FrameGatherDuration  prometheus.Histogram
	FramesResponded      prometheus.Histogram

	// Matching metrics
	MatchesTotal    *prometheus.CounterVec
	MatchConfidence prometheus.Histogram
	FallbackRuns    prometheus.Counter

	// Capture metrics
	CaptureOutcomes *prometheus.CounterVec

	// Fill metrics
	FillFieldsTotal *prometheus.CounterVec

	// LLM provider metrics
	LLMRequestsTotal   *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec
	LLMTokensUsed      *prometheus.CounterVec
	LLMCostTotal       prometheus.Counter
	LLMCacheHits       prometheus.Counter
	LLMCacheMisses     prometheus.Counter

	// System metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
	CacheSize           prometheus.Gauge
}

// NewMetrics creates a new metrics instance with all Prometheus metrics registered
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "memfill"
	}

	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_active",
				Help:      "Number of active HTTP requests",
			},
		),

		// Detection metrics
		DetectionPassesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "detection_passes_total",
				Help:      "Total number of detection passes",
			},
			[]string{"trigger", "status"}, // trigger: initial, mutation, manual
		),
		FieldsPerPass: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "detection_fields_per_pass",
				Help:      "Number of fields surviving the quality filter per pass",
				Buckets:   []float64{0, 1, 2, 5, 10, 20, 35, 50},
			},
		),
		FrameGatherDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "frame_gather_duration_seconds",
				Help:      "Duration of the multi-frame collection gather",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2, 3},
			},
		),
		FramesResponded: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "frames_responded",
				Help:      "Number of frames that responded per gather",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 12},
			},
		),

		// Matching metrics
		MatchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "matches_total",
				Help:      "Total number of field-to-memory mappings produced",
			},
			[]string{"source", "outcome"}, // source: ai, fallback; outcome: matched, no_match
		),
		MatchConfidence: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "match_confidence",
				Help:      "Confidence of produced mappings",
				Buckets:   []float64{0, .1, .2, .3, .4, .5, .6, .7, .8, .9, 1},
			},
		),
		FallbackRuns: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fallback_runs_total",
				Help:      "Number of batches downgraded to the fallback matcher",
			},
		),

		// Capture metrics
		CaptureOutcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "capture_outcomes_total",
				Help:      "Per-field capture outcomes",
			},
			[]string{"outcome"}, // created, updated, skipped, failed
		),

		// Fill metrics
		FillFieldsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fill_fields_total",
				Help:      "Per-field fill outcomes",
			},
			[]string{"outcome"}, // filled, skipped, missing
		),

		// LLM provider metrics
		LLMRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_requests_total",
				Help:      "Total number of LLM API requests",
			},
			[]string{"model", "purpose", "status"},
		),
		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_request_duration_seconds",
				Help:      "LLM API request duration in seconds",
				Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"model", "purpose"},
		),
		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_tokens_used_total",
				Help:      "Total number of tokens used",
			},
			[]string{"model", "type"}, // type: input, output
		),
		LLMCostTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_cost_usd_total",
				Help:      "Total estimated cost in USD",
			},
		),
		LLMCacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_cache_hits_total",
				Help:      "Total number of cache hits",
			},
		),
		LLMCacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_cache_misses_total",
				Help:      "Total number of cache misses",
			},
		),

		// System metrics
		DBConnectionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_active",
				Help:      "Number of active database connections",
			},
		),
		DBConnectionsIdle: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_idle",
				Help:      "Number of idle database connections",
			},
		),
		CacheSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_size",
				Help:      "Current cache size (number of entries)",
			},
		),
	}

	return m
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordDetectionPass records one detection pass
func (m *Metrics) RecordDetectionPass(trigger, status string, fieldsKept int) {
	m.DetectionPassesTotal.WithLabelValues(trigger, status).Inc()
	m.FieldsPerPass.Observe(float64(fieldsKept))
}

// ObserveFrameGather records one multi-frame collection gather
func (m *Metrics) ObserveFrameGather(duration time.Duration, framesResponded int) {
	m.FrameGatherDuration.Observe(duration.Seconds())
	m.FramesResponded.Observe(float64(framesResponded))
}

// RecordMatch records one produced mapping
func (m *Metrics) RecordMatch(source, outcome string, confidence float64) {
	m.MatchesTotal.WithLabelValues(source, outcome).Inc()
	if outcome == "matched" {
		m.MatchConfidence.Observe(confidence)
	}
}

// RecordFallback records a whole batch downgraded to the fallback matcher
func (m *Metrics) RecordFallback() {
	m.FallbackRuns.Inc()
}

// RecordCapture records a per-field capture outcome
func (m *Metrics) RecordCapture(outcome string) {
	m.CaptureOutcomes.WithLabelValues(outcome).Inc()
}

// RecordFill records a per-field fill outcome
func (m *Metrics) RecordFill(outcome string) {
	m.FillFieldsTotal.WithLabelValues(outcome).Inc()
}

// RecordLLMRequest records LLM API metrics
func (m *Metrics) RecordLLMRequest(model, purpose, status string, duration time.Duration, inputTokens, outputTokens int, cost float64) {
	m.LLMRequestsTotal.WithLabelValues(model, purpose, status).Inc()
	m.LLMRequestDuration.WithLabelValues(model, purpose).Observe(duration.Seconds())
	m.LLMTokensUsed.WithLabelValues(model, "input").Add(float64(inputTokens))
	m.LLMTokensUsed.WithLabelValues(model, "output").Add(float64(outputTokens))
	m.LLMCostTotal.Add(cost)
}

// HTTPMiddleware returns middleware for recording HTTP metrics
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.HTTPRequestsActive.Inc()
		defer m.HTTPRequestsActive.Dec()

		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		m.RecordHTTPRequest(r.Method, r.URL.Path, wrapped.statusCode, duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Global metrics instance
var globalMetrics *Metrics

// InitMetrics initializes the global metrics instance
func InitMetrics(namespace string) *Metrics {
	globalMetrics = NewMetrics(namespace)
	return globalMetrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	if globalMetrics == nil {
		globalMetrics = NewMetrics("memfill")
	}
	return globalMetrics
}
