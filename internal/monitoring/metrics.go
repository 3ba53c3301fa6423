package monitoring

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricSearchesTotal         = "simdev_searches_total"
	MetricSearchDuration        = "simdev_search_duration_seconds"
	MetricCandidatesScoredTotal = "simdev_candidates_scored_total"
	MetricSnapshotDevelopers    = "simdev_snapshot_developers"
	MetricSnapshotVocabulary    = "simdev_snapshot_vocabulary"
	MetricSkippedRecordsTotal   = "simdev_skipped_records_total"
	MetricCacheRequestsTotal    = "simdev_cache_requests_total"
	MetricRateLimitBlocked      = "simdev_rate_limit_blocked_total"
	MetricHTTPRequestsTotal     = "simdev_http_requests_total"
	MetricHTTPRequestDuration   = "simdev_http_request_duration_seconds"
)

// Search outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid_argument"
	OutcomeCanceled = "canceled"
	OutcomeError    = "error"
)

// Metrics holds the Prometheus collectors plus a few in-process counters
// reported by the health endpoint. All operations are thread-safe.
type Metrics struct {
	searchesTotal    *prometheus.CounterVec
	searchDuration   prometheus.Histogram
	candidatesScored prometheus.Counter
	developers       prometheus.Gauge
	vocabulary       prometheus.Gauge
	skippedRecords   *prometheus.CounterVec
	cacheRequests    *prometheus.CounterVec
	rateLimitBlocked prometheus.Counter
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec

	requestCount int64
	errorCount   int64
	cacheHits    int64
	cacheMisses  int64
	startTime    time.Time
}

// NewMetrics creates all collectors. They are not registered; call Register.
func NewMetrics() *Metrics {
	return &Metrics{
		searchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSearchesTotal,
				Help: "Total number of similarity searches by outcome",
			},
			[]string{"outcome"},
		),
		searchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricSearchDuration,
				Help:    "Similarity search duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
		),
		candidatesScored: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricCandidatesScoredTotal,
				Help: "Total number of candidate developers scored",
			},
		),
		developers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: MetricSnapshotDevelopers,
				Help: "Number of developers in the resident snapshot",
			},
		),
		vocabulary: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: MetricSnapshotVocabulary,
				Help: "Number of distinct identifier and import tokens in the resident snapshot",
			},
		),
		skippedRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSkippedRecordsTotal,
				Help: "Total number of evidence records skipped during aggregation by reason",
			},
			[]string{"reason"},
		),
		cacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCacheRequestsTotal,
				Help: "Total number of response cache lookups by result",
			},
			[]string{"result"},
		),
		rateLimitBlocked: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricRateLimitBlocked,
				Help: "Total number of requests rejected by the rate limiter",
			},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricHTTPRequestsTotal,
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPRequestDuration,
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.1, 0.5, 1.0, 2.0},
			},
			[]string{"method", "path"},
		),
		startTime: time.Now(),
	}
}

// Register registers all collectors with reg
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all Prometheus collectors
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.searchesTotal,
		m.searchDuration,
		m.candidatesScored,
		m.developers,
		m.vocabulary,
		m.skippedRecords,
		m.cacheRequests,
		m.rateLimitBlocked,
		m.httpRequests,
		m.httpDuration,
	}
}

// ObserveSearch records one search. candidates is the number of developers scored.
func (m *Metrics) ObserveSearch(outcome string, duration time.Duration, candidates int) {
	m.searchesTotal.WithLabelValues(outcome).Inc()
	m.searchDuration.Observe(duration.Seconds())
	if candidates > 0 {
		m.candidatesScored.Add(float64(candidates))
	}
}

// SetSnapshot publishes the size of the resident snapshot
func (m *Metrics) SetSnapshot(developers, vocabulary int) {
	m.developers.Set(float64(developers))
	m.vocabulary.Set(float64(vocabulary))
}

// AddSkippedRecords counts records dropped for reason
func (m *Metrics) AddSkippedRecords(reason string, n int) {
	if n > 0 {
		m.skippedRecords.WithLabelValues(reason).Add(float64(n))
	}
}

// IncrementCacheHit increments cache hit count
func (m *Metrics) IncrementCacheHit() {
	atomic.AddInt64(&m.cacheHits, 1)
	m.cacheRequests.WithLabelValues("hit").Inc()
}

// IncrementCacheMiss increments cache miss count
func (m *Metrics) IncrementCacheMiss() {
	atomic.AddInt64(&m.cacheMisses, 1)
	m.cacheRequests.WithLabelValues("miss").Inc()
}

// IncrementRateLimitBlock counts a rejected request
func (m *Metrics) IncrementRateLimitBlock() {
	m.rateLimitBlocked.Inc()
}

// RecordRequest records a finished HTTP request
func (m *Metrics) RecordRequest(method, path, status string, duration time.Duration, failed bool) {
	atomic.AddInt64(&m.requestCount, 1)
	if failed {
		atomic.AddInt64(&m.errorCount, 1)
	}
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// GetStats returns the in-process counters
func (m *Metrics) GetStats() map[string]interface{} {
	requests := atomic.LoadInt64(&m.requestCount)
	errors := atomic.LoadInt64(&m.errorCount)
	hits := atomic.LoadInt64(&m.cacheHits)
	misses := atomic.LoadInt64(&m.cacheMisses)

	errorRate := 0.0
	if requests > 0 {
		errorRate = float64(errors) / float64(requests) * 100
	}
	hitRate := 0.0
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses) * 100
	}

	return map[string]interface{}{
		"requests":       requests,
		"errors":         errors,
		"error_rate":     errorRate,
		"cache_hits":     hits,
		"cache_misses":   misses,
		"cache_hit_rate": hitRate,
		"uptime_seconds": time.Since(m.startTime).Seconds(),
	}
}
