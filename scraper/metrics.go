package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"review-scraper/models"
)

// Metrics bundles Prometheus collectors for the scrape loop.
type Metrics struct {
	Registry        *prometheus.Registry
	TargetsTotal    *prometheus.CounterVec
	AttemptsTotal   prometheus.Counter
	AttemptDuration prometheus.Histogram
	RetriesTotal    prometheus.Counter
	ReviewsTotal    prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
	FlushesTotal    prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	targets := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_scraper_targets_total",
			Help: "Targets finished, by outcome.",
		},
		[]string{"outcome"},
	)
	attempts := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "review_scraper_attempts_total",
			Help: "Load-and-extract attempts made.",
		},
	)
	attemptDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "review_scraper_attempt_duration_seconds",
			Help:    "Wall time of a single load-and-extract attempt.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 60, 90, 120, 180},
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "review_scraper_retries_total",
			Help: "Retries scheduled after a failed attempt.",
		},
	)
	reviews := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "review_scraper_reviews_total",
			Help: "Reviews kept after deduplication.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_scraper_errors_total",
			Help: "Failed attempts by error type.",
		},
		[]string{"error_type"},
	)
	flushes := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "review_scraper_checkpoint_flushes_total",
			Help: "Checkpoint flushes written.",
		},
	)

	registry.MustRegister(targets, attempts, attemptDuration, retries, reviews, errorsTotal, flushes)

	return &Metrics{
		Registry:        registry,
		TargetsTotal:    targets,
		AttemptsTotal:   attempts,
		AttemptDuration: attemptDuration,
		RetriesTotal:    retries,
		ReviewsTotal:    reviews,
		ErrorsTotal:     errorsTotal,
		FlushesTotal:    flushes,
	}
}

func (m *Metrics) IncTarget(o models.Outcome) {
	if m == nil {
		return
	}
	m.TargetsTotal.WithLabelValues(o.String()).Inc()
}

func (m *Metrics) ObserveAttempt(d time.Duration) {
	if m == nil {
		return
	}
	m.AttemptsTotal.Inc()
	m.AttemptDuration.Observe(d.Seconds())
}

func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

func (m *Metrics) AddReviews(n int) {
	if m == nil {
		return
	}
	m.ReviewsTotal.Add(float64(n))
}

func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

func (m *Metrics) IncFlush() {
	if m == nil {
		return
	}
	m.FlushesTotal.Inc()
}
