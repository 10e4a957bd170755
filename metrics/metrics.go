// Package metrics exposes Prometheus collectors for the question
// workflow and its external dependencies.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crickrag_questions_total",
			Help: "Total number of questions processed, by verdict",
		},
		[]string{"verdict"},
	)
	questionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crickrag_question_duration_seconds",
			Help:    "End-to-end duration of question processing",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)
	nodeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crickrag_node_duration_seconds",
			Help:    "Duration of individual workflow nodes",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"node"},
	)
	externalCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crickrag_external_calls_total",
			Help: "Total number of calls to external dependencies",
		},
		[]string{"target"},
	)
	externalErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crickrag_external_errors_total",
			Help: "Total number of failed calls to external dependencies",
		},
		[]string{"target"},
	)
	cacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crickrag_cache_hits_total",
			Help: "Total number of answer cache hits",
		},
	)
	cacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crickrag_cache_misses_total",
			Help: "Total number of answer cache misses",
		},
	)
)

func init() {
	prometheus.MustRegister(questionsTotal)
	prometheus.MustRegister(questionDuration)
	prometheus.MustRegister(nodeDuration)
	prometheus.MustRegister(externalCallsTotal)
	prometheus.MustRegister(externalErrorsTotal)
	prometheus.MustRegister(cacheHitsTotal)
	prometheus.MustRegister(cacheMissesTotal)
}

// RecordQuestion records one completed question with its verdict.
func RecordQuestion(verdict string, d time.Duration) {
	questionsTotal.WithLabelValues(verdict).Inc()
	questionDuration.Observe(d.Seconds())
}

// ObserveNode records the duration of one workflow node. Call it with
// defer and the node start time.
func ObserveNode(node string, start time.Time) {
	nodeDuration.WithLabelValues(node).Observe(time.Since(start).Seconds())
}

// RecordExternalCall counts an attempt against an external dependency.
func RecordExternalCall(target string) {
	externalCallsTotal.WithLabelValues(target).Inc()
}

// RecordExternalError counts a failed call to an external dependency.
func RecordExternalError(target string) {
	externalErrorsTotal.WithLabelValues(target).Inc()
}

// RecordCacheHit counts an answer cache hit.
func RecordCacheHit() { cacheHitsTotal.Inc() }

// RecordCacheMiss counts an answer cache miss.
func RecordCacheMiss() { cacheMissesTotal.Inc() }
