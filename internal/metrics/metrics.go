// Package metrics holds the Prometheus collectors shared by the scoring components.
// Collectors register with the default registry; the server exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Assessments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credence_assessments_total",
		Help: "Scored responses by domain pack and confidence level",
	}, []string{"domain", "level"})

	Score = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "credence_score",
		Help:    "Distribution of final confidence scores",
		Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	})

	ScoringDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "credence_scoring_duration_seconds",
		Help:    "Time spent scoring one response",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	HallucinationFindings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credence_hallucination_findings_total",
		Help: "Fabrication pattern matches by category",
	}, []string{"category"})

	RuleFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credence_rule_failures_total",
		Help: "Extraction rules or detector categories that failed and were skipped",
	}, []string{"rule"})

	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credence_verification_total",
		Help: "Claim verification outcomes",
	}, []string{"status"})

	Probes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credence_probe_total",
		Help: "Source reachability probe outcomes",
	}, []string{"result"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credence_cache_lookups_total",
		Help: "Assessment cache lookups by result",
	}, []string{"result"})

	CalibrationECE = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "credence_calibration_ece",
		Help: "Expected calibration error of the most recent calibration run",
	})

	Explanations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credence_explanations_total",
		Help: "LLM explanation attempts by provider and outcome",
	}, []string{"provider", "outcome"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credence_http_requests_total",
		Help: "REST requests by route and status code",
	}, []string{"route", "code"})
)
