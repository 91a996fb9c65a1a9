package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ClassificationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crashlens_classification_duration_seconds",
			Help:    "Classification duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"strategy"},
	)

	ClassificationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crashlens_classification_total",
			Help: "Total classifications processed",
		},
		[]string{"strategy", "status"},
	)

	RuleEngineMatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crashlens_rule_engine_matches_total",
			Help: "Rule engine outcomes by confidence, including misses",
		},
		[]string{"confidence"},
	)

	HybridEscalations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crashlens_hybrid_escalations_total",
			Help: "Hybrid classifications escalated to the generation backend",
		},
	)

	VerdictConfidence = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crashlens_verdict_confidence_total",
			Help: "Final verdicts by confidence level",
		},
		[]string{"confidence"},
	)

	RetrievalIndexSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "crashlens_retrieval_index_entries",
			Help: "Rules currently in the retrieval index",
		},
	)

	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crashlens_verdict_cache_hits_total",
			Help: "Verdict cache hits",
		},
	)

	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crashlens_verdict_cache_misses_total",
			Help: "Verdict cache misses",
		},
	)
)

func Init() {
	prometheus.MustRegister(ClassificationDuration)
	prometheus.MustRegister(ClassificationTotal)
	prometheus.MustRegister(RuleEngineMatches)
	prometheus.MustRegister(HybridEscalations)
	prometheus.MustRegister(VerdictConfidence)
	prometheus.MustRegister(RetrievalIndexSize)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
