package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AnalysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engagement_analysis_duration_seconds",
			Help:    "Analysis processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"analysis_type"},
	)

	AnalysisTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_analysis_total",
			Help: "Total number of analyses run",
		},
		[]string{"analysis_type", "status"},
	)

	SimilarProjectsFound = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engagement_similar_projects_count",
			Help:    "Number of similar projects per analysis",
			Buckets: []float64{0, 1, 3, 5, 10, 20, 50},
		},
	)

	AnalysisConfidence = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engagement_analysis_confidence",
			Help:    "Confidence scores of produced analyses",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
		[]string{"analysis_type"},
	)

	RiskLevelTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_risk_level_total",
			Help: "Risk assessments by resulting level",
		},
		[]string{"level"},
	)

	RecommendationsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_recommendations_generated_total",
			Help: "Recommendations generated by type",
		},
		[]string{"type"},
	)

	FeedbackReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_feedback_received_total",
			Help: "Feedback entries received by recommendation type",
		},
		[]string{"type"},
	)

	LearningWeightValue = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engagement_learning_weight",
			Help: "Current learning weight per recommendation type",
		},
		[]string{"type"},
	)

	ValidationAccuracy = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engagement_validation_accuracy",
			Help: "Rolling prediction accuracy by validation kind",
		},
		[]string{"kind"},
	)

	EmbeddingTokensUsed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engagement_embedding_tokens_used_total",
			Help: "Total embedding tokens used",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	ProjectsIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engagement_projects_indexed_total",
			Help: "Total project contexts indexed for candidate search",
		},
	)

	GraphProjectsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engagement_graph_projects_total",
			Help: "Total historical projects in the knowledge graph",
		},
	)
)

func Init() {
	prometheus.MustRegister(AnalysisDuration)
	prometheus.MustRegister(AnalysisTotal)
	prometheus.MustRegister(SimilarProjectsFound)
	prometheus.MustRegister(AnalysisConfidence)
	prometheus.MustRegister(RiskLevelTotal)
	prometheus.MustRegister(RecommendationsGenerated)
	prometheus.MustRegister(FeedbackReceived)
	prometheus.MustRegister(LearningWeightValue)
	prometheus.MustRegister(ValidationAccuracy)
	prometheus.MustRegister(EmbeddingTokensUsed)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(ProjectsIndexed)
	prometheus.MustRegister(GraphProjectsTotal)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
