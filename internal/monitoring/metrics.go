package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	analysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trend_engine_analysis_duration_seconds",
			Help:    "Duration of one analyze call per symbol",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"symbol"},
	)

	analyzerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trend_engine_analyzer_failures_total",
			Help: "Analyzer contributions omitted from fusion",
		},
		[]string{"source"},
	)

	signalsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trend_engine_signals_total",
			Help: "Trend-change signals emitted",
		},
		[]string{"symbol", "type"},
	)

	overallConfidence = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trend_engine_overall_confidence",
			Help: "Latest fused confidence per symbol",
		},
		[]string{"symbol"},
	)

	registrySize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trend_engine_trendline_registry_size",
			Help: "Active trendlines tracked per symbol",
		},
		[]string{"symbol"},
	)
)

func init() {
	prometheus.MustRegister(analysisDuration)
	prometheus.MustRegister(analyzerFailures)
	prometheus.MustRegister(signalsDetected)
	prometheus.MustRegister(overallConfidence)
	prometheus.MustRegister(registrySize)
}

// ObserveAnalysis records the latency of one analyze call.
func ObserveAnalysis(symbol string, took time.Duration) {
	analysisDuration.WithLabelValues(symbol).Observe(took.Seconds())
}

// RecordAnalyzerFailure counts an omitted analyzer contribution.
func RecordAnalyzerFailure(source string) {
	analyzerFailures.WithLabelValues(source).Inc()
}

// RecordSignal counts an emitted trend-change signal.
func RecordSignal(symbol, signalType string) {
	signalsDetected.WithLabelValues(symbol, signalType).Inc()
}

// SetOverallConfidence publishes the latest fused confidence.
func SetOverallConfidence(symbol string, confidence float64) {
	overallConfidence.WithLabelValues(symbol).Set(confidence)
}

// SetRegistrySize publishes the per-symbol trendline registry size.
func SetRegistrySize(symbol string, size int) {
	registrySize.WithLabelValues(symbol).Set(float64(size))
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
