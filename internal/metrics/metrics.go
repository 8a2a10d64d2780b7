package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pipeline
	PipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repodoc_pipeline_runs_total",
			Help: "Pipeline runs by artifact kind and outcome",
		},
		[]string{"kind", "outcome"}, // outcome: done|invalid_reference|packaging_failed|completion_failed|too_large|error
	)
	PipelineTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repodoc_pipeline_transitions_total",
			Help: "Pipeline state transitions",
		},
		[]string{"from", "to"},
	)
	ActivePipelines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "repodoc_pipelines_active",
			Help: "Current number of in-flight pipeline runs",
		},
	)
	StageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repodoc_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14), // 50ms..~7min
		},
		[]string{"stage"},
	)

	// Packager
	PackagerRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repodoc_packager_runs_total",
			Help: "Packaging tool invocations by result",
		},
		[]string{"result"}, // result: ok|exit_error|spawn_error|output_error
	)
	PackagedBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "repodoc_packaged_codebase_bytes",
			Help:    "Size of packaged codebases",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KiB..256MiB
		},
	)

	// LLM
	LLMRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repodoc_llm_requests_total",
			Help: "Number of LLM requests by model and result",
		},
		[]string{"model", "result"},
	)

	// Errors
	Errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repodoc_errors_total",
			Help: "Errors encountered in components",
		},
		[]string{"component", "type"},
	)
)

func init() {
	prometheus.MustRegister(
		PipelineRuns,
		PipelineTransitions,
		ActivePipelines,
		StageDurationSeconds,
		PackagerRuns,
		PackagedBytes,
		LLMRequests,
		Errors,
	)
}

// Handler 暴露 /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// Pipeline
func IncPipelineRun(kind, outcome string) {
	PipelineRuns.WithLabelValues(kind, outcome).Inc()
}

func IncPipelineTransition(from, to string) {
	PipelineTransitions.WithLabelValues(from, to).Inc()
}

func IncActivePipelines() {
	ActivePipelines.Inc()
}

func DecActivePipelines() {
	ActivePipelines.Dec()
}

func ObserveStageDuration(stage string, d time.Duration) {
	StageDurationSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// Packager
func IncPackagerRun(result string) {
	PackagerRuns.WithLabelValues(result).Inc()
}

func ObservePackagedBytes(n int64) {
	PackagedBytes.Observe(float64(n))
}

// LLM
func IncLLMRequest(model, result string) {
	LLMRequests.WithLabelValues(model, result).Inc()
}

// Errors
func IncError(component, typ string) {
	Errors.WithLabelValues(component, typ).Inc()
}
