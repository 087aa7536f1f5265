package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric names, shared with pkg/metrics which summarizes a gathered registry.
const (
	MetricRequestsTotal   = "scicontent_llm_requests_total"
	MetricTokensTotal     = "scicontent_llm_tokens_total"
	MetricRequestDuration = "scicontent_llm_request_duration_seconds"
	MetricToolCallsTotal  = "scicontent_tool_calls_total"
	MetricToolDuration    = "scicontent_tool_call_duration_seconds"
	MetricStagesTotal     = "scicontent_stages_total"
	MetricStageDuration   = "scicontent_stage_duration_seconds"
)

// PrometheusRecorder implements the Recorder interface using Prometheus metrics.
type PrometheusRecorder struct {
	requestsTotal   *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	toolCallsTotal  *prometheus.CounterVec
	toolDuration    *prometheus.HistogramVec
	stagesTotal     *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a recorder registering its collectors on reg.
// Passing a fresh prometheus.NewRegistry keeps runs and tests isolated.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRequestsTotal,
				Help: "Total number of LLM requests by model, stage, and status",
			},
			[]string{"model", "stage", "status", "error_type"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricTokensTotal,
				Help: "Total number of tokens used in LLM requests",
			},
			[]string{"model", "stage", "type"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricRequestDuration,
				Help:    "Duration of LLM requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model", "stage"},
		),
		toolCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricToolCallsTotal,
				Help: "Total number of tool invocations by tool, stage, and envelope status",
			},
			[]string{"tool", "stage", "status"},
		),
		toolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricToolDuration,
				Help:    "Duration of tool invocations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		stagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricStagesTotal,
				Help: "Total number of pipeline stages by outcome",
			},
			[]string{"stage", "status"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricStageDuration,
				Help:    "Duration of pipeline stages in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"stage"},
		),
	}
}

// ObserveRequest records metrics for a completed LLM request.
func (p *PrometheusRecorder) ObserveRequest(obs RequestObservation) {
	status := statusSuccess
	if !obs.Success {
		status = statusError
	}

	p.requestsTotal.WithLabelValues(obs.Model, obs.Stage, status, obs.ErrorType).Inc()

	// Record tokens only on success
	if obs.Success {
		p.tokensTotal.WithLabelValues(obs.Model, obs.Stage, "prompt").Add(float64(obs.PromptTokens))
		p.tokensTotal.WithLabelValues(obs.Model, obs.Stage, "completion").Add(float64(obs.CompletionTokens))
	}

	p.requestDuration.WithLabelValues(obs.Model, obs.Stage).Observe(obs.Duration.Seconds())
}

// ObserveToolCall records one tool invocation.
func (p *PrometheusRecorder) ObserveToolCall(tool, stage string, success bool, duration time.Duration) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	p.toolCallsTotal.WithLabelValues(tool, stage, status).Inc()
	p.toolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// ObserveStage records the outcome of one pipeline stage.
func (p *PrometheusRecorder) ObserveStage(stage, status string, duration time.Duration) {
	p.stagesTotal.WithLabelValues(stage, status).Inc()
	p.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}
