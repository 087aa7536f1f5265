// Package metrics summarizes and exports the metrics gathered during a pipeline run.
package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	llmmetrics "scicontent/pkg/agent/middleware/metrics"
)

// StageUsage represents aggregated model usage for one pipeline stage.
type StageUsage struct {
	Stage            string  `json:"stage"`
	Requests         int64   `json:"requests"`
	FailedRequests   int64   `json:"failed_requests"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	ToolCalls        int64   `json:"tool_calls"`
	FailedToolCalls  int64   `json:"failed_tool_calls"`
	LatencySeconds   float64 `json:"latency_seconds"`
}

// RunSummary represents aggregated metrics for a whole run.
type RunSummary struct {
	Stages           []StageUsage `json:"stages"`
	PromptTokens     int64        `json:"prompt_tokens"`
	CompletionTokens int64        `json:"completion_tokens"`
	TotalTokens      int64        `json:"total_tokens"`
	Requests         int64        `json:"requests"`
	ToolCalls        int64        `json:"tool_calls"`
}

// Summarize gathers g and aggregates the LLM and tool counters per stage.
// Stages are ordered by name; callers wanting pipeline order can reorder.
func Summarize(g prometheus.Gatherer) (*RunSummary, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather metrics: %w", err)
	}

	byStage := make(map[string]*StageUsage)
	stage := func(name string) *StageUsage {
		s, ok := byStage[name]
		if !ok {
			s = &StageUsage{Stage: name}
			byStage[name] = s
		}
		return s
	}

	for _, mf := range families {
		switch mf.GetName() {
		case llmmetrics.MetricRequestsTotal:
			for _, m := range mf.GetMetric() {
				s := stage(label(m, "stage"))
				n := int64(m.GetCounter().GetValue())
				s.Requests += n
				if label(m, "status") != "success" {
					s.FailedRequests += n
				}
			}
		case llmmetrics.MetricTokensTotal:
			for _, m := range mf.GetMetric() {
				s := stage(label(m, "stage"))
				n := int64(m.GetCounter().GetValue())
				switch label(m, "type") {
				case "prompt":
					s.PromptTokens += n
				case "completion":
					s.CompletionTokens += n
				}
			}
		case llmmetrics.MetricToolCallsTotal:
			for _, m := range mf.GetMetric() {
				s := stage(label(m, "stage"))
				n := int64(m.GetCounter().GetValue())
				s.ToolCalls += n
				if label(m, "status") != "success" {
					s.FailedToolCalls += n
				}
			}
		case llmmetrics.MetricRequestDuration:
			for _, m := range mf.GetMetric() {
				stage(label(m, "stage")).LatencySeconds += m.GetHistogram().GetSampleSum()
			}
		}
	}

	summary := &RunSummary{Stages: make([]StageUsage, 0, len(byStage))}
	for _, s := range byStage {
		summary.Stages = append(summary.Stages, *s)
		summary.PromptTokens += s.PromptTokens
		summary.CompletionTokens += s.CompletionTokens
		summary.Requests += s.Requests
		summary.ToolCalls += s.ToolCalls
	}
	summary.TotalTokens = summary.PromptTokens + summary.CompletionTokens
	sort.Slice(summary.Stages, func(i, j int) bool { return summary.Stages[i].Stage < summary.Stages[j].Stage })

	return summary, nil
}

// Format renders the summary as a fixed-width table.
func (s *RunSummary) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-28s %8s %8s %10s %10s %8s %9s\n", "Stage", "Requests", "Failed", "Prompt", "Completion", "Tools", "Latency")
	b.WriteString(strings.Repeat("-", 87))
	b.WriteString("\n")
	for i := range s.Stages {
		st := &s.Stages[i]
		fmt.Fprintf(&b, "%-28s %8d %8d %10d %10d %8d %8.1fs\n",
			st.Stage, st.Requests, st.FailedRequests, st.PromptTokens, st.CompletionTokens, st.ToolCalls, st.LatencySeconds)
	}
	b.WriteString(strings.Repeat("-", 87))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Total: %d requests, %d tokens (%d prompt + %d completion), %d tool calls\n",
		s.Requests, s.TotalTokens, s.PromptTokens, s.CompletionTokens, s.ToolCalls)
	return b.String()
}

func label(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
