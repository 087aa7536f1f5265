// Package metrics provides metrics recording for LLM client operations and tool calls.
package metrics

import (
	"time"
)

// RequestObservation describes one completed model request.
type RequestObservation struct {
	Model            string
	SessionID        string
	Stage            string
	PromptTokens     int
	CompletionTokens int
	ToolCalls        int
	Success          bool
	ErrorType        string
	Duration         time.Duration
}

// Recorder defines the interface for recording LLM operation metrics.
type Recorder interface {
	// ObserveRequest records metrics for a completed LLM request.
	ObserveRequest(obs RequestObservation)

	// ObserveToolCall records one tool invocation and whether it returned a success envelope.
	ObserveToolCall(tool, stage string, success bool, duration time.Duration)

	// ObserveStage records the outcome of one pipeline stage.
	ObserveStage(stage, status string, duration time.Duration)
}

// NoopRecorder implements Recorder with no-op behavior for when metrics are disabled.
type NoopRecorder struct{}

// Nop returns a no-op metrics recorder that discards all metrics.
func Nop() Recorder {
	return &NoopRecorder{}
}

// ObserveRequest does nothing in the no-op recorder.
func (n *NoopRecorder) ObserveRequest(RequestObservation) {}

// ObserveToolCall does nothing in the no-op recorder.
func (n *NoopRecorder) ObserveToolCall(_, _ string, _ bool, _ time.Duration) {}

// ObserveStage does nothing in the no-op recorder.
func (n *NoopRecorder) ObserveStage(_, _ string, _ time.Duration) {}

// Multi fans observations out to several recorders.
func Multi(recorders ...Recorder) Recorder {
	return multiRecorder(recorders)
}

type multiRecorder []Recorder

func (m multiRecorder) ObserveRequest(obs RequestObservation) {
	for _, r := range m {
		r.ObserveRequest(obs)
	}
}

func (m multiRecorder) ObserveToolCall(tool, stage string, success bool, duration time.Duration) {
	for _, r := range m {
		r.ObserveToolCall(tool, stage, success, duration)
	}
}

func (m multiRecorder) ObserveStage(stage, status string, duration time.Duration) {
	for _, r := range m {
		r.ObserveStage(stage, status, duration)
	}
}
