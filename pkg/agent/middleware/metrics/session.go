package metrics

import (
	"sync"
	"time"
)

// SessionRecorder implements Recorder with in-memory per-session aggregation, used to
// print a usage summary at the end of a run without a Prometheus server.
type SessionRecorder struct {
	sessions map[string]*SessionMetrics
	mu       sync.RWMutex
}

// SessionMetrics represents aggregated model usage for one session.
//
//nolint:govet
type SessionMetrics struct {
	PromptTokens     int64     `json:"prompt_tokens"`
	CompletionTokens int64     `json:"completion_tokens"`
	TotalTokens      int64     `json:"total_tokens"`
	RequestCount     int64     `json:"request_count"`
	FailedRequests   int64     `json:"failed_requests"`
	ToolCalls        int64     `json:"tool_calls"`
	SessionID        string    `json:"session_id"`
	LastUpdated      time.Time `json:"last_updated"`
}

// NewSessionRecorder returns an empty session recorder.
func NewSessionRecorder() *SessionRecorder {
	return &SessionRecorder{sessions: make(map[string]*SessionMetrics)}
}

func (r *SessionRecorder) entry(sessionID string) *SessionMetrics {
	s, ok := r.sessions[sessionID]
	if !ok {
		s = &SessionMetrics{SessionID: sessionID}
		r.sessions[sessionID] = s
	}
	return s
}

// ObserveRequest aggregates one model request under its session.
func (r *SessionRecorder) ObserveRequest(obs RequestObservation) {
	if obs.SessionID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.entry(obs.SessionID)
	s.RequestCount++
	if obs.Success {
		s.PromptTokens += int64(obs.PromptTokens)
		s.CompletionTokens += int64(obs.CompletionTokens)
		s.TotalTokens = s.PromptTokens + s.CompletionTokens
		s.ToolCalls += int64(obs.ToolCalls)
	} else {
		s.FailedRequests++
	}
	s.LastUpdated = time.Now()
}

// ObserveToolCall is aggregated through ObserveRequest's tool call count.
func (r *SessionRecorder) ObserveToolCall(_, _ string, _ bool, _ time.Duration) {}

// ObserveStage is not tracked per session.
func (r *SessionRecorder) ObserveStage(_, _ string, _ time.Duration) {}

// Get returns a copy of the metrics for a session, or nil.
func (r *SessionRecorder) Get(sessionID string) *SessionMetrics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.sessions[sessionID]; ok {
		c := *s
		return &c
	}
	return nil
}
