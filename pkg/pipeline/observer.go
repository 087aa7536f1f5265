package pipeline

import (
	"time"

	"scicontent/pkg/logx"
)

// StageEvent describes a stage boundary. State is a snapshot; writing to it has
// no effect on the run.
type StageEvent struct {
	Session  string // from llm.WithSession, empty outside a session
	Stage    string
	Index    int
	Total    int
	Output   string
	State    *State
	Duration time.Duration
}

// Observer receives progress notifications. Calls are made synchronously from
// the run's goroutine, in stage order.
type Observer interface {
	StageStarted(ev StageEvent)
	StageCompleted(ev StageEvent)
	StageFailed(ev StageEvent, err *StageError)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnStarted   func(ev StageEvent)
	OnCompleted func(ev StageEvent)
	OnFailed    func(ev StageEvent, err *StageError)
}

// StageStarted implements Observer.
func (o ObserverFuncs) StageStarted(ev StageEvent) {
	if o.OnStarted != nil {
		o.OnStarted(ev)
	}
}

// StageCompleted implements Observer.
func (o ObserverFuncs) StageCompleted(ev StageEvent) {
	if o.OnCompleted != nil {
		o.OnCompleted(ev)
	}
}

// StageFailed implements Observer.
func (o ObserverFuncs) StageFailed(ev StageEvent, err *StageError) {
	if o.OnFailed != nil {
		o.OnFailed(ev, err)
	}
}

// LogObserver reports progress through a logger.
type LogObserver struct {
	Logger *logx.Logger
}

// StageStarted implements Observer.
func (o LogObserver) StageStarted(ev StageEvent) {
	o.Logger.Info("▶️  [%d/%d] %s", ev.Index, ev.Total, ev.Stage)
}

// StageCompleted implements Observer.
func (o LogObserver) StageCompleted(ev StageEvent) {
	value, _ := ev.State.Get(ev.Output)
	o.Logger.Info("✅ [%d/%d] %s wrote %s (%d chars) in %s",
		ev.Index, ev.Total, ev.Stage, ev.Output, len(value), ev.Duration.Round(time.Millisecond))
}

// StageFailed implements Observer.
func (o LogObserver) StageFailed(ev StageEvent, err *StageError) {
	o.Logger.Error("❌ [%d/%d] %s failed [%s]: %v", ev.Index, ev.Total, ev.Stage, err.Category, err.Cause)
}
