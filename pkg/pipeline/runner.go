package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"scicontent/pkg/agent/llm"
	"scicontent/pkg/agent/middleware/metrics"
	"scicontent/pkg/agent/toolloop"
	"scicontent/pkg/logx"
	"scicontent/pkg/tools"
	"scicontent/pkg/tracing"
)

// Transcript roles.
const (
	RoleUser      = "user"
	RolePrompt    = "prompt"
	RoleAssistant = "assistant"
)

// Stage outcome labels for metrics.
const (
	stageStatusSuccess = "success"
	stageStatusFailed  = "failed"
)

// TranscriptEntry is one message of a run's conversation record.
type TranscriptEntry struct {
	Role      string    `json:"role"`
	Stage     string    `json:"stage,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Input is what a run starts from.
type Input struct {
	// Request is the user message sent as the first user turn of every stage.
	Request string
	// Vars are context variables available to templates (profile, topic, preferences).
	Vars map[string]string
}

// Result is the outcome of a run.
type Result struct {
	Phase       Phase
	State       *State
	Transcript  []TranscriptEntry
	Transitions []Transition
	Err         error
}

// Succeeded reports whether the run completed.
func (r *Result) Succeeded() bool { return r.Phase == PhaseCompleted }

// Output returns the value of the final stage's key.
func (r *Result) Output(key string) (string, bool) {
	return r.State.Get(key)
}

// Options tune the model calls of each stage.
type Options struct {
	MaxToolIterations int
	MaxTokens         int
	Temperature       float32
}

// Runner executes a stage registry strictly in order against one model client.
// A Runner holds no per-run state and may serve concurrent runs.
type Runner struct {
	stages    []Stage
	providers []*tools.Provider
	loop      *toolloop.ToolLoop
	model     string
	opts      Options
	logger    *logx.Logger
	recorder  metrics.Recorder
	tracer    trace.Tracer
	observers []Observer
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithOptions sets the per-stage model options.
func WithOptions(opts Options) RunnerOption {
	return func(r *Runner) { r.opts = opts }
}

// WithLogger sets the runner's logger.
func WithLogger(logger *logx.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics records stage and tool observations.
func WithMetrics(recorder metrics.Recorder) RunnerOption {
	return func(r *Runner) {
		if recorder != nil {
			r.recorder = recorder
		}
	}
}

// WithTracing wraps the run, each stage and each tool call in spans.
func WithTracing(tracer trace.Tracer) RunnerOption {
	return func(r *Runner) { r.tracer = tracer }
}

// WithObservers registers progress observers.
func WithObservers(observers ...Observer) RunnerOption {
	return func(r *Runner) { r.observers = append(r.observers, observers...) }
}

// NewRunner binds each stage to its tool allowlist. It fails when a stage names
// a tool the registry does not have.
func NewRunner(client llm.LLMClient, stages *Registry, toolRegistry *tools.Registry, opts ...RunnerOption) (*Runner, error) {
	if client == nil {
		return nil, fmt.Errorf("pipeline: nil model client")
	}
	if stages == nil || toolRegistry == nil {
		return nil, fmt.Errorf("pipeline: stage and tool registries are required")
	}
	if err := stages.ValidateTools(toolRegistry); err != nil {
		return nil, err
	}

	r := &Runner{
		stages:   stages.Stages(),
		model:    client.GetModelName(),
		logger:   logx.NewLogger("pipeline"),
		recorder: metrics.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.providers = make([]*tools.Provider, len(r.stages))
	for i, s := range r.stages {
		p, err := tools.NewProvider(toolRegistry, s.Tools())
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", s.Name(), err)
		}
		r.providers[i] = p
	}

	r.loop = toolloop.New(client, r.logger,
		toolloop.WithRecorder(r.recorder),
		toolloop.WithTracer(r.tracer),
	)
	return r, nil
}

// Run executes every stage in order, threading one State through them.
//
// Tool failures are model input and never stop the run. A model failure that
// survives the retry policy, or a missing input key, stops the run in FAILED with
// a *StageError; no later stage runs and no later key is written.
func (r *Runner) Run(ctx context.Context, in Input) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, r.tracer, "pipeline.run",
		attribute.String(tracing.ModelKey, r.model),
		attribute.String(tracing.SessionIDKey, llm.SessionFrom(ctx)),
	)
	defer span.End()

	fsm := NewPhaseMachine(NewTransitionTable(len(r.stages)), r.logger)
	state := NewState()
	result := &Result{}
	transcript := make([]TranscriptEntry, 0, 2*len(r.stages))

	finish := func(runErr error) (*Result, error) {
		result.Phase = fsm.Current()
		result.State = state.Snapshot()
		result.Transcript = transcript
		result.Transitions = fsm.Transitions()
		result.Err = runErr
		if runErr != nil {
			tracing.SetError(span, runErr)
		}
		return result, runErr
	}

	for i, stage := range r.stages {
		index := i + 1
		if err := fsm.TransitionTo(RunningStage(index)); err != nil {
			return finish(err)
		}

		entries, stageErr := r.runStage(ctx, index, stage, r.providers[i], state, in)
		transcript = append(transcript, entries...)
		if stageErr != nil {
			if err := fsm.TransitionTo(PhaseFailed); err != nil {
				return finish(err)
			}
			return finish(stageErr)
		}
	}

	if err := fsm.TransitionTo(PhaseCompleted); err != nil {
		return finish(err)
	}
	r.logger.Info("🏁 Pipeline completed: %d stages, %d state keys", len(r.stages), state.Len())
	return finish(nil)
}

func (r *Runner) runStage(ctx context.Context, index int, stage Stage, provider *tools.Provider, state *State, in Input) ([]TranscriptEntry, *StageError) {
	start := time.Now()
	ev := StageEvent{Session: llm.SessionFrom(ctx), Stage: stage.Name(), Index: index, Total: len(r.stages), Output: stage.Output()}

	ctx = llm.WithStage(ctx, stage.Name())
	ctx, span := tracing.StartSpan(ctx, r.tracer, "stage."+stage.Name(),
		attribute.String(tracing.StageKey, stage.Name()),
		attribute.Int(tracing.StageIndex, index),
	)
	defer span.End()

	ev.State = state.Snapshot()
	r.notify(func(o Observer) { o.StageStarted(ev) })

	fail := func(err error) *StageError {
		stageErr := &StageError{Stage: stage.Name(), Index: index, Category: Categorize(err), Cause: err}
		tracing.SetError(span, err)
		ev.Duration = time.Since(start)
		ev.State = state.Snapshot()
		r.recorder.ObserveStage(stage.Name(), stageStatusFailed, ev.Duration)
		r.notify(func(o Observer) { o.StageFailed(ev, stageErr) })
		return stageErr
	}

	prompt, err := Resolve(stage, state, in.Vars)
	if err != nil {
		return nil, fail(err)
	}
	entries := []TranscriptEntry{{Role: RolePrompt, Stage: stage.Name(), Content: prompt, Timestamp: time.Now().UTC()}}

	out, err := r.loop.Run(ctx, &toolloop.Config{
		SystemPrompt:  prompt,
		InitialPrompt: in.Request,
		Tools:         provider,
		MaxIterations: r.opts.MaxToolIterations,
		MaxTokens:     r.opts.MaxTokens,
		Temperature:   r.opts.Temperature,
	})
	if err != nil {
		return entries, fail(err)
	}

	if err := state.Set(stage.Output(), out.Content); err != nil {
		return entries, fail(err)
	}
	entries = append(entries, TranscriptEntry{Role: RoleAssistant, Stage: stage.Name(), Content: out.Content, Timestamp: time.Now().UTC()})

	span.SetAttributes(
		attribute.Int("scicontent.stage.iterations", out.Iterations),
		attribute.Int("scicontent.stage.tool_calls", out.ToolCalls),
	)
	ev.Duration = time.Since(start)
	ev.State = state.Snapshot()
	r.recorder.ObserveStage(stage.Name(), stageStatusSuccess, ev.Duration)
	r.notify(func(o Observer) { o.StageCompleted(ev) })
	return entries, nil
}

func (r *Runner) notify(fn func(Observer)) {
	for _, o := range r.observers {
		fn(o)
	}
}
