// Package generator turns a topic into platform drafts: it builds the request,
// runs the stage pipeline inside a persisted session and writes the result file.
package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"scicontent/pkg/agent/llm"
	"scicontent/pkg/logx"
	"scicontent/pkg/persistence"
	"scicontent/pkg/pipeline"
	"scicontent/pkg/profile"
	"scicontent/pkg/redact"
	"scicontent/pkg/utils"
)

// ErrEmptyTopic is returned when a request has no topic.
var ErrEmptyTopic = errors.New("topic must not be empty")

// Request defaults.
const (
	DefaultAudience  = "AI researchers and industry professionals"
	DefaultOutputDir = "output"
)

// DefaultPlatforms are the platforms drafted when none are requested.
//
//nolint:gochecknoglobals // read-only default
var DefaultPlatforms = []string{"blog", "linkedin", "twitter"}

// SessionStore is the part of the session store a run needs.
type SessionStore interface {
	Create(ctx context.Context, userID string) (string, error)
	CreateWithID(ctx context.Context, id, userID string) error
	Exists(ctx context.Context, id string) (bool, error)
	Append(ctx context.Context, id string, msg persistence.Message) error
	SaveResult(ctx context.Context, id, topic, status string, state any) error
}

// Request describes one generation.
type Request struct {
	Topic     string
	SessionID string // empty starts a new session with a generated id
	Resume    bool   // require SessionID to exist already
	Platforms []string
	Tone      string // defaults to the profile tone
	Audience  string
	OutputDir string
	NoSave    bool // skip writing the output file
}

// Outcome is what a generation produced.
type Outcome struct {
	SessionID  string
	Resumed    bool
	Message    string
	Result     *pipeline.Result
	Content    string
	OutputPath string
}

// Service runs generations against one pipeline, store and profile.
type Service struct {
	runner   *pipeline.Runner
	store    SessionStore
	profile  *profile.Profile
	finalKey string
	scanner  redact.SecretScanner
	logger   *logx.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *logx.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithFinalKey names the state key written to the output file.
func WithFinalKey(key string) Option {
	return func(s *Service) {
		if key != "" {
			s.finalKey = key
		}
	}
}

// WithScanner masks secrets in everything written to the session store.
// The output file and the returned Outcome are not redacted.
func WithScanner(scanner redact.SecretScanner) Option {
	return func(s *Service) { s.scanner = scanner }
}

// New creates a Service. A nil profile means the default profile.
func New(runner *pipeline.Runner, store SessionStore, prof *profile.Profile, opts ...Option) (*Service, error) {
	if runner == nil || store == nil {
		return nil, fmt.Errorf("generator: runner and store are required")
	}
	if prof == nil {
		prof = profile.Default()
	}
	s := &Service{
		runner:   runner,
		store:    store,
		profile:  prof,
		finalKey: pipeline.KeyFinalContent,
		logger:   logx.NewLogger("generator"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) withDefaults(req Request) Request {
	req.Topic = strings.TrimSpace(req.Topic)
	if len(req.Platforms) == 0 {
		req.Platforms = append([]string(nil), DefaultPlatforms...)
	}
	if req.Tone == "" {
		req.Tone = s.profile.ContentTone
	}
	if req.Audience == "" {
		req.Audience = DefaultAudience
	}
	if req.OutputDir == "" {
		req.OutputDir = DefaultOutputDir
	}
	return req
}

// BuildMessage renders the user request sent as the first turn of every stage.
func (s *Service) BuildMessage(req Request) string {
	req = s.withDefaults(req)
	var b strings.Builder
	fmt.Fprintf(&b, "Generate scientific content on the following topic: %s\n\n", req.Topic)
	b.WriteString("Preferences:\n")
	fmt.Fprintf(&b, "- Target platforms: %s\n", strings.Join(req.Platforms, ", "))
	fmt.Fprintf(&b, "- Tone: %s\n", req.Tone)
	fmt.Fprintf(&b, "- Target audience: %s\n\n", req.Audience)
	b.WriteString("User Profile Context:\n")
	b.WriteString(s.profile.Summary())
	b.WriteString(`
Please create engaging, credible content that:
1. Incorporates recent research and academic sources
2. Builds professional credibility on LinkedIn
3. Demonstrates expertise in the field
4. Is suitable for scientific research monitoring
5. Aligns with the user's profile and expertise

`)
	fmt.Fprintf(&b, "Generate content for these platforms: %s.\n", strings.Join(req.Platforms, ", "))
	return b.String()
}

// Vars returns the template variables for a request: the profile's variables
// plus topic, platforms, audience and the requested tone.
func (s *Service) Vars(req Request) map[string]string {
	req = s.withDefaults(req)
	vars := s.profile.Vars()
	vars["topic"] = req.Topic
	vars["platforms"] = strings.Join(req.Platforms, ", ")
	vars["audience"] = req.Audience
	vars["content_tone"] = req.Tone
	return vars
}

// openSession returns the session id to run in and whether it already existed.
func (s *Service) openSession(ctx context.Context, req Request) (string, bool, error) {
	if req.SessionID == "" {
		if req.Resume {
			return "", false, fmt.Errorf("resume requires a session id")
		}
		id, err := s.store.Create(ctx, s.profile.Name)
		return id, false, err
	}

	exists, err := s.store.Exists(ctx, req.SessionID)
	if err != nil {
		return "", false, err
	}
	if exists {
		return req.SessionID, true, nil
	}
	if req.Resume {
		return "", false, fmt.Errorf("%w: %s", persistence.ErrSessionNotFound, req.SessionID)
	}
	if err := s.store.CreateWithID(ctx, req.SessionID, s.profile.Name); err != nil {
		return "", false, err
	}
	return req.SessionID, false, nil
}

// Generate runs the pipeline for req inside a session. The session records the
// request, the run transcript and the terminal state whether or not the run
// succeeds. The output file is written only for a completed run.
//
// A failed run returns both the Outcome and the run error.
func (s *Service) Generate(ctx context.Context, req Request) (*Outcome, error) {
	req = s.withDefaults(req)
	if req.Topic == "" {
		return nil, ErrEmptyTopic
	}

	id, resumed, err := s.openSession(ctx, req)
	if err != nil {
		return nil, err
	}
	if resumed {
		s.logger.Info("🔄 Resuming session: %s", id)
	} else {
		s.logger.Info("🆕 Starting new session: %s", id)
	}

	out := &Outcome{SessionID: id, Resumed: resumed, Message: s.BuildMessage(req)}
	if err := s.store.Append(ctx, id, persistence.Message{Role: pipeline.RoleUser, Content: s.redact(ctx, out.Message)}); err != nil {
		return out, err
	}

	res, runErr := s.runner.Run(llm.WithSession(ctx, id), pipeline.Input{
		Request: out.Message,
		Vars:    s.Vars(req),
	})
	out.Result = res

	// Record the run even when ctx was canceled mid-run.
	saveCtx := context.WithoutCancel(ctx)
	if err := s.record(saveCtx, id, req.Topic, res); err != nil {
		if runErr != nil {
			s.logger.Error("Failed to record failed run for session %s: %v", id, err)
			return out, runErr
		}
		return out, err
	}
	if runErr != nil {
		return out, runErr
	}

	content, ok := res.Output(s.finalKey)
	if !ok {
		return out, fmt.Errorf("completed run has no %s value", s.finalKey)
	}
	out.Content = content

	if !req.NoSave {
		path, err := WriteOutput(req.OutputDir, req.Topic, content)
		if err != nil {
			return out, err
		}
		out.OutputPath = path
		s.logger.Info("💾 Content saved to: %s", path)
	}
	return out, nil
}

func (s *Service) record(ctx context.Context, id, topic string, res *pipeline.Result) error {
	if res == nil {
		return s.store.SaveResult(ctx, id, topic, persistence.SessionStatusFailed, nil)
	}
	for _, entry := range res.Transcript {
		if err := s.store.Append(ctx, id, persistence.Message{
			Role:      entry.Role,
			Stage:     entry.Stage,
			Content:   s.redact(ctx, entry.Content),
			Timestamp: entry.Timestamp,
		}); err != nil {
			return err
		}
	}
	status := persistence.SessionStatusFailed
	if res.Succeeded() {
		status = persistence.SessionStatusCompleted
	}
	return s.store.SaveResult(ctx, id, topic, status, s.redactState(ctx, res.State))
}

func (s *Service) redact(ctx context.Context, text string) string {
	out, err := redact.Text(ctx, s.scanner, text)
	if err != nil {
		s.logger.Warn("%v", err)
	}
	return out
}

// redactState returns a copy of state with every value scanned, keeping key order.
func (s *Service) redactState(ctx context.Context, state *pipeline.State) *pipeline.State {
	if s.scanner == nil || state == nil {
		return state
	}
	out := pipeline.NewState()
	for _, e := range state.Entries() {
		// Keys come from a valid state, so Set cannot fail.
		_ = out.Set(e.Key, s.redact(ctx, e.Value))
	}
	return out
}

// OutputPath returns where the drafts for topic are written inside dir.
func OutputPath(dir, topic string) string {
	return filepath.Join(dir, "content_"+utils.TopicSlug(topic)+".txt")
}

// WriteOutput writes content to OutputPath(dir, topic), creating dir if needed.
func WriteOutput(dir, topic, content string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := OutputPath(dir, topic)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write output file: %w", err)
	}
	return path, nil
}
