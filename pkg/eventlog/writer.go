// Package eventlog appends pipeline stage events to daily rotated JSONL files.
package eventlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"scicontent/pkg/logx"
	"scicontent/pkg/pipeline"
)

// Event kinds.
const (
	KindStarted   = "stage_started"
	KindCompleted = "stage_completed"
	KindFailed    = "stage_failed"
)

const filePattern = "events-*.jsonl"

// Event is one JSONL record.
type Event struct {
	Time        time.Time `json:"time"`
	Kind        string    `json:"kind"`
	Session     string    `json:"session,omitempty"`
	Stage       string    `json:"stage"`
	Index       int       `json:"index"`
	Total       int       `json:"total"`
	Output      string    `json:"output,omitempty"`
	OutputChars int       `json:"output_chars,omitempty"`
	DurationMs  int64     `json:"duration_ms,omitempty"`
	Category    string    `json:"category,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Writer appends events to <dir>/events-YYYY-MM-DD.jsonl, switching files when
// the UTC date changes. It implements pipeline.Observer; write failures are
// logged, never returned to the run.
type Writer struct {
	logDir      string
	currentFile *os.File
	currentDate string
	mu          sync.Mutex
	now         func() time.Time
	logger      *logx.Logger
}

var _ pipeline.Observer = (*Writer)(nil)

// NewWriter creates the log directory if needed and opens today's file.
func NewWriter(logDir string, logger *logx.Logger) (*Writer, error) {
	return newWriter(logDir, logger, time.Now)
}

func newWriter(logDir string, logger *logx.Logger, now func() time.Time) (*Writer, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	if logger == nil {
		logger = logx.NewLogger("eventlog")
	}
	w := &Writer{logDir: logDir, now: now, logger: logger}
	if err := w.rotateIfNeeded(w.now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to initialize log file: %w", err)
	}
	return w, nil
}

// Write appends ev, stamping Time when it is zero.
func (w *Writer) Write(ev Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now().UTC()
	if ev.Time.IsZero() {
		ev.Time = now
	}
	if err := w.rotateIfNeeded(now); err != nil {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.currentFile.Write(data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := w.currentFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	return nil
}

// StageStarted implements pipeline.Observer.
func (w *Writer) StageStarted(ev pipeline.StageEvent) {
	w.record(fromStage(KindStarted, ev))
}

// StageCompleted implements pipeline.Observer.
func (w *Writer) StageCompleted(ev pipeline.StageEvent) {
	e := fromStage(KindCompleted, ev)
	if ev.State != nil {
		value, _ := ev.State.Get(ev.Output)
		e.OutputChars = len(value)
	}
	w.record(e)
}

// StageFailed implements pipeline.Observer.
func (w *Writer) StageFailed(ev pipeline.StageEvent, stageErr *pipeline.StageError) {
	e := fromStage(KindFailed, ev)
	if stageErr != nil {
		e.Category = stageErr.Category
		if stageErr.Cause != nil {
			e.Error = stageErr.Cause.Error()
		}
	}
	w.record(e)
}

func (w *Writer) record(e Event) {
	if err := w.Write(e); err != nil {
		w.logger.Warn("Event log write failed: %v", err)
	}
}

func fromStage(kind string, ev pipeline.StageEvent) Event {
	return Event{
		Kind:       kind,
		Session:    ev.Session,
		Stage:      ev.Stage,
		Index:      ev.Index,
		Total:      ev.Total,
		Output:     ev.Output,
		DurationMs: ev.Duration.Milliseconds(),
	}
}

func (w *Writer) rotateIfNeeded(now time.Time) error {
	newDate := now.Format("2006-01-02")
	if w.currentFile != nil && w.currentDate == newDate {
		return nil
	}

	if w.currentFile != nil {
		if err := w.currentFile.Close(); err != nil {
			return fmt.Errorf("failed to close current log file: %w", err)
		}
		w.currentFile = nil
	}

	path := filepath.Join(w.logDir, fmt.Sprintf("events-%s.jsonl", newDate))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	w.currentFile = file
	w.currentDate = newDate
	return nil
}

// Close closes the current log file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile == nil {
		return nil
	}
	err := w.currentFile.Close()
	w.currentFile = nil
	if err != nil {
		return fmt.Errorf("failed to close event log file: %w", err)
	}
	return nil
}

// CurrentLogFile returns the path of the active log file, or "" after Close.
func (w *Writer) CurrentLogFile() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile == nil {
		return ""
	}
	return filepath.Join(w.logDir, fmt.Sprintf("events-%s.jsonl", w.currentDate))
}

// ReadEvents parses one log file. Blank lines are skipped.
func ReadEvents(path string) ([]Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	events := []Event{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), len(data)+1)
	for line := 1; scanner.Scan(); line++ {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("failed to parse event on line %d: %w", line, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan log file: %w", err)
	}
	return events, nil
}

// ListLogFiles returns the event log files in logDir, oldest first.
func ListLogFiles(logDir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(logDir, filePattern))
	if err != nil {
		return nil, fmt.Errorf("failed to list log files: %w", err)
	}
	return files, nil
}

// SessionEvents collects the events for one session across every log file in logDir.
func SessionEvents(logDir, session string) ([]Event, error) {
	files, err := ListLogFiles(logDir)
	if err != nil {
		return nil, err
	}
	out := []Event{}
	for _, f := range files {
		events, err := ReadEvents(f)
		if err != nil {
			return nil, err
		}
		for _, ev := range events {
			if ev.Session == session {
				out = append(out, ev)
			}
		}
	}
	return out, nil
}
