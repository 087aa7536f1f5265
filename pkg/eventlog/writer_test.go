package eventlog

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scicontent/pkg/logx"
	"scicontent/pkg/pipeline"
)

func quiet() *logx.Logger {
	return logx.NewLoggerWithWriter("test", &bytes.Buffer{})
}

func TestNewWriterCreatesTodaysFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	w, err := NewWriter(dir, quiet())
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	current := w.CurrentLogFile()
	require.NotEmpty(t, current)
	assert.FileExists(t, current)
	assert.Equal(t, fmt.Sprintf("events-%s.jsonl", time.Now().UTC().Format("2006-01-02")), filepath.Base(current))
}

func TestObserverRecordsStageEvents(t *testing.T) {
	w, err := NewWriter(t.TempDir(), quiet())
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	state := pipeline.NewState()
	require.NoError(t, state.Set(pipeline.KeyResearchFindings, "twelve chars"))

	ev := pipeline.StageEvent{Session: "s-1", Stage: pipeline.StageResearch, Index: 1, Total: 5, Output: pipeline.KeyResearchFindings}
	w.StageStarted(ev)
	ev.State, ev.Duration = state, 1500*time.Millisecond
	w.StageCompleted(ev)
	w.StageFailed(pipeline.StageEvent{Session: "s-1", Stage: pipeline.StageStrategy, Index: 2, Total: 5},
		&pipeline.StageError{Stage: pipeline.StageStrategy, Index: 2, Category: "rate_limit", Cause: errors.New("quota exhausted")})

	events, err := ReadEvents(w.CurrentLogFile())
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, KindStarted, events[0].Kind)
	assert.Equal(t, "s-1", events[0].Session)
	assert.False(t, events[0].Time.IsZero())

	assert.Equal(t, KindCompleted, events[1].Kind)
	assert.Equal(t, 12, events[1].OutputChars)
	assert.EqualValues(t, 1500, events[1].DurationMs)

	assert.Equal(t, KindFailed, events[2].Kind)
	assert.Equal(t, "rate_limit", events[2].Category)
	assert.Equal(t, "quota exhausted", events[2].Error)
}

func TestDailyRotation(t *testing.T) {
	dir := t.TempDir()
	var mu sync.Mutex
	now := time.Date(2025, 3, 1, 23, 59, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	w, err := newWriter(dir, quiet(), clock)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	require.NoError(t, w.Write(Event{Kind: KindStarted, Stage: "A"}))
	first := w.CurrentLogFile()

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()
	require.NoError(t, w.Write(Event{Kind: KindStarted, Stage: "B"}))
	second := w.CurrentLogFile()

	assert.NotEqual(t, first, second)
	assert.Equal(t, "events-2025-03-01.jsonl", filepath.Base(first))
	assert.Equal(t, "events-2025-03-02.jsonl", filepath.Base(second))

	files, err := ListLogFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{first, second}, files)
}

func TestReadEventsSkipsBlankLinesAndReportsBadOnes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events-2025-03-01.jsonl")

	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))
	events, err := ReadEvents(path)
	require.NoError(t, err)
	assert.Empty(t, events)

	require.NoError(t, os.WriteFile(path, []byte("{\"kind\":\"stage_started\",\"stage\":\"A\"}\n\n{\"kind\":\"stage_started\",\"stage\":\"B\"}"), 0o644))
	events, err = ReadEvents(path)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "B", events[1].Stage)

	require.NoError(t, os.WriteFile(path, []byte("{\"kind\":\"x\"}\nnot json\n"), 0o644))
	_, err = ReadEvents(path)
	assert.ErrorContains(t, err, "line 2")

	_, err = ReadEvents(filepath.Join(dir, "missing.jsonl"))
	assert.Error(t, err)
}

func TestSessionEventsSpansFiles(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return day
	}
	w, err := newWriter(dir, quiet(), clock)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	require.NoError(t, w.Write(Event{Kind: KindStarted, Session: "a", Stage: "S1"}))
	require.NoError(t, w.Write(Event{Kind: KindStarted, Session: "b", Stage: "S1"}))
	mu.Lock()
	day = day.AddDate(0, 0, 1)
	mu.Unlock()
	require.NoError(t, w.Write(Event{Kind: KindCompleted, Session: "a", Stage: "S1"}))

	events, err := SessionEvents(dir, "a")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, KindStarted, events[0].Kind)
	assert.Equal(t, KindCompleted, events[1].Kind)

	none, err := SessionEvents(dir, "ghost")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWriterClose(t *testing.T) {
	w, err := NewWriter(t.TempDir(), quiet())
	require.NoError(t, err)

	require.NoError(t, w.Close())
	assert.Empty(t, w.CurrentLogFile())
	require.NoError(t, w.Close(), "closing twice is harmless")

	// A write after Close reopens the day's file.
	require.NoError(t, w.Write(Event{Kind: KindStarted, Stage: "A"}))
	assert.NotEmpty(t, w.CurrentLogFile())
	require.NoError(t, w.Close())
}

func TestConcurrentWrites(t *testing.T) {
	w, err := NewWriter(t.TempDir(), quiet())
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	const writers, perWriter = 8, 25
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				assert.NoError(t, w.Write(Event{Kind: KindStarted, Stage: fmt.Sprintf("S%d", i), Index: j}))
			}
		}(i)
	}
	wg.Wait()

	events, err := ReadEvents(w.CurrentLogFile())
	require.NoError(t, err)
	assert.Len(t, events, writers*perWriter)
}
