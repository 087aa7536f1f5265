package logx

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger("test-agent")
	assert.Equal(t, "test-agent", logger.GetAgentID())
}

func TestLogFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("pipeline", &buf)
	logger.Info("Test message with %s", "formatting")

	output := buf.String()
	assert.Contains(t, output, "[pipeline]")
	assert.Contains(t, output, "INFO:")
	assert.Contains(t, output, "Test message with formatting")
	assert.True(t, strings.HasPrefix(output, "["), "line should start with a timestamp: %s", output)
	assert.Contains(t, output, "Z]")
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("levels", &buf)

	SetDebugConfig(true, false, t.TempDir())
	defer initDebugFromEnv()

	tests := []struct {
		logFunc  func(string, ...any)
		expected Level
	}{
		{logger.Debug, LevelDebug},
		{logger.Info, LevelInfo},
		{logger.Warn, LevelWarn},
		{logger.Error, LevelError},
	}

	for _, tt := range tests {
		buf.Reset()
		tt.logFunc("message")
		assert.Contains(t, buf.String(), string(tt.expected)+":")
	}
}

func TestDebugSuppressedWhenDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("quiet", &buf)

	SetDebugConfig(false, false, t.TempDir())
	defer initDebugFromEnv()

	logger.Debug("should not appear")
	assert.Empty(t, buf.String())
}

func TestWithAgentIDSharesOutput(t *testing.T) {
	var buf bytes.Buffer
	base := NewLoggerWithWriter("base", &buf)
	child := base.WithAgentID("child")

	child.Warn("hello")
	assert.Contains(t, buf.String(), "[child] WARN: hello")
}

func TestDomainFiltering(t *testing.T) {
	SetDebugConfig(true, false, t.TempDir())
	SetDebugDomains([]string{"pipeline", " tools "})
	defer initDebugFromEnv()

	assert.True(t, IsDebugEnabledForDomain("pipeline"))
	assert.True(t, IsDebugEnabledForDomain("tools"))
	assert.False(t, IsDebugEnabledForDomain("llm"))

	SetDebugDomains(nil)
	assert.True(t, IsDebugEnabledForDomain("llm"))
}

func TestEnvironmentVariableConfiguration(t *testing.T) {
	t.Setenv("DEBUG", "true")
	t.Setenv("DEBUG_DOMAINS", "pipeline,store")
	t.Setenv("DEBUG_FILE", "")
	initDebugFromEnv()
	defer func() {
		os.Unsetenv("DEBUG")
		os.Unsetenv("DEBUG_DOMAINS")
		initDebugFromEnv()
	}()

	assert.True(t, IsDebugEnabled())
	assert.True(t, IsDebugEnabledForDomain("store"))
	assert.False(t, IsDebugEnabledForDomain("tools"))
}

func TestDebugFileLogging(t *testing.T) {
	dir := t.TempDir()
	SetDebugConfig(true, true, dir)
	SetDebugDomains(nil)
	defer initDebugFromEnv()

	ctx := WithComponent(context.Background(), "runner")
	Debug(ctx, "pipeline", "stage %d done", 2)

	data, err := os.ReadFile(filepath.Join(dir, "debug.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "[runner] DEBUG: [pipeline] stage 2 done")
}

func TestWrapAndErrorf(t *testing.T) {
	assert.NoError(t, Wrap(nil, "noop"))

	base := errors.New("boom")
	wrapped := Wrap(base, "db connect")
	require.Error(t, wrapped)
	assert.ErrorIs(t, wrapped, base)
	assert.Equal(t, "db connect: boom", wrapped.Error())

	err := Errorf("setup failed: %w", base)
	assert.ErrorIs(t, err, base)
}
