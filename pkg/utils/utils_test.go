package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenCounter(t *testing.T) {
	for _, model := range []string{"gemini-2.0-flash-exp", "gpt-4o-mini", "claude-sonnet-4", "llama3"} {
		t.Run(model, func(t *testing.T) {
			counter, err := NewTokenCounter(model)
			require.NoError(t, err)
			require.NotNil(t, counter)
		})
	}
}

func TestCountTokens(t *testing.T) {
	counter, err := NewTokenCounter("gpt-4")
	require.NoError(t, err)

	assert.Equal(t, 0, counter.CountTokens(""))
	short := counter.CountTokens("Transformer attention mechanisms")
	long := counter.CountTokens(strings.Repeat("Transformer attention mechanisms ", 20))
	assert.Greater(t, short, 0)
	assert.Greater(t, long, short)
	assert.Equal(t, short, CountTokensSimple("Transformer attention mechanisms"))
}

func TestNilCounterFallsBack(t *testing.T) {
	var counter *TokenCounter
	assert.Equal(t, 2, counter.CountTokens("12345678"))
}

func TestTruncateToTokenLimit(t *testing.T) {
	counter, err := NewTokenCounter("gpt-4")
	require.NoError(t, err)

	text := strings.Repeat("word ", 500)
	out := counter.TruncateToTokenLimit(text, 50)
	assert.Less(t, len(out), len(text))
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.Equal(t, "short", counter.TruncateToTokenLimit("short", 50))
}

func TestTopicSlug(t *testing.T) {
	assert.Equal(t, "transformer_attention_mechanisms", TopicSlug("Transformer Attention Mechanisms"))
	assert.Equal(t, "ai_ml", TopicSlug("  AI/ ML "))
	assert.Equal(t, "untitled", TopicSlug("   "))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab...", Truncate("abcdefgh", 5))
	assert.Equal(t, "ab", Truncate("abcdefgh", 2))
}
