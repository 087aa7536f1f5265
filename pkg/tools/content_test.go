package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// format_for_platform
// ============================================================================

func TestFormatForPlatformRejectsUnknownPlatform(t *testing.T) {
	r := newTestRegistry(t)

	res := r.Invoke(context.Background(), ToolFormatForPlatform, map[string]any{
		"content":  "Attention lets models weigh tokens.",
		"platform": "carrier-pigeon",
	})
	require.NotNil(t, res)
	assert.False(t, res.Envelope.Success)
	assert.Equal(t, "Unsupported platform: carrier-pigeon. Use 'blog', 'linkedin', or 'twitter'.", res.Envelope.Error)
}

func TestFormatForPlatform(t *testing.T) {
	content := strings.Repeat("Attention is a weighted average. ", 20)

	tests := []struct {
		platform string
		topic    string
		contains []string
		metaKey  string
	}{
		{"blog", "Transformers", []string{"# Transformers", "## References"}, "structure"},
		{"Blog", "", []string{"# Article Title"}, "structure"},
		{"linkedin", "Attention", []string{"🔬 Attention", "💡 Key Takeaways:", "#Research #Science #Innovation"}, "best_practices"},
		{"twitter", "", []string{"🧵 Thread: Key Insights", "1/🧵 "}, "best_practices"},
	}
	for _, tt := range tests {
		t.Run(tt.platform, func(t *testing.T) {
			res, err := NewFormatForPlatformTool().Exec(context.Background(), map[string]any{
				"content": content, "platform": tt.platform, "topic": tt.topic,
			})
			require.NoError(t, err)
			require.True(t, res.Envelope.Success)
			assert.Equal(t, strings.ToLower(tt.platform), res.Envelope.Payload["platform"])

			formatted := res.Envelope.Payload["formatted_content"].(string)
			for _, want := range tt.contains {
				assert.Contains(t, formatted, want)
			}
			meta := res.Envelope.Payload["metadata"].(map[string]string)
			assert.NotEmpty(t, meta[tt.metaKey])
			assert.NotEmpty(t, meta["target_length"])
		})
	}
}

func TestFormatForTwitterTruncatesPreview(t *testing.T) {
	formatted, _, err := FormatForPlatform(strings.Repeat("é", 400), PlatformTwitter, "x")
	require.NoError(t, err)
	assert.Contains(t, formatted, strings.Repeat("é", twitterPreviewLimit)+"...")
	assert.NotContains(t, formatted, strings.Repeat("é", twitterPreviewLimit+1))
}

// ============================================================================
// generate_citations
// ============================================================================

func TestGenerateCitationsEmptySources(t *testing.T) {
	res, err := NewGenerateCitationsTool("apa").Exec(context.Background(), map[string]any{"sources": []any{}})
	require.NoError(t, err)
	assert.False(t, res.Envelope.Success)
	assert.Equal(t, "No sources provided for citation", res.Envelope.Error)
}

func TestGenerateCitationsSingleAPA(t *testing.T) {
	r := newTestRegistry(t)
	res := r.Invoke(context.Background(), ToolGenerateCitations, map[string]any{
		"sources": []any{map[string]any{
			"title":   "Attention Is All You Need",
			"authors": "Vaswani et al.",
			"year":    "2017",
			"link":    "https://arxiv.org/abs/1706.03762",
		}},
		"style": "apa",
	})
	require.True(t, res.Envelope.Success, res.Envelope.Error)

	citations := res.Envelope.Payload["citations"].([]string)
	require.Len(t, citations, 1)
	assert.Equal(t, "[1] Vaswani et al. (2017). Attention Is All You Need. https://arxiv.org/abs/1706.03762", citations[0])
	assert.Equal(t, "(Author, Year)", res.Envelope.Payload["inline_format"])
	assert.Equal(t, 1, res.Envelope.Payload["count"])
}

func TestGenerateCitationsStyles(t *testing.T) {
	sources := []Source{{Title: "T", Authors: "A", Year: "2020", Link: "L"}}
	assert.Equal(t, []string{`[1] A. "T." Web. L`}, FormatCitations(sources, StyleMLA))
	assert.Equal(t, []string{`[1] A. "T." L`}, FormatCitations(sources, StyleChicago))

	res, err := NewGenerateCitationsTool("chicago").Exec(context.Background(), map[string]any{
		"sources": []any{map[string]any{"title": "T"}},
		"style":   "ieee",
	})
	require.NoError(t, err)
	require.True(t, res.Envelope.Success)
	assert.Equal(t, StyleChicago, res.Envelope.Payload["style"])
	assert.Equal(t, []string{`[1] Unknown. "T."`}, res.Envelope.Payload["citations"])
}

func TestSourcesArgShapes(t *testing.T) {
	sources := sourcesArg([]any{
		map[string]any{"title": "P", "authors": []any{"X", "Y"}, "published": "2024-01-02", "url": "U"},
		"not an object",
	})
	require.Len(t, sources, 1)
	assert.Equal(t, Source{Title: "P", Authors: "X, Y", Year: "2024", Link: "U"}, sources[0])

	assert.Equal(t, "n.d.", sourcesArg([]map[string]string{{"title": "Q"}})[0].Year)
	assert.Equal(t, "2021", sourcesArg([]any{map[string]any{"year": 2021.0}})[0].Year)
	assert.Empty(t, sourcesArg("nope"))
}

// ============================================================================
// extract_key_findings
// ============================================================================

func TestExtractKeyFindings(t *testing.T) {
	text := "The authors found that attention scales quadratically. " +
		"This section describes the experimental setup in some detail. " +
		"Results demonstrated a 20% improvement on long documents. " +
		"Short one. " +
		"Overall the approach is a significant advance for retrieval"

	findings := ExtractFindings(text, 5)
	assert.Equal(t, []string{
		"The authors found that attention scales quadratically.",
		"Results demonstrated a 20% improvement on long documents.",
		"Overall the approach is a significant advance for retrieval.",
		"This section describes the experimental setup in some detail.",
	}, findings)

	assert.Len(t, ExtractFindings(text, 2), 2)

	res, err := NewExtractKeyFindingsTool().Exec(context.Background(), map[string]any{"research_text": text, "max_findings": 1})
	require.NoError(t, err)
	require.True(t, res.Envelope.Success)
	assert.Equal(t, 1, res.Envelope.Payload["count"])
	assert.Equal(t, "Analysis of research text identified 1 key findings and insights.", res.Envelope.Payload["summary"])
}

func TestExtractKeyFindingsMinimumLength(t *testing.T) {
	res, err := NewExtractKeyFindingsTool().Exec(context.Background(), map[string]any{
		"research_text": "   " + strings.Repeat("a", minResearchTextLen-1) + "   ",
	})
	require.NoError(t, err)
	assert.False(t, res.Envelope.Success)
	assert.Contains(t, res.Envelope.Error, "Insufficient research text")
}
