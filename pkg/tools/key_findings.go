package tools

import (
	"context"
	"fmt"
	"strings"
)

// findingIndicators mark sentences that report a result or conclusion.
var findingIndicators = []string{ //nolint:gochecknoglobals // read-only lookup table
	"found",
	"discovered",
	"showed",
	"demonstrated",
	"revealed",
	"concluded",
	"suggests",
	"indicates",
	"proves",
	"confirms",
	"important",
	"significant",
	"key",
	"main",
	"primary",
}

// ExtractKeyFindingsTool pulls finding-like sentences out of research text.
type ExtractKeyFindingsTool struct{}

// NewExtractKeyFindingsTool creates the tool.
func NewExtractKeyFindingsTool() *ExtractKeyFindingsTool {
	return &ExtractKeyFindingsTool{}
}

// Name returns the tool name.
func (t *ExtractKeyFindingsTool) Name() string {
	return ToolExtractKeyFindings
}

// Definition returns the tool definition for LLM.
func (t *ExtractKeyFindingsTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name: ToolExtractKeyFindings,
		Description: `Extract key findings and insights from research text such as paper summaries.
Returns sentences that report results or conclusions, padded with the most substantial remaining sentences.`,
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"research_text": {
					Type:        "string",
					Description: fmt.Sprintf("Raw research text to analyze (at least %d characters)", minResearchTextLen),
				},
				"max_findings": {
					Type:        "integer",
					Description: "Maximum number of findings to extract (default: 5)",
					Minimum:     floatPtr(1),
					Maximum:     floatPtr(maxResultsLimit),
				},
			},
			Required: []string{"research_text"},
		},
	}
}

// Exec executes the extraction.
func (t *ExtractKeyFindingsTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	text, _ := args["research_text"].(string)
	if len(strings.TrimSpace(text)) < minResearchTextLen {
		return errorResult("Insufficient research text provided (minimum %d characters)", minResearchTextLen)
	}
	maxFindings := clamp(intArg(args, "max_findings", DefaultMaxResults), 1, maxResultsLimit)

	findings := ExtractFindings(text, maxFindings)
	return successResult(map[string]any{
		"findings": findings,
		"summary":  fmt.Sprintf("Analysis of research text identified %d key findings and insights.", len(findings)),
		"count":    len(findings),
	})
}

// ExtractFindings returns up to maxFindings sentences from text. Sentences containing a
// finding indicator come first; if there are too few, sentences longer than 30
// characters fill the remainder. Every finding ends with a period.
func ExtractFindings(text string, maxFindings int) []string {
	sentences := strings.Split(strings.ReplaceAll(text, "\n", " "), ". ")

	findings := make([]string, 0, maxFindings)
	seen := make(map[string]struct{})
	add := func(sentence string) {
		if !strings.HasSuffix(sentence, ".") {
			sentence += "."
		}
		if _, dup := seen[sentence]; dup {
			return
		}
		seen[sentence] = struct{}{}
		findings = append(findings, sentence)
	}

	for _, s := range sentences {
		if len(findings) >= maxFindings {
			return findings
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		lower := strings.ToLower(s)
		for _, indicator := range findingIndicators {
			if strings.Contains(lower, indicator) {
				add(s)
				break
			}
		}
	}

	for _, s := range sentences {
		if len(findings) >= maxFindings {
			break
		}
		s = strings.TrimSpace(s)
		if len(s) > 30 {
			add(s)
		}
	}
	return findings
}
