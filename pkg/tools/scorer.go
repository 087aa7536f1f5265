package tools

import (
	"context"
	"fmt"
	"strings"
)

//nolint:gochecknoglobals // read-only lookup tables
var (
	seoKeywords = []string{
		"ai", "machine learning", "ml", "deep learning", "neural network", "python",
		"tensorflow", "pytorch", "consulting", "engineer", "architect", "specialist", "expert",
	}
	engagementMarkers = []string{
		"?", "let's", "connect", "dm", "message", "discuss", "share", "comment",
		"what's your", "have you", "follow",
	}
	valuePhrases = []string{
		"production", "scale", "roi", "business", "solution", "impact", "results",
		"improve", "optimize", "problem", "challenge",
	}
	portfolioTerms = []string{"project", "github", "kaggle", "built", "developed", "implemented"}
)

// Score weights; they sum to 1.
const (
	weightSEO        = 0.30
	weightEngagement = 0.30
	weightValue      = 0.25
	weightPortfolio  = 0.15
)

// Grades.
const (
	GradeExcellent        = "Excellent"
	GradeGood             = "Good"
	GradeNeedsImprovement = "Needs Improvement"
)

// OpportunityScore holds the four 0-100 sub-scores and their weighted composite.
type OpportunityScore struct {
	SEO               int
	Engagement        int
	Value             int
	Portfolio         int
	Composite         int
	PortfolioMentions int
}

// Weighted returns the composite defined by the sub-scores, truncated and kept in [0,100].
func (s OpportunityScore) Weighted() int {
	total := float64(s.SEO)*weightSEO +
		float64(s.Engagement)*weightEngagement +
		float64(s.Value)*weightValue +
		float64(s.Portfolio)*weightPortfolio
	return clamp(int(total), 0, 100)
}

// Grade maps the composite to a label.
func (s OpportunityScore) Grade() string {
	switch {
	case s.Composite >= 80:
		return GradeExcellent
	case s.Composite >= 60:
		return GradeGood
	default:
		return GradeNeedsImprovement
	}
}

func countHits(text string, terms []string) int {
	hits := 0
	for _, term := range terms {
		if strings.Contains(text, term) {
			hits++
		}
	}
	return hits
}

// subScore scales hits against the number needed for a full score, capped at 100.
func subScore(hits int, fullAt float64) int {
	score := float64(hits) / fullAt * 100
	if score > 100 {
		score = 100
	}
	return int(score)
}

// ScoreContent computes the opportunity score of content. Matching is on lowercased
// substrings, so adding text never lowers a sub-score.
func ScoreContent(content string) OpportunityScore {
	lower := strings.ToLower(content)
	s := OpportunityScore{
		// Half of the keyword list earns a full SEO score.
		SEO:               subScore(countHits(lower, seoKeywords), float64(len(seoKeywords))/2),
		Engagement:        subScore(countHits(lower, engagementMarkers), 5),
		Value:             subScore(countHits(lower, valuePhrases), 5),
		PortfolioMentions: countHits(lower, portfolioTerms),
	}
	s.Portfolio = subScore(s.PortfolioMentions, 3)
	s.Composite = s.Weighted()
	return s
}

// Suggestions returns improvement advice for weak sub-scores.
func (s OpportunityScore) Suggestions(targetRole string, contentLen int) []string {
	var out []string
	if s.SEO < 50 {
		out = append(out, fmt.Sprintf("Add more %s keywords and technical terms for better visibility", targetRole))
	}
	if s.Engagement < 50 {
		out = append(out, "Include stronger calls-to-action and questions to invite connections")
	}
	if s.Value < 50 {
		out = append(out, "Emphasize business value and practical impact over pure theory")
	}
	if s.PortfolioMentions == 0 {
		out = append(out, "Mention your projects or portfolio to demonstrate hands-on expertise")
	}
	if contentLen < shortContentAdvice {
		out = append(out, "Consider expanding content for better engagement (aim for 300+ words)")
	}
	if len(out) == 0 {
		out = append(out, "Content looks great for opportunities!")
	}
	return out
}

// AnalyzeContentTool scores content for recruiter appeal.
type AnalyzeContentTool struct{}

// NewAnalyzeContentTool creates the tool.
func NewAnalyzeContentTool() *AnalyzeContentTool {
	return &AnalyzeContentTool{}
}

// Name returns the tool name.
func (t *AnalyzeContentTool) Name() string {
	return ToolAnalyzeContent
}

// Definition returns the tool definition for LLM.
func (t *AnalyzeContentTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name: ToolAnalyzeContent,
		Description: `Analyze content for recruiter appeal and opportunity potential. Scores SEO keywords,
engagement hooks, business value and portfolio mentions (0-100 each), a weighted composite, a grade and suggestions.`,
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"content": {
					Type:        "string",
					Description: fmt.Sprintf("The content to analyze (at least %d characters)", minAnalyzedContent),
				},
				"target_role": {
					Type:        "string",
					Description: fmt.Sprintf("Target professional role (default: %s)", DefaultTargetRole),
				},
			},
			Required: []string{"content"},
		},
	}
}

// Exec scores the content.
func (t *AnalyzeContentTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	content, _ := args["content"].(string)
	if strings.TrimSpace(content) == "" {
		return errorResult("No content provided for analysis")
	}
	if len(content) < minAnalyzedContent {
		return errorResult("Content too short for meaningful analysis (minimum %d characters)", minAnalyzedContent)
	}
	role := strings.TrimSpace(stringArg(args, "target_role", DefaultTargetRole))

	score := ScoreContent(content)
	return successResult(map[string]any{
		"opportunity_score": score.Composite,
		"seo_score":         score.SEO,
		"engagement_score":  score.Engagement,
		"value_score":       score.Value,
		"portfolio_score":   score.Portfolio,
		"grade":             score.Grade(),
		"suggestions":       score.Suggestions(role, len(content)),
		"target_role":       role,
	})
}
