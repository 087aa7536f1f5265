package tools

import (
	"context"
	"fmt"
	"strings"

	"scicontent/pkg/logx"
)

type keywordGroup struct {
	key      string
	keywords []string
}

// Lookup tables are ordered slices so results are deterministic.
//
//nolint:gochecknoglobals // read-only lookup tables
var (
	roleKeywords = []keywordGroup{
		{"consultant", []string{"AI Consultant", "ML Consultant", "AI Strategy", "Technical Advisor"}},
		{"engineer", []string{"ML Engineer", "AI Engineer", "Machine Learning Engineer"}},
		{"specialist", []string{"AI Specialist", "ML Specialist", "Data Science Specialist"}},
		{"expert", []string{"AI Expert", "ML Expert", "Subject Matter Expert"}},
		{"architect", []string{"AI Architect", "ML Architect", "Solutions Architect"}},
	}

	techKeywords = []keywordGroup{
		{"language", []string{"NLP", "LLM", "Transformers", "GPT", "BERT"}},
		{"vision", []string{"Computer Vision", "CNN", "Object Detection", "Image Recognition"}},
		{"learning", []string{"Deep Learning", "Neural Networks", "PyTorch", "TensorFlow"}},
		{"agent", []string{"AI Agents", "Multi-Agent Systems", "LangChain", "Autonomous Systems"}},
		{"data", []string{"Data Science", "Feature Engineering", "Model Training"}},
	}

	defaultTechKeywords = []string{"Machine Learning", "Artificial Intelligence", "Python"}

	actionKeywords = []string{
		"AI Development",
		"Model Deployment",
		"MLOps",
		"Production ML",
		"Algorithm Design",
		"Technical Leadership",
		"AI Strategy",
	}

	skillKeywords = []keywordGroup{
		{"machine learning", []string{"PyTorch", "TensorFlow", "Scikit-learn", "MLflow", "Kubeflow"}},
		{"nlp", []string{"Transformers", "LangChain", "OpenAI API", "HuggingFace", "spaCy"}},
		{"computer vision", []string{"OpenCV", "YOLO", "SAM", "Detectron2", "PIL"}},
		{"llm", []string{"LangChain", "LlamaIndex", "Vector Databases", "Prompt Engineering", "RAG"}},
		{"mlops", []string{"MLflow", "Kubeflow", "Docker", "Kubernetes", "AWS SageMaker"}},
	}

	defaultHotSkills = []string{"Python", "PyTorch", "Cloud Platforms", "API Development"}
)

// Engagement goals for create_engagement_hooks.
const (
	GoalOpportunities = "opportunities"
	GoalDiscussion    = "discussion"
	GoalCredibility   = "credibility"
	GoalVisibility    = "visibility"
)

// matchGroups collects the first n keywords of every group whose key occurs in text.
func matchGroups(groups []keywordGroup, text string, n int) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, g := range groups {
		if strings.Contains(lower, g.key) {
			out = append(out, firstN(g.keywords, n)...)
		}
	}
	return out
}

// =============================================================================
// generate_seo_keywords
// =============================================================================

// GenerateSEOKeywordsTool produces recruiter-search keywords for a topic and role.
type GenerateSEOKeywordsTool struct{}

// NewGenerateSEOKeywordsTool creates the tool.
func NewGenerateSEOKeywordsTool() *GenerateSEOKeywordsTool {
	return &GenerateSEOKeywordsTool{}
}

// Name returns the tool name.
func (t *GenerateSEOKeywordsTool) Name() string {
	return ToolGenerateSEOKeywords
}

// Definition returns the tool definition for LLM.
func (t *GenerateSEOKeywordsTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name: ToolGenerateSEOKeywords,
		Description: `Generate LinkedIn SEO keywords that recruiters search for: role keywords, technical terms,
skill-based action keywords and combined phrases for the headline or post.`,
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"topic": {Type: "string", Description: "Content topic or expertise area"},
				"role": {
					Type:        "string",
					Description: fmt.Sprintf("Target professional role (default: %s)", DefaultTargetRole),
				},
			},
			Required: []string{"topic"},
		},
	}
}

// Exec generates the keywords.
func (t *GenerateSEOKeywordsTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	topic := strings.TrimSpace(stringArg(args, "topic", ""))
	if topic == "" {
		return errorResult("No topic provided for SEO keyword generation")
	}
	role := strings.TrimSpace(stringArg(args, "role", DefaultTargetRole))

	primary := append([]string{role}, matchGroups(roleKeywords, role, 2)...)
	technical := matchGroups(techKeywords, topic, 3)
	if len(technical) == 0 {
		technical = defaultTechKeywords
	}

	second := "ML"
	if len(technical) > 1 {
		second = technical[1]
	}
	combined := []string{
		fmt.Sprintf("%s | %s", primary[0], technical[0]),
		fmt.Sprintf("Expert in %s and %s", technical[0], second),
		fmt.Sprintf("%s | %s", actionKeywords[0], actionKeywords[1]),
	}

	all := make([]string, 0, len(primary)+len(technical)+len(actionKeywords))
	all = append(all, primary...)
	all = append(all, technical...)
	all = append(all, actionKeywords...)

	return successResult(map[string]any{
		"primary_keywords":   firstN(dedupe(primary), 5),
		"technical_keywords": firstN(dedupe(technical), 5),
		"action_keywords":    firstN(actionKeywords, 5),
		"combined_phrases":   combined,
		"total_keywords":     len(dedupe(all)),
	})
}

// =============================================================================
// create_engagement_hooks
// =============================================================================

var (
	openingHooks = map[string][]string{ //nolint:gochecknoglobals // read-only lookup table
		GoalOpportunities: {
			"Working with companies on {topic}? Here's what I've learned...",
			"After implementing {topic} for multiple clients, one thing is clear:",
			"Most {topic} projects fail because of this one mistake:",
		},
		GoalDiscussion: {
			"Hot take on {topic}:",
			"Here's what nobody tells you about {topic}:",
			"The {topic} landscape just shifted. Here's why it matters:",
		},
		GoalCredibility: {
			"Deep dive into {topic} based on hands-on experience:",
			"Technical breakdown of {topic} that actually works in production:",
			"What I learned implementing {topic} at scale:",
		},
		GoalVisibility: {
			"🔥 {topic} is evolving faster than ever. Here's what you need to know:",
			"Everyone's talking about {topic}, but here's what they're missing:",
			"3 things about {topic} that changed how I work:",
		},
	}

	closingCTAs = map[string][]string{ //nolint:gochecknoglobals // read-only lookup table
		GoalOpportunities: {
			"Looking to implement this in your organization? Let's connect and discuss your needs.",
			"Need help with your {topic} project? DM me to explore collaboration.",
			"Building something similar? I'd love to hear about your approach. Drop a comment or message me.",
		},
		GoalDiscussion: {
			"What's your take on this? Agree or disagree? Let's discuss in the comments!",
			"Have you encountered this in your work? Share your experience below.",
			"Curious how this applies to your use case? Let's chat!",
		},
		GoalCredibility: {
			"Want to dive deeper into the technical details? Connect with me.",
			"Questions about the implementation? Happy to share insights.",
			"Follow for more technical deep-dives on {topic}.",
		},
		GoalVisibility: {
			"🔔 Follow for more insights on {topic} and AI/ML trends.",
			"👉 Repost if you found this valuable. Tag someone who needs to see this.",
			"💬 What would you add to this list? Comment below!",
		},
	}

	discussionQuestions = []string{ //nolint:gochecknoglobals // read-only lookup table
		"What's been your biggest challenge with {topic}?",
		"Are you seeing similar trends with {topic} in your industry?",
		"Which aspect of {topic} should I cover next?",
		"What's your hot take on the future of {topic}?",
		"Have you tried implementing {topic}? What were your results?",
	}

	portfolioPrompts = []string{ //nolint:gochecknoglobals // read-only lookup table
		"In my recent project on {topic}, I discovered...",
		"While building a {topic} solution, here's what worked:",
		"My open-source work on {topic} taught me...",
		"Check out my GitHub for {topic} implementations that...",
		"Drawing from my Kaggle competition on {topic}...",
	}
)

// CreateEngagementHooksTool produces opening hooks, calls to action and prompts for a goal.
type CreateEngagementHooksTool struct{}

// NewCreateEngagementHooksTool creates the tool.
func NewCreateEngagementHooksTool() *CreateEngagementHooksTool {
	return &CreateEngagementHooksTool{}
}

// Name returns the tool name.
func (t *CreateEngagementHooksTool) Name() string {
	return ToolCreateEngagementHooks
}

// Definition returns the tool definition for LLM.
func (t *CreateEngagementHooksTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name: ToolCreateEngagementHooks,
		Description: `Create engagement hooks that invite professional connections: opening lines, calls-to-action,
discussion questions and portfolio mentions tuned to a content goal.`,
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"topic": {Type: "string", Description: "Content topic"},
				"goal": {
					Type:        "string",
					Description: "Content goal: 'opportunities', 'discussion', 'credibility', or 'visibility' (default: opportunities)",
				},
			},
			Required: []string{"topic"},
		},
	}
}

// Exec creates the hooks. Unknown goals fall back to credibility hooks and
// opportunity calls to action.
func (t *CreateEngagementHooksTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	topic := strings.TrimSpace(stringArg(args, "topic", ""))
	if topic == "" {
		return errorResult("No topic provided for engagement hooks")
	}
	goal := strings.ToLower(strings.TrimSpace(stringArg(args, "goal", DefaultGoal)))

	hooks, ok := openingHooks[goal]
	if !ok {
		hooks = openingHooks[GoalCredibility]
	}
	ctas, ok := closingCTAs[goal]
	if !ok {
		ctas = closingCTAs[GoalOpportunities]
	}

	fill := func(templates []string) []string {
		out := make([]string, 0, 3)
		for _, tmpl := range firstN(templates, 3) {
			out = append(out, strings.ReplaceAll(tmpl, "{topic}", topic))
		}
		return out
	}

	return successResult(map[string]any{
		"opening_hooks":        fill(hooks),
		"closing_ctas":         fill(ctas),
		"discussion_questions": fill(discussionQuestions),
		"portfolio_prompts":    fill(portfolioPrompts),
		"goal":                 goal,
	})
}

// =============================================================================
// search_industry_trends
// =============================================================================

// SearchIndustryTrendsTool reports hiring trends, hot skills and pain points for a field.
// With a web provider it also attaches live market signals.
type SearchIndustryTrendsTool struct {
	web    SearchProvider
	logger *logx.Logger
}

// NewSearchIndustryTrendsTool creates the tool. web may be nil.
func NewSearchIndustryTrendsTool(web SearchProvider) *SearchIndustryTrendsTool {
	return &SearchIndustryTrendsTool{web: web, logger: logx.NewLogger("tools")}
}

// Name returns the tool name.
func (t *SearchIndustryTrendsTool) Name() string {
	return ToolSearchIndustryTrends
}

// Definition returns the tool definition for LLM.
func (t *SearchIndustryTrendsTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name: ToolSearchIndustryTrends,
		Description: `Search industry trends, in-demand skills and business pain points for an AI/ML field.
Use it to align content with what companies are hiring for.`,
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"field": {Type: "string", Description: "AI/ML field to analyze (e.g., 'Machine Learning', 'NLP', 'Computer Vision')"},
				"region": {
					Type:        "string",
					Description: "Geographic region for job market analysis (default: global)",
				},
				"max_results": {
					Type:        "integer",
					Description: "Maximum number of trends to return (default: 5)",
					Minimum:     floatPtr(1),
					Maximum:     floatPtr(maxResultsLimit),
				},
			},
			Required: []string{"field"},
		},
	}
}

// Exec builds the trend report.
func (t *SearchIndustryTrendsTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	field := strings.TrimSpace(stringArg(args, "field", ""))
	if field == "" {
		return errorResult("No field provided for industry trend search")
	}
	region := strings.TrimSpace(stringArg(args, "region", DefaultRegion))
	maxResults := clamp(intArg(args, "max_results", DefaultMaxResults), 1, maxResultsLimit)

	hotSkills := dedupe(matchGroups(skillKeywords, field, 3))
	if len(hotSkills) == 0 {
		hotSkills = defaultHotSkills
	}

	trends := []string{
		fmt.Sprintf("Growing demand for %s expertise in %s", field, region),
		fmt.Sprintf("Companies seeking production-ready %s solutions", field),
		"Emphasis on practical implementation over pure research",
		fmt.Sprintf("Need for professionals who can explain %s to non-technical stakeholders", field),
		fmt.Sprintf("Integration of %s with existing business systems is top priority", field),
	}
	painPoints := []string{
		fmt.Sprintf("Difficulty finding experienced %s professionals", field),
		fmt.Sprintf("Bridging gap between research papers and production code in %s", field),
		fmt.Sprintf("Scaling %s solutions from prototype to enterprise", field),
		fmt.Sprintf("Explaining ROI of %s investments to executives", field),
		fmt.Sprintf("Maintaining and monitoring %s systems in production", field),
	}

	payload := map[string]any{
		"trends":      firstN(trends, maxResults),
		"hot_skills":  hotSkills,
		"pain_points": firstN(painPoints, maxResults),
		"region":      region,
		"field":       field,
	}

	if t.web != nil {
		query := fmt.Sprintf("%s hiring trends %s", field, region)
		signals, err := t.web.Search(ctx, query, 3)
		if err != nil {
			t.logger.Debug("Market signal search failed for %q: %v", query, err)
		} else if len(signals) > 0 {
			payload["market_signals"] = signals
		}
	}

	return successResult(payload)
}
