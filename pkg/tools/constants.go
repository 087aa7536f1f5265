package tools

// Tool name constants - use these instead of magic strings to prevent typos
// and enable compile-time checking.
const (
	// Research tools.
	ToolSearchPapers       = "search_papers"
	ToolSearchWeb          = "search_web"
	ToolExtractKeyFindings = "extract_key_findings"

	// Content tools.
	ToolFormatForPlatform = "format_for_platform"
	ToolGenerateCitations = "generate_citations"

	// LinkedIn optimization tools.
	ToolGenerateSEOKeywords   = "generate_seo_keywords"
	ToolCreateEngagementHooks = "create_engagement_hooks"
	ToolSearchIndustryTrends  = "search_industry_trends"
	ToolAnalyzeContent        = "analyze_content_for_opportunities"
)

// AllTools lists every tool name in registration order.
var AllTools = []string{ //nolint:gochecknoglobals // read-only name list
	ToolSearchPapers,
	ToolSearchWeb,
	ToolExtractKeyFindings,
	ToolFormatForPlatform,
	ToolGenerateCitations,
	ToolGenerateSEOKeywords,
	ToolCreateEngagementHooks,
	ToolSearchIndustryTrends,
	ToolAnalyzeContent,
}

// Defaults shared by several tools.
const (
	DefaultMaxResults   = 5
	DefaultTargetRole   = "AI Consultant"
	DefaultRegion       = "global"
	DefaultGoal         = "opportunities"
	DefaultCitationFmt  = "apa"
	maxResultsLimit     = 50
	minResearchTextLen  = 50
	minAnalyzedContent  = 100
	shortContentAdvice  = 300
	paperSummaryLimit   = 300
	twitterPreviewLimit = 250
	maxPaperAuthors     = 3
)
