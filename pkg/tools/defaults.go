package tools

import (
	"fmt"

	"scicontent/pkg/config"
)

// Deps are the external collaborators of the default tool set.
type Deps struct {
	Papers        PaperSearcher
	Web           SearchProvider
	MaxPapers     int
	CitationStyle string
}

// NewDefaultRegistry registers all nine tools against deps.
func NewDefaultRegistry(deps Deps) (*Registry, error) {
	if deps.Papers == nil {
		return nil, fmt.Errorf("paper searcher is required")
	}
	if deps.Web == nil {
		return nil, fmt.Errorf("web search provider is required")
	}

	r := NewRegistry()
	for _, tool := range []Tool{
		NewSearchPapersTool(deps.Papers, deps.MaxPapers),
		NewSearchWebTool(deps.Web),
		NewExtractKeyFindingsTool(),
		NewFormatForPlatformTool(),
		NewGenerateCitationsTool(deps.CitationStyle),
		NewGenerateSEOKeywordsTool(),
		NewCreateEngagementHooksTool(),
		NewSearchIndustryTrendsTool(deps.Web),
		NewAnalyzeContentTool(),
	} {
		if err := r.Register(tool); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewRegistryFromConfig wires the arXiv client and the detected web search provider.
func NewRegistryFromConfig(cfg *config.Config, secrets config.SecretSource) (*Registry, error) {
	status := config.DetectSearchAPIs(cfg.Search, secrets)
	return NewDefaultRegistry(Deps{
		Papers: NewArxivClient(
			cfg.Tools.ArxivBaseURL,
			cfg.Tools.HTTPTimeout(),
			cfg.Tools.PaperCacheSize,
			cfg.Tools.PaperCacheTTL(),
		),
		Web:           NewSearchProvider(status, cfg.Tools.HTTPTimeout()),
		MaxPapers:     cfg.Tools.MaxPapers,
		CitationStyle: cfg.Tools.CitationStyle,
	})
}
