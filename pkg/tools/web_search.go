package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"scicontent/pkg/config"
)

// SearchResult represents a single search result from any provider.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchProvider defines the interface for web search backends.
type SearchProvider interface {
	// Name returns a human-readable name for the provider.
	Name() string
	// Search performs a web search and returns results.
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// NewSearchProvider builds the provider chosen by config.DetectSearchAPIs.
//
//nolint:ireturn // provider is chosen at runtime
func NewSearchProvider(status config.SearchAPIStatus, timeout time.Duration) SearchProvider {
	client := &http.Client{Timeout: timeout}
	switch status.Provider {
	case config.SearchProviderGoogle:
		return NewGoogleSearchProvider(status.GoogleAPIKey, status.GoogleCX, WithHTTPClient(client))
	case config.SearchProviderBrave:
		return NewBraveSearchProvider(status.BraveAPIKey, WithHTTPClient(client))
	default:
		return NewDuckDuckGoProvider(WithHTTPClient(client))
	}
}

// SearchWebTool lets the model search the web for current information.
type SearchWebTool struct {
	provider   SearchProvider
	maxResults int
}

// NewSearchWebTool creates a web search tool backed by provider.
func NewSearchWebTool(provider SearchProvider) *SearchWebTool {
	return &SearchWebTool{
		provider:   provider,
		maxResults: DefaultMaxResults,
	}
}

// Name returns the tool name.
func (t *SearchWebTool) Name() string {
	return ToolSearchWeb
}

// Definition returns the tool definition for LLM.
func (t *SearchWebTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name: ToolSearchWeb,
		Description: `Search the web for current information on a topic: news, industry reports, blog posts and documentation.
Use it to complement academic papers with recent developments. Returns titles, URLs and snippets.`,
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"query": {
					Type:        "string",
					Description: "Search query string (e.g., 'transformer attention 2025 benchmarks')",
				},
				"max_results": {
					Type:        "integer",
					Description: "Maximum number of results (default: 5)",
					Minimum:     floatPtr(1),
					Maximum:     floatPtr(10),
				},
			},
			Required: []string{"query"},
		},
	}
}

// Exec executes the web search tool.
func (t *SearchWebTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	query := strings.TrimSpace(stringArg(args, "query", ""))
	if query == "" {
		return errorResult("query is required and must be a non-empty string")
	}
	maxResults := clamp(intArg(args, "max_results", t.maxResults), 1, 10)

	results, err := t.provider.Search(ctx, query, maxResults)
	if err != nil {
		return errorResult("search failed: %v", err)
	}

	payload := map[string]any{
		"query":    query,
		"provider": t.provider.Name(),
		"count":    len(results),
		"results":  results,
	}
	if len(results) == 0 {
		payload["note"] = "No results found. Try a different search query or rephrase your question."
	}
	return successResult(payload)
}

// =============================================================================
// Shared HTTP plumbing
// =============================================================================

type httpProvider struct {
	httpClient *http.Client
	baseURL    string
}

// ProviderOption customizes a search provider.
type ProviderOption func(*httpProvider)

// WithHTTPClient overrides the provider's HTTP client.
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(p *httpProvider) { p.httpClient = c }
}

// WithBaseURL overrides the provider's endpoint (used in tests).
func WithBaseURL(u string) ProviderOption {
	return func(p *httpProvider) { p.baseURL = u }
}

func newHTTPProvider(defaultURL string, opts []ProviderOption) httpProvider {
	p := httpProvider{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultURL,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// getJSON issues a GET and decodes a JSON body into out, failing on non-2xx.
func (p *httpProvider) getJSON(ctx context.Context, rawURL string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		stub, _ := truncateRunes(strings.TrimSpace(string(body)), 200)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, stub)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// =============================================================================
// Google Custom Search Provider
// =============================================================================

// GoogleSearchProvider implements SearchProvider using Google Custom Search API.
type GoogleSearchProvider struct {
	httpProvider
	apiKey string
	cx     string
}

// NewGoogleSearchProvider creates a new Google Custom Search provider.
func NewGoogleSearchProvider(apiKey, cx string, opts ...ProviderOption) *GoogleSearchProvider {
	return &GoogleSearchProvider{
		httpProvider: newHTTPProvider("https://www.googleapis.com/customsearch/v1", opts),
		apiKey:       apiKey,
		cx:           cx,
	}
}

// Name returns the provider name.
func (p *GoogleSearchProvider) Name() string {
	return "google"
}

// googleSearchResponse represents the response from Google Custom Search API.
type googleSearchResponse struct {
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

// Search performs a web search using Google Custom Search API.
func (p *GoogleSearchProvider) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("key", p.apiKey)
	params.Set("cx", p.cx)
	params.Set("q", query)
	params.Set("num", fmt.Sprint(maxResults))

	var googleResp googleSearchResponse
	if err := p.getJSON(ctx, p.baseURL+"?"+params.Encode(), nil, &googleResp); err != nil {
		return nil, err
	}
	if googleResp.Error != nil {
		return nil, fmt.Errorf("API error %d: %s", googleResp.Error.Code, googleResp.Error.Message)
	}

	results := make([]SearchResult, 0, len(googleResp.Items))
	for i := range googleResp.Items {
		item := &googleResp.Items[i]
		results = append(results, SearchResult{Title: item.Title, URL: item.Link, Snippet: item.Snippet})
	}
	return results, nil
}

// =============================================================================
// Brave Search Provider
// =============================================================================

// BraveSearchProvider implements SearchProvider using the Brave Search API.
type BraveSearchProvider struct {
	httpProvider
	apiKey string
}

// NewBraveSearchProvider creates a new Brave provider.
func NewBraveSearchProvider(apiKey string, opts ...ProviderOption) *BraveSearchProvider {
	return &BraveSearchProvider{
		httpProvider: newHTTPProvider("https://api.search.brave.com/res/v1/web/search", opts),
		apiKey:       apiKey,
	}
}

// Name returns the provider name.
func (p *BraveSearchProvider) Name() string {
	return "brave"
}

type braveSearchResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Search performs a web search using Brave.
func (p *BraveSearchProvider) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", fmt.Sprint(maxResults))

	var braveResp braveSearchResponse
	headers := map[string]string{
		"Accept":               "application/json",
		"X-Subscription-Token": p.apiKey,
	}
	if err := p.getJSON(ctx, p.baseURL+"?"+params.Encode(), headers, &braveResp); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(braveResp.Web.Results))
	for i := range braveResp.Web.Results {
		r := &braveResp.Web.Results[i]
		if len(results) >= maxResults {
			break
		}
		results = append(results, SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Description})
	}
	return results, nil
}

// =============================================================================
// DuckDuckGo Provider (Fallback)
// =============================================================================

// DuckDuckGoProvider implements SearchProvider using DuckDuckGo's Instant Answer API.
// NOTE: This is a fallback provider with limited functionality. It only returns
// encyclopedic/instant answers, not general web search results.
type DuckDuckGoProvider struct {
	httpProvider
}

// NewDuckDuckGoProvider creates a new DuckDuckGo provider.
func NewDuckDuckGoProvider(opts ...ProviderOption) *DuckDuckGoProvider {
	return &DuckDuckGoProvider{httpProvider: newHTTPProvider("https://api.duckduckgo.com/", opts)}
}

// Name returns the provider name.
func (p *DuckDuckGoProvider) Name() string {
	return "duckduckgo"
}

type duckDuckGoTopic struct {
	Text     string `json:"Text"`
	FirstURL string `json:"FirstURL"`
}

// duckDuckGoResponse represents the response from DuckDuckGo's instant answer API.
type duckDuckGoResponse struct {
	AbstractText  string            `json:"AbstractText"`
	AbstractURL   string            `json:"AbstractURL"`
	Heading       string            `json:"Heading"`
	Answer        string            `json:"Answer"`
	RelatedTopics []duckDuckGoTopic `json:"RelatedTopics"`
	Results       []duckDuckGoTopic `json:"Results"`
}

// Search performs a search using DuckDuckGo's Instant Answer API.
func (p *DuckDuckGoProvider) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	var ddgResp duckDuckGoResponse
	headers := map[string]string{"User-Agent": "scicontent/1.0 (research content assistant)"}
	if err := p.getJSON(ctx, p.baseURL+"?"+params.Encode(), headers, &ddgResp); err != nil {
		return nil, err
	}

	var results []SearchResult
	if ddgResp.AbstractText != "" {
		results = append(results, SearchResult{
			Title:   ddgResp.Heading,
			URL:     ddgResp.AbstractURL,
			Snippet: ddgResp.AbstractText,
		})
	}
	if ddgResp.Answer != "" {
		results = append(results, SearchResult{Title: "Instant Answer", Snippet: ddgResp.Answer})
	}
	for _, group := range [][]duckDuckGoTopic{ddgResp.Results, ddgResp.RelatedTopics} {
		for i := range group {
			if len(results) >= maxResults {
				return results, nil
			}
			if group[i].Text != "" {
				results = append(results, SearchResult{URL: group[i].FirstURL, Snippet: group[i].Text})
			}
		}
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}
