package tools

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultArxivURL is the arXiv Atom query endpoint.
const DefaultArxivURL = "http://export.arxiv.org/api/query"

// Paper is one search result from arXiv.
type Paper struct {
	Title     string `json:"title"`
	Authors   string `json:"authors"`
	Summary   string `json:"summary"`
	ID        string `json:"id"`
	Link      string `json:"link"`
	Published string `json:"published,omitempty"`
}

// atomFeed mirrors the subset of the arXiv Atom response we read.
type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string       `xml:"id"`
	Title     string       `xml:"title"`
	Summary   string       `xml:"summary"`
	Published string       `xml:"published"`
	Authors   []atomAuthor `xml:"author"`
	Links     []atomLink   `xml:"link"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

// ArxivClient queries the arXiv API with a per-call timeout and an expiring result cache.
type ArxivClient struct {
	httpClient *http.Client
	cache      *expirable.LRU[string, []Paper]
	baseURL    string
}

// NewArxivClient creates a client. A cacheSize of 0 disables caching.
func NewArxivClient(baseURL string, timeout time.Duration, cacheSize int, cacheTTL time.Duration) *ArxivClient {
	if baseURL == "" {
		baseURL = DefaultArxivURL
	}
	c := &ArxivClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
	if cacheSize > 0 {
		c.cache = expirable.NewLRU[string, []Paper](cacheSize, nil, cacheTTL)
	}
	return c
}

func cacheKey(topic string, maxResults int) string {
	return strings.ToLower(strings.TrimSpace(topic)) + "|" + strconv.Itoa(maxResults)
}

// Search returns up to maxResults papers on topic, newest first.
func (c *ArxivClient) Search(ctx context.Context, topic string, maxResults int) ([]Paper, error) {
	key := cacheKey(topic, maxResults)
	if c.cache != nil {
		if papers, ok := c.cache.Get(key); ok {
			return papers, nil
		}
	}

	params := url.Values{}
	params.Set("search_query", "all:"+topic)
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("arXiv returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	papers, err := parseAtom(body, maxResults)
	if err != nil {
		return nil, err
	}

	if c.cache != nil && len(papers) > 0 {
		c.cache.Add(key, papers)
	}
	return papers, nil
}

// parseAtom converts an Atom feed into papers, skipping entries without a title or id.
func parseAtom(body []byte, maxResults int) ([]Paper, error) {
	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("malformed arXiv response: %w", err)
	}

	papers := make([]Paper, 0, len(feed.Entries))
	for i := range feed.Entries {
		if len(papers) >= maxResults {
			break
		}
		entry := &feed.Entries[i]

		title := collapseWhitespace(entry.Title)
		rawID := strings.TrimSpace(entry.ID)
		if title == "" || rawID == "" {
			continue
		}

		summary := collapseWhitespace(entry.Summary)
		if short, cut := truncateRunes(summary, paperSummaryLimit); cut {
			summary = short + "..."
		}

		authors := make([]string, 0, maxPaperAuthors)
		for _, a := range entry.Authors {
			if name := strings.TrimSpace(a.Name); name != "" {
				authors = append(authors, name)
			}
			if len(authors) == maxPaperAuthors {
				break
			}
		}
		authorList := "Unknown"
		if len(authors) > 0 {
			authorList = strings.Join(authors, ", ")
		}

		link := rawID
		for _, l := range entry.Links {
			if l.Rel == "alternate" && l.Href != "" {
				link = l.Href
				break
			}
		}

		published := strings.TrimSpace(entry.Published)
		if len(published) >= 10 {
			published = published[:10]
		}

		papers = append(papers, Paper{
			Title:     title,
			Authors:   authorList,
			Summary:   summary,
			ID:        arxivID(rawID),
			Link:      link,
			Published: published,
		})
	}
	return papers, nil
}

// arxivID extracts "2401.01234v1" from "http://arxiv.org/abs/2401.01234v1".
func arxivID(raw string) string {
	if i := strings.Index(raw, "/abs/"); i >= 0 {
		return raw[i+len("/abs/"):]
	}
	return raw
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// PaperSearcher finds papers on a topic.
type PaperSearcher interface {
	Search(ctx context.Context, topic string, maxResults int) ([]Paper, error)
}

// SearchPapersTool searches arXiv for recent papers.
type SearchPapersTool struct {
	searcher   PaperSearcher
	maxResults int
}

// NewSearchPapersTool creates the tool. maxResults is the default when the model omits it.
func NewSearchPapersTool(searcher PaperSearcher, maxResults int) *SearchPapersTool {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &SearchPapersTool{searcher: searcher, maxResults: maxResults}
}

// Name returns the tool name.
func (t *SearchPapersTool) Name() string {
	return ToolSearchPapers
}

// Definition returns the tool definition for LLM.
func (t *SearchPapersTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name: ToolSearchPapers,
		Description: `Search for academic papers and research articles on a topic (arXiv, newest first).
Returns titles, authors, summaries, arXiv identifiers and links to build credible, research-backed content.`,
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"topic": {
					Type:        "string",
					Description: "Research topic to search for (e.g., 'machine learning interpretability')",
				},
				"max_results": {
					Type:        "integer",
					Description: fmt.Sprintf("Maximum number of papers to return (default: %d)", t.maxResults),
					Minimum:     floatPtr(1),
					Maximum:     floatPtr(maxResultsLimit),
				},
			},
			Required: []string{"topic"},
		},
	}
}

// Exec executes the paper search.
func (t *SearchPapersTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	topic := strings.TrimSpace(stringArg(args, "topic", ""))
	if topic == "" {
		return errorResult("No topic provided for paper search")
	}
	maxResults := clamp(intArg(args, "max_results", t.maxResults), 1, maxResultsLimit)

	papers, err := t.searcher.Search(ctx, topic, maxResults)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return errorResult("Failed to search papers: request timed out")
		}
		return errorResult("Failed to search papers: %v", err)
	}
	if len(papers) == 0 {
		return errorResult("No papers found for topic: %s", topic)
	}

	return successResult(map[string]any{
		"papers": papers,
		"count":  len(papers),
	})
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
