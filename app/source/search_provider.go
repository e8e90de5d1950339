package source

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"
)

// SearchSuite is one provider backend a saved search runs against.
type SearchSuite struct {
	Name        string
	URLTemplate string // {query} is replaced with the escaped query string
}

// DefaultSuites are the video services a saved search fans out to.
var DefaultSuites = []SearchSuite{
	{Name: "youtube", URLTemplate: "https://www.youtube.com/feeds/videos.xml?search_query={query}"},
	{Name: "vimeo", URLTemplate: "https://vimeo.com/search/sort:latest/format:rss?q={query}"},
}

// SearchProvider runs a saved-search query against every suite. Suites fail
// independently; Open only errors when no suite could be loaded at all.
type SearchProvider struct {
	query      string
	suites     []SearchSuite
	httpClient *http.Client
	userAgent  string
	parser     *gofeed.Parser
}

func NewSearchProvider(query string, httpClient *http.Client, userAgent string) *SearchProvider {
	return &SearchProvider{
		query:      query,
		suites:     DefaultSuites,
		httpClient: httpClient,
		userAgent:  userAgent,
		parser:     gofeed.NewParser(),
	}
}

// WithSuites overrides the suite list. Used by tests and custom deployments.
func (p *SearchProvider) WithSuites(suites []SearchSuite) *SearchProvider {
	p.suites = suites
	return p
}

func (p *SearchProvider) Open(ctx context.Context) (*OpenResult, error) {
	result := &OpenResult{}

	for _, suite := range p.suites {
		records, err := p.openSuite(ctx, suite)
		if err != nil {
			slog.Warn("Search suite failed to load", "suite", suite.Name, "query", p.query, "error", err)
			result.SuiteErrors = append(result.SuiteErrors, SuiteError{Suite: suite.Name, Err: err})
			continue
		}
		result.Sequences = append(result.Sequences, NewSequence(suite.Name, records))
	}

	if len(result.Sequences) == 0 {
		return nil, fmt.Errorf("all %d search suites failed for query %q", len(p.suites), p.query)
	}
	return result, nil
}

func (p *SearchProvider) openSuite(ctx context.Context, suite SearchSuite) ([]Record, error) {
	suiteURL := strings.ReplaceAll(suite.URLTemplate, "{query}", url.QueryEscape(p.query))

	data, _, err := fetch(ctx, p.httpClient, p.userAgent, suiteURL, "")
	if err != nil {
		return nil, err
	}

	feed, err := p.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s results: %w", suite.Name, err)
	}

	records := make([]Record, 0, len(feed.Items))
	for _, item := range feed.Items {
		records = append(records, recordFromItem(item))
	}
	return records, nil
}
