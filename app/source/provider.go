package source

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/lysyi3m/video-comb/app/database"
)

// Provider pulls the lazy record sequences for one configured source.
// Open performs the network fetch and parse; it returns an error only when
// nothing at all could be loaded (for search sources: all suites failed).
type Provider interface {
	Open(ctx context.Context) (*OpenResult, error)
}

// NewProvider picks the provider implementation for the source kind.
func NewProvider(src *database.Source, httpClient *http.Client, userAgent string) (Provider, error) {
	switch src.Kind {
	case database.SourceKindFeed:
		return NewFeedProvider(src.FeedURL, src.Etag, httpClient, userAgent), nil
	case database.SourceKindSearch:
		return NewSearchProvider(src.QueryString, httpClient, userAgent), nil
	default:
		return nil, fmt.Errorf("unknown source kind: %s", src.Kind)
	}
}

func fetch(ctx context.Context, client *http.Client, userAgent, url, etag string) ([]byte, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return nil, resp, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, resp, nil
}
