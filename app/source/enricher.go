package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"codeberg.org/readeck/go-readability"
)

// Enricher fills in missing record fields by scraping the video's own page.
// Feed items frequently carry a bare link with no description; the original
// page usually has both a usable title and a description.
type Enricher struct {
	httpClient *http.Client
	userAgent  string
}

func NewEnricher(httpClient *http.Client, userAgent string) *Enricher {
	return &Enricher{httpClient: httpClient, userAgent: userAgent}
}

// Run fetches rec.Link and fills empty Title/Description fields from the
// extracted page content. Existing field values are never overwritten.
func (e *Enricher) Run(ctx context.Context, rec *Record) error {
	if rec.Link == "" {
		return fmt.Errorf("record has no link to scrape")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", rec.Link, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch video page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		return fmt.Errorf("content type is not HTML: %s", contentType)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	pageURL, _ := url.Parse(rec.Link)
	article, err := readability.FromReader(strings.NewReader(string(data)), pageURL)
	if err != nil {
		return fmt.Errorf("failed to extract page content: %w", err)
	}

	if rec.Title == "" {
		rec.Title = article.Title
	}
	if rec.Description == "" {
		rec.Description = article.Content
	}

	slog.Debug("Record enriched from video page", "url", rec.Link, "title", rec.Title, "description_length", len(rec.Description))
	return nil
}
