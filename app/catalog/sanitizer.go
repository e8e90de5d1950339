package catalog

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Sanitizer cleans externally-scraped markup before it reaches the catalog.
// Titles are reduced to plain text, descriptions keep a user-generated-content
// subset of HTML, tag names are trimmed and optionally case-folded.
type Sanitizer struct {
	descriptionPolicy *bluemonday.Policy
	titlePolicy       *bluemonday.Policy
	lower             cases.Caser
}

func NewSanitizer() *Sanitizer {
	descriptionPolicy := bluemonday.UGCPolicy()
	descriptionPolicy.AllowImages()

	return &Sanitizer{
		descriptionPolicy: descriptionPolicy,
		titlePolicy:       bluemonday.StrictPolicy(),
		lower:             cases.Lower(language.Und),
	}
}

func (s *Sanitizer) CleanTitle(raw string) string {
	return strings.TrimSpace(s.titlePolicy.Sanitize(raw))
}

func (s *Sanitizer) CleanDescription(raw string) string {
	return strings.TrimSpace(s.descriptionPolicy.Sanitize(unwrapDescription(raw)))
}

// Some feed publishers wrap the real payload in a markup shell. When the
// wrapper is present, only its inner content is kept.
func unwrapDescription(raw string) string {
	if !strings.Contains(raw, "community-description") {
		return raw
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return raw
	}

	sel := doc.Find("div.community-description")
	if sel.Length() == 0 {
		return raw
	}

	inner, err := sel.First().Html()
	if err != nil {
		return raw
	}

	return inner
}

// NormalizeTags trims whitespace, drops empties, deduplicates and, when
// forceLowercase is set, case-folds tag names.
func (s *Sanitizer) NormalizeTags(tags []string, forceLowercase bool) []string {
	seen := make(map[string]bool, len(tags))
	normalized := make([]string, 0, len(tags))

	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if forceLowercase {
			tag = s.lower.String(tag)
		}

		key := s.lower.String(tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		normalized = append(normalized, tag)
	}

	return normalized
}
