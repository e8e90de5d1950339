package source

import (
	"time"
)

// Record is one externally-scraped video item, as close to the provider's
// shape as possible. The normalizer maps it onto a catalog Video.
type Record struct {
	GUID        string
	Title       string
	Description string
	Link        string
	PublishedAt *time.Time

	FileURL         string
	FileURLMimeType string
	FileURLLength   int64
	FileURLExpires  bool // expiring direct links are as good as no link

	EmbedCode    string
	ThumbnailURL string
	Tags         []string
	UploaderName string
	UploaderURL  string

	Position int    // position in the source sequence, assigned at dispatch
	Suite    string // search sources: which provider suite produced this
}

// HasPlayableContent reports whether there is anything to show: an
// embeddable payload or a non-expiring direct file reference.
func (r *Record) HasPlayableContent() bool {
	if r.EmbedCode != "" {
		return true
	}
	return r.FileURL != "" && !r.FileURLExpires
}

// Sequence is a single-pass iteration over the records from one suite.
// It is not safely re-iterable; callers count items as they go.
type Sequence struct {
	Suite   string
	records []Record
	pos     int
}

func NewSequence(suite string, records []Record) *Sequence {
	return &Sequence{Suite: suite, records: records}
}

func (s *Sequence) Next() (*Record, bool) {
	if s.pos >= len(s.records) {
		return nil, false
	}
	rec := s.records[s.pos]
	s.pos++
	rec.Suite = s.Suite
	return &rec, true
}

// SuiteError reports a load failure for one suite of a search source.
// A search import only fails outright when every suite fails.
type SuiteError struct {
	Suite string
	Err   error
}

// OpenResult is the outcome of loading a source: zero or more loadable
// sequences plus per-suite load failures.
type OpenResult struct {
	Sequences    []*Sequence
	SuiteErrors  []SuiteError
	Etag         string
	LastModified *time.Time
}
