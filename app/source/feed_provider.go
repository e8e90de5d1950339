package source

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/extensions"
)

// FeedProvider loads a single RSS/Atom feed of videos.
type FeedProvider struct {
	feedURL    string
	etag       string
	httpClient *http.Client
	userAgent  string
	parser     *gofeed.Parser
}

func NewFeedProvider(feedURL, etag string, httpClient *http.Client, userAgent string) *FeedProvider {
	return &FeedProvider{
		feedURL:    feedURL,
		etag:       etag,
		httpClient: httpClient,
		userAgent:  userAgent,
		parser:     gofeed.NewParser(),
	}
}

func (p *FeedProvider) Open(ctx context.Context) (*OpenResult, error) {
	data, resp, err := fetch(ctx, p.httpClient, p.userAgent, p.feedURL, p.etag)
	if err != nil {
		return nil, err
	}

	result := &OpenResult{}
	if resp != nil {
		result.Etag = resp.Header.Get("ETag")
	}

	// 304 Not Modified: nothing new, an empty import completes trivially.
	if data == nil {
		return result, nil
	}

	feed, err := p.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	records := make([]Record, 0, len(feed.Items))
	for _, item := range feed.Items {
		records = append(records, recordFromItem(item))
	}
	if feed.UpdatedParsed != nil {
		result.LastModified = feed.UpdatedParsed
	}

	result.Sequences = []*Sequence{NewSequence("", records)}
	return result, nil
}

// recordFromItem maps a parsed feed item onto a Record, picking playable
// content from the enclosure or the Media RSS extension when present.
func recordFromItem(item *gofeed.Item) Record {
	rec := Record{
		GUID:        item.GUID,
		Title:       item.Title,
		Description: item.Description,
		Link:        item.Link,
		PublishedAt: item.PublishedParsed,
		Tags:        item.Categories,
	}

	if item.Content != "" {
		rec.Description = item.Content
	}

	if len(item.Authors) > 0 && item.Authors[0] != nil {
		rec.UploaderName = item.Authors[0].Name
	}
	if item.Image != nil {
		rec.ThumbnailURL = item.Image.URL
	}

	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		rec.FileURL = enc.URL
		rec.FileURLMimeType = enc.Type
		if length, err := strconv.ParseInt(enc.Length, 10, 64); err == nil {
			rec.FileURLLength = length
		}
		break
	}

	applyMediaExtension(item, &rec)

	return rec
}

func applyMediaExtension(item *gofeed.Item, rec *Record) {
	media, ok := item.Extensions["media"]
	if !ok {
		return
	}

	if rec.FileURL == "" {
		for _, content := range media["content"] {
			url := content.Attrs["url"]
			if url == "" {
				continue
			}
			rec.FileURL = url
			rec.FileURLMimeType = content.Attrs["type"]
			if size, err := strconv.ParseInt(content.Attrs["fileSize"], 10, 64); err == nil {
				rec.FileURLLength = size
			}
			break
		}
	}

	if url := firstMediaAttr(media, "player", "url"); url != "" {
		rec.EmbedCode = fmt.Sprintf(`<iframe src="%s" frameborder="0" allowfullscreen></iframe>`, url)
	}
	if url := firstMediaAttr(media, "thumbnail", "url"); url != "" {
		rec.ThumbnailURL = url
	}
	if credit := firstMediaAttr(media, "credit", ""); credit != "" && rec.UploaderName == "" {
		rec.UploaderName = credit
	}
	if keywords := firstMediaAttr(media, "keywords", ""); keywords != "" {
		for _, kw := range strings.Split(keywords, ",") {
			if kw = strings.TrimSpace(kw); kw != "" {
				rec.Tags = append(rec.Tags, kw)
			}
		}
	}
}

// firstMediaAttr returns the named attribute of the first extension element,
// or the element's text value when attr is empty.
func firstMediaAttr(media map[string][]ext.Extension, element, attr string) string {
	for _, e := range media[element] {
		if attr == "" {
			if e.Value != "" {
				return e.Value
			}
			continue
		}
		if v := e.Attrs[attr]; v != "" {
			return v
		}
	}
	return ""
}
