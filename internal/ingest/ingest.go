// Package ingest builds article-generation requests from RSS/Atom feeds.
//
// An ingest run parses one feed, keeps the freshest entries, resolves entry
// text (feed body, or a page fetch when the feed only carries a teaser), and
// shapes the result into a multi-source pipeline request.
package ingest

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/draftwire/draftwire/internal/database"
	"github.com/draftwire/draftwire/internal/fetch"
	"github.com/draftwire/draftwire/internal/pipeline"
)

// Feed entries shorter than this are treated as teasers and re-fetched
// from the entry URL.
const minEntryText = 300

// Entry is one parsed feed item.
type Entry struct {
	URL           string
	Title         string
	PublishedDate string // YYYY-MM-DD or empty
	Content       string
	Source        string
}

// Ingestor turns feeds into pipeline requests.
type Ingestor struct {
	parser  *gofeed.Parser
	fetcher *fetch.SourceFetcher
}

// New creates an ingestor. The fetcher is optional; without one, teaser-only
// entries are dropped instead of re-fetched.
func New(fetcher *fetch.SourceFetcher) *Ingestor {
	return &Ingestor{parser: gofeed.NewParser(), fetcher: fetcher}
}

// BuildRequest parses the feed and assembles an aggregate request from its
// freshest entries, newest first. At most pipeline.MaxSources entries are
// used; a single usable entry yields a single-source request instead.
func (ing *Ingestor) BuildRequest(ctx context.Context, feedURL string, meta pipeline.Metadata, daysBack int) (*pipeline.Request, error) {
	feed, err := ing.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", feedURL, err)
	}

	sourceName := strings.TrimSpace(feed.Title)
	if sourceName == "" {
		sourceName = hostName(feedURL)
	}

	cutoff := time.Now().AddDate(0, 0, -daysBack)
	var sources []pipeline.Source
	for _, item := range feed.Items {
		if len(sources) >= pipeline.MaxSources {
			break
		}
		entry := parseItem(item, sourceName)
		if entry == nil || !withinWindow(entry.PublishedDate, cutoff) {
			continue
		}

		text := entry.Content
		if len(text) < minEntryText && ing.fetcher != nil && entry.URL != "" {
			fetched, err := ing.fetcher.FetchText(ctx, entry.URL)
			if err != nil {
				log.Printf("Could not fetch %s: %v", entry.URL, err)
			} else {
				text = fetched
			}
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		sources = append(sources, pipeline.Source{
			Description: entry.Title,
			Accredit:    entry.Source,
			SourceText:  text,
			URL:         entry.URL,
			Number:      len(sources) + 1,
		})
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("feed %s yielded no usable entries", feedURL)
	}

	reqType := pipeline.TypeMulti
	if len(sources) == 1 {
		reqType = pipeline.TypeSingle
	}

	return &pipeline.Request{
		Type:     reqType,
		Metadata: meta,
		Slug:     database.NormalizeSlug(sourceName + " " + time.Now().Format("2006-01-02")),
		Instructions: pipeline.Instructions{
			BlobCount:   3,
			LengthRange: "700-1000",
		},
		Sources: sources,
	}, nil
}

func parseItem(item *gofeed.Item, source string) *Entry {
	itemURL := item.Link
	if itemURL == "" {
		itemURL = item.GUID
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return nil
	}

	var publishedDate string
	if item.PublishedParsed != nil {
		publishedDate = item.PublishedParsed.Format("2006-01-02")
	} else if item.UpdatedParsed != nil {
		publishedDate = item.UpdatedParsed.Format("2006-01-02")
	}

	var content string
	if item.Content != "" {
		content = stripHTML(item.Content)
	} else if item.Description != "" {
		content = stripHTML(item.Description)
	}

	return &Entry{
		URL:           itemURL,
		Title:         title,
		PublishedDate: publishedDate,
		Content:       content,
		Source:        source,
	}
}

func withinWindow(publishedDate string, cutoff time.Time) bool {
	if publishedDate == "" {
		return true // benefit of the doubt
	}
	pub, err := time.Parse("2006-01-02", publishedDate)
	if err != nil {
		return true
	}
	return !pub.Before(cutoff)
}

func stripHTML(text string) string {
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
			result.WriteRune(' ')
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			result.WriteRune(r)
		}
	}

	s := result.String()
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")

	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func hostName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())
	for _, prefix := range []string{"www.", "blog.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}
	if host == "" {
		return feedURL
	}
	return strings.ToUpper(host[:1]) + host[1:]
}
