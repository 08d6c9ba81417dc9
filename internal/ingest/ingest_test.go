package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/draftwire/draftwire/internal/pipeline"
)

func rssFeed(items ...string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>City Desk</title>
<link>https://citydesk.example</link>
%s
</channel></rss>`, strings.Join(items, "\n"))
}

func rssItem(title, desc string, published time.Time) string {
	return fmt.Sprintf(`<item>
<title>%s</title>
<link>https://citydesk.example/%s</link>
<description>%s</description>
<pubDate>%s</pubDate>
</item>`, title, strings.ReplaceAll(strings.ToLower(title), " ", "-"), desc, published.Format(time.RFC1123Z))
}

var longDesc = strings.Repeat("The council discussed the bridge repair program at length on Tuesday. ", 6)

func serveFeed(t *testing.T, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestBuildRequestMulti(t *testing.T) {
	now := time.Now()
	feedURL := serveFeed(t, rssFeed(
		rssItem("Bridge repairs approved", longDesc, now),
		rssItem("Budget vote delayed", longDesc, now.Add(-time.Hour)),
		rssItem("New transit line opens", longDesc, now.Add(-2*time.Hour)),
	))

	ing := New(nil)
	req, err := ing.BuildRequest(context.Background(), feedURL,
		pipeline.Metadata{UserID: "u", OrgID: "o"}, 7)
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}

	if req.Type != pipeline.TypeMulti {
		t.Errorf("expected multi request, got %q", req.Type)
	}
	if len(req.Sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(req.Sources))
	}
	for i, s := range req.Sources {
		if s.Number != i+1 {
			t.Errorf("source %d has number %d", i, s.Number)
		}
		if s.Accredit != "City Desk" {
			t.Errorf("source %d accredit %q", i, s.Accredit)
		}
		if !strings.Contains(s.SourceText, "bridge repair program") {
			t.Errorf("source %d text not extracted", i)
		}
	}
	if !strings.HasPrefix(req.Slug, "city-desk-") {
		t.Errorf("unexpected slug %q", req.Slug)
	}
	if err := req.Validate(); err != nil {
		t.Errorf("built request does not validate: %v", err)
	}
}

func TestBuildRequestSingleEntry(t *testing.T) {
	feedURL := serveFeed(t, rssFeed(rssItem("Only story", longDesc, time.Now())))

	req, err := New(nil).BuildRequest(context.Background(), feedURL,
		pipeline.Metadata{UserID: "u", OrgID: "o"}, 7)
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	if req.Type != pipeline.TypeSingle {
		t.Errorf("expected single request for one entry, got %q", req.Type)
	}
}

func TestBuildRequestSkipsStaleEntries(t *testing.T) {
	feedURL := serveFeed(t, rssFeed(
		rssItem("Fresh story", longDesc, time.Now()),
		rssItem("Old story", longDesc, time.Now().AddDate(0, 0, -30)),
	))

	req, err := New(nil).BuildRequest(context.Background(), feedURL,
		pipeline.Metadata{UserID: "u", OrgID: "o"}, 7)
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	if len(req.Sources) != 1 {
		t.Fatalf("expected stale entry dropped, got %d sources", len(req.Sources))
	}
	if req.Sources[0].Description != "Fresh story" {
		t.Errorf("kept wrong entry: %q", req.Sources[0].Description)
	}
}

func TestBuildRequestCapsSources(t *testing.T) {
	var items []string
	for i := 0; i < 10; i++ {
		items = append(items, rssItem(fmt.Sprintf("Story %d", i), longDesc, time.Now()))
	}
	feedURL := serveFeed(t, rssFeed(items...))

	req, err := New(nil).BuildRequest(context.Background(), feedURL,
		pipeline.Metadata{UserID: "u", OrgID: "o"}, 7)
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	if len(req.Sources) != pipeline.MaxSources {
		t.Errorf("expected %d sources, got %d", pipeline.MaxSources, len(req.Sources))
	}
}

func TestBuildRequestEmptyFeed(t *testing.T) {
	feedURL := serveFeed(t, rssFeed())
	if _, err := New(nil).BuildRequest(context.Background(), feedURL,
		pipeline.Metadata{UserID: "u", OrgID: "o"}, 7); err == nil {
		t.Fatal("expected error for empty feed")
	}
}

func TestStripHTML(t *testing.T) {
	got := stripHTML("<p>Repairs &amp; upgrades</p> <b>begin</b>&nbsp;soon")
	if got != "Repairs & upgrades begin soon" {
		t.Errorf("stripHTML = %q", got)
	}
}
