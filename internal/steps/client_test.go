package steps

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/draftwire/draftwire/internal/runlog"
)

func TestExtractQuotesSuccess(t *testing.T) {
	var gotPath string
	var gotBody ExtractQuotesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"quotes": "\"It works,\" she said.",
			"usage":  []map[string]any{{"model": "claude-3-5-sonnet", "input_tokens": 100, "output_tokens": 20}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)
	res := c.ExtractQuotes(context.Background(), ExtractQuotesRequest{
		ArticleID:  7,
		SourceText: "raw source",
		Accredit:   "Newswire",
	})

	if gotPath != "/digest/01-extract-fact-quotes" {
		t.Errorf("unexpected path: %s", gotPath)
	}
	if gotBody.SourceText != "raw source" {
		t.Errorf("request body not forwarded: %+v", gotBody)
	}
	if !res.Success {
		t.Fatal("expected success")
	}
	if res.Quotes == "" {
		t.Error("expected quotes payload")
	}
	if res.StepNumber != 1 || res.ArticleID != 7 {
		t.Errorf("unexpected meta: %+v", res.StepMeta)
	}
	if len(res.Usage) != 1 || res.Usage[0].InputTokens != 100 {
		t.Errorf("unexpected usage: %+v", res.Usage)
	}
}

func TestNon2xxIsFailureNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)
	res := c.WriteArticle(context.Background(), WriteArticleRequest{ArticleID: 1})

	if res.Success {
		t.Fatal("expected failure on 502")
	}
	if res.Article != "" {
		t.Error("failure must leave payload at zero value")
	}
	if res.StepNumber != 5 {
		t.Errorf("expected step number set on failure, got %d", res.StepNumber)
	}
}

func TestTransportErrorIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // immediately: connection refused

	c := NewClient(srv.URL, time.Second, nil)
	res := c.SummarizeFacts(context.Background(), SummarizeFactsRequest{ArticleID: 1})
	if res.Success {
		t.Fatal("expected failure on connection refused")
	}
}

func TestUndecodableBodyIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)
	res := c.Outline(context.Background(), OutlineRequest{ArticleID: 1})
	if res.Success {
		t.Fatal("expected failure on bad body")
	}
}

func TestTruncatedBodyLeavesResultEmpty(t *testing.T) {
	// The outline field decodes before the body cuts off; a failed result
	// must still carry empty payload fields.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"outline": "half-decoded outline", "usage": [{`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)
	res := c.Outline(context.Background(), OutlineRequest{ArticleID: 1})
	if res.Success {
		t.Fatal("expected failure on truncated body")
	}
	if res.Outline != "" {
		t.Errorf("failed result carries partial payload: %q", res.Outline)
	}
	if len(res.Usage) != 0 {
		t.Errorf("failed result carries partial usage: %v", res.Usage)
	}
}

func TestMissingBaseURLIsFailure(t *testing.T) {
	c := NewClient("", time.Second, nil)
	res := c.ColorCode(context.Background(), ColorCodeRequest{ArticleID: 1})
	if res.Success {
		t.Fatal("expected failure without a base URL")
	}
}

func TestAggregateEndpointPaths(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)
	ctx := context.Background()
	c.FactsBitSplitting(ctx, FactsBitSplittingRequest{})
	c.FactsBitSplitting2(ctx, FactsBitSplittingRequest{})
	c.AggregateHeadlinesBlobs(ctx, AggregateHeadlinesBlobsRequest{})
	c.AggregateOutline(ctx, AggregateOutlineRequest{})
	c.AggregateWriteArticle(ctx, AggregateWriteArticleRequest{})
	c.RewriteArticle(ctx, RewriteArticleRequest{})
	c.RewriteArticle2(ctx, RewriteArticleRequest{})
	c.ColorCode(ctx, ColorCodeRequest{})

	want := []string{
		"/aggregate/01-facts-bit-splitting",
		"/aggregate/02-facts-bit-splitting-2",
		"/aggregate/03-headlines-blobs",
		"/aggregate/04-article-outline",
		"/aggregate/05-write-article",
		"/aggregate/06-rewrite-article",
		"/aggregate/07-rewrite-article-2",
		"/aggregate/08-color-code-article",
	}
	if len(paths) != len(want) {
		t.Fatalf("expected %d calls, got %d", len(want), len(paths))
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("call %d: expected %s, got %s", i, want[i], paths[i])
		}
	}
}

func TestClientLogsThroughRunLogger(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"summary": "facts"})
	}))
	defer srv.Close()

	rl, err := runlog.New(t.TempDir(), "u", "s")
	if err != nil {
		t.Fatalf("runlog: %v", err)
	}

	c := NewClient(srv.URL, time.Second, rl)
	c.SummarizeFacts(context.Background(), SummarizeFactsRequest{ArticleID: 3, SourceText: "text"})
	rl.Close()

	data, _ := os.ReadFile(rl.Path())
	if !strings.Contains(string(data), "step_request") || !strings.Contains(string(data), "step_response") {
		t.Errorf("expected step request/response in run log, got: %s", data)
	}
}

func TestOutputsImmutableExtension(t *testing.T) {
	base := Outputs{}
	withHB := base.WithHeadlinesBlobs("hb")
	withOutline := withHB.WithOutline("outline")

	if base.HeadlinesBlobs != "" {
		t.Error("base mutated by WithHeadlinesBlobs")
	}
	if withHB.Outline != "" {
		t.Error("earlier copy mutated by WithOutline")
	}
	if withOutline.HeadlinesBlobs != "hb" || withOutline.Outline != "outline" {
		t.Errorf("expected accumulated outputs, got %+v", withOutline)
	}
}
