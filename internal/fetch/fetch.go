package fetch

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/draftwire/draftwire/internal/pipeline"
)

// Result holds the counts of one source-resolution run.
type Result struct {
	Fetched int
	Skipped int
	Failed  int
}

// SourceFetcher fetches full source text via HTTP + readability extraction
// for request sources that carry a URL but no text.
type SourceFetcher struct {
	client *http.Client
}

// NewSourceFetcher creates a new source fetcher.
func NewSourceFetcher(timeout time.Duration) *SourceFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &SourceFetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// ResolveSources fills in SourceText for every source that has a URL and no
// text yet. Sources that already carry text are left alone. A source whose
// URL cannot be fetched or yields no extractable text is counted as failed;
// request validation catches empty sources afterwards.
func (f *SourceFetcher) ResolveSources(ctx context.Context, sources []pipeline.Source) *Result {
	result := &Result{}
	for i := range sources {
		if sources[i].SourceText != "" || sources[i].URL == "" {
			result.Skipped++
			continue
		}
		text, err := f.FetchText(ctx, sources[i].URL)
		if err != nil {
			result.Failed++
			log.Printf("Could not fetch source %d from %s: %v", i+1, sources[i].URL, err)
			continue
		}
		sources[i].SourceText = text
		result.Fetched++
	}
	return result
}

// FetchText retrieves a URL and extracts its readable body text.
func (f *SourceFetcher) FetchText(ctx context.Context, sourceURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", sourceURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "draftwire/1.0 (source fetcher)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	parsedURL, _ := url.Parse(sourceURL)
	doc, err := readability.FromReader(strings.NewReader(string(bodyBytes)), parsedURL)
	if err != nil {
		return "", fmt.Errorf("extracting content: %w", err)
	}

	text := strings.TrimSpace(doc.TextContent)
	if len(text) <= 100 {
		return "", fmt.Errorf("no extractable content")
	}
	return text, nil
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return http.StatusText(e.code)
}
