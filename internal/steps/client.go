package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"reflect"
	"time"

	"github.com/draftwire/draftwire/internal/runlog"
)

// Pipeline path segments in step endpoints.
const (
	PipelineDigest    = "digest"
	PipelineAggregate = "aggregate"
)

// Client calls the step API. One Client is created per pipeline run so its
// run logger captures every request and response; a nil logger disables the
// audit trail without changing behavior.
type Client struct {
	baseURL string
	http    *http.Client
	log     *runlog.Logger
}

// NewClient creates a step API client for one run.
func NewClient(baseURL string, timeout time.Duration, rl *runlog.Logger) *Client {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     rl,
	}
}

// call performs one step invocation. It returns true only when the request
// was sent, a 2xx response came back, and the body decoded into out. Every
// failure mode is logged and reported as false; call never panics or returns
// an error to its caller.
func (c *Client) call(ctx context.Context, pipeline, endpoint string, step int, reqBody, out any) bool {
	c.log.LogStepRequest(step, endpoint, reqBody)

	if c.baseURL == "" {
		c.log.LogError(fmt.Sprintf("step %d (%s): step API base URL not configured", step, endpoint))
		return false
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		c.log.LogError(fmt.Sprintf("step %d (%s): marshaling request: %v", step, endpoint, err))
		return false
	}

	url := fmt.Sprintf("%s/%s/%s", c.baseURL, pipeline, endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		c.log.LogError(fmt.Sprintf("step %d (%s): creating request: %v", step, endpoint, err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.LogError(fmt.Sprintf("step %d (%s): %v", step, endpoint, err))
		log.Printf("step %d (%s) transport error: %v", step, endpoint, err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.LogError(fmt.Sprintf("step %d (%s): status %d: %s", step, endpoint, resp.StatusCode, string(respBody)))
		log.Printf("step %d (%s) returned %d", step, endpoint, resp.StatusCode)
		return false
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log.LogError(fmt.Sprintf("step %d (%s): reading response: %v", step, endpoint, err))
		return false
	}

	// Decode into a scratch value first so a body that fails partway
	// through cannot leave half-populated fields on a failed result.
	scratch := reflect.New(reflect.TypeOf(out).Elem())
	if err := json.Unmarshal(respBody, scratch.Interface()); err != nil {
		c.log.LogError(fmt.Sprintf("step %d (%s): decoding response: %v", step, endpoint, err))
		return false
	}
	reflect.ValueOf(out).Elem().Set(scratch.Elem())

	c.log.LogStepResponse(step, endpoint, out)
	return true
}

// --- digest steps ---

func (c *Client) ExtractQuotes(ctx context.Context, req ExtractQuotesRequest) ExtractQuotesResult {
	var res ExtractQuotesResult
	ok := c.call(ctx, PipelineDigest, "01-extract-fact-quotes", 1, req, &res)
	res.ArticleID, res.StepNumber, res.Success = req.ArticleID, 1, ok
	return res
}

func (c *Client) SummarizeFacts(ctx context.Context, req SummarizeFactsRequest) SummarizeFactsResult {
	var res SummarizeFactsResult
	ok := c.call(ctx, PipelineDigest, "02-summarize-facts", 2, req, &res)
	res.ArticleID, res.StepNumber, res.Success = req.ArticleID, 2, ok
	return res
}

func (c *Client) HeadlinesBlobs(ctx context.Context, req HeadlinesBlobsRequest) HeadlinesBlobsResult {
	var res HeadlinesBlobsResult
	ok := c.call(ctx, PipelineDigest, "03-headlines-blobs", 3, req, &res)
	res.ArticleID, res.StepNumber, res.Success = req.ArticleID, 3, ok
	return res
}

func (c *Client) Outline(ctx context.Context, req OutlineRequest) OutlineResult {
	var res OutlineResult
	ok := c.call(ctx, PipelineDigest, "04-article-outline", 4, req, &res)
	res.ArticleID, res.StepNumber, res.Success = req.ArticleID, 4, ok
	return res
}

func (c *Client) WriteArticle(ctx context.Context, req WriteArticleRequest) ArticleResult {
	var res ArticleResult
	ok := c.call(ctx, PipelineDigest, "05-write-article", 5, req, &res)
	res.ArticleID, res.StepNumber, res.Success = req.ArticleID, 5, ok
	return res
}

func (c *Client) Paraphrase(ctx context.Context, req ParaphraseRequest) ArticleResult {
	var res ArticleResult
	ok := c.call(ctx, PipelineDigest, "06-paraphrase-article", 6, req, &res)
	res.ArticleID, res.StepNumber, res.Success = req.ArticleID, 6, ok
	return res
}

func (c *Client) SentenceAttribution(ctx context.Context, req AttributionRequest) AttributionResult {
	var res AttributionResult
	ok := c.call(ctx, PipelineDigest, "07-sentence-attribution", 7, req, &res)
	res.ArticleID, res.StepNumber, res.Success = req.ArticleID, 7, ok
	return res
}

func (c *Client) VerbatimArticle(ctx context.Context, req VerbatimRequest) ArticleResult {
	var res ArticleResult
	ok := c.call(ctx, PipelineDigest, "04-verbatim-article", 4, req, &res)
	res.ArticleID, res.StepNumber, res.Success = req.ArticleID, 4, ok
	return res
}

// --- aggregate steps ---

func (c *Client) FactsBitSplitting(ctx context.Context, req FactsBitSplittingRequest) FactsBitSplittingResult {
	var res FactsBitSplittingResult
	ok := c.call(ctx, PipelineAggregate, "01-facts-bit-splitting", 1, req, &res)
	res.ArticleID, res.StepNumber, res.Success = req.ArticleID, 1, ok
	return res
}

func (c *Client) FactsBitSplitting2(ctx context.Context, req FactsBitSplittingRequest) FactsBitSplittingResult {
	var res FactsBitSplittingResult
	ok := c.call(ctx, PipelineAggregate, "02-facts-bit-splitting-2", 2, req, &res)
	res.ArticleID, res.StepNumber, res.Success = req.ArticleID, 2, ok
	return res
}

func (c *Client) AggregateHeadlinesBlobs(ctx context.Context, req AggregateHeadlinesBlobsRequest) HeadlinesBlobsResult {
	var res HeadlinesBlobsResult
	ok := c.call(ctx, PipelineAggregate, "03-headlines-blobs", 3, req, &res)
	res.ArticleID, res.StepNumber, res.Success = req.ArticleID, 3, ok
	return res
}

func (c *Client) AggregateOutline(ctx context.Context, req AggregateOutlineRequest) OutlineResult {
	var res OutlineResult
	ok := c.call(ctx, PipelineAggregate, "04-article-outline", 4, req, &res)
	res.ArticleID, res.StepNumber, res.Success = req.ArticleID, 4, ok
	return res
}

func (c *Client) AggregateWriteArticle(ctx context.Context, req AggregateWriteArticleRequest) ArticleResult {
	var res ArticleResult
	ok := c.call(ctx, PipelineAggregate, "05-write-article", 5, req, &res)
	res.ArticleID, res.StepNumber, res.Success = req.ArticleID, 5, ok
	return res
}

func (c *Client) RewriteArticle(ctx context.Context, req RewriteArticleRequest) ArticleResult {
	var res ArticleResult
	ok := c.call(ctx, PipelineAggregate, "06-rewrite-article", 6, req, &res)
	res.ArticleID, res.StepNumber, res.Success = req.ArticleID, 6, ok
	return res
}

func (c *Client) RewriteArticle2(ctx context.Context, req RewriteArticleRequest) ArticleResult {
	var res ArticleResult
	ok := c.call(ctx, PipelineAggregate, "07-rewrite-article-2", 7, req, &res)
	res.ArticleID, res.StepNumber, res.Success = req.ArticleID, 7, ok
	return res
}

func (c *Client) ColorCode(ctx context.Context, req ColorCodeRequest) ColorCodeResult {
	var res ColorCodeResult
	ok := c.call(ctx, PipelineAggregate, "08-color-code-article", 8, req, &res)
	res.ArticleID, res.StepNumber, res.Success = req.ArticleID, 8, ok
	return res
}
