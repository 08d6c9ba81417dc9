// Package pipeline orchestrates the content-generation pipelines.
//
// The router (ExecuteByArticleID) loads a persisted article, dispatches to
// the digest (single source) or aggregate (multi source) orchestrator, and
// wraps every failure into a structured Result. The orchestrators run their
// steps strictly in sequence: each step's request is built only from the
// original request and the outputs of earlier steps, and the first failed
// step aborts the run.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/draftwire/draftwire/internal/config"
	"github.com/draftwire/draftwire/internal/database"
	"github.com/draftwire/draftwire/internal/runlog"
	"github.com/draftwire/draftwire/internal/steps"
	"github.com/draftwire/draftwire/internal/usage"
)

// Invoker performs individual pipeline steps. Implemented by *steps.Client;
// tests substitute scripted fakes.
type Invoker interface {
	// Digest.
	ExtractQuotes(ctx context.Context, req steps.ExtractQuotesRequest) steps.ExtractQuotesResult
	SummarizeFacts(ctx context.Context, req steps.SummarizeFactsRequest) steps.SummarizeFactsResult
	HeadlinesBlobs(ctx context.Context, req steps.HeadlinesBlobsRequest) steps.HeadlinesBlobsResult
	Outline(ctx context.Context, req steps.OutlineRequest) steps.OutlineResult
	WriteArticle(ctx context.Context, req steps.WriteArticleRequest) steps.ArticleResult
	Paraphrase(ctx context.Context, req steps.ParaphraseRequest) steps.ArticleResult
	SentenceAttribution(ctx context.Context, req steps.AttributionRequest) steps.AttributionResult
	VerbatimArticle(ctx context.Context, req steps.VerbatimRequest) steps.ArticleResult

	// Aggregate.
	FactsBitSplitting(ctx context.Context, req steps.FactsBitSplittingRequest) steps.FactsBitSplittingResult
	FactsBitSplitting2(ctx context.Context, req steps.FactsBitSplittingRequest) steps.FactsBitSplittingResult
	AggregateHeadlinesBlobs(ctx context.Context, req steps.AggregateHeadlinesBlobsRequest) steps.HeadlinesBlobsResult
	AggregateOutline(ctx context.Context, req steps.AggregateOutlineRequest) steps.OutlineResult
	AggregateWriteArticle(ctx context.Context, req steps.AggregateWriteArticleRequest) steps.ArticleResult
	RewriteArticle(ctx context.Context, req steps.RewriteArticleRequest) steps.ArticleResult
	RewriteArticle2(ctx context.Context, req steps.RewriteArticleRequest) steps.ArticleResult
	ColorCode(ctx context.Context, req steps.ColorCodeRequest) steps.ColorCodeResult
}

// Notifier announces finished articles. Failures are swallowed: notification
// is best effort and never fails a pipeline.
type Notifier interface {
	SendCompletion(ctx context.Context, slug string, version int) error
}

// InvokerFactory builds an Invoker bound to one run's logger.
type InvokerFactory func(rl *runlog.Logger) Invoker

// StepRecord summarizes one executed step in a Response.
type StepRecord struct {
	Number  int    `json:"number"`
	Name    string `json:"name"`
	Success bool   `json:"success"`
}

// Response is the outcome of one orchestrator run.
type Response struct {
	Success     bool         `json:"success"`
	Steps       []StepRecord `json:"steps"`
	Headline    string       `json:"headline,omitempty"`
	Blobs       []string     `json:"blobs,omitempty"`
	Content     string       `json:"content,omitempty"`
	RichContent string       `json:"rich_content,omitempty"`
	Totals      usage.Totals `json:"totals"`
}

// Result is what callers of the router receive. The router never returns an
// error or panics: every failure is folded into Result.Error.
type Result struct {
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	ArticleID int64  `json:"article_id"`
}

// Engine runs pipelines against the database and step API.
type Engine struct {
	cfg        *config.Config
	db         *database.DB
	newInvoker InvokerFactory
	notifier   Notifier
}

// New creates an engine wired to the real step API.
func New(cfg *config.Config, db *database.DB, notifier Notifier) *Engine {
	timeout := time.Duration(cfg.StepAPI.TimeoutSeconds) * time.Second
	return &Engine{
		cfg: cfg,
		db:  db,
		newInvoker: func(rl *runlog.Logger) Invoker {
			return steps.NewClient(cfg.StepAPI.BaseURL, timeout, rl)
		},
		notifier: notifier,
	}
}

// NewWithInvoker creates an engine with a custom invoker factory.
func NewWithInvoker(cfg *config.Config, db *database.DB, factory InvokerFactory, notifier Notifier) *Engine {
	return &Engine{cfg: cfg, db: db, newInvoker: factory, notifier: notifier}
}

// run carries the per-run state the orchestrators share.
type run struct {
	article *database.Article
	req     *Request
	rl      *runlog.Logger
	inv     Invoker
	resp    *Response
	entries []usage.Entry
	// Highest percentage checkpoint written so far; checkpoints only move up.
	lastStatus string
}

// record notes a finished step and collects its usage.
func (r *run) record(m steps.StepMeta, name string) {
	r.resp.Steps = append(r.resp.Steps, StepRecord{Number: m.StepNumber, Name: name, Success: m.Success})
	r.entries = append(r.entries, m.Usage...)
}

// checkpoint persists a coarse progress status. Storage errors are logged
// and otherwise ignored: checkpoints exist for observability only.
func (e *Engine) checkpoint(r *run, status string) {
	if status == r.lastStatus {
		return
	}
	r.lastStatus = status
	if err := e.db.UpdateArticleStatus(r.article.ID, r.article.UserID, status); err != nil {
		log.Printf("article %d: checkpoint %s failed: %v", r.article.ID, status, err)
	}
}

// failStep aborts the run after a failed step: the article is marked failed,
// the failure is logged, and the logger is closed. Cleanup steps are each
// independent so one failure cannot mask another.
func (e *Engine) failStep(r *run, step int, name string) *Response {
	r.rl.LogError(fmt.Sprintf("STEP_%d_FAILED", step))
	e.markFailed(r.article)
	r.rl.LogPipelineComplete(false, fmt.Sprintf("aborted at step %d (%s)", step, name))
	r.rl.Close()
	r.resp.Success = false
	r.resp.Totals = usage.Accumulate(r.entries, e.cfg.PriceTable())
	return r.resp
}

// failValidation marks a run failed after all steps succeeded but the
// terminal output did not hold up.
func (e *Engine) failValidation(r *run, reason string) *Response {
	r.rl.LogError("VALIDATION_FAILED: " + reason)
	e.markFailed(r.article)
	r.rl.LogPipelineComplete(false, reason)
	r.rl.Close()
	r.resp.Success = false
	r.resp.Totals = usage.Accumulate(r.entries, e.cfg.PriceTable())
	return r.resp
}

func (e *Engine) markFailed(article *database.Article) {
	if err := e.db.UpdateArticleStatus(article.ID, article.UserID, database.StatusFailed); err != nil {
		log.Printf("article %d: marking failed: %v", article.ID, err)
	}
}

// notify sends the completion notification; failures are logged, never
// propagated.
func (e *Engine) notify(ctx context.Context, r *run) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.SendCompletion(ctx, r.article.Slug, r.article.Version); err != nil {
		log.Printf("article %d: completion notification failed: %v", r.article.ID, err)
		r.rl.LogError("notification failed: " + err.Error())
	}
}
