package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/draftwire/draftwire/internal/database"
	"github.com/draftwire/draftwire/internal/runlog"
	"github.com/draftwire/draftwire/internal/usage"
)

// ExecuteByArticleID runs the pipeline for a persisted article. It never
// returns an error and never panics: every failure, including panics from
// collaborators, becomes a structured Result.
func (e *Engine) ExecuteByArticleID(ctx context.Context, articleID int64) (result Result) {
	result = Result{ArticleID: articleID}

	article, err := e.db.GetArticle(articleID)
	if err != nil {
		result.Error = fmt.Sprintf("loading article: %v", err)
		return result
	}
	if article == nil {
		result.Error = "Article not found"
		return result
	}

	req, err := ParseRequest(article.RequestJSON)
	if err != nil {
		e.markFailed(article)
		result.Error = err.Error()
		return result
	}

	if article.SourceType != database.SourceTypeSingle && article.SourceType != database.SourceTypeMulti {
		e.markFailed(article)
		result.Error = fmt.Sprintf("unknown source type %q", article.SourceType)
		return result
	}

	rl, err := runlog.New(e.cfg.GetDataDir(), article.UserID, article.Slug)
	if err != nil {
		// The run proceeds without an audit log rather than failing.
		log.Printf("article %d: opening run log: %v", articleID, err)
		rl = nil
	}
	rl.LogInitialRequest(req)

	if err := e.db.UpdateArticleStatus(article.ID, article.UserID, database.StatusStarted); err != nil {
		result.Error = fmt.Sprintf("marking started: %v", err)
		rl.LogError(result.Error)
		rl.Close()
		return result
	}

	// The run ledger entry exists before any step runs and is updated once
	// at the end, whatever happens in between.
	runID, err := e.db.CreateRun(article.ID, article.OrgID, article.UserID)
	if err != nil {
		log.Printf("article %d: creating run record: %v", articleID, err)
		runID = 0
	}

	r := &run{
		article: article,
		req:     req,
		rl:      rl,
		inv:     e.newInvoker(rl),
		resp:    &Response{},
	}

	resp := e.dispatch(ctx, article, r)

	if runID != 0 {
		if err := e.db.UpdateRunTotals(runID, resp.Totals.CostUSD, resp.Totals.InputTokens, resp.Totals.OutputTokens); err != nil {
			log.Printf("article %d: updating run %d: %v", articleID, runID, err)
		}
	}

	result.Success = resp.Success
	if !resp.Success && result.Error == "" {
		result.Error = "pipeline failed"
	}
	if resp.Success {
		result.Error = ""
	}
	return result
}

// dispatch routes to the orchestrator for the article's source type,
// converting panics into failed responses with best-effort cleanup.
func (e *Engine) dispatch(ctx context.Context, article *database.Article, r *run) (resp *Response) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("article %d: pipeline panic: %v", article.ID, rec)
			// Each cleanup is independent so a secondary failure cannot
			// mask the primary one.
			func() {
				defer func() { recover() }()
				e.markFailed(article)
			}()
			func() {
				defer func() { recover() }()
				r.rl.LogError(fmt.Sprintf("pipeline panic: %v", rec))
				r.rl.Close()
			}()
			resp = &Response{Success: false, Totals: usage.Accumulate(r.entries, e.cfg.PriceTable())}
		}
	}()

	switch article.SourceType {
	case database.SourceTypeSingle:
		return e.runDigest(ctx, r)
	case database.SourceTypeMulti:
		return e.runAggregate(ctx, r)
	default:
		// Unreachable: the router rejects unknown source types up front.
		r.rl.Close()
		return &Response{Success: false}
	}
}
