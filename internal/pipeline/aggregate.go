package pipeline

import (
	"context"
	"strings"

	"github.com/draftwire/draftwire/internal/database"
	"github.com/draftwire/draftwire/internal/steps"
	"github.com/draftwire/draftwire/internal/usage"
)

// SkippedFactsSentinel marks a source's second fact-splitting field when the
// step was skipped because no source is a primary source.
const SkippedFactsSentinel = "--"

// runAggregate executes the multi-source pipeline: eight steps, threading a
// growing Outputs accumulator through steps 4-8.
func (e *Engine) runAggregate(ctx context.Context, r *run) *Response {
	instr := r.req.Instructions
	sources := sourceFacts(r.req.Sources)

	// Step 1: split each source into attributable fact bits.
	split := r.inv.FactsBitSplitting(ctx, steps.FactsBitSplittingRequest{
		ArticleID:    r.article.ID,
		Sources:      sources,
		Instructions: instr.FreeText,
	})
	r.record(split.StepMeta, "facts-bit-splitting")
	if !split.Success {
		return e.failStep(r, 1, "facts-bit-splitting")
	}
	if len(split.Sources) == len(sources) {
		sources = split.Sources
	}
	e.checkpoint(r, database.Status10)

	// Step 2: second splitting pass, only meaningful when a primary source
	// needs inline crediting. Without one the step is skipped outright and
	// every source gets the sentinel fill-in.
	if anyPrimary(r.req.Sources) {
		split2 := r.inv.FactsBitSplitting2(ctx, steps.FactsBitSplittingRequest{
			ArticleID:    r.article.ID,
			Sources:      sources,
			Instructions: instr.FreeText,
		})
		r.record(split2.StepMeta, "facts-bit-splitting-2")
		if !split2.Success {
			return e.failStep(r, 2, "facts-bit-splitting-2")
		}
		if len(split2.Sources) == len(sources) {
			sources = split2.Sources
		}
	} else {
		for i := range sources {
			sources[i].Facts2 = SkippedFactsSentinel
		}
		r.rl.LogStepComplete(2, "facts-bit-splitting-2", "skipped: no primary source flagged")
		r.record(steps.StepMeta{ArticleID: r.article.ID, StepNumber: 2, Success: true}, "facts-bit-splitting-2")
	}

	// Step 3: headline and blobs.
	hb := r.inv.AggregateHeadlinesBlobs(ctx, steps.AggregateHeadlinesBlobsRequest{
		ArticleID:          r.article.ID,
		Sources:            sources,
		HeadlineSuggestion: r.req.Headline,
		BlobCount:          instr.BlobCount,
		Instructions:       instr.FreeText,
	})
	r.record(hb.StepMeta, "headlines-blobs")
	if !hb.Success {
		return e.failStep(r, 3, "headlines-blobs")
	}
	e.checkpoint(r, database.Status25)

	outputs := steps.Outputs{}.WithHeadlinesBlobs(hb.Headline + "\n" + strings.Join(hb.Blobs, "\n"))

	// Step 4: outline.
	outline := r.inv.AggregateOutline(ctx, steps.AggregateOutlineRequest{
		ArticleID:   r.article.ID,
		Headline:    hb.Headline,
		Blobs:       hb.Blobs,
		Sources:     sources,
		Outputs:     outputs,
		LengthRange: instr.LengthRange,
	})
	r.record(outline.StepMeta, "article-outline")
	if !outline.Success {
		return e.failStep(r, 4, "article-outline")
	}
	outputs = outputs.WithOutline(outline.Outline)
	e.checkpoint(r, database.Status50)

	// Step 5: write the article.
	written := r.inv.AggregateWriteArticle(ctx, steps.AggregateWriteArticleRequest{
		ArticleID:    r.article.ID,
		Headline:     hb.Headline,
		Blobs:        hb.Blobs,
		Sources:      sources,
		Outputs:      outputs,
		LengthRange:  instr.LengthRange,
		Instructions: instr.FreeText,
	})
	r.record(written.StepMeta, "write-article")
	if !written.Success {
		return e.failStep(r, 5, "write-article")
	}
	outputs = outputs.WithArticle(written.Article)

	// Step 6: first rewrite.
	rewrite := r.inv.RewriteArticle(ctx, steps.RewriteArticleRequest{
		ArticleID: r.article.ID,
		Sources:   sources,
		Outputs:   outputs,
	})
	r.record(rewrite.StepMeta, "rewrite-article")
	if !rewrite.Success {
		return e.failStep(r, 6, "rewrite-article")
	}
	outputs = outputs.WithRewrite(rewrite.Article)
	e.checkpoint(r, database.Status75)

	// Step 7: second rewrite.
	rewrite2 := r.inv.RewriteArticle2(ctx, steps.RewriteArticleRequest{
		ArticleID: r.article.ID,
		Sources:   sources,
		Outputs:   outputs,
	})
	r.record(rewrite2.StepMeta, "rewrite-article-2")
	if !rewrite2.Success {
		return e.failStep(r, 7, "rewrite-article-2")
	}
	outputs = outputs.WithRewrite2(rewrite2.Article)
	e.checkpoint(r, database.Status90)

	// Step 8: color-code attributions in the final article.
	colored := r.inv.ColorCode(ctx, steps.ColorCodeRequest{
		ArticleID: r.article.ID,
		Article:   rewrite2.Article,
		Sources:   sources,
	})
	r.record(colored.StepMeta, "color-code-article")
	if !colored.Success {
		return e.failStep(r, 8, "color-code-article")
	}

	content := colored.Article

	// Verbatim opening: source 1's raw text leads the article unchanged.
	if r.req.Sources[0].Verbatim && !strings.HasPrefix(content, r.req.Sources[0].SourceText) {
		content = r.req.Sources[0].SourceText + "\n\n" + content
	}

	// Terminal validation.
	if len(content) < e.cfg.Pipeline.MinArticleLength {
		return e.failValidation(r, "final article below minimum length")
	}
	if strings.TrimSpace(hb.Headline) == "" || len(hb.Blobs) == 0 {
		return e.failValidation(r, "headline or blobs missing")
	}

	if err := e.db.UpdateArticleResults(r.article.ID, r.article.UserID, true,
		hb.Headline, hb.Blobs, content, colored.RichContent); err != nil {
		return e.failValidation(r, "persisting results: "+err.Error())
	}

	e.notify(ctx, r)
	r.rl.LogPipelineComplete(true, "aggregate pipeline finished")
	r.rl.Close()

	r.resp.Success = true
	r.resp.Headline = hb.Headline
	r.resp.Blobs = hb.Blobs
	r.resp.Content = content
	r.resp.RichContent = colored.RichContent
	r.resp.Totals = usage.Accumulate(r.entries, e.cfg.PriceTable())
	return r.resp
}
