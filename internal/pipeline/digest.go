package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/draftwire/draftwire/internal/database"
	"github.com/draftwire/draftwire/internal/steps"
	"github.com/draftwire/draftwire/internal/usage"
)

// runDigest executes the single-source pipeline.
//
// Steps 1-3 always run. The flow then branches: verbatim sources go through
// a single verbatim-article step, everything else through outline, write,
// paraphrase, and sentence attribution.
func (e *Engine) runDigest(ctx context.Context, r *run) *Response {
	src := r.req.Sources[0]
	instr := r.req.Instructions

	// Step 1: extract direct quotes from the source.
	quotes := r.inv.ExtractQuotes(ctx, steps.ExtractQuotesRequest{
		ArticleID:    r.article.ID,
		SourceText:   src.SourceText,
		Accredit:     src.Accredit,
		Description:  src.Description,
		Instructions: instr.FreeText,
	})
	r.record(quotes.StepMeta, "extract-fact-quotes")
	if !quotes.Success {
		return e.failStep(r, 1, "extract-fact-quotes")
	}
	e.checkpoint(r, database.Status10)

	// Step 2: summarize the source into discrete facts.
	summary := r.inv.SummarizeFacts(ctx, steps.SummarizeFactsRequest{
		ArticleID:    r.article.ID,
		SourceText:   src.SourceText,
		Quotes:       quotes.Quotes,
		Instructions: instr.FreeText,
	})
	r.record(summary.StepMeta, "summarize-facts")
	if !summary.Success {
		return e.failStep(r, 2, "summarize-facts")
	}

	// Step 3: headline and blobs.
	hb := r.inv.HeadlinesBlobs(ctx, steps.HeadlinesBlobsRequest{
		ArticleID:          r.article.ID,
		Summary:            summary.Summary,
		Quotes:             quotes.Quotes,
		HeadlineSuggestion: r.req.Headline,
		BlobCount:          instr.BlobCount,
		Instructions:       instr.FreeText,
	})
	r.record(hb.StepMeta, "headlines-blobs")
	if !hb.Success {
		return e.failStep(r, 3, "headlines-blobs")
	}
	e.checkpoint(r, database.Status25)

	var content string
	var sentences []steps.Sentence

	if src.Verbatim {
		e.checkpoint(r, database.Status50)
		verbatim := r.inv.VerbatimArticle(ctx, steps.VerbatimRequest{
			ArticleID:  r.article.ID,
			SourceText: src.SourceText,
			Headline:   hb.Headline,
			Blobs:      hb.Blobs,
			Accredit:   src.Accredit,
		})
		r.record(verbatim.StepMeta, "verbatim-article")
		if !verbatim.Success {
			return e.failStep(r, 4, "verbatim-article")
		}
		// The article must open with the source text unchanged.
		content = verbatim.Article
		if !strings.HasPrefix(content, src.SourceText) {
			content = src.SourceText + "\n\n" + content
		}
	} else {
		// Step 4: outline.
		outline := r.inv.Outline(ctx, steps.OutlineRequest{
			ArticleID:   r.article.ID,
			Headline:    hb.Headline,
			Blobs:       hb.Blobs,
			Summary:     summary.Summary,
			Quotes:      quotes.Quotes,
			LengthRange: instr.LengthRange,
		})
		r.record(outline.StepMeta, "article-outline")
		if !outline.Success {
			return e.failStep(r, 4, "article-outline")
		}

		// Step 5: write the article.
		article := r.inv.WriteArticle(ctx, steps.WriteArticleRequest{
			ArticleID:    r.article.ID,
			Headline:     hb.Headline,
			Blobs:        hb.Blobs,
			Outline:      outline.Outline,
			Summary:      summary.Summary,
			Quotes:       quotes.Quotes,
			Accredit:     src.Accredit,
			LengthRange:  instr.LengthRange,
			Instructions: instr.FreeText,
		})
		r.record(article.StepMeta, "write-article")
		if !article.Success {
			return e.failStep(r, 5, "write-article")
		}
		e.checkpoint(r, database.Status50)

		// Step 6: paraphrase away source-text overlap.
		paraphrased := r.inv.Paraphrase(ctx, steps.ParaphraseRequest{
			ArticleID:  r.article.ID,
			Article:    article.Article,
			SourceText: src.SourceText,
		})
		r.record(paraphrased.StepMeta, "paraphrase-article")
		if !paraphrased.Success {
			return e.failStep(r, 6, "paraphrase-article")
		}
		e.checkpoint(r, database.Status75)

		// Step 7: per-sentence attribution.
		attributed := r.inv.SentenceAttribution(ctx, steps.AttributionRequest{
			ArticleID:  r.article.ID,
			Article:    paraphrased.Article,
			SourceText: src.SourceText,
			Accredit:   src.Accredit,
		})
		r.record(attributed.StepMeta, "sentence-attribution")
		if !attributed.Success {
			return e.failStep(r, 7, "sentence-attribution")
		}
		content = attributed.Article
		sentences = attributed.Sentences
	}

	e.checkpoint(r, database.Status90)

	// Terminal validation: individual step success is not enough.
	if strings.TrimSpace(content) == "" {
		return e.failValidation(r, "final content is empty")
	}
	if strings.TrimSpace(hb.Headline) == "" || len(hb.Blobs) == 0 {
		return e.failValidation(r, "headline or blobs missing")
	}

	richContent := ""
	if len(sentences) > 0 {
		if data, err := json.Marshal(sentences); err == nil {
			richContent = string(data)
		}
	}

	if err := e.db.UpdateArticleResults(r.article.ID, r.article.UserID, true,
		hb.Headline, hb.Blobs, content, richContent); err != nil {
		return e.failValidation(r, "persisting results: "+err.Error())
	}

	e.notify(ctx, r)
	r.rl.LogPipelineComplete(true, "digest pipeline finished")
	r.rl.Close()

	r.resp.Success = true
	r.resp.Headline = hb.Headline
	r.resp.Blobs = hb.Blobs
	r.resp.Content = content
	r.resp.RichContent = richContent
	r.resp.Totals = usage.Accumulate(r.entries, e.cfg.PriceTable())
	return r.resp
}
