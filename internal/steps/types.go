// Package steps defines the wire contract with the content-generation step
// API and the client that invokes it.
//
// Every step is one POST to <base>/<pipeline>/<NN-step-name> with a
// step-specific JSON body. Responses carry the step's payload fields plus the
// model usage incurred. Failures (transport errors, non-2xx statuses,
// undecodable bodies) never escape the client as errors: they produce a
// result with Success=false and zero-value payload fields, and callers must
// branch on Success rather than on payload emptiness.
package steps

import "github.com/draftwire/draftwire/internal/usage"

// StepMeta is the envelope shared by every step result.
type StepMeta struct {
	ArticleID  int64         `json:"article_id"`
	StepNumber int           `json:"step_number"`
	Success    bool          `json:"success"`
	Usage      []usage.Entry `json:"usage,omitempty"`
}

// Meta satisfies the pipeline's generic view of a step result.
func (m StepMeta) Meta() StepMeta { return m }

// ---------------------------------------------------------------------------
// Digest pipeline (single source)
// ---------------------------------------------------------------------------

type ExtractQuotesRequest struct {
	ArticleID    int64  `json:"article_id"`
	SourceText   string `json:"source_text"`
	Accredit     string `json:"accredit"`
	Description  string `json:"description"`
	Instructions string `json:"instructions,omitempty"`
}

type ExtractQuotesResult struct {
	StepMeta
	Quotes string `json:"quotes"`
}

type SummarizeFactsRequest struct {
	ArticleID    int64  `json:"article_id"`
	SourceText   string `json:"source_text"`
	Quotes       string `json:"quotes"`
	Instructions string `json:"instructions,omitempty"`
}

type SummarizeFactsResult struct {
	StepMeta
	Summary string `json:"summary"`
}

type HeadlinesBlobsRequest struct {
	ArticleID          int64  `json:"article_id"`
	Summary            string `json:"summary,omitempty"`
	Quotes             string `json:"quotes,omitempty"`
	HeadlineSuggestion string `json:"headline_suggestion,omitempty"`
	BlobCount          int    `json:"blob_count"`
	Instructions       string `json:"instructions,omitempty"`
}

type HeadlinesBlobsResult struct {
	StepMeta
	Headline string   `json:"headline"`
	Blobs    []string `json:"blobs"`
}

type OutlineRequest struct {
	ArticleID   int64    `json:"article_id"`
	Headline    string   `json:"headline"`
	Blobs       []string `json:"blobs"`
	Summary     string   `json:"summary"`
	Quotes      string   `json:"quotes"`
	LengthRange string   `json:"length_range"`
}

type OutlineResult struct {
	StepMeta
	Outline string `json:"outline"`
}

type WriteArticleRequest struct {
	ArticleID    int64    `json:"article_id"`
	Headline     string   `json:"headline"`
	Blobs        []string `json:"blobs"`
	Outline      string   `json:"outline"`
	Summary      string   `json:"summary"`
	Quotes       string   `json:"quotes"`
	Accredit     string   `json:"accredit"`
	LengthRange  string   `json:"length_range"`
	Instructions string   `json:"instructions,omitempty"`
}

type ParaphraseRequest struct {
	ArticleID  int64  `json:"article_id"`
	Article    string `json:"article"`
	SourceText string `json:"source_text"`
}

type AttributionRequest struct {
	ArticleID  int64  `json:"article_id"`
	Article    string `json:"article"`
	SourceText string `json:"source_text"`
	Accredit   string `json:"accredit"`
}

// Sentence is one attributed sentence of the finished digest article.
type Sentence struct {
	Text     string `json:"text"`
	Accredit string `json:"accredit,omitempty"`
}

type AttributionResult struct {
	StepMeta
	Article   string     `json:"article"`
	Sentences []Sentence `json:"sentences,omitempty"`
}

type VerbatimRequest struct {
	ArticleID  int64    `json:"article_id"`
	SourceText string   `json:"source_text"`
	Headline   string   `json:"headline"`
	Blobs      []string `json:"blobs"`
	Accredit   string   `json:"accredit"`
}

// ArticleResult is the shared result shape for steps whose payload is the
// article text itself.
type ArticleResult struct {
	StepMeta
	Article string `json:"article"`
}

// ---------------------------------------------------------------------------
// Aggregate pipeline (multi source)
// ---------------------------------------------------------------------------

// SourceFacts carries one source through the aggregate fact-splitting steps.
type SourceFacts struct {
	Number      int    `json:"number"`
	Description string `json:"description"`
	Accredit    string `json:"accredit"`
	Text        string `json:"text"`
	IsBase      bool   `json:"is_base_source"`
	Primary     bool   `json:"is_primary_source"`
	Facts       string `json:"facts_bit_splitting,omitempty"`
	Facts2      string `json:"facts_bit_splitting_2,omitempty"`
}

type FactsBitSplittingRequest struct {
	ArticleID    int64         `json:"article_id"`
	Sources      []SourceFacts `json:"sources"`
	Instructions string        `json:"instructions,omitempty"`
}

type FactsBitSplittingResult struct {
	StepMeta
	Sources []SourceFacts `json:"sources"`
}

type AggregateHeadlinesBlobsRequest struct {
	ArticleID          int64         `json:"article_id"`
	Sources            []SourceFacts `json:"sources"`
	HeadlineSuggestion string        `json:"headline_suggestion,omitempty"`
	BlobCount          int           `json:"blob_count"`
	Instructions       string        `json:"instructions,omitempty"`
}

// Outputs accumulates the primary text output of each aggregate step. It is
// extended immutably: each With method returns a copy, so a step can only see
// the outputs of steps before it.
type Outputs struct {
	HeadlinesBlobs string `json:"headlines_blobs,omitempty"`
	Outline        string `json:"write_article_outline,omitempty"`
	Article        string `json:"write_article,omitempty"`
	Rewrite        string `json:"rewrite_article,omitempty"`
	Rewrite2       string `json:"rewrite_article_2,omitempty"`
}

func (o Outputs) WithHeadlinesBlobs(s string) Outputs { o.HeadlinesBlobs = s; return o }
func (o Outputs) WithOutline(s string) Outputs        { o.Outline = s; return o }
func (o Outputs) WithArticle(s string) Outputs        { o.Article = s; return o }
func (o Outputs) WithRewrite(s string) Outputs        { o.Rewrite = s; return o }
func (o Outputs) WithRewrite2(s string) Outputs       { o.Rewrite2 = s; return o }

type AggregateOutlineRequest struct {
	ArticleID   int64         `json:"article_id"`
	Headline    string        `json:"headline"`
	Blobs       []string      `json:"blobs"`
	Sources     []SourceFacts `json:"sources"`
	Outputs     Outputs       `json:"outputs"`
	LengthRange string        `json:"length_range"`
}

type AggregateWriteArticleRequest struct {
	ArticleID    int64         `json:"article_id"`
	Headline     string        `json:"headline"`
	Blobs        []string      `json:"blobs"`
	Sources      []SourceFacts `json:"sources"`
	Outputs      Outputs       `json:"outputs"`
	LengthRange  string        `json:"length_range"`
	Instructions string        `json:"instructions,omitempty"`
}

type RewriteArticleRequest struct {
	ArticleID int64         `json:"article_id"`
	Sources   []SourceFacts `json:"sources"`
	Outputs   Outputs       `json:"outputs"`
}

type ColorCodeRequest struct {
	ArticleID int64         `json:"article_id"`
	Article   string        `json:"article"`
	Sources   []SourceFacts `json:"sources"`
}

type ColorCodeResult struct {
	StepMeta
	Article     string `json:"article"`
	RichContent string `json:"rich_content,omitempty"`
}
