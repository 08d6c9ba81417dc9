package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/draftwire/draftwire/internal/database"
	"github.com/draftwire/draftwire/internal/steps"
)

// Request type discriminators (mirrored in Article.SourceType).
const (
	TypeSingle = database.SourceTypeSingle
	TypeMulti  = database.SourceTypeMulti
)

// The allowed article length bands.
var LengthRanges = []string{"300-500", "500-700", "700-1000", "1000-1500"}

// MaxSources is the most sources an aggregate request may carry.
const MaxSources = 6

// Metadata identifies the owning article lineage.
type Metadata struct {
	UserID         string `json:"user_id"`
	OrgID          string `json:"org_id"`
	CurrentVersion *int   `json:"current_version"`
}

// Instructions are the editor's generation controls.
type Instructions struct {
	FreeText    string `json:"free_text,omitempty"`
	BlobCount   int    `json:"blob_count"`
	LengthRange string `json:"length_range"`
}

// Source is one raw news source feeding a pipeline.
type Source struct {
	Description string `json:"description,omitempty"`
	Accredit    string `json:"accredit"`
	SourceText  string `json:"source_text"`
	URL         string `json:"url,omitempty"`
	Verbatim    bool   `json:"use_verbatim"`
	Primary     bool   `json:"is_primary_source"`
	// Aggregate only.
	Number int  `json:"number,omitempty"`
	IsBase bool `json:"is_base_source,omitempty"`
}

// Request describes one article-generation job. Type selects the pipeline:
// "single" runs the digest flow over Sources[0]; "multi" runs the aggregate
// flow over all sources, importance-ranked by position.
type Request struct {
	Type         string       `json:"type"`
	Metadata     Metadata     `json:"metadata"`
	Slug         string       `json:"slug"`
	Headline     string       `json:"headline,omitempty"`
	Instructions Instructions `json:"instructions"`
	Sources      []Source     `json:"sources"`
}

// ParseRequest decodes a stored request and validates it.
func ParseRequest(data string) (*Request, error) {
	var req Request
	if err := json.Unmarshal([]byte(data), &req); err != nil {
		return nil, fmt.Errorf("decoding pipeline request: %w", err)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// Validate checks the structural invariants of a request.
func (r *Request) Validate() error {
	if r.Type != TypeSingle && r.Type != TypeMulti {
		return fmt.Errorf("unknown request type %q", r.Type)
	}
	if len(r.Sources) == 0 {
		return fmt.Errorf("request has no sources")
	}
	if r.Type == TypeSingle && len(r.Sources) != 1 {
		return fmt.Errorf("single-source request has %d sources", len(r.Sources))
	}
	if len(r.Sources) > MaxSources {
		return fmt.Errorf("too many sources: %d (max %d)", len(r.Sources), MaxSources)
	}
	if r.Sources[0].SourceText == "" {
		return fmt.Errorf("source 1 has no text")
	}
	if r.Instructions.BlobCount < 1 || r.Instructions.BlobCount > 6 {
		return fmt.Errorf("blob count %d out of range 1..6", r.Instructions.BlobCount)
	}
	if r.Instructions.LengthRange != "" && !validLengthRange(r.Instructions.LengthRange) {
		return fmt.Errorf("unknown length range %q", r.Instructions.LengthRange)
	}
	return nil
}

func validLengthRange(s string) bool {
	for _, lr := range LengthRanges {
		if s == lr {
			return true
		}
	}
	return false
}

// CreateArticle persists a new pending article version for the request.
func CreateArticle(db *database.DB, req *Request) (*database.Article, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	return db.CreateArticle(req.Metadata.OrgID, req.Metadata.UserID, req.Slug, req.Type, string(data))
}

// sourceFacts converts request sources to the aggregate wire shape,
// numbering them by position when the editor did not.
func sourceFacts(sources []Source) []steps.SourceFacts {
	out := make([]steps.SourceFacts, len(sources))
	for i, s := range sources {
		number := s.Number
		if number == 0 {
			number = i + 1
		}
		out[i] = steps.SourceFacts{
			Number:      number,
			Description: s.Description,
			Accredit:    s.Accredit,
			Text:        s.SourceText,
			IsBase:      s.IsBase,
			Primary:     s.Primary,
		}
	}
	return out
}

// anyPrimary reports whether any source is flagged as a primary source.
func anyPrimary(sources []Source) bool {
	for _, s := range sources {
		if s.Primary {
			return true
		}
	}
	return false
}
