package database

// Article statuses. The percentage statuses are coarse progress checkpoints
// written during a pipeline run; they only ever move forward.
const (
	StatusPending   = "pending"
	StatusStarted   = "started"
	Status10        = "10%"
	Status25        = "25%"
	Status50        = "50%"
	Status75        = "75%"
	Status90        = "90%"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusArchived  = "archived"
)

// Source type discriminators for articles.
const (
	SourceTypeSingle = "single"
	SourceTypeMulti  = "multi"
)

// Article is one persisted version of a generated article. Versions of the
// same lineage share (org_id, slug) and carry sequential version numbers.
type Article struct {
	ID          int64
	OrgID       string
	UserID      string
	Slug        string
	Version     int
	SourceType  string
	Status      string
	Headline    *string
	Blobs       []string
	Content     *string
	RichContent *string
	RequestJSON string
	CreatedAt   *string
	UpdatedAt   *string
}

// Run records the cost and token totals of a single pipeline execution.
type Run struct {
	ID           int64
	ArticleID    int64
	OrgID        string
	UserID       string
	CostUSD      float64
	InputTokens  int64
	OutputTokens int64
	CreatedAt    *string
	UpdatedAt    *string
}

// Stats summarizes database contents for the status command.
type Stats struct {
	TotalArticles     int
	CompletedArticles int
	FailedArticles    int
	InProgress        int
	TotalRuns         int
	TotalCostUSD      float64
}
