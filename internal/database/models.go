package database

// Attempt statuses.
const (
	StatusFetched = "fetched"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Run is one invocation of the fetcher.
type Run struct {
	ID         string
	StartedAt  string
	FinishedAt *string
	Fetched    int
	Skipped    int
	Failed     int
}

// Attempt records what happened to one region during a run.
type Attempt struct {
	ID          int64
	RunID       string
	RegionID    int
	RegionName  string
	Status      string // "fetched", "skipped" or "failed"
	FilePath    *string
	Bytes       int
	Error       *string
	AttemptedAt string
}

// Stats contains aggregate ledger statistics.
type Stats struct {
	Runs           int
	Attempts       int
	Fetched        int
	Skipped        int
	Failed         int
	RegionsFetched int
	LastRunID      string
	LastRunStarted string
}
