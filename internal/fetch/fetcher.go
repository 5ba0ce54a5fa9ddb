package fetch

import (
	"context"
	"log"
	"sync"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/vhireport/internal/database"
	"github.com/TobiSchelling/vhireport/internal/region"
	"github.com/TobiSchelling/vhireport/internal/store"
)

// Result holds the results of a fetch run.
type Result struct {
	RunID    string
	Fetched  int
	Skipped  int
	Failed   int
	Failures map[string]error
}

// Fetcher downloads every registered region that is not stored yet.
type Fetcher struct {
	feed        Feed
	store       *store.Store
	registry    *region.Registry
	db          *database.DB
	clock       clockwork.Clock
	concurrency int

	mu sync.Mutex
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLedger records runs and attempts in db.
func WithLedger(db *database.DB) Option {
	return func(f *Fetcher) { f.db = db }
}

// WithClock sets the time source for file names and ledger entries.
func WithClock(c clockwork.Clock) Option {
	return func(f *Fetcher) { f.clock = c }
}

// WithConcurrency bounds the number of regions fetched at once.
func WithConcurrency(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// NewFetcher creates a fetcher writing into st.
func NewFetcher(feed Feed, st *store.Store, registry *region.Registry, opts ...Option) *Fetcher {
	f := &Fetcher{
		feed:        feed,
		store:       st,
		registry:    registry,
		clock:       clockwork.NewRealClock(),
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchAll fetches every region missing from the store. A failing region is
// logged and counted; it never stops the others.
func (f *Fetcher) FetchAll(ctx context.Context) *Result {
	result := &Result{Failures: make(map[string]error)}

	if f.db != nil {
		runID, err := f.db.StartRun(f.clock.Now())
		if err != nil {
			log.Printf("Error starting ledger run: %v", err)
		} else {
			result.RunID = runID
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for _, r := range f.registry.All() {
		g.Go(func() error {
			f.fetchRegion(ctx, r, result)
			return nil
		})
	}
	g.Wait()

	if f.db != nil && result.RunID != "" {
		if err := f.db.FinishRun(result.RunID, f.clock.Now(), result.Fetched, result.Skipped, result.Failed); err != nil {
			log.Printf("Error finishing ledger run: %v", err)
		}
	}

	log.Printf("Fetch complete: %d fetched, %d skipped, %d failed", result.Fetched, result.Skipped, result.Failed)
	return result
}

func (f *Fetcher) fetchRegion(ctx context.Context, r region.Region, result *Result) {
	attempt := database.Attempt{
		RunID:      result.RunID,
		RegionID:   r.ID,
		RegionName: r.Name,
	}

	has, err := f.store.Has(r.Name)
	if err != nil {
		f.fail(result, &attempt, err)
		return
	}
	if has {
		log.Printf("Skipped: %s (already stored)", r.Name)
		attempt.Status = database.StatusSkipped
		f.finish(result, attempt)
		return
	}

	data, err := f.feed.Fetch(ctx, r.ID)
	if err != nil {
		f.fail(result, &attempt, err)
		return
	}

	path, err := f.store.Write(r.Name, data, f.clock.Now())
	if err != nil {
		f.fail(result, &attempt, err)
		return
	}
	log.Printf("Fetched: %s", path)

	attempt.Status = database.StatusFetched
	attempt.FilePath = &path
	attempt.Bytes = len(data)
	f.finish(result, attempt)
}

func (f *Fetcher) fail(result *Result, attempt *database.Attempt, err error) {
	log.Printf("Failed to fetch %s: %v", attempt.RegionName, err)
	msg := err.Error()
	attempt.Status = database.StatusFailed
	attempt.Error = &msg

	f.mu.Lock()
	result.Failures[attempt.RegionName] = err
	f.mu.Unlock()
	f.finish(result, *attempt)
}

func (f *Fetcher) finish(result *Result, attempt database.Attempt) {
	f.mu.Lock()
	switch attempt.Status {
	case database.StatusFetched:
		result.Fetched++
	case database.StatusSkipped:
		result.Skipped++
	case database.StatusFailed:
		result.Failed++
	}
	f.mu.Unlock()

	if f.db == nil || result.RunID == "" {
		return
	}
	attempt.AttemptedAt = database.FormatTime(f.clock.Now())
	if _, err := f.db.RecordAttempt(attempt); err != nil {
		log.Printf("Error recording attempt: %v", err)
	}
}
