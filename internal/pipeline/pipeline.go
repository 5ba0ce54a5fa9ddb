package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/TobiSchelling/vhireport/internal/aggregate"
	"github.com/TobiSchelling/vhireport/internal/config"
	"github.com/TobiSchelling/vhireport/internal/database"
	"github.com/TobiSchelling/vhireport/internal/fetch"
	"github.com/TobiSchelling/vhireport/internal/region"
	"github.com/TobiSchelling/vhireport/internal/render"
	"github.com/TobiSchelling/vhireport/internal/store"
	"github.com/TobiSchelling/vhireport/internal/vhi"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Reports holds the four aggregation results of one run.
type Reports struct {
	Stats    []aggregate.RegionYearStats
	Year     string
	ForYear  []aggregate.Projection
	Years    []string
	ForYears []aggregate.Projection
	Drought  []aggregate.DroughtRow
}

// Tables returns the reports in display order.
func (r Reports) Tables() []render.Table {
	return []render.Table{
		render.StatsTable(r.Stats),
		render.ProjectionTable("year_"+r.Year, "VHI in "+r.Year, r.ForYear),
		render.ProjectionTable("years", "VHI in "+strings.Join(r.Years, ", "), r.ForYears),
		render.DroughtTable(r.Drought),
	}
}

// Result holds the results of a full pipeline run.
type Result struct {
	Steps   []StepResult
	Reports *Reports
}

// Pipeline orchestrates fetch, load and aggregation.
type Pipeline struct {
	cfg      *config.Config
	registry *region.Registry
	store    *store.Store
	feed     fetch.Feed
	db       *database.DB
}

// New creates a pipeline. db may be nil to run without a ledger.
func New(cfg *config.Config, registry *region.Registry, st *store.Store, feed fetch.Feed, db *database.DB) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		registry: registry,
		store:    st,
		feed:     feed,
		db:       db,
	}
}

// Ledger returns the fetch ledger, or nil.
func (p *Pipeline) Ledger() *database.DB {
	return p.db
}

// DroughtRule returns the configured drought rule. Unless the config pins a
// region count, the share is taken of the registry size.
func (p *Pipeline) DroughtRule() aggregate.DroughtRule {
	rule := aggregate.DefaultDroughtRule(p.registry.Len())
	d := p.cfg.Drought
	rule.MaxVHI = d.MaxVHI
	rule.MissingVHI = d.MissingVHI
	rule.MinRegionShare = d.MinRegionShare
	if d.RegionCount > 0 {
		rule.RegionCount = d.RegionCount
	}
	return rule
}

// Run executes fetch, load and aggregate. Partial fetch or load failures
// are reported in their step and the run continues with what is available.
func (p *Pipeline) Run(ctx context.Context, year string, years []string) *Result {
	r := &Result{}

	r.Steps = append(r.Steps, p.runFetch(ctx))

	obs, step := p.runLoad()
	r.Steps = append(r.Steps, step)
	if obs == nil && step.Err != nil {
		return r
	}

	log.Println("Step 3/3: Aggregating...")
	reports := p.Reports(obs, year, years)
	r.Reports = &reports
	r.Steps = append(r.Steps, StepResult{
		Name: "Aggregate",
		Summary: fmt.Sprintf("%d region-years, %d rows for %s, %d rows for %v, %d drought rows",
			len(reports.Stats), len(reports.ForYear), year, len(reports.ForYears), years, len(reports.Drought)),
	})
	return r
}

// Fetch runs only the fetch step.
func (p *Pipeline) Fetch(ctx context.Context) *fetch.Result {
	opts := []fetch.Option{fetch.WithConcurrency(p.cfg.Source.Concurrency)}
	if p.db != nil {
		opts = append(opts, fetch.WithLedger(p.db))
	}
	fetcher := fetch.NewFetcher(p.feed, p.store, p.registry, opts...)
	return fetcher.FetchAll(ctx)
}

// Dataset loads every stored file. Observations of loadable files are
// returned even when the error is non-nil.
func (p *Pipeline) Dataset() ([]vhi.Observation, vhi.LoadStats, error) {
	sources, closeAll, err := p.store.Sources()
	if err != nil {
		return nil, vhi.LoadStats{}, err
	}
	defer closeAll()

	loader := vhi.NewLoader(p.registry, vhi.ParseSourceName)
	loader.SetDebug(p.cfg.Logging.Debug())
	return loader.Load(sources)
}

// Reports computes the four aggregation results.
func (p *Pipeline) Reports(obs []vhi.Observation, year string, years []string) Reports {
	return Reports{
		Stats:    aggregate.StatsByRegionYear(obs),
		Year:     year,
		ForYear:  aggregate.ObservationsForYear(obs, year),
		Years:    years,
		ForYears: aggregate.ObservationsForYears(obs, years),
		Drought:  aggregate.DroughtReport(obs, p.DroughtRule()),
	}
}

func (p *Pipeline) runFetch(ctx context.Context) StepResult {
	log.Println("Step 1/3: Fetching regions...")
	result := p.Fetch(ctx)
	return StepResult{
		Name:    "Fetch",
		Summary: fmt.Sprintf("Fetched %d regions, %d already stored, %d failed", result.Fetched, result.Skipped, result.Failed),
	}
}

func (p *Pipeline) runLoad() ([]vhi.Observation, StepResult) {
	log.Println("Step 2/3: Loading stored files...")
	obs, stats, err := p.Dataset()
	step := StepResult{
		Name: "Load",
		Summary: fmt.Sprintf("Loaded %d observations from %d files (%d rows dropped, %d files rejected)",
			stats.Rows, stats.Files, stats.Dropped, stats.FailedFiles),
		Err: err,
	}
	return obs, step
}
