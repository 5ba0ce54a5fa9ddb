package vhi

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/TobiSchelling/vhireport/internal/region"
)

// Source is the content of one persisted per-region file together with the
// name its region is extracted from.
type Source struct {
	Name string
	Body io.Reader
}

// NameExtractor maps a source name to the region name it embeds.
type NameExtractor func(name string) (string, error)

// LoadStats counts what happened during a load.
type LoadStats struct {
	Files       int
	FailedFiles int
	Rows        int
	Dropped     int
}

// Loader turns per-region sources into one observation collection.
type Loader struct {
	registry *region.Registry
	extract  NameExtractor
	debug    bool
}

// NewLoader creates a loader resolving regions against registry. A nil
// extractor falls back to ParseSourceName.
func NewLoader(registry *region.Registry, extract NameExtractor) *Loader {
	if extract == nil {
		extract = ParseSourceName
	}
	return &Loader{registry: registry, extract: extract}
}

// SetDebug enables per-file diagnostics.
func (l *Loader) SetDebug(debug bool) {
	l.debug = debug
}

// Load parses every source. A source that cannot be attributed to a
// registered region contributes nothing; its error is joined into the
// returned error while the observations of the other sources are still
// returned. Order within a source is preserved.
func (l *Loader) Load(sources []Source) ([]Observation, LoadStats, error) {
	var (
		all   []Observation
		stats LoadStats
		errs  []error
	)

	for _, src := range sources {
		stats.Files++
		obs, dropped, err := l.loadOne(src)
		if err != nil {
			stats.FailedFiles++
			errs = append(errs, err)
			log.Printf("Skipping %s: %v", src.Name, err)
			continue
		}
		stats.Rows += len(obs)
		stats.Dropped += dropped
		if l.debug {
			log.Printf("Loaded %d rows from %s (%d dropped)", len(obs), src.Name, dropped)
		}
		all = append(all, obs...)
	}

	return all, stats, errors.Join(errs...)
}

func (l *Loader) loadOne(src Source) ([]Observation, int, error) {
	name, err := l.extract(src.Name)
	if err != nil {
		return nil, 0, err
	}

	id, err := l.registry.IDOf(name)
	if err != nil {
		return nil, 0, &UnrecognizedSourceError{Source: src.Name, Reason: "region not registered", Err: err}
	}

	raws, dropped, err := ParseRows(src.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("parsing %s: %w", src.Name, err)
	}

	obs := make([]Observation, 0, len(raws))
	for _, raw := range raws {
		o, ok := Normalize(raw)
		if !ok {
			dropped++
			continue
		}
		o.RegionID = id
		o.RegionName = name
		obs = append(obs, o)
	}
	return obs, dropped, nil
}
