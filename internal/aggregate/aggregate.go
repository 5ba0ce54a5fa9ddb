// Package aggregate computes the VHI summaries over a loaded dataset. Every
// function is a pure query over its input.
package aggregate

import (
	"sort"

	"github.com/TobiSchelling/vhireport/internal/vhi"
)

// RegionYearStats summarizes VHI for one region in one year.
type RegionYearStats struct {
	Region string
	Year   string
	Mean   float64
	Min    float64
	Max    float64
	Count  int
}

// Projection is the subset of an observation shown in year listings.
type Projection struct {
	RegionID   int
	RegionName string
	VHI        float64
	Year       string
	Week       int
}

type regionYear struct {
	region string
	year   string
}

type accumulator struct {
	sum   float64
	count int
	min   float64
	max   float64
}

func (a *accumulator) add(v float64) {
	if a.count == 0 || v < a.min {
		a.min = v
	}
	if a.count == 0 || v > a.max {
		a.max = v
	}
	a.sum += v
	a.count++
}

func (a *accumulator) mean() float64 {
	return a.sum / float64(a.count)
}

// StatsByRegionYear returns mean, min and max VHI per (region, year),
// ordered by region then year. The -1 sentinel is an ordinary value here.
func StatsByRegionYear(obs []vhi.Observation) []RegionYearStats {
	groups := make(map[regionYear]*accumulator)
	for _, o := range obs {
		key := regionYear{region: o.RegionName, year: o.Year}
		acc, ok := groups[key]
		if !ok {
			acc = &accumulator{}
			groups[key] = acc
		}
		acc.add(o.VHI)
	}

	out := make([]RegionYearStats, 0, len(groups))
	for key, acc := range groups {
		out = append(out, RegionYearStats{
			Region: key.region,
			Year:   key.year,
			Mean:   acc.mean(),
			Min:    acc.min,
			Max:    acc.max,
			Count:  acc.count,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Region != out[j].Region {
			return out[i].Region < out[j].Region
		}
		return out[i].Year < out[j].Year
	})
	return out
}

// ObservationsForYear returns the observations whose year equals year
// exactly, in input order.
func ObservationsForYear(obs []vhi.Observation, year string) []Projection {
	return ObservationsForYears(obs, []string{year})
}

// ObservationsForYears returns the observations whose year is one of years,
// in input order. Years are compared as text.
func ObservationsForYears(obs []vhi.Observation, years []string) []Projection {
	want := make(map[string]struct{}, len(years))
	for _, y := range years {
		want[y] = struct{}{}
	}

	out := []Projection{}
	for _, o := range obs {
		if _, ok := want[o.Year]; !ok {
			continue
		}
		out = append(out, project(o))
	}
	return out
}

func project(o vhi.Observation) Projection {
	return Projection{
		RegionID:   o.RegionID,
		RegionName: o.RegionName,
		VHI:        o.VHI,
		Year:       o.Year,
		Week:       o.Week,
	}
}
