package aggregate

import (
	"sort"

	"github.com/TobiSchelling/vhireport/internal/vhi"
)

// DroughtRule parameterizes the critical drought detection.
type DroughtRule struct {
	// MaxVHI is the inclusive upper bound of extreme drought.
	MaxVHI float64
	// MissingVHI is the exclusive lower bound; the provider's missing-data
	// sentinel sits exactly on it.
	MissingVHI float64
	// MinRegionShare is the fraction of RegionCount that must be exceeded
	// by the number of distinct drought regions in a year.
	MinRegionShare float64
	RegionCount    int
}

// DefaultDroughtRule returns the extreme drought rule: VHI in (-1, 15] in
// more than 20% of regionCount regions.
func DefaultDroughtRule(regionCount int) DroughtRule {
	return DroughtRule{
		MaxVHI:         15,
		MissingVHI:     -1,
		MinRegionShare: 0.2,
		RegionCount:    regionCount,
	}
}

// Threshold is the distinct-region count a year has to exceed.
func (r DroughtRule) Threshold() float64 {
	return float64(r.RegionCount) * r.MinRegionShare
}

func (r DroughtRule) extreme(v float64) bool {
	return v <= r.MaxVHI && v > r.MissingVHI
}

// DroughtRow is the mean VHI of the extreme drought observations of one
// region in a critical year.
type DroughtRow struct {
	Year    string
	Region  string
	MeanVHI float64
	Weeks   int
}

// CriticalYears returns, ordered, the years in which more than the rule's
// threshold of distinct regions had an extreme drought observation.
func CriticalYears(obs []vhi.Observation, rule DroughtRule) []string {
	regionsByYear := make(map[string]map[string]struct{})
	for _, o := range obs {
		if !rule.extreme(o.VHI) {
			continue
		}
		regions, ok := regionsByYear[o.Year]
		if !ok {
			regions = make(map[string]struct{})
			regionsByYear[o.Year] = regions
		}
		regions[o.RegionName] = struct{}{}
	}

	threshold := rule.Threshold()
	var years []string
	for year, regions := range regionsByYear {
		if float64(len(regions)) > threshold {
			years = append(years, year)
		}
	}
	sort.Strings(years)
	return years
}

// DroughtReport returns, for every critical year, the mean VHI of each
// region's extreme drought observations, ordered by year then region. It is
// empty when no year is critical.
func DroughtReport(obs []vhi.Observation, rule DroughtRule) []DroughtRow {
	critical := make(map[string]struct{})
	for _, y := range CriticalYears(obs, rule) {
		critical[y] = struct{}{}
	}

	groups := make(map[regionYear]*accumulator)
	for _, o := range obs {
		if !rule.extreme(o.VHI) {
			continue
		}
		if _, ok := critical[o.Year]; !ok {
			continue
		}
		key := regionYear{region: o.RegionName, year: o.Year}
		acc, ok := groups[key]
		if !ok {
			acc = &accumulator{}
			groups[key] = acc
		}
		acc.add(o.VHI)
	}

	out := make([]DroughtRow, 0, len(groups))
	for key, acc := range groups {
		out = append(out, DroughtRow{
			Year:    key.year,
			Region:  key.region,
			MeanVHI: acc.mean(),
			Weeks:   acc.count,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Region < out[j].Region
	})
	return out
}
