// Package render turns aggregation results into tables and writes them as
// text, Markdown, HTML or XLSX.
package render

import (
	"fmt"
	"strconv"

	"github.com/TobiSchelling/vhireport/internal/aggregate"
)

// Table is a titled grid of cells. Numeric cells stay numeric so that
// spreadsheet output keeps them as numbers.
type Table struct {
	Name    string // short identifier, used as sheet name
	Title   string
	Headers []string
	Rows    [][]any
}

// StatsTable renders per-region-per-year VHI statistics.
func StatsTable(stats []aggregate.RegionYearStats) Table {
	t := Table{
		Name:    "stats",
		Title:   "VHI by region and year",
		Headers: []string{"region", "year", "VHI_mean", "VHI_min", "VHI_max"},
	}
	for _, s := range stats {
		t.Rows = append(t.Rows, []any{s.Region, s.Year, s.Mean, s.Min, s.Max})
	}
	return t
}

// ProjectionTable renders year listings.
func ProjectionTable(name, title string, rows []aggregate.Projection) Table {
	t := Table{
		Name:    name,
		Title:   title,
		Headers: []string{"id", "region", "VHI", "year", "week"},
	}
	for _, p := range rows {
		t.Rows = append(t.Rows, []any{p.RegionID, p.RegionName, p.VHI, p.Year, p.Week})
	}
	return t
}

// DroughtTable renders the critical drought report.
func DroughtTable(rows []aggregate.DroughtRow) Table {
	t := Table{
		Name:    "drought",
		Title:   "Critical drought years",
		Headers: []string{"year", "region", "VHI"},
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{r.Year, r.Region, r.MeanVHI})
	}
	return t
}

func formatCell(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', 2, 64)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func isNumeric(v any) bool {
	switch v.(type) {
	case int, int64, float64:
		return true
	}
	return false
}
