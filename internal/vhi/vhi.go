// Package vhi parses NOAA STAR per-region VHI files into observations.
//
// # File format
//
// The provider answers get_TS_admin.php with a preformatted text block:
//
//	<tt><pre>1982,  1, 0.053, 260.31, 45.01, 39.46, 42.23,
//
// preceded by a title line and a column header line:
//
//	Province= 11: Kyiv, from 1981 to 2024, Mean
//	year,week, SMN,SMT,VCI,TCI,VHI<br>
//
// Data rows carry seven positional fields (year, week, SMN, SMT, VCI, TCI,
// VHI) and usually a trailing delimiter. The last line closes the block
// with </pre></tt>. VHI of -1 is the provider's missing-data sentinel.
//
// # Source names
//
// Files are stored as VHI_<region>_<yyyymmdd>_<hhmmss>.csv. The region is
// recovered from the name by [ParseSourceName], never from the file body.
package vhi

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Columns is the fixed positional schema of a data row.
var Columns = []string{"year", "week", "SMN", "SMT", "VCI", "TCI", "VHI"}

// FilePrefix is the leading token of every stored source file name.
const FilePrefix = "VHI"

// RawRecord is one positional row before normalization. Fields are trimmed.
type RawRecord struct {
	Year string
	Week string
	SMN  string
	SMT  string
	VCI  string
	TCI  string
	VHI  string
}

// Observation is a cleaned row attributed to a registered region.
type Observation struct {
	RegionID   int
	RegionName string
	Year       string // exactly four digits, compared as text
	Week       int
	SMN        float64
	SMT        float64
	VCI        float64
	TCI        float64
	VHI        float64
}

// UnrecognizedSourceError reports a source whose name yields no region or a
// region that is not registered.
type UnrecognizedSourceError struct {
	Source string
	Reason string
	Err    error
}

func (e *UnrecognizedSourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unrecognized source %q: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("unrecognized source %q: %s", e.Source, e.Reason)
}

func (e *UnrecognizedSourceError) Unwrap() error { return e.Err }

// ParseSourceName extracts the region name embedded in a source file name.
//
// The rule: take the base name, drop the extension, split on '_'. The first
// token must be [FilePrefix] and the second token is the region name.
// Directory components never take part, so underscores in parent
// directories are harmless.
func ParseSourceName(name string) (string, error) {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	tokens := strings.Split(base, "_")
	if len(tokens) < 2 {
		return "", &UnrecognizedSourceError{Source: name, Reason: "no region token"}
	}
	if tokens[0] != FilePrefix {
		return "", &UnrecognizedSourceError{Source: name, Reason: fmt.Sprintf("missing %s prefix", FilePrefix)}
	}
	region := strings.TrimSpace(tokens[1])
	if region == "" {
		return "", &UnrecognizedSourceError{Source: name, Reason: "empty region token"}
	}
	return region, nil
}
