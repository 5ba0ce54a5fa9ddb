package vhi

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// headerLines is the title line plus the column header line.
const headerLines = 2

var (
	yearRe = regexp.MustCompile(`^\d{4}$`)
	tagRe  = regexp.MustCompile(`</?[A-Za-z]+>`)
)

// ParseRows reads a source body and binds every data row positionally.
// Rows with the wrong number of fields are dropped. The returned count is
// the number of dropped non-empty lines.
func ParseRows(r io.Reader) ([]RawRecord, int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		records []RawRecord
		dropped int
		line    int
	)
	for sc.Scan() {
		line++
		if line <= headerLines {
			continue
		}
		text := strings.TrimSpace(tagRe.ReplaceAllString(sc.Text(), ""))
		if text == "" {
			continue
		}
		rec, ok := splitRow(text)
		if !ok {
			dropped++
			continue
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, 0, fmt.Errorf("reading rows: %w", err)
	}
	return records, dropped, nil
}

func splitRow(text string) (RawRecord, bool) {
	fields := strings.Split(text, ",")
	// A single trailing delimiter is how the provider terminates rows.
	if len(fields) == len(Columns)+1 && strings.TrimSpace(fields[len(fields)-1]) == "" {
		fields = fields[:len(Columns)]
	}
	if len(fields) != len(Columns) {
		return RawRecord{}, false
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return RawRecord{
		Year: fields[0],
		Week: fields[1],
		SMN:  fields[2],
		SMT:  fields[3],
		VCI:  fields[4],
		TCI:  fields[5],
		VHI:  fields[6],
	}, true
}

// Normalize validates a raw row. It reports false when VHI is not a finite
// number or the year is not exactly four digits.
func Normalize(raw RawRecord) (Observation, bool) {
	vhi, err := strconv.ParseFloat(raw.VHI, 64)
	if err != nil || math.IsNaN(vhi) || math.IsInf(vhi, 0) {
		return Observation{}, false
	}
	if !yearRe.MatchString(raw.Year) {
		return Observation{}, false
	}

	week, err := strconv.Atoi(raw.Week)
	if err != nil {
		week = 0
	}

	return Observation{
		Year: raw.Year,
		Week: week,
		SMN:  parseFloatOrNaN(raw.SMN),
		SMT:  parseFloatOrNaN(raw.SMT),
		VCI:  parseFloatOrNaN(raw.VCI),
		TCI:  parseFloatOrNaN(raw.TCI),
		VHI:  vhi,
	}, true
}

func parseFloatOrNaN(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
