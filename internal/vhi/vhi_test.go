package vhi

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/vhireport/internal/region"
)

const (
	testTitle  = "<tt><pre>Province= 11: Kyiv, from 1981 to 2024, Mean"
	testHeader = "year,week, SMN,SMT,VCI,TCI,VHI<br>"
)

func body(rows ...string) string {
	return strings.Join(append([]string{testTitle, testHeader}, rows...), "\n") + "\n"
}

func TestParseSourceName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"stored file", "VHI_Kyiv_20240101_120000.csv", "Kyiv"},
		{"with directory", "vhi_data/VHI_Cherkasy_20240101_120000.csv", "Cherkasy"},
		{"name with space", "/tmp/x_y/VHI_Kyiv City_20240101_120000.csv", "Kyiv City"},
		{"name with apostrophe", "VHI_L'viv_20240101_120000.csv", "L'viv"},
		{"no timestamp", "VHI_Sumy.csv", "Sumy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSourceName(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseSourceNameFailures(t *testing.T) {
	for _, input := range []string{"VHI.csv", "VHI__20240101.csv", "data_Kyiv_1.csv", "", "Kyiv.csv"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseSourceName(input)
			var unrec *UnrecognizedSourceError
			require.True(t, errors.As(err, &unrec), "expected UnrecognizedSourceError, got %v", err)
		})
	}
}

func TestParseRows(t *testing.T) {
	input := body(
		"1982,  1,  0.053, 260.31,  45.01,  39.46,  42.23,",
		"1982,  2,  0.054, 262.29,  46.83,  31.75,  39.29",
		"1982,  3,  0.055",
		"</pre></tt>",
	)

	rows, dropped, err := ParseRows(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
	require.Len(t, rows, 2)
	assert.Equal(t, RawRecord{Year: "1982", Week: "1", SMN: "0.053", SMT: "260.31", VCI: "45.01", TCI: "39.46", VHI: "42.23"}, rows[0])
	assert.Equal(t, "39.29", rows[1].VHI)
}

func TestParseRowsTooManyFields(t *testing.T) {
	rows, dropped, err := ParseRows(strings.NewReader(body("1982,1,1,1,1,1,40,extra,")))
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 1, dropped)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  RawRecord
		keep bool
	}{
		{"clean", RawRecord{Year: "2015", Week: "1", VHI: "10.0"}, true},
		{"negative sentinel kept", RawRecord{Year: "2015", Week: "1", VHI: "-1"}, true},
		{"large negative kept", RawRecord{Year: "2015", Week: "1", VHI: "-999"}, true},
		{"not available", RawRecord{Year: "2015", Week: "1", VHI: "N/A"}, false},
		{"nan", RawRecord{Year: "2015", Week: "1", VHI: "NaN"}, false},
		{"empty vhi", RawRecord{Year: "2015", Week: "1", VHI: ""}, false},
		{"short year", RawRecord{Year: "215", Week: "1", VHI: "10"}, false},
		{"long year", RawRecord{Year: "20155", Week: "1", VHI: "10"}, false},
		{"text year", RawRecord{Year: "year", Week: "1", VHI: "10"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Normalize(tt.raw)
			assert.Equal(t, tt.keep, ok)
		})
	}
}

func TestNormalizeFields(t *testing.T) {
	obs, ok := Normalize(RawRecord{Year: "2015", Week: "7", SMN: "0.1", SMT: "x", VCI: "30", TCI: "40", VHI: "35.5"})
	require.True(t, ok)
	assert.Equal(t, "2015", obs.Year)
	assert.Equal(t, 7, obs.Week)
	assert.Equal(t, 35.5, obs.VHI)
	assert.Equal(t, 0.1, obs.SMN)
	assert.True(t, math.IsNaN(obs.SMT))
}

func TestLoadOneCleanOneMalformed(t *testing.T) {
	loader := NewLoader(region.Default(), nil)
	src := Source{
		Name: "VHI_Kyiv_20240101_120000.csv",
		Body: strings.NewReader(body("2015, 1, 0.1, 250, 30, 40, 35.5,", "2015, 2, 0.1, 250")),
	}

	obs, stats, err := loader.Load([]Source{src})
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, 11, obs[0].RegionID)
	assert.Equal(t, "Kyiv", obs[0].RegionName)
	assert.Equal(t, 1, stats.Rows)
	assert.Equal(t, 1, stats.Dropped)
}

func TestLoadUnrecognizedSourceDoesNotAbortOthers(t *testing.T) {
	loader := NewLoader(region.Default(), nil)
	sources := []Source{
		{Name: "VHI_Atlantis_20240101_120000.csv", Body: strings.NewReader(body("2015, 1, 0, 0, 0, 0, 10"))},
		{Name: "VHI_Sumy_20240101_120000.csv", Body: strings.NewReader(body("2015, 1, 0, 0, 0, 0, 10", "2015, 2, 0, 0, 0, 0, N/A"))},
		{Name: "notes.csv", Body: strings.NewReader(body("2015, 1, 0, 0, 0, 0, 10"))},
	}

	obs, stats, err := loader.Load(sources)
	require.Error(t, err)

	var unrec *UnrecognizedSourceError
	require.True(t, errors.As(err, &unrec))
	var unknown *region.UnknownRegionError
	assert.True(t, errors.As(err, &unknown))
	assert.Contains(t, err.Error(), "Atlantis")
	assert.Contains(t, err.Error(), "notes.csv")

	require.Len(t, obs, 1)
	assert.Equal(t, "Sumy", obs[0].RegionName)
	assert.Equal(t, 21, obs[0].RegionID)
	assert.Equal(t, 3, stats.Files)
	assert.Equal(t, 2, stats.FailedFiles)
}

func TestLoadPreservesWithinFileOrder(t *testing.T) {
	loader := NewLoader(region.Default(), nil)
	obs, _, err := loader.Load([]Source{{
		Name: "VHI_Volyn_1.csv",
		Body: strings.NewReader(body("2001, 3, 0,0,0,0, 30", "2000, 1, 0,0,0,0, 10", "2000, 2, 0,0,0,0, 20")),
	}})
	require.NoError(t, err)

	var weeks []int
	for _, o := range obs {
		weeks = append(weeks, o.Week)
	}
	assert.Equal(t, []int{3, 1, 2}, weeks)
}

func TestLoadIdempotent(t *testing.T) {
	loader := NewLoader(region.Default(), nil)
	content := body("2010, 1, 0,0,0,0, 12", "2010, 2, 0,0,0,0, -1", "bad line")
	sources := func() []Source {
		return []Source{
			{Name: "VHI_Rivne_1.csv", Body: strings.NewReader(content)},
			{Name: "VHI_Sumy_1.csv", Body: strings.NewReader(content)},
		}
	}

	first, _, err := loader.Load(sources())
	require.NoError(t, err)
	second, _, err := loader.Load(sources())
	require.NoError(t, err)

	less := func(a, b Observation) bool {
		if a.RegionID != b.RegionID {
			return a.RegionID < b.RegionID
		}
		return a.Week < b.Week
	}
	if diff := cmp.Diff(first, second, cmpopts.SortSlices(less), cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("load not idempotent (-first +second):\n%s", diff)
	}
}

func TestLoadCustomExtractor(t *testing.T) {
	extract := func(name string) (string, error) {
		return strings.TrimSuffix(name, ".txt"), nil
	}
	loader := NewLoader(region.Default(), extract)
	obs, _, err := loader.Load([]Source{{Name: "Poltava.txt", Body: strings.NewReader(body("2020, 1, 0,0,0,0, 50"))}})
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, 18, obs[0].RegionID)
}
