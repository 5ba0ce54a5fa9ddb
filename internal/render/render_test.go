package render

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/TobiSchelling/vhireport/internal/aggregate"
)

func sampleStats() Table {
	return StatsTable([]aggregate.RegionYearStats{
		{Region: "Kyiv", Year: "2015", Mean: 15, Min: 10, Max: 20, Count: 2},
		{Region: "Dnipropetrovs'k", Year: "2015", Mean: 41.256, Min: -1, Max: 60, Count: 52},
	})
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleStats()))

	want := `VHI by region and year
+-----------------+------+----------+---------+---------+
| region          | year | VHI_mean | VHI_min | VHI_max |
+-----------------+------+----------+---------+---------+
| Kyiv            | 2015 |    15.00 |   10.00 |   20.00 |
| Dnipropetrovs'k | 2015 |    41.26 |   -1.00 |   60.00 |
+-----------------+------+----------+---------+---------+
(2 rows)
`
	assert.Equal(t, want, buf.String())
}

func TestWriteTextNoTitle(t *testing.T) {
	var buf bytes.Buffer
	table := Table{Headers: []string{"id", "region"}, Rows: [][]any{{4, "Crimea"}, {11, "Kyiv"}}}
	require.NoError(t, WriteText(&buf, table))

	want := `+----+--------+
| id | region |
+----+--------+
|  4 | Crimea |
| 11 | Kyiv   |
+----+--------+
(2 rows)
`
	assert.Equal(t, want, buf.String())
}

func TestMarkdownAndHTML(t *testing.T) {
	table := DroughtTable([]aggregate.DroughtRow{{Year: "2007", Region: "Kherson", MeanVHI: 9.5}})

	mdText := Markdown(table)
	assert.Contains(t, mdText, "## Critical drought years")
	assert.Contains(t, mdText, "| year | region | VHI |")
	assert.Contains(t, mdText, "| 2007 | Kherson | 9.50 |")

	html, err := HTML(table)
	require.NoError(t, err)
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<td>Kherson</td>")
	assert.Contains(t, html, "<h2>Critical drought years</h2>")
}

func TestMarkdownEmpty(t *testing.T) {
	table := ProjectionTable("year_1900", "VHI in 1900", nil)
	assert.Contains(t, Markdown(table), "_No rows._")
}

func TestMarkdownEscapesPipes(t *testing.T) {
	table := Table{Title: "t", Headers: []string{"a"}, Rows: [][]any{{"x|y"}}}
	assert.Contains(t, Markdown(table), `x\|y`)
}

func TestWriteXLSX(t *testing.T) {
	proj := ProjectionTable("year_2000", "VHI in 2000", []aggregate.Projection{
		{RegionID: 11, RegionName: "Kyiv", VHI: 33.5, Year: "2000", Week: 4},
	})

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleStats(), proj))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"stats", "year_2000"}, f.GetSheetList())

	header, err := f.GetCellValue("stats", "C1")
	require.NoError(t, err)
	assert.Equal(t, "VHI_mean", header)

	region, err := f.GetCellValue("year_2000", "B2")
	require.NoError(t, err)
	assert.Equal(t, "Kyiv", region)

	vhi, err := f.GetCellValue("year_2000", "C2")
	require.NoError(t, err)
	assert.Equal(t, "33.5", vhi)
}

func TestWriteDispatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatMarkdown, sampleStats(), DroughtTable(nil)))
	assert.Contains(t, buf.String(), "## VHI by region and year")
	assert.Contains(t, buf.String(), "## Critical drought years")

	buf.Reset()
	require.NoError(t, Write(&buf, "", sampleStats()))
	assert.Contains(t, buf.String(), "+-")

	assert.Error(t, Write(&buf, "pdf", sampleStats()))
}
