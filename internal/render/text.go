package render

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// WriteText writes t as a bordered plain-text table in the psql layout,
// followed by a row count.
func WriteText(w io.Writer, t Table) error {
	tw := table.NewWriter()
	style := table.StyleDefault
	style.Format.Header = text.FormatDefault
	tw.SetStyle(style)

	header := make(table.Row, len(t.Headers))
	for i, h := range t.Headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	numeric := make([]bool, len(t.Headers))
	for _, row := range t.Rows {
		cells := make(table.Row, len(t.Headers))
		for i := range t.Headers {
			if i >= len(row) {
				cells[i] = ""
				continue
			}
			cells[i] = formatCell(row[i])
			if isNumeric(row[i]) {
				numeric[i] = true
			}
		}
		tw.AppendRow(cells)
	}

	var configs []table.ColumnConfig
	for i, num := range numeric {
		if num {
			configs = append(configs, table.ColumnConfig{
				Number:      i + 1,
				Align:       text.AlignRight,
				AlignHeader: text.AlignLeft,
			})
		}
	}
	tw.SetColumnConfigs(configs)
	tw.SetCaption("(%d rows)", len(t.Rows))

	out := tw.Render() + "\n"
	if t.Title != "" {
		out = t.Title + "\n" + out
	}
	_, err := io.WriteString(w, out)
	return err
}
