package render

import (
	"fmt"
	"io"
)

// Supported output formats.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatXLSX     = "xlsx"
)

// Formats lists the accepted format names.
var Formats = []string{FormatText, FormatMarkdown, FormatHTML, FormatXLSX}

// Write renders tables to w in the given format.
func Write(w io.Writer, format string, tables ...Table) error {
	var write func(io.Writer, Table) error
	switch format {
	case FormatText, "":
		write = WriteText
	case FormatMarkdown:
		write = WriteMarkdown
	case FormatHTML:
		write = WriteHTML
	case FormatXLSX:
		return WriteXLSX(w, tables...)
	default:
		return fmt.Errorf("unknown format %q (want one of %v)", format, Formats)
	}

	for i, t := range tables {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := write(w, t); err != nil {
			return err
		}
	}
	return nil
}
