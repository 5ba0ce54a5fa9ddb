package render

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// Markdown returns t as a GitHub-flavored Markdown table under a heading.
func Markdown(t Table) string {
	var b strings.Builder
	if t.Title != "" {
		fmt.Fprintf(&b, "## %s\n\n", escapeMarkdown(t.Title))
	}
	if len(t.Rows) == 0 {
		b.WriteString("_No rows._\n")
		return b.String()
	}

	b.WriteString("|")
	for _, h := range t.Headers {
		fmt.Fprintf(&b, " %s |", escapeMarkdown(h))
	}
	b.WriteString("\n|")
	for range t.Headers {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, row := range t.Rows {
		b.WriteString("|")
		for i := range t.Headers {
			var s string
			if i < len(row) {
				s = formatCell(row[i])
			}
			fmt.Fprintf(&b, " %s |", escapeMarkdown(s))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// WriteMarkdown writes t as Markdown.
func WriteMarkdown(w io.Writer, t Table) error {
	_, err := io.WriteString(w, Markdown(t)+"\n")
	return err
}

// HTML converts t to an HTML fragment through its Markdown form.
func HTML(t Table) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(t)), &buf); err != nil {
		return "", fmt.Errorf("rendering %s: %w", t.Name, err)
	}
	return buf.String(), nil
}

// WriteHTML writes t as an HTML fragment.
func WriteHTML(w io.Writer, t Table) error {
	s, err := HTML(t)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, s)
	return err
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"|", `\|`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"<", "&lt;",
	">", "&gt;",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
