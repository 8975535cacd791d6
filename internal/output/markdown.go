package output

import (
	"fmt"
	"strings"
)

// MarkdownFormatter renders results as a markdown table.
type MarkdownFormatter struct{}

// Format renders the table view as Markdown.
func (f *MarkdownFormatter) Format(_ any, tbl Table) (string, error) {
	if len(tbl.Headers) == 0 && len(tbl.Rows) == 0 {
		return "", nil
	}

	var sb strings.Builder
	if tbl.Title != "" {
		sb.WriteString(fmt.Sprintf("## %s\n\n", escapeMarkdownCell(tbl.Title)))
	}

	if len(tbl.Headers) > 0 {
		sb.WriteString(markdownRow(tbl.Headers))
		sep := make([]string, len(tbl.Headers))
		for i, h := range tbl.Headers {
			sep[i] = strings.Repeat("-", max(3, len(h)))
		}
		sb.WriteString("|" + strings.Join(sep, "|") + "|\n")
	}
	for _, r := range tbl.Rows {
		sb.WriteString(markdownRow(r))
	}

	if tbl.Footer != "" {
		sb.WriteString(fmt.Sprintf("\n**%s**\n", escapeMarkdownCell(tbl.Footer)))
	}
	return sb.String(), nil
}

func markdownRow(cells []string) string {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		escaped[i] = escapeMarkdownCell(c)
	}
	return "| " + strings.Join(escaped, " | ") + " |\n"
}

func escapeMarkdownCell(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.ReplaceAll(value, "|", "\\|")
}
