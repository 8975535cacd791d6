package output

import (
	"fmt"
	"io"
	"strings"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// Formats lists every supported format, for flag help.
var Formats = []Format{FormatTable, FormatJSON, FormatYAML, FormatMarkdown}

// Table is the tabular view of a command result.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	Footer  string
}

// AddRow appends a row, formatting each cell with %v.
func (t *Table) AddRow(cells ...any) {
	row := make([]string, len(cells))
	for i, c := range cells {
		row[i] = cellString(c)
	}
	t.Rows = append(t.Rows, row)
}

// Formatter renders a command result. Structured formats encode data;
// tabular formats render the table.
type Formatter interface {
	Format(data any, table Table) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatYAML:
		return &YAMLFormatter{}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// Write renders data or table in format and writes it to w with a trailing
// newline.
func Write(w io.Writer, format Format, data any, table Table) error {
	rendered, err := NewFormatter(format).Format(data, table)
	if err != nil {
		return err
	}
	if rendered == "" {
		return nil
	}
	if !strings.HasSuffix(rendered, "\n") {
		rendered += "\n"
	}
	_, err = io.WriteString(w, rendered)
	return err
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	case error:
		return x.Error()
	case bool:
		if x {
			return "yes"
		}
		return "no"
	default:
		return fmt.Sprintf("%v", x)
	}
}
