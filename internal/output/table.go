package output

import (
	"github.com/jedib0t/go-pretty/v6/table"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// Format renders the table view.
func (f *TableFormatter) Format(_ any, tbl Table) (string, error) {
	if len(tbl.Headers) == 0 && len(tbl.Rows) == 0 {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	if tbl.Title != "" {
		t.SetTitle(tbl.Title)
	}
	if len(tbl.Headers) > 0 {
		t.AppendHeader(toRow(tbl.Headers))
	}
	for _, r := range tbl.Rows {
		t.AppendRow(toRow(r))
	}
	if tbl.Footer != "" && len(tbl.Headers) > 0 {
		footer := make(table.Row, len(tbl.Headers))
		footer[len(footer)-1] = tbl.Footer
		t.AppendFooter(footer)
	}

	return t.Render(), nil
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}
