package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name    string `json:"name"`
	Status  int    `json:"status"`
	Healthy bool   `json:"healthy"`
}

func sampleTable() Table {
	t := Table{Title: "Health", Headers: []string{"Name", "Status", "Healthy"}, Footer: "1/1 healthy"}
	t.AddRow("stage|api", 200, true)
	return t
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("yml")
	require.NoError(t, err)
	require.Equal(t, FormatYAML, format)

	format, err = ParseFormat("md")
	require.NoError(t, err)
	require.Equal(t, FormatMarkdown, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func TestAddRowFormatsCells(t *testing.T) {
	var tbl Table
	tbl.AddRow(nil, "x", 3, false, errors.New("boom"), 1500*time.Millisecond)
	assert.Equal(t, []string{"", "x", "3", "no", "boom", "1.5s"}, tbl.Rows[0])
}

func TestFormatters(t *testing.T) {
	data := []sample{{Name: "stage|api", Status: 200, Healthy: true}}
	tbl := sampleTable()

	rendered, err := NewFormatter(FormatTable).Format(data, tbl)
	require.NoError(t, err)
	assert.Contains(t, rendered, "NAME")
	assert.Contains(t, rendered, "stage|api")
	assert.Contains(t, strings.ToUpper(rendered), "1/1 HEALTHY")

	rendered, err = NewFormatter(FormatMarkdown).Format(data, tbl)
	require.NoError(t, err)
	assert.Contains(t, rendered, "## Health")
	assert.Contains(t, rendered, "| Name | Status | Healthy |")
	assert.Contains(t, rendered, "stage\\|api")
	assert.Contains(t, rendered, "**1/1 healthy**")

	rendered, err = NewFormatter(FormatJSON).Format(data, tbl)
	require.NoError(t, err)
	assert.Contains(t, rendered, "\"name\": \"stage|api\"")

	rendered, err = NewFormatter(FormatYAML).Format(data, tbl)
	require.NoError(t, err)
	assert.Contains(t, rendered, "name: stage|api")
	assert.Contains(t, rendered, "status: 200")
}

func TestWriteAddsTrailingNewline(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, map[string]int{"a": 1}, Table{}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())

	buf.Reset()
	require.NoError(t, Write(&buf, FormatTable, nil, Table{}))
	assert.Empty(t, buf.String())
}
