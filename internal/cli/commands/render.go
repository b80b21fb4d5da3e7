package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// renderRows writes a header/rows result in the configured output format.
func renderRows(w io.Writer, format string, header []any, rows [][]any) error {
	switch strings.ToLower(format) {
	case "", "table":
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(header)
		for _, row := range rows {
			t.AppendRow(row)
		}
		t.Render()
		return nil
	case "csv":
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.AppendHeader(header)
		for _, row := range rows {
			t.AppendRow(row)
		}
		t.RenderCSV()
		return nil
	case "json":
		return fmt.Errorf("json output requires a structured value")
	default:
		return fmt.Errorf("unknown output format %q (want table, json, or csv)", format)
	}
}

// renderResult writes v as indented JSON when the format asks for it and
// reports whether it handled the output.
func renderResult(w io.Writer, format string, v any) (bool, error) {
	if strings.ToLower(format) != "json" {
		return false, nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return true, enc.Encode(v)
}

// money formats a dollar amount for table output.
func money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

// optional formats a nullable metric for table output.
func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}
