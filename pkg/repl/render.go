package repl

import (
	"fmt"
	"io"

	pretty "github.com/jedib0t/go-pretty/v6/table"

	"github.com/system0x7/dt/pkg/plan"
	"github.com/system0x7/dt/pkg/schema"
	"github.com/system0x7/dt/pkg/table"
)

// Preview renders the first limit rows of t with a size header. A limit
// below one renders every row.
func Preview(w io.Writer, t *table.Table, limit int) {
	if t == nil {
		return
	}
	rows := t.NRows()
	_, _ = fmt.Fprintf(w, "\n[Table: %d rows × %d cols]\n", rows, t.NCols())
	if t.NCols() == 0 {
		return
	}

	shown := t
	if limit > 0 && rows > limit {
		shown = t.Slice(0, limit)
	}
	Render(w, shown)

	if more := rows - shown.NRows(); more > 0 {
		_, _ = fmt.Fprintf(w, "... %d more rows\n", more)
	}
	_, _ = fmt.Fprintln(w)
}

// Render writes every row of t as a table.
func Render(w io.Writer, t *table.Table) {
	tw := pretty.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(pretty.StyleLight)

	names := t.Schema().Names()
	header := make(pretty.Row, len(names))
	for i, name := range names {
		header[i] = name
	}
	tw.AppendHeader(header)

	for _, r := range t.Rows() {
		row := make(pretty.Row, len(r))
		for i, v := range r {
			row[i] = plan.FormatValue(v)
		}
		tw.AppendRow(row)
	}
	tw.Render()
}

// RenderSchema lists the columns of s with their types.
func RenderSchema(w io.Writer, s schema.Schema, rows int) {
	tw := pretty.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(pretty.StyleLight)
	tw.AppendHeader(pretty.Row{"#", "Column", "Type"})
	for i, c := range s.Columns() {
		tw.AppendRow(pretty.Row{i + 1, c.Name, c.Type.String()})
	}
	tw.Render()
	_, _ = fmt.Fprintf(w, "%d rows × %d columns\n", rows, s.Len())
}
