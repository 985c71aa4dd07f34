// Package formatter renders operator-facing output: aligned status tables
// and compact humanized durations. It knows nothing about orchestrator
// state; callers hand it strings.
package formatter

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Column describes one table column: its header text and an optional
// display-width cap (0 = unlimited). Cells exceeding the cap are truncated
// with a trailing ellipsis.
type Column struct {
	Header   string
	MaxWidth int
}

// Table accumulates rows and writes them through a tabwriter on Flush, so
// every column lines up regardless of cell widths.
type Table struct {
	w    *tabwriter.Writer
	cols []Column
	rows int
}

// NewTable creates a table writing to w with the given columns.
func NewTable(w io.Writer, cols ...Column) *Table {
	t := &Table{
		w:    tabwriter.NewWriter(w, 0, 0, 2, ' ', 0),
		cols: cols,
	}
	t.writeLine(func(c Column) string { return c.Header })
	t.writeLine(func(c Column) string { return strings.Repeat("-", len(c.Header)) })
	return t
}

// Row appends one data row. Extra cells beyond the column count are
// dropped; missing cells render empty.
func (t *Table) Row(cells ...string) {
	t.rows++
	i := 0
	t.writeLine(func(c Column) string {
		cell := ""
		if i < len(cells) {
			cell = clip(cells[i], c.MaxWidth)
		}
		i++
		return cell
	})
}

// Flush writes the accumulated table. Must be called after the last Row.
func (t *Table) Flush() error {
	return t.w.Flush()
}

// Rows reports how many data rows have been added, letting callers print
// an "empty" placeholder instead of a bare header pair.
func (t *Table) Rows() int { return t.rows }

func (t *Table) writeLine(cell func(Column) string) {
	for i, c := range t.cols {
		if i > 0 {
			fmt.Fprint(t.w, "\t")
		}
		fmt.Fprint(t.w, cell(c))
	}
	fmt.Fprintln(t.w)
}

func clip(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
