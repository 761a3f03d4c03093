// Package format renders engine state as terminal, Markdown or CSV tables.
package format

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Mode selects the renderer.
type Mode int

const (
	ASCII    Mode = iota // box-drawn terminal table
	Markdown             // GitHub-flavoured Markdown, embedded in reports
	CSV                  // comma-separated export
)

func (m Mode) String() string {
	switch m {
	case Markdown:
		return "markdown"
	case CSV:
		return "csv"
	}
	return "ascii"
}

// ParseMode maps a --format flag value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ascii", "table", "text":
		return ASCII, nil
	case "md", "markdown":
		return Markdown, nil
	case "csv":
		return CSV, nil
	}
	return ASCII, fmt.Errorf("unknown table format %q (want ascii, markdown or csv)", s)
}

// ColumnAlign is the horizontal alignment of a column.
type ColumnAlign int

const (
	AlignDefault ColumnAlign = iota
	AlignLeft
	AlignCenter
	AlignRight
)

var aligns = map[ColumnAlign]text.Align{
	AlignLeft:   text.AlignLeft,
	AlignCenter: text.AlignCenter,
	AlignRight:  text.AlignRight,
}

// ColumnConfig tunes one 1-based column. MaxWidth 0 means unlimited.
type ColumnConfig struct {
	Number   int
	Align    ColumnAlign
	MaxWidth int
}

// Table accumulates rows and renders them once in its Mode.
type Table struct {
	w     table.Writer
	mode  Mode
	title string
}

// NewTable returns an empty table for m.
func NewTable(m Mode) *Table {
	w := table.NewWriter()
	if m == ASCII {
		w.SetStyle(table.StyleLight)
	}
	return &Table{w: w, mode: m}
}

// Title sets a caption printed on its own line above ASCII tables, so it is
// never wrapped to the column width. Markdown and CSV output ignore it.
func (t *Table) Title(s string) {
	t.title = s
}

// Header sets the column names.
func (t *Table) Header(cols ...string) {
	t.w.AppendHeader(toRow(cols))
}

// Row appends one row; values are printed with fmt.Sprint semantics.
func (t *Table) Row(vals ...any) {
	t.w.AppendRow(append(table.Row(nil), vals...))
}

// Footer appends a totals row.
func (t *Table) Footer(vals ...any) {
	t.w.AppendFooter(append(table.Row(nil), vals...))
}

// Columns applies per-column alignment and width limits.
func (t *Table) Columns(cfgs ...ColumnConfig) {
	out := make([]table.ColumnConfig, 0, len(cfgs))
	for _, c := range cfgs {
		align, ok := aligns[c.Align]
		if !ok {
			align = text.AlignDefault
		}
		out = append(out, table.ColumnConfig{Number: c.Number, Align: align, WidthMax: c.MaxWidth})
	}
	t.w.SetColumnConfigs(out)
}

// Len is the number of data rows.
func (t *Table) Len() int { return t.w.Length() }

// String renders the table.
func (t *Table) String() string {
	switch t.mode {
	case Markdown:
		return t.w.RenderMarkdown()
	case CSV:
		return t.w.RenderCSV()
	}
	if t.title == "" {
		return t.w.Render()
	}
	return t.title + "\n" + t.w.Render()
}

func toRow(cols []string) table.Row {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		row[i] = c
	}
	return row
}
