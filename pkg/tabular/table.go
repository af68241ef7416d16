// Package tabular provides a uniform capability surface over delimited-text
// and workbook data sources: header/skip-row control, eager and chunked
// loading, column-wise and row-wise streaming, in-memory append buffers, and
// save/save-as — plus a path-extension factory that picks the right handler.
//
// Every value in a Table is a string; type inference is the classifier
// package's job, not this one's.
package tabular

import (
	"fmt"
	"strings"
)

// Table is an in-memory, ordered, column-named grid of string cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// NewTable returns an empty table with the given column order.
func NewTable(columns []string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

// NumRows reports the row count.
func (t *Table) NumRows() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// NumCols reports the column count.
func (t *Table) NumCols() int {
	if t == nil {
		return 0
	}
	return len(t.Columns)
}

// ColumnIndex returns the position of name in Columns, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns the values of the named column, or nil if absent.
func (t *Table) Column(name string) []string {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out
}

// AppendRow appends a single row, padding or truncating to NumCols.
func (t *Table) AppendRow(row []string) {
	r := make([]string, len(t.Columns))
	copy(r, row)
	t.Rows = append(t.Rows, r)
}

// AppendTable appends another table's rows, re-projecting by column name:
// columns present in t but absent from other contribute empty strings;
// columns in other but absent from t are ignored.
func (t *Table) AppendTable(other *Table) {
	if other == nil {
		return
	}
	idxByCol := make(map[string]int, len(other.Columns))
	for i, c := range other.Columns {
		idxByCol[c] = i
	}
	for _, src := range other.Rows {
		row := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			if j, ok := idxByCol[c]; ok && j < len(src) {
				row[i] = src[j]
			}
		}
		t.Rows = append(t.Rows, row)
	}
}

// Row returns row i as a name→value mapping.
func (t *Table) Row(i int) map[string]string {
	out := make(map[string]string, len(t.Columns))
	row := t.Rows[i]
	for j, c := range t.Columns {
		if j < len(row) {
			out[c] = row[j]
		}
	}
	return out
}

// Validate rejects empty or duplicate column names, per the capability
// surface's validate(table) contract.
func Validate(t *Table) error {
	if t == nil {
		return fmt.Errorf("tabular: %w", ErrNilTable)
	}
	seen := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		name := strings.TrimSpace(c)
		if name == "" {
			return fmt.Errorf("tabular: %w", ErrEmptyColumnName)
		}
		if _, dup := seen[c]; dup {
			return fmt.Errorf("tabular: %w: %q", ErrDuplicateColumnName, c)
		}
		seen[c] = struct{}{}
	}
	return nil
}
