// Package table provides the tabular result structure fetch operations
// return: ordered columns over rows of typed cells.
package table

import "fmt"

// Table is an ordered, in-memory result set. A chunked fetch yields a
// sequence of Tables sharing the same columns.
type Table struct {
	Columns []string
	Rows    [][]any
}

// New creates an empty Table with the given columns.
func New(columns []string) *Table {
	return &Table{Columns: columns}
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// NumCols returns the number of columns.
func (t *Table) NumCols() int {
	return len(t.Columns)
}

// Append adds one row. The row must have one cell per column.
func (t *Table) Append(row []any) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// AppendTable adds all rows of other. Column sets must match in order.
func (t *Table) AppendTable(other *Table) error {
	if other.NumCols() != t.NumCols() {
		return fmt.Errorf("column count mismatch: %d vs %d", other.NumCols(), t.NumCols())
	}
	t.Rows = append(t.Rows, other.Rows...)
	return nil
}

// Row returns row i as a column-name keyed map.
func (t *Table) Row(i int) map[string]any {
	out := make(map[string]any, len(t.Columns))
	for j, col := range t.Columns {
		out[col] = t.Rows[i][j]
	}
	return out
}

// Column returns the values of the named column, or nil when absent.
func (t *Table) Column(name string) []any {
	idx := -1
	for j, col := range t.Columns {
		if col == name {
			idx = j
			break
		}
	}
	if idx < 0 {
		return nil
	}
	out := make([]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, row[idx])
	}
	return out
}
