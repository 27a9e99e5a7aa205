package fragment

import "fmt"

// Table is the flattened fragment table: one row per backbone position of
// every precursor, one column per charged fragment type. Values are stored
// row-major in a single slice. A Table is only meaningful together with the
// precursor table whose FragStart/FragEnd point into it.
type Table struct {
	columns  []string
	colIndex map[string]int
	values   []float64
	rows     int
}

// Range is a half-open row range [Start, End) owned by one precursor.
type Range struct {
	Start, End int
}

// NewTable allocates a zero table.
func NewTable(columns []string, rows int) *Table {
	t := &Table{
		columns:  append([]string(nil), columns...),
		colIndex: make(map[string]int, len(columns)),
		values:   make([]float64, rows*len(columns)),
		rows:     rows,
	}
	for i, c := range columns {
		t.colIndex[c] = i
	}
	return t
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	return t.columns
}

// NumRows returns the number of fragment rows. It holds even when the table
// has no columns.
func (t *Table) NumRows() int {
	return t.rows
}

// Row returns row i; the slice aliases the table.
func (t *Table) Row(i int) []float64 {
	n := len(t.columns)
	return t.values[i*n : (i+1)*n]
}

// Rows returns rows [start, end) row-major; the slice aliases the table.
func (t *Table) Rows(start, end int) []float64 {
	n := len(t.columns)
	return t.values[start*n : end*n]
}

// ColumnIndex returns the position of a column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	i, ok := t.colIndex[name]
	return i, ok
}

// At returns the value at row i of a column.
func (t *Table) At(i int, column string) (float64, error) {
	c, ok := t.colIndex[column]
	if !ok {
		return 0, fmt.Errorf("fragment table has no column '%s'", column)
	}
	return t.values[i*len(t.columns)+c], nil
}

// Column copies a column.
func (t *Table) Column(name string) ([]float64, error) {
	c, ok := t.colIndex[name]
	if !ok {
		return nil, fmt.Errorf("fragment table has no column '%s'", name)
	}
	n := len(t.columns)
	out := make([]float64, t.NumRows())
	for i := range out {
		out[i] = t.values[i*n+c]
	}
	return out, nil
}

// Select copies the given columns, in the given order.
func (t *Table) Select(columns []string) (*Table, error) {
	idx, err := t.indices(columns)
	if err != nil {
		return nil, err
	}
	out := NewTable(columns, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		src, dst := t.Row(i), out.Row(i)
		for j, c := range idx {
			dst[j] = src[c]
		}
	}
	return out, nil
}

func (t *Table) indices(columns []string) ([]int, error) {
	idx := make([]int, len(columns))
	for i, name := range columns {
		c, ok := t.colIndex[name]
		if !ok {
			return nil, fmt.Errorf("fragment table has no column '%s'", name)
		}
		idx[i] = c
	}
	return idx, nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ConcatTables appends tables with identical columns.
func ConcatTables(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return NewTable(nil, 0), nil
	}
	rows := 0
	for _, t := range tables {
		if !sameColumns(t.columns, tables[0].columns) {
			return nil, fmt.Errorf("cannot concatenate fragment tables with columns %v and %v", tables[0].columns, t.columns)
		}
		rows += t.NumRows()
	}
	out := NewTable(tables[0].columns, 0)
	out.rows = rows
	out.values = make([]float64, 0, rows*len(out.columns))
	for _, t := range tables {
		out.values = append(out.values, t.values...)
	}
	return out, nil
}
