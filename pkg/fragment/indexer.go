package fragment

import (
	"errors"
	"fmt"
	"log"

	"github.com/ChrisMcGann/pepmass/pkg/core"
)

var (
	// ErrFragIndexWithoutReference is returned when a precursor table already
	// points into a fragment table that the caller did not supply.
	ErrFragIndexWithoutReference = errors.New("precursor table has fragment indices but no reference fragment table")
	// ErrMissingFragIndex is returned when a reference table is supplied for a
	// precursor table without fragment indices.
	ErrMissingFragIndex = errors.New("precursor table has no fragment indices to address the reference table")
)

// InitZeroTable allocates a zero fragment table for peptides of the given
// lengths and returns each peptide's start and end row. Ranges are
// contiguous and follow input order.
func InitZeroTable(nAAs []int, columns []string) (*Table, []int, []int) {
	starts := make([]int, len(nAAs))
	ends := make([]int, len(nAAs))
	offset := 0
	for i, nAA := range nAAs {
		starts[i] = offset
		if nAA > 1 {
			offset += nAA - 1
		}
		ends[i] = offset
	}
	return NewTable(columns, offset), starts, ends
}

// InitTableFromOther allocates a zero table with the row count of reference
// and the given columns, which must all exist in reference.
func InitTableFromOther(reference *Table, columns []string) (*Table, error) {
	if _, err := reference.indices(columns); err != nil {
		return nil, err
	}
	return NewTable(columns, reference.NumRows()), nil
}

// InitTableByPrecursor allocates a zero fragment table for a precursor table.
// Without fragment indices, fresh indices are assigned to the precursors.
// With indices and a reference, the reference shape is reused. With indices
// but no reference, the table is sized by the largest end index.
func InitTableByPrecursor(t *core.PrecursorTable, columns []string, reference *Table) (*Table, error) {
	if !t.Has(core.ColFragIndex) {
		if !t.Has(core.ColNAA) {
			t.FillNAA()
		}
		nAAs := make([]int, t.Len())
		for i := range t.Rows {
			nAAs[i] = t.Rows[i].NAA
		}
		table, starts, ends := InitZeroTable(nAAs, columns)
		for i := range t.Rows {
			t.Rows[i].FragStart = starts[i]
			t.Rows[i].FragEnd = ends[i]
		}
		t.Set(core.ColFragIndex)
		return table, nil
	}

	if reference != nil {
		return InitTableFromOther(reference, columns)
	}

	log.Printf("Warning: precursor table has fragment indices, a reference fragment table should be provided")
	maxEnd := 0
	for i := range t.Rows {
		if t.Rows[i].FragEnd > maxEnd {
			maxEnd = t.Rows[i].FragEnd
		}
	}
	return NewTable(columns, maxEnd), nil
}

// SetSliced writes values into the rows of the given ranges. values holds
// len(columns) values per row, row-major, for all ranges in order.
func SetSliced(t *Table, values []float64, ranges []Range, columns []string) error {
	idx, err := t.indices(columns)
	if err != nil {
		return err
	}
	k := 0
	for _, r := range ranges {
		if r.Start < 0 || r.End > t.NumRows() || r.Start > r.End {
			return fmt.Errorf("fragment range [%d,%d) outside table of %d rows", r.Start, r.End, t.NumRows())
		}
		for i := r.Start; i < r.End; i++ {
			if k+len(idx) > len(values) {
				return fmt.Errorf("%w: %d values for the given ranges", core.ErrShapeMismatch, len(values))
			}
			row := t.Row(i)
			for _, c := range idx {
				row[c] = values[k]
				k++
			}
		}
	}
	if k != len(values) {
		return fmt.Errorf("%w: %d values for %d cells", core.ErrShapeMismatch, len(values), k)
	}
	return nil
}

// GetSliced copies the rows of the given ranges into a new table. A nil
// columns slice keeps all columns.
func GetSliced(t *Table, ranges []Range, columns []string) (*Table, error) {
	if columns == nil {
		columns = t.columns
	}
	idx, err := t.indices(columns)
	if err != nil {
		return nil, err
	}
	rows := 0
	for _, r := range ranges {
		if r.Start < 0 || r.End > t.NumRows() || r.Start > r.End {
			return nil, fmt.Errorf("fragment range [%d,%d) outside table of %d rows", r.Start, r.End, t.NumRows())
		}
		rows += r.End - r.Start
	}
	out := NewTable(columns, rows)
	k := 0
	for _, r := range ranges {
		for i := r.Start; i < r.End; i++ {
			src, dst := t.Row(i), out.Row(k)
			for j, c := range idx {
				dst[j] = src[c]
			}
			k++
		}
	}
	return out, nil
}

// PrecursorRanges returns the fragment ranges of every precursor.
func PrecursorRanges(t *core.PrecursorTable) []Range {
	ranges := make([]Range, t.Len())
	for i := range t.Rows {
		ranges[i] = Range{Start: t.Rows[i].FragStart, End: t.Rows[i].FragEnd}
	}
	return ranges
}

// RebaseFragIndex shifts every fragment range of t by offset.
func RebaseFragIndex(t *core.PrecursorTable, offset int) {
	for i := range t.Rows {
		t.Rows[i].FragStart += offset
		t.Rows[i].FragEnd += offset
	}
}

// ConcatPrecursorFragment concatenates (precursor, fragment) table pairs.
// The index ranges of each precursor table after the first are rebased by the
// total length of the preceding fragment tables, so they stay valid in the
// concatenated fragment table. Additional fragment table lists (e.g.
// intensities sharing the same layout) are concatenated alongside. Inputs are
// not modified; labels of the result are reset.
func ConcatPrecursorFragment(precursors []*core.PrecursorTable, fragments []*Table, others ...[]*Table) (*core.PrecursorTable, *Table, []*Table, error) {
	if len(precursors) != len(fragments) {
		return nil, nil, nil, fmt.Errorf("%w: %d precursor tables but %d fragment tables", core.ErrShapeMismatch, len(precursors), len(fragments))
	}

	rebased := make([]*core.PrecursorTable, len(precursors))
	offset := 0
	for i, p := range precursors {
		if !p.Has(core.ColFragIndex) {
			return nil, nil, nil, fmt.Errorf("precursor table %d: %w", i, ErrMissingFragIndex)
		}
		cp := p.Subset(allPositions(p.Len()))
		RebaseFragIndex(cp, offset)
		rebased[i] = cp
		offset += fragments[i].NumRows()
	}

	prec := core.Concat(rebased...)
	prec.ResetLabels()

	frag, err := ConcatTables(fragments...)
	if err != nil {
		return nil, nil, nil, err
	}

	var rest []*Table
	for _, list := range others {
		if len(list) != len(fragments) {
			return nil, nil, nil, fmt.Errorf("%w: %d extra fragment tables for %d pairs", core.ErrShapeMismatch, len(list), len(fragments))
		}
		other, err := ConcatTables(list...)
		if err != nil {
			return nil, nil, nil, err
		}
		rest = append(rest, other)
	}

	return prec, frag, rest, nil
}

func allPositions(n int) []int {
	positions := make([]int, n)
	for i := range positions {
		positions[i] = i
	}
	return positions
}
