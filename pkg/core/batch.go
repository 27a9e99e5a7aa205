package core

import (
	"fmt"
	"sort"
)

// LengthGroup is the set of row positions sharing one nAA, in row order.
type LengthGroup struct {
	NAA       int
	Positions []int
}

// GroupByLength partitions the table into groups keyed by nAA, ascending.
// nAA is filled from the sequences when the column is missing. A row whose
// cached nAA disagrees with its sequence length is an error, since it would
// be placed in the wrong residue-mass matrix.
func GroupByLength(t *PrecursorTable) ([]LengthGroup, error) {
	if !t.Has(ColNAA) {
		t.FillNAA()
	}

	byLen := make(map[int][]int)
	for i := range t.Rows {
		p := &t.Rows[i]
		if p.NAA != len(p.Sequence) {
			return nil, fmt.Errorf("%w: row %d has nAA %d but sequence %s", ErrShapeMismatch, i, p.NAA, p.Sequence)
		}
		byLen[p.NAA] = append(byLen[p.NAA], i)
	}

	groups := make([]LengthGroup, 0, len(byLen))
	for nAA, positions := range byLen {
		groups = append(groups, LengthGroup{NAA: nAA, Positions: positions})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].NAA < groups[j].NAA
	})
	return groups, nil
}

// IsPrecursorSorted reports whether row 0 has label 0, nAA is non-decreasing
// and labels are contiguous. Sorted tables can be written per contiguous
// slice of each length group.
func IsPrecursorSorted(t *PrecursorTable) bool {
	if t.Len() == 0 {
		return true
	}
	if !t.Has(ColNAA) || t.Labels[0] != 0 {
		return false
	}
	for i := 1; i < t.Len(); i++ {
		if t.Rows[i].NAA < t.Rows[i-1].NAA {
			return false
		}
		if t.Labels[i]-t.Labels[i-1] != 1 {
			return false
		}
	}
	return true
}

// RefinePrecursorTable prepares a table for fast precursor and fragment
// calculation: fills nAA, optionally drops the fragment index columns and,
// unless already sorted, stable-sorts rows by nAA and resets labels.
func RefinePrecursorTable(t *PrecursorTable, dropFragIdx bool) *PrecursorTable {
	if !t.Has(ColNAA) {
		t.FillNAA()
	}

	if dropFragIdx && t.Has(ColFragIndex) {
		for i := range t.Rows {
			t.Rows[i].FragStart, t.Rows[i].FragEnd = 0, 0
		}
		t.Drop(ColFragIndex)
	}

	if !IsPrecursorSorted(t) {
		sort.Stable(byNAA{t})
		t.ResetLabels()
	}

	return t
}

type byNAA struct{ t *PrecursorTable }

func (a byNAA) Len() int           { return len(a.t.Rows) }
func (a byNAA) Less(i, j int) bool { return a.t.Rows[i].NAA < a.t.Rows[j].NAA }
func (a byNAA) Swap(i, j int) {
	a.t.Rows[i], a.t.Rows[j] = a.t.Rows[j], a.t.Rows[i]
	a.t.Labels[i], a.t.Labels[j] = a.t.Labels[j], a.t.Labels[i]
}
