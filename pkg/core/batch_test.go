package core

import (
	"errors"
	"testing"
)

func TestGroupByLength(t *testing.T) {
	table := NewPrecursorTable([]Precursor{
		{Sequence: "PEPTIDE"},
		{Sequence: "AC"},
		{Sequence: "PEPTIDK"},
		{Sequence: "GG"},
		{Sequence: "LLL"},
	}, 0)

	groups, err := GroupByLength(table)
	if err != nil {
		t.Fatal(err)
	}
	if !table.Has(ColNAA) {
		t.Error("GroupByLength should fill nAA")
	}

	want := []LengthGroup{
		{NAA: 2, Positions: []int{1, 3}},
		{NAA: 3, Positions: []int{4}},
		{NAA: 7, Positions: []int{0, 2}},
	}
	if len(groups) != len(want) {
		t.Fatalf("got %d groups, want %d", len(groups), len(want))
	}
	for i, g := range groups {
		if g.NAA != want[i].NAA {
			t.Errorf("group %d nAA = %d, want %d", i, g.NAA, want[i].NAA)
		}
		if len(g.Positions) != len(want[i].Positions) {
			t.Fatalf("group %d positions = %v, want %v", i, g.Positions, want[i].Positions)
		}
		for j := range g.Positions {
			if g.Positions[j] != want[i].Positions[j] {
				t.Errorf("group %d positions = %v, want %v", i, g.Positions, want[i].Positions)
			}
			if len(table.Rows[g.Positions[j]].Sequence) != g.NAA {
				t.Errorf("row %d placed in wrong group", g.Positions[j])
			}
		}
	}
}

func TestGroupByLengthRejectsStaleNAA(t *testing.T) {
	table := NewPrecursorTable([]Precursor{{Sequence: "PEPTIDE", NAA: 6}}, ColNAA)
	if _, err := GroupByLength(table); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestIsPrecursorSorted(t *testing.T) {
	sorted := NewPrecursorTable([]Precursor{{Sequence: "AC"}, {Sequence: "ACD"}, {Sequence: "ACE"}}, 0)
	sorted.FillNAA()
	if !IsPrecursorSorted(sorted) {
		t.Error("expected sorted table")
	}

	unsorted := NewPrecursorTable([]Precursor{{Sequence: "ACD"}, {Sequence: "AC"}}, 0)
	unsorted.FillNAA()
	if IsPrecursorSorted(unsorted) {
		t.Error("nAA decreases, expected unsorted")
	}

	gapped := NewPrecursorTable([]Precursor{{Sequence: "AC"}, {Sequence: "ACD"}}, 0)
	gapped.FillNAA()
	gapped.Labels = []int{0, 2}
	if IsPrecursorSorted(gapped) {
		t.Error("labels not contiguous, expected unsorted")
	}

	if !IsPrecursorSorted(NewPrecursorTable(nil, 0)) {
		t.Error("empty table is sorted")
	}
}

func TestRefinePrecursorTable(t *testing.T) {
	table := NewPrecursorTable([]Precursor{
		{Sequence: "PEPTIDE", FragStart: 0, FragEnd: 6},
		{Sequence: "AC", FragStart: 6, FragEnd: 7},
		{Sequence: "PEPTIDK", FragStart: 7, FragEnd: 13},
	}, ColFragIndex)

	RefinePrecursorTable(table, true)

	if table.Has(ColFragIndex) {
		t.Error("fragment index should be dropped")
	}
	want := []string{"AC", "PEPTIDE", "PEPTIDK"}
	for i, seq := range want {
		if table.Rows[i].Sequence != seq {
			t.Errorf("row %d = %s, want %s", i, table.Rows[i].Sequence, seq)
		}
		if table.Labels[i] != i {
			t.Errorf("label %d = %d after reset", i, table.Labels[i])
		}
	}
	if !IsPrecursorSorted(table) {
		t.Error("refined table should be sorted")
	}
}
