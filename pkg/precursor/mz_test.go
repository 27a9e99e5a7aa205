package precursor

import (
	"errors"
	"math"
	"testing"

	"github.com/ChrisMcGann/pepmass/pkg/core"
)

func residueSum(t *testing.T, seq string) float64 {
	t.Helper()
	m, err := core.SequenceMass(seq)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestUpdatePrecursorMZ(t *testing.T) {
	reg := core.DefaultModRegistry()
	phospho, _ := reg.Mass("Phospho@S")

	tests := []struct {
		name string
		row  core.Precursor
		want float64
	}{
		{
			name: "dipeptide",
			row:  core.Precursor{Sequence: "AC", Charge: 1},
			want: residueSum(t, "AC") + core.MassH2O + core.ProtonMass,
		},
		{
			name: "doubly charged",
			row:  core.Precursor{Sequence: "PEPTIDE", Charge: 2},
			want: (residueSum(t, "PEPTIDE")+core.MassH2O)/2 + core.ProtonMass,
		},
		{
			name: "modified",
			row:  core.Precursor{Sequence: "PEPSIDE", Charge: 2, Mods: []string{"Phospho@S"}, ModSites: []int{4}},
			want: (residueSum(t, "PEPSIDE")+phospho+core.MassH2O)/2 + core.ProtonMass,
		},
		{
			name: "mass shift",
			row:  core.Precursor{Sequence: "PEPSIDE", Charge: 3, MassShifts: []float64{15.9949}, ShiftSites: []int{2}},
			want: (residueSum(t, "PEPSIDE")+15.9949+core.MassH2O)/3 + core.ProtonMass,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := core.NewPrecursorTable([]core.Precursor{tt.row}, core.ColCharge)
			if err := UpdatePrecursorMZ(reg, table, 0); err != nil {
				t.Fatal(err)
			}
			got := table.Rows[0].PrecursorMZ
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("precursor_mz = %.6f, want %.6f", got, tt.want)
			}
			if !table.Has(core.ColPrecursorMZ) {
				t.Error("precursor_mz column should be set")
			}
		})
	}
}

func TestUpdatePrecursorMZMissingCharge(t *testing.T) {
	table := core.NewPrecursorTable([]core.Precursor{{Sequence: "AC"}}, 0)
	if err := UpdatePrecursorMZ(core.DefaultModRegistry(), table, 0); !errors.Is(err, core.ErrMissingCharge) {
		t.Errorf("expected ErrMissingCharge, got %v", err)
	}
}

func TestUpdatePrecursorMZUnknownModification(t *testing.T) {
	table := core.NewPrecursorTable([]core.Precursor{
		{Sequence: "PEPTIDE", Charge: 2, Mods: []string{"Bogus@T"}, ModSites: []int{4}},
		{Sequence: "PEPTIDE", Charge: 2},
	}, core.ColCharge)
	if err := UpdatePrecursorMZ(core.DefaultModRegistry(), table, 0); err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(table.Rows[0].PrecursorMZ) || !errors.Is(table.Rows[0].Err, core.ErrUnknownModification) {
		t.Errorf("row with unknown modification: mz %v, err %v", table.Rows[0].PrecursorMZ, table.Rows[0].Err)
	}
	if math.IsNaN(table.Rows[1].PrecursorMZ) {
		t.Error("valid row should get a finite precursor_mz")
	}
}

func TestUpdatePrecursorMZRefinesWithoutNAA(t *testing.T) {
	table := core.NewPrecursorTable([]core.Precursor{
		{Sequence: "PEPTIDE", Charge: 2},
		{Sequence: "AC", Charge: 1},
		{Sequence: "LLL", Charge: 1},
	}, core.ColCharge)

	if err := UpdatePrecursorMZ(core.DefaultModRegistry(), table, 0); err != nil {
		t.Fatal(err)
	}
	want := []string{"AC", "LLL", "PEPTIDE"}
	for i, seq := range want {
		if table.Rows[i].Sequence != seq {
			t.Fatalf("row %d = %s, want %s", i, table.Rows[i].Sequence, seq)
		}
	}
	if !core.IsPrecursorSorted(table) {
		t.Error("refined table should be sorted")
	}
}

// Tables that carry nAA but are not sorted keep their row order and get the
// same values as the sorted path.
func TestUpdatePrecursorMZUnsortedKeepsOrder(t *testing.T) {
	reg := core.DefaultModRegistry()
	rows := []core.Precursor{
		{Sequence: "PEPTIDE", Charge: 2},
		{Sequence: "AC", Charge: 1},
		{Sequence: "PEPTIDK", Charge: 3},
		{Sequence: "GG", Charge: 2},
		{Sequence: "LLLL", Charge: 1},
	}

	unsorted := core.NewPrecursorTable(append([]core.Precursor(nil), rows...), core.ColCharge)
	unsorted.FillNAA()
	if core.IsPrecursorSorted(unsorted) {
		t.Fatal("fixture should not be sorted")
	}

	for _, batchSize := range []int{1, 2, 100} {
		if err := UpdatePrecursorMZ(reg, unsorted, batchSize); err != nil {
			t.Fatal(err)
		}
		for i, row := range rows {
			got := unsorted.Rows[i]
			if got.Sequence != row.Sequence || unsorted.Labels[i] != i {
				t.Fatalf("batch %d: row %d moved: %s label %d", batchSize, i, got.Sequence, unsorted.Labels[i])
			}
			want := (residueSum(t, row.Sequence)+core.MassH2O)/float64(row.Charge) + core.ProtonMass
			if math.Abs(got.PrecursorMZ-want) > 1e-9 {
				t.Errorf("batch %d: %s precursor_mz = %.6f, want %.6f", batchSize, row.Sequence, got.PrecursorMZ, want)
			}
		}
	}

	sorted := core.RefinePrecursorTable(core.NewPrecursorTable(append([]core.Precursor(nil), rows...), core.ColCharge), false)
	if err := UpdatePrecursorMZ(reg, sorted, 2); err != nil {
		t.Fatal(err)
	}
	bySeq := map[string]float64{}
	for _, p := range sorted.Rows {
		bySeq[p.Sequence] = p.PrecursorMZ
	}
	for _, p := range unsorted.Rows {
		if math.Abs(bySeq[p.Sequence]-p.PrecursorMZ) > 1e-12 {
			t.Errorf("%s: sorted and unsorted paths differ", p.Sequence)
		}
	}
}

// Concatenated tables repeat labels; every row still gets its own value.
func TestUpdatePrecursorMZConcatenatedTables(t *testing.T) {
	reg := core.DefaultModRegistry()
	first := core.NewPrecursorTable([]core.Precursor{{Sequence: "PEPTIDEK", Charge: 2}}, core.ColCharge)
	second := core.NewPrecursorTable([]core.Precursor{{Sequence: "AC", Charge: 1}}, core.ColCharge)
	first.FillNAA()
	second.FillNAA()

	table := core.Concat(first, second)
	if table.Labels[0] != table.Labels[1] {
		t.Fatalf("labels = %v, fixture needs a repeated label", table.Labels)
	}
	if err := UpdatePrecursorMZ(reg, table, 0); err != nil {
		t.Fatal(err)
	}

	want := []struct {
		seq    string
		charge int
	}{{"PEPTIDEK", 2}, {"AC", 1}}
	for i, w := range want {
		got := table.Rows[i]
		if got.Sequence != w.seq || got.Charge != w.charge {
			t.Fatalf("row %d = %s/%d, want %s/%d", i, got.Sequence, got.Charge, w.seq, w.charge)
		}
		mz := (residueSum(t, w.seq)+core.MassH2O)/float64(w.charge) + core.ProtonMass
		if math.Abs(got.PrecursorMZ-mz) > 1e-9 {
			t.Errorf("%s precursor_mz = %.6f, want %.6f", w.seq, got.PrecursorMZ, mz)
		}
	}
}

func TestCalcPeptideMassForSameLenSeqs(t *testing.T) {
	reg := core.DefaultModRegistry()
	rows := []core.Precursor{{Sequence: "ACD"}, {Sequence: "AXD"}, {Sequence: "GGG"}}
	masses, rowErrs, err := CalcPeptideMassForSameLenSeqs(reg, rows, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(rowErrs[1], core.ErrUnknownResidue) || !math.IsNaN(masses[1]) {
		t.Errorf("unknown residue row: mass %v, err %v", masses[1], rowErrs[1])
	}
	if math.Abs(masses[2]-(residueSum(t, "GGG")+core.MassH2O)) > 1e-9 {
		t.Errorf("GGG mass = %.6f", masses[2])
	}

	if _, _, err := CalcPeptideMassForSameLenSeqs(reg, rows, 4); !errors.Is(err, core.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch for wrong group length, got %v", err)
	}
}
