package core

import (
	"errors"
	"math"
	"testing"
)

func TestModificationMass(t *testing.T) {
	reg := DefaultModRegistry()
	phospho, _ := reg.Mass("Phospho@S")
	acetyl, _ := reg.Mass("Acetyl@Any N-term")
	amid, _ := reg.Mass("Amidated@Any C-term")
	cam, _ := reg.Mass("Carbamidomethyl@C")

	tests := []struct {
		name  string
		nAA   int
		mods  []string
		sites []int
		want  []float64
	}{
		{
			name:  "internal site",
			nAA:   4,
			mods:  []string{"Phospho@S"},
			sites: []int{3},
			want:  []float64{0, 0, phospho, 0},
		},
		{
			name:  "termini",
			nAA:   3,
			mods:  []string{"Acetyl@Any N-term", "Amidated@Any C-term"},
			sites: []int{0, -1},
			want:  []float64{acetyl, 0, amid},
		},
		{
			name:  "same residue accumulates",
			nAA:   3,
			mods:  []string{"Acetyl@Any N-term", "Carbamidomethyl@C"},
			sites: []int{0, 1},
			want:  []float64{acetyl + cam, 0, 0},
		},
		{
			name:  "single residue peptide",
			nAA:   1,
			mods:  []string{"Acetyl@Any N-term", "Amidated@Any C-term"},
			sites: []int{0, -1},
			want:  []float64{acetyl + amid},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ModificationMass(reg, tt.nAA, tt.mods, tt.sites)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1e-9 {
					t.Errorf("position %d = %.6f, want %.6f", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestModificationMassErrors(t *testing.T) {
	reg := DefaultModRegistry()

	if _, err := ModificationMass(reg, 5, []string{"Unknown@K"}, []int{2}); !errors.Is(err, ErrUnknownModification) {
		t.Errorf("expected ErrUnknownModification, got %v", err)
	}
	if _, err := ModificationMass(reg, 5, []string{"Phospho@S"}, []int{2, 3}); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
	if _, err := ModificationMass(reg, 5, []string{"Phospho@S"}, []int{6}); !errors.Is(err, ErrSiteOutOfRange) {
		t.Errorf("expected ErrSiteOutOfRange, got %v", err)
	}
	if _, err := ModificationMass(reg, 5, []string{"Phospho@S"}, []int{-2}); !errors.Is(err, ErrSiteOutOfRange) {
		t.Errorf("expected ErrSiteOutOfRange, got %v", err)
	}
}

func TestShiftModificationMass(t *testing.T) {
	got, err := ShiftModificationMass(5, []float64{10, 20, 1.5}, []int{0, -1, 3})
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{10, 0, 1.5, 0, 20}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d = %v, want %v", i, got[i], want[i])
		}
	}

	if _, err := ShiftModificationMass(5, []float64{1}, nil); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestModLossMass(t *testing.T) {
	reg := DefaultModRegistry()
	phosphoLoss := reg.mods["Phospho@S"].LossMass
	oxLoss := reg.mods["Oxidation@M"].LossMass

	tests := []struct {
		name  string
		mods  []string
		sites []int
		nterm bool
		want  []float64
	}{
		{
			name:  "no loss-bearing mods",
			mods:  []string{"Carbamidomethyl@C"},
			sites: []int{2},
			nterm: true,
			want:  []float64{0, 0, 0, 0, 0},
		},
		{
			name:  "b side",
			mods:  []string{"Phospho@S"},
			sites: []int{3},
			nterm: true,
			want:  []float64{0, 0, phosphoLoss, phosphoLoss, phosphoLoss},
		},
		{
			name:  "y side",
			mods:  []string{"Phospho@S"},
			sites: []int{3},
			nterm: false,
			want:  []float64{phosphoLoss, phosphoLoss, 0, 0, 0},
		},
		{
			name:  "more important loss wins",
			mods:  []string{"Oxidation@M", "Phospho@S"},
			sites: []int{1, 4},
			nterm: true,
			want:  []float64{oxLoss, oxLoss, oxLoss, phosphoLoss, phosphoLoss},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ModLossMass(reg, 6, tt.mods, tt.sites, tt.nterm)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 5 {
				t.Fatalf("len = %d, want 5", len(got))
			}
			for i := range tt.want {
				if math.Abs(got[i]-tt.want[i]) > 1e-9 {
					t.Errorf("position %d = %.6f, want %.6f", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestModificationMassSum(t *testing.T) {
	reg := DefaultModRegistry()
	got, err := ModificationMassSum(reg, []string{"Oxidation@M", "Carbamidomethyl@C"})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got-(15.994915+57.021464)) > 0.0001 {
		t.Errorf("ModificationMassSum() = %.6f", got)
	}
	if _, err := ModificationMassSum(reg, []string{"Bogus@A"}); !errors.Is(err, ErrUnknownModification) {
		t.Errorf("expected ErrUnknownModification, got %v", err)
	}
}
