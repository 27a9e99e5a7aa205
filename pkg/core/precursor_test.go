package core

import (
	"errors"
	"math"
	"testing"
)

func TestPrecursorTableValidation(t *testing.T) {
	tests := []struct {
		name    string
		rows    []Precursor
		cols    Column
		wantErr bool
	}{
		{
			name: "valid table",
			rows: []Precursor{
				{Sequence: "PEPTIDE", NAA: 7, Charge: 2, Mods: []string{"Phospho@T"}, ModSites: []int{4}},
				{Sequence: "AC", NAA: 2, Charge: 1},
			},
			cols:    ColNAA | ColCharge,
			wantErr: false,
		},
		{
			name:    "missing sequence",
			rows:    []Precursor{{Charge: 2}},
			cols:    ColCharge,
			wantErr: true,
		},
		{
			name:    "zero charge",
			rows:    []Precursor{{Sequence: "PEPTIDE", Charge: 0}},
			cols:    ColCharge,
			wantErr: true,
		},
		{
			name:    "stale nAA",
			rows:    []Precursor{{Sequence: "PEPTIDE", NAA: 6}},
			cols:    ColNAA,
			wantErr: true,
		},
		{
			name:    "mods and sites differ",
			rows:    []Precursor{{Sequence: "PEPTIDE", Mods: []string{"Phospho@T"}}},
			wantErr: true,
		},
		{
			name:    "site out of range",
			rows:    []Precursor{{Sequence: "PEPTIDE", Mods: []string{"Phospho@T"}, ModSites: []int{8}}},
			wantErr: true,
		},
		{
			name:    "fragment range wrong size",
			rows:    []Precursor{{Sequence: "PEPTIDE", FragStart: 0, FragEnd: 5}},
			cols:    ColFragIndex,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewPrecursorTable(tt.rows, tt.cols).Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			var verr *ValidationError
			if err != nil && !errors.As(err, &verr) {
				t.Errorf("expected *ValidationError, got %T", err)
			}
		})
	}
}

func TestSplitMods(t *testing.T) {
	mods, sites, err := SplitMods("Oxidation@M;Phospho@S", "3;-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(mods) != 2 || mods[1] != "Phospho@S" || sites[1] != -1 {
		t.Errorf("unexpected result %v %v", mods, sites)
	}

	if _, _, err := SplitMods("Oxidation@M", "3;4"); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
	if _, _, err := SplitMods("", "3"); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
	if mods, sites, err := SplitMods("", ""); err != nil || mods != nil || sites != nil {
		t.Errorf("empty columns should give no mods, got %v %v %v", mods, sites, err)
	}
}

func TestPrecursorText(t *testing.T) {
	p := Precursor{
		Sequence:   "PEPTIDE",
		Charge:     2,
		Mods:       []string{"Acetyl@Any N-term", "Phospho@T"},
		ModSites:   []int{0, 4},
		MassShifts: []float64{15.9949, -18.0106},
		ShiftSites: []int{1, -1},
	}

	if got := p.ModsText(); got != "Acetyl@Any N-term;Phospho@T" {
		t.Errorf("ModsText() = %s", got)
	}
	if got := p.SitesText(); got != "0;4" {
		t.Errorf("SitesText() = %s", got)
	}
	if got := p.ShiftsText(); got != "15.9949;-18.0106" {
		t.Errorf("ShiftsText() = %s", got)
	}
	if got := p.ShiftSitesText(); got != "1;-1" {
		t.Errorf("ShiftSitesText() = %s", got)
	}
	if got := p.Name(); got != "PEPTIDE/2" {
		t.Errorf("Name() = %s", got)
	}
}

func TestMarkInvalid(t *testing.T) {
	p := Precursor{Sequence: "PEPTIDE", PrecursorMZ: 400.2}
	p.MarkInvalid(ErrUnknownModification)

	if p.Valid() {
		t.Error("row should be invalid")
	}
	if !math.IsNaN(p.PrecursorMZ) {
		t.Errorf("PrecursorMZ = %v, want NaN", p.PrecursorMZ)
	}
	if !IsRowError(p.Err) {
		t.Errorf("IsRowError(%v) = false", p.Err)
	}
}

func TestConcatAndSortByLabel(t *testing.T) {
	a := NewPrecursorTable([]Precursor{{Sequence: "AAA"}, {Sequence: "CC"}}, ColNAA|ColCharge)
	b := &PrecursorTable{Rows: []Precursor{{Sequence: "DDDD"}}, Labels: []int{2}}
	b.Set(ColNAA)

	// b first, as a worker pool might deliver it
	c := Concat(b, a)
	if !c.Has(ColNAA) || c.Has(ColCharge) {
		t.Errorf("Concat should keep only common columns, got %b", c.Columns())
	}

	c.SortByLabel()
	want := []string{"AAA", "CC", "DDDD"}
	for i, seq := range want {
		if c.Rows[i].Sequence != seq || c.Labels[i] != i {
			t.Errorf("row %d = %s (label %d), want %s", i, c.Rows[i].Sequence, c.Labels[i], seq)
		}
	}
}
