package core

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestDefaultModRegistry(t *testing.T) {
	reg := DefaultModRegistry()

	tests := []struct {
		id       string
		wantMass float64
		wantLoss float64
	}{
		{"Carbamidomethyl@C", 57.021464, 0},
		{"Oxidation@M", 15.994915, 63.998285},
		{"Phospho@S", 79.966331, 97.976896},
		{"Phospho@Y", 79.966331, 0},
		{"Acetyl@Protein N-term", 42.010565, 0},
		{"TMTpro@K", 304.207146, 0},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			entry, ok := reg.Get(tt.id)
			if !ok {
				t.Fatalf("%s not registered", tt.id)
			}
			if math.Abs(entry.Mass-tt.wantMass) > 0.0001 {
				t.Errorf("Mass = %.6f, want %.6f", entry.Mass, tt.wantMass)
			}
			if math.Abs(entry.LossMass-tt.wantLoss) > 0.0001 {
				t.Errorf("LossMass = %.6f, want %.6f", entry.LossMass, tt.wantLoss)
			}
		})
	}

	if _, err := reg.Mass("Nonsense@X"); !errors.Is(err, ErrUnknownModification) {
		t.Errorf("expected ErrUnknownModification, got %v", err)
	}
}

func TestLoadFromCSV(t *testing.T) {
	input := strings.Join([]string{
		"mod_name\tmass\tcomposition\tmodloss\tmodloss_importance",
		"Custom@K\t100.5\t\t\t",
		"Formyl@Any N-term\t\tH(0)C(1)O(1)\t\t",
		"Lossy@S\t80\t\t98\t2",
		"",
	}, "\n")

	reg := NewModRegistry()
	if err := reg.LoadFromCSV(strings.NewReader(input)); err != nil {
		t.Fatalf("LoadFromCSV() error = %v", err)
	}
	if reg.Len() != 3 {
		t.Fatalf("expected 3 modifications, got %d", reg.Len())
	}

	custom, _ := reg.Get("Custom@K")
	if custom.Mass != 100.5 || custom.Composition != nil {
		t.Errorf("unexpected Custom@K entry: %+v", custom)
	}
	formyl, _ := reg.Get("Formyl@Any N-term")
	if math.Abs(formyl.Mass-27.994915) > 0.0001 {
		t.Errorf("Formyl mass = %.6f, want 27.994915", formyl.Mass)
	}
	if formyl.Site.Terminus != AnyNTerm {
		t.Errorf("Formyl site = %+v, want Any N-term", formyl.Site)
	}
	lossy, _ := reg.Get("Lossy@S")
	if lossy.LossMass != 98 || lossy.LossImportance != 2 {
		t.Errorf("unexpected Lossy@S entry: %+v", lossy)
	}
}

func TestLoadFromCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"no name column", "name,mass\nA@K,1\n"},
		{"bad mass", "mod_name,mass\nA@K,abc\n"},
		{"no mass or composition", "mod_name,mass\nA@K,\n"},
		{"bad site", "mod_name,mass\nA@lower,1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NewModRegistry().LoadFromCSV(strings.NewReader(tt.input)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSiteRule(t *testing.T) {
	tests := []struct {
		id       string
		sequence string
		site     int
		want     bool
	}{
		{"Phospho@S", "PEPSIDE", 4, true},
		{"Phospho@S", "PEPSIDE", 3, false},
		{"Acetyl@Any N-term", "PEPSIDE", 0, true},
		{"Acetyl@Any N-term", "PEPSIDE", 2, false},
		{"Gln->pyro-Glu@Q^Any N-term", "QEPSIDE", 0, true},
		{"Gln->pyro-Glu@Q^Any N-term", "PEPSIDE", 0, false},
		{"Amidated@Any C-term", "PEPSIDE", -1, true},
		{"Phospho@S", "PEPSIDE", 9, false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			_, site := SplitModName(tt.id)
			rule, err := ParseSiteRule(site)
			if err != nil {
				t.Fatal(err)
			}
			if got := rule.Allows(tt.sequence, tt.site); got != tt.want {
				t.Errorf("Allows(%s, %d) = %v, want %v", tt.sequence, tt.site, got, tt.want)
			}
		})
	}
}
