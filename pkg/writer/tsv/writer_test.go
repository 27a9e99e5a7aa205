package tsv

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/ChrisMcGann/pepmass/pkg/core"
	"github.com/ChrisMcGann/pepmass/pkg/fragment"
	"github.com/ChrisMcGann/pepmass/pkg/precursor"
	tsvreader "github.com/ChrisMcGann/pepmass/pkg/reader/tsv"
)

func TestHeaderOrder(t *testing.T) {
	cols := core.ColCharge | core.ColMassShifts | core.ColPrecursorMZ | core.ColFragIndex |
		core.ColIsotope | core.ColModSeqHash | core.ColModSeqChargeHash
	want := "sequence mods mod_sites charge mass_shifts shift_sites nAA precursor_mz frag_start_idx frag_end_idx " +
		"isotope_intensity_m1 isotope_intensity_m2 isotope_apex_intensity isotope_apex_index " +
		"isotope_mz_m1 isotope_mz_m2 isotope_apex_mz mod_seq_hash mod_seq_charge_hash"
	if got := strings.Join(header(cols), " "); got != want {
		t.Errorf("header = %s", got)
	}
}

func TestWriteTableRoundTrip(t *testing.T) {
	reg := core.DefaultModRegistry()
	prec := core.NewPrecursorTable([]core.Precursor{
		{Sequence: "PEPTIDE", Charge: 2, Mods: []string{"Phospho@T"}, ModSites: []int{4}},
		{Sequence: "AC", Charge: 1},
		{Sequence: "PEPTIDK", Charge: 2, Mods: []string{"Bogus@T"}, ModSites: []int{4}},
	}, core.ColCharge)
	out, _, err := fragment.CalcFragmentMZ(reg, prec, []string{"b_1"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := precursor.CalcPrecursorIsotope(reg, out); err != nil {
		t.Fatal(err)
	}
	precursor.HashPrecursorTable(out, 0)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteTable(out); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("wrote %d lines, want 4", len(lines))
	}
	if !strings.Contains(lines[3], "NaN") {
		t.Errorf("invalid row should carry NaN values: %s", lines[3])
	}

	back, err := tsvreader.ReadAll(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if back.Len() != out.Len() {
		t.Fatalf("read back %d rows, want %d", back.Len(), out.Len())
	}
	for i := range out.Rows {
		want, got := out.Rows[i], back.Rows[i]
		if got.Sequence != want.Sequence || got.ModsText() != want.ModsText() || got.SitesText() != want.SitesText() {
			t.Errorf("row %d = %+v", i, got)
		}
		if got.FragStart != want.FragStart || got.FragEnd != want.FragEnd {
			t.Errorf("row %d range = [%d,%d)", i, got.FragStart, got.FragEnd)
		}
		if math.IsNaN(want.PrecursorMZ) != math.IsNaN(got.PrecursorMZ) ||
			(!math.IsNaN(want.PrecursorMZ) && got.PrecursorMZ != want.PrecursorMZ) {
			t.Errorf("row %d precursor_mz = %v, want %v", i, got.PrecursorMZ, want.PrecursorMZ)
		}
	}
}

func TestWriteTableMissingColumns(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	full := core.NewPrecursorTable([]core.Precursor{{Sequence: "AC", Charge: 1}}, core.ColCharge|core.ColPrecursorMZ)
	if err := w.WriteTable(full); err != nil {
		t.Fatal(err)
	}
	partial := core.NewPrecursorTable([]core.Precursor{{Sequence: "GG", Charge: 1}}, core.ColCharge)
	if err := w.WriteTable(partial); err == nil {
		t.Error("expected error for table missing precursor_mz")
	}
}

func TestWriteFragments(t *testing.T) {
	frag := fragment.NewTable([]string{"b_1", "y_1"}, 2)
	copy(frag.Row(0), []float64{98.06, 175.12})
	copy(frag.Row(1), []float64{math.NaN(), 0})

	var buf bytes.Buffer
	if err := WriteFragments(&buf, frag); err != nil {
		t.Fatal(err)
	}
	want := "b_1\ty_1\n98.06\t175.12\nNaN\t0\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}
