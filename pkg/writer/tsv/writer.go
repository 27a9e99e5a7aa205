// Package tsv writes enriched precursor tables and fragment tables as
// tab-separated text
package tsv

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/pepmass/pkg/core"
	"github.com/ChrisMcGann/pepmass/pkg/fragment"
)

// Writer writes precursor rows. Columns are derived from the first table
// written; later tables must carry at least those columns.
type Writer struct {
	w       *bufio.Writer
	cols    core.Column
	started bool
}

// NewWriter creates a new precursor table writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// header returns the column names for a column set, in output order
func header(cols core.Column) []string {
	names := []string{"sequence", "mods", "mod_sites"}
	if cols&core.ColCharge != 0 {
		names = append(names, "charge")
	}
	if cols&core.ColMassShifts != 0 {
		names = append(names, "mass_shifts", "shift_sites")
	}
	names = append(names, "nAA")
	if cols&core.ColPrecursorMZ != 0 {
		names = append(names, "precursor_mz")
	}
	if cols&core.ColFragIndex != 0 {
		names = append(names, "frag_start_idx", "frag_end_idx")
	}
	if cols&core.ColIsotope != 0 {
		names = append(names,
			"isotope_intensity_m1", "isotope_intensity_m2",
			"isotope_apex_intensity", "isotope_apex_index",
			"isotope_mz_m1", "isotope_mz_m2", "isotope_apex_mz",
		)
	}
	if cols&core.ColModSeqHash != 0 {
		names = append(names, "mod_seq_hash")
	}
	if cols&core.ColModSeqChargeHash != 0 {
		names = append(names, "mod_seq_charge_hash")
	}
	return names
}

// WriteTable writes the rows of t, preceded by the header on first use
func (w *Writer) WriteTable(t *core.PrecursorTable) error {
	if !w.started {
		w.cols = t.Columns() &^ core.ColNAA
		if _, err := w.w.WriteString(strings.Join(header(w.cols), "\t") + "\n"); err != nil {
			return err
		}
		w.started = true
	} else if !t.Has(w.cols) {
		return fmt.Errorf("table is missing columns %v of the header", header(w.cols&^t.Columns()))
	}

	fields := make([]string, 0, 24)
	for i := range t.Rows {
		fields = appendRow(fields[:0], &t.Rows[i], w.cols)
		if _, err := w.w.WriteString(strings.Join(fields, "\t") + "\n"); err != nil {
			return err
		}
	}
	return nil
}

func appendRow(fields []string, p *core.Precursor, cols core.Column) []string {
	fields = append(fields, p.Sequence, p.ModsText(), p.SitesText())
	if cols&core.ColCharge != 0 {
		fields = append(fields, strconv.Itoa(p.Charge))
	}
	if cols&core.ColMassShifts != 0 {
		fields = append(fields, p.ShiftsText(), p.ShiftSitesText())
	}
	fields = append(fields, strconv.Itoa(len(p.Sequence)))
	if cols&core.ColPrecursorMZ != 0 {
		fields = append(fields, formatFloat(p.PrecursorMZ))
	}
	if cols&core.ColFragIndex != 0 {
		fields = append(fields, strconv.Itoa(p.FragStart), strconv.Itoa(p.FragEnd))
	}
	if cols&core.ColIsotope != 0 {
		iso := p.Isotope
		apexIndex := strconv.Itoa(iso.ApexIndex)
		if math.IsNaN(iso.ApexMZ) {
			apexIndex = "NaN"
		}
		fields = append(fields,
			formatFloat(iso.IntensityM1), formatFloat(iso.IntensityM2),
			formatFloat(iso.ApexIntensity), apexIndex,
			formatFloat(iso.MZM1), formatFloat(iso.MZM2), formatFloat(iso.ApexMZ),
		)
	}
	if cols&core.ColModSeqHash != 0 {
		fields = append(fields, strconv.FormatInt(p.ModSeqHash, 10))
	}
	if cols&core.ColModSeqChargeHash != 0 {
		fields = append(fields, strconv.FormatInt(p.ModSeqChargeHash, 10))
	}
	return fields
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Flush writes any buffered data
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// WriteFragments writes a fragment table, one row per fragment position
func WriteFragments(out io.Writer, frag *fragment.Table) error {
	w := bufio.NewWriter(out)
	if _, err := w.WriteString(strings.Join(frag.Columns(), "\t") + "\n"); err != nil {
		return err
	}

	fields := make([]string, len(frag.Columns()))
	for i := 0; i < frag.NumRows(); i++ {
		for j, v := range frag.Row(i) {
			fields[j] = formatFloat(v)
		}
		if _, err := w.WriteString(strings.Join(fields, "\t") + "\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}
