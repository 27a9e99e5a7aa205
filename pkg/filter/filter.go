// Package filter provides precursor row filters and fragment column selection
package filter

import (
	"fmt"
	"math"
	"strings"

	"github.com/ChrisMcGann/pepmass/pkg/core"
	"github.com/ChrisMcGann/pepmass/pkg/fragment"
)

// Config holds filtering configuration
type Config struct {
	MinLen      int      // Minimum nAA (0 = no limit)
	MaxLen      int      // Maximum nAA (0 = no limit)
	MinCharge   int      // Minimum precursor charge (0 = no limit)
	MaxCharge   int      // Maximum precursor charge (0 = no limit)
	MinMZ       float64  // Minimum precursor m/z (0 = no limit)
	MaxMZ       float64  // Maximum precursor m/z (0 = no limit)
	DropInvalid bool     // Drop rows that could not be computed
	IonTypes    []string // Keep only fragment columns of these ion types (nil = all)
}

// Apply returns the rows of t that pass all configured filters. Labels and
// fragment ranges are kept, so the result still addresses the same
// fragment table.
func (c *Config) Apply(t *core.PrecursorTable) (*core.PrecursorTable, error) {
	if (c.MinCharge > 0 || c.MaxCharge > 0) && !t.Has(core.ColCharge) {
		return nil, fmt.Errorf("charge filter: %w", core.ErrMissingCharge)
	}
	if (c.MinMZ > 0 || c.MaxMZ > 0) && !t.Has(core.ColPrecursorMZ) {
		return nil, fmt.Errorf("m/z filter needs precursor_mz, run the m/z calculation first")
	}

	if c.DropInvalid {
		t = RemoveInvalid(t)
	}

	var keep []int
	for i := range t.Rows {
		if c.keep(&t.Rows[i]) {
			keep = append(keep, i)
		}
	}
	return t.Subset(keep), nil
}

func (c *Config) keep(p *core.Precursor) bool {
	nAA := len(p.Sequence)
	if c.MinLen > 0 && nAA < c.MinLen {
		return false
	}
	if c.MaxLen > 0 && nAA > c.MaxLen {
		return false
	}

	if c.MinCharge > 0 && p.Charge < c.MinCharge {
		return false
	}
	if c.MaxCharge > 0 && p.Charge > c.MaxCharge {
		return false
	}

	// NaN m/z fails every window
	if c.MinMZ > 0 && !(p.PrecursorMZ >= c.MinMZ) {
		return false
	}
	if c.MaxMZ > 0 && !(p.PrecursorMZ <= c.MaxMZ) {
		return false
	}
	return true
}

// Columns keeps only the fragment columns matching the configured ion types
func (c *Config) Columns(frag *fragment.Table) (*fragment.Table, error) {
	if len(c.IonTypes) == 0 {
		return frag, nil
	}

	var columns []string
	for _, column := range frag.Columns() {
		if matchesIonType(column, c.IonTypes) {
			columns = append(columns, column)
		}
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("no fragment columns match ion types %s", strings.Join(c.IonTypes, ","))
	}
	return frag.Select(columns)
}

// matchesIonType checks if a charged fragment type column belongs to any of
// the allowed ion types, e.g. "b" matches "b_1" and "b_2" but not "b_modloss_1"
func matchesIonType(column string, ionTypes []string) bool {
	tag, _, err := fragment.SplitChargedFragType(column)
	if err != nil {
		return false
	}

	for _, ionType := range ionTypes {
		if tag == ionType {
			return true
		}
	}
	return false
}

// RemoveInvalid drops rows with a computation error or a non-finite m/z
func RemoveInvalid(t *core.PrecursorTable) *core.PrecursorTable {
	var keep []int
	for i := range t.Rows {
		p := &t.Rows[i]
		if !p.Valid() {
			continue
		}
		if t.Has(core.ColPrecursorMZ) && (math.IsNaN(p.PrecursorMZ) || math.IsInf(p.PrecursorMZ, 0)) {
			continue
		}
		keep = append(keep, i)
	}
	return t.Subset(keep)
}
