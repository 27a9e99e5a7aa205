// Package core provides the precursor record and table models and their
// validation logic.
package core

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Column flags the optional and derived columns present on a PrecursorTable.
type Column uint16

const (
	ColNAA Column = 1 << iota
	ColCharge
	ColMassShifts
	ColPrecursorMZ
	ColFragIndex
	ColIsotope
	ColModSeqHash
	ColModSeqChargeHash
)

// Isotope holds the isotope envelope columns of a precursor.
type Isotope struct {
	IntensityM1   float64 // abundance of mono+1 relative to mono
	IntensityM2   float64
	ApexIntensity float64
	ApexIndex     int // apex offset from mono, 0 means mono is the apex
	MZM1          float64
	MZM2          float64
	ApexMZ        float64
}

// Precursor is one row of the precursor table.
type Precursor struct {
	Sequence   string
	NAA        int
	Mods       []string
	ModSites   []int // 1-based; 0 is N-term, -1 is C-term
	MassShifts []float64
	ShiftSites []int
	Charge     int

	PrecursorMZ float64
	FragStart   int // half-open range into the fragment table
	FragEnd     int
	Isotope     Isotope

	ModSeqHash       int64
	ModSeqChargeHash int64

	// Err is set when the row could not be computed, e.g. an unknown
	// modification. Such rows carry NaN masses.
	Err error
}

// Valid reports whether the row has no computation error.
func (p *Precursor) Valid() bool {
	return p.Err == nil
}

// MarkInvalid records a row-level error and clears derived masses.
func (p *Precursor) MarkInvalid(err error) {
	p.Err = err
	p.PrecursorMZ = math.NaN()
	p.ClearIsotope()
}

// ClearIsotope sets the isotope envelope to NaN, leaving the row valid.
func (p *Precursor) ClearIsotope() {
	nan := math.NaN()
	p.Isotope = Isotope{
		IntensityM1: nan, IntensityM2: nan, ApexIntensity: nan,
		MZM1: nan, MZM2: nan, ApexMZ: nan,
	}
}

// ModsText returns the semicolon-joined modification identifiers.
func (p *Precursor) ModsText() string {
	return strings.Join(p.Mods, ";")
}

// SitesText returns the semicolon-joined modification sites.
func (p *Precursor) SitesText() string {
	return joinInts(p.ModSites)
}

// ShiftsText returns the semicolon-joined mass shifts.
func (p *Precursor) ShiftsText() string {
	parts := make([]string, len(p.MassShifts))
	for i, shift := range p.MassShifts {
		parts[i] = strconv.FormatFloat(shift, 'f', -1, 64)
	}
	return strings.Join(parts, ";")
}

// ShiftSitesText returns the semicolon-joined mass shift sites.
func (p *Precursor) ShiftSitesText() string {
	return joinInts(p.ShiftSites)
}

// Name returns the precursor name in format "Sequence/Charge"
func (p *Precursor) Name() string {
	return fmt.Sprintf("%s/%d", p.Sequence, p.Charge)
}

// NumFragments returns the number of backbone positions (nAA-1).
func (p *Precursor) NumFragments() int {
	if p.NAA < 1 {
		return 0
	}
	return p.NAA - 1
}

func joinInts(vals []int) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ";")
}

// SplitMods parses the semicolon-joined mods and mod_sites columns.
func SplitMods(mods, sites string) ([]string, []int, error) {
	if mods == "" {
		if sites != "" {
			return nil, nil, fmt.Errorf("%w: mod_sites '%s' without mods", ErrShapeMismatch, sites)
		}
		return nil, nil, nil
	}
	names := strings.Split(mods, ";")
	siteVals, err := SplitInts(sites)
	if err != nil {
		return nil, nil, err
	}
	if len(names) != len(siteVals) {
		return nil, nil, fmt.Errorf("%w: %d mods but %d sites", ErrShapeMismatch, len(names), len(siteVals))
	}
	return names, siteVals, nil
}

// SplitInts parses a semicolon-joined list of integers.
func SplitInts(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ";")
	vals := make([]int, len(parts))
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid integer '%s': %w", part, err)
		}
		vals[i] = v
	}
	return vals, nil
}

// SplitFloats parses a semicolon-joined list of floats.
func SplitFloats(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ";")
	vals := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid mass shift '%s': %w", part, err)
		}
		vals[i] = v
	}
	return vals, nil
}

// PrecursorTable is an ordered collection of precursors. Labels carry each
// row's identity across sorting, grouping and out-of-order concatenation.
type PrecursorTable struct {
	Rows   []Precursor
	Labels []int
	cols   Column
}

// NewPrecursorTable wraps rows with labels 0..n-1.
func NewPrecursorTable(rows []Precursor, cols Column) *PrecursorTable {
	t := &PrecursorTable{Rows: rows, cols: cols}
	t.ResetLabels()
	return t
}

// Len returns the number of rows.
func (t *PrecursorTable) Len() int {
	return len(t.Rows)
}

// Has reports whether all of the given columns are present.
func (t *PrecursorTable) Has(c Column) bool {
	return t.cols&c == c
}

// Set marks columns as present.
func (t *PrecursorTable) Set(c Column) {
	t.cols |= c
}

// Drop marks columns as absent.
func (t *PrecursorTable) Drop(c Column) {
	t.cols &^= c
}

// Columns returns the column flags.
func (t *PrecursorTable) Columns() Column {
	return t.cols
}

// ResetLabels relabels rows 0..n-1 in their current order.
func (t *PrecursorTable) ResetLabels() {
	t.Labels = make([]int, len(t.Rows))
	for i := range t.Labels {
		t.Labels[i] = i
	}
}

// FillNAA sets nAA from the sequence length of every row.
func (t *PrecursorTable) FillNAA() {
	for i := range t.Rows {
		t.Rows[i].NAA = len(t.Rows[i].Sequence)
	}
	t.Set(ColNAA)
}

// Subset copies the rows at the given positions, keeping labels and columns.
func (t *PrecursorTable) Subset(positions []int) *PrecursorTable {
	sub := &PrecursorTable{
		Rows:   make([]Precursor, len(positions)),
		Labels: make([]int, len(positions)),
		cols:   t.cols,
	}
	for i, pos := range positions {
		sub.Rows[i] = t.Rows[pos]
		sub.Labels[i] = t.Labels[pos]
	}
	return sub
}

// Concat appends tables in order, keeping their labels. The result has the
// columns common to all inputs.
func Concat(tables ...*PrecursorTable) *PrecursorTable {
	out := &PrecursorTable{}
	for i, t := range tables {
		if i == 0 {
			out.cols = t.cols
		} else {
			out.cols &= t.cols
		}
		out.Rows = append(out.Rows, t.Rows...)
		out.Labels = append(out.Labels, t.Labels...)
	}
	return out
}

// SortByLabel restores label order, e.g. after parallel computation.
func (t *PrecursorTable) SortByLabel() {
	sort.Stable(byLabel{t})
}

type byLabel struct{ t *PrecursorTable }

func (a byLabel) Len() int           { return len(a.t.Rows) }
func (a byLabel) Less(i, j int) bool { return a.t.Labels[i] < a.t.Labels[j] }
func (a byLabel) Swap(i, j int) {
	a.t.Rows[i], a.t.Rows[j] = a.t.Rows[j], a.t.Rows[i]
	a.t.Labels[i], a.t.Labels[j] = a.t.Labels[j], a.t.Labels[i]
}

// InvalidCount returns the number of rows with a computation error.
func (t *PrecursorTable) InvalidCount() int {
	n := 0
	for i := range t.Rows {
		if !t.Rows[i].Valid() {
			n++
		}
	}
	return n
}

// Validate checks the structural invariants of every row.
func (t *PrecursorTable) Validate() error {
	var errs []string

	if len(t.Labels) != len(t.Rows) {
		errs = append(errs, fmt.Sprintf("%d labels for %d rows", len(t.Labels), len(t.Rows)))
	}

	for i := range t.Rows {
		p := &t.Rows[i]
		if p.Sequence == "" {
			errs = append(errs, fmt.Sprintf("row %d: sequence is required", i))
			continue
		}
		if t.Has(ColNAA) && p.NAA != len(p.Sequence) {
			errs = append(errs, fmt.Sprintf("row %d: nAA %d does not match sequence length %d", i, p.NAA, len(p.Sequence)))
		}
		if t.Has(ColCharge) && p.Charge <= 0 {
			errs = append(errs, fmt.Sprintf("row %d: charge must be positive", i))
		}
		if len(p.Mods) != len(p.ModSites) {
			errs = append(errs, fmt.Sprintf("row %d: %d mods but %d sites", i, len(p.Mods), len(p.ModSites)))
		}
		if len(p.MassShifts) != len(p.ShiftSites) {
			errs = append(errs, fmt.Sprintf("row %d: %d mass shifts but %d sites", i, len(p.MassShifts), len(p.ShiftSites)))
		}
		for _, site := range append(append([]int{}, p.ModSites...), p.ShiftSites...) {
			if site < -1 || site > len(p.Sequence) {
				errs = append(errs, fmt.Sprintf("row %d: site %d out of range", i, site))
			}
		}
		if t.Has(ColFragIndex) && p.FragEnd-p.FragStart != len(p.Sequence)-1 {
			errs = append(errs, fmt.Sprintf("row %d: fragment range [%d,%d) does not hold nAA-1 rows", i, p.FragStart, p.FragEnd))
		}
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   "PrecursorTable",
			Message: strings.Join(errs, "; "),
		}
	}

	return nil
}
