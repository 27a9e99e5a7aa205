// Package core provides the reference chemistry, modification registry and precursor
// table types shared by the fragment and precursor calculators.
package core

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Atomic masses (monoisotopic)
const (
	MassH  = 1.00782503207
	MassC  = 12.0000000000
	MassN  = 14.0030740048
	MassO  = 15.99491461956
	MassS  = 31.97207100
	MassP  = 30.97376163
	MassNa = 22.9897692809

	// Proton mass for charge calculations
	ProtonMass = 1.00727646688

	MassH2O = 2*MassH + MassO
	MassNH3 = MassN + 3*MassH

	// IsotopeSpacing is the averaged mass difference between neighbouring
	// isotope peaks of a peptide.
	IsotopeSpacing = 1.00235
)

// Element stores the natural isotopes of one chemical element. Masses and
// Abundances are indexed by nominal mass offset from the lightest isotope;
// missing nominal masses carry zero abundance.
type Element struct {
	Symbol     string
	Masses     []float64
	Abundances []float64
	MonoIndex  int // index of the most abundant isotope
}

// MonoMass returns the mass of the most abundant isotope.
func (e Element) MonoMass() float64 {
	return e.Masses[e.MonoIndex]
}

// Elements is the element table used for formula masses and isotope envelopes.
// It is read-only after package initialization.
var Elements = map[string]Element{
	"H":  {Symbol: "H", Masses: []float64{MassH, 2.0141017778}, Abundances: []float64{0.999885, 0.000115}},
	"C":  {Symbol: "C", Masses: []float64{MassC, 13.0033548378}, Abundances: []float64{0.9893, 0.0107}},
	"N":  {Symbol: "N", Masses: []float64{MassN, 15.0001088982}, Abundances: []float64{0.99636, 0.00364}},
	"O":  {Symbol: "O", Masses: []float64{MassO, 16.99913170, 17.9991610}, Abundances: []float64{0.99757, 0.00038, 0.00205}},
	"S":  {Symbol: "S", Masses: []float64{MassS, 32.97145876, 33.96786690, 34.96903216, 35.96708076}, Abundances: []float64{0.9499, 0.0075, 0.0425, 0, 0.0001}},
	"P":  {Symbol: "P", Masses: []float64{MassP}, Abundances: []float64{1}},
	"Na": {Symbol: "Na", Masses: []float64{MassNa}, Abundances: []float64{1}},
	"K":  {Symbol: "K", Masses: []float64{38.96370668, 39.96399848, 40.96182576}, Abundances: []float64{0.932581, 0.000117, 0.067302}},

	// Stable isotope labels are treated as pure single-isotope elements.
	"2H":  {Symbol: "2H", Masses: []float64{2.0141017778}, Abundances: []float64{1}},
	"13C": {Symbol: "13C", Masses: []float64{13.0033548378}, Abundances: []float64{1}},
	"15N": {Symbol: "15N", Masses: []float64{15.0001088982}, Abundances: []float64{1}},
	"18O": {Symbol: "18O", Masses: []float64{17.9991610}, Abundances: []float64{1}},
}

// Formula maps an element symbol to its atom count. Counts may be negative
// for modification deltas.
type Formula map[string]int

// ParseFormula parses compositions written as "C(2)H(3)N(1)O(1)" or in the
// Unimod style "H(3) C(2) N O". A missing count means one atom.
func ParseFormula(s string) (Formula, error) {
	f := Formula{}
	i := 0
	for i < len(s) {
		if s[i] == ' ' {
			i++
			continue
		}

		// Symbol: optional mass-number prefix, uppercase letter, lowercase letters
		start := i
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i >= len(s) || s[i] < 'A' || s[i] > 'Z' {
			return nil, fmt.Errorf("invalid formula '%s' at offset %d", s, start)
		}
		i++
		for i < len(s) && s[i] >= 'a' && s[i] <= 'z' {
			i++
		}
		symbol := s[start:i]
		if _, ok := Elements[symbol]; !ok {
			return nil, fmt.Errorf("unknown element '%s' in formula '%s'", symbol, s)
		}

		count := 1
		if i < len(s) && s[i] == '(' {
			end := strings.IndexByte(s[i:], ')')
			if end < 0 {
				return nil, fmt.Errorf("unterminated count in formula '%s'", s)
			}
			n, err := strconv.Atoi(s[i+1 : i+end])
			if err != nil {
				return nil, fmt.Errorf("invalid count for %s in formula '%s': %w", symbol, s, err)
			}
			count = n
			i += end + 1
		}
		f[symbol] += count
	}
	return f, nil
}

// Add adds n copies of other into f.
func (f Formula) Add(other Formula, n int) {
	for symbol, count := range other {
		f[symbol] += count * n
	}
}

// Mass returns the monoisotopic mass of the formula.
func (f Formula) Mass() float64 {
	mass := 0.0
	for symbol, count := range f {
		mass += float64(count) * Elements[symbol].MonoMass()
	}
	return mass
}

// Symbols returns the element symbols with a non-zero count, sorted.
func (f Formula) Symbols() []string {
	symbols := make([]string, 0, len(f))
	for symbol, count := range f {
		if count != 0 {
			symbols = append(symbols, symbol)
		}
	}
	sort.Strings(symbols)
	return symbols
}

// String formats the formula as "C(2)H(3)..." with sorted symbols, which
// makes it usable as a cache key.
func (f Formula) String() string {
	var b strings.Builder
	for _, symbol := range f.Symbols() {
		fmt.Fprintf(&b, "%s(%d)", symbol, f[symbol])
	}
	return b.String()
}

// AminoAcidFormulas maps amino acid one-letter codes to residue composition
var AminoAcidFormulas = map[byte]Formula{
	'A': {"C": 3, "H": 5, "N": 1, "O": 1},
	'R': {"C": 6, "H": 12, "N": 4, "O": 1},
	'N': {"C": 4, "H": 6, "N": 2, "O": 2},
	'D': {"C": 4, "H": 5, "N": 1, "O": 3},
	'C': {"C": 3, "H": 5, "N": 1, "O": 1, "S": 1},
	'E': {"C": 5, "H": 7, "N": 1, "O": 3},
	'Q': {"C": 5, "H": 8, "N": 2, "O": 2},
	'G': {"C": 2, "H": 3, "N": 1, "O": 1},
	'H': {"C": 6, "H": 7, "N": 3, "O": 1},
	'I': {"C": 6, "H": 11, "N": 1, "O": 1},
	'L': {"C": 6, "H": 11, "N": 1, "O": 1},
	'K': {"C": 6, "H": 12, "N": 2, "O": 1},
	'M': {"C": 5, "H": 9, "N": 1, "O": 1, "S": 1},
	'F': {"C": 9, "H": 9, "N": 1, "O": 1},
	'P': {"C": 5, "H": 7, "N": 1, "O": 1},
	'S': {"C": 3, "H": 5, "N": 1, "O": 2},
	'T': {"C": 4, "H": 7, "N": 1, "O": 2},
	'W': {"C": 11, "H": 10, "N": 2, "O": 1},
	'Y': {"C": 9, "H": 9, "N": 1, "O": 2},
	'V': {"C": 5, "H": 9, "N": 1, "O": 1},
}

// residueMasses is an ASCII lookup of residue masses; NaN marks unknown letters.
var residueMasses [128]float64

func init() {
	for i := range residueMasses {
		residueMasses[i] = math.NaN()
	}
	for aa, formula := range AminoAcidFormulas {
		residueMasses[aa] = formula.Mass()
	}
}

// ResidueMass returns the monoisotopic residue mass of an amino acid.
func ResidueMass(aa byte) (float64, bool) {
	if aa >= 128 || math.IsNaN(residueMasses[aa]) {
		return 0, false
	}
	return residueMasses[aa], true
}

// ResidueMasses returns the per-position residue masses of a sequence.
func ResidueMasses(sequence string) ([]float64, error) {
	masses := make([]float64, len(sequence))
	for i := 0; i < len(sequence); i++ {
		mass, ok := ResidueMass(sequence[i])
		if !ok {
			return nil, fmt.Errorf("%w: '%c' in %s", ErrUnknownResidue, sequence[i], sequence)
		}
		masses[i] = mass
	}
	return masses, nil
}

// SequenceMass returns the sum of residue masses (no water).
func SequenceMass(sequence string) (float64, error) {
	masses, err := ResidueMasses(sequence)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, m := range masses {
		total += m
	}
	return total, nil
}

// SequenceFormula returns the summed residue composition of a sequence (no water).
func SequenceFormula(sequence string) (Formula, error) {
	f := Formula{}
	for i := 0; i < len(sequence); i++ {
		aa, ok := AminoAcidFormulas[sequence[i]]
		if !ok {
			return nil, fmt.Errorf("%w: '%c' in %s", ErrUnknownResidue, sequence[i], sequence)
		}
		f.Add(aa, 1)
	}
	return f, nil
}

// RoundFloat rounds a float to n decimal places
func RoundFloat(val float64, precision int) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}
