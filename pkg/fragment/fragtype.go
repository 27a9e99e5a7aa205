// Package fragment computes fragment ion masses and manages the flattened
// fragment table addressed by precursor index ranges.
package fragment

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/pepmass/pkg/core"
)

// ErrUnsupportedFragType is returned for unknown ion-type tags.
var ErrUnsupportedFragType = errors.New("unsupported fragment type")

// FragType is an ion-type tag.
type FragType int

const (
	FragB FragType = iota
	FragY
	FragBModloss
	FragYModloss
	FragBH2O
	FragYH2O
	FragBNH3
	FragYNH3
	FragC
	FragZ
)

var fragTypeNames = [...]string{
	FragB:        "b",
	FragY:        "y",
	FragBModloss: "b_modloss",
	FragYModloss: "y_modloss",
	FragBH2O:     "b_H2O",
	FragYH2O:     "y_H2O",
	FragBNH3:     "b_NH3",
	FragYNH3:     "y_NH3",
	FragC:        "c",
	FragZ:        "z",
}

func (t FragType) String() string {
	if t < 0 || int(t) >= len(fragTypeNames) {
		return fmt.Sprintf("FragType(%d)", int(t))
	}
	return fragTypeNames[t]
}

// ParseFragType parses an ion-type tag such as "b" or "y_modloss".
func ParseFragType(s string) (FragType, error) {
	for i, name := range fragTypeNames {
		if name == s {
			return FragType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: '%s'", ErrUnsupportedFragType, s)
}

// FragTypes returns all supported ion-type tags.
func FragTypes() []FragType {
	types := make([]FragType, len(fragTypeNames))
	for i := range types {
		types[i] = FragType(i)
	}
	return types
}

// NeedsLoss reports whether the type uses modification neutral losses.
func (t FragType) NeedsLoss() bool {
	return t == FragBModloss || t == FragYModloss
}

// neutralMass maps neutral b/y ladder masses to the neutral mass of this ion
// type. ok is false when the fragment has no modification loss to apply.
func (t FragType) neutralMass(b, y, bLoss, yLoss float64) (mass float64, ok bool) {
	switch t {
	case FragB:
		return b, true
	case FragY:
		return y, true
	case FragBModloss:
		return b - bLoss, bLoss != 0
	case FragYModloss:
		return y - yLoss, yLoss != 0
	case FragBH2O:
		return b - core.MassH2O, true
	case FragYH2O:
		return y - core.MassH2O, true
	case FragBNH3:
		return b - core.MassNH3, true
	case FragYNH3:
		return y - core.MassNH3, true
	case FragC:
		return b + core.MassNH3, true
	case FragZ:
		return y - (core.MassNH3 - core.MassH), true
	}
	panic(fmt.Sprintf("fragment: unhandled type %d", int(t)))
}

// ChargedFragType is an ion type at a fragment charge; it names one fragment
// table column.
type ChargedFragType struct {
	Type   FragType
	Charge int
}

// String returns the column name, e.g. "b_1" or "y_modloss_2".
func (c ChargedFragType) String() string {
	return ChargedFragTypeName(c.Type.String(), c.Charge)
}

// MZ returns the fragment m/z from neutral ladder masses. Fragments of a
// modloss type without a loss are exactly 0.
func (c ChargedFragType) MZ(b, y, bLoss, yLoss float64) float64 {
	mass, ok := c.Type.neutralMass(b, y, bLoss, yLoss)
	if !ok {
		return 0
	}
	return mass/float64(c.Charge) + core.ProtonMass
}

// ChargedFragTypeName builds the column name for a tag and charge.
func ChargedFragTypeName(fragType string, charge int) string {
	return fragType + "_" + strconv.Itoa(charge)
}

// GetChargedFragTypes expands tags over charges 1..maxCharge, e.g. b,y with
// charge 2 gives b_1, b_2, y_1, y_2.
func GetChargedFragTypes(fragTypes []string, maxCharge int) []string {
	out := make([]string, 0, len(fragTypes)*maxCharge)
	for _, fragType := range fragTypes {
		for charge := 1; charge <= maxCharge; charge++ {
			out = append(out, ChargedFragTypeName(fragType, charge))
		}
	}
	return out
}

// SplitChargedFragType splits a column name into its tag and charge. The
// charge is the trailing number, optionally followed by a polarity sign.
func SplitChargedFragType(s string) (string, int, error) {
	idx := strings.LastIndexByte(s, '_')
	if idx <= 0 || idx == len(s)-1 {
		return "", 0, fmt.Errorf("%w: '%s' has no charge", ErrUnsupportedFragType, s)
	}
	tag, ch := s[:idx], s[idx+1:]
	if last := ch[len(ch)-1]; last == '+' || last == '-' {
		ch = ch[:len(ch)-1]
	}
	charge, err := strconv.Atoi(ch)
	if err != nil || charge < 0 {
		return "", 0, fmt.Errorf("%w: invalid charge in '%s'", ErrUnsupportedFragType, s)
	}
	return tag, charge, nil
}

// ParseChargedFragType parses a column name into a ChargedFragType.
func ParseChargedFragType(s string) (ChargedFragType, error) {
	tag, charge, err := SplitChargedFragType(s)
	if err != nil {
		return ChargedFragType{}, err
	}
	if charge <= 0 {
		return ChargedFragType{}, fmt.Errorf("%w: non-positive charge in '%s'", ErrUnsupportedFragType, s)
	}
	fragType, err := ParseFragType(tag)
	if err != nil {
		return ChargedFragType{}, err
	}
	return ChargedFragType{Type: fragType, Charge: charge}, nil
}

// ParseChargedFragTypes parses a list of column names.
func ParseChargedFragTypes(names []string) ([]ChargedFragType, error) {
	out := make([]ChargedFragType, len(names))
	for i, name := range names {
		c, err := ParseChargedFragType(name)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}
