package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownModification is returned when a modification identifier is
	// absent from the registry.
	ErrUnknownModification = errors.New("unrecognized modification")
	// ErrUnknownResidue is returned for residue letters without a mass.
	ErrUnknownResidue = errors.New("unrecognized amino acid")
	// ErrNoComposition is returned when an elemental formula is needed for a
	// modification that was registered with a mass only.
	ErrNoComposition = errors.New("modification has no composition")
	// ErrSiteOutOfRange is returned for sites outside [-1, nAA].
	ErrSiteOutOfRange = errors.New("modification site out of range")
	// ErrShapeMismatch is returned when parallel lists differ in length or a
	// row's nAA disagrees with its sequence.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrMissingCharge is returned when a calculation needs the charge column.
	ErrMissingCharge = errors.New("precursor table has no charge column")
)

// IsRowError reports whether err only invalidates the row it came from.
// Such rows are marked and kept; every other error aborts the operation.
func IsRowError(err error) bool {
	return errors.Is(err, ErrUnknownModification) ||
		errors.Is(err, ErrUnknownResidue) ||
		errors.Is(err, ErrNoComposition)
}

// ValidationError represents an error found during table validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}
