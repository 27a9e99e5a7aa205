// Package precursor computes precursor-level columns: m/z, isotope envelopes
// and identity hashes.
package precursor

import (
	"fmt"
	"math"

	"github.com/ChrisMcGann/pepmass/pkg/core"
)

// DefaultBatchSize is the number of rows of one length group computed at once.
const DefaultBatchSize = 100000

// CalcPeptideMassForSameLenSeqs returns the neutral peptide masses of rows
// sharing one nAA: residues, modification masses, mass shifts and one water.
// Rows failing with a row error get NaN and their error in rowErrs.
func CalcPeptideMassForSameLenSeqs(reg *core.ModRegistry, rows []core.Precursor, nAA int) ([]float64, []error, error) {
	masses := make([]float64, len(rows))
	rowErrs := make([]error, len(rows))

	for i := range rows {
		p := &rows[i]
		if len(p.Sequence) != nAA {
			return nil, nil, fmt.Errorf("%w: sequence %s in length group %d", core.ErrShapeMismatch, p.Sequence, nAA)
		}
		mass, err := peptideMass(reg, p)
		if err != nil {
			if !core.IsRowError(err) {
				return nil, nil, fmt.Errorf("precursor %s: %w", p.Name(), err)
			}
			rowErrs[i] = err
			masses[i] = math.NaN()
			continue
		}
		masses[i] = mass
	}
	return masses, rowErrs, nil
}

func peptideMass(reg *core.ModRegistry, p *core.Precursor) (float64, error) {
	if len(p.Mods) != len(p.ModSites) {
		return 0, fmt.Errorf("%w: %d mods but %d sites", core.ErrShapeMismatch, len(p.Mods), len(p.ModSites))
	}
	if len(p.MassShifts) != len(p.ShiftSites) {
		return 0, fmt.Errorf("%w: %d mass shifts but %d sites", core.ErrShapeMismatch, len(p.MassShifts), len(p.ShiftSites))
	}
	mass, err := core.SequenceMass(p.Sequence)
	if err != nil {
		return 0, err
	}
	modMass, err := core.ModificationMassSum(reg, p.Mods)
	if err != nil {
		return 0, err
	}
	mass += modMass
	for _, shift := range p.MassShifts {
		mass += shift
	}
	return mass + core.MassH2O, nil
}

// UpdatePrecursorMZ assigns precursor_mz to every row, length group by length
// group, at most batchSize rows at a time. A table without nAA is refined
// first, which sorts it by nAA. Sorted tables are written per contiguous
// slice; otherwise results are written back to the rows they came from, and
// row order is left untouched.
func UpdatePrecursorMZ(reg *core.ModRegistry, t *core.PrecursorTable, batchSize int) error {
	if !t.Has(core.ColCharge) {
		return core.ErrMissingCharge
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if !t.Has(core.ColNAA) {
		core.RefinePrecursorTable(t, false)
	}

	groups, err := core.GroupByLength(t)
	if err != nil {
		return err
	}

	if core.IsPrecursorSorted(t) {
		for _, g := range groups {
			// positions of a sorted group are contiguous
			first := g.Positions[0]
			for start := 0; start < len(g.Positions); start += batchSize {
				end := min(start+batchSize, len(g.Positions))
				rows := t.Rows[first+start : first+end]
				if err := assignMZ(reg, rows, g.NAA); err != nil {
					return err
				}
			}
		}
		t.Set(core.ColPrecursorMZ)
		return nil
	}

	for _, g := range groups {
		for start := 0; start < len(g.Positions); start += batchSize {
			end := min(start+batchSize, len(g.Positions))
			positions := g.Positions[start:end]
			batch := t.Subset(positions)
			if err := assignMZ(reg, batch.Rows, g.NAA); err != nil {
				return err
			}
			// write back by position, labels need not be unique
			for i, pos := range positions {
				t.Rows[pos] = batch.Rows[i]
			}
		}
	}
	t.Set(core.ColPrecursorMZ)
	return nil
}

func assignMZ(reg *core.ModRegistry, rows []core.Precursor, nAA int) error {
	masses, rowErrs, err := CalcPeptideMassForSameLenSeqs(reg, rows, nAA)
	if err != nil {
		return err
	}
	for i := range rows {
		if rowErrs[i] != nil {
			rows[i].MarkInvalid(rowErrs[i])
			continue
		}
		if rows[i].Charge <= 0 {
			return fmt.Errorf("precursor %s: charge must be positive", rows[i].Name())
		}
		rows[i].PrecursorMZ = masses[i]/float64(rows[i].Charge) + core.ProtonMass
	}
	return nil
}
