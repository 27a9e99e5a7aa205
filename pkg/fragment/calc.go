package fragment

import (
	"fmt"
	"math"

	"github.com/ChrisMcGann/pepmass/pkg/core"
)

// CalcBYAndPeptideMass returns the neutral b and y ladder masses (nAA-1
// values each) and the neutral peptide mass of a single peptide. Prefer
// CalcBYAndPeptideMassForSameLenSeqs for many peptides.
func CalcBYAndPeptideMass(reg *core.ModRegistry, p *core.Precursor) (b, y []float64, pepMass float64, err error) {
	residues, err := residueMasses(reg, p, len(p.Sequence))
	if err != nil {
		return nil, nil, 0, err
	}
	b, y, pepMass = ladder(residues)
	return b, y, pepMass, nil
}

// residueMasses sums residue, modification and mass-shift masses per position.
func residueMasses(reg *core.ModRegistry, p *core.Precursor, nAA int) ([]float64, error) {
	if len(p.Sequence) != nAA {
		return nil, fmt.Errorf("%w: sequence %s in length group %d", core.ErrShapeMismatch, p.Sequence, nAA)
	}
	residues, err := core.ResidueMasses(p.Sequence)
	if err != nil {
		return nil, err
	}
	if len(p.Mods) > 0 || len(p.ModSites) > 0 {
		mods, err := core.ModificationMass(reg, nAA, p.Mods, p.ModSites)
		if err != nil {
			return nil, err
		}
		for i := range residues {
			residues[i] += mods[i]
		}
	}
	if len(p.MassShifts) > 0 || len(p.ShiftSites) > 0 {
		shifts, err := core.ShiftModificationMass(nAA, p.MassShifts, p.ShiftSites)
		if err != nil {
			return nil, err
		}
		for i := range residues {
			residues[i] += shifts[i]
		}
	}
	return residues, nil
}

// ladder turns residue masses into prefix (b) and suffix (y) masses. The
// full-length prefix sum plus water is the neutral peptide mass.
func ladder(residues []float64) (b, y []float64, pepMass float64) {
	n := len(residues)
	if n == 0 {
		return nil, nil, core.MassH2O
	}
	b = make([]float64, n-1)
	sum := 0.0
	for i := 0; i < n-1; i++ {
		sum += residues[i]
		b[i] = sum
	}
	pepMass = sum + residues[n-1] + core.MassH2O
	y = make([]float64, n-1)
	for i := range b {
		y[i] = pepMass - b[i]
	}
	return b, y, pepMass
}

// CalcBYAndPeptideMassForSameLenSeqs computes ladders for a length group.
// b and y hold nAA-1 values per row, row-major. Rows that fail with a row
// error (unknown modification or residue) get NaN masses and their error in
// rowErrs; any other error aborts.
func CalcBYAndPeptideMassForSameLenSeqs(reg *core.ModRegistry, rows []core.Precursor, nAA int) (b, y, pepMass []float64, rowErrs []error, err error) {
	width := 0
	if nAA > 1 {
		width = nAA - 1
	}
	b = make([]float64, len(rows)*width)
	y = make([]float64, len(rows)*width)
	pepMass = make([]float64, len(rows))
	rowErrs = make([]error, len(rows))

	for i := range rows {
		residues, err := residueMasses(reg, &rows[i], nAA)
		if err != nil {
			if !core.IsRowError(err) {
				return nil, nil, nil, nil, fmt.Errorf("precursor %s: %w", rows[i].Name(), err)
			}
			rowErrs[i] = err
			pepMass[i] = math.NaN()
			for j := 0; j < width; j++ {
				b[i*width+j] = math.NaN()
				y[i*width+j] = math.NaN()
			}
			continue
		}
		rb, ry, pm := ladder(residues)
		copy(b[i*width:], rb)
		copy(y[i*width:], ry)
		pepMass[i] = pm
	}
	return b, y, pepMass, rowErrs, nil
}

// groupLosses returns the N- and C-terminal loss ladders of a length group,
// row-major, only for the sides the requested types need.
func groupLosses(reg *core.ModRegistry, rows []core.Precursor, rowErrs []error, nAA int, types []ChargedFragType) (bLoss, yLoss []float64, err error) {
	needB, needY := false, false
	for _, c := range types {
		needB = needB || c.Type == FragBModloss
		needY = needY || c.Type == FragYModloss
	}
	width := 0
	if nAA > 1 {
		width = nAA - 1
	}
	fill := func(nterm bool) ([]float64, error) {
		out := make([]float64, len(rows)*width)
		for i := range rows {
			if rowErrs[i] != nil {
				continue
			}
			loss, err := core.ModLossMass(reg, nAA, rows[i].Mods, rows[i].ModSites, nterm)
			if err != nil {
				return nil, fmt.Errorf("precursor %s: %w", rows[i].Name(), err)
			}
			copy(out[i*width:], loss)
		}
		return out, nil
	}
	if needB {
		if bLoss, err = fill(true); err != nil {
			return nil, nil, err
		}
	}
	if needY {
		if yLoss, err = fill(false); err != nil {
			return nil, nil, err
		}
	}
	return bLoss, yLoss, nil
}

// fragmentValues maps ladders to the requested columns, row-major.
func fragmentValues(types []ChargedFragType, b, y, bLoss, yLoss []float64) []float64 {
	values := make([]float64, len(b)*len(types))
	for i := range b {
		var bl, yl float64
		if bLoss != nil {
			bl = bLoss[i]
		}
		if yLoss != nil {
			yl = yLoss[i]
		}
		row := values[i*len(types) : (i+1)*len(types)]
		for j, c := range types {
			if math.IsNaN(b[i]) {
				row[j] = math.NaN()
				continue
			}
			row[j] = c.MZ(b[i], y[i], bl, yl)
		}
	}
	return values
}

// CalcFragmentMZ computes fragment m/z values of the given charged fragment
// types for every precursor. Without a reference, a new fragment table is
// built and the returned precursor table carries fresh index ranges; the
// input must not already have ranges. With a reference, the input's ranges
// are kept and values are written into a zero table shaped like reference.
//
// Rows are processed per nAA group; the returned precursor table is ordered by
// ascending nAA, keeping input order within a group. When the input has a
// charge column but no precursor m/z, precursor m/z is assigned on the way.
// Rows with an unknown modification or residue are marked invalid and get
// NaN masses.
func CalcFragmentMZ(reg *core.ModRegistry, t *core.PrecursorTable, chargedFragTypes []string, reference *Table) (*core.PrecursorTable, *Table, error) {
	if reference == nil && t.Has(core.ColFragIndex) {
		return nil, nil, ErrFragIndexWithoutReference
	}
	if reference != nil && !t.Has(core.ColFragIndex) {
		return nil, nil, ErrMissingFragIndex
	}

	types, err := ParseChargedFragTypes(chargedFragTypes)
	if err != nil {
		return nil, nil, err
	}

	var out *Table
	if reference != nil {
		if out, err = InitTableFromOther(reference, chargedFragTypes); err != nil {
			return nil, nil, err
		}
	}

	groups, err := core.GroupByLength(t)
	if err != nil {
		return nil, nil, err
	}

	assignMZ := t.Has(core.ColCharge) && !t.Has(core.ColPrecursorMZ)

	var precursorList []*core.PrecursorTable
	var fragmentList []*Table
	for _, g := range groups {
		group := t.Subset(g.Positions)

		b, y, pepMass, rowErrs, err := CalcBYAndPeptideMassForSameLenSeqs(reg, group.Rows, g.NAA)
		if err != nil {
			return nil, nil, err
		}
		bLoss, yLoss, err := groupLosses(reg, group.Rows, rowErrs, g.NAA, types)
		if err != nil {
			return nil, nil, err
		}

		for i := range group.Rows {
			if assignMZ {
				group.Rows[i].PrecursorMZ = pepMass[i]/float64(group.Rows[i].Charge) + core.ProtonMass
			}
			if rowErrs[i] != nil {
				group.Rows[i].MarkInvalid(rowErrs[i])
			}
		}
		if assignMZ {
			group.Set(core.ColPrecursorMZ)
		}

		values := fragmentValues(types, b, y, bLoss, yLoss)

		if reference != nil {
			if err := SetSliced(out, values, PrecursorRanges(group), chargedFragTypes); err != nil {
				return nil, nil, err
			}
		} else {
			frag, err := InitTableByPrecursor(group, chargedFragTypes, nil)
			if err != nil {
				return nil, nil, err
			}
			copy(frag.values, values)
			fragmentList = append(fragmentList, frag)
		}
		precursorList = append(precursorList, group)
	}

	if reference != nil {
		prec := core.Concat(precursorList...)
		if len(precursorList) == 0 {
			prec = core.NewPrecursorTable(nil, t.Columns())
		}
		return prec, out, nil
	}

	if len(precursorList) == 0 {
		empty := core.NewPrecursorTable(nil, t.Columns()|core.ColFragIndex)
		return empty, NewTable(chargedFragTypes, 0), nil
	}
	prec, frag, _, err := ConcatPrecursorFragment(precursorList, fragmentList)
	if err != nil {
		return nil, nil, err
	}
	return prec, frag, nil
}
