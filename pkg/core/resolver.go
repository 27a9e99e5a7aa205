package core

import "fmt"

// SiteIndex maps a modification site to a residue index: 1..nAA map to the
// residue itself, 0 (N-term) to the first residue and -1 (C-term) to the last.
func SiteIndex(nAA, site int) (int, error) {
	switch {
	case site == 0:
		return 0, nil
	case site == -1:
		return nAA - 1, nil
	case site >= 1 && site <= nAA:
		return site - 1, nil
	}
	return 0, fmt.Errorf("%w: site %d for nAA %d", ErrSiteOutOfRange, site, nAA)
}

// ModificationMass returns the per-residue mass deltas of named
// modifications. Modifications sharing a residue accumulate.
func ModificationMass(reg *ModRegistry, nAA int, mods []string, sites []int) ([]float64, error) {
	if len(mods) != len(sites) {
		return nil, fmt.Errorf("%w: %d mods but %d sites", ErrShapeMismatch, len(mods), len(sites))
	}
	masses := make([]float64, nAA)
	for i, mod := range mods {
		idx, err := SiteIndex(nAA, sites[i])
		if err != nil {
			return nil, err
		}
		mass, err := reg.Mass(mod)
		if err != nil {
			return nil, err
		}
		masses[idx] += mass
	}
	return masses, nil
}

// ShiftModificationMass is ModificationMass for open-search mass shifts.
func ShiftModificationMass(nAA int, shifts []float64, sites []int) ([]float64, error) {
	if len(shifts) != len(sites) {
		return nil, fmt.Errorf("%w: %d mass shifts but %d sites", ErrShapeMismatch, len(shifts), len(sites))
	}
	masses := make([]float64, nAA)
	for i, shift := range shifts {
		idx, err := SiteIndex(nAA, sites[i])
		if err != nil {
			return nil, err
		}
		masses[idx] += shift
	}
	return masses, nil
}

// ModificationMassSum returns the summed mass of named modifications.
func ModificationMassSum(reg *ModRegistry, mods []string) (float64, error) {
	total := 0.0
	for _, mod := range mods {
		mass, err := reg.Mass(mod)
		if err != nil {
			return 0, err
		}
		total += mass
	}
	return total, nil
}

// ModLossMass returns, per backbone position (nAA-1 values), the neutral loss
// mass carried by the fragment at that position. For N-terminal fragments
// position i covers residues 0..i, for C-terminal fragments residues
// i+1..nAA-1. A fragment carries the loss of its most important loss-bearing
// modification; positions without one are 0.
func ModLossMass(reg *ModRegistry, nAA int, mods []string, sites []int, nterm bool) ([]float64, error) {
	if len(mods) != len(sites) {
		return nil, fmt.Errorf("%w: %d mods but %d sites", ErrShapeMismatch, len(mods), len(sites))
	}
	if nAA < 1 {
		return nil, nil
	}
	losses := make([]float64, nAA)
	importance := make([]float64, nAA)
	for i, mod := range mods {
		idx, err := SiteIndex(nAA, sites[i])
		if err != nil {
			return nil, err
		}
		entry, ok := reg.Get(mod)
		if !ok {
			return nil, fmt.Errorf("%w: '%s'", ErrUnknownModification, mod)
		}
		if entry.LossMass != 0 && entry.LossImportance > importance[idx] {
			losses[idx] = entry.LossMass
			importance[idx] = entry.LossImportance
		}
	}

	out := make([]float64, nAA-1)
	bestLoss, bestImp := 0.0, 0.0
	if nterm {
		for i := 0; i < nAA-1; i++ {
			if importance[i] > bestImp {
				bestLoss, bestImp = losses[i], importance[i]
			}
			out[i] = bestLoss
		}
	} else {
		for i := nAA - 1; i >= 1; i-- {
			if importance[i] > bestImp {
				bestLoss, bestImp = losses[i], importance[i]
			}
			out[i-1] = bestLoss
		}
	}
	return out, nil
}
