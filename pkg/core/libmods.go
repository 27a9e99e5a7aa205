package core

import (
	"math"
	"sort"
)

// libraryAliases maps modification names used by spectral libraries to
// registry names
var libraryAliases = map[string]string{
	"CAM":     "Carbamidomethyl",
	"TMT_Pro": "TMTpro",
	"TMTPro":  "TMTpro",
	"TMT":     "TMT6plex",
	"Ox":      "Oxidation",
}

// Resolve turns a library modification (name, residue and site) into a
// registry identifier and site. Residue-specific entries win; terminal
// entries are tried for modifications on the first or last residue. An
// unregistered modification keeps its residue form so downstream
// calculation can flag the row.
func (r *ModRegistry) Resolve(sequence, name, aa string, site int) (string, int) {
	if alias, ok := libraryAliases[name]; ok {
		name = alias
	}
	if aa == "" && site >= 1 && site <= len(sequence) {
		aa = sequence[site-1 : site]
	}

	nterm := site == 0 || site == 1
	cterm := site == -1 || site == len(sequence)

	if aa != "" && site != 0 && site != -1 {
		if _, ok := r.Get(name + "@" + aa); ok {
			return name + "@" + aa, site
		}
	}
	if nterm {
		for _, term := range []string{"Any N-term", "Protein N-term"} {
			if _, ok := r.Get(name + "@" + term); ok {
				return name + "@" + term, 0
			}
		}
		if aa != "" {
			if _, ok := r.Get(name + "@" + aa + "^Any N-term"); ok {
				return name + "@" + aa + "^Any N-term", 0
			}
		}
	}
	if cterm {
		for _, term := range []string{"Any C-term", "Protein C-term"} {
			if _, ok := r.Get(name + "@" + term); ok {
				return name + "@" + term, -1
			}
		}
	}

	if aa == "" {
		return name, site
	}
	return name + "@" + aa, site
}

// ResolveMass finds the registered modification closest to delta that may
// sit at site of sequence, within tol Da. Terminal entries report site 0
// or -1. Ties break on identifier.
func (r *ModRegistry) ResolveMass(sequence string, site int, delta, tol float64) (string, int, bool) {
	ids := make([]string, 0, len(r.mods))
	for id := range r.mods {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	best, bestDiff := "", math.Inf(1)
	for _, id := range ids {
		entry := r.mods[id]
		if !entry.Site.Allows(sequence, site) {
			continue
		}
		// Residue brackets only take residue rules, n[...] only terminal ones
		if site > 0 && entry.Site.Residue == 0 {
			continue
		}
		if diff := math.Abs(entry.Mass - delta); diff <= tol && diff < bestDiff {
			best, bestDiff = id, diff
		}
	}
	if best == "" {
		return "", site, false
	}

	switch r.mods[best].Site.Terminus {
	case AnyNTerm, ProteinNTerm:
		return best, 0, true
	case AnyCTerm, ProteinCTerm:
		return best, -1, true
	}
	return best, site, true
}
