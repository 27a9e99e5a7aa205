// Package core provides modification parsing and management
package core

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Terminus is the terminal anchoring of a modification site rule.
type Terminus int

const (
	NoTerminus Terminus = iota
	AnyNTerm
	ProteinNTerm
	AnyCTerm
	ProteinCTerm
)

var terminusNames = map[string]Terminus{
	"Any N-term":     AnyNTerm,
	"Protein N-term": ProteinNTerm,
	"Any C-term":     AnyCTerm,
	"Protein C-term": ProteinCTerm,
}

// SiteRule is the attachment rule encoded after the '@' of a modification
// identifier: "S", "Any N-term" or "Q^Any N-term".
type SiteRule struct {
	Residue  byte // 0 when any residue is allowed
	Terminus Terminus
}

// ParseSiteRule parses the site part of a modification identifier.
func ParseSiteRule(s string) (SiteRule, error) {
	if t, ok := terminusNames[s]; ok {
		return SiteRule{Terminus: t}, nil
	}
	if len(s) == 1 && s[0] >= 'A' && s[0] <= 'Z' {
		return SiteRule{Residue: s[0]}, nil
	}
	if len(s) > 2 && s[1] == '^' {
		if t, ok := terminusNames[s[2:]]; ok {
			return SiteRule{Residue: s[0], Terminus: t}, nil
		}
	}
	return SiteRule{}, fmt.Errorf("invalid site rule '%s'", s)
}

// Allows reports whether a modification with this rule may sit at site of
// sequence (site semantics as in Precursor.ModSites).
func (r SiteRule) Allows(sequence string, site int) bool {
	if len(sequence) == 0 {
		return false
	}
	idx, err := SiteIndex(len(sequence), site)
	if err != nil {
		return false
	}
	switch r.Terminus {
	case AnyNTerm, ProteinNTerm:
		if idx != 0 {
			return false
		}
	case AnyCTerm, ProteinCTerm:
		if idx != len(sequence)-1 {
			return false
		}
	default:
		if site == 0 || site == -1 {
			return false
		}
	}
	return r.Residue == 0 || sequence[idx] == r.Residue
}

// SplitModName splits "Phospho@S" into ("Phospho", "S").
func SplitModName(id string) (name, site string) {
	idx := strings.LastIndexByte(id, '@')
	if idx < 0 {
		return id, ""
	}
	return id[:idx], id[idx+1:]
}

// ModEntry is one modification of the registry.
type ModEntry struct {
	ID              string // e.g. "Phospho@S"
	Mass            float64
	Composition     Formula // nil when only the mass is known
	LossMass        float64 // neutral loss, 0 if none
	LossImportance  float64
	Site            SiteRule
	LossComposition Formula
}

// ModRegistry stores modification definitions. It is filled once at startup
// and read concurrently afterwards without locking.
type ModRegistry struct {
	mods map[string]ModEntry
}

// NewModRegistry creates an empty modification registry
func NewModRegistry() *ModRegistry {
	return &ModRegistry{
		mods: make(map[string]ModEntry),
	}
}

// Add adds or updates a modification. A missing loss importance defaults to
// the loss mass so heavier losses dominate.
func (r *ModRegistry) Add(entry ModEntry) error {
	_, site := SplitModName(entry.ID)
	rule, err := ParseSiteRule(site)
	if err != nil {
		return fmt.Errorf("modification '%s': %w", entry.ID, err)
	}
	entry.Site = rule
	if entry.LossMass != 0 && entry.LossImportance == 0 {
		entry.LossImportance = entry.LossMass
	}
	r.mods[entry.ID] = entry
	return nil
}

// AddFormula registers a modification from its composition strings.
func (r *ModRegistry) AddFormula(id, composition, lossComposition string) error {
	comp, err := ParseFormula(composition)
	if err != nil {
		return fmt.Errorf("modification '%s': %w", id, err)
	}
	entry := ModEntry{ID: id, Mass: comp.Mass(), Composition: comp}
	if lossComposition != "" {
		loss, err := ParseFormula(lossComposition)
		if err != nil {
			return fmt.Errorf("modification '%s' loss: %w", id, err)
		}
		entry.LossComposition = loss
		entry.LossMass = loss.Mass()
	}
	return r.Add(entry)
}

// Get returns the entry for a modification identifier
func (r *ModRegistry) Get(id string) (ModEntry, bool) {
	entry, ok := r.mods[id]
	return entry, ok
}

// Mass returns the added mass of a modification.
func (r *ModRegistry) Mass(id string) (float64, error) {
	entry, ok := r.mods[id]
	if !ok {
		return 0, fmt.Errorf("%w: '%s'", ErrUnknownModification, id)
	}
	return entry.Mass, nil
}

// Len returns the number of registered modifications.
func (r *ModRegistry) Len() int {
	return len(r.mods)
}

// LoadFromCSV loads modifications from a comma- or tab-separated table with
// a header. Recognized columns: mod_name, mass (or unimod_mass), composition,
// modloss (or unimod_modloss), modloss_composition, modloss_importance.
// Either mass or composition is required per row.
func (r *ModRegistry) LoadFromCSV(in io.Reader) error {
	scanner := bufio.NewScanner(in)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("error reading CSV: %w", err)
		}
		return fmt.Errorf("empty modification table")
	}
	header := scanner.Text()
	sep := ","
	if strings.Contains(header, "\t") {
		sep = "\t"
	}
	cols := make(map[string]int)
	for i, name := range strings.Split(header, sep) {
		cols[strings.TrimSpace(name)] = i
	}
	nameCol, ok := cols["mod_name"]
	if !ok {
		return fmt.Errorf("modification table has no mod_name column")
	}
	field := func(parts []string, names ...string) string {
		for _, name := range names {
			if i, ok := cols[name]; ok && i < len(parts) {
				return strings.TrimSpace(parts[i])
			}
		}
		return ""
	}

	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		parts := strings.Split(line, sep)
		if nameCol >= len(parts) {
			return fmt.Errorf("line %d: missing mod_name field", lineNum)
		}
		entry := ModEntry{ID: strings.TrimSpace(parts[nameCol])}

		if comp := field(parts, "composition"); comp != "" {
			f, err := ParseFormula(comp)
			if err != nil {
				return fmt.Errorf("line %d: %w", lineNum, err)
			}
			entry.Composition = f
			entry.Mass = f.Mass()
		}
		if massStr := field(parts, "mass", "unimod_mass"); massStr != "" {
			mass, err := strconv.ParseFloat(massStr, 64)
			if err != nil {
				return fmt.Errorf("line %d: invalid mass value '%s': %w", lineNum, massStr, err)
			}
			entry.Mass = mass
		} else if entry.Composition == nil {
			return fmt.Errorf("line %d: modification '%s' needs a mass or composition", lineNum, entry.ID)
		}

		if comp := field(parts, "modloss_composition"); comp != "" {
			f, err := ParseFormula(comp)
			if err != nil {
				return fmt.Errorf("line %d: %w", lineNum, err)
			}
			entry.LossComposition = f
			entry.LossMass = f.Mass()
		}
		if lossStr := field(parts, "modloss", "unimod_modloss"); lossStr != "" {
			loss, err := strconv.ParseFloat(lossStr, 64)
			if err != nil {
				return fmt.Errorf("line %d: invalid modloss value '%s': %w", lineNum, lossStr, err)
			}
			entry.LossMass = loss
		}
		if impStr := field(parts, "modloss_importance"); impStr != "" {
			imp, err := strconv.ParseFloat(impStr, 64)
			if err != nil {
				return fmt.Errorf("line %d: invalid modloss_importance '%s': %w", lineNum, impStr, err)
			}
			entry.LossImportance = imp
		}

		if err := r.Add(entry); err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading CSV: %w", err)
	}

	return nil
}

var defaultRegistry = buildDefaultRegistry()

// DefaultModRegistry returns the shared registry of common Unimod
// modifications. Callers must not Add to it; use NewModRegistry and
// CopyDefaults for custom sets.
func DefaultModRegistry() *ModRegistry {
	return defaultRegistry
}

// CopyDefaults copies the built-in modifications into r.
func (r *ModRegistry) CopyDefaults() {
	for id, entry := range defaultRegistry.mods {
		r.mods[id] = entry
	}
}

func buildDefaultRegistry() *ModRegistry {
	r := NewModRegistry()

	add := func(id, composition, loss string) {
		if err := r.AddFormula(id, composition, loss); err != nil {
			panic(err)
		}
	}

	for _, site := range []string{"C", "Any N-term"} {
		add("Carbamidomethyl@"+site, "H(3)C(2)N(1)O(1)", "")
	}
	add("Oxidation@M", "O(1)", "H(4)C(1)O(1)S(1)")
	for _, site := range []string{"S", "T"} {
		add("Phospho@"+site, "H(1)O(3)P(1)", "H(3)O(4)P(1)")
	}
	add("Phospho@Y", "H(1)O(3)P(1)", "")
	for _, site := range []string{"Any N-term", "Protein N-term", "K"} {
		add("Acetyl@"+site, "H(2)C(2)O(1)", "")
	}
	for _, site := range []string{"N", "Q"} {
		add("Deamidated@"+site, "H(-1)N(-1)O(1)", "")
	}
	add("Gln->pyro-Glu@Q^Any N-term", "H(-3)N(-1)", "")
	add("Glu->pyro-Glu@E^Any N-term", "H(-2)O(-1)", "")
	add("Amidated@Any C-term", "H(1)N(1)O(-1)", "")
	add("GlyGly@K", "H(6)C(4)N(2)O(2)", "")
	for _, site := range []string{"K", "R"} {
		add("Methyl@"+site, "H(2)C(1)", "")
		add("Dimethyl@"+site, "H(4)C(2)", "")
	}
	add("Trimethyl@K", "H(6)C(3)", "")
	add("Cation:Na@Any C-term", "H(-1)Na(1)", "")
	for _, site := range []string{"K", "Any N-term"} {
		add("TMT6plex@"+site, "H(20)C(8)13C(4)N(1)15N(1)O(2)", "")
		add("TMTpro@"+site, "H(25)C(8)13C(7)N(1)15N(2)O(3)", "")
	}
	add("Label:13C(6)15N(2)@K", "C(-6)13C(6)N(-2)15N(2)", "")
	add("Label:13C(6)15N(4)@R", "C(-6)13C(6)N(-4)15N(4)", "")
	add("HexNAc@S", "H(13)C(8)N(1)O(5)", "H(13)C(8)N(1)O(5)")
	add("HexNAc@T", "H(13)C(8)N(1)O(5)", "H(13)C(8)N(1)O(5)")

	return r
}
