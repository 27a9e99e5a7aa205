// Package sptxt provides streaming readers for SPTXT (SpectraST) format spectral
// libraries, yielding the precursor of each entry
package sptxt

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/pepmass/pkg/core"
)

// nominalTolerance is how far an inline bracket mass may sit from a
// registered modification; SpectraST writes integer masses
const nominalTolerance = 0.5

// inlineModRe matches an optional residue or terminus followed by [mass]
var inlineModRe = regexp.MustCompile(`([a-zA-Z]?)\[(\d+(?:\.\d+)?)\]`)

// Reader provides streaming access to SPTXT format files
type Reader struct {
	scanner *bufio.Scanner
	modReg  *core.ModRegistry
	lineNum int
	current *core.Precursor
	err     error
}

// NewReader creates a new SPTXT reader
func NewReader(r io.Reader, modReg *core.ModRegistry) *Reader {
	if modReg == nil {
		modReg = core.DefaultModRegistry()
	}

	return &Reader{
		scanner: bufio.NewScanner(r),
		modReg:  modReg,
	}
}

// Next advances to the next entry. Returns false when no more entries or error.
func (r *Reader) Next() bool {
	r.current = nil

	p, err := r.readEntry()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}

	r.current = p
	return true
}

// Precursor returns the precursor of the current entry
func (r *Reader) Precursor() *core.Precursor {
	return r.current
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// inlineMod is a bracket mass from the Name field
type inlineMod struct {
	site int
	aa   string
	mass float64
}

// readEntry reads a single library entry. Peak lines are consumed and dropped.
func (r *Reader) readEntry() (*core.Precursor, error) {
	p := &core.Precursor{}

	var numPeaks int
	inPeaks := false
	peaksRead := 0
	var inline []inlineMod
	var mods string

	finish := func() (*core.Precursor, error) {
		if err := r.applyMods(p, mods, inline); err != nil {
			return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
		}
		return p, nil
	}

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())

		// Skip comments and empty lines
		if line == "" || strings.HasPrefix(line, "###") {
			continue
		}

		if !inPeaks {
			// Parse header fields
			if strings.HasPrefix(line, "Name: ") {
				name := strings.TrimPrefix(line, "Name: ")
				var err error
				if inline, err = r.parseName(p, name); err != nil {
					return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
				}
			} else if strings.HasPrefix(line, "Comment: ") {
				mods = parseComment(strings.TrimPrefix(line, "Comment: "))
			} else if strings.HasPrefix(line, "NumPeaks: ") {
				numPeaksStr := strings.TrimPrefix(line, "NumPeaks: ")
				n, err := strconv.Atoi(numPeaksStr)
				if err != nil {
					return nil, fmt.Errorf("line %d: invalid num peaks: %w", r.lineNum, err)
				}
				numPeaks = n
				inPeaks = true
				if numPeaks == 0 {
					return finish()
				}
			}
		} else {
			if len(strings.Fields(line)) < 2 {
				return nil, fmt.Errorf("line %d: invalid peak format, expected at least 2 fields", r.lineNum)
			}
			peaksRead++

			// Check if we've read all peaks
			if peaksRead >= numPeaks {
				return finish()
			}
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	// If we have a partially read entry, return it
	if p.Sequence != "" {
		return finish()
	}

	return nil, io.EOF
}

// parseName extracts sequence, charge and inline modification masses from
// the Name field
// Format: "n[305]AAAAQDEITGDGTTTVVC[160]LVGELLR/3"
func (r *Reader) parseName(p *core.Precursor, name string) ([]inlineMod, error) {
	parts := strings.Split(name, "/")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid name format '%s', expected 'SEQUENCE/CHARGE'", name)
	}

	charge, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid charge in name '%s': %w", name, err)
	}
	p.Charge = charge

	sequence, inline, err := parseInlineModifications(parts[0])
	if err != nil {
		return nil, fmt.Errorf("failed to parse modifications from sequence: %w", err)
	}
	p.Sequence = sequence

	return inline, nil
}

// parseInlineModifications strips bracket masses from a sequence. Residue
// sites are 1-based, n[...] is site 0 and c[...] site -1.
func parseInlineModifications(rawSeq string) (string, []inlineMod, error) {
	var sequence strings.Builder
	var mods []inlineMod

	lastIdx := 0
	for _, match := range inlineModRe.FindAllStringSubmatchIndex(rawSeq, -1) {
		// Add unmodified sequence before this match
		sequence.WriteString(rawSeq[lastIdx:match[0]])

		aa := rawSeq[match[2]:match[3]]
		massStr := rawSeq[match[4]:match[5]]
		mass, err := strconv.ParseFloat(massStr, 64)
		if err != nil {
			return "", nil, fmt.Errorf("invalid modification mass '%s': %w", massStr, err)
		}

		switch aa {
		case "n", "":
			mods = append(mods, inlineMod{site: 0, mass: mass})
		case "c":
			mods = append(mods, inlineMod{site: -1, mass: mass})
		default:
			sequence.WriteString(aa)
			mods = append(mods, inlineMod{site: sequence.Len(), aa: aa, mass: mass})
		}

		lastIdx = match[1]
	}

	// Add remaining sequence
	sequence.WriteString(rawSeq[lastIdx:])

	return sequence.String(), mods, nil
}

// parseComment returns the Mods value of a Comment field
func parseComment(comment string) string {
	for _, field := range strings.Fields(comment) {
		parts := strings.SplitN(field, "=", 2)
		if len(parts) == 2 && parts[0] == "Mods" {
			return parts[1]
		}
	}
	return ""
}

// applyMods sets mods and sites from the Mods comment, falling back to the
// inline bracket masses of the Name field
func (r *Reader) applyMods(p *core.Precursor, mods string, inline []inlineMod) error {
	if mods != "" && mods != "0" {
		return r.parseMods(p, mods)
	}
	for _, m := range inline {
		id, site, err := r.resolveInline(p.Sequence, m)
		if err != nil {
			return err
		}
		p.Mods = append(p.Mods, id)
		p.ModSites = append(p.ModSites, site)
	}
	return nil
}

// parseMods parses "count/pos,AA,Name/pos,AA,Name..." with 0-based positions
// and -1 for the N-terminus
func (r *Reader) parseMods(p *core.Precursor, modsStr string) error {
	parts := strings.Split(modsStr, "/")
	count, err := strconv.Atoi(parts[0])
	if err != nil {
		return fmt.Errorf("invalid modification count in '%s': %w", modsStr, err)
	}
	if count != len(parts)-1 {
		return fmt.Errorf("%w: Mods '%s' declares %d modifications", core.ErrShapeMismatch, modsStr, count)
	}

	for _, part := range parts[1:] {
		fields := strings.Split(part, ",")
		if len(fields) != 3 {
			return fmt.Errorf("invalid modification '%s', expected 'pos,AA,Name'", part)
		}
		pos, err := strconv.Atoi(fields[0])
		if err != nil {
			return fmt.Errorf("invalid modification position in '%s': %w", part, err)
		}

		site := pos + 1
		aa := fields[1]
		if pos < 0 {
			site, aa = 0, ""
		}
		id, site := r.modReg.Resolve(p.Sequence, fields[2], aa, site)
		p.Mods = append(p.Mods, id)
		p.ModSites = append(p.ModSites, site)
	}
	return nil
}

// resolveInline maps a bracket mass to a registered modification. Residue
// brackets hold residue plus modification mass, n[...] adds a hydrogen and
// c[...] a hydroxyl. Unmatched masses keep a "[mass]@AA" identifier so
// downstream calculation flags the row.
func (r *Reader) resolveInline(sequence string, m inlineMod) (string, int, error) {
	delta := m.mass
	switch {
	case m.site == 0:
		delta -= core.MassH
	case m.site == -1:
		delta -= core.MassO + core.MassH
	default:
		residue, ok := core.ResidueMass(m.aa[0])
		if !ok {
			return "", 0, fmt.Errorf("%w: '%s'", core.ErrUnknownResidue, m.aa)
		}
		delta -= residue
	}

	if id, site, ok := r.modReg.ResolveMass(sequence, m.site, delta, nominalTolerance); ok {
		return id, site, nil
	}

	site := "Any N-term"
	switch {
	case m.site == -1:
		site = "Any C-term"
	case m.site > 0:
		site = m.aa
	}
	return fmt.Sprintf("[%g]@%s", m.mass, site), m.site, nil
}

// ReadAll reads every entry into a precursor table with a charge column
func ReadAll(in io.Reader, modReg *core.ModRegistry) (*core.PrecursorTable, error) {
	reader := NewReader(in, modReg)

	var rows []core.Precursor
	for reader.Next() {
		rows = append(rows, *reader.Precursor())
	}
	if err := reader.Err(); err != nil {
		return nil, err
	}

	return core.NewPrecursorTable(rows, core.ColCharge), nil
}
