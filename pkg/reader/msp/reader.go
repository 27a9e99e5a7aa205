// Package msp provides streaming readers for MSP (Prosit/NIST) format spectral
// libraries, yielding the precursor of each entry
package msp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/pepmass/pkg/core"
)

// Reader provides streaming access to MSP format files
type Reader struct {
	scanner *bufio.Scanner
	modReg  *core.ModRegistry
	lineNum int
	current *core.Precursor
	err     error
}

// NewReader creates a new MSP reader
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

// readEntry reads a single library entry. Peak lines are consumed and dropped.
func (r *Reader) readEntry() (*core.Precursor, error) {
	p := &core.Precursor{}

	var numPeaks int
	inPeaks := false
	peaksRead := 0
	var mods, modString string

	finish := func() (*core.Precursor, error) {
		if err := r.applyMods(p, mods, modString); err != nil {
			return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
		}
		return p, nil
	}

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())

		// Skip empty lines between entries
		if line == "" && p.Sequence == "" {
			continue
		}

		if !inPeaks {
			// Parse header fields
			if strings.HasPrefix(line, "Name: ") {
				name := strings.TrimPrefix(line, "Name: ")
				if err := r.parseName(p, name); err != nil {
					return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
				}
			} else if strings.HasPrefix(line, "Comment: ") {
				mods, modString = parseComment(strings.TrimPrefix(line, "Comment: "))
			} else if strings.HasPrefix(line, "Num peaks: ") {
				numPeaksStr := strings.TrimPrefix(line, "Num peaks: ")
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
			if line == "" {
				return nil, fmt.Errorf("line %d: entry %s ended after %d of %d peaks", r.lineNum, p.Name(), peaksRead, numPeaks)
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

// parseName extracts sequence and charge from Name field (format: "SEQUENCE/CHARGE")
func (r *Reader) parseName(p *core.Precursor, name string) error {
	parts := strings.Split(name, "/")
	if len(parts) != 2 {
		return fmt.Errorf("invalid name format '%s', expected 'SEQUENCE/CHARGE'", name)
	}

	p.Sequence = parts[0]
	// Charge may carry trailing annotations, e.g. "2_0" in some Prosit exports
	chargeStr := strings.SplitN(parts[1], "_", 2)[0]
	charge, err := strconv.Atoi(chargeStr)
	if err != nil {
		return fmt.Errorf("invalid charge in name '%s': %w", name, err)
	}
	p.Charge = charge

	return nil
}

// parseComment returns the Mods and ModString values of a Comment field
func parseComment(comment string) (mods, modString string) {
	// Comment format: key=value key=value...
	// Example: Parent=414.71 Collision_energy=35 Mods=1/4,M,Oxidation ModString=PEPTMIDE//Oxidation@M5/2 iRT=61.01
	for _, field := range strings.Fields(comment) {
		parts := strings.SplitN(field, "=", 2)
		if len(parts) != 2 {
			continue
		}

		switch parts[0] {
		case "Mods":
			mods = parts[1]
		case "ModString":
			modString = parts[1]
		}
	}
	return mods, modString
}

// applyMods sets mods and sites from the Mods field, falling back to ModString
func (r *Reader) applyMods(p *core.Precursor, mods, modString string) error {
	if mods != "" && mods != "0" {
		return r.parseMods(p, mods)
	}
	if modString != "" {
		return r.parseModString(p, modString)
	}
	return nil
}

// parseMods parses "count/pos,AA,Name/pos,AA,Name..." with 0-based positions
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
		if pos < 0 {
			site = -1
		}
		id, site := r.modReg.Resolve(p.Sequence, fields[2], fields[1], site)
		p.Mods = append(p.Mods, id)
		p.ModSites = append(p.ModSites, site)
	}
	return nil
}

// parseModString parses "SEQUENCE//Name@AAPos;Name@AAPos/Charge" with 1-based
// positions, 0 for N-term and -1 for C-term
func (r *Reader) parseModString(p *core.Precursor, modString string) error {
	parts := strings.Split(modString, "//")
	if len(parts) < 2 {
		return nil
	}

	modPart := parts[1]
	// Remove trailing charge info if present
	modPart = strings.Split(modPart, "/")[0]

	for _, modSpec := range strings.Split(modPart, ";") {
		modSpec = strings.TrimSpace(modSpec)
		if modSpec == "" {
			continue
		}

		atParts := strings.Split(modSpec, "@")
		if len(atParts) != 2 {
			return fmt.Errorf("invalid modification '%s', expected 'Name@AAPos'", modSpec)
		}

		modName := atParts[0]
		posStr := strings.TrimLeft(atParts[1], "ACDEFGHIKLMNPQRSTVWY")
		aa := strings.TrimSuffix(atParts[1], posStr)

		pos, err := strconv.Atoi(posStr)
		if err != nil {
			return fmt.Errorf("invalid modification position in '%s': %w", modSpec, err)
		}

		id, site := r.modReg.Resolve(p.Sequence, modName, aa, pos)
		p.Mods = append(p.Mods, id)
		p.ModSites = append(p.ModSites, site)
	}
	return nil
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
