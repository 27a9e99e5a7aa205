// Package tsv provides a streaming reader for tab-separated precursor tables
package tsv

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/pepmass/pkg/core"
)

const maxLineSize = 1 << 20

// Reader provides streaming access to precursor tables with a header line.
// Recognized columns: sequence (required), mods, mod_sites, charge,
// mass_shifts, shift_sites, nAA, precursor_mz, frag_start_idx, frag_end_idx.
// Unknown columns are ignored.
type Reader struct {
	scanner   *bufio.Scanner
	header    map[string]int
	cols      core.Column
	lineNum   int
	current   *core.Precursor
	err       error
	delimiter string
}

// NewReader creates a new precursor table reader
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return &Reader{
		scanner:   scanner,
		delimiter: "\t",
	}
}

// Next advances to the next precursor. Returns false when no more rows or error.
func (r *Reader) Next() bool {
	r.current = nil
	if r.err != nil {
		return false
	}

	if r.header == nil {
		if err := r.readHeader(); err != nil {
			if err != io.EOF {
				r.err = err
			}
			return false
		}
	}

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimRight(r.scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		p, err := r.parseRow(strings.Split(line, r.delimiter))
		if err != nil {
			r.err = fmt.Errorf("line %d: %w", r.lineNum, err)
			return false
		}
		r.current = p
		return true
	}

	if err := r.scanner.Err(); err != nil {
		r.err = err
	}
	return false
}

// Precursor returns the current precursor
func (r *Reader) Precursor() *core.Precursor {
	return r.current
}

// Columns returns the column flags implied by the header
func (r *Reader) Columns() core.Column {
	return r.cols
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// readHeader reads the first non-empty line and maps column names to positions
func (r *Reader) readHeader() error {
	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimRight(r.scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		r.header = make(map[string]int)
		for i, name := range strings.Split(line, r.delimiter) {
			r.header[strings.TrimSpace(name)] = i
		}
		if _, ok := r.header["sequence"]; !ok {
			return fmt.Errorf("line %d: header has no 'sequence' column", r.lineNum)
		}

		if r.has("charge") {
			r.cols |= core.ColCharge
		}
		if r.has("mass_shifts") {
			r.cols |= core.ColMassShifts
		}
		if r.has("nAA") {
			r.cols |= core.ColNAA
		}
		if r.has("precursor_mz") {
			r.cols |= core.ColPrecursorMZ
		}
		if r.has("frag_start_idx") && r.has("frag_end_idx") {
			r.cols |= core.ColFragIndex
		}
		return nil
	}

	if err := r.scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}

func (r *Reader) has(column string) bool {
	_, ok := r.header[column]
	return ok
}

// field returns the trimmed value of a column, or "" when absent
func (r *Reader) field(fields []string, column string) string {
	i, ok := r.header[column]
	if !ok || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

// parseRow converts one data line into a precursor
func (r *Reader) parseRow(fields []string) (*core.Precursor, error) {
	p := &core.Precursor{
		Sequence: r.field(fields, "sequence"),
	}
	if p.Sequence == "" {
		return nil, fmt.Errorf("empty sequence")
	}

	mods, sites, err := core.SplitMods(r.field(fields, "mods"), r.field(fields, "mod_sites"))
	if err != nil {
		return nil, fmt.Errorf("precursor %s: %w", p.Sequence, err)
	}
	p.Mods, p.ModSites = mods, sites

	if r.cols&core.ColCharge != 0 {
		charge, err := strconv.Atoi(r.field(fields, "charge"))
		if err != nil {
			return nil, fmt.Errorf("invalid charge for %s: %w", p.Sequence, err)
		}
		p.Charge = charge
	}

	if r.has("mass_shifts") {
		if p.MassShifts, err = core.SplitFloats(r.field(fields, "mass_shifts")); err != nil {
			return nil, fmt.Errorf("precursor %s: %w", p.Sequence, err)
		}
		if p.ShiftSites, err = core.SplitInts(r.field(fields, "shift_sites")); err != nil {
			return nil, fmt.Errorf("precursor %s: %w", p.Sequence, err)
		}
		if len(p.MassShifts) != len(p.ShiftSites) {
			return nil, fmt.Errorf("%w: %d mass shifts but %d sites for %s", core.ErrShapeMismatch, len(p.MassShifts), len(p.ShiftSites), p.Sequence)
		}
	}

	if r.cols&core.ColNAA != 0 {
		if p.NAA, err = strconv.Atoi(r.field(fields, "nAA")); err != nil {
			return nil, fmt.Errorf("invalid nAA for %s: %w", p.Sequence, err)
		}
	}
	if r.cols&core.ColPrecursorMZ != 0 {
		if p.PrecursorMZ, err = strconv.ParseFloat(r.field(fields, "precursor_mz"), 64); err != nil {
			return nil, fmt.Errorf("invalid precursor_mz for %s: %w", p.Sequence, err)
		}
	}
	if r.cols&core.ColFragIndex != 0 {
		if p.FragStart, err = strconv.Atoi(r.field(fields, "frag_start_idx")); err != nil {
			return nil, fmt.Errorf("invalid frag_start_idx for %s: %w", p.Sequence, err)
		}
		if p.FragEnd, err = strconv.Atoi(r.field(fields, "frag_end_idx")); err != nil {
			return nil, fmt.Errorf("invalid frag_end_idx for %s: %w", p.Sequence, err)
		}
	}

	return p, nil
}

// ReadAll reads every row into a precursor table
func ReadAll(in io.Reader) (*core.PrecursorTable, error) {
	reader := NewReader(in)

	var rows []core.Precursor
	for reader.Next() {
		rows = append(rows, *reader.Precursor())
	}
	if err := reader.Err(); err != nil {
		return nil, err
	}

	return core.NewPrecursorTable(rows, reader.Columns()), nil
}
