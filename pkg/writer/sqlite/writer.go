// Package sqlite provides SQLite database writing for precursor and fragment tables
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ChrisMcGann/pepmass/pkg/core"
	"github.com/ChrisMcGann/pepmass/pkg/fragment"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// Date format for HeaderTable (ISO 8601)
	headerDateFormat = "2006-01-02"
	// Date format for MaintenanceTable
	maintenanceDateFormat = "2006 01 02"

	schemaVersion = 1
)

// Writer handles writing precursor and fragment tables to SQLite database files
type Writer struct {
	db              *sql.DB
	outputPath      string
	libraryID       string
	precursorStmt   *sql.Stmt
	fragmentStmt    *sql.Stmt
	precursorID     int
	fragmentColumns []string
	closed          bool
}

// NewWriter creates a new SQLite writer
func NewWriter(outputPath string) (*Writer, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{
		db:          db,
		outputPath:  outputPath,
		libraryID:   uuid.NewString(),
		precursorID: 1,
	}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	if err := w.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	return w, nil
}

// LibraryID returns the identifier written to the HeaderTable
func (w *Writer) LibraryID() string {
	return w.libraryID
}

// createTables creates the required database schema
func (w *Writer) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS PrecursorTable (
		PrecursorId INTEGER PRIMARY KEY,
		Label INTEGER,
		Sequence TEXT,
		Mods TEXT,
		ModSites TEXT,
		MassShifts TEXT,
		ShiftSites TEXT,
		Charge INTEGER,
		nAA INTEGER,
		PrecursorMz DOUBLE,
		IsotopeIntensityM1 DOUBLE,
		IsotopeIntensityM2 DOUBLE,
		IsotopeApexIntensity DOUBLE,
		IsotopeApexIndex INTEGER,
		IsotopeMzM1 DOUBLE,
		IsotopeMzM2 DOUBLE,
		IsotopeApexMz DOUBLE,
		ModSeqHash INTEGER,
		ModSeqChargeHash INTEGER,
		Valid BOOL,
		Error TEXT
	);

	CREATE TABLE IF NOT EXISTS FragmentTable (
		PrecursorId INTEGER REFERENCES PrecursorTable(PrecursorId),
		NumRows INTEGER,
		blobFragmentMz BLOB
	);

	CREATE TABLE IF NOT EXISTS HeaderTable (
		version INTEGER NOT NULL DEFAULT 0,
		CreationDate TEXT,
		LastModifiedDate TEXT,
		LibraryId TEXT,
		FragmentColumns TEXT,
		Description TEXT
	);

	CREATE TABLE IF NOT EXISTS MaintenanceTable (
		CreationDate TEXT,
		NoofPrecursorsModified INTEGER,
		Description TEXT
	);
	`

	_, err := w.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// prepareStatements prepares SQL statements for batch insertion
func (w *Writer) prepareStatements() error {
	var err error

	w.precursorStmt, err = w.db.Prepare(`
		INSERT INTO PrecursorTable (
			PrecursorId, Label, Sequence, Mods, ModSites, MassShifts, ShiftSites,
			Charge, nAA, PrecursorMz, IsotopeIntensityM1, IsotopeIntensityM2,
			IsotopeApexIntensity, IsotopeApexIndex, IsotopeMzM1, IsotopeMzM2,
			IsotopeApexMz, ModSeqHash, ModSeqChargeHash, Valid, Error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare precursor statement: %w", err)
	}

	w.fragmentStmt, err = w.db.Prepare(`
		INSERT INTO FragmentTable (PrecursorId, NumRows, blobFragmentMz) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare fragment statement: %w", err)
	}

	return nil
}

// WriteTable writes a precursor table and, when frag is not nil, each
// precursor's fragment rows as one blob. All calls must use the same
// fragment columns. Rows are written in one transaction.
func (w *Writer) WriteTable(prec *core.PrecursorTable, frag *fragment.Table) error {
	if frag != nil {
		if !prec.Has(core.ColFragIndex) {
			return fmt.Errorf("cannot write fragments: %w", fragment.ErrMissingFragIndex)
		}
		if w.fragmentColumns == nil {
			w.fragmentColumns = append([]string(nil), frag.Columns()...)
		} else if strings.Join(w.fragmentColumns, ",") != strings.Join(frag.Columns(), ",") {
			return fmt.Errorf("fragment columns %v differ from earlier tables %v", frag.Columns(), w.fragmentColumns)
		}
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	precursorStmt := tx.Stmt(w.precursorStmt)
	fragmentStmt := tx.Stmt(w.fragmentStmt)

	id := w.precursorID
	for i := range prec.Rows {
		p := &prec.Rows[i]
		if err := w.writePrecursor(precursorStmt, prec, i, id); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to write precursor %s: %w", p.Name(), err)
		}

		if frag != nil {
			if p.FragStart < 0 || p.FragEnd > frag.NumRows() || p.FragStart > p.FragEnd {
				tx.Rollback()
				return fmt.Errorf("precursor %s: fragment range [%d,%d) outside table of %d rows", p.Name(), p.FragStart, p.FragEnd, frag.NumRows())
			}
			blob := encodeFloat64(frag.Rows(p.FragStart, p.FragEnd))
			if _, err := fragmentStmt.Exec(id, p.FragEnd-p.FragStart, blob); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to insert fragments of %s: %w", p.Name(), err)
			}
		}
		id++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	w.precursorID = id
	return nil
}

// writePrecursor inserts row i of prec
func (w *Writer) writePrecursor(stmt *sql.Stmt, prec *core.PrecursorTable, i, id int) error {
	p := &prec.Rows[i]

	// Optional columns are NULL when the table does not carry them
	var charge, nAA, mz any
	if prec.Has(core.ColCharge) {
		charge = p.Charge
	}
	if prec.Has(core.ColNAA) {
		nAA = p.NAA
	}
	if prec.Has(core.ColPrecursorMZ) {
		mz = nullFloat(p.PrecursorMZ)
	}

	iso := make([]any, 7)
	if prec.Has(core.ColIsotope) {
		iso[0] = nullFloat(p.Isotope.IntensityM1)
		iso[1] = nullFloat(p.Isotope.IntensityM2)
		iso[2] = nullFloat(p.Isotope.ApexIntensity)
		if !math.IsNaN(p.Isotope.ApexMZ) {
			iso[3] = p.Isotope.ApexIndex
		}
		iso[4] = nullFloat(p.Isotope.MZM1)
		iso[5] = nullFloat(p.Isotope.MZM2)
		iso[6] = nullFloat(p.Isotope.ApexMZ)
	}

	var hash, chargeHash any
	if prec.Has(core.ColModSeqHash) {
		hash = p.ModSeqHash
	}
	if prec.Has(core.ColModSeqChargeHash) {
		chargeHash = p.ModSeqChargeHash
	}

	errText := ""
	if p.Err != nil {
		errText = p.Err.Error()
	}

	_, err := stmt.Exec(
		id,                 // PrecursorId
		prec.Labels[i],     // Label
		p.Sequence,         // Sequence
		p.ModsText(),       // Mods
		p.SitesText(),      // ModSites
		p.ShiftsText(),     // MassShifts
		p.ShiftSitesText(), // ShiftSites
		charge,             // Charge
		nAA,                // nAA
		mz,                 // PrecursorMz
		iso[0],             // IsotopeIntensityM1
		iso[1],             // IsotopeIntensityM2
		iso[2],             // IsotopeApexIntensity
		iso[3],             // IsotopeApexIndex
		iso[4],             // IsotopeMzM1
		iso[5],             // IsotopeMzM2
		iso[6],             // IsotopeApexMz
		hash,               // ModSeqHash
		chargeHash,         // ModSeqChargeHash
		p.Valid(),          // Valid
		errText,            // Error
	)
	return err
}

// nullFloat maps NaN to NULL
func nullFloat(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

// encodeFloat64 encodes values as a little-endian float64 blob
func encodeFloat64(values []float64) []byte {
	buf := make([]byte, len(values)*8)
	for i, value := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(value))
	}
	return buf
}

// DecodeFloat64 decodes a little-endian float64 blob
func DecodeFloat64(blob []byte) ([]float64, error) {
	if len(blob)%8 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 8", len(blob))
	}
	values := make([]float64, len(blob)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return values, nil
}

// Finalize writes the header and maintenance tables and closes the database
func (w *Writer) Finalize() error {
	if w.closed {
		return nil
	}
	w.closed = true

	// Write HeaderTable
	now := time.Now()
	_, err := w.db.Exec(`
		INSERT INTO HeaderTable (version, CreationDate, LastModifiedDate, LibraryId, FragmentColumns, Description)
		VALUES (?, ?, ?, ?, ?, ?)
	`, schemaVersion, now.Format(headerDateFormat), now.Format(headerDateFormat), w.libraryID, strings.Join(w.fragmentColumns, ","), "")
	if err != nil {
		w.db.Close()
		return fmt.Errorf("failed to insert header: %w", err)
	}

	// Write MaintenanceTable
	_, err = w.db.Exec(`
		INSERT INTO MaintenanceTable (CreationDate, NoofPrecursorsModified, Description)
		VALUES (?, ?, ?)
	`, now.Format(maintenanceDateFormat), w.precursorID-1, "")
	if err != nil {
		w.db.Close()
		return fmt.Errorf("failed to insert maintenance: %w", err)
	}

	// Close prepared statements
	if w.precursorStmt != nil {
		w.precursorStmt.Close()
	}
	if w.fragmentStmt != nil {
		w.fragmentStmt.Close()
	}

	// Close database
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// Close closes the database connection (alias for Finalize)
func (w *Writer) Close() error {
	return w.Finalize()
}
