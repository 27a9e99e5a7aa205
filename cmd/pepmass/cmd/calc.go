package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/pepmass/pkg/core"
	"github.com/ChrisMcGann/pepmass/pkg/fragment"
	"github.com/ChrisMcGann/pepmass/pkg/precursor"
	"github.com/ChrisMcGann/pepmass/pkg/writer/sqlite"
	"github.com/ChrisMcGann/pepmass/pkg/writer/tsv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Flags for calc command
	inputFile     string
	outputFile    string
	fragOutput    string
	withIsotope   bool
	massOffsetCSV string
)

var calcCmd = &cobra.Command{
	Use:   "calc",
	Short: "Calculate fragment m/z, precursor m/z, isotopes and hashes",
	Long: `Calculate the fragment m/z table and precursor-level columns of a precursor table.

The output is a TSV precursor table (with an optional fragment TSV) or, for a
.db output, a SQLite database holding both.

Examples:
  # b/y ions up to charge 2 into a SQLite library
  pepmass calc --in peptides.tsv --out library.db

  # modloss ions, isotope envelopes on 8 workers
  pepmass calc --in library.msp --out precursors.tsv --frag-out fragments.tsv \
    --frag-types b,y,b_modloss,y_modloss --isotope --workers 8`,
	RunE: runCalc,
}

func init() {
	calcCmd.Flags().StringVarP(&inputFile, "in", "i", "", "Input file path (required)")
	calcCmd.Flags().StringVarP(&outputFile, "out", "o", "", "Output file: .db for SQLite, anything else for TSV (required)")
	calcCmd.Flags().StringVar(&fragOutput, "frag-out", "", "Fragment table TSV output (TSV mode only)")
	calcCmd.Flags().BoolVar(&withIsotope, "isotope", false, "Calculate isotope envelope columns")
	calcCmd.Flags().StringVar(&massOffsetCSV, "mass-offset", "", "Path to a Sequence,massOffset CSV applied as N-terminal mass shifts")
	calcCmd.Flags().StringSlice("frag-types", []string{"b", "y"}, "Fragment ion types")
	calcCmd.Flags().Int("max-frag-charge", 2, "Maximum fragment charge")
	calcCmd.Flags().Int("workers", 1, "Number of isotope workers")
	calcCmd.Flags().Int("batch-size", precursor.DefaultBatchSize, "Rows of one length group computed at once")
	calcCmd.Flags().Uint32("seed", 0, "Identity hash seed")
	addFilterFlags(calcCmd)

	viper.BindPFlag("frag_types", calcCmd.Flags().Lookup("frag-types"))
	viper.BindPFlag("max_frag_charge", calcCmd.Flags().Lookup("max-frag-charge"))
	viper.BindPFlag("workers", calcCmd.Flags().Lookup("workers"))
	viper.BindPFlag("batch_size", calcCmd.Flags().Lookup("batch-size"))
	viper.BindPFlag("seed", calcCmd.Flags().Lookup("seed"))

	calcCmd.MarkFlagRequired("in")
	calcCmd.MarkFlagRequired("out")
}

// addFilterFlags registers the precursor filter flags and binds them to the filter settings
func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().Int("min-len", 0, "Minimum peptide length (0 = no limit)")
	cmd.Flags().Int("max-len", 0, "Maximum peptide length (0 = no limit)")
	cmd.Flags().Int("min-charge", 0, "Minimum precursor charge (0 = no limit)")
	cmd.Flags().Int("max-charge", 0, "Maximum precursor charge (0 = no limit)")
	cmd.Flags().Float64("min-mz", 0, "Minimum precursor m/z (0 = no limit)")
	cmd.Flags().Float64("max-mz", 0, "Maximum precursor m/z (0 = no limit)")
	cmd.Flags().Bool("drop-invalid", false, "Drop precursors with unknown modifications or residues")
	cmd.Flags().StringSlice("ion-types", nil, "Fragment ion types to keep in the output (e.g., 'b,y')")

	viper.BindPFlag("filter.min_len", cmd.Flags().Lookup("min-len"))
	viper.BindPFlag("filter.max_len", cmd.Flags().Lookup("max-len"))
	viper.BindPFlag("filter.min_charge", cmd.Flags().Lookup("min-charge"))
	viper.BindPFlag("filter.max_charge", cmd.Flags().Lookup("max-charge"))
	viper.BindPFlag("filter.min_mz", cmd.Flags().Lookup("min-mz"))
	viper.BindPFlag("filter.max_mz", cmd.Flags().Lookup("max-mz"))
	viper.BindPFlag("filter.drop_invalid", cmd.Flags().Lookup("drop-invalid"))
	viper.BindPFlag("filter.ion_types", cmd.Flags().Lookup("ion-types"))
}

func runCalc(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := cfg.Registry()
	if err != nil {
		return err
	}

	table, err := readPrecursors(inputFile, reg)
	if err != nil {
		return err
	}
	if !table.Has(core.ColCharge) {
		return fmt.Errorf("input has no charge column: %w", core.ErrMissingCharge)
	}

	fmt.Printf("Calculating %s -> %s...\n", inputFile, outputFile)
	fmt.Printf("Precursors: %d\n", table.Len())
	fmt.Printf("Fragment types: %s\n", strings.Join(cfg.ChargedFragTypes(), ","))

	// Load mass offset mapping if provided
	if massOffsetCSV != "" {
		offsets, err := loadMassOffsetCSV(massOffsetCSV)
		if err != nil {
			return fmt.Errorf("failed to load mass offset CSV: %w", err)
		}
		applied := applyMassOffsets(table, offsets)
		fmt.Printf("Loaded %d mass offset mappings, applied to %d precursors\n", len(offsets), applied)
	}

	if err := table.Validate(); err != nil {
		return err
	}

	// Fresh fragment indices for the whole table
	table = core.RefinePrecursorTable(table, true)
	prec, frag, err := fragment.CalcFragmentMZ(reg, table, cfg.ChargedFragTypes(), nil)
	if err != nil {
		return err
	}

	if withIsotope {
		if cfg.Workers > 1 {
			prec, err = precursor.CalcPrecursorIsotopeParallel(reg, prec, cfg.Workers, cfg.BatchSize)
			if err != nil {
				return err
			}
			prec.SortByLabel()
		} else if err := precursor.CalcPrecursorIsotope(reg, prec); err != nil {
			return err
		}
	}

	precursor.HashPrecursorTable(prec, cfg.Seed)

	if n := prec.InvalidCount(); n > 0 {
		fmt.Fprintf(os.Stderr, "Warning: %d precursors could not be computed (unknown modification or residue)\n", n)
	}

	filterConfig := cfg.FilterSettings()
	prec, err = filterConfig.Apply(prec)
	if err != nil {
		return err
	}
	frag, err = filterConfig.Columns(frag)
	if err != nil {
		return err
	}

	if strings.EqualFold(filepath.Ext(outputFile), ".db") {
		err = writeSQLite(prec, frag)
	} else {
		err = writeTSV(prec, frag)
	}
	if err != nil {
		return err
	}

	fmt.Printf("\nCalculation complete!\n")
	fmt.Printf("Precursors written: %d\n", prec.Len())
	fmt.Printf("Fragment rows: %d\n", frag.NumRows())
	fmt.Printf("Output: %s\n", outputFile)

	return nil
}

func writeSQLite(prec *core.PrecursorTable, frag *fragment.Table) error {
	writer, err := sqlite.NewWriter(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output database: %w", err)
	}
	defer writer.Close()

	if err := writer.WriteTable(prec, frag); err != nil {
		return err
	}

	fmt.Printf("Library ID: %s\n", writer.LibraryID())

	// Finalize database
	if err := writer.Finalize(); err != nil {
		return fmt.Errorf("failed to finalize database: %w", err)
	}
	return nil
}

func writeTSV(prec *core.PrecursorTable, frag *fragment.Table) error {
	out, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	writer := tsv.NewWriter(out)
	if err := writer.WriteTable(prec); err != nil {
		return err
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	if fragOutput != "" {
		fragFile, err := os.Create(fragOutput)
		if err != nil {
			return fmt.Errorf("failed to create fragment output file: %w", err)
		}
		defer fragFile.Close()

		if err := tsv.WriteFragments(fragFile, frag); err != nil {
			return err
		}
		fmt.Printf("Fragments: %s\n", fragOutput)
	}
	return nil
}

// applyMassOffsets adds each sequence's offset as an N-terminal mass shift
func applyMassOffsets(table *core.PrecursorTable, offsets map[string]float64) int {
	applied := 0
	for i := range table.Rows {
		p := &table.Rows[i]
		if offset, ok := offsets[p.Sequence]; ok {
			p.MassShifts = append(p.MassShifts, offset)
			p.ShiftSites = append(p.ShiftSites, 0)
			applied++
		}
	}
	if applied > 0 {
		table.Set(core.ColMassShifts)
	}
	return applied
}

func loadMassOffsetCSV(path string) (map[string]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	result := make(map[string]float64)
	scanner := bufio.NewScanner(file)

	// Skip header line
	scanner.Scan()

	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			return nil, fmt.Errorf("line %d: expected 2 fields (Sequence,massOffset), got %d", lineNum, len(parts))
		}

		sequence := strings.TrimSpace(parts[0])
		offsetStr := strings.TrimSpace(parts[1])

		offset, err := strconv.ParseFloat(offsetStr, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid mass offset value '%s': %w", lineNum, offsetStr, err)
		}

		result[sequence] = offset
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading CSV: %w", err)
	}

	return result, nil
}
