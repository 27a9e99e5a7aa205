package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/ChrisMcGann/pepmass/pkg/core"
	"github.com/ChrisMcGann/pepmass/pkg/precursor"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate input file format and contents",
	Long: `Validate that a precursor table is well formed and that every modification
and residue can be resolved against the modification registry.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		reg, err := cfg.Registry()
		if err != nil {
			return err
		}

		table, err := readPrecursors(args[0], reg)
		if err != nil {
			return err
		}
		if err := table.Validate(); err != nil {
			return err
		}

		unknownMods, unknownResidues := checkResolvable(reg, table)
		fmt.Printf("Precursors: %d\n", table.Len())
		fmt.Printf("Modifications in registry: %d\n", reg.Len())

		if len(unknownMods) > 0 || unknownResidues > 0 {
			for mod, n := range unknownMods {
				fmt.Fprintf(os.Stderr, "Warning: unrecognized modification '%s' on %d precursors\n", mod, n)
			}
			if unknownResidues > 0 {
				fmt.Fprintf(os.Stderr, "Warning: %d precursors contain unrecognized amino acids\n", unknownResidues)
			}
			return fmt.Errorf("%s: %d unresolvable modifications, %d precursors with unknown residues", args[0], len(unknownMods), unknownResidues)
		}

		fmt.Printf("%s is valid\n", args[0])
		return nil
	},
}

// checkResolvable counts precursors per unknown modification and precursors
// with unknown residues
func checkResolvable(reg *core.ModRegistry, table *core.PrecursorTable) (map[string]int, int) {
	unknownMods := make(map[string]int)
	unknownResidues := 0

	for i := range table.Rows {
		p := &table.Rows[i]
		for _, mod := range p.Mods {
			if _, ok := reg.Get(mod); !ok {
				unknownMods[mod]++
			}
		}
		if _, err := core.ResidueMasses(p.Sequence); errors.Is(err, core.ErrUnknownResidue) {
			unknownResidues++
		}
	}

	// Compositions are needed for isotope envelopes only
	for i := range table.Rows {
		p := &table.Rows[i]
		if _, err := precursor.ModSeqFormula(reg, p.Sequence, p.Mods); errors.Is(err, core.ErrNoComposition) {
			fmt.Fprintf(os.Stderr, "Warning: precursor %s has a modification without composition, isotopes cannot be computed\n", p.Name())
		}
	}

	return unknownMods, unknownResidues
}
