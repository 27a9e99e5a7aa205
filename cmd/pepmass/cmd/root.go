// Package cmd provides CLI command implementations
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ChrisMcGann/pepmass/config"
	"github.com/ChrisMcGann/pepmass/pkg/core"
	"github.com/ChrisMcGann/pepmass/pkg/reader/msp"
	"github.com/ChrisMcGann/pepmass/pkg/reader/sptxt"
	"github.com/ChrisMcGann/pepmass/pkg/reader/tsv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Global flags
	configFile      string
	modRegistryPath string

	// Input flags shared by the table commands
	inputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "pepmass",
	Short: "pepmass - Peptide precursor and fragment mass calculator",
	Long: `pepmass computes fragment ion m/z tables, precursor m/z, isotope envelopes
and identity hashes for peptide precursor tables.

Input is a tab-separated precursor table (sequence, mods, mod_sites, charge,
optional mass_shifts/shift_sites) or an MSP or SPTXT spectral library. Settings are read
from pepmass.yaml (working directory or $HOME/.pepmass), PEPMASS_* environment
variables and command line flags.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.Load(viper.GetViper(), configFile)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(calcCmd)
	rootCmd.AddCommand(hashCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(fragTypesCmd)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default pepmass.yaml in . or $HOME/.pepmass)")
	rootCmd.PersistentFlags().StringVar(&modRegistryPath, "mod-registry", "", "Modification table (CSV/TSV) layered over the built-in modifications")
	rootCmd.PersistentFlags().StringVarP(&inputFormat, "from", "f", "", "Input format: tsv, msp or sptxt (auto-detect if not specified)")

	viper.BindPFlag("mod_registry", rootCmd.PersistentFlags().Lookup("mod-registry"))
}

// loadConfig returns the merged settings of file, environment and flags
func loadConfig() (config.Config, error) {
	return config.New(viper.GetViper())
}

// detectFormat returns the input format from --from or the file extension
func detectFormat(path string) (string, error) {
	format := strings.ToLower(inputFormat)
	if format == "" {
		ext := strings.ToLower(filepath.Ext(path))
		switch ext {
		case ".tsv", ".txt", ".tab":
			format = "tsv"
		case ".msp":
			format = "msp"
		case ".sptxt":
			format = "sptxt"
		default:
			return "", fmt.Errorf("cannot auto-detect format from extension '%s', please specify --from", ext)
		}
	}

	switch format {
	case "tsv", "msp", "sptxt":
	default:
		return "", fmt.Errorf("invalid input format '%s', must be tsv, msp or sptxt", format)
	}
	return format, nil
}

// readPrecursors reads a precursor table from a TSV, MSP or SPTXT file
func readPrecursors(path string, reg *core.ModRegistry) (*core.PrecursorTable, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("input file does not exist: %s", path)
	}

	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	var table *core.PrecursorTable
	switch format {
	case "msp":
		table, err = msp.ReadAll(f, reg)
	case "sptxt":
		table, err = sptxt.ReadAll(f, reg)
	default:
		table, err = tsv.ReadAll(f)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading input file: %w", err)
	}
	return table, nil
}
