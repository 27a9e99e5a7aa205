// Package config is for app wide settings that are unmarshalled
// from Viper (see: /cmd/pepmass/cmd)
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ChrisMcGann/pepmass/pkg/core"
	"github.com/ChrisMcGann/pepmass/pkg/filter"
	"github.com/ChrisMcGann/pepmass/pkg/fragment"
	"github.com/ChrisMcGann/pepmass/pkg/precursor"
	"github.com/spf13/viper"
)

// FilterConfig settings about which precursors are kept
type FilterConfig struct {
	// peptide length window, 0 means no limit
	MinLen int `mapstructure:"min_len"`
	MaxLen int `mapstructure:"max_len"`

	// precursor charge window, 0 means no limit
	MinCharge int `mapstructure:"min_charge"`
	MaxCharge int `mapstructure:"max_charge"`

	// precursor m/z window, 0 means no limit
	MinMZ float64 `mapstructure:"min_mz"`
	MaxMZ float64 `mapstructure:"max_mz"`

	// drop rows with unknown modifications or residues
	DropInvalid bool `mapstructure:"drop_invalid"`

	// fragment ion types to keep in the output, empty keeps all
	IonTypes []string `mapstructure:"ion_types"`
}

// Config is the root-level settings struct and is a mix
// of settings available in pepmass.yaml, PEPMASS_* environment
// variables and those available from the command line
type Config struct {
	// fragment ion types, e.g. b, y, b_modloss
	FragTypes []string `mapstructure:"frag_types"`

	// fragment charges 1..MaxFragCharge are computed
	MaxFragCharge int `mapstructure:"max_frag_charge"`

	// seed of the identity hashes
	Seed uint32 `mapstructure:"seed"`

	// isotope workers, 1 runs serially
	Workers int `mapstructure:"workers"`

	// rows of one length group computed at once
	BatchSize int `mapstructure:"batch_size"`

	// path to a modification table layered over the built-in modifications
	ModRegistry string `mapstructure:"mod_registry"`

	// Filter settings
	Filter FilterConfig `mapstructure:"filter"`
}

// SetDefaults registers the default settings on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("frag_types", []string{"b", "y"})
	v.SetDefault("max_frag_charge", 2)
	v.SetDefault("seed", 0)
	v.SetDefault("workers", 1)
	v.SetDefault("batch_size", precursor.DefaultBatchSize)
	v.SetDefault("mod_registry", "")
	v.SetDefault("filter.min_len", 0)
	v.SetDefault("filter.max_len", 0)
	v.SetDefault("filter.min_charge", 0)
	v.SetDefault("filter.max_charge", 0)
	v.SetDefault("filter.min_mz", 0.0)
	v.SetDefault("filter.max_mz", 0.0)
	v.SetDefault("filter.drop_invalid", false)
	v.SetDefault("filter.ion_types", []string{})
}

// Load sets up v to read configFile, or pepmass.yaml from the working
// directory and $HOME/.pepmass, and PEPMASS_* environment variables.
// A missing default config file is not an error.
func Load(v *viper.Viper, configFile string) error {
	SetDefaults(v)

	v.SetEnvPrefix("PEPMASS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("pepmass")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".pepmass"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// New returns a new Config struct populated by the
// Viper settings and validates it
func New(v *viper.Viper) (Config, error) {
	var c Config

	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Validate checks the settings that cannot be defaulted
func (c Config) Validate() error {
	if len(c.FragTypes) == 0 {
		return fmt.Errorf("frag_types must not be empty")
	}
	for _, fragType := range c.FragTypes {
		if _, err := fragment.ParseFragType(fragType); err != nil {
			return err
		}
	}
	if c.MaxFragCharge < 1 {
		return fmt.Errorf("max_frag_charge must be at least 1, got %d", c.MaxFragCharge)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1, got %d", c.BatchSize)
	}
	return nil
}

// ChargedFragTypes returns the fragment table columns, e.g. b_1, b_2, y_1, y_2
func (c Config) ChargedFragTypes() []string {
	return fragment.GetChargedFragTypes(c.FragTypes, c.MaxFragCharge)
}

// FilterSettings returns the precursor filter configuration
func (c Config) FilterSettings() *filter.Config {
	return &filter.Config{
		MinLen:      c.Filter.MinLen,
		MaxLen:      c.Filter.MaxLen,
		MinCharge:   c.Filter.MinCharge,
		MaxCharge:   c.Filter.MaxCharge,
		MinMZ:       c.Filter.MinMZ,
		MaxMZ:       c.Filter.MaxMZ,
		DropInvalid: c.Filter.DropInvalid,
		IonTypes:    c.Filter.IonTypes,
	}
}

// Registry returns the built-in modifications, overlaid with ModRegistry
// when it is set
func (c Config) Registry() (*core.ModRegistry, error) {
	if c.ModRegistry == "" {
		return core.DefaultModRegistry(), nil
	}

	f, err := os.Open(c.ModRegistry)
	if err != nil {
		return nil, fmt.Errorf("failed to open modification table: %w", err)
	}
	defer f.Close()

	reg := core.NewModRegistry()
	reg.CopyDefaults()
	if err := reg.LoadFromCSV(f); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", c.ModRegistry, err)
	}
	return reg, nil
}
