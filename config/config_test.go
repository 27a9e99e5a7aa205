package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pepmass.yaml")
	yaml := `frag_types: [b, y, b_modloss]
max_frag_charge: 3
seed: 7
workers: 4
filter:
  min_len: 7
  max_mz: 1800.5
  drop_invalid: true
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	if err := Load(v, path); err != nil {
		t.Fatal(err)
	}
	c, err := New(v)
	if err != nil {
		t.Fatal(err)
	}

	if len(c.FragTypes) != 3 || c.MaxFragCharge != 3 || c.Seed != 7 || c.Workers != 4 {
		t.Errorf("config = %+v", c)
	}
	if c.BatchSize <= 0 {
		t.Errorf("batch_size default not applied: %d", c.BatchSize)
	}
	if c.Filter.MinLen != 7 || c.Filter.MaxMZ != 1800.5 || !c.Filter.DropInvalid {
		t.Errorf("filter = %+v", c.Filter)
	}
	if got := c.ChargedFragTypes(); len(got) != 9 || got[0] != "b_1" || got[8] != "b_modloss_3" {
		t.Errorf("ChargedFragTypes() = %v", got)
	}
	if f := c.FilterSettings(); f.MinLen != 7 || !f.DropInvalid {
		t.Errorf("FilterSettings() = %+v", f)
	}
}

func TestLoadDefaults(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PEPMASS_WORKERS", "3")

	v := viper.New()
	if err := Load(v, ""); err != nil {
		t.Fatal(err)
	}
	c, err := New(v)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.FragTypes) != 2 || c.MaxFragCharge != 2 {
		t.Errorf("defaults = %+v", c)
	}
	if c.Workers != 3 {
		t.Errorf("workers = %d, want 3 from the environment", c.Workers)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for an explicit missing config file")
	}
}

func TestValidate(t *testing.T) {
	valid := Config{FragTypes: []string{"b"}, MaxFragCharge: 1, Workers: 1, BatchSize: 10}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"no frag types", func(c *Config) { c.FragTypes = nil }, true},
		{"unknown frag type", func(c *Config) { c.FragTypes = []string{"x"} }, true},
		{"zero charge", func(c *Config) { c.MaxFragCharge = 0 }, true},
		{"zero workers", func(c *Config) { c.Workers = 0 }, true},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.modify(&c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	c := Config{}
	reg, err := c.Registry()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reg.Get("Phospho@S"); !ok {
		t.Error("default registry should contain Phospho@S")
	}

	path := filepath.Join(t.TempDir(), "mods.tsv")
	table := "mod_name\tcomposition\tmodloss_composition\nCustom@K\tC(2)H(2)O(1)\t\n"
	if err := os.WriteFile(path, []byte(table), 0o644); err != nil {
		t.Fatal(err)
	}
	c.ModRegistry = path
	reg, err = c.Registry()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reg.Get("Custom@K"); !ok {
		t.Error("custom modification missing")
	}
	if _, ok := reg.Get("Oxidation@M"); !ok {
		t.Error("built-in modifications should be kept")
	}
}
