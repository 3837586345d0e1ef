// Package config loads borrowck.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"borrowck/internal/borrowck"
)

// FileName is the name of the configuration file.
const FileName = "borrowck.toml"

// ErrUnknownKeys is returned for documents with keys Load does not know.
var ErrUnknownKeys = errors.New("unknown keys")

type Analysis struct {
	TwoPhase       bool `toml:"two_phase"`
	MaxDiagnostics int  `toml:"max_diagnostics"`
	DropFlags      bool `toml:"drop_flags"`
	ReassignDrops  bool `toml:"reassign_drops"`
	Mutability     bool `toml:"mutability"`
}

type Output struct {
	Format string `toml:"format"`
	Color  string `toml:"color"`
	Notes  bool   `toml:"notes"`
}

type Driver struct {
	Jobs  int  `toml:"jobs"`
	Cache bool `toml:"cache"`
}

// Config mirrors borrowck.toml. Keys missing from the file keep their
// defaults.
type Config struct {
	Analysis Analysis `toml:"analysis"`
	Output   Output   `toml:"output"`
	Driver   Driver   `toml:"driver"`

	// Path is the file the configuration was read from, if any.
	Path string `toml:"-"`
}

// Default returns the configuration used when no file is found.
func Default() Config {
	opts := borrowck.DefaultOptions()
	return Config{
		Analysis: Analysis{
			TwoPhase:       opts.TwoPhase,
			MaxDiagnostics: opts.MaxDiagnostics,
			DropFlags:      opts.DropFlags,
			ReassignDrops:  opts.ReassignDrops,
			Mutability:     opts.Mutability,
		},
		Output: Output{Format: "pretty", Color: "auto", Notes: true},
	}
}

// Options converts the [analysis] table.
func (c *Config) Options() borrowck.Options {
	return borrowck.Options{
		TwoPhase:       c.Analysis.TwoPhase,
		MaxDiagnostics: c.Analysis.MaxDiagnostics,
		DropFlags:      c.Analysis.DropFlags,
		ReassignDrops:  c.Analysis.ReassignDrops,
		Mutability:     c.Analysis.Mutability,
	}
}

// Find walks up from startDir to locate borrowck.toml.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load reads the file at path over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("%s: %w: %s", path, ErrUnknownKeys, strings.Join(keys, ", "))
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

// Discover loads the nearest borrowck.toml above startDir, or returns
// the defaults when there is none.
func Discover(startDir string) (Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

func (c *Config) validate() error {
	var errs []error
	switch c.Output.Format {
	case "pretty", "short", "json":
	default:
		errs = append(errs, fmt.Errorf("output.format: unknown format %q", c.Output.Format))
	}
	switch c.Output.Color {
	case "auto", "on", "off":
	default:
		errs = append(errs, fmt.Errorf("output.color: expected auto|on|off, got %q", c.Output.Color))
	}
	if c.Driver.Jobs < 0 {
		errs = append(errs, fmt.Errorf("driver.jobs: must not be negative"))
	}
	return errors.Join(errs...)
}
