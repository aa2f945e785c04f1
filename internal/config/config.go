// Package config loads gatesched.toml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/roach88/gatesched/internal/diag"
	"github.com/roach88/gatesched/internal/ir"
)

// FileName is the configuration file looked up by Find.
const FileName = "gatesched.toml"

// Config is the full configuration. Zero values are not meaningful; start
// from Default.
type Config struct {
	Scheduler Scheduler `toml:"scheduler"`
	Retype    Retype    `toml:"retype"`
	Store     Store     `toml:"store"`
	Log       Log       `toml:"log"`
}

type Scheduler struct {
	// Verify runs the graph verifier before and the placement check after
	// scheduling.
	Verify bool `toml:"verify"`
	// Dump prints the scheduled blocks.
	Dump bool `toml:"dump"`
}

type Retype struct {
	Enabled bool `toml:"enabled"`
}

type Store struct {
	// Path of the SQLite run history. Empty disables persistence.
	Path string `toml:"path"`
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Scheduler: Scheduler{Verify: true},
		Retype:    Retype{Enabled: true},
		Log:       Log{Level: "warn", Format: diag.FormatConsole},
	}
}

// Parse decodes TOML over the defaults. Unknown keys are errors.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return Config{}, fmt.Errorf("config %d:%d: %w", row, col, err)
		}
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Find walks up from dir looking for FileName. It returns "" when no file
// exists.
func Find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		p := filepath.Join(dir, FileName)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Validate checks values that TOML decoding cannot.
func (c Config) Validate() error {
	if _, err := diag.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config [log]: %w", err)
	}
	switch c.Log.Format {
	case diag.FormatConsole, diag.FormatJSON:
	default:
		return fmt.Errorf("config [log]: format %q: want %s or %s", c.Log.Format, diag.FormatConsole, diag.FormatJSON)
	}
	return nil
}

// Hash identifies the settings that change compilation output. Store and
// log settings are not part of it.
func (c Config) Hash() string {
	h, err := ir.ContentHash(ir.DomainConfig, map[string]any{
		"scheduler": map[string]any{"verify": c.Scheduler.Verify, "dump": c.Scheduler.Dump},
		"retype":    map[string]any{"enabled": c.Retype.Enabled},
	})
	if err != nil {
		panic(fmt.Sprintf("BUG: hash config: %v", err))
	}
	return h
}
