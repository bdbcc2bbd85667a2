package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Loaded captures resolved config path, parsed values, and non-fatal
// warnings, kept from the teacher's three-stage envelope shape.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, and validates the runtime configuration.
// A missing file is not an error: it falls back to Default() with a
// warning, per spec §6 ("missing file → fall back to defaults with a
// warning").
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
		}
		base := Default()
		warnings, verr := Validate(base)
		if verr != nil {
			return Loaded{}, verr
		}
		notFound := Warning{Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath)}
		return Loaded{
			Path:     resolvedPath,
			Config:   base,
			Warnings: append([]Warning{notFound}, warnings...),
			Exists:   false,
		}, nil
	}

	cfg := Default()
	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Loaded{}, fmt.Errorf("validate config %q: %w", resolvedPath, err)
	}

	return Loaded{Path: resolvedPath, Config: cfg, Warnings: warnings, Exists: true}, nil
}

// GenerateDefault writes the default configuration to path, encoded as
// TOML, for the --generate-config CLI flag (spec §6).
func GenerateDefault(path string) error {
	content, err := toml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write config %q: %w", path, err)
	}
	return nil
}
