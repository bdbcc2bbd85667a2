package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ResolvePath applies CLI/XDG/home fallback rules for config.toml
// location, kept in spirit from the teacher's dictation-config resolver.
// A non-empty explicit path is returned unchanged; an empty one resolves
// to $XDG_CONFIG_HOME/dcr-transcribe/config.toml, else
// ~/.config/dcr-transcribe/config.toml. The bare working-directory
// default (config.toml) is supplied by cli.Parse, not here.
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "dcr-transcribe", "config.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}

	return filepath.Join(home, ".config", "dcr-transcribe", "config.toml"), nil
}
