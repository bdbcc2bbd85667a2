package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePathPrecedence(t *testing.T) {
	explicit := "/tmp/custom.toml"
	resolved, err := ResolvePath(explicit)
	require.NoError(t, err)
	require.Equal(t, explicit, resolved)

	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(xdg, "dcr-transcribe", "config.toml"), resolved)

	t.Setenv("XDG_CONFIG_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".config", "dcr-transcribe", "config.toml"), resolved)
}

func TestLoadMissingConfigUsesDefaultsWithWarning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, loaded.Path)
	require.False(t, loaded.Exists)
	require.Equal(t, Default(), loaded.Config)
	require.NotEmpty(t, loaded.Warnings)
	require.Contains(t, loaded.Warnings[0].Message, "not found")
}

func TestLoadExistingConfigParsesAndValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
[audio]
device_id = "hw:1"
sample_rate = 16000
channels = 4

[transcribe]
backend = "aws"
region = "eu-west-1"
language_code = "en-US"
sample_rate = 16000
max_retries = 3
timeout_seconds = 10

[[channels]]
id = 0
name = "front-desk"
enabled = true

[[channels]]
id = 1
name = "lobby"
enabled = false
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.Equal(t, path, loaded.Path)
	require.Equal(t, "hw:1", loaded.Config.Audio.DeviceID)
	require.Equal(t, 4, loaded.Config.Audio.Channels)
	require.Equal(t, "eu-west-1", loaded.Config.Transcribe.Region)
	require.Len(t, loaded.Config.Channels, 2)
	require.Equal(t, "front-desk", loaded.Config.Channels[0].Name)
}

func TestLoadParseErrorIncludesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("not = [valid toml"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse config")
	require.Contains(t, err.Error(), path)
}

func TestGenerateDefaultRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generated.toml")
	require.NoError(t, GenerateDefault(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.Equal(t, Default(), loaded.Config)
}
