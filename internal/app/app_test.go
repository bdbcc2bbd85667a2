package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nappa-audio/dcr-transcribe/internal/config"
)

func TestExecuteHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"--help"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "Usage:")
	require.Empty(t, stderr.String())
}

func TestExecuteUnknownFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"--definitely-not-a-flag"}, &stdout, &stderr)
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "unknown flag")
	require.Contains(t, stderr.String(), "Usage:")
}

func TestExecuteGenerateConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "out.toml")

	exitCode := Execute(context.Background(), []string{"--generate-config", path}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), path)
	require.Empty(t, stderr.String())

	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestExecuteShowInterfacesFailsWithoutPulse(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stdout, stderr bytes.Buffer
	exitCode := Execute(context.Background(), []string{"--show-interfaces"}, &stdout, &stderr)
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "error:")
}

func TestExecuteRunFailsWithoutPulse(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("[output]\nwav_output_dir = \""+dir+"\"\n"), 0o600))

	var stdout, stderr bytes.Buffer
	exitCode := Execute(context.Background(), []string{configPath}, &stdout, &stderr)
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "error:")
}

func TestBuildBackendUnknownErrors(t *testing.T) {
	_, err := buildBackend(config.Config{Transcribe: config.TranscribeConfig{Backend: "bogus"}}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown transcribe.backend")
}

func TestBuildBackendWhisperRequiresAPIKey(t *testing.T) {
	_, err := buildBackend(config.Config{
		Transcribe: config.TranscribeConfig{Backend: "whisper"},
		Whisper:    config.WhisperConfig{Model: "whisper-1"},
	}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "api_key")
}

func TestBuildBackendWhisperSucceedsWithAPIKey(t *testing.T) {
	backend, err := buildBackend(config.Config{
		Transcribe: config.TranscribeConfig{Backend: "whisper"},
		Whisper:    config.WhisperConfig{Model: "whisper-1", APIKey: "sk-test"},
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, backend)
}

func TestBuildBackendAWSSucceeds(t *testing.T) {
	backend, err := buildBackend(config.Config{
		Transcribe: config.TranscribeConfig{Backend: "aws", Region: "us-east-1"},
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, backend)
}
