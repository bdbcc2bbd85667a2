package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCreatesWritableJSONLogFileAtOutputDir(t *testing.T) {
	dir := t.TempDir()

	runtime, err := New(dir, "info")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "dcr-transcribe.log"), runtime.Path)

	runtime.Logger.Info("unit-test-log", "component", "logging")
	require.NoError(t, runtime.Close())

	contents, err := os.ReadFile(runtime.Path)
	require.NoError(t, err)
	require.Contains(t, string(contents), `"msg":"unit-test-log"`)
	require.Contains(t, string(contents), `"component":"logging"`)
}

func TestNewHonorsLogLevel(t *testing.T) {
	dir := t.TempDir()

	runtime, err := New(dir, "error")
	require.NoError(t, err)
	defer runtime.Close()

	runtime.Logger.Info("should be filtered")
	runtime.Logger.Error("should appear")

	contents, err := os.ReadFile(runtime.Path)
	require.NoError(t, err)
	require.NotContains(t, string(contents), "should be filtered")
	require.Contains(t, string(contents), "should appear")
}

func TestCloseIsSafeWithoutOpenFile(t *testing.T) {
	var r Runtime
	require.NoError(t, r.Close())
}
