package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogger_RoutesLevelsToFiles(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(dir)
	require.NoError(t, err)
	defer l.Close()

	l.Info("stored %s", "detection_a.jpg")
	l.Warning("dropped degenerate box")
	l.Error("write failed: %v", "disk full")

	info, err := os.ReadFile(filepath.Join(dir, InfoFile))
	require.NoError(t, err)
	require.Contains(t, string(info), "stored detection_a.jpg")
	require.NotContains(t, string(info), "disk full")

	warning, err := os.ReadFile(filepath.Join(dir, WarningFile))
	require.NoError(t, err)
	require.Contains(t, string(warning), "dropped degenerate box")

	errLog, err := os.ReadFile(filepath.Join(dir, ErrorFile))
	require.NoError(t, err)
	require.Contains(t, string(errLog), "write failed: disk full")
}

func TestLogger_CleanLogs(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(dir)
	require.NoError(t, err)
	defer l.Close()

	l.Info("something")
	require.NoError(t, l.CleanLogs(InfoFile))

	info, err := os.ReadFile(filepath.Join(dir, InfoFile))
	require.NoError(t, err)
	require.Empty(t, info)

	require.Error(t, l.CleanLogs("../secrets"))
}

func TestNewDiscard(t *testing.T) {
	l := NewDiscard()
	l.Info("ignored")
	require.Empty(t, l.Dir())
	require.NoError(t, l.CleanLogs(InfoFile))
}
