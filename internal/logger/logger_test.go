package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitDisabledDiscards(t *testing.T) {
	closeLog, err := Init(Options{})
	require.NoError(t, err)
	defer closeLog()

	require.False(t, L.Enabled(t.Context(), slog.LevelError))
}

func TestInitWriterText(t *testing.T) {
	var out bytes.Buffer
	closeLog, err := Init(Options{Enabled: true, Output: &out, Level: slog.LevelDebug})
	require.NoError(t, err)
	defer func() {
		require.NoError(t, closeLog())
		_, _ = Init(Options{})
	}()

	Debug("split", "size", 64)
	require.Contains(t, out.String(), "msg=split")
	require.Contains(t, out.String(), "size=64")
}

func TestInitFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.log")
	closeLog, err := Init(Options{Enabled: true, Path: path, JSON: true})
	require.NoError(t, err)

	Info("alloc failed", "need", 128)
	Debug("hidden")
	require.NoError(t, closeLog())
	_, _ = Init(Options{})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"alloc failed"`)
	require.Contains(t, string(data), `"need":128`)
	require.NotContains(t, string(data), "hidden")
}
