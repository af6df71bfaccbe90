package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupWritesRotatingFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "marketd.log")
	logger, closer := SetupWithOptions(Options{Service: "marketd", Env: "test", File: path, MaxSizeMB: 1})
	logger.Info("market operation", "op", "fill_order", "outcome", "ok")
	require.NoError(t, closer.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(raw))
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	require.Equal(t, "marketd", entry["service"])
	require.Equal(t, "test", entry["env"])
	require.Equal(t, "INFO", entry["severity"])
	require.Equal(t, "market operation", entry["message"])
	require.Equal(t, "fill_order", entry["op"])
	require.Contains(t, entry, "timestamp")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	require.Equal(t, slog.LevelWarn, ParseLevel(" WARN "))
	require.Equal(t, slog.LevelInfo, ParseLevel(""))
	require.Equal(t, slog.LevelInfo, ParseLevel("loud"))
}

func TestMaskField(t *testing.T) {
	require.Equal(t, "fill_order", MaskField("op", "fill_order").Value.String())
	require.Equal(t, RedactedValue, MaskField("dsn", "postgres://x").Value.String())
	require.Equal(t, "", MaskField("dsn", "").Value.String())
	require.Equal(t, RedactedValue, MaskValue("secret"))
}

func TestMaskDSN(t *testing.T) {
	masked := MaskDSN("postgres://market:hunter2@db:5432/history?sslmode=disable")
	require.NotContains(t, masked, "hunter2")
	require.Contains(t, masked, "db:5432/history")

	kv := MaskDSN("host=db user=market password=hunter2 dbname=history")
	require.Equal(t, "host=db user=market password="+RedactedValue+" dbname=history", kv)

	require.Equal(t, "file::memory:?cache=shared", MaskDSN("file::memory:?cache=shared"))
	require.Equal(t, "", MaskDSN(" "))
}
