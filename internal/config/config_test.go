package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotEmpty(t, cfg.DatabasePath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 500, cfg.BatchSize)
	assert.Equal(t, 50, cfg.ChunkGapLines)
	assert.Equal(t, 0.5, cfg.TimestampCoverage)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_path: /var/lib/editortrace/trace.db
log_level: debug
batch_size: 100
chunk_gap_lines: 25
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/editortrace/trace.db", cfg.DatabasePath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 25, cfg.ChunkGapLines)
	// Untouched fields keep their defaults.
	assert.Equal(t, 0.5, cfg.TimestampCoverage)
	assert.Equal(t, 120, cfg.WorkerLineGap)
}

func TestLoadClampsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: verbose
batch_size: -5
timestamp_coverage: 3.0
worker_idle_gap_seconds: 0
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 500, cfg.BatchSize)
	assert.Equal(t, 0.5, cfg.TimestampCoverage)
	assert.Equal(t, 5, cfg.WorkerIdleGapSeconds)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch_size: [not a number"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
