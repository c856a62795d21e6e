// Package config loads the tool configuration from a YAML file, filling
// unset fields with defaults and clamping out-of-range values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the full tool configuration.
type Config struct {
	// DatabasePath is the SQLite file holding parsed logs.
	DatabasePath string `yaml:"database_path"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	// BatchSize is the record flush threshold during ingestion.
	BatchSize int `yaml:"batch_size"`
	// StoreRawLines keeps every classified log line in the database.
	StoreRawLines bool `yaml:"store_raw_lines"`

	// ChunkGapLines is the largest same-category line gap merged into one
	// timeline chunk.
	ChunkGapLines int `yaml:"chunk_gap_lines"`
	// TimestampCoverage is the fraction of events that must carry
	// timestamps before the timeline positions by wall clock.
	TimestampCoverage float64 `yaml:"timestamp_coverage"`

	// RefreshContextLines is how many lines after a refresh header are
	// scanned for its breakdown.
	RefreshContextLines int `yaml:"refresh_context_lines"`
	// WorkerIdleGapSeconds splits worker phases on wall-clock idle gaps.
	WorkerIdleGapSeconds int `yaml:"worker_idle_gap_seconds"`
	// WorkerLineGap splits worker phases by line distance when no
	// timestamps are available.
	WorkerLineGap int `yaml:"worker_line_gap"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		DatabasePath:         filepath.Join(home, ".editortrace", "trace.db"),
		LogLevel:             "info",
		BatchSize:            500,
		StoreRawLines:        true,
		ChunkGapLines:        50,
		TimestampCoverage:    0.5,
		RefreshContextLines:  10,
		WorkerIdleGapSeconds: 5,
		WorkerLineGap:        120,
	}
}

// Load reads a YAML config from path on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.normalize()
	return cfg, nil
}

// normalize clamps nonsensical values back to their defaults rather
// than failing.
func (c *Config) normalize() {
	d := Default()
	if c.DatabasePath == "" {
		c.DatabasePath = d.DatabasePath
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		c.LogLevel = d.LogLevel
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.ChunkGapLines <= 0 {
		c.ChunkGapLines = d.ChunkGapLines
	}
	if c.TimestampCoverage <= 0 || c.TimestampCoverage > 1 {
		c.TimestampCoverage = d.TimestampCoverage
	}
	if c.RefreshContextLines <= 0 {
		c.RefreshContextLines = d.RefreshContextLines
	}
	if c.WorkerIdleGapSeconds <= 0 {
		c.WorkerIdleGapSeconds = d.WorkerIdleGapSeconds
	}
	if c.WorkerLineGap <= 0 {
		c.WorkerLineGap = d.WorkerLineGap
	}
}
