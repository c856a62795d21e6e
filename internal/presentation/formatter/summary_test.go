package formatter

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"editortrace/internal/core/model"
	"editortrace/internal/data/store"
)

func TestSummaryFormat(t *testing.T) {
	start := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	end := start.Add(5 * time.Minute)

	var buf bytes.Buffer
	err := NewSummaryFormatter(&buf).Format(SummaryData{
		LogFile: "/home/dev/project/Editor.log",
		Header: model.HeaderInfo{
			EditorVersion: "2022.3.10f1",
			Platform:      "Linux",
			Architecture:  "x86_64",
			ProjectName:   "SampleGame",
			StartTime:     &start,
			EndTime:       &end,
			TotalLines:    15234,
		},
		ParseTimeMs: 812,
		Counts: store.Counts{
			Imports:        1432,
			ImportTimeMs:   95000,
			MaxImportMs:    4200,
			Operations:     12,
			Refreshes:      3,
			RefreshSeconds: 41.2,
			ReloadSteps:    87,
			ReloadTimeMs:   2100,
			WorkerPhases:   5,
			CacheBlocks:    1,
			Compilations:   14,
		},
		Categories: []store.CategoryTotal{
			{Category: "Textures", Count: 820, TotalMs: 61000},
			{Category: "Scripts", Count: 612, TotalMs: 34000},
		},
	})
	require.NoError(t, err)
	out := buf.String()

	assert.Contains(t, out, "Editor Log Analysis Summary")
	assert.Contains(t, out, "/home/dev/project/Editor.log")
	assert.Contains(t, out, "2022.3.10f1 (Linux x86_64)")
	assert.Contains(t, out, "SampleGame")
	assert.Contains(t, out, "2025-03-14 09:00:00 to 2025-03-14 09:05:00")
	assert.Contains(t, out, "Total Lines: 15,234 (parsed in 812ms)")
	assert.Contains(t, out, "Asset Imports: 1,432 (total 1m35s, slowest 4.2s)")
	assert.Contains(t, out, "Textures")
	assert.Contains(t, out, "Pipeline Refreshes: 3 (total 41.2s)")
	assert.Contains(t, out, "Domain Reload Steps: 87 (total 2.1s)")
	assert.Contains(t, out, "Worker Phases: 5")
	assert.Contains(t, out, "Assemblies Compiled: 14")
}

func TestSummaryFormatMinimal(t *testing.T) {
	var buf bytes.Buffer
	err := NewSummaryFormatter(&buf).Format(SummaryData{
		LogFile: "/tmp/Editor.log",
		Header:  model.HeaderInfo{TotalLines: 3},
	})
	require.NoError(t, err)
	out := buf.String()

	assert.Contains(t, out, "Total Lines: 3")
	assert.Contains(t, out, "Asset Imports: 0")
	assert.NotContains(t, out, "Pipeline Refreshes")
	assert.NotContains(t, out, "Editor Version")
}
