package formatter

import (
	"fmt"
	"io"
	"strings"

	"editortrace/internal/util"
)

// SummaryFormatter prints the post-ingestion report for one log.
type SummaryFormatter struct {
	w io.Writer
}

// NewSummaryFormatter creates a summary formatter writing to w.
func NewSummaryFormatter(w io.Writer) *SummaryFormatter {
	return &SummaryFormatter{w: w}
}

// Format writes the report.
func (f *SummaryFormatter) Format(data SummaryData) error {
	bar := strings.Repeat("=", 60)

	fmt.Fprintln(f.w, bar)
	fmt.Fprintln(f.w, "Editor Log Analysis Summary")
	fmt.Fprintln(f.w, bar)
	fmt.Fprintln(f.w)

	fmt.Fprintf(f.w, "Log File: %s\n", data.LogFile)
	h := data.Header
	if h.EditorVersion != "" {
		fmt.Fprintf(f.w, "Editor Version: %s", h.EditorVersion)
		if h.Platform != "" || h.Architecture != "" {
			fmt.Fprintf(f.w, " (%s)", strings.TrimSpace(h.Platform+" "+h.Architecture))
		}
		fmt.Fprintln(f.w)
	}
	if h.ProjectName != "" {
		fmt.Fprintf(f.w, "Project: %s\n", h.ProjectName)
	}
	if h.StartTime != nil && h.EndTime != nil {
		fmt.Fprintf(f.w, "Time Range: %s to %s\n",
			h.StartTime.Format("2006-01-02 15:04:05"),
			h.EndTime.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(f.w, "Total Lines: %s", util.FormatNumber(h.TotalLines))
	if data.ParseTimeMs > 0 {
		fmt.Fprintf(f.w, " (parsed in %s)", util.FormatDurationMs(data.ParseTimeMs))
	}
	fmt.Fprintln(f.w)
	fmt.Fprintln(f.w)

	c := data.Counts
	fmt.Fprintf(f.w, "Asset Imports: %s", util.FormatNumber(c.Imports))
	if c.Imports > 0 {
		fmt.Fprintf(f.w, " (total %s, slowest %s)",
			util.FormatDurationMs(c.ImportTimeMs), util.FormatDurationMs(c.MaxImportMs))
	}
	fmt.Fprintln(f.w)

	if len(data.Categories) > 0 {
		fmt.Fprintln(f.w, "By Category:")
		nameWidth := 0
		for _, cat := range data.Categories {
			if len(cat.Category) > nameWidth {
				nameWidth = len(cat.Category)
			}
		}
		for _, cat := range data.Categories {
			fmt.Fprintf(f.w, "  %-*s %6s  %s\n",
				nameWidth, cat.Category, util.FormatNumber(cat.Count), util.FormatDurationMs(cat.TotalMs))
		}
	}
	fmt.Fprintln(f.w)

	fmt.Fprintf(f.w, "Operations: %s\n", util.FormatNumber(c.Operations))
	if c.Refreshes > 0 {
		fmt.Fprintf(f.w, "Pipeline Refreshes: %s (total %.1fs)\n",
			util.FormatNumber(c.Refreshes), c.RefreshSeconds)
	}
	if c.ReloadSteps > 0 {
		fmt.Fprintf(f.w, "Domain Reload Steps: %s (total %s)\n",
			util.FormatNumber(c.ReloadSteps), util.FormatDurationMs(c.ReloadTimeMs))
	}
	if c.WorkerPhases > 0 {
		fmt.Fprintf(f.w, "Worker Phases: %s\n", util.FormatNumber(c.WorkerPhases))
	}
	if c.CacheBlocks > 0 {
		fmt.Fprintf(f.w, "Cache Server Blocks: %s\n", util.FormatNumber(c.CacheBlocks))
	}
	if c.Telemetry > 0 {
		fmt.Fprintf(f.w, "Telemetry Events: %s\n", util.FormatNumber(c.Telemetry))
	}
	if c.Compilations > 0 {
		fmt.Fprintf(f.w, "Assemblies Compiled: %s\n", util.FormatNumber(c.Compilations))
	}

	fmt.Fprintln(f.w)
	fmt.Fprintln(f.w, bar)
	return nil
}
