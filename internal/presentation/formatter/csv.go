package formatter

import (
	"encoding/csv"
	"fmt"
	"io"

	"editortrace/internal/core/timeline"
)

// CSVFormatter emits timeline segments as CSV for spreadsheet analysis.
type CSVFormatter struct {
	w io.Writer
}

// NewCSVFormatter creates a CSV formatter writing to w.
func NewCSVFormatter(w io.Writer) *CSVFormatter {
	return &CSVFormatter{w: w}
}

// Format writes a header row followed by one row per segment.
func (f *CSVFormatter) Format(tl *timeline.Timeline) error {
	w := csv.NewWriter(f.w)
	defer w.Flush()

	headers := []string{
		"start_ms", "duration_ms", "phase", "category", "events", "line", "description",
	}
	if err := w.Write(headers); err != nil {
		return err
	}

	for _, seg := range tl.Segments {
		record := []string{
			fmt.Sprintf("%.3f", seg.StartTimeMs),
			fmt.Sprintf("%.3f", seg.DurationMs),
			string(seg.Phase),
			seg.Category,
			fmt.Sprintf("%d", seg.EventCount),
			fmt.Sprintf("%d", seg.LineNumber),
			seg.Description,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	if err := w.Write([]string{
		"total", fmt.Sprintf("%.3f", tl.TotalTimeMs), string(tl.Mode), "", "", "", "",
	}); err != nil {
		return err
	}
	return w.Error()
}
