package formatter

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"editortrace/internal/core/timeline"
	"editortrace/internal/util"
)

// TableFormatter renders a timeline as a bordered terminal table.
type TableFormatter struct {
	w        io.Writer
	headers  []string
	maxWidth int
}

// NewTableFormatter creates a table formatter writing to w. maxWidth
// caps the total table width; pass 0 to detect the terminal width.
func NewTableFormatter(w io.Writer, maxWidth int) *TableFormatter {
	if maxWidth <= 0 {
		maxWidth = 120
		if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 40 {
				maxWidth = cols
			}
		}
	}
	return &TableFormatter{
		w:        w,
		headers:  []string{"Start", "Duration", "Phase", "Category", "Events", "Line", "Description"},
		maxWidth: maxWidth,
	}
}

// Format prints the timeline segments followed by a totals row.
func (f *TableFormatter) Format(tl *timeline.Timeline) error {
	rows := make([][]string, 0, len(tl.Segments))
	for _, seg := range tl.Segments {
		rows = append(rows, []string{
			util.FormatDurationMs(seg.StartTimeMs),
			util.FormatDurationMs(seg.DurationMs),
			string(seg.Phase),
			seg.Category,
			util.FormatNumber(seg.EventCount),
			util.FormatNumber(seg.LineNumber),
			seg.Description,
		})
	}

	widths := f.columnWidths(rows)

	f.printBorder(widths, "top")
	f.printRow(f.headers, widths)
	f.printBorder(widths, "middle")
	for _, row := range rows {
		f.printRow(row, widths)
	}
	f.printBorder(widths, "middle")
	f.printRow([]string{
		"Total", util.FormatDurationMs(tl.TotalTimeMs), string(tl.Mode), "",
		util.FormatNumber(tl.Summary.ImportCount + tl.Summary.OperationCount), "", "",
	}, widths)
	f.printBorder(widths, "bottom")
	return nil
}

func (f *TableFormatter) columnWidths(rows [][]string) []int {
	widths := make([]int, len(f.headers))
	for i, h := range f.headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, v := range row {
			if w := runewidth.StringWidth(v); w > widths[i] {
				widths[i] = w
			}
		}
	}

	// Shrink the description column first when the table overflows the
	// terminal. Borders and padding cost 3 characters per column plus one.
	total := 1
	for _, w := range widths {
		total += w + 3
	}
	if over := total - f.maxWidth; over > 0 {
		last := len(widths) - 1
		widths[last] -= over
		if widths[last] < 10 {
			widths[last] = 10
		}
	}
	return widths
}

func (f *TableFormatter) printBorder(widths []int, kind string) {
	var left, middle, right string
	switch kind {
	case "top":
		left, middle, right = "┌", "┬", "┐"
	case "middle":
		left, middle, right = "├", "┼", "┤"
	case "bottom":
		left, middle, right = "└", "┴", "┘"
	}

	fmt.Fprint(f.w, left)
	for i, width := range widths {
		fmt.Fprint(f.w, strings.Repeat("─", width+2))
		if i < len(widths)-1 {
			fmt.Fprint(f.w, middle)
		}
	}
	fmt.Fprintln(f.w, right)
}

func (f *TableFormatter) printRow(values []string, widths []int) {
	fmt.Fprint(f.w, "│")
	for i, value := range values {
		value = runewidth.Truncate(value, widths[i], "…")
		pad := widths[i] - runewidth.StringWidth(value)
		if i <= 1 || i == 4 || i == 5 {
			// Numeric columns are right-aligned.
			fmt.Fprintf(f.w, " %s%s │", strings.Repeat(" ", pad), value)
		} else {
			fmt.Fprintf(f.w, " %s%s │", value, strings.Repeat(" ", pad))
		}
	}
	fmt.Fprintln(f.w)
}
