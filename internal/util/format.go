package util

import (
	"fmt"
)

// FormatNumber renders n with comma thousand separators.
func FormatNumber(n int) string {
	s := fmt.Sprintf("%d", n)
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	if len(s) > 3 {
		var out []byte
		for i, digit := range []byte(s) {
			if i > 0 && (len(s)-i)%3 == 0 {
				out = append(out, ',')
			}
			out = append(out, digit)
		}
		s = string(out)
	}
	if neg {
		return "-" + s
	}
	return s
}

// FormatDurationMs renders a millisecond duration in the most readable
// unit: sub-second values in ms, sub-minute in seconds, larger values as
// minutes and seconds.
func FormatDurationMs(ms float64) string {
	switch {
	case ms < 0:
		return "0ms"
	case ms < 1000:
		if ms == float64(int(ms)) {
			return fmt.Sprintf("%dms", int(ms))
		}
		return fmt.Sprintf("%.1fms", ms)
	case ms < 60000:
		return fmt.Sprintf("%.1fs", ms/1000)
	default:
		total := int(ms / 1000)
		return fmt.Sprintf("%dm%02ds", total/60, total%60)
	}
}
