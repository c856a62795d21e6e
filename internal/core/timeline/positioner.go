package timeline

import (
	"time"

	"editortrace/internal/core/model"
)

// Mode selects how records are placed on the time axis.
type Mode string

const (
	// ModeTimestamp positions records by wall-clock offset from the header
	// start time, interpolating by line number when a record has none.
	ModeTimestamp Mode = "timestamp"
	// ModeSequential positions records by a running cumulative-duration
	// counter in line order.
	ModeSequential Mode = "sequential"
)

// Point is the temporal evidence one record contributes.
type Point struct {
	LineNumber int
	Timestamp  *time.Time
	DurationMs float64
}

// Positioner converts a record's evidence into milliseconds from origin.
// In sequential mode Position advances internal state, so points must be
// fed in line order.
type Positioner struct {
	mode       Mode
	origin     time.Time
	extentMs   float64
	totalLines int
	cursorMs   float64
}

// NewPositioner picks the mode: timestamp mode requires a header start/end
// pair plus timestamp coverage of at least the given fraction of points.
// With no timestamp evidence anywhere, a synthetic one-hour window ending
// now keeps downstream arithmetic non-degenerate.
func NewPositioner(header model.HeaderInfo, points []Point, coverage float64) *Positioner {
	p := &Positioner{totalLines: header.TotalLines}

	withTS := 0
	for _, pt := range points {
		if pt.Timestamp != nil {
			withTS++
		}
	}

	if header.StartTime != nil && header.EndTime != nil &&
		len(points) > 0 && float64(withTS) >= coverage*float64(len(points)) {
		p.mode = ModeTimestamp
		p.origin = *header.StartTime
		p.extentMs = float64(header.EndTime.Sub(*header.StartTime)) / float64(time.Millisecond)
		return p
	}

	p.mode = ModeSequential
	if header.StartTime == nil && header.EndTime == nil && withTS == 0 {
		p.origin = time.Now().Add(-time.Hour)
		p.extentMs = float64(time.Hour / time.Millisecond)
	}
	return p
}

// Mode reports the selected mode.
func (p *Positioner) Mode() Mode {
	return p.mode
}

// ExtentMs is the known axis extent; zero in sequential mode until the
// pass completes (the assembler derives the total itself).
func (p *Positioner) ExtentMs() float64 {
	return p.extentMs
}

// Position places one point on the axis.
func (p *Positioner) Position(pt Point) float64 {
	if p.mode == ModeTimestamp {
		if pt.Timestamp != nil {
			return float64(pt.Timestamp.Sub(p.origin)) / float64(time.Millisecond)
		}
		if p.totalLines > 0 {
			return float64(pt.LineNumber) / float64(p.totalLines) * p.extentMs
		}
		return 0
	}

	pos := p.cursorMs
	p.cursorMs += pt.DurationMs
	return pos
}
