package timeline

import (
	"fmt"
	"sort"

	"editortrace/internal/core/model"
)

// Config holds the assembly heuristics. Both are tunable because their
// values shape every downstream report.
type Config struct {
	// ChunkGapLines is the largest same-category line gap that still
	// extends a chunk.
	ChunkGapLines int
	// TimestampCoverage is the fraction of events that must carry a
	// timestamp before timestamp mode is selected.
	TimestampCoverage float64
}

// DefaultConfig returns the assembly defaults.
func DefaultConfig() Config {
	return Config{ChunkGapLines: 50, TimestampCoverage: 0.5}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ChunkGapLines <= 0 {
		c.ChunkGapLines = d.ChunkGapLines
	}
	if c.TimestampCoverage <= 0 || c.TimestampCoverage > 1 {
		c.TimestampCoverage = d.TimestampCoverage
	}
	return c
}

// Build assembles the final ordered segment list plus derived totals from
// a record source. It never mutates the source and is safe to call
// concurrently with ingestion; the result is valid as of the snapshot the
// source queries observe.
func Build(src Source, cfg Config) (*Timeline, error) {
	cfg = cfg.withDefaults()

	header, err := src.Header()
	if err != nil {
		return nil, fmt.Errorf("load header: %w", err)
	}
	mainImports, err := src.MainThreadImports()
	if err != nil {
		return nil, fmt.Errorf("load imports: %w", err)
	}
	allImports, err := src.AllImports()
	if err != nil {
		return nil, fmt.Errorf("load all imports: %w", err)
	}
	ops, err := src.Operations()
	if err != nil {
		return nil, fmt.Errorf("load operations: %w", err)
	}
	blocks, err := src.CacheBlocks()
	if err != nil {
		return nil, fmt.Errorf("load cache blocks: %w", err)
	}

	merged := mergeEvents(mainImports, ops)
	points := make([]Point, 0, len(merged))
	for _, ev := range merged {
		points = append(points, eventPoint(ev))
	}
	pos := NewPositioner(header, points, cfg.TimestampCoverage)

	var segments []Segment
	for _, item := range buildSequence(merged, cfg.ChunkGapLines) {
		if item.chunk != nil {
			c := item.chunk
			start := pos.Position(Point{LineNumber: c.StartLine, Timestamp: c.StartTime, DurationMs: c.DurationMs})
			segments = append(segments, Segment{
				Phase:       PhaseAssetImports,
				StartTimeMs: start,
				DurationMs:  c.DurationMs,
				Category:    c.Category,
				LineNumber:  c.StartLine,
				Description: chunkDescription(c),
				EventCount:  c.EventCount,
			})
			continue
		}
		op := item.op
		ts := op.StartTime
		if ts == nil {
			ts = op.EndTime
		}
		start := pos.Position(Point{LineNumber: op.LineNumber, Timestamp: ts, DurationMs: op.DurationMs})
		segments = append(segments, Segment{
			Phase:       PhaseOperation,
			StartTimeMs: start,
			DurationMs:  op.DurationMs,
			LineNumber:  op.LineNumber,
			Description: fmt.Sprintf("%s: %s", op.ProcessType, op.ProcessName),
		})
	}

	for i := range blocks {
		b := &blocks[i]
		durationMs := b.DurationSeconds * 1000
		start := pos.Position(Point{LineNumber: b.LineNumber, Timestamp: b.StartTime, DurationMs: durationMs})
		segments = append(segments, Segment{
			Phase:       PhaseCacheBlock,
			StartTimeMs: start,
			DurationMs:  durationMs,
			LineNumber:  b.LineNumber,
			Description: fmt.Sprintf("Cache server: %d of %d assets", b.AssetsDownloaded, b.AssetsRequested),
			EventCount:  b.AssetsDownloaded,
		})
	}

	sort.SliceStable(segments, func(i, j int) bool {
		if segments[i].StartTimeMs != segments[j].StartTimeMs {
			return segments[i].StartTimeMs < segments[j].StartTimeMs
		}
		return segments[i].LineNumber < segments[j].LineNumber
	})

	summary := buildSummary(allImports, ops, blocks)
	total := totalTime(pos, segments, summary, allImports, ops, blocks)

	return &Timeline{
		Mode:        pos.Mode(),
		TotalTimeMs: total,
		Segments:    segments,
		Summary:     summary,
	}, nil
}

func eventPoint(ev event) Point {
	if ev.imp != nil {
		ts := ev.imp.StartTime
		if ts == nil {
			ts = ev.imp.EndTime
		}
		return Point{LineNumber: ev.imp.LineNumber, Timestamp: ts, DurationMs: ev.imp.ImportTimeMs}
	}
	ts := ev.op.StartTime
	if ts == nil {
		ts = ev.op.EndTime
	}
	return Point{LineNumber: ev.op.LineNumber, Timestamp: ts, DurationMs: ev.op.DurationMs}
}

func chunkDescription(c *Chunk) string {
	if c.EventCount == 1 {
		return fmt.Sprintf("%s import: %s", c.Category, c.FirstAsset)
	}
	return fmt.Sprintf("%s imports (%d assets, lines %d-%d)", c.Category, c.EventCount, c.StartLine, c.EndLine)
}

func buildSummary(imports []model.AssetImportRecord, ops []model.OperationRecord, blocks []model.CacheServerBlock) Summary {
	s := Summary{
		ImportCount:     len(imports),
		OperationCount:  len(ops),
		CacheBlockCount: len(blocks),
		CategoryTimeMs:  make(map[string]float64),
	}
	for _, imp := range imports {
		s.ActualImportTimeMs += imp.ImportTimeMs
		s.CategoryTimeMs[imp.AssetCategory] += imp.ImportTimeMs
	}
	for _, op := range ops {
		s.OperationTimeMs += op.DurationMs
	}
	for _, b := range blocks {
		s.CacheTimeMs += b.DurationSeconds * 1000
	}
	return s
}

// totalTime computes the timeline extent via the fallback ladder: the
// stored extent in timestamp mode; otherwise the larger of the last
// segment's end and the summed raw durations; and when both are zero but
// records exist, a line-span width floored at 1000.
func totalTime(pos *Positioner, segments []Segment, summary Summary,
	imports []model.AssetImportRecord, ops []model.OperationRecord, blocks []model.CacheServerBlock) float64 {

	var total float64
	if pos.Mode() == ModeTimestamp {
		total = pos.ExtentMs()
	} else {
		for _, seg := range segments {
			if end := seg.StartTimeMs + seg.DurationMs; end > total {
				total = end
			}
		}
		if sum := summary.ActualImportTimeMs + summary.OperationTimeMs + summary.CacheTimeMs; sum > total {
			total = sum
		}
	}
	if total > 0 {
		return total
	}

	minLine, maxLine, any := 0, 0, false
	observe := func(line int) {
		if !any || line < minLine {
			minLine = line
		}
		if !any || line > maxLine {
			maxLine = line
		}
		any = true
	}
	for _, imp := range imports {
		observe(imp.LineNumber)
	}
	for _, op := range ops {
		observe(op.LineNumber)
	}
	for _, b := range blocks {
		observe(b.LineNumber)
	}
	if !any {
		return 0
	}
	if span := float64(maxLine - minLine); span > 1000 {
		return span
	}
	return 1000
}
