// Package timeline reconstructs the ordered event timeline from stored
// records: positioning (timestamp or sequential mode), import chunking,
// and final assembly with derived totals. Assembly is a pure function of
// the stored records and may run concurrently with ingestion.
package timeline

import (
	"time"

	"editortrace/internal/core/model"
)

// Phase tags a segment's kind.
type Phase string

const (
	PhaseAssetImports Phase = "asset-imports"
	PhaseOperation    Phase = "operation"
	PhaseCacheBlock   Phase = "cache-block"
)

// Segment is one drawable span on the assembled timeline. StartTimeMs is
// relative to the timeline origin.
type Segment struct {
	Phase       Phase   `json:"phase"`
	StartTimeMs float64 `json:"start_time_ms"`
	DurationMs  float64 `json:"duration_ms"`
	Category    string  `json:"category,omitempty"`
	LineNumber  int     `json:"line_number"`
	Description string  `json:"description"`
	EventCount  int     `json:"event_count,omitempty"`
}

// Summary carries the derived totals exposed alongside the segments. Actual
// import time is the plain sum of import durations and may diverge from the
// summed chunk widths; both are exposed on purpose.
type Summary struct {
	ImportCount        int                `json:"import_count"`
	ActualImportTimeMs float64            `json:"actual_import_time_ms"`
	OperationCount     int                `json:"operation_count"`
	OperationTimeMs    float64            `json:"operation_time_ms"`
	CacheBlockCount    int                `json:"cache_block_count"`
	CacheTimeMs        float64            `json:"cache_time_ms"`
	CategoryTimeMs     map[string]float64 `json:"category_time_ms,omitempty"`
}

// Timeline is the assembled result.
type Timeline struct {
	Mode        Mode      `json:"mode"`
	TotalTimeMs float64   `json:"total_time_ms"`
	Segments    []Segment `json:"segments"`
	Summary     Summary   `json:"summary"`
}

// Chunk is a run of adjacent same-category import events grouped for
// display. DurationMs guards against timestamp gaps under-reporting work:
// it is the larger of the wall-clock span and the summed member durations.
// ActualTimeMs is always the plain sum.
type Chunk struct {
	Category     string
	StartLine    int
	EndLine      int
	EventCount   int
	ActualTimeMs float64
	DurationMs   float64
	StartTime    *time.Time
	EndTime      *time.Time
	FirstAsset   string
}

// Source is the read-only record view the assembler consumes. Worker-tagged
// imports are excluded from the merged stream and reported via phases.
type Source interface {
	Header() (model.HeaderInfo, error)
	MainThreadImports() ([]model.AssetImportRecord, error)
	AllImports() ([]model.AssetImportRecord, error)
	Operations() ([]model.OperationRecord, error)
	CacheBlocks() ([]model.CacheServerBlock, error)
}
