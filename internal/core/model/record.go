package model

import "time"

// AssetImportRecord is one completed asset import. The parser is the only
// producer; records are immutable once emitted.
type AssetImportRecord struct {
	LineNumber    int        `json:"line_number"`
	AssetPath     string     `json:"asset_path"`
	AssetName     string     `json:"asset_name"`
	AssetType     string     `json:"asset_type"`
	AssetCategory string     `json:"asset_category"`
	GUID          string     `json:"guid"`
	ArtifactID    string     `json:"artifact_id,omitempty"`
	ImporterType  string     `json:"importer_type,omitempty"`
	ImportTimeMs  float64    `json:"import_time_ms"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	WorkerID      *int       `json:"worker_id,omitempty"`
}

// OperationRecord is a named sub-operation: a compiler pass, a background
// job, a build-tool invocation.
type OperationRecord struct {
	LineNumber  int        `json:"line_number"`
	ProcessType string     `json:"process_type"`
	ProcessName string     `json:"process_name"`
	DurationMs  float64    `json:"duration_ms"`
	MemoryMB    *int       `json:"memory_mb,omitempty"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
}

// PipelineRefreshRecord is one asset pipeline refresh cycle with its
// best-effort breakdown, extracted from a bounded window after the header.
type PipelineRefreshRecord struct {
	LineNumber       int      `json:"line_number"`
	RefreshID        string   `json:"refresh_id"`
	TotalTimeSeconds float64  `json:"total_time_seconds"`
	InitiatedBy      string   `json:"initiated_by"`
	ImportsTotal     *int     `json:"imports_total,omitempty"`
	ImportsActual    *int     `json:"imports_actual,omitempty"`
	AssetDBProcessMs *float64 `json:"assetdb_process_ms,omitempty"`
	CallbacksMs      *float64 `json:"callbacks_ms,omitempty"`
	DomainReloads    *int     `json:"domain_reloads,omitempty"`
	DomainReloadMs   *float64 `json:"domain_reload_ms,omitempty"`
	CompileMs        *float64 `json:"compile_ms,omitempty"`
	OtherMs          *float64 `json:"other_ms,omitempty"`
}

// DomainReloadStep is one node of a domain reload profiling tree. ParentID
// refers to the StepID of the enclosing step, nil at depth zero.
type DomainReloadStep struct {
	StepID      int64  `json:"step_id"`
	LineNumber  int    `json:"line_number"`
	ParentID    *int64 `json:"parent_id,omitempty"`
	StepName    string `json:"step_name"`
	TimeMs      float64 `json:"time_ms"`
	IndentLevel int    `json:"indent_level"`
}

// WorkerPhase is a coalesced burst of import activity on one worker thread.
type WorkerPhase struct {
	WorkerID    int        `json:"worker_id"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	ImportCount int        `json:"import_count"`
	StartLine   int        `json:"start_line"`
	EndLine     int        `json:"end_line"`
}

// CacheServerBlock is a span of remote-cache download activity.
type CacheServerBlock struct {
	LineNumber      int        `json:"line_number"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	AssetsRequested int        `json:"assets_requested"`
	AssetsDownloaded int       `json:"assets_downloaded"`
	DurationSeconds float64    `json:"duration_seconds"`
}

// TelemetryRecord holds one embedded telemetry payload, already validated
// as JSON. Payload keeps the raw object text.
type TelemetryRecord struct {
	LineNumber int    `json:"line_number"`
	EventType  string `json:"event_type"`
	Payload    string `json:"payload"`
}

// CompilationRecord is one assembly compilation announcement.
type CompilationRecord struct {
	LineNumber int    `json:"line_number"`
	Assembly   string `json:"assembly"`
	Defines    int    `json:"defines"`
	References int    `json:"references"`
}

// LogLine is a classified raw line kept for the text viewer.
type LogLine struct {
	LineNumber  int        `json:"line_number"`
	Content     string     `json:"content"`
	LineType    string     `json:"line_type"`
	IndentLevel int        `json:"indent_level"`
	IsError     bool       `json:"is_error"`
	IsWarning   bool       `json:"is_warning"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

// HeaderInfo carries metadata scanned from the head of the log plus the
// first/last embedded timestamps seen anywhere in the stream.
type HeaderInfo struct {
	EditorVersion string     `json:"editor_version,omitempty"`
	Platform      string     `json:"platform,omitempty"`
	Architecture  string     `json:"architecture,omitempty"`
	ProjectName   string     `json:"project_name,omitempty"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	TotalLines    int        `json:"total_lines"`
}

// Line classification labels stored with each LogLine.
const (
	LineTypeImport       = "import"
	LineTypePipeline     = "pipeline"
	LineTypeDomainReload = "domain_reload"
	LineTypeTelemetry    = "telemetry"
	LineTypeSystem       = "system"
	LineTypeError        = "error"
	LineTypeWarning      = "warning"
	LineTypeNormal       = "normal"
)
