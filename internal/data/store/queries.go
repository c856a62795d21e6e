package store

import (
	"context"
	"database/sql"
	"fmt"

	"editortrace/internal/core/model"
)

// LogView is a read-only view over one log's records. It satisfies the
// assembler's Source interface.
type LogView struct {
	store *Store
	logID int64
	ctx   context.Context
}

// View returns a read-only view of one log.
func (s *Store) View(ctx context.Context, logID int64) *LogView {
	return &LogView{store: s, logID: logID, ctx: ctx}
}

// LogID returns the viewed log's id.
func (v *LogView) LogID() int64 {
	return v.logID
}

// Header loads the stored header metadata.
func (v *LogView) Header() (model.HeaderInfo, error) {
	row := v.store.db.QueryRowContext(v.ctx, `
		SELECT editor_version, platform, architecture, project_name, start_ts, end_ts, total_lines
		FROM log_metadata WHERE id = ?`, v.logID)

	var h model.HeaderInfo
	var version, platform, arch, project sql.NullString
	var start, end sql.NullInt64
	if err := row.Scan(&version, &platform, &arch, &project, &start, &end, &h.TotalLines); err != nil {
		return model.HeaderInfo{}, fmt.Errorf("query header for log %d: %w", v.logID, err)
	}
	h.EditorVersion = version.String
	h.Platform = platform.String
	h.Architecture = arch.String
	h.ProjectName = project.String
	h.StartTime = millisTime(start)
	h.EndTime = millisTime(end)
	return h, nil
}

const importColumns = `line_number, asset_path, asset_name, asset_type, asset_category,
	guid, artifact_id, importer_type, import_time_ms, start_ts, end_ts, worker_id`

func (v *LogView) queryImports(where string, args ...any) ([]model.AssetImportRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM asset_imports WHERE log_id = ? %s", importColumns, where)
	rows, err := v.store.db.QueryContext(v.ctx, query, append([]any{v.logID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("query imports: %w", err)
	}
	defer rows.Close()

	var recs []model.AssetImportRecord
	for rows.Next() {
		var r model.AssetImportRecord
		var guid, artifact, importer sql.NullString
		var start, end, worker sql.NullInt64
		if err := rows.Scan(&r.LineNumber, &r.AssetPath, &r.AssetName, &r.AssetType, &r.AssetCategory,
			&guid, &artifact, &importer, &r.ImportTimeMs, &start, &end, &worker); err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		r.GUID = guid.String
		r.ArtifactID = artifact.String
		r.ImporterType = importer.String
		r.StartTime = millisTime(start)
		r.EndTime = millisTime(end)
		if worker.Valid {
			id := int(worker.Int64)
			r.WorkerID = &id
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// MainThreadImports returns non-worker imports in line order.
func (v *LogView) MainThreadImports() ([]model.AssetImportRecord, error) {
	return v.queryImports("AND worker_id IS NULL ORDER BY line_number")
}

// AllImports returns every import in line order.
func (v *LogView) AllImports() ([]model.AssetImportRecord, error) {
	return v.queryImports("ORDER BY line_number")
}

// ImportsByLineRange returns imports within [from, to] in line order.
func (v *LogView) ImportsByLineRange(from, to int) ([]model.AssetImportRecord, error) {
	return v.queryImports("AND line_number BETWEEN ? AND ? ORDER BY line_number", from, to)
}

// ImportsByCategory returns one category's imports, slowest first.
func (v *LogView) ImportsByCategory(category string) ([]model.AssetImportRecord, error) {
	return v.queryImports("AND asset_category = ? ORDER BY import_time_ms DESC, line_number", category)
}

// SlowestImports returns the n slowest imports.
func (v *LogView) SlowestImports(n int) ([]model.AssetImportRecord, error) {
	return v.queryImports("ORDER BY import_time_ms DESC, line_number LIMIT ?", n)
}

// Operations returns all operations in line order.
func (v *LogView) Operations() ([]model.OperationRecord, error) {
	return v.queryOperations("ORDER BY line_number")
}

// OperationsByType returns one process type's operations, slowest first.
func (v *LogView) OperationsByType(processType string) ([]model.OperationRecord, error) {
	return v.queryOperations("AND process_type = ? ORDER BY duration_ms DESC, line_number", processType)
}

func (v *LogView) queryOperations(where string, args ...any) ([]model.OperationRecord, error) {
	query := `SELECT line_number, process_type, process_name, duration_ms, memory_mb, start_ts, end_ts
		FROM operations WHERE log_id = ? ` + where
	rows, err := v.store.db.QueryContext(v.ctx, query, append([]any{v.logID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	var recs []model.OperationRecord
	for rows.Next() {
		var r model.OperationRecord
		var name sql.NullString
		var mem, start, end sql.NullInt64
		if err := rows.Scan(&r.LineNumber, &r.ProcessType, &name, &r.DurationMs, &mem, &start, &end); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		r.ProcessName = name.String
		if mem.Valid {
			m := int(mem.Int64)
			r.MemoryMB = &m
		}
		r.StartTime = millisTime(start)
		r.EndTime = millisTime(end)
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// Refreshes returns all pipeline refreshes in line order.
func (v *LogView) Refreshes() ([]model.PipelineRefreshRecord, error) {
	rows, err := v.store.db.QueryContext(v.ctx, `
		SELECT line_number, refresh_id, total_time_seconds, initiated_by,
		       imports_total, imports_actual, assetdb_process_ms, callbacks_ms,
		       domain_reloads, domain_reload_ms, compile_ms, other_ms
		FROM pipeline_refreshes WHERE log_id = ? ORDER BY line_number`, v.logID)
	if err != nil {
		return nil, fmt.Errorf("query refreshes: %w", err)
	}
	defer rows.Close()

	var recs []model.PipelineRefreshRecord
	for rows.Next() {
		var r model.PipelineRefreshRecord
		var refreshID, initiatedBy sql.NullString
		var importsTotal, importsActual, reloads sql.NullInt64
		var process, callbacks, reloadMs, compileMs, otherMs sql.NullFloat64
		if err := rows.Scan(&r.LineNumber, &refreshID, &r.TotalTimeSeconds, &initiatedBy,
			&importsTotal, &importsActual, &process, &callbacks,
			&reloads, &reloadMs, &compileMs, &otherMs); err != nil {
			return nil, fmt.Errorf("scan refresh: %w", err)
		}
		r.RefreshID = refreshID.String
		r.InitiatedBy = initiatedBy.String
		r.ImportsTotal = nullInt(importsTotal)
		r.ImportsActual = nullInt(importsActual)
		r.AssetDBProcessMs = nullFloat(process)
		r.CallbacksMs = nullFloat(callbacks)
		r.DomainReloads = nullInt(reloads)
		r.DomainReloadMs = nullFloat(reloadMs)
		r.CompileMs = nullFloat(compileMs)
		r.OtherMs = nullFloat(otherMs)
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// ReloadSteps returns all domain reload steps in emission order.
func (v *LogView) ReloadSteps() ([]model.DomainReloadStep, error) {
	rows, err := v.store.db.QueryContext(v.ctx, `
		SELECT step_id, line_number, parent_id, step_name, time_ms, indent_level
		FROM domain_reload_steps WHERE log_id = ? ORDER BY step_id`, v.logID)
	if err != nil {
		return nil, fmt.Errorf("query reload steps: %w", err)
	}
	defer rows.Close()

	var recs []model.DomainReloadStep
	for rows.Next() {
		var r model.DomainReloadStep
		var parent sql.NullInt64
		if err := rows.Scan(&r.StepID, &r.LineNumber, &parent, &r.StepName, &r.TimeMs, &r.IndentLevel); err != nil {
			return nil, fmt.Errorf("scan reload step: %w", err)
		}
		if parent.Valid {
			p := parent.Int64
			r.ParentID = &p
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// WorkerPhases returns all coalesced worker phases ordered by worker then
// start timestamp.
func (v *LogView) WorkerPhases() ([]model.WorkerPhase, error) {
	rows, err := v.store.db.QueryContext(v.ctx, `
		SELECT worker_id, start_ts, end_ts, import_count, start_line, end_line
		FROM worker_phases WHERE log_id = ? ORDER BY worker_id, start_ts, start_line`, v.logID)
	if err != nil {
		return nil, fmt.Errorf("query worker phases: %w", err)
	}
	defer rows.Close()

	var recs []model.WorkerPhase
	for rows.Next() {
		var r model.WorkerPhase
		var start, end sql.NullInt64
		if err := rows.Scan(&r.WorkerID, &start, &end, &r.ImportCount, &r.StartLine, &r.EndLine); err != nil {
			return nil, fmt.Errorf("scan worker phase: %w", err)
		}
		r.StartTime = millisTime(start)
		r.EndTime = millisTime(end)
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// CacheBlocks returns all cache-server blocks in line order.
func (v *LogView) CacheBlocks() ([]model.CacheServerBlock, error) {
	rows, err := v.store.db.QueryContext(v.ctx, `
		SELECT line_number, start_ts, end_ts, assets_requested, assets_downloaded, duration_seconds
		FROM cache_server_blocks WHERE log_id = ? ORDER BY line_number`, v.logID)
	if err != nil {
		return nil, fmt.Errorf("query cache blocks: %w", err)
	}
	defer rows.Close()

	var recs []model.CacheServerBlock
	for rows.Next() {
		var r model.CacheServerBlock
		var start, end sql.NullInt64
		if err := rows.Scan(&r.LineNumber, &start, &end, &r.AssetsRequested, &r.AssetsDownloaded, &r.DurationSeconds); err != nil {
			return nil, fmt.Errorf("scan cache block: %w", err)
		}
		r.StartTime = millisTime(start)
		r.EndTime = millisTime(end)
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// Lines returns the classified raw lines within [from, to].
func (v *LogView) Lines(from, to int) ([]model.LogLine, error) {
	rows, err := v.store.db.QueryContext(v.ctx, `
		SELECT line_number, content, line_type, indent_level, is_error, is_warning, ts
		FROM log_lines WHERE log_id = ? AND line_number BETWEEN ? AND ? ORDER BY line_number`,
		v.logID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query lines: %w", err)
	}
	defer rows.Close()

	var recs []model.LogLine
	for rows.Next() {
		var r model.LogLine
		var lineType sql.NullString
		var ts sql.NullInt64
		if err := rows.Scan(&r.LineNumber, &r.Content, &lineType, &r.IndentLevel, &r.IsError, &r.IsWarning, &ts); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		r.LineType = lineType.String
		r.Timestamp = millisTime(ts)
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// CategoryTotal is one row of the per-category import rollup.
type CategoryTotal struct {
	Category string
	Count    int
	TotalMs  float64
}

// CategoryTotals returns import counts and summed durations per category,
// largest total first.
func (v *LogView) CategoryTotals() ([]CategoryTotal, error) {
	rows, err := v.store.db.QueryContext(v.ctx, `
		SELECT asset_category, COUNT(*), SUM(import_time_ms)
		FROM asset_imports WHERE log_id = ?
		GROUP BY asset_category ORDER BY SUM(import_time_ms) DESC`, v.logID)
	if err != nil {
		return nil, fmt.Errorf("query category totals: %w", err)
	}
	defer rows.Close()

	var totals []CategoryTotal
	for rows.Next() {
		var t CategoryTotal
		if err := rows.Scan(&t.Category, &t.Count, &t.TotalMs); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// Counts is the per-log record census used by the summary report.
type Counts struct {
	Imports        int
	ImportTimeMs   float64
	MaxImportMs    float64
	Operations     int
	Refreshes      int
	RefreshSeconds float64
	ReloadSteps    int
	ReloadTimeMs   float64
	Compilations   int
	Telemetry      int
	CacheBlocks    int
	WorkerPhases   int
}

// Counts collects the record counts and totals for one log.
func (v *LogView) Counts() (Counts, error) {
	var c Counts
	queries := []struct {
		query string
		dest  []any
	}{
		{`SELECT COUNT(*), COALESCE(SUM(import_time_ms), 0), COALESCE(MAX(import_time_ms), 0)
			FROM asset_imports WHERE log_id = ?`, []any{&c.Imports, &c.ImportTimeMs, &c.MaxImportMs}},
		{`SELECT COUNT(*) FROM operations WHERE log_id = ?`, []any{&c.Operations}},
		{`SELECT COUNT(*), COALESCE(SUM(total_time_seconds), 0) FROM pipeline_refreshes WHERE log_id = ?`,
			[]any{&c.Refreshes, &c.RefreshSeconds}},
		{`SELECT COUNT(*), COALESCE(SUM(time_ms), 0) FROM domain_reload_steps WHERE log_id = ?`,
			[]any{&c.ReloadSteps, &c.ReloadTimeMs}},
		{`SELECT COUNT(*) FROM script_compilation WHERE log_id = ?`, []any{&c.Compilations}},
		{`SELECT COUNT(*) FROM telemetry WHERE log_id = ?`, []any{&c.Telemetry}},
		{`SELECT COUNT(*) FROM cache_server_blocks WHERE log_id = ?`, []any{&c.CacheBlocks}},
		{`SELECT COUNT(*) FROM worker_phases WHERE log_id = ?`, []any{&c.WorkerPhases}},
	}
	for _, q := range queries {
		if err := v.store.db.QueryRowContext(v.ctx, q.query, v.logID).Scan(q.dest...); err != nil {
			return Counts{}, fmt.Errorf("query counts: %w", err)
		}
	}
	return c, nil
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
