package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"editortrace/internal/core/model"
	"editortrace/internal/util"
)

func tsMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func millisTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func isDuplicate(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// writeBatch inserts all rows inside one transaction. A uniqueness
// conflict degrades to per-row inserts with silent duplicate skip; any
// other failure aborts.
func (s *Store) writeBatch(ctx context.Context, query string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, args := range rows {
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			stmt.Close()
			tx.Rollback()
			if isDuplicate(err) {
				return s.writeRows(ctx, query, rows)
			}
			return fmt.Errorf("batch insert: %w", err)
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// writeRows is the degraded per-row path: duplicates are skipped, other
// errors still abort.
func (s *Store) writeRows(ctx context.Context, query string, rows [][]any) error {
	skipped := 0
	for _, args := range rows {
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			if isDuplicate(err) {
				skipped++
				continue
			}
			return fmt.Errorf("row insert: %w", err)
		}
	}
	if skipped > 0 {
		util.LogDebug(fmt.Sprintf("Skipped %d duplicate rows", skipped))
	}
	return nil
}

// InsertImports writes a batch of asset import records.
func (s *Store) InsertImports(ctx context.Context, logID int64, recs []model.AssetImportRecord) error {
	rows := make([][]any, 0, len(recs))
	for _, r := range recs {
		var worker any
		if r.WorkerID != nil {
			worker = *r.WorkerID
		}
		rows = append(rows, []any{
			logID, r.LineNumber, r.AssetPath, r.AssetName, r.AssetType, r.AssetCategory,
			r.GUID, r.ArtifactID, r.ImporterType, r.ImportTimeMs,
			tsMillis(r.StartTime), tsMillis(r.EndTime), worker,
		})
	}
	return s.writeBatch(ctx, `
		INSERT INTO asset_imports
		(log_id, line_number, asset_path, asset_name, asset_type, asset_category,
		 guid, artifact_id, importer_type, import_time_ms, start_ts, end_ts, worker_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, rows)
}

// InsertOperations writes a batch of operation records.
func (s *Store) InsertOperations(ctx context.Context, logID int64, recs []model.OperationRecord) error {
	rows := make([][]any, 0, len(recs))
	for _, r := range recs {
		var mem any
		if r.MemoryMB != nil {
			mem = *r.MemoryMB
		}
		rows = append(rows, []any{
			logID, r.LineNumber, r.ProcessType, r.ProcessName, r.DurationMs, mem,
			tsMillis(r.StartTime), tsMillis(r.EndTime),
		})
	}
	return s.writeBatch(ctx, `
		INSERT INTO operations
		(log_id, line_number, process_type, process_name, duration_ms, memory_mb, start_ts, end_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, rows)
}

// InsertRefreshes writes a batch of pipeline refresh records.
func (s *Store) InsertRefreshes(ctx context.Context, logID int64, recs []model.PipelineRefreshRecord) error {
	rows := make([][]any, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []any{
			logID, r.LineNumber, r.RefreshID, r.TotalTimeSeconds, r.InitiatedBy,
			optInt(r.ImportsTotal), optInt(r.ImportsActual),
			optFloat(r.AssetDBProcessMs), optFloat(r.CallbacksMs),
			optInt(r.DomainReloads), optFloat(r.DomainReloadMs),
			optFloat(r.CompileMs), optFloat(r.OtherMs),
		})
	}
	return s.writeBatch(ctx, `
		INSERT INTO pipeline_refreshes
		(log_id, line_number, refresh_id, total_time_seconds, initiated_by,
		 imports_total, imports_actual, assetdb_process_ms, callbacks_ms,
		 domain_reloads, domain_reload_ms, compile_ms, other_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, rows)
}

// InsertReloadSteps writes a batch of domain reload steps.
func (s *Store) InsertReloadSteps(ctx context.Context, logID int64, recs []model.DomainReloadStep) error {
	rows := make([][]any, 0, len(recs))
	for _, r := range recs {
		var parent any
		if r.ParentID != nil {
			parent = *r.ParentID
		}
		rows = append(rows, []any{
			logID, r.StepID, r.LineNumber, parent, r.StepName, r.TimeMs, r.IndentLevel,
		})
	}
	return s.writeBatch(ctx, `
		INSERT INTO domain_reload_steps
		(log_id, step_id, line_number, parent_id, step_name, time_ms, indent_level)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, rows)
}

// InsertWorkerPhases writes a batch of coalesced worker phases.
func (s *Store) InsertWorkerPhases(ctx context.Context, logID int64, recs []model.WorkerPhase) error {
	rows := make([][]any, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []any{
			logID, r.WorkerID, tsMillis(r.StartTime), tsMillis(r.EndTime),
			r.ImportCount, r.StartLine, r.EndLine,
		})
	}
	return s.writeBatch(ctx, `
		INSERT INTO worker_phases
		(log_id, worker_id, start_ts, end_ts, import_count, start_line, end_line)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, rows)
}

// InsertCacheBlocks writes a batch of cache-server download blocks.
func (s *Store) InsertCacheBlocks(ctx context.Context, logID int64, recs []model.CacheServerBlock) error {
	rows := make([][]any, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []any{
			logID, r.LineNumber, tsMillis(r.StartTime), tsMillis(r.EndTime),
			r.AssetsRequested, r.AssetsDownloaded, r.DurationSeconds,
		})
	}
	return s.writeBatch(ctx, `
		INSERT INTO cache_server_blocks
		(log_id, line_number, start_ts, end_ts, assets_requested, assets_downloaded, duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, rows)
}

// InsertTelemetry writes a batch of telemetry records.
func (s *Store) InsertTelemetry(ctx context.Context, logID int64, recs []model.TelemetryRecord) error {
	rows := make([][]any, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []any{logID, r.LineNumber, r.EventType, r.Payload})
	}
	return s.writeBatch(ctx, `
		INSERT INTO telemetry (log_id, line_number, event_type, payload)
		VALUES (?, ?, ?, ?)`, rows)
}

// InsertCompilations writes a batch of script compilation records.
func (s *Store) InsertCompilations(ctx context.Context, logID int64, recs []model.CompilationRecord) error {
	rows := make([][]any, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []any{logID, r.LineNumber, r.Assembly, r.Defines, r.References})
	}
	return s.writeBatch(ctx, `
		INSERT INTO script_compilation (log_id, line_number, assembly_path, defines_count, references_count)
		VALUES (?, ?, ?, ?, ?)`, rows)
}

// InsertLines writes a batch of classified raw lines.
func (s *Store) InsertLines(ctx context.Context, logID int64, recs []model.LogLine) error {
	rows := make([][]any, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []any{
			logID, r.LineNumber, r.Content, r.LineType, r.IndentLevel,
			r.IsError, r.IsWarning, tsMillis(r.Timestamp),
		})
	}
	return s.writeBatch(ctx, `
		INSERT INTO log_lines (log_id, line_number, content, line_type, indent_level, is_error, is_warning, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, rows)
}

// FinishLog records the header metadata and parse duration once ingestion
// of a file completes.
func (s *Store) FinishLog(ctx context.Context, logID int64, header model.HeaderInfo, parseTimeMs float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE log_metadata
		SET editor_version = ?, platform = ?, architecture = ?, project_name = ?,
		    start_ts = ?, end_ts = ?, total_lines = ?, parse_time_ms = ?
		WHERE id = ?`,
		header.EditorVersion, header.Platform, header.Architecture, header.ProjectName,
		tsMillis(header.StartTime), tsMillis(header.EndTime), header.TotalLines, parseTimeMs, logID)
	if err != nil {
		return fmt.Errorf("finish log %d: %w", logID, err)
	}
	return nil
}

func optInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func optFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
