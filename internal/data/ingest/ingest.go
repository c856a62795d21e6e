// Package ingest drives a parser over a line supplier and lands the
// emitted records in the store in batches.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"editortrace/internal/core/model"
	"editortrace/internal/core/parse"
	"editortrace/internal/data/store"
	"editortrace/internal/data/supplier"
	"editortrace/internal/util"
)

// ErrCancelled reports that ingestion stopped on caller request. All
// records emitted before the stop point are already flushed, and the
// parser state is intact for a later resume.
var ErrCancelled = errors.New("ingestion cancelled")

// Config tunes the ingestion loop.
type Config struct {
	// BatchSize is the number of buffered records per kind before a
	// flush to the store.
	BatchSize int
	// StoreLines controls whether every classified raw line is stored
	// alongside the typed records.
	StoreLines bool
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	return c
}

// Stats summarizes one ingestion run.
type Stats struct {
	Lines        int
	Imports      int
	Operations   int
	Refreshes    int
	ReloadSteps  int
	WorkerPhases int
	CacheBlocks  int
	Telemetry    int
	Compilations int
	ParseTime    time.Duration
	Header       model.HeaderInfo
}

// Ingestor couples a parser with a store.
type Ingestor struct {
	store  *store.Store
	parser *parse.Parser
	cfg    Config

	buf   parse.Emitted
	stats Stats
}

// New creates an ingestor writing under logID-scoped tables in st.
func New(st *store.Store, parser *parse.Parser, cfg Config) *Ingestor {
	return &Ingestor{store: st, parser: parser, cfg: cfg.withDefaults()}
}

// Parser exposes the underlying parser, whose state callers may
// snapshot between runs.
func (in *Ingestor) Parser() *parse.Parser {
	return in.parser
}

// Run consumes src until io.EOF, flushing batches as they fill. When ctx
// is cancelled mid-file the buffered records are flushed first and
// ErrCancelled is returned; the caller can resume from the parser state
// and the last consumed line. On clean EOF the parser is flushed and the
// log metadata row is finalized.
func (in *Ingestor) Run(ctx context.Context, logID int64, src supplier.LineSupplier) (Stats, error) {
	started := time.Now()

	for {
		if ctx.Err() != nil {
			return in.stats, in.stop(ctx, logID, started)
		}

		lineNumber, text, err := src.Next()
		if err == io.EOF {
			break
		}
		// A supplier blocked in Next surfaces cancellation as a read
		// error rather than through the loop-top check.
		if errors.Is(err, context.Canceled) {
			return in.stats, in.stop(ctx, logID, started)
		}
		if err != nil {
			// Keep what was parsed so far; a tailing caller recovers from
			// truncation and carries on with a fresh log.
			if ferr := in.flush(ctx, logID); ferr != nil {
				return in.stats, ferr
			}
			in.stats.ParseTime = time.Since(started)
			return in.stats, fmt.Errorf("read line: %w", err)
		}

		in.consume(in.parser.ProcessLine(lineNumber, text))
		in.stats.Lines++
		if in.stats.Lines%10000 == 0 {
			util.LogDebug(fmt.Sprintf("Ingested %d lines", in.stats.Lines))
		}

		if in.full() {
			if err := in.flush(ctx, logID); err != nil {
				return in.stats, err
			}
		}
	}

	in.consume(in.parser.Flush())
	if err := in.flush(ctx, logID); err != nil {
		return in.stats, err
	}

	in.stats.ParseTime = time.Since(started)
	in.stats.Header = in.parser.State().Header
	if err := in.store.FinishLog(ctx, logID, in.stats.Header, float64(in.stats.ParseTime.Milliseconds())); err != nil {
		return in.stats, err
	}
	util.LogInfo(fmt.Sprintf("Parsed %d lines in %s", in.stats.Lines, in.stats.ParseTime.Round(time.Millisecond)))
	return in.stats, nil
}

// stop flushes the buffered records and reports cancellation. The flush
// must outlive the cancelled ctx for the records to land.
func (in *Ingestor) stop(ctx context.Context, logID int64, started time.Time) error {
	if err := in.flush(context.WithoutCancel(ctx), logID); err != nil {
		return err
	}
	in.stats.ParseTime = time.Since(started)
	util.LogInfo(fmt.Sprintf("Ingestion cancelled after %d lines", in.stats.Lines))
	return ErrCancelled
}

func (in *Ingestor) consume(out parse.Emitted) {
	if !in.cfg.StoreLines {
		out.Lines = nil
	}
	in.stats.Imports += len(out.Imports)
	in.stats.Operations += len(out.Operations)
	in.stats.Refreshes += len(out.Refreshes)
	in.stats.ReloadSteps += len(out.Steps)
	in.stats.WorkerPhases += len(out.Phases)
	in.stats.CacheBlocks += len(out.CacheBlocks)
	in.stats.Telemetry += len(out.Telemetry)
	in.stats.Compilations += len(out.Compilations)
	in.buf.Merge(out)
}

func (in *Ingestor) full() bool {
	n := in.cfg.BatchSize
	return len(in.buf.Imports) >= n || len(in.buf.Operations) >= n ||
		len(in.buf.Refreshes) >= n || len(in.buf.Steps) >= n ||
		len(in.buf.Phases) >= n || len(in.buf.CacheBlocks) >= n ||
		len(in.buf.Telemetry) >= n || len(in.buf.Compilations) >= n ||
		len(in.buf.Lines) >= n
}

func (in *Ingestor) flush(ctx context.Context, logID int64) error {
	if in.buf.Empty() {
		return nil
	}

	writes := []struct {
		name string
		fn   func() error
	}{
		{"imports", func() error { return in.store.InsertImports(ctx, logID, in.buf.Imports) }},
		{"operations", func() error { return in.store.InsertOperations(ctx, logID, in.buf.Operations) }},
		{"refreshes", func() error { return in.store.InsertRefreshes(ctx, logID, in.buf.Refreshes) }},
		{"reload steps", func() error { return in.store.InsertReloadSteps(ctx, logID, in.buf.Steps) }},
		{"worker phases", func() error { return in.store.InsertWorkerPhases(ctx, logID, in.buf.Phases) }},
		{"cache blocks", func() error { return in.store.InsertCacheBlocks(ctx, logID, in.buf.CacheBlocks) }},
		{"telemetry", func() error { return in.store.InsertTelemetry(ctx, logID, in.buf.Telemetry) }},
		{"compilations", func() error { return in.store.InsertCompilations(ctx, logID, in.buf.Compilations) }},
		{"lines", func() error { return in.store.InsertLines(ctx, logID, in.buf.Lines) }},
	}
	for _, w := range writes {
		if err := w.fn(); err != nil {
			return fmt.Errorf("flush %s: %w", w.name, err)
		}
	}

	in.buf = parse.Emitted{}
	return nil
}
