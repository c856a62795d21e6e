package ingest

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"editortrace/internal/core/model"
	"editortrace/internal/core/parse"
	"editortrace/internal/data/store"
	"editortrace/internal/data/supplier"
)

// sliceSupplier feeds a fixed set of lines, optionally cancelling a
// context when a given line is reached.
type sliceSupplier struct {
	lines    []string
	pos      int
	cancelAt int
	cancel   context.CancelFunc
}

func (s *sliceSupplier) Next() (int, string, error) {
	if s.cancel != nil && s.pos == s.cancelAt {
		s.cancel()
	}
	if s.pos >= len(s.lines) {
		return 0, "", io.EOF
	}
	s.pos++
	return s.pos, s.lines[s.pos-1], nil
}

func (s *sliceSupplier) Close() error { return nil }

var sampleLog = []string{
	"2025-03-14T09:00:00Z Unity Editor version: 2022.3.10f1",
	"Start importing Assets/Textures/hero.png using Guid(abc123def456) (TextureImporter) -> (artifact id: 'deadbeef01') in 0.75 seconds",
	"Start importing Assets/Scripts/Game.cs using Guid(0123456789ab) (MonoImporter) -> (artifact id: 'deadbeef02') in 0.012 seconds",
	`Sprite Atlas Operation: " ## PackAtlases ## " took 0.0125 sec (current mem: 512 MB)`,
	"Processing assembly Library/ScriptAssemblies/Assembly-CSharp.dll, with 40 defines and 120 references",
	"2025-03-14T09:00:05Z done",
}

func newTestIngestor(t *testing.T, cfg Config) (*Ingestor, *store.Store, int64) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logID, err := st.CreateLog(context.Background(), "/tmp/Editor.log", store.Identity{})
	require.NoError(t, err)

	return New(st, parse.New(parse.Config{}), cfg), st, logID
}

func TestRunIngestsFullLog(t *testing.T) {
	in, st, logID := newTestIngestor(t, Config{StoreLines: true})

	stats, err := in.Run(context.Background(), logID, &sliceSupplier{lines: sampleLog})
	require.NoError(t, err)

	assert.Equal(t, len(sampleLog), stats.Lines)
	assert.Equal(t, 2, stats.Imports)
	assert.Equal(t, 1, stats.Operations)
	assert.Equal(t, 1, stats.Compilations)
	assert.Equal(t, "2022.3.10f1", stats.Header.EditorVersion)

	view := st.View(context.Background(), logID)
	imports, err := view.AllImports()
	require.NoError(t, err)
	require.Len(t, imports, 2)
	assert.Equal(t, "Assets/Textures/hero.png", imports[0].AssetPath)
	assert.Equal(t, 750.0, imports[0].ImportTimeMs)

	lines, err := view.Lines(1, len(sampleLog))
	require.NoError(t, err)
	assert.Len(t, lines, len(sampleLog))

	header, err := view.Header()
	require.NoError(t, err)
	assert.Equal(t, "2022.3.10f1", header.EditorVersion)
	assert.Equal(t, len(sampleLog), header.TotalLines)
}

func TestRunSkipsRawLinesWhenDisabled(t *testing.T) {
	in, st, logID := newTestIngestor(t, Config{StoreLines: false})

	_, err := in.Run(context.Background(), logID, &sliceSupplier{lines: sampleLog})
	require.NoError(t, err)

	lines, err := st.View(context.Background(), logID).Lines(1, len(sampleLog))
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestRunSmallBatchesFlushIncrementally(t *testing.T) {
	in, st, logID := newTestIngestor(t, Config{BatchSize: 1})

	stats, err := in.Run(context.Background(), logID, &sliceSupplier{lines: sampleLog})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Imports)

	imports, err := st.View(context.Background(), logID).AllImports()
	require.NoError(t, err)
	assert.Len(t, imports, 2)
}

func TestRunCancellationFlushesAndReturnsSentinel(t *testing.T) {
	in, st, logID := newTestIngestor(t, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	src := &sliceSupplier{lines: sampleLog, cancelAt: 2, cancel: cancel}

	stats, err := in.Run(ctx, logID, src)
	require.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 3, stats.Lines)
	assert.Greater(t, stats.ParseTime, time.Duration(0))

	// Records emitted before the stop point are already durable.
	imports, err := st.View(context.Background(), logID).AllImports()
	require.NoError(t, err)
	assert.Len(t, imports, 2)

	// The metadata row stays unfinished so the file is not treated as
	// fully ingested.
	_, found, err := st.FindLog(context.Background(), "/tmp/Editor.log", store.Identity{})
	require.NoError(t, err)
	assert.False(t, found)
}

// blockedSupplier feeds its lines and then blocks like a tailing reader
// with nothing new to deliver, surfacing cancellation as the read error.
type blockedSupplier struct {
	sliceSupplier
	ctx     context.Context
	blocked chan struct{}
}

func (s *blockedSupplier) Next() (int, string, error) {
	if s.pos >= len(s.lines) {
		close(s.blocked)
		<-s.ctx.Done()
		return 0, "", s.ctx.Err()
	}
	return s.sliceSupplier.Next()
}

func TestRunCancellationWhileBlockedOnRead(t *testing.T) {
	in, st, logID := newTestIngestor(t, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	src := &blockedSupplier{
		sliceSupplier: sliceSupplier{lines: sampleLog[:3]},
		ctx:           ctx,
		blocked:       make(chan struct{}),
	}

	type result struct {
		stats Stats
		err   error
	}
	done := make(chan result, 1)
	go func() {
		stats, err := in.Run(ctx, logID, src)
		done <- result{stats, err}
	}()

	<-src.blocked
	cancel()
	res := <-done

	require.ErrorIs(t, res.err, ErrCancelled)
	assert.Equal(t, 3, res.stats.Lines)
	assert.Greater(t, res.stats.ParseTime, time.Duration(0))

	// The imports read before the block are durable even though the
	// batch never filled.
	imports, err := st.View(context.Background(), logID).AllImports()
	require.NoError(t, err)
	assert.Len(t, imports, 2)
}

func TestRunCancellationWhileTailBlocked(t *testing.T) {
	in, _, logID := newTestIngestor(t, Config{})

	logPath := filepath.Join(t.TempDir(), "Editor.log")
	require.NoError(t, os.WriteFile(logPath, []byte("existing line\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	src, err := supplier.NewTailSupplier(ctx, logPath)
	require.NoError(t, err)
	defer src.Close()

	done := make(chan error, 1)
	go func() {
		_, rerr := in.Run(ctx, logID, src)
		done <- rerr
	}()

	// Give Next time to reach its blocking wait before cancelling.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case rerr := <-done:
		require.ErrorIs(t, rerr, ErrCancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestBatchFullAcrossAllRecordKinds(t *testing.T) {
	kinds := []struct {
		name string
		out  parse.Emitted
	}{
		{"imports", parse.Emitted{Imports: make([]model.AssetImportRecord, 1)}},
		{"operations", parse.Emitted{Operations: make([]model.OperationRecord, 1)}},
		{"refreshes", parse.Emitted{Refreshes: make([]model.PipelineRefreshRecord, 1)}},
		{"reload steps", parse.Emitted{Steps: make([]model.DomainReloadStep, 1)}},
		{"worker phases", parse.Emitted{Phases: make([]model.WorkerPhase, 1)}},
		{"cache blocks", parse.Emitted{CacheBlocks: make([]model.CacheServerBlock, 1)}},
		{"telemetry", parse.Emitted{Telemetry: make([]model.TelemetryRecord, 1)}},
		{"compilations", parse.Emitted{Compilations: make([]model.CompilationRecord, 1)}},
		{"lines", parse.Emitted{Lines: make([]model.LogLine, 1)}},
	}

	for _, k := range kinds {
		t.Run(k.name, func(t *testing.T) {
			in := New(nil, parse.New(parse.Config{}), Config{BatchSize: 1, StoreLines: true})
			assert.False(t, in.full())
			in.consume(k.out)
			assert.True(t, in.full(), "a full %s batch must trigger a flush", k.name)
		})
	}
}

func TestRunResumeAfterCancellation(t *testing.T) {
	in, st, logID := newTestIngestor(t, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	src := &sliceSupplier{lines: sampleLog, cancelAt: 2, cancel: cancel}
	stats, err := in.Run(ctx, logID, src)
	require.ErrorIs(t, err, ErrCancelled)

	// Snapshot and restore, as a separate process resuming would.
	snap, err := in.Parser().State().Snapshot()
	require.NoError(t, err)
	restored, err := parse.RestoreState(snap)
	require.NoError(t, err)

	resumed := New(st, parse.New(parse.Config{}), Config{})
	resumed.Parser().SetState(restored)

	rest := &sliceSupplier{lines: sampleLog[stats.Lines:], pos: 0}
	// Renumber relative to the original file.
	offsetSrc := &offsetSupplier{inner: rest, offset: stats.Lines}

	_, err = resumed.Run(context.Background(), logID, offsetSrc)
	require.NoError(t, err)

	view := st.View(context.Background(), logID)
	imports, err := view.AllImports()
	require.NoError(t, err)
	assert.Len(t, imports, 2)
	ops, err := view.Operations()
	require.NoError(t, err)
	assert.Len(t, ops, 1)
}

type offsetSupplier struct {
	inner  *sliceSupplier
	offset int
}

func (o *offsetSupplier) Next() (int, string, error) {
	n, text, err := o.inner.Next()
	if err != nil {
		return 0, "", err
	}
	return n + o.offset, text, nil
}

func (o *offsetSupplier) Close() error { return nil }
