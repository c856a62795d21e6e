package parse

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"editortrace/internal/core/model"
)

// feed runs the parser over the given lines and returns everything emitted,
// including the flush.
func feed(t *testing.T, p *Parser, lines []string) Emitted {
	t.Helper()
	var all Emitted
	for i, line := range lines {
		all.Merge(p.ProcessLine(i+1, line))
	}
	all.Merge(p.Flush())
	return all
}

func TestFullImportGrammar(t *testing.T) {
	p := New(Config{})
	out := p.ProcessLine(7, "Start importing Assets/Textures/grass.png using Guid(a1b2c3d4e5f60718) (TextureImporter) -> (artifact id: '99aa88bb') in 0.052 seconds")

	require.Len(t, out.Imports, 1)
	imp := out.Imports[0]
	assert.Equal(t, 7, imp.LineNumber)
	assert.Equal(t, "Assets/Textures/grass.png", imp.AssetPath)
	assert.Equal(t, "grass.png", imp.AssetName)
	assert.Equal(t, ".png", imp.AssetType)
	assert.Equal(t, "Textures", imp.AssetCategory)
	assert.Equal(t, "a1b2c3d4e5f60718", imp.GUID)
	assert.Equal(t, "99aa88bb", imp.ArtifactID)
	assert.Equal(t, "TextureImporter", imp.ImporterType)
	assert.InDelta(t, 52.0, imp.ImportTimeMs, 1e-9)
	assert.Nil(t, imp.WorkerID)
}

func TestImportTimeIsExactlySecondsTimesThousand(t *testing.T) {
	for _, sec := range []string{"0.001", "0.052311", "1.5", "81.189218"} {
		p := New(Config{})
		line := fmt.Sprintf("Start importing Assets/a.png using Guid(00ff00ff) (TextureImporter) in %s seconds", sec)
		out := p.ProcessLine(1, line)
		require.Len(t, out.Imports, 1, "seconds=%s", sec)

		var want float64
		_, err := fmt.Sscanf(sec, "%f", &want)
		require.NoError(t, err)
		assert.Equal(t, want*1000, out.Imports[0].ImportTimeMs)
	}
}

func TestWorkerImportSequence(t *testing.T) {
	tests := []struct {
		name         string
		lines        []string
		wantImporter string
	}{
		{
			name: "annotation supplies importer",
			lines: []string{
				"[Worker3] Start importing Assets/Models/Tree.fbx using Guid(0123456789abcdef)",
				"[Worker3] (FBXImporter)",
				"[Worker3]  -> (artifact id: 'aa11bb22') in 0.75 seconds",
			},
			wantImporter: "FBXImporter",
		},
		{
			name: "invalid annotation falls back to classifier",
			lines: []string{
				"[Worker3] Start importing Assets/Models/Tree.fbx using Guid(0123456789abcdef)",
				"[Worker3] (-1)",
				"[Worker3]  -> (artifact id: 'aa11bb22') in 0.75 seconds",
			},
			wantImporter: "FBXImporter",
		},
		{
			name: "no annotation at all",
			lines: []string{
				"[Worker3] Start importing Assets/Models/Tree.fbx using Guid(0123456789abcdef)",
				"[Worker3]  -> (artifact id: 'aa11bb22') in 0.75 seconds",
			},
			wantImporter: "FBXImporter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(Config{})
			out := feed(t, p, tt.lines)

			require.Len(t, out.Imports, 1)
			imp := out.Imports[0]
			assert.Equal(t, 1, imp.LineNumber, "record anchors at the start line")
			assert.Equal(t, tt.wantImporter, imp.ImporterType)
			assert.Equal(t, 750.0, imp.ImportTimeMs)
			require.NotNil(t, imp.WorkerID)
			assert.Equal(t, 3, *imp.WorkerID)
		})
	}
}

func TestWorkerImportsInterleaved(t *testing.T) {
	p := New(Config{})
	out := feed(t, p, []string{
		"[Worker0] Start importing Assets/a.png using Guid(aaaaaaaaaaaaaaaa)",
		"[Worker1] Start importing Assets/b.png using Guid(bbbbbbbbbbbbbbbb)",
		"[Worker1] (TextureImporter)",
		"[Worker0] (TextureImporter)",
		"[Worker1]  -> (artifact id: 'b1') in 0.2 seconds",
		"[Worker0]  -> (artifact id: 'a1') in 0.4 seconds",
	})

	require.Len(t, out.Imports, 2)
	byPath := map[string]model.AssetImportRecord{}
	for _, imp := range out.Imports {
		byPath[imp.AssetPath] = imp
	}
	assert.Equal(t, 1, byPath["Assets/a.png"].LineNumber)
	assert.Equal(t, 2, byPath["Assets/b.png"].LineNumber)
	assert.InDelta(t, 400.0, byPath["Assets/a.png"].ImportTimeMs, 1e-9)
	assert.InDelta(t, 200.0, byPath["Assets/b.png"].ImportTimeMs, 1e-9)
}

func TestWorkerPhaseCoalescing(t *testing.T) {
	p := New(Config{WorkerLineGap: 10})
	lines := []string{
		"[Worker2] Start importing Assets/a.png using Guid(aaaaaaaaaaaaaaaa)",
		"[Worker2]  -> (artifact id: 'a1') in 0.1 seconds",
		"[Worker2] Start importing Assets/b.png using Guid(bbbbbbbbbbbbbbbb)",
		"[Worker2]  -> (artifact id: 'b1') in 0.1 seconds",
	}
	// A far-away burst on the same worker after the line gap.
	var padded []string
	padded = append(padded, lines...)
	for i := 0; i < 20; i++ {
		padded = append(padded, "irrelevant line")
	}
	padded = append(padded,
		"[Worker2] Start importing Assets/c.png using Guid(cccccccccccccccc)",
		"[Worker2]  -> (artifact id: 'c1') in 0.1 seconds",
	)

	out := feed(t, p, padded)
	require.Len(t, out.Phases, 2)
	assert.Equal(t, 2, out.Phases[0].ImportCount)
	assert.Equal(t, 1, out.Phases[0].StartLine)
	assert.Equal(t, 1, out.Phases[1].ImportCount)
	assert.Equal(t, 2, out.Phases[0].WorkerID)
}

func TestSkipPolicy(t *testing.T) {
	tests := []struct {
		name string
		line string
		want int
	}{
		{
			name: "package namespace folder is skipped",
			line: "Start importing Assets/com.acme/readme.txt using Guid(abc123) (DefaultImporter) -> (artifact id: 'zz') in 0.001 seconds",
			want: 0,
		},
		{
			name: "package folder as final segment is skipped",
			line: "Start importing Packages/com.autodesk.fbx using Guid(abcdef0123456789) (DefaultImporter) in 0.002 seconds",
			want: 0,
		},
		{
			name: "default importer folder without extension is skipped",
			line: "Start importing Assets/Resources/Prefabs using Guid(abcdef0123456789) (DefaultImporter) in 0.002 seconds",
			want: 0,
		},
		{
			name: "deep path with namespace-looking parent is kept",
			line: "Start importing Assets/Plugins/com.acme/Editor/tool.cs using Guid(abcdef0123456789) (MonoImporter) in 0.002 seconds",
			want: 1,
		},
		{
			name: "regular asset is kept",
			line: "Start importing Assets/Textures/grass.png using Guid(abcdef0123456789) (TextureImporter) in 0.002 seconds",
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(Config{})
			out := p.ProcessLine(1, tt.line)
			assert.Len(t, out.Imports, tt.want)
		})
	}
}

func TestPendingImportCompletesByOrder(t *testing.T) {
	p := New(Config{})
	out := feed(t, p, []string{
		"Start importing Assets/Movies/intro.mp4 using Guid(0011223344556677) (VideoClipImporter)",
		"Warning: transcode fallback selected",
		" -> (artifact id: 'ff00ee11') in 12.5 seconds",
	})

	require.Len(t, out.Imports, 1)
	imp := out.Imports[0]
	assert.Equal(t, 1, imp.LineNumber)
	assert.Equal(t, "VideoClipImporter", imp.ImporterType)
	assert.Equal(t, "ff00ee11", imp.ArtifactID)
	assert.Equal(t, 12500.0, imp.ImportTimeMs)
}

func TestPendingImportsResolveLIFO(t *testing.T) {
	p := New(Config{})
	out := feed(t, p, []string{
		"Start importing Assets/Movies/a.mp4 using Guid(aaaaaaaaaaaaaaaa) (VideoClipImporter)",
		"Start importing Assets/Movies/b.mp4 using Guid(bbbbbbbbbbbbbbbb) (VideoClipImporter)",
		" -> (artifact id: 'b1') in 1.0 seconds",
		" -> (artifact id: 'a1') in 2.0 seconds",
	})

	require.Len(t, out.Imports, 2)
	assert.Equal(t, "Assets/Movies/b.mp4", out.Imports[0].AssetPath)
	assert.Equal(t, "b1", out.Imports[0].ArtifactID)
	assert.Equal(t, "Assets/Movies/a.mp4", out.Imports[1].AssetPath)
	assert.Equal(t, "a1", out.Imports[1].ArtifactID)
}

func TestBareImportUsesPlaceholderDuration(t *testing.T) {
	p := New(Config{})
	out := p.ProcessLine(4, "Start importing Assets/Models/Rock.fbx using Guid(aabbccddeeff0011)")

	require.Len(t, out.Imports, 1)
	assert.InDelta(t, 1.0, out.Imports[0].ImportTimeMs, 1e-9)
	assert.Equal(t, "FBXImporter", out.Imports[0].ImporterType)
}

func TestPipelineRefreshBlock(t *testing.T) {
	p := New(Config{})
	out := feed(t, p, []string{
		"Asset Pipeline Refresh (id=5c2a91f0): Total: 33.102 seconds - Initiated by InitialRefresh",
		"\tImports: total=516 (actual=515, local cache=1, cache server=0)",
		"\tAsset DB Process Time: managed=79 ms, native=10061 ms",
		"\tAsset DB Callback time: managed=1099 ms, native=12169 ms",
		"\tScripting: domain reloads=1, domain reload time=596 ms, compile time=20859 ms, other=59 ms",
		"",
	})

	require.Len(t, out.Refreshes, 1)
	r := out.Refreshes[0]
	assert.Equal(t, 1, r.LineNumber)
	assert.Equal(t, "5c2a91f0", r.RefreshID)
	assert.Equal(t, 33.102, r.TotalTimeSeconds)
	assert.Equal(t, "InitialRefresh", r.InitiatedBy)
	require.NotNil(t, r.ImportsTotal)
	assert.Equal(t, 516, *r.ImportsTotal)
	require.NotNil(t, r.ImportsActual)
	assert.Equal(t, 515, *r.ImportsActual)
	require.NotNil(t, r.AssetDBProcessMs)
	assert.Equal(t, 10140.0, *r.AssetDBProcessMs)
	require.NotNil(t, r.CallbacksMs)
	assert.Equal(t, 13268.0, *r.CallbacksMs)
	require.NotNil(t, r.DomainReloads)
	assert.Equal(t, 1, *r.DomainReloads)
	require.NotNil(t, r.CompileMs)
	assert.Equal(t, 20859.0, *r.CompileMs)
}

func TestPipelineRefreshMissingBreakdown(t *testing.T) {
	p := New(Config{RefreshContextLines: 3})
	out := feed(t, p, []string{
		"Asset Pipeline Refresh (id=99): Total: 1.5 seconds - Initiated by ScriptCompilation",
		"unrelated line",
		"another unrelated line",
		"yet another line",
	})

	require.Len(t, out.Refreshes, 1)
	r := out.Refreshes[0]
	assert.Equal(t, "99", r.RefreshID)
	assert.Nil(t, r.ImportsTotal)
	assert.Nil(t, r.AssetDBProcessMs)
	assert.Nil(t, r.DomainReloads)
}

func TestDomainReloadTree(t *testing.T) {
	p := New(Config{})
	out := feed(t, p, []string{
		"Domain Reload Profiling: 2100ms",
		"Reset Execution Order (1ms)",
		"\tRequest Script Reload (2ms)",
		"\tRebuild Script Caches (3ms)",
		"\t\tReloadAssemblies (762ms)",
		"\tFinalize Reload (4ms)",
		"Teardown Complete (5ms)",
		"end of section",
	})

	require.Len(t, out.Steps, 6)
	byName := map[string]model.DomainReloadStep{}
	for _, s := range out.Steps {
		byName[s.StepName] = s
	}

	root := byName["Reset Execution Order"]
	assert.Equal(t, 0, root.IndentLevel)
	assert.Nil(t, root.ParentID)

	caches := byName["Rebuild Script Caches"]
	require.NotNil(t, caches.ParentID)
	assert.Equal(t, root.StepID, *caches.ParentID)

	deep := byName["ReloadAssemblies"]
	assert.Equal(t, 2, deep.IndentLevel)
	require.NotNil(t, deep.ParentID)
	assert.Equal(t, caches.StepID, *deep.ParentID, "depth-2 step parents the preceding depth-1 step")

	finalize := byName["Finalize Reload"]
	require.NotNil(t, finalize.ParentID)
	assert.Equal(t, root.StepID, *finalize.ParentID)

	teardown := byName["Teardown Complete"]
	assert.Nil(t, teardown.ParentID, "final depth-0 step has no parent")
}

func TestDomainReloadEndLineStillDispatched(t *testing.T) {
	p := New(Config{})
	out := feed(t, p, []string{
		"Domain Reload Profiling: 500ms",
		"Reset Execution Order (1ms)",
		"Processing assembly Library/ScriptAssemblies/Game.dll, with 3 defines and 9 references",
	})

	assert.Len(t, out.Steps, 1)
	require.Len(t, out.Compilations, 1, "block-ending line is parsed by the remaining grammars")
	assert.Equal(t, "Library/ScriptAssemblies/Game.dll", out.Compilations[0].Assembly)
}

func TestTelemetry(t *testing.T) {
	p := New(Config{})

	out := p.ProcessLine(1, `##utp:{"type":"AssemblyReload","duration":120}`)
	require.Len(t, out.Telemetry, 1)
	assert.Equal(t, "AssemblyReload", out.Telemetry[0].EventType)

	out = p.ProcessLine(2, `##utp:{"type":}`)
	assert.Empty(t, out.Telemetry, "malformed payloads are dropped")
}

func TestOperations(t *testing.T) {
	p := New(Config{})

	out := p.ProcessLine(1, `Sprite Atlas Operation : " ## Generating Atlas Masks ## " took 81.189218 sec (current mem: 4096 MB)`)
	require.Len(t, out.Operations, 1)
	op := out.Operations[0]
	assert.Equal(t, "Sprite Atlas Operation", op.ProcessType)
	assert.Equal(t, "Generating Atlas Masks", op.ProcessName)
	assert.InDelta(t, 81189.218, op.DurationMs, 1e-6)
	require.NotNil(t, op.MemoryMB)
	assert.Equal(t, 4096, *op.MemoryMB)

	out = p.ProcessLine(2, "*** Tundra requires additional run (10.31 seconds), 1 items updated, 666 evaluated")
	require.Len(t, out.Operations, 1)
	op = out.Operations[0]
	assert.Equal(t, "Tundra", op.ProcessType)
	assert.Equal(t, "requires additional run (1 items updated, 666 evaluated)", op.ProcessName)
	assert.InDelta(t, 10310.0, op.DurationMs, 1e-6)
}

func TestCacheServerBlock(t *testing.T) {
	p := New(Config{})
	out := feed(t, p, []string{
		"2025-03-14T09:26:53.000Z CacheServer: requesting download of 240 assets",
		"some other line",
		"2025-03-14T09:27:05.000Z CacheServer: downloaded 238 of 240 assets in 12.0 seconds",
	})

	require.Len(t, out.CacheBlocks, 1)
	b := out.CacheBlocks[0]
	assert.Equal(t, 1, b.LineNumber)
	assert.Equal(t, 240, b.AssetsRequested)
	assert.Equal(t, 238, b.AssetsDownloaded)
	assert.Equal(t, 12.0, b.DurationSeconds)
	require.NotNil(t, b.StartTime)
	require.NotNil(t, b.EndTime)
	assert.Equal(t, 12.0, b.EndTime.Sub(*b.StartTime).Seconds())
}

func TestHeaderMetadata(t *testing.T) {
	p := New(Config{})
	feed(t, p, []string{
		"Unity Editor version:  2022.3.10f1 (ff3792e53c62)",
		"macOS version: Version 14.2 (Build 23C64)",
		"Architecture:  arm64",
		"COMMAND LINE ARGUMENTS: -projectpath /Users/dev/Projects/SpaceGame",
		"2025-03-14T09:26:53.000Z startup",
		"2025-03-14T09:30:00.000Z done",
	})

	h := p.State().Header
	assert.Equal(t, "2022.3.10f1", h.EditorVersion)
	assert.Equal(t, "macOS", h.Platform)
	assert.Equal(t, "arm64", h.Architecture)
	assert.Equal(t, "SpaceGame", h.ProjectName)
	require.NotNil(t, h.StartTime)
	require.NotNil(t, h.EndTime)
	assert.True(t, h.EndTime.After(*h.StartTime))
	assert.Equal(t, 6, h.TotalLines)
}

func TestLineClassification(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantType string
	}{
		{name: "import", line: "Start importing Assets/a.png using Guid(00ff00ff)", wantType: model.LineTypeImport},
		{name: "system", line: "[Licensing] token acquired", wantType: model.LineTypeSystem},
		{name: "error", line: "NullReferenceException: object not set", wantType: model.LineTypeError},
		{name: "warning", line: "Warning: deprecated shader", wantType: model.LineTypeWarning},
		{name: "telemetry", line: `##utp:{"type":"x"}`, wantType: model.LineTypeTelemetry},
		{name: "normal", line: "Refreshing native plugins", wantType: model.LineTypeNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(Config{})
			out := p.ProcessLine(1, tt.line)
			require.Len(t, out.Lines, 1)
			assert.Equal(t, tt.wantType, out.Lines[0].LineType)
		})
	}
}

func TestStateSnapshotRoundTrip(t *testing.T) {
	p := New(Config{})
	p.ProcessLine(1, "[Worker1] Start importing Assets/a.png using Guid(aaaaaaaaaaaaaaaa)")
	p.ProcessLine(2, "Start importing Assets/Movies/b.mp4 using Guid(bbbbbbbbbbbbbbbb) (VideoClipImporter)")

	snap, err := p.State().Snapshot()
	require.NoError(t, err)

	restored, err := RestoreState(snap)
	require.NoError(t, err)

	resumed := New(Config{})
	resumed.SetState(restored)

	out := resumed.ProcessLine(3, "[Worker1]  -> (artifact id: 'a1') in 0.5 seconds")
	require.Len(t, out.Imports, 1)
	assert.Equal(t, "Assets/a.png", out.Imports[0].AssetPath)
	assert.Equal(t, 1, out.Imports[0].LineNumber)

	out = resumed.ProcessLine(4, " -> (artifact id: 'b1') in 2.0 seconds")
	require.Len(t, out.Imports, 1)
	assert.Equal(t, "Assets/Movies/b.mp4", out.Imports[0].AssetPath)
}

func BenchmarkProcessLine(b *testing.B) {
	p := New(Config{})
	line := "Start importing Assets/Textures/grass.png using Guid(a1b2c3d4e5f60718) (TextureImporter) -> (artifact id: '99aa88bb') in 0.052 seconds"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.ProcessLine(i+1, line)
	}
}
