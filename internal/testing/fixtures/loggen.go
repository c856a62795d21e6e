// Package fixtures generates synthetic editor logs for tests. The output
// follows the line grammars the parser understands, so integration tests
// can exercise the whole pipeline without shipping real multi-megabyte
// logs.
package fixtures

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// LogSpec describes the synthetic log to generate.
type LogSpec struct {
	EditorVersion string
	StartTime     time.Time
	// Imports is the number of main-thread asset imports.
	Imports int
	// WorkerImports is the number of imports spread across two workers.
	WorkerImports int
	Operations    int
	WithRefresh   bool
	WithReload    bool
	WithCache     bool
	WithTelemetry bool
}

// DefaultSpec is a small log touching every record kind.
func DefaultSpec() LogSpec {
	return LogSpec{
		EditorVersion: "2022.3.10f1",
		StartTime:     time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC),
		Imports:       20,
		WorkerImports: 6,
		Operations:    2,
		WithRefresh:   true,
		WithReload:    true,
		WithCache:     true,
		WithTelemetry: true,
	}
}

var sampleAssets = []struct {
	path     string
	importer string
}{
	{"Assets/Textures/grass.png", "TextureImporter"},
	{"Assets/Textures/rock.png", "TextureImporter"},
	{"Assets/Models/Tree.fbx", "FBXImporter"},
	{"Assets/Scripts/Player.cs", "MonoImporter"},
	{"Assets/Audio/theme.wav", "AudioImporter"},
	{"Assets/Materials/leaf.mat", "NativeFormatImporter"},
}

// Generate renders the log as lines.
func Generate(spec LogSpec) []string {
	var lines []string
	ts := spec.StartTime

	stamp := func() string { return ts.Format("2006-01-02T15:04:05Z") }
	lines = append(lines, fmt.Sprintf("%s Unity Editor version: %s", stamp(), spec.EditorVersion))
	lines = append(lines, "Architecture: x86_64")
	lines = append(lines, "COMMANDLINE ARGUMENTS: -projectpath /home/dev/SampleGame")

	if spec.WithRefresh {
		lines = append(lines,
			"Asset Pipeline Refresh (id=5c2a91f0): Total: 3.100 seconds - Initiated by InitialRefresh",
			"\tImports: total=24 (actual=20, local cache=4, cache server=0)",
			"\tAsset DB Process Time: managed=79 ms, native=1061 ms",
			"\tAsset DB Callback time: managed=99 ms, native=169 ms",
			"\tScripting: domain reloads=1, domain reload time=596 ms, compile time=859 ms, other=59 ms",
			"",
		)
		ts = ts.Add(3 * time.Second)
	}

	if spec.WithCache {
		lines = append(lines, fmt.Sprintf("%s CacheServer: requesting download of 12 assets", stamp()))
		ts = ts.Add(2 * time.Second)
		lines = append(lines, fmt.Sprintf("%s CacheServer: downloaded 11 of 12 assets in 2.0 seconds", stamp()))
	}

	for i := 0; i < spec.Imports; i++ {
		a := sampleAssets[i%len(sampleAssets)]
		dur := 0.010 + float64(i%5)*0.020
		ts = ts.Add(time.Duration(dur*1000) * time.Millisecond)
		lines = append(lines, fmt.Sprintf(
			"%s Start importing %s using Guid(%032x) (%s) -> (artifact id: '%016x') in %.3f seconds",
			stamp(), a.path, i+1, a.importer, i+1, dur))
	}

	for i := 0; i < spec.WorkerImports; i++ {
		worker := i % 2
		a := sampleAssets[i%len(sampleAssets)]
		lines = append(lines,
			fmt.Sprintf("[Worker%d] Start importing %s using Guid(%032x)", worker, a.path, 100+i),
			fmt.Sprintf("[Worker%d] (%s)", worker, a.importer),
			fmt.Sprintf("[Worker%d]  -> (artifact id: '%016x') in 0.1 seconds", worker, 100+i),
		)
	}

	if spec.WithReload {
		lines = append(lines,
			"Domain Reload Profiling: 900ms",
			"Reset Execution Order (1ms)",
			"\tRequest Script Reload (2ms)",
			"\tRebuild Script Caches (3ms)",
			"\t\tReloadAssemblies (762ms)",
			"Teardown Complete (5ms)",
			"Processing assembly Library/ScriptAssemblies/Assembly-CSharp.dll, with 40 defines and 120 references",
		)
	}

	for i := 0; i < spec.Operations; i++ {
		ts = ts.Add(500 * time.Millisecond)
		lines = append(lines, stamp()+" updating build state")
		lines = append(lines, fmt.Sprintf(
			`Sprite Atlas Operation: " ## PackAtlases%d ## " took 0.500 sec (current mem: %d MB)`,
			i, 512+i))
	}

	if spec.WithTelemetry {
		lines = append(lines, `##utp:{"type":"AssemblyReload","duration":120}`)
	}

	ts = ts.Add(time.Second)
	lines = append(lines, fmt.Sprintf("%s Exiting without the bug reporter.", stamp()))
	return lines
}

// Write renders the log to path.
func Write(path string, spec LogSpec) error {
	content := strings.Join(Generate(spec), "\n") + "\n"
	return os.WriteFile(path, []byte(content), 0o644)
}
