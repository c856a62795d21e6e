// Package pattern is the extraction-rule catalog: one compiled rule per
// event kind, each exposed as a pure Match function returning a typed value
// and an ok flag. A non-match is never an error.
package pattern

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reWorker = regexp.MustCompile(`^\[Worker(\d+)\]\s+(.+)`)

	// Start importing PATH using Guid(GUID) IMPORTER -> (artifact id: 'ID') in X.XXX seconds
	reImportFull = regexp.MustCompile(`Start importing (.+?) using Guid\(([a-f0-9]+)\) (.+?)(?: -> \(artifact id: '([A-Za-z0-9]+)'\))? in ([\d.]+) seconds`)

	// Start importing PATH using Guid(GUID)   -- nothing after the guid
	reImportBare = regexp.MustCompile(`Start importing (.+?) using Guid\(([a-f0-9]+)\)\s*$`)

	// Start importing PATH using Guid(GUID) (Importer)   -- timing on a later line
	reImportBracketed = regexp.MustCompile(`Start importing (.+?) using Guid\(([a-f0-9]+)\) \(([A-Za-z0-9]+)\)`)

	// (TextureImporter) on its own line, or (-1) for an invalid importer
	reImporterAnnotation = regexp.MustCompile(`^\(([A-Za-z0-9\-]+)\)\s*$`)

	// -> (artifact id: 'ID') in X.XXX seconds
	reCompletion = regexp.MustCompile(`-> \(artifact id: '([A-Za-z0-9]+)'\) in ([\d.]+) seconds`)

	// Asset Pipeline Refresh (id=XXXX): Total: X.XXX seconds - Initiated by REASON
	reRefreshHeader = regexp.MustCompile(`Asset Pipeline Refresh \(id=([A-Za-z0-9]+)\): Total: ([\d.]+) seconds - Initiated by (.+?)\s*$`)

	reRefreshImports   = regexp.MustCompile(`total=(\d+).*actual=(\d+)`)
	reManagedNative    = regexp.MustCompile(`managed=(\d+)\s*ms.*native=(\d+)\s*ms`)
	reRefreshScripting = regexp.MustCompile(`domain reloads=(\d+).*domain reload time=(\d+)\s*ms.*compile time=(\d+)\s*ms.*other=(\d+)\s*ms`)

	// <tabs>StepName (XXXms)
	reReloadStep = regexp.MustCompile(`^(\t*)([^\t].*?) \((\d+)ms\)\s*$`)

	reTelemetry = regexp.MustCompile(`##utp:(\{.+\})`)

	// TYPE : " ## NAME ## " took X.XXX sec (current mem: N MB)
	reOperation = regexp.MustCompile(`([^:]+)\s*:\s*"\s*##\s*(.+?)\s*##\s*"\s+took\s+([\d.]+)\s+sec(?:.*current mem:\s*(\d+)\s*MB)?`)

	// *** Tundra NAME (X.XX seconds), N items updated, M evaluated
	reTundra = regexp.MustCompile(`\*\*\*\s+Tundra\s+([^(]+)\s+\(([\d.]+)\s+seconds?\),\s+(\d+)\s+items?\s+updated,\s+(\d+)\s+evaluated`)

	// Processing assembly PATH, with N defines and M references
	reAssembly = regexp.MustCompile(`Processing assembly (.+?), with (\d+) defines and (\d+) references`)

	reCacheRequest  = regexp.MustCompile(`CacheServer: requesting download of (\d+) assets?`)
	reCacheComplete = regexp.MustCompile(`CacheServer: downloaded (\d+) of (\d+) assets? in ([\d.]+) seconds`)

	reTimestamp = regexp.MustCompile(`(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2})`)

	reEditorVersion = regexp.MustCompile(`Unity Editor version:\s+(\S+)`)
	reArchitecture  = regexp.MustCompile(`Architecture:\s+(\S+)`)
	reProjectPath   = regexp.MustCompile(`-projectpath\s+(\S+)`)
	reProjectChange = regexp.MustCompile(`Successfully changed project path to:\s+(\S+)`)
)

// WorkerLine is a line tagged with a concurrent import worker id.
type WorkerLine struct {
	ID   int
	Rest string
}

func MatchWorkerLine(line string) (WorkerLine, bool) {
	m := reWorker.FindStringSubmatch(line)
	if m == nil {
		return WorkerLine{}, false
	}
	id, _ := strconv.Atoi(m[1])
	return WorkerLine{ID: id, Rest: m[2]}, true
}

// ImportFull is the complete single-line import grammar.
type ImportFull struct {
	Path        string
	GUID        string
	ImporterRaw string
	ArtifactID  string
	Seconds     float64
}

func MatchImportFull(line string) (ImportFull, bool) {
	m := reImportFull.FindStringSubmatch(line)
	if m == nil {
		return ImportFull{}, false
	}
	sec, err := strconv.ParseFloat(m[5], 64)
	if err != nil {
		return ImportFull{}, false
	}
	return ImportFull{Path: m[1], GUID: m[2], ImporterRaw: m[3], ArtifactID: m[4], Seconds: sec}, true
}

// ImportStart is the bare start grammar with nothing after the guid.
type ImportStart struct {
	Path string
	GUID string
}

func MatchImportBare(line string) (ImportStart, bool) {
	m := reImportBare.FindStringSubmatch(line)
	if m == nil {
		return ImportStart{}, false
	}
	return ImportStart{Path: m[1], GUID: m[2]}, true
}

// ImportBracketed is the two-line grammar carrying the importer but no
// timing; the timing arrives on a later completion line.
type ImportBracketed struct {
	Path     string
	GUID     string
	Importer string
}

func MatchImportBracketed(line string) (ImportBracketed, bool) {
	m := reImportBracketed.FindStringSubmatch(line)
	if m == nil {
		return ImportBracketed{}, false
	}
	return ImportBracketed{Path: m[1], GUID: m[2], Importer: m[3]}, true
}

// MatchImporterAnnotation matches a standalone "(SomeImporter)" line.
func MatchImporterAnnotation(line string) (string, bool) {
	m := reImporterAnnotation.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Completion is the trailing "-> (artifact id: ...) in N seconds" fragment.
type Completion struct {
	ArtifactID string
	Seconds    float64
}

func MatchCompletion(line string) (Completion, bool) {
	m := reCompletion.FindStringSubmatch(line)
	if m == nil {
		return Completion{}, false
	}
	sec, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Completion{}, false
	}
	return Completion{ArtifactID: m[1], Seconds: sec}, true
}

// RefreshHeader is the pipeline refresh trigger line.
type RefreshHeader struct {
	ID           string
	TotalSeconds float64
	InitiatedBy  string
}

func MatchRefreshHeader(line string) (RefreshHeader, bool) {
	m := reRefreshHeader.FindStringSubmatch(line)
	if m == nil {
		return RefreshHeader{}, false
	}
	sec, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return RefreshHeader{}, false
	}
	return RefreshHeader{ID: m[1], TotalSeconds: sec, InitiatedBy: m[3]}, true
}

// MatchRefreshImports extracts total/actual import counts from a refresh
// context line.
func MatchRefreshImports(line string) (total, actual int, ok bool) {
	m := reRefreshImports.FindStringSubmatch(line)
	if m == nil {
		return 0, 0, false
	}
	total, _ = strconv.Atoi(m[1])
	actual, _ = strconv.Atoi(m[2])
	return total, actual, true
}

// MatchManagedNative extracts and sums the managed/native millisecond pair
// reported by the asset database timing lines.
func MatchManagedNative(line string) (sumMs float64, ok bool) {
	m := reManagedNative.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	managed, _ := strconv.Atoi(m[1])
	native, _ := strconv.Atoi(m[2])
	return float64(managed + native), true
}

// ScriptingSummary is the scripting line of a refresh breakdown.
type ScriptingSummary struct {
	Reloads  int
	ReloadMs float64
	CompileMs float64
	OtherMs  float64
}

func MatchScriptingSummary(line string) (ScriptingSummary, bool) {
	m := reRefreshScripting.FindStringSubmatch(line)
	if m == nil {
		return ScriptingSummary{}, false
	}
	reloads, _ := strconv.Atoi(m[1])
	reloadMs, _ := strconv.Atoi(m[2])
	compileMs, _ := strconv.Atoi(m[3])
	otherMs, _ := strconv.Atoi(m[4])
	return ScriptingSummary{
		Reloads:   reloads,
		ReloadMs:  float64(reloadMs),
		CompileMs: float64(compileMs),
		OtherMs:   float64(otherMs),
	}, true
}

// ReloadStep is one node of the domain reload profiling tree.
type ReloadStep struct {
	Indent int
	Name   string
	TimeMs float64
}

func MatchReloadStep(line string) (ReloadStep, bool) {
	m := reReloadStep.FindStringSubmatch(line)
	if m == nil {
		return ReloadStep{}, false
	}
	ms, _ := strconv.Atoi(m[3])
	return ReloadStep{Indent: len(m[1]), Name: m[2], TimeMs: float64(ms)}, true
}

// MatchTelemetry returns the raw JSON object text of an embedded telemetry
// marker.
func MatchTelemetry(line string) (string, bool) {
	m := reTelemetry.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Operation is a named timed operation line.
type Operation struct {
	Type     string
	Name     string
	Seconds  float64
	MemoryMB *int
}

func MatchOperation(line string) (Operation, bool) {
	m := reOperation.FindStringSubmatch(line)
	if m == nil {
		return Operation{}, false
	}
	sec, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Operation{}, false
	}
	op := Operation{Type: strings.TrimSpace(m[1]), Name: strings.TrimSpace(m[2]), Seconds: sec}
	if m[4] != "" {
		mem, _ := strconv.Atoi(m[4])
		op.MemoryMB = &mem
	}
	return op, true
}

// TundraSummary is the build-graph tool summary line.
type TundraSummary struct {
	Name      string
	Seconds   float64
	Updated   int
	Evaluated int
}

func MatchTundra(line string) (TundraSummary, bool) {
	m := reTundra.FindStringSubmatch(line)
	if m == nil {
		return TundraSummary{}, false
	}
	sec, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return TundraSummary{}, false
	}
	updated, _ := strconv.Atoi(m[3])
	evaluated, _ := strconv.Atoi(m[4])
	return TundraSummary{Name: strings.TrimSpace(m[1]), Seconds: sec, Updated: updated, Evaluated: evaluated}, true
}

// Assembly is a script compilation announcement.
type Assembly struct {
	Path       string
	Defines    int
	References int
}

func MatchAssembly(line string) (Assembly, bool) {
	m := reAssembly.FindStringSubmatch(line)
	if m == nil {
		return Assembly{}, false
	}
	defines, _ := strconv.Atoi(m[2])
	refs, _ := strconv.Atoi(m[3])
	return Assembly{Path: m[1], Defines: defines, References: refs}, true
}

// MatchCacheRequest matches the start of a remote-cache download block.
func MatchCacheRequest(line string) (requested int, ok bool) {
	m := reCacheRequest.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	requested, _ = strconv.Atoi(m[1])
	return requested, true
}

// CacheComplete is the end of a remote-cache download block.
type CacheComplete struct {
	Downloaded int
	Requested  int
	Seconds    float64
}

func MatchCacheComplete(line string) (CacheComplete, bool) {
	m := reCacheComplete.FindStringSubmatch(line)
	if m == nil {
		return CacheComplete{}, false
	}
	sec, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return CacheComplete{}, false
	}
	downloaded, _ := strconv.Atoi(m[1])
	requested, _ := strconv.Atoi(m[2])
	return CacheComplete{Downloaded: downloaded, Requested: requested, Seconds: sec}, true
}

// MatchTimestamp extracts an embedded ISO timestamp (second precision).
func MatchTimestamp(line string) (time.Time, bool) {
	m := reTimestamp.FindStringSubmatch(line)
	if m == nil {
		return time.Time{}, false
	}
	ts, err := time.Parse("2006-01-02T15:04:05", m[1])
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// NormalizeImporter cleans the raw importer capture of the full import
// grammar. "(TextureImporter)" becomes "TextureImporter"; sentinel invalid
// forms ("-1", "Importer(-1,...)") become "".
func NormalizeImporter(raw string) string {
	imp := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(imp, "(") && strings.HasSuffix(imp, ")"):
		imp = strings.Trim(imp, "()")
	case strings.HasPrefix(imp, "Importer("):
		if strings.Contains(imp, "-1") {
			return ""
		}
		return "Importer"
	}
	if imp == "-1" {
		return ""
	}
	return imp
}

// MatchEditorVersion extracts the editor version from a header line.
func MatchEditorVersion(line string) (string, bool) {
	m := reEditorVersion.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// MatchPlatform recognizes the OS version header lines.
func MatchPlatform(line string) (string, bool) {
	switch {
	case strings.Contains(line, "macOS version:"):
		return "macOS", true
	case strings.Contains(line, "Windows version:"):
		return "Windows", true
	case strings.Contains(line, "Linux version:"):
		return "Linux", true
	}
	return "", false
}

// MatchArchitecture extracts the CPU architecture from a header line.
func MatchArchitecture(line string) (string, bool) {
	m := reArchitecture.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// MatchProjectPath extracts the project path from either the -projectpath
// argument echo or the project change notice.
func MatchProjectPath(line string) (string, bool) {
	if m := reProjectPath.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	if m := reProjectChange.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	return "", false
}
