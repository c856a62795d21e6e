// Package parse implements the single-pass, stateful line parser. It
// consumes one line at a time plus a small carried state bundle and emits
// zero or more finished records per line. All multi-line and cross-line
// correlation (pending worker imports, refresh blocks, domain-reload
// blocks, cache-server blocks) lives here.
package parse

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"editortrace/internal/core/classify"
	"editortrace/internal/core/model"
	"editortrace/internal/core/pattern"
	"editortrace/internal/util"
)

// Config holds the parser heuristics. Zero values are replaced by defaults.
type Config struct {
	// RefreshContextLines is the number of context lines buffered after a
	// refresh header before the block is finalized.
	RefreshContextLines int
	// HeaderScanLines bounds the metadata scan at the head of the log.
	HeaderScanLines int
	// WorkerIdleGap closes a worker burst when consecutive imports on the
	// same worker are further apart than this.
	WorkerIdleGap time.Duration
	// WorkerLineGap is the burst-closing fallback when timestamps are
	// absent, measured in lines.
	WorkerLineGap int
}

// DefaultConfig returns the parser defaults.
func DefaultConfig() Config {
	return Config{
		RefreshContextLines: 10,
		HeaderScanLines:     100,
		WorkerIdleGap:       5 * time.Second,
		WorkerLineGap:       120,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RefreshContextLines <= 0 {
		c.RefreshContextLines = d.RefreshContextLines
	}
	if c.HeaderScanLines <= 0 {
		c.HeaderScanLines = d.HeaderScanLines
	}
	if c.WorkerIdleGap <= 0 {
		c.WorkerIdleGap = d.WorkerIdleGap
	}
	if c.WorkerLineGap <= 0 {
		c.WorkerLineGap = d.WorkerLineGap
	}
	return c
}

// Emitted collects the records finished by one or more ProcessLine calls.
type Emitted struct {
	Imports      []model.AssetImportRecord
	Operations   []model.OperationRecord
	Refreshes    []model.PipelineRefreshRecord
	Steps        []model.DomainReloadStep
	Phases       []model.WorkerPhase
	CacheBlocks  []model.CacheServerBlock
	Telemetry    []model.TelemetryRecord
	Compilations []model.CompilationRecord
	Lines        []model.LogLine
}

// Empty reports whether nothing was emitted.
func (e *Emitted) Empty() bool {
	return len(e.Imports) == 0 && len(e.Operations) == 0 && len(e.Refreshes) == 0 &&
		len(e.Steps) == 0 && len(e.Phases) == 0 && len(e.CacheBlocks) == 0 &&
		len(e.Telemetry) == 0 && len(e.Compilations) == 0 && len(e.Lines) == 0
}

// Merge appends all records of other into e.
func (e *Emitted) Merge(other Emitted) {
	e.Imports = append(e.Imports, other.Imports...)
	e.Operations = append(e.Operations, other.Operations...)
	e.Refreshes = append(e.Refreshes, other.Refreshes...)
	e.Steps = append(e.Steps, other.Steps...)
	e.Phases = append(e.Phases, other.Phases...)
	e.CacheBlocks = append(e.CacheBlocks, other.CacheBlocks...)
	e.Telemetry = append(e.Telemetry, other.Telemetry...)
	e.Compilations = append(e.Compilations, other.Compilations...)
	e.Lines = append(e.Lines, other.Lines...)
}

// Parser is the line state machine. It is strictly sequential: lines must
// arrive in increasing line-number order.
type Parser struct {
	cfg   Config
	state *State
}

// New creates a parser with fresh state.
func New(cfg Config) *Parser {
	return &Parser{cfg: cfg.withDefaults(), state: NewState()}
}

// State exposes the carried state for snapshotting.
func (p *Parser) State() *State {
	return p.state
}

// SetState installs a restored state, e.g. when resuming a tail session.
func (p *Parser) SetState(s *State) {
	p.state = s
}

// ProcessLine consumes one line and returns whatever records it finished.
func (p *Parser) ProcessLine(lineNumber int, text string) Emitted {
	var out Emitted
	s := p.state

	var lineTS *time.Time
	if ts, ok := pattern.MatchTimestamp(text); ok {
		lineTS = &ts
		if s.Header.StartTime == nil {
			s.Header.StartTime = &ts
		}
		s.Header.EndTime = &ts
	}
	if lineNumber <= p.cfg.HeaderScanLines {
		p.scanHeader(text)
	}
	if lineNumber > s.Header.TotalLines {
		s.Header.TotalLines = lineNumber
	}
	out.Lines = append(out.Lines, classifyLine(lineNumber, text, lineTS))

	// Worker-tagged lines carry their own grammar set.
	if wl, ok := pattern.MatchWorkerLine(text); ok {
		if p.processWorkerLine(lineNumber, wl, lineTS, &out) {
			return out
		}
	}

	// Completion for a pending import correlated by order, not worker id.
	if strings.Contains(text, "-> (artifact id:") && !strings.Contains(text, "[Worker") {
		if comp, ok := pattern.MatchCompletion(text); ok && len(s.Pending) > 0 {
			pending := s.Pending[len(s.Pending)-1]
			s.Pending = s.Pending[:len(s.Pending)-1]
			p.emitImport(&out, pending.Path, pending.GUID, pending.Importer,
				comp.ArtifactID, comp.Seconds, pending.LineNumber, pending.StartTime, lineTS, nil)
			return out
		}
	}

	// Non-worker import start, three grammars in priority order.
	if strings.Contains(text, "Start importing") && !strings.Contains(text, "[Worker") {
		p.processImportStart(lineNumber, text, lineTS, &out)
		return out
	}

	if _, ok := pattern.MatchRefreshHeader(text); ok {
		if s.InRefresh {
			p.finalizeRefresh(&out)
		}
		s.InRefresh = true
		s.RefreshBuffer = []BufferedLine{{LineNumber: lineNumber, Text: text}}
		return out
	}

	if s.InRefresh {
		blank := strings.TrimSpace(text) == ""
		if blank {
			if len(s.RefreshBuffer) > 1 {
				p.finalizeRefresh(&out)
			}
			return out
		}
		s.RefreshBuffer = append(s.RefreshBuffer, BufferedLine{LineNumber: lineNumber, Text: text})
		if len(s.RefreshBuffer) >= 1+p.cfg.RefreshContextLines {
			p.finalizeRefresh(&out)
		}
		return out
	}

	if strings.Contains(text, "Domain Reload Profiling:") {
		if s.InReload {
			p.finalizeReload(&out)
		}
		s.InReload = true
		s.ReloadBuffer = []BufferedLine{{LineNumber: lineNumber, Text: text}}
		return out
	}

	if s.InReload {
		if _, ok := pattern.MatchReloadStep(text); ok {
			s.ReloadBuffer = append(s.ReloadBuffer, BufferedLine{LineNumber: lineNumber, Text: text})
			return out
		}
		// First non-matching line ends the block; keep dispatching it.
		p.finalizeReload(&out)
	}

	if requested, ok := pattern.MatchCacheRequest(text); ok {
		s.Cache = &CachePending{LineNumber: lineNumber, StartTime: lineTS, Requested: requested}
		return out
	}
	if cc, ok := pattern.MatchCacheComplete(text); ok {
		p.emitCacheBlock(&out, cc, lineNumber, lineTS)
		return out
	}

	if payload, ok := pattern.MatchTelemetry(text); ok {
		p.processTelemetry(lineNumber, payload, &out)
		return out
	}

	if strings.Contains(text, "Operation") && strings.Contains(text, "took") {
		if op, ok := pattern.MatchOperation(text); ok {
			rec := model.OperationRecord{
				LineNumber:  lineNumber,
				ProcessType: op.Type,
				ProcessName: op.Name,
				DurationMs:  op.Seconds * 1000,
				MemoryMB:    op.MemoryMB,
			}
			setSpan(&rec.StartTime, &rec.EndTime, lineTS, rec.DurationMs)
			out.Operations = append(out.Operations, rec)
			return out
		}
	}

	if td, ok := pattern.MatchTundra(text); ok {
		rec := model.OperationRecord{
			LineNumber:  lineNumber,
			ProcessType: "Tundra",
			ProcessName: fmt.Sprintf("%s (%d items updated, %d evaluated)", td.Name, td.Updated, td.Evaluated),
			DurationMs:  td.Seconds * 1000,
		}
		setSpan(&rec.StartTime, &rec.EndTime, lineTS, rec.DurationMs)
		out.Operations = append(out.Operations, rec)
		return out
	}

	if asm, ok := pattern.MatchAssembly(text); ok {
		out.Compilations = append(out.Compilations, model.CompilationRecord{
			LineNumber: lineNumber,
			Assembly:   asm.Path,
			Defines:    asm.Defines,
			References: asm.References,
		})
		return out
	}

	return out
}

// Flush finalizes any still-open blocks and bursts at end of input.
func (p *Parser) Flush() Emitted {
	var out Emitted
	s := p.state

	if s.InRefresh {
		p.finalizeRefresh(&out)
	}
	if s.InReload {
		p.finalizeReload(&out)
	}
	if s.Cache != nil {
		util.LogDebug(fmt.Sprintf("Dropping unfinished cache-server block at line %d", s.Cache.LineNumber))
		s.Cache = nil
	}

	ids := make([]int, 0, len(s.Bursts))
	for id := range s.Bursts {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		out.Phases = append(out.Phases, burstToPhase(s.Bursts[id]))
		delete(s.Bursts, id)
	}
	return out
}

// processWorkerLine handles the three worker sub-grammars. It reports
// whether the line was consumed.
func (p *Parser) processWorkerLine(lineNumber int, wl pattern.WorkerLine, lineTS *time.Time, out *Emitted) bool {
	s := p.state

	if strings.Contains(wl.Rest, "Start importing") {
		if start, ok := pattern.MatchImportBare(wl.Rest); ok {
			s.Workers[wl.ID] = &PendingImport{
				Path:       start.Path,
				GUID:       start.GUID,
				LineNumber: lineNumber,
				StartTime:  lineTS,
			}
			return true
		}
	}

	if pending, ok := s.Workers[wl.ID]; ok && pending.Importer == "" {
		if importer, ok := pattern.MatchImporterAnnotation(wl.Rest); ok {
			if importer == "-1" || !strings.HasSuffix(importer, "Importer") {
				importer = ""
			}
			pending.Importer = importer
			return true
		}
	}

	if strings.Contains(wl.Rest, "-> (artifact id:") {
		if comp, ok := pattern.MatchCompletion(wl.Rest); ok {
			pending, ok := s.Workers[wl.ID]
			if !ok {
				return true
			}
			delete(s.Workers, wl.ID)

			importer := pending.Importer
			if importer == "" {
				importer = classify.InferImporter(pending.Path)
			}
			workerID := wl.ID
			p.emitImport(out, pending.Path, pending.GUID, importer, comp.ArtifactID,
				comp.Seconds, pending.LineNumber, pending.StartTime, lineTS, &workerID)
			p.trackBurst(wl.ID, pending, lineNumber, lineTS, out)
			return true
		}
	}

	return false
}

// processImportStart handles the three non-worker start grammars.
func (p *Parser) processImportStart(lineNumber int, text string, lineTS *time.Time, out *Emitted) {
	s := p.state

	if full, ok := pattern.MatchImportFull(text); ok {
		importer := pattern.NormalizeImporter(full.ImporterRaw)
		var start *time.Time
		if lineTS != nil {
			t := lineTS.Add(-time.Duration(full.Seconds * float64(time.Second)))
			start = &t
		}
		p.emitImport(out, full.Path, full.GUID, importer, full.ArtifactID,
			full.Seconds, lineNumber, start, lineTS, nil)
		return
	}

	if start, ok := pattern.MatchImportBare(text); ok {
		importer := classify.InferImporter(start.Path)
		// The grammar carries no timing; record a minimal placeholder.
		p.emitImport(out, start.Path, start.GUID, importer, "", 0.001, lineNumber, lineTS, lineTS, nil)
		return
	}

	if br, ok := pattern.MatchImportBracketed(text); ok {
		importer := br.Importer
		if importer == "-1" {
			importer = ""
		}
		if skipImport(br.Path, importer) {
			return
		}
		s.Pending = append(s.Pending, &PendingImport{
			Path:       br.Path,
			GUID:       br.GUID,
			Importer:   importer,
			LineNumber: lineNumber,
			StartTime:  lineTS,
		})
	}
}

// emitImport applies the skip policy and appends a finished import record.
func (p *Parser) emitImport(out *Emitted, assetPath, guid, importer, artifactID string,
	seconds float64, lineNumber int, start, end *time.Time, workerID *int) {

	if skipImport(assetPath, importer) {
		return
	}
	assetType, category := classify.Categorize(assetPath, importer)
	out.Imports = append(out.Imports, model.AssetImportRecord{
		LineNumber:    lineNumber,
		AssetPath:     assetPath,
		AssetName:     classify.Name(assetPath),
		AssetType:     assetType,
		AssetCategory: category,
		GUID:          guid,
		ArtifactID:    artifactID,
		ImporterType:  importer,
		ImportTimeMs:  seconds * 1000,
		StartTime:     start,
		EndTime:       end,
		WorkerID:      workerID,
	})
}

// skipImport drops synthetic folder imports: package-manager namespace
// folders near the repository root, and extensionless paths handled by the
// default importer.
func skipImport(assetPath, importer string) bool {
	last := path.Base(assetPath)
	parent := path.Base(path.Dir(assetPath))
	if strings.Count(assetPath, "/") <= 2 &&
		(strings.HasPrefix(last, "com.") || strings.HasPrefix(parent, "com.")) {
		return true
	}
	if importer == classify.DefaultImporter && !strings.Contains(last, ".") {
		return true
	}
	return false
}

// trackBurst coalesces worker imports into phases, closing the previous
// burst when the idle gap is exceeded.
func (p *Parser) trackBurst(workerID int, pending *PendingImport, endLine int, endTS *time.Time, out *Emitted) {
	s := p.state
	b := s.Bursts[workerID]
	if b != nil {
		exceeded := false
		if b.EndTime != nil && endTS != nil {
			exceeded = endTS.Sub(*b.EndTime) > p.cfg.WorkerIdleGap
		} else {
			exceeded = endLine-b.EndLine > p.cfg.WorkerLineGap
		}
		if exceeded {
			out.Phases = append(out.Phases, burstToPhase(b))
			b = nil
		}
	}
	if b == nil {
		b = &WorkerBurst{
			WorkerID:  workerID,
			StartTime: pending.StartTime,
			StartLine: pending.LineNumber,
		}
		s.Bursts[workerID] = b
	}
	b.ImportCount++
	b.EndLine = endLine
	if endTS != nil {
		b.EndTime = endTS
	}
}

func burstToPhase(b *WorkerBurst) model.WorkerPhase {
	return model.WorkerPhase{
		WorkerID:    b.WorkerID,
		StartTime:   b.StartTime,
		EndTime:     b.EndTime,
		ImportCount: b.ImportCount,
		StartLine:   b.StartLine,
		EndLine:     b.EndLine,
	}
}

// finalizeRefresh converts the buffered refresh block into a record.
// Breakdown fields are best effort; missing ones stay nil.
func (p *Parser) finalizeRefresh(out *Emitted) {
	s := p.state
	buf := s.RefreshBuffer
	s.InRefresh = false
	s.RefreshBuffer = nil
	if len(buf) == 0 {
		return
	}

	rh, ok := pattern.MatchRefreshHeader(buf[0].Text)
	if !ok {
		return
	}
	rec := model.PipelineRefreshRecord{
		LineNumber:       buf[0].LineNumber,
		RefreshID:        rh.ID,
		TotalTimeSeconds: rh.TotalSeconds,
		InitiatedBy:      rh.InitiatedBy,
	}
	for _, bl := range buf[1:] {
		switch {
		case strings.Contains(bl.Text, "Imports: total="):
			if total, actual, ok := pattern.MatchRefreshImports(bl.Text); ok {
				rec.ImportsTotal = &total
				rec.ImportsActual = &actual
			}
		case strings.Contains(bl.Text, "Asset DB Process Time:"):
			if sum, ok := pattern.MatchManagedNative(bl.Text); ok {
				rec.AssetDBProcessMs = &sum
			}
		case strings.Contains(bl.Text, "Asset DB Callback time:"):
			if sum, ok := pattern.MatchManagedNative(bl.Text); ok {
				rec.CallbacksMs = &sum
			}
		case strings.Contains(bl.Text, "Scripting:") && strings.Contains(bl.Text, "domain reload"):
			if sc, ok := pattern.MatchScriptingSummary(bl.Text); ok {
				rec.DomainReloads = &sc.Reloads
				rec.DomainReloadMs = &sc.ReloadMs
				rec.CompileMs = &sc.CompileMs
				rec.OtherMs = &sc.OtherMs
			}
		}
	}
	out.Refreshes = append(out.Refreshes, rec)
}

// finalizeReload converts the buffered reload block into tree steps with
// resolved parent ids. A step's parent is the most recent step one level
// up; opening a step invalidates everything tracked deeper than it.
func (p *Parser) finalizeReload(out *Emitted) {
	s := p.state
	buf := s.ReloadBuffer
	s.InReload = false
	s.ReloadBuffer = nil

	lastAtLevel := make(map[int]int64)
	for _, bl := range buf {
		step, ok := pattern.MatchReloadStep(bl.Text)
		if !ok {
			continue
		}
		id := s.NextStepID
		s.NextStepID++

		var parent *int64
		if step.Indent > 0 {
			if pid, ok := lastAtLevel[step.Indent-1]; ok {
				parent = &pid
			}
		}
		lastAtLevel[step.Indent] = id
		for lvl := range lastAtLevel {
			if lvl > step.Indent {
				delete(lastAtLevel, lvl)
			}
		}

		out.Steps = append(out.Steps, model.DomainReloadStep{
			StepID:      id,
			LineNumber:  bl.LineNumber,
			ParentID:    parent,
			StepName:    step.Name,
			TimeMs:      step.TimeMs,
			IndentLevel: step.Indent,
		})
	}
}

func (p *Parser) emitCacheBlock(out *Emitted, cc pattern.CacheComplete, lineNumber int, lineTS *time.Time) {
	s := p.state
	block := model.CacheServerBlock{
		LineNumber:       lineNumber,
		AssetsRequested:  cc.Requested,
		AssetsDownloaded: cc.Downloaded,
		DurationSeconds:  cc.Seconds,
		EndTime:          lineTS,
	}
	if s.Cache != nil {
		block.LineNumber = s.Cache.LineNumber
		block.StartTime = s.Cache.StartTime
		if s.Cache.Requested > 0 {
			block.AssetsRequested = s.Cache.Requested
		}
		s.Cache = nil
	}
	if block.StartTime == nil && lineTS != nil {
		t := lineTS.Add(-time.Duration(cc.Seconds * float64(time.Second)))
		block.StartTime = &t
	}
	out.CacheBlocks = append(out.CacheBlocks, block)
}

// processTelemetry validates the embedded JSON payload. Malformed payloads
// are logged and dropped, never fatal.
func (p *Parser) processTelemetry(lineNumber int, payload string, out *Emitted) {
	var decoded map[string]interface{}
	if err := sonic.Unmarshal([]byte(payload), &decoded); err != nil {
		util.LogWarn(fmt.Sprintf("Malformed telemetry payload at line %d: %v", lineNumber, err))
		return
	}
	eventType := "Unknown"
	if t, ok := decoded["type"].(string); ok {
		eventType = t
	}
	out.Telemetry = append(out.Telemetry, model.TelemetryRecord{
		LineNumber: lineNumber,
		EventType:  eventType,
		Payload:    payload,
	})
}

func (p *Parser) scanHeader(line string) {
	h := &p.state.Header
	if h.EditorVersion == "" {
		if v, ok := pattern.MatchEditorVersion(line); ok {
			h.EditorVersion = v
		}
	}
	if h.Platform == "" {
		if v, ok := pattern.MatchPlatform(line); ok {
			h.Platform = v
		}
	}
	if h.Architecture == "" {
		if v, ok := pattern.MatchArchitecture(line); ok {
			h.Architecture = v
		}
	}
	if h.ProjectName == "" {
		if v, ok := pattern.MatchProjectPath(line); ok {
			h.ProjectName = path.Base(v)
		}
	}
}

// classifyLine labels one raw line for the viewer store.
func classifyLine(lineNumber int, text string, lineTS *time.Time) model.LogLine {
	indent := 0
	for _, r := range text {
		if r != '\t' {
			break
		}
		indent++
	}

	line := model.LogLine{
		LineNumber:  lineNumber,
		Content:     text,
		LineType:    model.LineTypeNormal,
		IndentLevel: indent,
		Timestamp:   lineTS,
	}

	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "error") || strings.Contains(lower, "exception"):
		line.IsError = true
		line.LineType = model.LineTypeError
	case strings.Contains(lower, "warning"):
		line.IsWarning = true
		line.LineType = model.LineTypeWarning
	case strings.HasPrefix(text, "["):
		line.LineType = model.LineTypeSystem
	case strings.Contains(text, "Start importing"):
		line.LineType = model.LineTypeImport
	case strings.Contains(text, "Asset Pipeline Refresh"):
		line.LineType = model.LineTypePipeline
	case strings.Contains(text, "Domain Reload"):
		line.LineType = model.LineTypeDomainReload
	case strings.Contains(text, "##utp:"):
		line.LineType = model.LineTypeTelemetry
	}
	return line
}

func setSpan(start, end **time.Time, lineTS *time.Time, durationMs float64) {
	if lineTS == nil {
		return
	}
	*end = lineTS
	t := lineTS.Add(-time.Duration(durationMs * float64(time.Millisecond)))
	*start = &t
}
