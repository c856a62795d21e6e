package parse

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"editortrace/internal/core/model"
)

// BufferedLine is one line held while a multi-line block is open.
type BufferedLine struct {
	LineNumber int    `json:"line_number"`
	Text       string `json:"text"`
}

// PendingImport is an import start whose completion has not arrived yet.
// Importer stays empty until an annotation line resolves it.
type PendingImport struct {
	Path       string     `json:"path"`
	GUID       string     `json:"guid"`
	Importer   string     `json:"importer,omitempty"`
	LineNumber int        `json:"line_number"`
	StartTime  *time.Time `json:"start_time,omitempty"`
}

// WorkerBurst tracks one still-open run of import activity on a worker.
type WorkerBurst struct {
	WorkerID    int        `json:"worker_id"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	ImportCount int        `json:"import_count"`
	StartLine   int        `json:"start_line"`
	EndLine     int        `json:"end_line"`
}

// CachePending is an open remote-cache download block awaiting its
// completion line.
type CachePending struct {
	LineNumber int        `json:"line_number"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	Requested  int        `json:"requested"`
}

// State is the complete carried parser state. It is a plain serializable
// value so ingestion can snapshot it between line chunks and resume later.
type State struct {
	Header        model.HeaderInfo       `json:"header"`
	Workers       map[int]*PendingImport `json:"workers,omitempty"`
	Pending       []*PendingImport       `json:"pending,omitempty"`
	InRefresh     bool                   `json:"in_refresh,omitempty"`
	RefreshBuffer []BufferedLine         `json:"refresh_buffer,omitempty"`
	InReload      bool                   `json:"in_reload,omitempty"`
	ReloadBuffer  []BufferedLine         `json:"reload_buffer,omitempty"`
	NextStepID    int64                  `json:"next_step_id"`
	Bursts        map[int]*WorkerBurst   `json:"bursts,omitempty"`
	Cache         *CachePending          `json:"cache,omitempty"`
}

// NewState returns an empty parser state.
func NewState() *State {
	return &State{
		Workers:    make(map[int]*PendingImport),
		Bursts:     make(map[int]*WorkerBurst),
		NextStepID: 1,
	}
}

// Snapshot serializes the state for resumable ingestion.
func (s *State) Snapshot() ([]byte, error) {
	data, err := sonic.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("snapshot parser state: %w", err)
	}
	return data, nil
}

// RestoreState rebuilds a state from a snapshot produced by Snapshot.
func RestoreState(data []byte) (*State, error) {
	s := NewState()
	if err := sonic.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("restore parser state: %w", err)
	}
	if s.Workers == nil {
		s.Workers = make(map[int]*PendingImport)
	}
	if s.Bursts == nil {
		s.Bursts = make(map[int]*WorkerBurst)
	}
	if s.NextStepID < 1 {
		s.NextStepID = 1
	}
	return s, nil
}
