package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/wotrcz/wotrtl"
	"github.com/wotrcz/wotrtl/catalog"
)

// Batch statuses.
const (
	StatusPending   = "pending"
	StatusSubmitted = "submitted"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusReplaced  = "replaced"
)

// Modes record how a batch was (or is being) processed.
const (
	ModeBatch = "batch"
	ModeSync  = "sync"
)

// State is the persisted record of one batch.
type State struct {
	BatchNo   int    `json:"batch_no"`
	JSONL     string `json:"jsonl"`
	Status    string `json:"status"`
	BatchID   string `json:"batch_id,omitempty"`
	JobStatus string `json:"job_status,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Attempts  int    `json:"attempts,omitempty"`
	LastError string `json:"last_error,omitempty"`
	Parent    int    `json:"parent,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Overwrite bool   `json:"overwrite,omitempty"`
	RunID     string `json:"run_id,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Done reports whether the batch needs no further processing.
func (s *State) Done() bool {
	return s.Status == StatusCompleted || s.Status == StatusReplaced
}

// normalize maps older records onto the current status set: "prepared"
// is pending, and raw job statuses written at submit time are submitted
// (or failed when terminal).
func (s *State) normalize() {
	switch st := strings.ToLower(strings.TrimSpace(s.Status)); st {
	case "", "prepared", StatusPending:
		s.Status = StatusPending
	case StatusSubmitted, StatusCompleted, StatusFailed, StatusReplaced:
		s.Status = st
	case wotrtl.JobValidating, wotrtl.JobInProgress, wotrtl.JobFinalizing, wotrtl.JobCancelling:
		s.Status = StatusSubmitted
		if s.JobStatus == "" {
			s.JobStatus = st
		}
	default:
		s.Status = StatusFailed
		if s.JobStatus == "" {
			s.JobStatus = st
		}
	}
	if s.Status == StatusSubmitted && s.BatchID == "" {
		s.Status = StatusPending
	}
}

// LoadState reads the state record of batch n.
func (w *Workspace) LoadState(n int) (*State, error) {
	return loadStateFile(w.StatePath(n))
}

func loadStateFile(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, &wotrtl.InputError{Path: path, Message: "malformed state file", Cause: err}
	}
	s.normalize()
	return &s, nil
}

// SaveState writes s atomically.
func (w *Workspace) SaveState(s *State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return catalog.WriteFileAtomic(w.StatePath(s.BatchNo), append(data, '\n'))
}

// States loads every state record, ordered by batch number.
func (w *Workspace) States() ([]*State, error) {
	entries, err := os.ReadDir(w.Path(StatesDir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}

	var states []*State
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".state.json") || batchFileRx.FindString(e.Name()) == "" {
			continue
		}
		s, err := loadStateFile(w.Path(StatesDir, e.Name()))
		if err != nil {
			return nil, err
		}
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].BatchNo < states[j].BatchNo })
	return states, nil
}
