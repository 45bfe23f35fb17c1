package batch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/wotrcz/wotrtl"
)

// SequenceEntry is one allocation recorded in the sequence log.
type SequenceEntry struct {
	Seq    int       `json:"seq"`
	Reason string    `json:"reason"`
	Parent int       `json:"parent,omitempty"`
	RunID  string    `json:"run_id,omitempty"`
	At     time.Time `json:"at"`
}

// Allocation reasons.
const (
	ReasonPrepare  = "prepare"
	ReasonSplit    = "split"
	ReasonReslice  = "reslice"
	ReasonBackfill = "backfill"
)

// Sequence allocates batch numbers. Numbers are strictly increasing and
// never reused: the next one is one past the highest number logged or
// present on disk.
type Sequence struct {
	ws  *Workspace
	now func() time.Time
}

// NewSequence returns the allocator of ws.
func NewSequence(ws *Workspace) *Sequence {
	return &Sequence{ws: ws, now: time.Now}
}

func (s *Sequence) path() string { return s.ws.Path(SequenceFile) }

// Entries reads the log.
func (s *Sequence) Entries() ([]SequenceEntry, error) {
	f, err := os.Open(s.path())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open sequence log: %w", err)
	}
	defer f.Close()

	var entries []SequenceEntry
	sc := bufio.NewScanner(f)
	for line := 1; sc.Scan(); line++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e SequenceEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, &wotrtl.InputError{Path: s.path(), Message: fmt.Sprintf("malformed line %d", line), Cause: err}
		}
		entries = append(entries, e)
	}
	return entries, sc.Err()
}

// Max returns the highest allocated number, 0 when none.
func (s *Sequence) Max() (int, error) {
	entries, err := s.Entries()
	if err != nil {
		return 0, err
	}
	maxNo, err := s.ws.batchNumbersOnDisk()
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.Seq > maxNo {
			maxNo = e.Seq
		}
	}
	return maxNo, nil
}

// Next allocates and logs a new batch number.
func (s *Sequence) Next(reason string, parent int, runID string) (int, error) {
	maxNo, err := s.Max()
	if err != nil {
		return 0, err
	}
	e := SequenceEntry{Seq: maxNo + 1, Reason: reason, Parent: parent, RunID: runID, At: s.now().UTC()}
	data, err := json.Marshal(e)
	if err != nil {
		return 0, err
	}

	f, err := os.OpenFile(s.path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open sequence log: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return 0, fmt.Errorf("append sequence log: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close sequence log: %w", err)
	}
	return e.Seq, nil
}

// Empty reports whether nothing was ever allocated.
func (s *Sequence) Empty() (bool, error) {
	maxNo, err := s.Max()
	return maxNo == 0, err
}
