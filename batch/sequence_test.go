package batch

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSequence_Next(t *testing.T) {
	ws := NewWorkspace(t.TempDir())
	if err := ws.Ensure(); err != nil {
		t.Fatal(err)
	}
	seq := NewSequence(ws)

	if empty, _ := seq.Empty(); !empty {
		t.Error("new workspace should be empty")
	}

	a, err := seq.Next(ReasonPrepare, 0, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := seq.Next(ReasonSplit, a, "run-1")
	if a != 1 || b != 2 {
		t.Errorf("got %d, %d; want 1, 2", a, b)
	}

	entries, err := seq.Entries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[1].Parent != 1 || entries[1].Reason != ReasonSplit || entries[0].RunID != "run-1" {
		t.Errorf("unexpected entries: %+v", entries)
	}
}

func TestSequence_NeverReusesLegacyNumbers(t *testing.T) {
	ws := NewWorkspace(t.TempDir())
	ws.Ensure()
	os.WriteFile(filepath.Join(ws.Root, TransDir, "req_007.trans.tsv"), []byte("1\tx\n"), 0o644)

	n, err := NewSequence(ws).Next(ReasonBackfill, 0, "")
	if err != nil {
		t.Fatal(err)
	}
	if n != 8 {
		t.Errorf("Next = %d, want 8", n)
	}
}

func TestSequence_MalformedLog(t *testing.T) {
	ws := NewWorkspace(t.TempDir())
	os.WriteFile(ws.Path(SequenceFile), []byte("{not json\n"), 0o644)

	if _, err := NewSequence(ws).Next(ReasonPrepare, 0, ""); err == nil {
		t.Error("expected error for malformed log")
	}
}

func TestState_NormalizeLegacy(t *testing.T) {
	ws := NewWorkspace(t.TempDir())
	ws.Ensure()
	os.WriteFile(ws.StatePath(1), []byte(`{"batch_no": 1, "jsonl": "req_001.jsonl", "status": "prepared"}`), 0o644)
	os.WriteFile(ws.StatePath(2), []byte(`{"batch_no": 2, "jsonl": "req_002.jsonl", "status": "in_progress", "batch_id": "batch_x"}`), 0o644)
	os.WriteFile(ws.StatePath(3), []byte(`{"batch_no": 3, "jsonl": "req_003.jsonl", "status": "expired", "batch_id": "batch_y"}`), 0o644)

	states, err := ws.States()
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 3 {
		t.Fatalf("expected 3 states, got %d", len(states))
	}
	if states[0].Status != StatusPending {
		t.Errorf("prepared -> %s", states[0].Status)
	}
	if states[1].Status != StatusSubmitted || states[1].JobStatus != "in_progress" {
		t.Errorf("in_progress -> %+v", states[1])
	}
	if states[2].Status != StatusFailed || states[2].JobStatus != "expired" {
		t.Errorf("expired -> %+v", states[2])
	}
}
