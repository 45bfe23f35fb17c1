// Package batch orchestrates the translation of a catalog through the
// Batch API or synchronous chat completions. All state lives in a
// workspace directory, so every command can be interrupted and resumed.
package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

// Workspace sub-directories.
const (
	RequestsDir = "requests"
	StatesDir   = "states"
	ResultsDir  = "results"
	TransDir    = "trans"
	LogsDir     = "logs"
	AuditDir    = "audit"
)

// Workspace file names.
const (
	PlanFile     = "plan.json"
	ManifestFile = "manifest.json"
	SequenceFile = "sequence.log"
	StatusLog    = "status_log.txt"
)

var batchFileRx = regexp.MustCompile(`^req_(\d+)\.`)

// Workspace resolves the paths of one output directory.
type Workspace struct {
	Root string
}

// NewWorkspace returns the workspace rooted at root.
func NewWorkspace(root string) *Workspace {
	return &Workspace{Root: root}
}

// Ensure creates the workspace folders.
func (w *Workspace) Ensure() error {
	for _, d := range []string{RequestsDir, StatesDir, ResultsDir, TransDir, LogsDir, AuditDir} {
		if err := os.MkdirAll(filepath.Join(w.Root, d), 0o755); err != nil {
			return fmt.Errorf("create workspace: %w", err)
		}
	}
	return nil
}

// Path joins elem onto the workspace root.
func (w *Workspace) Path(elem ...string) string {
	return filepath.Join(append([]string{w.Root}, elem...)...)
}

// RequestName is the JSONL file name of batch n.
func RequestName(n int) string { return fmt.Sprintf("req_%03d.jsonl", n) }

func (w *Workspace) RequestPath(n int) string { return w.Path(RequestsDir, RequestName(n)) }

func (w *Workspace) StatePath(n int) string {
	return w.Path(StatesDir, fmt.Sprintf("req_%03d.state.json", n))
}

// ResultPath holds the downloaded Batch API output of batch n.
func (w *Workspace) ResultPath(n int) string {
	return w.Path(ResultsDir, fmt.Sprintf("req_%03d.jsonl", n))
}

// ErrorPath holds the downloaded Batch API error file of batch n.
func (w *Workspace) ErrorPath(n int) string {
	return w.Path(ResultsDir, fmt.Sprintf("req_%03d.errors.jsonl", n))
}

// SyncResultPath holds the answers of batch n sent synchronously.
func (w *Workspace) SyncResultPath(n int) string {
	return w.Path(ResultsDir, fmt.Sprintf("req_%03d.sync.jsonl", n))
}

func (w *Workspace) TransPath(n int) string {
	return w.Path(TransDir, fmt.Sprintf("req_%03d.trans.tsv", n))
}

func (w *Workspace) LogPath() string { return w.Path(LogsDir, StatusLog) }

// batchNumbersOnDisk returns the highest batch number found among the
// files of the state, request, result and trans folders.
func (w *Workspace) batchNumbersOnDisk() (int, error) {
	maxNo := 0
	for _, d := range []string{StatesDir, RequestsDir, ResultsDir, TransDir} {
		entries, err := os.ReadDir(w.Path(d))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("scan %s: %w", d, err)
		}
		for _, e := range entries {
			m := batchFileRx.FindStringSubmatch(e.Name())
			if m == nil {
				continue
			}
			if n, err := strconv.Atoi(m[1]); err == nil && n > maxNo {
				maxNo = n
			}
		}
	}
	return maxNo, nil
}
