package wotrtl

import (
	"context"
	"strings"
)

// Row is one source entry addressed by its stable index.
type Row struct {
	Idx  int    // 1-based position in the source document
	GUID string // Stable key of the entry
	Text string // Source (original-language) text
}

// Entry is a keyed text value of a translation document.
type Entry struct {
	Key  string
	Text string
}

// CompletionRequest is a single chat request sent to the translation API.
type CompletionRequest struct {
	CustomID string // Caller-assigned identifier, echoed back in results
	Model    string
	System   string // System message (translation rules)
	User     string // User message (header + TSV block)
}

// AIProvider is the interface for synchronous translation backends.
type AIProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// BatchProvider is the interface for asynchronous batch backends.
type BatchProvider interface {
	// SubmitBatch uploads a JSONL request file and creates a job for it.
	SubmitBatch(ctx context.Context, name string, jsonl []byte) (Job, error)
	// RetrieveBatch returns the current state of a job.
	RetrieveBatch(ctx context.Context, id string) (Job, error)
	// CancelBatch asks the backend to stop a job.
	CancelBatch(ctx context.Context, id string) error
	// DownloadFile returns the content of an output or error file.
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// Job statuses reported by batch backends.
const (
	JobValidating = "validating"
	JobInProgress = "in_progress"
	JobFinalizing = "finalizing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
	JobExpired    = "expired"
	JobCancelling = "cancelling"
	JobCancelled  = "cancelled"
)

// Job is a snapshot of a batch job.
type Job struct {
	ID           string
	Status       string
	Total        int
	Completed    int
	Failed       int
	OutputFileID string
	ErrorFileID  string
	Errors       []string // Error codes and messages reported for the job
}

// Terminal reports whether the job will not change status anymore.
func (j Job) Terminal() bool {
	switch j.Status {
	case JobCompleted, JobFailed, JobExpired, JobCancelling, JobCancelled:
		return true
	}
	return false
}

// Processed is the number of requests the backend has finished, successfully or not.
func (j Job) Processed() int {
	return j.Completed + j.Failed
}

// HasError reports whether any job error mentions code.
func (j Job) HasError(code string) bool {
	for _, e := range j.Errors {
		if strings.Contains(e, code) {
			return true
		}
	}
	return false
}

// TranslationCache is the interface for response caching.
type TranslationCache interface {
	Get(key string) (string, bool)
	Set(key string, value string) error
}
