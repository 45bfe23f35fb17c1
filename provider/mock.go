package provider

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/wotrcz/wotrtl"
)

// MockProvider is a mock backend for tests. It answers every block line
// with a canned translation and runs batch jobs in memory.
type MockProvider struct {
	Translations map[string]string // Map of source text to translation
	FailIDs      map[string]error  // Requests failing with the given error, by custom id
	DropLast     bool              // Leave the last line of every block unanswered
	CallCount    int               // Number of times Complete was called
	LastRequest  *CompletionRequest

	// OnRetrieve, if set, may rewrite a job before RetrieveBatch returns it.
	OnRetrieve func(job *wotrtl.Job)

	Submitted []string // Names of submitted batch files
	Cancelled []string // Ids of cancelled jobs

	mu     sync.Mutex
	jobs   map[string]*mockJob
	files  map[string][]byte
	nextID int
}

type mockJob struct {
	job   wotrtl.Job
	input []byte
}

// NewMockProvider creates a new mock provider with a few default translations.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Translations: map[string]string{
			"Hello":       "Ahoj",
			"World":       "Světe",
			"Hello World": "Ahoj světe",
			"Sword":       "Meč",
		},
		FailIDs: map[string]error{},
		jobs:    map[string]*mockJob{},
		files:   map[string][]byte{},
	}
}

// Complete answers each "idx<TAB>text" line of the user message.
func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastRequest = &req
	failErr := m.FailIDs[req.CustomID]
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if failErr != nil {
		return "", failErr
	}
	return m.answer(req), nil
}

func (m *MockProvider) answer(req CompletionRequest) string {
	var lines []string
	for _, line := range strings.Split(req.User, "\n") {
		idx, text, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		if _, err := strconv.Atoi(strings.TrimSpace(idx)); err != nil {
			continue
		}
		m.mu.Lock()
		tr, known := m.Translations[text]
		m.mu.Unlock()
		if !known {
			tr = fmt.Sprintf("[%s]", text)
		}
		lines = append(lines, strings.TrimSpace(idx)+"\t"+tr)
	}
	if m.DropLast && len(lines) > 0 {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n") + "\n"
}

// SubmitBatch stores the job; it completes on the first RetrieveBatch.
func (m *MockProvider) SubmitBatch(ctx context.Context, name string, jsonl []byte) (wotrtl.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := fmt.Sprintf("batch_%03d", m.nextID)
	total := bytes.Count(bytes.TrimSpace(jsonl), []byte("\n")) + 1
	j := &mockJob{
		job:   wotrtl.Job{ID: id, Status: wotrtl.JobValidating, Total: total},
		input: append([]byte(nil), jsonl...),
	}
	m.jobs[id] = j
	m.Submitted = append(m.Submitted, name)
	return j.job, nil
}

// RetrieveBatch runs a pending job to completion and returns its state.
func (m *MockProvider) RetrieveBatch(ctx context.Context, id string) (wotrtl.Job, error) {
	m.mu.Lock()
	j, ok := m.jobs[id]
	m.mu.Unlock()
	if !ok {
		return wotrtl.Job{}, &wotrtl.ProviderError{Message: "no such batch " + id}
	}

	if !j.job.Terminal() {
		m.run(ctx, j)
	}

	job := j.job
	if m.OnRetrieve != nil {
		m.OnRetrieve(&job)
		m.mu.Lock()
		j.job = job
		m.mu.Unlock()
	}
	return job, nil
}

func (m *MockProvider) run(ctx context.Context, j *mockJob) {
	var out, errs bytes.Buffer
	completed, failed := 0, 0
	for _, line := range bytes.Split(j.input, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		req, err := ParseBatchLine(line)
		if err == nil {
			var text string
			text, err = m.Complete(ctx, req)
			if err == nil {
				out.Write(ResultLine(req.CustomID, text))
				out.WriteByte('\n')
				completed++
				continue
			}
		}
		errs.Write(ErrorLine(req.CustomID, err))
		errs.WriteByte('\n')
		failed++
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	j.job.Status = wotrtl.JobCompleted
	j.job.Completed = completed
	j.job.Failed = failed
	if out.Len() > 0 {
		j.job.OutputFileID = "file_out_" + j.job.ID
		m.files[j.job.OutputFileID] = out.Bytes()
	}
	if errs.Len() > 0 {
		j.job.ErrorFileID = "file_err_" + j.job.ID
		m.files[j.job.ErrorFileID] = errs.Bytes()
	}
}

// CancelBatch marks a job cancelled.
func (m *MockProvider) CancelBatch(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return &wotrtl.ProviderError{Message: "no such batch " + id}
	}
	j.job.Status = wotrtl.JobCancelled
	m.Cancelled = append(m.Cancelled, id)
	return nil
}

// DownloadFile returns a stored output or error file.
func (m *MockProvider) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[fileID]
	if !ok {
		return nil, &wotrtl.ProviderError{Message: "no such file " + fileID}
	}
	return data, nil
}

// SetFile stores a file, e.g. a prepared output for a job rewritten by OnRetrieve.
func (m *MockProvider) SetFile(fileID string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[fileID] = data
}

// Reset resets the call count and last request.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCount = 0
	m.LastRequest = nil
}

var (
	_ AIProvider    = (*MockProvider)(nil)
	_ BatchProvider = (*MockProvider)(nil)
)
