package batch

import (
	"context"
	"errors"
	"os"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wotrcz/wotrtl"
	"github.com/wotrcz/wotrtl/catalog"
	"github.com/wotrcz/wotrtl/provider"
)

func TestRun_BatchMode(t *testing.T) {
	mock := provider.NewMockProvider()
	o := preparedWorkspace(t, mock)
	ctx := context.Background()

	res, err := o.Run(ctx, ModeBatch, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !reflect.DeepEqual(res.Submitted, []int{1}) {
		t.Errorf("Submitted = %v", res.Submitted)
	}
	st := mustState(t, o, 1)
	if st.Status != StatusSubmitted || st.BatchID == "" || st.Attempts != 1 || st.Mode != ModeBatch {
		t.Errorf("unexpected state after submit: %+v", st)
	}

	res, err = o.Run(ctx, ModeBatch, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Completed, []int{1}) {
		t.Errorf("Completed = %v", res.Completed)
	}
	trans, err := catalog.ReadTrans(o.ws.TransPath(1))
	if err != nil {
		t.Fatal(err)
	}
	want := map[int]string{1: "Ahoj", 2: "Světe", 3: "Meč", 4: "[Shield]", 5: "[Potion]"}
	if !reflect.DeepEqual(trans, want) {
		t.Errorf("trans = %v", trans)
	}
	if !catalog.NonEmpty(o.ws.ResultPath(1)) {
		t.Error("batch output should be kept in results/")
	}

	res, _ = o.Run(ctx, ModeBatch, nil)
	if len(res.Submitted)+len(res.Completed) != 0 || len(mock.Submitted) != 1 {
		t.Error("completed batches must not be resubmitted")
	}
}

func TestRun_SyncMode(t *testing.T) {
	mock := provider.NewMockProvider()
	var mu sync.Mutex
	var progress []Progress
	o := preparedWorkspace(t, mock, func(opts *Options) {
		opts.OnProgress = func(p Progress) {
			mu.Lock()
			progress = append(progress, p)
			mu.Unlock()
		}
	})

	res, err := o.Run(context.Background(), ModeSync, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !reflect.DeepEqual(res.Completed, []int{1}) {
		t.Errorf("Completed = %v", res.Completed)
	}
	if mock.CallCount != 3 {
		t.Errorf("CallCount = %d, want 3", mock.CallCount)
	}
	if len(progress) != 3 || progress[2].Done != 3 || progress[2].Total != 3 {
		t.Errorf("unexpected progress: %+v", progress)
	}
	if lines := nonBlankLines(readFile(t, o.ws.SyncResultPath(1))); len(lines) != 3 {
		t.Errorf("sync results: %d lines", len(lines))
	}
	st := mustState(t, o, 1)
	if st.Status != StatusCompleted || st.Mode != ModeSync {
		t.Errorf("unexpected state: %+v", st)
	}
}

func TestRun_SyncResumesAnsweredRequests(t *testing.T) {
	mock := provider.NewMockProvider()
	o := preparedWorkspace(t, mock)

	answered := string(provider.ResultLine("prep_000001", "1\tAhoj\n2\tSvěte")) + "\n"
	if err := os.WriteFile(o.ws.SyncResultPath(1), []byte(answered), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := o.Run(context.Background(), ModeSync, nil); err != nil {
		t.Fatal(err)
	}
	if mock.CallCount != 2 {
		t.Errorf("CallCount = %d, want 2", mock.CallCount)
	}
	trans, _ := catalog.ReadTrans(o.ws.TransPath(1))
	if len(trans) != 5 {
		t.Errorf("trans = %v", trans)
	}
}

func TestRun_SyncFailureThenRetry(t *testing.T) {
	mock := provider.NewMockProvider()
	mock.FailIDs["prep_000002"] = &wotrtl.ProviderError{Message: "bad request"}
	o := preparedWorkspace(t, mock)
	ctx := context.Background()

	res, err := o.Run(ctx, ModeSync, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Failed, []int{1}) {
		t.Errorf("Failed = %v", res.Failed)
	}
	st := mustState(t, o, 1)
	if st.Status != StatusFailed || !strings.Contains(st.LastError, "bad request") {
		t.Errorf("unexpected state: %+v", st)
	}
	if catalog.Exists(o.ws.TransPath(1)) {
		t.Error("failed batch must not have a trans file")
	}

	delete(mock.FailIDs, "prep_000002")
	mock.Reset()
	res, err = o.Run(ctx, ModeSync, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Completed, []int{1}) || mock.CallCount != 1 {
		t.Errorf("Completed = %v, calls = %d", res.Completed, mock.CallCount)
	}
	if st := mustState(t, o, 1); st.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", st.Attempts)
	}
}

func TestRun_SyncKeepsPartialAnswers(t *testing.T) {
	mock := provider.NewMockProvider()
	mock.DropLast = true
	o := preparedWorkspace(t, mock)

	res, err := o.Run(context.Background(), ModeSync, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Completed, []int{1}) {
		t.Fatalf("Completed = %v, Failed = %v", res.Completed, res.Failed)
	}
	// each request was retried once; rows 2 and 4 were never answered
	if mock.CallCount != 6 {
		t.Errorf("CallCount = %d, want 6", mock.CallCount)
	}
	trans, _ := catalog.ReadTrans(o.ws.TransPath(1))
	if !reflect.DeepEqual(trans, map[int]string{1: "Ahoj", 3: "Meč"}) {
		t.Errorf("trans = %v", trans)
	}
}

func TestRun_SyncPollsSubmittedJob(t *testing.T) {
	mock := provider.NewMockProvider()
	o := preparedWorkspace(t, mock)
	ctx := context.Background()

	if _, err := o.Run(ctx, ModeBatch, nil); err != nil {
		t.Fatal(err)
	}
	res, err := o.Run(ctx, ModeSync, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Completed, []int{1}) {
		t.Errorf("Completed = %v", res.Completed)
	}
	if mock.CallCount != 3 {
		t.Errorf("job should answer all 3 requests, calls = %d", mock.CallCount)
	}
}

func TestRun_MassFailureSplits(t *testing.T) {
	mock := provider.NewMockProvider()
	mock.OnRetrieve = func(job *wotrtl.Job) {
		if job.ID == "batch_001" {
			job.Status = wotrtl.JobInProgress
			job.Total, job.Completed, job.Failed = 30, 0, 25
		}
	}
	o := preparedWorkspace(t, mock)
	ctx := context.Background()

	if _, err := o.Run(ctx, ModeBatch, nil); err != nil {
		t.Fatal(err)
	}
	res, err := o.Run(ctx, ModeBatch, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Split, []int{1}) {
		t.Errorf("Split = %v", res.Split)
	}
	if !reflect.DeepEqual(res.Submitted, []int{2, 3}) {
		t.Errorf("children should be submitted next, got %v", res.Submitted)
	}
	if !reflect.DeepEqual(mock.Cancelled, []string{"batch_001"}) {
		t.Errorf("Cancelled = %v", mock.Cancelled)
	}

	if st := mustState(t, o, 1); st.Status != StatusReplaced {
		t.Errorf("parent status = %s", st.Status)
	}
	child := mustState(t, o, 2)
	if child.Parent != 1 || child.Reason != ReasonSplit {
		t.Errorf("unexpected child: %+v", child)
	}
	if ids := customIDs(t, o.ws.RequestPath(2)); !reflect.DeepEqual(ids, []string{"sp001_1_000001", "sp001_1_000002"}) {
		t.Errorf("child ids = %v", ids)
	}
	if ids := customIDs(t, o.ws.RequestPath(3)); !reflect.DeepEqual(ids, []string{"sp001_2_000001"}) {
		t.Errorf("child ids = %v", ids)
	}
}

func TestRun_TokenLimitSplits(t *testing.T) {
	mock := provider.NewMockProvider()
	mock.OnRetrieve = func(job *wotrtl.Job) {
		if job.ID == "batch_001" {
			job.Status = wotrtl.JobFailed
			job.Errors = []string{"token_limit_exceeded: enqueued token limit reached"}
		}
	}
	o := preparedWorkspace(t, mock)
	ctx := context.Background()

	o.Run(ctx, ModeBatch, nil)
	res, err := o.Run(ctx, ModeSync, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Split, []int{1}) {
		t.Errorf("Split = %v", res.Split)
	}
	if !reflect.DeepEqual(res.Completed, []int{2, 3}) {
		t.Errorf("Completed = %v", res.Completed)
	}
	if len(mock.Cancelled) != 0 {
		t.Error("terminal jobs are not cancelled")
	}
}

func TestRun_MaxAttempts(t *testing.T) {
	mock := provider.NewMockProvider()
	mock.OnRetrieve = func(job *wotrtl.Job) {
		job.Status = wotrtl.JobExpired
	}
	o := preparedWorkspace(t, mock, func(opts *Options) { opts.MaxAttempts = 1 })
	ctx := context.Background()

	o.Run(ctx, ModeBatch, nil)
	res, _ := o.Run(ctx, ModeBatch, nil)
	if !reflect.DeepEqual(res.Failed, []int{1}) {
		t.Errorf("Failed = %v", res.Failed)
	}
	if st := mustState(t, o, 1); !strings.Contains(st.LastError, "expired") {
		t.Errorf("LastError = %q", st.LastError)
	}

	res, _ = o.Run(ctx, ModeBatch, nil)
	if !reflect.DeepEqual(res.Skipped, []int{1}) || len(mock.Submitted) != 1 {
		t.Errorf("Skipped = %v, submitted = %v", res.Skipped, mock.Submitted)
	}
}

func TestRun_PollTimeoutCancels(t *testing.T) {
	mock := provider.NewMockProvider()
	mock.OnRetrieve = func(job *wotrtl.Job) {
		job.Status = wotrtl.JobInProgress
		job.Completed, job.Failed = 1, 0
	}
	o := preparedWorkspace(t, mock, func(opts *Options) { opts.Timeout = time.Nanosecond })
	ctx := context.Background()

	o.Run(ctx, ModeBatch, nil)
	res, err := o.Run(ctx, ModeSync, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Failed, []int{1}) || len(mock.Cancelled) != 1 {
		t.Errorf("Failed = %v, cancelled = %v", res.Failed, mock.Cancelled)
	}
}

func TestRun_ExistingTransMarksCompleted(t *testing.T) {
	mock := provider.NewMockProvider()
	o := preparedWorkspace(t, mock)
	catalog.WriteTrans(o.ws.TransPath(1), map[int]string{1: "Ahoj"})

	res, err := o.Run(context.Background(), ModeSync, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Completed, []int{1}) || mock.CallCount != 0 {
		t.Errorf("Completed = %v, calls = %d", res.Completed, mock.CallCount)
	}
}

func TestRun_DryRunChangesNothing(t *testing.T) {
	mock := provider.NewMockProvider()
	o := preparedWorkspace(t, mock)
	o.opts.DryRun = true
	before := readFile(t, o.ws.StatePath(1))

	for _, mode := range []string{ModeBatch, ModeSync} {
		if _, err := o.Run(context.Background(), mode, nil); err != nil {
			t.Fatal(err)
		}
	}
	if len(mock.Submitted) != 0 || mock.CallCount != 0 {
		t.Error("dry run must not call the API")
	}
	if readFile(t, o.ws.StatePath(1)) != before {
		t.Error("dry run changed the state file")
	}
}

func TestRun_Selection(t *testing.T) {
	mock := provider.NewMockProvider()
	o := preparedWorkspace(t, mock, func(opts *Options) { opts.BatchBudgetTokens = 300 })

	res, err := o.Run(context.Background(), ModeBatch, []int{2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Submitted, []int{2, 3}) {
		t.Errorf("Submitted = %v", res.Submitted)
	}
}

func TestRun_Errors(t *testing.T) {
	o := New(t.TempDir(), provider.NewMockProvider(), testOptions())
	ctx := context.Background()

	if _, err := o.Run(ctx, "fast", nil); err == nil {
		t.Error("expected error for unknown mode")
	}
	var ierr *wotrtl.InputError
	if _, err := o.Run(ctx, ModeBatch, nil); !errors.As(err, &ierr) {
		t.Errorf("expected InputError for unprepared workspace, got %v", err)
	}
	var perr *wotrtl.ProviderError
	if _, err := New(t.TempDir(), nil, testOptions()).Run(ctx, ModeBatch, nil); !errors.As(err, &perr) {
		t.Errorf("expected ProviderError without backend, got %v", err)
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	o := preparedWorkspace(t, provider.NewMockProvider())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := o.Run(ctx, ModeSync, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestStatus(t *testing.T) {
	o := preparedWorkspace(t, provider.NewMockProvider(), func(opts *Options) { opts.BatchBudgetTokens = 300 })
	o.Run(context.Background(), ModeBatch, []int{1})

	r, err := o.Status()
	if err != nil {
		t.Fatal(err)
	}
	if r.Counts[StatusSubmitted] != 1 || r.Counts[StatusPending] != 2 || len(r.Batches) != 3 {
		t.Errorf("unexpected status: %+v", r.Counts)
	}
}

// flakyBackend fails the first calls of each Batch API operation.
type flakyBackend struct {
	*provider.MockProvider
	mu         sync.Mutex
	submitErrs []error
	dlErrs     []error
}

func (f *flakyBackend) next(errs *[]error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (f *flakyBackend) SubmitBatch(ctx context.Context, name string, jsonl []byte) (wotrtl.Job, error) {
	if err := f.next(&f.submitErrs); err != nil {
		return wotrtl.Job{}, err
	}
	return f.MockProvider.SubmitBatch(ctx, name, jsonl)
}

func (f *flakyBackend) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	if err := f.next(&f.dlErrs); err != nil {
		return nil, err
	}
	return f.MockProvider.DownloadFile(ctx, fileID)
}

func unavailable() error {
	return &wotrtl.ProviderError{Message: "503 service unavailable", Retryable: true}
}

func TestRun_BatchAPIRetriesTransientErrors(t *testing.T) {
	backend := &flakyBackend{
		MockProvider: provider.NewMockProvider(),
		submitErrs:   []error{unavailable()},
		dlErrs:       []error{unavailable()},
	}
	o := preparedWorkspace(t, backend)
	ctx := context.Background()

	res, err := o.Run(ctx, ModeBatch, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Submitted, []int{1}) || len(res.Failed) != 0 {
		t.Fatalf("Submitted = %v, Failed = %v", res.Submitted, res.Failed)
	}
	if st := mustState(t, o, 1); st.Attempts != 1 || st.LastError != "" {
		t.Errorf("unexpected state: %+v", st)
	}

	res, err = o.Run(ctx, ModeBatch, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Completed, []int{1}) {
		t.Errorf("Completed = %v, Failed = %v", res.Completed, res.Failed)
	}
}

func TestRun_BatchAPIGivesUpAfterRetries(t *testing.T) {
	backend := &flakyBackend{
		MockProvider: provider.NewMockProvider(),
		submitErrs:   []error{unavailable(), unavailable()},
	}
	o := preparedWorkspace(t, backend)

	res, err := o.Run(context.Background(), ModeBatch, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Failed, []int{1}) {
		t.Fatalf("Failed = %v", res.Failed)
	}
	if st := mustState(t, o, 1); st.Status != StatusFailed || !strings.Contains(st.LastError, "503") {
		t.Errorf("unexpected state: %+v", st)
	}
	if len(backend.Submitted) != 0 {
		t.Errorf("submitted = %v", backend.Submitted)
	}
}

func TestRun_BatchAPIPacedByRequestsPerMinute(t *testing.T) {
	mock := provider.NewMockProvider()
	o := preparedWorkspace(t, mock, func(opts *Options) {
		opts.BatchBudgetTokens = 300
		opts.RequestsPerMinute = 2
	})
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	res, err := o.Run(ctx, ModeBatch, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the third upload to wait, got %v", err)
	}
	if !reflect.DeepEqual(res.Submitted, []int{1, 2}) || len(mock.Submitted) != 2 {
		t.Errorf("Submitted = %v", res.Submitted)
	}
	if st := mustState(t, o, 3); st.Status != StatusPending || st.Attempts != 0 {
		t.Errorf("throttled batch state: %+v", st)
	}
}
