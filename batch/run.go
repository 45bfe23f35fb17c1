package batch

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/wotrcz/wotrtl"
	"github.com/wotrcz/wotrtl/catalog"
	"github.com/wotrcz/wotrtl/provider"
	"go.uber.org/zap"
)

// RunResult lists the batch numbers touched by Run, by outcome.
type RunResult struct {
	Submitted []int // Uploaded and created as Batch API jobs
	Completed []int // Translations written to trans/
	Failed    []int
	Split     []int // Replaced by two halves after a mass failure or token limit
	Pending   []int // Jobs still running (batch mode)
	Skipped   []int // Failed too many times
}

// Run processes the selected batches (all when selection is empty) that
// are not completed or replaced. In ModeBatch it submits new jobs and
// checks running ones once; in ModeSync it blocks until every selected
// batch is finished, polling running jobs and sending the others request
// by request. Batches created by an auto-split are processed next, even
// when not selected.
func (o *Orchestrator) Run(ctx context.Context, mode string, selection []int) (*RunResult, error) {
	if mode != ModeBatch && mode != ModeSync {
		return nil, fmt.Errorf("unknown run mode %q", mode)
	}
	if o.backend == nil && !o.opts.DryRun {
		return nil, &wotrtl.ProviderError{Message: "no provider configured"}
	}

	states, err := o.ws.States()
	if err != nil {
		return nil, err
	}
	if len(states) == 0 {
		return nil, &wotrtl.InputError{Path: o.ws.Root, Message: "workspace has no batches, run prepare first"}
	}

	selected := make(map[int]bool, len(selection))
	for _, n := range selection {
		selected[n] = true
	}
	var queue []*State
	for _, s := range states {
		if len(selected) > 0 && !selected[s.BatchNo] {
			continue
		}
		if s.Done() {
			continue
		}
		queue = append(queue, s)
	}

	res := &RunResult{}
	if len(queue) == 0 {
		o.log.Info("nothing to process")
		return res, nil
	}

	start := o.now()
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		st := queue[0]
		queue = queue[1:]

		children, err := o.process(ctx, mode, st, res)
		if err != nil {
			return res, err
		}
		queue = append(children, queue...)
	}

	o.log.Info("run finished",
		zap.String("mode", mode),
		zap.Int("submitted", len(res.Submitted)),
		zap.Int("completed", len(res.Completed)),
		zap.Int("failed", len(res.Failed)),
		zap.Int("split", len(res.Split)),
		zap.Int("pending", len(res.Pending)),
		zap.Duration("elapsed", o.now().Sub(start)))
	return res, nil
}

func (o *Orchestrator) process(ctx context.Context, mode string, st *State, res *RunResult) ([]*State, error) {
	if catalog.NonEmpty(o.ws.TransPath(st.BatchNo)) {
		o.log.Info("translations already present, marking completed", zap.Int("batch", st.BatchNo))
		res.Completed = append(res.Completed, st.BatchNo)
		if o.opts.DryRun {
			return nil, nil
		}
		st.Status = StatusCompleted
		return nil, o.saveState(st)
	}

	if st.Status == StatusFailed {
		if o.opts.MaxAttempts > 0 && st.Attempts >= o.opts.MaxAttempts {
			o.log.Warn("attempts exhausted, skipping",
				zap.Int("batch", st.BatchNo),
				zap.Int("attempts", st.Attempts),
				zap.String("last_error", st.LastError))
			res.Skipped = append(res.Skipped, st.BatchNo)
			return nil, nil
		}
		// Failed jobs are never resumed, a retry starts a new one.
		st.BatchID, st.JobStatus = "", ""
	}

	if st.BatchID == "" {
		if mode == ModeSync {
			return nil, o.runSync(ctx, st, res)
		}
		return nil, o.submit(ctx, st, res)
	}

	if o.opts.DryRun {
		o.log.Info("dry run: would check job", zap.Int("batch", st.BatchNo), zap.String("job", st.BatchID))
		return nil, nil
	}
	if mode == ModeSync {
		return o.poll(ctx, st, res)
	}
	return o.check(ctx, st, res)
}

func (o *Orchestrator) requestPath(st *State) string {
	name := st.JSONL
	if name == "" {
		name = RequestName(st.BatchNo)
	}
	return o.ws.Path(RequestsDir, name)
}

func (o *Orchestrator) submit(ctx context.Context, st *State, res *RunResult) error {
	path := o.requestPath(st)
	data, err := os.ReadFile(path)
	if err != nil {
		return &wotrtl.InputError{Path: path, Message: "cannot read request file", Cause: err}
	}
	if o.opts.DryRun {
		o.log.Info("dry run: would submit batch", zap.Int("batch", st.BatchNo), zap.Int("bytes", len(data)))
		return nil
	}

	job, err := o.api.submit(ctx, st.JSONL, data)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		st.Attempts++
		return o.fail(st, res, "submit: "+err.Error())
	}

	st.Attempts++
	st.BatchID = job.ID
	st.JobStatus = job.Status
	st.Status = StatusSubmitted
	st.Mode = ModeBatch
	st.LastError = ""
	if err := o.saveState(st); err != nil {
		return err
	}
	res.Submitted = append(res.Submitted, st.BatchNo)
	o.log.Info("batch submitted",
		zap.Int("batch", st.BatchNo),
		zap.String("job", job.ID),
		zap.String("status", job.Status))
	return nil
}

// check looks at a running job once.
func (o *Orchestrator) check(ctx context.Context, st *State, res *RunResult) ([]*State, error) {
	job, err := o.api.retrieve(ctx, st.BatchID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		o.log.Warn("job retrieval failed", zap.Int("batch", st.BatchNo), zap.String("job", st.BatchID), zap.Error(err))
		res.Pending = append(res.Pending, st.BatchNo)
		return nil, nil
	}
	children, done, err := o.handleJob(ctx, st, job, res)
	if err == nil && !done {
		res.Pending = append(res.Pending, st.BatchNo)
	}
	return children, err
}

// poll waits for a running job to finish.
func (o *Orchestrator) poll(ctx context.Context, st *State, res *RunResult) ([]*State, error) {
	start := o.now()
	for {
		job, err := o.api.retrieve(ctx, st.BatchID)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			o.log.Warn("job retrieval failed", zap.Int("batch", st.BatchNo), zap.String("job", st.BatchID), zap.Error(err))
		default:
			children, done, err := o.handleJob(ctx, st, job, res)
			if done || err != nil {
				return children, err
			}
			o.log.Info("waiting for job",
				zap.Int("batch", st.BatchNo),
				zap.String("job", job.ID),
				zap.String("status", job.Status),
				zap.Int("processed", job.Processed()),
				zap.Int("total", job.Total),
				zap.Int("failed", job.Failed),
				zap.Duration("elapsed", o.now().Sub(start)))
		}

		if o.opts.Timeout > 0 && o.now().Sub(start) > o.opts.Timeout {
			if err := o.api.cancel(ctx, st.BatchID); err != nil {
				o.log.Warn("job cancel failed", zap.Int("batch", st.BatchNo), zap.Error(err))
			}
			return nil, o.fail(st, res, fmt.Sprintf("timed out after %s", o.opts.Timeout))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(o.opts.PollInterval):
		}
	}
}

func (o *Orchestrator) massFailure(job wotrtl.Job) bool {
	processed := job.Processed()
	return o.opts.AbortFailMin > 0 &&
		processed >= o.opts.AbortFailMin &&
		job.Completed == 0 &&
		job.Failed >= int(float64(processed)*o.opts.AbortFailRatio)
}

// handleJob acts on a retrieved job. done is false while the job runs.
func (o *Orchestrator) handleJob(ctx context.Context, st *State, job wotrtl.Job, res *RunResult) ([]*State, bool, error) {
	st.JobStatus = job.Status

	if o.massFailure(job) {
		o.log.Warn("mass failure, splitting batch",
			zap.Int("batch", st.BatchNo),
			zap.String("job", job.ID),
			zap.Int("failed", job.Failed),
			zap.Int("processed", job.Processed()))
		if !job.Terminal() {
			if err := o.api.cancel(ctx, job.ID); err != nil {
				o.log.Warn("job cancel failed", zap.Int("batch", st.BatchNo), zap.Error(err))
			}
		}
		children, err := o.autoSplit(st, "mass_failure", res)
		return children, true, err
	}

	if !job.Terminal() {
		return nil, false, o.saveState(st)
	}

	children, err := o.finish(ctx, st, job, res)
	return children, true, err
}

func (o *Orchestrator) finish(ctx context.Context, st *State, job wotrtl.Job, res *RunResult) ([]*State, error) {
	if job.ErrorFileID != "" {
		if data, err := o.api.download(ctx, job.ErrorFileID); err != nil {
			o.log.Warn("error file download failed", zap.Int("batch", st.BatchNo), zap.Error(err))
		} else if err := catalog.WriteFileAtomic(o.ws.ErrorPath(st.BatchNo), data); err != nil {
			return nil, err
		}
	}

	switch {
	case job.Status == wotrtl.JobCompleted && job.OutputFileID != "":
		data, err := o.api.download(ctx, job.OutputFileID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, o.fail(st, res, "download output: "+err.Error())
		}
		if err := catalog.WriteFileAtomic(o.ws.ResultPath(st.BatchNo), data); err != nil {
			return nil, err
		}
		return nil, o.complete(st, data, res)

	case job.Status == wotrtl.JobCompleted:
		return nil, o.fail(st, res, "job completed without output")

	case job.HasError("token_limit_exceeded"):
		return o.autoSplit(st, "token_limit_exceeded", res)

	default:
		msg := "job " + job.Status
		if len(job.Errors) > 0 {
			msg += ": " + strings.Join(job.Errors, "; ")
		}
		return nil, o.fail(st, res, msg)
	}
}

// complete writes the trans TSV parsed from an output file.
func (o *Orchestrator) complete(st *State, output []byte, res *RunResult) error {
	trans, stats := parseOutput(output)
	o.log.Info("output parsed",
		zap.Int("batch", st.BatchNo),
		zap.Int("requests", stats.lines),
		zap.Int("request_errors", stats.errors),
		zap.Int("rows", len(trans)))
	if len(trans) == 0 {
		return o.fail(st, res, "no valid output lines")
	}
	if err := catalog.WriteTrans(o.ws.TransPath(st.BatchNo), trans); err != nil {
		return err
	}
	st.Status = StatusCompleted
	st.LastError = ""
	if err := o.saveState(st); err != nil {
		return err
	}
	res.Completed = append(res.Completed, st.BatchNo)
	o.log.Info("batch completed", zap.Int("batch", st.BatchNo), zap.String("status", st.Status))
	return nil
}

func (o *Orchestrator) fail(st *State, res *RunResult, msg string) error {
	st.Status = StatusFailed
	st.LastError = msg
	res.Failed = append(res.Failed, st.BatchNo)
	o.log.Warn("batch failed", zap.Int("batch", st.BatchNo), zap.String("error", msg))
	return o.saveState(st)
}

type outputStats struct {
	lines  int
	errors int
}

// parseOutput collects idx -> translation from a batch output file. Later
// lines win over earlier ones.
func parseOutput(data []byte) (map[int]string, outputStats) {
	trans := make(map[int]string)
	var stats outputStats
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.lines++
		out, err := provider.ParseOutputLine(line)
		if err != nil || out.Error != "" {
			stats.errors++
			continue
		}
		for idx, text := range wotrtl.ParseBlock(out.Text) {
			trans[idx] = text
		}
	}
	return trans, stats
}

// readRequests parses a request JSONL file.
func readRequests(path string) ([]wotrtl.CompletionRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &wotrtl.InputError{Path: path, Message: "cannot read request file", Cause: err}
	}
	var reqs []wotrtl.CompletionRequest
	for i, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		req, err := provider.ParseBatchLine(line)
		if err != nil {
			return nil, &wotrtl.InputError{Path: path, Message: fmt.Sprintf("line %d", i+1), Cause: err}
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// readAnswered returns the custom ids answered without error in a sync
// result file.
func readAnswered(path string) (map[string]bool, error) {
	answered := make(map[string]bool)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return answered, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		out, err := provider.ParseOutputLine(line)
		if err != nil {
			continue // torn last line of an interrupted run
		}
		if out.Error == "" {
			answered[out.CustomID] = true
		}
	}
	return answered, nil
}

func (o *Orchestrator) syncProvider() wotrtl.AIProvider {
	var p wotrtl.AIProvider = wotrtl.NewThrottledProvider(o.backend, o.pace)
	p = wotrtl.NewLineCheckedProvider(p)
	p = wotrtl.NewRetryableProvider(p, o.opts.Retry).WithAttemptTimeout(o.opts.RequestTimeout)
	return wotrtl.NewTranslator(p, wotrtl.WithCache(o.opts.Cache), wotrtl.WithModel(o.opts.Model))
}

// runSync sends the unanswered requests of a batch through the chat API
// and appends every answer to the batch's sync result file.
func (o *Orchestrator) runSync(ctx context.Context, st *State, res *RunResult) error {
	reqs, err := readRequests(o.requestPath(st))
	if err != nil {
		return err
	}
	resultPath := o.ws.SyncResultPath(st.BatchNo)
	answered, err := readAnswered(resultPath)
	if err != nil {
		return err
	}
	var todo []wotrtl.CompletionRequest
	for _, r := range reqs {
		if !answered[r.CustomID] {
			todo = append(todo, r)
		}
	}

	if o.opts.DryRun {
		o.log.Info("dry run: would send requests",
			zap.Int("batch", st.BatchNo),
			zap.Int("requests", len(todo)),
			zap.Int("answered", len(reqs)-len(todo)))
		return nil
	}

	st.Mode = ModeSync
	st.Attempts++
	if err := o.saveState(st); err != nil {
		return err
	}

	f, err := os.OpenFile(resultPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", resultPath, err)
	}
	defer f.Close()

	o.log.Info("sync batch started",
		zap.Int("batch", st.BatchNo),
		zap.Int("requests", len(todo)),
		zap.Int("answered", len(reqs)-len(todo)))

	start := o.now()
	done, failed := 0, 0
	var firstErr, writeErr error
	err = wotrtl.CompleteAll(ctx, o.syncProvider(), todo, wotrtl.ParallelOptions{Workers: o.opts.MaxConcurrent}, func(r wotrtl.CompletionResult) {
		id := r.Request.CustomID
		var line []byte
		var mismatch *wotrtl.LineMismatchError
		switch {
		case r.Err == nil:
			line = provider.ResultLine(id, r.Output)
		case errors.As(r.Err, &mismatch):
			o.log.Warn("partial answer kept",
				zap.Int("batch", st.BatchNo),
				zap.String("custom_id", id),
				zap.Int("expected", mismatch.Expected),
				zap.Int("got", mismatch.Got))
			line = provider.ResultLine(id, mismatch.Output)
		default:
			failed++
			if firstErr == nil {
				firstErr = r.Err
			}
			o.log.Warn("request failed", zap.Int("batch", st.BatchNo), zap.String("custom_id", id), zap.Error(r.Err))
			line = provider.ErrorLine(id, r.Err)
		}
		if _, err := f.Write(append(line, '\n')); err != nil && writeErr == nil {
			writeErr = err
		}
		done++
		if o.opts.OnProgress != nil {
			o.opts.OnProgress(Progress{Batch: st.BatchNo, Done: done, Total: len(todo), Errors: failed})
		}
	})
	if err != nil {
		return err
	}
	if writeErr != nil {
		return fmt.Errorf("write %s: %w", resultPath, writeErr)
	}

	o.log.Info("sync batch finished",
		zap.Int("batch", st.BatchNo),
		zap.Int("requests", done),
		zap.Int("failed", failed),
		zap.Duration("elapsed", o.now().Sub(start)))

	if failed > 0 {
		return o.fail(st, res, fmt.Sprintf("%d of %d requests failed: %v", failed, len(todo), firstErr))
	}

	data, err := os.ReadFile(resultPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", resultPath, err)
	}
	return o.complete(st, data, res)
}
