package wotrtl

import (
	"context"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// CompletionResult is the outcome of one request dispatched by CompleteAll.
type CompletionResult struct {
	Request CompletionRequest
	Output  string
	Err     error
}

// ParallelOptions configures CompleteAll.
type ParallelOptions struct {
	Workers int // Maximum concurrent requests (default 4)
}

// CompleteAll sends reqs to provider through a bounded worker pool.
// onResult is called once per request, never concurrently, in completion
// order. It returns early with ctx.Err() if ctx is cancelled; requests not
// yet started are then dropped without a callback.
func CompleteAll(ctx context.Context, provider AIProvider, reqs []CompletionRequest, opts ParallelOptions, onResult func(CompletionResult)) error {
	if len(reqs) == 0 {
		return nil
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	if workers > len(reqs) {
		workers = len(reqs)
	}

	results := make(chan CompletionResult, workers)
	var wg sync.WaitGroup

	pool, err := ants.NewPoolWithFunc(workers, func(data interface{}) {
		defer wg.Done()
		req := data.(CompletionRequest)
		if ctx.Err() != nil {
			return
		}
		out, err := provider.Complete(ctx, req)
		results <- CompletionResult{Request: req, Output: out, Err: err}
	})
	if err != nil {
		return err
	}
	defer pool.Release()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range results {
			if onResult != nil {
				onResult(r)
			}
		}
	}()

	for _, req := range reqs {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		if err := pool.Invoke(req); err != nil {
			wg.Done()
			results <- CompletionResult{Request: req, Err: err}
		}
	}

	wg.Wait()
	close(results)
	<-done

	return ctx.Err()
}
