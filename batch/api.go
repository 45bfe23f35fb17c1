package batch

import (
	"context"

	"github.com/wotrcz/wotrtl"
	"go.uber.org/zap"
)

// batchAPI sends Batch API calls through the run's throttle and retries
// retryable failures with backoff.
type batchAPI struct {
	backend  wotrtl.BatchProvider
	throttle *wotrtl.Throttle
	retry    wotrtl.RetryConfig
	log      *zap.Logger
}

func callAPI[T any](ctx context.Context, a *batchAPI, op string, fn func() (T, error)) (T, error) {
	attempt := 0
	return wotrtl.WithRetry(ctx, a.retry, func() (T, error) {
		var zero T
		if attempt > 0 {
			a.log.Warn("retrying batch API call", zap.String("op", op), zap.Int("attempt", attempt+1))
		}
		attempt++
		release, err := a.throttle.Acquire(ctx)
		if err != nil {
			return zero, err
		}
		defer release()
		return fn()
	})
}

func (a *batchAPI) submit(ctx context.Context, name string, jsonl []byte) (wotrtl.Job, error) {
	return callAPI(ctx, a, "submit", func() (wotrtl.Job, error) {
		return a.backend.SubmitBatch(ctx, name, jsonl)
	})
}

func (a *batchAPI) retrieve(ctx context.Context, id string) (wotrtl.Job, error) {
	return callAPI(ctx, a, "retrieve", func() (wotrtl.Job, error) {
		return a.backend.RetrieveBatch(ctx, id)
	})
}

func (a *batchAPI) cancel(ctx context.Context, id string) error {
	_, err := callAPI(ctx, a, "cancel", func() (struct{}, error) {
		return struct{}{}, a.backend.CancelBatch(ctx, id)
	})
	return err
}

func (a *batchAPI) download(ctx context.Context, fileID string) ([]byte, error) {
	return callAPI(ctx, a, "download", func() ([]byte, error) {
		return a.backend.DownloadFile(ctx, fileID)
	})
}
