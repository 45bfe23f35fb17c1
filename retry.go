package wotrtl

import (
	"context"
	"errors"
	"time"
)

// RetryConfig holds configuration for retry behavior.
type RetryConfig struct {
	MaxRetries int           // Maximum number of retry attempts
	BaseDelay  time.Duration // Initial delay between retries
	MaxDelay   time.Duration // Maximum delay between retries
}

// DefaultRetryConfig returns the retry policy used for API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 4,
		BaseDelay:  2 * time.Second,
		MaxDelay:   60 * time.Second,
	}
}

// Backoff returns the delay before retry number attempt (0-based).
func (c RetryConfig) Backoff(attempt int) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	delay := c.BaseDelay * time.Duration(1<<attempt)
	if c.MaxDelay > 0 && (delay > c.MaxDelay || delay <= 0) {
		delay = c.MaxDelay
	}
	return delay
}

// RetryFunc is a function that can be retried.
type RetryFunc[T any] func() (T, error)

// WithRetry executes a function with exponential backoff retry.
// Only errors reported retryable by IsRetryable are retried.
func WithRetry[T any](ctx context.Context, cfg RetryConfig, fn RetryFunc[T]) (T, error) {
	var lastErr error
	var zero T

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		if !IsRetryable(err) {
			return zero, err
		}

		// Don't sleep after the last attempt
		if attempt < cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(cfg.Backoff(attempt)):
			}
		}
	}

	return zero, lastErr
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Retryable
	}

	// A line count mismatch is usually a one-off formatting slip of the model.
	var mismatch *LineMismatchError
	if errors.As(err, &mismatch) {
		return true
	}

	return false
}

// RetryableProvider wraps an AIProvider with retry logic.
type RetryableProvider struct {
	provider AIProvider
	config   RetryConfig
	timeout  time.Duration
}

// NewRetryableProvider creates a new provider with retry logic.
func NewRetryableProvider(provider AIProvider, cfg RetryConfig) *RetryableProvider {
	return &RetryableProvider{
		provider: provider,
		config:   cfg,
	}
}

// WithAttemptTimeout bounds every single attempt by d. Zero disables the bound.
func (p *RetryableProvider) WithAttemptTimeout(d time.Duration) *RetryableProvider {
	p.timeout = d
	return p
}

// Complete implements AIProvider with retry logic.
func (p *RetryableProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return WithRetry(ctx, p.config, func() (string, error) {
		if p.timeout <= 0 {
			return p.provider.Complete(ctx, req)
		}
		attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		out, err := p.provider.Complete(attemptCtx, req)
		if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return "", &ProviderError{Message: "request timed out", Cause: err, Retryable: true}
		}
		return out, err
	})
}
