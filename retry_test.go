package wotrtl

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithRetry_Success(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries: 3,
		BaseDelay:  10 * time.Millisecond,
		MaxDelay:   100 * time.Millisecond,
	}

	callCount := 0
	result, err := WithRetry(context.Background(), cfg, func() (string, error) {
		callCount++
		return "success", nil
	})

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result != "success" {
		t.Errorf("Expected 'success', got %q", result)
	}

	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestWithRetry_RetryableError(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries: 3,
		BaseDelay:  10 * time.Millisecond,
		MaxDelay:   100 * time.Millisecond,
	}

	callCount := 0
	result, err := WithRetry(context.Background(), cfg, func() (string, error) {
		callCount++
		if callCount < 3 {
			return "", &ProviderError{Message: "rate limited", Retryable: true}
		}
		return "success", nil
	})

	if err != nil {
		t.Fatalf("Expected no error after retries, got: %v", err)
	}

	if result != "success" {
		t.Errorf("Expected 'success', got %q", result)
	}

	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}
}

func TestWithRetry_NonRetryableError(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries: 3,
		BaseDelay:  10 * time.Millisecond,
		MaxDelay:   100 * time.Millisecond,
	}

	callCount := 0
	_, err := WithRetry(context.Background(), cfg, func() (string, error) {
		callCount++
		return "", &ProviderError{Message: "invalid API key", Retryable: false}
	})

	if err == nil {
		t.Fatal("Expected error for non-retryable error")
	}

	if callCount != 1 {
		t.Errorf("Expected 1 call for non-retryable error, got %d", callCount)
	}
}

func TestWithRetry_MaxRetriesExceeded(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries: 2,
		BaseDelay:  10 * time.Millisecond,
		MaxDelay:   100 * time.Millisecond,
	}

	callCount := 0
	_, err := WithRetry(context.Background(), cfg, func() (string, error) {
		callCount++
		return "", &ProviderError{Message: "rate limited", Retryable: true}
	})

	if err == nil {
		t.Fatal("Expected error after max retries")
	}

	// Initial attempt + 2 retries = 3 calls
	if callCount != 3 {
		t.Errorf("Expected 3 calls (1 + 2 retries), got %d", callCount)
	}
}

func TestWithRetry_ContextCanceled(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := WithRetry(ctx, cfg, func() (string, error) {
		return "", &ProviderError{Message: "rate limited", Retryable: true}
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"retryable provider error", &ProviderError{Retryable: true}, true},
		{"non-retryable provider error", &ProviderError{Retryable: false}, false},
		{"line mismatch", &LineMismatchError{Expected: 2, Got: 1}, true},
		{"generic error", errors.New("some error"), false},
		{"context canceled", context.Canceled, false},
		{"context deadline", context.DeadlineExceeded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsRetryable(tt.err)
			if result != tt.expected {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()

	if cfg.MaxRetries != 4 {
		t.Errorf("Expected MaxRetries 4, got %d", cfg.MaxRetries)
	}

	if cfg.BaseDelay != 2*time.Second {
		t.Errorf("Expected BaseDelay 2s, got %v", cfg.BaseDelay)
	}

	if cfg.MaxDelay != 60*time.Second {
		t.Errorf("Expected MaxDelay 60s, got %v", cfg.MaxDelay)
	}
}

func TestRetryConfig_Backoff(t *testing.T) {
	cfg := RetryConfig{BaseDelay: time.Second, MaxDelay: 5 * time.Second}

	if d := cfg.Backoff(0); d != time.Second {
		t.Errorf("Backoff(0) = %v, want 1s", d)
	}
	if d := cfg.Backoff(2); d != 4*time.Second {
		t.Errorf("Backoff(2) = %v, want 4s", d)
	}
	if d := cfg.Backoff(10); d != 5*time.Second {
		t.Errorf("Backoff(10) = %v, want cap 5s", d)
	}
}

type failingProvider struct {
	failCount int
	callCount int
}

func (p *failingProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	p.callCount++
	if p.callCount <= p.failCount {
		return "", &ProviderError{Message: "temporary failure", Retryable: true}
	}
	return "1\tpřeloženo", nil
}

func TestRetryableProvider(t *testing.T) {
	inner := &failingProvider{failCount: 2}
	cfg := RetryConfig{
		MaxRetries: 3,
		BaseDelay:  10 * time.Millisecond,
		MaxDelay:   100 * time.Millisecond,
	}

	provider := NewRetryableProvider(inner, cfg)

	result, err := provider.Complete(context.Background(), CompletionRequest{User: "1\thello\n"})
	if err != nil {
		t.Fatalf("Expected success after retries, got: %v", err)
	}

	if result != "1\tpřeloženo" {
		t.Errorf("Unexpected result: %q", result)
	}

	if inner.callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", inner.callCount)
	}
}

type blockingProvider struct {
	calls int
}

func (p *blockingProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	p.calls++
	<-ctx.Done()
	return "", ctx.Err()
}

func TestRetryableProvider_AttemptTimeout(t *testing.T) {
	inner := &blockingProvider{}
	cfg := RetryConfig{
		MaxRetries: 1,
		BaseDelay:  5 * time.Millisecond,
		MaxDelay:   10 * time.Millisecond,
	}

	provider := NewRetryableProvider(inner, cfg).WithAttemptTimeout(20 * time.Millisecond)

	_, err := provider.Complete(context.Background(), CompletionRequest{})
	var perr *ProviderError
	if !errors.As(err, &perr) || !perr.Retryable {
		t.Fatalf("Expected retryable timeout error, got: %v", err)
	}

	if inner.calls != 2 {
		t.Errorf("Expected 2 attempts, got %d", inner.calls)
	}
}
