package wotrtl

import (
	"context"
	"sync"
	"time"
)

// ThrottleConfig bounds the API traffic of one run.
type ThrottleConfig struct {
	RequestsPerMinute int // 0 = 60, <0 = no pacing
	Burst             int // Calls allowed back to back (0 = RequestsPerMinute)
	MaxInFlight       int // Concurrent calls (0 = no cap)
}

// Throttle paces API calls. Every call, chat completion or Batch API,
// takes one token from a shared requests-per-minute bucket and, when
// MaxInFlight is set, holds one of the in-flight slots until released.
// A nil *Throttle lets everything through.
type Throttle struct {
	mu     sync.Mutex
	pace   bool
	tokens float64 // may go negative: reserved by waiting callers
	burst  float64
	perSec float64
	last   time.Time
	slots  chan struct{}
	now    func() time.Time
}

// NewThrottle creates a throttle with a full bucket.
func NewThrottle(cfg ThrottleConfig) *Throttle {
	t := &Throttle{now: time.Now}
	if cfg.RequestsPerMinute >= 0 {
		rpm := cfg.RequestsPerMinute
		if rpm == 0 {
			rpm = 60
		}
		burst := cfg.Burst
		if burst <= 0 {
			burst = rpm
		}
		t.pace = true
		t.perSec = float64(rpm) / 60
		t.burst = float64(burst)
		t.tokens = t.burst
		t.last = t.now()
	}
	if cfg.MaxInFlight > 0 {
		t.slots = make(chan struct{}, cfg.MaxInFlight)
	}
	return t
}

// Acquire waits for a token and a free slot. The returned release must be
// called once the call is done; it is never nil.
func (t *Throttle) Acquire(ctx context.Context) (release func(), err error) {
	release = func() {}
	if t == nil {
		return release, ctx.Err()
	}
	if t.slots != nil {
		select {
		case t.slots <- struct{}{}:
		case <-ctx.Done():
			return release, ctx.Err()
		}
		var once sync.Once
		release = func() { once.Do(func() { <-t.slots }) }
	}
	if err := t.wait(ctx); err != nil {
		release()
		return func() {}, err
	}
	return release, nil
}

// wait reserves a token and sleeps until it is due. A cancelled wait
// hands its reservation back.
func (t *Throttle) wait(ctx context.Context) error {
	if !t.pace {
		return ctx.Err()
	}
	t.mu.Lock()
	t.refill()
	t.tokens--
	var delay time.Duration
	if t.tokens < 0 {
		delay = time.Duration(-t.tokens / t.perSec * float64(time.Second))
	}
	t.mu.Unlock()

	if delay == 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		t.mu.Lock()
		t.tokens++
		t.mu.Unlock()
		return ctx.Err()
	}
}

func (t *Throttle) refill() {
	now := t.now()
	t.tokens += now.Sub(t.last).Seconds() * t.perSec
	t.last = now
	if t.tokens > t.burst {
		t.tokens = t.burst
	}
}

// Tokens returns the calls that can start right now without waiting on
// the bucket; negative while callers are queued.
func (t *Throttle) Tokens() float64 {
	if t == nil || !t.pace {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refill()
	return t.tokens
}

// ThrottledProvider sends completions through a Throttle.
type ThrottledProvider struct {
	provider AIProvider
	throttle *Throttle
}

// NewThrottledProvider wraps provider. The throttle may be shared with
// other callers of the same API.
func NewThrottledProvider(provider AIProvider, throttle *Throttle) *ThrottledProvider {
	return &ThrottledProvider{provider: provider, throttle: throttle}
}

// Complete implements AIProvider.
func (p *ThrottledProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	release, err := p.throttle.Acquire(ctx)
	if err != nil {
		return "", &ProviderError{Message: "throttle wait cancelled", Cause: err}
	}
	defer release()
	return p.provider.Complete(ctx, req)
}
