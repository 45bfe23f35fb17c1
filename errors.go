package wotrtl

import "fmt"

// InputError indicates a malformed or empty input file. It is fatal and
// raised before anything is written.
type InputError struct {
	Path    string
	Message string
	Cause   error
}

func (e *InputError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if e.Cause != nil {
		return fmt.Sprintf("invalid input: %s: %v", msg, e.Cause)
	}
	return "invalid input: " + msg
}

func (e *InputError) Unwrap() error {
	return e.Cause
}

// ProviderError indicates an AI provider failure (API error, rate limit, etc.).
type ProviderError struct {
	Message   string
	Cause     error
	Retryable bool // Whether the operation can be retried
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("provider error: %s", e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// CacheError indicates a cache operation failure.
type CacheError struct {
	Message string
	Cause   error
}

func (e *CacheError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cache error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("cache error: %s", e.Message)
}

func (e *CacheError) Unwrap() error {
	return e.Cause
}

// KeyError indicates a key that could not be resolved to an entry of the
// canonical document.
type KeyError struct {
	Key    string
	Reason string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("key %q: %s", e.Key, e.Reason)
}

// CollisionError indicates a write that would replace already accepted text.
type CollisionError struct {
	Key      string
	Existing string
	Incoming string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("collision on %q: existing text kept", e.Key)
}

// LineMismatchError indicates the model returned a different number of lines than requested.
// Output holds the raw answer so callers can keep the lines that did parse.
type LineMismatchError struct {
	Expected int
	Got      int
	Output   string
}

func (e *LineMismatchError) Error() string {
	return fmt.Sprintf("line count mismatch: expected %d, got %d", e.Expected, e.Got)
}
