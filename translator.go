package wotrtl

import (
	"context"
	"errors"
)

// Translator is the synchronous translation front: it answers completion
// requests from the cache when possible and from the provider otherwise.
type Translator struct {
	provider AIProvider
	cache    TranslationCache
	prompts  Prompts
	model    string
}

// TranslatorOption is a functional option for configuring the Translator.
type TranslatorOption func(*Translator)

// WithCache sets the response cache.
func WithCache(cache TranslationCache) TranslatorOption {
	return func(t *Translator) {
		t.cache = cache
	}
}

// WithPrompts sets the prompts used by TranslateRows.
func WithPrompts(p Prompts) TranslatorOption {
	return func(t *Translator) {
		t.prompts = p
	}
}

// WithModel sets the model used by TranslateRows.
func WithModel(model string) TranslatorOption {
	return func(t *Translator) {
		t.model = model
	}
}

// NewTranslator creates a new Translator on top of provider.
func NewTranslator(provider AIProvider, opts ...TranslatorOption) *Translator {
	t := &Translator{
		provider: provider,
		prompts:  DefaultPrompts(),
		model:    DefaultModel,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Translate answers a completion request. Failed requests are not cached.
func (t *Translator) Translate(ctx context.Context, req CompletionRequest) (string, error) {
	if req.Model == "" {
		req.Model = t.model
	}
	key := RequestCacheKey(req)
	if t.cache != nil {
		if cached, ok := t.cache.Get(key); ok {
			return cached, nil
		}
	}

	if t.provider == nil {
		return "", &ProviderError{Message: "no provider configured"}
	}

	out, err := t.provider.Complete(ctx, req)
	if err != nil {
		return "", err
	}

	if t.cache != nil && out != "" {
		_ = t.cache.Set(key, out) // Ignore cache set errors
	}
	return out, nil
}

// Complete implements AIProvider, so a Translator can be dispatched by
// CompleteAll with its cache in front of the provider.
func (t *Translator) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return t.Translate(ctx, req)
}

// TranslateRows translates rows in one request and returns idx -> translation.
// Rows the model did not answer are absent from the map; a partial answer
// comes back together with its LineMismatchError.
func (t *Translator) TranslateRows(ctx context.Context, customID string, rows []Row) (map[int]string, error) {
	if len(rows) == 0 {
		return map[int]string{}, nil
	}
	req := t.prompts.Request(customID, t.model, BuildBlock(rows))
	out, err := t.Translate(ctx, req)
	if err != nil {
		var mismatch *LineMismatchError
		if errors.As(err, &mismatch) {
			return ParseBlock(mismatch.Output), err
		}
		return nil, err
	}
	return ParseBlock(out), nil
}

// LineCheckedProvider wraps an AIProvider and rejects outputs that do not
// answer every row of the request block. Place it under a RetryableProvider
// to have such outputs retried.
type LineCheckedProvider struct {
	provider AIProvider
}

// NewLineCheckedProvider creates a new line-checking provider.
func NewLineCheckedProvider(provider AIProvider) *LineCheckedProvider {
	return &LineCheckedProvider{provider: provider}
}

// Complete implements AIProvider.
func (p *LineCheckedProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	out, err := p.provider.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	if err := CheckLines(req, out); err != nil {
		return "", err
	}
	return out, nil
}

// CheckLines verifies that output answers every idx of the request block.
func CheckLines(req CompletionRequest, output string) error {
	want := BlockIndexes(req.User)
	got := ParseBlock(output)
	answered := 0
	for _, idx := range want {
		if _, ok := got[idx]; ok {
			answered++
		}
	}
	if answered != len(want) {
		return &LineMismatchError{Expected: len(want), Got: answered, Output: output}
	}
	return nil
}

// Model returns the default model.
func (t *Translator) Model() string {
	return t.model
}

// Prompts returns the prompts used by TranslateRows.
func (t *Translator) Prompts() Prompts {
	return t.prompts
}

var (
	_ AIProvider = (*Translator)(nil)
	_ AIProvider = (*LineCheckedProvider)(nil)
)
