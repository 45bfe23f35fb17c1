// Package config loads the wotrtl.yaml project file.
//
// Every value has a default, so the file is optional and may set only the
// keys that differ. Command line flags override file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wotrcz/wotrtl"
	"github.com/wotrcz/wotrtl/audit"
	"github.com/wotrcz/wotrtl/batch"
	"github.com/wotrcz/wotrtl/cache"
	"github.com/wotrcz/wotrtl/provider"
	"gopkg.in/yaml.v3"
)

// FileName is the project file looked up in the working directory.
const FileName = "wotrtl.yaml"

// DefaultOutput is the translated document name inside the workspace.
const DefaultOutput = "translated.json"

// MinPollInterval is the shortest allowed job polling period.
const MinPollInterval = 5 * time.Second

// Config is the wotrtl.yaml structure.
type Config struct {
	Model       string `yaml:"model"`
	TargetLang  string `yaml:"target_lang"`
	PromptsFile string `yaml:"prompts_file,omitempty"`
	Input       string `yaml:"input,omitempty"`   // Source (English) document
	Workdir     string `yaml:"workdir,omitempty"` // Workspace directory
	Output      string `yaml:"output,omitempty"`  // Translated document; defaults to <workdir>/translated.json

	API     APIConfig        `yaml:"api"`
	Limits  LimitsConfig     `yaml:"limits"`
	Run     RunConfig        `yaml:"run"`
	Retry   RetryConfig      `yaml:"retry"`
	Audit   audit.Thresholds `yaml:"audit"`
	Compare audit.Bounds     `yaml:"compare"`
	Cache   CacheConfig      `yaml:"cache"`
}

// APIConfig configures the OpenAI-compatible endpoint.
type APIConfig struct {
	BaseURL             string  `yaml:"base_url,omitempty"`
	APIKey              string  `yaml:"api_key,omitempty"`
	Temperature         float32 `yaml:"temperature,omitempty"`
	MaxCompletionTokens int     `yaml:"max_completion_tokens,omitempty"`
	ReasoningEffort     string  `yaml:"reasoning_effort,omitempty"`
}

// LimitsConfig bounds request and batch sizes.
type LimitsConfig struct {
	MaxChars          int `yaml:"max_chars"`
	MaxLines          int `yaml:"max_lines"`
	BatchBudgetTokens int `yaml:"batch_budget_tokens"`
	BatchMaxBytes     int `yaml:"batch_max_bytes"`
}

// RunConfig tunes job execution.
type RunConfig struct {
	Mode              string        `yaml:"mode"` // batch or sync
	PollInterval      time.Duration `yaml:"poll_interval"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	MaxConcurrent     int           `yaml:"max_concurrent"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	MaxAttempts       int           `yaml:"max_attempts"`
	AbortFailMin      int           `yaml:"abort_fail_min"`
	AbortFailRatio    float64       `yaml:"abort_fail_ratio"`
}

// RetryConfig is the backoff policy of API calls.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
}

// CacheConfig selects the response cache.
type CacheConfig struct {
	Backend   string        `yaml:"backend"` // none, memory or redis
	URL       string        `yaml:"url,omitempty"`
	TTL       time.Duration `yaml:"ttl"`
	KeyPrefix string        `yaml:"key_prefix,omitempty"`
	File      string        `yaml:"file,omitempty"` // Memory cache persistence
}

// Default returns the built-in configuration.
func Default() *Config {
	b := batch.DefaultOptions()
	return &Config{
		Model:      wotrtl.DefaultModel,
		TargetLang: "cs",
		Workdir:    "out_wotr",
		Limits: LimitsConfig{
			MaxChars:          b.MaxChars,
			MaxLines:          b.MaxLines,
			BatchBudgetTokens: b.BatchBudgetTokens,
			BatchMaxBytes:     b.BatchMaxBytes,
		},
		Run: RunConfig{
			Mode:              batch.ModeBatch,
			PollInterval:      b.PollInterval,
			Timeout:           b.Timeout,
			RequestTimeout:    b.RequestTimeout,
			MaxConcurrent:     b.MaxConcurrent,
			RequestsPerMinute: b.RequestsPerMinute,
			MaxAttempts:       b.MaxAttempts,
			AbortFailMin:      b.AbortFailMin,
			AbortFailRatio:    b.AbortFailRatio,
		},
		Retry: RetryConfig{
			MaxRetries: b.Retry.MaxRetries,
			BaseDelay:  b.Retry.BaseDelay,
			MaxDelay:   b.Retry.MaxDelay,
		},
		Audit:   audit.DefaultThresholds(),
		Compare: audit.DefaultBounds(),
		Cache: CacheConfig{
			Backend:   cache.BackendNone,
			TTL:       7 * 24 * time.Hour,
			KeyPrefix: cache.DefaultKeyPrefix,
		},
	}
}

// Load reads path over the defaults. A missing file is not an error when
// optional is set; it yields the defaults.
func Load(path string, optional bool) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &wotrtl.InputError{Path: path, Message: "malformed config", Cause: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Model == "":
		return errors.New("model must not be empty")
	case c.Limits.MaxChars < 1 || c.Limits.MaxLines < 1:
		return fmt.Errorf("limits.max_chars and limits.max_lines must be positive")
	case c.Limits.BatchBudgetTokens < 0 || c.Limits.BatchMaxBytes < 0:
		return fmt.Errorf("batch limits must not be negative")
	case c.Run.Mode != batch.ModeBatch && c.Run.Mode != batch.ModeSync:
		return fmt.Errorf("run.mode must be %q or %q, got %q", batch.ModeBatch, batch.ModeSync, c.Run.Mode)
	case c.Run.PollInterval < MinPollInterval:
		return fmt.Errorf("run.poll_interval must be at least %s, got %s", MinPollInterval, c.Run.PollInterval)
	case c.Run.Timeout < 0 || c.Run.RequestTimeout < 0:
		return fmt.Errorf("timeouts must not be negative")
	case c.Run.MaxConcurrent < 1:
		return fmt.Errorf("run.max_concurrent must be at least 1, got %d", c.Run.MaxConcurrent)
	case c.Run.MaxAttempts < 0:
		return fmt.Errorf("run.max_attempts must not be negative")
	case c.Run.AbortFailRatio < 0 || c.Run.AbortFailRatio > 1:
		return fmt.Errorf("run.abort_fail_ratio must be within [0, 1], got %v", c.Run.AbortFailRatio)
	case c.Retry.MaxRetries < 0 || c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < c.Retry.BaseDelay:
		return fmt.Errorf("retry needs max_retries >= 0 and 0 <= base_delay <= max_delay")
	}
	switch c.Cache.Backend {
	case cache.BackendNone, cache.BackendMemory:
	case cache.BackendRedis:
		if c.Cache.URL == "" {
			return errors.New("cache.url is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend must be none, memory or redis, got %q", c.Cache.Backend)
	}
	if c.Compare.MinLenRatio < 0 || c.Compare.MaxLenRatio <= c.Compare.MinLenRatio {
		return fmt.Errorf("compare needs 0 <= min_len_ratio < max_len_ratio")
	}
	if err := c.Audit.Validate(); err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	return nil
}

// OutputPath returns the translated document path.
func (c *Config) OutputPath() string {
	if c.Output != "" {
		return c.Output
	}
	return filepath.Join(c.Workdir, DefaultOutput)
}

// Prompts returns the built-in prompts of the target language, overridden
// by the prompts file when one is set.
func (c *Config) Prompts() (wotrtl.Prompts, error) {
	p := wotrtl.DefaultPromptsFor(c.TargetLang)
	if c.PromptsFile == "" {
		return p, nil
	}
	return wotrtl.LoadPrompts(c.PromptsFile, p)
}

// ChatOptions returns the model request options.
func (c *Config) ChatOptions() provider.ChatOptions {
	return provider.ChatOptions{
		Temperature:         c.API.Temperature,
		MaxCompletionTokens: c.API.MaxCompletionTokens,
		ReasoningEffort:     c.API.ReasoningEffort,
	}
}

// OpenAI returns the provider configuration for apiKey.
func (c *Config) OpenAI(apiKey string) provider.OpenAIConfig {
	return provider.OpenAIConfig{
		APIKey:  apiKey,
		BaseURL: c.API.BaseURL,
		Chat:    c.ChatOptions(),
	}
}

// BatchOptions returns orchestrator options; prompts, cache and logger
// are left to the caller.
func (c *Config) BatchOptions() batch.Options {
	opts := batch.DefaultOptions()
	opts.Model = c.Model
	opts.Chat = c.ChatOptions()
	opts.MaxChars = c.Limits.MaxChars
	opts.MaxLines = c.Limits.MaxLines
	opts.BatchBudgetTokens = c.Limits.BatchBudgetTokens
	opts.BatchMaxBytes = c.Limits.BatchMaxBytes
	opts.PollInterval = c.Run.PollInterval
	opts.Timeout = c.Run.Timeout
	opts.RequestTimeout = c.Run.RequestTimeout
	opts.MaxConcurrent = c.Run.MaxConcurrent
	opts.RequestsPerMinute = c.Run.RequestsPerMinute
	opts.MaxAttempts = c.Run.MaxAttempts
	opts.AbortFailMin = c.Run.AbortFailMin
	opts.AbortFailRatio = c.Run.AbortFailRatio
	opts.Retry = wotrtl.RetryConfig{
		MaxRetries: c.Retry.MaxRetries,
		BaseDelay:  c.Retry.BaseDelay,
		MaxDelay:   c.Retry.MaxDelay,
	}
	return opts
}

// CacheOptions returns the cache configuration.
func (c *Config) CacheOptions() cache.Options {
	return cache.Options{
		Backend:   c.Cache.Backend,
		URL:       c.Cache.URL,
		TTL:       c.Cache.TTL,
		KeyPrefix: c.Cache.KeyPrefix,
		File:      c.Cache.File,
	}
}
