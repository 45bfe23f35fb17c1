package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wotrcz/wotrtl"
	"github.com/wotrcz/wotrtl/batch"
	"github.com/wotrcz/wotrtl/cache"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
model: gpt-4.1-mini
target_lang: sk
api:
  base_url: http://localhost:8080/v1
  temperature: 0.2
limits:
  max_lines: 100
run:
  mode: sync
  poll_interval: 30s
  timeout: 2h
retry:
  max_retries: 2
audit:
  jaccard_threshold: 0.8
  flag_bilingual: false
cache:
  backend: redis
  url: redis://localhost:6379/0
  ttl: 1h
`)
	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Model != "gpt-4.1-mini" || cfg.TargetLang != "sk" {
		t.Errorf("model/lang = %q/%q", cfg.Model, cfg.TargetLang)
	}
	if cfg.Limits.MaxLines != 100 || cfg.Limits.MaxChars != 18000 {
		t.Errorf("limits = %+v", cfg.Limits)
	}
	if cfg.Run.Mode != batch.ModeSync || cfg.Run.PollInterval != 30*time.Second || cfg.Run.Timeout != 2*time.Hour {
		t.Errorf("run = %+v", cfg.Run)
	}
	if cfg.Run.MaxConcurrent != 4 {
		t.Errorf("unset key lost its default: %+v", cfg.Run)
	}
	if cfg.Audit.JaccardThreshold != 0.8 || cfg.Audit.FlagBilingual || cfg.Audit.MinLenRatio != 0.45 {
		t.Errorf("audit = %+v", cfg.Audit)
	}
	if cfg.Cache.TTL != time.Hour || cfg.Cache.KeyPrefix != cache.DefaultKeyPrefix {
		t.Errorf("cache = %+v", cfg.Cache)
	}

	opts := cfg.BatchOptions()
	if opts.Model != "gpt-4.1-mini" || opts.MaxLines != 100 || opts.Retry.MaxRetries != 2 || opts.Chat.Temperature != 0.2 {
		t.Errorf("batch options = %+v", opts)
	}
	if c := cfg.CacheOptions(); c.Backend != cache.BackendRedis || c.URL != "redis://localhost:6379/0" {
		t.Errorf("cache options = %+v", c)
	}
	if o := cfg.OpenAI("sk-test"); o.APIKey != "sk-test" || o.BaseURL != "http://localhost:8080/v1" {
		t.Errorf("openai config = %+v", o)
	}
}

func TestLoad_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	cfg, err := Load(path, true)
	if err != nil || cfg.Model != wotrtl.DefaultModel {
		t.Errorf("optional missing file: %v", err)
	}
	if _, err := Load(path, false); err == nil {
		t.Error("expected error for a required missing file")
	}
	if cfg, err := Load("", false); err != nil || cfg == nil {
		t.Errorf("empty path: %v", err)
	}
}

func TestLoad_Malformed(t *testing.T) {
	path := writeConfig(t, "model: [unterminated\n")
	_, err := Load(path, false)
	var inErr *wotrtl.InputError
	if !errors.As(err, &inErr) {
		t.Errorf("expected InputError, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	bad := map[string]func(*Config){
		"empty model":    func(c *Config) { c.Model = "" },
		"mode":           func(c *Config) { c.Run.Mode = "fast" },
		"poll interval":  func(c *Config) { c.Run.PollInterval = time.Second },
		"concurrency":    func(c *Config) { c.Run.MaxConcurrent = 0 },
		"abort ratio":    func(c *Config) { c.Run.AbortFailRatio = 1.5 },
		"retry delays":   func(c *Config) { c.Retry.MaxDelay = time.Millisecond },
		"cache backend":  func(c *Config) { c.Cache.Backend = "disk" },
		"redis url":      func(c *Config) { c.Cache.Backend = cache.BackendRedis },
		"audit":          func(c *Config) { c.Audit.JaccardThreshold = 2 },
		"compare bounds": func(c *Config) { c.Compare.MaxLenRatio = 0.1 },
		"limits":         func(c *Config) { c.Limits.MaxChars = 0 },
	}
	for name, mutate := range bad {
		cfg := Default()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestPrompts(t *testing.T) {
	cfg := Default()
	p, err := cfg.Prompts()
	if err != nil || p != wotrtl.DefaultPrompts() {
		t.Errorf("default prompts: %v", err)
	}

	path := filepath.Join(t.TempDir(), "prompts.json")
	os.WriteFile(path, []byte(`{"system_rules": "Be terse."}`), 0o644)
	cfg.PromptsFile = path
	p, err = cfg.Prompts()
	if err != nil || p.SystemRules != "Be terse." || p.UserHeader != wotrtl.DefaultPrompts().UserHeader {
		t.Errorf("prompts = %+v, %v", p, err)
	}
}

func TestOutputPath(t *testing.T) {
	cfg := Default()
	cfg.Workdir = "work"
	if got := cfg.OutputPath(); got != filepath.Join("work", DefaultOutput) {
		t.Errorf("OutputPath() = %q", got)
	}
	cfg.Output = "csCZ.json"
	if got := cfg.OutputPath(); got != "csCZ.json" {
		t.Errorf("OutputPath() = %q", got)
	}
}
