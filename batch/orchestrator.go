package batch

import (
	"time"

	"github.com/google/uuid"
	"github.com/wotrcz/wotrtl"
	"github.com/wotrcz/wotrtl/provider"
	"go.uber.org/zap"
)

// Backend is the API surface the orchestrator drives: synchronous
// completions and the Batch API.
type Backend interface {
	wotrtl.AIProvider
	wotrtl.BatchProvider
}

// Options configures an Orchestrator.
type Options struct {
	Model   string
	Prompts wotrtl.Prompts
	Chat    provider.ChatOptions

	MaxChars          int // Runes per request block
	MaxLines          int // Rows per request block
	BatchBudgetTokens int // Estimated enqueued tokens per batch (0 = unlimited)
	BatchMaxBytes     int // JSONL bytes per batch (0 = unlimited)

	PollInterval      time.Duration // Job polling period in sync mode
	Timeout           time.Duration // Give up on a polled job after this long (0 = never)
	RequestTimeout    time.Duration // Per synchronous request attempt (0 = none)
	MaxConcurrent     int           // Synchronous requests in flight
	RequestsPerMinute int           // API calls of any kind; 0 = default limit, <0 = unlimited
	Retry             wotrtl.RetryConfig

	AbortFailMin   int     // Mass-failure guard: minimum processed requests
	AbortFailRatio float64 // Mass-failure guard: failed/processed ratio
	MaxAttempts    int     // Submissions per batch (0 = unlimited)

	DryRun bool
	Cache  wotrtl.TranslationCache
	Logger *zap.Logger
	RunID  string

	// OnProgress, if set, is called after each synchronous request.
	OnProgress func(Progress)
}

// Progress reports synchronous dispatch of one batch.
type Progress struct {
	Batch  int
	Done   int
	Total  int
	Errors int
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		Model:             wotrtl.DefaultModel,
		Prompts:           wotrtl.DefaultPrompts(),
		MaxChars:          18000,
		MaxLines:          350,
		BatchBudgetTokens: 900000,
		PollInterval:      15 * time.Second,
		RequestTimeout:    5 * time.Minute,
		MaxConcurrent:     4,
		Retry:             wotrtl.DefaultRetryConfig(),
		AbortFailMin:      20,
		AbortFailRatio:    0.90,
	}
}

// Orchestrator drives the batches of one workspace.
type Orchestrator struct {
	ws      *Workspace
	seq     *Sequence
	backend Backend
	api     *batchAPI
	pace    *wotrtl.Throttle
	opts    Options
	log     *zap.Logger
	runID   string
	now     func() time.Time
}

// New creates an orchestrator for the workspace at root. backend may be
// nil for commands that never call the API (prepare, reslice, merge,
// status) and for dry runs.
func New(root string, backend Backend, opts Options) *Orchestrator {
	ws := NewWorkspace(root)
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	if opts.Model == "" {
		opts.Model = wotrtl.DefaultModel
	}
	if opts.Prompts == (wotrtl.Prompts{}) {
		opts.Prompts = wotrtl.DefaultPrompts()
	}
	log := logger.With(zap.String("run_id", runID))
	pace := wotrtl.NewThrottle(wotrtl.ThrottleConfig{
		RequestsPerMinute: opts.RequestsPerMinute,
		MaxInFlight:       opts.MaxConcurrent,
	})
	o := &Orchestrator{
		ws:      ws,
		seq:     NewSequence(ws),
		backend: backend,
		pace:    pace,
		opts:    opts,
		log:     log,
		runID:   runID,
		now:     time.Now,
	}
	if backend != nil {
		o.api = &batchAPI{backend: backend, throttle: pace, retry: opts.Retry, log: log}
	}
	return o
}

// Workspace returns the orchestrator's workspace.
func (o *Orchestrator) Workspace() *Workspace { return o.ws }

// RunID identifies this invocation in state records and the sequence log.
func (o *Orchestrator) RunID() string { return o.runID }

func (o *Orchestrator) saveState(s *State) error {
	s.RunID = o.runID
	s.UpdatedAt = o.now().UTC().Format(time.RFC3339)
	return o.ws.SaveState(s)
}

// StatusReport lists every batch and the count per status.
type StatusReport struct {
	Counts  map[string]int
	Batches []*State
}

// Status reads the state records of the workspace.
func (o *Orchestrator) Status() (*StatusReport, error) {
	states, err := o.ws.States()
	if err != nil {
		return nil, err
	}
	r := &StatusReport{Counts: map[string]int{}, Batches: states}
	for _, s := range states {
		r.Counts[s.Status]++
	}
	return r, nil
}
