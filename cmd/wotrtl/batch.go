package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/wotrcz/wotrtl"
	"github.com/wotrcz/wotrtl/batch"
	"github.com/wotrcz/wotrtl/cache"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// prepare
// ---------------------------------------------------------------------------

func newPrepareCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "prepare",
		Short: "Split the source document into requests and batches",
		Long: `Write map.json (when absent), the request files, pending batch states,
plan.json and manifest.json into the workspace. A workspace that already
holds batches is left alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, closeLog, err := a.logger(true)
			if err != nil {
				return err
			}
			defer closeLog()

			cat, err := a.catalog()
			if err != nil {
				return err
			}
			o, err := a.orchestrator(log)
			if err != nil {
				return err
			}
			res, err := o.Prepare(cat)
			if err != nil {
				return err
			}
			if res.Skipped {
				a.warn("workspace %s already prepared, nothing to do", a.cfg.Workdir)
				return nil
			}
			a.ok("rows=%d requests=%d batches=%d map_written=%v", res.Rows, res.Requests, len(res.Plan), res.MapWritten)
			a.dryRunNote()
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// run
// ---------------------------------------------------------------------------

func newRunCmd(a *app) *cobra.Command {
	var (
		mode       string
		only       string
		apiKey     string
		model      string
		noProgress bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit batches or translate them synchronously",
		Long: `Process every batch that is not completed or replaced.

In batch mode new batches are submitted as Batch API jobs and running jobs
are checked once; run again later to collect them. In sync mode the command
blocks until every selected batch is finished, sending requests one by one
when no job is running.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("model") {
				a.cfg.Model = model
			}
			if mode == "" {
				mode = a.cfg.Run.Mode
			}
			sel, err := selection(only)
			if err != nil {
				return err
			}

			log, closeLog, err := a.logger(true)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			var backend batch.Backend
			if !a.dryRun {
				key := resolveAPIKey(apiKey, a.cfg.API.APIKey)
				if key == "" {
					return fmt.Errorf("OpenAI API key required (--api-key, config api.api_key or OPENAI_API_KEY)")
				}
				backend = a.backend(a.cfg, key)
			}

			opts, err := a.batchOptions(log)
			if err != nil {
				return err
			}

			c, err := cache.Open(ctx, a.cfg.CacheOptions())
			if err != nil {
				return err
			}
			defer c.Close()
			opts.Cache = c.Cache

			if mode == batch.ModeSync && !noProgress {
				bars := newProgressBars(a)
				defer bars.finish()
				opts.OnProgress = bars.update
			}
			o := batch.New(a.cfg.Workdir, backend, opts)

			res, err := o.Run(ctx, mode, sel)
			if err != nil {
				return err
			}
			a.printRun(res)
			a.dryRunNote()
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "batch or sync (default from config)")
	cmd.Flags().StringVar(&only, "only", "", "Batch numbers to process, e.g. 1,3-5")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "OpenAI API key (default: config, then OPENAI_API_KEY env)")
	cmd.Flags().StringVar(&model, "model", "", "Model override")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Hide sync progress bars")
	return cmd
}

// resolveAPIKey returns the first non-empty of the flag, the config and
// the environment.
func resolveAPIKey(flag, configured string) string {
	if flag != "" {
		return flag
	}
	if configured != "" {
		return configured
	}
	return os.Getenv("OPENAI_API_KEY")
}

func (a *app) printRun(res *batch.RunResult) {
	a.ok("submitted=%s completed=%s pending=%s split=%s",
		batchList(res.Submitted), batchList(res.Completed), batchList(res.Pending), batchList(res.Split))
	if len(res.Failed) > 0 {
		a.fail("failed=%s", batchList(res.Failed))
	}
	if len(res.Skipped) > 0 {
		a.warn("skipped after too many attempts=%s", batchList(res.Skipped))
	}
}

func batchList(ns []int) string {
	if len(ns) == 0 {
		return "-"
	}
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ",")
}

// progressBars shows one bar per batch dispatched in sync mode.
type progressBars struct {
	a    *app
	mu   sync.Mutex
	bars map[int]*progressbar.ProgressBar
}

func newProgressBars(a *app) *progressBars {
	return &progressBars{a: a, bars: map[int]*progressbar.ProgressBar{}}
}

func (p *progressBars) update(pr batch.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	bar, ok := p.bars[pr.Batch]
	if !ok {
		bar = progressbar.NewOptions(pr.Total,
			progressbar.OptionSetWriter(p.a.stderr),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription(fmt.Sprintf("[cyan]%s[reset]", batch.RequestName(pr.Batch))),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}))
		p.bars[pr.Batch] = bar
	}
	_ = bar.Set(pr.Done)
	if pr.Done >= pr.Total {
		_ = bar.Finish()
		fmt.Fprintln(p.a.stderr)
	}
}

func (p *progressBars) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, bar := range p.bars {
		if !bar.IsFinished() {
			_ = bar.Exit()
		}
	}
}

// ---------------------------------------------------------------------------
// merge
// ---------------------------------------------------------------------------

func newMergeCmd(a *app) *cobra.Command {
	var (
		output  string
		include string
	)
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Write completed translations into the translated document",
		Long: `Apply the trans/ files of completed batches to the translated document.
Missing entries (absent, blank or still the source text) are filled;
existing translations are kept unless their batch is a backfill overwrite
or listed with --include.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("output") {
				a.cfg.Output = output
			}
			inc, err := selection(include)
			if err != nil {
				return err
			}
			log, closeLog, err := a.logger(true)
			if err != nil {
				return err
			}
			defer closeLog()

			cat, err := a.catalog()
			if err != nil {
				return err
			}
			o, err := a.orchestrator(log)
			if err != nil {
				return err
			}
			res, err := o.Merge(cat, batch.MergeOptions{
				Output:         a.cfg.OutputPath(),
				IncludeBatches: inc,
				DryRun:         a.dryRun,
			})
			if err != nil {
				return err
			}

			a.ok("applied=%d unchanged=%d kept=%d missing=%d invalid=%d batches=%s -> %s",
				res.Applied, res.Unchanged, res.Kept, res.Missing, res.Invalid, batchList(res.Batches), a.cfg.OutputPath())
			if len(res.SkippedBatches) > 0 {
				a.warn("not completed, ignored: %s", batchList(res.SkippedBatches))
			}
			for _, c := range res.Collisions {
				log.Debug("collision kept", zap.String("key", c.Key))
			}
			if n := len(res.Collisions); n > 0 {
				a.warn("%d existing translations kept (use --include to overwrite)", n)
			}
			a.dryRunNote()
			return nil
		},
	}
	cmd.Flags().StringVar(&output, "output", "", "Translated document (default <workdir>/translated.json)")
	cmd.Flags().StringVar(&include, "include", "", "Batches whose translations overwrite existing values")
	return cmd
}

// ---------------------------------------------------------------------------
// reslice
// ---------------------------------------------------------------------------

func newResliceCmd(a *app) *cobra.Command {
	var (
		only   string
		into   int
		commit bool
	)
	cmd := &cobra.Command{
		Use:   "reslice",
		Short: "Divide pending batches into smaller ones",
		Long: `Split each selected batch into --into batches without splitting
requests. The plan is only printed unless --commit is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := selection(only)
			if err != nil {
				return err
			}
			if len(sel) == 0 {
				return &wotrtl.InputError{Message: "--only is required"}
			}
			log, closeLog, err := a.logger(commit)
			if err != nil {
				return err
			}
			defer closeLog()

			o, err := a.orchestrator(log)
			if err != nil {
				return err
			}
			plans, err := o.Reslice(sel, into, commit && !a.dryRun)
			if err != nil {
				return err
			}
			for _, p := range plans {
				switch {
				case p.Skipped != "":
					a.warn("batch %d skipped: %s", p.BatchNo, p.Skipped)
				case len(p.Created) > 0:
					a.ok("batch %d (%d requests) -> %s", p.BatchNo, p.Requests, batchList(p.Created))
				default:
					fmt.Fprintf(a.stdout, "batch %d (%d requests) would split into %s\n", p.BatchNo, p.Requests, batchList(p.Parts))
				}
			}
			if !commit || a.dryRun {
				warnColor.Fprintln(a.stdout, "plan only: add --commit to write")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&only, "only", "", "Batch numbers to reslice, e.g. 4,7-9")
	cmd.Flags().IntVar(&into, "into", 2, "Number of parts per batch")
	cmd.Flags().BoolVar(&commit, "commit", false, "Write the new batches")
	return cmd
}

// ---------------------------------------------------------------------------
// status
// ---------------------------------------------------------------------------

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of every batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := a.orchestrator(nil)
			if err != nil {
				return err
			}
			rep, err := o.Status()
			if err != nil {
				return err
			}
			if len(rep.Batches) == 0 {
				a.warn("no batches in %s, run prepare first", a.cfg.Workdir)
				return nil
			}

			headColor.Fprintf(a.stdout, "Workspace %s\n", a.cfg.Workdir)
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "BATCH\tSTATUS\tJOB\tATTEMPTS\tREASON\tUPDATED")
			for _, s := range rep.Batches {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n",
					s.BatchNo, s.Status, dash(s.BatchID), s.Attempts, dash(s.Reason), dash(s.UpdatedAt))
			}
			tw.Flush()

			statuses := make([]string, 0, len(rep.Counts))
			for st := range rep.Counts {
				statuses = append(statuses, st)
			}
			sort.Strings(statuses)
			parts := make([]string, len(statuses))
			for i, st := range statuses {
				parts[i] = fmt.Sprintf("%s=%d", st, rep.Counts[st])
			}
			fmt.Fprintln(a.stdout, strings.Join(parts, " "))
			return nil
		},
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
