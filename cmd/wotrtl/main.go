// Command wotrtl translates the game's string table through the OpenAI
// Batch API and audits, patches and compares the results.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/wotrcz/wotrtl"
	"github.com/wotrcz/wotrtl/batch"
	"github.com/wotrcz/wotrtl/catalog"
	"github.com/wotrcz/wotrtl/config"
	"github.com/wotrcz/wotrtl/logging"
	"github.com/wotrcz/wotrtl/provider"
	"go.uber.org/zap"
)

// Build-time variables (can be overridden with ldflags)
var (
	version   = wotrtl.Version
	commit    = wotrtl.GitCommit
	buildDate = wotrtl.BuildDate
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	// A missing .env is fine; variables already set win.
	_ = godotenv.Load()

	return execute(&app{stdout: stdout, stderr: stderr, backend: openAIBackend}, args)
}

func execute(a *app, args []string) error {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	return root.Execute()
}

func openAIBackend(cfg *config.Config, apiKey string) batch.Backend {
	return provider.NewOpenAIProvider(cfg.OpenAI(apiKey))
}

// app carries the global flags and the output streams of one invocation.
type app struct {
	stdout, stderr io.Writer

	configPath string
	workdir    string
	input      string
	dryRun     bool
	verbose    bool

	cfg     *config.Config
	backend func(cfg *config.Config, apiKey string) batch.Backend
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "wotrtl",
		Short: "Batch AI translation toolkit for the WotR string table",
		Long: `wotrtl translates the game's string table (enGB.json) with an
OpenAI-compatible model and keeps the work resumable in a workspace.

Workflow:
  prepare   Split the source into requests and batches
  run       Submit batches (or translate synchronously) and collect results
  merge     Write translations into the translated document
  audit     Find missing, suspect and corrupt translations
  patch     Apply a TSV of corrections to a document`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Config file (default ./"+config.FileName+" when present)")
	pf.StringVarP(&a.workdir, "workdir", "o", "", "Workspace directory")
	pf.StringVarP(&a.input, "input", "i", "", "Source document (enGB.json)")
	pf.BoolVar(&a.dryRun, "dry-run", false, "Report what would change without writing")
	pf.BoolVar(&a.verbose, "verbose", false, "Debug logging on the console")

	root.AddCommand(
		newPrepareCmd(a),
		newRunCmd(a),
		newMergeCmd(a),
		newResliceCmd(a),
		newStatusCmd(a),
		newAuditCmd(a),
		newPatchCmd(a),
		newOverlayCmd(a),
		newExportSpeakersCmd(a),
		newCompareCmd(a),
		newCacheCmd(a),
		newVersionCmd(a),
	)
	return root
}

// loadConfig reads the config file and applies the global flag overrides.
func (a *app) loadConfig(cmd *cobra.Command) error {
	path, optional := a.configPath, false
	if path == "" {
		path, optional = config.FileName, true
	}
	cfg, err := config.Load(path, optional)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("workdir") {
		cfg.Workdir = a.workdir
	}
	if cmd.Flags().Changed("input") {
		cfg.Input = a.input
	}
	a.cfg = cfg
	return nil
}

// logger builds the console logger; workspace commands also append to the
// status log unless this is a dry run.
func (a *app) logger(withStatusLog bool) (*zap.Logger, func() error, error) {
	opts := logging.Options{Verbose: a.verbose, Console: a.stderr}
	if withStatusLog && !a.dryRun {
		opts.File = batch.NewWorkspace(a.cfg.Workdir).LogPath()
	}
	return logging.New(opts)
}

// catalog opens the source document with the workspace index map.
func (a *app) catalog() (*catalog.Catalog, error) {
	if a.cfg.Input == "" {
		return nil, &wotrtl.InputError{Message: "no source document (--input or config input)"}
	}
	return catalog.Open(a.cfg.Input, a.cfg.Workdir)
}

// indexMap returns the workspace map.json, or the map derived from the
// source document when the workspace has none.
func (a *app) indexMap() (*catalog.IndexMap, error) {
	path := filepath.Join(a.cfg.Workdir, catalog.MapFile)
	if catalog.Exists(path) {
		return catalog.LoadIndexMap(path)
	}
	if a.cfg.Input == "" {
		return nil, &wotrtl.InputError{Path: path, Message: "no index map and no source document to derive one"}
	}
	cat, err := a.catalog()
	if err != nil {
		return nil, err
	}
	return cat.Map, nil
}

// batchOptions returns the orchestrator options of the loaded config.
func (a *app) batchOptions(log *zap.Logger) (batch.Options, error) {
	opts := a.cfg.BatchOptions()
	prompts, err := a.cfg.Prompts()
	if err != nil {
		return opts, err
	}
	opts.Prompts = prompts
	opts.DryRun = a.dryRun
	opts.Logger = log
	return opts, nil
}

// orchestrator builds an orchestrator for commands that never call the API.
func (a *app) orchestrator(log *zap.Logger) (*batch.Orchestrator, error) {
	opts, err := a.batchOptions(log)
	if err != nil {
		return nil, err
	}
	return batch.New(a.cfg.Workdir, nil, opts), nil
}

// selection parses an index selection flag; empty means everything.
func selection(expr string) ([]int, error) {
	if expr == "" {
		return nil, nil
	}
	sel, err := catalog.ParseSelection(expr)
	if err != nil {
		return nil, &wotrtl.InputError{Message: "bad selection " + expr, Cause: err}
	}
	return sel, nil
}

// ---------------------------------------------------------------------------
// Summaries
// ---------------------------------------------------------------------------

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	failColor = color.New(color.FgRed)
	headColor = color.New(color.FgBlue, color.Bold)
)

func (a *app) ok(format string, args ...any) {
	okColor.Fprint(a.stdout, "[OK] ")
	fmt.Fprintf(a.stdout, format+"\n", args...)
}

func (a *app) warn(format string, args ...any) {
	warnColor.Fprint(a.stdout, "[WARN] ")
	fmt.Fprintf(a.stdout, format+"\n", args...)
}

func (a *app) fail(format string, args ...any) {
	failColor.Fprint(a.stdout, "[FAIL] ")
	fmt.Fprintf(a.stdout, format+"\n", args...)
}

func (a *app) dryRunNote() {
	if a.dryRun {
		warnColor.Fprintln(a.stdout, "dry run: nothing written")
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "%s %s\n", wotrtl.Name, version)
			if commit != "unknown" && commit != "" {
				fmt.Fprintf(a.stdout, "  commit:  %s\n", commit)
			}
			if buildDate != "unknown" && buildDate != "" {
				fmt.Fprintf(a.stdout, "  built:   %s\n", buildDate)
			}
		},
	}
}
