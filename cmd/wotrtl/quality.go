package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/wotrcz/wotrtl"
	"github.com/wotrcz/wotrtl/audit"
	"github.com/wotrcz/wotrtl/batch"
	"github.com/wotrcz/wotrtl/catalog"
	"github.com/wotrcz/wotrtl/patch"
	"github.com/wotrcz/wotrtl/report"
)

// ---------------------------------------------------------------------------
// audit
// ---------------------------------------------------------------------------

func newAuditCmd(a *app) *cobra.Command {
	var (
		translation string
		appendRows  bool
		backfill    bool
		categories  []string
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Find missing, suspect and corrupt translations",
		Long: `Compare the translated document with the source and write
audit/missing.tsv, audit/suspect.tsv, audit/corrupt.tsv and
audit/summary.json into the workspace.

With --backfill the flagged indexes are written as new pending batches;
suspect and corrupt batches overwrite existing translations on merge.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("translation") {
				a.cfg.Output = translation
			}
			cat, err := a.catalog()
			if err != nil {
				return err
			}
			doc, err := catalog.Load(a.cfg.OutputPath())
			if err != nil {
				return err
			}
			res, err := audit.Audit(cat, audit.FromDocument(cat, doc), a.cfg.Audit)
			if err != nil {
				return err
			}

			a.ok("checked=%d missing=%d suspect=%d corrupt=%d",
				res.Checked, len(res.Missing), len(res.Suspect), len(res.Corrupt))
			if a.dryRun {
				a.dryRunNote()
				return nil
			}

			dir := batch.NewWorkspace(a.cfg.Workdir).Path(batch.AuditDir)
			if _, err := audit.WriteReports(dir, res, appendRows); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "reports written to %s\n", dir)

			if !backfill {
				return nil
			}
			sets, err := backfillSets(res, categories)
			if err != nil {
				return err
			}
			if len(sets) == 0 {
				a.warn("nothing to backfill")
				return nil
			}

			log, closeLog, err := a.logger(true)
			if err != nil {
				return err
			}
			defer closeLog()
			o, err := a.orchestrator(log)
			if err != nil {
				return err
			}
			man, err := o.Backfill(cat, sets)
			if err != nil {
				return err
			}
			for _, c := range man.Created {
				a.ok("backfill %s -> batch %d (%s)", c.Category, c.BatchNo, c.JSONL)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&translation, "translation", "", "Translated document (default the merge output)")
	cmd.Flags().BoolVar(&appendRows, "append", false, "Append to existing reports instead of rewriting them")
	cmd.Flags().BoolVar(&backfill, "backfill", false, "Create re-translation batches for the findings")
	cmd.Flags().StringSliceVar(&categories, "categories", []string{"missing", "suspect", "corrupt"}, "Finding categories to backfill")
	return cmd
}

// backfillSets groups audit findings by category. An index both suspect
// and corrupt is re-translated once, as corrupt.
func backfillSets(res *audit.Result, categories []string) ([]batch.BackfillSet, error) {
	byCat := map[batch.Category][]int{
		batch.CategoryMissing: audit.Idxs(res.Missing),
		batch.CategoryCorrupt: audit.Idxs(res.Corrupt),
	}
	corrupt := make(map[int]bool, len(byCat[batch.CategoryCorrupt]))
	for _, idx := range byCat[batch.CategoryCorrupt] {
		corrupt[idx] = true
	}
	for _, idx := range audit.Idxs(res.Suspect) {
		if !corrupt[idx] {
			byCat[batch.CategorySuspect] = append(byCat[batch.CategorySuspect], idx)
		}
	}

	var sets []batch.BackfillSet
	for _, name := range categories {
		c := batch.Category(name)
		idxs, known := byCat[c]
		switch {
		case !known && c != batch.CategorySuspect:
			return nil, &wotrtl.InputError{Message: "unknown backfill category " + name}
		case len(idxs) == 0:
			continue
		}
		sets = append(sets, batch.BackfillSet{Category: c, Idxs: idxs})
	}
	return sets, nil
}

// ---------------------------------------------------------------------------
// patch
// ---------------------------------------------------------------------------

func newPatchCmd(a *app) *cobra.Command {
	var (
		opts        = patch.FileOptions{Options: patch.DefaultOptions()}
		keyType     string
		onGuardFail string
		keepEmpty   bool
		noUnescape  bool
	)
	cmd := &cobra.Command{
		Use:   "patch <document> <table.tsv>",
		Short: "Apply a table of corrections to a document",
		Long: `Replace the text of every key listed in the table. Keys are indexes
from map.json or GUIDs; only keys already in the document are touched.
The document is written atomically and only when something changed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.KeyType = patch.KeyType(keyType)
			opts.OnGuardFail = patch.GuardMode(onGuardFail)
			opts.SkipEmpty = !keepEmpty
			opts.Unescape = !noUnescape
			opts.DryRun = a.dryRun

			// GUID keys need no map
			var m *catalog.IndexMap
			if a.cfg.Input != "" || catalog.Exists(filepath.Join(a.cfg.Workdir, catalog.MapFile)) {
				var err error
				if m, err = a.indexMap(); err != nil {
					return err
				}
			}
			res, err := patch.ApplyFile(args[0], args[1], m, opts)
			if res == nil {
				return err
			}

			a.ok("key=%s value=%s changed=%d same=%d empty_skip=%d guard_skip=%d duplicates=%d",
				res.KeyCol, res.ValueCol,
				res.Counts[patch.ActionChanged], res.Counts[patch.ActionSame],
				res.Counts[patch.ActionEmptySkip], res.Counts[patch.ActionGuardSkip], res.Duplicates)
			if bad := res.Counts[patch.ActionInvalidKey] + res.Counts[patch.ActionMissingKey]; bad > 0 {
				a.fail("invalid_key=%d missing_key=%d", res.Counts[patch.ActionInvalidKey], res.Counts[patch.ActionMissingKey])
			}
			if err != nil {
				return err
			}
			a.dryRunNote()
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.KeyCol, "key-col", "", "Key column (default idx, guid, key or the first column)")
	f.StringVar(&opts.ValueCol, "value-col", "", "Value column (default translation, cs, cs_text, value or text)")
	f.StringVar(&keyType, "key-type", string(patch.KeyAuto), "auto, idx or guid")
	f.BoolVar(&keepEmpty, "keep-empty", false, "Apply empty values instead of skipping them")
	f.BoolVar(&noUnescape, "no-unescape", false, "Keep literal \\n \\t \\r sequences")
	f.BoolVar(&opts.VerifyGuards, "guards", false, "Compare {placeholders} and {g|..}{/g} links before and after")
	f.StringVar(&onGuardFail, "on-guard-fail", string(patch.GuardPatch), "patch, skip or fail")
	f.BoolVar(&opts.FailOnMissing, "fail-on-missing", false, "Fail when a key is not in the document")
	f.StringVar(&opts.Output, "output", "", "Write here instead of over the document")
	f.BoolVar(&opts.Backup, "backup", false, "Keep the previous output as <output>.bak")
	f.StringVar(&opts.Report, "report", "", "Write a per-row TSV report")
	return cmd
}

// ---------------------------------------------------------------------------
// compare
// ---------------------------------------------------------------------------

func newCompareCmd(a *app) *cobra.Command {
	var (
		opts    report.Options
		prefer  string
		tsvOut  string
		htmlOut string
		merged  string
		title   string
	)
	cmd := &cobra.Command{
		Use:   "compare <a.json> <b.json>",
		Short: "Score two translations of the source and pick the better one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Bounds = a.cfg.Compare
			opts.Prefer = prefer
			opts.Lang = a.cfg.TargetLang

			cat, err := a.catalog()
			if err != nil {
				return err
			}
			docA, err := catalog.Load(args[0])
			if err != nil {
				return err
			}
			docB, err := catalog.Load(args[1])
			if err != nil {
				return err
			}
			cmp, err := report.Compare(cat, docA, docB, opts)
			if err != nil {
				return err
			}

			a.ok("rows=%d picked_a=%d picked_b=%d same=%d", len(cmp.Rows), cmp.PickedA, cmp.PickedB, cmp.Same)
			st := cmp.Stats
			fmt.Fprintf(a.stdout, "a -> b: added=%d removed=%d modified=%d unchanged=%d\n",
				st.Added, st.Removed, st.Modified, st.Unchanged)
			if a.dryRun {
				a.dryRunNote()
				return nil
			}

			if tsvOut != "" {
				if err := report.WriteTSVFile(tsvOut, cmp); err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "tsv: %s\n", tsvOut)
			}
			if htmlOut != "" {
				if title == "" {
					title = filepath.Base(args[0]) + " vs " + filepath.Base(args[1])
				}
				if err := report.WriteHTMLFile(htmlOut, cmp, title); err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "html: %s\n", htmlOut)
			}
			if merged != "" {
				if err := cmp.Merged.WriteFile(merged); err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "merged: %s\n", merged)
			}
			return nil
		},
	}
	def := report.DefaultOptions()
	f := cmd.Flags()
	f.StringVar(&prefer, "prefer", def.Prefer, "Side picked on equal scores (a or b)")
	f.BoolVar(&opts.OnlyCommon, "only-common", def.OnlyCommon, "Only keys translated on both sides")
	f.BoolVar(&opts.IncludeSame, "include-same", def.IncludeSame, "Also list keys with equal texts")
	f.StringVar(&tsvOut, "tsv", "", "Write the comparison as TSV")
	f.StringVar(&htmlOut, "html", "", "Write the comparison as an HTML page")
	f.StringVar(&merged, "merged", "", "Write the document made of the picked texts")
	f.StringVar(&title, "title", "", "HTML page title")
	return cmd
}
