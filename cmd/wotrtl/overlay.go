package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"github.com/wotrcz/wotrtl"
	"github.com/wotrcz/wotrtl/catalog"
	"github.com/wotrcz/wotrtl/overlay"
)

func newOverlayCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overlay",
		Short: "Mark in-game texts with their indexes",
		Long: `Debug overlays for play testing: append " (IDX)" to texts so a line
seen in the game can be found in the tables, strip the markers again, or
build a labels document of "IDX first words" texts.`,
	}
	cmd.AddCommand(
		newOverlayIndexCmd(a, "append", "Append \" (IDX)\" to every selected text"),
		newOverlayIndexCmd(a, "strip", "Remove \" (IDX)\" markers"),
		newOverlayLabelsCmd(a),
	)
	return cmd
}

func newOverlayIndexCmd(a *app, use, short string) *cobra.Command {
	var (
		opts   overlay.Options
		only   string
		output string
	)
	cmd := &cobra.Command{
		Use:   use + " <document>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := selection(only)
			if err != nil {
				return err
			}
			opts.Only = sel

			m, err := a.indexMap()
			if err != nil {
				return err
			}
			doc, err := catalog.Load(args[0])
			if err != nil {
				return err
			}

			var res *overlay.Result
			if use == "append" {
				res = overlay.AppendIndex(doc, m, opts)
			} else {
				res = overlay.Strip(doc, m, opts)
			}

			a.ok("selected=%d changed=%d unchanged=%d missing=%d", res.Total, res.Changed, res.Unchanged, res.Missing)
			for _, c := range res.Collisions {
				a.warn("%s: %q already ends with a marker, left as is (--force to mark anyway)", c.Key, c.Existing)
			}
			if a.dryRun {
				a.dryRunNote()
				return nil
			}
			if res.Changed == 0 && output == "" {
				return nil
			}
			if output == "" {
				output = args[0]
			}
			return res.Document.WriteFile(output)
		},
	}
	cmd.Flags().StringVar(&only, "only", "", "Indexes to mark, e.g. 10-20,35 (default all)")
	cmd.Flags().StringVar(&output, "output", "", "Write here instead of over the document")
	if use == "append" {
		cmd.Flags().BoolVar(&opts.Force, "force", false, "Mark texts already ending in (digits): replace a foreign marker, stack an own one")
	} else {
		cmd.Flags().BoolVar(&opts.Loose, "loose", false, "Remove any trailing (digits) marker")
	}
	return cmd
}

func newOverlayLabelsCmd(a *app) *cobra.Command {
	var (
		id     string
		output string
	)
	cmd := &cobra.Command{
		Use:   "labels",
		Short: "Write a document whose texts are \"IDX first words\" of the source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return &wotrtl.InputError{Message: "--output is required"}
			}
			cat, err := a.catalog()
			if err != nil {
				return err
			}
			doc := overlay.Labels(cat, id)
			a.ok("labels=%d -> %s", cat.Map.Len(), output)
			if a.dryRun {
				a.dryRunNote()
				return nil
			}
			return doc.WriteFile(output)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Locale $id of the labels document (nested documents only)")
	cmd.Flags().StringVar(&output, "output", "", "Labels document")
	return cmd
}

// ---------------------------------------------------------------------------
// export-speakers
// ---------------------------------------------------------------------------

func newExportSpeakersCmd(a *app) *cobra.Command {
	var (
		opts      overlay.SpeakerOptions
		namesFile string
		output    string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "export-speakers <document> <speakers.tsv>",
		Short: "Export the translated lines of selected speakers",
		Long: `Read a speakers table (key, speaker_name, speaker_gender) and export
the translated text of every line spoken by one of the names, by default
the companion heroines, for gender review.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if namesFile != "" {
				names, err := overlay.LoadNames(namesFile)
				if err != nil {
					return err
				}
				opts.Names = names
			}
			doc, err := catalog.Load(args[0])
			if err != nil {
				return err
			}
			table, err := catalog.ReadTable(args[1])
			if err != nil {
				return err
			}
			lines, stats, err := overlay.ExportSpeakers(doc, table, opts)
			if err != nil {
				return err
			}

			// the lines own stdout unless they go to a file
			summary := a
			if output == "" || asJSON {
				summary = &app{stdout: a.stderr}
			}
			summary.ok("scanned=%d matched=%d exported=%d duplicates=%d empty=%d",
				stats.Scanned, stats.Matched, len(lines), stats.Duplicates, stats.Empty)
			switch {
			case asJSON:
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				enc.SetEscapeHTML(false)
				return enc.Encode(lines)
			case output == "":
				tw := catalog.NewTSVWriter(a.stdout)
				for _, l := range lines {
					if err := tw.Write(l.Key, l.Gender, l.Name, l.Text); err != nil {
						return err
					}
				}
				return tw.Flush()
			case a.dryRun:
				a.dryRunNote()
				return nil
			}
			return overlay.WriteSpeakers(output, lines)
		},
	}
	cmd.Flags().StringVar(&namesFile, "names", "", "File with one speaker name per line")
	cmd.Flags().StringVar(&opts.Gender, "gender", "", "Only this speaker_gender")
	cmd.Flags().StringVar(&output, "output", "", "TSV output (default stdout)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the lines as JSON")
	return cmd
}
