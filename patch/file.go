package patch

import (
	"fmt"
	"io"
	"os"

	"github.com/wotrcz/wotrtl"
	"github.com/wotrcz/wotrtl/catalog"
)

// FileOptions configures ApplyFile.
type FileOptions struct {
	Options
	Output string // Defaults to the patched document itself
	Backup bool   // Copy the pre-patch output to <output>.bak
	DryRun bool
	Report string // TSV report path, optional
}

// ApplyFile patches the document at docPath with the table at tablePath and
// writes the result atomically. Nothing is written when the patch fails.
// The document is rewritten only when something changed.
func ApplyFile(docPath, tablePath string, m *catalog.IndexMap, opts FileOptions) (*Result, error) {
	doc, err := catalog.Load(docPath)
	if err != nil {
		return nil, err
	}
	table, err := catalog.ReadTable(tablePath)
	if err != nil {
		return nil, err
	}
	res, err := Apply(doc, m, table, opts.Options)
	if err != nil {
		return nil, err
	}
	if opts.DryRun {
		return res, nil
	}
	if res.Failed() {
		return res, &wotrtl.KeyError{
			Key:    tablePath,
			Reason: fmt.Sprintf("%d unresolvable keys", res.Counts[ActionInvalidKey]+res.Counts[ActionMissingKey]),
		}
	}

	if opts.Report != "" {
		if err := WriteReport(opts.Report, res); err != nil {
			return res, err
		}
	}

	out := opts.Output
	if out == "" {
		out = docPath
	}
	if res.Changed() == 0 && out == docPath {
		return res, nil
	}
	if opts.Backup && catalog.Exists(out) {
		data, err := os.ReadFile(out)
		if err != nil {
			return res, err
		}
		if err := catalog.WriteFileAtomic(out+".bak", data); err != nil {
			return res, err
		}
	}
	return res, res.Document.WriteFile(out)
}

// WriteReport writes one "key action old_text new_text" line per row.
func WriteReport(path string, res *Result) error {
	return catalog.WriteAtomic(path, func(w io.Writer) error {
		tw := catalog.NewTSVWriter(w)
		if err := tw.Write("key", "action", "old_text", "new_text"); err != nil {
			return err
		}
		for _, r := range res.Rows {
			key := r.GUID
			if key == "" {
				key = r.Key
			}
			if err := tw.Write(key, string(r.Action), r.Old, r.New); err != nil {
				return err
			}
		}
		return tw.Flush()
	})
}
