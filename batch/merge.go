package batch

import (
	"sort"
	"strings"

	"github.com/wotrcz/wotrtl"
	"github.com/wotrcz/wotrtl/catalog"
	"go.uber.org/zap"
)

// MergeOptions configures Merge.
type MergeOptions struct {
	Output         string // Translated document; its current content is the base when it exists
	IncludeBatches []int  // Batches whose translations overwrite existing values
	DryRun         bool
}

// MergeResult summarises a merge.
type MergeResult struct {
	Applied        int // Entries written
	Unchanged      int // Translation equal to the current value
	Kept           int // Existing translations left alone (collisions)
	Missing        int // Mapped entries still without a translation
	Invalid        int // Trans lines whose idx is not in the map
	Batches        []int
	SkippedBatches []int // Not completed, their trans files are ignored
	Collisions     []*wotrtl.CollisionError
	Document       *catalog.Document
}

// Merge applies the translations of completed batches to the output
// document. An entry is written when its current value is missing (absent,
// blank or still the source text) or when its batch is included explicitly
// (backfill overwrite or IncludeBatches). Within one merge later batches
// win over earlier ones.
func (o *Orchestrator) Merge(cat *catalog.Catalog, opts MergeOptions) (*MergeResult, error) {
	states, err := o.ws.States()
	if err != nil {
		return nil, err
	}

	base := cat.Source.Clone()
	if opts.Output != "" && catalog.Exists(opts.Output) {
		base, err = catalog.Load(opts.Output)
		if err != nil {
			return nil, err
		}
	}

	include := make(map[int]bool, len(opts.IncludeBatches))
	for _, n := range opts.IncludeBatches {
		include[n] = true
	}

	res := &MergeResult{Document: base}
	written := make(map[string]bool)
	for _, st := range states {
		if st.Status != StatusCompleted {
			if st.Status != StatusReplaced {
				res.SkippedBatches = append(res.SkippedBatches, st.BatchNo)
			}
			continue
		}
		path := o.ws.TransPath(st.BatchNo)
		if !catalog.Exists(path) {
			o.log.Warn("completed batch has no translations", zap.Int("batch", st.BatchNo))
			continue
		}
		trans, err := catalog.ReadTrans(path)
		if err != nil {
			return nil, err
		}
		res.Batches = append(res.Batches, st.BatchNo)
		force := st.Overwrite || include[st.BatchNo]

		idxs := make([]int, 0, len(trans))
		for idx := range trans {
			idxs = append(idxs, idx)
		}
		sort.Ints(idxs)

		for _, idx := range idxs {
			guid, ok := cat.Map.GUID(idx)
			if !ok {
				res.Invalid++
				continue
			}
			text := wotrtl.UnescapeCell(trans[idx])
			current, exists := base.Get(guid)
			if !exists {
				res.Invalid++
				continue
			}
			switch {
			case current == text:
				res.Unchanged++
			case force || written[guid] || isMissing(current, cat.SourceText(guid)):
				base.Set(guid, text)
				written[guid] = true
				res.Applied++
			default:
				res.Kept++
				res.Collisions = append(res.Collisions, &wotrtl.CollisionError{Key: guid, Existing: current, Incoming: text})
			}
		}
	}

	for _, idx := range cat.Map.Indexes() {
		guid, _ := cat.Map.GUID(idx)
		src := cat.SourceText(guid)
		if strings.TrimSpace(src) == "" {
			continue
		}
		if current, ok := base.Get(guid); !ok || isMissing(current, src) {
			res.Missing++
		}
	}

	o.log.Info("merge computed",
		zap.Int("applied", res.Applied),
		zap.Int("unchanged", res.Unchanged),
		zap.Int("kept", res.Kept),
		zap.Int("missing", res.Missing),
		zap.Ints("skipped_batches", res.SkippedBatches))

	if opts.DryRun || opts.Output == "" {
		return res, nil
	}
	if err := base.WriteFile(opts.Output); err != nil {
		return res, err
	}
	o.log.Info("merged document written", zap.String("path", opts.Output))
	return res, nil
}

func isMissing(current, source string) bool {
	return strings.TrimSpace(current) == "" || current == source
}
