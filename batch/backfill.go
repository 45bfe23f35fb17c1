package batch

import (
	"fmt"
	"sort"
	"time"

	"github.com/wotrcz/wotrtl"
	"github.com/wotrcz/wotrtl/catalog"
	"go.uber.org/zap"
)

// BackfillManifestFile records the batches created by Backfill, relative
// to the workspace's audit folder.
const BackfillManifestFile = "backfill_manifest.json"

// Category names an audit finding that can be re-translated.
type Category string

const (
	CategoryMissing Category = "missing"
	CategorySuspect Category = "suspect"
	CategoryCorrupt Category = "corrupt"
)

// CustomIDPrefix returns the custom_id prefix of requests built for c.
func (c Category) CustomIDPrefix() string {
	switch c {
	case CategorySuspect:
		return "AUD_SUS"
	case CategoryCorrupt:
		return "AUD_CORR"
	default:
		return "AUD_MISS"
	}
}

// Overwrites reports whether merged translations of c replace existing
// values. Missing entries have nothing to replace.
func (c Category) Overwrites() bool {
	return c == CategorySuspect || c == CategoryCorrupt
}

// BackfillSet is one category and the indexes to re-translate.
type BackfillSet struct {
	Category Category
	Idxs     []int
	Prompts  *wotrtl.Prompts // Overrides the orchestrator prompts (optional)
}

// BackfillCreated is one batch written by Backfill.
type BackfillCreated struct {
	Category Category `json:"category"`
	BatchNo  int      `json:"batch_no"`
	JSONL    string   `json:"jsonl"`
}

// BackfillManifest is written to audit/backfill_manifest.json.
type BackfillManifest struct {
	Created   []BackfillCreated `json:"created"`
	Counts    map[string]int    `json:"counts"`
	Params    map[string]any    `json:"params"`
	Timestamp string            `json:"timestamp"`
}

// Backfill writes new pending batches re-translating the given indexes.
// Batches are cut by BatchMaxBytes first and the token budget second;
// suspect and corrupt batches are flagged to overwrite on merge.
func (o *Orchestrator) Backfill(cat *catalog.Catalog, sets []BackfillSet) (*BackfillManifest, error) {
	man := &BackfillManifest{
		Counts: map[string]int{},
		Params: map[string]any{
			"max_lines":       o.opts.MaxLines,
			"max_chars":       o.opts.MaxChars,
			"batch_max_bytes": o.opts.BatchMaxBytes,
			"batch_budget":    o.opts.BatchBudgetTokens,
			"model":           o.opts.Model,
		},
		Timestamp: o.now().Format(time.RFC3339),
	}
	if !o.opts.DryRun {
		if err := o.ws.Ensure(); err != nil {
			return nil, err
		}
	}

	next := 0
	if o.opts.DryRun {
		maxNo, err := o.seq.Max()
		if err != nil {
			return nil, err
		}
		next = maxNo + 1
	}

	for _, set := range sets {
		man.Counts[string(set.Category)] += len(set.Idxs)
		rows := backfillRows(cat, set.Idxs)
		if len(rows) == 0 {
			o.log.Info("no backfill candidates", zap.String("category", string(set.Category)))
			continue
		}

		p := o.opts.Prompts
		if set.Prompts != nil {
			p = *set.Prompts
		}
		prefix := set.Category.CustomIDPrefix()
		reqs := buildRequests(rows, p, o.opts.Model, o.opts.Chat, o.opts.MaxChars, o.opts.MaxLines,
			func(seq int) string { return fmt.Sprintf("%s_req%06d", prefix, seq) })

		for _, group := range groupRequests(reqs, o.opts.BatchBudgetTokens, o.opts.BatchMaxBytes) {
			if o.opts.DryRun {
				man.Created = append(man.Created, BackfillCreated{Category: set.Category, BatchNo: next, JSONL: RequestName(next)})
				next++
				continue
			}
			entry, _, err := o.writeBatch(group, ReasonBackfill, 0, set.Category.Overwrites())
			if err != nil {
				return man, err
			}
			man.Created = append(man.Created, BackfillCreated{Category: set.Category, BatchNo: entry.BatchNo, JSONL: entry.File})
			o.log.Info("backfill batch prepared",
				zap.String("category", string(set.Category)),
				zap.Int("batch", entry.BatchNo),
				zap.Int("requests", entry.Requests))
		}
	}

	if o.opts.DryRun || len(man.Created) == 0 {
		return man, nil
	}
	return man, writeJSON(o.ws.Path(AuditDir, BackfillManifestFile), man)
}

// backfillRows resolves idxs to source rows in ascending order, dropping
// unknown indexes and blank sources.
func backfillRows(cat *catalog.Catalog, idxs []int) []wotrtl.Row {
	sorted := append([]int(nil), idxs...)
	sort.Ints(sorted)
	var rows []wotrtl.Row
	seen := make(map[int]bool)
	for _, idx := range sorted {
		if seen[idx] {
			continue
		}
		seen[idx] = true
		if r, ok := cat.Row(idx); ok && r.Text != "" {
			rows = append(rows, r)
		}
	}
	return rows
}
