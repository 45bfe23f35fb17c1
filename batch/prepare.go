package batch

import (
	"fmt"
	"strings"

	"github.com/wotrcz/wotrtl"
	"github.com/wotrcz/wotrtl/catalog"
	"go.uber.org/zap"
)

// PrepareResult describes the batches written by Prepare.
type PrepareResult struct {
	Skipped    bool // The workspace was already prepared
	MapWritten bool
	Rows       int
	Requests   int
	Plan       []PlanEntry
}

// Prepare splits the catalog into requests and batches and writes
// map.json (if absent), the request files, pending states, plan.json and
// manifest.json. A workspace that already holds batches is left alone.
func (o *Orchestrator) Prepare(cat *catalog.Catalog) (*PrepareResult, error) {
	if cat == nil || cat.Source == nil || cat.Source.Len() == 0 {
		return nil, &wotrtl.InputError{Message: "source document has no strings"}
	}
	if !o.opts.DryRun {
		if err := o.ws.Ensure(); err != nil {
			return nil, err
		}
	}

	res := &PrepareResult{}
	if !o.opts.DryRun {
		written, err := cat.Map.WriteIfAbsent(o.ws.Path(catalog.MapFile))
		if err != nil {
			return nil, err
		}
		res.MapWritten = written
	}

	empty, err := o.seq.Empty()
	if err != nil {
		return nil, err
	}
	if !empty {
		res.Skipped = true
		o.log.Info("workspace already prepared, nothing to do", zap.String("workspace", o.ws.Root))
		return res, nil
	}

	var rows []wotrtl.Row
	for _, r := range cat.Rows() {
		if strings.TrimSpace(r.Text) != "" {
			rows = append(rows, r)
		}
	}
	res.Rows = len(rows)
	if len(rows) == 0 {
		return nil, &wotrtl.InputError{Message: "source document has only blank strings"}
	}

	reqs := buildRequests(rows, o.opts.Prompts, o.opts.Model, o.opts.Chat, o.opts.MaxChars, o.opts.MaxLines,
		func(seq int) string { return fmt.Sprintf("prep_%06d", seq) })
	res.Requests = len(reqs)

	groups := groupRequests(reqs, o.opts.BatchBudgetTokens, o.opts.BatchMaxBytes)
	if o.opts.DryRun {
		res.Plan = dryPlan(groups, 1)
		o.log.Info("dry run: plan not written", zap.Int("requests", res.Requests), zap.Int("batches", len(res.Plan)))
		return res, nil
	}

	var manifest []ManifestEntry
	for _, group := range groups {
		entry, m, err := o.writeBatch(group, ReasonPrepare, 0, false)
		if err != nil {
			return nil, err
		}
		res.Plan = append(res.Plan, entry)
		manifest = append(manifest, m...)
		o.log.Info("batch prepared",
			zap.Int("batch", entry.BatchNo),
			zap.Int("requests", entry.Requests),
			zap.Int("est_tokens", entry.EstTokens))
	}

	if err := writeJSON(o.ws.Path(ManifestFile), manifest); err != nil {
		return nil, err
	}
	if err := writeJSON(o.ws.Path(PlanFile), res.Plan); err != nil {
		return nil, err
	}

	o.log.Info("plan written",
		zap.Int("rows", res.Rows),
		zap.Int("requests", res.Requests),
		zap.Int("batches", len(res.Plan)))
	return res, nil
}

// dryPlan numbers groups from first on without allocating anything.
func dryPlan(groups [][]request, first int) []PlanEntry {
	plan := make([]PlanEntry, len(groups))
	for i, g := range groups {
		plan[i] = PlanEntry{BatchNo: first + i, Requests: len(g), File: RequestName(first + i)}
		for _, r := range g {
			plan[i].EstTokens += r.EstTokens
		}
	}
	return plan
}
