package batch

import (
	"encoding/json"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/wotrcz/wotrtl"
	"github.com/wotrcz/wotrtl/catalog"
	"github.com/wotrcz/wotrtl/provider"
)

// Token estimate parameters: chars*0.35 tokens, 30% safety margin and a
// fixed per-request overhead.
const (
	tokensPerChar   = 0.35
	tokenFudge      = 1.30
	requestOverhead = 220
)

// EstimateTokens estimates the enqueued tokens of one request from its
// system rules, user header and block.
func EstimateTokens(system, header, block string) int {
	chars := utf8.RuneCountInString(system) + utf8.RuneCountInString(header) + utf8.RuneCountInString(block)
	return int(math.Ceil(float64(chars)*tokensPerChar)*tokenFudge) + requestOverhead
}

// chunkRows splits rows into request blocks of at most maxChars runes and
// maxLines lines. A single row longer than maxChars gets its own block.
func chunkRows(rows []wotrtl.Row, maxChars, maxLines int) [][]wotrtl.Row {
	var chunks [][]wotrtl.Row
	var cur []wotrtl.Row
	size := 0
	for _, r := range rows {
		n := utf8.RuneCountInString(wotrtl.BlockLine(r))
		if len(cur) > 0 && ((maxChars > 0 && size+n > maxChars) || (maxLines > 0 && len(cur) >= maxLines)) {
			chunks = append(chunks, cur)
			cur, size = nil, 0
		}
		cur = append(cur, r)
		size += n
	}
	if len(cur) > 0 {
		chunks = append(chunks, cur)
	}
	return chunks
}

// request is one rendered request line with its bookkeeping.
type request struct {
	ID        string
	First     int
	Last      int
	Rows      int
	EstTokens int
	Line      []byte
}

func buildRequests(rows []wotrtl.Row, p wotrtl.Prompts, model string, chat provider.ChatOptions,
	maxChars, maxLines int, customID func(seq int) string) []request {
	var reqs []request
	for i, chunk := range chunkRows(rows, maxChars, maxLines) {
		block := wotrtl.BuildBlock(chunk)
		cr := p.Request(customID(i+1), model, block)
		reqs = append(reqs, request{
			ID:        cr.CustomID,
			First:     chunk[0].Idx,
			Last:      chunk[len(chunk)-1].Idx,
			Rows:      len(chunk),
			EstTokens: EstimateTokens(p.SystemRules, p.UserHeader, block),
			Line:      provider.BatchLine(cr, chat),
		})
	}
	return reqs
}

// groupRequests packs requests into batches under a token budget and an
// optional byte limit on the JSONL file. 0 disables a limit. A request
// exceeding a limit on its own still forms a batch.
func groupRequests(reqs []request, budgetTokens, maxBytes int) [][]request {
	var groups [][]request
	var cur []request
	tokens, size := 0, 0
	for _, r := range reqs {
		n := len(r.Line) + 1
		overTokens := budgetTokens > 0 && tokens+r.EstTokens > budgetTokens
		overBytes := maxBytes > 0 && size+n > maxBytes
		if len(cur) > 0 && (overTokens || overBytes) {
			groups = append(groups, cur)
			cur, tokens, size = nil, 0, 0
		}
		cur = append(cur, r)
		tokens += r.EstTokens
		size += n
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}
	return groups
}

func jsonlBytes(lines [][]byte) []byte {
	var out []byte
	for _, l := range lines {
		out = append(out, l...)
		out = append(out, '\n')
	}
	return out
}

// PlanEntry summarises one batch in plan.json.
type PlanEntry struct {
	BatchNo   int    `json:"batch_no"`
	Requests  int    `json:"requests"`
	File      string `json:"file"`
	EstTokens int    `json:"est_enqueued_tokens"`
}

// ManifestEntry summarises one request in manifest.json.
type ManifestEntry struct {
	ReqID     string `json:"req_id"`
	BatchNo   int    `json:"batch_no"`
	FirstIdx  int    `json:"first_idx"`
	LastIdx   int    `json:"last_idx"`
	Rows      int    `json:"rows"`
	EstTokens int    `json:"est_tokens"`
}

// writeBatch allocates a number for reqs and writes its JSONL file and
// pending state.
func (o *Orchestrator) writeBatch(reqs []request, reason string, parent int, overwrite bool) (PlanEntry, []ManifestEntry, error) {
	n, err := o.seq.Next(reason, parent, o.runID)
	if err != nil {
		return PlanEntry{}, nil, err
	}
	lines := make([][]byte, len(reqs))
	entry := PlanEntry{BatchNo: n, Requests: len(reqs), File: RequestName(n)}
	manifest := make([]ManifestEntry, len(reqs))
	for i, r := range reqs {
		lines[i] = r.Line
		entry.EstTokens += r.EstTokens
		manifest[i] = ManifestEntry{ReqID: r.ID, BatchNo: n, FirstIdx: r.First, LastIdx: r.Last, Rows: r.Rows, EstTokens: r.EstTokens}
	}
	if err := catalog.WriteFileAtomic(o.ws.RequestPath(n), jsonlBytes(lines)); err != nil {
		return PlanEntry{}, nil, err
	}
	st := &State{
		BatchNo:   n,
		JSONL:     RequestName(n),
		Status:    StatusPending,
		Parent:    parent,
		Reason:    reason,
		Overwrite: overwrite,
	}
	if err := o.saveState(st); err != nil {
		return PlanEntry{}, nil, err
	}
	return entry, manifest, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return catalog.WriteFileAtomic(path, append(data, '\n'))
}
