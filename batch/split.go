package batch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/wotrcz/wotrtl"
	"github.com/wotrcz/wotrtl/catalog"
	"go.uber.org/zap"
)

// requestLines reads the non-blank lines of a batch's request file.
func (o *Orchestrator) requestLines(st *State) ([][]byte, error) {
	path := o.requestPath(st)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &wotrtl.InputError{Path: path, Message: "cannot read request file", Cause: err}
	}
	var lines [][]byte
	for _, l := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(l)) > 0 {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

// withCustomID rewrites the custom_id of a request line, keeping the body.
func withCustomID(line []byte, id string) ([]byte, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(line, &obj); err != nil {
		return nil, &wotrtl.InputError{Message: "malformed request line", Cause: err}
	}
	raw, _ := json.Marshal(id)
	obj["custom_id"] = raw
	return json.Marshal(obj)
}

// partition splits n items into parts sizes differing by at most one,
// dropping empty parts.
func partition(n, parts int) []int {
	var sizes []int
	for i := 0; i < parts; i++ {
		size := n / parts
		if i < n%parts {
			size++
		}
		if size > 0 {
			sizes = append(sizes, size)
		}
	}
	return sizes
}

// replace writes the children of st, one per part, and marks st replaced.
// Custom ids become prefix%03d_k_%06d so they stay unique across batches.
func (o *Orchestrator) replace(st *State, lines [][]byte, sizes []int, prefix, reason string) ([]*State, error) {
	var children []*State
	pos := 0
	for k, size := range sizes {
		n, err := o.seq.Next(reason, st.BatchNo, o.runID)
		if err != nil {
			return nil, err
		}
		var out [][]byte
		for i, line := range lines[pos : pos+size] {
			l, err := withCustomID(line, fmt.Sprintf("%s%03d_%d_%06d", prefix, st.BatchNo, k+1, i+1))
			if err != nil {
				return nil, err
			}
			out = append(out, l)
		}
		pos += size

		if err := catalog.WriteFileAtomic(o.ws.RequestPath(n), jsonlBytes(out)); err != nil {
			return nil, err
		}
		child := &State{
			BatchNo:   n,
			JSONL:     RequestName(n),
			Status:    StatusPending,
			Parent:    st.BatchNo,
			Reason:    reason,
			Overwrite: st.Overwrite,
		}
		if err := o.saveState(child); err != nil {
			return nil, err
		}
		children = append(children, child)
		o.log.Info("batch created", zap.Int("batch", n), zap.Int("parent", st.BatchNo), zap.Int("requests", size), zap.String("reason", reason))
	}

	st.Status = StatusReplaced
	st.Reason = reason
	if err := o.saveState(st); err != nil {
		return nil, err
	}
	return children, nil
}

// autoSplit replaces st by two halves that are processed next.
func (o *Orchestrator) autoSplit(st *State, reason string, res *RunResult) ([]*State, error) {
	lines, err := o.requestLines(st)
	if err != nil {
		return nil, err
	}
	if len(lines) < 2 {
		return nil, o.fail(st, res, reason+": single request cannot be split")
	}
	children, err := o.replace(st, lines, partition(len(lines), 2), "sp", ReasonSplit)
	if err != nil {
		return nil, err
	}
	res.Split = append(res.Split, st.BatchNo)
	return children, nil
}

// ReslicePlan describes how one batch is (or would be) divided.
type ReslicePlan struct {
	BatchNo  int
	Requests int
	Parts    []int // Requests per new batch
	Created  []int // New batch numbers, empty on a dry run
	Skipped  string
}

// Reslice divides each selected batch into `into` batches without
// splitting requests. Nothing is written unless commit is set.
func (o *Orchestrator) Reslice(selection []int, into int, commit bool) ([]ReslicePlan, error) {
	if into < 2 {
		return nil, fmt.Errorf("reslice needs at least 2 parts, got %d", into)
	}
	if len(selection) == 0 {
		return nil, fmt.Errorf("reslice needs a batch selection")
	}

	var plans []ReslicePlan
	for _, n := range selection {
		plan := ReslicePlan{BatchNo: n}
		st, err := o.ws.LoadState(n)
		if err != nil {
			plan.Skipped = "no state"
			plans = append(plans, plan)
			continue
		}
		if st.Done() {
			plan.Skipped = st.Status
			plans = append(plans, plan)
			continue
		}
		if st.Status == StatusSubmitted {
			plan.Skipped = "job running"
			plans = append(plans, plan)
			continue
		}
		lines, err := o.requestLines(st)
		if err != nil || len(lines) == 0 {
			plan.Skipped = "no requests"
			plans = append(plans, plan)
			continue
		}

		plan.Requests = len(lines)
		plan.Parts = partition(len(lines), into)
		if !commit || o.opts.DryRun {
			o.log.Info("reslice planned", zap.Int("batch", n), zap.Int("requests", plan.Requests), zap.Ints("parts", plan.Parts))
			plans = append(plans, plan)
			continue
		}

		children, err := o.replace(st, lines, plan.Parts, "rs", ReasonReslice)
		if err != nil {
			return plans, err
		}
		for _, c := range children {
			plan.Created = append(plan.Created, c.BatchNo)
		}
		plans = append(plans, plan)
	}
	return plans, nil
}
