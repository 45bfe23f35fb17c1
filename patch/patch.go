// Package patch overwrites translations of a document from a correction
// spreadsheet.
//
// Only keys already present in the document are written; every row of the
// spreadsheet gets an action in the result, and rows that cannot be
// resolved are reported rather than aborting the run. Applying the same
// corrections twice yields the same document.
package patch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wotrcz/wotrtl"
	"github.com/wotrcz/wotrtl/catalog"
)

// KeyType says how the key column is interpreted.
type KeyType string

const (
	KeyAuto KeyType = "auto" // digits resolving through the map are indexes, anything else a GUID
	KeyIdx  KeyType = "idx"
	KeyGUID KeyType = "guid"
)

// GuardMode says what happens when a correction breaks markup.
type GuardMode string

const (
	GuardPatch GuardMode = "patch" // count the mismatch, write anyway
	GuardSkip  GuardMode = "skip"
	GuardFail  GuardMode = "fail"
)

// Action is the outcome of one correction row.
type Action string

const (
	ActionChanged    Action = "changed"
	ActionSame       Action = "same"
	ActionEmptySkip  Action = "empty_skip"
	ActionInvalidKey Action = "invalid_key"
	ActionMissingKey Action = "missing_key"
	ActionGuardSkip  Action = "guard_skip"
)

// Options configures Apply.
type Options struct {
	KeyCol        string // Empty: idx, guid or key column, else the first one
	ValueCol      string // Empty: translation, cs, cs_text, value or text column
	KeyType       KeyType
	SkipEmpty     bool // Ignore rows with an empty value
	Unescape      bool // Turn literal \n \t \r into control characters
	VerifyGuards  bool
	OnGuardFail   GuardMode
	FailOnMissing bool // Unresolvable rows make the result a failure
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{
		KeyType:     KeyAuto,
		SkipEmpty:   true,
		Unescape:    true,
		OnGuardFail: GuardPatch,
	}
}

// RowResult is the outcome of one correction row. Line is the 1-based
// data row number (the header is not counted).
type RowResult struct {
	Line   int
	Key    string
	GUID   string
	Action Action
	Old    string
	New    string
	Err    error
}

// Result summarises a patch.
type Result struct {
	KeyCol        string
	ValueCol      string
	Rows          []RowResult
	Counts        map[Action]int
	Duplicates    int // Rows superseded by a later row for the same key
	GuardFailures int
	Document      *catalog.Document
	failOnMissing bool
}

// Changed returns the number of written entries.
func (r *Result) Changed() int {
	return r.Counts[ActionChanged]
}

// Failed reports whether unresolvable rows should fail the run.
func (r *Result) Failed() bool {
	return r.failOnMissing && r.Counts[ActionInvalidKey]+r.Counts[ActionMissingKey] > 0
}

type resolved struct {
	line  int
	key   string
	guid  string
	value string
	err   *wotrtl.KeyError
	act   Action
}

// Apply applies the correction table to a copy of doc. m resolves index
// keys and may be nil when every key is a GUID. With GuardFail a markup
// mismatch aborts the whole patch.
func Apply(doc *catalog.Document, m *catalog.IndexMap, table *catalog.Table, opts Options) (*Result, error) {
	keyCol, valCol, err := columns(table, opts)
	if err != nil {
		return nil, err
	}
	if opts.KeyType == "" {
		opts.KeyType = KeyAuto
	}
	if opts.KeyType == KeyIdx && m == nil {
		return nil, &wotrtl.InputError{Message: "index keys need a translation map"}
	}

	out := doc.Clone()
	res := &Result{
		KeyCol:        table.Header[keyCol],
		ValueCol:      table.Header[valCol],
		Counts:        make(map[Action]int),
		Document:      out,
		failOnMissing: opts.FailOnMissing,
	}

	var rows []resolved
	last := make(map[string]int)
	for i, rec := range table.Rows {
		key := strings.TrimSpace(catalog.Cell(rec, keyCol))
		if key == "" {
			continue
		}
		r := resolved{line: i + 1, key: key, value: catalog.Cell(rec, valCol)}
		if opts.Unescape {
			r.value = wotrtl.UnescapeCell(r.value)
		}
		r.guid, r.act, r.err = resolveKey(key, out, m, opts.KeyType)
		if r.act == "" {
			if prev, ok := last[r.guid]; ok {
				rows[prev].act = "dup"
				res.Duplicates++
			}
			last[r.guid] = len(rows)
		}
		rows = append(rows, r)
	}

	for _, r := range rows {
		if r.act == "dup" {
			continue
		}
		rr := RowResult{Line: r.line, Key: r.key, GUID: r.guid, New: r.value}
		if r.err != nil {
			rr.Err = r.err
		}
		switch {
		case r.act != "":
			rr.Action = r.act
		case opts.SkipEmpty && r.value == "":
			rr.Old, _ = out.Get(r.guid)
			rr.Action = ActionEmptySkip
		default:
			rr.Old, _ = out.Get(r.guid)
			rr.Action = ActionChanged
			if rr.Old == r.value {
				rr.Action = ActionSame
				break
			}
			if opts.VerifyGuards && !GuardsOK(rr.Old, r.value) {
				res.GuardFailures++
				switch opts.OnGuardFail {
				case GuardFail:
					return nil, &wotrtl.KeyError{Key: r.key, Reason: fmt.Sprintf("row %d breaks markup guards", r.line)}
				case GuardSkip:
					rr.Action = ActionGuardSkip
				}
			}
			if rr.Action == ActionChanged {
				out.Set(r.guid, r.value)
			}
		}
		res.Counts[rr.Action]++
		res.Rows = append(res.Rows, rr)
	}
	return res, nil
}

// resolveKey maps a key cell to a GUID of doc. A non-empty action marks a
// row that cannot be applied.
func resolveKey(key string, doc *catalog.Document, m *catalog.IndexMap, kt KeyType) (string, Action, *wotrtl.KeyError) {
	guid := key
	switch kt {
	case KeyIdx:
		idx, err := strconv.Atoi(key)
		if err != nil {
			return "", ActionInvalidKey, &wotrtl.KeyError{Key: key, Reason: "not an index"}
		}
		g, ok := m.GUID(idx)
		if !ok {
			return "", ActionInvalidKey, &wotrtl.KeyError{Key: key, Reason: "index not in map"}
		}
		guid = g
	case KeyAuto:
		if m != nil && isDigits(key) {
			idx, _ := strconv.Atoi(key)
			if g, ok := m.GUID(idx); ok {
				guid = g
			}
		}
	}
	if !doc.Has(guid) {
		return guid, ActionMissingKey, &wotrtl.KeyError{Key: key, Reason: "not in document"}
	}
	return guid, "", nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func columns(t *catalog.Table, opts Options) (int, int, error) {
	if len(t.Header) == 0 {
		return 0, 0, &wotrtl.InputError{Message: "correction table has no columns"}
	}
	keyCol := 0
	if opts.KeyCol != "" {
		if keyCol = t.Col(opts.KeyCol); keyCol < 0 {
			return 0, 0, &wotrtl.InputError{Message: fmt.Sprintf("key column %q not found in %v", opts.KeyCol, t.Header)}
		}
	} else if c := t.Col("idx", "guid", "key"); c >= 0 {
		keyCol = c
	}

	var valCol int
	if opts.ValueCol != "" {
		valCol = t.Col(opts.ValueCol)
	} else {
		valCol = t.Col("translation", "cs", "cs_text", "value", "text")
	}
	if valCol < 0 {
		return 0, 0, &wotrtl.InputError{Message: fmt.Sprintf("value column %q not found in %v", opts.ValueCol, t.Header)}
	}
	return keyCol, valCol, nil
}
