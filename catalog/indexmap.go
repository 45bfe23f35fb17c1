package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/wotrcz/wotrtl"
)

// IndexMap maps stable 1-based indexes to GUIDs. It is built once from the
// source document order and never rewritten afterwards.
type IndexMap struct {
	idxs   []int
	guids  map[int]string
	byGUID map[string]int
}

// NewIndexMap numbers the entries of doc in document order, starting at 1.
func NewIndexMap(doc *Document) *IndexMap {
	m := &IndexMap{
		guids:  make(map[int]string, doc.Len()),
		byGUID: make(map[string]int, doc.Len()),
	}
	for i, key := range doc.keys {
		idx := i + 1
		m.idxs = append(m.idxs, idx)
		m.guids[idx] = key
		m.byGUID[key] = idx
	}
	return m
}

// LoadIndexMap reads map.json ({"1": GUID, ...}). GUIDs must be unique.
func LoadIndexMap(path string) (*IndexMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &wotrtl.InputError{Path: path, Message: "cannot read index map", Cause: err}
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &wotrtl.InputError{Path: path, Message: "malformed index map", Cause: err}
	}
	m := &IndexMap{
		guids:  make(map[int]string, len(raw)),
		byGUID: make(map[string]int, len(raw)),
	}
	for k, guid := range raw {
		idx, err := strconv.Atoi(k)
		if err != nil || idx <= 0 {
			return nil, &wotrtl.InputError{Path: path, Message: fmt.Sprintf("invalid index %q", k)}
		}
		if prev, dup := m.byGUID[guid]; dup {
			return nil, &wotrtl.InputError{Path: path, Message: fmt.Sprintf("GUID %s mapped twice (%d, %d)", guid, prev, idx)}
		}
		m.idxs = append(m.idxs, idx)
		m.guids[idx] = guid
		m.byGUID[guid] = idx
	}
	sort.Ints(m.idxs)
	if len(m.idxs) == 0 {
		return nil, &wotrtl.InputError{Path: path, Message: "index map is empty"}
	}
	return m, nil
}

// Len returns the number of mapped entries.
func (m *IndexMap) Len() int {
	return len(m.idxs)
}

// Indexes returns all indexes in ascending order.
func (m *IndexMap) Indexes() []int {
	out := make([]int, len(m.idxs))
	copy(out, m.idxs)
	return out
}

// GUID returns the GUID of idx.
func (m *IndexMap) GUID(idx int) (string, bool) {
	g, ok := m.guids[idx]
	return g, ok
}

// Idx returns the index of guid.
func (m *IndexMap) Idx(guid string) (int, bool) {
	i, ok := m.byGUID[guid]
	return i, ok
}

// Max returns the highest index, or 0 for an empty map.
func (m *IndexMap) Max() int {
	if len(m.idxs) == 0 {
		return 0
	}
	return m.idxs[len(m.idxs)-1]
}

// Encode writes the map as JSON with indexes in ascending order.
func (m *IndexMap) Encode(w io.Writer) error {
	if _, err := io.WriteString(w, "{"); err != nil {
		return err
	}
	for i, idx := range m.idxs {
		sep := ",\n  "
		if i == 0 {
			sep = "\n  "
		}
		line := sep + encodeString(strconv.Itoa(idx)) + ": " + encodeString(m.guids[idx])
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n}\n")
	return err
}

// WriteIfAbsent writes the map to path unless a file already exists there.
// It reports whether it wrote.
func (m *IndexMap) WriteIfAbsent(path string) (bool, error) {
	if Exists(path) {
		return false, nil
	}
	return true, WriteAtomic(path, m.Encode)
}
