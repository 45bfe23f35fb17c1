// Package overlay produces review copies of a translation: index markers
// appended to every text, compact index labels and speaker-filtered
// exports for proofreaders.
package overlay

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/wotrcz/wotrtl"
	"github.com/wotrcz/wotrtl/catalog"
)

var markerRx = regexp.MustCompile(`\s*\((\d{1,9})\)\s*$`)

// Marker returns the suffix appended for idx.
func Marker(idx int) string {
	return " (" + strconv.Itoa(idx) + ")"
}

// Options selects and tunes the entries an overlay touches.
type Options struct {
	Only  []int // Restrict to these indexes; empty means every mapped index
	Force bool  // AppendIndex: replace a foreign trailing (digits) marker
	Loose bool  // Strip: remove any trailing (digits) marker
}

// Result is an overlaid copy of a document and what happened to it.
type Result struct {
	Document   *catalog.Document
	Total      int // Selected indexes
	Changed    int
	Unchanged  int
	Missing    int // Selected indexes whose GUID is not in the document
	Collisions []*wotrtl.CollisionError
}

// AppendIndex appends " (IDX)" to the text of every selected entry. Texts
// that already end with a "(digits)" marker are collisions and left as they
// are: a later Strip cannot tell such a text from an overlaid one. With
// Force a foreign marker is replaced and an own marker gets a second one,
// which Strip removes again.
func AppendIndex(doc *catalog.Document, m *catalog.IndexMap, opts Options) *Result {
	return apply(doc, m, opts, func(idx int, text string, res *Result) (string, bool) {
		marker := Marker(idx)
		sm := markerRx.FindStringSubmatch(text)
		if sm == nil {
			return text + marker, true
		}
		if !opts.Force {
			res.Collisions = append(res.Collisions, &wotrtl.CollisionError{Existing: text, Incoming: text + marker})
			return text, false
		}
		if sm[1] == strconv.Itoa(idx) {
			return text + marker, true
		}
		return markerRx.ReplaceAllString(text, marker), true
	})
}

// Strip removes the " (IDX)" marker of each selected entry's own index, so
// it undoes AppendIndex for every entry that was not a collision. With
// Loose any trailing "(digits)" marker is removed.
func Strip(doc *catalog.Document, m *catalog.IndexMap, opts Options) *Result {
	return apply(doc, m, opts, func(idx int, text string, _ *Result) (string, bool) {
		if opts.Loose {
			out := markerRx.ReplaceAllString(text, "")
			return out, out != text
		}
		if out, ok := strings.CutSuffix(text, Marker(idx)); ok {
			return out, true
		}
		return text, false
	})
}

func apply(doc *catalog.Document, m *catalog.IndexMap, opts Options, edit func(int, string, *Result) (string, bool)) *Result {
	res := &Result{Document: doc.Clone()}
	idxs := opts.Only
	if len(idxs) == 0 {
		idxs = m.Indexes()
	}
	for _, idx := range idxs {
		res.Total++
		guid, ok := m.GUID(idx)
		if !ok {
			res.Missing++
			continue
		}
		text, ok := res.Document.Get(guid)
		if !ok {
			res.Missing++
			continue
		}
		before := len(res.Collisions)
		out, changed := edit(idx, text, res)
		for _, c := range res.Collisions[before:] {
			c.Key = guid
		}
		if !changed {
			res.Unchanged++
			continue
		}
		res.Document.Set(guid, out)
		res.Changed++
	}
	return res
}
