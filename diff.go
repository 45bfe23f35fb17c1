package wotrtl

// DiffResult represents the difference between two translation documents.
type DiffResult struct {
	// Added contains entries present only in the second document.
	Added []Entry

	// Removed contains entries present only in the first document.
	Removed []Entry

	// Unchanged contains entries with the same text on both sides.
	Unchanged []Entry

	// Modified contains entries whose text differs between the documents.
	Modified []ModifiedEntry

	order []string
}

// ModifiedEntry represents a key whose text changed.
type ModifiedEntry struct {
	Old Entry
	New Entry
}

// Stats returns summary statistics for the diff.
func (d *DiffResult) Stats() DiffStats {
	return DiffStats{
		Added:     len(d.Added),
		Removed:   len(d.Removed),
		Unchanged: len(d.Unchanged),
		Modified:  len(d.Modified),
	}
}

// DiffStats contains summary statistics for a diff.
type DiffStats struct {
	Added     int
	Removed   int
	Unchanged int
	Modified  int
}

// HasChanges returns true if there are any differences.
func (d *DiffResult) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Modified) > 0
}

// ChangedKeys returns the keys that were added or modified, in the order of
// the second document.
func (d *DiffResult) ChangedKeys() []string {
	keys := make([]string, 0, len(d.Added)+len(d.Modified))
	changed := make(map[string]bool, len(d.Added)+len(d.Modified))
	for _, e := range d.Added {
		changed[e.Key] = true
	}
	for _, m := range d.Modified {
		changed[m.New.Key] = true
	}
	for _, k := range d.order {
		if changed[k] {
			keys = append(keys, k)
		}
	}
	return keys
}

// DiffEntries compares two keyed documents. Results follow the order of b;
// removed entries follow the order of a. A repeated key keeps its last text.
func DiffEntries(a, b []Entry) *DiffResult {
	result := &DiffResult{}

	oldByKey := make(map[string]string, len(a))
	for _, e := range a {
		oldByKey[e.Key] = e.Text
	}
	newByKey := make(map[string]string, len(b))
	for _, e := range b {
		newByKey[e.Key] = e.Text
	}

	seen := make(map[string]bool, len(b))
	for _, e := range b {
		if seen[e.Key] {
			continue
		}
		seen[e.Key] = true
		result.order = append(result.order, e.Key)
		cur := Entry{Key: e.Key, Text: newByKey[e.Key]}

		old, ok := oldByKey[e.Key]
		switch {
		case !ok:
			result.Added = append(result.Added, cur)
		case old == cur.Text:
			result.Unchanged = append(result.Unchanged, cur)
		default:
			result.Modified = append(result.Modified, ModifiedEntry{
				Old: Entry{Key: e.Key, Text: old},
				New: cur,
			})
		}
	}

	removed := make(map[string]bool)
	for _, e := range a {
		if _, ok := newByKey[e.Key]; ok || removed[e.Key] {
			continue
		}
		removed[e.Key] = true
		result.Removed = append(result.Removed, Entry{Key: e.Key, Text: oldByKey[e.Key]})
	}

	return result
}
