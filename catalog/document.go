// Package catalog reads and writes the game's localization documents, the
// stable index map and the flat TSV/CSV files exchanged with reviewers.
package catalog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/wotrcz/wotrtl"
)

// StringsField is the document field holding the GUID -> text object.
const StringsField = "strings"

type field struct {
	key string
	raw json.RawMessage
}

// Document is a localization document: ordered GUID keys with their text,
// plus the surrounding metadata fields kept verbatim and in order.
//
// Two shapes are accepted: nested ({"$id": ..., "strings": {GUID: text}})
// and flat ({GUID: text}).
type Document struct {
	fields []field // top-level fields; the strings object is a nil raw placeholder
	nested bool
	keys   []string
	values map[string]string
}

// NewDocument creates a nested document with the given entries.
func NewDocument(entries []wotrtl.Entry) *Document {
	d := &Document{
		fields: []field{{key: StringsField}},
		nested: true,
		values: make(map[string]string, len(entries)),
	}
	for _, e := range entries {
		d.add(e.Key, e.Text)
	}
	return d
}

// Load reads a document from path.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &wotrtl.InputError{Path: path, Message: "cannot open document", Cause: err}
	}
	defer f.Close()

	doc, err := Parse(bufio.NewReader(f))
	if err != nil {
		var inErr *wotrtl.InputError
		if errors.As(err, &inErr) && inErr.Path == "" {
			inErr.Path = path
		}
		return nil, err
	}
	return doc, nil
}

// Parse reads a document from r. It fails with an InputError when the input
// is not a JSON object, has no strings, or holds no entries.
func Parse(r io.Reader) (*Document, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, &wotrtl.InputError{Message: "malformed JSON", Cause: err}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, &wotrtl.InputError{Message: "document is not a JSON object"}
	}

	var fields []field
	seen := make(map[string]int)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, &wotrtl.InputError{Message: "malformed JSON", Cause: err}
		}
		key, _ := keyTok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, &wotrtl.InputError{Message: fmt.Sprintf("malformed value of %q", key), Cause: err}
		}
		if i, dup := seen[key]; dup {
			fields[i].raw = raw
			continue
		}
		seen[key] = len(fields)
		fields = append(fields, field{key: key, raw: raw})
	}
	if _, err := dec.Token(); err != nil {
		return nil, &wotrtl.InputError{Message: "malformed JSON", Cause: err}
	}
	if tok, err := dec.Token(); err != io.EOF {
		if err == nil {
			err = fmt.Errorf("unexpected %v", tok)
		}
		return nil, &wotrtl.InputError{Message: "trailing data after document", Cause: err}
	}

	doc := &Document{values: make(map[string]string)}

	if i, ok := seen[StringsField]; ok && isObject(fields[i].raw) {
		doc.nested = true
		if err := doc.parseStrings(fields[i].raw); err != nil {
			return nil, err
		}
		fields[i].raw = nil
		doc.fields = fields
	} else {
		for _, f := range fields {
			var s string
			if err := json.Unmarshal(f.raw, &s); err != nil {
				return nil, &wotrtl.InputError{Message: "document has no \"strings\" object"}
			}
			doc.add(f.key, s)
		}
	}

	if len(doc.keys) == 0 {
		return nil, &wotrtl.InputError{Message: "document holds no strings"}
	}
	return doc, nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func (d *Document) parseStrings(raw json.RawMessage) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return &wotrtl.InputError{Message: "malformed strings object", Cause: err}
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return &wotrtl.InputError{Message: "malformed strings object", Cause: err}
		}
		key, _ := keyTok.(string)
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return &wotrtl.InputError{Message: fmt.Sprintf("malformed text of %q", key), Cause: err}
		}
		text, ok := v.(string)
		if !ok {
			return &wotrtl.InputError{Message: fmt.Sprintf("text of %q is %T, not a string", key, v)}
		}
		d.add(key, text)
	}
	return nil
}

func (d *Document) add(key, text string) {
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = text
}

// Nested reports whether the document uses the nested shape.
func (d *Document) Nested() bool {
	return d.nested
}

// Len returns the number of entries.
func (d *Document) Len() int {
	return len(d.keys)
}

// Keys returns the entry keys in document order.
func (d *Document) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Get returns the text of key.
func (d *Document) Get(key string) (string, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Has reports whether key exists.
func (d *Document) Has(key string) bool {
	_, ok := d.values[key]
	return ok
}

// Set replaces the text of an existing key. It never adds keys and reports
// whether key exists.
func (d *Document) Set(key, text string) bool {
	if _, ok := d.values[key]; !ok {
		return false
	}
	d.values[key] = text
	return true
}

// Entries returns all entries in document order.
func (d *Document) Entries() []wotrtl.Entry {
	out := make([]wotrtl.Entry, len(d.keys))
	for i, k := range d.keys {
		out[i] = wotrtl.Entry{Key: k, Text: d.values[k]}
	}
	return out
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	c := &Document{
		fields: make([]field, len(d.fields)),
		nested: d.nested,
		keys:   make([]string, len(d.keys)),
		values: make(map[string]string, len(d.values)),
	}
	copy(c.fields, d.fields)
	copy(c.keys, d.keys)
	for k, v := range d.values {
		c.values[k] = v
	}
	return c
}

// Metadata returns the raw JSON of a top-level metadata field such as "$id".
func (d *Document) Metadata(key string) (json.RawMessage, bool) {
	for _, f := range d.fields {
		if f.key == key && f.raw != nil {
			return f.raw, true
		}
	}
	return nil, false
}

// SetMetadata sets a top-level metadata field of a nested document to the
// JSON value raw. New fields go before the strings object. Flat documents
// have no metadata and report false.
func (d *Document) SetMetadata(key string, raw json.RawMessage) bool {
	if !d.nested || key == StringsField {
		return false
	}
	for i, f := range d.fields {
		if f.key == key {
			d.fields[i].raw = raw
			return true
		}
	}
	for i, f := range d.fields {
		if f.raw == nil {
			d.fields = append(d.fields[:i], append([]field{{key: key, raw: raw}}, d.fields[i:]...)...)
			return true
		}
	}
	d.fields = append(d.fields, field{key: key, raw: raw})
	return true
}

// Encode writes the document as 2-space indented JSON without HTML escaping.
// Metadata fields keep their position; their values are re-indented only.
func (d *Document) Encode(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if d.nested {
		bw.WriteString("{")
		for i, f := range d.fields {
			if i > 0 {
				bw.WriteString(",")
			}
			bw.WriteString("\n  ")
			bw.WriteString(encodeString(f.key))
			bw.WriteString(": ")
			if f.raw == nil {
				d.writeStrings(bw, "  ")
				continue
			}
			var buf bytes.Buffer
			if err := json.Indent(&buf, f.raw, "  ", "  "); err != nil {
				return fmt.Errorf("indent %q: %w", f.key, err)
			}
			bw.Write(buf.Bytes())
		}
		bw.WriteString("\n}\n")
	} else {
		d.writeStrings(bw, "")
		bw.WriteString("\n")
	}
	return bw.Flush()
}

func (d *Document) writeStrings(bw *bufio.Writer, prefix string) {
	if len(d.keys) == 0 {
		bw.WriteString("{}")
		return
	}
	bw.WriteString("{")
	for i, k := range d.keys {
		if i > 0 {
			bw.WriteString(",")
		}
		bw.WriteString("\n" + prefix + "  ")
		bw.WriteString(encodeString(k))
		bw.WriteString(": ")
		bw.WriteString(encodeString(d.values[k]))
	}
	bw.WriteString("\n" + prefix + "}")
}

// Bytes returns the encoded document.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile writes the document to path atomically.
func (d *Document) WriteFile(path string) error {
	return WriteAtomic(path, d.Encode)
}

func encodeString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s) // strings always encode
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}
