package catalog

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/wotrcz/wotrtl"
)

// Table is a delimited file with a header row.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadTable reads a TSV file, or a CSV file when the extension is .csv.
func ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &wotrtl.InputError{Path: path, Message: "cannot open table", Cause: err}
	}
	defer f.Close()

	comma := '\t'
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		comma = ','
	}
	t, err := ParseTable(f, comma)
	if err != nil {
		var inErr *wotrtl.InputError
		if errors.As(err, &inErr) {
			inErr.Path = path
		}
		return nil, err
	}
	return t, nil
}

// ParseTable reads delimited records; the first non-empty record is the header.
// Rows may have fewer or more cells than the header.
//
// Tab-separated input uses backslash escapes (see wotrtl.SanitizeCell), so
// quotes are ordinary text there; every line is one record. Other delimiters
// are read as CSV.
func ParseTable(r io.Reader, comma rune) (*Table, error) {
	in := stripBOM(bufio.NewReader(r))
	var (
		records [][]string
		err     error
	)
	if comma == '\t' {
		records, err = readTSV(in)
	} else {
		cr := csv.NewReader(in)
		cr.Comma = comma
		cr.LazyQuotes = true
		cr.FieldsPerRecord = -1
		records, err = cr.ReadAll()
	}
	if err != nil {
		return nil, &wotrtl.InputError{Message: "malformed table", Cause: err}
	}
	if len(records) == 0 {
		return nil, &wotrtl.InputError{Message: "table has no header"}
	}
	t := &Table{Header: records[0]}
	for i := range t.Header {
		t.Header[i] = strings.TrimSpace(t.Header[i])
	}
	t.Rows = records[1:]
	return t, nil
}

func readTSV(r io.Reader) ([][]string, error) {
	var records [][]string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if line == "" {
			continue
		}
		records = append(records, strings.Split(line, "\t"))
	}
	return records, sc.Err()
}

func stripBOM(br *bufio.Reader) io.Reader {
	if b, err := br.Peek(3); err == nil && string(b) == "\xef\xbb\xbf" {
		_, _ = br.Discard(3)
	}
	return br
}

// Col returns the index of the first header matching one of names
// (case-insensitive), or -1.
func (t *Table) Col(names ...string) int {
	for _, name := range names {
		for i, h := range t.Header {
			if strings.EqualFold(h, name) {
				return i
			}
		}
	}
	return -1
}

// Cell returns row[col], or "" when the row is short or col is -1.
func Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

// TSVWriter writes tab-separated records with tab/newline cells escaped.
// Cells are never quoted.
type TSVWriter struct {
	w   *bufio.Writer
	err error
}

// NewTSVWriter creates a TSVWriter on w.
func NewTSVWriter(w io.Writer) *TSVWriter {
	return &TSVWriter{w: bufio.NewWriter(w)}
}

// Write writes one record.
func (t *TSVWriter) Write(cells ...string) error {
	if t.err != nil {
		return t.err
	}
	for i, c := range cells {
		if i > 0 {
			t.w.WriteByte('\t')
		}
		t.w.WriteString(wotrtl.SanitizeCell(c))
	}
	if err := t.w.WriteByte('\n'); err != nil {
		t.err = err
	}
	return t.err
}

// Flush flushes buffered records and reports any write error.
func (t *TSVWriter) Flush() error {
	if t.err != nil {
		return t.err
	}
	t.err = t.w.Flush()
	return t.err
}

// ReadTrans reads a translation result TSV ("idx<TAB>Translation" lines).
// Lines without a numeric idx or with a blank translation are ignored; a
// repeated idx keeps the last line.
func ReadTrans(path string) (map[int]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return wotrtl.ParseBlock(string(data)), nil
}

// WriteTrans writes translations as "idx<TAB>Translation" lines sorted by idx.
func WriteTrans(path string, trans map[int]string) error {
	idxs := make([]int, 0, len(trans))
	for idx := range trans {
		idxs = append(idxs, idx)
	}
	sort.Ints(idxs)
	return WriteAtomic(path, func(w io.Writer) error {
		for _, idx := range idxs {
			if _, err := io.WriteString(w, strconv.Itoa(idx)+"\t"+wotrtl.SanitizeCell(trans[idx])+"\n"); err != nil {
				return err
			}
		}
		return nil
	})
}
