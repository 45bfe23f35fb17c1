package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/wotrcz/wotrtl/catalog"
)

// Report file names.
const (
	MissingFile = "missing.tsv"
	SuspectFile = "suspect.tsv"
	CorruptFile = "corrupt.tsv"
	SummaryFile = "summary.json"
)

var reportHeader = []string{"key", "idx", "source", "translation", "reason", "len_ratio", "similarity"}

// Summary is the content of summary.json.
type Summary struct {
	MissingCount int        `json:"missing_count"`
	SuspectCount int        `json:"suspect_count"`
	CorruptCount int        `json:"corrupt_count"`
	Checked      int        `json:"checked"`
	Params       Thresholds `json:"params"`
	Timestamp    string     `json:"timestamp"`
}

// Summary returns the counts of r.
func (r *Result) Summary() Summary {
	return Summary{
		MissingCount: len(r.Missing),
		SuspectCount: len(r.Suspect),
		CorruptCount: len(r.Corrupt),
		Checked:      r.Checked,
		Params:       r.Thresholds,
		Timestamp:    r.At.Format(time.RFC3339),
	}
}

// WriteReports writes the three TSV reports and summary.json into dir.
// With appendRows the findings are appended to existing reports (the header
// is written only to new files); otherwise each report is replaced.
func WriteReports(dir string, res *Result, appendRows bool) (Summary, error) {
	reports := []struct {
		name     string
		findings []Finding
	}{
		{MissingFile, res.Missing},
		{SuspectFile, res.Suspect},
		{CorruptFile, res.Corrupt},
	}
	for _, r := range reports {
		path := filepath.Join(dir, r.name)
		var err error
		if appendRows {
			err = appendReport(path, r.findings)
		} else {
			err = catalog.WriteAtomic(path, func(w io.Writer) error {
				return writeFindings(w, r.findings, true)
			})
		}
		if err != nil {
			return Summary{}, err
		}
	}

	sum := res.Summary()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sum); err != nil {
		return Summary{}, err
	}
	if err := catalog.WriteFileAtomic(filepath.Join(dir, SummaryFile), buf.Bytes()); err != nil {
		return Summary{}, err
	}
	return sum, nil
}

func appendReport(path string, findings []Finding) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	header := !catalog.NonEmpty(path)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if err := writeFindings(f, findings, header); err != nil {
		f.Close()
		return fmt.Errorf("append %s: %w", path, err)
	}
	return f.Close()
}

func writeFindings(w io.Writer, findings []Finding, header bool) error {
	tw := catalog.NewTSVWriter(w)
	if header {
		if err := tw.Write(reportHeader...); err != nil {
			return err
		}
	}
	for _, f := range findings {
		err := tw.Write(
			f.Key,
			strconv.Itoa(f.Idx),
			f.Source,
			f.Translation,
			f.Reason,
			strconv.FormatFloat(f.LenRatio, 'f', 2, 64),
			strconv.FormatFloat(f.Similarity, 'f', 2, 64),
		)
		if err != nil {
			return err
		}
	}
	return tw.Flush()
}
