// Package report compares two translations of the same source document
// and renders the comparison for reviewers.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wotrcz/wotrtl"
	"github.com/wotrcz/wotrtl/audit"
	"github.com/wotrcz/wotrtl/catalog"
)

// Sides of a comparison.
const (
	SideA = "a"
	SideB = "b"
)

// Options configures Compare.
type Options struct {
	Bounds      audit.Bounds
	Prefer      string // Side picked on equal scores; defaults to SideA
	OnlyCommon  bool   // Skip keys translated on one side only
	IncludeSame bool   // Also list keys with equal text on both sides
	Lang        string // Translation locale, the language of the HTML page
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{Bounds: audit.DefaultBounds(), Prefer: SideA, Lang: "cs_CZ"}
}

// Row is one compared entry.
type Row struct {
	Idx      int
	Key      string
	Source   string
	A        string
	B        string
	ScoreA   float64
	ScoreB   float64
	Pick     string
	ReasonsA []string
	ReasonsB []string
}

// Reasons renders both sides' reasons for a report cell.
func (r Row) Reasons() string {
	return "a=" + strings.Join(r.ReasonsA, ";") + " b=" + strings.Join(r.ReasonsB, ";")
}

// Comparison is the result of Compare.
type Comparison struct {
	Rows    []Row
	PickedA int
	PickedB int
	Same    int
	Stats   wotrtl.DiffStats // Document level diff of a against b
	Merged  *catalog.Document
	Lang    string
}

// Compare scores both translations of every mapped entry whose text
// differs and picks the better one; equal scores go to opts.Prefer.
// Merged follows the keys of the source document: A's translations with
// every B pick applied.
func Compare(cat *catalog.Catalog, a, b *catalog.Document, opts Options) (*Comparison, error) {
	switch opts.Prefer {
	case "":
		opts.Prefer = SideA
	case SideA, SideB:
	default:
		return nil, fmt.Errorf("prefer must be %q or %q, got %q", SideA, SideB, opts.Prefer)
	}

	cmp := &Comparison{
		Stats:  wotrtl.DiffEntries(a.Entries(), b.Entries()).Stats(),
		Merged: cat.Source.Clone(),
		Lang:   opts.Lang,
	}
	for _, row := range cat.Rows() {
		ta, okA := a.Get(row.GUID)
		tb, okB := b.Get(row.GUID)
		if okA {
			cmp.Merged.Set(row.GUID, ta)
		}
		okA = okA && strings.TrimSpace(ta) != ""
		okB = okB && strings.TrimSpace(tb) != ""
		if !okA && !okB {
			continue
		}
		if ta == tb {
			cmp.Same++
			if !opts.IncludeSame {
				continue
			}
		}

		r := Row{Idx: row.Idx, Key: row.GUID, Source: row.Text, A: ta, B: tb}
		switch {
		case !okB:
			if opts.OnlyCommon {
				continue
			}
			r.ScoreA, r.ReasonsA, r.ReasonsB, r.Pick = 100, []string{"-"}, []string{"missing"}, SideA
		case !okA:
			if opts.OnlyCommon {
				continue
			}
			r.ScoreB, r.ReasonsA, r.ReasonsB, r.Pick = 100, []string{"missing"}, []string{"-"}, SideB
		default:
			r.ScoreA, r.ReasonsA = audit.Score(row.Text, ta, opts.Bounds)
			r.ScoreB, r.ReasonsB = audit.Score(row.Text, tb, opts.Bounds)
			switch {
			case r.ScoreA > r.ScoreB:
				r.Pick = SideA
			case r.ScoreB > r.ScoreA:
				r.Pick = SideB
			default:
				r.Pick = opts.Prefer
			}
		}

		if r.Pick == SideA {
			cmp.PickedA++
		} else {
			cmp.PickedB++
			cmp.Merged.Set(row.GUID, tb)
		}
		cmp.Rows = append(cmp.Rows, r)
	}
	return cmp, nil
}

var tsvHeader = []string{"idx", "key", "source", "a", "b", "score_a", "score_b", "pick", "reasons"}

// WriteTSV writes the comparison rows as TSV.
func WriteTSV(w io.Writer, cmp *Comparison) error {
	tw := catalog.NewTSVWriter(w)
	if err := tw.Write(tsvHeader...); err != nil {
		return err
	}
	for _, r := range cmp.Rows {
		err := tw.Write(
			strconv.Itoa(r.Idx),
			r.Key,
			r.Source,
			r.A,
			r.B,
			formatScore(r.ScoreA),
			formatScore(r.ScoreB),
			r.Pick,
			r.Reasons(),
		)
		if err != nil {
			return err
		}
	}
	return tw.Flush()
}

// WriteTSVFile writes the TSV report to path atomically.
func WriteTSVFile(path string, cmp *Comparison) error {
	return catalog.WriteAtomic(path, func(w io.Writer) error {
		return WriteTSV(w, cmp)
	})
}

func formatScore(s float64) string {
	return strconv.FormatFloat(s, 'f', 1, 64)
}
