// Package audit flags translations that are missing, look untranslated or
// look like the model answered for the wrong row.
//
// The checks are string heuristics over the source and translation texts.
// Their findings are advisory: a flagged entry is a candidate for review or
// re-translation, never proof of a bad translation.
package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/wotrcz/wotrtl/catalog"
)

// Finding is one flagged entry.
type Finding struct {
	Key         string
	Idx         int
	Source      string
	Translation string
	Reason      string
	LenRatio    float64
	Similarity  float64 // Token Jaccard similarity of source and translation
}

// Result holds the findings of one audit run.
type Result struct {
	Missing    []Finding
	Suspect    []Finding
	Corrupt    []Finding
	Checked    int // Rows with a non-blank source
	Thresholds Thresholds
	At         time.Time
}

// Idxs returns the indexes of findings, in order.
func Idxs(findings []Finding) []int {
	idxs := make([]int, len(findings))
	for i, f := range findings {
		idxs[i] = f.Idx
	}
	return idxs
}

// Audit checks the translation of every mapped row. translations is keyed
// by index; rows with a blank source are not checked. An entry may be both
// corrupt and suspect.
func Audit(cat *catalog.Catalog, translations map[int]string, th Thresholds) (*Result, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	res := &Result{Thresholds: th, At: time.Now()}
	for _, row := range cat.Rows() {
		if strings.TrimSpace(row.Text) == "" {
			continue
		}
		res.Checked++
		tr := strings.TrimSpace(translations[row.Idx])
		f := Finding{
			Key:         row.GUID,
			Idx:         row.Idx,
			Source:      row.Text,
			Translation: tr,
		}
		if tr == "" {
			res.Missing = append(res.Missing, f)
			continue
		}

		f.LenRatio = LenRatio(row.Text, tr)
		f.Similarity = Jaccard(Tokens(row.Text), Tokens(tr))

		if reason := corruptReason(row.Text, tr, th); reason != "" {
			c := f
			c.Reason = reason
			res.Corrupt = append(res.Corrupt, c)
		}
		if reasons := suspectReasons(row.Text, tr, f.LenRatio, f.Similarity, th); len(reasons) > 0 {
			f.Reason = strings.Join(reasons, ";")
			res.Suspect = append(res.Suspect, f)
		}
	}
	return res, nil
}

// FromDocument returns the translations of doc keyed by index.
func FromDocument(cat *catalog.Catalog, doc *catalog.Document) map[int]string {
	out := make(map[int]string, cat.Map.Len())
	for _, idx := range cat.Map.Indexes() {
		guid, _ := cat.Map.GUID(idx)
		if text, ok := doc.Get(guid); ok {
			out[idx] = text
		}
	}
	return out
}

func suspectReasons(src, tr string, ratio, sim float64, th Thresholds) []string {
	var reasons []string
	if tr == src {
		reasons = append(reasons, "identical")
	}
	if sim >= th.JaccardThreshold && !LikelyCzech(tr, th.MinCzechChars) {
		reasons = append(reasons, fmt.Sprintf("jaccard_high:%.2f_no_czech", sim))
	}
	if ratio < th.MinLenRatio {
		reasons = append(reasons, fmt.Sprintf("too_short:%.2f", ratio))
	}
	if th.MaxLenRatio > 0 && ratio > th.MaxLenRatio {
		reasons = append(reasons, fmt.Sprintf("too_long:%.2f", ratio))
	}
	if th.FlagBilingual && HasBilingualArrow(tr) {
		reasons = append(reasons, "bilingual_arrow")
	}
	if strings.Contains(tr, src) {
		reasons = append(reasons, "contains_source")
	}
	return reasons
}

// corruptReason flags a short label whose translation reads like a
// sentence or a paragraph, usually the answer for a neighbouring row.
func corruptReason(src, tr string, th Thresholds) string {
	s := strings.TrimSpace(src)
	t := strings.TrimSpace(tr)
	sWords := Tokens(s)
	tWords := Tokens(t)
	if len(sWords) == 0 || len(sWords) > th.CorruptSrcMaxWords {
		return ""
	}
	ratio := LenRatio(s, t)
	if len(tWords) < th.CorruptTrMinWords && ratio < th.CorruptMinLenRatio {
		return ""
	}

	reason := fmt.Sprintf("short_src_long_tr: src_words=%d, tr_words=%d, len_ratio=%.2f", len(sWords), len(tWords), ratio)
	var extra []string
	if n := strings.Count(t, ".") + strings.Count(t, "!") + strings.Count(t, "?") + strings.Count(t, ":") + strings.Count(t, ";"); n > 0 {
		extra = append(extra, fmt.Sprintf("sent_punct=%d", n))
	}
	if n := strings.Count(t, ","); n >= 2 {
		extra = append(extra, fmt.Sprintf("commas=%d", n))
	}
	if n := strings.Count(t, "\n"); n > 0 {
		extra = append(extra, fmt.Sprintf("nl=%d", n))
	}
	if len(extra) > 0 {
		reason += ";" + strings.Join(extra, ",")
	}
	return reason
}
