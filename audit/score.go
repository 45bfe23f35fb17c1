package audit

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Bounds configures Score.
type Bounds struct {
	MinLenRatio   float64 `yaml:"min_len_ratio" json:"min_len_ratio"`
	MaxLenRatio   float64 `yaml:"max_len_ratio" json:"max_len_ratio"`
	PenalizeArrow bool    `yaml:"penalize_arrow" json:"penalize_arrow"`
}

// DefaultBounds returns the length bounds used for comparisons.
func DefaultBounds() Bounds {
	return Bounds{MinLenRatio: 0.4, MaxLenRatio: 2.5, PenalizeArrow: true}
}

// Score rates a translation of source from 0 to 100 and returns the
// reasons behind the score. An empty translation scores 0.
func Score(source, translation string, b Bounds) (float64, []string) {
	if translation == "" {
		return 0, []string{"empty"}
	}
	var reasons []string
	score := 50.0

	src := strings.TrimSpace(source)
	tr := strings.TrimSpace(translation)
	if src == tr {
		reasons = append(reasons, "identical_to_source")
		score -= 80
	}
	if b.PenalizeArrow && HasBilingualArrow(translation) {
		reasons = append(reasons, "bilingual_arrow")
		score -= 40
	}
	if utf8.RuneCountInString(src) > 15 && strings.Contains(tr, src) {
		reasons = append(reasons, "contains_source")
		score -= 20
	}

	if jac := overlap(source, translation); jac > 0.4 {
		reasons = append(reasons, fmt.Sprintf("jaccard_high:%.2f", jac))
		score -= (jac - 0.4) * 60
	}

	switch cz := Czechness(translation); {
	case cz < 0.2:
		reasons = append(reasons, fmt.Sprintf("low_czechness:%.2f", cz))
		score -= 25
	case cz > 0.6:
		reasons = append(reasons, fmt.Sprintf("czechness_ok:%.2f", cz))
		score += 6
	}

	if lr := LenRatio(source, translation); lr < b.MinLenRatio || lr > b.MaxLenRatio {
		reasons = append(reasons, fmt.Sprintf("len_ratio_out:%.2f", lr))
		score -= 15
	} else {
		reasons = append(reasons, fmt.Sprintf("len_ratio_ok:%.2f", lr))
		score += 4
	}

	return max(0, min(100, score)), reasons
}

// overlap is Jaccard without the "both empty" case: no tokens on either
// side means no evidence of copying.
func overlap(a, b string) float64 {
	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	return Jaccard(ta, tb)
}
