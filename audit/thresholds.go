package audit

import "fmt"

// Thresholds tunes the suspect and corrupt heuristics.
type Thresholds struct {
	JaccardThreshold   float64 `yaml:"jaccard_threshold" json:"jaccard_threshold"`
	MinCzechChars      int     `yaml:"min_czech_chars" json:"min_czech_chars"`
	MinLenRatio        float64 `yaml:"min_len_ratio" json:"min_len_ratio"`
	MaxLenRatio        float64 `yaml:"max_len_ratio" json:"max_len_ratio"` // 0 disables too_long
	FlagBilingual      bool    `yaml:"flag_bilingual" json:"flag_bilingual"`
	CorruptSrcMaxWords int     `yaml:"corrupt_src_max_words" json:"corrupt_src_max_words"`
	CorruptTrMinWords  int     `yaml:"corrupt_tr_min_words" json:"corrupt_tr_min_words"`
	CorruptMinLenRatio float64 `yaml:"corrupt_min_len_ratio" json:"corrupt_min_len_ratio"`
}

// DefaultThresholds returns the thresholds tuned on the game text.
func DefaultThresholds() Thresholds {
	return Thresholds{
		JaccardThreshold:   0.72,
		MinCzechChars:      1,
		MinLenRatio:        0.45,
		FlagBilingual:      true,
		CorruptSrcMaxWords: 3,
		CorruptTrMinWords:  10,
		CorruptMinLenRatio: 3.0,
	}
}

// Validate checks that every threshold is in range.
func (t Thresholds) Validate() error {
	switch {
	case t.JaccardThreshold < 0 || t.JaccardThreshold > 1:
		return fmt.Errorf("jaccard_threshold must be within [0, 1], got %v", t.JaccardThreshold)
	case t.MinCzechChars < 0:
		return fmt.Errorf("min_czech_chars must not be negative, got %d", t.MinCzechChars)
	case t.MinLenRatio < 0:
		return fmt.Errorf("min_len_ratio must not be negative, got %v", t.MinLenRatio)
	case t.MaxLenRatio < 0:
		return fmt.Errorf("max_len_ratio must not be negative, got %v", t.MaxLenRatio)
	case t.MaxLenRatio > 0 && t.MaxLenRatio <= t.MinLenRatio:
		return fmt.Errorf("max_len_ratio (%v) must exceed min_len_ratio (%v)", t.MaxLenRatio, t.MinLenRatio)
	case t.CorruptSrcMaxWords < 1:
		return fmt.Errorf("corrupt_src_max_words must be at least 1, got %d", t.CorruptSrcMaxWords)
	case t.CorruptTrMinWords < 1:
		return fmt.Errorf("corrupt_tr_min_words must be at least 1, got %d", t.CorruptTrMinWords)
	case t.CorruptMinLenRatio <= 1:
		return fmt.Errorf("corrupt_min_len_ratio must exceed 1, got %v", t.CorruptMinLenRatio)
	}
	return nil
}
