package audit

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

var wordRx = regexp.MustCompile(`[0-9A-Za-zÀ-ž]+`)

const czechDiacritics = "áčďéěíňóřšťúůýžÁČĎÉĚÍŇÓŘŠŤÚŮÝŽ"

// Frequent short Czech words. Two hits make a text look Czech even
// without diacritics.
var czechHintWords = []string{
	"že", "se", "jsem", "jsi", "bude", "být", "tak", "jen", "už", "když",
	"který", "která", "které", "ten", "ta", "to", "a", "v", "na", "pro",
	"z", "do", "tady", "tam", "nebo",
}

// Words counted by the czechness score.
var czechCommonWords = []string{
	"že", "se", "jsem", "byla", "bude", "aby", "už", "jen", "když", "který",
	"kterou", "které", "ten", "ta", "to", "a", "v", "na", "pro", "do",
}

// Tokens splits s into case-folded word tokens.
func Tokens(s string) []string {
	// a Caser keeps state, so each call gets its own
	folder := cases.Fold()
	words := wordRx.FindAllString(s, -1)
	for i, w := range words {
		words[i] = folder.String(w)
	}
	return words
}

// Jaccard returns the token set similarity of a and b. Two empty sets are
// identical.
func Jaccard(a, b []string) float64 {
	sa := toSet(a)
	sb := toSet(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 1
	}
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	inter := 0
	for w := range sa {
		if sb[w] {
			inter++
		}
	}
	return float64(inter) / float64(len(sa)+len(sb)-inter)
}

func toSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// LenRatio returns len(translation)/len(source) in characters.
func LenRatio(source, translation string) float64 {
	return float64(utf8.RuneCountInString(translation)) / float64(max(1, utf8.RuneCountInString(source)))
}

func diacritics(s string) int {
	n := 0
	for _, r := range s {
		if strings.ContainsRune(czechDiacritics, r) {
			n++
		}
	}
	return n
}

// wordHits counts how many of words occur as whole space-separated words in s.
func wordHits(s string, words []string) int {
	low := " " + cases.Fold().String(s) + " "
	n := 0
	for _, w := range words {
		if strings.Contains(low, " "+w+" ") {
			n++
		}
	}
	return n
}

// LikelyCzech reports whether s carries at least minChars Czech diacritics
// or two frequent Czech words. A non-positive minChars accepts everything.
func LikelyCzech(s string, minChars int) bool {
	if minChars <= 0 {
		return true
	}
	if diacritics(s) >= minChars {
		return true
	}
	return wordHits(s, czechHintWords) >= 2
}

// Czechness estimates in [0, 1] how Czech s looks.
func Czechness(s string) float64 {
	if s == "" {
		return 0
	}
	base := min(1, float64(diacritics(s))/float64(max(1, utf8.RuneCountInString(s)/4)))
	boost := min(0.3, float64(wordHits(s, czechCommonWords))*0.03)
	return min(1, base+boost)
}

// HasBilingualArrow reports whether s looks like "source -> translation".
func HasBilingualArrow(s string) bool {
	return strings.Contains(s, "->") || strings.Contains(s, "→")
}
