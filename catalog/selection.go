package catalog

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// ParseSelection parses "1,3-5,10" into sorted unique numbers. Reversed
// ranges ("5-3") are normalised. An empty expression selects nothing.
func ParseSelection(expr string) ([]int, error) {
	set := make(map[int]struct{})
	for _, tok := range strings.Split(expr, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(tok, "-"); ok {
			a, err := strconv.Atoi(strings.TrimSpace(lo))
			if err != nil {
				return nil, fmt.Errorf("invalid range %q", tok)
			}
			b, err := strconv.Atoi(strings.TrimSpace(hi))
			if err != nil {
				return nil, fmt.Errorf("invalid range %q", tok)
			}
			if a > b {
				a, b = b, a
			}
			for n := a; n <= b; n++ {
				set[n] = struct{}{}
			}
			continue
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", tok)
		}
		set[n] = struct{}{}
	}
	return sortedKeys(set), nil
}

// ParseIndexList parses indexes separated by commas and/or whitespace.
// Ranges are accepted as well.
func ParseIndexList(s string) ([]int, error) {
	return ParseSelection(strings.Join(strings.Fields(strings.ReplaceAll(s, ",", " ")), ","))
}

// ReadIndexList reads an index list file. Lines starting with '#' are comments.
func ReadIndexList(path string) ([]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var b strings.Builder
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		b.WriteString(line)
		b.WriteString(" ")
	}
	return ParseIndexList(b.String())
}

func sortedKeys(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
