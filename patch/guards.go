package patch

import (
	"regexp"
	"slices"
)

var (
	bracedRx = regexp.MustCompile(`\{[^{}]*\}`)
	glinkRx  = regexp.MustCompile(`(?is)\{g\|[^{}]*\}.*?\{/g\}`)
)

// GuardsOK reports whether next keeps the markup of prev: the same
// {g|...}...{/g} links and the same {...} tokens, in the same order.
func GuardsOK(prev, next string) bool {
	return slices.Equal(glinkRx.FindAllString(prev, -1), glinkRx.FindAllString(next, -1)) &&
		slices.Equal(bracedRx.FindAllString(prev, -1), bracedRx.FindAllString(next, -1))
}
