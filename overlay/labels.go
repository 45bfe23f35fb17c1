package overlay

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/wotrcz/wotrtl/catalog"
)

var (
	glinkRx = regexp.MustCompile(`(?is)\{g\|[^}]*\}(.*?)\{/g\}`)
	curlyRx = regexp.MustCompile(`\{[^}]*\}`)
	htmlRx  = regexp.MustCompile(`<[^>]+>`)
	wordRx  = regexp.MustCompile(`[0-9A-Za-zÀ-ž'’\-]+`)
)

// StripGameTags keeps the text of {g|...}...{/g} links and drops other
// {...} tokens and <...> tags.
func StripGameTags(s string) string {
	s = glinkRx.ReplaceAllString(s, "$1")
	s = curlyRx.ReplaceAllString(s, "")
	return htmlRx.ReplaceAllString(s, "")
}

// FirstWords returns the first n words of s after stripping game tags.
func FirstWords(s string, n int) string {
	words := wordRx.FindAllString(StripGameTags(s), n)
	return strings.Join(words, " ")
}

// Labels returns a copy of the source document whose texts are replaced by
// "IDX first two words", a debug view for locating lines in game. A
// non-empty id replaces the document's "$id".
func Labels(cat *catalog.Catalog, id string) *catalog.Document {
	doc := cat.Source.Clone()
	if id != "" {
		raw, _ := json.Marshal(id)
		doc.SetMetadata("$id", raw)
	}
	for _, row := range cat.Rows() {
		label := strconv.Itoa(row.Idx)
		if two := FirstWords(row.Text, 2); two != "" {
			label += " " + two
		}
		doc.Set(row.GUID, label)
	}
	return doc
}
