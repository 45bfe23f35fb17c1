package wotrtl

import (
	"regexp"
	"strconv"
	"strings"
)

// blockLine matches one "idx<TAB>text" line of a TSV block.
var blockLine = regexp.MustCompile(`^\s*(\d{1,9})\t(.*)$`)

// SanitizeCell escapes characters that would break a TSV line.
func SanitizeCell(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\t", `\t`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	return strings.ReplaceAll(s, "\n", `\n`)
}

// UnescapeCell reverts SanitizeCell.
func UnescapeCell(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	r := strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\r`, "\r")
	return r.Replace(s)
}

// BlockLine renders a single row of a request block, including the newline.
func BlockLine(r Row) string {
	return strconv.Itoa(r.Idx) + "\t" + SanitizeCell(r.Text) + "\n"
}

// BuildBlock renders rows as the "idx<TAB>Source" block of a user message.
func BuildBlock(rows []Row) string {
	var b strings.Builder
	for _, r := range rows {
		b.WriteString(BlockLine(r))
	}
	return b.String()
}

// ParseBlock parses model output strictly: only lines of the form
// "idx<TAB>Translation" with a numeric idx and a non-blank translation are
// kept. A repeated idx keeps the last line. Escaped newlines stay escaped.
func ParseBlock(output string) map[int]string {
	out := make(map[int]string)
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		m := blockLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		text := strings.TrimSpace(m[2])
		if text == "" {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil || idx <= 0 {
			continue
		}
		out[idx] = text
	}
	return out
}

// BlockIndexes returns the indexes listed in a block (or a user message
// ending with one), in order.
func BlockIndexes(block string) []int {
	var idxs []int
	for _, line := range strings.Split(block, "\n") {
		m := blockLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if idx, err := strconv.Atoi(m[1]); err == nil && idx > 0 {
			idxs = append(idxs, idx)
		}
	}
	return idxs
}
