package overlay

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wotrcz/wotrtl"
	"github.com/wotrcz/wotrtl/catalog"
)

// DefaultHeroines are the speaker name needles used when none are given.
var DefaultHeroines = []string{
	"seelah", "camellia", "arueshalae", "nenio", "ember", "wenduag", "galfrey",
	"delamere", "aivu", "irabeth", "anevia", "terendelev", "yaniel", "areelu",
	"minagho", "hepzamirah", "jerribeth", "nocticula", "shamira", "vellexia",
	"zanedra", "jeslyn", "nurah",
}

// SpeakerOptions filters ExportSpeakers.
type SpeakerOptions struct {
	Names  []string // Case-insensitive substrings of the speaker name
	Gender string   // Only this speaker_gender, case-insensitive; empty keeps all
}

// SpeakerLine is one exported line.
type SpeakerLine struct {
	Key    string
	Gender string
	Name   string
	Text   string
}

// SpeakerStats counts what ExportSpeakers saw.
type SpeakerStats struct {
	Scanned    int
	Matched    int
	Duplicates int
	Empty      int // Matched rows without a translation
}

// LoadNames reads one name per line; blank lines and '#' comments are
// ignored. An empty file yields DefaultHeroines.
func LoadNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &wotrtl.InputError{Path: path, Message: "cannot open names file", Cause: err}
	}
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		names = append(names, strings.ToLower(s))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(names) == 0 {
		return DefaultHeroines, nil
	}
	return names, nil
}

// ExportSpeakers returns the translated lines of the speakers table
// (key, speaker_gender, speaker_name) whose speaker matches a name needle.
// Only the first row of a key is kept; rows without text are skipped.
func ExportSpeakers(doc *catalog.Document, speakers *catalog.Table, opts SpeakerOptions) ([]SpeakerLine, SpeakerStats, error) {
	var stats SpeakerStats
	keyCol := speakers.Col("key")
	genderCol := speakers.Col("speaker_gender")
	nameCol := speakers.Col("speaker_name")
	if keyCol < 0 || genderCol < 0 || nameCol < 0 {
		return nil, stats, &wotrtl.InputError{Message: fmt.Sprintf("speakers table needs key, speaker_gender and speaker_name columns, has %v", speakers.Header)}
	}

	needles := opts.Names
	if len(needles) == 0 {
		needles = DefaultHeroines
	}

	var out []SpeakerLine
	seen := make(map[string]bool)
	for _, rec := range speakers.Rows {
		stats.Scanned++
		key := strings.TrimSpace(catalog.Cell(rec, keyCol))
		name := strings.TrimSpace(catalog.Cell(rec, nameCol))
		gender := strings.TrimSpace(catalog.Cell(rec, genderCol))
		if key == "" || name == "" || !matchesAny(name, needles) {
			continue
		}
		if opts.Gender != "" && !strings.EqualFold(gender, opts.Gender) {
			continue
		}
		stats.Matched++
		if seen[key] {
			stats.Duplicates++
			continue
		}
		seen[key] = true

		text, _ := doc.Get(key)
		if strings.TrimSpace(text) == "" {
			stats.Empty++
			continue
		}
		out = append(out, SpeakerLine{Key: key, Gender: gender, Name: name, Text: text})
	}
	return out, stats, nil
}

func matchesAny(name string, needles []string) bool {
	low := strings.ToLower(name)
	for _, n := range needles {
		if strings.Contains(low, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// WriteSpeakers writes lines as a TSV with the header
// key, speaker_gender, speaker_name, cs_text.
func WriteSpeakers(path string, lines []SpeakerLine) error {
	return catalog.WriteAtomic(path, func(w io.Writer) error {
		tw := catalog.NewTSVWriter(w)
		if err := tw.Write("key", "speaker_gender", "speaker_name", "cs_text"); err != nil {
			return err
		}
		for _, l := range lines {
			if err := tw.Write(l.Key, l.Gender, l.Name, l.Text); err != nil {
				return err
			}
		}
		return tw.Flush()
	})
}
