package wotrtl

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Prompts holds the system rules and the user message header sent with
// every translation request. The user message is UserHeader followed by
// the TSV block.
type Prompts struct {
	SystemRules string `json:"system_rules"`
	UserHeader  string `json:"user_header"`
}

const czechSystemRules = "Překládej do češtiny s respektem k RPG/D&D/Pathfinder terminologii; " +
	"herní mechaniky překládej (číselné hodnoty ponech); " +
	"zachovávej velká písmena vlastních jmen a titulů jako v angličtině; " +
	"výchozí 2. osoba mužského rodu (ženský tvar jen pokud je to jisté); " +
	"uvnitř odkazů {g|…}…{/g} nic neměň ani nepřekládej, u ostatních {…} překládej obsah a ponech závorky; " +
	"piš přirozenou češtinou, krátké UI texty stručně; " +
	"jemný archaický nádech tam, kde žánrově sedí; " +
	"vrať POUZE TSV řádky `idx\\tTranslation` přesně v pořadí vstupu, bez čehokoli navíc; " +
	"uváděj jen výsledný český text, nikdy nepiš dvojjazyčně typem \"EN → CS\"."

const czechUserHeader = "Pro každý vstupní řádek `idx\\tSource` vrať přesně jeden řádek `idx\\tTranslation` se stejným `idx`. " +
	"Uvnitř {g|…}…{/g} nic neměň ani nepřekládej; u ostatních {…} přelož obsah a ponech závorky. " +
	"Herní mechaniky překládej, číselné hodnoty ponech.\n\n"

// DefaultPrompts returns the built-in Czech prompts.
func DefaultPrompts() Prompts {
	return Prompts{SystemRules: czechSystemRules, UserHeader: czechUserHeader}
}

// DefaultPromptsFor returns the built-in prompts for a target language.
// Czech gets the hand-tuned rules; other languages get a generic English
// instruction naming the language.
func DefaultPromptsFor(targetLang string) Prompts {
	if targetLang == "" || IsCzech(targetLang) {
		return DefaultPrompts()
	}
	name := GetLanguageName(targetLang)
	return Prompts{
		SystemRules: fmt.Sprintf("Translate English RPG (Pathfinder) game text into %s. "+
			"Keep numbers and game mechanics values. "+
			"Inside {g|…}…{/g} links change nothing; inside other {…} translate the content and keep the braces. "+
			"Return ONLY TSV lines `idx\\tTranslation` in input order, nothing else. "+
			"Never answer bilingually.", name),
		UserHeader: "For every input line `idx\\tSource` return exactly one line `idx\\tTranslation` with the same `idx`.\n\n",
	}
}

// LoadPrompts reads a prompts JSON file ({"system_rules": ..., "user_header": ...})
// over base. Missing or blank keys keep the base value.
func LoadPrompts(path string, base Prompts) (Prompts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, &InputError{Path: path, Message: "cannot read prompts file", Cause: err}
	}
	var p Prompts
	if err := json.Unmarshal(data, &p); err != nil {
		return base, &InputError{Path: path, Message: "malformed prompts file", Cause: err}
	}
	if strings.TrimSpace(p.SystemRules) != "" {
		base.SystemRules = p.SystemRules
	}
	if strings.TrimSpace(p.UserHeader) != "" {
		base.UserHeader = p.UserHeader
	}
	return base, nil
}

// Request builds the completion request for one TSV block.
func (p Prompts) Request(customID, model, block string) CompletionRequest {
	return CompletionRequest{
		CustomID: customID,
		Model:    model,
		System:   p.SystemRules,
		User:     p.UserHeader + block,
	}
}
