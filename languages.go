package wotrtl

import "strings"

// LanguageNames maps locale codes to human-readable names for AI prompts.
var LanguageNames = map[string]string{
	"cs_CZ": "Czech (Czech Republic)",
	"sk_SK": "Slovak (Slovakia)",
	"pl_PL": "Polish (Poland)",
	"de_DE": "German (Germany)",
	"en_US": "English (United States)",
	"en_GB": "English (United Kingdom)",
	"es_ES": "Spanish (Spain)",
	"fr_FR": "French (France)",
	"it_IT": "Italian (Italy)",
	"hu_HU": "Hungarian (Hungary)",
	"ru_RU": "Russian (Russia)",
	"uk_UA": "Ukrainian (Ukraine)",
	"ar_SA": "Arabic (Saudi Arabia)",
	"he_IL": "Hebrew (Israel)",
}

// ShortCodeToLocale maps short language codes to full locale codes.
var ShortCodeToLocale = map[string]string{
	"cs": "cs_CZ",
	"sk": "sk_SK",
	"pl": "pl_PL",
	"de": "de_DE",
	"en": "en_US",
	"es": "es_ES",
	"fr": "fr_FR",
	"it": "it_IT",
	"hu": "hu_HU",
	"ru": "ru_RU",
	"uk": "uk_UA",
	"ar": "ar_SA",
	"he": "he_IL",
}

// RTLLanguages contains base language codes written right-to-left.
var RTLLanguages = map[string]bool{
	"ar": true,
	"he": true,
	"fa": true,
	"ur": true,
}

// GetLanguageName returns the human-readable name for a language code.
// Falls back to the code itself if not found.
func GetLanguageName(langCode string) string {
	langCode = NormalizeLocale(langCode)
	if name, ok := LanguageNames[langCode]; ok {
		return name
	}
	if locale, ok := ShortCodeToLocale[strings.ToLower(langCode)]; ok {
		if name, ok := LanguageNames[locale]; ok {
			return name
		}
	}
	return langCode
}

// GetDirection returns "rtl" for right-to-left languages, "ltr" otherwise.
func GetDirection(langCode string) string {
	base := strings.ToLower(strings.Split(NormalizeLocale(langCode), "_")[0])
	if RTLLanguages[base] {
		return "rtl"
	}
	return "ltr"
}

// IsCzech reports whether the code names Czech (cs, cs_CZ, cs-CZ).
func IsCzech(langCode string) bool {
	base := strings.ToLower(strings.Split(NormalizeLocale(langCode), "_")[0])
	return base == "cs"
}

// NormalizeLocale converts a language code to the standard format (e.g., "cs-CZ" → "cs_CZ").
func NormalizeLocale(langCode string) string {
	return strings.ReplaceAll(strings.TrimSpace(langCode), "-", "_")
}

// ToHTMLLang converts a locale code to HTML lang attribute format (e.g., "cs_CZ" → "cs-CZ").
func ToHTMLLang(langCode string) string {
	return strings.ReplaceAll(langCode, "_", "-")
}
