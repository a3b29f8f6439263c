// Package langmeta maps language codes to display names. English names
// are used in translation prompts; native names in CLI output.
package langmeta

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Meta describes language display metadata.
type Meta struct {
	// English is the name used when talking to translation services.
	English string
	// Native is the name of the language in itself.
	Native string
}

// Registry holds names that differ from, or are missing in, the CLDR data
// shipped with x/text. Codes not listed here are resolved through CLDR.
var Registry = map[string]Meta{
	"ar":    {English: "Arabic", Native: "العربية"},
	"de":    {English: "German", Native: "Deutsch"},
	"en":    {English: "English", Native: "English"},
	"es":    {English: "Spanish", Native: "Español"},
	"fr":    {English: "French", Native: "Français"},
	"hi":    {English: "Hindi", Native: "हिन्दी"},
	"id":    {English: "Indonesian", Native: "Bahasa Indonesia"},
	"it":    {English: "Italian", Native: "Italiano"},
	"ja":    {English: "Japanese", Native: "日本語"},
	"ko":    {English: "Korean", Native: "한국어"},
	"nl":    {English: "Dutch", Native: "Nederlands"},
	"pl":    {English: "Polish", Native: "Polski"},
	"pt":    {English: "Portuguese", Native: "Português"},
	"pt-BR": {English: "Portuguese (Brazil)", Native: "Português (Brasil)"},
	"ru":    {English: "Russian", Native: "Русский"},
	"th":    {English: "Thai", Native: "ไทย"},
	"tr":    {English: "Turkish", Native: "Türkçe"},
	"uk":    {English: "Ukrainian", Native: "Українська"},
	"vi":    {English: "Vietnamese", Native: "Tiếng Việt"},
	"zh":    {English: "Chinese (Simplified)", Native: "简体中文"},
	"zh-CN": {English: "Chinese (Simplified)", Native: "简体中文"},
	"zh-TW": {English: "Chinese (Traditional)", Native: "繁體中文"},
}

func canonicalize(lang string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if normalized == "" {
		return ""
	}
	parts := strings.Split(normalized, "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) >= 2 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return strings.Join(parts, "-")
}

// Resolve returns best-effort language metadata for language codes,
// supporting variants like pt_BR and pt-BR. Unknown codes resolve to
// themselves.
func Resolve(lang string) Meta {
	if m, ok := Registry[lang]; ok {
		return m
	}
	normalized := canonicalize(lang)
	if m, ok := Registry[normalized]; ok {
		return m
	}
	if m, ok := fromCLDR(normalized); ok {
		return m
	}
	if base, _, found := strings.Cut(normalized, "-"); found {
		if m, ok := Registry[base]; ok {
			return m
		}
	}
	return Meta{English: lang, Native: lang}
}

// Name returns the English name of lang.
func Name(lang string) string {
	return Resolve(lang).English
}

// Native returns the name of lang in that language.
func Native(lang string) string {
	return Resolve(lang).Native
}

// Valid reports whether lang parses as a BCP 47 or POSIX locale tag.
func Valid(lang string) bool {
	c := canonicalize(lang)
	if c == "" {
		return false
	}
	_, err := language.Parse(c)
	return err == nil
}

func fromCLDR(code string) (Meta, bool) {
	if code == "" {
		return Meta{}, false
	}
	tag, err := language.Parse(code)
	if err != nil {
		return Meta{}, false
	}
	english := display.English.Tags().Name(tag)
	if english == "" {
		return Meta{}, false
	}
	native := display.Self.Name(tag)
	if native == "" {
		native = english
	}
	return Meta{English: english, Native: native}, true
}
