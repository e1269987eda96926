// Package languages holds the closed table of supported language codes and their
// speech-locale and display-name mappings shared by the speech and translation services.
package languages

import (
	"strings"

	"golang.org/x/text/language"
)

// Code is a short application language identifier such as "en" or "es".
type Code string

// Supported language codes, in table order.
const (
	English    Code = "en"
	Spanish    Code = "es"
	French     Code = "fr"
	German     Code = "de"
	Italian    Code = "it"
	Portuguese Code = "pt"
	Russian    Code = "ru"
	Japanese   Code = "ja"
	Korean     Code = "ko"
	Chinese    Code = "zh"
)

// Defaults used when a code is not in the table.
const (
	DefaultCode         = English
	DefaultSpeechLocale = "en-US"
	DefaultDisplayName  = "English"
)

type entry struct {
	code   Code
	locale string
	name   string
}

var table = []entry{
	{English, "en-US", "English"},
	{Spanish, "es-ES", "Spanish"},
	{French, "fr-FR", "French"},
	{German, "de-DE", "German"},
	{Italian, "it-IT", "Italian"},
	{Portuguese, "pt-PT", "Portuguese"},
	{Russian, "ru-RU", "Russian"},
	{Japanese, "ja-JP", "Japanese"},
	{Korean, "ko-KR", "Korean"},
	{Chinese, "zh-CN", "Chinese"},
}

var byCode = func() map[Code]entry {
	m := make(map[Code]entry, len(table))
	for _, e := range table {
		m[e.code] = e
	}
	return m
}()

// Supported returns the supported codes in table order.
func Supported() []Code {
	codes := make([]Code, len(table))
	for i, e := range table {
		codes[i] = e.code
	}
	return codes
}

// IsSupported reports whether code is one of the ten supported codes.
func IsSupported(code string) bool {
	_, ok := byCode[Code(code)]
	return ok
}

// SpeechLocale maps a language code to its platform speech-locale tag, "en-US" for unknown codes.
func SpeechLocale(code string) string {
	if e, ok := byCode[Code(code)]; ok {
		return e.locale
	}
	return DefaultSpeechLocale
}

// DisplayName maps a language code to its English display name, "English" for unknown codes.
func DisplayName(code string) string {
	if e, ok := byCode[Code(code)]; ok {
		return e.name
	}
	return DefaultDisplayName
}

// PrimarySubtag returns the primary language subtag of a locale tag ("en-US" -> "en").
func PrimarySubtag(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	if t, err := language.Parse(tag); err == nil {
		if base, conf := t.Base(); conf != language.No {
			return base.String()
		}
	}
	if i := strings.IndexAny(tag, "-_"); i >= 0 {
		return strings.ToLower(tag[:i])
	}
	return strings.ToLower(tag)
}
