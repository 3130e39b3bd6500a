// Package lang validates the language hint forwarded to the transcription
// API. An empty hint means auto-detect and is always valid.
package lang

import (
	"fmt"
	"strings"
)

// supported lists the ISO 639-1 codes accepted by OpenAI's transcription
// API. Not exhaustive, but covers the languages Whisper handles well.
var supported = []string{
	"af", "ar", "bg", "bn", "ca", "cs", "da", "de", "el", "en",
	"es", "et", "fa", "fi", "fr", "gu", "he", "hi", "hr", "hu",
	"id", "it", "ja", "kn", "ko", "lt", "lv", "mk", "ml", "mr",
	"ms", "nl", "no", "pa", "pl", "pt", "ro", "ru", "sk", "sl",
	"sr", "sv", "sw", "ta", "te", "th", "tl", "tr", "uk", "ur",
	"vi", "zh",
}

var supportedSet = func() map[string]bool {
	set := make(map[string]bool, len(supported))
	for _, code := range supported {
		set[code] = true
	}
	return set
}()

// Normalize lowercases a code and converts underscores to hyphens.
// Accepts: "pt-BR", "pt_BR", "PT-BR", "pt-br" -> "pt-br"
func Normalize(code string) string {
	return strings.ToLower(strings.ReplaceAll(code, "_", "-"))
}

// BaseCode extracts the ISO 639-1 base language from a locale.
// The transcription API only accepts base codes, not regional variants.
// Examples: "pt-BR" -> "pt", "zh-CN" -> "zh", "en" -> "en"
func BaseCode(code string) string {
	normalized := Normalize(code)
	if idx := strings.Index(normalized, "-"); idx != -1 {
		return normalized[:idx]
	}
	return normalized
}

// Validate checks a language hint. Empty is valid (auto-detect).
// Accepts base codes (e.g. "en", "fr") and locales (e.g. "pt-BR").
func Validate(code string) error {
	if code == "" {
		return nil
	}
	if !supportedSet[BaseCode(code)] {
		return fmt.Errorf("invalid language code %q (use ISO 639-1 codes like 'en', 'fr', 'pt-BR'): %w",
			code, ErrInvalid)
	}
	return nil
}
