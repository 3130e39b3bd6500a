package reformat

import (
	"unicode/utf8"
)

// sliceBytes splits text into contiguous slices of at most budget bytes.
// The budget is a byte length, not a character count, so downstream request
// payloads stay bounded for multi-byte scripts too. Cuts land on UTF-8 rune
// boundaries and prefer whitespace when one exists in the back half of the
// slice. Concatenating the returned slices yields exactly the input.
func sliceBytes(text string, budget int) []string {
	if budget <= 0 || len(text) <= budget {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	var slices []string
	for len(text) > budget {
		cut := budget

		// Back off to a rune boundary.
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}

		// Prefer a whitespace cut in the back half, so words stay intact.
		if ws := lastSpace(text[:cut]); ws > cut/2 {
			cut = ws + 1 // keep the space with the leading slice
		}

		if cut == 0 {
			cut = budget // pathological input, cut mid-rune rather than loop
		}
		slices = append(slices, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		slices = append(slices, text)
	}
	return slices
}

// lastSpace returns the index of the last ASCII space or newline in s, or -1.
func lastSpace(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ' ' || s[i] == '\n' || s[i] == '\t' {
			return i
		}
	}
	return -1
}
