// Package lang provides best-effort language detection for product copy.
package lang

import (
	"unicode"

	"github.com/skustudio/api/internal/model"
)

// Detect guesses the language of product copy. The heuristic mirrors
// what the copy pipeline needs: any CJK code point means Chinese, any
// Thai code point means Thai, everything else is treated as English.
func Detect(text string) model.Language {
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			return model.LanguageZH
		}
		if unicode.Is(unicode.Thai, r) {
			return model.LanguageTH
		}
	}
	return model.LanguageEN
}
