// Package transcript normalizes final recognizer output per spec §6: filler
// token removal and a punctuation-only filter. Both are intentionally
// trivial, as the spec notes, but idempotent and stable under whitespace.
package transcript

import "strings"

// fillers are removed when surrounded by whitespace or at a string
// boundary. Order doesn't matter; each is matched as a whole token.
var fillers = []string{
	"えっと", "あの", "ええと", "ええ", "えー", "えーと", "あのー", "っと", "っとー",
}

// punctuationOnly is the set of characters that, alone, do not constitute
// a meaningful transcript.
const punctuationOnly = "、。と"

// Clean removes filler tokens, collapses whitespace runs, and returns ""
// when the result is empty or composed solely of punctuation-only
// characters. Clean is idempotent: Clean(Clean(x)) == Clean(x).
func Clean(text string) string {
	tokens := strings.Fields(text)
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if isFiller(tok) {
			continue
		}
		kept = append(kept, tok)
	}
	collapsed := strings.TrimSpace(strings.Join(kept, " "))
	if collapsed == "" {
		return ""
	}
	if isPunctuationOnly(collapsed) {
		return ""
	}
	return collapsed
}

func isFiller(token string) bool {
	for _, f := range fillers {
		if token == f {
			return true
		}
	}
	return false
}

// isPunctuationOnly reports whether text (after trimming leading/trailing
// whitespace) consists solely of characters in punctuationOnly.
func isPunctuationOnly(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}
	for _, r := range trimmed {
		if !strings.ContainsRune(punctuationOnly, r) {
			return false
		}
	}
	return true
}
