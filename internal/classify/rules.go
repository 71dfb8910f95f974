// Package classify turns normalized message text into typed intents and
// partial records using ordered keyword tables.
//
// Every table in this package is an ordered slice: the first entry that
// matches wins, so precedence is the order entries are written in.
package classify

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Rule pairs a keyword set with the tag it yields. Keywords match anywhere
// in the text; Words match only as whole words, with an optional plural "s".
type Rule[T ~string] struct {
	Tag      T
	Keywords []string
	Words    []string
}

// RuleTable is an ordered list of rules evaluated top to bottom.
type RuleTable[T ~string] []Rule[T]

// Match returns the tag of the first rule with a keyword or word in text.
// Matching is case-insensitive.
func (t RuleTable[T]) Match(text string) (T, bool) {
	lower := strings.ToLower(text)
	for _, rule := range t {
		if containsAny(lower, rule.Keywords) || containsWord(lower, rule.Words) {
			return rule.Tag, true
		}
	}
	var zero T
	return zero, false
}

func containsAny(lower string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// containsWord reports whether any of words occurs in lower delimited by
// non-word characters. "jco" matches "jco" and "jcos" but not "ajco".
func containsWord(lower string, words []string) bool {
	for _, w := range words {
		for from := 0; from < len(lower); {
			i := strings.Index(lower[from:], w)
			if i < 0 {
				break
			}
			start := from + i
			end := start + len(w)
			if end < len(lower) && lower[end] == 's' {
				end++
			}
			before, _ := utf8.DecodeLastRuneInString(lower[:start])
			after, _ := utf8.DecodeRuneInString(lower[end:])
			if (start == 0 || !isWordRune(before)) && (end == len(lower) || !isWordRune(after)) {
				return true
			}
			from = start + 1
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
