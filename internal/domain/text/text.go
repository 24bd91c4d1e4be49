// Package text holds the tokenizer and Unicode-safe string helpers used by indexing and ranking.
package text

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenize splits s into runs of letters and digits, lower-cased.
func Tokenize(s string) []string {
	var (
		out []string
		cur strings.Builder
	)
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(unicode.ToLower(r))
			continue
		}
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

// TermFrequency counts every token.
func TermFrequency(tokens []string) map[string]int {
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	return tf
}

// NormalizeWhitespace collapses whitespace runs to single spaces and trims the ends.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Clamp shortens s to at most maxChars runes. The cut lands on the last whitespace
// inside the budget; without whitespace it lands on the rune boundary at the budget.
// Strings within budget are returned unchanged.
func Clamp(s string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxChars {
		return s
	}

	count := 0
	lastSpace := -1
	for i, r := range s {
		if count == maxChars {
			if lastSpace > 0 {
				return s[:lastSpace]
			}
			return s[:i]
		}
		if unicode.IsSpace(r) {
			lastSpace = i
		}
		count++
	}
	return s
}
