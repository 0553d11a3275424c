// Package tokenizer provides word normalization for the index engine.
// Document words are lower-cased and lose a single trailing punctuation
// character; query words are only lower-cased, so they match index keys
// exactly as stored.
package tokenizer

import "strings"

// Normalize lower-cases word and strips one trailing ',', '!' or '.'.
func Normalize(word string) string {
	word = strings.ToLower(word)
	if n := len(word); n > 0 {
		switch word[n-1] {
		case ',', '!', '.':
			word = word[:n-1]
		}
	}
	return word
}

// DocumentWords returns the set of normalized literal words across all
// field values of a document. Field names are not tokenized.
func DocumentWords(fields map[string]string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, value := range fields {
		for _, w := range strings.Fields(value) {
			words[Normalize(w)] = struct{}{}
		}
	}
	return words
}

// QueryWords returns the lower-cased whitespace tokens of a query, in order.
// Punctuation is kept: a query word matches only if it is itself an index key.
func QueryWords(text string) []string {
	fields := strings.Fields(text)
	words := make([]string, len(fields))
	for i, w := range fields {
		words[i] = strings.ToLower(w)
	}
	return words
}
