// Package morphology generates grammatical variants of normalized words.
// The index engine treats variant generation as an injected capability: it
// only iterates all form strings returned for a word, never interpreting the
// category keys.
package morphology

// Provider produces the derived word forms for a normalized word, grouped by
// grammatical category (e.g. "n" for noun forms, "v" for verb forms).
// Implementations always return a result; a word with no known derivations
// maps to itself.
type Provider interface {
	Forms(word string) map[string][]string
}

// Nop returns only the input word. It disables morphological expansion
// without changing the engine's code path.
type Nop struct{}

func (Nop) Forms(word string) map[string][]string {
	return map[string][]string{"base": {word}}
}

// Static serves variants from a fixed table and is intended for tests.
// Words absent from the table map to themselves.
type Static struct {
	Table map[string]map[string][]string
}

func (s Static) Forms(word string) map[string][]string {
	if forms, ok := s.Table[word]; ok {
		return forms
	}
	return map[string][]string{"base": {word}}
}

// FromName returns the provider registered under the given config name.
func FromName(name string) Provider {
	switch name {
	case "off":
		return Nop{}
	default:
		return Rules{}
	}
}
