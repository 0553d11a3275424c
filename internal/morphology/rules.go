package morphology

// Rules is a deterministic English inflection provider. It reduces the input
// word to its candidate base forms with suffix rules, then regenerates noun
// and verb forms from every candidate. Over-generation is deliberate: a form
// that is not a real word becomes an inert index key, while missing a form
// would break variant matching.
type Rules struct{}

func (Rules) Forms(word string) map[string][]string {
	// Words shorter than two characters carry no inflection to recover. The
	// empty string in particular must not grow "s"/"ing"/"ed" forms, which
	// are real query words.
	if len(word) < 2 {
		return map[string][]string{
			"n": {word},
			"v": {word},
		}
	}

	nouns := make([]string, 0, 8)
	verbs := make([]string, 0, 16)
	for _, base := range candidateBases(word) {
		nouns = append(nouns, nounForms(base)...)
		verbs = append(verbs, verbForms(base)...)
	}
	return map[string][]string{
		"n": dedupe(nouns),
		"v": dedupe(verbs),
	}
}

// candidateBases returns the word itself plus every plausible uninflected
// base recovered by stripping inflection suffixes.
func candidateBases(word string) []string {
	bases := []string{word}

	add := func(b string) {
		if len(b) >= 2 {
			bases = append(bases, b)
		}
	}

	switch {
	case hasSuffix(word, "ies", 5):
		add(word[:len(word)-3] + "y")
	case hasSuffix(word, "es", 4):
		add(word[:len(word)-2])
		add(word[:len(word)-1])
	case hasSuffix(word, "s", 4):
		add(word[:len(word)-1])
	}

	if hasSuffix(word, "ing", 5) {
		stem := word[:len(word)-3]
		add(stem)
		add(stem + "e")
		if isDoubledConsonant(stem) {
			add(stem[:len(stem)-1])
		}
	}

	switch {
	case hasSuffix(word, "ied", 5):
		add(word[:len(word)-3] + "y")
	case hasSuffix(word, "ed", 4):
		stem := word[:len(word)-2]
		add(stem)
		add(word[:len(word)-1])
		if isDoubledConsonant(stem) {
			add(stem[:len(stem)-1])
		}
	}

	return bases
}

// nounForms returns the singular and plural of base.
func nounForms(base string) []string {
	return []string{base, pluralize(base)}
}

// verbForms returns the base, third-person, gerund, and past forms.
func verbForms(base string) []string {
	forms := []string{base, pluralize(base)}

	switch {
	case hasSuffix(base, "ee", 2):
		forms = append(forms, base+"ing", base+"d")
	case hasSuffix(base, "e", 2):
		forms = append(forms, base[:len(base)-1]+"ing", base+"d")
	case endsConsonantY(base):
		forms = append(forms, base+"ing", base[:len(base)-1]+"ied")
	default:
		forms = append(forms, base+"ing", base+"ed")
	}
	return forms
}

// pluralize applies the regular English plural / third-person-s rules.
func pluralize(base string) string {
	switch {
	case endsConsonantY(base):
		return base[:len(base)-1] + "ies"
	case hasSuffix(base, "s", 1), hasSuffix(base, "x", 1), hasSuffix(base, "z", 1),
		hasSuffix(base, "ch", 2), hasSuffix(base, "sh", 2):
		return base + "es"
	default:
		return base + "s"
	}
}

// hasSuffix reports whether word ends in suffix and is at least minLen long.
func hasSuffix(word, suffix string, minLen int) bool {
	if len(word) < minLen || len(word) < len(suffix) {
		return false
	}
	return word[len(word)-len(suffix):] == suffix
}

// isDoubledConsonant reports whether stem ends in a doubled consonant, as in
// "runn" or "stopp".
func isDoubledConsonant(stem string) bool {
	n := len(stem)
	if n < 3 || stem[n-1] != stem[n-2] {
		return false
	}
	return !isVowel(stem[n-1])
}

func endsConsonantY(word string) bool {
	n := len(word)
	return n >= 2 && word[n-1] == 'y' && !isVowel(word[n-2])
}

func isVowel(c byte) bool {
	switch c {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

func dedupe(forms []string) []string {
	seen := make(map[string]struct{}, len(forms))
	out := forms[:0]
	for _, f := range forms {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
