package memory

import "strings"

// candidateNames extracts capitalized word runs from free text as
// candidate person names to name-match against persons.name (
// "known persons relevant to the message (name-matched)"). This is a
// cheap heuristic, not NLP — Understanding's LLM pass handles genuine
// entity extraction; Memory only needs enough signal to bound the lookup.
func candidateNames(text string) []string {
	words := strings.Fields(text)
	var names []string
	for _, w := range words {
		w = strings.Trim(w, ".,!?:;\"'()")
		if len(w) > 1 && isUpper(rune(w[0])) {
			names = append(names, w)
		}
	}
	return names
}

func isUpper(r rune) bool {
	return r >= 'A' && r <= 'Z'
}

// keywordsOf lowercases and splits text into words longer than three
// characters, used to keyword-filter CEO teachings relevant to a message.
func keywordsOf(text string) []string {
	words := strings.Fields(strings.ToLower(text))
	var out []string
	for _, w := range words {
		w = strings.Trim(w, ".,!?:;\"'()")
		if len(w) > 3 {
			out = append(out, w)
		}
	}
	return out
}
