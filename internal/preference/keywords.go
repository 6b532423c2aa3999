package preference

import "strings"

// stopWords is the fixed list excluded from keyword extraction.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "he": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"that": true, "the": true, "to": true, "was": true, "will": true, "with": true,
	"this": true, "but": true, "they": true, "have": true, "had": true, "what": true,
	"when": true, "where": true, "who": true, "which": true, "why": true, "how": true,
	"or": true, "not": true, "no": true, "do": true, "does": true, "can": true,
}

// extractKeywords tokenizes a prompt by whitespace and punctuation, lowercases
// it, drops stop words, and filters by a minimum length of 3, returning the
// distinct keyword set in first-seen order.
func extractKeywords(prompt string) []string {
	lowered := strings.ToLower(prompt)
	words := strings.FieldsFunc(lowered, func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	})

	seen := make(map[string]bool, len(words))
	keywords := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) < 3 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		keywords = append(keywords, w)
	}
	return keywords
}
