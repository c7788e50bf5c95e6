package analysis

import (
	"strings"
	"unicode"
)

// stopWords is the fixed set of tokens discarded during keyword extraction.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {},
	"if": {}, "of": {}, "at": {}, "by": {}, "for": {}, "with": {},
	"about": {}, "to": {}, "from": {}, "in": {}, "on": {}, "is": {},
	"are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "it": {},
	"its": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"i": {}, "you": {}, "he": {}, "she": {}, "we": {}, "they": {},
	"do": {}, "does": {}, "did": {}, "not": {}, "no": {}, "yes": {},
	"so": {}, "as": {}, "what": {}, "when": {}, "where": {}, "why": {},
	"how": {}, "all": {}, "just": {}, "like": {}, "very": {},
}

// tokenize splits text on whitespace and punctuation, lowercasing the result.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// extractKeywords tokenizes text and discards stop words and
// single-character tokens. The returned set preserves no order.
func extractKeywords(text string) map[string]struct{} {
	keywords := make(map[string]struct{})
	for _, tok := range tokenize(text) {
		if len(tok) < 2 {
			continue
		}
		if _, skip := stopWords[tok]; skip {
			continue
		}
		keywords[tok] = struct{}{}
	}
	return keywords
}
