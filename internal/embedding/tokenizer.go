package embedding

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenizer produces token IDs for BERT-style models (input_ids, attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// scanWords calls fn for each run of letters, digits or underscores in text
// until fn returns false.
func scanWords(text string, fn func(word string) bool) {
	start := -1
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if !fn(text[start:i]) {
				return
			}
			start = -1
		}
	}
	if start >= 0 {
		fn(text[start:])
	}
}

// Terms splits text into lowercase terms for the TF-IDF vocabulary: words at
// least two runes long, with English stop words removed.
func Terms(text string) []string {
	var terms []string
	scanWords(strings.ToLower(text), func(word string) bool {
		if utf8.RuneCountInString(word) < 2 {
			return true
		}
		if _, stop := englishStopWords[word]; stop {
			return true
		}
		terms = append(terms, word)
		return true
	})
	return terms
}
