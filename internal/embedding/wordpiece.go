package embedding

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	wordPieceCLS    = "[CLS]"
	wordPieceSEP    = "[SEP]"
	wordPieceUNK    = "[UNK]"
	wordPiecePrefix = "##"
	// Longer words map straight to [UNK].
	maxWordRunes = 100
)

// WordPieceTokenizer implements the uncased BERT tokenizer used by MiniLM
// sentence encoders: basic tokenization followed by greedy longest-match
// sub-word lookup in the model's vocab.txt.
type WordPieceTokenizer struct {
	vocab         map[string]int64
	cls, sep, unk int64
}

// LoadWordPieceVocab reads a vocab.txt file. The token on line n gets id n.
func LoadWordPieceVocab(path string) (map[string]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	vocab := make(map[string]int64, 32000)
	scanner := bufio.NewScanner(f)
	var id int64
	for scanner.Scan() {
		token := strings.TrimRight(scanner.Text(), "\r")
		if _, dup := vocab[token]; !dup {
			vocab[token] = id
		}
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vocabulary %s: %w", path, err)
	}
	return vocab, nil
}

// NewWordPieceTokenizer returns a tokenizer over vocab, which must contain the
// [CLS], [SEP] and [UNK] tokens.
func NewWordPieceTokenizer(vocab map[string]int64) (*WordPieceTokenizer, error) {
	t := &WordPieceTokenizer{vocab: vocab}
	for token, dst := range map[string]*int64{wordPieceCLS: &t.cls, wordPieceSEP: &t.sep, wordPieceUNK: &t.unk} {
		id, ok := vocab[token]
		if !ok {
			return nil, fmt.Errorf("vocabulary has no %s token", token)
		}
		*dst = id
	}
	return t, nil
}

// Tokenize produces [CLS] pieces... [SEP] padded with id 0 to maxTokens.
// Pieces past the budget are dropped; [SEP] is kept when there is room.
func (t *WordPieceTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0], attentionMask[0] = t.cls, 1
	pos := 1
	limit := maxTokens - 1
fill:
	for _, word := range basicTokens(text) {
		for _, id := range t.wordPieces(word) {
			if pos >= limit {
				break fill
			}
			inputIDs[pos], attentionMask[pos] = id, 1
			pos++
		}
	}
	if pos < maxTokens {
		inputIDs[pos], attentionMask[pos] = t.sep, 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// wordPieces splits one basic token by greedy longest match.
func (t *WordPieceTokenizer) wordPieces(word string) []int64 {
	runes := []rune(word)
	if len(runes) > maxWordRunes {
		return []int64{t.unk}
	}
	var ids []int64
	for start := 0; start < len(runes); {
		end := len(runes)
		found := false
		var id int64
		for ; end > start; end-- {
			piece := string(runes[start:end])
			if start > 0 {
				piece = wordPiecePrefix + piece
			}
			if id, found = t.vocab[piece]; found {
				break
			}
		}
		if !found {
			return []int64{t.unk}
		}
		ids = append(ids, id)
		start = end
	}
	return ids
}

// basicTokens lowercases text, strips accents and splits it on whitespace.
// Punctuation and CJK ideographs become tokens of their own.
func basicTokens(text string) []string {
	var (
		tokens []string
		cur    strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range norm.NFD.String(strings.ToLower(text)) {
		switch {
		case r == 0 || r == unicode.ReplacementChar || unicode.IsControl(r) && !unicode.IsSpace(r):
		case unicode.Is(unicode.Mn, r):
		case unicode.IsSpace(r):
			flush()
		case isPunct(r) || unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// isPunct treats all non-alphanumeric ASCII as punctuation, as BERT does.
func isPunct(r rune) bool {
	if r >= 33 && r <= 47 || r >= 58 && r <= 64 || r >= 91 && r <= 96 || r >= 123 && r <= 126 {
		return true
	}
	return unicode.IsPunct(r)
}
