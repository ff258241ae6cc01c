package embedding

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"
)

const (
	clsTokenID = 101
	sepTokenID = 102
	unkTokenID = 100

	// DefaultMaxSequence is the sequence length MiniLM was trained with.
	DefaultMaxSequence = 128
)

// WordPiece is a BERT-style tokenizer loaded from a HuggingFace tokenizer.json.
type WordPiece struct {
	vocab map[string]int
}

// LoadWordPiece reads the vocabulary from tokenizer.json.
func LoadWordPiece(path string) (*WordPiece, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tokenizer: %w", err)
	}
	return ParseWordPiece(data)
}

// ParseWordPiece parses tokenizer.json content.
func ParseWordPiece(data []byte) (*WordPiece, error) {
	var doc struct {
		Model struct {
			Vocab map[string]int `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse tokenizer: %w", err)
	}
	if len(doc.Model.Vocab) == 0 {
		return nil, fmt.Errorf("tokenizer has an empty vocabulary")
	}
	return &WordPiece{vocab: doc.Model.Vocab}, nil
}

// Tokenize lowercases text, splits punctuation into its own tokens and
// applies greedy longest-prefix WordPiece.
func (w *WordPiece) Tokenize(text string) []int64 {
	var ids []int64
	for _, word := range splitBasic(strings.ToLower(text)) {
		if id, ok := w.vocab[word]; ok {
			ids = append(ids, int64(id))
			continue
		}
		ids = append(ids, w.wordPiece(word)...)
	}
	return ids
}

// Encode produces input_ids, attention_mask and token_type_ids padded to
// maxLen, wrapped in [CLS] ... [SEP].
func (w *WordPiece) Encode(text string, maxLen int) (ids, mask, types []int64) {
	if maxLen < 2 {
		maxLen = DefaultMaxSequence
	}
	ids = make([]int64, maxLen)
	mask = make([]int64, maxLen)
	types = make([]int64, maxLen)

	tokens := w.Tokenize(text)
	if len(tokens) > maxLen-2 {
		tokens = tokens[:maxLen-2]
	}

	ids[0], mask[0] = clsTokenID, 1
	for i, t := range tokens {
		ids[i+1], mask[i+1] = t, 1
	}
	end := len(tokens) + 1
	ids[end], mask[end] = sepTokenID, 1

	return ids, mask, types
}

func (w *WordPiece) wordPiece(word string) []int64 {
	var out []int64
	runes := []rune(word)
	start := 0
	for start < len(runes) {
		end := len(runes)
		found := -1
		for end > start {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := w.vocab[piece]; ok {
				found = id
				break
			}
			end--
		}
		if found < 0 {
			// BERT maps the whole word to [UNK] when any piece is unknown.
			return []int64{unkTokenID}
		}
		out = append(out, int64(found))
		start = end
	}
	return out
}

func splitBasic(text string) []string {
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			words = append(words, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}
