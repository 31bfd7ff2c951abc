package tokenizer

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

const tiktokenPrefix = "tiktoken:"

// tiktokenVocabSizes lists the encodings New accepts.
var tiktokenVocabSizes = map[string]int{
	"cl100k_base": 100256,
	"p50k_base":   50257,
	"r50k_base":   50257,
}

// TikToken wraps the pkoukk/tiktoken-go library to split text into BPE pieces.
//
// Each token is the decoded text of one BPE id with surrounding whitespace
// removed, so vocabularies built from it stay readable.
type TikToken struct {
	encoding *tiktoken.Tiktoken
	name     string
}

// NewTikToken creates a new TikToken tokenizer with the specified encoding.
//
// Supported encodings: "cl100k_base" (GPT-4), "p50k_base" and "r50k_base" (GPT-3).
func NewTikToken(encodingName string) (*TikToken, error) {
	if _, ok := tiktokenVocabSizes[encodingName]; !ok {
		return nil, fmt.Errorf("%w: tiktoken encoding %q", ErrUnknownTokenizer, encodingName)
	}

	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %q: %w", encodingName, err)
	}

	return &TikToken{
		encoding: encoding,
		name:     encodingName,
	}, nil
}

// Tokenize splits text into BPE pieces. Pieces that are pure whitespace are dropped.
func (t *TikToken) Tokenize(text string) []string {
	ids := t.encoding.Encode(text, nil, nil)

	tokens := make([]string, 0, len(ids))
	for _, id := range ids {
		piece := strings.TrimSpace(t.encoding.Decode([]int{id}))
		if piece == "" {
			continue
		}
		tokens = append(tokens, piece)
	}
	return tokens
}

// Name returns the tokenizer name as accepted by New.
func (t *TikToken) Name() string {
	return tiktokenPrefix + t.name
}

// VocabSize returns the size of the underlying BPE vocabulary.
func (t *TikToken) VocabSize() int {
	return tiktokenVocabSizes[t.name]
}
