// Package tokenizer provides the text cleaning and tokenization used to
// prepare datasets.
//
// This package wraps the internal tokenizer implementations and provides
// a clean public API.
//
// Supported tokenizers:
//   - tweet: whitespace split of cleaned text (default)
//   - tiktoken:<encoding>: OpenAI BPE pieces
//
// Example usage:
//
//	import "github.com/born-ml/mtl/tokenizer"
//
//	tok, err := tokenizer.New("tweet")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	doc := tokenizer.Prepare("Hello, world!", tok)
//	fmt.Println(doc.Tokens) // [hello , world ! <EOS>]
package tokenizer

import (
	"github.com/born-ml/mtl/internal/tokenizer"
)

// Special symbols.
const (
	EOS       = tokenizer.EOS
	BOS       = tokenizer.BOS
	OOV       = tokenizer.OOV
	PAD       = tokenizer.PAD
	LineBreak = tokenizer.LineBreak
)

// Tokenizer is the core interface for text tokenization.
type Tokenizer = tokenizer.Tokenizer

// Cleaned is a document after cleaning and tokenization.
type Cleaned = tokenizer.Cleaned

// ErrUnknownTokenizer is returned by New for names it cannot resolve.
var ErrUnknownTokenizer = tokenizer.ErrUnknownTokenizer

// New resolves a tokenizer by name ("tweet" or "tiktoken:<encoding>").
func New(name string) (Tokenizer, error) {
	return tokenizer.New(name)
}

// NewTikToken creates a BPE tokenizer for the given tiktoken encoding.
func NewTikToken(encodingName string) (Tokenizer, error) {
	tok, err := tokenizer.NewTikToken(encodingName)
	if err != nil {
		return nil, err
	}
	return tok, nil
}

// Clean normalizes line breaks, lowercases and separates punctuation.
func Clean(text string) string {
	return tokenizer.Clean(text)
}

// Prepare cleans, tokenizes and appends the EOS marker.
func Prepare(raw string, tok Tokenizer) Cleaned {
	return tokenizer.Prepare(raw, tok)
}
