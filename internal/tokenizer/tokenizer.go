package tokenizer

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Special symbols shared by every vocabulary.
const (
	EOS = "<EOS>" // end of sequence
	BOS = "<BOS>" // beginning of sequence
	OOV = "<UNK>" // out of vocabulary
	PAD = "<PAD>" // padding
)

// ErrUnknownTokenizer is returned by New for names it cannot resolve.
var ErrUnknownTokenizer = errors.New("unknown tokenizer")

// Tokenizer splits cleaned text into tokens.
//
// All tokenizer implementations (tweet, tiktoken) must implement this interface.
type Tokenizer interface {
	// Tokenize splits text into tokens. The text has already been cleaned.
	Tokenize(text string) []string

	// Name returns the name the tokenizer was resolved from.
	Name() string
}

// Cleaned is a document after cleaning and tokenization.
type Cleaned struct {
	Text      string   // cleaned text including the trailing EOS marker
	Tokens    []string // tokens of Text
	OldLength int      // rune count of the raw text
	NewLength int      // rune count of Text
}

// New resolves a tokenizer by name.
//
// Supported names: "tweet" (also the empty string) and "tiktoken:<encoding>".
func New(name string) (Tokenizer, error) {
	switch {
	case name == "" || name == tweetName:
		return NewTweet(), nil
	case strings.HasPrefix(name, tiktokenPrefix):
		tok, err := NewTikToken(strings.TrimPrefix(name, tiktokenPrefix))
		if err != nil {
			return nil, err
		}
		return tok, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTokenizer, name)
	}
}

// Valid reports whether New would accept name without loading anything.
func Valid(name string) bool {
	if name == "" || name == tweetName {
		return true
	}
	if enc, ok := strings.CutPrefix(name, tiktokenPrefix); ok {
		_, known := tiktokenVocabSizes[enc]
		return known
	}
	return false
}

// Prepare cleans raw text, tokenizes it and appends the EOS marker.
func Prepare(raw string, tok Tokenizer) Cleaned {
	text := Clean(raw)
	tokens := tok.Tokenize(text)
	tokens = append(tokens, EOS)
	if text == "" {
		text = EOS
	} else {
		text += " " + EOS
	}

	return Cleaned{
		Text:      text,
		Tokens:    tokens,
		OldLength: utf8.RuneCountInString(raw),
		NewLength: utf8.RuneCountInString(text),
	}
}
