package tokenizer

import "strings"

const tweetName = "tweet"

// Tweet splits cleaned text on whitespace.
type Tweet struct{}

// NewTweet creates the default whitespace tokenizer.
func NewTweet() *Tweet {
	return &Tweet{}
}

// Tokenize splits text on runs of whitespace.
func (t *Tweet) Tokenize(text string) []string {
	return strings.Fields(text)
}

// Name returns "tweet".
func (t *Tweet) Name() string {
	return tweetName
}
