// Package tokenizer turns raw document text into the token sequences that
// vocabularies are built from.
//
// Text goes through two steps:
//   - Clean: line breaks are normalized to a single marker, the text is
//     lowercased and punctuation is split off into its own tokens
//   - Tokenize: a Tokenizer splits the cleaned text into tokens
//
// Prepare runs both steps, appends the end-of-sequence marker and keeps the
// raw and cleaned lengths for diagnostics.
//
// Two tokenizers are available:
//   - tweet: whitespace split of the cleaned text (default)
//   - tiktoken:<encoding>: OpenAI BPE pieces (cl100k_base, p50k_base, r50k_base)
//
// Example usage:
//
//	tok, err := tokenizer.New("tweet")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	doc := tokenizer.Prepare("Hello world", tok)
//	// doc.Tokens == []string{"hello", "world", "<EOS>"}
package tokenizer
