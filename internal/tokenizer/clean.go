package tokenizer

import (
	"regexp"
	"strings"
)

// LineBreak replaces every kind of line break before tokenizing. It is
// surrounded with spaces so it always ends up as a token of its own.
const LineBreak = " brbrbr "

// oldLineBreaks are the line break marks found in unprocessed datasets.
var oldLineBreaks = []string{"<br /><br />", "\n", "\r"}

// tokenPattern matches a word (letters, digits and the tweet markers # @ ' _)
// or a single punctuation rune.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_#@']+|[^\s\p{L}\p{N}_#@']`)

// Clean normalizes line breaks, lowercases the text and separates
// punctuation from words. Tokens in the result are separated by one space.
func Clean(text string) string {
	for _, lb := range oldLineBreaks {
		text = strings.ReplaceAll(text, lb, LineBreak)
	}
	text = strings.ToLower(text)

	return strings.Join(tokenPattern.FindAllString(text, -1), " ")
}
