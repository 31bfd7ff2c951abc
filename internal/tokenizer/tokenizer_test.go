package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "Hello World", want: "hello world"},
		{name: "punctuation", in: "Wait, what?!", want: "wait , what ? !"},
		{name: "html line break", in: "first<br /><br />second", want: "first brbrbr second"},
		{name: "newlines", in: "a\nb\r\nc", want: "a brbrbr b brbrbr brbrbr c"},
		{name: "tweet markers", in: "@Bob loves #Go", want: "@bob loves #go"},
		{name: "apostrophe", in: "don't", want: "don't"},
		{name: "extra spaces", in: "  many   spaces ", want: "many spaces"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestPrepare(t *testing.T) {
	doc := Prepare("hello world", NewTweet())

	assert.Equal(t, []string{"hello", "world", EOS}, doc.Tokens)
	assert.Equal(t, "hello world <EOS>", doc.Text)
	assert.Equal(t, 11, doc.OldLength)
	assert.Equal(t, 17, doc.NewLength)
}

func TestPrepare_Empty(t *testing.T) {
	doc := Prepare("", NewTweet())

	assert.Equal(t, []string{EOS}, doc.Tokens)
	assert.Equal(t, EOS, doc.Text)
	assert.Equal(t, 0, doc.OldLength)
}

func TestPrepare_Unicode(t *testing.T) {
	doc := Prepare("Größe 世界", NewTweet())

	assert.Equal(t, []string{"größe", "世界", EOS}, doc.Tokens)
	assert.Equal(t, 8, doc.OldLength)
}

func TestNew(t *testing.T) {
	tok, err := New("")
	require.NoError(t, err)
	assert.Equal(t, "tweet", tok.Name())

	tok, err = New("tweet")
	require.NoError(t, err)
	assert.Equal(t, "tweet", tok.Name())

	_, err = New("whitespace")
	assert.ErrorIs(t, err, ErrUnknownTokenizer)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(""))
	assert.True(t, Valid("tweet"))
	assert.True(t, Valid("tiktoken:cl100k_base"))
	assert.False(t, Valid("tiktoken:nope"))
	assert.False(t, Valid("bpe"))
}
