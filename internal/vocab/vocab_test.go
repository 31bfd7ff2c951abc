package vocab

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/mtl/internal/tokenizer"
)

func freqOf(pairs ...any) *Frequencies {
	f := NewFrequencies()
	for i := 0; i < len(pairs); i += 2 {
		f.Add(pairs[i].(string), int64(pairs[i+1].(int)))
	}
	return f
}

func TestBuild_HelloWorld(t *testing.T) {
	doc := tokenizer.Prepare("hello world", tokenizer.NewTweet())
	table := Build([][]string{doc.Tokens}, 0, -1)

	assert.Equal(t, 5, table.Size(), "3 tokens plus PAD and OOV")
	for _, tok := range []string{"hello", "world", tokenizer.EOS} {
		assert.True(t, table.Contains(tok), tok)
		assert.Equal(t, int64(1), table.Count(tok), tok)
	}
	assert.True(t, table.Contains(tokenizer.OOV))

	ids := table.Encode(doc.Tokens, 0, false)
	assert.Len(t, ids, 3)
	assert.Equal(t, []int64{2, 3, 4}, ids)
}

func TestFromFrequencies_Ordering(t *testing.T) {
	freq := freqOf("b", 1, "a", 3, "c", 1, "d", 3)
	table := FromFrequencies(freq, 0, -1)

	assert.Equal(t, []string{tokenizer.PAD, tokenizer.OOV, "a", "d", "b", "c"}, table.Tokens())
}

func TestFromFrequencies_Bounds(t *testing.T) {
	freq := freqOf("rare", 1, "mid", 3, "common", 10)

	tests := []struct {
		name string
		min  int64
		max  int64
		want []string
	}{
		{name: "no bounds", min: 0, max: -1, want: []string{"common", "mid", "rare"}},
		{name: "min drops equal", min: 1, max: -1, want: []string{"common", "mid"}},
		{name: "max drops equal", min: 0, max: 10, want: []string{"mid", "rare"}},
		{name: "both", min: 1, max: 10, want: []string{"mid"}},
		{name: "zero max drops all", min: 0, max: 0, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := FromFrequencies(freq, tt.min, tt.max)
			assert.Equal(t, tt.want, table.Tokens()[numReserved:])
		})
	}
}

func TestMerge_Scenario(t *testing.T) {
	a := freqOf("the", 5, "cat", 2)
	b := freqOf("the", 3, "dog", 1)

	merged := Merge(a, b)

	assert.Equal(t, map[string]int64{"the": 8, "cat": 2, "dog": 1}, merged.Map())
	assert.Equal(t, []string{"the", "cat", "dog"}, merged.Tokens())
	assert.Equal(t, int64(5), a.Get("the"), "inputs are not mutated")
	assert.False(t, a.Has("dog"))
}

func TestMerge_CommutativeAssociative(t *testing.T) {
	a := freqOf("x", 1, "y", 2)
	b := freqOf("y", 4, "z", 7)
	c := freqOf("z", 1, "w", 9, "x", 3)

	assert.Equal(t, Merge(a, b).Map(), Merge(b, a).Map())
	assert.Equal(t, Merge(Merge(a, b), c).Map(), Merge(a, Merge(b, c)).Map())
	assert.Equal(t, Merge(Merge(a, b), c).Map(), MergeAll(a, b, c).Map())
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	docs := [][]string{
		{"the", "cat", "sat", tokenizer.EOS},
		{"the", "dog", "ran", tokenizer.EOS},
	}
	table := Build(docs, 0, -1)

	for _, doc := range docs {
		assert.Equal(t, doc, table.Decode(table.Encode(doc, 0, false)))
	}

	ids := table.Encode([]string{"the", "zebra"}, 0, false)
	assert.Equal(t, OOVID, ids[1])
	assert.Equal(t, []string{"the", tokenizer.OOV}, table.Decode(ids))
}

func TestEncode_TruncateAndPad(t *testing.T) {
	table := Build([][]string{{"a", "b", "c"}}, 0, -1)

	assert.Len(t, table.Encode([]string{"a", "b", "c"}, 2, false), 2)
	assert.Equal(t, []int64{table.ID("a"), PadID, PadID, PadID}, table.Encode([]string{"a"}, 4, true))
	assert.Len(t, table.Encode([]string{"a", "b", "c"}, 2, true), 2)
}

func TestSaveLoadTable(t *testing.T) {
	dir := t.TempDir()
	table := Build([][]string{{"a", "b", "a", "c"}}, 0, -1)

	require.NoError(t, table.Save(dir, 0))
	assert.FileExists(t, filepath.Join(dir, "vocab_freq_0.json"))
	assert.FileExists(t, filepath.Join(dir, "vocab_v2i_0.json"))
	assert.FileExists(t, filepath.Join(dir, "vocab_i2v_0.json"))

	loaded, err := LoadTable(dir, 0)
	require.NoError(t, err)
	assert.Equal(t, table.Tokens(), loaded.Tokens())
	assert.Equal(t, int64(2), loaded.Count("a"))

	_, err = LoadTable(dir, 3)
	assert.ErrorIs(t, err, ErrMissingVocab)
}

func TestSaveLoadFrequencies_KeepsOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), BasicFreqFile)
	freq := freqOf("z", 1, "a", 1, "m", 2)

	require.NoError(t, SaveFrequencies(path, freq))
	loaded, err := LoadFrequencies(path)
	require.NoError(t, err)

	assert.Equal(t, freq.Tokens(), loaded.Tokens())
	assert.Equal(t, freq.Map(), loaded.Map())
}

func TestLoadAndMerge(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "1.json")
	p2 := filepath.Join(dir, "2.json")
	require.NoError(t, SaveFrequencies(p1, freqOf("the", 5, "cat", 2)))
	require.NoError(t, SaveFrequencies(p2, freqOf("the", 3, "dog", 1)))

	merged, err := LoadAndMerge(p1, p2)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"the": 8, "cat": 2, "dog": 1}, merged.Map())
}
