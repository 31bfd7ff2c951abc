package dataset

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/mtl/internal/record"
	"github.com/born-ml/mtl/internal/split"
	"github.com/born-ml/mtl/internal/tokenizer"
	"github.com/born-ml/mtl/internal/vocab"
)

func writeGzipJSON(t *testing.T, path string, v any) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	require.NoError(t, json.NewEncoder(zw).Encode(v))
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

type row map[string]any

func makeDataset(t *testing.T, rows []row) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "SSTb")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	writeGzipJSON(t, filepath.Join(dir, DataFile), rows)
	return dir
}

func sentimentRows(n int) []row {
	texts := []string{
		"The movie was great!",
		"Terrible acting, terrible plot.",
		"I loved it.",
		"Not worth the ticket.",
		"A great cast and a great story.",
	}
	rows := make([]row, n)
	for i := range rows {
		rows[i] = row{"text": texts[i%len(texts)], "label": i % 2}
	}
	return rows
}

func TestBuild_HelloWorld(t *testing.T) {
	dir := makeDataset(t, []row{{"text": "hello world", "label": 0}})
	writeGzipJSON(t, filepath.Join(dir, split.IndexFile), map[string][]int{
		"train": {0}, "valid": {}, "test": {},
	})

	d, err := Build(context.Background(), DefaultOptions(dir))
	require.NoError(t, err)

	table := d.Vocab
	assert.Equal(t, 5, table.Size(), "pad, oov and three tokens")
	for _, tok := range []string{"hello", "world", tokenizer.EOS} {
		assert.Equal(t, int64(1), table.Count(tok), tok)
	}

	ex, err := d.Encode(0)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 4}, ex.WordIDs)
	assert.Equal(t, []string{"hello", "world", tokenizer.EOS}, table.Decode(ex.WordIDs))
	assert.Equal(t, int64(len("hello world")), ex.OldLength)
	assert.Equal(t, int64(len("hello world <EOS>")), ex.NewLength)
}

func TestBuild_RandomSplitRecords(t *testing.T) {
	dir := makeDataset(t, sentimentRows(20))
	opts := DefaultOptions(dir)
	opts.Encoding = EncodingBOW
	opts.Padding = true

	d, err := Build(context.Background(), opts)
	require.NoError(t, err)

	tr, va, te := d.Split.Sizes()
	assert.Equal(t, []int{16, 2, 2}, []int{tr, va, te})

	out := opts.Output()
	for name, n := range map[string]int{Train: 16, Valid: 2, Test: 2} {
		examples, err := record.ReadAll(filepath.Join(out, name+".tf"))
		require.NoError(t, err, name)
		require.Len(t, examples, n, name)
		for _, ex := range examples {
			assert.Len(t, ex.WordIDs, d.MaxDocumentLength)
			assert.Len(t, ex.BOW, d.Vocab.Size())
		}
	}

	meta, err := LoadMetadata(out)
	require.NoError(t, err)
	assert.Equal(t, 2, meta.NumClasses)
	assert.Equal(t, d.Vocab.Size(), meta.VocabSize)
	assert.Equal(t, d.MaxDocumentLength, meta.MaxDocumentLength)
	assert.Equal(t, int64(-1), meta.MaxFrequency)
	assert.Equal(t, uint64(42), meta.RandomSeed)
	assert.Equal(t, []string{"text"}, meta.TextFieldNames)
	assert.NotEmpty(t, meta.BuildID)
	assert.Equal(t, "train.tf", meta.Files[Train])

	// the id tables are persisted and reload to the same vocabulary
	reloaded, err := vocab.LoadTable(out, 0)
	require.NoError(t, err)
	assert.Equal(t, d.Vocab.Tokens(), reloaded.Tokens())

	// same seed, same split
	again, err := Build(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, d.Split, again.Split)
}

func TestBuild_ColumnsAndFieldFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "news")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	writeGzipJSON(t, filepath.Join(dir, DataFile), map[string]map[string]any{
		"title":  {"0": "Stocks rise", "1": "Team wins", "2": "Rain expected", "10": "Markets fall"},
		"body":   {"0": "Markets up.", "1": "A big win.", "2": "Bring umbrellas.", "10": "Down again."},
		"topic":  {"0": "business", "1": "sport", "2": "weather", "10": "business"},
		"unused": {"0": 1, "1": 2, "2": 3, "10": 4},
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, TextFieldNamesFile), []byte("title body\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, LabelFieldNameFile), []byte("topic\n"), 0o600))

	raw, err := LoadRaw(dir, nil, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "body"}, raw.TextFieldNames)
	assert.Equal(t, "topic", raw.LabelFieldName)
	assert.Equal(t, "Stocks rise Markets up.", raw.Texts[0])
	assert.Equal(t, "Markets fall Down again.", raw.Texts[3], "rows follow numeric order")
	assert.Equal(t, []string{"business", "sport", "weather"}, raw.LabelNames)
	assert.Equal(t, []int64{0, 1, 2, 0}, raw.Labels)
	assert.Equal(t, 3, raw.NumClasses())

	// explicit names win over the files
	raw, err = LoadRaw(dir, []string{"body"}, "topic")
	require.NoError(t, err)
	assert.Equal(t, "Markets up.", raw.Texts[0])

	_, err = LoadRaw(dir, []string{"summary"}, "")
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestLoadRaw_Labels(t *testing.T) {
	dir := makeDataset(t, []row{{"text": "a", "label": 0}, {"text": "b", "label": 3}})
	raw, err := LoadRaw(dir, nil, "")
	require.NoError(t, err)
	assert.Equal(t, 4, raw.NumClasses(), "integer labels index classes directly")

	dir = makeDataset(t, []row{{"text": "a", "label": 0}, {"text": "b", "label": "pos"}})
	_, err = LoadRaw(dir, nil, "")
	assert.ErrorIs(t, err, ErrMixedLabels)

	dir = makeDataset(t, []row{})
	_, err = LoadRaw(dir, nil, "")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestBuild_BasicVocabStopsEarly(t *testing.T) {
	dir := makeDataset(t, sentimentRows(10))
	opts := DefaultOptions(dir)
	opts.GenerateBasicVocab = true

	d, err := Build(context.Background(), opts)
	require.NoError(t, err)
	assert.Nil(t, d.Vocab)
	assert.Nil(t, d.Metadata)

	freq, err := vocab.LoadFrequencies(opts.BasicVocabPath())
	require.NoError(t, err)
	assert.Equal(t, d.BasicVocab.Map(), freq.Map())

	_, err = os.Stat(filepath.Join(opts.Output(), "train.tf"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(opts.Output(), MetadataFile))
	assert.True(t, os.IsNotExist(err))
}

func TestBuild_InvalidOptions(t *testing.T) {
	dir := makeDataset(t, sentimentRows(5))
	opts := DefaultOptions(dir)
	opts.Encoding = "tfidf"
	opts.Format = "csv"
	opts.Tokenizer = "spacy"
	opts.TrainRatio = 1.5

	_, err := Build(context.Background(), opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownEncoding)
	assert.ErrorIs(t, err, record.ErrUnknownFormat)
	assert.ErrorIs(t, err, tokenizer.ErrUnknownTokenizer)
	assert.ErrorIs(t, err, split.ErrBadRatio)

	_, statErr := os.Stat(opts.Output())
	assert.True(t, os.IsNotExist(statErr), "nothing may be written")
}

func TestBuild_ExternalVocab(t *testing.T) {
	dir := makeDataset(t, sentimentRows(10))
	shared := t.TempDir()
	freq := vocab.NewFrequencies()
	freq.Add("great", 5)
	freq.Add(tokenizer.EOS, 5)
	freq.Add("rare", 1)
	require.NoError(t, vocab.SaveFrequencies(filepath.Join(shared, vocab.BasicFreqFile), freq))

	opts := DefaultOptions(dir)
	opts.VocabDir = shared
	opts.MinFrequency = 1

	d, err := Build(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 4, d.Vocab.Size(), "rare is trimmed")
	assert.False(t, d.Vocab.Contains("movie"))

	ex, err := d.Encode(0) // "the movie was great ! <EOS>"
	require.NoError(t, err)
	assert.Equal(t, []int64{vocab.OOVID, vocab.OOVID, vocab.OOVID, d.Vocab.ID("great"), vocab.OOVID, d.Vocab.ID(tokenizer.EOS)}, ex.WordIDs)
}

func TestBuild_FailedSplitLeavesNoMetadata(t *testing.T) {
	dir := makeDataset(t, sentimentRows(20))
	opts := DefaultOptions(dir)
	_, err := Build(context.Background(), opts)
	require.NoError(t, err)

	out := opts.Output()
	require.FileExists(t, filepath.Join(out, MetadataFile))

	// a directory in place of valid.tf makes the valid split fail to publish
	valid := filepath.Join(out, Valid+".tf")
	require.NoError(t, os.Remove(valid))
	require.NoError(t, os.MkdirAll(filepath.Join(valid, "keep"), 0o755))

	_, err = Build(context.Background(), opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid split")
	assert.NoFileExists(t, filepath.Join(out, MetadataFile))
	assert.NoFileExists(t, filepath.Join(out, Train+".tf"))
}

func TestMergeAndBuild(t *testing.T) {
	root := t.TempDir()
	dirs := []string{filepath.Join(root, "SSTb"), filepath.Join(root, "IMDB")}
	require.NoError(t, os.MkdirAll(dirs[0], 0o755))
	require.NoError(t, os.MkdirAll(dirs[1], 0o755))
	writeGzipJSON(t, filepath.Join(dirs[0], DataFile), sentimentRows(10))
	longest := "an unexpectedly long and winding review that goes on and on"
	writeGzipJSON(t, filepath.Join(dirs[1], DataFile), []row{
		{"text": longest, "label": 1},
		{"text": "short", "label": 0},
		{"text": "fine", "label": 1},
		{"text": "meh", "label": 0},
		{"text": "great", "label": 1},
	})

	out := filepath.Join(root, "merged")
	res, err := MergeAndBuild(context.Background(), dirs, out, DefaultOptions(""), 2)
	require.NoError(t, err)

	// merged table is the sum of the basic tables
	a, err := vocab.LoadFrequencies(filepath.Join(dirs[0], SingleDir, vocab.BasicFreqFile))
	require.NoError(t, err)
	b, err := vocab.LoadFrequencies(filepath.Join(dirs[1], SingleDir, vocab.BasicFreqFile))
	require.NoError(t, err)
	merged, err := vocab.LoadFrequencies(res.VocabPath)
	require.NoError(t, err)
	assert.Equal(t, vocab.Merge(a, b).Map(), merged.Map())

	sst, imdb := res.Datasets["SSTb"], res.Datasets["IMDB"]
	require.NotNil(t, sst)
	require.NotNil(t, imdb)
	assert.Equal(t, sst.Vocab.Tokens(), imdb.Vocab.Tokens(), "one shared id space")
	assert.Equal(t, res.MaxDocumentLength, sst.MaxDocumentLength)
	assert.Equal(t, res.MaxDocumentLength, imdb.MaxDocumentLength)
	want := len(tokenizer.Prepare(longest, tokenizer.NewTweet()).Tokens)
	assert.Equal(t, 12, want, "eleven words plus EOS")
	assert.Equal(t, want, res.MaxDocumentLength, "longest IMDB review")

	for _, name := range []string{"SSTb", "IMDB"} {
		meta, err := LoadMetadata(filepath.Join(out, name))
		require.NoError(t, err, name)
		assert.Equal(t, sst.Vocab.Size(), meta.VocabSize)
	}
}

func TestMergeAndBuild_DuplicateNames(t *testing.T) {
	root := t.TempDir()
	_, err := MergeAndBuild(context.Background(),
		[]string{filepath.Join(root, "a", "SSTb"), filepath.Join(root, "b", "SSTb")},
		filepath.Join(root, "out"), DefaultOptions(""), 0)
	assert.Error(t, err)
}
