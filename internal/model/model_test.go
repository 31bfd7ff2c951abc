package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/mtl/internal/encoder"
	"github.com/born-ml/mtl/internal/record"
)

const archJSON = `{
  "dan": {
    "embedders_tied": true,
    "extractors_tied": true,
    "SSTb": {"embed_fn": "embed_sequence", "embed_kwargs": {"embed_dim": 6},
             "extract_fn": "dan", "extract_kwargs": {}},
    "IMDB": {"embed_fn": "embed_sequence", "embed_kwargs": {"embed_dim": 6},
             "extract_fn": "dan", "extract_kwargs": {}}
  }
}`

func testModel(t *testing.T) *Model {
	t.Helper()
	archs, err := encoder.ParseArchitectures([]byte(archJSON))
	require.NoError(t, err)

	order := []string{"SSTb", "IMDB"}
	encoders, err := encoder.Build(encoder.DefaultRegistry(), archs["dan"], order,
		encoder.Env{VocabSize: 10, InputKey: encoder.InputTokens, Seed: 42})
	require.NoError(t, err)

	hps := DefaultHyperparams()
	hps.Datasets = order
	hps.Alphas = map[string]float64{"SSTb": 0.3, "IMDB": 0.7}
	hps.SharedHiddenDims = 5
	hps.PrivateHiddenDims = 4

	m, err := New(map[string]int{"SSTb": 5, "IMDB": 2}, order, encoders, hps)
	require.NoError(t, err)
	return m
}

func testBatch(labels ...int) Batch {
	b := Batch{Labels: labels}
	for i := range labels {
		b.Input.Tokens = append(b.Input.Tokens, []int{2 + i, 3, 4, 0})
		b.Input.Lengths = append(b.Input.Lengths, 3)
	}
	return b
}

func TestCombine(t *testing.T) {
	total, err := Combine(
		map[string]float64{"a": 0.3, "b": 0.7},
		map[string]float64{"a": 2.0, "b": 1.0},
	)
	require.NoError(t, err)
	assert.InDelta(t, 1.3, total, 1e-12)
}

func TestCombine_Errors(t *testing.T) {
	_, err := Combine(map[string]float64{"a": 0.3, "b": 0.7}, map[string]float64{"a": 2.0})
	assert.ErrorIs(t, err, ErrDatasetMismatch)

	_, err = Combine(map[string]float64{"a": 0.3, "b": 0.6}, map[string]float64{"a": 2.0, "b": 1.0})
	assert.ErrorIs(t, err, ErrWeightSum)
}

func TestCheckWeights(t *testing.T) {
	assert.NoError(t, CheckWeights(map[string]float64{"a": 0.1, "b": 0.2, "c": 0.7}))
	assert.NoError(t, CheckWeights(map[string]float64{"a": 1}))
	assert.ErrorIs(t, CheckWeights(map[string]float64{"a": 0.5}), ErrWeightSum)
}

func TestHyperparams_Validate(t *testing.T) {
	hps := DefaultHyperparams()
	hps.Datasets = []string{"a", "b"}
	hps.Alphas = map[string]float64{"a": 0.5, "c": 0.5}
	hps.InputKey = "tfidf"

	err := hps.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, encoder.ErrUnknownInputKey)
	assert.ErrorIs(t, err, ErrDatasetMismatch)
}

func TestModel_MultiTaskLoss(t *testing.T) {
	m := testModel(t)

	batches := map[string]Batch{
		"SSTb": testBatch(0, 4),
		"IMDB": testBatch(1, 0, 1),
	}
	losses, err := m.MultiTaskLoss(batches, false)
	require.NoError(t, err)

	require.Len(t, losses.PerDataset, 2)
	expected := 0.3*losses.PerDataset["SSTb"] + 0.7*losses.PerDataset["IMDB"]
	assert.InDelta(t, expected, losses.Total, 1e-12)
	for ds, l := range losses.PerDataset {
		assert.Greater(t, l, 0.0, ds)
	}

	// each dataset's loss is computed independently
	single, err := m.Loss("IMDB", batches["IMDB"], false)
	require.NoError(t, err)
	assert.InDelta(t, single, losses.PerDataset["IMDB"], 1e-12)
}

func TestModel_MultiTaskLoss_BatchMismatch(t *testing.T) {
	m := testModel(t)

	_, err := m.MultiTaskLoss(map[string]Batch{"SSTb": testBatch(0)}, false)
	assert.ErrorIs(t, err, ErrDatasetMismatch)

	_, err = m.MultiTaskLoss(map[string]Batch{
		"SSTb":    testBatch(0),
		"IMDB":    testBatch(1),
		"Twitter": testBatch(0),
	}, false)
	assert.ErrorIs(t, err, ErrDatasetMismatch)
}

func TestModel_Predict(t *testing.T) {
	m := testModel(t)

	preds, err := m.Predict("SSTb", testBatch(0, 1, 2))
	require.NoError(t, err)
	require.Len(t, preds, 3)
	for _, p := range preds {
		assert.GreaterOrEqual(t, p, 0)
		assert.Less(t, p, 5)
	}

	_, err = m.Predict("Twitter", testBatch(0))
	assert.ErrorIs(t, err, ErrUnknownDataset)

	_, err = m.Loss("IMDB", testBatch(2), false)
	assert.Error(t, err, "label 2 is outside two classes")
}

func TestNew_Errors(t *testing.T) {
	archs, err := encoder.ParseArchitectures([]byte(archJSON))
	require.NoError(t, err)
	order := []string{"SSTb", "IMDB"}
	encoders, err := encoder.Build(encoder.DefaultRegistry(), archs["dan"], order,
		encoder.Env{VocabSize: 10, InputKey: encoder.InputTokens, Seed: 42})
	require.NoError(t, err)

	hps := DefaultHyperparams()
	hps.Datasets = order
	hps.Alphas = map[string]float64{"SSTb": 0.5, "IMDB": 0.5}

	_, err = New(map[string]int{"SSTb": 5}, order, encoders, hps)
	assert.ErrorIs(t, err, ErrDatasetMismatch)

	bad := hps
	bad.InputKey = "chars"
	_, err = New(map[string]int{"SSTb": 5, "IMDB": 2}, order, encoders, bad)
	assert.ErrorIs(t, err, encoder.ErrUnknownInputKey)
}

func TestBatchFromExamples(t *testing.T) {
	examples := []record.Example{
		{Label: 1, WordIDs: []int64{4, 5, 0, 0}, BOW: []float32{0, 0, 0, 0, 1, 1}},
		{Label: 0, WordIDs: []int64{2, 3, 4, 5}, BOW: []float32{0, 0, 1, 1, 1, 1}},
	}

	b, err := BatchFromExamples(examples, encoder.InputTokens)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, b.Labels)
	assert.Equal(t, []int{2, 4}, b.Input.Lengths)
	assert.Equal(t, [][]int{{4, 5, 0, 0}, {2, 3, 4, 5}}, b.Input.Tokens)
	assert.Nil(t, b.Input.BOW)

	b, err = BatchFromExamples(examples, encoder.InputBOW)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0, 1, 1}, b.Input.BOW[0])
	assert.Equal(t, 2, b.Input.Size())

	_, err = BatchFromExamples(examples, "tfidf")
	assert.ErrorIs(t, err, encoder.ErrUnknownInputKey)

	_, err = BatchFromExamples([]record.Example{{WordIDs: []int64{1}}}, encoder.InputBOW)
	assert.Error(t, err)
}

func TestModel_NumWeightsCountsSharedOnce(t *testing.T) {
	m := testModel(t)

	size := func(enc *encoder.Encoder) int {
		n := 0
		for _, p := range enc.Parameters() {
			n += p.Size()
		}
		return n
	}
	sst, err := m.Encoder("SSTb")
	require.NoError(t, err)
	imdb, err := m.Encoder("IMDB")
	require.NoError(t, err)
	require.Same(t, sst, imdb)

	// shared mlp 6->5, private 5->4, logits 4->5 and 4->2
	heads := (6*5 + 5) + 2*(5*4+4) + (4*5 + 5) + (4*2 + 2)
	assert.Equal(t, size(sst)+heads, m.NumWeights())
}

func TestBatchFromExamples_PaddingOnlyRow(t *testing.T) {
	examples := []record.Example{
		{Label: 1, WordIDs: []int64{0, 0, 0, 0}},
		{Label: 0, WordIDs: []int64{2, 3, 0, 0}},
	}
	b, err := BatchFromExamples(examples, encoder.InputTokens)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, b.Input.Lengths)

	// a zero length reduces over the whole row
	m := testModel(t)
	loss, err := m.Loss("IMDB", b, false)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(loss))
	assert.Greater(t, loss, 0.0)
}
