package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/mtl/internal/config"
	"github.com/born-ml/mtl/internal/dataset"
	"github.com/born-ml/mtl/internal/model"
)

const archYAML = `
shared_dan:
  embedders_tied: true
  extractors_tied: true
  apparel:
    embed_fn: embed_sequence
    embed_kwargs: {embed_dim: 8}
    extract_fn: dan
    extract_kwargs: {reducer: reduce_max_over_time}
  books:
    embed_fn: embed_sequence
    embed_kwargs: {embed_dim: 8}
    extract_fn: dan
    extract_kwargs: {reducer: reduce_max_over_time}
`

func writeDataset(t *testing.T, root, name string, texts []string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	rows := make([]map[string]any, 12)
	for i := range rows {
		rows[i] = map[string]any{"text": texts[i%len(texts)], "label": i % 2}
	}
	f, err := os.Create(filepath.Join(dir, dataset.DataFile))
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	require.NoError(t, json.NewEncoder(zw).Encode(rows))
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return dir
}

func TestRunCheck(t *testing.T) {
	root := t.TempDir()
	dirs := []string{
		writeDataset(t, root, "apparel", []string{"Fits well, great fabric.", "Shrunk after one wash."}),
		writeDataset(t, root, "books", []string{"A gripping read.", "Dull and far too long!"}),
	}
	out := filepath.Join(root, "merged")
	opts := dataset.DefaultOptions("")
	opts.Padding = true
	_, err := dataset.MergeAndBuild(context.Background(), dirs, out, opts, 2)
	require.NoError(t, err)

	archFile := filepath.Join(root, "archs.yaml")
	require.NoError(t, os.WriteFile(archFile, []byte(archYAML), 0o644))

	chk := config.Default().Check
	chk.ArchitectureFile = archFile
	chk.Architecture = "shared_dan"
	chk.BatchSize = 4

	res, err := runCheck(chk, []string{filepath.Join(out, "books"), filepath.Join(out, "apparel")})
	require.NoError(t, err)

	assert.Equal(t, []string{"apparel", "books"}, res.Datasets)
	for _, ds := range res.Datasets {
		assert.Greater(t, res.Losses.PerDataset[ds], 0.0, ds)
	}
	want, err := model.Combine(map[string]float64{"apparel": 0.5, "books": 0.5}, res.Losses.PerDataset)
	require.NoError(t, err)
	assert.InDelta(t, want, res.Losses.Total, 1e-12)
	assert.Positive(t, res.Params)

	// saved weights restore to the same losses under another seed
	chk.SaveWeights = filepath.Join(root, "weights.safetensors")
	_, err = runCheck(chk, []string{filepath.Join(out, "apparel"), filepath.Join(out, "books")})
	require.NoError(t, err)

	reseeded := chk
	reseeded.SaveWeights = ""
	reseeded.Model.Seed = 7
	other, err := runCheck(reseeded, []string{filepath.Join(out, "apparel"), filepath.Join(out, "books")})
	require.NoError(t, err)
	assert.NotEqual(t, res.Losses.Total, other.Losses.Total)

	reseeded.LoadWeights = chk.SaveWeights
	restored, err := runCheck(reseeded, []string{filepath.Join(out, "apparel"), filepath.Join(out, "books")})
	require.NoError(t, err)
	assert.InDelta(t, res.Losses.Total, restored.Losses.Total, 1e-12)
}

func TestRunCheck_UnknownArchitecture(t *testing.T) {
	archFile := filepath.Join(t.TempDir(), "archs.yaml")
	require.NoError(t, os.WriteFile(archFile, []byte(archYAML), 0o644))

	chk := config.Default().Check
	chk.ArchitectureFile = archFile
	chk.Architecture = "missing"
	_, err := runCheck(chk, []string{t.TempDir()})
	require.Error(t, err)
}

func TestLoadJobOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte("datasets: [a]\nmin_frequency: 2\nformat: parquet\n"), 0o644))

	cfg, err := loadJob(jobFlags{Config: path, MinFrequency: -1, MaxFrequency: -2, Format: "tfrecord", Padding: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), cfg.MinFrequency, "negative flag keeps the file value")
	assert.Equal(t, int64(-1), cfg.MaxFrequency)
	assert.Equal(t, "tfrecord", cfg.Format)
	assert.True(t, cfg.Padding)

	cfg, err = loadJob(jobFlags{MinFrequency: 0, MaxFrequency: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(0), cfg.MinFrequency)
	assert.Equal(t, int64(50), cfg.MaxFrequency)
}
