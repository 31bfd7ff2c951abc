package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/born-ml/mtl/internal/vocab"
)

// Merged is the result of MergeAndBuild.
type Merged struct {
	VocabPath         string              // merged frequency table
	MaxDocumentLength int                 // shared by all datasets
	Datasets          map[string]*Dataset // keyed by directory base name
}

// Name returns the name a dataset directory is published under.
func Name(dataDir string) string {
	return filepath.Base(filepath.Clean(dataDir))
}

// MergeAndBuild prepares several datasets over one shared vocabulary.
//
// The first pass writes every dataset's basic vocabulary and measures its
// longest document. After all of them finish, the vocabularies are merged
// into outDir/vocab_freq.json. The second pass builds every dataset into
// outDir/<name> against the merged vocabulary with the longest document
// length of all datasets. Both passes run up to parallelism datasets at a
// time (0 means unbounded). Per-dataset settings such as the data dir,
// vocabulary dir and output dir are taken from the arguments, everything
// else from opts.
func MergeAndBuild(ctx context.Context, dataDirs []string, outDir string, opts Options, parallelism int) (*Merged, error) {
	if len(dataDirs) == 0 {
		return nil, fmt.Errorf("no dataset directories")
	}
	names := make(map[string]string, len(dataDirs))
	for _, dir := range dataDirs {
		name := Name(dir)
		if prev, dup := names[name]; dup {
			return nil, fmt.Errorf("datasets %s and %s would both be written to %s", prev, dir, filepath.Join(outDir, name))
		}
		names[name] = dir
	}
	for _, dir := range dataDirs {
		o := opts
		o.DataDir = dir
		if err := o.Validate(); err != nil {
			return nil, fmt.Errorf("dataset %s: %w", dir, err)
		}
	}

	// first pass
	lengths := make([]int, len(dataDirs))
	paths := make([]string, len(dataDirs))
	g, gctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i, dir := range dataDirs {
		g.Go(func() error {
			o := opts
			o.DataDir = dir
			o.VocabDir = ""
			o.MaxDocumentLength = 0
			o.GenerateBasicVocab = true
			d, err := Build(gctx, o)
			if err != nil {
				return err
			}
			lengths[i] = d.MaxDocumentLength
			paths[i] = o.BasicVocabPath()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	maxLen := 0
	for _, l := range lengths {
		maxLen = max(maxLen, l)
	}
	if opts.MaxDocumentLength > 0 {
		maxLen = opts.MaxDocumentLength
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	merged, err := vocab.LoadAndMerge(paths...)
	if err != nil {
		return nil, err
	}
	vocabPath := filepath.Join(outDir, vocab.BasicFreqFile)
	if err := vocab.SaveFrequencies(vocabPath, merged); err != nil {
		return nil, err
	}
	klog.Infof("merged public vocabulary of %d words saved to %s", merged.Len(), vocabPath)

	// second pass
	built := make([]*Dataset, len(dataDirs))
	g, gctx = errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i, dir := range dataDirs {
		g.Go(func() error {
			o := opts
			o.DataDir = dir
			o.VocabDir = outDir
			o.OutputDir = filepath.Join(outDir, Name(dir))
			o.MaxDocumentLength = maxLen
			o.GenerateBasicVocab = false
			o.GenerateRecords = true
			d, err := Build(gctx, o)
			if err != nil {
				return err
			}
			built[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Merged{
		VocabPath:         vocabPath,
		MaxDocumentLength: maxLen,
		Datasets:          make(map[string]*Dataset, len(dataDirs)),
	}
	for i, dir := range dataDirs {
		res.Datasets[Name(dir)] = built[i]
	}
	return res, nil
}

// Names returns the dataset names of dirs in sorted order.
func Names(dataDirs []string) []string {
	out := make([]string, len(dataDirs))
	for i, d := range dataDirs {
		out[i] = Name(d)
	}
	sort.Strings(out)
	return out
}
