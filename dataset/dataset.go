// Package dataset prepares raw text classification datasets for training.
//
// This package wraps the internal dataset pipeline and provides a clean
// public API.
//
// Example usage:
//
//	import "github.com/born-ml/mtl/dataset"
//
//	opts := dataset.DefaultOptions("data/json/SSTb")
//	opts.MinFrequency = 1
//	d, err := dataset.Build(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(d.Vocab.Size(), d.MaxDocumentLength)
//
// Several datasets that should share parameters are prepared together:
//
//	res, err := dataset.MergeAndBuild(ctx, dirs, "data/tf/merged", opts, 4)
package dataset

import (
	"context"

	"github.com/born-ml/mtl/internal/dataset"
)

// Options configures Build.
type Options = dataset.Options

// Dataset is a prepared dataset.
type Dataset = dataset.Dataset

// Metadata is the content of args.json.
type Metadata = dataset.Metadata

// Merged is the result of MergeAndBuild.
type Merged = dataset.Merged

// Split names.
const (
	Train = dataset.Train
	Valid = dataset.Valid
	Test  = dataset.Test
)

// DefaultOptions returns the default options for dataDir.
func DefaultOptions(dataDir string) Options {
	return dataset.DefaultOptions(dataDir)
}

// Build prepares one dataset directory.
func Build(ctx context.Context, opts Options) (*Dataset, error) {
	return dataset.Build(ctx, opts)
}

// MergeAndBuild prepares several datasets over one shared vocabulary.
func MergeAndBuild(ctx context.Context, dataDirs []string, outDir string, opts Options, parallelism int) (*Merged, error) {
	return dataset.MergeAndBuild(ctx, dataDirs, outDir, opts, parallelism)
}

// LoadMetadata reads args.json from dir.
func LoadMetadata(dir string) (*Metadata, error) {
	return dataset.LoadMetadata(dir)
}
