package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"k8s.io/klog/v2"

	"github.com/born-ml/mtl/internal/config"
	"github.com/born-ml/mtl/internal/dataset"
	"github.com/born-ml/mtl/internal/encoder"
	"github.com/born-ml/mtl/internal/model"
	"github.com/born-ml/mtl/internal/record"
	"github.com/born-ml/mtl/internal/serialization"
)

// checkResult is the loss of the first train batch of every dataset.
type checkResult struct {
	Datasets []string
	Losses   model.Losses
	Params   int
}

// runCheck builds the configured architecture over prepared dataset dirs
// and computes one evaluation step of the multi-task loss.
func runCheck(cfg config.Check, dirs []string) (*checkResult, error) {
	archs, err := encoder.LoadArchitectures(cfg.ArchitectureFile)
	if err != nil {
		return nil, err
	}
	arch, err := encoder.Lookup(archs, cfg.Architecture)
	if err != nil {
		return nil, err
	}

	hps := cfg.Model
	names := make([]string, 0, len(dirs))
	metas := make(map[string]*dataset.Metadata, len(dirs))
	byName := make(map[string]string, len(dirs))
	for _, dir := range dirs {
		name := dataset.Name(dir)
		if _, dup := byName[name]; dup {
			return nil, fmt.Errorf("dataset %s given twice", name)
		}
		meta, err := dataset.LoadMetadata(dir)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", name, err)
		}
		names = append(names, name)
		metas[name] = meta
		byName[name] = dir
	}
	sort.Strings(names)

	if len(hps.Datasets) == 0 {
		hps.Datasets = names
	}
	if len(hps.Alphas) == 0 {
		hps.Alphas = make(map[string]float64, len(names))
		for _, ds := range names {
			hps.Alphas[ds] = 1 / float64(len(names))
		}
	}
	if err := hps.Validate(); err != nil {
		return nil, err
	}

	env := encoder.Env{InputKey: hps.InputKey, Seed: hps.Seed}
	classSizes := make(map[string]int, len(names))
	batches := make(map[string]model.Batch, len(names))
	for _, ds := range names {
		meta := metas[ds]
		env.VocabSize = max(env.VocabSize, meta.VocabSize)
		classSizes[ds] = meta.NumClasses

		b, err := loadBatch(byName[ds], meta, cfg.BatchSize, hps.InputKey)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", ds, err)
		}
		batches[ds] = b
	}

	encoders, err := encoder.Build(encoder.DefaultRegistry(), arch, names, env)
	if err != nil {
		return nil, err
	}
	m, err := model.New(classSizes, names, encoders, hps)
	if err != nil {
		return nil, err
	}
	if cfg.LoadWeights != "" {
		ckpt, err := serialization.ReadParameters(cfg.LoadWeights)
		if err != nil {
			return nil, err
		}
		if arch := ckpt.Metadata["architecture"]; arch != "" && arch != cfg.Architecture {
			klog.Warningf("weights in %s were saved for architecture %s", cfg.LoadWeights, arch)
		}
		if err := ckpt.Restore(m.Parameters()); err != nil {
			return nil, fmt.Errorf("restore %s: %w", cfg.LoadWeights, err)
		}
	}

	losses, err := m.MultiTaskLoss(batches, false)
	if err != nil {
		return nil, err
	}

	if cfg.SaveWeights != "" {
		meta := map[string]string{
			"architecture": cfg.Architecture,
			"datasets":     strings.Join(names, ","),
		}
		if err := serialization.WriteParameters(cfg.SaveWeights, m.Parameters(), meta); err != nil {
			return nil, err
		}
		klog.Infof("saved %d parameters to %s", len(m.Parameters()), cfg.SaveWeights)
	}

	return &checkResult{Datasets: names, Losses: losses, Params: m.NumWeights()}, nil
}

func loadBatch(dir string, meta *dataset.Metadata, size int, inputKey string) (model.Batch, error) {
	if meta.Format != "" && meta.Format != record.FormatTFRecord {
		return model.Batch{}, fmt.Errorf("%w: check reads %s records only, got %q", record.ErrUnknownFormat, record.FormatTFRecord, meta.Format)
	}
	file, ok := meta.Files[dataset.Train]
	if !ok {
		return model.Batch{}, fmt.Errorf("no %s records listed in %s", dataset.Train, dataset.MetadataFile)
	}
	examples, err := record.ReadAll(filepath.Join(dir, file))
	if err != nil {
		return model.Batch{}, err
	}
	if len(examples) == 0 {
		return model.Batch{}, fmt.Errorf("%w: empty %s split", dataset.ErrNoData, dataset.Train)
	}
	if len(examples) > size {
		examples = examples[:size]
	}

	batch := make([]record.Example, len(examples))
	for i, e := range examples {
		batch[i] = *e
	}
	return model.BatchFromExamples(batch, inputKey)
}
