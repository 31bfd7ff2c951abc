package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/born-ml/mtl/internal/record"
	"github.com/born-ml/mtl/internal/split"
	"github.com/born-ml/mtl/internal/tokenizer"
	"github.com/born-ml/mtl/internal/vocab"
)

// Split names, in write order.
const (
	Train = "train"
	Valid = "valid"
	Test  = "test"
)

// Dataset is the result of Build.
type Dataset struct {
	Options           Options
	Raw               *Raw
	Docs              []tokenizer.Cleaned
	Split             split.Index
	MaxDocumentLength int
	Vocab             *vocab.Table      // nil when only the basic vocabulary was built
	BasicVocab        *vocab.Frequencies // set on the basic-vocabulary route
	Metadata          *Metadata          // nil unless records were written
}

// Build runs the preparation pipeline for one dataset directory.
//
// Options are validated before anything is read or written. If writing
// records fails, no metadata is left in the output dir and the split files
// of this run are removed.
func Build(ctx context.Context, opts Options) (*Dataset, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", opts.DataDir, err)
	}
	tok, err := tokenizer.New(opts.Tokenizer)
	if err != nil {
		return nil, err
	}

	klog.Infof("data in %s", opts.DataDir)
	raw, err := LoadRaw(opts.DataDir, opts.TextFieldNames, opts.LabelFieldName)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", opts.DataDir, err)
	}
	klog.V(1).Infof("text fields %v, label field %s, %d rows", raw.TextFieldNames, raw.LabelFieldName, len(raw.Texts))

	d := &Dataset{Options: opts, Raw: raw, Docs: make([]tokenizer.Cleaned, len(raw.Texts))}
	for i, text := range raw.Texts {
		d.Docs[i] = tokenizer.Prepare(text, tok)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := d.computeSplit(); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", opts.DataDir, err)
	}

	d.MaxDocumentLength = opts.MaxDocumentLength
	if d.MaxDocumentLength == 0 {
		for _, doc := range d.Docs {
			d.MaxDocumentLength = max(d.MaxDocumentLength, len(doc.Tokens))
		}
		klog.Infof("max document length (computed) = %d", d.MaxDocumentLength)
	} else {
		klog.Infof("max document length (given) = %d", d.MaxDocumentLength)
	}

	if opts.GenerateBasicVocab {
		return d, d.saveBasicVocab()
	}
	if !opts.GenerateRecords {
		klog.Infof("no records requested for %s", opts.DataDir)
		return d, nil
	}

	out := opts.Output()
	if err := os.MkdirAll(out, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	// metadata of an earlier run must not describe this run's files
	if err := os.Remove(filepath.Join(out, MetadataFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove stale metadata: %w", err)
	}
	if err := d.buildVocab(out); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", opts.DataDir, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files, err := d.writeRecords(ctx, out)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", opts.DataDir, err)
	}

	d.Metadata = d.metadata(files)
	if err := d.Metadata.Save(out); err != nil {
		return nil, err
	}
	klog.Infof("data arguments saved to %s", filepath.Join(out, MetadataFile))
	return d, nil
}

func (d *Dataset) computeSplit() error {
	explicit, err := split.LoadExplicit(filepath.Join(d.Options.DataDir, split.IndexFile))
	if err != nil {
		return err
	}
	switch {
	case explicit == nil:
		klog.Infof("no split given")
	case explicit.HasValid():
		klog.Infof("train/valid/test splits given")
	default:
		klog.Infof("train/test splits given")
	}

	idx, err := split.Compute(len(d.Docs), explicit, d.Options.TrainRatio, d.Options.ValidRatio, d.Options.Seed)
	if err != nil {
		return err
	}
	tr, va, te := idx.Sizes()
	klog.Infof("train : valid : test = %d : %d : %d", tr, va, te)

	if d.Options.ScaleRatio > 0 && d.Options.ScaleRatio < 1 {
		idx = idx.Scale(d.Options.ScaleRatio, d.Options.Seed)
		tr, va, te = idx.Sizes()
		klog.Infof("scaled by %v: train : valid : test = %d : %d : %d", d.Options.ScaleRatio, tr, va, te)
	}
	d.Split = idx
	return nil
}

func (d *Dataset) trainTokens() [][]string {
	docs := make([][]string, len(d.Split.Train))
	for i, idx := range d.Split.Train {
		docs[i] = d.Docs[idx].Tokens
	}
	return docs
}

// saveBasicVocab writes the unbounded training vocabulary for later merging.
func (d *Dataset) saveBasicVocab() error {
	d.BasicVocab = vocab.Count(d.trainTokens())
	path := d.Options.BasicVocabPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create vocabulary dir: %w", err)
	}
	if err := vocab.SaveFrequencies(path, d.BasicVocab); err != nil {
		return err
	}
	klog.Infof("basic vocabulary of %d words saved to %s", d.BasicVocab.Len(), path)
	return nil
}

func (d *Dataset) buildVocab(out string) error {
	opts := d.Options
	if opts.VocabDir != "" {
		klog.Infof("public vocabulary given in %s", opts.VocabDir)
		freq, err := vocab.LoadFrequencies(filepath.Join(opts.VocabDir, vocab.BasicFreqFile))
		if err != nil {
			return err
		}
		d.Vocab = vocab.FromFrequencies(freq, opts.MinFrequency, opts.MaxFrequency)
	} else {
		klog.Infof("no vocabulary given, building one from %d training documents", len(d.Split.Train))
		d.Vocab = vocab.Build(d.trainTokens(), opts.MinFrequency, opts.MaxFrequency)
	}
	klog.Infof("used vocab size = %d", d.Vocab.Size())
	return d.Vocab.Save(out, opts.MinFrequency)
}

// Encode returns the record of document i.
func (d *Dataset) Encode(i int) (*record.Example, error) {
	doc := d.Docs[i]
	ex := &record.Example{
		Label:     d.Raw.Labels[i],
		WordIDs:   d.Vocab.Encode(doc.Tokens, d.MaxDocumentLength, d.Options.Padding),
		OldLength: int64(doc.OldLength),
		NewLength: int64(doc.NewLength),
	}
	if d.Options.Encoding == EncodingBOW {
		bow, err := record.BagOfWords(ex.WordIDs, d.Vocab.Size())
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		ex.BOW = bow
	}
	return ex, nil
}

func (d *Dataset) writeRecords(ctx context.Context, out string) (map[string]string, error) {
	ext, err := record.Extension(d.Options.Format)
	if err != nil {
		return nil, err
	}

	splits := []struct {
		name string
		idx  []int
	}{
		{Train, d.Split.Train},
		{Valid, d.Split.Valid},
		{Test, d.Split.Test},
	}

	files := make(map[string]string, len(splits))
	for _, s := range splits {
		path := filepath.Join(out, s.name+ext)
		if err := d.writeSplit(ctx, path, s.idx); err != nil {
			for _, done := range files {
				_ = os.Remove(filepath.Join(out, done))
			}
			return nil, fmt.Errorf("%s split: %w", s.name, err)
		}
		files[s.name] = filepath.Base(path)
	}
	return files, nil
}

func (d *Dataset) writeSplit(ctx context.Context, path string, idx []int) error {
	klog.V(1).Infof("writing to: %s", path)
	sink, err := record.Create(d.Options.Format, path, d.Vocab.Size())
	if err != nil {
		return err
	}

	for _, i := range idx {
		if err := ctx.Err(); err != nil {
			_ = sink.Abort()
			return err
		}
		ex, err := d.Encode(i)
		if err == nil {
			err = sink.Write(ex)
		}
		if err != nil {
			_ = sink.Abort()
			return err
		}
	}
	if err := sink.Close(); err != nil {
		return err
	}

	size := int64(0)
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}
	klog.Infof("wrote %d records to %s (%s)", sink.Count(), path, humanize.Bytes(uint64(size)))
	return nil
}

func (d *Dataset) metadata(files map[string]string) *Metadata {
	tr, va, te := d.Split.Sizes()
	return &Metadata{
		NumClasses:        d.Raw.NumClasses(),
		MaxDocumentLength: d.MaxDocumentLength,
		VocabSize:         d.Vocab.Size(),
		MinFrequency:      d.Options.MinFrequency,
		MaxFrequency:      d.Options.MaxFrequency,
		RandomSeed:        d.Options.Seed,
		TextFieldNames:    d.Raw.TextFieldNames,
		LabelFieldName:    d.Raw.LabelFieldName,
		LabelNames:        d.Raw.LabelNames,
		Encoding:          d.Options.Encoding,
		Padding:           d.Options.Padding,
		Format:            d.Options.Format,
		Tokenizer:         d.Options.Tokenizer,
		VocabDir:          d.Options.VocabDir,
		BuildID:           uuid.NewString(),
		Splits:            map[string]int{Train: tr, Valid: va, Test: te},
		Files:             files,
	}
}
