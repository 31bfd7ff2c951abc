package dataset

import (
	"fmt"
	"path/filepath"

	"github.com/hashicorp/go-multierror"

	"github.com/born-ml/mtl/internal/record"
	"github.com/born-ml/mtl/internal/split"
	"github.com/born-ml/mtl/internal/tokenizer"
	"github.com/born-ml/mtl/internal/vocab"
)

// EncodingBOW adds a bag-of-words vector to every record.
const EncodingBOW = "bow"

// SingleDir is the per-dataset directory for the basic vocabulary and the
// default output location.
const SingleDir = "single"

// Options configures Build.
type Options struct {
	DataDir            string   // holds data.json.gz
	VocabDir           string   // shared vocabulary dir; empty builds a private one
	OutputDir          string   // records, id tables and metadata; default DataDir/single
	MaxDocumentLength  int      // 0 computes it from the data
	MinFrequency       int64    // tokens with count <= MinFrequency are dropped
	MaxFrequency       int64    // tokens with count >= MaxFrequency are dropped; -1 disables
	Encoding           string   // "" or "bow"
	TextFieldNames     []string // nil reads text_field_names or uses "text"
	LabelFieldName     string   // empty reads label_field_name or uses "label"
	TrainRatio         float64
	ValidRatio         float64
	Seed               uint64
	ScaleRatio         float64 // keep this fraction of every split; 0 keeps all
	GenerateBasicVocab bool    // write single/vocab_freq.json and stop
	GenerateRecords    bool    // write record files
	Padding            bool    // pad word ids to MaxDocumentLength
	Format             string  // tfrecord or parquet
	Tokenizer          string  // tweet or tiktoken:<encoding>
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions(dataDir string) Options {
	return Options{
		DataDir:         dataDir,
		MaxFrequency:    -1,
		TrainRatio:      split.TrainRatio,
		ValidRatio:      split.ValidRatio,
		Seed:            split.Seed,
		GenerateRecords: true,
		Format:          record.FormatTFRecord,
		Tokenizer:       "tweet",
	}
}

// Output returns the directory Build writes to.
func (o Options) Output() string {
	if o.OutputDir != "" {
		return o.OutputDir
	}
	return filepath.Join(o.DataDir, SingleDir)
}

// BasicVocabPath returns where the basic vocabulary of the dataset lives.
func (o Options) BasicVocabPath() string {
	return filepath.Join(o.DataDir, SingleDir, vocab.BasicFreqFile)
}

// Validate reports every invalid option at once.
func (o Options) Validate() error {
	var errs *multierror.Error
	if o.DataDir == "" {
		errs = multierror.Append(errs, fmt.Errorf("data dir is required"))
	}
	if o.TrainRatio <= 0 || o.TrainRatio > 1 {
		errs = multierror.Append(errs, fmt.Errorf("%w: train ratio %v", split.ErrBadRatio, o.TrainRatio))
	}
	if o.ValidRatio < 0 || o.ValidRatio >= 1 {
		errs = multierror.Append(errs, fmt.Errorf("%w: valid ratio %v", split.ErrBadRatio, o.ValidRatio))
	}
	if o.TrainRatio+o.ValidRatio > 1 {
		errs = multierror.Append(errs, fmt.Errorf("%w: train+valid ratio %v exceeds 1", split.ErrBadRatio, o.TrainRatio+o.ValidRatio))
	}
	if o.ScaleRatio < 0 || o.ScaleRatio > 1 {
		errs = multierror.Append(errs, fmt.Errorf("scale ratio %v not in [0,1]", o.ScaleRatio))
	}
	if o.MinFrequency < 0 {
		errs = multierror.Append(errs, fmt.Errorf("min frequency %d is negative", o.MinFrequency))
	}
	if o.MaxDocumentLength < 0 {
		errs = multierror.Append(errs, fmt.Errorf("max document length %d is negative", o.MaxDocumentLength))
	}
	if o.Encoding != "" && o.Encoding != EncodingBOW {
		errs = multierror.Append(errs, fmt.Errorf("%w: %q", ErrUnknownEncoding, o.Encoding))
	}
	if _, err := record.Extension(o.Format); err != nil {
		errs = multierror.Append(errs, err)
	}
	if !tokenizer.Valid(o.Tokenizer) {
		errs = multierror.Append(errs, fmt.Errorf("%w: %q", tokenizer.ErrUnknownTokenizer, o.Tokenizer))
	}
	return errs.ErrorOrNil()
}
