// Package config loads the YAML job files read by the mtl command.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/mtl/internal/dataset"
	"github.com/born-ml/mtl/internal/model"
	"github.com/born-ml/mtl/internal/record"
	"github.com/born-ml/mtl/internal/split"
	"github.com/born-ml/mtl/internal/storage"
)

// Environment variables that override the publish credentials.
const (
	EnvAccessKey = "MTL_S3_ACCESS_KEY"
	EnvSecretKey = "MTL_S3_SECRET_KEY"
)

// ErrNoDatasets is returned by Validate when a job lists no dataset.
var ErrNoDatasets = errors.New("no datasets configured")

// Publish is the upload target of prepared datasets.
type Publish struct {
	storage.S3Config `yaml:",inline"`
	Bucket           string `yaml:"bucket"`
	Prefix           string `yaml:"prefix"`
}

// Enabled reports whether a publish target is configured.
func (p Publish) Enabled() bool {
	return p.Endpoint != "" && p.Bucket != ""
}

// Check configures the loss check run over prepared datasets.
type Check struct {
	ArchitectureFile string            `yaml:"architecture_file"`
	Architecture     string            `yaml:"architecture"`
	BatchSize        int               `yaml:"batch_size"`
	LoadWeights      string            `yaml:"load_weights"` // safetensors file restored before the check
	SaveWeights      string            `yaml:"save_weights"` // safetensors file written after the check
	Model            model.Hyperparams `yaml:"model"`
}

// Prep is a dataset preparation job.
type Prep struct {
	Datasets           []string `yaml:"datasets"`
	OutputDir          string   `yaml:"output_dir"`
	VocabDir           string   `yaml:"vocab_dir"`
	MaxDocumentLength  int      `yaml:"max_document_length"`
	MinFrequency       int64    `yaml:"min_frequency"`
	MaxFrequency       int64    `yaml:"max_frequency"`
	Encoding           string   `yaml:"encoding"`
	TextFieldNames     []string `yaml:"text_field_names"`
	LabelFieldName     string   `yaml:"label_field_name"`
	TrainRatio         float64  `yaml:"train_ratio"`
	ValidRatio         float64  `yaml:"valid_ratio"`
	Seed               uint64   `yaml:"seed"`
	ScaleRatio         float64  `yaml:"scale_ratio"`
	GenerateBasicVocab bool     `yaml:"generate_basic_vocab"`
	SkipRecords        bool     `yaml:"skip_records"`
	Padding            bool     `yaml:"padding"`
	Format             string   `yaml:"format"`
	Tokenizer          string   `yaml:"tokenizer"`
	Parallelism        int      `yaml:"parallelism"`
	Publish            Publish  `yaml:"publish"`
	Check              Check    `yaml:"check"`
}

// Default returns a job with every default filled in.
func Default() *Prep {
	return &Prep{
		MaxFrequency: -1,
		TrainRatio:   split.TrainRatio,
		ValidRatio:   split.ValidRatio,
		Seed:         split.Seed,
		Format:       record.FormatTFRecord,
		Tokenizer:    "tweet",
		Parallelism:  4,
		Check: Check{
			BatchSize: 32,
			Model:     model.DefaultHyperparams(),
		},
	}
}

// Load reads a job file over the defaults and applies the credential
// environment variables.
func Load(path string) (*Prep, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a job over the defaults. Unknown keys are errors.
func Parse(data []byte) (*Prep, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides the publish credentials from the environment.
func (p *Prep) ApplyEnv() {
	if v := os.Getenv(EnvAccessKey); v != "" {
		p.Publish.AccessKey = v
	}
	if v := os.Getenv(EnvSecretKey); v != "" {
		p.Publish.SecretKey = v
	}
}

// Validate reports every problem of the job at once.
func (p *Prep) Validate() error {
	var errs *multierror.Error
	if len(p.Datasets) == 0 {
		errs = multierror.Append(errs, ErrNoDatasets)
	}
	if p.Parallelism < 1 {
		errs = multierror.Append(errs, fmt.Errorf("parallelism %d must be positive", p.Parallelism))
	}
	if p.MaxFrequency >= 0 && p.MaxFrequency <= p.MinFrequency {
		errs = multierror.Append(errs, fmt.Errorf("max frequency %d must exceed min frequency %d", p.MaxFrequency, p.MinFrequency))
	}
	if p.Publish.Endpoint != "" && p.Publish.Bucket == "" {
		errs = multierror.Append(errs, storage.ErrBucketRequired)
	}
	if p.Check.BatchSize < 1 {
		errs = multierror.Append(errs, fmt.Errorf("check batch size %d must be positive", p.Check.BatchSize))
	}

	// Per-dataset options share everything but the data dir.
	opts := p.DatasetOptions("-")
	if err := opts.Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

// DatasetOptions converts the job into build options for one dataset dir.
func (p *Prep) DatasetOptions(dir string) dataset.Options {
	opts := dataset.DefaultOptions(dir)
	opts.OutputDir = p.OutputDir
	opts.VocabDir = p.VocabDir
	opts.MaxDocumentLength = p.MaxDocumentLength
	opts.MinFrequency = p.MinFrequency
	opts.MaxFrequency = p.MaxFrequency
	opts.Encoding = p.Encoding
	opts.TextFieldNames = p.TextFieldNames
	opts.LabelFieldName = p.LabelFieldName
	opts.TrainRatio = p.TrainRatio
	opts.ValidRatio = p.ValidRatio
	opts.Seed = p.Seed
	opts.ScaleRatio = p.ScaleRatio
	opts.GenerateBasicVocab = p.GenerateBasicVocab
	opts.GenerateRecords = !p.SkipRecords
	opts.Padding = p.Padding
	opts.Format = p.Format
	opts.Tokenizer = p.Tokenizer
	return opts
}
