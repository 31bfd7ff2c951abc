// Package main provides the mtl command: dataset preparation, loss checks,
// submission rewriting and publishing for multi-task text classification.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"

	"github.com/alexflint/go-arg"
	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"

	"github.com/born-ml/mtl/internal/config"
	"github.com/born-ml/mtl/internal/dataset"
	"github.com/born-ml/mtl/internal/storage"
	"github.com/born-ml/mtl/internal/submission"
)

const version = "v0.1.0-dev"

// jobFlags override values of the job file.
type jobFlags struct {
	Config            string `arg:"-c,--config" help:"YAML job file"`
	VocabDir          string `arg:"--vocab-dir" help:"directory of a shared vocabulary"`
	MaxDocumentLength int    `arg:"--max-document-length" help:"truncate or pad documents to this many tokens"`
	MinFrequency      int64  `arg:"--min-frequency" default:"-1" help:"drop tokens seen at most this often"`
	MaxFrequency      int64  `arg:"--max-frequency" default:"-2" help:"drop tokens seen at least this often (-1 disables)"`
	Encoding          string `arg:"--encoding" help:"\"bow\" adds bag-of-words features"`
	Format            string `arg:"--format" help:"tfrecord or parquet"`
	Tokenizer         string `arg:"--tokenizer" help:"tweet or tiktoken:<encoding>"`
	Padding           bool   `arg:"--padding" help:"pad word ids to the max document length"`
	Seed              uint64 `arg:"--seed" help:"split seed"`
}

type prepCmd struct {
	jobFlags
	DataDirs   []string `arg:"positional" help:"dataset directories holding data.json.gz"`
	OutputDir  string   `arg:"-o,--output-dir" help:"default <data dir>/single"`
	BasicVocab bool     `arg:"--basic-vocab" help:"only write single/vocab_freq.json"`
	NoRecords  bool     `arg:"--no-records" help:"stop after the split"`
}

type mergeCmd struct {
	jobFlags
	DataDirs    []string `arg:"positional" help:"dataset directories holding data.json.gz"`
	OutputDir   string   `arg:"-o,--output-dir" help:"receives the merged vocabulary and one dir per dataset"`
	Parallelism int      `arg:"-j,--parallelism" help:"datasets prepared at once"`
	Publish     bool     `arg:"--publish" help:"upload the output dir to the configured bucket"`
}

type checkCmd struct {
	Config       string   `arg:"-c,--config,required" help:"YAML job file with a check section"`
	Architecture string   `arg:"-a,--architecture" help:"architecture name, overrides the job file"`
	BatchSize    int      `arg:"-b,--batch-size" help:"examples per dataset"`
	Load         string   `arg:"--load" help:"restore weights from a safetensors file"`
	Save         string   `arg:"--save" help:"write the weights to a safetensors file"`
	Dirs         []string `arg:"positional,required" help:"prepared dataset directories"`
}

type rewriteCmd struct {
	Root        string   `arg:"--root,required" help:"prediction root"`
	Subdirs     []string `arg:"--subdir,separate" help:"prediction subdirectory, repeatable"`
	Selection   string   `arg:"--selection,required" help:"file of DOMAIN ENCODER THRESHOLD lines"`
	Exclude     string   `arg:"--exclude" help:"file of document ids to drop"`
	OutputDir   string   `arg:"-o,--output-dir,required"`
	Temperature float64  `arg:"-t,--temperature" default:"1"`
	Archive     bool     `arg:"--archive" help:"also write the submission archive"`
}

type publishCmd struct {
	Config   string `arg:"-c,--config" help:"YAML job file with a publish section"`
	Dir      string `arg:"positional,required" help:"directory to upload"`
	Endpoint string `arg:"--endpoint"`
	Bucket   string `arg:"--bucket"`
	Prefix   string `arg:"--prefix"`
}

type versionCmd struct{}

type args struct {
	Prep      *prepCmd    `arg:"subcommand:prep" help:"prepare datasets with private vocabularies"`
	Merge     *mergeCmd   `arg:"subcommand:merge" help:"prepare datasets over a merged vocabulary"`
	Check     *checkCmd   `arg:"subcommand:check" help:"compute the multi-task loss of one batch"`
	Rewrite   *rewriteCmd `arg:"subcommand:rewrite" help:"turn prediction scores into a submission"`
	Publish   *publishCmd `arg:"subcommand:publish" help:"upload a prepared directory to S3"`
	Version   *versionCmd `arg:"subcommand:version" help:"show version"`
	Verbosity int         `arg:"-v,--verbosity" help:"log verbosity"`
}

func main() {
	var a args
	p := arg.MustParse(&a)
	if p.Subcommand() == nil {
		p.Fail("missing subcommand")
	}

	initLogging(a.Verbosity)
	defer klog.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, &a); err != nil {
		klog.Errorf("%v", err)
		klog.Flush()
		os.Exit(1)
	}
}

func initLogging(verbosity int) {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	_ = fs.Set("logtostderr", "true")
	_ = fs.Set("v", strconv.Itoa(verbosity))
}

func run(ctx context.Context, a *args) error {
	switch {
	case a.Prep != nil:
		return prep(ctx, a.Prep)
	case a.Merge != nil:
		return merge(ctx, a.Merge)
	case a.Check != nil:
		return check(a.Check)
	case a.Rewrite != nil:
		return rewrite(a.Rewrite)
	case a.Publish != nil:
		return publish(ctx, a.Publish)
	case a.Version != nil:
		fmt.Printf("mtl %s\n", version)
		return nil
	}
	return errors.New("missing subcommand")
}

// loadJob reads the job file, or the defaults when none is given, and
// applies the command line overrides.
func loadJob(f jobFlags) (*config.Prep, error) {
	cfg := config.Default()
	if f.Config != "" {
		var err error
		if cfg, err = config.Load(f.Config); err != nil {
			return nil, err
		}
	} else {
		cfg.ApplyEnv()
	}

	if f.VocabDir != "" {
		cfg.VocabDir = f.VocabDir
	}
	if f.MaxDocumentLength > 0 {
		cfg.MaxDocumentLength = f.MaxDocumentLength
	}
	if f.MinFrequency >= 0 {
		cfg.MinFrequency = f.MinFrequency
	}
	if f.MaxFrequency >= -1 {
		cfg.MaxFrequency = f.MaxFrequency
	}
	if f.Encoding != "" {
		cfg.Encoding = f.Encoding
	}
	if f.Format != "" {
		cfg.Format = f.Format
	}
	if f.Tokenizer != "" {
		cfg.Tokenizer = f.Tokenizer
	}
	if f.Padding {
		cfg.Padding = true
	}
	if f.Seed != 0 {
		cfg.Seed = f.Seed
	}
	return cfg, nil
}

func prep(ctx context.Context, c *prepCmd) error {
	cfg, err := loadJob(c.jobFlags)
	if err != nil {
		return err
	}
	if len(c.DataDirs) > 0 {
		cfg.Datasets = c.DataDirs
	}
	if c.OutputDir != "" {
		cfg.OutputDir = c.OutputDir
	}
	cfg.GenerateBasicVocab = cfg.GenerateBasicVocab || c.BasicVocab
	cfg.SkipRecords = cfg.SkipRecords || c.NoRecords
	if cfg.OutputDir != "" && len(cfg.Datasets) > 1 {
		return fmt.Errorf("an output dir takes a single dataset, got %d", len(cfg.Datasets))
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	for _, dir := range cfg.Datasets {
		d, err := dataset.Build(ctx, cfg.DatasetOptions(dir))
		if err != nil {
			return fmt.Errorf("dataset %s: %w", dir, err)
		}
		if d.Metadata != nil {
			klog.Infof("dataset %s: %d classes, vocabulary %d, max length %d",
				dataset.Name(dir), d.Metadata.NumClasses, d.Metadata.VocabSize, d.Metadata.MaxDocumentLength)
		}
	}
	return nil
}

func merge(ctx context.Context, c *mergeCmd) error {
	cfg, err := loadJob(c.jobFlags)
	if err != nil {
		return err
	}
	if len(c.DataDirs) > 0 {
		cfg.Datasets = c.DataDirs
	}
	if c.OutputDir != "" {
		cfg.OutputDir = c.OutputDir
	}
	if c.Parallelism > 0 {
		cfg.Parallelism = c.Parallelism
	}
	if cfg.OutputDir == "" {
		return errors.New("merge needs an output dir")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	merged, err := dataset.MergeAndBuild(ctx, cfg.Datasets, cfg.OutputDir, cfg.DatasetOptions(""), cfg.Parallelism)
	if err != nil {
		return err
	}
	for _, name := range dataset.Names(cfg.Datasets) {
		if md := merged.Datasets[name].Metadata; md != nil {
			klog.Infof("dataset %s: %d classes, splits %v", name, md.NumClasses, md.Splits)
		}
	}
	klog.Infof("merged %d datasets, vocabulary at %s, max length %d",
		len(merged.Datasets), merged.VocabPath, merged.MaxDocumentLength)

	if !c.Publish {
		return nil
	}
	return upload(ctx, cfg.Publish, cfg.OutputDir)
}

func check(c *checkCmd) error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	chk := cfg.Check
	if c.Architecture != "" {
		chk.Architecture = c.Architecture
	}
	if c.BatchSize > 0 {
		chk.BatchSize = c.BatchSize
	}
	if c.Load != "" {
		chk.LoadWeights = c.Load
	}
	if c.Save != "" {
		chk.SaveWeights = c.Save
	}

	res, err := runCheck(chk, c.Dirs)
	if err != nil {
		return err
	}
	for _, ds := range res.Datasets {
		fmt.Printf("%s\t%.6f\n", ds, res.Losses.PerDataset[ds])
	}
	fmt.Printf("weighted\t%.6f\n", res.Losses.Total)
	klog.Infof("architecture %s: %s weights", chk.Architecture, humanize.Comma(int64(res.Params)))
	return nil
}

func rewrite(c *rewriteCmd) error {
	sels, err := submission.LoadSelection(c.Selection)
	if err != nil {
		return err
	}
	var exclude []string
	if c.Exclude != "" {
		if exclude, err = submission.LoadExclude(c.Exclude); err != nil {
			return err
		}
	}

	report, err := submission.Rewrite(submission.Config{
		Root:        c.Root,
		Subdirs:     c.Subdirs,
		Selections:  sels,
		Exclude:     exclude,
		OutDir:      c.OutputDir,
		Temperature: c.Temperature,
		Archive:     c.Archive,
	})
	if err != nil {
		return err
	}

	domains := make([]string, 0, len(report.Total))
	for d := range report.Total {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	for _, d := range domains {
		fmt.Printf("%s\t%d/%d\n", d, report.Positives[d], report.Total[d])
	}
	return nil
}

func publish(ctx context.Context, c *publishCmd) error {
	cfg := config.Default()
	if c.Config != "" {
		var err error
		if cfg, err = config.Load(c.Config); err != nil {
			return err
		}
	} else {
		cfg.ApplyEnv()
	}
	target := cfg.Publish
	if c.Endpoint != "" {
		target.Endpoint = c.Endpoint
	}
	if c.Bucket != "" {
		target.Bucket = c.Bucket
	}
	if c.Prefix != "" {
		target.Prefix = c.Prefix
	}
	return upload(ctx, target, c.Dir)
}

func upload(ctx context.Context, target config.Publish, dir string) error {
	if !target.Enabled() {
		return fmt.Errorf("publish needs an endpoint and a bucket")
	}
	store, err := storage.NewS3Store(target.S3Config)
	if err != nil {
		return err
	}
	res, err := storage.PublishDir(ctx, store, target.Bucket, target.Prefix, dir)
	if err != nil {
		return err
	}
	klog.Infof("published %d objects (%s) to s3://%s/%s",
		len(res.Keys), humanize.Bytes(uint64(res.Bytes)), target.Bucket, target.Prefix)
	return nil
}
