package encoder

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/mtl/internal/nn"
)

type embedSequenceArgs struct {
	EmbedDim int `mapstructure:"embed_dim"`
}

// embedSequence looks every token up in a learned table.
type embedSequence struct {
	table *nn.Embedding
}

func newEmbedSequence(ps *nn.ParamSet, env Env, kwargs map[string]any) (Embedder, error) {
	args := embedSequenceArgs{EmbedDim: 128}
	if err := decodeKwargs(kwargs, &args); err != nil {
		return nil, fmt.Errorf("embed_sequence: %w", err)
	}
	if env.InputKey != InputTokens {
		return nil, fmt.Errorf("embed_sequence: needs input %q, got %q", InputTokens, env.InputKey)
	}
	if env.VocabSize <= 0 || args.EmbedDim <= 0 {
		return nil, fmt.Errorf("embed_sequence: vocab size %d and embed_dim %d must be positive", env.VocabSize, args.EmbedDim)
	}
	return &embedSequence{table: nn.NewEmbedding(ps, "embedding", env.VocabSize, args.EmbedDim)}, nil
}

func (e *embedSequence) Embed(in Input) ([]*mat.Dense, error) {
	seqs := make([]*mat.Dense, len(in.Tokens))
	for i, ids := range in.Tokens {
		seq, err := e.table.Lookup(ids)
		if err != nil {
			return nil, fmt.Errorf("example %d: %w", i, err)
		}
		seqs[i] = seq
	}
	return seqs, nil
}

func (e *embedSequence) OutputDim() int              { return e.table.EmbedDim }
func (e *embedSequence) Parameters() []*nn.Parameter { return e.table.Parameters() }

// noOpEmbedder passes the raw input through: a bag-of-words vector becomes
// a single time step, token ids become a one-column sequence.
type noOpEmbedder struct {
	key string
	dim int
}

func newNoOpEmbedder(_ *nn.ParamSet, env Env, kwargs map[string]any) (Embedder, error) {
	if err := decodeKwargs(kwargs, &struct{}{}); err != nil {
		return nil, fmt.Errorf("no_op: %w", err)
	}
	dim := 1
	if env.InputKey == InputBOW {
		dim = env.VocabSize
	}
	return &noOpEmbedder{key: env.InputKey, dim: dim}, nil
}

func (e *noOpEmbedder) Embed(in Input) ([]*mat.Dense, error) {
	if e.key == InputBOW {
		seqs := make([]*mat.Dense, len(in.BOW))
		for i, bow := range in.BOW {
			if len(bow) != e.dim {
				return nil, fmt.Errorf("example %d: bag of words has %d entries, want %d", i, len(bow), e.dim)
			}
			seqs[i] = mat.NewDense(1, e.dim, append([]float64(nil), bow...))
		}
		return seqs, nil
	}

	seqs := make([]*mat.Dense, len(in.Tokens))
	for i, ids := range in.Tokens {
		if len(ids) == 0 {
			return nil, fmt.Errorf("example %d: empty sequence", i)
		}
		data := make([]float64, len(ids))
		for j, id := range ids {
			data[j] = float64(id)
		}
		seqs[i] = mat.NewDense(len(ids), 1, data)
	}
	return seqs, nil
}

func (e *noOpEmbedder) OutputDim() int            { return e.dim }
func (*noOpEmbedder) Parameters() []*nn.Parameter { return nil }

type danArgs struct {
	WordDropoutRate float64  `mapstructure:"word_dropout_rate"`
	Reducer         string   `mapstructure:"reducer"`
	ApplyActivation bool     `mapstructure:"apply_activation"`
	NumLayers       int      `mapstructure:"num_layers"`
	ActivationFns   []string `mapstructure:"activation_fns"`
}

func newDAN(ps *nn.ParamSet, inDim int, kwargs map[string]any) (Extractor, error) {
	args := danArgs{Reducer: "reduce_mean_over_time"}
	if err := decodeKwargs(kwargs, &args); err != nil {
		return nil, fmt.Errorf("dan: %w", err)
	}
	acts := make([]nn.ActivationFunc, len(args.ActivationFns))
	for i, name := range args.ActivationFns {
		fn, err := nn.ActivationByName(name)
		if err != nil {
			return nil, fmt.Errorf("dan: %w", err)
		}
		acts[i] = fn
	}
	d, err := nn.NewDAN(ps, "dan", inDim, nn.DANConfig{
		WordDropoutRate: args.WordDropoutRate,
		Reducer:         args.Reducer,
		ApplyActivation: args.ApplyActivation,
		NumLayers:       args.NumLayers,
		Activations:     acts,
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

type cnnArgs struct {
	NumFilter    int    `mapstructure:"num_filter"`
	MaxWidth     int    `mapstructure:"max_width"`
	ActivationFn string `mapstructure:"activation_fn"`
	Reducer      string `mapstructure:"reducer"`
}

func newCNN(ps *nn.ParamSet, inDim int, kwargs map[string]any) (Extractor, error) {
	args := cnnArgs{NumFilter: 128, MaxWidth: 7, ActivationFn: "relu", Reducer: "reduce_max_over_time"}
	if err := decodeKwargs(kwargs, &args); err != nil {
		return nil, fmt.Errorf("cnn: %w", err)
	}
	act, err := nn.ActivationByName(args.ActivationFn)
	if err != nil {
		return nil, fmt.Errorf("cnn: %w", err)
	}
	c, err := nn.NewConvAndPool(ps, "cnn", inDim, nn.ConvConfig{
		NumFilter:  args.NumFilter,
		MaxWidth:   args.MaxWidth,
		Activation: act,
		Reducer:    args.Reducer,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// noOpExtractor returns single-step sequences as rows.
type noOpExtractor struct{}

func newNoOpExtractor(_ *nn.ParamSet, _ int, kwargs map[string]any) (Extractor, error) {
	if err := decodeKwargs(kwargs, &struct{}{}); err != nil {
		return nil, fmt.Errorf("no_op: %w", err)
	}
	return noOpExtractor{}, nil
}

func (noOpExtractor) Extract(seqs []*mat.Dense, _ []int, _ bool) (*mat.Dense, error) {
	if len(seqs) == 0 {
		return nil, nn.ErrEmptyBatch
	}
	_, dim := seqs[0].Dims()
	out := mat.NewDense(len(seqs), dim, nil)
	for i, seq := range seqs {
		t, d := seq.Dims()
		if t != 1 || d != dim {
			return nil, fmt.Errorf("no_op extractor: example %d has shape [%d %d], want [1 %d]", i, t, d, dim)
		}
		out.SetRow(i, seq.RawRowView(0))
	}
	return out, nil
}

func (noOpExtractor) OutputDim(inDim int) int     { return inDim }
func (noOpExtractor) Parameters() []*nn.Parameter { return nil }
