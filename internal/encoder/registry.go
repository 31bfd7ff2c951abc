package encoder

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/mtl/internal/nn"
)

// Input keys understood by the embedders.
const (
	InputTokens = "tokens"
	InputBOW    = "bow"
)

// ErrUnknownFunction is returned for embedder or extractor names missing
// from the registry.
var ErrUnknownFunction = errors.New("unknown function")

// ErrUnknownInputKey is returned for input keys other than tokens and bow.
var ErrUnknownInputKey = errors.New("unrecognized input key")

// ValidInputKey reports whether key names a supported input.
func ValidInputKey(key string) bool {
	return key == InputTokens || key == InputBOW
}

// Input is one batch as seen by an encoder.
type Input struct {
	Tokens  [][]int     // token ids per example
	Lengths []int       // unpadded lengths per example
	BOW     [][]float64 // bag-of-words vectors per example
}

// Size returns the number of examples in the batch.
func (in Input) Size() int {
	if len(in.Tokens) > 0 {
		return len(in.Tokens)
	}
	return len(in.BOW)
}

// Embedder turns a batch into one [time, dim] matrix per example.
type Embedder interface {
	Embed(in Input) ([]*mat.Dense, error)
	OutputDim() int
	Parameters() []*nn.Parameter
}

// Extractor pools embedded sequences into a [batch, dim] matrix.
type Extractor interface {
	Extract(seqs []*mat.Dense, lengths []int, training bool) (*mat.Dense, error)
	OutputDim(inDim int) int
	Parameters() []*nn.Parameter
}

// Env carries what constructors need besides their kwargs.
type Env struct {
	VocabSize int
	InputKey  string
	Seed      uint64
}

// EmbedderFactory constructs an embedder whose weights live in ps.
type EmbedderFactory func(ps *nn.ParamSet, env Env, kwargs map[string]any) (Embedder, error)

// ExtractorFactory constructs an extractor reading inputs of width inDim.
type ExtractorFactory func(ps *nn.ParamSet, inDim int, kwargs map[string]any) (Extractor, error)

// Registry maps function names to constructors.
type Registry struct {
	mu         sync.RWMutex
	embedders  map[string]EmbedderFactory
	extractors map[string]ExtractorFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		embedders:  make(map[string]EmbedderFactory),
		extractors: make(map[string]ExtractorFactory),
	}
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// DefaultRegistry returns the registry holding the built-in functions:
// embedders embed_sequence and no_op, extractors dan, cnn and no_op.
func DefaultRegistry() *Registry {
	defaultOnce.Do(func() {
		r := NewRegistry()
		r.RegisterEmbedder("embed_sequence", newEmbedSequence)
		r.RegisterEmbedder("no_op", newNoOpEmbedder)
		r.RegisterExtractor("dan", newDAN)
		r.RegisterExtractor("cnn", newCNN)
		r.RegisterExtractor("no_op", newNoOpExtractor)
		defaultRegistry = r
	})
	return defaultRegistry
}

// RegisterEmbedder adds or replaces an embedder constructor.
func (r *Registry) RegisterEmbedder(name string, f EmbedderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embedders[name] = f
}

// RegisterExtractor adds or replaces an extractor constructor.
func (r *Registry) RegisterExtractor(name string, f ExtractorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[name] = f
}

// Embedder resolves an embedder constructor.
func (r *Registry) Embedder(name string) (EmbedderFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.embedders[name]
	if !ok {
		return nil, fmt.Errorf("%w: embedder %q (have %v)", ErrUnknownFunction, name, keys(r.embedders))
	}
	return f, nil
}

// Extractor resolves an extractor constructor.
func (r *Registry) Extractor(name string) (ExtractorFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.extractors[name]
	if !ok {
		return nil, fmt.Errorf("%w: extractor %q (have %v)", ErrUnknownFunction, name, keys(r.extractors))
	}
	return f, nil
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// decodeKwargs fills out from kwargs. Unknown keys are errors; strings are
// converted to numbers and booleans where needed.
func decodeKwargs(kwargs map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(kwargs)
}
