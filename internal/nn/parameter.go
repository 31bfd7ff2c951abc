package nn

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Parameter is a named weight matrix.
//
// Example:
//
//	weight := ps.New("weight", 300, 128, nn.Xavier)
//	w := weight.Value()
type Parameter struct {
	name  string     // fully qualified name, e.g. "encoder_shared/embedding/weight"
	value *mat.Dense // the weights
}

// NewParameter wraps an initialized matrix.
func NewParameter(name string, value *mat.Dense) *Parameter {
	return &Parameter{
		name:  name,
		value: value,
	}
}

// Name returns the fully qualified parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Value returns the weight matrix.
func (p *Parameter) Value() *mat.Dense {
	return p.value
}

// Size returns the number of weights.
func (p *Parameter) Size() int {
	r, c := p.value.Dims()
	return r * c
}

// ParamSet owns the parameters created under one scope.
//
// Modules that share a ParamSet share weights. Two sets built from the same
// configuration hold equal-shaped but independent weights. Initialization
// is seeded from the set's seed and scope, so rebuilding a set gives the
// same values.
type ParamSet struct {
	scope  string
	rng    *rand.Rand
	params []*Parameter
	names  map[string]struct{}
}

// NewParamSet creates an empty set for scope.
func NewParamSet(scope string, seed uint64) *ParamSet {
	h := fnv.New64a()
	_, _ = h.Write([]byte(scope))

	return &ParamSet{
		scope: scope,
		rng:   rand.New(rand.NewPCG(seed, h.Sum64())),
		names: make(map[string]struct{}),
	}
}

// Scope returns the scope name.
func (s *ParamSet) Scope() string {
	return s.scope
}

// New creates, registers and returns a parameter of shape [rows, cols].
//
// Panics if name is already used in this set: that is a wiring bug.
func (s *ParamSet) New(name string, rows, cols int, init Initializer) *Parameter {
	full := s.scope + "/" + name
	if _, dup := s.names[full]; dup {
		panic(fmt.Sprintf("nn: parameter %q registered twice", full))
	}
	s.names[full] = struct{}{}

	p := NewParameter(full, init(rows, cols, s.rng))
	s.params = append(s.params, p)
	return p
}

// Rand returns the set's random source, used for dropout masks.
func (s *ParamSet) Rand() *rand.Rand {
	return s.rng
}

// Parameters returns the parameters in creation order.
func (s *ParamSet) Parameters() []*Parameter {
	out := make([]*Parameter, len(s.params))
	copy(out, s.params)
	return out
}

// NumWeights returns the total number of weights in the set.
func (s *ParamSet) NumWeights() int {
	n := 0
	for _, p := range s.params {
		n += p.Size()
	}
	return n
}
