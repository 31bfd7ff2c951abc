package nn

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrUnknownActivation is returned for activation names that are not registered.
var ErrUnknownActivation = errors.New("unknown activation")

// ActivationFunc is an element-wise non-linearity.
type ActivationFunc func(float64) float64

// Sigmoid is 1 / (1 + e^-x).
func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// ReLU is max(0, x).
func ReLU(x float64) float64 {
	return math.Max(0, x)
}

var activations = map[string]ActivationFunc{
	"relu":    ReLU,
	"tanh":    math.Tanh,
	"sigmoid": Sigmoid,
	"elu": func(x float64) float64 {
		if x > 0 {
			return x
		}
		return math.Exp(x) - 1
	},
}

// ActivationByName resolves an activation. "", "none" and "linear" mean no
// activation and return nil.
func ActivationByName(name string) (ActivationFunc, error) {
	switch name {
	case "", "none", "linear":
		return nil, nil
	}
	fn, ok := activations[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownActivation, name)
	}
	return fn, nil
}

// Activation applies an ActivationFunc element-wise.
type Activation struct {
	fn ActivationFunc
}

// NewActivation wraps fn. A nil fn is the identity.
func NewActivation(fn ActivationFunc) *Activation {
	return &Activation{fn: fn}
}

// Forward applies the activation to every element.
func (a *Activation) Forward(input *mat.Dense) *mat.Dense {
	if a.fn == nil {
		return input
	}
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 { return a.fn(v) }, input)
	return &out
}

// Parameters returns nil: activations have no weights.
func (a *Activation) Parameters() []*Parameter {
	return nil
}
