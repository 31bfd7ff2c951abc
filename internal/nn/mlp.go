package nn

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// MLPConfig configures an MLP.
type MLPConfig struct {
	HiddenDim      int            // width of every layer
	NumLayers      int            // 0 gives the identity
	Activation     ActivationFunc // applied after every layer, may be nil
	InputKeepProb  float64        // dropout keep probability on the input
	OutputKeepProb float64        // dropout keep probability on the output
}

// MLP is a stack of Linear layers, each followed by the same activation.
//
// During training the input and the output are passed through inverted
// dropout with the configured keep probabilities.
type MLP struct {
	cfg        MLPConfig
	layers     []*Linear
	activation *Activation
	rng        *rand.Rand
}

// NewMLP creates the layers of an MLP reading inDim columns.
func NewMLP(ps *ParamSet, name string, inDim int, cfg MLPConfig) (*MLP, error) {
	if cfg.NumLayers < 0 {
		return nil, fmt.Errorf("mlp %s: negative layer count %d", name, cfg.NumLayers)
	}
	if cfg.NumLayers > 0 && cfg.HiddenDim <= 0 {
		return nil, fmt.Errorf("mlp %s: hidden width must be positive, got %d", name, cfg.HiddenDim)
	}
	for _, p := range []float64{cfg.InputKeepProb, cfg.OutputKeepProb} {
		if p <= 0 || p > 1 {
			return nil, fmt.Errorf("mlp %s: keep probability must be in (0,1], got %v", name, p)
		}
	}

	m := &MLP{
		cfg:        cfg,
		activation: NewActivation(cfg.Activation),
		rng:        ps.Rand(),
	}
	in := inDim
	for i := 0; i < cfg.NumLayers; i++ {
		m.layers = append(m.layers, NewLinear(ps, fmt.Sprintf("%s/layer_%d", name, i), in, cfg.HiddenDim))
		in = cfg.HiddenDim
	}
	return m, nil
}

// Forward runs inference.
func (m *MLP) Forward(input *mat.Dense) *mat.Dense {
	return m.Run(input, false)
}

// Run applies the layers; training enables dropout.
func (m *MLP) Run(input *mat.Dense, training bool) *mat.Dense {
	x := input
	if training {
		x = Dropout(x, m.cfg.InputKeepProb, m.rng)
	}
	for _, l := range m.layers {
		x = m.activation.Forward(l.Forward(x))
	}
	if training {
		x = Dropout(x, m.cfg.OutputKeepProb, m.rng)
	}
	return x
}

// OutputDim returns the output width for an input of width inDim.
func (m *MLP) OutputDim(inDim int) int {
	if len(m.layers) == 0 {
		return inDim
	}
	return m.layers[len(m.layers)-1].OutFeatures()
}

// Parameters returns the weights of every layer.
func (m *MLP) Parameters() []*Parameter {
	var params []*Parameter
	for _, l := range m.layers {
		params = append(params, l.Parameters()...)
	}
	return params
}

// Dropout zeroes each element with probability 1-keepProb and scales the
// survivors by 1/keepProb. keepProb >= 1 returns x.
func Dropout(x *mat.Dense, keepProb float64, rng *rand.Rand) *mat.Dense {
	if keepProb >= 1 {
		return x
	}
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 {
		if rng.Float64() < keepProb {
			return v / keepProb
		}
		return 0
	}, x)
	return &out
}
