package nn

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// ErrEmptyBatch is returned by extractors given no sequences.
var ErrEmptyBatch = errors.New("empty batch")

// DANConfig configures a deep averaging network.
type DANConfig struct {
	WordDropoutRate float64          // in [0, 1)
	Reducer         string           // reduce_*_over_time
	ApplyActivation bool             // add dense layers after pooling
	NumLayers       int              // dense layers when ApplyActivation
	Activations     []ActivationFunc // one per layer
}

// DAN is a deep averaging network (Iyyer et al., 2015): drop whole words,
// pool the remaining embeddings over time, then apply width-preserving
// dense layers.
type DAN struct {
	cfg     DANConfig
	reducer Reducer
	layers  []*Linear
	rng     *rand.Rand
}

// NewDAN creates a DAN reading sequences of width inDim.
func NewDAN(ps *ParamSet, name string, inDim int, cfg DANConfig) (*DAN, error) {
	if cfg.WordDropoutRate < 0 || cfg.WordDropoutRate >= 1 {
		return nil, fmt.Errorf("dan %s: word dropout rate must be in [0.0, 1.0), got %v", name, cfg.WordDropoutRate)
	}
	reducer, err := ReducerByName(cfg.Reducer)
	if err != nil {
		return nil, fmt.Errorf("dan %s: %w", name, err)
	}

	d := &DAN{cfg: cfg, reducer: reducer, rng: ps.Rand()}
	if cfg.ApplyActivation {
		if len(cfg.Activations) != cfg.NumLayers {
			return nil, fmt.Errorf("dan %s: %d activations for %d layers", name, len(cfg.Activations), cfg.NumLayers)
		}
		width := ReducerWidth(cfg.Reducer, inDim)
		for i := 0; i < cfg.NumLayers; i++ {
			layer := "output"
			if cfg.NumLayers > 1 {
				layer = fmt.Sprintf("output_%d", i)
			}
			d.layers = append(d.layers, NewLinear(ps, name+"/"+layer, width, width))
		}
	}
	return d, nil
}

// Extract pools each sequence and returns a [batch, OutputDim] matrix.
func (d *DAN) Extract(seqs []*mat.Dense, lengths []int, training bool) (*mat.Dense, error) {
	if len(seqs) == 0 {
		return nil, ErrEmptyBatch
	}

	var out *mat.Dense
	for i, seq := range seqs {
		if training {
			seq = d.dropWords(seq)
		}
		row := d.reducer(seq, lengthAt(lengths, i))
		if out == nil {
			out = mat.NewDense(len(seqs), len(row), nil)
		}
		out.SetRow(i, row)
	}

	for i, l := range d.layers {
		out = NewActivation(d.cfg.Activations[i]).Forward(l.Forward(out))
	}
	return out, nil
}

// dropWords zeroes whole time steps with probability WordDropoutRate.
func (d *DAN) dropWords(seq *mat.Dense) *mat.Dense {
	if d.cfg.WordDropoutRate == 0 {
		return seq
	}
	t, dim := seq.Dims()
	out := mat.DenseCopyOf(seq)
	for i := 0; i < t; i++ {
		if d.rng.Float64() < d.cfg.WordDropoutRate {
			out.SetRow(i, make([]float64, dim))
		}
	}
	return out
}

// OutputDim returns the width of Extract's result for input width inDim.
func (d *DAN) OutputDim(inDim int) int {
	return ReducerWidth(d.cfg.Reducer, inDim)
}

// Parameters returns the dense layer weights.
func (d *DAN) Parameters() []*Parameter {
	var params []*Parameter
	for _, l := range d.layers {
		params = append(params, l.Parameters()...)
	}
	return params
}

// WordDropoutHook is the per-sequence word dropout entry point. It is
// intentionally unimplemented and returns seq unchanged; DAN applies its
// own batch-level mask in Extract.
func WordDropoutHook(seq *mat.Dense, _ float64) *mat.Dense {
	return seq
}

func lengthAt(lengths []int, i int) int {
	if i < len(lengths) {
		return lengths[i]
	}
	return 0
}
