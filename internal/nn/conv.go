package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ConvConfig configures ConvAndPool.
type ConvConfig struct {
	NumFilter  int            // filters per width
	MaxWidth   int            // widths are i+1 for i in [2, MaxWidth]
	Activation ActivationFunc // may be nil
	Reducer    string         // pooling, default reduce_max_over_time
}

// ConvAndPool applies 1D convolutions of several widths with SAME padding
// and pools each feature map over time.
//
// With K widths the output is [batch, NumFilter*K] (times two for
// reduce_mean_max_over_time).
type ConvAndPool struct {
	cfg     ConvConfig
	reducer Reducer
	widths  []int
	filters []*Linear // one per width, [width*inDim, NumFilter]
}

// NewConvAndPool creates the filter banks for sequences of width inDim.
func NewConvAndPool(ps *ParamSet, name string, inDim int, cfg ConvConfig) (*ConvAndPool, error) {
	if cfg.NumFilter <= 0 {
		return nil, fmt.Errorf("cnn %s: num_filter must be positive, got %d", name, cfg.NumFilter)
	}
	if cfg.MaxWidth < 2 {
		return nil, fmt.Errorf("cnn %s: max_width must be at least 2, got %d", name, cfg.MaxWidth)
	}
	if cfg.Reducer == "" {
		cfg.Reducer = "reduce_max_over_time"
	}
	reducer, err := ReducerByName(cfg.Reducer)
	if err != nil {
		return nil, fmt.Errorf("cnn %s: %w", name, err)
	}

	c := &ConvAndPool{cfg: cfg, reducer: reducer}
	for i := 2; i <= cfg.MaxWidth; i++ {
		width := i + 1
		c.widths = append(c.widths, width)
		c.filters = append(c.filters, NewLinear(ps, fmt.Sprintf("%s/conv_%d", name, width), width*inDim, cfg.NumFilter))
	}
	return c, nil
}

// Widths returns the filter widths in order.
func (c *ConvAndPool) Widths() []int {
	out := make([]int, len(c.widths))
	copy(out, c.widths)
	return out
}

// Extract convolves and pools every sequence. Lengths are ignored: pooling
// covers the padded sequence.
func (c *ConvAndPool) Extract(seqs []*mat.Dense, _ []int, _ bool) (*mat.Dense, error) {
	if len(seqs) == 0 {
		return nil, ErrEmptyBatch
	}
	_, inDim := seqs[0].Dims()
	out := mat.NewDense(len(seqs), c.OutputDim(inDim), nil)

	for b, seq := range seqs {
		row := out.RawRowView(b)
		offset := 0
		for k, width := range c.widths {
			fmap := NewActivation(c.cfg.Activation).Forward(c.filters[k].Forward(windows(seq, width)))
			pooled := c.reducer(fmap, 0)
			copy(row[offset:], pooled)
			offset += len(pooled)
		}
	}
	return out, nil
}

// windows unfolds seq into one row per time step holding the width
// surrounding steps, zero padded on both sides (SAME).
func windows(seq *mat.Dense, width int) *mat.Dense {
	t, d := seq.Dims()
	left := (width - 1) / 2
	out := mat.NewDense(t, width*d, nil)
	for i := 0; i < t; i++ {
		row := out.RawRowView(i)
		for k := 0; k < width; k++ {
			src := i - left + k
			if src < 0 || src >= t {
				continue
			}
			copy(row[k*d:(k+1)*d], seq.RawRowView(src))
		}
	}
	return out
}

// OutputDim returns the width of Extract's result for input width inDim.
func (c *ConvAndPool) OutputDim(_ int) int {
	return len(c.widths) * ReducerWidth(c.cfg.Reducer, c.cfg.NumFilter)
}

// Parameters returns all filter weights.
func (c *ConvAndPool) Parameters() []*Parameter {
	var params []*Parameter
	for _, f := range c.filters {
		params = append(params, f.Parameters()...)
	}
	return params
}
