package nn

import (
	"gonum.org/v1/gonum/mat"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W + b
// where:
//   - x is the input with shape [batch_size, in_features]
//   - W is the weight matrix with shape [in_features, out_features]
//   - b is the bias row with shape [1, out_features]
//
// Weights are initialized using Xavier/Glorot initialization.
// Biases are initialized to zeros.
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter
	bias        *Parameter
}

// NewLinear creates a Linear layer whose weights are registered in ps under name.
func NewLinear(ps *ParamSet, name string, inFeatures, outFeatures int) *Linear {
	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      ps.New(name+"/weight", inFeatures, outFeatures, Xavier),
		bias:        ps.New(name+"/bias", 1, outFeatures, Zeros),
	}
}

// Forward computes x @ W + b.
func (l *Linear) Forward(input *mat.Dense) *mat.Dense {
	rows, _ := input.Dims()
	out := mat.NewDense(rows, l.outFeatures, nil)
	out.Mul(input, l.weight.Value())

	bias := l.bias.Value().RawRowView(0)
	for i := 0; i < rows; i++ {
		row := out.RawRowView(i)
		for j := range row {
			row[j] += bias[j]
		}
	}
	return out
}

// Parameters returns the weight and bias.
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}

// InFeatures returns the input width.
func (l *Linear) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the output width.
func (l *Linear) OutFeatures() int {
	return l.outFeatures
}
