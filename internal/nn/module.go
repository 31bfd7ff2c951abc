// Package nn implements the forward computation of the layers used by the
// multi-task models.
//
// This package provides building blocks on top of gonum dense matrices:
//   - Parameter and ParamSet: named weights grouped into ownership scopes
//   - Linear, MLP: fully connected layers
//   - Embedding: id -> vector lookup
//   - Reducers: pooling over the time axis
//   - DAN, ConvAndPool: sequence feature extractors
//   - CrossEntropy, Argmax: classification heads
//
// There is no gradient computation. Training belongs to the numerical
// framework that consumes the prepared records.
package nn

import (
	"gonum.org/v1/gonum/mat"
)

// Module is the base interface for layers that map a batch matrix to a
// batch matrix.
//
// Rows are examples, columns are features.
type Module interface {
	// Forward computes the output of the module for a batch.
	Forward(input *mat.Dense) *mat.Dense

	// Parameters returns all parameters of this module, including those of
	// nested modules. Layers without weights return nil.
	Parameters() []*Parameter
}
