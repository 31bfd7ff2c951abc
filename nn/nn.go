// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/mtl/internal/nn"
)

// Module is implemented by every layer with a single dense forward pass.
type Module = nn.Module

// Parameter is a named weight matrix.
type Parameter = nn.Parameter

// ParamSet owns the parameters of one scope.
type ParamSet = nn.ParamSet

// Initializer fills a new weight matrix.
type Initializer = nn.Initializer

// NewParamSet creates an empty scope seeded from its name and seed.
func NewParamSet(scope string, seed uint64) *ParamSet {
	return nn.NewParamSet(scope, seed)
}

// Initializers
var (
	Xavier = nn.Xavier
	Zeros  = nn.Zeros
)

// Normal returns an initializer drawing from N(0, std²).
func Normal(std float64) Initializer {
	return nn.Normal(std)
}

// Layers

// Linear is a fully connected layer.
type Linear = nn.Linear

// NewLinear creates a linear layer with Xavier weights and zero bias.
func NewLinear(ps *ParamSet, name string, inFeatures, outFeatures int) *Linear {
	return nn.NewLinear(ps, name, inFeatures, outFeatures)
}

// Embedding maps token ids to rows of a weight matrix.
type Embedding = nn.Embedding

// NewEmbedding creates an embedding table.
func NewEmbedding(ps *ParamSet, name string, numEmbeddings, embeddingDim int) *Embedding {
	return nn.NewEmbedding(ps, name, numEmbeddings, embeddingDim)
}

// MLP is a stack of Linear layers with dropout on its input and output.
type MLP = nn.MLP

// MLPConfig configures an MLP.
type MLPConfig = nn.MLPConfig

// NewMLP creates an MLP reading inDim columns.
func NewMLP(ps *ParamSet, name string, inDim int, cfg MLPConfig) (*MLP, error) {
	return nn.NewMLP(ps, name, inDim, cfg)
}

// Activations

// ActivationFunc is an element-wise activation.
type ActivationFunc = nn.ActivationFunc

// Activation applies an ActivationFunc as a layer.
type Activation = nn.Activation

// Element-wise activations.
var (
	ReLU    = nn.ReLU
	Sigmoid = nn.Sigmoid
)

// ActivationByName resolves relu, tanh, sigmoid or elu. An empty name,
// "none" and "linear" return nil.
func ActivationByName(name string) (ActivationFunc, error) {
	return nn.ActivationByName(name)
}

// Extractors

// DAN is a deep averaging network.
type DAN = nn.DAN

// DANConfig configures a DAN.
type DANConfig = nn.DANConfig

// NewDAN creates a deep averaging network over inDim wide sequences.
func NewDAN(ps *ParamSet, name string, inDim int, cfg DANConfig) (*DAN, error) {
	return nn.NewDAN(ps, name, inDim, cfg)
}

// ConvAndPool applies same-padded convolutions of several widths and
// reduces each over time.
type ConvAndPool = nn.ConvAndPool

// ConvConfig configures ConvAndPool.
type ConvConfig = nn.ConvConfig

// NewConvAndPool creates the convolution filters.
func NewConvAndPool(ps *ParamSet, name string, inDim int, cfg ConvConfig) (*ConvAndPool, error) {
	return nn.NewConvAndPool(ps, name, inDim, cfg)
}

// Reducer collapses the first length rows of a sequence into one vector.
type Reducer = nn.Reducer

// ReducerByName resolves a reduce_*_over_time name.
func ReducerByName(name string) (Reducer, error) {
	return nn.ReducerByName(name)
}

// Loss

// CrossEntropy returns the mean softmax cross-entropy of logits against
// labels.
func CrossEntropy(logits *mat.Dense, labels []int) (float64, error) {
	return nn.CrossEntropy(logits, labels)
}

// Softmax returns the row-wise softmax of logits.
func Softmax(logits *mat.Dense) *mat.Dense {
	return nn.Softmax(logits)
}

// Argmax returns the index of the largest logit of every row.
func Argmax(logits *mat.Dense) []int {
	return nn.Argmax(logits)
}

// Errors
var (
	ErrUnknownActivation = nn.ErrUnknownActivation
	ErrIndexOutOfRange   = nn.ErrIndexOutOfRange
	ErrEmptyBatch        = nn.ErrEmptyBatch
	ErrLabelOutOfRange   = nn.ErrLabelOutOfRange
)
