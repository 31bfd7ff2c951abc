// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the dense layers the text encoders and task heads are
// built from.
//
// # Overview
//
// This package contains:
//   - Layers: Embedding, Linear, MLP
//   - Feature extractors: DAN, ConvAndPool
//   - Reducers: reduce_{sum,mean,max,min,mean_max}_over_time
//   - Loss: CrossEntropy, with Softmax and Argmax for predictions
//   - Parameters: ParamSet scopes with deterministic initialization
//
// All computation is forward only over gonum dense matrices. A sequence is
// a T×D matrix, one row per time step; a batch of encoded documents is a
// B×D matrix.
//
// # Parameter Scopes
//
// Every layer registers its weights in a ParamSet. Layers built in the same
// set share its random source; two sets with the same scope name and seed
// initialize identically:
//
//	ps := nn.NewParamSet("encoder_shared", 42)
//	embed := nn.NewEmbedding(ps, "embedding", vocabSize, 128)
//	dan, err := nn.NewDAN(ps, "dan", 128, nn.DANConfig{Reducer: "reduce_mean_over_time"})
//
// # Heads
//
//	mlp, err := nn.NewMLP(ps, "mlp", 128, nn.MLPConfig{
//	    HiddenDim:      100,
//	    NumLayers:      1,
//	    Activation:     nn.ReLU,
//	    InputKeepProb:  1,
//	    OutputKeepProb: 1,
//	})
//	logits := nn.NewLinear(ps, "logits", mlp.OutputDim(128), numClasses)
//	loss, err := nn.CrossEntropy(logits.Forward(mlp.Forward(features)), labels)
package nn
