// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn_test

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/mtl/nn"
)

// TestModuleInterface verifies that the layers implement Module.
func TestModuleInterface(t *testing.T) {
	ps := nn.NewParamSet("test", 1)
	mlp, err := nn.NewMLP(ps, "mlp", 4, nn.MLPConfig{HiddenDim: 3, NumLayers: 2, Activation: nn.ReLU, InputKeepProb: 1, OutputKeepProb: 1})
	if err != nil {
		t.Fatalf("NewMLP: %v", err)
	}

	tests := []struct {
		name   string
		module nn.Module
		out    int
		params int
	}{
		{name: "Linear", module: nn.NewLinear(ps, "linear", 4, 5), out: 5, params: 2},
		{name: "MLP", module: mlp, out: 3, params: 4},
	}

	input := mat.NewDense(2, 4, []float64{1, 2, 3, 4, -1, -2, -3, -4})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.module.Forward(input)
			if r, c := out.Dims(); r != 2 || c != tt.out {
				t.Errorf("Forward dims = %dx%d, want 2x%d", r, c, tt.out)
			}
			if got := len(tt.module.Parameters()); got != tt.params {
				t.Errorf("Parameters() = %d, want %d", got, tt.params)
			}
		})
	}
}

func TestCrossEntropyFacade(t *testing.T) {
	logits := mat.NewDense(1, 2, []float64{0, 0})
	loss, err := nn.CrossEntropy(logits, []int{1})
	if err != nil {
		t.Fatalf("CrossEntropy: %v", err)
	}
	if want := 0.6931471805599453; loss < want-1e-12 || loss > want+1e-12 {
		t.Errorf("loss = %v, want ln 2", loss)
	}

	if _, err := nn.CrossEntropy(logits, []int{2}); !errors.Is(err, nn.ErrLabelOutOfRange) {
		t.Errorf("expected ErrLabelOutOfRange, got %v", err)
	}
}
