package model

import (
	"fmt"
	"math"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/born-ml/mtl/internal/encoder"
	"github.com/born-ml/mtl/internal/nn"
)

// weightTolerance bounds how far the mixing weights may sum from 1.
const weightTolerance = 1e-9

// Hyperparams configures the heads stacked on the encoders.
type Hyperparams struct {
	Datasets          []string           `yaml:"datasets"`
	Alphas            map[string]float64 `yaml:"alphas"`
	SharedHiddenDims  int                `yaml:"shared_hidden_dims"`
	SharedMLPLayers   int                `yaml:"shared_mlp_layers"`
	PrivateHiddenDims int                `yaml:"private_hidden_dims"`
	PrivateMLPLayers  int                `yaml:"private_mlp_layers"`
	Activation        string             `yaml:"activation"`
	InputKeepProb     float64            `yaml:"input_keep_prob"`
	OutputKeepProb    float64            `yaml:"output_keep_prob"`
	InputKey          string             `yaml:"input_key"`
	Seed              uint64             `yaml:"seed"`
}

// DefaultHyperparams returns the settings used when a field is not given.
func DefaultHyperparams() Hyperparams {
	return Hyperparams{
		SharedHiddenDims:  100,
		SharedMLPLayers:   1,
		PrivateHiddenDims: 100,
		PrivateMLPLayers:  1,
		Activation:        "relu",
		InputKeepProb:     1,
		OutputKeepProb:    1,
		InputKey:          encoder.InputTokens,
		Seed:              42,
	}
}

// Validate reports every inconsistent setting.
func (h Hyperparams) Validate() error {
	var errs *multierror.Error
	if !encoder.ValidInputKey(h.InputKey) {
		errs = multierror.Append(errs, fmt.Errorf("%w: %q", encoder.ErrUnknownInputKey, h.InputKey))
	}
	if _, err := nn.ActivationByName(h.Activation); err != nil {
		errs = multierror.Append(errs, err)
	}
	if len(h.Datasets) == 0 {
		errs = multierror.Append(errs, fmt.Errorf("no datasets"))
	}
	if err := sameKeys(h.Datasets, h.Alphas); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("alphas: %w", err))
	}
	if err := CheckWeights(h.Alphas); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

// CheckWeights verifies that weights sum to 1.
func CheckWeights(weights map[string]float64) error {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%w: sum is %v", ErrWeightSum, sum)
	}
	return nil
}

func sameKeys[V any](names []string, m map[string]V) error {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var missing, extra []string
	for n := range want {
		if _, ok := m[n]; !ok {
			missing = append(missing, n)
		}
	}
	for n := range m {
		if !want[n] {
			extra = append(extra, n)
		}
	}
	if len(missing) == 0 && len(extra) == 0 && len(want) == len(names) {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(extra)
	if len(want) != len(names) {
		return fmt.Errorf("%w: duplicate dataset names in %v", ErrDatasetMismatch, names)
	}
	return fmt.Errorf("%w: missing %v, unexpected %v", ErrDatasetMismatch, missing, extra)
}
