// Package model stacks shared and private heads on per-dataset encoders
// and composes the weighted multi-task loss.
package model

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"

	"github.com/born-ml/mtl/internal/encoder"
	"github.com/born-ml/mtl/internal/nn"
)

// Batch is one batch of one dataset.
type Batch struct {
	Input  encoder.Input
	Labels []int
}

// Losses is the result of one multi-task step.
type Losses struct {
	Total      float64
	PerDataset map[string]float64
}

// Model runs encode, shared MLP, private MLP and logits per dataset.
//
// The shared MLP is one instance used by every dataset. Private MLPs and
// logit layers are owned per dataset.
type Model struct {
	hps        Hyperparams
	order      []string
	classSizes map[string]int
	encoders   map[string]*encoder.Encoder
	shared     *nn.MLP
	private    map[string]*nn.MLP
	logits     map[string]*nn.Linear
}

// New builds the heads for every dataset in order.
//
// classSizes and order must name the same datasets, and so must the
// hyperparameters and encoders.
func New(classSizes map[string]int, order []string, encoders map[string]*encoder.Encoder, hps Hyperparams) (*Model, error) {
	if err := sameKeys(order, classSizes); err != nil {
		return nil, fmt.Errorf("class sizes: %w", err)
	}
	if err := sameKeys(order, encoders); err != nil {
		return nil, fmt.Errorf("encoders: %w", err)
	}
	if err := sameKeys(hps.Datasets, classSizes); err != nil {
		return nil, fmt.Errorf("hyperparameters: %w", err)
	}
	if err := hps.Validate(); err != nil {
		return nil, fmt.Errorf("hyperparameters: %w", err)
	}
	for _, ds := range order {
		if classSizes[ds] < 1 {
			return nil, fmt.Errorf("dataset %s: class size must be positive, got %d", ds, classSizes[ds])
		}
	}

	act, err := nn.ActivationByName(hps.Activation)
	if err != nil {
		return nil, err
	}

	inDim := encoders[order[0]].OutputDim()
	if hps.SharedMLPLayers > 0 {
		for _, ds := range order[1:] {
			if d := encoders[ds].OutputDim(); d != inDim {
				return nil, fmt.Errorf("shared mlp: encoder widths differ (%s: %d, %s: %d)", order[0], inDim, ds, d)
			}
		}
	}

	m := &Model{
		hps:        hps,
		order:      append([]string(nil), order...),
		classSizes: classSizes,
		encoders:   encoders,
		private:    make(map[string]*nn.MLP, len(order)),
		logits:     make(map[string]*nn.Linear, len(order)),
	}

	sharedSet := nn.NewParamSet("mlp_shared", hps.Seed)
	m.shared, err = nn.NewMLP(sharedSet, "mlp", inDim, nn.MLPConfig{
		HiddenDim:      hps.SharedHiddenDims,
		NumLayers:      hps.SharedMLPLayers,
		Activation:     act,
		InputKeepProb:  hps.InputKeepProb,
		OutputKeepProb: 1,
	})
	if err != nil {
		return nil, err
	}

	for _, ds := range order {
		ps := nn.NewParamSet("mlp_"+ds, hps.Seed)
		in := m.shared.OutputDim(encoders[ds].OutputDim())
		private, err := nn.NewMLP(ps, "mlp", in, nn.MLPConfig{
			HiddenDim:      hps.PrivateHiddenDims,
			NumLayers:      hps.PrivateMLPLayers,
			Activation:     act,
			InputKeepProb:  1,
			OutputKeepProb: hps.OutputKeepProb,
		})
		if err != nil {
			return nil, err
		}
		m.private[ds] = private
		m.logits[ds] = nn.NewLinear(nn.NewParamSet("logit_"+ds, hps.Seed), "logits", private.OutputDim(in), classSizes[ds])

		klog.V(1).Infof("model head %s: %d -> %d classes", ds, encoders[ds].OutputDim(), classSizes[ds])
	}
	return m, nil
}

// Datasets returns the dataset order.
func (m *Model) Datasets() []string {
	return append([]string(nil), m.order...)
}

// Parameters returns every distinct parameter of the model: the shared
// MLP first, then per dataset in order its encoder, private MLP and logit
// layer. Parameters shared between datasets appear once.
func (m *Model) Parameters() []*nn.Parameter {
	seen := make(map[*nn.Parameter]bool)
	var out []*nn.Parameter
	add := func(params []*nn.Parameter) {
		for _, p := range params {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	add(m.shared.Parameters())
	for _, ds := range m.order {
		add(m.encoders[ds].Parameters())
		add(m.private[ds].Parameters())
		add(m.logits[ds].Parameters())
	}
	return out
}

// NumWeights counts the weights of Parameters.
func (m *Model) NumWeights() int {
	n := 0
	for _, p := range m.Parameters() {
		n += p.Size()
	}
	return n
}

// Encoder returns the encoder of a dataset.
func (m *Model) Encoder(ds string) (*encoder.Encoder, error) {
	enc, ok := m.encoders[ds]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDataset, ds)
	}
	return enc, nil
}

// Logits runs the pipeline of one dataset up to the logit layer.
func (m *Model) Logits(ds string, b Batch, training bool) (*mat.Dense, error) {
	enc, err := m.Encoder(ds)
	if err != nil {
		return nil, err
	}
	x, err := enc.Encode(b.Input, training)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", ds, err)
	}
	x = m.shared.Run(x, training)
	x = m.private[ds].Run(x, training)
	return m.logits[ds].Forward(x), nil
}

// Loss returns the mean cross-entropy of one dataset's batch.
func (m *Model) Loss(ds string, b Batch, training bool) (float64, error) {
	logits, err := m.Logits(ds, b, training)
	if err != nil {
		return 0, err
	}
	loss, err := nn.CrossEntropy(logits, b.Labels)
	if err != nil {
		return 0, fmt.Errorf("dataset %s: %w", ds, err)
	}
	return loss, nil
}

// Predict returns the most likely class per example.
func (m *Model) Predict(ds string, b Batch) ([]int, error) {
	logits, err := m.Logits(ds, b, false)
	if err != nil {
		return nil, err
	}
	return nn.Argmax(logits), nil
}

// MultiTaskLoss computes every dataset's loss independently and returns
// their weighted sum. The batches must cover exactly the weighted datasets.
func (m *Model) MultiTaskLoss(batches map[string]Batch, training bool) (Losses, error) {
	if err := sameKeys(m.order, batches); err != nil {
		return Losses{}, fmt.Errorf("batches: %w", err)
	}

	per := make(map[string]float64, len(batches))
	for _, ds := range m.order {
		loss, err := m.Loss(ds, batches[ds], training)
		if err != nil {
			return Losses{}, err
		}
		per[ds] = loss
	}

	total, err := Combine(m.hps.Alphas, per)
	if err != nil {
		return Losses{}, err
	}
	return Losses{Total: total, PerDataset: per}, nil
}

// Combine returns the weighted sum of per-dataset losses. Both maps must
// have the same keys and the weights must sum to 1.
func Combine(weights, losses map[string]float64) (float64, error) {
	names := make([]string, 0, len(weights))
	for ds := range weights {
		names = append(names, ds)
	}
	sort.Strings(names)

	if err := sameKeys(names, losses); err != nil {
		return 0, err
	}
	if err := CheckWeights(weights); err != nil {
		return 0, err
	}

	total := 0.0
	for _, ds := range names {
		total += weights[ds] * losses[ds]
	}
	return total, nil
}
