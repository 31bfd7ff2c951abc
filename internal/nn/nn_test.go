package nn_test

import (
	"errors"
	"math"
	"testing"

	"github.com/born-ml/mtl/internal/nn"
	"gonum.org/v1/gonum/mat"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func slicesAlmostEqual(a, b []float64, eps float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !almostEqual(a[i], b[i], eps) {
			return false
		}
	}
	return true
}

func TestParamSet_DeterministicInit(t *testing.T) {
	a := nn.NewParamSet("encoder_shared", 42)
	b := nn.NewParamSet("encoder_shared", 42)
	c := nn.NewParamSet("encoder_other", 42)

	pa := a.New("w", 4, 3, nn.Xavier)
	pb := b.New("w", 4, 3, nn.Xavier)
	pc := c.New("w", 4, 3, nn.Xavier)

	if !mat.Equal(pa.Value(), pb.Value()) {
		t.Errorf("same scope and seed should give equal weights")
	}
	if mat.Equal(pa.Value(), pc.Value()) {
		t.Errorf("different scopes should give different weights")
	}
	if pa.Name() != "encoder_shared/w" {
		t.Errorf("Expected name encoder_shared/w, got %s", pa.Name())
	}
	if a.NumWeights() != 12 {
		t.Errorf("Expected 12 weights, got %d", a.NumWeights())
	}
}

func TestParamSet_DuplicateNamePanics(t *testing.T) {
	ps := nn.NewParamSet("s", 1)
	ps.New("w", 1, 1, nn.Zeros)

	defer func() {
		if recover() == nil {
			t.Errorf("Expected panic on duplicate parameter name")
		}
	}()
	ps.New("w", 1, 1, nn.Zeros)
}

func TestLinear_Forward(t *testing.T) {
	ps := nn.NewParamSet("s", 1)
	l := nn.NewLinear(ps, "fc", 2, 2)
	l.Parameters()[0].Value().Copy(mat.NewDense(2, 2, []float64{1, 2, 3, 4}))
	l.Parameters()[1].Value().Copy(mat.NewDense(1, 2, []float64{0.5, -0.5}))

	out := l.Forward(mat.NewDense(1, 2, []float64{1, 1}))

	expected := []float64{4.5, 5.5}
	if !slicesAlmostEqual(out.RawRowView(0), expected, 1e-12) {
		t.Errorf("Expected %v, got %v", expected, out.RawRowView(0))
	}
}

func TestEmbedding_Lookup(t *testing.T) {
	ps := nn.NewParamSet("s", 1)
	embed := nn.NewEmbedding(ps, "embedding", 3, 2)
	embed.Weight.Value().Copy(mat.NewDense(3, 2, []float64{
		0, 0,
		1, 2,
		3, 4,
	}))

	out, err := embed.Lookup([]int{2, 1, 2})
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	r, c := out.Dims()
	if r != 3 || c != 2 {
		t.Fatalf("Expected shape [3 2], got [%d %d]", r, c)
	}
	if !slicesAlmostEqual(out.RawRowView(0), []float64{3, 4}, 0) {
		t.Errorf("Row 0: got %v", out.RawRowView(0))
	}

	_, err = embed.Lookup([]int{3})
	if !errors.Is(err, nn.ErrIndexOutOfRange) {
		t.Errorf("Expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestReducers(t *testing.T) {
	seq := mat.NewDense(3, 2, []float64{
		1, -1,
		3, 5,
		100, 100, // beyond length
	})

	tests := []struct {
		name     string
		expected []float64
	}{
		{"reduce_sum_over_time", []float64{4, 4}},
		{"reduce_mean_over_time", []float64{2, 2}},
		{"reduce_max_over_time", []float64{3, 5}},
		{"reduce_min_over_time", []float64{1, -1}},
		{"reduce_mean_max_over_time", []float64{2, 2, 3, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := nn.ReducerByName(tt.name)
			if err != nil {
				t.Fatalf("ReducerByName: %v", err)
			}
			got := r(seq, 2)
			if !slicesAlmostEqual(got, tt.expected, 1e-12) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
			if nn.ReducerWidth(tt.name, 2) != len(tt.expected) {
				t.Errorf("ReducerWidth mismatch for %s", tt.name)
			}
		})
	}

	if _, err := nn.ReducerByName("reduce_median"); err == nil {
		t.Errorf("Expected error for unknown reducer")
	}
}

func TestActivationByName(t *testing.T) {
	for _, name := range []string{"", "none", "linear"} {
		fn, err := nn.ActivationByName(name)
		if err != nil || fn != nil {
			t.Errorf("%q: expected identity, got fn=%v err=%v", name, fn != nil, err)
		}
	}

	relu, err := nn.ActivationByName("relu")
	if err != nil {
		t.Fatalf("relu: %v", err)
	}
	if relu(-2) != 0 || relu(3) != 3 {
		t.Errorf("relu misbehaves")
	}

	_, err = nn.ActivationByName("swish")
	if !errors.Is(err, nn.ErrUnknownActivation) {
		t.Errorf("Expected ErrUnknownActivation, got %v", err)
	}
}

func TestMLP(t *testing.T) {
	ps := nn.NewParamSet("shared", 7)
	m, err := nn.NewMLP(ps, "mlp", 4, nn.MLPConfig{
		HiddenDim: 8, NumLayers: 2, Activation: nn.ReLU, InputKeepProb: 0.5, OutputKeepProb: 1,
	})
	if err != nil {
		t.Fatalf("NewMLP: %v", err)
	}
	if m.OutputDim(4) != 8 {
		t.Errorf("Expected output dim 8, got %d", m.OutputDim(4))
	}
	if len(m.Parameters()) != 4 {
		t.Errorf("Expected 4 parameters, got %d", len(m.Parameters()))
	}

	x := mat.NewDense(3, 4, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
	a := m.Forward(x)
	b := m.Forward(x)
	if !mat.Equal(a, b) {
		t.Errorf("inference must be deterministic")
	}

	identity, err := nn.NewMLP(ps, "empty", 4, nn.MLPConfig{InputKeepProb: 1, OutputKeepProb: 1})
	if err != nil {
		t.Fatalf("NewMLP identity: %v", err)
	}
	if !mat.Equal(identity.Forward(x), x) || identity.OutputDim(4) != 4 {
		t.Errorf("zero-layer MLP should be the identity")
	}

	if _, err := nn.NewMLP(ps, "bad", 4, nn.MLPConfig{HiddenDim: 8, NumLayers: 1, InputKeepProb: 1}); err == nil {
		t.Errorf("Expected error for keep probability 0")
	}
}

func TestDropout(t *testing.T) {
	ps := nn.NewParamSet("s", 3)
	x := mat.NewDense(10, 10, nil)
	x.Apply(func(_, _ int, _ float64) float64 { return 1 }, x)

	if nn.Dropout(x, 1, ps.Rand()) != x {
		t.Errorf("keep probability 1 should return the input")
	}

	out := nn.Dropout(x, 0.5, ps.Rand())
	for _, v := range out.RawMatrix().Data {
		if v != 0 && v != 2 {
			t.Fatalf("Expected 0 or 2 after inverted dropout, got %v", v)
		}
	}
}

func TestDAN(t *testing.T) {
	ps := nn.NewParamSet("dan", 1)

	_, err := nn.NewDAN(ps, "bad_rate", 2, nn.DANConfig{WordDropoutRate: 1, Reducer: "reduce_mean_over_time"})
	if err == nil {
		t.Errorf("Expected error for word dropout rate 1")
	}
	_, err = nn.NewDAN(ps, "bad_layers", 2, nn.DANConfig{
		Reducer:         "reduce_mean_over_time",
		ApplyActivation: true,
		NumLayers:       2,
		Activations:     []nn.ActivationFunc{nn.ReLU},
	})
	if err == nil {
		t.Errorf("Expected error for activation/layer count mismatch")
	}

	dan, err := nn.NewDAN(ps, "dan", 2, nn.DANConfig{Reducer: "reduce_mean_over_time"})
	if err != nil {
		t.Fatalf("NewDAN: %v", err)
	}
	seqs := []*mat.Dense{
		mat.NewDense(2, 2, []float64{1, 2, 3, 4}),
		mat.NewDense(2, 2, []float64{5, 5, 9, 9}),
	}
	out, err := dan.Extract(seqs, []int{2, 1}, false)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !slicesAlmostEqual(out.RawRowView(0), []float64{2, 3}, 1e-12) {
		t.Errorf("Row 0: got %v", out.RawRowView(0))
	}
	if !slicesAlmostEqual(out.RawRowView(1), []float64{5, 5}, 1e-12) {
		t.Errorf("Row 1: got %v", out.RawRowView(1))
	}

	if _, err := dan.Extract(nil, nil, false); !errors.Is(err, nn.ErrEmptyBatch) {
		t.Errorf("Expected ErrEmptyBatch, got %v", err)
	}
}

func TestWordDropoutHook_IsIdentity(t *testing.T) {
	seq := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	if nn.WordDropoutHook(seq, 0.9) != seq {
		t.Errorf("WordDropoutHook should return its input")
	}
}

func TestConvAndPool(t *testing.T) {
	ps := nn.NewParamSet("cnn", 1)
	cnn, err := nn.NewConvAndPool(ps, "cnn", 3, nn.ConvConfig{NumFilter: 4, MaxWidth: 4, Activation: nn.ReLU})
	if err != nil {
		t.Fatalf("NewConvAndPool: %v", err)
	}

	widths := cnn.Widths()
	expected := []int{3, 4, 5}
	if len(widths) != len(expected) {
		t.Fatalf("Expected widths %v, got %v", expected, widths)
	}
	for i := range expected {
		if widths[i] != expected[i] {
			t.Fatalf("Expected widths %v, got %v", expected, widths)
		}
	}

	seqs := []*mat.Dense{
		mat.NewDense(5, 3, nil),
		mat.NewDense(5, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1, 1, 1, 1, 0, 0, 0}),
	}
	out, err := cnn.Extract(seqs, nil, false)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	r, c := out.Dims()
	if r != 2 || c != 12 || cnn.OutputDim(3) != 12 {
		t.Errorf("Expected shape [2 12], got [%d %d]", r, c)
	}
	// zero input, zero bias, relu: every pooled feature is zero
	for _, v := range out.RawRowView(0) {
		if v != 0 {
			t.Fatalf("Expected zeros for zero input, got %v", out.RawRowView(0))
		}
	}

	if _, err := nn.NewConvAndPool(ps, "bad", 3, nn.ConvConfig{NumFilter: 4, MaxWidth: 1}); err == nil {
		t.Errorf("Expected error for max_width < 2")
	}
}

func TestCrossEntropy(t *testing.T) {
	logits := mat.NewDense(2, 2, []float64{
		0, 0,
		10, -10,
	})

	loss, err := nn.CrossEntropy(logits, []int{0, 0})
	if err != nil {
		t.Fatalf("CrossEntropy: %v", err)
	}
	expected := (math.Log(2) + math.Log1p(math.Exp(-20))) / 2
	if !almostEqual(loss, expected, 1e-9) {
		t.Errorf("Expected %v, got %v", expected, loss)
	}

	_, err = nn.CrossEntropy(logits, []int{0, 2})
	if !errors.Is(err, nn.ErrLabelOutOfRange) {
		t.Errorf("Expected ErrLabelOutOfRange, got %v", err)
	}
	if _, err := nn.CrossEntropy(logits, []int{0}); err == nil {
		t.Errorf("Expected error for label count mismatch")
	}
}

func TestSoftmaxArgmax(t *testing.T) {
	logits := mat.NewDense(2, 3, []float64{
		1, 3, 2,
		0, -1, -2,
	})

	got := nn.Argmax(logits)
	if got[0] != 1 || got[1] != 0 {
		t.Errorf("Expected [1 0], got %v", got)
	}

	probs := nn.Softmax(logits)
	for i := 0; i < 2; i++ {
		sum := 0.0
		for _, p := range probs.RawRowView(i) {
			sum += p
		}
		if !almostEqual(sum, 1, 1e-12) {
			t.Errorf("Row %d sums to %v", i, sum)
		}
	}
}
