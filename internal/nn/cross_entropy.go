package nn

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrLabelOutOfRange is returned when a label is not a valid class index.
var ErrLabelOutOfRange = errors.New("label out of range")

// CrossEntropy computes the mean softmax cross-entropy of logits against
// integer labels.
//
// Uses the log-sum-exp trick:
//
//	loss_i = logsumexp(logits_i) - logits_i[label_i]
func CrossEntropy(logits *mat.Dense, labels []int) (float64, error) {
	rows, classes := logits.Dims()
	if rows != len(labels) {
		return 0, fmt.Errorf("cross entropy: %d rows for %d labels", rows, len(labels))
	}
	if rows == 0 {
		return 0, ErrEmptyBatch
	}

	total := 0.0
	for i, label := range labels {
		if label < 0 || label >= classes {
			return 0, fmt.Errorf("cross entropy row %d: label %d not in [0,%d): %w", i, label, classes, ErrLabelOutOfRange)
		}
		row := logits.RawRowView(i)
		total += floats.LogSumExp(row) - row[label]
	}
	return total / float64(rows), nil
}

// Softmax returns row-wise probabilities.
func Softmax(logits *mat.Dense) *mat.Dense {
	rows, cols := logits.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		row := logits.RawRowView(i)
		lse := floats.LogSumExp(row)
		dst := out.RawRowView(i)
		for j, v := range row {
			dst[j] = math.Exp(v - lse)
		}
	}
	return out
}

// Argmax returns the index of the largest value in each row.
func Argmax(logits *mat.Dense) []int {
	rows, _ := logits.Dims()
	out := make([]int, rows)
	for i := 0; i < rows; i++ {
		out[i] = floats.MaxIdx(logits.RawRowView(i))
	}
	return out
}
