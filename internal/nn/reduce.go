package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Reducer pools a [time, dim] sequence into a single row.
//
// Only the first length steps are read. A length outside [1, time] means
// the whole sequence.
type Reducer func(seq *mat.Dense, length int) []float64

var reducers = map[string]Reducer{
	"reduce_mean_over_time":     ReduceMean,
	"reduce_max_over_time":      ReduceMax,
	"reduce_min_over_time":      ReduceMin,
	"reduce_sum_over_time":      ReduceSum,
	"reduce_mean_max_over_time": ReduceMeanMax,
}

// ReducerByName resolves a reducer registered under name.
func ReducerByName(name string) (Reducer, error) {
	r, ok := reducers[name]
	if !ok {
		return nil, fmt.Errorf("unrecognized reducer %q", name)
	}
	return r, nil
}

// ReducerWidth returns how many output columns a reducer produces for an
// input of width dim.
func ReducerWidth(name string, dim int) int {
	if name == "reduce_mean_max_over_time" {
		return 2 * dim
	}
	return dim
}

func steps(seq *mat.Dense, length int) int {
	t, _ := seq.Dims()
	if length <= 0 || length > t {
		return t
	}
	return length
}

// ReduceSum sums over time.
func ReduceSum(seq *mat.Dense, length int) []float64 {
	_, d := seq.Dims()
	out := make([]float64, d)
	for i := 0; i < steps(seq, length); i++ {
		for j, v := range seq.RawRowView(i) {
			out[j] += v
		}
	}
	return out
}

// ReduceMean averages over time.
func ReduceMean(seq *mat.Dense, length int) []float64 {
	out := ReduceSum(seq, length)
	n := float64(steps(seq, length))
	for j := range out {
		out[j] /= n
	}
	return out
}

// ReduceMax takes the element-wise maximum over time.
func ReduceMax(seq *mat.Dense, length int) []float64 {
	return extremum(seq, length, math.Inf(-1), math.Max)
}

// ReduceMin takes the element-wise minimum over time.
func ReduceMin(seq *mat.Dense, length int) []float64 {
	return extremum(seq, length, math.Inf(1), math.Min)
}

// ReduceMeanMax concatenates ReduceMean and ReduceMax.
func ReduceMeanMax(seq *mat.Dense, length int) []float64 {
	return append(ReduceMean(seq, length), ReduceMax(seq, length)...)
}

func extremum(seq *mat.Dense, length int, start float64, pick func(a, b float64) float64) []float64 {
	_, d := seq.Dims()
	out := make([]float64, d)
	for j := range out {
		out[j] = start
	}
	for i := 0; i < steps(seq, length); i++ {
		for j, v := range seq.RawRowView(i) {
			out[j] = pick(out[j], v)
		}
	}
	return out
}
