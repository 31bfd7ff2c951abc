package nn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Initializer fills a new [rows, cols] matrix.
type Initializer func(rows, cols int, rng *rand.Rand) *mat.Dense

// Xavier (Glorot) initialization: U(-sqrt(6/(rows+cols)), sqrt(6/(rows+cols))).
func Xavier(rows, cols int, rng *rand.Rand) *mat.Dense {
	bound := math.Sqrt(6.0 / float64(rows+cols))
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = (rng.Float64()*2.0 - 1.0) * bound
	}
	return mat.NewDense(rows, cols, data)
}

// Normal returns an initializer drawing from N(0, std^2).
func Normal(std float64) Initializer {
	return func(rows, cols int, rng *rand.Rand) *mat.Dense {
		data := make([]float64, rows*cols)
		for i := range data {
			data[i] = rng.NormFloat64() * std
		}
		return mat.NewDense(rows, cols, data)
	}
}

// Zeros fills with zeros. Used for biases.
func Zeros(rows, cols int, _ *rand.Rand) *mat.Dense {
	return mat.NewDense(rows, cols, nil)
}
