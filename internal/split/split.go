// Package split partitions dataset examples into train, valid and test sets.
//
// Every random choice is driven by a seed so the same inputs always produce
// the same partition.
package split

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// Default ratios and seed.
const (
	TrainRatio = 0.8 // train out of all
	ValidRatio = 0.1 // valid out of all, or valid out of train
	Seed       = 42
)

// Common errors.
var (
	ErrDuplicate   = errors.New("duplicate index in split")
	ErrOutOfRange  = errors.New("split index out of range")
	ErrBadRatio    = errors.New("invalid split ratio")
	ErrMissingKeys = errors.New("index file must contain train and test")
)

// OverlapError reports an index present in two splits.
type OverlapError struct {
	First  string // name of the first split
	Second string // name of the second split
	Index  int    // shared example index
}

// Error implements the error interface.
func (e *OverlapError) Error() string {
	return fmt.Sprintf("splits %s and %s share index %d", e.First, e.Second, e.Index)
}

// Index holds the example indices of the three splits.
type Index struct {
	Train []int `json:"train"`
	Valid []int `json:"valid"`
	Test  []int `json:"test"`
}

// Sizes returns the number of examples in train, valid and test.
func (x Index) Sizes() (train, valid, test int) {
	return len(x.Train), len(x.Valid), len(x.Test)
}

// Validate checks that every split is duplicate-free, that the splits are
// pairwise disjoint and that all indices are in [0, n).
func (x Index) Validate(n int) error {
	owner := make(map[int]string, len(x.Train)+len(x.Valid)+len(x.Test))
	check := func(name string, idx []int) error {
		for _, i := range idx {
			if i < 0 || i >= n {
				return fmt.Errorf("%w: %s contains %d, dataset has %d examples", ErrOutOfRange, name, i, n)
			}
			if prev, ok := owner[i]; ok {
				if prev == name {
					return fmt.Errorf("%w: %s contains %d twice", ErrDuplicate, name, i)
				}
				return &OverlapError{First: prev, Second: name, Index: i}
			}
			owner[i] = name
		}
		return nil
	}

	if err := check("train", x.Train); err != nil {
		return err
	}
	if err := check("valid", x.Valid); err != nil {
		return err
	}
	return check("test", x.Test)
}

// Compute partitions n examples.
//
// With an explicit index that has a valid split, the explicit splits are
// used verbatim. With only train and test given, validRatio of a seeded
// permutation of train is moved to valid. Without an explicit index, a
// seeded permutation of all indices is cut at trainRatio and
// trainRatio+validRatio.
//
// The result is validated before it is returned.
func Compute(n int, explicit *Explicit, trainRatio, validRatio float64, seed uint64) (Index, error) {
	if err := checkRatios(trainRatio, validRatio); err != nil {
		return Index{}, err
	}

	var x Index
	switch {
	case explicit == nil:
		x = Random(n, trainRatio, validRatio, seed)
	case explicit.HasValid():
		x = Index{
			Train: clone(explicit.Train),
			Valid: clone(*explicit.Valid),
			Test:  clone(explicit.Test),
		}
	default:
		train, valid := CarveValid(explicit.Train, validRatio, seed)
		x = Index{Train: train, Valid: valid, Test: clone(explicit.Test)}
	}

	if err := x.Validate(n); err != nil {
		return Index{}, err
	}
	return x, nil
}

// Random cuts a seeded permutation of [0, n) into three splits.
func Random(n int, trainRatio, validRatio float64, seed uint64) Index {
	perm := permutation(identity(n), seed)
	trainEnd := int(trainRatio * float64(n))
	validEnd := int((trainRatio + validRatio) * float64(n))
	if validEnd > n {
		validEnd = n
	}

	return Index{
		Train: perm[:trainEnd],
		Valid: perm[trainEnd:validEnd],
		Test:  perm[validEnd:],
	}
}

// CarveValid moves validRatio of train, chosen by a seeded permutation,
// into a new valid split.
func CarveValid(train []int, validRatio float64, seed uint64) (rest, valid []int) {
	perm := permutation(train, seed)
	cut := int((1.0 - validRatio) * float64(len(perm)))
	return perm[:cut], perm[cut:]
}

// Scale keeps the first ratio fraction of a seeded permutation of idx.
//
// A ratio outside (0, 1) returns idx unchanged.
func Scale(idx []int, ratio float64, seed uint64) []int {
	if ratio <= 0 || ratio >= 1 {
		return idx
	}
	perm := permutation(idx, seed)
	return perm[:int(ratio*float64(len(perm)))]
}

// Scale shrinks all three splits with the same ratio and seed.
func (x Index) Scale(ratio float64, seed uint64) Index {
	return Index{
		Train: Scale(x.Train, ratio, seed),
		Valid: Scale(x.Valid, ratio, seed),
		Test:  Scale(x.Test, ratio, seed),
	}
}

func checkRatios(trainRatio, validRatio float64) error {
	if trainRatio < 0 || validRatio < 0 || trainRatio+validRatio > 1 {
		return fmt.Errorf("%w: train=%v valid=%v", ErrBadRatio, trainRatio, validRatio)
	}
	return nil
}

// permutation returns a shuffled copy of idx. The generator is seeded from
// seed alone so results do not depend on global state.
func permutation(idx []int, seed uint64) []int {
	out := clone(idx)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func clone(idx []int) []int {
	out := make([]int, len(idx))
	copy(out, idx)
	return out
}
