package model

import (
	"fmt"

	"github.com/born-ml/mtl/internal/encoder"
	"github.com/born-ml/mtl/internal/record"
)

// BatchFromExamples converts decoded records into a batch for inputKey.
func BatchFromExamples(examples []record.Example, inputKey string) (Batch, error) {
	if !encoder.ValidInputKey(inputKey) {
		return Batch{}, fmt.Errorf("%w: %q", encoder.ErrUnknownInputKey, inputKey)
	}

	b := Batch{
		Labels: make([]int, len(examples)),
	}
	b.Input.Lengths = make([]int, len(examples))

	for i, ex := range examples {
		b.Labels[i] = int(ex.Label)
		b.Input.Lengths[i] = unpaddedLength(ex.WordIDs)

		switch inputKey {
		case encoder.InputTokens:
			ids := make([]int, len(ex.WordIDs))
			for j, id := range ex.WordIDs {
				ids[j] = int(id)
			}
			b.Input.Tokens = append(b.Input.Tokens, ids)
		case encoder.InputBOW:
			if ex.BOW == nil {
				return Batch{}, fmt.Errorf("example %d: no bag of words in record", i)
			}
			bow := make([]float64, len(ex.BOW))
			for j, v := range ex.BOW {
				bow[j] = float64(v)
			}
			b.Input.BOW = append(b.Input.BOW, bow)
		}
	}
	return b, nil
}

// unpaddedLength is the position after the last non-padding id, 0 for a
// row of padding only. Reducers treat 0 as the whole sequence.
func unpaddedLength(ids []int64) int {
	for i := len(ids) - 1; i >= 0; i-- {
		if ids[i] != 0 {
			return i + 1
		}
	}
	return 0
}
