package nn

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrIndexOutOfRange is returned when an id falls outside the embedding table.
var ErrIndexOutOfRange = errors.New("index out of range")

// Embedding is a lookup table that maps token ids to dense vectors.
//
// Architecture:
//   - Weight: [NumEmbed, EmbedDim]
//   - Lookup: ids [seq] -> embeddings [seq, EmbedDim]
//
// Example:
//
//	// Vocabulary of 10000 words, embedding dimension 128
//	embed := nn.NewEmbedding(ps, "embedding", 10000, 128)
//	x, err := embed.Lookup([]int{5, 17, 2})
type Embedding struct {
	Weight   *Parameter // [NumEmbed, EmbedDim]
	NumEmbed int        // vocabulary size
	EmbedDim int        // vector size
}

// NewEmbedding creates an Embedding layer registered in ps under name.
//
// Weights are drawn from N(0, 0.1^2).
func NewEmbedding(ps *ParamSet, name string, numEmbeddings, embeddingDim int) *Embedding {
	return &Embedding{
		Weight:   ps.New(name+"/weight", numEmbeddings, embeddingDim, Normal(0.1)),
		NumEmbed: numEmbeddings,
		EmbedDim: embeddingDim,
	}
}

// Lookup returns one row per id.
func (e *Embedding) Lookup(ids []int) (*mat.Dense, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("embedding lookup: empty sequence")
	}
	out := mat.NewDense(len(ids), e.EmbedDim, nil)
	w := e.Weight.Value()
	for i, id := range ids {
		if id < 0 || id >= e.NumEmbed {
			return nil, fmt.Errorf("embedding lookup at position %d: id %d not in [0,%d): %w",
				i, id, e.NumEmbed, ErrIndexOutOfRange)
		}
		out.SetRow(i, w.RawRowView(id))
	}
	return out, nil
}

// Parameters returns the embedding weight.
func (e *Embedding) Parameters() []*Parameter {
	return []*Parameter{e.Weight}
}
