package vocab

import (
	"fmt"
	"sort"

	"github.com/born-ml/mtl/internal/tokenizer"
)

// Reserved ids.
const (
	PadID int64 = 0
	OOVID int64 = 1

	numReserved = 2
)

// Table is a frozen token <-> id mapping with the counts it was built from.
type Table struct {
	v2i    map[string]int64
	i2v    []string
	counts map[string]int64
	freq   *Frequencies
}

// Build counts the given documents and freezes a table from the counts.
//
// Only training documents should be passed so validation and test data do
// not leak into the vocabulary.
func Build(docs [][]string, minFrequency, maxFrequency int64) *Table {
	return FromFrequencies(Count(docs), minFrequency, maxFrequency)
}

// FromFrequencies freezes a table from counts.
//
// Tokens with count <= minFrequency are dropped, as are tokens with
// count >= maxFrequency when maxFrequency >= 0. Remaining tokens get ids
// starting after the reserved ones, by descending count and then first-seen order.
func FromFrequencies(freq *Frequencies, minFrequency, maxFrequency int64) *Table {
	kept := make([]string, 0, freq.Len())
	for _, tok := range freq.order {
		if tok == tokenizer.PAD || tok == tokenizer.OOV {
			continue
		}
		c := freq.counts[tok]
		if c <= minFrequency {
			continue
		}
		if maxFrequency >= 0 && c >= maxFrequency {
			continue
		}
		kept = append(kept, tok)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return freq.counts[kept[i]] > freq.counts[kept[j]]
	})

	t := &Table{
		v2i:    make(map[string]int64, len(kept)+numReserved),
		i2v:    make([]string, 0, len(kept)+numReserved),
		counts: make(map[string]int64, len(kept)),
		freq:   freq.Clone(),
	}
	t.push(tokenizer.PAD)
	t.push(tokenizer.OOV)
	for _, tok := range kept {
		t.push(tok)
		t.counts[tok] = freq.counts[tok]
	}
	return t
}

// fromMapping rebuilds a table from a persisted inverse mapping.
func fromMapping(i2v []string, freq *Frequencies) (*Table, error) {
	if len(i2v) < numReserved || i2v[PadID] != tokenizer.PAD || i2v[OOVID] != tokenizer.OOV {
		return nil, fmt.Errorf("%w: reserved ids missing", ErrCorruptTable)
	}
	if freq == nil {
		freq = NewFrequencies()
	}
	t := &Table{
		v2i:    make(map[string]int64, len(i2v)),
		i2v:    make([]string, 0, len(i2v)),
		counts: make(map[string]int64, len(i2v)),
		freq:   freq.Clone(),
	}
	for _, tok := range i2v {
		if _, dup := t.v2i[tok]; dup {
			return nil, fmt.Errorf("%w: duplicate token %q", ErrCorruptTable, tok)
		}
		t.push(tok)
		if freq.Has(tok) {
			t.counts[tok] = freq.Get(tok)
		}
	}
	return t, nil
}

func (t *Table) push(tok string) {
	t.v2i[tok] = int64(len(t.i2v))
	t.i2v = append(t.i2v, tok)
}

// Size returns the number of ids, reserved ids included.
func (t *Table) Size() int {
	return len(t.i2v)
}

// ID returns the id of token, OOVID when the token is not in the table.
func (t *Table) ID(token string) int64 {
	if id, ok := t.v2i[token]; ok {
		return id
	}
	return OOVID
}

// Contains reports whether token has its own id.
func (t *Table) Contains(token string) bool {
	_, ok := t.v2i[token]
	return ok
}

// Token returns the token for id.
func (t *Table) Token(id int64) (string, bool) {
	if id < 0 || id >= int64(len(t.i2v)) {
		return "", false
	}
	return t.i2v[id], true
}

// Count returns the frequency the token had when the table was frozen.
func (t *Table) Count(token string) int64 {
	return t.counts[token]
}

// Frequencies returns a copy of the counts the table was frozen from,
// including trimmed tokens.
func (t *Table) Frequencies() *Frequencies {
	return t.freq.Clone()
}

// Tokens returns the inverse mapping: the token at index i has id i.
func (t *Table) Tokens() []string {
	out := make([]string, len(t.i2v))
	copy(out, t.i2v)
	return out
}

// Encode maps tokens to ids.
//
// At most maxLength ids are produced when maxLength > 0. When pad is set the
// result is extended with PadID up to maxLength.
func (t *Table) Encode(tokens []string, maxLength int, pad bool) []int64 {
	n := len(tokens)
	if maxLength > 0 && n > maxLength {
		n = maxLength
	}
	size := n
	if pad && maxLength > n {
		size = maxLength
	}

	ids := make([]int64, size)
	for i := 0; i < n; i++ {
		ids[i] = t.ID(tokens[i])
	}
	return ids
}

// Decode maps ids back to tokens. Padding ids are skipped; ids outside the
// table decode to the OOV symbol.
func (t *Table) Decode(ids []int64) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == PadID {
			continue
		}
		tok, ok := t.Token(id)
		if !ok {
			tok = tokenizer.OOV
		}
		out = append(out, tok)
	}
	return out
}
