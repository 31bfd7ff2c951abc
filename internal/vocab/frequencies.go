package vocab

// Frequencies counts token occurrences and remembers first-seen order.
//
// The zero value is not usable; create one with NewFrequencies.
type Frequencies struct {
	order  []string
	counts map[string]int64
}

// NewFrequencies creates an empty frequency table.
func NewFrequencies() *Frequencies {
	return &Frequencies{counts: make(map[string]int64)}
}

// Count builds a frequency table over the given tokenized documents.
func Count(docs [][]string) *Frequencies {
	f := NewFrequencies()
	for _, doc := range docs {
		for _, tok := range doc {
			f.Add(tok, 1)
		}
	}
	return f
}

// Add increases the count of token by n.
func (f *Frequencies) Add(token string, n int64) {
	if _, ok := f.counts[token]; !ok {
		f.order = append(f.order, token)
	}
	f.counts[token] += n
}

// Get returns the count of token, 0 when absent.
func (f *Frequencies) Get(token string) int64 {
	return f.counts[token]
}

// Has reports whether token was counted.
func (f *Frequencies) Has(token string) bool {
	_, ok := f.counts[token]
	return ok
}

// Len returns the number of distinct tokens.
func (f *Frequencies) Len() int {
	return len(f.order)
}

// Tokens returns the tokens in first-seen order.
func (f *Frequencies) Tokens() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Map returns a copy of the counts.
func (f *Frequencies) Map() map[string]int64 {
	out := make(map[string]int64, len(f.counts))
	for k, v := range f.counts {
		out[k] = v
	}
	return out
}

// Clone returns an independent copy.
func (f *Frequencies) Clone() *Frequencies {
	c := NewFrequencies()
	for _, tok := range f.order {
		c.Add(tok, f.counts[tok])
	}
	return c
}

// Merge returns the union of a and b with summed counts.
//
// Tokens of a come first, followed by tokens only present in b.
// Neither input is modified.
func Merge(a, b *Frequencies) *Frequencies {
	out := a.Clone()
	for _, tok := range b.order {
		out.Add(tok, b.counts[tok])
	}
	return out
}

// MergeAll folds Merge over tables, left to right.
func MergeAll(tables ...*Frequencies) *Frequencies {
	out := NewFrequencies()
	for _, t := range tables {
		out = Merge(out, t)
	}
	return out
}
