package split

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/klauspost/compress/gzip"
)

// IndexFile is the name of the optional gzipped split file in a dataset directory.
const IndexFile = "index.json.gz"

// Explicit is a split supplied with the dataset. Valid is optional.
type Explicit struct {
	Train []int  `json:"train"`
	Valid *[]int `json:"valid,omitempty"`
	Test  []int  `json:"test"`
}

// HasValid reports whether the valid split was supplied.
func (e *Explicit) HasValid() bool {
	return e.Valid != nil
}

// LoadExplicit reads a gzipped JSON index file of the form
// {"train": [...], "test": [...], "valid": [...]}.
//
// A missing file is not an error: it returns nil so callers fall back to a
// random split.
func LoadExplicit(path string) (*Explicit, error) {
	//nolint:gosec // G304: path is derived from the dataset directory
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read index %s: %w", path, err)
	}
	defer zr.Close()

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(zr).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode index %s: %w", path, err)
	}
	if raw["train"] == nil || raw["test"] == nil {
		return nil, fmt.Errorf("%s: %w", path, ErrMissingKeys)
	}

	var e Explicit
	if err := json.Unmarshal(raw["train"], &e.Train); err != nil {
		return nil, fmt.Errorf("failed to decode train split: %w", err)
	}
	if err := json.Unmarshal(raw["test"], &e.Test); err != nil {
		return nil, fmt.Errorf("failed to decode test split: %w", err)
	}
	if v, ok := raw["valid"]; ok {
		var valid []int
		if err := json.Unmarshal(v, &valid); err != nil {
			return nil, fmt.Errorf("failed to decode valid split: %w", err)
		}
		e.Valid = &valid
	}
	return &e, nil
}
