package vocab

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// BasicFreqFile is the name of an untrimmed frequency table used for merging.
const BasicFreqFile = "vocab_freq.json"

// FreqFile returns the frequency table file name for a minimum frequency.
func FreqFile(minFrequency int64) string {
	return "vocab_freq_" + strconv.FormatInt(minFrequency, 10) + ".json"
}

// V2IFile returns the token -> id file name for a minimum frequency.
func V2IFile(minFrequency int64) string {
	return "vocab_v2i_" + strconv.FormatInt(minFrequency, 10) + ".json"
}

// I2VFile returns the id -> token file name for a minimum frequency.
func I2VFile(minFrequency int64) string {
	return "vocab_i2v_" + strconv.FormatInt(minFrequency, 10) + ".json"
}

// freqEntry keeps first-seen order on disk.
type freqEntry struct {
	Token string `json:"token"`
	Count int64  `json:"count"`
}

// SaveFrequencies writes freq to path as an ordered JSON list.
func SaveFrequencies(path string, freq *Frequencies) error {
	entries := make([]freqEntry, 0, freq.Len())
	for _, tok := range freq.order {
		entries = append(entries, freqEntry{Token: tok, Count: freq.counts[tok]})
	}
	return writeJSON(path, entries)
}

// LoadFrequencies reads a table written by SaveFrequencies.
func LoadFrequencies(path string) (*Frequencies, error) {
	var entries []freqEntry
	if err := readJSON(path, &entries); err != nil {
		return nil, err
	}

	freq := NewFrequencies()
	for _, e := range entries {
		if e.Count < 0 {
			return nil, fmt.Errorf("%s: %w: %q", path, ErrNegativeCount, e.Token)
		}
		if freq.Has(e.Token) {
			return nil, fmt.Errorf("%s: %w: %q", path, ErrDuplicateToken, e.Token)
		}
		freq.Add(e.Token, e.Count)
	}
	return freq, nil
}

// LoadAndMerge loads every frequency file and merges them in order.
func LoadAndMerge(paths ...string) (*Frequencies, error) {
	merged := NewFrequencies()
	for _, p := range paths {
		freq, err := LoadFrequencies(p)
		if err != nil {
			return nil, err
		}
		merged = Merge(merged, freq)
	}
	return merged, nil
}

// Save writes the frequency table and both id mappings of t into dir,
// keyed by minFrequency.
func (t *Table) Save(dir string, minFrequency int64) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create vocabulary dir: %w", err)
	}
	if err := SaveFrequencies(filepath.Join(dir, FreqFile(minFrequency)), t.freq); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, V2IFile(minFrequency)), t.v2i); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, I2VFile(minFrequency)), t.i2v)
}

// LoadTable reconstructs a table saved with Save.
func LoadTable(dir string, minFrequency int64) (*Table, error) {
	var i2v []string
	if err := readJSON(filepath.Join(dir, I2VFile(minFrequency)), &i2v); err != nil {
		return nil, err
	}
	var v2i map[string]int64
	if err := readJSON(filepath.Join(dir, V2IFile(minFrequency)), &v2i); err != nil {
		return nil, err
	}
	if len(v2i) != len(i2v) {
		return nil, fmt.Errorf("%w: %d tokens in v2i, %d in i2v", ErrCorruptTable, len(v2i), len(i2v))
	}
	for i, tok := range i2v {
		if v2i[tok] != int64(i) {
			return nil, fmt.Errorf("%w: token %q has id %d in v2i, %d in i2v", ErrCorruptTable, tok, v2i[tok], i)
		}
	}

	freq, err := LoadFrequencies(filepath.Join(dir, FreqFile(minFrequency)))
	if err != nil {
		return nil, err
	}
	return fromMapping(i2v, freq)
}

// writeJSON writes v to a temporary file and renames it into place, so a
// reader never sees a partially written vocabulary.
func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	//nolint:gosec // G304: vocabulary paths come from the job configuration
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissingVocab, path)
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
