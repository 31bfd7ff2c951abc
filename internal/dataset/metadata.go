package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// MetadataFile is written next to the records.
const MetadataFile = "args.json"

// Metadata describes prepared records so consumers can rebuild shapes
// without the raw data.
type Metadata struct {
	NumClasses        int               `json:"num_classes"`
	MaxDocumentLength int               `json:"max_document_length"`
	VocabSize         int               `json:"vocab_size"`
	MinFrequency      int64             `json:"min_frequency"`
	MaxFrequency      int64             `json:"max_frequency"`
	RandomSeed        uint64            `json:"random_seed"`
	TextFieldNames    []string          `json:"text_field_names"`
	LabelFieldName    string            `json:"label_field_name"`
	LabelNames        []string          `json:"label_names,omitempty"`
	Encoding          string            `json:"encoding,omitempty"`
	Padding           bool              `json:"padding"`
	Format            string            `json:"format"`
	Tokenizer         string            `json:"tokenizer"`
	VocabDir          string            `json:"vocab_dir,omitempty"`
	BuildID           string            `json:"build_id"`
	Splits            map[string]int    `json:"splits"`
	Files             map[string]string `json:"files"`
}

// Save writes m to dir/args.json.
func (m *Metadata) Save(dir string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	path := filepath.Join(dir, MetadataFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadMetadata reads dir/args.json.
func LoadMetadata(dir string) (*Metadata, error) {
	//nolint:gosec // G304: path is derived from the dataset directory
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Join(dir, MetadataFile), err)
	}
	return &m, nil
}
