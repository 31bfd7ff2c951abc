package encoder

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// DatasetArch selects the embedder and extractor of one dataset.
type DatasetArch struct {
	EmbedFn       string         `yaml:"embed_fn"`
	EmbedKwargs   map[string]any `yaml:"embed_kwargs"`
	ExtractFn     string         `yaml:"extract_fn"`
	ExtractKwargs map[string]any `yaml:"extract_kwargs"`
}

// Architecture is one named entry of an architecture file.
type Architecture struct {
	Name           string
	EmbeddersTied  bool
	ExtractorsTied bool
	Datasets       map[string]DatasetArch
}

// FullyShared reports whether both stages are tied.
func (a *Architecture) FullyShared() bool {
	return a.EmbeddersTied && a.ExtractorsTied
}

// DatasetNames returns the configured datasets in sorted order.
func (a *Architecture) DatasetNames() []string {
	names := make([]string, 0, len(a.Datasets))
	for name := range a.Datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnmarshalYAML reads the tying flags and treats every mapping-valued key
// as a dataset entry. Other scalar keys are ignored.
func (a *Architecture) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: architecture must be a mapping", node.Line)
	}
	a.Datasets = make(map[string]DatasetArch)

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i].Value, node.Content[i+1]
		switch {
		case key == "embedders_tied":
			if err := value.Decode(&a.EmbeddersTied); err != nil {
				return fmt.Errorf("embedders_tied: %w", err)
			}
		case key == "extractors_tied":
			if err := value.Decode(&a.ExtractorsTied); err != nil {
				return fmt.Errorf("extractors_tied: %w", err)
			}
		case value.Kind == yaml.MappingNode:
			var ds DatasetArch
			if err := value.Decode(&ds); err != nil {
				return fmt.Errorf("dataset %s: %w", key, err)
			}
			a.Datasets[key] = ds
		}
	}
	return nil
}

// ParseArchitectures decodes an architecture document (JSON or YAML).
func ParseArchitectures(data []byte) (map[string]*Architecture, error) {
	var archs map[string]*Architecture
	if err := yaml.Unmarshal(data, &archs); err != nil {
		return nil, fmt.Errorf("parse architectures: %w", err)
	}
	for name, arch := range archs {
		if arch == nil {
			return nil, fmt.Errorf("architecture %s is empty", name)
		}
		arch.Name = name
	}
	return archs, nil
}

// LoadArchitectures reads an architecture file.
func LoadArchitectures(path string) (map[string]*Architecture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read architectures: %w", err)
	}
	return ParseArchitectures(data)
}

// Lookup returns the architecture called name.
func Lookup(archs map[string]*Architecture, name string) (*Architecture, error) {
	arch, ok := archs[name]
	if !ok {
		known := make([]string, 0, len(archs))
		for k := range archs {
			known = append(known, k)
		}
		sort.Strings(known)
		return nil, fmt.Errorf("architecture %q not found (have %v)", name, known)
	}
	return arch, nil
}
