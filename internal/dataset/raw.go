package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Files read from a dataset directory.
const (
	DataFile           = "data.json.gz"
	TextFieldNamesFile = "text_field_names"
	LabelFieldNameFile = "label_field_name"
)

// Default field names.
const (
	DefaultTextField  = "text"
	DefaultLabelField = "label"
)

// Raw is the content of a data file.
type Raw struct {
	Texts          []string // text fields joined with a single space (k-1 extra runes for k fields)
	Labels         []int64
	LabelNames     []string // label strings by id; nil for integer labels
	TextFieldNames []string
	LabelFieldName string
}

// NumClasses returns the number of classes: the number of label names, or
// for integer labels the larger of the distinct count and max+1.
func (r *Raw) NumClasses() int {
	if r.LabelNames != nil {
		return len(r.LabelNames)
	}
	distinct := make(map[int64]struct{})
	var maxLabel int64 = -1
	for _, l := range r.Labels {
		distinct[l] = struct{}{}
		if l > maxLabel {
			maxLabel = l
		}
	}
	return max(len(distinct), int(maxLabel)+1)
}

// ResolveFields returns the text and label field names. Explicit values win;
// otherwise text_field_names and label_field_name in dir are read when
// present, and the defaults used when not.
func ResolveFields(dir string, textFields []string, labelField string) ([]string, string, error) {
	if len(textFields) == 0 {
		line, err := firstLine(filepath.Join(dir, TextFieldNamesFile))
		switch {
		case err != nil:
			return nil, "", err
		case line != "":
			textFields = strings.Fields(line)
		default:
			textFields = []string{DefaultTextField}
		}
	}
	if labelField == "" {
		line, err := firstLine(filepath.Join(dir, LabelFieldNameFile))
		switch {
		case err != nil:
			return nil, "", err
		case line != "":
			labelField = line
		default:
			labelField = DefaultLabelField
		}
	}
	return textFields, labelField, nil
}

// firstLine returns the trimmed first line of path, or "" when the file
// does not exist.
func firstLine(path string) (string, error) {
	//nolint:gosec // G304: path is derived from the dataset directory
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Scan()
	return strings.TrimSpace(sc.Text()), sc.Err()
}

// LoadRaw reads DataFile from dir.
//
// The file is a JSON array of row objects or a column mapping
// {"column": {"row": value}}. Text fields that are not strings are used in
// their JSON form. Labels must be all integers or all strings; strings are
// numbered in sorted order.
func LoadRaw(dir string, textFields []string, labelField string) (*Raw, error) {
	textFields, labelField, err := ResolveFields(dir, textFields, labelField)
	if err != nil {
		return nil, err
	}

	rows, err := readRows(filepath.Join(dir, DataFile))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoData)
	}

	raw := &Raw{
		Texts:          make([]string, len(rows)),
		TextFieldNames: textFields,
		LabelFieldName: labelField,
	}
	labels := make([]json.RawMessage, len(rows))
	for i, row := range rows {
		parts := make([]string, len(textFields))
		for j, field := range textFields {
			v, ok := row[field]
			if !ok {
				return nil, fmt.Errorf("row %d: %w: text field %q", i, ErrMissingField, field)
			}
			parts[j] = scalarString(v)
		}
		raw.Texts[i] = strings.Join(parts, " ")

		v, ok := row[labelField]
		if !ok {
			return nil, fmt.Errorf("row %d: %w: label field %q", i, ErrMissingField, labelField)
		}
		labels[i] = v
	}

	raw.Labels, raw.LabelNames, err = decodeLabels(labels)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func readRows(path string) ([]map[string]json.RawMessage, error) {
	//nolint:gosec // G304: path is derived from the dataset directory
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	defer zr.Close()

	var doc json.RawMessage
	if err := json.NewDecoder(zr).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	doc = bytes.TrimSpace(doc)
	if len(doc) > 0 && doc[0] == '[' {
		var rows []map[string]json.RawMessage
		if err := json.Unmarshal(doc, &rows); err != nil {
			return nil, fmt.Errorf("failed to decode rows of %s: %w", path, err)
		}
		return rows, nil
	}

	var columns map[string]map[string]json.RawMessage
	if err := json.Unmarshal(doc, &columns); err != nil {
		return nil, fmt.Errorf("failed to decode columns of %s: %w", path, err)
	}
	return pivot(columns)
}

// pivot turns {"column": {"row": value}} into rows ordered by numeric row key.
func pivot(columns map[string]map[string]json.RawMessage) ([]map[string]json.RawMessage, error) {
	keys := make(map[string]int)
	for _, col := range columns {
		for k := range col {
			if _, seen := keys[k]; seen {
				continue
			}
			n, err := strconv.Atoi(k)
			if err != nil {
				return nil, fmt.Errorf("row key %q is not an integer", k)
			}
			keys[k] = n
		}
	}

	order := make([]string, 0, len(keys))
	for k := range keys {
		order = append(order, k)
	}
	sort.Slice(order, func(i, j int) bool { return keys[order[i]] < keys[order[j]] })

	rows := make([]map[string]json.RawMessage, len(order))
	for i, k := range order {
		row := make(map[string]json.RawMessage, len(columns))
		for name, col := range columns {
			if v, ok := col[k]; ok {
				row[name] = v
			}
		}
		rows[i] = row
	}
	return rows, nil
}

func scalarString(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(v))
}

func decodeLabels(values []json.RawMessage) ([]int64, []string, error) {
	ints := make([]int64, len(values))
	strs := make([]string, len(values))
	numeric, textual := 0, 0

	for i, v := range values {
		var f float64
		if err := json.Unmarshal(v, &f); err == nil {
			if f != math.Trunc(f) || f < 0 {
				return nil, nil, fmt.Errorf("row %d: label %v is not a non-negative integer", i, f)
			}
			ints[i] = int64(f)
			numeric++
			continue
		}
		if err := json.Unmarshal(v, &strs[i]); err != nil {
			return nil, nil, fmt.Errorf("row %d: label %s: %w", i, v, ErrMixedLabels)
		}
		textual++
	}

	switch {
	case textual == 0:
		return ints, nil, nil
	case numeric > 0:
		return nil, nil, ErrMixedLabels
	}

	set := make(map[string]int64)
	for _, s := range strs {
		set[s] = 0
	}
	names := make([]string, 0, len(set))
	for s := range set {
		names = append(names, s)
	}
	sort.Strings(names)
	for i, s := range names {
		set[s] = int64(i)
	}
	for i, s := range strs {
		ints[i] = set[s]
	}
	return ints, names, nil
}
