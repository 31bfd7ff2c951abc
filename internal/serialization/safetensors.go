package serialization

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/hashicorp/go-multierror"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/mtl/internal/nn"
)

const (
	dtypeF64    = "F64"
	metadataKey = "__metadata__"
	checksumKey = "sha256"
)

// SafeTensorHeader describes one tensor in the header.
type SafeTensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// Checkpoint is a loaded weights file.
type Checkpoint struct {
	Tensors  map[string]*mat.Dense
	Metadata map[string]string
}

// WriteParameters writes params to path. Parameter names must be unique.
// The file appears under its final name only once fully written.
func WriteParameters(path string, params []*nn.Parameter, metadata map[string]string) error {
	byName := make(map[string]*nn.Parameter, len(params))
	names := make([]string, 0, len(params))
	for _, p := range params {
		if err := ValidateTensorName(p.Name()); err != nil {
			return err
		}
		if _, dup := byName[p.Name()]; dup {
			return fmt.Errorf("parameter %q given twice", p.Name())
		}
		byName[p.Name()] = p
		names = append(names, p.Name())
	}
	sort.Strings(names)

	header := make(map[string]any, len(names)+1)
	var data []byte
	for _, name := range names {
		v := byName[name].Value()
		r, c := v.Dims()
		start := int64(len(data))
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				data = binary.LittleEndian.AppendUint64(data, math.Float64bits(v.At(i, j)))
			}
		}
		header[name] = SafeTensorHeader{
			DType:       dtypeF64,
			Shape:       []int64{int64(r), int64(c)},
			DataOffsets: [2]int64{start, int64(len(data))},
		}
	}

	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	sum := sha256.Sum256(data)
	meta[checksumKey] = hex.EncodeToString(sum[:])
	header[metadataKey] = meta

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	tmp := path + ".partial"
	//nolint:gosec // G304: checkpoint path comes from the command line
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := writeFile(f, headerJSON, data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeFile(w io.Writer, headerJSON, data []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}

// ReadParameters loads and validates a weights file.
func ReadParameters(path string) (*Checkpoint, error) {
	//nolint:gosec // G304: checkpoint path comes from the command line
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	ckpt, err := parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ckpt, nil
}

func parse(raw []byte) (*Checkpoint, error) {
	if len(raw) < 8 {
		return nil, fmt.Errorf("truncated header size")
	}
	size := binary.LittleEndian.Uint64(raw[:8])
	if size > MaxHeaderSize || size > uint64(len(raw)-8) {
		return nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, size)
	}
	headerJSON, data := raw[8:8+size], raw[8+size:]

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(headerJSON, &fields); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	ckpt := &Checkpoint{
		Tensors:  make(map[string]*mat.Dense, len(fields)),
		Metadata: map[string]string{},
	}
	headers := make(map[string]SafeTensorHeader, len(fields))
	spans := make([]tensorSpan, 0, len(fields))
	for name, msg := range fields {
		if name == metadataKey {
			if err := json.Unmarshal(msg, &ckpt.Metadata); err != nil {
				return nil, fmt.Errorf("failed to parse metadata: %w", err)
			}
			continue
		}
		if err := ValidateTensorName(name); err != nil {
			return nil, err
		}
		var h SafeTensorHeader
		if err := json.Unmarshal(msg, &h); err != nil {
			return nil, fmt.Errorf("tensor %q: %w", name, err)
		}
		if h.DType != dtypeF64 {
			return nil, fmt.Errorf("%w: tensor %q has %s", ErrUnsupportedDType, name, h.DType)
		}
		if len(h.Shape) != 2 || h.Shape[0] < 1 || h.Shape[1] < 1 {
			return nil, fmt.Errorf("tensor %q: want a non-empty 2-D shape, got %v", name, h.Shape)
		}
		n := h.DataOffsets[1] - h.DataOffsets[0]
		if n != h.Shape[0]*h.Shape[1]*8 {
			return nil, &ValidationError{
				Type:    "size_mismatch",
				Tensor:  name,
				Details: fmt.Sprintf("shape %v needs %d bytes, offsets give %d", h.Shape, h.Shape[0]*h.Shape[1]*8, n),
			}
		}
		headers[name] = h
		spans = append(spans, tensorSpan{Name: name, Offset: h.DataOffsets[0], Size: n})
	}
	if err := validateSpans(spans, int64(len(data))); err != nil {
		return nil, err
	}

	if want, ok := ckpt.Metadata[checksumKey]; ok {
		sum := sha256.Sum256(data)
		if hex.EncodeToString(sum[:]) != want {
			return nil, ErrChecksumMismatch
		}
	}

	for name, h := range headers {
		r, c := int(h.Shape[0]), int(h.Shape[1])
		values := make([]float64, r*c)
		off := h.DataOffsets[0]
		for i := range values {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[off+int64(i)*8:]))
		}
		ckpt.Tensors[name] = mat.NewDense(r, c, values)
	}
	return ckpt, nil
}

// Restore copies checkpoint values into params. Every parameter must be
// present with the same shape; all problems are reported together and no
// parameter is modified unless all of them match.
func (c *Checkpoint) Restore(params []*nn.Parameter) error {
	var errs *multierror.Error
	for _, p := range params {
		v, ok := c.Tensors[p.Name()]
		if !ok {
			errs = multierror.Append(errs, fmt.Errorf("%w: %s", ErrMissingTensor, p.Name()))
			continue
		}
		wr, wc := p.Value().Dims()
		if r, cols := v.Dims(); r != wr || cols != wc {
			errs = multierror.Append(errs, fmt.Errorf("%w: %s is %dx%d, checkpoint has %dx%d", ErrShapeMismatch, p.Name(), wr, wc, r, cols))
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return err
	}
	for _, p := range params {
		p.Value().Copy(c.Tensors[p.Name()])
	}
	return nil
}
