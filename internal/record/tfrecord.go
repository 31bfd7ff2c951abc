package record

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/crc32"
)

const (
	partialSuffix = ".partial"
	maskDelta     = 0xa282ead8
	headerSize    = 12 // length (8) + length crc (4)
	footerSize    = 4  // data crc
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// maskedCRC is the CRC32-C variant TFRecord stores next to every length and payload.
func maskedCRC(data []byte) uint32 {
	crc := crc32.Checksum(data, castagnoli)
	return ((crc >> 15) | (crc << 17)) + maskDelta
}

// TFRecordWriter appends examples to a TFRecord file.
//
// Data goes to "<path>.partial" and is renamed to path on Close.
type TFRecordWriter struct {
	path      string
	file      *os.File
	buf       *bufio.Writer
	vocabSize int
	count     int
	bytes     int64
	closed    bool
}

// NewTFRecordWriter creates a TFRecord sink. Every example written is
// checked against vocabSize.
func NewTFRecordWriter(path string, vocabSize int) (*TFRecordWriter, error) {
	//nolint:gosec // G304: output path comes from the job configuration
	file, err := os.Create(path + partialSuffix)
	if err != nil {
		return nil, fmt.Errorf("failed to create record file: %w", err)
	}

	return &TFRecordWriter{
		path:      path,
		file:      file,
		buf:       bufio.NewWriter(file),
		vocabSize: vocabSize,
	}, nil
}

// Write validates e and appends it as one framed record.
func (w *TFRecordWriter) Write(e *Example) error {
	if w.closed {
		return ErrClosed
	}
	if err := e.Validate(w.vocabSize); err != nil {
		return err
	}
	if err := writeFrame(w.buf, Marshal(e)); err != nil {
		return fmt.Errorf("failed to write record %d: %w", w.count, err)
	}
	w.count++
	return nil
}

func writeFrame(w io.Writer, data []byte) error {
	var header [headerSize]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(len(data)))
	binary.LittleEndian.PutUint32(header[8:], maskedCRC(header[:8]))

	var footer [footerSize]byte
	binary.LittleEndian.PutUint32(footer[:], maskedCRC(data))

	for _, chunk := range [][]byte{header[:], data, footer[:]} {
		if _, err := w.Write(chunk); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of examples written so far.
func (w *TFRecordWriter) Count() int {
	return w.count
}

// Bytes returns the size of the finished file. It is only set after Close.
func (w *TFRecordWriter) Bytes() int64 {
	return w.bytes
}

// Path returns the final file path.
func (w *TFRecordWriter) Path() string {
	return w.path
}

// Close flushes, syncs and moves the file to its final name.
func (w *TFRecordWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.buf.Flush(); err != nil {
		w.discard()
		return fmt.Errorf("failed to flush records: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		w.discard()
		return fmt.Errorf("failed to sync records: %w", err)
	}
	info, err := w.file.Stat()
	if err == nil {
		w.bytes = info.Size()
	}
	if err := w.file.Close(); err != nil {
		_ = os.Remove(w.file.Name())
		return fmt.Errorf("failed to close records: %w", err)
	}
	if err := os.Rename(w.file.Name(), w.path); err != nil {
		return fmt.Errorf("failed to move records into place: %w", err)
	}
	return nil
}

// Abort discards everything written. The final path is left untouched.
func (w *TFRecordWriter) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.discard()
}

func (w *TFRecordWriter) discard() error {
	_ = w.file.Close()
	if err := os.Remove(w.file.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove partial records: %w", err)
	}
	return nil
}

// TFRecordReader reads examples from a TFRecord stream.
type TFRecordReader struct {
	r     *bufio.Reader
	index int
}

// NewTFRecordReader wraps r.
func NewTFRecordReader(r io.Reader) *TFRecordReader {
	return &TFRecordReader{r: bufio.NewReader(r)}
}

// Next returns the next example, or io.EOF after the last one.
func (r *TFRecordReader) Next() (*Example, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r.r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("record %d: %w", r.index, ErrTruncated)
	}
	if binary.LittleEndian.Uint32(header[8:]) != maskedCRC(header[:8]) {
		return nil, fmt.Errorf("record %d length: %w", r.index, ErrChecksumMismatch)
	}

	length := binary.LittleEndian.Uint64(header[:8])
	data := make([]byte, length)
	if _, err := io.ReadFull(r.r, data); err != nil {
		return nil, fmt.Errorf("record %d: %w", r.index, ErrTruncated)
	}
	var footer [footerSize]byte
	if _, err := io.ReadFull(r.r, footer[:]); err != nil {
		return nil, fmt.Errorf("record %d: %w", r.index, ErrTruncated)
	}
	if binary.LittleEndian.Uint32(footer[:]) != maskedCRC(data) {
		return nil, fmt.Errorf("record %d data: %w", r.index, ErrChecksumMismatch)
	}

	e, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("record %d: %w", r.index, err)
	}
	r.index++
	return e, nil
}

// ReadAll reads every example of a TFRecord file.
func ReadAll(path string) ([]*Example, error) {
	//nolint:gosec // G304: record paths come from the job configuration
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open records: %w", err)
	}
	defer f.Close()

	var out []*Example
	r := NewTFRecordReader(f)
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, e)
	}
}
