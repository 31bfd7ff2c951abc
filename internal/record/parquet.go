package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

// parquetSchema mirrors the TFRecord features.
const parquetSchema = `{
  "Tag": "name=parquet_go_root, repetitiontype=REQUIRED",
  "Fields": [
    {"Tag": "name=label, type=INT64, repetitiontype=REQUIRED"},
    {"Tag": "name=word_id, type=INT64, repetitiontype=REPEATED"},
    {"Tag": "name=old_length, type=INT64, repetitiontype=REQUIRED"},
    {"Tag": "name=new_length, type=INT64, repetitiontype=REQUIRED"},
    {"Tag": "name=bow, type=FLOAT, repetitiontype=REPEATED"}
  ]
}`

// parquetRow is the JSON shape handed to the parquet JSON writer.
type parquetRow struct {
	Label     int64     `json:"label"`
	WordID    []int64   `json:"word_id,omitempty"`
	OldLength int64     `json:"old_length"`
	NewLength int64     `json:"new_length"`
	BOW       []float32 `json:"bow,omitempty"`
}

// ParquetWriter writes examples as Parquet rows, snappy compressed.
type ParquetWriter struct {
	path      string
	file      source.ParquetFile
	pw        *writer.JSONWriter
	vocabSize int
	count     int
	closed    bool
}

// NewParquetWriter creates a Parquet sink. Like TFRecordWriter it writes to
// "<path>.partial" until Close.
func NewParquetWriter(path string, vocabSize int) (*ParquetWriter, error) {
	file, err := local.NewLocalFileWriter(path + partialSuffix)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet file: %w", err)
	}
	pw, err := writer.NewJSONWriter(parquetSchema, file, 4)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	return &ParquetWriter{
		path:      path,
		file:      file,
		pw:        pw,
		vocabSize: vocabSize,
	}, nil
}

// Write validates e and appends it as one row.
func (w *ParquetWriter) Write(e *Example) error {
	if w.closed {
		return ErrClosed
	}
	if err := e.Validate(w.vocabSize); err != nil {
		return err
	}

	row, err := json.Marshal(parquetRow{
		Label:     e.Label,
		WordID:    e.WordIDs,
		OldLength: e.OldLength,
		NewLength: e.NewLength,
		BOW:       e.BOW,
	})
	if err != nil {
		return fmt.Errorf("failed to encode row %d: %w", w.count, err)
	}
	if err := w.pw.Write(string(row)); err != nil {
		return fmt.Errorf("failed to write row %d: %w", w.count, err)
	}
	w.count++
	return nil
}

// Count returns the number of rows written so far.
func (w *ParquetWriter) Count() int {
	return w.count
}

// Path returns the final file path.
func (w *ParquetWriter) Path() string {
	return w.path
}

// Close writes the footer and moves the file to its final name.
func (w *ParquetWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.pw.WriteStop(); err != nil {
		_ = w.file.Close()
		_ = os.Remove(w.path + partialSuffix)
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	if err := w.file.Close(); err != nil {
		_ = os.Remove(w.path + partialSuffix)
		return fmt.Errorf("failed to close parquet file: %w", err)
	}
	if err := os.Rename(w.path+partialSuffix, w.path); err != nil {
		return fmt.Errorf("failed to move parquet file into place: %w", err)
	}
	return nil
}

// Abort discards everything written.
func (w *ParquetWriter) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	_ = w.file.Close()
	if err := os.Remove(w.path + partialSuffix); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove partial parquet file: %w", err)
	}
	return nil
}
