package record

import "fmt"

// Record formats.
const (
	FormatTFRecord = "tfrecord"
	FormatParquet  = "parquet"
)

// Sink receives the examples of one split.
type Sink interface {
	// Write validates and appends one example.
	Write(e *Example) error

	// Close finishes the file and publishes it under its final name.
	Close() error

	// Abort discards the partial file.
	Abort() error

	// Count returns the number of examples written.
	Count() int

	// Path returns the final file path.
	Path() string
}

// Extension returns the file extension used for a format.
func Extension(format string) (string, error) {
	switch format {
	case "", FormatTFRecord:
		return ".tf", nil
	case FormatParquet:
		return ".parquet", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Create opens a sink for format at path.
func Create(format, path string, vocabSize int) (Sink, error) {
	switch format {
	case "", FormatTFRecord:
		w, err := NewTFRecordWriter(path, vocabSize)
		if err != nil {
			return nil, err
		}
		return w, nil
	case FormatParquet:
		w, err := NewParquetWriter(path, vocabSize)
		if err != nil {
			return nil, err
		}
		return w, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
