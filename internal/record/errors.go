package record

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrChecksumMismatch = errors.New("checksum mismatch: record file may be corrupted")
	ErrTruncated        = errors.New("truncated record")
	ErrMalformed        = errors.New("malformed example")
	ErrUnknownFormat    = errors.New("unknown record format")
	ErrClosed           = errors.New("sink is closed")
)

// IDRangeError reports a word id outside the vocabulary. It means the
// vocabulary and the encoding disagree and is always fatal.
type IDRangeError struct {
	ID        int64 // offending id
	Position  int   // position in the sequence
	VocabSize int   // size of the vocabulary ids must fall in
}

// Error implements the error interface.
func (e *IDRangeError) Error() string {
	return fmt.Sprintf("word id %d at position %d outside vocabulary of size %d", e.ID, e.Position, e.VocabSize)
}
