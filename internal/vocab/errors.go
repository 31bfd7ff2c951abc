package vocab

import "errors"

// Common errors.
var (
	ErrCorruptTable   = errors.New("corrupt vocabulary table")
	ErrMissingVocab   = errors.New("vocabulary file not found")
	ErrNegativeCount  = errors.New("negative token count")
	ErrDuplicateToken = errors.New("duplicate token in frequency file")
)
