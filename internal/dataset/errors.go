package dataset

import "errors"

var (
	// ErrMissingField is returned when a configured text or label field is
	// absent from a row.
	ErrMissingField = errors.New("missing field")

	// ErrMixedLabels is returned when a label column mixes numbers and strings.
	ErrMixedLabels = errors.New("labels must be all integers or all strings")

	// ErrNoData is returned for a data file without rows.
	ErrNoData = errors.New("no rows in data file")

	// ErrUnknownEncoding is returned for encodings other than "" and "bow".
	ErrUnknownEncoding = errors.New("unknown encoding")
)
