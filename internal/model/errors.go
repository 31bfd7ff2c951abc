package model

import "errors"

var (
	// ErrDatasetMismatch is returned when two dataset sets that must agree differ.
	ErrDatasetMismatch = errors.New("dataset sets differ")

	// ErrWeightSum is returned when mixing weights do not sum to 1.
	ErrWeightSum = errors.New("weights must sum to 1")

	// ErrUnknownDataset is returned for a dataset the model was not built for.
	ErrUnknownDataset = errors.New("unknown dataset")
)
