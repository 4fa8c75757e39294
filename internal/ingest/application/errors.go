package application

import "errors"

var (
	// ErrNilSource is returned when a nil source is registered.
	ErrNilSource = errors.New("ingest: nil source")
	// ErrNilDataset is returned when loading into a nil dataset.
	ErrNilDataset = errors.New("ingest: nil dataset")
	// ErrEmptyBatch is returned for an upload without records.
	ErrEmptyBatch = errors.New("ingest: empty batch")
)
