package pipeline

import "errors"

var (
	// ErrNilRepository is returned when the runner has no dataset repository.
	ErrNilRepository = errors.New("pipeline: nil dataset repository")
	// ErrNilBuilder is returned when the runner has no report builder.
	ErrNilBuilder = errors.New("pipeline: nil report builder")
	// ErrNilRunner is returned when the scheduler has nothing to run.
	ErrNilRunner = errors.New("pipeline: nil runner")
)
