package pipeline

import (
	"context"
)

// Sink receives every generated report after the dataset and report were stored.
type Sink interface {
	Name() string
	Publish(ctx context.Context, run Run) error
}

type funcSink struct {
	name string
	fn   func(ctx context.Context, run Run) error
}

// NewSink adapts fn to a Sink.
func NewSink(name string, fn func(ctx context.Context, run Run) error) Sink {
	return funcSink{name: name, fn: fn}
}

func (s funcSink) Name() string { return s.name }

func (s funcSink) Publish(ctx context.Context, run Run) error {
	if s.fn == nil {
		return nil
	}
	return s.fn(ctx, run)
}
