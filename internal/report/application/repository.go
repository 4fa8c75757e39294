package application

import (
	"context"
	"errors"
)

// ErrNoReport is returned by repositories that have not stored a report yet.
var ErrNoReport = errors.New("report: no report stored")

// Repository persists generated reports.
type Repository interface {
	Save(ctx context.Context, runID string, report *Report) error
	Latest(ctx context.Context) (*Report, error)
}
