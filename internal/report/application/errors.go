package application

import "errors"

var (
	// ErrNilEngine is returned when a builder is created without a tariff engine.
	ErrNilEngine = errors.New("report: nil tariff engine")
	// ErrNilSnapshot is returned when a report is requested without a snapshot.
	ErrNilSnapshot = errors.New("report: nil snapshot")
	// ErrInvalidPeriod is returned for a regression period whose end precedes its start.
	ErrInvalidPeriod = errors.New("report: invalid period")
)
