package tariff

import "errors"

var (
	// ErrRateUnavailable is returned when a rate table has no value for a month.
	ErrRateUnavailable = errors.New("tariff: rate unavailable")
	// ErrNoRegimes is returned when a rate card defines no pricing regime.
	ErrNoRegimes = errors.New("tariff: no regimes")
	// ErrRegimeOrder is returned when regimes are not strictly chronological.
	ErrRegimeOrder = errors.New("tariff: regimes out of order")
	// ErrInvalidRegime is returned when a regime has an unknown mode or no name.
	ErrInvalidRegime = errors.New("tariff: invalid regime")
	// ErrInvalidRebateBands is returned when heat rebate bands are not ascending.
	ErrInvalidRebateBands = errors.New("tariff: invalid rebate bands")
	// ErrMissingTable is returned when a rate card lacks a required table.
	ErrMissingTable = errors.New("tariff: missing rate table")
)
