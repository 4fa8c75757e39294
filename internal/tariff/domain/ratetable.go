package tariff

import (
	"fmt"
	"sort"

	timeseries "building-energy/internal/timeseries/domain"
)

// FallbackPolicy decides what a RateTable returns for months it does not list.
type FallbackPolicy int

const (
	// FallbackUnavailable reports ErrRateUnavailable.
	FallbackUnavailable FallbackPolicy = iota
	// FallbackZero returns 0.
	FallbackZero
	// FallbackConstant returns a fixed value.
	FallbackConstant
)

func (p FallbackPolicy) String() string {
	switch p {
	case FallbackZero:
		return "zero"
	case FallbackConstant:
		return "constant"
	default:
		return "unavailable"
	}
}

// RateTable maps calendar months to a rate.
type RateTable struct {
	name     string
	rates    map[timeseries.YearMonth]float64
	policy   FallbackPolicy
	constant float64
}

// RateTableOption configures a RateTable.
type RateTableOption func(*RateTable)

// WithZeroFallback makes unknown months rate 0.
func WithZeroFallback() RateTableOption {
	return func(t *RateTable) { t.policy = FallbackZero }
}

// WithConstantFallback makes unknown months return value.
func WithConstantFallback(value float64) RateTableOption {
	return func(t *RateTable) {
		t.policy = FallbackConstant
		t.constant = value
	}
}

// NewRateTable builds a table; unknown months are unavailable unless an option says otherwise.
func NewRateTable(name string, rates map[timeseries.YearMonth]float64, opts ...RateTableOption) *RateTable {
	copied := make(map[timeseries.YearMonth]float64, len(rates))
	for month, rate := range rates {
		copied[month] = rate
	}
	table := &RateTable{name: name, rates: copied, policy: FallbackUnavailable}
	for _, opt := range opts {
		opt(table)
	}
	return table
}

// Name identifies the table in errors.
func (t *RateTable) Name() string {
	if t == nil {
		return ""
	}
	return t.name
}

// Policy returns the fallback policy.
func (t *RateTable) Policy() FallbackPolicy {
	if t == nil {
		return FallbackUnavailable
	}
	return t.policy
}

// Rate looks up month, applying the fallback policy.
func (t *RateTable) Rate(month timeseries.YearMonth) (float64, error) {
	if t == nil {
		return 0, fmt.Errorf("%w: nil table %s", ErrRateUnavailable, month)
	}
	if rate, ok := t.rates[month]; ok {
		return rate, nil
	}
	switch t.policy {
	case FallbackZero:
		return 0, nil
	case FallbackConstant:
		return t.constant, nil
	default:
		return 0, fmt.Errorf("%w: %s %s", ErrRateUnavailable, t.name, month)
	}
}

// Has reports whether month is listed explicitly.
func (t *RateTable) Has(month timeseries.YearMonth) bool {
	if t == nil {
		return false
	}
	_, ok := t.rates[month]
	return ok
}

// Scale returns a copy with every rate and the constant fallback multiplied by factor.
func (t *RateTable) Scale(factor float64) *RateTable {
	scaled := make(map[timeseries.YearMonth]float64, len(t.rates))
	for month, rate := range t.rates {
		scaled[month] = rate * factor
	}
	return &RateTable{name: t.name, rates: scaled, policy: t.policy, constant: t.constant * factor}
}

// Months lists the explicit months in order.
func (t *RateTable) Months() []timeseries.YearMonth {
	months := make([]timeseries.YearMonth, 0, len(t.rates))
	for month := range t.rates {
		months = append(months, month)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
	return months
}
