package tariff

import (
	"fmt"

	timeseries "building-energy/internal/timeseries/domain"
)

// SupportMode selects how price support is computed.
type SupportMode string

const (
	SupportMonthly SupportMode = "monthly"
	SupportHourly  SupportMode = "hourly"
)

// RebateMode selects the district heat rebate formula.
type RebateMode string

const (
	RebateFlat   RebateMode = "flat"
	RebateTiered RebateMode = "tiered"
)

// Regime is a dated version of the pricing formula.
type Regime struct {
	Name          string
	EffectiveFrom timeseries.Date
	PriceSupport  SupportMode
	HeatRebate    RebateMode
	GridFixedFee  bool
}

// Regimes is a chronological list of regimes.
type Regimes []Regime

// NewRegimes validates that list is non-empty, named, and strictly chronological.
func NewRegimes(list []Regime) (Regimes, error) {
	if len(list) == 0 {
		return nil, ErrNoRegimes
	}
	for i, regime := range list {
		if regime.Name == "" || regime.EffectiveFrom.IsZero() {
			return nil, fmt.Errorf("%w: #%d", ErrInvalidRegime, i)
		}
		switch regime.PriceSupport {
		case SupportMonthly, SupportHourly:
		default:
			return nil, fmt.Errorf("%w: %s price support %q", ErrInvalidRegime, regime.Name, regime.PriceSupport)
		}
		switch regime.HeatRebate {
		case RebateFlat, RebateTiered:
		default:
			return nil, fmt.Errorf("%w: %s heat rebate %q", ErrInvalidRegime, regime.Name, regime.HeatRebate)
		}
		if i > 0 && !list[i-1].EffectiveFrom.Before(regime.EffectiveFrom) {
			return nil, fmt.Errorf("%w: %s", ErrRegimeOrder, regime.Name)
		}
	}
	out := make(Regimes, len(list))
	copy(out, list)
	return out, nil
}

// At returns the latest regime in effect on d; false before the first one.
func (r Regimes) At(d timeseries.Date) (Regime, bool) {
	for i := len(r) - 1; i >= 0; i-- {
		if !d.Before(r[i].EffectiveFrom) {
			return r[i], true
		}
	}
	return Regime{}, false
}

// Start is the first date with a supported price model.
func (r Regimes) Start() timeseries.Date {
	if len(r) == 0 {
		return timeseries.Date{}
	}
	return r[0].EffectiveFrom
}
