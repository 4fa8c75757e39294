package tariff

import (
	"fmt"
	"math"
)

// Cost line labels.
const (
	LabelSpot            = "Electricity: spot price"
	LabelFinancialResult = "Electricity: financial result"
	LabelMarkup          = "Electricity: markup"
	LabelEnergyRate      = "Grid: energy rate"
	LabelConsumptionLevy = "Consumption levy"
	LabelPriceSupport    = "Price support"
	LabelFixedFee        = "Electricity: fixed fee"
	LabelDemandCharge    = "Grid: demand charge"
	LabelGridFixedFee    = "Grid: fixed fee"
	LabelHeatSpot        = "District heat: spot price"
	LabelHeatRebate      = "District heat: rebate"
	LabelHeatAdminMarkup = "District heat: administrative markup"
	LabelHeatNetworkFee  = "District heat: network fee"
	LabelHeatFixedFee    = "District heat: fixed fee"
	LabelUnsupported     = "Unsupported price model"
)

// RebateBand is one price band of the tiered heat rebate. The last band has UpTo = +Inf.
type RebateBand struct {
	UpTo    float64
	Percent float64
}

// RateCard holds every constant and table of the tariff model, tax inclusive.
type RateCard struct {
	ElectricityFixedAnnual float64
	ElectricityMarkup      float64
	GridFixedMonthly       float64

	HeatFixedAnnual float64
	HeatAdminMarkup float64
	HeatNetworkFee  float64
	HeatFlatRebate  float64
	HeatRebateBands []RebateBand

	// FinancialResultSpotFactor estimates the financial result from the monthly
	// average spot price for months without an invoiced figure.
	FinancialResultSpotFactor float64

	SupportThreshold     *RateTable
	SupportPercent       *RateTable
	HourlySupportPercent *RateTable
	FinancialResult      *RateTable
	EnergyRate           *RateTable
	ConsumptionLevy      *RateTable
	DemandCharge         *RateTable

	Regimes Regimes
}

// Validate checks the structural requirements of the card.
func (c RateCard) Validate() error {
	if len(c.Regimes) == 0 {
		return ErrNoRegimes
	}
	tables := map[string]*RateTable{
		"support_threshold":      c.SupportThreshold,
		"support_percent":        c.SupportPercent,
		"hourly_support_percent": c.HourlySupportPercent,
		"financial_result":       c.FinancialResult,
		"energy_rate":            c.EnergyRate,
		"consumption_levy":       c.ConsumptionLevy,
		"demand_charge":          c.DemandCharge,
	}
	for name, table := range tables {
		if table == nil {
			return fmt.Errorf("%w: %s", ErrMissingTable, name)
		}
	}
	if len(c.HeatRebateBands) == 0 {
		return ErrInvalidRebateBands
	}
	lower := 0.0
	for i, band := range c.HeatRebateBands {
		if band.UpTo <= lower {
			return fmt.Errorf("%w: band %d", ErrInvalidRebateBands, i)
		}
		lower = band.UpTo
	}
	if !math.IsInf(lower, 1) {
		return fmt.Errorf("%w: last band must be unbounded", ErrInvalidRebateBands)
	}
	return nil
}
