package ratecard

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	tariff "building-energy/internal/tariff/domain"
	timeseries "building-energy/internal/timeseries/domain"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// ErrInvalid is returned for rate card files that cannot be turned into a tariff.RateCard.
var ErrInvalid = errors.New("ratecard: invalid rate card")

type document struct {
	VAT         float64              `yaml:"vat"`
	Electricity electricityDoc       `yaml:"electricity"`
	Heat        heatDoc              `yaml:"heat"`
	Regimes     []regimeDoc          `yaml:"regimes"`
	Tables      map[string]tableDoc  `yaml:"tables"`
	Demand      map[string]demandDoc `yaml:"demand_charge"`
}

type electricityDoc struct {
	FixedAnnual               float64 `yaml:"fixed_annual"`
	MarkupPerKWh              float64 `yaml:"markup_per_kwh"`
	GridFixedMonthly          float64 `yaml:"grid_fixed_monthly"`
	FinancialResultSpotFactor float64 `yaml:"financial_result_spot_factor"`
}

type heatDoc struct {
	FixedAnnual       float64   `yaml:"fixed_annual"`
	AdminMarkupPerKWh float64   `yaml:"admin_markup_per_kwh"`
	NetworkFeePerKWh  float64   `yaml:"network_fee_per_kwh"`
	FlatRebate        float64   `yaml:"flat_rebate"`
	RebateBands       []bandDoc `yaml:"rebate_bands"`
}

type bandDoc struct {
	UpTo    *float64 `yaml:"up_to"`
	Percent float64  `yaml:"percent"`
}

type regimeDoc struct {
	Name          string `yaml:"name"`
	EffectiveFrom string `yaml:"effective_from"`
	PriceSupport  string `yaml:"price_support"`
	HeatRebate    string `yaml:"heat_rebate"`
	GridFixedFee  bool   `yaml:"grid_fixed_fee"`
}

type tableDoc struct {
	// Taxed defaults to true: the rates are ex-VAT and get multiplied on load.
	Taxed    *bool              `yaml:"taxed"`
	Fallback string             `yaml:"fallback"`
	Constant float64            `yaml:"constant"`
	Rates    map[string]float64 `yaml:"rates"`
}

type demandDoc struct {
	KW        float64 `yaml:"kw"`
	RatePerKW float64 `yaml:"rate_per_kw"`
	Estimate  bool    `yaml:"estimate"`
}

// Default returns the embedded rate card.
func Default() (tariff.RateCard, error) {
	return Parse(defaultYAML)
}

// DefaultYAML returns a copy of the embedded rate card source.
func DefaultYAML() []byte {
	return append([]byte(nil), defaultYAML...)
}

// Load reads a rate card file; an empty path selects the embedded default.
func Load(path string) (tariff.RateCard, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return tariff.RateCard{}, fmt.Errorf("read rate card: %w", err)
	}
	card, err := Parse(data)
	if err != nil {
		return tariff.RateCard{}, fmt.Errorf("rate card %s: %w", path, err)
	}
	return card, nil
}

// Parse decodes YAML and applies VAT to every taxed figure.
func Parse(data []byte) (tariff.RateCard, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return tariff.RateCard{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if doc.VAT <= 0 {
		return tariff.RateCard{}, fmt.Errorf("%w: vat must be positive", ErrInvalid)
	}
	vat := doc.VAT

	card := tariff.RateCard{
		ElectricityFixedAnnual:    doc.Electricity.FixedAnnual * vat,
		ElectricityMarkup:         doc.Electricity.MarkupPerKWh * vat,
		GridFixedMonthly:          doc.Electricity.GridFixedMonthly * vat,
		FinancialResultSpotFactor: doc.Electricity.FinancialResultSpotFactor,
		HeatFixedAnnual:           doc.Heat.FixedAnnual * vat,
		HeatAdminMarkup:           doc.Heat.AdminMarkupPerKWh * vat,
		HeatNetworkFee:            doc.Heat.NetworkFeePerKWh * vat,
		HeatFlatRebate:            doc.Heat.FlatRebate,
	}
	for _, band := range doc.Heat.RebateBands {
		upTo := math.Inf(1)
		if band.UpTo != nil {
			upTo = *band.UpTo * vat
		}
		card.HeatRebateBands = append(card.HeatRebateBands, tariff.RebateBand{UpTo: upTo, Percent: band.Percent})
	}

	regimes, err := parseRegimes(doc.Regimes)
	if err != nil {
		return tariff.RateCard{}, err
	}
	card.Regimes = regimes

	tables := map[string]**tariff.RateTable{
		"support_threshold":      &card.SupportThreshold,
		"support_percent":        &card.SupportPercent,
		"hourly_support_percent": &card.HourlySupportPercent,
		"financial_result":       &card.FinancialResult,
		"energy_rate":            &card.EnergyRate,
		"consumption_levy":       &card.ConsumptionLevy,
	}
	for name, target := range tables {
		spec, ok := doc.Tables[name]
		if !ok {
			return tariff.RateCard{}, fmt.Errorf("%w: %s", tariff.ErrMissingTable, name)
		}
		table, err := buildTable(name, spec, vat)
		if err != nil {
			return tariff.RateCard{}, err
		}
		*target = table
	}
	for name := range doc.Tables {
		if _, ok := tables[name]; !ok {
			return tariff.RateCard{}, fmt.Errorf("%w: unknown table %s", ErrInvalid, name)
		}
	}

	demand, err := buildDemand(doc.Demand, vat)
	if err != nil {
		return tariff.RateCard{}, err
	}
	card.DemandCharge = demand

	if err := card.Validate(); err != nil {
		return tariff.RateCard{}, err
	}
	return card, nil
}

func parseRegimes(docs []regimeDoc) (tariff.Regimes, error) {
	list := make([]tariff.Regime, 0, len(docs))
	for _, doc := range docs {
		from, err := timeseries.ParseDate(doc.EffectiveFrom)
		if err != nil {
			return nil, fmt.Errorf("%w: regime %s: %v", ErrInvalid, doc.Name, err)
		}
		list = append(list, tariff.Regime{
			Name:          doc.Name,
			EffectiveFrom: from,
			PriceSupport:  tariff.SupportMode(doc.PriceSupport),
			HeatRebate:    tariff.RebateMode(doc.HeatRebate),
			GridFixedFee:  doc.GridFixedFee,
		})
	}
	return tariff.NewRegimes(list)
}

func buildTable(name string, spec tableDoc, vat float64) (*tariff.RateTable, error) {
	rates, err := parseMonths(name, spec.Rates)
	if err != nil {
		return nil, err
	}
	var opts []tariff.RateTableOption
	switch spec.Fallback {
	case "", "unavailable":
	case "zero":
		opts = append(opts, tariff.WithZeroFallback())
	case "constant":
		opts = append(opts, tariff.WithConstantFallback(spec.Constant))
	default:
		return nil, fmt.Errorf("%w: table %s fallback %q", ErrInvalid, name, spec.Fallback)
	}
	table := tariff.NewRateTable(name, rates, opts...)
	if spec.Taxed == nil || *spec.Taxed {
		table = table.Scale(vat)
	}
	return table, nil
}

func buildDemand(entries map[string]demandDoc, vat float64) (*tariff.RateTable, error) {
	rates := make(map[string]float64, len(entries))
	for month, entry := range entries {
		rates[month] = entry.KW * entry.RatePerKW
	}
	months, err := parseMonths("demand_charge", rates)
	if err != nil {
		return nil, err
	}
	return tariff.NewRateTable("demand_charge", months).Scale(vat), nil
}

func parseMonths(name string, rates map[string]float64) (map[timeseries.YearMonth]float64, error) {
	out := make(map[timeseries.YearMonth]float64, len(rates))
	for key, rate := range rates {
		month, err := timeseries.ParseYearMonth(key)
		if err != nil {
			return nil, fmt.Errorf("%w: table %s: %v", ErrInvalid, name, err)
		}
		out[month] = rate
	}
	return out, nil
}
