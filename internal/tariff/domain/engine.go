package tariff

import (
	"errors"
	"math"

	timeseries "building-energy/internal/timeseries/domain"
)

// Market supplies tax-inclusive per kWh spot prices. statistic.Snapshot implements it.
type Market interface {
	SpotPrice(k timeseries.DateHour) (float64, bool)
	MonthlySpotPrice(m timeseries.YearMonth) (float64, bool)
}

// Engine prices hours under the regime in effect on each date.
type Engine struct {
	card RateCard
}

// NewEngine validates card and returns an engine over it.
func NewEngine(card RateCard) (*Engine, error) {
	if err := card.Validate(); err != nil {
		return nil, err
	}
	return &Engine{card: card}, nil
}

// Card returns the rate card in use.
func (e *Engine) Card() RateCard { return e.card }

// Regime returns the regime in effect on d; false means the unsupported price model.
func (e *Engine) Regime(d timeseries.Date) (Regime, bool) {
	return e.card.Regimes.At(d)
}

// PriceHour itemizes the cost of usage kWh of carrier c during hour k.
func (e *Engine) PriceHour(m Market, c timeseries.Carrier, k timeseries.DateHour, usage float64) Breakdown {
	regime, ok := e.Regime(k.Date)
	if !ok {
		return unsupported(usage)
	}
	p := pricer{engine: e, market: m, regime: regime, key: k, usage: usage, out: NewBreakdown(usage)}
	switch c {
	case timeseries.CarrierHeat:
		p.heat()
	default:
		p.electricity()
	}
	return p.out
}

// PriceSupport returns the support per kWh for hour k; never negative for known prices.
func (e *Engine) PriceSupport(m Market, k timeseries.DateHour) float64 {
	regime, ok := e.Regime(k.Date)
	if !ok {
		return 0
	}
	spotHour, ok := m.SpotPrice(k)
	if !ok {
		spotHour = math.NaN()
	}
	return e.priceSupport(regime, k.Date.YearMonth(), spotHour, monthlySpot(m, k.Date.YearMonth()))
}

func (e *Engine) priceSupport(regime Regime, month timeseries.YearMonth, spotHour, spotMonth float64) float64 {
	threshold, err := e.card.SupportThreshold.Rate(month)
	if err != nil {
		return math.NaN()
	}
	if regime.PriceSupport == SupportHourly {
		if percent, err := e.card.HourlySupportPercent.Rate(month); err == nil {
			return supportAbove(spotHour, threshold, percent)
		}
	}
	percent, err := e.card.SupportPercent.Rate(month)
	if err != nil {
		return math.NaN()
	}
	return supportAbove(spotMonth, threshold, percent)
}

func supportAbove(price, threshold, percent float64) float64 {
	if percent == 0 {
		return 0
	}
	return math.Max(0, (price-threshold)*percent)
}

// HeatRebate returns the district heat rebate per kWh (zero or negative) for a month
// with the given monthly spot price and price support, using the rule in effect on d.
func (e *Engine) HeatRebate(d timeseries.Date, spotMonth, support float64) float64 {
	regime, ok := e.Regime(d)
	if !ok {
		return math.NaN()
	}
	return e.heatRebate(regime, spotMonth, support)
}

func (e *Engine) heatRebate(regime Regime, spotMonth, support float64) float64 {
	net := spotMonth - support
	if math.IsNaN(net) {
		return net
	}
	if net <= 0 {
		return 0
	}
	if regime.HeatRebate == RebateFlat {
		return -net * e.card.HeatFlatRebate
	}
	var rebate, lower float64
	for _, band := range e.card.HeatRebateBands {
		if net <= lower {
			break
		}
		rebate += (math.Min(net, band.UpTo) - lower) * band.Percent
		lower = band.UpTo
	}
	return -rebate
}

func unsupported(usage float64) Breakdown {
	b := NewBreakdown(usage)
	b.Variable[LabelUnsupported] = math.NaN()
	b.Static[LabelUnsupported] = math.NaN()
	b.Unavailable = []string{LabelUnsupported}
	return b
}

func monthlySpot(m Market, month timeseries.YearMonth) float64 {
	if v, ok := m.MonthlySpotPrice(month); ok {
		return v
	}
	return math.NaN()
}

// pricer accumulates one hour's breakdown.
type pricer struct {
	engine *Engine
	market Market
	regime Regime
	key    timeseries.DateHour
	usage  float64
	out    Breakdown
}

func (p *pricer) month() timeseries.YearMonth { return p.key.Date.YearMonth() }

// variable records a per kWh rate multiplied by usage. Zero usage costs zero even for
// unknown rates.
func (p *pricer) variable(label string, perKWh float64) {
	if p.usage == 0 {
		p.out.Variable[label] = 0
		return
	}
	p.out.Variable[label] = perKWh * p.usage
}

// rate reads a table, marking label unavailable on a miss.
func (p *pricer) rate(label string, table *RateTable) float64 {
	v, err := table.Rate(p.month())
	if err != nil {
		if errors.Is(err, ErrRateUnavailable) {
			p.out.Unavailable = unionLabels(p.out.Unavailable, []string{label})
		}
		return math.NaN()
	}
	return v
}

func (p *pricer) hourlyShare(amount float64, hours int) float64 {
	return amount / float64(hours)
}

// support marks the price support unavailable when its threshold or the percentage
// the regime reads for the month is missing.
func (p *pricer) support(spotHour, spotMonth float64) float64 {
	card := p.engine.card
	month := p.month()
	missing := false
	if _, err := card.SupportThreshold.Rate(month); err != nil {
		missing = true
	}
	hourly := false
	if p.regime.PriceSupport == SupportHourly {
		_, err := card.HourlySupportPercent.Rate(month)
		hourly = err == nil
	}
	if !hourly {
		if _, err := card.SupportPercent.Rate(month); errors.Is(err, ErrRateUnavailable) {
			missing = true
		}
	}
	if missing {
		p.out.Unavailable = unionLabels(p.out.Unavailable, []string{LabelPriceSupport})
	}
	return p.engine.priceSupport(p.regime, month, spotHour, spotMonth)
}

func (p *pricer) electricity() {
	card := p.engine.card
	month := p.month()
	spotMonth := monthlySpot(p.market, month)
	spotHour, ok := p.market.SpotPrice(p.key)
	if !ok {
		spotHour = math.NaN()
	}

	financial, err := card.FinancialResult.Rate(month)
	if err != nil {
		financial = spotMonth * card.FinancialResultSpotFactor
	}

	p.variable(LabelSpot, spotHour)
	p.variable(LabelFinancialResult, financial)
	p.variable(LabelMarkup, card.ElectricityMarkup)
	p.variable(LabelEnergyRate, p.rate(LabelEnergyRate, card.EnergyRate))
	p.variable(LabelConsumptionLevy, p.rate(LabelConsumptionLevy, card.ConsumptionLevy))
	p.variable(LabelPriceSupport, negate(p.support(spotHour, spotMonth)))

	year := p.key.Date.Year
	p.out.Static[LabelFixedFee] = p.hourlyShare(card.ElectricityFixedAnnual, timeseries.DaysInYear(year)*timeseries.HoursPerDay)
	monthHours := month.Days() * timeseries.HoursPerDay
	p.out.Static[LabelDemandCharge] = p.hourlyShare(p.rate(LabelDemandCharge, card.DemandCharge), monthHours)
	if p.regime.GridFixedFee {
		p.out.Static[LabelGridFixedFee] = p.hourlyShare(card.GridFixedMonthly, monthHours)
	}
}

func (p *pricer) heat() {
	card := p.engine.card
	month := p.month()
	spotMonth := monthlySpot(p.market, month)
	support := p.support(spotMonth, spotMonth)

	p.variable(LabelHeatSpot, spotMonth)
	p.variable(LabelPriceSupport, negate(support))
	p.variable(LabelHeatRebate, p.engine.heatRebate(p.regime, spotMonth, support))
	p.variable(LabelHeatAdminMarkup, card.HeatAdminMarkup)
	p.variable(LabelHeatNetworkFee, card.HeatNetworkFee)
	p.variable(LabelConsumptionLevy, p.rate(LabelConsumptionLevy, card.ConsumptionLevy))

	p.out.Static[LabelHeatFixedFee] = p.hourlyShare(card.HeatFixedAnnual, timeseries.DaysInYear(p.key.Date.Year)*timeseries.HoursPerDay)
}

func negate(v float64) float64 {
	if v == 0 {
		return 0
	}
	return -v
}
