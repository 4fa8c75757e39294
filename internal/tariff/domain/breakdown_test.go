package tariff

import (
	"encoding/json"
	"math"
	"testing"

	timeseries "building-energy/internal/timeseries/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakdown_AddTreatsOneSidedNaNAsZero(t *testing.T) {
	a := NewBreakdown(1)
	a.Variable[LabelSpot] = math.NaN()
	a.Static[LabelFixedFee] = 0.5
	b := NewBreakdown(2)
	b.Variable[LabelSpot] = 3
	b.Static[LabelFixedFee] = 0.25

	sum := a.Add(b)
	assert.Equal(t, 3.0, sum.UsageKWh)
	assert.Equal(t, 3.0, sum.Variable[LabelSpot])
	assert.Equal(t, 0.75, sum.Static[LabelFixedFee])
	assert.Equal(t, 3.75, sum.Total())
}

func TestBreakdown_NaNOnBothSidesStays(t *testing.T) {
	a := NewBreakdown(1)
	a.Variable[LabelSpot] = math.NaN()
	b := NewBreakdown(1)
	b.Variable[LabelSpot] = math.NaN()

	sum := Sum(a, b)
	assert.True(t, math.IsNaN(sum.Variable[LabelSpot]))
	assert.True(t, math.IsNaN(sum.Total()))
}

func TestBreakdown_TotalRoundsOnlyAtSum(t *testing.T) {
	b := NewBreakdown(1)
	b.Variable["a"] = 0.004
	b.Variable["b"] = 0.004
	b.Static["c"] = 0.004
	assert.Equal(t, 0.01, b.Total())
	assert.Equal(t, 0.01, b.VariableTotal())
	assert.Equal(t, 0.0, b.StaticTotal())
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 1.24, Round2(1.2449))
	assert.Equal(t, 1.25, Round2(1.245))
	assert.Equal(t, -1.25, Round2(-1.245))
	assert.True(t, math.IsNaN(Round2(math.NaN())))
}

func TestComponents_JSONNull(t *testing.T) {
	b := NewBreakdown(2)
	b.Variable[LabelSpot] = math.NaN()
	b.Static[LabelFixedFee] = 0.5

	raw, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, `{"usageKwh":2,"variableByKwh":{"Electricity: spot price":null},"static":{"Electricity: fixed fee":0.5}}`, string(raw))

	var back Breakdown
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, math.IsNaN(back.Variable[LabelSpot]))
}

func TestRateTable_FallbackPolicies(t *testing.T) {
	jan := ym("2023-01")
	feb := ym("2023-02")
	rates := map[timeseries.YearMonth]float64{jan: 0.5}

	unavailable := NewRateTable("energy_rate", rates)
	v, err := unavailable.Rate(jan)
	require.NoError(t, err)
	assert.Equal(t, 0.5, v)
	_, err = unavailable.Rate(feb)
	assert.ErrorIs(t, err, ErrRateUnavailable)

	zero := NewRateTable("support_percent", rates, WithZeroFallback())
	v, err = zero.Rate(feb)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	constant := NewRateTable("support_threshold", rates, WithConstantFallback(0.7)).Scale(1.25)
	v, err = constant.Rate(feb)
	require.NoError(t, err)
	assert.InDelta(t, 0.875, v, 1e-12)
	v, _ = constant.Rate(jan)
	assert.InDelta(t, 0.625, v, 1e-12)
	assert.Equal(t, FallbackConstant, constant.Policy())
	assert.Equal(t, []timeseries.YearMonth{jan}, constant.Months())

	var missing *RateTable
	_, err = missing.Rate(jan)
	assert.ErrorIs(t, err, ErrRateUnavailable)
}

func TestNewRegimes_Validation(t *testing.T) {
	day := timeseries.MustParseDate("2022-01-01")
	_, err := NewRegimes(nil)
	assert.ErrorIs(t, err, ErrNoRegimes)

	_, err = NewRegimes([]Regime{
		{Name: "b", EffectiveFrom: day.AddDays(10), PriceSupport: SupportMonthly, HeatRebate: RebateFlat},
		{Name: "a", EffectiveFrom: day, PriceSupport: SupportMonthly, HeatRebate: RebateFlat},
	})
	assert.ErrorIs(t, err, ErrRegimeOrder)

	_, err = NewRegimes([]Regime{{Name: "a", EffectiveFrom: day, PriceSupport: "weekly", HeatRebate: RebateFlat}})
	assert.ErrorIs(t, err, ErrInvalidRegime)
}
