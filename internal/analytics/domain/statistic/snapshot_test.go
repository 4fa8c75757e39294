package statistic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	timeseries "building-energy/internal/timeseries/domain"
)

func TestBuildSnapshot_Empty(t *testing.T) {
	snap, err := BuildSnapshot(timeseries.NewDataset())
	require.NoError(t, err)
	assert.False(t, snap.HasUsage())
	_, ok := snap.LastDate()
	assert.False(t, ok)
	_, ok = snap.MonthlySpotPrice(timeseries.NewYearMonth(2023, time.May))
	assert.False(t, ok)
}

func TestBuildSnapshot_NilDataset(t *testing.T) {
	_, err := BuildSnapshot(nil)
	assert.ErrorIs(t, err, ErrNilDataset)
}

func TestBuildSnapshot_Carriers(t *testing.T) {
	day := timeseries.MustParseDate("2023-05-01")
	ds := timeseries.NewDataset()
	require.NoError(t, ds.MergeUsage("M1", []timeseries.HourUsage{{Date: day, Hour: 0, Usage: 10}, {Date: day, Hour: 1, Usage: 2}}))
	require.NoError(t, ds.MergeUsage("M2", []timeseries.HourUsage{{Date: day, Hour: 0, Usage: 5}}))
	require.NoError(t, ds.MergeUsage("Heat", []timeseries.HourUsage{{Date: day.AddDays(2), Hour: 0, Usage: 40}}))

	snap, err := BuildSnapshot(ds, WithHeatMeter("Heat"))
	require.NoError(t, err)

	v, ok := snap.Usage(timeseries.CarrierElectricity, timeseries.DateHour{Date: day, Hour: 0})
	require.True(t, ok)
	assert.Equal(t, 15.0, v)

	v, ok = snap.Usage(timeseries.CarrierHeat, timeseries.DateHour{Date: day.AddDays(2), Hour: 0})
	require.True(t, ok)
	assert.Equal(t, 40.0, v)

	sum, count := snap.DayUsage(timeseries.CarrierElectricity, day)
	assert.Equal(t, 17.0, sum)
	assert.Equal(t, 2, count)

	last, ok := snap.LastDate()
	require.True(t, ok)
	assert.Equal(t, day.AddDays(2), last)
	first, _ := snap.FirstDate()
	assert.Equal(t, day, first)
}

func TestBuildSnapshot_SpotPrices(t *testing.T) {
	may := timeseries.MustParseDate("2023-05-01")
	ds := timeseries.NewDataset()
	require.NoError(t, ds.MergeSpotPrices([]timeseries.HourPrice{
		{Date: may, Hour: 0, Price: 1000},
		{Date: may, Hour: 1, Price: 2000},
		{Date: may.AddDays(10), Hour: 5, Price: 3000},
	}))

	snap, err := BuildSnapshot(ds)
	require.NoError(t, err)

	price, ok := snap.SpotPrice(timeseries.DateHour{Date: may, Hour: 1})
	require.True(t, ok)
	assert.InDelta(t, 2.5, price, 1e-12)

	monthly, ok := snap.MonthlySpotPrice(may.YearMonth())
	require.True(t, ok)
	assert.InDelta(t, 2.5, monthly, 1e-12)

	mean, ok := snap.MeanSpotPrice(may, may)
	require.True(t, ok)
	assert.InDelta(t, 1.875, mean, 1e-12)
}

func TestBuildSnapshot_Temperatures(t *testing.T) {
	day := timeseries.MustParseDate("2023-01-01")
	ds := timeseries.NewDataset()
	require.NoError(t, ds.MergeHourlyTemperatures([]timeseries.HourTemperature{{Date: day, Hour: 3, Temperature: -7.5}}))
	require.NoError(t, ds.MergeDailyTemperatures([]timeseries.DayTemperature{
		{Date: day, MeanTemperature: -4},
		{Date: day.AddDays(1), MeanTemperature: -2},
	}))

	snap, err := BuildSnapshot(ds)
	require.NoError(t, err)

	v, ok := snap.Temperature(timeseries.DateHour{Date: day, Hour: 3})
	require.True(t, ok)
	assert.Equal(t, -7.5, v)

	mean, ok := snap.MeanDailyTemperature([]timeseries.Date{day, day.AddDays(1), day.AddDays(2)})
	require.True(t, ok)
	assert.Equal(t, -3.0, mean)
}

func TestTimeKeys(t *testing.T) {
	day := timeseries.MustParseDate("2023-05-07")
	assert.Equal(t, TimeKey("20230507T09"), HourKey(timeseries.DateHour{Date: day, Hour: 9}))
	assert.Equal(t, TimeKey("20230507"), DayKey(day))
	assert.Equal(t, TimeKey("202305"), MonthKey(day.YearMonth()))

	_, err := NewTimeKey(Granularity("WEEK"), time.Now())
	assert.ErrorIs(t, err, ErrInvalidGranularity)
}
