package influx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	report "building-energy/internal/report/application"
	timeseries "building-energy/internal/timeseries/domain"
)

type recordingWriter struct {
	points []*write.Point
	err    error
}

func (w *recordingWriter) WritePoint(ctx context.Context, point ...*write.Point) error {
	if w.err != nil {
		return w.err
	}
	w.points = append(w.points, point...)
	return nil
}

func hourlyReport() *report.Report {
	d := timeseries.MustParseDate("2023-03-14")
	return &report.Report{Hourly: report.HourlySection{Rows: []report.HourlyRow{
		{Date: d, Hour: 5, Electricity: 10, Heat: 11, Temperature: -2, Price: 4.5},
		{Date: d, Hour: 6, Electricity: 9, Heat: report.Missing(), Temperature: report.Missing(), Price: report.Missing()},
		{Date: d, Hour: 7, Electricity: report.Missing(), Heat: report.Missing(), Temperature: 1, Price: report.Missing()},
	}}}
}

func TestPoints_SkipsMissingUsage(t *testing.T) {
	points := Points("energy_hourly", hourlyReport().Hourly.Rows, time.UTC)
	require.Len(t, points, 3)

	first := points[0]
	assert.Equal(t, "energy_hourly", first.Name())
	assert.Equal(t, time.Date(2023, 3, 14, 5, 0, 0, 0, time.UTC), first.Time())
	require.Len(t, first.TagList(), 1)
	assert.Equal(t, "electricity", first.TagList()[0].Value)

	fields := map[string]interface{}{}
	for _, f := range first.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, 10.0, fields["usage_kwh"])
	assert.Equal(t, -2.0, fields["temperature"])
	assert.Equal(t, 4.5, fields["hour_cost"])

	last := points[2]
	assert.Equal(t, 6, last.Time().Hour())
	assert.Len(t, last.FieldList(), 1)
}

func TestHourlyWriter_Write(t *testing.T) {
	rec := &recordingWriter{}
	w, err := NewHourlyWriterWith(rec, "", time.UTC)
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), hourlyReport()))
	assert.Len(t, rec.points, 3)
	assert.Equal(t, defaultMeasurement, rec.points[0].Name())

	rec.err = errors.New("boom")
	assert.Error(t, w.Write(context.Background(), hourlyReport()))
	assert.Error(t, w.Write(context.Background(), nil))
}

func TestNewHourlyWriter_RequiresSettings(t *testing.T) {
	_, err := NewHourlyWriter(Config{URL: "http://localhost:8086"}, nil)
	assert.Error(t, err)
	_, err = NewHourlyWriterWith(nil, "", nil)
	assert.Error(t, err)
}
