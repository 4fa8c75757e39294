package influx

import (
	"context"
	"errors"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	report "building-energy/internal/report/application"
	timeseries "building-energy/internal/timeseries/domain"
)

const defaultMeasurement = "energy_hourly"

// PointWriter is the subset of api.WriteAPIBlocking used by HourlyWriter.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// HourlyWriter mirrors the hourly report rows into InfluxDB for Grafana style panels.
type HourlyWriter struct {
	client      influxdb2.Client
	writer      PointWriter
	measurement string
	location    *time.Location
}

// Config holds the InfluxDB connection settings.
type Config struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
}

// NewHourlyWriter connects to InfluxDB.
func NewHourlyWriter(cfg Config, loc *time.Location) (*HourlyWriter, error) {
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, errors.New("influx: url, org and bucket are required")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	var blocking api.WriteAPIBlocking = client.WriteAPIBlocking(cfg.Org, cfg.Bucket)
	w, err := NewHourlyWriterWith(blocking, cfg.Measurement, loc)
	if err != nil {
		client.Close()
		return nil, err
	}
	w.client = client
	return w, nil
}

// NewHourlyWriterWith wraps an existing writer.
func NewHourlyWriterWith(writer PointWriter, measurement string, loc *time.Location) (*HourlyWriter, error) {
	if writer == nil {
		return nil, errors.New("influx: nil writer")
	}
	if measurement == "" {
		measurement = defaultMeasurement
	}
	if loc == nil {
		loc = time.UTC
	}
	return &HourlyWriter{writer: writer, measurement: measurement, location: loc}, nil
}

// Health checks the server.
func (w *HourlyWriter) Health(ctx context.Context) error {
	if w.client == nil {
		return nil
	}
	health, err := w.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("influx health: %w", err)
	}
	if health.Status != "pass" {
		return fmt.Errorf("influx health: status %s", health.Status)
	}
	return nil
}

// Write sends one point per carrier and hour. Unknown values are left out of the point.
func (w *HourlyWriter) Write(ctx context.Context, rep *report.Report) error {
	if rep == nil {
		return errors.New("influx: nil report")
	}
	points := Points(w.measurement, rep.Hourly.Rows, w.location)
	if len(points) == 0 {
		return nil
	}
	if err := w.writer.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

// Close releases the client.
func (w *HourlyWriter) Close() {
	if w.client != nil {
		w.client.Close()
	}
}

// Points converts hourly rows. Rows without usage for a carrier produce no point for it.
func Points(measurement string, rows []report.HourlyRow, loc *time.Location) []*write.Point {
	points := make([]*write.Point, 0, len(rows)*2)
	for _, row := range rows {
		ts := timeseries.DateHour{Date: row.Date, Hour: row.Hour}.Time(loc)
		for _, carrier := range []struct {
			name  timeseries.Carrier
			usage report.Value
		}{
			{timeseries.CarrierElectricity, row.Electricity},
			{timeseries.CarrierHeat, row.Heat},
		} {
			if !carrier.usage.Valid() {
				continue
			}
			fields := map[string]interface{}{"usage_kwh": carrier.usage.Float()}
			if row.Temperature.Valid() {
				fields["temperature"] = row.Temperature.Float()
			}
			if row.Price.Valid() {
				fields["hour_cost"] = row.Price.Float()
			}
			tags := map[string]string{"carrier": string(carrier.name)}
			points = append(points, write.NewPoint(measurement, tags, fields, ts))
		}
	}
	return points
}
