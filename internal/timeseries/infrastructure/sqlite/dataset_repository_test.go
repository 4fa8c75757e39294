package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	timeseries "building-energy/internal/timeseries/domain"
)

func fullDay(d timeseries.Date, usage float64) []timeseries.HourUsage {
	out := make([]timeseries.HourUsage, 0, timeseries.HoursPerDay)
	for hour := 0; hour < timeseries.HoursPerDay; hour++ {
		out = append(out, timeseries.HourUsage{Date: d, Hour: hour, Usage: usage})
	}
	return out
}

func TestDatasetRepository_SaveLoadIncremental(t *testing.T) {
	repo, err := Open(filepath.Join(t.TempDir(), "energy.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer repo.Close()
	ctx := context.Background()

	day := timeseries.MustParseDate("2023-05-01")
	ds := timeseries.NewDataset()
	err = ds.Apply(timeseries.Batch{
		SpotPrices:        []timeseries.HourPrice{{Date: day, Hour: 0, Price: 1100}},
		DailyTemperatures: []timeseries.DayTemperature{{Date: day, MeanTemperature: 7.5}},
		Usage: map[string][]timeseries.HourUsage{
			"M1": append(fullDay(day, 1), fullDay(day.AddDays(1), 2)...),
		},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := repo.Save(ctx, ds); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(ds.Changes()) != 0 {
		t.Fatalf("changes not cleared")
	}

	correction := []timeseries.HourUsage{{Date: day, Hour: 0, Usage: 9, Verified: timeseries.Verified(false)}}
	if err := ds.MergeUsage("M1", correction); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if err := repo.Save(ctx, ds); err != nil {
		t.Fatalf("save correction: %v", err)
	}

	loaded, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	series := loaded.Usage["M1"]
	if len(series) != 1+timeseries.HoursPerDay {
		t.Fatalf("expected %d records, got %d", 1+timeseries.HoursPerDay, len(series))
	}
	if series[0].Usage != 9 || series[0].IsVerified() {
		t.Fatalf("correction not stored: %+v", series[0])
	}
	if series[1].Date != day.AddDays(1) || series[1].Usage != 2 {
		t.Fatalf("other day changed: %+v", series[1])
	}
	if len(loaded.SpotPrices) != 1 || loaded.SpotPrices[0].Price != 1100 {
		t.Fatalf("spot prices = %+v", loaded.SpotPrices)
	}
	if len(loaded.DailyTemperatures) != 1 || loaded.DailyTemperatures[0].MeanTemperature != 7.5 {
		t.Fatalf("daily temperatures = %+v", loaded.DailyTemperatures)
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatalf("expected error")
	}
}
