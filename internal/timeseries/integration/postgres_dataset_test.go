package integration_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	timeseries "building-energy/internal/timeseries/domain"
	timeseriespostgres "building-energy/internal/timeseries/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestDatasetRepository_Postgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	applyMigrations(t, db)

	ctx := context.Background()
	table := "energy_values_it"
	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if _, err := db.ExecContext(ctx, "CREATE TABLE "+table+" (LIKE energy_values INCLUDING ALL)"); err != nil {
		t.Fatalf("create: %v", err)
	}
	defer db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table)

	repo := timeseriespostgres.NewDatasetRepository(db, timeseriespostgres.WithTable(table))

	day := timeseries.MustParseDate("2023-05-01")
	ds := timeseries.NewDataset()
	var usage []timeseries.HourUsage
	for hour := 0; hour < timeseries.HoursPerDay; hour++ {
		usage = append(usage, timeseries.HourUsage{Date: day, Hour: hour, Usage: float64(hour)})
	}
	err = ds.Apply(timeseries.Batch{
		SpotPrices: []timeseries.HourPrice{{Date: day, Hour: 23, Price: 950}},
		Usage:      map[string][]timeseries.HourUsage{timeseries.DefaultHeatMeter: usage},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := repo.Save(ctx, ds); err != nil {
		t.Fatalf("save: %v", err)
	}
	// saving again without changes is a no-op
	if err := repo.Save(ctx, ds); err != nil {
		t.Fatalf("save again: %v", err)
	}

	loaded, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got := loaded.Usage[timeseries.DefaultHeatMeter]
	if len(got) != timeseries.HoursPerDay {
		t.Fatalf("expected 24 records, got %d", len(got))
	}
	if got[23].Usage != 23 || got[23].Date != day {
		t.Fatalf("unexpected last record: %+v", got[23])
	}
	if !timeseries.IsRangeComplete(loaded.SpotPrices, day, day) {
		t.Fatalf("spot prices incomplete after load")
	}
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(projectRoot(t), "migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	sort.Strings(files)
	for _, file := range files {
		body, err := os.ReadFile(file)
		if err != nil {
			t.Fatalf("read %s: %v", file, err)
		}
		if _, err := db.Exec(string(body)); err != nil {
			t.Fatalf("apply %s: %v", filepath.Base(file), err)
		}
	}
}

func projectRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("caller unavailable")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", "..", ".."))
}
