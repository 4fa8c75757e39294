package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	timeseries "building-energy/internal/timeseries/domain"
)

func TestDatasetStore_MissingFileIsEmpty(t *testing.T) {
	store, err := NewDatasetStore(filepath.Join(t.TempDir(), "data.json"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ds, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(ds.Usage) != 0 || ds.SpotPrices == nil {
		t.Fatalf("expected empty initialized dataset, got %+v", ds)
	}
}

func TestDatasetStore_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDatasetStore(filepath.Join(dir, "nested", "data.json"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	day := timeseries.MustParseDate("2023-05-01")
	ds := timeseries.NewDataset()
	if err := ds.MergeUsage("M1", []timeseries.HourUsage{{Date: day, Hour: 23, Usage: 4.25}}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if err := store.Save(context.Background(), ds); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(ds.Changes()) != 0 {
		t.Fatalf("expected changes cleared after save")
	}

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	records := loaded.Usage["M1"]
	if len(records) != 1 || records[0].Usage != 4.25 || records[0].Date != day {
		t.Fatalf("unexpected records: %+v", records)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "nested"))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the data file, got %d entries", len(entries))
	}
}

func TestDatasetStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	store, _ := NewDatasetStore(path)
	if _, err := store.Load(context.Background()); err == nil {
		t.Fatalf("expected decode error")
	}
}
