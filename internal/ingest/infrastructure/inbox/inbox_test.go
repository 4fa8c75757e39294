package inbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestInbox_DrainAndCommit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "001-prices.json", `{"nordpool":[{"date":"2023-03-15","hour":0,"price":1000}]}`)
	writeFile(t, dir, "002-usage.json", `{"powerUsage":{"M1":[{"date":"2023-03-15","hour":0,"usage":4.5,"verified":false}]}}`)
	writeFile(t, dir, "003-broken.json", `{"nordpool":[`)
	writeFile(t, dir, "004-dup.json", `{"nordpool":[{"date":"2023-03-15","hour":1,"price":1},{"date":"2023-03-15","hour":1,"price":2}]}`)
	writeFile(t, dir, "notes.txt", `ignored`)

	in, err := New(dir, nil)
	if err != nil {
		t.Fatalf("new inbox: %v", err)
	}
	batches, err := in.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	if got := batches[0].SpotPrices[0].Price; got != 1000 {
		t.Fatalf("price = %v", got)
	}
	usage := batches[1].Usage["M1"]
	if len(usage) != 1 || usage[0].IsVerified() {
		t.Fatalf("usage = %+v", usage)
	}

	for _, name := range []string{"003-broken.json", "004-dup.json"} {
		if !exists(filepath.Join(dir, rejectedDir, name)) {
			t.Fatalf("%s not rejected", name)
		}
	}
	if !exists(filepath.Join(dir, "001-prices.json")) {
		t.Fatalf("drained file moved before commit")
	}

	if err := in.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	for _, name := range []string{"001-prices.json", "002-usage.json"} {
		if !exists(filepath.Join(dir, processedDir, name)) {
			t.Fatalf("%s not processed", name)
		}
	}
	if !exists(filepath.Join(dir, "notes.txt")) {
		t.Fatalf("non json file touched")
	}

	batches, err = in.Drain(context.Background())
	if err != nil {
		t.Fatalf("second drain: %v", err)
	}
	if len(batches) != 0 {
		t.Fatalf("expected empty inbox, got %d batches", len(batches))
	}
}

func TestNew_EmptyDir(t *testing.T) {
	if _, err := New("", nil); err == nil {
		t.Fatalf("expected error")
	}
}
