package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_CountsByResult(t *testing.T) {
	Init(nil, nil)
	var rec Recorder

	before := testutil.ToFloat64(sourceFetchTotal.WithLabelValues("inbox", resultError))
	rec.ObserveFetch("inbox", errors.New("timeout"))
	rec.ObserveFetch("inbox", nil)
	if got := testutil.ToFloat64(sourceFetchTotal.WithLabelValues("inbox", resultError)); got != before+1 {
		t.Fatalf("fetch errors = %v, want %v", got, before+1)
	}

	rec.ObserveRecords("inbox", "usage", 0)
	rec.ObserveRecords("inbox", "usage", 48)
	if got := testutil.ToFloat64(sourceRecords.WithLabelValues("inbox", "usage")); got < 48 {
		t.Fatalf("records = %v", got)
	}

	rec.ObserveExport("pdf", nil)
	if got := testutil.ToFloat64(exportTotal.WithLabelValues("pdf", resultSuccess)); got < 1 {
		t.Fatalf("exports = %v", got)
	}
}

func TestSetReportGenerated(t *testing.T) {
	Init(nil, nil)
	at := time.Unix(1700000000, 0)
	SetReportGenerated(at, 13.5)
	if got := testutil.ToFloat64(reportGenerated); got != 1700000000 {
		t.Fatalf("generated = %v", got)
	}
	if got := testutil.ToFloat64(usageAge); got != 13.5 {
		t.Fatalf("usage age = %v", got)
	}
}

func TestStoredRows_WithoutDatabase(t *testing.T) {
	for _, table := range storedTables {
		if got := storedRows(nil, nil, table); got != 0 {
			t.Fatalf("%s rows = %v", table, got)
		}
	}
}
