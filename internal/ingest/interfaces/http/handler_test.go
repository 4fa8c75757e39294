package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"building-energy/internal/audit"
	"building-energy/internal/auth"
	timeseries "building-energy/internal/timeseries/domain"
)

type stubIngester struct {
	batches []timeseries.Batch
	err     error
}

func (s *stubIngester) Ingest(ctx context.Context, batch timeseries.Batch) (map[timeseries.Series]int, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.batches = append(s.batches, batch)
	return batch.Records(), nil
}

func TestHandler_Accepts(t *testing.T) {
	stub := &stubIngester{}
	h, err := NewHandler(stub, nil, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	body := `{"powerUsage":{"M1":[{"date":"2023-03-15","hour":0,"usage":1},{"date":"2023-03-15","hour":1,"usage":2}]}}`
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/ingest", strings.NewReader(body)))
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.Code, resp.Body.String())
	}
	var out ingestResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Records[timeseries.SeriesUsage] != 2 {
		t.Fatalf("records = %+v", out.Records)
	}
	if len(stub.batches) != 1 {
		t.Fatalf("ingested %d batches", len(stub.batches))
	}
}

func TestHandler_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		method string
		body   string
		err    error
		want   int
	}{
		{"method", http.MethodGet, "", nil, http.StatusMethodNotAllowed},
		{"malformed", http.MethodPost, `{"nordpool":`, nil, http.StatusBadRequest},
		{"empty", http.MethodPost, `{}`, nil, http.StatusBadRequest},
		{"duplicate", http.MethodPost, `{"nordpool":[{"date":"2023-03-15","hour":0,"price":1}]}`, fmt.Errorf("spot prices: %w", timeseries.ErrDuplicateHour), http.StatusUnprocessableEntity},
		{"store", http.MethodPost, `{"nordpool":[{"date":"2023-03-15","hour":0,"price":1}]}`, errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, _ := NewHandler(&stubIngester{err: tc.err}, nil, nil)
			resp := httptest.NewRecorder()
			h.ServeHTTP(resp, httptest.NewRequest(tc.method, "/api/v1/ingest", strings.NewReader(tc.body)))
			if resp.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, resp.Code)
			}
		})
	}
}

type recordingAudit struct {
	entries []audit.Entry
}

func (r *recordingAudit) Log(ctx context.Context, entry audit.Entry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func TestHandler_AuditsUpload(t *testing.T) {
	recorder := &recordingAudit{}
	h, err := NewHandler(&stubIngester{}, recorder, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	body := `{"nordpool":[{"date":"2023-03-15","hour":0,"price":1}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", strings.NewReader(body))
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.RoleOperator, "meter-gateway"))
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.Code)
	}
	if len(recorder.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(recorder.entries))
	}
	entry := recorder.entries[0]
	if entry.Action != audit.ActionIngestUpload || entry.Actor != "meter-gateway" || entry.Role != "operator" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.PayloadDigest != audit.DigestJSON([]byte(body)) {
		t.Fatalf("digest mismatch")
	}
}
