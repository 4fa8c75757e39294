package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"building-energy/internal/audit"
	ingest "building-energy/internal/ingest/application"
	"building-energy/internal/observability/metrics"
	timeseries "building-energy/internal/timeseries/domain"
)

const maxBodyBytes = 16 << 20

// Ingester merges an uploaded batch and persists the dataset.
type Ingester interface {
	Ingest(ctx context.Context, batch timeseries.Batch) (map[timeseries.Series]int, error)
}

// Handler accepts normalized batches on POST /api/v1/ingest.
type Handler struct {
	ingester    Ingester
	auditLogger audit.Logger
	logger      *log.Logger
}

// NewHandler constructs a handler. auditLogger may be nil.
func NewHandler(ingester Ingester, auditLogger audit.Logger, logger *log.Logger) (*Handler, error) {
	if ingester == nil {
		return nil, errors.New("ingest handler: nil ingester")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{ingester: ingester, auditLogger: auditLogger, logger: logger}, nil
}

type ingestResponse struct {
	Records map[timeseries.Series]int `json:"records"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() { metrics.ObserveIngest(result, time.Since(start)) }()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	var batch timeseries.Batch
	if err := json.Unmarshal(body, &batch); err != nil {
		result = metrics.ResultError
		http.Error(w, "invalid batch: "+err.Error(), http.StatusBadRequest)
		return
	}
	if batch.IsEmpty() {
		result = metrics.ResultError
		http.Error(w, ingest.ErrEmptyBatch.Error(), http.StatusBadRequest)
		return
	}

	records, err := h.ingester.Ingest(r.Context(), batch)
	if err != nil {
		result = metrics.ResultError
		h.logger.Printf("ingest error: err=%v", err)
		if isBatchError(err) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.logAudit(r, body, records)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(ingestResponse{Records: records})
}

func (h *Handler) logAudit(r *http.Request, body []byte, records map[timeseries.Series]int) {
	if h.auditLogger == nil {
		return
	}
	meta := make(map[string]any, len(records))
	for series, count := range records {
		meta[string(series)] = count
	}
	entry := audit.FromRequest(r, audit.ActionIngestUpload, "batch", "", meta)
	entry.PayloadDigest = audit.DigestJSON(body)
	if err := h.auditLogger.Log(r.Context(), entry); err != nil {
		h.logger.Printf("ingest audit error: err=%v", err)
	}
}

func isBatchError(err error) bool {
	for _, target := range []error{
		timeseries.ErrDuplicateHour,
		timeseries.ErrDuplicateDate,
		timeseries.ErrInvalidHour,
		timeseries.ErrEmptyMeter,
		timeseries.ErrInvalidDate,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
