package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	report "building-energy/internal/report/application"
	tariff "building-energy/internal/tariff/domain"
	timeseries "building-energy/internal/timeseries/domain"
)

// Reports serves stored reports and priced statements.
type Reports interface {
	Latest(ctx context.Context) (*report.Report, error)
	Statement(ctx context.Context, month timeseries.YearMonth) (report.Statement, error)
}

// ExportRecorder counts rendered exports. May be nil.
type ExportRecorder interface {
	ObserveExport(format string, err error)
}

// Handler provides the report endpoints:
//
//	GET /api/v1/report
//	GET /api/v1/report/table.xlsx
//	GET /api/v1/statements/{YYYY-MM}.pdf
//	GET /api/v1/statements/{YYYY-MM}
type Handler struct {
	reports Reports
	metrics ExportRecorder
	logger  *log.Logger
	now     func() time.Time
}

// NewHandler constructs a handler.
func NewHandler(reports Reports, metrics ExportRecorder, logger *log.Logger) (*Handler, error) {
	if reports == nil {
		return nil, errors.New("report handler: nil reports")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{reports: reports, metrics: metrics, logger: logger, now: time.Now}, nil
}

// ServeHTTP dispatches by path.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch {
	case r.URL.Path == "/api/v1/report":
		h.handleReport(w, r)
	case r.URL.Path == "/api/v1/report/table.xlsx":
		h.handleTable(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/statements/"):
		h.handleStatement(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.latest(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rep)
}

func (h *Handler) handleTable(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.latest(w, r)
	if !ok {
		return
	}
	data, err := BuildTableXLSX(rep)
	h.observe("xlsx", err)
	if err != nil {
		h.logger.Printf("report export error: format=xlsx err=%v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="energy-table.xlsx"`)
	_, _ = w.Write(data)
}

func (h *Handler) handleStatement(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/v1/statements/")
	asPDF := strings.HasSuffix(name, ".pdf")
	name = strings.TrimSuffix(name, ".pdf")
	month, err := timeseries.ParseYearMonth(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	stmt, err := h.reports.Statement(r.Context(), month)
	if err != nil {
		h.logger.Printf("statement error: month=%s err=%v", month, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !asPDF {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(statementView(stmt))
		return
	}

	data, err := BuildStatementPDF(stmt, h.now())
	h.observe("pdf", err)
	if err != nil {
		h.logger.Printf("report export error: format=pdf month=%s err=%v", month, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="statement-%s.pdf"`, month))
	_, _ = w.Write(data)
}

func (h *Handler) latest(w http.ResponseWriter, r *http.Request) (*report.Report, bool) {
	rep, err := h.reports.Latest(r.Context())
	if errors.Is(err, report.ErrNoReport) {
		http.Error(w, "no report generated yet", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return rep, true
}

func (h *Handler) observe(format string, err error) {
	if h.metrics != nil {
		h.metrics.ObserveExport(format, err)
	}
}

type statementDayView struct {
	Date                  timeseries.Date `json:"date"`
	ElectricityKWh        float64         `json:"electricityKwh"`
	HeatKWh               float64         `json:"heatKwh"`
	ElectricityDatapoints int             `json:"electricityDatapoints"`
	HeatDatapoints        int             `json:"heatDatapoints"`
	ElectricityCost       report.Value    `json:"electricityCost"`
	HeatCost              report.Value    `json:"heatCost"`
}

type statementJSON struct {
	Month       timeseries.YearMonth `json:"month"`
	Days        []statementDayView   `json:"days"`
	Electricity tariff.Breakdown     `json:"electricity"`
	Heat        tariff.Breakdown     `json:"heat"`
	Total       report.Value         `json:"total"`
}

func statementView(stmt report.Statement) statementJSON {
	days := make([]statementDayView, 0, len(stmt.Days))
	for _, d := range stmt.Days {
		days = append(days, statementDayView{
			Date:                  d.Date,
			ElectricityKWh:        d.ElectricityKWh,
			HeatKWh:               d.HeatKWh,
			ElectricityDatapoints: d.ElectricityDatapoints,
			HeatDatapoints:        d.HeatDatapoints,
			ElectricityCost:       report.Value(d.ElectricityCost),
			HeatCost:              report.Value(d.HeatCost),
		})
	}
	return statementJSON{
		Month:       stmt.Month,
		Days:        days,
		Electricity: stmt.Electricity,
		Heat:        stmt.Heat,
		Total:       report.Value(stmt.Total()),
	}
}
