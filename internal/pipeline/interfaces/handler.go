package interfaces

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"building-energy/internal/audit"
	"building-energy/internal/pipeline"
	tariff "building-energy/internal/tariff/domain"
	timeseries "building-energy/internal/timeseries/domain"
)

// Runs triggers and reports pipeline runs.
type Runs interface {
	RunOnce(ctx context.Context) (pipeline.Run, error)
	LastRun() (pipeline.Run, bool)
}

// Handler serves the run and rate card endpoints.
type Handler struct {
	runs        Runs
	card        tariff.RateCard
	loc         *time.Location
	auditLogger audit.Logger
	logger      *log.Logger
	now         func() time.Time
}

// NewHandler constructs a Handler. Rate card months default to the current month in loc.
// auditLogger may be nil.
func NewHandler(runs Runs, card tariff.RateCard, loc *time.Location, auditLogger audit.Logger, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{runs: runs, card: card, loc: loc, auditLogger: auditLogger, logger: logger, now: time.Now}
}

// Register wires routes into mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/runs", h.handleRuns)
	mux.HandleFunc("/api/v1/ratecard", h.handleRateCard)
}

func (h *Handler) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		run, ok := h.runs.LastRun()
		if !ok {
			http.Error(w, "no run yet", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, run)
	case http.MethodPost:
		run, err := h.runs.RunOnce(r.Context())
		h.logAudit(r, run)
		if err != nil {
			h.logger.Printf("run trigger error: run=%s err=%v", run.ID, err)
			writeJSON(w, http.StatusInternalServerError, run)
			return
		}
		writeJSON(w, http.StatusOK, run)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type regimeView struct {
	Name          string          `json:"name"`
	EffectiveFrom timeseries.Date `json:"effectiveFrom"`
	PriceSupport  string          `json:"priceSupport"`
	HeatRebate    string          `json:"heatRebate"`
	GridFixedFee  bool            `json:"gridFixedFee"`
}

type rateCardView struct {
	Month   timeseries.YearMonth `json:"month"`
	Regime  *regimeView          `json:"regime"`
	Regimes []regimeView         `json:"regimes"`
	Rates   map[string]*float64  `json:"rates"`
}

func (h *Handler) logAudit(r *http.Request, run pipeline.Run) {
	if h.auditLogger == nil {
		return
	}
	meta := map[string]any{"stale": run.Stale}
	if run.Error != "" {
		meta["error"] = run.Error
	}
	entry := audit.FromRequest(r, audit.ActionRunTrigger, "run", run.ID, meta)
	if err := h.auditLogger.Log(r.Context(), entry); err != nil {
		h.logger.Printf("run audit error: run=%s err=%v", run.ID, err)
	}
}

// handleRateCard shows the regimes and the monthly rates in effect for ?month=YYYY-MM.
func (h *Handler) handleRateCard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	month := timeseries.DateOf(h.now().In(h.loc)).YearMonth()
	if raw := r.URL.Query().Get("month"); raw != "" {
		parsed, err := timeseries.ParseYearMonth(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		month = parsed
	}

	view := rateCardView{Month: month, Rates: map[string]*float64{}}
	for _, regime := range h.card.Regimes {
		view.Regimes = append(view.Regimes, toRegimeView(regime))
	}
	if regime, ok := h.card.Regimes.At(month.FirstDate()); ok {
		v := toRegimeView(regime)
		view.Regime = &v
	}
	tables := map[string]*tariff.RateTable{
		tariff.LabelEnergyRate:      h.card.EnergyRate,
		tariff.LabelConsumptionLevy: h.card.ConsumptionLevy,
		tariff.LabelDemandCharge:    h.card.DemandCharge,
		tariff.LabelFinancialResult: h.card.FinancialResult,
		"Support threshold":         h.card.SupportThreshold,
		"Support percent":           h.card.SupportPercent,
		"Hourly support percent":    h.card.HourlySupportPercent,
	}
	for label, table := range tables {
		view.Rates[label] = nil
		if table == nil {
			continue
		}
		if rate, err := table.Rate(month); err == nil {
			v := rate
			view.Rates[label] = &v
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func toRegimeView(r tariff.Regime) regimeView {
	return regimeView{
		Name:          r.Name,
		EffectiveFrom: r.EffectiveFrom,
		PriceSupport:  string(r.PriceSupport),
		HeatRebate:    string(r.HeatRebate),
		GridFixedFee:  r.GridFixedFee,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
