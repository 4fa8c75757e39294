package interfaces

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	report "building-energy/internal/report/application"
	tariff "building-energy/internal/tariff/domain"
	timeseries "building-energy/internal/timeseries/domain"
)

type fakeReports struct {
	latest *report.Report
	stmt   report.Statement
	err    error
}

func (f *fakeReports) Latest(ctx context.Context) (*report.Report, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.latest == nil {
		return nil, report.ErrNoReport
	}
	return f.latest, nil
}

func (f *fakeReports) Save(ctx context.Context, runID string, rep *report.Report) error {
	f.latest = rep
	return nil
}

func (f *fakeReports) Statement(ctx context.Context, month timeseries.YearMonth) (report.Statement, error) {
	if f.err != nil {
		return report.Statement{}, f.err
	}
	stmt := f.stmt
	stmt.Month = month
	return stmt, nil
}

type exportCounter map[string]int

func (c exportCounter) ObserveExport(format string, err error) { c[format]++ }

func breakdown(usage float64, components map[string]float64, unavailable ...string) tariff.Breakdown {
	b := tariff.NewBreakdown(usage)
	for label, v := range components {
		b.Variable[label] = v
	}
	b.Unavailable = unavailable
	return b
}

func sampleReport() *report.Report {
	row := report.TableRow{
		Name:                  "2023",
		Temperature:           1.5,
		SpotPrice:             1.25,
		Electricity:           breakdown(100, map[string]float64{tariff.LabelSpot: 125}),
		Heat:                  breakdown(50, map[string]float64{tariff.LabelHeatSpot: math.NaN()}, tariff.LabelConsumptionLevy),
		ElectricityDatapoints: 24,
		HeatDatapoints:        24,
	}
	return &report.Report{
		GeneratedAt: time.Date(2023, 3, 15, 12, 0, 0, 0, time.UTC),
		Table: report.TableSection{
			Yearly:           []report.TableRow{row},
			Monthly:          []report.TableRow{row},
			LastDays:         []report.TableRow{row, row},
			YearlyToThisDate: report.YearToDateTable{UntilDayIncl: 73, Data: []report.TableRow{row}},
		},
	}
}

func sampleStatement() report.Statement {
	d := timeseries.MustParseDate("2023-03-01")
	return report.Statement{
		Days: []report.StatementDay{
			{Date: d, ElectricityKWh: 240, HeatKWh: 300, ElectricityDatapoints: 24, HeatDatapoints: 24, ElectricityCost: 400.5, HeatCost: math.NaN()},
		},
		Electricity: breakdown(240, map[string]float64{tariff.LabelSpot: 300, tariff.LabelMarkup: 4.8}),
		Heat:        breakdown(300, map[string]float64{tariff.LabelHeatSpot: 375}),
	}
}

func newTestHandler(t *testing.T, reports Reports, counter exportCounter) *Handler {
	t.Helper()
	h, err := NewHandler(reports, counter, nil)
	require.NoError(t, err)
	h.now = func() time.Time { return time.Date(2023, 3, 15, 12, 0, 0, 0, time.UTC) }
	return h
}

func TestHandler_ReportNotGenerated(t *testing.T) {
	h := newTestHandler(t, &fakeReports{}, nil)
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/report", nil))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestHandler_ReportJSON(t *testing.T) {
	h := newTestHandler(t, &fakeReports{latest: sampleReport()}, nil)
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/report", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	for _, key := range []string{"hourly", "daily", "monthly", "et", "prices", "spotprices", "cost", "table"} {
		assert.Contains(t, body, key)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h := newTestHandler(t, &fakeReports{}, nil)
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/report", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, resp.Code)
}

func TestHandler_TableXLSX(t *testing.T) {
	counter := exportCounter{}
	h := newTestHandler(t, &fakeReports{latest: sampleReport()}, counter)
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/report/table.xlsx", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1, counter["xlsx"])

	f, err := excelize.OpenReader(bytes.NewReader(resp.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"last days", "monthly", "yearly", "year to day 73"}, f.GetSheetList())

	rows, err := f.GetRows("last days")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Period", rows[0][0])
	assert.Equal(t, "125", rows[1][4])
	assert.Equal(t, notAvailable, rows[1][7])
}

func TestHandler_StatementPDF(t *testing.T) {
	counter := exportCounter{}
	h := newTestHandler(t, &fakeReports{stmt: sampleStatement()}, counter)
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/statements/2023-03.pdf", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/pdf", resp.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(resp.Body.String(), "%PDF"))
	assert.Equal(t, 1, counter["pdf"])
}

func TestHandler_StatementJSON(t *testing.T) {
	h := newTestHandler(t, &fakeReports{stmt: sampleStatement()}, nil)
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/statements/2023-03", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Month string `json:"month"`
		Total *float64
		Days  []struct {
			ElectricityCost *float64 `json:"electricityCost"`
			HeatCost        *float64 `json:"heatCost"`
		} `json:"days"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "2023-03", body.Month)
	require.NotNil(t, body.Total)
	assert.InDelta(t, 679.8, *body.Total, 1e-9)
	require.Len(t, body.Days, 1)
	assert.NotNil(t, body.Days[0].ElectricityCost)
	assert.Nil(t, body.Days[0].HeatCost)
}

func TestHandler_StatementBadMonth(t *testing.T) {
	h := newTestHandler(t, &fakeReports{}, nil)
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/statements/march.pdf", nil))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandler_StatementError(t *testing.T) {
	h := newTestHandler(t, &fakeReports{err: errors.New("store down")}, nil)
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/statements/2023-03", nil))
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}

func TestStream_SendsLatestAndBroadcasts(t *testing.T) {
	reports := &fakeReports{latest: sampleReport()}
	hub := NewHub(nil)
	server := httptest.NewServer(NewStreamHandler(hub, reports))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readEnvelope(t, conn)
	assert.Equal(t, MessageReport, first.Type)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Publish(context.Background(), "run-1", sampleReport(), true))

	event := readEnvelope(t, conn)
	require.Equal(t, MessageRun, event.Type)
	var run RunEvent
	require.NoError(t, json.Unmarshal(event.Payload, &run))
	assert.Equal(t, "run-1", run.RunID)
	assert.True(t, run.Stale)
	assert.Equal(t, MessageReport, readEnvelope(t, conn).Type)
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(msg, &env))
	return env
}
