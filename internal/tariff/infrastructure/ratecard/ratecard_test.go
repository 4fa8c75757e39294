package ratecard

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tariff "building-energy/internal/tariff/domain"
	timeseries "building-energy/internal/timeseries/domain"
)

func month(t *testing.T, value string) timeseries.YearMonth {
	t.Helper()
	m, err := timeseries.ParseYearMonth(value)
	if err != nil {
		t.Fatalf("parse month: %v", err)
	}
	return m
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestDefault_AppliesVAT(t *testing.T) {
	card, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if !near(card.ElectricityMarkup, 0.025) {
		t.Fatalf("markup = %v", card.ElectricityMarkup)
	}
	if !near(card.HeatFixedAnnual, 3750) {
		t.Fatalf("heat fixed = %v", card.HeatFixedAnnual)
	}
	if !near(card.FinancialResultSpotFactor, -0.105) {
		t.Fatalf("spot factor = %v", card.FinancialResultSpotFactor)
	}

	energy, err := card.EnergyRate.Rate(month(t, "2022-04"))
	if err != nil || !near(energy, 0.039*1.25) {
		t.Fatalf("energy rate = %v, %v", energy, err)
	}
	demand, err := card.DemandCharge.Rate(month(t, "2022-01"))
	if err != nil || !near(demand, 122*84*1.25) {
		t.Fatalf("demand charge = %v, %v", demand, err)
	}
	threshold, err := card.SupportThreshold.Rate(month(t, "2030-01"))
	if err != nil || !near(threshold, 0.875) {
		t.Fatalf("threshold = %v, %v", threshold, err)
	}
	percent, err := card.SupportPercent.Rate(month(t, "2022-09"))
	if err != nil || percent != 0.9 {
		t.Fatalf("support percent = %v, %v", percent, err)
	}
	if _, err := card.EnergyRate.Rate(month(t, "2021-12")); !errors.Is(err, tariff.ErrRateUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestDefault_RebateBandsAndRegimes(t *testing.T) {
	card, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if len(card.HeatRebateBands) != 3 {
		t.Fatalf("bands = %d", len(card.HeatRebateBands))
	}
	if !near(card.HeatRebateBands[0].UpTo, 1.125) || !near(card.HeatRebateBands[1].UpTo, 3.125) {
		t.Fatalf("bands = %+v", card.HeatRebateBands)
	}
	if !math.IsInf(card.HeatRebateBands[2].UpTo, 1) {
		t.Fatalf("last band bounded: %v", card.HeatRebateBands[2].UpTo)
	}
	if len(card.Regimes) != 4 {
		t.Fatalf("regimes = %d", len(card.Regimes))
	}
	if got := card.Regimes.Start(); got != timeseries.MustParseDate("2022-01-01") {
		t.Fatalf("start = %s", got)
	}
	regime, ok := card.Regimes.At(timeseries.MustParseDate("2023-09-01"))
	if !ok || regime.PriceSupport != tariff.SupportHourly {
		t.Fatalf("regime = %+v", regime)
	}

	engine, err := tariff.NewEngine(card)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	got := engine.HeatRebate(timeseries.MustParseDate("2022-12-01"), 2.5, 1.2)
	if !near(got, -0.10875) {
		t.Fatalf("rebate = %v", got)
	}
}

func TestLoad_EmptyPathUsesDefault(t *testing.T) {
	card, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if card.DemandCharge == nil {
		t.Fatalf("expected demand table")
	}
}

func TestLoad_FileOverride(t *testing.T) {
	src := strings.Replace(string(DefaultYAML()), "markup_per_kwh: 0.02", "markup_per_kwh: 0.04", 1)
	path := filepath.Join(t.TempDir(), "rates.yaml")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	card, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !near(card.ElectricityMarkup, 0.05) {
		t.Fatalf("markup = %v", card.ElectricityMarkup)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]struct {
		src  string
		want error
	}{
		"bad fallback": {
			src:  strings.Replace(string(DefaultYAML()), "fallback: zero", "fallback: maybe", 1),
			want: ErrInvalid,
		},
		"bad month": {
			src:  strings.Replace(string(DefaultYAML()), `"2022-04": 0.039`, `"2022-4x": 0.039`, 1),
			want: ErrInvalid,
		},
		"no vat": {
			src:  strings.Replace(string(DefaultYAML()), "vat: 1.25", "vat: 0", 1),
			want: ErrInvalid,
		},
		"regimes out of order": {
			src:  strings.Replace(string(DefaultYAML()), `effective_from: "2022-07-01"`, `effective_from: "2021-07-01"`, 1),
			want: tariff.ErrRegimeOrder,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(tc.src))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
