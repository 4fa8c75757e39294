package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	ingest "building-energy/internal/ingest/application"
	report "building-energy/internal/report/application"
	"building-energy/internal/report/infrastructure/influx"
	timeseries "building-energy/internal/timeseries/domain"
)

const (
	storeFile     = "file"
	storePostgres = "postgres"
	storeSQLite   = "sqlite"
)

type config struct {
	Store        string `yaml:"store" toml:"store"`
	DataFile     string `yaml:"data_file" toml:"data_file"`
	ReportFile   string `yaml:"report_file" toml:"report_file"`
	DatabaseURL  string `yaml:"database_url" toml:"database_url"`
	SQLitePath   string `yaml:"sqlite_path" toml:"sqlite_path"`
	TimeZone     string `yaml:"time_zone" toml:"time_zone"`
	HeatMeter    string `yaml:"heat_meter" toml:"heat_meter"`
	RateCardFile string `yaml:"rate_card" toml:"rate_card"`
	InboxDir     string `yaml:"inbox_dir" toml:"inbox_dir"`

	HTTPAddr          string `yaml:"http_addr" toml:"http_addr"`
	JWTSecret         string `yaml:"jwt_secret" toml:"jwt_secret"`
	IngestSecret      string `yaml:"ingest_secret" toml:"ingest_secret"`
	IngestSkewSeconds int    `yaml:"ingest_skew_seconds" toml:"ingest_skew_seconds"`

	WebhookURL     string `yaml:"webhook_url" toml:"webhook_url"`
	NotifyTemplate string `yaml:"notify_template" toml:"notify_template"`
	NotifyCooldown string `yaml:"notify_cooldown" toml:"notify_cooldown"`
	StaleAfter     string `yaml:"stale_after" toml:"stale_after"`
	ReportBaseURL  string `yaml:"report_base_url" toml:"report_base_url"`

	Influx influxConfig `yaml:"influx" toml:"influx"`

	ScheduleMinute int  `yaml:"schedule_minute" toml:"schedule_minute"`
	RunOnStart     bool `yaml:"run_on_start" toml:"run_on_start"`

	Loader loaderConfig `yaml:"loader" toml:"loader"`
	Report reportConfig `yaml:"report" toml:"report"`
}

type influxConfig struct {
	URL         string `yaml:"url" toml:"url"`
	Token       string `yaml:"token" toml:"token"`
	Org         string `yaml:"org" toml:"org"`
	Bucket      string `yaml:"bucket" toml:"bucket"`
	Measurement string `yaml:"measurement" toml:"measurement"`
}

type loaderConfig struct {
	DaysBack      int `yaml:"days_back" toml:"days_back"`
	Attempts      int `yaml:"attempts" toml:"attempts"`
	TomorrowAfter int `yaml:"tomorrow_after" toml:"tomorrow_after"`
}

type reportConfig struct {
	HourlyDays             int     `yaml:"hourly_days" toml:"hourly_days"`
	DailyDays              int     `yaml:"daily_days" toml:"daily_days"`
	LastDays               int     `yaml:"last_days" toml:"last_days"`
	PriceDaysBack          int     `yaml:"price_days_back" toml:"price_days_back"`
	ETStart                string  `yaml:"et_start" toml:"et_start"`
	TrendThreshold         float64 `yaml:"trend_threshold" toml:"trend_threshold"`
	FallbackElectricityKWh float64 `yaml:"fallback_electricity_kwh" toml:"fallback_electricity_kwh"`
	FallbackHeatKWh        float64 `yaml:"fallback_heat_kwh" toml:"fallback_heat_kwh"`
}

func defaultConfig() config {
	return config{
		Store:             storeFile,
		DataFile:          "data/energy.json",
		ReportFile:        "data/report.json",
		SQLitePath:        "data/energy.db",
		TimeZone:          "Europe/Oslo",
		HeatMeter:         timeseries.DefaultHeatMeter,
		HTTPAddr:          ":8080",
		IngestSkewSeconds: 300,
		NotifyCooldown:    "6h",
		StaleAfter:        "72h",
		ScheduleMinute:    15,
		Loader: loaderConfig{
			DaysBack:      4,
			Attempts:      2,
			TomorrowAfter: 13,
		},
		Report: reportConfig{
			HourlyDays:             6,
			DailyDays:              60,
			LastDays:               14,
			PriceDaysBack:          2,
			ETStart:                "2021-07-01",
			TrendThreshold:         15,
			FallbackElectricityKWh: 50,
			FallbackHeatKWh:        80,
		},
	}
}

// loadConfig applies defaults, then the config file (when path is set), then the
// environment.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		path = os.Getenv("ENERGY_CONFIG")
	}
	if path != "" {
		if err := decodeConfigFile(path, &cfg); err != nil {
			return config{}, err
		}
	}
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func decodeConfigFile(path string, cfg *config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decode config %s: %w", path, err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *config) {
	cfg.Store = getenvDefault("ENERGY_STORE", cfg.Store)
	cfg.DataFile = getenvDefault("ENERGY_DATA_FILE", cfg.DataFile)
	cfg.ReportFile = getenvDefault("ENERGY_REPORT_FILE", cfg.ReportFile)
	cfg.DatabaseURL = getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", cfg.DatabaseURL))
	cfg.SQLitePath = getenvDefault("ENERGY_SQLITE_PATH", cfg.SQLitePath)
	cfg.TimeZone = getenvDefault("ENERGY_TIME_ZONE", cfg.TimeZone)
	cfg.HeatMeter = getenvDefault("ENERGY_HEAT_METER", cfg.HeatMeter)
	cfg.RateCardFile = getenvDefault("ENERGY_RATE_CARD", cfg.RateCardFile)
	cfg.InboxDir = getenvDefault("ENERGY_INBOX_DIR", cfg.InboxDir)

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.JWTSecret = getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", cfg.JWTSecret))
	cfg.IngestSecret = getenvDefault("INGEST_HMAC_SECRET", cfg.IngestSecret)
	cfg.IngestSkewSeconds = getenvIntDefault("INGEST_MAX_SKEW_SECONDS", cfg.IngestSkewSeconds)

	cfg.WebhookURL = getenvDefault("ALERT_WEBHOOK_URL", cfg.WebhookURL)
	cfg.NotifyTemplate = getenvDefault("ALERT_TEMPLATE", cfg.NotifyTemplate)
	cfg.NotifyCooldown = getenvDefault("ALERT_COOLDOWN", cfg.NotifyCooldown)
	cfg.StaleAfter = getenvDefault("ALERT_STALE_AFTER", cfg.StaleAfter)
	cfg.ReportBaseURL = getenvDefault("REPORT_BASE_URL", cfg.ReportBaseURL)

	cfg.Influx.URL = getenvDefault("INFLUX_URL", cfg.Influx.URL)
	cfg.Influx.Token = getenvDefault("INFLUX_TOKEN", cfg.Influx.Token)
	cfg.Influx.Org = getenvDefault("INFLUX_ORG", cfg.Influx.Org)
	cfg.Influx.Bucket = getenvDefault("INFLUX_BUCKET", cfg.Influx.Bucket)
	cfg.Influx.Measurement = getenvDefault("INFLUX_MEASUREMENT", cfg.Influx.Measurement)

	cfg.ScheduleMinute = getenvIntDefault("ENERGY_SCHEDULE_MINUTE", cfg.ScheduleMinute)
	cfg.RunOnStart = getenvBoolDefault("ENERGY_RUN_ON_START", cfg.RunOnStart)

	cfg.Report.TrendThreshold = getenvFloatDefault("ENERGY_TREND_THRESHOLD", cfg.Report.TrendThreshold)
	cfg.Report.FallbackElectricityKWh = getenvFloatDefault("ENERGY_FALLBACK_ELECTRICITY_KWH", cfg.Report.FallbackElectricityKWh)
	cfg.Report.FallbackHeatKWh = getenvFloatDefault("ENERGY_FALLBACK_HEAT_KWH", cfg.Report.FallbackHeatKWh)
}

func (c config) validate() error {
	switch c.Store {
	case storeFile:
		if c.DataFile == "" {
			return errors.New("config: data_file is required for the file store")
		}
	case storePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL or PG_DSN is required for the postgres store")
		}
	case storeSQLite:
		if c.SQLitePath == "" {
			return errors.New("config: sqlite_path is required for the sqlite store")
		}
	default:
		return fmt.Errorf("config: unknown store %q", c.Store)
	}
	if c.ScheduleMinute < 0 || c.ScheduleMinute > 59 {
		return fmt.Errorf("config: schedule_minute %d out of range", c.ScheduleMinute)
	}
	if _, err := c.location(); err != nil {
		return err
	}
	if _, err := parseDuration(c.StaleAfter); err != nil {
		return fmt.Errorf("config: stale_after: %w", err)
	}
	if _, err := parseDuration(c.NotifyCooldown); err != nil {
		return fmt.Errorf("config: notify_cooldown: %w", err)
	}
	if _, err := c.reportOptions(); err != nil {
		return err
	}
	return nil
}

func (c config) location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("config: time_zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

func (c config) staleAfter() time.Duration {
	d, _ := parseDuration(c.StaleAfter)
	return d
}

func (c config) notifyCooldown() time.Duration {
	d, _ := parseDuration(c.NotifyCooldown)
	return d
}

func (c config) reportOptions() (report.Options, error) {
	loc, err := c.location()
	if err != nil {
		return report.Options{}, err
	}
	opts := report.Options{
		Location:               loc,
		HourlyDays:             c.Report.HourlyDays,
		DailyDays:              c.Report.DailyDays,
		LastDays:               c.Report.LastDays,
		PriceDaysBack:          c.Report.PriceDaysBack,
		TrendThreshold:         c.Report.TrendThreshold,
		FallbackElectricityKWh: c.Report.FallbackElectricityKWh,
		FallbackHeatKWh:        c.Report.FallbackHeatKWh,
	}
	if c.Report.ETStart != "" {
		start, err := timeseries.ParseDate(c.Report.ETStart)
		if err != nil {
			return report.Options{}, fmt.Errorf("config: et_start: %w", err)
		}
		opts.ETStart = start
	}
	return opts, nil
}

func (c config) loaderOptions() (ingest.Options, error) {
	loc, err := c.location()
	if err != nil {
		return ingest.Options{}, err
	}
	return ingest.Options{
		Location:      loc,
		HeatMeter:     c.HeatMeter,
		DaysBack:      c.Loader.DaysBack,
		Attempts:      c.Loader.Attempts,
		TomorrowAfter: c.Loader.TomorrowAfter,
	}, nil
}

func (c config) influxEnabled() bool {
	return c.Influx.URL != "" && c.Influx.Bucket != ""
}

func (c config) influxConfig() influx.Config {
	return influx.Config{
		URL:         c.Influx.URL,
		Token:       c.Influx.Token,
		Org:         c.Influx.Org,
		Bucket:      c.Influx.Bucket,
		Measurement: c.Influx.Measurement,
	}
}

func parseDuration(value string) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	return time.ParseDuration(value)
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
