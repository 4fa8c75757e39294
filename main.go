package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"building-energy/internal/audit"
	"building-energy/internal/auth"
	ingest "building-energy/internal/ingest/application"
	"building-energy/internal/ingest/infrastructure/inbox"
	ingesthttp "building-energy/internal/ingest/interfaces/http"
	"building-energy/internal/notify"
	"building-energy/internal/observability/metrics"
	"building-energy/internal/pipeline"
	pipelinehttp "building-energy/internal/pipeline/interfaces"
	report "building-energy/internal/report/application"
	reportfile "building-energy/internal/report/infrastructure/file"
	"building-energy/internal/report/infrastructure/influx"
	reportpostgres "building-energy/internal/report/infrastructure/postgres"
	reportinterfaces "building-energy/internal/report/interfaces"
	tariff "building-energy/internal/tariff/domain"
	"building-energy/internal/tariff/infrastructure/ratecard"
	timeseries "building-energy/internal/timeseries/domain"
	datasetfile "building-energy/internal/timeseries/infrastructure/file"
	datasetpostgres "building-energy/internal/timeseries/infrastructure/postgres"
	"building-energy/internal/timeseries/infrastructure/sqlite"
)

var version = "dev"

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	app := &cli.App{
		Name:    "energy",
		Usage:   "building energy store, tariff engine and report",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file (.yaml or .toml)",
				EnvVars: []string{"ENERGY_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			runCommand(logger),
			serveCommand(logger),
			reportCommand(logger),
			importCommand(logger),
			exportCommand(logger),
			tokenCommand(),
			rateCardCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runCommand(logger *log.Logger) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "load missing data, rebuild the report and exit",
		Action: func(c *cli.Context) error {
			svc, err := setup(c, logger)
			if err != nil {
				return err
			}
			defer svc.Close()
			run, err := svc.runner.RunOnce(c.Context)
			if err != nil {
				return err
			}
			logger.Printf("run finished: run=%s requests=%d failed=%d stale=%t", run.ID, run.Load.Requests, len(run.Load.Failed), run.Stale)
			return nil
		},
	}
}

func serveCommand(logger *log.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the HTTP API and run the hourly schedule",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-schedule", Usage: "serve only, never fetch on a timer"},
		},
		Action: func(c *cli.Context) error {
			svc, err := setup(c, logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			if !c.Bool("no-schedule") {
				scheduler, err := pipeline.NewScheduler(svc.runner, svc.cfg.ScheduleMinute, svc.loc, svc.cfg.RunOnStart, logger)
				if err != nil {
					return err
				}
				go scheduler.Start(ctx)
			}

			handler, err := svc.httpHandler()
			if err != nil {
				return err
			}
			server := &http.Server{Addr: svc.cfg.HTTPAddr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
			}()
			logger.Printf("http listening on %s", svc.cfg.HTTPAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
}

func reportCommand(logger *log.Logger) *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "build the report from stored data without fetching",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write to file instead of stdout"},
		},
		Action: func(c *cli.Context) error {
			svc, err := setup(c, logger)
			if err != nil {
				return err
			}
			defer svc.Close()
			rep, err := svc.runner.Report(c.Context)
			if err != nil {
				return err
			}
			body, err := json.MarshalIndent(rep, "", "  ")
			if err != nil {
				return err
			}
			return writeOutput(c.String("out"), append(body, '\n'))
		},
	}
}

func importCommand(logger *log.Logger) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "merge normalized batch files into the store",
		ArgsUsage: "FILE...",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return errors.New("import: at least one batch file is required")
			}
			svc, err := setup(c, logger)
			if err != nil {
				return err
			}
			defer svc.Close()
			for _, path := range c.Args().Slice() {
				batch, err := inbox.Decode(path)
				if err != nil {
					return fmt.Errorf("import %s: %w", path, err)
				}
				records, err := svc.runner.Ingest(c.Context, batch)
				if err != nil {
					return fmt.Errorf("import %s: %w", path, err)
				}
				logger.Printf("import merged: file=%s usage=%d spot=%d", filepath.Base(path), records[timeseries.SeriesUsage], records[timeseries.SeriesSpotPrice])
			}
			return nil
		},
	}
}

func exportCommand(logger *log.Logger) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "render the report tables (xlsx) or a monthly statement (pdf)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "xlsx", Usage: "xlsx or pdf"},
			&cli.StringFlag{Name: "month", Aliases: []string{"m"}, Usage: "statement month YYYY-MM (pdf)"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Required: true, Usage: "output file"},
		},
		Action: func(c *cli.Context) error {
			svc, err := setup(c, logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			var body []byte
			switch strings.ToLower(c.String("format")) {
			case "xlsx":
				rep, err := svc.runner.Report(c.Context)
				if err != nil {
					return err
				}
				body, err = reportinterfaces.BuildTableXLSX(rep)
				if err != nil {
					return err
				}
			case "pdf":
				month, err := timeseries.ParseYearMonth(c.String("month"))
				if err != nil {
					return fmt.Errorf("export: --month: %w", err)
				}
				stmt, err := svc.runner.Statement(c.Context, month)
				if err != nil {
					return err
				}
				body, err = reportinterfaces.BuildStatementPDF(stmt, time.Now().In(svc.loc))
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("export: unknown format %q", c.String("format"))
			}
			return writeOutput(c.String("out"), body)
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "issue an API token",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Value: "cli", Usage: "token subject"},
			&cli.StringFlag{Name: "role", Value: string(auth.RoleViewer), Usage: "viewer, operator or admin"},
			&cli.DurationFlag{Name: "ttl", Value: 30 * 24 * time.Hour, Usage: "token lifetime"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c.String("config"))
			if err != nil {
				return err
			}
			role, err := auth.ParseRole(c.String("role"))
			if err != nil {
				return err
			}
			token, err := auth.IssueJWT([]byte(cfg.JWTSecret), c.String("subject"), role, c.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}

func rateCardCommand() *cli.Command {
	return &cli.Command{
		Name:  "ratecard",
		Usage: "print the embedded default rate card",
		Action: func(c *cli.Context) error {
			_, err := os.Stdout.Write(ratecard.DefaultYAML())
			return err
		},
	}
}

func writeOutput(path string, body []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(body)
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, body, 0o644)
}

// services holds everything one command needs.
type services struct {
	cfg     config
	loc     *time.Location
	logger  *log.Logger
	card    tariff.RateCard
	runner  *pipeline.Runner
	reports report.Repository
	hub     *reportinterfaces.Hub
	closers []io.Closer
	influx  *influx.HourlyWriter
	audit   audit.Logger
}

func (s *services) Close() {
	if s.influx != nil {
		s.influx.Close()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			s.logger.Printf("close error: err=%v", err)
		}
	}
}

func setup(c *cli.Context, logger *log.Logger) (*services, error) {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	loc, err := cfg.location()
	if err != nil {
		return nil, err
	}
	svc := &services{cfg: cfg, loc: loc, logger: logger, hub: reportinterfaces.NewHub(logger)}

	datasets, db, err := openStore(cfg, svc)
	if err != nil {
		svc.Close()
		return nil, err
	}
	metrics.Init(db, logger)
	if db != nil {
		svc.audit = audit.NewRepository(db)
	} else {
		svc.audit = audit.NewLogLogger(logger)
	}

	card, err := ratecard.Load(cfg.RateCardFile)
	if err != nil {
		svc.Close()
		return nil, err
	}
	svc.card = card
	engine, err := tariff.NewEngine(card)
	if err != nil {
		svc.Close()
		return nil, err
	}
	reportOpts, err := cfg.reportOptions()
	if err != nil {
		svc.Close()
		return nil, err
	}
	builder, err := report.NewBuilder(engine, report.WithOptions(reportOpts))
	if err != nil {
		svc.Close()
		return nil, err
	}

	loaderOpts, err := cfg.loaderOptions()
	if err != nil {
		svc.Close()
		return nil, err
	}
	loaderOptions := []ingest.LoaderOption{
		ingest.WithOptions(loaderOpts),
		ingest.WithLogger(logger),
		ingest.WithRecorder(metrics.Recorder{}),
	}
	if cfg.InboxDir != "" {
		box, err := inbox.New(cfg.InboxDir, logger)
		if err != nil {
			svc.Close()
			return nil, err
		}
		loaderOptions = append(loaderOptions, ingest.WithFeeds(box))
	}
	loader, err := ingest.NewLoader(nil, loaderOptions...)
	if err != nil {
		svc.Close()
		return nil, err
	}

	runnerOpts := []pipeline.Option{
		pipeline.WithLoader(loader),
		pipeline.WithReports(svc.reports),
		pipeline.WithLogger(logger),
		pipeline.WithHeatMeter(cfg.HeatMeter),
		pipeline.WithStaleAfter(cfg.staleAfter()),
		pipeline.WithSinks(pipeline.NewSink("stream", func(ctx context.Context, run pipeline.Run) error {
			return svc.hub.Publish(ctx, run.ID, run.Report, run.Stale)
		})),
	}
	if cfg.ReportBaseURL != "" {
		runnerOpts = append(runnerOpts, pipeline.WithReportURL(strings.TrimRight(cfg.ReportBaseURL, "/")+"/api/v1/report"))
	}
	if cfg.influxEnabled() {
		writer, err := influx.NewHourlyWriter(cfg.influxConfig(), loc)
		if err != nil {
			svc.Close()
			return nil, err
		}
		svc.influx = writer
		runnerOpts = append(runnerOpts, pipeline.WithSinks(pipeline.NewSink("influx", func(ctx context.Context, run pipeline.Run) error {
			return writer.Write(ctx, run.Report)
		})))
	}
	if cfg.WebhookURL != "" {
		tpl, err := notify.NewTemplate(cfg.NotifyTemplate)
		if err != nil {
			svc.Close()
			return nil, fmt.Errorf("alert template: %w", err)
		}
		webhook, err := notify.NewWebhookNotifier(cfg.WebhookURL, tpl)
		if err != nil {
			svc.Close()
			return nil, err
		}
		var notifier notify.Notifier = webhook
		if cooldown := cfg.notifyCooldown(); cooldown > 0 {
			notifier = notify.NewCooldown(webhook, cooldown)
		}
		runnerOpts = append(runnerOpts, pipeline.WithNotifier(notifier))
	}

	runner, err := pipeline.NewRunner(datasets, builder, runnerOpts...)
	if err != nil {
		svc.Close()
		return nil, err
	}
	svc.runner = runner
	return svc, nil
}

// openStore opens the dataset and report stores of the configured backend and returns
// the SQL handle exposed to row count metrics, if any.
func openStore(cfg config, svc *services) (timeseries.DatasetRepository, *sql.DB, error) {
	switch cfg.Store {
	case storePostgres:
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("db open: %w", err)
		}
		svc.closers = append(svc.closers, db)
		if err := db.Ping(); err != nil {
			return nil, nil, fmt.Errorf("db ping: %w", err)
		}
		reports, err := reportpostgres.NewReportRepository(db)
		if err != nil {
			return nil, nil, err
		}
		svc.reports = reports
		return datasetpostgres.NewDatasetRepository(db), db, nil
	case storeSQLite:
		repo, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		svc.closers = append(svc.closers, repo)
		if err := openReportFile(cfg, svc); err != nil {
			return nil, nil, err
		}
		return repo, nil, nil
	default:
		store, err := datasetfile.NewDatasetStore(cfg.DataFile)
		if err != nil {
			return nil, nil, err
		}
		if err := openReportFile(cfg, svc); err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}
}

func openReportFile(cfg config, svc *services) error {
	if cfg.ReportFile == "" {
		return nil
	}
	reports, err := reportfile.NewReportStore(cfg.ReportFile)
	if err != nil {
		return err
	}
	svc.reports = reports
	return nil
}

func (s *services) httpHandler() (http.Handler, error) {
	reportHandler, err := reportinterfaces.NewHandler(s.runner, metrics.Recorder{}, s.logger)
	if err != nil {
		return nil, err
	}
	ingestHandler, err := ingesthttp.NewHandler(s.runner, s.audit, s.logger)
	if err != nil {
		return nil, err
	}
	streamReports := s.reports
	if streamReports == nil {
		streamReports = latestOnly{s.runner}
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/report", reportHandler)
	mux.Handle("/api/v1/report/table.xlsx", reportHandler)
	mux.Handle("/api/v1/statements/", reportHandler)
	mux.Handle("/api/v1/report/stream", reportinterfaces.NewStreamHandler(s.hub, streamReports))
	if s.cfg.IngestSecret != "" {
		ingestAuth := auth.NewIngestAuthMiddleware([]byte(s.cfg.IngestSecret), time.Duration(s.cfg.IngestSkewSeconds)*time.Second)
		mux.Handle("/api/v1/ingest", ingestAuth.Wrap(ingestHandler))
	} else {
		mux.Handle("/api/v1/ingest", ingestHandler)
	}
	pipelinehttp.NewHandler(s.runner, s.card, s.loc, s.audit, s.logger).Register(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var handler http.Handler = mux
	if s.cfg.JWTSecret != "" {
		policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
		handler = auth.NewMiddleware([]byte(s.cfg.JWTSecret), policy).Wrap(mux)
	} else {
		s.logger.Printf("auth disabled: AUTH_JWT_SECRET is not set")
	}
	return loggingMiddleware(handler, s.logger), nil
}

// latestOnly serves the stream's initial message from the runner when no report
// repository is configured.
type latestOnly struct {
	runner *pipeline.Runner
}

func (l latestOnly) Latest(ctx context.Context) (*report.Report, error) {
	return l.runner.Latest(ctx)
}

func (l latestOnly) Save(ctx context.Context, runID string, rep *report.Report) error {
	return nil
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrader take over the connection behind the logger.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("http: response does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}
