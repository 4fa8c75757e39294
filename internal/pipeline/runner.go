package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"building-energy/internal/analytics/domain/statistic"
	ingest "building-energy/internal/ingest/application"
	"building-energy/internal/notify"
	"building-energy/internal/observability/metrics"
	report "building-energy/internal/report/application"
	timeseries "building-energy/internal/timeseries/domain"
)

// Run describes one executed pipeline run.
type Run struct {
	ID         string            `json:"id"`
	StartedAt  time.Time         `json:"startedAt"`
	FinishedAt time.Time         `json:"finishedAt"`
	Load       ingest.Result     `json:"load"`
	LastUsage  timeseries.Date   `json:"lastUsage"`
	Stale      bool              `json:"stale"`
	Error      string            `json:"error,omitempty"`
	Report     *report.Report    `json:"-"`
	Changes    int               `json:"changes"`
	Sinks      map[string]string `json:"sinks,omitempty"`
}

// Runner executes the run sequence: load dataset, fetch missing data, rebuild the
// snapshot, build the report, persist both, then notify sinks. Runs and uploads are
// serialized; the dataset has a single writer.
type Runner struct {
	datasets   timeseries.DatasetRepository
	builder    *report.Builder
	loader     *ingest.Loader
	reports    report.Repository
	sinks      []Sink
	notifier   notify.Notifier
	logger     *log.Logger
	clock      statistic.Clock
	heatMeter  string
	staleAfter time.Duration
	reportURL  string

	mu      sync.Mutex
	lastRun *Run
}

// Option configures a Runner.
type Option func(*Runner)

// WithLoader enables fetching from data sources on every run.
func WithLoader(loader *ingest.Loader) Option {
	return func(r *Runner) { r.loader = loader }
}

// WithReports sets the report repository.
func WithReports(reports report.Repository) Option {
	return func(r *Runner) {
		if reports != nil {
			r.reports = reports
		}
	}
}

// WithSinks appends report sinks.
func WithSinks(sinks ...Sink) Option {
	return func(r *Runner) {
		for _, sink := range sinks {
			if sink != nil {
				r.sinks = append(r.sinks, sink)
			}
		}
	}
}

// WithNotifier sets the alert notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(r *Runner) { r.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock statistic.Clock) Option {
	return func(r *Runner) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithHeatMeter sets the meter name carrying district heat.
func WithHeatMeter(name string) Option {
	return func(r *Runner) {
		if name != "" {
			r.heatMeter = name
		}
	}
}

// WithStaleAfter alerts when the newest complete usage day ended longer ago than d.
func WithStaleAfter(d time.Duration) Option {
	return func(r *Runner) { r.staleAfter = d }
}

// WithReportURL is linked from alerts.
func WithReportURL(url string) Option {
	return func(r *Runner) { r.reportURL = url }
}

// NewRunner constructs a runner.
func NewRunner(datasets timeseries.DatasetRepository, builder *report.Builder, opts ...Option) (*Runner, error) {
	if datasets == nil {
		return nil, ErrNilRepository
	}
	if builder == nil {
		return nil, ErrNilBuilder
	}
	r := &Runner{
		datasets:  datasets,
		builder:   builder,
		logger:    log.Default(),
		clock:     statistic.SystemClock{},
		heatMeter: timeseries.DefaultHeatMeter,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RunOnce executes one run. A failure is logged, counted and alerted before it is
// returned.
func (r *Runner) RunOnce(ctx context.Context) (Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := Run{ID: uuid.NewString(), StartedAt: r.clock.Now(), Sinks: map[string]string{}}
	r.logger.Printf("run start: run=%s", run.ID)
	err := r.execute(ctx, &run)
	run.FinishedAt = r.clock.Now()
	elapsed := run.FinishedAt.Sub(run.StartedAt)

	if err != nil {
		run.Error = err.Error()
		r.lastRun = &run
		metrics.ObserveRun(metrics.ResultError, elapsed)
		r.logger.Printf("run error: run=%s err=%v", run.ID, err)
		r.alert(ctx, notify.AlertMessage{
			Kind:       notify.KindRunFailed,
			RunID:      run.ID,
			At:         run.FinishedAt,
			Error:      err.Error(),
			Suggestion: "check the data store and the data source credentials",
		})
		return run, err
	}

	r.lastRun = &run
	metrics.ObserveRun(metrics.ResultSuccess, elapsed)
	r.logger.Printf("run done: run=%s requests=%d failed=%d changes=%d stale=%t elapsed=%s",
		run.ID, run.Load.Requests, len(run.Load.Failed), run.Changes, run.Stale, elapsed)
	if run.Stale {
		last := ""
		if !run.LastUsage.IsZero() {
			last = run.LastUsage.String()
		}
		r.alert(ctx, notify.AlertMessage{
			Kind:       notify.KindStaleData,
			RunID:      run.ID,
			At:         run.FinishedAt,
			LastUsage:  last,
			Suggestion: "meter readings are late; check the grid operator and district heat exports",
		})
	} else if c, ok := r.notifier.(*notify.Cooldown); ok {
		c.Reset(notify.KindStaleData)
	}
	return run, nil
}

func (r *Runner) execute(ctx context.Context, run *Run) error {
	ds, err := r.datasets.Load(ctx)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	if r.loader != nil {
		result, err := r.loader.Load(ctx, ds)
		run.Load = result
		if err != nil {
			return fmt.Errorf("fetch: %w", err)
		}
	}
	run.Changes = len(ds.Changes())

	snap, err := statistic.BuildSnapshot(ds, statistic.WithHeatMeter(r.heatMeter))
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	rep, err := r.builder.Build(snap)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}
	run.Report = rep

	if err := r.datasets.Save(ctx, ds); err != nil {
		return fmt.Errorf("save dataset: %w", err)
	}
	if r.reports != nil {
		if err := r.reports.Save(ctx, run.ID, rep); err != nil {
			return fmt.Errorf("save report: %w", err)
		}
	}
	if r.loader != nil {
		if err := r.loader.Commit(ctx); err != nil {
			r.logger.Printf("run commit error: run=%s err=%v", run.ID, err)
		}
	}

	ageHours := r.usageAge(snap, run)
	metrics.SetReportGenerated(rep.GeneratedAt, ageHours)

	for _, sink := range r.sinks {
		if err := sink.Publish(ctx, *run); err != nil {
			run.Sinks[sink.Name()] = err.Error()
			metrics.IncSinkError(sink.Name())
			r.logger.Printf("run sink error: run=%s sink=%s err=%v", run.ID, sink.Name(), err)
			continue
		}
		run.Sinks[sink.Name()] = "ok"
	}
	return nil
}

// usageAge sets the last usage date and stale flag and returns the age in hours.
func (r *Runner) usageAge(snap *statistic.Snapshot, run *Run) float64 {
	now := r.clock.Now()
	last, ok := snap.LastDate()
	if !ok {
		run.Stale = r.staleAfter > 0
		return 0
	}
	run.LastUsage = last
	age := now.Sub(last.AddDays(1).Time(r.builder.Location()))
	if age < 0 {
		age = 0
	}
	run.Stale = r.staleAfter > 0 && age > r.staleAfter
	return age.Hours()
}

func (r *Runner) alert(ctx context.Context, msg notify.AlertMessage) {
	if r.notifier == nil {
		return
	}
	msg.ReportURL = r.reportURL
	if err := r.notifier.Notify(ctx, msg); err != nil {
		r.logger.Printf("run notify error: run=%s kind=%s err=%v", msg.RunID, msg.Kind, err)
	}
}

// Ingest merges an uploaded batch into the stored dataset. The batch is validated as a
// whole first; a rejected batch changes nothing.
func (r *Runner) Ingest(ctx context.Context, batch timeseries.Batch) (map[timeseries.Series]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ds, err := r.datasets.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	if err := ds.Apply(batch); err != nil {
		return nil, err
	}
	if err := r.datasets.Save(ctx, ds); err != nil {
		return nil, fmt.Errorf("save dataset: %w", err)
	}
	records := batch.Records()
	r.logger.Printf("ingest merged: usage=%d spot=%d hourly_temperature=%d daily_temperature=%d",
		records[timeseries.SeriesUsage], records[timeseries.SeriesSpotPrice],
		records[timeseries.SeriesHourlyTemperature], records[timeseries.SeriesDailyTemperature])
	return records, nil
}

// Latest returns the stored report, or the report of the last run when no repository
// is configured.
func (r *Runner) Latest(ctx context.Context) (*report.Report, error) {
	if r.reports != nil {
		return r.reports.Latest(ctx)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastRun == nil || r.lastRun.Report == nil {
		return nil, report.ErrNoReport
	}
	return r.lastRun.Report, nil
}

// Statement prices one month from the stored dataset.
func (r *Runner) Statement(ctx context.Context, month timeseries.YearMonth) (report.Statement, error) {
	snap, err := r.snapshot(ctx)
	if err != nil {
		return report.Statement{}, err
	}
	return r.builder.Statement(snap, month)
}

// Report builds a report from the stored dataset without fetching or persisting.
func (r *Runner) Report(ctx context.Context) (*report.Report, error) {
	snap, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return r.builder.Build(snap)
}

func (r *Runner) snapshot(ctx context.Context) (*statistic.Snapshot, error) {
	r.mu.Lock()
	ds, err := r.datasets.Load(ctx)
	r.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	return statistic.BuildSnapshot(ds, statistic.WithHeatMeter(r.heatMeter))
}

// LastRun returns the most recent run, if any.
func (r *Runner) LastRun() (Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastRun == nil {
		return Run{}, false
	}
	return *r.lastRun, true
}
