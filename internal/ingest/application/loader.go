package application

import (
	"context"
	"log"
	"sort"
	"time"

	"building-energy/internal/analytics/domain/statistic"
	timeseries "building-energy/internal/timeseries/domain"
)

const (
	defaultDaysBack      = 4
	defaultAttempts      = 2
	defaultTomorrowAfter = 13
)

// Recorder observes fetch attempts. metrics.Recorder implements it.
type Recorder interface {
	ObserveFetch(source string, err error)
	ObserveRecords(source, series string, count int)
}

// Options configures the loader window.
type Options struct {
	Location  *time.Location
	HeatMeter string
	DaysBack  int
	Attempts  int
	// TomorrowAfter is the local hour from which next day spot prices are requested.
	TomorrowAfter int
}

// Result summarizes one Load call.
type Result struct {
	Requests int
	Records  map[timeseries.Series]int
	Failed   []string
}

// Loader asks the registered sources for whatever the dataset is missing.
type Loader struct {
	sources  []Source
	feeds    []Feed
	opts     Options
	clock    statistic.Clock
	logger   *log.Logger
	recorder Recorder
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithClock overrides the time source.
func WithClock(clock statistic.Clock) LoaderOption {
	return func(l *Loader) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithFeeds registers pushed batch feeds.
func WithFeeds(feeds ...Feed) LoaderOption {
	return func(l *Loader) {
		for _, feed := range feeds {
			if feed != nil {
				l.feeds = append(l.feeds, feed)
			}
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder Recorder) LoaderOption {
	return func(l *Loader) { l.recorder = recorder }
}

// WithOptions overrides the window settings; zero fields keep their defaults.
func WithOptions(o Options) LoaderOption {
	return func(l *Loader) {
		if o.Location != nil {
			l.opts.Location = o.Location
		}
		if o.HeatMeter != "" {
			l.opts.HeatMeter = o.HeatMeter
		}
		if o.DaysBack > 0 {
			l.opts.DaysBack = o.DaysBack
		}
		if o.Attempts > 0 {
			l.opts.Attempts = o.Attempts
		}
		if o.TomorrowAfter > 0 {
			l.opts.TomorrowAfter = o.TomorrowAfter
		}
	}
}

// NewLoader constructs a loader over sources.
func NewLoader(sources []Source, opts ...LoaderOption) (*Loader, error) {
	for _, source := range sources {
		if source == nil {
			return nil, ErrNilSource
		}
	}
	l := &Loader{
		sources: sources,
		opts: Options{
			Location:      time.UTC,
			HeatMeter:     timeseries.DefaultHeatMeter,
			DaysBack:      defaultDaysBack,
			Attempts:      defaultAttempts,
			TomorrowAfter: defaultTomorrowAfter,
		},
		clock:  statistic.SystemClock{},
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Sources returns the registered sources.
func (l *Loader) Sources() []Source { return l.sources }

// Plan lists the requests needed to complete ds for the current window.
func (l *Loader) Plan(ds *timeseries.Dataset) []Request {
	now := l.clock.Now().In(l.opts.Location)
	today := timeseries.DateOf(now)
	first := today.AddDays(-l.opts.DaysBack)

	var requests []Request
	days := timeseries.DatesInRange(first, today)
	if now.Hour() >= l.opts.TomorrowAfter {
		days = append(days, today.AddDays(1))
	}
	spotDates := datesWithRecords(ds.SpotPrices)
	for _, d := range days {
		if _, ok := spotDates[d]; !ok {
			requests = append(requests, Request{Series: timeseries.SeriesSpotPrice, First: d, Last: d})
		}
	}
	for _, d := range timeseries.DatesInRange(first, today) {
		if !timeseries.IsRangeComplete(ds.HourlyTemperatures, d, d) {
			requests = append(requests, Request{Series: timeseries.SeriesHourlyTemperature, First: d, Last: d})
		}
	}

	yesterday := today.AddDays(-1)
	known := make(map[timeseries.Date]struct{}, len(ds.DailyTemperatures))
	for _, record := range ds.DailyTemperatures {
		known[record.Date] = struct{}{}
	}
	for _, d := range timeseries.DatesInRange(first, yesterday) {
		if _, ok := known[d]; !ok {
			requests = append(requests, Request{Series: timeseries.SeriesDailyTemperature, First: first, Last: yesterday})
			break
		}
	}

	requests = append(requests, l.planUsage(ds, first, today)...)
	return requests
}

func (l *Loader) planUsage(ds *timeseries.Dataset, first, last timeseries.Date) []Request {
	var electricity []string
	heat := false
	seen := make(map[string]struct{})
	for _, source := range l.sources {
		ms, ok := source.(MeterSource)
		if !ok || !source.Supplies(timeseries.SeriesUsage) {
			continue
		}
		for _, meter := range ms.Meters() {
			if _, dup := seen[meter]; dup {
				continue
			}
			seen[meter] = struct{}{}
			if meter == l.opts.HeatMeter {
				if !timeseries.IsRangeComplete(ds.Usage[meter], first, last) {
					heat = true
				}
				continue
			}
			if !timeseries.IsRangeVerified(ds.Usage[meter], first, last) {
				electricity = append(electricity, meter)
			}
		}
	}
	var requests []Request
	if len(electricity) > 0 {
		sort.Strings(electricity)
		requests = append(requests, Request{Series: timeseries.SeriesUsage, Meters: electricity, First: first, Last: last})
	}
	if heat {
		requests = append(requests, Request{Series: timeseries.SeriesUsage, Meters: []string{l.opts.HeatMeter}, First: first, Last: last})
	}
	return requests
}

// Load plans, fetches and merges. Fetch failures are logged and skipped; the
// returned error is reserved for a nil dataset or a cancelled context.
func (l *Loader) Load(ctx context.Context, ds *timeseries.Dataset) (Result, error) {
	if ds == nil {
		return Result{}, ErrNilDataset
	}
	result := Result{Records: make(map[timeseries.Series]int)}
	for _, feed := range l.feeds {
		l.drain(ctx, feed, ds, &result)
	}
	for _, req := range l.Plan(ds) {
		for _, source := range l.sourcesFor(req) {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			result.Requests++
			batch, ok := l.fetch(ctx, source, req)
			if !ok {
				result.Failed = append(result.Failed, source.Name()+": "+req.String())
				continue
			}
			if err := l.Merge(ds, source.Name(), batch, &result); err != nil {
				l.logger.Printf("source merge error: source=%s request=%s err=%v", source.Name(), req, err)
				result.Failed = append(result.Failed, source.Name()+": "+req.String())
			}
		}
	}
	return result, nil
}

// Merge applies batch to ds and accounts the merged records.
func (l *Loader) Merge(ds *timeseries.Dataset, source string, batch timeseries.Batch, result *Result) error {
	if batch.IsEmpty() {
		return nil
	}
	if err := ds.Apply(batch); err != nil {
		return err
	}
	for series, count := range batch.Records() {
		if result != nil && result.Records != nil {
			result.Records[series] += count
		}
		if l.recorder != nil {
			l.recorder.ObserveRecords(source, string(series), count)
		}
	}
	return nil
}

func (l *Loader) drain(ctx context.Context, feed Feed, ds *timeseries.Dataset, result *Result) {
	batches, err := feed.Drain(ctx)
	if l.recorder != nil {
		l.recorder.ObserveFetch(feed.Name(), err)
	}
	if err != nil {
		l.logger.Printf("feed drain error: feed=%s err=%v", feed.Name(), err)
		result.Failed = append(result.Failed, feed.Name())
		return
	}
	for i, batch := range batches {
		if err := l.Merge(ds, feed.Name(), batch, result); err != nil {
			l.logger.Printf("feed merge error: feed=%s batch=%d err=%v", feed.Name(), i, err)
			result.Failed = append(result.Failed, feed.Name())
		}
	}
}

type named interface {
	Name() string
}

// Commit acknowledges consumed input on every source and feed that supports it.
func (l *Loader) Commit(ctx context.Context) error {
	var firstErr error
	participants := make([]named, 0, len(l.sources)+len(l.feeds))
	for _, source := range l.sources {
		participants = append(participants, source)
	}
	for _, feed := range l.feeds {
		participants = append(participants, feed)
	}
	for _, p := range participants {
		committer, ok := p.(Committer)
		if !ok {
			continue
		}
		if err := committer.Commit(ctx); err != nil {
			l.logger.Printf("source commit error: source=%s err=%v", p.Name(), err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (l *Loader) sourcesFor(req Request) []Source {
	var out []Source
	for _, source := range l.sources {
		if !source.Supplies(req.Series) {
			continue
		}
		if req.Series == timeseries.SeriesUsage {
			ms, ok := source.(MeterSource)
			if !ok || !anyMeter(ms.Meters(), req.Meters) {
				continue
			}
		}
		out = append(out, source)
	}
	return out
}

func (l *Loader) fetch(ctx context.Context, source Source, req Request) (timeseries.Batch, bool) {
	for attempt := 1; attempt <= l.opts.Attempts; attempt++ {
		batch, err := source.Fetch(ctx, req)
		if l.recorder != nil {
			l.recorder.ObserveFetch(source.Name(), err)
		}
		if err == nil {
			return batch, true
		}
		l.logger.Printf("source fetch error: source=%s request=%s attempt=%d err=%v", source.Name(), req, attempt, err)
		if ctx.Err() != nil {
			break
		}
	}
	l.logger.Printf("source gave up: source=%s request=%s", source.Name(), req)
	return timeseries.Batch{}, false
}

func datesWithRecords[T timeseries.Hourly](series []T) map[timeseries.Date]struct{} {
	return timeseries.BatchDates(series)
}

func anyMeter(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}
