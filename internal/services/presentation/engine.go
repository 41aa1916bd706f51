package presentation

import (
	"time"

	"RecoBoard/internal/domain/models"
	"RecoBoard/pkg/logger"
)

// Engine bundles the calendar, status registry and anomaly reporting around
// the pure pipeline functions. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	calendar Calendar
	registry Registry
	strict   bool
	log      *logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocation sets the reference zone used for every date comparison.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.calendar = NewCalendar(loc) }
}

// WithStrictContract makes Ingest return a *ContractError when records are excluded.
func WithStrictContract(strict bool) Option {
	return func(e *Engine) { e.strict = strict }
}

// WithLogger sets the diagnostic logger for anomalies.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine creates an engine in UTC, non-strict, with a no-op logger.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		calendar: NewCalendar(time.UTC),
		registry: DefaultRegistry(),
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Calendar() Calendar { return e.calendar }
func (e *Engine) Registry() Registry { return e.registry }
func (e *Engine) Strict() bool { return e.strict }

// Ingest sanitizes raw records and logs every anomaly at warn level. In
// strict mode a *ContractError is returned alongside the sanitized records
// when any record was excluded.
func (e *Engine) Ingest(raw []models.RawRecord) ([]models.Record, []models.Anomaly, error) {
	records, anomalies := Ingest(raw, e.calendar.Location(), e.registry)
	for _, a := range anomalies {
		e.log.Warn("ingest anomaly",
			logger.String("kind", a.Kind),
			logger.String("field", a.Field),
			logger.String("instrument", a.InstrumentID),
			logger.String("value", a.Value),
			logger.Int("index", a.Index),
		)
	}
	if e.strict {
		if excluded := exclusions(anomalies); len(excluded) > 0 {
			return records, anomalies, &ContractError{Anomalies: excluded}
		}
	}
	return records, anomalies, nil
}

// Classify runs Classify with the engine's registry. today is only used to
// flag anchor dates in the future.
func (e *Engine) Classify(records []models.Record, today time.Time, displayCap int) models.SectionedViewModel {
	for _, r := range records {
		if r.HasAnchor() && !today.IsZero() && e.calendar.day(r.AnchorDate).After(e.calendar.day(today)) {
			e.log.Debug("anchor date after today",
				logger.String("instrument", r.InstrumentID),
				logger.Time("anchor", r.AnchorDate),
			)
		}
	}
	return Classify(records, displayCap, e.registry)
}

func (e *Engine) Summarize(vm models.SectionedViewModel, today time.Time) models.DailyDigest {
	return Summarize(vm, today, e.calendar)
}

func (e *Engine) ResolveBanner(window models.TimeWindow, digest models.DailyDigest, vm models.SectionedViewModel) models.BannerState {
	state := ResolveBanner(window, digest, vm)
	if window != models.WindowBeforeCutoff && window != models.WindowAfterCutoff && window != models.WindowHoliday {
		e.log.Warn("unrecognized time window", logger.String("window", string(window)))
	}
	return state
}

func (e *Engine) BuildCards(vm models.SectionedViewModel, today time.Time) []models.Card {
	return BuildCards(vm, today, e.calendar)
}

// Result is one full pass of the pipeline.
type Result struct {
	Sections  models.SectionedViewModel
	Digest    models.DailyDigest
	Banner    models.BannerState
	Cards     []models.Card
	Anomalies []models.Anomaly
}

// Render ingests raw and runs classify, summarize, banner and cards. The
// only error is a *ContractError in strict mode.
func (e *Engine) Render(raw []models.RawRecord, today time.Time, window models.TimeWindow, displayCap int) (*Result, error) {
	records, anomalies, err := e.Ingest(raw)
	if err != nil {
		return nil, err
	}
	vm := e.Classify(records, today, displayCap)
	digest := e.Summarize(vm, today)
	return &Result{
		Sections:  vm,
		Digest:    digest,
		Banner:    e.ResolveBanner(window, digest, vm),
		Cards:     e.BuildCards(vm, today),
		Anomalies: anomalies,
	}, nil
}
