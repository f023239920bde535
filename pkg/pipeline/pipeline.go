package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tourcast/tourcast/pkg/aggregate"
	"github.com/tourcast/tourcast/pkg/dataset"
	"github.com/tourcast/tourcast/pkg/forecast"
	"github.com/tourcast/tourcast/pkg/mfth"
	"github.com/tourcast/tourcast/pkg/reference"
	"github.com/tourcast/tourcast/pkg/validation"
)

// StageError reports which pipeline stage failed.
type StageError struct {
	Stage validation.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Config holds everything a run needs besides the reference table.
type Config struct {
	Location string
	Format   string
	Columns  dataset.Columns
	MinYear  int
	Sources  dataset.SourceOptions

	// Source overrides Location when set.
	Source dataset.Source

	Through  dataset.Month
	Forecast forecast.Options
}

// Query narrows the views of one run. The forecasts always use the full
// history.
type Query struct {
	Filter aggregate.Filter
}

// Result is the output of one pass. Forecast errors are kept here instead of
// failing the run so the other views still render.
type Result struct {
	RunID   string           `json:"run_id"`
	Dataset *dataset.Dataset `json:"-"`
	Views   *aggregate.Views `json:"views"`
	// History is the unfiltered monthly series the forecasts are fitted on.
	History []aggregate.MonthlyAggregate `json:"history"`

	Forecast    *forecast.Result `json:"forecast,omitempty"`
	ForecastErr error            `json:"-"`

	MFTH            *mfth.Result     `json:"mfth"`
	MFTHForecast    *forecast.Result `json:"mfth_forecast,omitempty"`
	MFTHForecastErr error            `json:"-"`

	Through dataset.Month      `json:"through"`
	Empty   bool               `json:"empty"`
	Report  *validation.Report `json:"validation"`
}

// Pipeline runs load → aggregate → forecast → estimate.
type Pipeline struct {
	cfg   Config
	table *reference.Table
	cache *Cache
}

// New creates a pipeline. cache may be nil.
func New(cfg Config, table *reference.Table, cache *Cache) *Pipeline {
	if cfg.Forecast.Period == 0 {
		cfg.Forecast = forecast.DefaultOptions()
	}
	if cfg.Through.IsZero() {
		cfg.Through = dataset.Month{Year: 2026, Month: time.December}
	}
	return &Pipeline{cfg: cfg, table: table, cache: cache}
}

// Run executes one pass. Load failures are fatal and returned as a
// *StageError; forecast failures are recorded on the result.
func (p *Pipeline) Run(ctx context.Context, q Query) (*Result, error) {
	runID := uuid.NewString()
	logger := log.With().Str("run_id", runID).Logger()

	report := validation.NewReport()
	ds, loadReport, err := p.load(ctx)
	if err != nil {
		logger.Error().Err(err).Str("stage", string(validation.StageLoad)).Msg("Load failed")
		return nil, &StageError{Stage: validation.StageLoad, Err: err}
	}
	report.Merge(loadReport)

	res := &Result{
		RunID:   runID,
		Dataset: ds,
		Through: p.cfg.Through,
		Report:  report,
		History: aggregate.Monthly(ds.Records, aggregate.Filter{}),
	}

	views, err := aggregate.Build(ds.Records, q.Filter)
	res.Views = views
	if errors.Is(err, aggregate.ErrEmptyResult) {
		res.Empty = true
		report.AddInfo(validation.Result{
			Stage:   validation.StageAggregate,
			Message: "no arrivals match the current selection",
		})
	}

	var est *validation.Report
	res.MFTH, est = mfth.Apply(views.Periods, p.table)
	report.Merge(est)

	if len(res.History) == 0 {
		logger.Info().Msg("No history; forecast skipped")
		return res, nil
	}

	res.Forecast, res.ForecastErr = p.forecast(forecast.FromMonthly(res.History), "total arrivals", report)

	full, _ := mfth.Apply(aggregate.ByPeriod(ds.Records, aggregate.Filter{}), p.table)
	res.MFTHForecast, res.MFTHForecastErr = p.forecast(full.Series(), "MFTH arrivals", report)

	logger.Info().
		Int("months", len(res.History)).
		Bool("empty_view", res.Empty).
		Bool("forecast_ok", res.ForecastErr == nil).
		Str("summary", report.Summary).
		Msg("Pipeline run complete")

	return res, nil
}

func (p *Pipeline) forecast(series []forecast.Observation, label string, report *validation.Report) (*forecast.Result, error) {
	fc, err := forecast.Forecast(series, p.cfg.Through, p.cfg.Forecast)
	if err != nil {
		report.AddError(forecastFinding(label, err))
		return nil, &StageError{Stage: validation.StageForecast, Err: err}
	}
	return fc, nil
}

func forecastFinding(label string, err error) validation.Result {
	r := validation.Result{
		Stage:   validation.StageForecast,
		Message: fmt.Sprintf("%s forecast unavailable: %v", label, err),
	}
	if errors.Is(err, forecast.ErrInsufficientHistory) {
		r.Expected = "at least 24 months of history"
	}
	return r
}

func (p *Pipeline) load(ctx context.Context) (*dataset.Dataset, *validation.Report, error) {
	key := p.cacheKey()
	if entry, ok := p.cache.get(key); ok {
		log.Debug().Str("key", key).Msg("Dataset cache hit")
		return entry.dataset, entry.report, nil
	}

	src := p.cfg.Source
	if src == nil {
		var err error
		src, err = dataset.NewSource(p.cfg.Location, p.cfg.Sources)
		if err != nil {
			return nil, nil, err
		}
	}

	loader := dataset.NewLoader(src, p.table)
	loader.Format = p.cfg.Format
	loader.MinYear = p.cfg.MinYear
	if p.cfg.Columns.Date != "" {
		loader.Columns = p.cfg.Columns
	}

	ds, report, err := loader.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	p.cache.set(key, &cachedLoad{dataset: ds, report: report})
	return ds, report, nil
}

func (p *Pipeline) cacheKey() string {
	name := p.cfg.Location
	if p.cfg.Source != nil {
		name = p.cfg.Source.Name()
	}
	return fmt.Sprintf("%s|%s|%d|%+v", name, p.cfg.Format, p.cfg.MinYear, p.cfg.Columns)
}

// Through is the last forecast month.
func (p *Pipeline) Through() dataset.Month {
	return p.cfg.Through
}

// Table is the reference table the pipeline estimates with.
func (p *Pipeline) Table() *reference.Table {
	return p.table
}
