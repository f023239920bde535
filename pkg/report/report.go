package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/tourcast/tourcast/pkg/aggregate"
	"github.com/tourcast/tourcast/pkg/dataset"
	"github.com/tourcast/tourcast/pkg/forecast"
	"github.com/tourcast/tourcast/pkg/mfth"
	"github.com/tourcast/tourcast/pkg/pipeline"
	"github.com/tourcast/tourcast/pkg/validation"
)

// ViewMode selects how the trend chart presents arrivals.
type ViewMode string

const (
	// ViewMonthly plots arrivals per month.
	ViewMonthly ViewMode = "monthly"
	// ViewCumulative plots the running total within the target year.
	ViewCumulative ViewMode = "cumulative"
)

// ParseViewMode accepts "monthly" or "cumulative"; empty means monthly.
func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(s) {
	case "", ViewMonthly:
		return ViewMonthly, nil
	case ViewCumulative:
		return ViewCumulative, nil
	}
	return "", fmt.Errorf("unknown view mode %q (want monthly or cumulative)", s)
}

// DefaultTarget is the cumulative arrivals reference line.
const DefaultTarget int64 = 30_000_000

// Options controls what the dashboard shows.
type Options struct {
	Mode            ViewMode
	DisplayFrom     dataset.Month
	MFTHDisplayFrom dataset.Month
	TargetYear      int
	Target          int64
	TopN            int
}

// DefaultOptions shows the monthly trend from 2023 and the MFTH bars from
// 2022, projecting 2026.
func DefaultOptions() Options {
	return Options{
		Mode:            ViewMonthly,
		DisplayFrom:     dataset.Month{Year: 2023, Month: time.January},
		MFTHDisplayFrom: dataset.Month{Year: 2022, Month: time.January},
		TargetYear:      2026,
		Target:          DefaultTarget,
		TopN:            10,
	}
}

// Headline holds the projection metrics for the target year.
type Headline struct {
	Year              int     `json:"year"`
	Confirmed         float64 `json:"confirmed"`
	Predicted         float64 `json:"predicted"`
	Total             float64 `json:"total"`
	MFTHProjection    float64 `json:"mfth_projection"`
	MFTHSharePct      float64 `json:"mfth_share_pct"`
	ForecastAvailable bool    `json:"forecast_available"`
}

// TrendPoint is one month on the trend chart.
type TrendPoint struct {
	Month        dataset.Month `json:"month"`
	Value        float64       `json:"value"`
	IsHistorical bool          `json:"is_historical"`
}

// Trend is the monthly or cumulative series shown on the main chart.
type Trend struct {
	Mode   ViewMode     `json:"mode"`
	Title  string       `json:"title"`
	Points []TrendPoint `json:"points"`
	// Target is only set in cumulative mode.
	Target        int64 `json:"target,omitempty"`
	TargetReached bool  `json:"target_reached"`
	// National is false when a nationality filter limits the trend to
	// observed months.
	National bool `json:"national"`
}

// Market is one row of the source-market ranking.
type Market struct {
	Nationality   string                `json:"nationality"`
	TotalArrivals int64                 `json:"total_arrivals"`
	SharePct      float64               `json:"share_pct"`
	Genders       aggregate.GenderSplit `json:"gender_split"`
}

// Markets ranks source markets within one year.
type Markets struct {
	Year int      `json:"year"`
	Rows []Market `json:"rows"`
}

// MFTHYear compares observed and predicted MFTH arrivals for one year.
type MFTHYear struct {
	Year     int     `json:"year"`
	Actual   float64 `json:"actual"`
	Forecast float64 `json:"forecast"`
}

// Dashboard is everything the presentation surfaces render.
type Dashboard struct {
	RunID         string                `json:"run_id"`
	Mode          ViewMode              `json:"mode"`
	Filter        aggregate.Filter      `json:"filter"`
	Through       dataset.Month         `json:"through"`
	Headline      Headline              `json:"headline"`
	Trend         Trend                 `json:"trend"`
	Markets       Markets               `json:"markets"`
	Genders       aggregate.GenderSplit `json:"genders"`
	MFTHYears     []MFTHYear            `json:"mfth_years"`
	MFTHForecast  []forecast.Point      `json:"mfth_forecast"`
	Coverage      mfth.Coverage         `json:"coverage"`
	Forecast      []forecast.Point      `json:"forecast"`
	Nationalities []string              `json:"nationalities"`
	Empty         bool                  `json:"empty"`
	Errors        []string              `json:"errors,omitempty"`
	Validation    *validation.Report    `json:"validation"`
}

// Build derives the dashboard from one pipeline result.
func Build(res *pipeline.Result, opts Options) *Dashboard {
	opts = withDefaults(opts)

	d := &Dashboard{
		RunID:      res.RunID,
		Mode:       opts.Mode,
		Through:    res.Through,
		Empty:      res.Empty,
		Validation: res.Report,
	}
	if res.Views != nil {
		d.Filter = res.Views.Filter
		d.Genders = res.Views.Genders
	}
	if res.Dataset != nil {
		d.Nationalities = aggregate.Nationalities(res.Dataset.Records)
	}
	if res.MFTH != nil {
		d.Coverage = res.MFTH.Coverage
	}

	for _, err := range []error{res.ForecastErr, res.MFTHForecastErr} {
		if err != nil {
			d.Errors = append(d.Errors, stageMessage(err))
		}
	}

	d.Headline = headline(res, opts.TargetYear)
	d.Trend = trend(res, opts)
	d.Markets = markets(res, opts.TopN)
	d.MFTHYears = mfthYears(res, opts.MFTHDisplayFrom)

	if res.Forecast != nil {
		d.Forecast = res.Forecast.Future()
	}
	if res.MFTHForecast != nil {
		d.MFTHForecast = res.MFTHForecast.Future()
	}
	return d
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.Mode == "" {
		opts.Mode = def.Mode
	}
	if opts.DisplayFrom.IsZero() {
		opts.DisplayFrom = def.DisplayFrom
	}
	if opts.MFTHDisplayFrom.IsZero() {
		opts.MFTHDisplayFrom = def.MFTHDisplayFrom
	}
	if opts.TargetYear == 0 {
		opts.TargetYear = def.TargetYear
	}
	if opts.Target == 0 {
		opts.Target = def.Target
	}
	if opts.TopN == 0 {
		opts.TopN = def.TopN
	}
	return opts
}

func stageMessage(err error) string {
	var se *pipeline.StageError
	if errors.As(err, &se) {
		return fmt.Sprintf("%s: %v", se.Stage, se.Err)
	}
	return err.Error()
}

// headline sums the target year. Without a forecast only the confirmed
// months count.
func headline(res *pipeline.Result, year int) Headline {
	h := Headline{Year: year}
	if res.Forecast == nil {
		for _, m := range res.History {
			if m.Month.Year == year {
				h.Confirmed += float64(m.TotalArrivals)
			}
		}
		h.Total = h.Confirmed
		return h
	}

	p := forecast.YearProjection(res.Forecast, year)
	h.Confirmed, h.Predicted, h.Total = p.Actual, p.Predicted, p.Total
	h.ForecastAvailable = true

	if res.MFTHForecast != nil {
		h.MFTHProjection = forecast.YearProjection(res.MFTHForecast, year).Total
		if h.Total > 0 {
			h.MFTHSharePct = h.MFTHProjection / h.Total * 100
		}
	}
	return h
}

func trend(res *pipeline.Result, opts Options) Trend {
	t := Trend{Mode: opts.Mode}

	var points []TrendPoint
	switch {
	case res.Views != nil && len(res.Views.Filter.Nationalities) > 0:
		for _, m := range res.Views.Monthly {
			points = append(points, TrendPoint{Month: m.Month, Value: float64(m.TotalArrivals), IsHistorical: true})
		}
	case res.Forecast != nil:
		t.National = true
		for _, p := range res.Forecast.Points {
			points = append(points, TrendPoint{Month: p.Month, Value: p.Predicted, IsHistorical: p.IsHistorical})
		}
	default:
		t.National = true
		for _, m := range res.History {
			points = append(points, TrendPoint{Month: m.Month, Value: float64(m.TotalArrivals), IsHistorical: true})
		}
	}

	var filter aggregate.Filter
	if res.Views != nil {
		filter = res.Views.Filter
	}

	if opts.Mode == ViewCumulative {
		t.Title = fmt.Sprintf("Cumulative Arrivals %d", opts.TargetYear)
		t.Target = opts.Target
		var sum float64
		for _, p := range points {
			if p.Month.Year != opts.TargetYear {
				continue
			}
			sum += p.Value
			p.Value = sum
			t.Points = append(t.Points, p)
		}
		t.TargetReached = sum >= float64(opts.Target)
		return t
	}

	t.Title = "Monthly Visitor Rate"
	from := opts.DisplayFrom
	if filter.From.After(from) {
		from = filter.From
	}
	for _, p := range points {
		if p.Month.Before(from) {
			continue
		}
		if !filter.To.IsZero() && p.Month.After(filter.To) {
			continue
		}
		t.Points = append(t.Points, p)
	}
	return t
}

// markets ranks the filtered nationalities within the latest year that has
// data.
func markets(res *pipeline.Result, n int) Markets {
	if res.Views == nil || res.Dataset == nil {
		return Markets{}
	}
	year, ok := aggregate.LatestYear(res.Views.Monthly)
	if !ok {
		return Markets{}
	}

	f := res.Views.Filter
	if start := (dataset.Month{Year: year, Month: time.January}); f.From.Before(start) {
		f.From = start
	}
	if end := (dataset.Month{Year: year, Month: time.December}); f.To.IsZero() || f.To.After(end) {
		f.To = end
	}

	all := aggregate.ByNationality(res.Dataset.Records, f)
	var total int64
	for _, b := range all {
		total += b.TotalArrivals
	}

	out := Markets{Year: year}
	for _, b := range aggregate.TopN(all, n) {
		m := Market{Nationality: b.Nationality, TotalArrivals: b.TotalArrivals, Genders: b.Genders}
		if total > 0 {
			m.SharePct = float64(b.TotalArrivals) / float64(total) * 100
		}
		out.Rows = append(out.Rows, m)
	}
	return out
}

// mfthYears groups the MFTH series by year from the given month. Without an
// MFTH forecast the observed estimates of the current view are used.
func mfthYears(res *pipeline.Result, from dataset.Month) []MFTHYear {
	var out []MFTHYear
	add := func(year int, v float64, historical bool) {
		if n := len(out); n == 0 || out[n-1].Year != year {
			out = append(out, MFTHYear{Year: year})
		}
		if historical {
			out[len(out)-1].Actual += v
		} else {
			out[len(out)-1].Forecast += v
		}
	}

	if res.MFTHForecast != nil {
		for _, p := range res.MFTHForecast.Since(from) {
			add(p.Month.Year, p.Predicted, p.IsHistorical)
		}
		return out
	}
	if res.MFTH != nil {
		for _, m := range res.MFTH.Monthly {
			if !m.Month.Before(from) {
				add(m.Month.Year, float64(m.EstimatedMuslimArrivals), true)
			}
		}
	}
	return out
}

// Millions formats an arrivals count as "12.34 M".
func Millions(v float64) string {
	return fmt.Sprintf("%.2f M", v/1e6)
}

// Count abbreviates an arrivals count: 1.23B, 4.56M, 789K.
func Count(v float64) string {
	if v >= 1_000_000_000 {
		return fmt.Sprintf("%.2fB", v/1_000_000_000)
	}
	if v >= 1_000_000 {
		return fmt.Sprintf("%.2fM", v/1_000_000)
	}
	if v >= 1_000 {
		return fmt.Sprintf("%.0fK", v/1_000)
	}
	return fmt.Sprintf("%.0f", v)
}
