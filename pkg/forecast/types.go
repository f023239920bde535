package forecast

import (
	"errors"

	"github.com/tourcast/tourcast/pkg/aggregate"
	"github.com/tourcast/tourcast/pkg/dataset"
)

var (
	// ErrInsufficientHistory is returned when the series is shorter than two
	// full seasonal cycles.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrFitFailed is returned when parameter estimation does not produce a
	// usable model.
	ErrFitFailed = errors.New("forecast fit failed")
)

// Observation is one monthly value of the input series.
type Observation struct {
	Month dataset.Month `json:"month"`
	Value float64       `json:"value"`
}

// FromMonthly converts aggregated monthly totals into observations.
func FromMonthly(rows []aggregate.MonthlyAggregate) []Observation {
	out := make([]Observation, len(rows))
	for i, r := range rows {
		out[i] = Observation{Month: r.Month, Value: float64(r.TotalArrivals)}
	}
	return out
}

// Point is one month of the combined history + forecast series.
type Point struct {
	Month        dataset.Month `json:"month"`
	Predicted    float64       `json:"predicted_arrivals"`
	IsHistorical bool          `json:"is_historical"`
}

// Params are the smoothing parameters of the fitted model.
type Params struct {
	Alpha float64 `json:"alpha"` // level
	Beta  float64 `json:"beta"`  // trend
	Gamma float64 `json:"gamma"` // season
	Phi   float64 `json:"phi"`   // trend damping, 1 when undamped
}

// Options controls the model. Alpha or Beta set to a value in (0,1) pins that
// parameter; zero lets the optimiser choose it.
type Options struct {
	Period         int     `mapstructure:"period"`
	Damped         bool    `mapstructure:"damped"`
	Alpha          float64 `mapstructure:"alpha"`
	Beta           float64 `mapstructure:"beta"`
	MaxEvaluations int     `mapstructure:"max_evaluations"`
}

// DefaultOptions is a damped additive model with a 12-month season.
func DefaultOptions() Options {
	return Options{
		Period:         12,
		Damped:         true,
		MaxEvaluations: 4000,
	}
}

// Result is the combined series plus the fitted parameters.
type Result struct {
	Points       []Point       `json:"points"`
	Params       Params        `json:"params"`
	SSE          float64       `json:"sse"`
	LastObserved dataset.Month `json:"last_observed"`
	Through      dataset.Month `json:"through"`
}

// Historical returns the observed points.
func (r *Result) Historical() []Point {
	var out []Point
	for _, p := range r.Points {
		if p.IsHistorical {
			out = append(out, p)
		}
	}
	return out
}

// Future returns the model output beyond the last observation.
func (r *Result) Future() []Point {
	var out []Point
	for _, p := range r.Points {
		if !p.IsHistorical {
			out = append(out, p)
		}
	}
	return out
}

// Since returns the points from month m onward.
func (r *Result) Since(m dataset.Month) []Point {
	var out []Point
	for _, p := range r.Points {
		if !p.Month.Before(m) {
			out = append(out, p)
		}
	}
	return out
}

// Projection splits a calendar year into confirmed and predicted arrivals.
type Projection struct {
	Year      int     `json:"year"`
	Actual    float64 `json:"actual"`
	Predicted float64 `json:"predicted"`
	Total     float64 `json:"total"`
}

// YearProjection sums the actual and forecast months of a year.
func YearProjection(r *Result, year int) Projection {
	p := Projection{Year: year}
	if r == nil {
		return p
	}
	for _, pt := range r.Points {
		if pt.Month.Year != year {
			continue
		}
		if pt.IsHistorical {
			p.Actual += pt.Predicted
		} else {
			p.Predicted += pt.Predicted
		}
	}
	p.Total = p.Actual + p.Predicted
	return p
}
