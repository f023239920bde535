package forecast

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/tourcast/tourcast/pkg/dataset"
)

// Forecast fits a seasonal exponential-smoothing model to the monthly series
// and projects it through the given month. Observed months are returned
// unchanged and flagged historical; each month after the last observation up
// to and including through gets one model point.
//
// The series is sorted and months missing inside it count as zero. It must
// cover at least two seasonal cycles, otherwise ErrInsufficientHistory is
// returned.
func Forecast(series []Observation, through dataset.Month, opts Options) (*Result, error) {
	if opts.Period <= 0 {
		opts.Period = DefaultOptions().Period
	}

	obs := normalize(series)
	minLen := 2 * opts.Period
	if len(obs) < minLen {
		return nil, fmt.Errorf("%w: have %d months, need at least %d", ErrInsufficientHistory, len(obs), minLen)
	}

	y := make([]float64, len(obs))
	for i, o := range obs {
		if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
			return nil, fmt.Errorf("%w: non-finite value at %s", ErrFitFailed, o.Month)
		}
		y[i] = o.Value
	}

	m, sse, err := fit(y, opts)
	if err != nil {
		return nil, err
	}

	last := obs[len(obs)-1].Month
	horizon := last.MonthsUntil(through)
	if horizon < 0 {
		horizon = 0
	}

	points := make([]Point, 0, len(obs)+horizon)
	for _, o := range obs {
		points = append(points, Point{Month: o.Month, Predicted: o.Value, IsHistorical: true})
	}
	for h := 1; h <= horizon; h++ {
		v := m.predict(h)
		if v < 0 {
			v = 0
		}
		points = append(points, Point{Month: last.AddMonths(h), Predicted: v})
	}

	log.Debug().
		Str("stage", "forecast").
		Int("history", len(obs)).
		Int("horizon", horizon).
		Float64("alpha", m.params.Alpha).
		Float64("beta", m.params.Beta).
		Float64("gamma", m.params.Gamma).
		Float64("phi", m.params.Phi).
		Msg("Model fitted")

	return &Result{
		Points:       points,
		Params:       m.params,
		SSE:          sse,
		LastObserved: last,
		Through:      through,
	}, nil
}

// normalize sorts observations, merges duplicate months and fills interior
// gaps with zero.
func normalize(series []Observation) []Observation {
	if len(series) == 0 {
		return nil
	}
	sorted := make([]Observation, len(series))
	copy(sorted, series)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Month.Before(sorted[j].Month) })

	first, last := sorted[0].Month, sorted[len(sorted)-1].Month
	values := make([]float64, first.MonthsUntil(last)+1)
	for _, o := range sorted {
		values[first.MonthsUntil(o.Month)] += o.Value
	}

	out := make([]Observation, len(values))
	for i, v := range values {
		out[i] = Observation{Month: first.AddMonths(i), Value: v}
	}
	return out
}
