package forecast

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// Parameter bounds. Phi stays below 1 so long horizons flatten out.
const (
	minSmoothing = 1e-4
	maxSmoothing = 1 - 1e-4
	minPhi       = 0.80
	maxPhi       = 0.98
)

// model is an additive Holt-Winters state after filtering the series.
type model struct {
	params   Params
	level    float64
	trend    float64
	seasonal []float64 // indexed by t % period
	n        int
}

// initialState seeds level, trend and seasonal offsets from the first two
// seasons.
func initialState(y []float64, period int) (level, trend float64, seasonal []float64) {
	first := stat.Mean(y[:period], nil)
	second := stat.Mean(y[period:2*period], nil)
	level = first
	trend = (second - first) / float64(period)
	seasonal = make([]float64, period)
	for i := 0; i < period; i++ {
		seasonal[i] = y[i] - first
	}
	return level, trend, seasonal
}

// filter runs the smoothing recursions and returns the final state together
// with the one-step-ahead sum of squared errors.
func filter(y []float64, period int, p Params) (*model, float64) {
	level, trend, seasonal := initialState(y, period)
	sse := 0.0
	for t, obs := range y {
		i := t % period
		sOld := seasonal[i]
		fitted := level + p.Phi*trend + sOld
		e := obs - fitted
		sse += e * e

		prevLevel := level
		level = p.Alpha*(obs-sOld) + (1-p.Alpha)*(prevLevel+p.Phi*trend)
		trend = p.Beta*(level-prevLevel) + (1-p.Beta)*p.Phi*trend
		seasonal[i] = p.Gamma*(obs-level) + (1-p.Gamma)*sOld
	}
	return &model{params: p, level: level, trend: trend, seasonal: seasonal, n: len(y)}, sse
}

// predict returns the h-step-ahead forecast (h >= 1).
func (m *model) predict(h int) float64 {
	damp := 0.0
	f := 1.0
	for k := 1; k <= h; k++ {
		f *= m.params.Phi
		damp += f
	}
	period := len(m.seasonal)
	return m.level + damp*m.trend + m.seasonal[(m.n+h-1)%period]
}

// fit chooses the free parameters by minimising the one-step-ahead SSE with
// Nelder-Mead over a logistic reparameterisation, so every candidate stays
// inside its bounds.
func fit(y []float64, opts Options) (*model, float64, error) {
	type slot struct {
		lo, hi float64
		start  float64
		set    func(*Params, float64)
	}

	base := Params{Phi: 1}
	var free []slot

	pin := func(v float64, set func(*Params, float64), start float64) {
		if v > 0 && v < 1 {
			set(&base, v)
			return
		}
		free = append(free, slot{minSmoothing, maxSmoothing, start, set})
	}
	pin(opts.Alpha, func(p *Params, v float64) { p.Alpha = v }, 0.3)
	pin(opts.Beta, func(p *Params, v float64) { p.Beta = v }, 0.1)
	free = append(free, slot{minSmoothing, maxSmoothing, 0.1, func(p *Params, v float64) { p.Gamma = v }})
	if opts.Damped {
		free = append(free, slot{minPhi, maxPhi, 0.9, func(p *Params, v float64) { p.Phi = v }})
	}

	decode := func(x []float64) Params {
		p := base
		for i, s := range free {
			s.set(&p, s.lo+(s.hi-s.lo)*sigmoid(x[i]))
		}
		return p
	}

	// Normalise by the series scale; raw SSE of monthly arrivals is ~1e13.
	scale := 0.0
	for _, v := range y {
		scale += math.Abs(v)
	}
	scale /= float64(len(y))
	if scale == 0 {
		scale = 1
	}
	norm := scale * scale * float64(len(y))

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			_, sse := filter(y, opts.Period, decode(x))
			return sse / norm
		},
	}

	x0 := make([]float64, len(free))
	for i, s := range free {
		x0[i] = logit((s.start - s.lo) / (s.hi - s.lo))
	}

	maxEval := opts.MaxEvaluations
	if maxEval <= 0 {
		maxEval = DefaultOptions().MaxEvaluations
	}
	res, err := optimize.Minimize(problem, x0, &optimize.Settings{FuncEvaluations: maxEval}, &optimize.NelderMead{})
	if res == nil || math.IsNaN(res.F) || math.IsInf(res.F, 0) {
		return nil, 0, fmt.Errorf("%w: optimiser returned no finite solution: %v", ErrFitFailed, err)
	}
	if err != nil && res.Status == optimize.Failure {
		return nil, 0, fmt.Errorf("%w: %v", ErrFitFailed, err)
	}

	m, sse := filter(y, opts.Period, decode(res.X))
	if math.IsNaN(sse) || math.IsInf(sse, 0) {
		return nil, 0, fmt.Errorf("%w: non-finite error at fitted parameters", ErrFitFailed)
	}
	return m, sse, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func logit(p float64) float64 {
	return math.Log(p / (1 - p))
}
