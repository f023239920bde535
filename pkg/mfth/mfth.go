package mfth

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/tourcast/tourcast/pkg/aggregate"
	"github.com/tourcast/tourcast/pkg/dataset"
	"github.com/tourcast/tourcast/pkg/forecast"
	"github.com/tourcast/tourcast/pkg/validation"
)

// ShareLookup returns the Muslim population percentage of a nationality.
type ShareLookup interface {
	Share(name string) (float64, bool)
}

// Estimate is the MFTH estimate for one nationality in one month.
type Estimate struct {
	Month                   dataset.Month `json:"month"`
	Nationality             string        `json:"nationality"`
	TotalArrivals           int64         `json:"total_arrivals"`
	SharePct                float64       `json:"share_pct"`
	EstimatedMuslimArrivals int64         `json:"estimated_muslim_arrivals"`
	Matched                 bool          `json:"matched"`
}

// MonthlyEstimate sums the estimates of one month.
type MonthlyEstimate struct {
	Month                   dataset.Month `json:"month"`
	TotalArrivals           int64         `json:"total_arrivals"`
	EstimatedMuslimArrivals int64         `json:"estimated_muslim_arrivals"`
}

// YearEstimate sums the estimates of one calendar year.
type YearEstimate struct {
	Year                    int   `json:"year"`
	TotalArrivals           int64 `json:"total_arrivals"`
	EstimatedMuslimArrivals int64 `json:"estimated_muslim_arrivals"`
}

// Coverage describes which part of the arrivals the reference table rates.
// Unmatched nationalities are zero-rated.
type Coverage struct {
	Matched         []string `json:"matched"`
	Unmatched       []string `json:"unmatched"`
	CoveredArrivals int64    `json:"covered_arrivals"`
	UnratedArrivals int64    `json:"unrated_arrivals"`
	Ratio           float64  `json:"ratio"`
}

// Result holds the per-nationality estimates and their roll-ups.
type Result struct {
	Estimates []Estimate        `json:"estimates"`
	Monthly   []MonthlyEstimate `json:"monthly"`
	Coverage  Coverage          `json:"coverage"`
}

// Apply multiplies each (month, nationality) total by the nationality's
// share. Lookup is an exact name match; nationalities missing from the table
// get a zero estimate and are listed in the coverage and in the report.
func Apply(rows []aggregate.PeriodBreakdown, table ShareLookup) (*Result, *validation.Report) {
	report := validation.NewReport()
	res := &Result{Estimates: make([]Estimate, 0, len(rows))}

	matched := make(map[string]bool)
	unmatched := make(map[string]int64)
	months := make(map[dataset.Month]*MonthlyEstimate)

	for _, row := range rows {
		pct, ok := table.Share(row.Nationality)
		e := Estimate{
			Month:         row.Month,
			Nationality:   row.Nationality,
			TotalArrivals: row.TotalArrivals,
			Matched:       ok,
		}
		if ok {
			e.SharePct = pct
			e.EstimatedMuslimArrivals = estimate(row.TotalArrivals, pct)
			matched[row.Nationality] = true
			res.Coverage.CoveredArrivals += row.TotalArrivals
		} else {
			unmatched[row.Nationality] += row.TotalArrivals
			res.Coverage.UnratedArrivals += row.TotalArrivals
		}
		res.Estimates = append(res.Estimates, e)

		me, found := months[row.Month]
		if !found {
			me = &MonthlyEstimate{Month: row.Month}
			months[row.Month] = me
		}
		me.TotalArrivals += e.TotalArrivals
		me.EstimatedMuslimArrivals += e.EstimatedMuslimArrivals
	}

	for _, me := range months {
		res.Monthly = append(res.Monthly, *me)
	}
	sort.Slice(res.Monthly, func(i, j int) bool {
		return res.Monthly[i].Month.Before(res.Monthly[j].Month)
	})

	res.Coverage.Matched = sortedKeys(matched)
	res.Coverage.Unmatched = make([]string, 0, len(unmatched))
	for n := range unmatched {
		res.Coverage.Unmatched = append(res.Coverage.Unmatched, n)
	}
	// Largest unrated markets first.
	sort.Slice(res.Coverage.Unmatched, func(i, j int) bool {
		a, b := res.Coverage.Unmatched[i], res.Coverage.Unmatched[j]
		if unmatched[a] != unmatched[b] {
			return unmatched[a] > unmatched[b]
		}
		return a < b
	})
	if all := res.Coverage.CoveredArrivals + res.Coverage.UnratedArrivals; all > 0 {
		res.Coverage.Ratio = float64(res.Coverage.CoveredArrivals) / float64(all)
	}

	if len(res.Coverage.Unmatched) > 0 {
		report.AddInfo(validation.Result{
			Stage:       validation.StageEstimate,
			Message:     fmt.Sprintf("%d nationalities have no Muslim-share rating and are zero-rated", len(res.Coverage.Unmatched)),
			ActualValue: strings.Join(res.Coverage.Unmatched, ", "),
			Expected:    "listed in the reference table",
		})
	}
	return res, report
}

// estimate floors total*pct/100, so the result never exceeds total for
// pct <= 100.
func estimate(total int64, pct float64) int64 {
	if pct <= 0 || total <= 0 {
		return 0
	}
	if pct >= 100 {
		return total
	}
	return int64(math.Floor(float64(total) * pct / 100))
}

// Total sums all estimates.
func (r *Result) Total() int64 {
	var sum int64
	for _, e := range r.Estimates {
		sum += e.EstimatedMuslimArrivals
	}
	return sum
}

// Yearly sums the monthly estimates per year, ascending.
func (r *Result) Yearly() []YearEstimate {
	var out []YearEstimate
	for _, m := range r.Monthly {
		if n := len(out); n > 0 && out[n-1].Year == m.Month.Year {
			out[n-1].TotalArrivals += m.TotalArrivals
			out[n-1].EstimatedMuslimArrivals += m.EstimatedMuslimArrivals
			continue
		}
		out = append(out, YearEstimate{
			Year:                    m.Month.Year,
			TotalArrivals:           m.TotalArrivals,
			EstimatedMuslimArrivals: m.EstimatedMuslimArrivals,
		})
	}
	return out
}

// Series converts the monthly estimates into forecast observations.
func (r *Result) Series() []forecast.Observation {
	out := make([]forecast.Observation, len(r.Monthly))
	for i, m := range r.Monthly {
		out[i] = forecast.Observation{Month: m.Month, Value: float64(m.EstimatedMuslimArrivals)}
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
