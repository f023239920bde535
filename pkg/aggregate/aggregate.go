package aggregate

import (
	"sort"

	"github.com/tourcast/tourcast/pkg/dataset"
)

// Build computes all views for the filter. When nothing matches it returns
// empty (non-nil) views together with ErrEmptyResult.
func Build(records []dataset.ArrivalRecord, f Filter) (*Views, error) {
	v := &Views{
		Filter:        f,
		Monthly:       Monthly(records, f),
		Nationalities: ByNationality(records, f),
		Periods:       ByPeriod(records, f),
		Genders:       Genders(records, f),
	}
	if len(v.Monthly) == 0 {
		return v, ErrEmptyResult
	}
	return v, nil
}

// Monthly sums records per month, ordered ascending. Months between the first
// and last match that have no records appear with a zero total, so the
// cumulative column never decreases.
func Monthly(records []dataset.ArrivalRecord, f Filter) []MonthlyAggregate {
	totals := make(map[dataset.Month]int64)
	var first, last dataset.Month
	for _, r := range records {
		if !f.Match(r) {
			continue
		}
		if len(totals) == 0 || r.Month.Before(first) {
			first = r.Month
		}
		if len(totals) == 0 || r.Month.After(last) {
			last = r.Month
		}
		totals[r.Month] += r.Count
	}
	if len(totals) == 0 {
		return []MonthlyAggregate{}
	}

	rows := make([]MonthlyAggregate, 0, first.MonthsUntil(last)+1)
	for m := first; !m.After(last); m = m.Next() {
		rows = append(rows, MonthlyAggregate{Month: m, TotalArrivals: totals[m]})
	}
	return Cumulative(rows)
}

// Cumulative returns a copy of rows with CumulativeArrivals recomputed as the
// running sum of TotalArrivals in the given order.
func Cumulative(rows []MonthlyAggregate) []MonthlyAggregate {
	out := make([]MonthlyAggregate, len(rows))
	var sum int64
	for i, r := range rows {
		sum += r.TotalArrivals
		r.CumulativeArrivals = sum
		out[i] = r
	}
	return out
}

// CumulativeWithin keeps the rows of one year and restarts the running sum at
// its first month.
func CumulativeWithin(rows []MonthlyAggregate, year int) []MonthlyAggregate {
	var kept []MonthlyAggregate
	for _, r := range rows {
		if r.Month.Year == year {
			kept = append(kept, r)
		}
	}
	return Cumulative(kept)
}

// ByNationality totals each nationality over the filtered range, largest
// first; ties are ordered by name.
func ByNationality(records []dataset.ArrivalRecord, f Filter) []NationalityBreakdown {
	idx := make(map[string]int)
	out := []NationalityBreakdown{}
	for _, r := range records {
		if !f.Match(r) {
			continue
		}
		i, ok := idx[r.Nationality]
		if !ok {
			i = len(out)
			idx[r.Nationality] = i
			out = append(out, NationalityBreakdown{Nationality: r.Nationality})
		}
		out[i].TotalArrivals += r.Count
		out[i].Genders.Add(r.Gender, r.Count)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalArrivals != out[j].TotalArrivals {
			return out[i].TotalArrivals > out[j].TotalArrivals
		}
		return out[i].Nationality < out[j].Nationality
	})
	return out
}

type periodKey struct {
	month       dataset.Month
	nationality string
}

// ByPeriod totals each (month, nationality) pair, ordered chronologically and
// then by descending total.
func ByPeriod(records []dataset.ArrivalRecord, f Filter) []PeriodBreakdown {
	idx := make(map[periodKey]int)
	out := []PeriodBreakdown{}
	for _, r := range records {
		if !f.Match(r) {
			continue
		}
		k := periodKey{r.Month, r.Nationality}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, PeriodBreakdown{Month: r.Month, Nationality: r.Nationality})
		}
		out[i].TotalArrivals += r.Count
		out[i].Genders.Add(r.Gender, r.Count)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Month != b.Month {
			return a.Month.Before(b.Month)
		}
		if a.TotalArrivals != b.TotalArrivals {
			return a.TotalArrivals > b.TotalArrivals
		}
		return a.Nationality < b.Nationality
	})
	return out
}

// Genders totals arrivals per gender over the filtered records.
func Genders(records []dataset.ArrivalRecord, f Filter) GenderSplit {
	var g GenderSplit
	for _, r := range records {
		if f.Match(r) {
			g.Add(r.Gender, r.Count)
		}
	}
	return g
}

// Yearly sums monthly rows per calendar year, ascending.
func Yearly(rows []MonthlyAggregate) []YearTotal {
	var out []YearTotal
	for _, r := range rows {
		if n := len(out); n > 0 && out[n-1].Year == r.Month.Year {
			out[n-1].TotalArrivals += r.TotalArrivals
			continue
		}
		out = append(out, YearTotal{Year: r.Month.Year, TotalArrivals: r.TotalArrivals})
	}
	return out
}

// TopN returns at most n leading rows of an ordered breakdown.
func TopN(b []NationalityBreakdown, n int) []NationalityBreakdown {
	if n <= 0 || n >= len(b) {
		return b
	}
	return b[:n]
}

// Nationalities lists the distinct nationalities in records, sorted by name.
func Nationalities(records []dataset.ArrivalRecord) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range records {
		if _, ok := seen[r.Nationality]; !ok {
			seen[r.Nationality] = struct{}{}
			out = append(out, r.Nationality)
		}
	}
	sort.Strings(out)
	return out
}

// LatestYear returns the most recent year present in rows.
func LatestYear(rows []MonthlyAggregate) (int, bool) {
	if len(rows) == 0 {
		return 0, false
	}
	return rows[len(rows)-1].Month.Year, true
}
