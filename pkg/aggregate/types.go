package aggregate

import (
	"errors"

	"github.com/tourcast/tourcast/pkg/dataset"
)

// ErrEmptyResult marks an aggregation over zero matching rows. It is not
// fatal: the returned views are empty and callers render a no-data state.
var ErrEmptyResult = errors.New("empty result")

// MonthlyAggregate is the total for one month plus the running sum up to it.
type MonthlyAggregate struct {
	Month              dataset.Month `json:"month"`
	TotalArrivals      int64         `json:"total_arrivals"`
	CumulativeArrivals int64         `json:"cumulative_arrivals"`
}

// GenderSplit holds arrivals per gender.
type GenderSplit struct {
	Male        int64 `json:"male"`
	Female      int64 `json:"female"`
	Unspecified int64 `json:"unspecified"`
}

// Add accumulates n arrivals of gender g.
func (g *GenderSplit) Add(gender dataset.Gender, n int64) {
	switch gender {
	case dataset.GenderMale:
		g.Male += n
	case dataset.GenderFemale:
		g.Female += n
	default:
		g.Unspecified += n
	}
}

// Total is the sum over all genders.
func (g GenderSplit) Total() int64 {
	return g.Male + g.Female + g.Unspecified
}

// NationalityBreakdown is the total of one nationality over the filtered range.
type NationalityBreakdown struct {
	Nationality   string      `json:"nationality"`
	TotalArrivals int64       `json:"total_arrivals"`
	Genders       GenderSplit `json:"gender_split"`
}

// PeriodBreakdown is the total of one nationality in one month.
type PeriodBreakdown struct {
	Month         dataset.Month `json:"month"`
	Nationality   string        `json:"nationality"`
	TotalArrivals int64         `json:"total_arrivals"`
	Genders       GenderSplit   `json:"gender_split"`
}

// YearTotal is the sum of monthly totals in a calendar year.
type YearTotal struct {
	Year          int   `json:"year"`
	TotalArrivals int64 `json:"total_arrivals"`
}

// Filter restricts records by month range and nationality. Zero months are
// open bounds; an empty nationality list matches everything.
type Filter struct {
	From          dataset.Month `json:"from"`
	To            dataset.Month `json:"to"`
	Nationalities []string      `json:"nationalities,omitempty"`
}

// Match reports whether the record passes the filter.
func (f Filter) Match(r dataset.ArrivalRecord) bool {
	if !f.From.IsZero() && r.Month.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.Month.After(f.To) {
		return false
	}
	if len(f.Nationalities) == 0 {
		return true
	}
	for _, n := range f.Nationalities {
		if n == r.Nationality {
			return true
		}
	}
	return false
}

// Views bundles every derived table for one filter.
type Views struct {
	Filter        Filter                 `json:"filter"`
	Monthly       []MonthlyAggregate     `json:"monthly"`
	Nationalities []NationalityBreakdown `json:"nationalities"`
	Periods       []PeriodBreakdown      `json:"periods"`
	Genders       GenderSplit            `json:"genders"`
}

// Empty reports whether no record matched the filter.
func (v *Views) Empty() bool {
	return v == nil || len(v.Monthly) == 0
}
