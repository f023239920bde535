package mfth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tourcast/tourcast/pkg/aggregate"
	"github.com/tourcast/tourcast/pkg/dataset"
	"github.com/tourcast/tourcast/pkg/reference"
)

func table(t *testing.T) *reference.Table {
	t.Helper()
	tbl, err := reference.New([]reference.Country{
		{ISO3: "IDN", Name: "Indonesia", MuslimShare: reference.Pct(95)},
		{ISO3: "SGP", Name: "Singapore", MuslimShare: reference.Pct(15)},
		{ISO3: "SAU", Name: "Saudi Arabia", MuslimShare: reference.Pct(100)},
		{ISO3: "JPN", Name: "Japan"},
	})
	require.NoError(t, err)
	return tbl
}

var (
	jan = dataset.Month{Year: 2025, Month: time.January}
	feb = dataset.Month{Year: 2025, Month: time.February}
	dec = dataset.Month{Year: 2026, Month: time.December}
)

func TestIndonesiaExample(t *testing.T) {
	rows := []aggregate.PeriodBreakdown{{Month: jan, Nationality: "Indonesia", TotalArrivals: 1_000_000}}
	res, report := Apply(rows, table(t))

	require.Len(t, res.Estimates, 1)
	assert.Equal(t, int64(950_000), res.Estimates[0].EstimatedMuslimArrivals)
	assert.True(t, res.Estimates[0].Matched)
	assert.Equal(t, 95.0, res.Estimates[0].SharePct)
	assert.Empty(t, report.Info)
	assert.Equal(t, 1.0, res.Coverage.Ratio)
}

func TestUnmatchedAreZeroRatedAndSurfaced(t *testing.T) {
	rows := []aggregate.PeriodBreakdown{
		{Month: jan, Nationality: "Singapore", TotalArrivals: 1000},
		{Month: jan, Nationality: "Japan", TotalArrivals: 300},
		{Month: jan, Nationality: "Atlantis", TotalArrivals: 700},
	}
	res, report := Apply(rows, table(t))

	assert.Equal(t, int64(150), res.Total())
	assert.Equal(t, []string{"Singapore"}, res.Coverage.Matched)
	assert.Equal(t, []string{"Atlantis", "Japan"}, res.Coverage.Unmatched, "largest unrated first")
	assert.Equal(t, int64(1000), res.Coverage.CoveredArrivals)
	assert.Equal(t, int64(1000), res.Coverage.UnratedArrivals)
	assert.InDelta(t, 0.5, res.Coverage.Ratio, 1e-9)

	require.Len(t, report.Info, 1)
	assert.True(t, report.Valid)

	for _, e := range res.Estimates {
		if !e.Matched {
			assert.Zero(t, e.EstimatedMuslimArrivals, e.Nationality)
		}
	}
}

func TestEstimateNeverExceedsTotal(t *testing.T) {
	rows := []aggregate.PeriodBreakdown{
		{Month: jan, Nationality: "Saudi Arabia", TotalArrivals: 12345},
		{Month: jan, Nationality: "Indonesia", TotalArrivals: 7},
		{Month: feb, Nationality: "Singapore", TotalArrivals: 99999},
		{Month: feb, Nationality: "Japan", TotalArrivals: 1},
	}
	res, _ := Apply(rows, table(t))

	for _, m := range res.Monthly {
		assert.LessOrEqual(t, m.EstimatedMuslimArrivals, m.TotalArrivals, m.Month.String())
	}
	assert.Equal(t, int64(12345), res.Estimates[0].EstimatedMuslimArrivals)
	assert.Equal(t, int64(6), res.Estimates[1].EstimatedMuslimArrivals, "floored")
}

func TestMonthlyAndYearlyRollups(t *testing.T) {
	rows := []aggregate.PeriodBreakdown{
		{Month: feb, Nationality: "Indonesia", TotalArrivals: 100},
		{Month: jan, Nationality: "Indonesia", TotalArrivals: 200},
		{Month: jan, Nationality: "Singapore", TotalArrivals: 100},
		{Month: dec, Nationality: "Singapore", TotalArrivals: 1000},
	}
	res, _ := Apply(rows, table(t))

	require.Len(t, res.Monthly, 3)
	assert.Equal(t, jan, res.Monthly[0].Month)
	assert.Equal(t, int64(190+15), res.Monthly[0].EstimatedMuslimArrivals)
	assert.Equal(t, int64(300), res.Monthly[0].TotalArrivals)

	years := res.Yearly()
	require.Len(t, years, 2)
	assert.Equal(t, YearEstimate{Year: 2025, TotalArrivals: 400, EstimatedMuslimArrivals: 300}, years[0])
	assert.Equal(t, int64(150), years[1].EstimatedMuslimArrivals)

	series := res.Series()
	require.Len(t, series, 3)
	assert.Equal(t, 205.0, series[0].Value)
}

func TestEmptyInput(t *testing.T) {
	res, report := Apply(nil, table(t))
	assert.Empty(t, res.Estimates)
	assert.Empty(t, res.Monthly)
	assert.Zero(t, res.Coverage.Ratio)
	assert.True(t, report.Valid)
}
