package report

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tourcast/tourcast/pkg/aggregate"
	"github.com/tourcast/tourcast/pkg/dataset"
	"github.com/tourcast/tourcast/pkg/forecast"
	"github.com/tourcast/tourcast/pkg/mfth"
	"github.com/tourcast/tourcast/pkg/pipeline"
	"github.com/tourcast/tourcast/pkg/validation"
)

func month(y int, m time.Month) dataset.Month {
	return dataset.Month{Year: y, Month: m}
}

func sampleResult() *pipeline.Result {
	records := []dataset.ArrivalRecord{
		{Month: month(2025, time.December), Nationality: "Singapore", Gender: dataset.GenderUnspecified, Count: 100},
		{Month: month(2026, time.January), Nationality: "Singapore", Gender: dataset.GenderMale, Count: 80},
		{Month: month(2026, time.January), Nationality: "Indonesia", Gender: dataset.GenderFemale, Count: 120},
	}
	views, _ := aggregate.Build(records, aggregate.Filter{})

	return &pipeline.Result{
		RunID:   "run-1",
		Dataset: &dataset.Dataset{Records: records},
		Views:   views,
		History: views.Monthly,
		Forecast: &forecast.Result{Points: []forecast.Point{
			{Month: month(2025, time.December), Predicted: 100, IsHistorical: true},
			{Month: month(2026, time.January), Predicted: 200, IsHistorical: true},
			{Month: month(2026, time.February), Predicted: 300},
		}},
		MFTH: &mfth.Result{Coverage: mfth.Coverage{Matched: []string{"Indonesia", "Singapore"}, Ratio: 1}},
		MFTHForecast: &forecast.Result{Points: []forecast.Point{
			{Month: month(2025, time.December), Predicted: 15, IsHistorical: true},
			{Month: month(2026, time.January), Predicted: 50, IsHistorical: true},
			{Month: month(2026, time.February), Predicted: 50},
		}},
		Through: month(2026, time.February),
		Report:  validation.NewReport(),
	}
}

func TestParseViewMode(t *testing.T) {
	m, err := ParseViewMode("")
	require.NoError(t, err)
	assert.Equal(t, ViewMonthly, m)

	m, err = ParseViewMode("cumulative")
	require.NoError(t, err)
	assert.Equal(t, ViewCumulative, m)

	_, err = ParseViewMode("weekly")
	assert.Error(t, err)
}

func TestHeadline(t *testing.T) {
	d := Build(sampleResult(), Options{})

	h := d.Headline
	assert.Equal(t, 2026, h.Year)
	assert.Equal(t, 200.0, h.Confirmed)
	assert.Equal(t, 300.0, h.Predicted)
	assert.Equal(t, 500.0, h.Total)
	assert.True(t, h.ForecastAvailable)
	assert.Equal(t, 100.0, h.MFTHProjection)
	assert.InDelta(t, 20.0, h.MFTHSharePct, 1e-9)
}

func TestMonthlyTrend(t *testing.T) {
	d := Build(sampleResult(), Options{Mode: ViewMonthly})

	require.Len(t, d.Trend.Points, 3)
	assert.True(t, d.Trend.National)
	assert.Zero(t, d.Trend.Target)
	assert.True(t, d.Trend.Points[1].IsHistorical)
	assert.False(t, d.Trend.Points[2].IsHistorical)

	d = Build(sampleResult(), Options{DisplayFrom: month(2026, time.January)})
	assert.Len(t, d.Trend.Points, 2)
}

func TestCumulativeTrendStaysInTargetYear(t *testing.T) {
	d := Build(sampleResult(), Options{Mode: ViewCumulative})

	require.Len(t, d.Trend.Points, 2)
	assert.Equal(t, 200.0, d.Trend.Points[0].Value)
	assert.Equal(t, 500.0, d.Trend.Points[1].Value)
	assert.Equal(t, DefaultTarget, d.Trend.Target)
	assert.False(t, d.Trend.TargetReached)

	d = Build(sampleResult(), Options{Mode: ViewCumulative, Target: 400})
	assert.True(t, d.Trend.TargetReached)

	for i := 1; i < len(d.Trend.Points); i++ {
		assert.GreaterOrEqual(t, d.Trend.Points[i].Value, d.Trend.Points[i-1].Value)
	}
}

func TestMarketsUseLatestYear(t *testing.T) {
	d := Build(sampleResult(), Options{TopN: 1})

	assert.Equal(t, 2026, d.Markets.Year)
	require.Len(t, d.Markets.Rows, 1)
	assert.Equal(t, "Indonesia", d.Markets.Rows[0].Nationality)
	assert.Equal(t, int64(120), d.Markets.Rows[0].TotalArrivals)
	assert.InDelta(t, 60.0, d.Markets.Rows[0].SharePct, 1e-9)
	assert.Equal(t, []string{"Indonesia", "Singapore"}, d.Nationalities)
}

func TestMFTHYears(t *testing.T) {
	d := Build(sampleResult(), Options{})

	require.Len(t, d.MFTHYears, 2)
	assert.Equal(t, MFTHYear{Year: 2025, Actual: 15}, d.MFTHYears[0])
	assert.Equal(t, MFTHYear{Year: 2026, Actual: 50, Forecast: 50}, d.MFTHYears[1])
	assert.Len(t, d.MFTHForecast, 1)
	assert.Len(t, d.Forecast, 1)
}

func TestForecastFailureKeepsHistory(t *testing.T) {
	res := sampleResult()
	res.Forecast = nil
	res.MFTHForecast = nil
	res.ForecastErr = &pipeline.StageError{Stage: validation.StageForecast, Err: fmt.Errorf("%w: have 3 months", forecast.ErrInsufficientHistory)}

	d := Build(res, Options{})

	require.Len(t, d.Errors, 1)
	assert.Contains(t, d.Errors[0], "forecast: insufficient history")
	assert.False(t, d.Headline.ForecastAvailable)
	assert.Equal(t, 200.0, d.Headline.Confirmed)
	assert.Equal(t, 200.0, d.Headline.Total)
	assert.Len(t, d.Trend.Points, 2, "observed months only")
	assert.Empty(t, d.Forecast)
}

func TestNationalityFilterLimitsTrend(t *testing.T) {
	res := sampleResult()
	views, err := aggregate.Build(res.Dataset.Records, aggregate.Filter{Nationalities: []string{"Singapore"}})
	require.NoError(t, err)
	res.Views = views

	d := Build(res, Options{})
	assert.False(t, d.Trend.National)
	require.Len(t, d.Trend.Points, 2)
	assert.Equal(t, 80.0, d.Trend.Points[1].Value)
	require.Len(t, d.Markets.Rows, 1)
	assert.Equal(t, "Singapore", d.Markets.Rows[0].Nationality)
}

func TestEmptyDashboard(t *testing.T) {
	views, err := aggregate.Build(nil, aggregate.Filter{})
	require.ErrorIs(t, err, aggregate.ErrEmptyResult)

	res := &pipeline.Result{
		Dataset: &dataset.Dataset{},
		Views:   views,
		MFTH:    &mfth.Result{},
		Empty:   true,
		Report:  validation.NewReport(),
	}
	d := Build(res, Options{})
	assert.True(t, d.Empty)
	assert.Empty(t, d.Trend.Points)
	assert.Empty(t, d.Markets.Rows)
	assert.Empty(t, d.MFTHYears)
	assert.Zero(t, d.Headline.Total)
}

func TestMillions(t *testing.T) {
	assert.Equal(t, "29.51 M", Millions(29_510_000))
	assert.Equal(t, "0.00 M", Millions(0))
}

func TestCount(t *testing.T) {
	assert.Equal(t, "1.50B", Count(1_500_000_000))
	assert.Equal(t, "30.00M", Count(float64(DefaultTarget)))
	assert.Equal(t, "12K", Count(12_345))
	assert.Equal(t, "999", Count(999))
}
