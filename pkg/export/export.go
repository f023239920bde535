package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/tourcast/tourcast/pkg/pipeline"
	"github.com/tourcast/tourcast/pkg/report"
)

// Sheet names, in workbook order.
const (
	SheetSummary       = "Summary"
	SheetMonthly       = "Monthly"
	SheetNationalities = "Nationalities"
	SheetForecast      = "Forecast"
	SheetMFTH          = "MFTH"
	SheetCoverage      = "Coverage"
)

// Sheets lists the sheets Workbook creates.
func Sheets() []string {
	return []string{SheetSummary, SheetMonthly, SheetNationalities, SheetForecast, SheetMFTH, SheetCoverage}
}

// Write encodes the workbook for res and d as XLSX into w.
func Write(w io.Writer, res *pipeline.Result, d *report.Dashboard) error {
	f, err := Workbook(res, d)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// Workbook builds one sheet per view. The caller closes the file.
func Workbook(res *pipeline.Result, d *report.Dashboard) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, err
	}
	for _, name := range Sheets()[1:] {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}
	}

	sw := &sheetWriter{f: f}
	summary(sw, d)
	monthly(sw, res)
	nationalities(sw, res)
	forecastSheet(sw, res)
	mfthSheet(sw, res, d)
	coverage(sw, d)

	if sw.err != nil {
		f.Close()
		return nil, fmt.Errorf("building workbook: %w", sw.err)
	}
	f.SetActiveSheet(0)
	return f, nil
}

// sheetWriter keeps the first error of a sequence of cell writes.
type sheetWriter struct {
	f   *excelize.File
	err error
}

func (w *sheetWriter) row(sheet string, rowNum int, values ...any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetSheetRow(sheet, cell, &values)
}

func (w *sheetWriter) header(sheet string, headers ...string) {
	values := make([]any, len(headers))
	for i, h := range headers {
		values[i] = h
	}
	w.row(sheet, 1, values...)
	if w.err == nil && len(headers) > 0 {
		last, _ := excelize.ColumnNumberToName(len(headers))
		w.err = w.f.SetColWidth(sheet, "A", last, 18)
	}
}

func summary(w *sheetWriter, d *report.Dashboard) {
	h := d.Headline
	w.header(SheetSummary, "Metric", "Value")
	w.row(SheetSummary, 2, "Run", d.RunID)
	w.row(SheetSummary, 3, fmt.Sprintf("Confirmed arrivals %d (YTD)", h.Year), h.Confirmed)
	w.row(SheetSummary, 4, "Predicted rest of year", h.Predicted)
	w.row(SheetSummary, 5, fmt.Sprintf("Total %d projection", h.Year), h.Total)
	w.row(SheetSummary, 6, "Projected MFTH arrivals", h.MFTHProjection)
	w.row(SheetSummary, 7, "MFTH market share (%)", h.MFTHSharePct)
	w.row(SheetSummary, 8, "Forecast through", d.Through.String())
	w.row(SheetSummary, 9, "Forecast available", h.ForecastAvailable)
	for i, msg := range d.Errors {
		w.row(SheetSummary, 10+i, "Error", msg)
	}
}

func monthly(w *sheetWriter, res *pipeline.Result) {
	w.header(SheetMonthly, "Month", "Total Arrivals", "Cumulative Arrivals")
	if res.Views == nil {
		return
	}
	for i, m := range res.Views.Monthly {
		w.row(SheetMonthly, i+2, m.Month.String(), m.TotalArrivals, m.CumulativeArrivals)
	}
}

func nationalities(w *sheetWriter, res *pipeline.Result) {
	w.header(SheetNationalities, "Nationality", "Total Arrivals", "Male", "Female", "Unspecified")
	if res.Views == nil {
		return
	}
	for i, n := range res.Views.Nationalities {
		g := n.Genders
		w.row(SheetNationalities, i+2, n.Nationality, n.TotalArrivals, g.Male, g.Female, g.Unspecified)
	}
}

func forecastSheet(w *sheetWriter, res *pipeline.Result) {
	w.header(SheetForecast, "Month", "Arrivals", "Type")
	if res.Forecast == nil {
		return
	}
	for i, p := range res.Forecast.Points {
		w.row(SheetForecast, i+2, p.Month.String(), p.Predicted, pointType(p.IsHistorical))
	}
}

func mfthSheet(w *sheetWriter, res *pipeline.Result, d *report.Dashboard) {
	w.header(SheetMFTH, "Year", "Actual", "Forecast")
	for i, y := range d.MFTHYears {
		w.row(SheetMFTH, i+2, y.Year, y.Actual, y.Forecast)
	}
	if res.MFTH == nil {
		return
	}

	start := len(d.MFTHYears) + 3
	w.row(SheetMFTH, start, "Month", "Nationality", "Total Arrivals", "Muslim Share (%)", "Estimated Muslim Arrivals")
	for i, e := range res.MFTH.Estimates {
		share := any(e.SharePct)
		if !e.Matched {
			share = "unrated"
		}
		w.row(SheetMFTH, start+1+i, e.Month.String(), e.Nationality, e.TotalArrivals, share, e.EstimatedMuslimArrivals)
	}
}

func coverage(w *sheetWriter, d *report.Dashboard) {
	c := d.Coverage
	w.header(SheetCoverage, "Metric", "Value")
	w.row(SheetCoverage, 2, "Covered arrivals", c.CoveredArrivals)
	w.row(SheetCoverage, 3, "Unrated arrivals", c.UnratedArrivals)
	w.row(SheetCoverage, 4, "Coverage ratio", c.Ratio)
	w.row(SheetCoverage, 6, "Unrated nationality")
	for i, n := range c.Unmatched {
		w.row(SheetCoverage, 7+i, n)
	}
}

func pointType(historical bool) string {
	if historical {
		return "Actual"
	}
	return "Forecast"
}
