package main

import (
	"fmt"
	"strings"

	"github.com/tourcast/tourcast/pkg/report"
	"github.com/tourcast/tourcast/pkg/validation"
)

func printValidationReport(r *validation.Report) {
	if len(r.Errors) > 0 {
		fmt.Printf("ERRORS (%d):\n", len(r.Errors))
		for _, e := range r.Errors {
			printFinding(e)
		}
		fmt.Println()
	}

	if len(r.Warnings) > 0 {
		fmt.Printf("WARNINGS (%d):\n", len(r.Warnings))
		for _, w := range r.Warnings {
			printFinding(w)
		}
		fmt.Println()
	}

	if len(r.Info) > 0 {
		fmt.Printf("INFO (%d):\n", len(r.Info))
		for _, i := range r.Info {
			fmt.Printf("  [%s] %s\n", i.Stage, i.Message)
			if i.ActualValue != nil {
				fmt.Printf("    -> %v\n", i.ActualValue)
			}
		}
		fmt.Println()
	}

	if r.Valid {
		fmt.Printf("Result: VALID (%s)\n", r.Summary)
	} else {
		fmt.Printf("Result: INVALID (%s)\n", r.Summary)
	}
}

func printFinding(f validation.Result) {
	fmt.Printf("  [%s] %s\n", f.Stage, f.Message)
	if f.Field != "" {
		fmt.Printf("    -> %s = %v\n", f.Field, f.ActualValue)
	}
	if f.Expected != "" {
		fmt.Printf("    expected: %s\n", f.Expected)
	}
	for _, s := range f.Suggestions {
		fmt.Printf("    * %s\n", s)
	}
}

func printDashboard(d *report.Dashboard) {
	title := fmt.Sprintf("Tourism Forecast (%d)", d.Headline.Year)
	fmt.Println(title)
	fmt.Println(strings.Repeat("=", len(title)))
	fmt.Println()

	for _, e := range d.Errors {
		fmt.Printf("! Forecast unavailable (%s); showing history only.\n", e)
	}
	if d.Empty {
		fmt.Println("No data for the current selection.")
		return
	}

	h := d.Headline
	fmt.Printf("  Confirmed arrivals (YTD):   %s\n", report.Millions(h.Confirmed))
	fmt.Printf("  Predicted rest of year:     %s\n", report.Millions(h.Predicted))
	fmt.Printf("  Total %d projection:      %s\n", h.Year, report.Millions(h.Total))
	fmt.Printf("  Projected Muslim arrivals:  %s\n", report.Millions(h.MFTHProjection))
	fmt.Printf("  MFTH market share:          %.1f%%\n", h.MFTHSharePct)
	fmt.Println()

	printTrend(d.Trend)
	fmt.Println()

	fmt.Printf("Top Source Markets (%d)\n", d.Markets.Year)
	fmt.Println("-----------------------")
	fmt.Printf("%-20s %12s %8s\n", "Nationality", "Arrivals", "Share")
	for _, m := range d.Markets.Rows {
		fmt.Printf("%-20s %12s %7.1f%%\n", m.Nationality, report.Count(float64(m.TotalArrivals)), m.SharePct)
	}
	g := d.Genders
	fmt.Printf("\nGender: male %s, female %s, unspecified %s\n",
		report.Count(float64(g.Male)), report.Count(float64(g.Female)), report.Count(float64(g.Unspecified)))
	fmt.Println()

	fmt.Println("Muslim Arrivals: History vs Prediction")
	fmt.Println("--------------------------------------")
	fmt.Printf("%-6s %14s %14s\n", "Year", "Actual", "Forecast")
	for _, y := range d.MFTHYears {
		fmt.Printf("%-6d %14s %14s\n", y.Year, report.Count(y.Actual), report.Count(y.Forecast))
	}
	c := d.Coverage
	fmt.Printf("\nReference table rates %.1f%% of arrivals.\n", c.Ratio*100)
	if len(c.Unmatched) > 0 {
		fmt.Printf("Unrated (counted as 0%%): %s\n", strings.Join(c.Unmatched, ", "))
	}
}

func printTrend(t report.Trend) {
	fmt.Println(t.Title)
	fmt.Println(strings.Repeat("-", len(t.Title)))
	for _, p := range t.Points {
		kind := "actual"
		if !p.IsHistorical {
			kind = "forecast"
		}
		fmt.Printf("  %s %14s  %s\n", p.Month, report.Count(p.Value), kind)
	}
	if t.Target > 0 {
		status := "not reached"
		if t.TargetReached {
			status = "reached"
		}
		fmt.Printf("  target %s: %s\n", report.Millions(float64(t.Target)), status)
	}
}
