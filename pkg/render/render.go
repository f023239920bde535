package render

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/tourcast/tourcast/pkg/report"
)

// ErrUnknownChart is returned for a chart name not in Names.
var ErrUnknownChart = errors.New("unknown chart")

// Chart names.
const (
	ChartTrend   = "trend"
	ChartMarkets = "markets"
	ChartMFTH    = "mfth"
	ChartGenders = "genders"
)

// Names lists every chart Render can draw.
func Names() []string {
	return []string{ChartTrend, ChartMarkets, ChartMFTH, ChartGenders}
}

var (
	colorActual   = color.RGBA{R: 0x36, G: 0xa2, B: 0xeb, A: 255}
	colorForecast = color.RGBA{R: 0xff, G: 0xa5, B: 0x00, A: 255}
	colorMFTH     = color.RGBA{R: 0x00, G: 0xcc, B: 0x96, A: 255}
	colorTarget   = color.RGBA{R: 0xdc, G: 0x35, B: 0x45, A: 255}
	colorBars     = color.RGBA{R: 70, G: 130, B: 180, A: 255}
)

const (
	width  = 10 * vg.Inch
	height = 5 * vg.Inch
)

// Render draws the named chart of d as PNG into w.
func Render(w io.Writer, name string, d *report.Dashboard) error {
	p, err := Plot(name, d)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("encoding %s chart: %w", name, err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// Plot builds the named chart without encoding it.
func Plot(name string, d *report.Dashboard) (*plot.Plot, error) {
	switch name {
	case ChartTrend:
		return trendPlot(d.Trend)
	case ChartMarkets:
		return marketsPlot(d.Markets)
	case ChartMFTH:
		return mfthPlot(d.MFTHYears)
	case ChartGenders:
		return gendersPlot(d)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownChart, name)
}

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Legend.Top = true
	p.Add(plotter.NewGrid())
	return p
}

func trendPlot(t report.Trend) (*plot.Plot, error) {
	yLabel := "Visitors per Month"
	if t.Mode == report.ViewCumulative {
		yLabel = "Total Visitors"
	}
	p := newPlot(t.Title, "Month", yLabel)
	p.X.Tick.Marker = plot.TimeTicks{Format: "Jan 2006"}
	p.Y.Min = 0

	var actual, predicted plotter.XYs
	for _, pt := range t.Points {
		xy := plotter.XY{X: float64(pt.Month.Time().Unix()), Y: pt.Value}
		if pt.IsHistorical {
			actual = append(actual, xy)
			continue
		}
		// Start the forecast line at the last observed month.
		if len(predicted) == 0 && len(actual) > 0 {
			predicted = append(predicted, actual[len(actual)-1])
		}
		predicted = append(predicted, xy)
	}

	if err := addLine(p, actual, "Actual", colorActual, false); err != nil {
		return nil, err
	}
	if err := addLine(p, predicted, "Forecast", colorForecast, true); err != nil {
		return nil, err
	}

	if t.Target > 0 {
		target := float64(t.Target)
		line := plotter.NewFunction(func(float64) float64 { return target })
		line.Color = colorTarget
		line.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("Target %s", report.Millions(target)), line)
		if p.Y.Max < target*1.05 {
			p.Y.Max = target * 1.05
		}
	}
	return p, nil
}

func addLine(p *plot.Plot, xys plotter.XYs, label string, c color.Color, dashed bool) error {
	if len(xys) == 0 {
		return nil
	}
	line, points, err := plotter.NewLinePoints(xys)
	if err != nil {
		return fmt.Errorf("building %s line: %w", label, err)
	}
	line.Color = c
	line.Width = vg.Points(2)
	if dashed {
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	}
	points.GlyphStyle.Color = c
	points.GlyphStyle.Shape = draw.CircleGlyph{}
	points.GlyphStyle.Radius = vg.Points(2)
	p.Add(line, points)
	p.Legend.Add(label, line, points)
	return nil
}

func marketsPlot(m report.Markets) (*plot.Plot, error) {
	p := newPlot(fmt.Sprintf("Top %d Source Markets (%d)", len(m.Rows), m.Year), "Arrivals", "")
	if len(m.Rows) == 0 {
		return p, nil
	}

	// Largest market on top.
	n := len(m.Rows)
	values := make(plotter.Values, n)
	labels := make([]string, n)
	for i, row := range m.Rows {
		values[n-1-i] = float64(row.TotalArrivals)
		labels[n-1-i] = row.Nationality
	}

	bars, err := plotter.NewBarChart(values, vg.Points(16))
	if err != nil {
		return nil, fmt.Errorf("building markets chart: %w", err)
	}
	bars.Horizontal = true
	bars.Color = colorBars
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalY(labels...)
	p.X.Min = 0
	return p, nil
}

func mfthPlot(years []report.MFTHYear) (*plot.Plot, error) {
	p := newPlot("Muslim Arrivals: History vs Prediction", "Year", "Visitors")
	if len(years) == 0 {
		return p, nil
	}

	actual := make(plotter.Values, len(years))
	predicted := make(plotter.Values, len(years))
	labels := make([]string, len(years))
	for i, y := range years {
		actual[i] = y.Actual
		predicted[i] = y.Forecast
		labels[i] = strconv.Itoa(y.Year)
	}

	w := vg.Points(20)
	actualBars, err := plotter.NewBarChart(actual, w)
	if err != nil {
		return nil, fmt.Errorf("building MFTH chart: %w", err)
	}
	actualBars.Color = colorMFTH
	actualBars.LineStyle.Width = vg.Length(0)
	actualBars.Offset = -w / 2

	forecastBars, err := plotter.NewBarChart(predicted, w)
	if err != nil {
		return nil, fmt.Errorf("building MFTH chart: %w", err)
	}
	forecastBars.Color = colorForecast
	forecastBars.LineStyle.Width = vg.Length(0)
	forecastBars.Offset = w / 2

	p.Add(actualBars, forecastBars)
	p.Legend.Add("Actual", actualBars)
	p.Legend.Add("Forecast", forecastBars)
	p.NominalX(labels...)
	p.Y.Min = 0
	return p, nil
}

func gendersPlot(d *report.Dashboard) (*plot.Plot, error) {
	p := newPlot("Arrivals by Gender", "", "Arrivals")
	g := d.Genders
	if g.Total() == 0 {
		return p, nil
	}

	values := plotter.Values{float64(g.Male), float64(g.Female), float64(g.Unspecified)}
	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return nil, fmt.Errorf("building gender chart: %w", err)
	}
	bars.Color = colorBars
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX("Male", "Female", "Unspecified")
	p.Y.Min = 0
	return p, nil
}
