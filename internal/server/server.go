package server

import (
	"bytes"
	"embed"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"
	"github.com/rs/zerolog/log"

	"github.com/tourcast/tourcast/pkg/aggregate"
	"github.com/tourcast/tourcast/pkg/dataset"
	"github.com/tourcast/tourcast/pkg/export"
	"github.com/tourcast/tourcast/pkg/pipeline"
	"github.com/tourcast/tourcast/pkg/render"
	"github.com/tourcast/tourcast/pkg/report"
	"github.com/tourcast/tourcast/pkg/validation"
)

//go:embed views/*.html
var viewsFS embed.FS

// Options configures the HTTP surface.
type Options struct {
	Addr string
	// RateLimit caps API requests per client and minute; 0 disables it.
	RateLimit int
	// AccessLog enables the request logger middleware.
	AccessLog bool
}

// Server is the dashboard server.
type Server struct {
	pipeline *pipeline.Pipeline
	report   report.Options
	opts     Options
	app      *fiber.App
}

// New creates a server that runs p once per request.
func New(p *pipeline.Pipeline, reportOpts report.Options, opts Options) (*Server, error) {
	views, err := fs.Sub(viewsFS, "views")
	if err != nil {
		return nil, err
	}
	engine := html.NewFileSystem(http.FS(views), ".html")
	engine.AddFunc("millions", report.Millions)
	engine.AddFunc("count", report.Count)
	engine.AddFunc("pct", func(v float64) string { return fmt.Sprintf("%.1f%%", v) })
	engine.AddFunc("percent", func(ratio float64) float64 { return ratio * 100 })
	engine.AddFunc("int", func(v int64) float64 { return float64(v) })

	s := &Server{
		pipeline: p,
		report:   reportOpts,
		opts:     opts,
	}

	app := fiber.New(fiber.Config{
		Views:                 engine,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	if opts.AccessLog {
		app.Use(fiberlogger.New())
	}

	app.Get("/", s.handleIndex)
	app.Get("/healthz", s.handleHealth)
	app.Get("/charts/:name.png", s.handleChart)
	app.Get("/export.xlsx", s.handleExport)

	api := app.Group("/api")
	if opts.RateLimit > 0 {
		api.Use(limiter.New(limiter.Config{Max: opts.RateLimit, Expiration: time.Minute}))
	}
	api.Get("/dashboard", s.handleDashboard)
	api.Get("/monthly", s.handleMonthly)
	api.Get("/nationalities", s.handleNationalities)
	api.Get("/forecast", s.handleForecast)
	api.Get("/mfth", s.handleMFTH)
	api.Get("/validation", s.handleValidation)

	s.app = app
	return s, nil
}

// App exposes the fiber app for tests and embedding.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start launches the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	log.Info().Str("addr", s.opts.Addr).Msg("Dashboard server starting")
	return s.app.Listen(s.opts.Addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// requestError marks a malformed query.
type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

// query reads the view parameters: mode, from, to and nationality (repeated
// or comma separated).
func (s *Server) query(c *fiber.Ctx) (pipeline.Query, report.Options, error) {
	var q pipeline.Query
	opts := s.report

	if m := c.Query("mode"); m != "" {
		mode, err := report.ParseViewMode(m)
		if err != nil {
			return q, opts, &requestError{err.Error()}
		}
		opts.Mode = mode
	}
	for _, p := range []struct {
		name string
		dst  *dataset.Month
	}{{"from", &q.Filter.From}, {"to", &q.Filter.To}} {
		if v := c.Query(p.name); v != "" {
			m, err := dataset.ParseMonth(v)
			if err != nil {
				return q, opts, &requestError{"invalid " + p.name + ": want YYYY-MM"}
			}
			*p.dst = m
		}
	}
	if !q.Filter.From.IsZero() && !q.Filter.To.IsZero() && q.Filter.To.Before(q.Filter.From) {
		return q, opts, &requestError{"to is before from"}
	}
	for _, raw := range c.Context().QueryArgs().PeekMulti("nationality") {
		for _, n := range strings.Split(string(raw), ",") {
			if n = strings.TrimSpace(n); n != "" {
				q.Filter.Nationalities = append(q.Filter.Nationalities, n)
			}
		}
	}
	return q, opts, nil
}

// run executes one pipeline pass for the request.
func (s *Server) run(c *fiber.Ctx) (*pipeline.Result, *report.Dashboard, error) {
	q, opts, err := s.query(c)
	if err != nil {
		return nil, nil, err
	}
	res, err := s.pipeline.Run(c.UserContext(), q)
	if err != nil {
		return nil, nil, err
	}
	return res, report.Build(res, opts), nil
}

// status maps a run error to an HTTP status and the failing stage.
func status(err error) (int, string) {
	var re *requestError
	if errors.As(err, &re) {
		return fiber.StatusBadRequest, ""
	}
	var se *pipeline.StageError
	if errors.As(err, &se) {
		return fiber.StatusBadGateway, string(se.Stage)
	}
	return fiber.StatusInternalServerError, ""
}

func (s *Server) fail(c *fiber.Ctx, err error) error {
	code, stage := status(err)
	if code >= 500 {
		log.Error().Err(err).Str("stage", stage).Str("path", c.Path()).Msg("Request failed")
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"stage": stage,
	})
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	res, d, err := s.run(c)
	if err != nil {
		code, stage := status(err)
		return c.Status(code).Render("error", fiber.Map{
			"Stage":   stage,
			"Message": err.Error(),
		})
	}
	return c.Render("index", fiber.Map{
		"D":        d,
		"Summary":  res.Report.Summary,
		"Query":    template.URL(string(c.Context().QueryArgs().QueryString())),
		"Charts":   inlineCharts(d),
		"Selected": selected(d.Filter),
	})
}

// inlineCharts renders every chart of d as a PNG data URL, so the page and
// its images come from the same run. A chart that fails to render is left out.
func inlineCharts(d *report.Dashboard) map[string]template.URL {
	out := make(map[string]template.URL, len(render.Names()))
	var buf bytes.Buffer
	for _, name := range render.Names() {
		buf.Reset()
		if err := render.Render(&buf, name, d); err != nil {
			log.Warn().Err(err).Str("chart", name).Msg("Chart render failed")
			continue
		}
		out[name] = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()))
	}
	return out
}

func selected(f aggregate.Filter) map[string]bool {
	out := make(map[string]bool, len(f.Nationalities))
	for _, n := range f.Nationalities {
		out[n] = true
	}
	return out
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleDashboard(c *fiber.Ctx) error {
	_, d, err := s.run(c)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(d)
}

func (s *Server) handleMonthly(c *fiber.Ctx) error {
	res, d, err := s.run(c)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"monthly": res.Views.Monthly,
		"yearly":  aggregate.Yearly(res.Views.Monthly),
		"trend":   d.Trend,
		"empty":   d.Empty,
	})
}

func (s *Server) handleNationalities(c *fiber.Ctx) error {
	res, d, err := s.run(c)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"nationalities": res.Views.Nationalities,
		"genders":       res.Views.Genders,
		"top_markets":   d.Markets,
		"empty":         d.Empty,
	})
}

func (s *Server) handleForecast(c *fiber.Ctx) error {
	res, d, err := s.run(c)
	if err != nil {
		return s.fail(c, err)
	}
	body := fiber.Map{
		"through":   res.Through,
		"headline":  d.Headline,
		"available": res.Forecast != nil,
	}
	if res.Forecast != nil {
		body["params"] = res.Forecast.Params
		body["last_observed"] = res.Forecast.LastObserved
		body["points"] = res.Forecast.Points
	}
	if res.ForecastErr != nil {
		body["error"] = res.ForecastErr.Error()
	}
	return c.JSON(body)
}

func (s *Server) handleMFTH(c *fiber.Ctx) error {
	_, d, err := s.run(c)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"projection": d.Headline.MFTHProjection,
		"share_pct":  d.Headline.MFTHSharePct,
		"years":      d.MFTHYears,
		"forecast":   d.MFTHForecast,
		"coverage":   d.Coverage,
	})
}

func (s *Server) handleValidation(c *fiber.Ctx) error {
	res, _, err := s.run(c)
	if err != nil {
		code, stage := status(err)
		if code != fiber.StatusBadGateway {
			return s.fail(c, err)
		}
		rep := validation.NewReport()
		rep.AddError(validation.Result{Stage: validation.Stage(stage), Message: err.Error()})
		return c.Status(code).JSON(rep)
	}
	return c.JSON(res.Report)
}

func (s *Server) handleChart(c *fiber.Ctx) error {
	name := c.Params("name")
	known := false
	for _, n := range render.Names() {
		known = known || n == name
	}
	if !known {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown chart " + name})
	}

	_, d, err := s.run(c)
	if err != nil {
		return s.fail(c, err)
	}
	var buf bytes.Buffer
	if err := render.Render(&buf, name, d); err != nil {
		return s.fail(c, err)
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(buf.Bytes())
}

func (s *Server) handleExport(c *fiber.Ctx) error {
	res, d, err := s.run(c)
	if err != nil {
		return s.fail(c, err)
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, res, d); err != nil {
		return s.fail(c, err)
	}
	c.Attachment("tourcast.xlsx")
	return c.Send(buf.Bytes())
}
