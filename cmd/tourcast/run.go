package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/tourcast/tourcast/internal/config"
	"github.com/tourcast/tourcast/internal/logger"
	"github.com/tourcast/tourcast/internal/server"
	"github.com/tourcast/tourcast/pkg/dataset"
	"github.com/tourcast/tourcast/pkg/export"
	"github.com/tourcast/tourcast/pkg/pipeline"
	"github.com/tourcast/tourcast/pkg/render"
	"github.com/tourcast/tourcast/pkg/report"
)

// session is the configured pipeline shared by one command invocation.
type session struct {
	cfg      config.Config
	pipeline *pipeline.Pipeline
	report   report.Options
	cache    *pipeline.Cache
}

// setup loads configuration, initializes logging and builds the pipeline.
func setup() (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	logger.Initialize(level, cfg.Log.Pretty)

	pc, err := cfg.PipelineConfig()
	if err != nil {
		return nil, err
	}
	ro, err := cfg.ReportOptions()
	if err != nil {
		return nil, err
	}
	tbl, err := cfg.ReferenceTable()
	if err != nil {
		return nil, fmt.Errorf("loading reference table: %w", err)
	}
	cache, err := pipeline.NewCache(cfg.Cache.MaxEntries, cfg.CacheTTL())
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	return &session{
		cfg:      cfg,
		pipeline: pipeline.New(pc, tbl, cache),
		report:   ro,
		cache:    cache,
	}, nil
}

func (s *session) close() {
	s.cache.Close()
}

// query turns the view flags into a pipeline query and report options.
func (f viewFlags) query(base report.Options) (pipeline.Query, report.Options, error) {
	var q pipeline.Query
	opts := base
	if f.mode != "" {
		mode, err := report.ParseViewMode(f.mode)
		if err != nil {
			return q, opts, err
		}
		opts.Mode = mode
	}
	var err error
	if f.from != "" {
		if q.Filter.From, err = dataset.ParseMonth(f.from); err != nil {
			return q, opts, fmt.Errorf("--from: %w", err)
		}
	}
	if f.to != "" {
		if q.Filter.To, err = dataset.ParseMonth(f.to); err != nil {
			return q, opts, fmt.Errorf("--to: %w", err)
		}
	}
	q.Filter.Nationalities = f.nationalities
	return q, opts, nil
}

func (s *session) dashboard(ctx context.Context, f viewFlags) (*pipeline.Result, *report.Dashboard, error) {
	q, opts, err := f.query(s.report)
	if err != nil {
		return nil, nil, err
	}
	res, err := s.pipeline.Run(ctx, q)
	if err != nil {
		return nil, nil, err
	}
	return res, report.Build(res, opts), nil
}

func runReport(ctx context.Context, f viewFlags) error {
	s, err := setup()
	if err != nil {
		return err
	}
	defer s.close()

	_, d, err := s.dashboard(ctx, f)
	if err != nil {
		return err
	}
	printDashboard(d)
	return nil
}

func runForecast(ctx context.Context) error {
	s, err := setup()
	if err != nil {
		return err
	}
	defer s.close()

	res, d, err := s.dashboard(ctx, viewFlags{})
	if err != nil {
		return err
	}

	output := map[string]any{
		"run_id":        res.RunID,
		"through":       res.Through,
		"headline":      d.Headline,
		"forecast":      res.Forecast,
		"mfth_forecast": res.MFTHForecast,
		"errors":        d.Errors,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

func runValidate(ctx context.Context) error {
	s, err := setup()
	if err != nil {
		return err
	}
	defer s.close()

	res, err := s.pipeline.Run(ctx, pipeline.Query{})
	if err != nil {
		var se *pipeline.StageError
		if errors.As(err, &se) {
			fmt.Printf("FAILED at %s stage: %v\n", se.Stage, se.Err)
		}
		return err
	}

	if first, last, ok := res.Dataset.Span(); ok {
		fmt.Printf("Dataset: %s (%s to %s)\n", res.Dataset.Location, first, last)
	}
	fmt.Printf("Rows: %d read, %d records kept, %d dropped\n\n",
		res.Dataset.RawRows, len(res.Dataset.Records), res.Dataset.Dropped)

	printValidationReport(res.Report)

	if !res.Report.Valid {
		s.close()
		os.Exit(1)
	}
	return nil
}

func runExport(ctx context.Context, f viewFlags, outDir string) error {
	s, err := setup()
	if err != nil {
		return err
	}
	defer s.close()

	res, d, err := s.dashboard(ctx, f)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	xlsx := filepath.Join(outDir, "tourcast.xlsx")
	if err := writeFile(xlsx, func(w *os.File) error { return export.Write(w, res, d) }); err != nil {
		return err
	}
	log.Info().Str("path", xlsx).Msg("Workbook written")

	for _, name := range render.Names() {
		path := filepath.Join(outDir, name+".png")
		if err := writeFile(path, func(w *os.File) error { return render.Render(w, name, d) }); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("Chart written")
	}
	return nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func runServe(ctx context.Context, port int) error {
	s, err := setup()
	if err != nil {
		return err
	}
	defer s.close()

	if port > 0 {
		s.cfg.Server.Port = port
	}
	srv, err := server.New(s.pipeline, s.report, server.Options{
		Addr:      s.cfg.Address(),
		RateLimit: s.cfg.Server.RateLimit,
		AccessLog: true,
	})
	if err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
		return srv.Shutdown()
	}
}
