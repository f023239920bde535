package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tourcast/tourcast/pkg/dataset"
	"github.com/tourcast/tourcast/pkg/report"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, dataset.DefaultLocation, cfg.Dataset.Location)
	assert.Equal(t, 2019, cfg.Dataset.MinYear)
	assert.Equal(t, dataset.DefaultColumns(), cfg.Dataset.Columns)
	assert.Equal(t, time.Hour, cfg.CacheTTL())
	assert.Equal(t, "127.0.0.1:8080", cfg.Address())

	pc, err := cfg.PipelineConfig()
	require.NoError(t, err)
	assert.Equal(t, dataset.Month{Year: 2026, Month: time.December}, pc.Through)
	assert.Zero(t, pc.Forecast.Alpha, "fitted unless pinned")
	assert.Zero(t, pc.Forecast.Beta, "fitted unless pinned")
	assert.True(t, pc.Forecast.Damped)
	assert.Equal(t, 12, pc.Forecast.Period)

	ro, err := cfg.ReportOptions()
	require.NoError(t, err)
	assert.Equal(t, report.DefaultOptions(), ro)

	tbl, err := cfg.ReferenceTable()
	require.NoError(t, err)
	assert.Greater(t, tbl.Len(), 0)
}

func TestFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tourcast.yaml")
	body := `
dataset:
  location: s3://bucket/arrivals.parquet
  s3:
    region: ap-southeast-1
forecast:
  through: 2027-06
report:
  mode: cumulative
  target: 25000000
server:
  port: 9000
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("TOURCAST_SERVER_PORT", "9090")
	t.Setenv("TOURCAST_LOG_LEVEL", "debug")
	t.Setenv("TOURCAST_FORECAST_ALPHA", "0.3")
	t.Setenv("TOURCAST_FORECAST_BETA", "0.1")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "s3://bucket/arrivals.parquet", cfg.Dataset.Location)
	assert.Equal(t, "ap-southeast-1", cfg.Dataset.S3.Region)
	assert.Equal(t, 9090, cfg.Server.Port, "environment wins over file")
	assert.Equal(t, "debug", cfg.Log.Level)

	pc, err := cfg.PipelineConfig()
	require.NoError(t, err)
	assert.Equal(t, dataset.Month{Year: 2027, Month: time.June}, pc.Through)
	assert.Equal(t, "ap-southeast-1", pc.Sources.S3.Region)
	assert.Equal(t, 0.3, pc.Forecast.Alpha)
	assert.Equal(t, 0.1, pc.Forecast.Beta)

	ro, err := cfg.ReportOptions()
	require.NoError(t, err)
	assert.Equal(t, report.ViewCumulative, ro.Mode)
	assert.Equal(t, int64(25_000_000), ro.Target)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Forecast.Through = "December"
	_, err = cfg.PipelineConfig()
	assert.Error(t, err)

	cfg.Forecast.Through = "2026-12"
	cfg.Forecast.Alpha = 1.5
	_, err = cfg.PipelineConfig()
	assert.Error(t, err)

	cfg.Report.Mode = "weekly"
	_, err = cfg.ReportOptions()
	assert.Error(t, err)

	cfg.Reference.Path = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = cfg.ReferenceTable()
	assert.Error(t, err)
}
