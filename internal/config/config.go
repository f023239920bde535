package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/tourcast/tourcast/pkg/dataset"
	"github.com/tourcast/tourcast/pkg/forecast"
	"github.com/tourcast/tourcast/pkg/pipeline"
	"github.com/tourcast/tourcast/pkg/reference"
	"github.com/tourcast/tourcast/pkg/report"
)

// EnvPrefix prefixes every environment override, e.g. TOURCAST_SERVER_PORT.
const EnvPrefix = "TOURCAST"

type DatasetConfig struct {
	Location    string           `mapstructure:"location"`
	Format      string           `mapstructure:"format"`
	MinYear     int              `mapstructure:"min_year"`
	HTTPTimeout time.Duration    `mapstructure:"http_timeout"`
	Columns     dataset.Columns  `mapstructure:"columns"`
	S3          dataset.S3Config `mapstructure:"s3"`
}

type CacheConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds"`
	MaxEntries int `mapstructure:"max_entries"`
}

type ForecastConfig struct {
	Through        string  `mapstructure:"through"`
	Period         int     `mapstructure:"period"`
	Damped         bool    `mapstructure:"damped"`
	Alpha          float64 `mapstructure:"alpha"`
	Beta           float64 `mapstructure:"beta"`
	MaxEvaluations int     `mapstructure:"max_evaluations"`
}

type ReportConfig struct {
	Mode            string `mapstructure:"mode"`
	DisplayFrom     string `mapstructure:"display_from"`
	MFTHDisplayFrom string `mapstructure:"mfth_display_from"`
	TargetYear      int    `mapstructure:"target_year"`
	Target          int64  `mapstructure:"target"`
	TopN            int    `mapstructure:"top_n"`
}

type ReferenceConfig struct {
	Path string `mapstructure:"path"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// RateLimit is the number of requests per minute per client; 0 disables it.
	RateLimit int `mapstructure:"rate_limit"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type Config struct {
	Dataset   DatasetConfig   `mapstructure:"dataset"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Forecast  ForecastConfig  `mapstructure:"forecast"`
	Report    ReportConfig    `mapstructure:"report"`
	Reference ReferenceConfig `mapstructure:"reference"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, in increasing priority. With an empty path tourcast.yaml is
// looked up in the working directory and may be absent; an explicit path must
// exist. Variables from a .env file are exported first when one is present.
func Load(path string) (Config, error) {
	var cfg Config

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("reading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("tourcast")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return cfg, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}

	log.Debug().Str("file", v.ConfigFileUsed()).Msg("Configuration loaded")
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	cols := dataset.DefaultColumns()
	v.SetDefault("dataset.location", dataset.DefaultLocation)
	v.SetDefault("dataset.format", "")
	v.SetDefault("dataset.min_year", 2019)
	v.SetDefault("dataset.http_timeout", 60*time.Second)
	v.SetDefault("dataset.columns.date", cols.Date)
	v.SetDefault("dataset.columns.nationality", cols.Nationality)
	v.SetDefault("dataset.columns.total", cols.Total)
	v.SetDefault("dataset.columns.male", cols.Male)
	v.SetDefault("dataset.columns.female", cols.Female)
	v.SetDefault("dataset.s3.region", "")
	v.SetDefault("dataset.s3.endpoint_url", "")
	v.SetDefault("dataset.s3.access_key_id", "")
	v.SetDefault("dataset.s3.secret_access_key", "")

	v.SetDefault("cache.ttl_seconds", 3600)
	v.SetDefault("cache.max_entries", 4)

	def := forecast.DefaultOptions()
	v.SetDefault("forecast.through", "2026-12")
	v.SetDefault("forecast.period", def.Period)
	v.SetDefault("forecast.damped", def.Damped)
	// 0 lets the optimiser fit the parameter; a value in (0,1) pins it.
	v.SetDefault("forecast.alpha", def.Alpha)
	v.SetDefault("forecast.beta", def.Beta)
	v.SetDefault("forecast.max_evaluations", def.MaxEvaluations)

	rep := report.DefaultOptions()
	v.SetDefault("report.mode", string(rep.Mode))
	v.SetDefault("report.display_from", rep.DisplayFrom.String())
	v.SetDefault("report.mfth_display_from", rep.MFTHDisplayFrom.String())
	v.SetDefault("report.target_year", rep.TargetYear)
	v.SetDefault("report.target", rep.Target)
	v.SetDefault("report.top_n", rep.TopN)

	v.SetDefault("reference.path", "")

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 120)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
}

// PipelineConfig converts the dataset and forecast sections.
func (c Config) PipelineConfig() (pipeline.Config, error) {
	through, err := dataset.ParseMonth(c.Forecast.Through)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("forecast.through: %w", err)
	}
	if c.Forecast.Alpha < 0 || c.Forecast.Alpha >= 1 || c.Forecast.Beta < 0 || c.Forecast.Beta >= 1 {
		return pipeline.Config{}, fmt.Errorf("forecast.alpha and forecast.beta must be in [0,1)")
	}
	return pipeline.Config{
		Location: c.Dataset.Location,
		Format:   c.Dataset.Format,
		Columns:  c.Dataset.Columns,
		MinYear:  c.Dataset.MinYear,
		Sources: dataset.SourceOptions{
			HTTPTimeout: c.Dataset.HTTPTimeout,
			S3:          c.Dataset.S3,
		},
		Through: through,
		Forecast: forecast.Options{
			Period:         c.Forecast.Period,
			Damped:         c.Forecast.Damped,
			Alpha:          c.Forecast.Alpha,
			Beta:           c.Forecast.Beta,
			MaxEvaluations: c.Forecast.MaxEvaluations,
		},
	}, nil
}

// ReportOptions converts the report section.
func (c Config) ReportOptions() (report.Options, error) {
	mode, err := report.ParseViewMode(c.Report.Mode)
	if err != nil {
		return report.Options{}, fmt.Errorf("report.mode: %w", err)
	}
	from, err := dataset.ParseMonth(c.Report.DisplayFrom)
	if err != nil {
		return report.Options{}, fmt.Errorf("report.display_from: %w", err)
	}
	mfthFrom, err := dataset.ParseMonth(c.Report.MFTHDisplayFrom)
	if err != nil {
		return report.Options{}, fmt.Errorf("report.mfth_display_from: %w", err)
	}
	return report.Options{
		Mode:            mode,
		DisplayFrom:     from,
		MFTHDisplayFrom: mfthFrom,
		TargetYear:      c.Report.TargetYear,
		Target:          c.Report.Target,
		TopN:            c.Report.TopN,
	}, nil
}

// CacheTTL is how long a loaded dataset is reused.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// ReferenceTable loads the override table, or the bundled one when no path
// is configured.
func (c Config) ReferenceTable() (*reference.Table, error) {
	if c.Reference.Path == "" {
		return reference.Default()
	}
	return reference.Load(c.Reference.Path)
}

// Address is the host:port the server listens on.
func (c Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
