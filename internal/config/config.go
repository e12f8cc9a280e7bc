package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/urban-climate-lab/resilience-cli/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Data    DataConfig    `yaml:"data" mapstructure:"data"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Focus   FocusConfig   `yaml:"focus" mapstructure:"focus"`
	Scoring ScoringConfig `yaml:"scoring" mapstructure:"scoring"`
	Ranking RankingConfig `yaml:"ranking" mapstructure:"ranking"`
	Routing RoutingConfig `yaml:"routing" mapstructure:"routing"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// DataConfig points at the three input datasets. Points is required;
// shelters and road segments are optional and degrade gracefully.
type DataConfig struct {
	Points   string `yaml:"points" mapstructure:"points"`
	Shelters string `yaml:"shelters" mapstructure:"shelters"`
	Segments string `yaml:"segments" mapstructure:"segments"`
}

// StoreConfig configures the optional persistence backend. An empty DSN
// means datasets are read straight from files on every run.
type StoreConfig struct {
	DSN string `yaml:"dsn" mapstructure:"dsn"`
}

// FocusConfig sets the initial focus circle.
type FocusConfig struct {
	CenterLng float64 `yaml:"center_lng" mapstructure:"center_lng"`
	CenterLat float64 `yaml:"center_lat" mapstructure:"center_lat"`
	RadiusKm  float64 `yaml:"radius_km" mapstructure:"radius_km"`
}

// Center returns the focus center as a coordinate.
func (f FocusConfig) Center() model.Coordinate {
	return model.Coordinate{Lng: f.CenterLng, Lat: f.CenterLat}
}

// ScoringConfig configures the vulnerability fields. FieldsFile is an
// optional YAML file overriding the built-in field table.
type ScoringConfig struct {
	FieldsFile string `yaml:"fields_file" mapstructure:"fields_file"`
}

// RankingConfig configures priority-site selection.
type RankingConfig struct {
	K               int     `yaml:"k" mapstructure:"k"`
	MinSeparationKm float64 `yaml:"min_separation_km" mapstructure:"min_separation_km"`
}

// RoutingConfig configures route synthesis over the road segments.
type RoutingConfig struct {
	MaxStartSnapKm float64 `yaml:"max_start_snap_km" mapstructure:"max_start_snap_km"`
	KeepSnapKm     float64 `yaml:"keep_snap_km" mapstructure:"keep_snap_km"`
	DedupKm        float64 `yaml:"dedup_km" mapstructure:"dedup_km"`
	Steps          int     `yaml:"steps" mapstructure:"steps"`
}

// GeocodeConfig configures the geocoding cascade.
type GeocodeConfig struct {
	NominatimURL string  `yaml:"nominatim_url" mapstructure:"nominatim_url"`
	UserAgent    string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerSec   float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Viewbox      string  `yaml:"viewbox" mapstructure:"viewbox"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks the fields a command mode depends on. Modes map to
// subcommands: "score", "rank" and "route" read datasets directly,
// "serve" additionally needs a listen port, "import" needs a store DSN.
func (c *Config) Validate(mode string) error {
	var problems []string

	checkCommon := func() {
		if c.Data.Points == "" {
			problems = append(problems, "data.points is required")
		}
		if c.Focus.RadiusKm <= 0 {
			problems = append(problems, "focus.radius_km must be > 0")
		}
		if c.Focus.CenterLat < -90 || c.Focus.CenterLat > 90 {
			problems = append(problems, "focus.center_lat must be in [-90, 90]")
		}
		if c.Focus.CenterLng < -180 || c.Focus.CenterLng > 180 {
			problems = append(problems, "focus.center_lng must be in [-180, 180]")
		}
		if c.Ranking.K <= 0 {
			problems = append(problems, "ranking.k must be > 0")
		}
		if c.Ranking.MinSeparationKm < 0 {
			problems = append(problems, "ranking.min_separation_km must be >= 0")
		}
		if c.Routing.Steps < 0 {
			problems = append(problems, "routing.steps must be >= 0")
		}
	}

	switch mode {
	case "score", "rank", "route":
		checkCommon()
	case "serve":
		checkCommon()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "import":
		checkCommon()
		if c.Store.DSN == "" {
			problems = append(problems, "store.dsn is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(problems, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RESILIENCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.points", "data/points.geojson")
	v.SetDefault("data.shelters", "data/shelters.geojson")
	v.SetDefault("data.segments", "data/segments.geojson")
	v.SetDefault("focus.center_lng", 2.1734)
	v.SetDefault("focus.center_lat", 41.3851)
	v.SetDefault("focus.radius_km", 5.0)
	v.SetDefault("ranking.k", 5)
	v.SetDefault("ranking.min_separation_km", 2.0)
	v.SetDefault("routing.max_start_snap_km", 0.1)
	v.SetDefault("routing.keep_snap_km", 0.05)
	v.SetDefault("routing.dedup_km", 0.005)
	v.SetDefault("routing.steps", 19)
	v.SetDefault("geocode.nominatim_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.rate_per_sec", 1.0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
