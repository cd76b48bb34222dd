// Package config holds the run configuration. Values come from flags, then
// CHAINQ_* environment variables, then the config file, then defaults.
package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"chainq/internal/failure"
	"chainq/internal/feeder"
)

const EnvPrefix = "CHAINQ"

type Config struct {
	BaseURL    string        `mapstructure:"url"`
	Users      int           `mapstructure:"users"`
	Ramp       time.Duration `mapstructure:"ramp"`
	Population string        `mapstructure:"population"`
	Headers    []string      `mapstructure:"header"`

	FeederPath     string `mapstructure:"feeder"`
	FeederStrategy string `mapstructure:"feeder-strategy"`

	Timeout     time.Duration `mapstructure:"timeout"`
	MaxDuration time.Duration `mapstructure:"max-duration"`
	Insecure    bool          `mapstructure:"insecure"`
	Seed        int64         `mapstructure:"seed"`
	PauseScale  float64       `mapstructure:"pause-scale"`

	// MaxP95 is the global p95 response time bound, in ms. Zero disables it.
	MaxP95 float64 `mapstructure:"max-p95"`
	// MaxFailedPercent bounds the global share of KO requests. Negative
	// disables it.
	MaxFailedPercent float64 `mapstructure:"max-failed-pct"`

	OutPrefix   string `mapstructure:"out"`
	HistoryPath string `mapstructure:"history"`
	MetricsAddr string `mapstructure:"metrics-addr"`
	TUI         bool   `mapstructure:"tui"`
	LogLevel    string `mapstructure:"log-level"`
}

func Defaults() Config {
	return Config{
		BaseURL:          "https://computer-database.gatling.io",
		Users:            6000,
		Ramp:             35 * time.Second,
		Population:       "users",
		FeederStrategy:   "random",
		Timeout:          60 * time.Second,
		PauseScale:       1,
		MaxP95:           300,
		MaxFailedPercent: -1,
		LogLevel:         "info",
	}
}

// RegisterFlags declares every option on fs with its default.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.StringP("url", "u", d.BaseURL, "Base URL of the target application")
	fs.IntP("users", "U", d.Users, "Number of virtual users")
	fs.Duration("ramp", d.Ramp, "Duration over which users are started")
	fs.String("population", d.Population, "Population to run: users, admins or all")
	fs.StringSliceP("header", "H", nil, "Protocol header override (e.g. \"Key: Value\")")
	fs.String("feeder", "", "CSV file replacing the built-in search terms")
	fs.String("feeder-strategy", d.FeederStrategy, "Feeder strategy: random, circular, queue or shuffle")
	fs.Duration("timeout", d.Timeout, "Request timeout")
	fs.Duration("max-duration", 0, "Abort the run after this long (0 = no limit)")
	fs.Bool("insecure", false, "Skip TLS certificate verification")
	fs.Int64("seed", 0, "Random seed (0 = from clock)")
	fs.Float64("pause-scale", d.PauseScale, "Multiplier applied to every pause")
	fs.Float64("max-p95", d.MaxP95, "Assert global p95 response time below this many ms (0 = off)")
	fs.Float64("max-failed-pct", d.MaxFailedPercent, "Assert global failed requests at most this percent (<0 = off)")
	fs.StringP("out", "o", "", "Output filename prefix for CSV/JSON reports")
	fs.String("history", "", "Run history database (default $HOME/.chainq/history.db)")
	fs.String("metrics-addr", "", "Serve Prometheus metrics on this address during the run")
	fs.Bool("tui", false, "Show the live dashboard")
	fs.String("log-level", d.LogLevel, "Log level: debug, info, warn, error")
}

// Load resolves the configuration. Flags in fs win over environment
// variables, which win over the file v has read, which wins over defaults.
func Load(v *viper.Viper, fs *pflag.FlagSet) (Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	d := Defaults()
	v.SetDefault("url", d.BaseURL)
	v.SetDefault("users", d.Users)
	v.SetDefault("ramp", d.Ramp)
	v.SetDefault("population", d.Population)
	v.SetDefault("feeder-strategy", d.FeederStrategy)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("pause-scale", d.PauseScale)
	v.SetDefault("max-p95", d.MaxP95)
	v.SetDefault("max-failed-pct", d.MaxFailedPercent)
	v.SetDefault("log-level", d.LogLevel)
	v.SetDefault("header", []string{})
	v.SetDefault("feeder", "")
	v.SetDefault("max-duration", time.Duration(0))
	v.SetDefault("insecure", false)
	v.SetDefault("seed", int64(0))
	v.SetDefault("out", "")
	v.SetDefault("history", "")
	v.SetDefault("metrics-addr", "")
	v.SetDefault("tui", false)

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return Config{}, failure.Wrap(failure.Config, "flags", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, failure.Wrap(failure.Config, "config", err)
	}
	if len(cfg.Headers) == 0 {
		cfg.Headers = nil
	}
	return cfg, cfg.Validate()
}

// Validate fails fast on settings the run cannot start with.
func (c Config) Validate() error {
	if c.Users <= 0 {
		return failure.New(failure.Config, "users", "must be positive, got %d", c.Users)
	}
	u, err := url.Parse(c.BaseURL)
	if c.BaseURL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return failure.New(failure.Config, "url", "invalid base URL %q", c.BaseURL)
	}
	for name, d := range map[string]time.Duration{"ramp": c.Ramp, "timeout": c.Timeout, "max-duration": c.MaxDuration} {
		if d < 0 {
			return failure.New(failure.Config, name, "must not be negative, got %s", d)
		}
	}
	if c.PauseScale < 0 {
		return failure.New(failure.Config, "pause-scale", "must not be negative, got %g", c.PauseScale)
	}
	switch c.Population {
	case "users", "admins", "all":
	default:
		return failure.New(failure.Config, "population", "unknown population %q (want users, admins or all)", c.Population)
	}
	if _, err := feeder.ParseStrategy(c.FeederStrategy); err != nil {
		return err
	}
	if _, err := c.HeaderMap(); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return failure.Wrap(failure.Config, "log-level", err)
	}
	return nil
}

// HeaderMap parses the "Key: Value" header overrides.
func (c Config) HeaderMap() (map[string]string, error) {
	out := make(map[string]string, len(c.Headers))
	for _, h := range c.Headers {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			return nil, failure.New(failure.Config, "header", "want \"Key: Value\", got %q", h)
		}
		out[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return out, nil
}

// Level is the parsed log level; Validate has already checked it.
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
