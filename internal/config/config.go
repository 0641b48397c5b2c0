package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Google   GoogleConfig   `yaml:"google" mapstructure:"google"`
	Resolver ResolverConfig `yaml:"resolver" mapstructure:"resolver"`
	Ingest   IngestConfig   `yaml:"ingest" mapstructure:"ingest"`
	Classify ClassifyConfig `yaml:"classify" mapstructure:"classify"`
	Outreach OutreachConfig `yaml:"outreach" mapstructure:"outreach"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// GoogleConfig holds Google Places API settings.
type GoogleConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ResolverConfig configures website lookups: throttle, retries and the
// quota circuit breaker.
type ResolverConfig struct {
	MinIntervalMs    int     `yaml:"min_interval_ms" mapstructure:"min_interval_ms"`
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	Jitter           float64 `yaml:"jitter" mapstructure:"jitter"`
	State            string  `yaml:"state" mapstructure:"state"`
	CircuitThreshold int     `yaml:"circuit_threshold" mapstructure:"circuit_threshold"`
	CircuitResetSecs int     `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
}

// MinInterval returns the throttle interval as a duration.
func (r ResolverConfig) MinInterval() time.Duration {
	return time.Duration(r.MinIntervalMs) * time.Millisecond
}

// IngestConfig configures workbook ingestion.
type IngestConfig struct {
	Sheets      []string `yaml:"sheets" mapstructure:"sheets"`
	PhoneRegion string   `yaml:"phone_region" mapstructure:"phone_region"`
}

// ClassifyConfig configures the third-party domain set.
type ClassifyConfig struct {
	ThirdPartyDomains []string `yaml:"third_party_domains" mapstructure:"third_party_domains"`
	DomainsFile       string   `yaml:"domains_file" mapstructure:"domains_file"`
	Match             string   `yaml:"match" mapstructure:"match"`
}

// OutreachConfig configures message templates.
type OutreachConfig struct {
	TemplatesFile string `yaml:"templates_file" mapstructure:"templates_file"`
	FallbackName  string `yaml:"fallback_name" mapstructure:"fallback_name"`
	FallbackCity  string `yaml:"fallback_city" mapstructure:"fallback_city"`
}

// StoreConfig configures the optional persistent lookup cache.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	TTLHours    int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// TTL returns the cache entry lifetime.
func (s StoreConfig) TTL() time.Duration {
	return time.Duration(s.TTLHours) * time.Hour
}

// PipelineConfig configures record processing.
type PipelineConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultThirdPartyDomains are ordering aggregators known at release time.
// Extend them through classify.third_party_domains or classify.domains_file.
var DefaultThirdPartyDomains = []string{
	"doordash.com",
	"grubhub.com",
	"ubereats.com",
	"seamless.com",
	"postmates.com",
	"slicelife.com",
	"slicelife.onelink.me",
	"bestcafes.online",
}

// DefaultSheets are the workbook sections read when ingest.sheets is unset.
var DefaultSheets = []string{"All", "Multi Location Shops", "OO Partners"}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: read .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SHOPSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("google.key", "SHOPSCAN_GOOGLE_KEY", "GOOGLE_API_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind google key")
	}

	// Defaults
	v.SetDefault("google.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("resolver.min_interval_ms", 200)
	v.SetDefault("resolver.max_attempts", 4)
	v.SetDefault("resolver.initial_backoff_ms", 500)
	v.SetDefault("resolver.max_backoff_ms", 10000)
	v.SetDefault("resolver.multiplier", 2.0)
	v.SetDefault("resolver.jitter", 0.25)
	v.SetDefault("resolver.state", "MA")
	v.SetDefault("resolver.circuit_threshold", 5)
	v.SetDefault("resolver.circuit_reset_secs", 60)
	v.SetDefault("ingest.sheets", DefaultSheets)
	v.SetDefault("ingest.phone_region", "US")
	v.SetDefault("classify.third_party_domains", DefaultThirdPartyDomains)
	v.SetDefault("classify.domains_file", "")
	v.SetDefault("classify.match", "suffix")
	v.SetDefault("outreach.templates_file", "")
	v.SetDefault("outreach.fallback_name", "your shop")
	v.SetDefault("outreach.fallback_city", "your area")
	v.SetDefault("store.driver", "")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.ttl_hours", 720)
	v.SetDefault("pipeline.concurrency", 1)
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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations that cannot drive a run.
func (c *Config) Validate() error {
	if c.Resolver.MinIntervalMs < 0 {
		return eris.Errorf("config: resolver.min_interval_ms must be >= 0, got %d", c.Resolver.MinIntervalMs)
	}
	if c.Resolver.MaxAttempts < 1 {
		return eris.Errorf("config: resolver.max_attempts must be >= 1, got %d", c.Resolver.MaxAttempts)
	}
	switch c.Classify.Match {
	case "suffix", "exact":
	default:
		return eris.Errorf("config: classify.match must be suffix or exact, got %q", c.Classify.Match)
	}
	switch c.Store.Driver {
	case "", "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	if c.Store.Driver != "" && c.Store.DatabaseURL == "" {
		return eris.Errorf("config: store.database_url is required for driver %q", c.Store.Driver)
	}
	if c.Pipeline.Concurrency < 1 {
		return eris.Errorf("config: pipeline.concurrency must be >= 1, got %d", c.Pipeline.Concurrency)
	}
	if len(c.Ingest.Sheets) == 0 {
		return eris.New("config: ingest.sheets must name at least one sheet")
	}
	return nil
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
