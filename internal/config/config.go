package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	EDGAR    EDGARConfig    `yaml:"edgar" mapstructure:"edgar"`
	Market   MarketConfig   `yaml:"market" mapstructure:"market"`
	Resolver ResolverConfig `yaml:"resolver" mapstructure:"resolver"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// EDGARConfig configures access to the SEC EDGAR endpoints.
type EDGARConfig struct {
	UserAgent          string  `yaml:"user_agent" mapstructure:"user_agent"`
	DirectoryURL       string  `yaml:"directory_url" mapstructure:"directory_url"`
	SubmissionsBaseURL string  `yaml:"submissions_base_url" mapstructure:"submissions_base_url"`
	ArchivesBaseURL    string  `yaml:"archives_base_url" mapstructure:"archives_base_url"`
	FormType           string  `yaml:"form_type" mapstructure:"form_type"`
	TimeoutSecs        int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries         int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec         float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// Timeout returns the per-request timeout.
func (c EDGARConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// MarketConfig configures the market metadata lookups.
type MarketConfig struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`

	// Consecutive failures before lookups pause, and for how long.
	BreakerThreshold    int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// Timeout returns the per-request timeout.
func (c MarketConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// ResolverConfig configures issuer-name to ticker resolution.
type ResolverConfig struct {
	NasdaqURL     string  `yaml:"nasdaq_url" mapstructure:"nasdaq_url"`
	OtherURL      string  `yaml:"other_url" mapstructure:"other_url"`
	ReferencePath string  `yaml:"reference_path" mapstructure:"reference_path"`
	Threshold     float64 `yaml:"threshold" mapstructure:"threshold"`
}

// PipelineConfig configures the ingestion run.
type PipelineConfig struct {
	MaxFilers     int    `yaml:"max_filers" mapstructure:"max_filers"`
	Concurrency   int    `yaml:"concurrency" mapstructure:"concurrency"`
	ProgressEvery int    `yaml:"progress_every" mapstructure:"progress_every"`
	StagingPath   string `yaml:"staging_path" mapstructure:"staging_path"`
}

// ServerConfig configures the status server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// PlaceholderUserAgent is the default edgar.user_agent. The SEC asks for a
// real contact, so ingest refuses to run with it.
const PlaceholderUserAgent = "f13-cli contact@example.com"

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("F13")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("edgar.user_agent", PlaceholderUserAgent)
	v.SetDefault("edgar.directory_url", "https://www.sec.gov/files/company_tickers.json")
	v.SetDefault("edgar.submissions_base_url", "https://data.sec.gov/submissions")
	v.SetDefault("edgar.archives_base_url", "https://www.sec.gov/Archives/edgar/data")
	v.SetDefault("edgar.form_type", "13F")
	v.SetDefault("edgar.timeout_secs", 30)
	v.SetDefault("edgar.max_retries", 2)
	v.SetDefault("edgar.rate_per_sec", 8)
	v.SetDefault("market.enabled", true)
	v.SetDefault("market.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("market.timeout_secs", 15)
	v.SetDefault("market.rate_per_sec", 2)
	v.SetDefault("market.breaker_threshold", 5)
	v.SetDefault("market.breaker_cooldown_secs", 60)
	v.SetDefault("resolver.nasdaq_url", "https://www.nasdaqtrader.com/dynamic/SymDir/nasdaqlisted.txt")
	v.SetDefault("resolver.other_url", "https://www.nasdaqtrader.com/dynamic/SymDir/otherlisted.txt")
	v.SetDefault("resolver.reference_path", "")
	v.SetDefault("resolver.threshold", 90)
	v.SetDefault("pipeline.max_filers", 6)
	v.SetDefault("pipeline.concurrency", 1)
	v.SetDefault("pipeline.progress_every", 10)
	v.SetDefault("pipeline.staging_path", "13f_filings.csv")
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

// Validate checks the configuration for the given command mode.
// Modes: "ingest", "load", "store" (any command that opens the store), "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not one of postgres, sqlite", c.Store.Driver))
	}

	switch mode {
	case "ingest":
		switch ua := strings.TrimSpace(c.EDGAR.UserAgent); ua {
		case "":
			errs = append(errs, "edgar.user_agent is required")
		case PlaceholderUserAgent:
			errs = append(errs, "edgar.user_agent must be set to a real contact (F13_EDGAR_USER_AGENT)")
		}
		if strings.TrimSpace(c.EDGAR.FormType) == "" {
			errs = append(errs, "edgar.form_type is required")
		}
		if c.Pipeline.MaxFilers < 0 {
			errs = append(errs, "pipeline.max_filers must be >= 0")
		}
		if c.Pipeline.Concurrency < 1 || c.Pipeline.Concurrency > 32 {
			errs = append(errs, "pipeline.concurrency must be between 1 and 32")
		}
		if c.Resolver.Threshold < 0 || c.Resolver.Threshold > 100 {
			errs = append(errs, "resolver.threshold must be between 0 and 100")
		}
	case "load", "store":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	case "serve":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(errs, "; "))
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
