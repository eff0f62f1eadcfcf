package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store         StoreConfig         `yaml:"store" mapstructure:"store"`
	Gemini        GeminiConfig        `yaml:"gemini" mapstructure:"gemini"`
	Perplexity    PerplexityConfig    `yaml:"perplexity" mapstructure:"perplexity"`
	Anymailfinder AnymailfinderConfig `yaml:"anymailfinder" mapstructure:"anymailfinder"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
}

// Batch modes for multi-lead transitions.
const (
	BatchAtomic = "atomic"
	BatchPerRow = "per_row"
)

// StoreConfig configures the Postgres backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
	// BatchMode is "atomic" (one guarded statement per call) or "per_row"
	// (one statement per lead, so a bad row cannot fail its siblings).
	BatchMode string `yaml:"batch_mode" mapstructure:"batch_mode"`
}

// GeminiConfig holds Google Gemini credentials.
type GeminiConfig struct {
	Key          string `yaml:"key" mapstructure:"key"`
	DefaultModel string `yaml:"default_model" mapstructure:"default_model"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnymailfinderConfig holds email verification settings.
type AnymailfinderConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
}

// LLMConfig tunes outbound model calls shared by every provider.
type LLMConfig struct {
	RatePerSec       float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst            int     `yaml:"burst" mapstructure:"burst"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RetryAttempts    int     `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	BreakerThreshold int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
	// VariationConcurrency bounds parallel prompt-variation calls.
	VariationConcurrency int `yaml:"variation_concurrency" mapstructure:"variation_concurrency"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("STUDIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("store.batch_mode", BatchAtomic)
	v.SetDefault("gemini.default_model", "gemini-3-pro-preview")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar")
	v.SetDefault("anymailfinder.base_url", "https://api.anymailfinder.com/v5.1")
	v.SetDefault("anymailfinder.rate_per_sec", 5.0)
	v.SetDefault("anymailfinder.concurrency", 1)
	v.SetDefault("llm.rate_per_sec", 2.0)
	v.SetDefault("llm.burst", 2)
	v.SetDefault("llm.timeout_secs", 120)
	v.SetDefault("llm.retry_attempts", 3)
	v.SetDefault("llm.breaker_threshold", 5)
	v.SetDefault("llm.breaker_reset_secs", 60)
	v.SetDefault("llm.variation_concurrency", 3)
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173"})
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

// Validate checks that the settings a command mode needs are present.
// Modes: "serve", "migrate", "leads".
func (c *Config) Validate(mode string) error {
	var problems []string

	requireDB := func() {
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	}

	switch mode {
	case "serve":
		requireDB()
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0 and <= 65535")
		}
		if c.Gemini.Key == "" && c.Perplexity.Key == "" {
			problems = append(problems, "at least one of gemini.key or perplexity.key is required")
		}
	case "migrate", "leads":
		requireDB()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.BatchMode {
	case "", BatchAtomic, BatchPerRow:
	default:
		problems = append(problems, "store.batch_mode must be atomic or per_row")
	}
	if c.Anymailfinder.Concurrency < 0 {
		problems = append(problems, "anymailfinder.concurrency must be >= 0")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
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
