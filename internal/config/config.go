package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Zoho      ZohoConfig      `yaml:"zoho" mapstructure:"zoho"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Jina      JinaConfig      `yaml:"jina" mapstructure:"jina"`
	Firecrawl FirecrawlConfig `yaml:"firecrawl" mapstructure:"firecrawl"`
	Notify    NotifyConfig    `yaml:"notify" mapstructure:"notify"`
	Scrape    ScrapeConfig    `yaml:"scrape" mapstructure:"scrape"`
	Enrich    EnrichConfig    `yaml:"enrich" mapstructure:"enrich"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures run persistence.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ZohoConfig holds Zoho CRM OAuth credentials and endpoints.
type ZohoConfig struct {
	ClientID     string  `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string  `yaml:"client_secret" mapstructure:"client_secret"`
	RefreshToken string  `yaml:"refresh_token" mapstructure:"refresh_token"`
	AccountsURL  string  `yaml:"accounts_url" mapstructure:"accounts_url"`
	APIBaseURL   string  `yaml:"api_base_url" mapstructure:"api_base_url"`
	Module       string  `yaml:"module" mapstructure:"module"`
	RateLimitRPS float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// AnthropicConfig holds Anthropic API settings. Models are tried in order:
// primary first, then each fallback.
type AnthropicConfig struct {
	Key            string   `yaml:"key" mapstructure:"key"`
	Model          string   `yaml:"model" mapstructure:"model"`
	FallbackModels []string `yaml:"fallback_models" mapstructure:"fallback_models"`
	MaxTokens      int64    `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxAttempts    int      `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// JinaConfig holds Jina Reader/Search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// FirecrawlConfig holds Firecrawl API settings (scrape fallback only).
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// NotifyConfig configures the failure notification webhook.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// ScrapeConfig configures website scraping behavior.
type ScrapeConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// EnrichConfig configures the multi-source enrichment phase.
type EnrichConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	TimeoutSecs   int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// PipelineConfig configures orchestrator behavior.
type PipelineConfig struct {
	RequestTimeoutSecs int `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentCompanies int `yaml:"max_concurrent_companies" mapstructure:"max_concurrent_companies"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OVERVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "overview.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.max_concurrent_companies", 5)
	v.SetDefault("zoho.accounts_url", "https://accounts.zoho.com")
	v.SetDefault("zoho.api_base_url", "https://www.zohoapis.com/crm/v2")
	v.SetDefault("zoho.module", "Accounts")
	v.SetDefault("zoho.rate_limit_rps", 5)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.fallback_models", []string{"claude-haiku-4-5-20251001"})
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.max_attempts", 3)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v1")
	v.SetDefault("scrape.timeout_secs", 10)
	v.SetDefault("enrich.max_concurrent", 4)
	v.SetDefault("enrich.timeout_secs", 10)
	v.SetDefault("pipeline.request_timeout_secs", 300)

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
