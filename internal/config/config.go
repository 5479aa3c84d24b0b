// Package config loads application configuration from file and environment.
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
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Geodata   GeodataConfig   `yaml:"geodata" mapstructure:"geodata"`
	Directory DirectoryConfig `yaml:"directory" mapstructure:"directory"`
	Rank      RankConfig      `yaml:"rank" mapstructure:"rank"`
	Crawl     CrawlConfig     `yaml:"crawl" mapstructure:"crawl"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// CacheConfig configures the per-locality JSON cache.
type CacheConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// StoreConfig configures the page-cache and organization store backends.
type StoreConfig struct {
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// SearchConfig holds web-search collaborator settings.
type SearchConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	MaxResults  int    `yaml:"max_results" mapstructure:"max_results"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// GeodataConfig configures the name-discovery collaborator.
type GeodataConfig struct {
	NominatimURL   string `yaml:"nominatim_url" mapstructure:"nominatim_url"`
	OverpassURL    string `yaml:"overpass_url" mapstructure:"overpass_url"`
	UserAgent      string `yaml:"user_agent" mapstructure:"user_agent"`
	RadiusStartKm  float64 `yaml:"radius_start_km" mapstructure:"radius_start_km"`
	RadiusMaxKm    float64 `yaml:"radius_max_km" mapstructure:"radius_max_km"`
	StageBudgetSec int    `yaml:"stage_budget_secs" mapstructure:"stage_budget_secs"`
}

// DirectoryConfig configures the structured directory lookup. An empty key
// disables the source; that is a normal, non-fatal condition.
type DirectoryConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// RankConfig configures the candidate ranking engine.
type RankConfig struct {
	MaxCheckedPages      int    `yaml:"max_checked_pages" mapstructure:"max_checked_pages"`
	ScoreThreshold       int    `yaml:"score_threshold" mapstructure:"score_threshold"`
	ProbeRequireLocation bool   `yaml:"probe_require_location" mapstructure:"probe_require_location"`
	WordListsPath        string `yaml:"word_lists_path" mapstructure:"word_lists_path"`
}

// CrawlConfig configures the domain-scoped crawler.
type CrawlConfig struct {
	MaxPages      int     `yaml:"max_pages" mapstructure:"max_pages"`
	MaxDepth      int     `yaml:"max_depth" mapstructure:"max_depth"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec    float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	CacheTTLHours int     `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	UserAgent     string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// PipelineConfig configures stage orchestration.
type PipelineConfig struct {
	MaxConcurrentOrgs int `yaml:"max_concurrent_orgs" mapstructure:"max_concurrent_orgs"`
	StageBudgetSecs   int `yaml:"stage_budget_secs" mapstructure:"stage_budget_secs"`
}

// ServerConfig configures the admin HTTP surface.
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

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("RESOLVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("cache.dir", "data")
	v.SetDefault("store.sqlite_path", "data/pages.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 800)
	v.SetDefault("anthropic.temperature", 0.2)
	v.SetDefault("anthropic.timeout_secs", 60)
	v.SetDefault("search.base_url", "https://s.jina.ai")
	v.SetDefault("search.max_results", 10)
	v.SetDefault("search.timeout_secs", 20)
	v.SetDefault("geodata.nominatim_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geodata.overpass_url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("geodata.user_agent", "Mozilla/5.0 (compatible; LodgescoutBot/1.0)")
	v.SetDefault("geodata.radius_start_km", 3.0)
	v.SetDefault("geodata.radius_max_km", 24.0)
	v.SetDefault("geodata.stage_budget_secs", 120)
	v.SetDefault("directory.base_url", "https://catalog.api.2gis.com")
	v.SetDefault("rank.max_checked_pages", 10)
	v.SetDefault("rank.score_threshold", 3)
	v.SetDefault("rank.probe_require_location", true)
	v.SetDefault("crawl.max_pages", 12)
	v.SetDefault("crawl.max_depth", 2)
	v.SetDefault("crawl.timeout_secs", 15)
	v.SetDefault("crawl.rate_per_sec", 4.0)
	v.SetDefault("crawl.cache_ttl_hours", 24)
	v.SetDefault("crawl.user_agent", "Mozilla/5.0 (compatible; LodgescoutBot/1.0)")
	v.SetDefault("pipeline.max_concurrent_orgs", 4)
	v.SetDefault("pipeline.stage_budget_secs", 600)

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
