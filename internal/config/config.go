package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	YouTube    YouTubeConfig    `yaml:"youtube" mapstructure:"youtube"`
	Books      BooksConfig      `yaml:"books" mapstructure:"books"`
	Podcast    PodcastConfig    `yaml:"podcast" mapstructure:"podcast"`
	KGraph     KGraphConfig     `yaml:"kgraph" mapstructure:"kgraph"`
	News       NewsConfig       `yaml:"news" mapstructure:"news"`
	Research   ResearchConfig   `yaml:"research" mapstructure:"research"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Verify     VerifyConfig     `yaml:"verify" mapstructure:"verify"`
	Sync       SyncConfig       `yaml:"sync" mapstructure:"sync"`
	Refresh    RefreshConfig    `yaml:"refresh" mapstructure:"refresh"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// YouTubeConfig holds YouTube Data API settings.
type YouTubeConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// BooksConfig holds Google Books API settings.
type BooksConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	MaxResults int    `yaml:"max_results" mapstructure:"max_results"`
}

// PodcastConfig holds podcast catalog settings.
type PodcastConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// KGraphConfig holds Knowledge Graph Search API settings.
type KGraphConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// NewsConfig holds news provider settings.
type NewsConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	MaxResults int    `yaml:"max_results" mapstructure:"max_results"`
}

// ResearchConfig holds the free-text research provider settings.
type ResearchConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings for the bio rewrite step.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// PipelineConfig configures pipeline behavior.
type PipelineConfig struct {
	BatchCap            int `yaml:"batch_cap" mapstructure:"batch_cap"`
	InterSubjectDelayMs int `yaml:"inter_subject_delay_ms" mapstructure:"inter_subject_delay_ms"`
	ProviderTimeoutSecs int `yaml:"provider_timeout_secs" mapstructure:"provider_timeout_secs"`
}

// VerifyConfig configures the verification stage.
type VerifyConfig struct {
	ProbeTimeoutSecs int `yaml:"probe_timeout_secs" mapstructure:"probe_timeout_secs"`
}

// SyncConfig configures the sync/merge service.
type SyncConfig struct {
	InterSubjectDelayMs int `yaml:"inter_subject_delay_ms" mapstructure:"inter_subject_delay_ms"`
}

// RefreshConfig configures the refresh scheduler.
type RefreshConfig struct {
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size"`
}

// CacheConfig configures the lookup cache shielding structured provider calls.
type CacheConfig struct {
	TTLHours int `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// TTL returns the lookup cache TTL as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures the serve-mode health monitor.
type MonitoringConfig struct {
	WebhookURL          string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs   int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	MaxUnresolvedFlags  int     `yaml:"max_unresolved_flags" mapstructure:"max_unresolved_flags"`
	MaxOverdueRefreshes int     `yaml:"max_overdue_refreshes" mapstructure:"max_overdue_refreshes"`
	LowConfidenceShare  float64 `yaml:"low_confidence_share" mapstructure:"low_confidence_share"`
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
	v.SetEnvPrefix("PROFILE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "profiles.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("youtube.base_url", "https://www.googleapis.com/youtube/v3")
	v.SetDefault("books.base_url", "https://www.googleapis.com/books/v1")
	v.SetDefault("books.max_results", 10)
	v.SetDefault("podcast.base_url", "https://itunes.apple.com")
	v.SetDefault("kgraph.base_url", "https://kgsearch.googleapis.com/v1")
	v.SetDefault("news.base_url", "https://newsapi.org/v2")
	v.SetDefault("news.max_results", 5)
	v.SetDefault("research.base_url", "https://api.perplexity.ai")
	v.SetDefault("research.model", "sonar-pro")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("pipeline.batch_cap", 20)
	v.SetDefault("pipeline.inter_subject_delay_ms", 2000)
	v.SetDefault("pipeline.provider_timeout_secs", 30)
	v.SetDefault("verify.probe_timeout_secs", 10)
	v.SetDefault("sync.inter_subject_delay_ms", 2000)
	v.SetDefault("refresh.batch_size", 10)
	v.SetDefault("cache.ttl_hours", 72)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.max_unresolved_flags", 25)
	v.SetDefault("monitoring.max_overdue_refreshes", 10)
	v.SetDefault("monitoring.low_confidence_share", 0.5)

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
