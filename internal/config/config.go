package config

import (
	"time"

	"trendpulse/pkg/logger"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Matcher  MatcherConfig  `mapstructure:"matcher"`
	Registry RegistryConfig `mapstructure:"registry"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Logger   logger.Config  `mapstructure:"logger"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig selects the trend store. An empty DSN runs on the
// in-memory store.
type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

type ScraperConfig struct {
	TargetURL       string        `mapstructure:"target_url"`
	DownloadRoot    string        `mapstructure:"download_root"`
	Headless        bool          `mapstructure:"headless"`
	ChromePath      string        `mapstructure:"chrome_path"`
	UserAgent       string        `mapstructure:"user_agent"`
	FileExtension   string        `mapstructure:"file_extension"`
	PageTimeout     time.Duration `mapstructure:"page_timeout"`
	SettleDelay     time.Duration `mapstructure:"settle_delay"`
	StrategyTimeout time.Duration `mapstructure:"strategy_timeout"`
	MenuDelay       time.Duration `mapstructure:"menu_delay"`
	DownloadWait    time.Duration `mapstructure:"download_wait"`
}

const (
	MatcherModeHTTP    = "http"
	MatcherModeCatalog = "catalog"
)

type MatcherConfig struct {
	Mode          string        `mapstructure:"mode"`
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxFailures   int           `mapstructure:"max_failures"`
	ResetTimeout  time.Duration `mapstructure:"reset_timeout"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
}

// RegistryConfig is optional. Without a base URL matches are recorded
// but not registered.
type RegistryConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
	SourceTag string        `mapstructure:"source_tag"`
}

type PipelineConfig struct {
	Category     string   `mapstructure:"category"`
	TopN         int      `mapstructure:"top_n"`
	DefaultLimit int      `mapstructure:"default_limit"`
	Categories   []string `mapstructure:"categories"`
}

type WorkerConfig struct {
	QueueSize     int           `mapstructure:"queue_size"`
	ScrapeTimeout time.Duration `mapstructure:"scrape_timeout"`
}

type Manager interface {
	Load(configPath string) (*Config, error)
	Reload() error
	GetConfig() *Config
}
