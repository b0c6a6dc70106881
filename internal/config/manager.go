package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

type manager struct {
	mu     sync.RWMutex
	config *Config
	viper  *viper.Viper
}

func NewManager() Manager {
	return &manager{
		viper: viper.New(),
	}
}

// Load reads configPath, overlays TRENDPULSE_* environment variables and
// validates the result. An empty path or a missing file loads defaults and
// environment only.
func (m *manager) Load(configPath string) (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setupViper(configPath)

	if configPath != "" {
		if err := m.viper.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	config, err := m.decode()
	if err != nil {
		return nil, err
	}
	m.config = config
	return config, nil
}

func (m *manager) Reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config == nil {
		return fmt.Errorf("config not loaded")
	}

	if m.viper.ConfigFileUsed() != "" {
		if err := m.viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to reload config: %w", err)
		}
	}

	config, err := m.decode()
	if err != nil {
		return err
	}
	m.config = config
	return nil
}

func (m *manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

func (m *manager) decode() (*Config, error) {
	var config Config
	if err := m.viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	// Env overrides arrive as a single comma-separated string.
	config.Pipeline.Categories = splitList(config.Pipeline.Categories)

	if err := m.validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

func (m *manager) setupViper(configPath string) {
	if configPath != "" {
		m.viper.SetConfigFile(configPath)
	}

	m.viper.SetEnvPrefix("TRENDPULSE")
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.viper.AutomaticEnv()

	setDefaults(m.viper)
}

// setDefaults registers every key so AutomaticEnv can override keys that
// are absent from the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)

	v.SetDefault("scraper.target_url", "https://trends.google.com/trending?geo=US")
	v.SetDefault("scraper.download_root", "downloads")
	v.SetDefault("scraper.headless", true)
	v.SetDefault("scraper.chrome_path", "")
	v.SetDefault("scraper.user_agent", "")
	v.SetDefault("scraper.file_extension", ".csv")
	v.SetDefault("scraper.page_timeout", 20*time.Second)
	v.SetDefault("scraper.settle_delay", 5*time.Second)
	v.SetDefault("scraper.strategy_timeout", 3*time.Second)
	v.SetDefault("scraper.menu_delay", 3*time.Second)
	v.SetDefault("scraper.download_wait", 8*time.Second)

	v.SetDefault("matcher.mode", MatcherModeCatalog)
	v.SetDefault("matcher.base_url", "")
	v.SetDefault("matcher.api_key", "")
	v.SetDefault("matcher.timeout", 60*time.Second)
	v.SetDefault("matcher.max_failures", 5)
	v.SetDefault("matcher.reset_timeout", 30*time.Second)
	v.SetDefault("matcher.max_concurrent", 2)

	v.SetDefault("registry.base_url", "")
	v.SetDefault("registry.api_key", "")
	v.SetDefault("registry.timeout", 15*time.Second)
	v.SetDefault("registry.source_tag", "google_trends")

	v.SetDefault("pipeline.category", "all")
	v.SetDefault("pipeline.top_n", 25)
	v.SetDefault("pipeline.default_limit", 10)
	v.SetDefault("pipeline.categories", []string{})

	v.SetDefault("worker.queue_size", 16)
	v.SetDefault("worker.scrape_timeout", 3*time.Minute)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.time_format", time.RFC3339)
}

func (m *manager) validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Database.MaxConns < 0 || config.Database.MinConns < 0 {
		return fmt.Errorf("database connection limits must not be negative")
	}
	if config.Database.MaxConns > 0 && config.Database.MinConns > config.Database.MaxConns {
		return fmt.Errorf("min_conns (%d) exceeds max_conns (%d)", config.Database.MinConns, config.Database.MaxConns)
	}

	if config.Scraper.TargetURL == "" {
		return fmt.Errorf("scraper target_url cannot be empty")
	}
	if config.Scraper.DownloadRoot == "" {
		return fmt.Errorf("scraper download_root cannot be empty")
	}
	if !strings.HasPrefix(config.Scraper.FileExtension, ".") {
		return fmt.Errorf("scraper file_extension must start with a dot: %q", config.Scraper.FileExtension)
	}

	switch config.Matcher.Mode {
	case MatcherModeCatalog:
	case MatcherModeHTTP:
		if config.Matcher.BaseURL == "" {
			return fmt.Errorf("matcher base_url is required in %s mode", MatcherModeHTTP)
		}
	default:
		return fmt.Errorf("unknown matcher mode: %q", config.Matcher.Mode)
	}

	if config.Registry.BaseURL != "" && config.Registry.APIKey == "" {
		return fmt.Errorf("registry api_key is required when base_url is set")
	}

	if config.Pipeline.TopN <= 0 || config.Pipeline.TopN > 100 {
		return fmt.Errorf("pipeline top_n must be between 1 and 100")
	}
	if config.Pipeline.DefaultLimit <= 0 {
		return fmt.Errorf("pipeline default_limit must be positive")
	}

	if config.Worker.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive")
	}

	return nil
}

func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
