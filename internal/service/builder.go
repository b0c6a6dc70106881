package service

import (
	"context"
	"fmt"

	"trendpulse/internal/config"
	"trendpulse/pkg/browser"
	"trendpulse/pkg/livelog"
	"trendpulse/pkg/logger"
	"trendpulse/pkg/matcher"
	"trendpulse/pkg/pipeline"
	"trendpulse/pkg/registry"
	"trendpulse/pkg/store"
	"trendpulse/pkg/worker"
)

// Components is the wired application graph shared by the server and the
// one-shot CLI.
type Components struct {
	Config  *config.Config
	Store   store.Store
	Matcher matcher.Matcher
	Pool    *worker.Pool
	Runner  *pipeline.Runner
	Hub     *livelog.Hub
	Trends  *Trends
}

// Build connects storage and constructs every collaborator from cfg.
// Storage failures are returned wrapped in pipeline.ErrSetup.
func Build(ctx context.Context, cfg *config.Config) (*Components, error) {
	log := logger.GetLogger().WithField("component", "builder")
	secureLog := logger.GetSecurityLogger()

	st, err := buildStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	m, err := buildMatcher(cfg.Matcher)
	if err != nil {
		secureLog.SafeError("Matcher configuration rejected", err, map[string]interface{}{
			"mode":        cfg.Matcher.Mode,
			"matcher_url": cfg.Matcher.BaseURL,
		})
		st.Close()
		return nil, err
	}

	var reg registry.Client
	if cfg.Registry.BaseURL != "" {
		reg, err = registry.NewClient(registry.Config{
			BaseURL: cfg.Registry.BaseURL,
			APIKey:  cfg.Registry.APIKey,
			Timeout: cfg.Registry.Timeout,
		})
		if err != nil {
			secureLog.SafeError("Registry configuration rejected", err, map[string]interface{}{
				"registry_url": cfg.Registry.BaseURL,
			})
			st.Close()
			return nil, fmt.Errorf("registry client: %w", err)
		}
		secureLog.SafeInfo("Registry configured", map[string]interface{}{
			"registry_url":     cfg.Registry.BaseURL,
			"registry_api_key": cfg.Registry.APIKey,
		})
	} else {
		log.Warn("Registry not configured, matches will not be registered")
	}

	pool := worker.NewPool(worker.Config{
		Workers:     1,
		QueueSize:   cfg.Worker.QueueSize,
		TaskTimeout: cfg.Worker.ScrapeTimeout,
	})
	if err := pool.Start(); err != nil {
		st.Close()
		return nil, fmt.Errorf("start worker pool: %w", err)
	}

	driver := browser.NewDriver(browser.NewChromeLauncher(browser.ChromeOptions{
		Headless:  cfg.Scraper.Headless,
		UserAgent: cfg.Scraper.UserAgent,
		ExecPath:  cfg.Scraper.ChromePath,
	}), browser.DriverConfig{
		TargetURL:       cfg.Scraper.TargetURL,
		DownloadRoot:    cfg.Scraper.DownloadRoot,
		ReadySelector:   "body",
		FileExtension:   cfg.Scraper.FileExtension,
		PageTimeout:     cfg.Scraper.PageTimeout,
		SettleDelay:     cfg.Scraper.SettleDelay,
		StrategyTimeout: cfg.Scraper.StrategyTimeout,
		MenuDelay:       cfg.Scraper.MenuDelay,
		DownloadWait:    cfg.Scraper.DownloadWait,
	})

	orch := pipeline.NewOrchestrator(st, m, reg, pipeline.OrchestratorConfig{SourceTag: cfg.Registry.SourceTag})
	runner := pipeline.NewRunner(driver, st, orch, pool, pipeline.RunnerConfig{
		Category:      cfg.Pipeline.Category,
		TopN:          cfg.Pipeline.TopN,
		DefaultLimit:  cfg.Pipeline.DefaultLimit,
		Categories:    cfg.Pipeline.Categories,
		ScrapeTimeout: cfg.Worker.ScrapeTimeout,
	})
	hub := livelog.NewHub()

	return &Components{
		Config:  cfg,
		Store:   st,
		Matcher: m,
		Pool:    pool,
		Runner:  runner,
		Hub:     hub,
		Trends:  NewTrends(runner, m, st, hub),
	}, nil
}

// Close stops the worker pool and releases storage.
func (c *Components) Close() {
	if c.Pool != nil {
		c.Pool.Stop()
	}
	if c.Store != nil {
		c.Store.Close()
	}
}

func buildStore(ctx context.Context, cfg config.DatabaseConfig) (store.Store, error) {
	log := logger.GetLogger().WithField("component", "builder")
	if cfg.DSN == "" {
		log.Warn("No database DSN configured, using in-memory trend store")
		return store.NewMemoryStore(), nil
	}

	logger.GetSecurityLogger().SafeInfo("Connecting to trend store", map[string]interface{}{
		"database_dsn": cfg.DSN,
		"max_conns":    cfg.MaxConns,
	})
	pool, err := store.Connect(ctx, store.PoolConfig{
		DSN:            cfg.DSN,
		MaxConns:       cfg.MaxConns,
		MinConns:       cfg.MinConns,
		ConnectRetries: 3,
	})
	if err != nil {
		logger.GetSecurityLogger().SafeError("Trend store unreachable", err, map[string]interface{}{
			"database_dsn": cfg.DSN,
		})
		return nil, fmt.Errorf("%w: %v", pipeline.ErrSetup, err)
	}

	pg := store.NewPostgresStore(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("%w: %v", pipeline.ErrSetup, err)
	}
	return pg, nil
}

func buildMatcher(cfg config.MatcherConfig) (matcher.Matcher, error) {
	switch cfg.Mode {
	case config.MatcherModeHTTP:
		m, err := matcher.NewHTTPMatcher(matcher.HTTPConfig{
			BaseURL:       cfg.BaseURL,
			APIKey:        cfg.APIKey,
			Timeout:       cfg.Timeout,
			MaxFailures:   cfg.MaxFailures,
			ResetTimeout:  cfg.ResetTimeout,
			MaxConcurrent: cfg.MaxConcurrent,
		})
		if err != nil {
			return nil, fmt.Errorf("matcher client: %w", err)
		}
		if cfg.APIKey == "" {
			logger.GetSecurityLogger().SafeWarn("Matcher API key not set, requests are unauthenticated", map[string]interface{}{
				"matcher_url": cfg.BaseURL,
			})
		}
		logger.GetSecurityLogger().SafeInfo("Matcher configured", map[string]interface{}{
			"mode":            cfg.Mode,
			"matcher_url":     cfg.BaseURL,
			"matcher_api_key": cfg.APIKey,
		})
		return m, nil
	default:
		return matcher.NewDefaultCatalogMatcher(), nil
	}
}
