package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"trendpulse/internal/config"
	"trendpulse/internal/service"
	"trendpulse/pkg/livelog"
	"trendpulse/pkg/logger"
	"trendpulse/pkg/matcher"
	"trendpulse/pkg/pipeline"
)

// getEnvOrDefault returns environment variable value or default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault returns environment variable as int or default
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBoolOrDefault returns environment variable as bool or default
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("CRITICAL ERROR: pipeline panic recovered: %v\n", r)
			os.Exit(1)
		}
	}()

	var (
		configPath     = flag.String("config", getEnvOrDefault("CONFIG_PATH", ""), "Optional YAML configuration file (env: CONFIG_PATH)")
		topN           = flag.Int("top-n", getEnvIntOrDefault("TOP_N", 0), "Trends to keep from the export, 1-100 (env: TOP_N)")
		limit          = flag.Int("limit", getEnvIntOrDefault("PROCESS_LIMIT", 0), "Unprocessed trends to correlate (env: PROCESS_LIMIT)")
		categories     = flag.String("categories", getEnvOrDefault("CATEGORIES", ""), "Comma-separated categories, empty for all (env: CATEGORIES)")
		databaseURL    = flag.String("database-url", getEnvOrDefault("DATABASE_URL", ""), "Postgres DSN, empty for in-memory (env: DATABASE_URL)")
		matcherURL     = flag.String("matcher-url", getEnvOrDefault("MATCHER_URL", ""), "Matching service URL, empty for the built-in catalog (env: MATCHER_URL)")
		matcherAPIKey  = flag.String("matcher-api-key", getEnvOrDefault("MATCHER_API_KEY", ""), "Matching service API key (env: MATCHER_API_KEY)")
		registryURL    = flag.String("registry-url", getEnvOrDefault("REGISTRY_URL", ""), "Registration service URL (env: REGISTRY_URL)")
		registryAPIKey = flag.String("registry-api-key", getEnvOrDefault("REGISTRY_API_KEY", ""), "Registration service API key (env: REGISTRY_API_KEY)")
		headless       = flag.Bool("headless", getEnvBoolOrDefault("HEADLESS", true), "Run Chrome headless (env: HEADLESS)")
		debug          = flag.Bool("debug", getEnvBoolOrDefault("DEBUG", false), "Enable debug logging (env: DEBUG)")
		help           = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *help {
		printUsage()
		return
	}

	cfg, err := config.NewManager().Load(*configPath)
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
	applyOverrides(cfg, overrides{
		databaseURL:    *databaseURL,
		matcherURL:     *matcherURL,
		matcherAPIKey:  *matcherAPIKey,
		registryURL:    *registryURL,
		registryAPIKey: *registryAPIKey,
		headless:       *headless,
		debug:          *debug,
	})
	if *registryURL != "" && *registryAPIKey == "" {
		fmt.Println("ERROR: Registry API key is required when a registry URL is set.")
		fmt.Println("Use -registry-api-key flag or REGISTRY_API_KEY environment variable.")
		os.Exit(1)
	}
	if *topN < 0 || *topN > 100 {
		fmt.Println("ERROR: -top-n must be between 1 and 100.")
		os.Exit(1)
	}

	logger.SetLogger(logger.New(cfg.Logger))
	log := logger.GetLogger().WithField("component", "main")
	logger.GetSecurityLogger().SafeInfo("Configuration loaded", map[string]interface{}{
		"database_dsn":  cfg.Database.DSN,
		"matcher_mode":  cfg.Matcher.Mode,
		"matcher_url":   cfg.Matcher.BaseURL,
		"registry_url":  cfg.Registry.BaseURL,
		"target_url":    cfg.Scraper.TargetURL,
		"config_source": "env_vars_and_flags",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	components, err := service.Build(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to build pipeline")
	}
	defer components.Close()

	startTime := time.Now()
	report, err := components.Runner.Run(ctx, livelog.NewSession(nil, ""), pipeline.RunOptions{
		TopN:       *topN,
		Categories: splitCategories(*categories),
		Limit:      *limit,
	})
	duration := time.Since(startTime)

	printReport(report, duration)
	if err != nil {
		if errors.Is(err, pipeline.ErrSetup) {
			log.WithError(err).Error("Pipeline could not start")
		} else {
			log.WithError(err).Error("Pipeline failed")
		}
		components.Close()
		os.Exit(1)
	}
}

type overrides struct {
	databaseURL    string
	matcherURL     string
	matcherAPIKey  string
	registryURL    string
	registryAPIKey string
	headless       bool
	debug          bool
}

func applyOverrides(cfg *config.Config, o overrides) {
	if o.databaseURL != "" {
		cfg.Database.DSN = o.databaseURL
	}
	if o.matcherURL != "" {
		cfg.Matcher.Mode = config.MatcherModeHTTP
		cfg.Matcher.BaseURL = o.matcherURL
		cfg.Matcher.APIKey = o.matcherAPIKey
	}
	if o.registryURL != "" {
		cfg.Registry.BaseURL = o.registryURL
		cfg.Registry.APIKey = o.registryAPIKey
	}
	cfg.Scraper.Headless = o.headless
	if o.debug {
		cfg.Logger.Level = "debug"
		cfg.Logger.Format = "console"
	}
}

func splitCategories(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func printReport(report *pipeline.RunReport, duration time.Duration) {
	if report == nil {
		return
	}
	fmt.Printf("\n=== Trend Pipeline Results ===\n")
	fmt.Printf("Run ID: %s\n", report.RunID)
	fmt.Printf("Status: %s\n", report.Status)
	fmt.Printf("Duration: %s\n", duration.String())

	if report.Fetch != nil {
		fmt.Printf("Trends stored: %d (failed: %d, dropped rows: %d)\n",
			report.Fetch.Upserted, report.Fetch.Failed, report.Fetch.Report.Dropped)
	}
	if report.ScrapeError != "" {
		fmt.Printf("Scrape error: %s\n", report.ScrapeError)
	}
	if report.Error != "" {
		fmt.Printf("Error: %s\n", report.Error)
	}
	if report.Summary == nil {
		return
	}

	s := report.Summary
	fmt.Printf("Processed: %d  Matched: %d  No match: %d  Failed: %d\n", s.Processed, s.Matched, s.NoMatch, s.Failed)
	fmt.Printf("\n=== Individual Results ===\n")
	for _, out := range s.Outcomes {
		status := "NO MATCH"
		switch out.Outcome.Kind {
		case matcher.OutcomeMatched:
			status = "MATCHED"
		case matcher.OutcomeFailed:
			status = "FAILED"
		}
		fmt.Printf("%-8s %s -> %s (%s)\n", status, out.Trend.Name, out.Marker.Topic, out.Marker.TopicCategory)
		if out.MarkerError != "" {
			fmt.Printf("   Marker error: %s\n", out.MarkerError)
		}
	}
}

func printUsage() {
	fmt.Println("Trendpulse one-shot pipeline run")
	fmt.Println("")
	fmt.Println("USAGE:")
	fmt.Println("    ./trendpulse [OPTIONS]")
	fmt.Println("    ./trendpulse  # Uses environment variables")
	fmt.Println("")
	fmt.Println("Scrapes the trending export, stores new trends, then correlates up to")
	fmt.Println("-limit unprocessed trends with the matching service.")
	fmt.Println("")
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println("")
	fmt.Println("Every configuration key can also be set as TRENDPULSE_<SECTION>_<KEY>,")
	fmt.Println("for example TRENDPULSE_SCRAPER_PAGE_TIMEOUT=30s.")
}
