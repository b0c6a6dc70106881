package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"trendpulse/internal/config"
	"trendpulse/internal/handler"
	"trendpulse/internal/service"
	"trendpulse/pkg/logger"
)

type Application struct {
	configPath string
	debug      bool
}

func main() {
	app := &Application{}

	flag.StringVar(&app.configPath, "config", "config/dev.yaml", "Configuration file path")
	flag.BoolVar(&app.debug, "debug", false, "Enable debug mode")
	flag.Parse()

	if err := app.Run(); err != nil {
		log.Fatalf("Application failed: %v", err)
	}
}

func (app *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.NewManager().Load(app.configPath)
	if err != nil {
		return err
	}
	if app.debug {
		cfg.Logger.Level = "debug"
	}
	logger.SetLogger(logger.New(cfg.Logger))
	appLog := logger.GetLogger().WithField("component", "server")

	logger.GetSecurityLogger().SafeInfo("Configuration loaded", map[string]interface{}{
		"config_path":  app.configPath,
		"port":         cfg.Server.Port,
		"matcher_mode": cfg.Matcher.Mode,
		"target_url":   cfg.Scraper.TargetURL,
		"headless":     cfg.Scraper.Headless,
		"database_dsn": cfg.Database.DSN,
	})

	components, err := service.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	defer components.Close()

	server := fiber.New(fiber.Config{
		AppName:               "trendpulse",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	server.Use(recover.New())
	server.Use(cors.New())

	handler.NewController(
		components.Trends,
		components.Trends,
		components.Trends,
		components.Hub,
		handler.ControllerConfig{
			RequestTimeout: cfg.Worker.ScrapeTimeout + 5*time.Minute,
			DefaultLimit:   cfg.Pipeline.DefaultLimit,
			Categories:     cfg.Pipeline.Categories,
		},
	).Register(server)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	listenErr := make(chan error, 1)
	go func() {
		appLog.WithField("addr", addr).Info("HTTP server listening")
		listenErr <- server.Listen(addr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		appLog.WithField("signal", sig.String()).Info("Shutdown signal received")
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return nil
	}

	cancel()
	if err := server.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
		appLog.WithError(err).Warn("HTTP server did not shut down cleanly")
	}
	appLog.Info("Server stopped")
	return nil
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		logger.GetLogger().WithError(err).WithField("path", c.Path()).Error("Unhandled request error")
	}
	return c.Status(code).JSON(handler.ErrorResponse{Success: false, Error: err.Error()})
}
