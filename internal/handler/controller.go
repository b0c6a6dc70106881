package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trendpulse/internal/service"
	"trendpulse/pkg/livelog"
	"trendpulse/pkg/logger"
	"trendpulse/pkg/matcher"
	"trendpulse/pkg/pipeline"
)

const (
	maxTopN         = 100
	defaultFetchTop = 10
)

type Controller struct {
	trends   service.TrendService
	analysis service.AnalysisService
	health   service.HealthService
	hub      service.LogHub
	config   ControllerConfig
	log      *logger.Logger
}

type ControllerConfig struct {
	// RequestTimeout bounds one pipeline request.
	RequestTimeout time.Duration
	DefaultLimit   int
	Categories     []string
}

func NewController(
	trends service.TrendService,
	analysis service.AnalysisService,
	health service.HealthService,
	hub service.LogHub,
	config ControllerConfig,
) *Controller {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 10 * time.Minute
	}
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = 10
	}
	return &Controller{
		trends:   trends,
		analysis: analysis,
		health:   health,
		hub:      hub,
		config:   config,
		log:      logger.GetLogger().WithField("component", "controller"),
	}
}

// Register mounts every route on app.
func (h *Controller) Register(app *fiber.App) {
	app.Get("/", h.Root)
	app.Get("/health", h.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")
	api.Post("/fetch-google-trends", h.FetchTrends)
	api.Post("/analyze-trends", h.AnalyzeTrends)
	api.Post("/trends/process", h.ProcessTrends)
	api.Post("/pipeline/run", h.RunPipeline)

	app.Use("/ws", requireUpgrade)
	app.Get("/ws/logs/:client_id", websocket.New(h.StreamLogs))
}

func requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (h *Controller) Root(c *fiber.Ctx) error {
	return c.JSON(RootResponse{Status: "healthy", Message: "Trend Analysis Portal API is running"})
}

func (h *Controller) Health(c *fiber.Ctx) error {
	return c.JSON(h.health.Health(c.UserContext()))
}

func (h *Controller) FetchTrends(c *fiber.Ctx) error {
	var req FetchRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	if req.TopN == 0 {
		req.TopN = defaultFetchTop
	}
	if req.TopN < 1 || req.TopN > maxTopN {
		return badRequest(c, "top_n must be between 1 and 100")
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	res, err := h.trends.FetchTrends(ctx, h.session(req.ClientID), req.TopN)
	if err != nil {
		return h.failure(c, "fetch trends", err)
	}
	return c.JSON(FetchResponse{
		Success: true,
		RunID:   res.RunID,
		Count:   len(res.Records),
		Trends:  res.Records,
		Report:  res.Report,
		Failed:  res.Failed,
	})
}

func (h *Controller) AnalyzeTrends(c *fiber.Ctx) error {
	var req matcher.AnalyzeRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	keywords := cleanKeywords(req.Keywords)
	if len(keywords) == 0 {
		return badRequest(c, "No keywords provided")
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	out := h.analysis.Analyze(ctx, h.session(c.Query("client_id")), keywords)
	return c.JSON(matcher.ResponseFromOutcome(out))
}

func (h *Controller) ProcessTrends(c *fiber.Ctx) error {
	var req ProcessRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	if req.Limit < 0 {
		return badRequest(c, "limit must not be negative")
	}
	if req.Limit == 0 {
		req.Limit = h.config.DefaultLimit
	}
	if req.Categories == nil {
		req.Categories = h.config.Categories
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	summary, err := h.trends.ProcessTrends(ctx, h.session(req.ClientID), req.Categories, req.Limit)
	if err != nil {
		return h.failure(c, "process trends", err)
	}
	return c.JSON(ProcessResponse{Status: summary.Status(), Summary: summary})
}

func (h *Controller) RunPipeline(c *fiber.Ctx) error {
	var req RunRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	if req.TopN < 0 || req.TopN > maxTopN {
		return badRequest(c, "top_n must be between 1 and 100")
	}
	if req.Limit < 0 {
		return badRequest(c, "limit must not be negative")
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	report, err := h.trends.RunPipeline(ctx, h.session(req.ClientID), pipeline.RunOptions{
		TopN:       req.TopN,
		Categories: req.Categories,
		Limit:      req.Limit,
	})
	if err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, pipeline.ErrSetup) {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(report)
	}
	return c.JSON(report)
}

// StreamLogs registers the socket as the observer for client_id until the
// client goes away or a newer observer replaces it.
func (h *Controller) StreamLogs(conn *websocket.Conn) {
	clientID := conn.Params("client_id")
	log := h.log.WithField("session_id", clientID)

	h.hub.Connect(clientID, conn)
	defer h.hub.Release(clientID, conn)

	livelog.NewSession(h.hub, clientID).Info(livelog.CategoryAgent, "Connected to live log stream", nil)
	log.Debug("Observer connected")

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.WithError(err).Debug("Observer read loop ended")
			return
		}
	}
}

func (h *Controller) session(clientID string) *livelog.Session {
	return livelog.NewSession(h.hub, strings.TrimSpace(clientID))
}

func (h *Controller) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), h.config.RequestTimeout)
}

func (h *Controller) failure(c *fiber.Ctx, op string, err error) error {
	status := fiber.StatusInternalServerError
	if errors.Is(err, pipeline.ErrSetup) {
		status = fiber.StatusServiceUnavailable
	}
	h.log.WithError(err).WithField("operation", op).Error("Request failed")
	return c.Status(status).JSON(ErrorResponse{Success: false, Error: err.Error()})
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Success: false, Error: msg})
}

func cleanKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, k := range in {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
