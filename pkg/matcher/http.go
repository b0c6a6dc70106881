package matcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"trendpulse/pkg/logger"
	"trendpulse/pkg/resilience"
)

type HTTPConfig struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	MaxFailures  int
	ResetTimeout time.Duration
	// MaxConcurrent caps in-flight calls to the service.
	MaxConcurrent int
}

// HTTPMatcher calls a remote matching service. Repeated transport failures
// open a circuit breaker so a dead service fails fast.
type HTTPMatcher struct {
	config  HTTPConfig
	client  *fasthttp.Client
	breaker *resilience.CircuitBreaker
	limiter *resilience.ConcurrencyLimiter
	log     *logger.Logger
}

func NewHTTPMatcher(config HTTPConfig) (*HTTPMatcher, error) {
	if config.BaseURL == "" {
		return nil, errors.New("matcher base URL is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 120 * time.Second
	}
	if config.MaxFailures == 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout == 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 2
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &HTTPMatcher{
		config: config,
		client: &fasthttp.Client{
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxConnsPerHost:     16,
			MaxIdleConnDuration: 90 * time.Second,
		},
		breaker: resilience.NewCircuitBreaker(config.MaxFailures, config.ResetTimeout),
		limiter: resilience.NewConcurrencyLimiter(config.MaxConcurrent, config.Timeout),
		log:     logger.GetLogger().WithField("component", "matcher_client"),
	}, nil
}

func (m *HTTPMatcher) Name() string { return "http" }

func (m *HTTPMatcher) Match(ctx context.Context, keywords []string) Outcome {
	if err := m.limiter.Acquire(ctx); err != nil {
		return Failed(fmt.Sprintf("matching service busy: %v", err))
	}
	defer m.limiter.Release()

	var resp AnalyzeResponse
	err := m.breaker.Execute(ctx, func() error {
		var err error
		resp, err = m.analyze(keywords)
		return err
	})
	if err != nil {
		m.log.WithError(err).WithField("keywords", len(keywords)).Warn("Matching service call failed")
		return Failed(fmt.Sprintf("matching service unavailable: %v", err))
	}
	return OutcomeFromResponse(resp)
}

// Healthy reports whether the breaker currently lets calls through.
func (m *HTTPMatcher) Healthy() bool {
	return m.breaker.State() != resilience.StateOpen
}

func (m *HTTPMatcher) analyze(keywords []string) (AnalyzeResponse, error) {
	body, err := json.Marshal(AnalyzeRequest{Keywords: keywords})
	if err != nil {
		return AnalyzeResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(m.config.BaseURL + "/api/analyze-trends")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	if m.config.APIKey != "" {
		req.Header.Set("X-API-Key", m.config.APIKey)
	}
	req.SetBody(body)

	start := time.Now()
	if err := m.client.DoTimeout(req, resp, m.config.Timeout); err != nil {
		return AnalyzeResponse{}, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return AnalyzeResponse{}, fmt.Errorf("API returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var out AnalyzeResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return AnalyzeResponse{}, fmt.Errorf("failed to decode response: %w", err)
	}

	m.log.WithFields(map[string]interface{}{
		"success":  out.Success,
		"matched":  out.Program != nil,
		"duration": time.Since(start).String(),
	}).Debug("Matching service responded")
	return out, nil
}
