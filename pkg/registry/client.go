package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"trendpulse/pkg/logger"
)

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type httpClient struct {
	config Config
	client *fasthttp.Client
	log    *logger.Logger
}

func NewClient(config Config) (Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("registry base URL is required")
	}
	if config.APIKey == "" {
		return nil, errors.New("registry API key is required - set TRENDPULSE_REGISTRY_API_KEY")
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &httpClient{
		config: config,
		client: &fasthttp.Client{
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxConnsPerHost:     16,
			MaxIdleConnDuration: 90 * time.Second,
		},
		log: logger.GetLogger().WithField("component", "registry_client"),
	}, nil
}

func (c *httpClient) IngestTopic(ctx context.Context, req IngestTopicRequest) (string, bool, error) {
	resp, err := c.post(ctx, "/api/v1/topics/ingest", req)
	if err != nil {
		return "", false, fmt.Errorf("ingest topic %q: %w", req.Name, err)
	}
	if resp.Data == nil || resp.Data.TopicID == "" {
		c.log.WithField("topic", req.Name).Info("Registry returned no topic token")
		return "", false, nil
	}
	return resp.Data.TopicID, true, nil
}

func (c *httpClient) UpsertTrendInfo(ctx context.Context, token string, req UpsertTrendInfoRequest) (bool, error) {
	if token == "" {
		return false, errors.New("topic token is required")
	}
	if _, err := c.post(ctx, "/api/v1/topics/"+url.PathEscape(token)+"/trend-info", req); err != nil {
		return false, fmt.Errorf("upsert trend info for %s: %w", token, err)
	}
	return true, nil
}

func (c *httpClient) post(ctx context.Context, path string, payload interface{}) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.BaseURL + path)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("X-API-Key", c.config.APIKey)
	req.SetBody(body)

	if err := c.client.DoTimeout(req, resp, c.config.Timeout); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var out Response
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Code != 0 {
		return nil, fmt.Errorf("registry returned code %d: %s", out.Code, out.Message)
	}

	c.log.WithFields(map[string]interface{}{
		"path":    path,
		"message": out.Message,
	}).Debug("Registry call completed")
	return &out, nil
}
