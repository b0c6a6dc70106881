package service

import (
	"context"
	"fmt"
	"strings"

	"trendpulse/pkg/livelog"
	"trendpulse/pkg/logger"
	"trendpulse/pkg/matcher"
	"trendpulse/pkg/pipeline"
	"trendpulse/pkg/store"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
	available      = "available"
	unavailable    = "unavailable"
)

type healthChecker interface {
	Healthy() bool
}

// Trends implements TrendService, AnalysisService and HealthService over
// one runner.
type Trends struct {
	runner  *pipeline.Runner
	matcher matcher.Matcher
	store   store.Store
	hub     *livelog.Hub
	log     *logger.Logger
}

func NewTrends(runner *pipeline.Runner, m matcher.Matcher, s store.Store, hub *livelog.Hub) *Trends {
	return &Trends{
		runner:  runner,
		matcher: m,
		store:   s,
		hub:     hub,
		log:     logger.GetLogger().WithField("component", "trend_service"),
	}
}

// FetchTrends always ends with a RESULT or ERROR event.
func (t *Trends) FetchTrends(ctx context.Context, sess *livelog.Session, topN int) (*pipeline.FetchResult, error) {
	res, err := t.runner.FetchTrends(ctx, sess, topN)
	if err != nil {
		sess.Error(livelog.CategoryError, "Fetch failed: "+err.Error(), nil)
		return nil, err
	}
	sess.Info(livelog.CategoryResult, fmt.Sprintf("Fetched %d trends", len(res.Records)), map[string]interface{}{
		"run_id":   res.RunID,
		"upserted": res.Upserted,
		"failed":   res.Failed,
	})
	return res, nil
}

func (t *Trends) ProcessTrends(ctx context.Context, sess *livelog.Session, categories []string, limit int) (*pipeline.Summary, error) {
	summary, err := t.runner.Orchestrator().ProcessUnprocessed(ctx, sess, categories, limit)
	if err != nil {
		sess.Error(livelog.CategoryError, "Processing failed: "+err.Error(), nil)
		return nil, err
	}
	sess.Info(livelog.CategoryResult, "Processing finished: "+summary.Status(), map[string]interface{}{
		"processed": summary.Processed,
		"matched":   summary.Matched,
	})
	return summary, nil
}

func (t *Trends) RunPipeline(ctx context.Context, sess *livelog.Session, opts pipeline.RunOptions) (*pipeline.RunReport, error) {
	return t.runner.Run(ctx, sess, opts)
}

// Analyze runs the matcher once and always ends with a RESULT or ERROR
// event.
func (t *Trends) Analyze(ctx context.Context, sess *livelog.Session, keywords []string) matcher.Outcome {
	sess.Info(livelog.CategoryAgent, "Starting trend analysis", map[string]interface{}{"keywords": keywords})
	sess.Info(livelog.CategoryAnalysis, fmt.Sprintf("Analyzing %d keywords: %s", len(keywords), strings.Join(keywords, ", ")), nil)

	out := t.matcher.Match(ctx, keywords)
	switch out.Kind {
	case matcher.OutcomeMatched:
		sess.Info(livelog.CategoryResult, "Identified program: "+out.Program.Title, map[string]interface{}{
			"title":        out.Program.Title,
			"program_type": out.Program.Kind,
			"trending":     out.Program.Trending,
		})
	case matcher.OutcomeFailed:
		sess.Error(livelog.CategoryError, "Analysis failed: "+out.Error, nil)
	default:
		sess.Info(livelog.CategoryResult, "No trending program identified", nil)
	}
	return out
}

func (t *Trends) Health(ctx context.Context) HealthStatus {
	h := HealthStatus{Status: statusHealthy, Matcher: available, Store: available}

	if hc, ok := t.matcher.(healthChecker); ok && !hc.Healthy() {
		h.Matcher = unavailable
	}
	if err := t.store.Ping(ctx); err != nil {
		t.log.WithError(err).Warn("Store health check failed")
		h.Store = unavailable
	}
	if h.Matcher != available || h.Store != available {
		h.Status = statusDegraded
	}
	if t.hub != nil {
		h.Observers = t.hub.Count()
	}
	h.Message = fmt.Sprintf("API is running. Matcher (%s): %s. Store: %s", t.matcher.Name(), h.Matcher, h.Store)
	return h
}
