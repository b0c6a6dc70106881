package service

import (
	"context"

	"trendpulse/pkg/livelog"
	"trendpulse/pkg/matcher"
	"trendpulse/pkg/pipeline"
)

// TrendService runs the ingestion and correlation stages for a session.
// A nil session only logs.
type TrendService interface {
	FetchTrends(ctx context.Context, sess *livelog.Session, topN int) (*pipeline.FetchResult, error)
	ProcessTrends(ctx context.Context, sess *livelog.Session, categories []string, limit int) (*pipeline.Summary, error)
	RunPipeline(ctx context.Context, sess *livelog.Session, opts pipeline.RunOptions) (*pipeline.RunReport, error)
}

// AnalysisService matches an ad-hoc keyword list.
type AnalysisService interface {
	Analyze(ctx context.Context, sess *livelog.Session, keywords []string) matcher.Outcome
}

type HealthService interface {
	Health(ctx context.Context) HealthStatus
}

// LogHub is the observer registry behind the live log channel.
type LogHub interface {
	livelog.Sender
	Connect(sessionID string, conn livelog.Conn)
	Release(sessionID string, conn livelog.Conn)
}

type HealthStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Matcher   string `json:"matcher"`
	Store     string `json:"store"`
	Observers int    `json:"observers"`
}
