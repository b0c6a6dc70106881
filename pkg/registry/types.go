// Package registry registers matched programs and their trend data with the
// downstream catalog service. Calls are made once, without retries.
package registry

import (
	"context"
	"time"
)

// SourceIdentity ties a topic to the stored trend it came from.
type SourceIdentity struct {
	TrendID  int64  `json:"trend_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// IngestTopicRequest is the body of the topic ingestion call.
type IngestTopicRequest struct {
	Name       string         `json:"name"`
	TopicType  string         `json:"topic_type"`
	ExternalID string         `json:"external_id,omitempty"`
	Source     SourceIdentity `json:"source_identity"`
}

type TrendInfo struct {
	SearchVolume int64      `json:"search_volume"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	Breakdown    []string   `json:"breakdown"`
	SourceLink   *string    `json:"source_link,omitempty"`
}

type SourceDetail struct {
	TrendName   string `json:"trend_name"`
	Category    string `json:"category"`
	Explanation string `json:"explanation,omitempty"`
}

// UpsertTrendInfoRequest is the body of the trend-info upsert call.
type UpsertTrendInfoRequest struct {
	SourceTag    string       `json:"source_tag"`
	TrendInfo    TrendInfo    `json:"trend_info"`
	SourceDetail SourceDetail `json:"source_detail"`
}

// Response is the envelope every registry endpoint returns. Code 0 is success.
type Response struct {
	Code    int           `json:"code"`
	Message string        `json:"message"`
	Data    *ResponseData `json:"data,omitempty"`
}

type ResponseData struct {
	TopicID string `json:"topic_id,omitempty"`
}

// Client is the registration collaborator.
type Client interface {
	// IngestTopic returns the topic token, or found=false when the service
	// accepted the call but returned no token.
	IngestTopic(ctx context.Context, req IngestTopicRequest) (token string, found bool, err error)
	UpsertTrendInfo(ctx context.Context, token string, req UpsertTrendInfoRequest) (bool, error)
}
