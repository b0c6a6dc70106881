package handler

import (
	"trendpulse/pkg/pipeline"
	"trendpulse/pkg/trends"
)

type RootResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type FetchRequest struct {
	TopN     int    `json:"top_n"`
	ClientID string `json:"client_id"`
}

type FetchResponse struct {
	Success bool                 `json:"success"`
	RunID   string               `json:"run_id"`
	Count   int                  `json:"count"`
	Trends  []trends.TrendRecord `json:"trends"`
	Report  trends.Report        `json:"report"`
	Failed  int                  `json:"failed"`
}

type ProcessRequest struct {
	ClientID   string   `json:"client_id"`
	Categories []string `json:"categories"`
	Limit      int      `json:"limit"`
}

type ProcessResponse struct {
	Status  string            `json:"status"`
	Summary *pipeline.Summary `json:"summary"`
}

type RunRequest struct {
	ClientID   string   `json:"client_id"`
	TopN       int      `json:"top_n"`
	Categories []string `json:"categories"`
	Limit      int      `json:"limit"`
}
