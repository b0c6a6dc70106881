// Package pipeline ties scraping, storage, matching and registration into
// one run and reports progress to a live session.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"trendpulse/pkg/livelog"
	"trendpulse/pkg/logger"
	"trendpulse/pkg/matcher"
	"trendpulse/pkg/registry"
	"trendpulse/pkg/store"
	"trendpulse/pkg/trends"
)

// ErrSetup marks failures that abort a whole run: the browser cannot start
// or storage cannot be reached.
var ErrSetup = errors.New("pipeline setup failed")

var errNoDownload = errors.New("scraper returned no download")

// UnknownCategory is the marker category for trends without a match.
const UnknownCategory = "unknown"

// Final run statuses.
const (
	StatusProgramFound   = "program_found"
	StatusNoProgramFound = "no_program_found"
	StatusFailed         = "failed"
)

// TrendOutcome is what happened to one trend.
type TrendOutcome struct {
	Trend        trends.TrendRecord    `json:"trend"`
	Outcome      matcher.Outcome       `json:"-"`
	TopicToken   string                `json:"topic_token,omitempty"`
	InfoUpserted bool                  `json:"info_upserted"`
	Marker       store.ProcessedMarker `json:"marker"`
	MarkerError  string                `json:"marker_error,omitempty"`
}

// Summary aggregates one orchestration pass.
type Summary struct {
	Processed int            `json:"processed"`
	Matched   int            `json:"matched"`
	NoMatch   int            `json:"no_match"`
	Failed    int            `json:"failed"`
	Outcomes  []TrendOutcome `json:"outcomes"`
}

// Status reduces the summary to a final answer for the caller.
func (s *Summary) Status() string {
	switch {
	case s.Matched > 0:
		return StatusProgramFound
	case s.Processed > 0 && s.Failed == s.Processed:
		return StatusFailed
	default:
		return StatusNoProgramFound
	}
}

type OrchestratorConfig struct {
	// SourceTag identifies this system in trend-info upserts.
	SourceTag string
}

// Orchestrator correlates unprocessed trends one at a time.
type Orchestrator struct {
	store    store.Store
	matcher  matcher.Matcher
	registry registry.Client
	config   OrchestratorConfig
	log      *logger.Logger
}

// NewOrchestrator builds an orchestrator. reg may be nil, in which case
// matches are recorded but not registered.
func NewOrchestrator(s store.Store, m matcher.Matcher, reg registry.Client, config OrchestratorConfig) *Orchestrator {
	if config.SourceTag == "" {
		config.SourceTag = "google_trends"
	}
	return &Orchestrator{
		store:    s,
		matcher:  m,
		registry: reg,
		config:   config,
		log:      logger.GetLogger().WithField("component", "orchestrator"),
	}
}

// ProcessUnprocessed selects up to limit unprocessed trends and processes
// them. Only a failed selection is returned as an error.
func (o *Orchestrator) ProcessUnprocessed(ctx context.Context, sess *livelog.Session, categories []string, limit int) (*Summary, error) {
	candidates, err := o.store.SelectUnprocessed(ctx, categories, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSetup, err)
	}
	sess.Info(livelog.CategoryPipeline, fmt.Sprintf("Found %d unprocessed trends", len(candidates)), map[string]interface{}{
		"categories": categories,
		"limit":      limit,
	})
	return o.Process(ctx, sess, candidates), nil
}

// Process handles candidates in order. Every candidate gets a marker.
func (o *Orchestrator) Process(ctx context.Context, sess *livelog.Session, candidates []trends.TrendRecord) *Summary {
	summary := &Summary{Outcomes: make([]TrendOutcome, 0, len(candidates))}
	progress := logger.NewProgressReporter(len(candidates), "Correlating trends")

	for _, rec := range candidates {
		if ctx.Err() != nil {
			sess.Warn(livelog.CategoryPipeline, "Run cancelled, remaining trends left for the next run", map[string]interface{}{
				"remaining": len(candidates) - progress.Current(),
			})
			break
		}
		out := o.processOne(ctx, sess, rec)
		summary.Outcomes = append(summary.Outcomes, out)
		summary.Processed++
		switch out.Outcome.Kind {
		case matcher.OutcomeMatched:
			summary.Matched++
		case matcher.OutcomeFailed:
			summary.Failed++
		default:
			summary.NoMatch++
		}
		progress.Step()
	}
	return summary
}

func (o *Orchestrator) processOne(ctx context.Context, sess *livelog.Session, rec trends.TrendRecord) TrendOutcome {
	keywords := rec.Keywords()
	trendFields := map[string]interface{}{
		"trend_id": rec.ID,
		"trend":    rec.Name,
		"category": rec.Category,
	}
	sess.Info(livelog.CategoryAnalysis, "Analyzing trend: "+rec.Name, map[string]interface{}{
		"trend_id": rec.ID,
		"keywords": keywords,
	})

	out := TrendOutcome{Trend: rec}
	sess.Debug(livelog.CategorySearch, fmt.Sprintf("Querying %s matcher", o.matcher.Name()), trendFields)
	out.Outcome = o.matcher.Match(ctx, keywords)
	CorrelationsTotal.WithLabelValues(out.Outcome.Kind.String()).Inc()

	switch out.Outcome.Kind {
	case matcher.OutcomeMatched:
		p := out.Outcome.Program
		sess.Info(livelog.CategoryMatch, "Matched program: "+p.Title, map[string]interface{}{
			"trend":        rec.Name,
			"title":        p.Title,
			"program_type": p.Kind,
			"release_year": p.ReleaseYear,
		})
		o.register(ctx, sess, rec, p, &out)
	case matcher.OutcomeFailed:
		sess.Error(livelog.CategoryError, "Matching failed: "+out.Outcome.Error, trendFields)
	default:
		msg := "No program matched " + rec.Name
		if out.Outcome.Info != "" {
			msg += ": " + out.Outcome.Info
		}
		sess.Warn(livelog.CategoryMatch, msg, trendFields)
	}

	out.Marker = markerFor(rec, keywords, out.Outcome)
	if err := o.store.RecordProcessed(ctx, out.Marker); err != nil {
		MarkerErrorsTotal.Inc()
		out.MarkerError = err.Error()
		o.log.WithError(err).WithFields(trendFields).Error("Failed to record processed trend")
		sess.Error(livelog.CategoryError, "Could not record trend as processed", trendFields)
	}
	return out
}

// register performs the two dependent registration calls. Each failure is
// logged and leaves the other state untouched.
func (o *Orchestrator) register(ctx context.Context, sess *livelog.Session, rec trends.TrendRecord, p *matcher.Program, out *TrendOutcome) {
	if o.registry == nil {
		return
	}

	token, found, err := o.registry.IngestTopic(ctx, registry.IngestTopicRequest{
		Name:       p.Title,
		TopicType:  p.Kind,
		ExternalID: p.ExternalID,
		Source:     registry.SourceIdentity{TrendID: rec.ID, Name: rec.Name, Category: rec.Category},
	})
	switch {
	case err != nil:
		RegistryCallsTotal.WithLabelValues("ingest_topic", "error").Inc()
		sess.Warn(livelog.CategoryAgent, "Topic ingestion failed", map[string]interface{}{"title": p.Title, "error": err.Error()})
		return
	case !found:
		RegistryCallsTotal.WithLabelValues("ingest_topic", "no_token").Inc()
		sess.Warn(livelog.CategoryAgent, "Topic ingestion returned no token", map[string]interface{}{"title": p.Title})
		return
	}
	RegistryCallsTotal.WithLabelValues("ingest_topic", "ok").Inc()
	out.TopicToken = token

	breakdown := rec.Breakdown
	if breakdown == nil {
		breakdown = []string{}
	}
	ok, err := o.registry.UpsertTrendInfo(ctx, token, registry.UpsertTrendInfoRequest{
		SourceTag: o.config.SourceTag,
		TrendInfo: registry.TrendInfo{
			SearchVolume: rec.SearchVolume,
			StartedAt:    rec.StartedAt,
			EndedAt:      rec.EndedAt,
			Breakdown:    breakdown,
			SourceLink:   rec.SourceLink,
		},
		SourceDetail: registry.SourceDetail{
			TrendName:   rec.Name,
			Category:    rec.Category,
			Explanation: p.TrendExplanation,
		},
	})
	if err != nil || !ok {
		RegistryCallsTotal.WithLabelValues("upsert_trend_info", "error").Inc()
		fields := map[string]interface{}{"title": p.Title, "topic": token}
		if err != nil {
			fields["error"] = err.Error()
		}
		sess.Warn(livelog.CategoryAgent, "Trend info upsert failed", fields)
		return
	}
	RegistryCallsTotal.WithLabelValues("upsert_trend_info", "ok").Inc()
	out.InfoUpserted = true
	sess.Info(livelog.CategoryAgent, "Registered trend for "+p.Title, map[string]interface{}{"topic": token})
}

// markerFor derives the processed marker from the outcome.
func markerFor(rec trends.TrendRecord, keywords []string, o matcher.Outcome) store.ProcessedMarker {
	m := store.ProcessedMarker{TrendID: rec.ID}
	if o.Kind == matcher.OutcomeMatched && o.Program != nil {
		m.Topic = o.Program.Title
		m.TopicCategory = o.Program.Kind
		m.SummaryText = o.Program.TrendExplanation
		if m.TopicCategory == "" {
			m.TopicCategory = UnknownCategory
		}
		return m
	}

	m.Topic = rec.Name
	m.TopicCategory = UnknownCategory
	summary := "Keywords: " + strings.Join(keywords, ", ")
	switch {
	case o.Kind == matcher.OutcomeFailed:
		summary += ". Error: " + o.Error
	case o.Info != "":
		summary += ". " + o.Info
	default:
		summary += ". No matching program found"
	}
	m.SummaryText = summary
	return m
}
