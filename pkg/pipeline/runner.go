package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"trendpulse/pkg/browser"
	"trendpulse/pkg/livelog"
	"trendpulse/pkg/logger"
	"trendpulse/pkg/store"
	"trendpulse/pkg/trends"
	"trendpulse/pkg/worker"
)

// Scraper produces an export file.
type Scraper interface {
	Download(ctx context.Context) (*browser.Result, error)
}

type RunnerConfig struct {
	Category     string
	TopN         int
	DefaultLimit int
	Categories   []string
	// ScrapeTimeout bounds one scrape when it runs on the worker pool.
	ScrapeTimeout time.Duration
}

// FetchResult is the outcome of scrape, normalize and upsert.
type FetchResult struct {
	RunID    string               `json:"run_id"`
	Records  []trends.TrendRecord `json:"records"`
	Report   trends.Report        `json:"report"`
	Upserted int                  `json:"upserted"`
	Failed   int                  `json:"failed"`
}

type RunOptions struct {
	TopN       int
	Categories []string
	Limit      int
}

// RunReport is the outcome of a full run.
type RunReport struct {
	RunID       string       `json:"run_id"`
	Status      string       `json:"status"`
	Fetch       *FetchResult `json:"fetch,omitempty"`
	ScrapeError string       `json:"scrape_error,omitempty"`
	Summary     *Summary     `json:"summary,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Runner executes scrape, normalize, upsert, select and correlate.
type Runner struct {
	scraper      Scraper
	normalizer   *trends.Normalizer
	store        store.Store
	orchestrator *Orchestrator
	pool         *worker.Pool
	config       RunnerConfig
	log          *logger.Logger
}

// NewRunner builds a runner. pool may be nil to scrape on the caller's
// goroutine.
func NewRunner(scraper Scraper, s store.Store, o *Orchestrator, pool *worker.Pool, config RunnerConfig) *Runner {
	if config.Category == "" {
		config.Category = trends.DefaultCategory
	}
	if config.TopN <= 0 {
		config.TopN = 25
	}
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = 10
	}
	if config.ScrapeTimeout <= 0 {
		config.ScrapeTimeout = 3 * time.Minute
	}
	return &Runner{
		scraper:      scraper,
		normalizer:   trends.NewNormalizer(),
		store:        s,
		orchestrator: o,
		pool:         pool,
		config:       config,
		log:          logger.GetLogger().WithField("component", "runner"),
	}
}

func (r *Runner) Orchestrator() *Orchestrator { return r.orchestrator }

// FetchTrends scrapes the export, normalizes up to topN records and
// upserts them. Storage or browser startup failures wrap ErrSetup.
func (r *Runner) FetchTrends(ctx context.Context, sess *livelog.Session, topN int) (*FetchResult, error) {
	if topN <= 0 {
		topN = r.config.TopN
	}
	res := &FetchResult{RunID: uuid.NewString()}

	if err := r.store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: storage unreachable: %v", ErrSetup, err)
	}

	sess.Info(livelog.CategoryScrape, "Downloading trends export", map[string]interface{}{"run_id": res.RunID})
	scrape, err := r.scrape(ctx, res.RunID)
	if scrape != nil {
		defer func() {
			if cerr := scrape.Cleanup(); cerr != nil {
				r.log.WithError(cerr).Warn("Failed to remove download directory")
			}
		}()
	}
	if err == nil && scrape == nil {
		err = errNoDownload
	}
	if err != nil {
		if errors.Is(err, browser.ErrBrowserStart) {
			return nil, fmt.Errorf("%w: %v", ErrSetup, err)
		}
		return nil, fmt.Errorf("scrape: %w", err)
	}

	table, err := trends.ReadFile(scrape.Path)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	records, report := r.normalizer.Normalize(table, trends.Options{Category: r.config.Category, Limit: topN})
	res.Report = report
	sess.Info(livelog.CategoryScrape, fmt.Sprintf("Parsed %d trends from export", len(records)), map[string]interface{}{
		"rows":     report.Rows,
		"dropped":  report.Dropped,
		"fallback": report.Fallback,
	})

	batch := store.UpsertAll(ctx, r.store, records)
	TrendsStoredTotal.WithLabelValues("ok").Add(float64(batch.Upserted))
	TrendsStoredTotal.WithLabelValues("error").Add(float64(batch.Failed))
	res.Upserted = batch.Upserted
	res.Failed = batch.Failed
	res.Records = batch.Stored

	level := livelog.LevelInfo
	if batch.Failed > 0 {
		level = livelog.LevelWarn
	}
	sess.Emit(level, livelog.CategoryStore, fmt.Sprintf("Stored %d trends (%d failed)", batch.Upserted, batch.Failed), nil)
	return res, nil
}

// Run executes the whole pipeline. A scrape that fails for environmental
// reasons is reported and the run still processes trends stored earlier.
// The session always receives a terminal RESULT or ERROR event.
func (r *Runner) Run(ctx context.Context, sess *livelog.Session, opts RunOptions) (report *RunReport, err error) {
	report = &RunReport{RunID: uuid.NewString()}
	if opts.Limit <= 0 {
		opts.Limit = r.config.DefaultLimit
	}
	if opts.Categories == nil {
		opts.Categories = r.config.Categories
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pipeline panicked: %v", rec)
		}
		if err != nil {
			report.Status = StatusFailed
			report.Error = err.Error()
			sess.Error(livelog.CategoryError, "Pipeline failed: "+err.Error(), map[string]interface{}{"run_id": report.RunID})
		} else {
			sess.Info(livelog.CategoryResult, "Pipeline finished: "+report.Status, map[string]interface{}{
				"run_id":    report.RunID,
				"processed": report.Summary.Processed,
				"matched":   report.Summary.Matched,
			})
		}
		RunsTotal.WithLabelValues(report.Status).Inc()
	}()

	sess.Info(livelog.CategoryPipeline, "Pipeline started", map[string]interface{}{"run_id": report.RunID})

	fetch, err := r.FetchTrends(ctx, sess, opts.TopN)
	switch {
	case errors.Is(err, ErrSetup):
		return report, err
	case err != nil:
		report.ScrapeError = err.Error()
		sess.Warn(livelog.CategoryScrape, "Scrape failed, processing previously stored trends", map[string]interface{}{"error": err.Error()})
	default:
		report.Fetch = fetch
	}

	summary, err := r.orchestrator.ProcessUnprocessed(ctx, sess, opts.Categories, opts.Limit)
	if err != nil {
		return report, err
	}
	report.Summary = summary
	report.Status = summary.Status()
	return report, nil
}

func (r *Runner) scrape(ctx context.Context, runID string) (*browser.Result, error) {
	start := time.Now()
	results := make(chan *browser.Result, 1)
	callerCtx := ctx
	fn := func(ctx context.Context) error {
		res, err := r.scraper.Download(ctx)
		if cerr := callerCtx.Err(); cerr != nil {
			// Nobody is waiting for this file any more.
			if res != nil {
				if rerr := res.Cleanup(); rerr != nil {
					r.log.WithError(rerr).Warn("Failed to remove abandoned download directory")
				}
			}
			if err == nil {
				err = cerr
			}
			return err
		}
		results <- res
		return err
	}

	var err error
	if r.pool != nil {
		err = r.pool.Do(ctx, worker.Task{ID: "scrape-" + runID, Fn: fn, Timeout: r.config.ScrapeTimeout})
	} else {
		err = fn(ctx)
	}

	var result *browser.Result
	select {
	case result = <-results:
	default:
	}
	if result == nil && err == nil {
		err = errNoDownload
		if cerr := ctx.Err(); cerr != nil {
			err = cerr
		}
	}
	ScrapeDuration.Observe(time.Since(start).Seconds())
	status := "ok"
	if err != nil {
		status = "error"
	}
	ScrapesTotal.WithLabelValues(status).Inc()
	return result, err
}
