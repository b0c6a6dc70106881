package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendpulse/pkg/browser"
	"trendpulse/pkg/livelog"
	"trendpulse/pkg/matcher"
	"trendpulse/pkg/store"
	"trendpulse/pkg/worker"
)

const sampleExport = `Trends,Search volume,Started,Ended,Trend breakdown,Explore link
Dune,"500K+","March 1, 2024 at 8:00:00 PM UTC-5",,"dune part two,dune 2",https://trends.google.com/explore?q=dune
weather tomorrow,200K+,"March 2, 2024 at 6:00:00 AM UTC-5",,"weather",
`

type fakeScraper struct {
	body  string
	err   error
	calls int
}

func (f *fakeScraper) Download(ctx context.Context) (*browser.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	dir, err := os.MkdirTemp("", "trendpulse-test-")
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "trending.csv")
	if err := os.WriteFile(path, []byte(f.body), 0o600); err != nil {
		return nil, err
	}
	return &browser.Result{RunID: "test", Path: path, Dir: dir, State: browser.StateFileResolved}, nil
}

// cancellingScraper finishes the download and then cancels the caller, as a
// request deadline firing while the file lands would.
type cancellingScraper struct {
	fakeScraper
	cancel context.CancelFunc

	mu  sync.Mutex
	dir string
}

func (c *cancellingScraper) downloadDir() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dir
}

func (c *cancellingScraper) Download(ctx context.Context) (*browser.Result, error) {
	res, err := c.fakeScraper.Download(ctx)
	if res != nil {
		c.mu.Lock()
		c.dir = res.Dir
		c.mu.Unlock()
	}
	c.cancel()
	return res, err
}

type emptyScraper struct{}

func (emptyScraper) Download(ctx context.Context) (*browser.Result, error) { return nil, nil }

type unreachableStore struct {
	*store.MemoryStore
}

func (unreachableStore) Ping(ctx context.Context) error {
	return errors.New("dial tcp: connection refused")
}

func newTestRunner(s store.Store, sc Scraper, pool *worker.Pool) *Runner {
	o := NewOrchestrator(s, matcher.NewDefaultCatalogMatcher(), &fakeRegistry{}, OrchestratorConfig{})
	return NewRunner(sc, s, o, pool, RunnerConfig{})
}

func TestRunner_FetchTrendsStoresNormalizedRecords(t *testing.T) {
	s := store.NewMemoryStore()
	r := newTestRunner(s, &fakeScraper{body: sampleExport}, nil)

	res, err := r.FetchTrends(context.Background(), nil, 10)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Upserted)
	assert.Equal(t, 0, res.Failed)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "weather tomorrow", res.Records[0].Name)
	for _, rec := range res.Records {
		assert.NotZero(t, rec.ID)
		stored, ok := s.Get(rec.ID)
		require.True(t, ok)
		assert.Equal(t, rec.Name, stored.Name)
	}
}

func TestRunner_FetchTrendsRespectsTopN(t *testing.T) {
	s := store.NewMemoryStore()
	r := newTestRunner(s, &fakeScraper{body: sampleExport}, nil)

	res, err := r.FetchTrends(context.Background(), nil, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Upserted)
}

func TestRunner_FetchTrendsCanceledAfterDownload(t *testing.T) {
	t.Run("without pool", func(t *testing.T) {
		s := store.NewMemoryStore()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		scraper := &cancellingScraper{fakeScraper: fakeScraper{body: sampleExport}, cancel: cancel}
		r := newTestRunner(s, scraper, nil)

		var (
			res *FetchResult
			err error
		)
		require.NotPanics(t, func() { res, err = r.FetchTrends(ctx, nil, 5) })
		assert.Nil(t, res)
		assert.ErrorIs(t, err, context.Canceled)
		_, stored := s.Get(1)
		assert.False(t, stored)
		assert.NotEmpty(t, scraper.downloadDir())
		assert.NoDirExists(t, scraper.downloadDir())
	})

	t.Run("with pool", func(t *testing.T) {
		s := store.NewMemoryStore()
		pool := worker.NewPool(worker.DefaultConfig())
		require.NoError(t, pool.Start())
		defer pool.Stop()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		scraper := &cancellingScraper{fakeScraper: fakeScraper{body: sampleExport}, cancel: cancel}
		r := newTestRunner(s, scraper, pool)

		var (
			res *FetchResult
			err error
		)
		require.NotPanics(t, func() { res, err = r.FetchTrends(ctx, nil, 5) })
		assert.Nil(t, res)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Eventually(t, func() bool {
			dir := scraper.downloadDir()
			_, statErr := os.Stat(dir)
			return dir != "" && os.IsNotExist(statErr)
		}, time.Second, 10*time.Millisecond)
	})
}

func TestRunner_FetchTrendsWithoutDownloadFails(t *testing.T) {
	r := newTestRunner(store.NewMemoryStore(), emptyScraper{}, nil)

	var err error
	require.NotPanics(t, func() { _, err = r.FetchTrends(context.Background(), nil, 5) })
	assert.ErrorIs(t, err, errNoDownload)
	assert.NotErrorIs(t, err, ErrSetup)
}

func TestRunner_RunCanceledAfterDownloadEndsWithErrorEvent(t *testing.T) {
	s := store.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scraper := &cancellingScraper{fakeScraper: fakeScraper{body: sampleExport}, cancel: cancel}
	r := newTestRunner(s, scraper, nil)
	sess, conn := observedSession(t)

	report, _ := r.Run(ctx, sess, RunOptions{})
	require.NotNil(t, report)
	assert.Contains(t, report.ScrapeError, context.Canceled.Error())
	assert.NotContains(t, report.Error, "panicked")

	last := conn.last()
	assert.Contains(t, []string{livelog.CategoryResult, livelog.CategoryError}, last.Category)
}

func TestRunner_RunEndToEnd(t *testing.T) {
	s := store.NewMemoryStore()
	pool := worker.NewPool(worker.DefaultConfig())
	require.NoError(t, pool.Start())
	defer pool.Stop()

	r := newTestRunner(s, &fakeScraper{body: sampleExport}, pool)
	sess, conn := observedSession(t)

	report, err := r.Run(context.Background(), sess, RunOptions{TopN: 10})
	require.NoError(t, err)

	assert.Equal(t, StatusProgramFound, report.Status)
	require.NotNil(t, report.Fetch)
	assert.Equal(t, 2, report.Fetch.Upserted)
	require.NotNil(t, report.Summary)
	assert.Equal(t, 2, report.Summary.Processed)
	assert.Equal(t, 1, report.Summary.Matched)
	assert.Len(t, s.Markers(), 2)

	last := conn.last()
	assert.Equal(t, livelog.CategoryResult, last.Category)
	assert.Equal(t, livelog.LevelInfo, last.Level)
}

func TestRunner_RunTwiceDoesNotReprocess(t *testing.T) {
	s := store.NewMemoryStore()
	r := newTestRunner(s, &fakeScraper{body: sampleExport}, nil)

	_, err := r.Run(context.Background(), nil, RunOptions{})
	require.NoError(t, err)
	second, err := r.Run(context.Background(), nil, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 0, second.Summary.Processed)
	assert.Equal(t, StatusNoProgramFound, second.Status)
	assert.Len(t, s.Markers(), 2)
}

func TestRunner_ScrapeFailureStillProcessesStoredTrends(t *testing.T) {
	s := store.NewMemoryStore()
	seed(t, s, "Wednesday")
	scraper := &fakeScraper{err: &browser.StepError{State: browser.StatePageReady, Err: browser.ErrExportNotFound}}
	r := newTestRunner(s, scraper, nil)
	sess, conn := observedSession(t)

	report, err := r.Run(context.Background(), sess, RunOptions{})
	require.NoError(t, err)

	assert.Nil(t, report.Fetch)
	assert.Contains(t, report.ScrapeError, "export")
	require.NotNil(t, report.Summary)
	assert.Equal(t, 1, report.Summary.Matched)
	assert.Equal(t, livelog.CategoryResult, conn.last().Category)
}

func TestRunner_SetupFailuresAbortWithErrorEvent(t *testing.T) {
	tests := []struct {
		name    string
		store   store.Store
		scraper *fakeScraper
	}{
		{
			name:    "browser cannot start",
			store:   store.NewMemoryStore(),
			scraper: &fakeScraper{err: fmt.Errorf("%w: chrome not found", browser.ErrBrowserStart)},
		},
		{
			name:    "storage unreachable",
			store:   unreachableStore{store.NewMemoryStore()},
			scraper: &fakeScraper{body: sampleExport},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRunner(tt.store, tt.scraper, nil)
			sess, conn := observedSession(t)

			report, err := r.Run(context.Background(), sess, RunOptions{})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSetup)
			assert.Equal(t, StatusFailed, report.Status)
			assert.Nil(t, report.Summary)

			last := conn.last()
			assert.Equal(t, livelog.CategoryError, last.Category)
			assert.Equal(t, livelog.LevelError, last.Level)
		})
	}
}
