package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"trendpulse/pkg/logger"
	"trendpulse/pkg/resilience"
)

var (
	ErrExportNotFound   = errors.New("export control not found")
	ErrDownloadNotFound = errors.New("download option not found")
	ErrNoDownload       = errors.New("no downloaded file found")
)

type State string

const (
	StateNavigating        State = "NAVIGATING"
	StatePageReady         State = "PAGE_READY"
	StateMenuOpened        State = "MENU_OPENED"
	StateDownloadTriggered State = "DOWNLOAD_TRIGGERED"
	StateFileResolved      State = "FILE_RESOLVED"
	StateFailed            State = "FAILED"
)

// Session is an exclusive browser tab. Close must release every process
// the session started.
type Session interface {
	Page
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	WaitReady(ctx context.Context, css string, timeout time.Duration) error
	SetDownloadDir(ctx context.Context, dir string) error
	Close()
}

type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

type DriverConfig struct {
	TargetURL       string
	DownloadRoot    string
	ReadySelector   string
	FileExtension   string
	PageTimeout     time.Duration
	SettleDelay     time.Duration
	StrategyTimeout time.Duration
	MenuDelay       time.Duration
	DownloadWait    time.Duration
}

func DefaultDriverConfig() DriverConfig {
	return DriverConfig{
		TargetURL:       "https://trends.google.com/trending?geo=US",
		DownloadRoot:    filepath.Join(os.TempDir(), "trendpulse-downloads"),
		ReadySelector:   "body",
		FileExtension:   ".csv",
		PageTimeout:     20 * time.Second,
		SettleDelay:     5 * time.Second,
		StrategyTimeout: 3 * time.Second,
		MenuDelay:       3 * time.Second,
		DownloadWait:    8 * time.Second,
	}
}

// Result is the outcome of one scrape.
type Result struct {
	RunID string
	Path  string
	Dir   string
	State State
	// Trace lists every state the run entered, in order.
	Trace []State
}

// Cleanup removes the run's download directory.
func (r *Result) Cleanup() error {
	if r == nil || r.Dir == "" {
		return nil
	}
	return os.RemoveAll(r.Dir)
}

// StepError reports the state in which a scrape failed.
type StepError struct {
	State State
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("scrape failed after %s: %v", e.State, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Driver runs the export script. Each run downloads into its own directory
// under DownloadRoot, and runs are serialized.
type Driver struct {
	launcher Launcher
	cfg      DriverConfig
	exec     *resilience.SequentialExecutor
	sleep    func(ctx context.Context, d time.Duration) error
	log      *logger.Logger
}

func NewDriver(launcher Launcher, cfg DriverConfig) *Driver {
	return &Driver{
		launcher: launcher,
		cfg:      cfg,
		exec:     resilience.NewSequentialExecutor(),
		sleep:    sleepCtx,
		log:      logger.GetLogger().WithField("component", "scrape_driver"),
	}
}

// Download runs the export script and returns the downloaded file. A
// failure to start the browser wraps ErrBrowserStart.
func (d *Driver) Download(ctx context.Context) (*Result, error) {
	var (
		result *Result
		runErr error
	)
	err := d.exec.Execute(ctx, func() error {
		result, runErr = d.run(ctx)
		return runErr
	})
	if err != nil && runErr == nil {
		return nil, err
	}
	return result, runErr
}

func (d *Driver) run(ctx context.Context) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	log := d.log.WithField("run_id", res.RunID)
	enter := func(s State) {
		res.State = s
		res.Trace = append(res.Trace, s)
		log.WithField("state", string(s)).Debug("Scrape state")
	}
	fail := func(err error) (*Result, error) {
		failedIn := res.State
		enter(StateFailed)
		log.WithError(err).WithField("failed_in", string(failedIn)).Warn("Scrape failed")
		return res, &StepError{State: failedIn, Err: err}
	}

	if err := os.MkdirAll(d.cfg.DownloadRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create download root: %w", err)
	}
	dir, err := os.MkdirTemp(d.cfg.DownloadRoot, "run-*")
	if err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}
	res.Dir = dir

	session, err := d.launcher.Launch(ctx)
	if err != nil {
		_ = res.Cleanup()
		if !errors.Is(err, ErrBrowserStart) {
			err = fmt.Errorf("%w: %v", ErrBrowserStart, err)
		}
		return nil, err
	}
	defer session.Close()

	enter(StateNavigating)
	if err := session.SetDownloadDir(ctx, dir); err != nil {
		return fail(fmt.Errorf("set download dir: %w", err))
	}
	if err := session.Navigate(ctx, d.cfg.TargetURL, d.cfg.PageTimeout); err != nil {
		return fail(fmt.Errorf("navigate: %w", err))
	}
	if err := session.WaitReady(ctx, d.cfg.ReadySelector, d.cfg.PageTimeout); err != nil {
		return fail(fmt.Errorf("wait for %q: %w", d.cfg.ReadySelector, err))
	}
	if err := d.sleep(ctx, d.cfg.SettleDelay); err != nil {
		return fail(err)
	}
	enter(StatePageReady)

	locator := NewLocator(session, d.cfg.StrategyTimeout)
	export, ok := locator.Find(ctx, ExportButton)
	if !ok {
		return fail(ErrExportNotFound)
	}
	if err := d.activate(ctx, log, export, ExportButton.Name); err != nil {
		return fail(err)
	}
	if err := d.sleep(ctx, d.cfg.MenuDelay); err != nil {
		return fail(err)
	}
	enter(StateMenuOpened)

	option, ok := locator.Find(ctx, DownloadCSVOption)
	if !ok {
		return fail(ErrDownloadNotFound)
	}
	if err := d.activate(ctx, log, option, DownloadCSVOption.Name); err != nil {
		return fail(err)
	}
	enter(StateDownloadTriggered)
	if err := d.sleep(ctx, d.cfg.DownloadWait); err != nil {
		return fail(err)
	}

	path, err := NewestFile(dir, d.cfg.FileExtension)
	if err != nil {
		return fail(err)
	}
	res.Path = path
	enter(StateFileResolved)
	log.WithField("path", path).Info("Export downloaded")
	return res, nil
}

func (d *Driver) activate(ctx context.Context, log *logger.Logger, el Element, name string) error {
	programmatic, err := Activate(ctx, el)
	if err != nil {
		return fmt.Errorf("activate %s: %w", name, err)
	}
	if programmatic {
		log.WithField("target", name).Info("Used script click")
	}
	return nil
}

// NewestFile returns the most recently modified file in dir whose name
// ends with ext, ignoring case.
func NewestFile(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read download dir: %w", err)
	}
	ext = strings.ToLower(ext)

	var (
		newest  string
		newestT time.Time
	)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ext) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestT) {
			newest = filepath.Join(dir, entry.Name())
			newestT = info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("%w in %s", ErrNoDownload, dir)
	}
	return newest, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
