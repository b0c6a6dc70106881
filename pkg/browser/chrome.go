package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

var ErrBrowserStart = errors.New("browser session could not start")

const textReadTimeout = 500 * time.Millisecond

// ChromeOptions configures the headless Chrome launcher.
type ChromeOptions struct {
	Headless  bool
	UserAgent string
	ExecPath  string
}

// ChromeLauncher starts one Chrome process per session.
type ChromeLauncher struct {
	opts ChromeOptions
}

func NewChromeLauncher(opts ChromeOptions) *ChromeLauncher {
	return &ChromeLauncher{opts: opts}
}

func (l *ChromeLauncher) Launch(ctx context.Context) (Session, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	)
	if l.opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(l.opts.UserAgent))
	}
	if l.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(l.opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// An empty Run starts the browser.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: %v", ErrBrowserStart, err)
	}

	return &ChromeSession{
		ctx: browserCtx,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
	}, nil
}

// ChromeSession is a single tab in a dedicated Chrome process.
type ChromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (s *ChromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); timeout <= 0 || left < timeout {
			timeout = left
		}
	}
	runCtx := s.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(s.ctx, timeout)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

func (s *ChromeSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	return s.run(ctx, timeout, chromedp.Navigate(url))
}

func (s *ChromeSession) WaitReady(ctx context.Context, css string, timeout time.Duration) error {
	return s.run(ctx, timeout, chromedp.WaitReady(css, chromedp.ByQuery))
}

func (s *ChromeSession) SetDownloadDir(ctx context.Context, dir string) error {
	return s.run(ctx, 0, cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
		WithDownloadPath(dir).
		WithEventsEnabled(true))
}

func (s *ChromeSession) WaitInteractable(ctx context.Context, st Strategy, timeout time.Duration) (Element, error) {
	by := chromedp.ByQuery
	if st.Kind == ByXPath {
		by = chromedp.BySearch
	}
	var nodes []*cdp.Node
	err := s.run(ctx, timeout, chromedp.Nodes(st.Selector, &nodes, by, chromedp.NodeVisible))
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, ErrElementNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, ErrElementNotFound
	}
	return &chromeElement{session: s, node: nodes[0]}, nil
}

func (s *ChromeSession) Candidates(ctx context.Context, css string) ([]Element, error) {
	var nodes []*cdp.Node
	if err := s.run(ctx, 5*time.Second, chromedp.Nodes(css, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, err
	}
	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &chromeElement{session: s, node: n})
	}
	return out, nil
}

func (s *ChromeSession) Close() {
	s.cancel()
}

type chromeElement struct {
	session *ChromeSession
	node    *cdp.Node
}

// Text returns the rendered text, or "" for nodes that are not visible.
func (e *chromeElement) Text(ctx context.Context) (string, error) {
	var text string
	err := e.session.run(ctx, textReadTimeout,
		chromedp.Text([]cdp.NodeID{e.node.NodeID}, &text, chromedp.ByNodeID))
	if errors.Is(err, context.DeadlineExceeded) {
		return "", nil
	}
	return text, err
}

func (e *chromeElement) Attribute(name string) string {
	return e.node.AttributeValue(name)
}

func (e *chromeElement) Click(ctx context.Context) error {
	return e.session.run(ctx, 5*time.Second, chromedp.MouseClickNode(e.node))
}

func (e *chromeElement) ClickProgrammatic(ctx context.Context) error {
	return e.session.run(ctx, 5*time.Second, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(e.node.NodeID).Do(ctx)
		if err != nil {
			return fmt.Errorf("resolve node: %w", err)
		}
		_, exc, err := runtime.CallFunctionOn(`function() { this.click(); }`).
			WithObjectID(obj.ObjectID).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("script click: %w", err)
		}
		if exc != nil {
			return fmt.Errorf("script click: %s", exc.Text)
		}
		return nil
	}))
}
