package browser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type fakeElement struct {
	text      string
	attrs     map[string]string
	clickErr  error
	onClick   func()
	clicks    int
	jsClicks  int
	textCalls int
	textDelay time.Duration
}

func (e *fakeElement) Text(ctx context.Context) (string, error) {
	e.textCalls++
	if e.textDelay > 0 {
		select {
		case <-time.After(e.textDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return e.text, nil
}

func (e *fakeElement) Attribute(name string) string { return e.attrs[name] }

func (e *fakeElement) Click(ctx context.Context) error {
	e.clicks++
	if e.clickErr != nil {
		return e.clickErr
	}
	if e.onClick != nil {
		e.onClick()
	}
	return nil
}

func (e *fakeElement) ClickProgrammatic(ctx context.Context) error {
	e.jsClicks++
	if e.onClick != nil {
		e.onClick()
	}
	return nil
}

type fakeSession struct {
	mu          sync.Mutex
	bySelector  map[string]*fakeElement
	candidates  map[string][]Element
	probed      []string
	downloadDir string
	navErr      error
	closed      bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		bySelector: make(map[string]*fakeElement),
		candidates: make(map[string][]Element),
	}
}

func (s *fakeSession) WaitInteractable(ctx context.Context, st Strategy, timeout time.Duration) (Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probed = append(s.probed, st.Selector)
	if el, ok := s.bySelector[st.Selector]; ok {
		return el, nil
	}
	return nil, ErrElementNotFound
}

func (s *fakeSession) Candidates(ctx context.Context, css string) ([]Element, error) {
	return s.candidates[css], nil
}

func (s *fakeSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	return s.navErr
}

func (s *fakeSession) WaitReady(ctx context.Context, css string, timeout time.Duration) error {
	return nil
}

func (s *fakeSession) SetDownloadDir(ctx context.Context, dir string) error {
	s.downloadDir = dir
	return nil
}

func (s *fakeSession) Close() { s.closed = true }

// writeDownload returns a click hook that drops a CSV into the session's
// download directory.
func (s *fakeSession) writeDownload(name string) func() {
	return func() {
		_ = os.WriteFile(filepath.Join(s.downloadDir, name), []byte("Trends,Started\nDune,2024-03-01\n"), 0o644)
	}
}

type fakeLauncher struct {
	session *fakeSession
	err     error
}

func (l *fakeLauncher) Launch(ctx context.Context) (Session, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.session, nil
}

var errIntercepted = errors.New("element click intercepted")
