// Package browser drives the trends page in a headless browser and finds
// controls on markup that changes without notice.
package browser

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"trendpulse/pkg/logger"
)

var ErrElementNotFound = errors.New("element not found")

type SelectorKind int

const (
	ByCSS SelectorKind = iota
	ByXPath
)

func (k SelectorKind) String() string {
	if k == ByXPath {
		return "xpath"
	}
	return "css"
}

// Strategy is one probe in a lookup cascade.
type Strategy struct {
	Kind     SelectorKind
	Selector string
}

func CSS(selector string) Strategy   { return Strategy{Kind: ByCSS, Selector: selector} }
func XPath(selector string) Strategy { return Strategy{Kind: ByXPath, Selector: selector} }

// Element is a located node that can be read and activated.
type Element interface {
	Text(ctx context.Context) (string, error)
	Attribute(name string) string
	Click(ctx context.Context) error
	ClickProgrammatic(ctx context.Context) error
}

// Page is what the locator needs from a browser tab.
type Page interface {
	// WaitInteractable waits up to timeout for the first node matching s
	// to be visible. It returns ErrElementNotFound or a context error if
	// none appears.
	WaitInteractable(ctx context.Context, s Strategy, timeout time.Duration) (Element, error)
	// Candidates returns every node currently matching a CSS selector.
	Candidates(ctx context.Context, css string) ([]Element, error)
}

// Target describes one control: probes tried in order, then a text scan
// over ScanSelector for any of Keywords.
type Target struct {
	Name         string
	Strategies   []Strategy
	ScanSelector string
	Keywords     []string
}

type scanField int

const (
	fieldText scanField = iota
	fieldAriaLabel
	fieldTitle
)

func (f scanField) String() string {
	switch f {
	case fieldAriaLabel:
		return "aria-label"
	case fieldTitle:
		return "title"
	default:
		return "text"
	}
}

// Locator evaluates targets against a page. Absence is reported as false,
// never as an error.
type Locator struct {
	page         Page
	probeTimeout time.Duration
	log          *logger.Logger
}

func NewLocator(page Page, probeTimeout time.Duration) *Locator {
	if probeTimeout <= 0 {
		probeTimeout = 3 * time.Second
	}
	return &Locator{
		page:         page,
		probeTimeout: probeTimeout,
		log:          logger.GetLogger().WithField("component", "locator"),
	}
}

// Find runs each strategy with its own bounded wait, then the fallback scan.
func (l *Locator) Find(ctx context.Context, target Target) (Element, bool) {
	log := l.log.WithField("target", target.Name)

	for i, s := range target.Strategies {
		if ctx.Err() != nil {
			return nil, false
		}
		el, err := l.page.WaitInteractable(ctx, s, l.probeTimeout)
		if err == nil && el != nil {
			log.WithFields(map[string]interface{}{
				"strategy": i,
				"kind":     s.Kind.String(),
				"selector": s.Selector,
			}).Info("Located element")
			return el, true
		}
		log.WithFields(map[string]interface{}{
			"strategy": i,
			"selector": s.Selector,
		}).Debug("Strategy did not match")
	}

	if target.ScanSelector == "" || len(target.Keywords) == 0 || ctx.Err() != nil {
		return nil, false
	}
	el, field, ok := l.scan(ctx, target)
	if ok {
		log.WithField("matched_on", field.String()).Info("Located element by scan")
		return el, true
	}
	log.Warn("Element not found")
	return nil, false
}

// scan checks every candidate's visible text first, then aria-label, then
// title, using case-insensitive substring matching.
func (l *Locator) scan(ctx context.Context, target Target) (Element, scanField, bool) {
	candidates, err := l.page.Candidates(ctx, target.ScanSelector)
	if err != nil || len(candidates) == 0 {
		return nil, 0, false
	}

	fold := cases.Fold()
	keywords := make([]string, 0, len(target.Keywords))
	for _, kw := range target.Keywords {
		keywords = append(keywords, fold.String(kw))
	}
	matches := func(s string) bool {
		s = fold.String(s)
		for _, kw := range keywords {
			if strings.Contains(s, kw) {
				return true
			}
		}
		return false
	}

	// Text reads share one deadline; candidates not read in time fall
	// through to the attribute passes.
	textCtx, cancel := context.WithTimeout(ctx, l.probeTimeout)
	defer cancel()
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		if textCtx.Err() != nil {
			l.log.WithField("read", i).WithField("candidates", len(candidates)).Debug("Scan text budget exhausted")
			break
		}
		if t, err := c.Text(textCtx); err == nil {
			texts[i] = t
		}
	}

	for _, field := range []scanField{fieldText, fieldAriaLabel, fieldTitle} {
		for i, c := range candidates {
			var value string
			switch field {
			case fieldText:
				value = texts[i]
			case fieldAriaLabel:
				value = c.Attribute("aria-label")
			case fieldTitle:
				value = c.Attribute("title")
			}
			if value != "" && matches(value) {
				return c, field, true
			}
		}
	}
	return nil, 0, false
}

// Activate clicks el, falling back to a script click when the direct
// click is rejected.
func Activate(ctx context.Context, el Element) (programmatic bool, err error) {
	if err := el.Click(ctx); err == nil {
		return false, nil
	} else if ctx.Err() != nil {
		return false, err
	}
	if err := el.ClickProgrammatic(ctx); err != nil {
		return true, err
	}
	return true, nil
}
