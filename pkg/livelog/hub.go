// Package livelog relays pipeline progress to per-session observers.
package livelog

import (
	"sync"
	"time"

	"trendpulse/pkg/logger"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Event categories.
const (
	CategoryAgent    = "AGENT"
	CategoryAnalysis = "ANALYSIS"
	CategorySearch   = "SEARCH"
	CategoryMatch    = "MATCH"
	CategoryResult   = "RESULT"
	CategoryError    = "ERROR"
	CategoryScrape   = "SCRAPE"
	CategoryStore    = "STORE"
	CategoryPipeline = "PIPELINE"
)

// Event is one progress record as written to an observer.
type Event struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     Level                  `json:"level"`
	Category  string                 `json:"category"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Conn is the write side of an observer channel.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

type observer struct {
	conn   Conn
	mu     sync.Mutex
	closed bool
}

// retire waits for an in-flight write and stops further writes to conn.
func (o *observer) retire() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}

// Hub maps session ids to at most one observer each. A newer Connect for
// the same id replaces and closes the previous observer.
type Hub struct {
	mu        sync.RWMutex
	observers map[string]*observer
	log       *logger.Logger
}

func NewHub() *Hub {
	return &Hub{
		observers: make(map[string]*observer),
		log:       logger.GetLogger().WithField("component", "livelog"),
	}
}

func (h *Hub) Connect(sessionID string, conn Conn) {
	h.mu.Lock()
	prev := h.observers[sessionID]
	h.observers[sessionID] = &observer{conn: conn}
	total := len(h.observers)
	h.mu.Unlock()

	if prev != nil {
		h.log.WithField("session_id", sessionID).Warn("Observer replaced by newer connection")
		prev.mu.Lock()
		prev.closed = true
		_ = prev.conn.Close()
		prev.mu.Unlock()
	}
	h.log.WithFields(map[string]interface{}{
		"session_id": sessionID,
		"observers":  total,
	}).Debug("Observer connected")
}

// Disconnect removes whatever observer is registered for sessionID. It
// returns once no write to that observer is in progress.
func (h *Hub) Disconnect(sessionID string) {
	h.mu.Lock()
	obs := h.observers[sessionID]
	delete(h.observers, sessionID)
	h.mu.Unlock()
	if obs != nil {
		obs.retire()
	}
}

// Release removes conn only if it is still the registered observer, so a
// replaced connection closing late cannot evict its successor. After
// Release returns the hub never touches conn again.
func (h *Hub) Release(sessionID string, conn Conn) {
	h.mu.Lock()
	obs, ok := h.observers[sessionID]
	if ok && obs.conn == conn {
		delete(h.observers, sessionID)
	} else {
		obs = nil
	}
	h.mu.Unlock()
	if obs != nil {
		obs.retire()
	}
}

// Send delivers ev to the session's observer. With no observer the event is
// dropped. A failed write disconnects the observer; Send never fails.
func (h *Hub) Send(sessionID string, ev Event) {
	if sessionID == "" {
		return
	}
	h.mu.RLock()
	obs := h.observers[sessionID]
	h.mu.RUnlock()
	if obs == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	obs.mu.Lock()
	if obs.closed {
		obs.mu.Unlock()
		return
	}
	err := obs.conn.WriteJSON(ev)
	obs.mu.Unlock()
	if err == nil {
		return
	}

	h.mu.Lock()
	if h.observers[sessionID] == obs {
		delete(h.observers, sessionID)
	}
	h.mu.Unlock()
	h.log.WithField("session_id", sessionID).WithError(err).Debug("Observer write failed, disconnected")
}

func (h *Hub) Connected(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.observers[sessionID]
	return ok
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}
