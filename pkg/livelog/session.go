package livelog

import (
	"time"

	"trendpulse/pkg/logger"
)

// Sender is satisfied by *Hub.
type Sender interface {
	Send(sessionID string, ev Event)
}

// Session emits events for one session id and mirrors them to the process
// log. The zero value and a nil *Session are usable and only log.
type Session struct {
	id     string
	sender Sender
	log    *logger.Logger
	now    func() time.Time
}

func NewSession(sender Sender, sessionID string) *Session {
	return &Session{
		id:     sessionID,
		sender: sender,
		log:    logger.GetLogger().WithField("session_id", sessionID),
		now:    time.Now,
	}
}

func (s *Session) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

func (s *Session) Emit(level Level, category, message string, data map[string]interface{}) {
	if s == nil {
		return
	}
	log := s.log
	if log == nil {
		log = logger.GetLogger()
	}
	log.WithFields(data).WithField("category", category).Log(string(level), message)

	if s.sender == nil || s.id == "" {
		return
	}
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	s.sender.Send(s.id, Event{
		Timestamp: now().UTC(),
		Level:     level,
		Category:  category,
		Message:   message,
		Data:      data,
	})
}

func (s *Session) Info(category, message string, data map[string]interface{}) {
	s.Emit(LevelInfo, category, message, data)
}

func (s *Session) Warn(category, message string, data map[string]interface{}) {
	s.Emit(LevelWarn, category, message, data)
}

func (s *Session) Error(category, message string, data map[string]interface{}) {
	s.Emit(LevelError, category, message, data)
}

func (s *Session) Debug(category, message string, data map[string]interface{}) {
	s.Emit(LevelDebug, category, message, data)
}
