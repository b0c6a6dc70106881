package logger

import (
	"fmt"
	"sync"
	"time"
)

// ProgressReporter logs throughput for a bounded loop, at most once per
// interval plus once on completion.
type ProgressReporter struct {
	mu          sync.Mutex
	total       int
	current     int
	description string
	interval    time.Duration
	startTime   time.Time
	lastReport  time.Time
	logger      *Logger
}

func NewProgressReporter(total int, description string) *ProgressReporter {
	now := time.Now()
	return &ProgressReporter{
		total:       total,
		description: description,
		interval:    5 * time.Second,
		startTime:   now,
		lastReport:  now,
		logger:      GetLogger().WithField("component", "progress"),
	}
}

// Step advances the counter by one.
func (pr *ProgressReporter) Step() {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	pr.current++
	if now := time.Now(); now.Sub(pr.lastReport) >= pr.interval || pr.current >= pr.total {
		pr.report()
		pr.lastReport = now
	}
}

// Current returns the number of completed steps.
func (pr *ProgressReporter) Current() int {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	return pr.current
}

func (pr *ProgressReporter) report() {
	percentage := 100.0
	if pr.total > 0 {
		percentage = float64(pr.current) / float64(pr.total) * 100
	}
	elapsed := time.Since(pr.startTime)

	pr.logger.WithFields(map[string]interface{}{
		"current": pr.current,
		"total":   pr.total,
		"elapsed": elapsed.Round(time.Millisecond).String(),
	}).Info(fmt.Sprintf("%s: %d/%d (%.1f%%)", pr.description, pr.current, pr.total, percentage))
}
