package resilience

import (
	"context"
	"errors"
	"strings"
)

// ErrorSeverity ranks how a caller should react to an error.
type ErrorSeverity int

const (
	ErrorSeverityTemporary ErrorSeverity = iota
	ErrorSeverityRetryable
	ErrorSeverityFatal
)

func (s ErrorSeverity) String() string {
	switch s {
	case ErrorSeverityRetryable:
		return "retryable"
	case ErrorSeverityFatal:
		return "fatal"
	default:
		return "temporary"
	}
}

type ErrorClassifier interface {
	ClassifyError(err error) ErrorSeverity
	ShouldStopProcessing(err error) bool
}

type defaultClassifier struct{}

func NewErrorClassifier() ErrorClassifier {
	return defaultClassifier{}
}

func (defaultClassifier) ClassifyError(err error) ErrorSeverity {
	if err == nil {
		return ErrorSeverityTemporary
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrCircuitOpen) {
		return ErrorSeverityFatal
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401"), strings.Contains(msg, "403"),
		strings.Contains(msg, "unauthorized"), strings.Contains(msg, "forbidden"),
		strings.Contains(msg, "password authentication failed"):
		return ErrorSeverityFatal
	case strings.Contains(msg, "status 400"), strings.Contains(msg, "status 404"):
		return ErrorSeverityFatal
	}
	return ErrorSeverityRetryable
}

func (c defaultClassifier) ShouldStopProcessing(err error) bool {
	return c.ClassifyError(err) == ErrorSeverityFatal
}
