package resilience

import (
	"context"
	"time"
)

// SimpleRetry retries retryable errors with exponential backoff.
type SimpleRetry struct {
	maxRetries        int
	retryDelay        time.Duration
	backoffMultiplier float64
	classifier        ErrorClassifier
}

func NewSimpleRetry(maxRetries int, retryDelay time.Duration) *SimpleRetry {
	return &SimpleRetry{
		maxRetries:        maxRetries,
		retryDelay:        retryDelay,
		backoffMultiplier: 2.0,
		classifier:        NewErrorClassifier(),
	}
}

func (sr *SimpleRetry) Execute(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := sr.retryDelay

	for attempt := 0; attempt <= sr.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == sr.maxRetries || sr.classifier.ShouldStopProcessing(lastErr) {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * sr.backoffMultiplier)
	}

	return lastErr
}
