package resilience

import (
	"context"
	"sync"
)

// SequentialExecutor runs one function at a time. Callers queue on the
// mutex; a caller whose context ends while waiting does not run.
type SequentialExecutor struct {
	mu sync.Mutex
}

func NewSequentialExecutor() *SequentialExecutor {
	return &SequentialExecutor{}
}

func (se *SequentialExecutor) Execute(ctx context.Context, fn func() error) error {
	se.mu.Lock()
	defer se.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}
