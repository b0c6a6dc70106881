package worker

import (
	"context"
	"fmt"
	"time"

	"trendpulse/pkg/logger"
)

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

type worker struct {
	id   int
	pool *Pool
	log  *logger.Logger
}

func newWorker(id int, pool *Pool) *worker {
	return &worker{id: id, pool: pool, log: pool.log.WithField("worker_id", id)}
}

func (w *worker) run() {
	for j := range w.pool.queue {
		j.done <- w.process(j.task)
	}
}

func (w *worker) process(task Task) Result {
	start := time.Now()
	ctx, cancel := context.WithTimeout(w.pool.ctx, task.Timeout)
	defer cancel()

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.WithFields(map[string]interface{}{
					"task_id": task.ID,
					"panic":   r,
				}).Error("Task panicked")
				err = &PanicError{Value: r}
			}
		}()
		err = task.Fn(ctx)
	}()

	duration := time.Since(start)
	fields := map[string]interface{}{
		"task_id":  task.ID,
		"duration": duration.String(),
	}
	if err != nil {
		w.pool.failed.Add(1)
		w.log.WithFields(fields).WithError(err).Warn("Task completed with error")
	} else {
		w.pool.completed.Add(1)
		w.log.WithFields(fields).Debug("Task completed")
	}
	return Result{TaskID: task.ID, Error: err, Duration: duration}
}
