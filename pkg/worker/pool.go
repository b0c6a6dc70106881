// Package worker runs blocking jobs on background goroutines, off the
// request path, with per-task timeouts and panic recovery.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"trendpulse/pkg/logger"
)

var (
	ErrPoolStopped = errors.New("worker pool is stopped")
	ErrQueueFull   = errors.New("task queue is full")
)

// Task is a unit of work. Fn receives a context bound to the pool and the
// task timeout, not to the submitter.
type Task struct {
	ID      string
	Fn      func(ctx context.Context) error
	Timeout time.Duration
}

type Result struct {
	TaskID   string
	Error    error
	Duration time.Duration
}

type Config struct {
	Workers         int
	QueueSize       int
	TaskTimeout     time.Duration
	ShutdownTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Workers:         1,
		QueueSize:       16,
		TaskTimeout:     10 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
	}
}

type job struct {
	task Task
	done chan Result
}

// Stats are cumulative counters.
type Stats struct {
	Submitted uint64
	Completed uint64
	Failed    uint64
	Rejected  uint64
}

// Pool executes submitted tasks on a fixed number of workers.
type Pool struct {
	config Config
	queue  chan job
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	log    *logger.Logger

	mu      sync.RWMutex
	started bool
	stopped bool

	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	rejected  atomic.Uint64
}

func NewPool(config Config) *Pool {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 1
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		config: config,
		queue:  make(chan job, config.QueueSize),
		ctx:    ctx,
		cancel: cancel,
		log:    logger.GetLogger().WithField("component", "worker_pool"),
	}
}

func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return fmt.Errorf("worker pool already started")
	}
	p.started = true

	for i := 0; i < p.config.Workers; i++ {
		w := newWorker(i, p)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.run()
		}()
	}
	p.log.WithField("workers", p.config.Workers).Info("Worker pool started")
	return nil
}

// Submit queues task and returns a channel that receives its result once.
func (p *Pool) Submit(task Task) (<-chan Result, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return nil, ErrPoolStopped
	}
	if !p.started {
		return nil, fmt.Errorf("worker pool not started")
	}
	if task.Timeout == 0 {
		task.Timeout = p.config.TaskTimeout
	}

	j := job{task: task, done: make(chan Result, 1)}
	select {
	case p.queue <- j:
		p.submitted.Add(1)
		return j.done, nil
	default:
		p.rejected.Add(1)
		return nil, ErrQueueFull
	}
}

// Do submits task and waits for its result. If ctx ends first the task
// keeps running and ctx's error is returned.
func (p *Pool) Do(ctx context.Context, task Task) error {
	done, err := p.Submit(task)
	if err != nil {
		return err
	}
	select {
	case res := <-done:
		return res.Error
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop stops accepting work, cancels running tasks and waits for workers.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped || !p.started {
		p.stopped = true
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.log.Info("Worker pool stopped")
	case <-time.After(p.config.ShutdownTimeout):
		p.log.Warn("Worker pool shutdown timed out")
	}
}

func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
	}
}
