// Package periodic runs a function on a fixed interval with at most one
// run in flight.
//
// A run does its I/O against a context that Stop cancels and hands back a
// commit function. The task applies the commit only if the run belongs to
// the current generation, so a result that arrives after Stop (or after a
// Stop/Start cycle) is dropped:
//
//	task := periodic.New("transcripts", 2*time.Second, func(ctx context.Context) (func(), error) {
//	    segs, err := client.Transcriptions(ctx)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return func() { mirror.Replace(segs) }, nil
//	})
//	task.Start(ctx)
//	defer task.Stop()
package periodic

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/medscribe/logger"
	"github.com/kbukum/medscribe/observability"
)

// ErrRunning is returned by Start when the task is already running.
var ErrRunning = errors.New("periodic: task already running")

// Func performs one cycle. A nil commit with a nil error is allowed.
type Func func(ctx context.Context) (commit func(), err error)

// Task is a cancellable periodic job.
type Task struct {
	name     string
	interval time.Duration
	fn       Func
	log      *logger.Logger
	metrics  *observability.Metrics

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool

	inFlight atomic.Bool
}

// Option configures a Task.
type Option func(*Task)

func WithLogger(l *logger.Logger) Option {
	return func(t *Task) { t.log = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(t *Task) { t.metrics = m }
}

// New creates a stopped task.
func New(name string, interval time.Duration, fn Func, opts ...Option) *Task {
	t := &Task{
		name:     name,
		interval: interval,
		fn:       fn,
		log:      logger.WithComponent("periodic"),
		metrics:  observability.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = t.log.WithFields(logger.Fields(logger.FieldOperation, name))
	return t
}

func (t *Task) Name() string { return t.name }

// Start runs the function immediately and then on every tick until Stop or
// until parent is done.
func (t *Task) Start(parent context.Context) error {
	if t.interval <= 0 {
		return errors.New("periodic: interval must be positive")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return ErrRunning
	}
	ctx, cancel := context.WithCancel(parent)
	t.cancel = cancel
	t.running = true
	t.gen++
	gen := t.gen

	t.wg.Add(1)
	go t.loop(ctx, gen)
	return nil
}

// Stop cancels any in-flight run, invalidates its result and waits for the
// task's goroutines to exit. Stopping a stopped task is a no-op.
func (t *Task) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	t.gen++
	t.cancel()
	t.mu.Unlock()

	t.wg.Wait()
}

// Running reports whether the task has been started and not stopped.
func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Task) loop(ctx context.Context, gen uint64) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.trigger(ctx, gen)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.trigger(ctx, gen)
		}
	}
}

func (t *Task) trigger(ctx context.Context, gen uint64) {
	if !t.inFlight.CompareAndSwap(false, true) {
		t.metrics.PollCycle(ctx, t.name, observability.OutcomeSkipped, 0)
		return
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer t.inFlight.Store(false)
		t.run(ctx, gen)
	}()
}

func (t *Task) run(ctx context.Context, gen uint64) {
	start := time.Now()
	commit, err := t.fn(ctx)
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() == nil {
			t.log.Debug("cycle failed", logger.Fields(logger.FieldError, err.Error()))
		}
		t.metrics.PollCycle(context.WithoutCancel(ctx), t.name, observability.OutcomeError, elapsed)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen || ctx.Err() != nil {
		t.metrics.PollCycle(context.WithoutCancel(ctx), t.name, observability.OutcomeSkipped, elapsed)
		return
	}
	if commit != nil {
		commit()
	}
	t.metrics.PollCycle(ctx, t.name, observability.OutcomeOK, elapsed)
}
