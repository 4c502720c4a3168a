package periodic

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/medscribe/logger"
)

func newTask(interval time.Duration, fn Func) *Task {
	return New("test", interval, fn, WithLogger(logger.Nop()))
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestFirstRunIsImmediate(t *testing.T) {
	var runs atomic.Int32
	task := newTask(time.Hour, func(ctx context.Context) (func(), error) {
		runs.Add(1)
		return nil, nil
	})
	if err := task.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer task.Stop()

	eventually(t, func() bool { return runs.Load() == 1 })
}

func TestRunsOnInterval(t *testing.T) {
	var commits atomic.Int32
	task := newTask(5*time.Millisecond, func(ctx context.Context) (func(), error) {
		return func() { commits.Add(1) }, nil
	})
	task.Start(context.Background())
	eventually(t, func() bool { return commits.Load() >= 3 })
	task.Stop()

	after := commits.Load()
	time.Sleep(20 * time.Millisecond)
	if commits.Load() != after {
		t.Error("task kept committing after Stop")
	}
}

func TestSkipsTickWhileInFlight(t *testing.T) {
	var started atomic.Int32
	release := make(chan struct{})
	task := newTask(2*time.Millisecond, func(ctx context.Context) (func(), error) {
		started.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil, nil
	})
	task.Start(context.Background())
	defer task.Stop()

	eventually(t, func() bool { return started.Load() == 1 })
	time.Sleep(30 * time.Millisecond)
	if got := started.Load(); got != 1 {
		t.Fatalf("expected a single in-flight run, got %d", got)
	}
	close(release)
	eventually(t, func() bool { return started.Load() >= 2 })
}

func TestStopCancelsAndDiscardsResult(t *testing.T) {
	entered := make(chan struct{})
	var committed, canceled atomic.Bool
	task := newTask(time.Hour, func(ctx context.Context) (func(), error) {
		close(entered)
		<-ctx.Done()
		canceled.Store(true)
		return func() { committed.Store(true) }, nil
	})
	task.Start(context.Background())
	<-entered
	task.Stop()

	if !canceled.Load() {
		t.Error("expected run context to be canceled by Stop")
	}
	if committed.Load() {
		t.Error("result of a stopped run must be discarded")
	}
	if task.Running() {
		t.Error("task still running")
	}
}

func TestErrorsDoNotCommit(t *testing.T) {
	var runs atomic.Int32
	var committed atomic.Bool
	task := newTask(2*time.Millisecond, func(ctx context.Context) (func(), error) {
		runs.Add(1)
		return func() { committed.Store(true) }, errors.New("service down")
	})
	task.Start(context.Background())
	eventually(t, func() bool { return runs.Load() >= 2 })
	task.Stop()

	if committed.Load() {
		t.Error("commit applied despite error")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	task := newTask(time.Hour, func(ctx context.Context) (func(), error) { return nil, nil })
	if err := task.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := task.Start(context.Background()); !errors.Is(err, ErrRunning) {
		t.Errorf("second Start = %v", err)
	}
	task.Stop()
	task.Stop()
	if err := task.Start(context.Background()); err != nil {
		t.Errorf("restart failed: %v", err)
	}
	task.Stop()

	if err := newTask(0, nil).Start(context.Background()); err == nil {
		t.Error("expected error for zero interval")
	}
}

func TestParentCancelStopsLoop(t *testing.T) {
	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	task := newTask(2*time.Millisecond, func(ctx context.Context) (func(), error) {
		runs.Add(1)
		return nil, nil
	})
	task.Start(ctx)
	eventually(t, func() bool { return runs.Load() >= 1 })
	cancel()
	time.Sleep(10 * time.Millisecond)

	n := runs.Load()
	time.Sleep(20 * time.Millisecond)
	if runs.Load() != n {
		t.Error("loop kept running after parent cancel")
	}
	task.Stop()
}
