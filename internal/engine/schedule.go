package engine

import (
	"context"
	"time"
)

// Task is a handle to a function running on a fixed interval in its own
// goroutine. Runs never overlap; ticks that arrive while fn is still running
// are dropped.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Every starts calling fn every interval until the task is cancelled or
// parent is done. fn receives a context that is cancelled with the task.
func Every(parent context.Context, interval time.Duration, fn func(ctx context.Context)) *Task {
	ctx, cancel := context.WithCancel(parent)
	t := &Task{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
	return t
}

// Cancel stops the task and waits for an in-flight run to return.
// It is safe to call more than once and on a nil task. Must not be called
// from inside fn.
func (t *Task) Cancel() {
	if t == nil {
		return
	}
	t.cancel()
	<-t.done
}

// Done is closed once the task goroutine has exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}
