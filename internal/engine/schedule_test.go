package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestEveryRunsUntilCancelled(t *testing.T) {
	var runs atomic.Int32
	task := Every(context.Background(), 2*time.Millisecond, func(context.Context) {
		runs.Add(1)
	})

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("task ran %d times", runs.Load())
		}
		time.Sleep(time.Millisecond)
	}

	task.Cancel()
	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	if runs.Load() != after {
		t.Fatalf("task kept running after Cancel")
	}
	task.Cancel()
}

func TestCancelWaitsForRun(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool
	task := Every(context.Background(), time.Millisecond, func(ctx context.Context) {
		select {
		case <-started:
			return
		default:
		}
		close(started)
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		finished.Store(true)
	})
	<-started
	task.Cancel()
	if !finished.Load() {
		t.Fatalf("Cancel returned before the run finished")
	}
}

func TestCancelNilTask(t *testing.T) {
	var task *Task
	task.Cancel()
}
