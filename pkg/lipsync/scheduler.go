package lipsync

import (
	"context"
	"sync"
	"time"
)

// Task is a handle to a repeating job started by Every.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Every runs fn once per interval on its own goroutine until ctx ends or the
// task is cancelled.
func Every(ctx context.Context, interval time.Duration, fn func(now time.Time)) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				fn(now)
			}
		}
	}()
	return t
}

// Cancel stops the task and waits for the current run to finish. Safe to
// call more than once.
func (t *Task) Cancel() {
	t.once.Do(t.cancel)
	<-t.done
}

// Done is closed once the task has stopped.
func (t *Task) Done() <-chan struct{} { return t.done }
