// internal/common/tasks/dispatcher.go
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"loan-manager/internal/common/logger"
)

var ErrDispatcherClosed = errors.New("dispatcher is shut down")

// Task is a unit of background work. The context is owned by the
// dispatcher and is cancelled only when shutdown gives up waiting.
type Task func(ctx context.Context)

// Dispatcher runs tasks on their own goroutines, optionally capped at a
// fixed number of concurrent tasks. Excess tasks wait for a slot and are
// never dropped: a task still waiting when shutdown gives up runs without
// a slot on the cancelled context so it can resolve its own state.
type Dispatcher struct {
	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger logger.Logger

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher creates a dispatcher. maxConcurrent <= 0 means unbounded.
func NewDispatcher(maxConcurrent int, log logger.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		ctx:    ctx,
		cancel: cancel,
		logger: logger.ForComponent(log, "dispatcher"),
	}
	if maxConcurrent > 0 {
		d.sem = make(chan struct{}, maxConcurrent)
	}
	return d
}

// Go schedules task. It never blocks the caller.
func (d *Dispatcher) Go(name string, task Task) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		if d.sem != nil {
			select {
			case d.sem <- struct{}{}:
				defer func() { <-d.sem }()
			case <-d.ctx.Done():
				d.logger.Warn("task started without a slot at shutdown", map[string]interface{}{"task": name})
			}
		}

		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("task panicked", map[string]interface{}{
					"task":  name,
					"panic": fmt.Sprint(r),
				})
			}
		}()

		task(d.ctx)
	}()
	return nil
}

// Shutdown stops accepting tasks and waits for running ones. When ctx
// expires first the task context is cancelled and ctx.Err() is returned.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

// Sync runs tasks inline on the caller's goroutine. Used where
// deterministic ordering matters more than latency.
type Sync struct{}

func (Sync) Go(_ string, task Task) error {
	task(context.Background())
	return nil
}
