package utils

import (
	"context"
	"sync"

	goutils "go.viam.com/utils"
)

// StoppableWorkers is a collection of goroutines that share a context and can be stopped
// together.
type StoppableWorkers interface {
	Add(...func(context.Context))
	Stop()
	Context() context.Context
}

type stoppableWorkers struct {
	ctx    context.Context
	cancel context.CancelFunc

	// mu orders Add against Stop so no goroutine starts after Stop began waiting.
	mu      sync.Mutex
	running sync.WaitGroup
}

// NewStoppableWorkers starts each function on its own goroutine.
func NewStoppableWorkers(funcs ...func(context.Context)) StoppableWorkers {
	return NewStoppableWorkersWithContext(context.Background(), funcs...)
}

// NewStoppableWorkersWithContext is like NewStoppableWorkers, but the workers' context is derived
// from ctx.
func NewStoppableWorkersWithContext(ctx context.Context, funcs ...func(context.Context)) StoppableWorkers {
	sw := &stoppableWorkers{}
	sw.ctx, sw.cancel = context.WithCancel(ctx)
	sw.Add(funcs...)
	return sw
}

// Add starts more workers. It does nothing once Stop has been called.
func (sw *stoppableWorkers) Add(funcs ...func(context.Context)) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.ctx.Err() != nil {
		return
	}
	for _, f := range funcs {
		f := f
		sw.running.Add(1)
		goutils.PanicCapturingGo(func() {
			defer sw.running.Done()
			f(sw.ctx)
		})
	}
}

// Stop cancels the shared context and blocks until every worker returned. It may be called more
// than once.
func (sw *stoppableWorkers) Stop() {
	sw.mu.Lock()
	sw.cancel()
	sw.mu.Unlock()
	sw.running.Wait()
}

// Context returns the context handed to every worker.
func (sw *stoppableWorkers) Context() context.Context {
	return sw.ctx
}
