// Package inmem provides an in-memory Engine implementation for tests,
// demos, and single-process deployments. It is not durable: timers and
// in-flight work are lost on process restart, which is acceptable because
// the instance actor always recovers retry timers from the journal on
// restart (spec §4.5, "Recovery").
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/bakerrun/petriflow/engine"
	"github.com/bakerrun/petriflow/instance"
)

type eng struct {
	wg sync.WaitGroup
}

// New returns a new in-memory Engine backed by goroutines and
// time.AfterFunc timers.
func New() engine.Engine {
	return &eng{}
}

type timer struct {
	t *time.Timer
	// fired latches true once the timer's callback has started running, so
	// Cancel can correctly report whether it prevented execution even in
	// the race between Stop and the callback starting.
	mu    sync.Mutex
	fired bool
}

func (e *eng) NewTimer(delay time.Duration, fn func()) engine.Cancellable {
	tm := &timer{}
	tm.t = time.AfterFunc(delay, func() {
		tm.mu.Lock()
		tm.fired = true
		tm.mu.Unlock()
		fn()
	})
	return tm
}

func (t *timer) Cancel() bool {
	stopped := t.t.Stop()
	t.mu.Lock()
	defer t.mu.Unlock()
	return stopped && !t.fired
}

func (e *eng) ExecuteAsync(ctx context.Context, work func(context.Context) (instance.Event, error), done func(instance.Event, error)) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ev, err := work(ctx)
		done(ev, err)
	}()
}
