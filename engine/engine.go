// Package engine abstracts the two asynchronous services the instance
// actor (package actor) depends on but never implements itself: a
// scheduler for deferred one-shot retry timers (spec §4.4) and an executor
// that runs job effects off the actor's single mailbox thread (spec §6,
// "Executor service"). Swappable implementations live in subpackages
// (engine/inmem today); production deployments could add a Redis- or
// cluster-backed scheduler without touching actor.
package engine

import (
	"context"
	"time"

	"github.com/bakerrun/petriflow/instance"
)

type (
	// Engine bundles the scheduler and executor contracts the actor
	// consumes. Implementations must be safe for concurrent use: multiple
	// instance actors typically share one Engine.
	Engine interface {
		// NewTimer arms a one-shot timer that invokes fn after delay elapses.
		// A delay of zero means the actor should run fn inline instead of
		// calling NewTimer at all (spec §4.4); callers on the actor's hot
		// path special-case zero to avoid an unnecessary goroutine hop, but
		// implementations must still behave correctly if asked to schedule
		// with a zero or negative delay.
		NewTimer(delay time.Duration, fn func()) Cancellable

		// ExecuteAsync submits an effectful unit of work to run off the
		// caller's goroutine, invoking done exactly once with the work's
		// result when it completes. Work must not touch instance state; it
		// communicates only through its return value, per spec §5 ("the
		// user-supplied interaction executor ... must not touch instance
		// state").
		ExecuteAsync(ctx context.Context, work func(context.Context) (instance.Event, error), done func(instance.Event, error))
	}

	// Cancellable is a handle to a scheduled timer. Cancel returns true iff
	// the timer's task had not yet started running, matching the
	// cancellation contract the override-to-Block path depends on (spec
	// §4.5, §5).
	Cancellable interface {
		Cancel() bool
	}
)
