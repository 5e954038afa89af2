package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/bakerrun/petriflow/instance"
	"github.com/bakerrun/petriflow/journal"
)

// Recover replays every journaled event for the actor's persistenceId
// through instance.Apply to rebuild its Instance, then re-arms retry
// timers for jobs that failed with RetryWithDelay before the crash (spec
// §4.5, "Recovery"). Recover must be called before Run, on an actor that
// has not yet received any command; it never journals new events.
//
// If no events exist for the persistenceId, Recover leaves the actor
// Uninitialized and returns nil: the caller is expected to send Initialize
// as usual.
func (a *Actor) Recover(ctx context.Context) error {
	inst := instance.NewUninitialized()
	var maxJobID int64
	count := 0
	err := a.journal.Replay(ctx, a.persistenceID, func(rec journal.Record) error {
		count++
		if _, err := instance.Apply(inst, rec.Event, a.policy.EventSource); err != nil {
			return fmt.Errorf("actor: replaying seq %d for %q: %w", rec.SequenceNr, a.persistenceID, err)
		}
		if id := jobIDOf(rec.Event); id > maxJobID {
			maxJobID = id
		}
		return nil
	})
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	for _, job := range inst.Jobs {
		if job.ID > maxJobID {
			maxJobID = job.ID
		}
	}

	a.inst = inst
	a.nextJobID = maxJobID
	a.phase = phaseRunning
	a.scheduleFailedJobsForRetry(ctx)
	a.step(ctx)
	return nil
}

// jobIDOf extracts the job id carried by a TransitionFired/FailedEvent, or
// 0 for an InitializedEvent which carries none.
func jobIDOf(event instance.Event) int64 {
	switch e := event.(type) {
	case instance.TransitionFiredEvent:
		return e.JobID
	case instance.TransitionFailedEvent:
		return e.JobID
	default:
		return 0
	}
}

// scheduleFailedJobsForRetry re-arms a timer for every job blocked on
// RetryWithDelay, accounting for time already elapsed since its last
// failure (spec §4.5: "newDelay = failureTime + delay - now; if newDelay
// <= 0 execute immediately, else arm a timer").
func (a *Actor) scheduleFailedJobsForRetry(ctx context.Context) {
	now := time.Now()
	for _, job := range a.inst.Jobs {
		if job.Failure == nil || job.Failure.Strategy.Kind != instance.StrategyRetryWithDelay {
			continue
		}
		deadline := job.Failure.FailureTime.Add(job.Failure.Strategy.RetryDelay)
		newDelay := deadline.Sub(now)
		if newDelay <= 0 {
			a.retryJob(ctx, job)
			continue
		}
		a.armRetryTimer(ctx, job, newDelay)
	}
}
