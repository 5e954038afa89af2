// Package runtimepolicy defines the user-supplied behavior the instance
// actor (package actor) consults to create jobs, execute their effects
// asynchronously, decide what to do with a failure, and fold transition
// outputs into accumulated state (spec component C3). Everything here is
// caller-injected: the actor never hard-codes domain behavior, the way the
// teacher's workflow runtime takes a Planner/ToolRegistry rather than
// hard-coding a single agent loop.
package runtimepolicy

import (
	"context"

	"github.com/bakerrun/petriflow/instance"
	"github.com/bakerrun/petriflow/petri"
)

// Reason explains why createJob rejected a FireTransition request.
type Reason string

const (
	ReasonNotEnabled        Reason = "not enough tokens to fire this transition"
	ReasonUnknownTransition Reason = "unknown transition"
	ReasonAlreadyReceived   Reason = "correlation id already received"
)

// CreateJob validates that transition is enabled under inst's marking,
// reserves (subtracts) the consumed tokens directly on inst's marking, and
// returns the allocated Job. It must reject with a Reason — never an error
// — when the transition cannot fire right now; rejection leaves inst
// unmodified.
//
// correlationID may be empty, meaning "no correlation id"; CreateJob does
// not itself check receivedCorrelationIds (the actor does, before calling
// CreateJob, per spec §4.5 rule 1) but implementations may use it to
// annotate the allocated Job.
//
// nextID allocates the job's id from the actor's single monotonic counter
// — the same counter step's allEnabledJobs enumeration draws from — so
// job ids stay unique across both allocation paths.
type CreateJob func(net *petri.PetriNet, inst *instance.Instance, transition petri.TransitionID, input any, correlationID string, nextID func() int64) (*instance.Job, Reason)

// JobExecutor runs a job's effect off the instance's single-threaded
// mailbox. It must not touch instance state directly, and it never decides
// a failure's ExceptionStrategy itself — that is the actor's job, via
// OnFailure — mirroring the teacher's convention that tool execution never
// reaches back into session state.
//
// A non-nil err means the interaction itself failed (e.g. a remote call
// returned an error); its message becomes the TransitionFailedEvent's
// Reason. Produced and output are meaningful only when err is nil. ctx
// cancellation should be honored where the underlying work supports it.
type JobExecutor interface {
	Execute(ctx context.Context, job *instance.Job) (produced petri.Marking, output any, err error)
}

// JobExecutorFunc adapts a plain function to JobExecutor.
type JobExecutorFunc func(ctx context.Context, job *instance.Job) (petri.Marking, any, error)

// Execute implements JobExecutor.
func (f JobExecutorFunc) Execute(ctx context.Context, job *instance.Job) (petri.Marking, any, error) {
	return f(ctx, job)
}

// OnFailure decides how a failed job should be handled next, given the
// job, its cumulative failure count (including this failure), and the
// failure reason. Called by the actor immediately after JobExecutor
// reports an interaction failure and before journaling the resulting
// TransitionFailedEvent, so the strategy it returns is what gets
// persisted — JobExecutor itself never chooses a strategy.
type OnFailure func(job *instance.Job, failureCount int, reason string) instance.ExceptionStrategy

// Policy bundles the three user-supplied behaviors plus the event-source
// reducer into the single value an actor.Actor is constructed with.
type Policy struct {
	CreateJob   CreateJob
	JobExecutor JobExecutor
	OnFailure   OnFailure
	EventSource instance.EventSource
}
