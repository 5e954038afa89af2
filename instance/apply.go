package instance

import (
	"errors"
	"fmt"

	"github.com/bakerrun/petriflow/petri"
)

// ErrAlreadyInitialized is returned by Apply when an InitializedEvent is
// applied to an instance whose SequenceNr is already non-zero.
var ErrAlreadyInitialized = errors.New("instance: already initialized")

// EventSource folds a transition's output into the accumulated user state.
// Supplied by the runtime policy layer (C3); Apply calls it exactly once per
// TransitionFiredEvent (including ones synthesized by a Continue override).
type EventSource func(state any, output any) any

// Apply is the single, pure fold used both for live event application and
// for journal replay: apply(instance, event) -> instance. It never fails for
// a structurally valid event (structural validation — e.g. the Continue
// marking check — happens before journaling, in the actor); the only error
// path here is an invariant violation that indicates corrupt history.
//
// Apply mutates and returns the same *Instance for convenience; callers
// that need the prior value must Snapshot first.
func Apply(i *Instance, event Event, reduce EventSource) (*Instance, error) {
	switch e := event.(type) {
	case InitializedEvent:
		return applyInitialized(i, e)
	case TransitionFiredEvent:
		return applyFired(i, e, reduce)
	case TransitionFailedEvent:
		return applyFailed(i, e)
	default:
		return nil, fmt.Errorf("instance: unknown event type %T", event)
	}
}

func applyInitialized(i *Instance, e InitializedEvent) (*Instance, error) {
	if i.SequenceNr != 0 {
		return nil, ErrAlreadyInitialized
	}
	i.Marking = e.InitialMarking.Clone()
	i.State = e.InitialState
	i.SequenceNr = 1
	return i, nil
}

// applyFired handles both the live path (the job was already created
// in-memory by createJob/step, so its consumed tokens are already reserved
// out of i.Marking) and the replay path (the job was never journaled as
// created, so this is the first time i.Marking must account for Consumed).
// The two paths are distinguished solely by whether e.JobID is already
// present in i.Jobs.
func applyFired(i *Instance, e TransitionFiredEvent, reduce EventSource) (*Instance, error) {
	if _, exists := i.Jobs[e.JobID]; !exists {
		if err := i.Marking.Subtract(e.Consumed); err != nil {
			return nil, fmt.Errorf("instance: replaying TransitionFiredEvent for job %d: %w", e.JobID, err)
		}
	}
	i.Marking.Merge(e.Produced.Clone())
	if reduce != nil {
		i.State = reduce(i.State, e.Output)
	}
	delete(i.Jobs, e.JobID)
	if e.CorrelationID != "" {
		i.ReceivedCorrelationIDs[e.CorrelationID] = struct{}{}
	}
	i.SequenceNr++
	return i, nil
}

func applyFailed(i *Instance, e TransitionFailedEvent) (*Instance, error) {
	job, exists := i.Jobs[e.JobID]
	if !exists {
		if err := i.Marking.Subtract(e.Consumed); err != nil {
			return nil, fmt.Errorf("instance: replaying TransitionFailedEvent for job %d: %w", e.JobID, err)
		}
		job = &Job{
			ID:            e.JobID,
			CorrelationID: e.CorrelationID,
			Transition:    e.Transition,
			Consume:       e.Consumed.Clone(),
			Input:         e.Input,
			StartTime:     e.StartTime,
		}
		i.Jobs[e.JobID] = job
	}
	job.Failure = &ExceptionState{
		FailureCount: job.Failure.nextCount(),
		FailureTime:  e.EndTime,
		Reason:       e.Reason,
		Strategy:     e.Strategy,
	}
	i.SequenceNr++
	return i, nil
}

func (s *ExceptionState) nextCount() int {
	if s == nil {
		return 1
	}
	return s.FailureCount + 1
}

// ValidateProduced reports whether a candidate produced marking (from a
// real firing or a Continue override) structurally matches net's declared
// output arcs for transition (spec invariant 5 / testable property P7).
func ValidateProduced(net *petri.PetriNet, transition petri.TransitionID, produced petri.Marking) bool {
	want := net.OutMarking(transition).Multiplicities()
	return produced.MatchesMultiplicities(want)
}
