// Package instance defines the Instance snapshot, its Job/ExceptionState
// bookkeeping, the three journaled event variants, and the pure apply fold
// that rebuilds an Instance from its event log (spec component C2).
//
// Nothing in this package touches the persistence journal, the scheduler,
// or the executor: Apply performs no I/O and its result depends only on the
// Instance (which it mutates in place) and the event it is given, so recovery
// (replay) and live event application share one code path, guaranteeing
// spec invariant P4 (replay determinism).
package instance

import (
	"time"

	"github.com/bakerrun/petriflow/petri"
)

// EventType tags the closed set of event variants that make up the journal.
// Enumerate exhaustively; this sum type is never extended by embedding.
type EventType string

const (
	// EventInitialized is emitted exactly once, as the first event in a
	// journal, when the instance is created.
	EventInitialized EventType = "Initialized"
	// EventTransitionFired is emitted when a job completes successfully.
	EventTransitionFired EventType = "TransitionFired"
	// EventTransitionFailed is emitted when a job's interaction fails.
	EventTransitionFailed EventType = "TransitionFailed"
)

type (
	// Event is the interface every journaled event variant implements.
	// Subscribers and Apply use a type switch on the concrete type, never
	// on Type() alone, since Type() exists only for journal storage tags.
	Event interface {
		Type() EventType
	}

	// InitializedEvent seeds a fresh Instance. Valid only as the very first
	// event applied to an Instance (sequenceNr == 0).
	InitializedEvent struct {
		InitialMarking petri.Marking
		InitialState   any
	}

	// TransitionFiredEvent records a completed firing: the job is removed
	// from Jobs, Produced tokens are added to the marking, and Output is
	// folded into the accumulated state via the user-supplied EventSource
	// reducer.
	TransitionFiredEvent struct {
		JobID         int64
		Transition    petri.TransitionID
		CorrelationID string // empty means "no correlation id"
		StartTime     time.Time
		EndTime       time.Time
		Consumed      petri.Marking
		Produced      petri.Marking
		Output        any
	}

	// TransitionFailedEvent records a failed job attempt. Tokens in
	// Consumed remain reserved (they are not returned to the marking); the
	// job's ExceptionState is updated in place so the job survives in
	// Jobs until it either fires, is blocked indefinitely, or is
	// overridden.
	TransitionFailedEvent struct {
		JobID         int64
		Transition    petri.TransitionID
		CorrelationID string
		StartTime     time.Time
		EndTime       time.Time
		Consumed      petri.Marking
		Input         any
		Reason        string
		Strategy      ExceptionStrategy
	}
)

// Type implements Event.
func (InitializedEvent) Type() EventType { return EventInitialized }

// Type implements Event.
func (TransitionFiredEvent) Type() EventType { return EventTransitionFired }

// Type implements Event.
func (TransitionFailedEvent) Type() EventType { return EventTransitionFailed }
