// Package actor implements the instance actor (spec component C5): the
// single-threaded, mailbox-driven state machine that owns one Instance,
// gates every mutation behind a journal commit, dispatches enabled
// transitions to an asynchronous executor, and manages retry/override
// bookkeeping. Nothing outside this package ever reads or writes an
// Instance by reference; all interaction goes through the Command/Reply
// protocol defined here, mirroring the teacher's rule that workflow state
// is never exposed by reference, only through engine.WorkflowContext
// operations.
package actor

import (
	"github.com/bakerrun/petriflow/instance"
	"github.com/bakerrun/petriflow/petri"
)

// Command is the closed sum type of messages the actor's mailbox accepts
// (spec §6, "Command surface").
type Command interface{ isCommand() }

type (
	// Initialize seeds a fresh instance. Valid only against an
	// Uninitialized actor.
	Initialize struct {
		InitialMarking petri.Marking
		InitialState   any
	}

	// FireTransition requests that transition fire with input, optionally
	// tagged with a correlation id for at-most-once delivery.
	FireTransition struct {
		Transition    petri.TransitionID
		Input         any
		CorrelationID string
	}

	// GetState requests a read-only projection of the live instance.
	GetState struct{}

	// OverrideExceptionStrategy requests an operator-driven change to a
	// failed job's strategy, per the admissibility table in spec §4.5.
	OverrideExceptionStrategy struct {
		JobID       int64
		NewStrategy instance.ExceptionStrategy
	}

	// Stop requests actor shutdown. If DeleteHistory is set, the actor
	// first requests deletion of the journal up to its last sequence
	// number and waits for confirmation before terminating.
	Stop struct {
		DeleteHistory bool
	}
)

func (Initialize) isCommand()                {}
func (FireTransition) isCommand()            {}
func (GetState) isCommand()                  {}
func (OverrideExceptionStrategy) isCommand() {}
func (Stop) isCommand()                      {}

// Reply is the closed sum type of responses the actor sends back for a
// Command (spec §6).
type Reply interface{ isReply() }

type (
	// Initialized confirms a successful Initialize.
	Initialized struct {
		SequenceNr uint64
	}

	// AlreadyInitialized is returned for Initialize against a Running or
	// WaitForDeleteConfirmation actor.
	AlreadyInitialized struct{}

	// TransitionFired confirms a successful firing, synchronous (real) or
	// synthesized (via a Continue override).
	TransitionFired struct {
		JobID         int64
		Transition    petri.TransitionID
		CorrelationID string
		Consumed      petri.Marking
		Produced      petri.Marking
		Output        any
	}

	// TransitionFailed reports a failed firing attempt and the strategy
	// chosen for it.
	TransitionFailed struct {
		JobID      int64
		Transition petri.TransitionID
		Reason     string
		Strategy   instance.ExceptionStrategy
	}

	// TransitionNotEnabled is returned when FireTransition targets a
	// transition that cannot currently fire.
	TransitionNotEnabled struct {
		Transition petri.TransitionID
		Reason     string
	}

	// AlreadyReceived is returned when FireTransition's correlation id was
	// already recorded (spec P3/R2).
	AlreadyReceived struct {
		CorrelationID string
	}

	// Uninitialized is returned for any command besides Initialize/Stop
	// sent to an actor that has never been initialized.
	Uninitialized struct {
		ProcessID string
	}

	// InstanceState answers GetState.
	InstanceState struct {
		SequenceNr uint64
		Marking    petri.Marking
		State      any
		Jobs       map[int64]*instance.Job
	}

	// InvalidCommand is returned when OverrideExceptionStrategy violates
	// the admissibility table (spec §4.5, P6).
	InvalidCommand struct {
		Message string
	}
)

func (Initialized) isReply()            {}
func (AlreadyInitialized) isReply()     {}
func (TransitionFired) isReply()        {}
func (TransitionFailed) isReply()       {}
func (TransitionNotEnabled) isReply()   {}
func (AlreadyReceived) isReply()        {}
func (Uninitialized) isReply()          {}
func (InstanceState) isReply()          {}
func (InvalidCommand) isReply()         {}

// envelope pairs a Command with its reply channel and is what actually
// flows through the mailbox channel.
type envelope struct {
	cmd   Command
	reply chan Reply
}
