package instance

import (
	"time"

	"github.com/bakerrun/petriflow/petri"
)

// StrategyKind is the closed set of failure-handling strategies a
// TransitionFailedEvent (or an operator override) can carry.
type StrategyKind string

const (
	// StrategyBlockTransition leaves the job in Jobs indefinitely until an
	// operator overrides it.
	StrategyBlockTransition StrategyKind = "BlockTransition"
	// StrategyRetryWithDelay schedules the job to re-execute after a delay.
	StrategyRetryWithDelay StrategyKind = "RetryWithDelay"
	// StrategyContinue synthesizes a successful firing in place of the
	// failure, using operator- or policy-supplied produced tokens/output.
	StrategyContinue StrategyKind = "Continue"
)

// ExceptionStrategy is the closed sum type describing how a failed job
// should be handled next. Exactly one of the Kind-specific fields is
// meaningful for a given Kind.
type ExceptionStrategy struct {
	Kind StrategyKind

	// RetryDelay is meaningful when Kind == StrategyRetryWithDelay. A delay
	// of 0 means "execute immediately without scheduling a timer".
	RetryDelay time.Duration

	// Produced and Output are meaningful when Kind == StrategyContinue:
	// Produced must structurally match outMarking(transition) (spec
	// invariant 5 / P7) and Output is folded into state exactly as a
	// genuine TransitionFiredEvent.Output would be.
	Produced petri.Marking
	Output   any
}

// BlockTransition returns the strategy that leaves a job blocked.
func BlockTransition() ExceptionStrategy {
	return ExceptionStrategy{Kind: StrategyBlockTransition}
}

// RetryWithDelay returns the strategy that re-executes a job after delay.
func RetryWithDelay(delay time.Duration) ExceptionStrategy {
	return ExceptionStrategy{Kind: StrategyRetryWithDelay, RetryDelay: delay}
}

// Continue returns the strategy that synthesizes a successful firing.
func Continue(produced petri.Marking, output any) ExceptionStrategy {
	return ExceptionStrategy{Kind: StrategyContinue, Produced: produced, Output: output}
}

// ExceptionState records the outcome of the most recent failed attempt for
// a job, plus the strategy chosen in response.
type ExceptionState struct {
	FailureCount int
	FailureTime  time.Time
	Reason       string
	Strategy     ExceptionStrategy
}

// Job is an in-flight or failed-blocked firing attempt, with the tokens it
// reserved from the marking when it was created.
type Job struct {
	ID            int64
	CorrelationID string // empty means "no correlation id"
	Transition    petri.TransitionID
	Consume       petri.Marking
	Input         any
	StartTime     time.Time
	Failure       *ExceptionState
}

// Active reports whether j should still be considered for retry/dispatch:
// true when it has never failed, or when its most recent failure strategy
// is RetryWithDelay.
func (j *Job) Active() bool {
	return j.Failure == nil || j.Failure.Strategy.Kind == StrategyRetryWithDelay
}

// Blocked reports whether j is terminally blocked pending an operator
// override.
func (j *Job) Blocked() bool {
	return j.Failure != nil && j.Failure.Strategy.Kind == StrategyBlockTransition
}

// Clone returns a deep-enough copy of j suitable for a read-only snapshot
// (GetState); Marking and ExceptionState are copied by value/clone so the
// caller cannot mutate the live instance through the returned Job.
func (j *Job) Clone() *Job {
	cp := *j
	cp.Consume = j.Consume.Clone()
	if j.Failure != nil {
		f := *j.Failure
		cp.Failure = &f
	}
	return &cp
}

// Instance is the mutable-over-time snapshot the actor owns. It is built
// exclusively by folding Events through Apply; nothing outside this package
// should construct one directly except via NewUninitialized+Apply.
type Instance struct {
	SequenceNr             uint64
	Marking                petri.Marking
	State                  any
	Jobs                   map[int64]*Job
	ReceivedCorrelationIDs map[string]struct{}
}

// NewUninitialized returns the zero Instance an actor starts from before
// its first InitializedEvent is applied.
func NewUninitialized() *Instance {
	return &Instance{
		Marking:                petri.NewMarking(),
		Jobs:                   make(map[int64]*Job),
		ReceivedCorrelationIDs: make(map[string]struct{}),
	}
}

// HasReceivedCorrelationID reports whether id has already been recorded by
// a previously applied TransitionFiredEvent. Empty ids are never
// "received" (spec: empty correlationId means no correlation id).
func (i *Instance) HasReceivedCorrelationID(id string) bool {
	if id == "" {
		return false
	}
	_, ok := i.ReceivedCorrelationIDs[id]
	return ok
}

// ActiveJobs returns the subset of Jobs considered active (spec §3).
func (i *Instance) ActiveJobs() []*Job {
	var out []*Job
	for _, j := range i.Jobs {
		if j.Active() {
			out = append(out, j)
		}
	}
	return out
}

// Snapshot is a read-only, independent copy of Instance state, returned by
// GetState. Mutating the returned value never affects the live instance.
type Snapshot struct {
	SequenceNr uint64
	Marking    petri.Marking
	State      any
	Jobs       map[int64]*Job
}

// Snapshot returns a deep copy of the instance's externally visible state.
func (i *Instance) Snapshot() Snapshot {
	jobs := make(map[int64]*Job, len(i.Jobs))
	for id, j := range i.Jobs {
		jobs[id] = j.Clone()
	}
	return Snapshot{
		SequenceNr: i.SequenceNr,
		Marking:    i.Marking.Clone(),
		State:      i.State,
		Jobs:       jobs,
	}
}
