// Package journal provides the durable, append-only event log the
// instance actor persists every state mutation to before applying it
// in-memory (spec §6, "Persistence journal"). The journal is the
// canonical source of truth for recovery: an actor rebuilds its Instance
// purely by replaying a persistenceId's event stream through
// instance.Apply (spec invariant P4).
package journal

import (
	"context"
	"fmt"

	"github.com/bakerrun/petriflow/instance"
)

// PersistenceID identifies one instance's event stream, formatted the way
// spec §6 specifies: "process-{processType}-{processId}".
type PersistenceID string

// NewPersistenceID builds the canonical persistenceId for a process type
// and instance id.
func NewPersistenceID(processType, processID string) PersistenceID {
	return PersistenceID(fmt.Sprintf("process-%s-%s", processType, processID))
}

// Record pairs a journaled event with the sequence number it was assigned
// at commit time, as returned by Replay. EventID is a globally unique
// identifier minted by the Journal implementation at persist time (not by
// the actor), following the teacher's runID convention of stamping every
// durable record with a uuid so downstream consumers (metrics, dead-letter
// tooling) can reference one record unambiguously across replays.
type Record struct {
	EventID    string
	SequenceNr uint64
	Event      instance.Event
}

// Journal is the append-only log contract consumed by the instance actor.
// Implementations must serialize writes per PersistenceID: the actor
// relies on persist completing (or failing) before it applies the event or
// replies to the command that produced it (spec §4.5, "Persistence
// gating").
type Journal interface {
	// Persist appends event as the next entry for id and returns the
	// sequence number it was assigned. It must not return successfully
	// until the event is durably stored.
	Persist(ctx context.Context, id PersistenceID, event instance.Event) (seq uint64, err error)

	// Replay streams every persisted record for id, oldest first, invoking
	// fn for each. Replay returns once fn has been called for every
	// record or fn returns a non-nil error (which Replay then returns).
	Replay(ctx context.Context, id PersistenceID, fn func(Record) error) error

	// DeleteUpTo removes every record with SequenceNr <= seq from id's
	// stream. Used by the WaitForDeleteConfirmation state (spec §4.5,
	// Stop(deleteHistory=true)).
	DeleteUpTo(ctx context.Context, id PersistenceID, seq uint64) error
}
