// Package inmem provides an in-memory Journal implementation for tests,
// demos, and development. Nothing is durable across process restarts.
package inmem

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/bakerrun/petriflow/instance"
	"github.com/bakerrun/petriflow/journal"
)

type store struct {
	mu      sync.Mutex
	streams map[journal.PersistenceID][]journal.Record
}

// New returns an empty in-memory Journal.
func New() journal.Journal {
	return &store{streams: make(map[journal.PersistenceID][]journal.Record)}
}

// Persist appends event as the next record for id, assigning it the
// stream's current length + 1 as its sequence number.
func (s *store) Persist(_ context.Context, id journal.PersistenceID, event instance.Event) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := uint64(len(s.streams[id])) + 1
	s.streams[id] = append(s.streams[id], journal.Record{EventID: uuid.NewString(), SequenceNr: seq, Event: event})
	return seq, nil
}

// Replay streams a copy of id's records, oldest first, so callers
// iterating over fn cannot observe concurrent appends mid-replay.
func (s *store) Replay(_ context.Context, id journal.PersistenceID, fn func(journal.Record) error) error {
	s.mu.Lock()
	records := append([]journal.Record(nil), s.streams[id]...)
	s.mu.Unlock()
	for _, r := range records {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// DeleteUpTo drops every record with SequenceNr <= seq from id's stream.
func (s *store) DeleteUpTo(_ context.Context, id journal.PersistenceID, seq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.streams[id]
	kept := records[:0:0]
	for _, r := range records {
		if r.SequenceNr > seq {
			kept = append(kept, r)
		}
	}
	s.streams[id] = kept
	return nil
}
