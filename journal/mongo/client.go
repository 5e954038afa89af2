// Package mongo implements a durable Journal backed by MongoDB, grounded
// on the teacher's runlog Mongo client: one document per event, an index
// on (persistence_id, seq), and an opaque-cursor-free API since the actor
// always replays a whole stream rather than paging it.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/bakerrun/petriflow/instance"
	"github.com/bakerrun/petriflow/journal"
)

type (
	// Options configures the Mongo-backed Journal.
	Options struct {
		Client     *mongodriver.Client
		Database   string
		Collection string
		Timeout    time.Duration
		Codec      journal.Codec // defaults to journal.JSONCodec{}
	}

	store struct {
		mongo   *mongodriver.Client
		coll    *mongodriver.Collection
		timeout time.Duration
		codec   journal.Codec
	}

	eventDocument struct {
		ID            bson.ObjectID `bson:"_id,omitempty"`
		EventID       string        `bson:"event_id"`
		PersistenceID string        `bson:"persistence_id"`
		SequenceNr    uint64        `bson:"seq"`
		EventType     string        `bson:"event_type"`
		Payload       []byte        `bson:"payload"`
		Timestamp     time.Time     `bson:"timestamp"`
	}
)

const (
	defaultCollection = "petriflow_events"
	defaultTimeout    = 5 * time.Second
)

// New returns a Journal backed by the provided MongoDB client, ensuring
// the (persistence_id, seq) index exists.
func New(opts Options) (journal.Journal, error) {
	if opts.Client == nil {
		return nil, errors.New("journal/mongo: mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("journal/mongo: database name is required")
	}
	collection := opts.Collection
	if collection == "" {
		collection = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	codec := opts.Codec
	if codec == nil {
		codec = journal.JSONCodec{}
	}

	coll := opts.Client.Database(opts.Database).Collection(collection)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := ensureIndexes(ctx, coll); err != nil {
		return nil, err
	}

	return &store{mongo: opts.Client, coll: coll, timeout: timeout, codec: codec}, nil
}

// Ping reports whether the underlying Mongo deployment is reachable, for
// health-check wiring.
func (s *store) Ping(ctx context.Context) error {
	return s.mongo.Ping(ctx, readpref.Primary())
}

func (s *store) Persist(ctx context.Context, id journal.PersistenceID, event instance.Event) (uint64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	seq, err := s.nextSequence(ctx, id)
	if err != nil {
		return 0, err
	}

	typ, payload, err := s.codec.Encode(event)
	if err != nil {
		return 0, err
	}

	doc := eventDocument{
		EventID:       uuid.NewString(),
		PersistenceID: string(id),
		SequenceNr:    seq,
		EventType:     string(typ),
		Payload:       payload,
		Timestamp:     time.Now().UTC(),
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return 0, fmt.Errorf("journal/mongo: persisting event for %q: %w", id, err)
	}
	return seq, nil
}

func (s *store) Replay(ctx context.Context, id journal.PersistenceID, fn func(journal.Record) error) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cur, err := s.coll.Find(ctx,
		bson.M{"persistence_id": string(id)},
		options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}),
	)
	if err != nil {
		return fmt.Errorf("journal/mongo: replaying %q: %w", id, err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var doc eventDocument
		if err := cur.Decode(&doc); err != nil {
			return fmt.Errorf("journal/mongo: decoding record for %q: %w", id, err)
		}
		event, err := s.codec.Decode(instance.EventType(doc.EventType), doc.Payload)
		if err != nil {
			return fmt.Errorf("journal/mongo: decoding event for %q at seq %d: %w", id, doc.SequenceNr, err)
		}
		if err := fn(journal.Record{EventID: doc.EventID, SequenceNr: doc.SequenceNr, Event: event}); err != nil {
			return err
		}
	}
	return cur.Err()
}

func (s *store) DeleteUpTo(ctx context.Context, id journal.PersistenceID, seq uint64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	filter := bson.M{
		"persistence_id": string(id),
		"seq":            bson.M{"$lte": seq},
	}
	_, err := s.coll.DeleteMany(ctx, filter)
	if err != nil {
		return fmt.Errorf("journal/mongo: deleting up to %d for %q: %w", seq, id, err)
	}
	return nil
}

// nextSequence returns one more than the highest SequenceNr currently
// stored for id, or 1 if id has no records yet.
func (s *store) nextSequence(ctx context.Context, id journal.PersistenceID) (uint64, error) {
	var doc eventDocument
	err := s.coll.FindOne(ctx,
		bson.M{"persistence_id": string(id)},
		options.FindOne().SetSort(bson.D{{Key: "seq", Value: -1}}),
	).Decode(&doc)
	switch {
	case errors.Is(err, mongodriver.ErrNoDocuments):
		return 1, nil
	case err != nil:
		return 0, fmt.Errorf("journal/mongo: resolving next sequence for %q: %w", id, err)
	default:
		return doc.SequenceNr + 1, nil
	}
}

func (s *store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func ensureIndexes(ctx context.Context, coll *mongodriver.Collection) error {
	index := mongodriver.IndexModel{
		Keys: bson.D{
			{Key: "persistence_id", Value: 1},
			{Key: "seq", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}
	_, err := coll.Indexes().CreateOne(ctx, index)
	return err
}
