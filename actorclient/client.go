// Package actorclient provides a typed wrapper over actor.Actor.Send,
// grounded on the teacher's AgentClient (runtime/agent/runtime/client.go):
// a small interface binding request/reply shapes to named methods so
// callers never construct Command/Reply envelopes or type-switch on Reply
// by hand.
package actorclient

import (
	"context"
	"fmt"

	"github.com/bakerrun/petriflow/actor"
	"github.com/bakerrun/petriflow/instance"
	"github.com/bakerrun/petriflow/petri"
)

// Client is a typed front-end for one actor.Actor.
type Client struct {
	actor *actor.Actor
}

// New returns a Client bound to a.
func New(a *actor.Actor) *Client {
	return &Client{actor: a}
}

// Initialize seeds the instance with initialMarking/initialState. Returns
// the assigned sequence number, or an error if the instance was already
// initialized.
func (c *Client) Initialize(ctx context.Context, initialMarking petri.Marking, initialState any) (uint64, error) {
	reply, err := c.actor.Send(ctx, actor.Initialize{InitialMarking: initialMarking, InitialState: initialState})
	if err != nil {
		return 0, err
	}
	switch r := reply.(type) {
	case actor.Initialized:
		return r.SequenceNr, nil
	case actor.AlreadyInitialized:
		return 0, fmt.Errorf("actorclient: already initialized")
	default:
		return 0, fmt.Errorf("actorclient: unexpected reply %T", reply)
	}
}

// FireResult is the outcome of a FireTransition call, normalizing the
// three terminal reply shapes (fired, failed, rejected) into one struct so
// callers can branch on NotEnabled/AlreadyReceived without a type switch.
type FireResult struct {
	Fired        *actor.TransitionFired
	Failed       *actor.TransitionFailed
	NotEnabled   *actor.TransitionNotEnabled
	AlreadyFired bool // correlation id already received
}

// FireTransition requests that transition fire with input, optionally
// tagged with a correlation id for at-most-once delivery (spec §4.5 rule
// 1). Blocks until the initial attempt is journaled and replied to, per
// the "FireTransition should only return once ... persisted" rule in
// spec §9.
func (c *Client) FireTransition(ctx context.Context, transition petri.TransitionID, input any, correlationID string) (FireResult, error) {
	reply, err := c.actor.Send(ctx, actor.FireTransition{Transition: transition, Input: input, CorrelationID: correlationID})
	if err != nil {
		return FireResult{}, err
	}
	switch r := reply.(type) {
	case actor.TransitionFired:
		return FireResult{Fired: &r}, nil
	case actor.TransitionFailed:
		return FireResult{Failed: &r}, nil
	case actor.TransitionNotEnabled:
		return FireResult{NotEnabled: &r}, nil
	case actor.AlreadyReceived:
		return FireResult{AlreadyFired: true}, nil
	case actor.Uninitialized:
		return FireResult{}, fmt.Errorf("actorclient: instance %q is uninitialized", r.ProcessID)
	default:
		return FireResult{}, fmt.Errorf("actorclient: unexpected reply %T", reply)
	}
}

// GetState returns a read-only projection of the live instance.
func (c *Client) GetState(ctx context.Context) (actor.InstanceState, error) {
	reply, err := c.actor.Send(ctx, actor.GetState{})
	if err != nil {
		return actor.InstanceState{}, err
	}
	switch r := reply.(type) {
	case actor.InstanceState:
		return r, nil
	case actor.Uninitialized:
		return actor.InstanceState{}, fmt.Errorf("actorclient: instance %q is uninitialized", r.ProcessID)
	default:
		return actor.InstanceState{}, fmt.Errorf("actorclient: unexpected reply %T", reply)
	}
}

// Override requests an operator-driven change to jobID's failure
// strategy, per the admissibility table in spec §4.5.
func (c *Client) Override(ctx context.Context, jobID int64, newStrategy instance.ExceptionStrategy) (FireResult, error) {
	reply, err := c.actor.Send(ctx, actor.OverrideExceptionStrategy{JobID: jobID, NewStrategy: newStrategy})
	if err != nil {
		return FireResult{}, err
	}
	switch r := reply.(type) {
	case actor.TransitionFired:
		return FireResult{Fired: &r}, nil
	case actor.TransitionFailed:
		return FireResult{Failed: &r}, nil
	case actor.InvalidCommand:
		return FireResult{}, fmt.Errorf("actorclient: invalid override: %s", r.Message)
	default:
		return FireResult{}, fmt.Errorf("actorclient: unexpected reply %T", reply)
	}
}

// Stop requests actor shutdown; deleteHistory additionally requests
// journal truncation up to the instance's last sequence number.
func (c *Client) Stop(ctx context.Context, deleteHistory bool) error {
	_, err := c.actor.Send(ctx, actor.Stop{DeleteHistory: deleteHistory})
	return err
}
