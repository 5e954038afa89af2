package actor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bakerrun/petriflow/engine"
	"github.com/bakerrun/petriflow/instance"
	"github.com/bakerrun/petriflow/journal"
	"github.com/bakerrun/petriflow/petri"
	"github.com/bakerrun/petriflow/runtimepolicy"
	"github.com/bakerrun/petriflow/telemetry"
)

// phase is the actor's coarse lifecycle state (spec §4.5, "States").
type phase int

const (
	phaseUninitialized phase = iota
	phaseRunning
	phaseWaitForDeleteConfirmation
)

// Options configures an Actor's optional behaviors.
type Options struct {
	// IdleTTL, if non-zero, arms a self-stop timer whenever step finds no
	// enabled transitions and the instance has no active jobs. Zero means
	// the actor never idle-stops.
	IdleTTL time.Duration

	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Tracer  telemetry.Tracer

	// MailboxSize bounds the command channel's buffer. Zero means
	// unbuffered (strict rendezvous).
	MailboxSize int
}

// Actor is the single-threaded owner of one Instance's lifecycle. Create
// one with New, call Run in its own goroutine, and interact exclusively
// through Send.
type Actor struct {
	net           *petri.PetriNet
	persistenceID journal.PersistenceID
	processID     string
	journal       journal.Journal
	eng           engine.Engine
	policy        runtimepolicy.Policy
	opts          Options

	mailbox chan envelope
	events  chan eventMsg
	done    chan struct{}

	nextJobID int64

	phase         phase
	inst          *instance.Instance
	retries       map[int64]engine.Cancellable
	pendingSender map[int64]chan Reply
	spans         map[int64]telemetry.Span
}

// eventMsg is the actor's self-sent message carrying an executor result
// back onto the mailbox goroutine (spec §4.5, "Events received from the
// executor").
type eventMsg struct {
	jobID  int64
	event  instance.Event
	err    error
	sender chan Reply
}

// New constructs an Actor. The returned actor is in the Uninitialized
// state; call Recover first to resume from an existing journal, or send
// Initialize to start fresh.
func New(net *petri.PetriNet, processID string, j journal.Journal, eng engine.Engine, policy runtimepolicy.Policy, opts Options) *Actor {
	if opts.Logger == nil {
		opts.Logger = telemetry.NewNoopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.NewNoopMetrics()
	}
	if opts.Tracer == nil {
		opts.Tracer = telemetry.NewNoopTracer()
	}
	return &Actor{
		net:           net,
		persistenceID: journal.NewPersistenceID(net.Name(), processID),
		processID:     processID,
		journal:       j,
		eng:           eng,
		policy:        policy,
		opts:          opts,
		mailbox:       make(chan envelope, opts.MailboxSize),
		events:        make(chan eventMsg, opts.MailboxSize),
		done:          make(chan struct{}),
		retries:       make(map[int64]engine.Cancellable),
		pendingSender: make(map[int64]chan Reply),
		spans:         make(map[int64]telemetry.Span),
	}
}

// Send delivers cmd to the actor's mailbox and blocks for its reply. Stop
// never replies; Send returns nil immediately after enqueueing a Stop.
func (a *Actor) Send(ctx context.Context, cmd Command) (Reply, error) {
	if _, ok := cmd.(Stop); ok {
		select {
		case a.mailbox <- envelope{cmd: cmd}:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	reply := make(chan Reply, 1)
	select {
	case a.mailbox <- envelope{cmd: cmd, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-reply:
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-a.done:
		return nil, fmt.Errorf("actor: stopped before replying to %T", cmd)
	}
}

// Done is closed once the actor's Run loop returns.
func (a *Actor) Done() <-chan struct{} { return a.done }

// Run drives the actor's mailbox loop until a Stop is processed, the idle
// TTL stops the instance, or ctx is cancelled. Run is meant to be called in its own
// goroutine; exactly one Run call is valid per Actor.
func (a *Actor) Run(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case env := <-a.mailbox:
			if a.dispatch(ctx, env) {
				return
			}
		case em := <-a.events:
			a.handleEvent(ctx, em)
		case <-ctx.Done():
			return
		}
	}
}

func (a *Actor) dispatch(ctx context.Context, env envelope) (stop bool) {
	switch cmd := env.cmd.(type) {
	case Initialize:
		a.handleInitialize(ctx, cmd, env.reply)
	case FireTransition:
		a.handleFireTransition(ctx, cmd, env.reply)
	case GetState:
		a.handleGetState(env.reply)
	case OverrideExceptionStrategy:
		a.handleOverride(ctx, cmd, env.reply)
	case Stop:
		a.handleStop(ctx, cmd)
		return true
	case idleStopCommand:
		if a.handleIdleStop(ctx, cmd.seq) {
			a.handleStop(ctx, Stop{})
			return true
		}
	case retryJobCommand:
		a.handleRetryJob(ctx, cmd.jobID)
	default:
		a.reply(env.reply, InvalidCommand{Message: fmt.Sprintf("unknown command %T", cmd)})
	}
	return false
}

// idleStopCommand is the actor's self-sent message arming the idle-TTL
// shutdown check (spec §4.5, message 8). It flows through the same
// mailbox channel as externally-issued commands but is not part of the
// public Command sum type. The sequence number guards against a stale
// timer firing after the instance has since advanced. handleIdleStop runs
// directly inside dispatch on the mailbox goroutine, so dispatch itself
// stops the Run loop when it reports true instead of trying to re-enqueue
// a Stop onto the mailbox this very call is already draining.
type idleStopCommand struct {
	seq uint64
}

func (idleStopCommand) isCommand() {}

// retryJobCommand is the actor's self-sent message re-dispatching a job
// whose retry timer fired (spec §4.5, "Retries are armed in C4 and
// re-enter C5 on fire"). Flowing it through the mailbox, rather than
// touching a.inst.Jobs from the timer's own goroutine, keeps every Jobs
// access on the single mailbox goroutine.
type retryJobCommand struct {
	jobID int64
}

func (retryJobCommand) isCommand() {}

func (a *Actor) reply(ch chan Reply, r Reply) {
	if ch == nil {
		return
	}
	ch <- r
}

func (a *Actor) nextID() int64 {
	return atomic.AddInt64(&a.nextJobID, 1)
}
