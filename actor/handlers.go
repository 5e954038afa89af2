package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/bakerrun/petriflow/instance"
	"github.com/bakerrun/petriflow/petri"
	"github.com/bakerrun/petriflow/telemetry"
)

func (a *Actor) handleInitialize(ctx context.Context, cmd Initialize, reply chan Reply) {
	if a.phase != phaseUninitialized {
		a.reply(reply, AlreadyInitialized{})
		return
	}
	event := instance.InitializedEvent{InitialMarking: cmd.InitialMarking, InitialState: cmd.InitialState}
	if _, err := a.journal.Persist(ctx, a.persistenceID, event); err != nil {
		a.opts.Logger.Error(ctx, "persist InitializedEvent failed", "processId", a.processID, "error", err)
		return
	}
	a.inst = instance.NewUninitialized()
	if _, err := instance.Apply(a.inst, event, a.policy.EventSource); err != nil {
		a.opts.Logger.Error(ctx, "apply InitializedEvent failed", "processId", a.processID, "error", err)
		return
	}
	a.phase = phaseRunning
	a.opts.Logger.Info(ctx, "instance initialized", "processId", a.processID, "sequenceNr", a.inst.SequenceNr)
	a.reply(reply, Initialized{SequenceNr: a.inst.SequenceNr})
	a.step(ctx)
}

func (a *Actor) handleFireTransition(ctx context.Context, cmd FireTransition, reply chan Reply) {
	switch a.phase {
	case phaseUninitialized:
		a.reply(reply, Uninitialized{ProcessID: a.processID})
		return
	case phaseWaitForDeleteConfirmation:
		a.reply(reply, InvalidCommand{Message: "actor is stopping"})
		return
	}
	if a.inst.HasReceivedCorrelationID(cmd.CorrelationID) {
		a.reply(reply, AlreadyReceived{CorrelationID: cmd.CorrelationID})
		return
	}
	job, reason := a.policy.CreateJob(a.net, a.inst, cmd.Transition, cmd.Input, cmd.CorrelationID, a.nextID)
	if reason != "" {
		a.reply(reply, TransitionNotEnabled{Transition: cmd.Transition, Reason: string(reason)})
		return
	}
	a.executeJob(ctx, job, reply)
}

func (a *Actor) handleGetState(reply chan Reply) {
	if a.phase == phaseUninitialized {
		a.reply(reply, Uninitialized{ProcessID: a.processID})
		return
	}
	snap := a.inst.Snapshot()
	a.reply(reply, InstanceState{
		SequenceNr: snap.SequenceNr,
		Marking:    snap.Marking,
		State:      snap.State,
		Jobs:       snap.Jobs,
	})
}

// handleOverride implements the admissibility table in spec §4.5.
func (a *Actor) handleOverride(ctx context.Context, cmd OverrideExceptionStrategy, reply chan Reply) {
	if a.phase != phaseRunning {
		a.reply(reply, Uninitialized{ProcessID: a.processID})
		return
	}
	job, ok := a.inst.Jobs[cmd.JobID]
	if !ok || job.Failure == nil {
		a.reply(reply, InvalidCommand{Message: fmt.Sprintf("job %d is not in a failed state", cmd.JobID)})
		return
	}
	current := job.Failure.Strategy.Kind

	switch cmd.NewStrategy.Kind {
	case instance.StrategyRetryWithDelay:
		if current != instance.StrategyBlockTransition {
			a.reply(reply, InvalidCommand{Message: "RetryWithDelay override only admissible from BlockTransition"})
			return
		}
		job.Failure.Strategy = cmd.NewStrategy
		a.opts.Logger.Info(ctx, "override accepted", "processId", a.processID, "jobId", job.ID, "transition", job.Transition, "newStrategy", "RetryWithDelay", "delay", cmd.NewStrategy.RetryDelay)
		if cmd.NewStrategy.RetryDelay <= 0 {
			a.reply(reply, TransitionFailed{JobID: job.ID, Transition: job.Transition, Reason: job.Failure.Reason, Strategy: cmd.NewStrategy})
			a.retryJob(ctx, job)
			return
		}
		a.armRetryTimer(ctx, job, cmd.NewStrategy.RetryDelay)
		a.reply(reply, TransitionFailed{JobID: job.ID, Transition: job.Transition, Reason: job.Failure.Reason, Strategy: cmd.NewStrategy})

	case instance.StrategyContinue:
		if current != instance.StrategyBlockTransition {
			a.reply(reply, InvalidCommand{Message: "Continue override only admissible from BlockTransition"})
			return
		}
		if !instance.ValidateProduced(a.net, job.Transition, cmd.NewStrategy.Produced) {
			a.reply(reply, InvalidCommand{Message: "Invalid marking provided"})
			return
		}
		a.fireSynthesized(ctx, job, cmd.NewStrategy.Produced, cmd.NewStrategy.Output, reply)

	case instance.StrategyBlockTransition:
		if current != instance.StrategyRetryWithDelay {
			a.reply(reply, InvalidCommand{Message: "BlockTransition override only admissible from RetryWithDelay"})
			return
		}
		timer, armed := a.retries[job.ID]
		if !armed || !timer.Cancel() {
			a.reply(reply, InvalidCommand{Message: "pending retry timer could not be cancelled"})
			return
		}
		delete(a.retries, job.ID)
		a.failSynthesized(ctx, job, job.Failure.Reason, instance.BlockTransition(), reply)

	default:
		a.reply(reply, InvalidCommand{Message: "unknown override strategy"})
	}
}

func (a *Actor) handleStop(ctx context.Context, cmd Stop) {
	a.opts.Logger.Info(ctx, "stopping actor", "processId", a.processID, "deleteHistory", cmd.DeleteHistory)
	for id, c := range a.retries {
		c.Cancel()
		delete(a.retries, id)
	}
	if cmd.DeleteHistory && a.inst != nil {
		a.phase = phaseWaitForDeleteConfirmation
		if err := a.journal.DeleteUpTo(ctx, a.persistenceID, a.inst.SequenceNr); err != nil {
			a.opts.Logger.Error(ctx, "delete history failed", "processId", a.processID, "error", err)
		}
	}
}

// handleIdleStop reports whether the instance has been idle since seq was
// armed (spec §4.5, message 8: "the sequence-number guard ensures the
// message is discarded if the instance advanced after the timer was
// armed"). It runs synchronously inside dispatch on the mailbox
// goroutine, so dispatch stops the Run loop itself when this returns
// true; there is no second message to deliver, since the mailbox goroutine
// evaluating this very call is the only thing that could ever receive one.
func (a *Actor) handleIdleStop(ctx context.Context, seq uint64) bool {
	if a.inst == nil || a.inst.SequenceNr != seq {
		return false
	}
	if len(a.inst.ActiveJobs()) > 0 {
		return false
	}
	a.opts.Logger.Info(ctx, "idle TTL reached, stopping", "processId", a.processID, "sequenceNr", seq)
	return true
}

// handleRetryJob re-dispatches a job whose retry timer fired, looking it
// up by id on the mailbox goroutine (spec §4.5: "Retries are armed in C4
// and re-enter C5 on fire"). A missing job means it already resolved
// (fired, was overridden, or the instance stopped) before the timer ran.
func (a *Actor) handleRetryJob(ctx context.Context, jobID int64) {
	job, ok := a.inst.Jobs[jobID]
	if !ok {
		return
	}
	a.retryJob(ctx, job)
}

// step invokes allEnabledJobs and dispatches every produced job to the
// executor (spec §4.5, "step(instance)").
func (a *Actor) step(ctx context.Context) {
	remaining, jobs := a.net.AllEnabledJobs(a.inst.Marking, a.nextID)
	a.inst.Marking = remaining
	if len(jobs) > 0 {
		a.opts.Logger.Debug(ctx, "step dispatching enabled jobs", "processId", a.processID, "count", len(jobs))
	}
	for _, pj := range jobs {
		job := &instance.Job{ID: pj.ID, Transition: pj.Transition, Consume: pj.Consume, StartTime: time.Now()}
		a.inst.Jobs[job.ID] = job
		a.executeJob(ctx, job, nil)
	}
	if len(jobs) == 0 && len(a.inst.ActiveJobs()) == 0 && a.opts.IdleTTL > 0 {
		seq := a.inst.SequenceNr
		a.opts.Logger.Debug(ctx, "arming idle timer", "processId", a.processID, "sequenceNr", seq, "ttl", a.opts.IdleTTL)
		a.eng.NewTimer(a.opts.IdleTTL, func() {
			select {
			case a.mailbox <- envelope{cmd: idleStopCommand{seq: seq}}:
			case <-a.done:
			}
		})
	}
}

// executeJob submits job's effect to the executor and arranges for the
// resulting event to flow back through the mailbox as an eventMsg (spec
// §4.5, "executeJob"). A JobExecutor failure is turned into a
// TransitionFailedEvent here, using policy.OnFailure to pick the strategy;
// err in the done callback is reserved for executor-machinery faults (e.g.
// a recovered panic), not ordinary interaction failures.
func (a *Actor) executeJob(ctx context.Context, job *instance.Job, sender chan Reply) {
	jobID := job.ID
	a.opts.Logger.Debug(ctx, "dispatching job", "processId", a.processID, "jobId", jobID, "transition", job.Transition)
	spanCtx, span := a.opts.Tracer.Start(ctx, "petriflow.transition.execute")
	span.AddEvent("dispatch", "transition", string(job.Transition), "jobId", jobID)
	a.spans[jobID] = span
	a.eng.ExecuteAsync(spanCtx, func(c context.Context) (instance.Event, error) {
		produced, output, err := a.policy.JobExecutor.Execute(c, job)
		endTime := time.Now()
		if err != nil {
			failureCount := 1
			if job.Failure != nil {
				failureCount = job.Failure.FailureCount + 1
			}
			strategy := a.policy.OnFailure(job, failureCount, err.Error())
			return instance.TransitionFailedEvent{
				JobID:         job.ID,
				Transition:    job.Transition,
				CorrelationID: job.CorrelationID,
				StartTime:     job.StartTime,
				EndTime:       endTime,
				Consumed:      job.Consume,
				Input:         job.Input,
				Reason:        err.Error(),
				Strategy:      strategy,
			}, nil
		}
		return instance.TransitionFiredEvent{
			JobID:         job.ID,
			Transition:    job.Transition,
			CorrelationID: job.CorrelationID,
			StartTime:     job.StartTime,
			EndTime:       endTime,
			Consumed:      job.Consume,
			Produced:      produced,
			Output:        output,
		}, nil
	}, func(ev instance.Event, err error) {
		select {
		case a.events <- eventMsg{jobID: jobID, event: ev, err: err, sender: sender}:
		case <-a.done:
		}
	})
}

func (a *Actor) handleEvent(ctx context.Context, em eventMsg) {
	if em.err != nil {
		a.handleExecutorError(ctx, em)
		return
	}
	switch ev := em.event.(type) {
	case instance.TransitionFiredEvent:
		a.applyFired(ctx, ev, em.sender)
	case instance.TransitionFailedEvent:
		a.applyFailed(ctx, ev, em.sender)
	default:
		a.opts.Logger.Error(ctx, "unexpected event type from executor", "type", fmt.Sprintf("%T", em.event))
	}
}

// handleExecutorError converts an unexpected executor-level error (not an
// interaction failure — executeJob already turns a JobExecutor error into a
// TransitionFailedEvent) into a synthetic BlockTransition failure,
// per spec §4.5 ("executeJob ... Exceptions thrown by the async machinery
// itself ... become a synthetic failure message").
func (a *Actor) handleExecutorError(ctx context.Context, em eventMsg) {
	job, ok := a.inst.Jobs[em.jobID]
	if !ok {
		return
	}
	a.opts.Logger.Error(ctx, "executor failed", "processId", a.processID, "jobId", em.jobID, "error", em.err)
	a.failSynthesized(ctx, job, em.err.Error(), instance.BlockTransition(), em.sender)
}

func (a *Actor) applyFired(ctx context.Context, ev instance.TransitionFiredEvent, sender chan Reply) {
	if _, err := a.journal.Persist(ctx, a.persistenceID, ev); err != nil {
		a.opts.Logger.Error(ctx, "persist TransitionFiredEvent failed", "processId", a.processID, "error", err)
		return
	}
	failureCount := 0
	if job := a.inst.Jobs[ev.JobID]; job != nil && job.Failure != nil {
		failureCount = job.Failure.FailureCount
	}
	if _, err := instance.Apply(a.inst, ev, a.policy.EventSource); err != nil {
		a.opts.Logger.Error(ctx, "apply TransitionFiredEvent failed", "processId", a.processID, "error", err)
		return
	}
	delete(a.retries, ev.JobID)
	a.endSpan(ev.JobID, nil)
	a.recordJobTelemetry(ctx, ev.Transition, "fired", ev.EndTime.Sub(ev.StartTime), failureCount)
	a.opts.Logger.Info(ctx, "transition fired", "processId", a.processID, "jobId", ev.JobID, "transition", ev.Transition)
	a.reply(sender, TransitionFired{
		JobID:         ev.JobID,
		Transition:    ev.Transition,
		CorrelationID: ev.CorrelationID,
		Consumed:      ev.Consumed,
		Produced:      ev.Produced,
		Output:        ev.Output,
	})
	a.step(ctx)
}

func (a *Actor) applyFailed(ctx context.Context, ev instance.TransitionFailedEvent, sender chan Reply) {
	if _, err := a.journal.Persist(ctx, a.persistenceID, ev); err != nil {
		a.opts.Logger.Error(ctx, "persist TransitionFailedEvent failed", "processId", a.processID, "error", err)
		return
	}
	if _, err := instance.Apply(a.inst, ev, a.policy.EventSource); err != nil {
		a.opts.Logger.Error(ctx, "apply TransitionFailedEvent failed", "processId", a.processID, "error", err)
		return
	}
	a.endSpan(ev.JobID, errors.New(ev.Reason))
	job := a.inst.Jobs[ev.JobID]
	failureCount := 0
	if job != nil && job.Failure != nil {
		failureCount = job.Failure.FailureCount
	}
	duration := ev.EndTime.Sub(ev.StartTime)
	switch ev.Strategy.Kind {
	case instance.StrategyRetryWithDelay:
		a.recordJobTelemetry(ctx, ev.Transition, "retried", duration, failureCount)
		a.opts.Logger.Info(ctx, "transition failed, retrying", "processId", a.processID, "jobId", ev.JobID, "transition", ev.Transition, "reason", ev.Reason, "delay", ev.Strategy.RetryDelay)
		a.reply(sender, TransitionFailed{JobID: ev.JobID, Transition: ev.Transition, Reason: ev.Reason, Strategy: ev.Strategy})
		if ev.Strategy.RetryDelay <= 0 {
			a.retryJob(ctx, job)
			return
		}
		a.armRetryTimer(ctx, job, ev.Strategy.RetryDelay)
	case instance.StrategyContinue:
		a.fireSynthesized(ctx, job, ev.Strategy.Produced, ev.Strategy.Output, sender)
	default: // BlockTransition and anything else terminal
		a.recordJobTelemetry(ctx, ev.Transition, "blocked", duration, failureCount)
		a.opts.Logger.Info(ctx, "transition blocked", "processId", a.processID, "jobId", ev.JobID, "transition", ev.Transition, "reason", ev.Reason)
		delete(a.retries, ev.JobID)
		a.reply(sender, TransitionFailed{JobID: ev.JobID, Transition: ev.Transition, Reason: ev.Reason, Strategy: ev.Strategy})
	}
}

// retryJob re-dispatches a job inline (delay == 0 path).
func (a *Actor) retryJob(ctx context.Context, job *instance.Job) {
	a.executeJob(ctx, job, nil)
}

// armRetryTimer arms a timer that re-enters the mailbox as a
// retryJobCommand when it fires, rather than touching a.inst.Jobs from the
// timer's own goroutine: a.inst.Jobs is mutated concurrently by the
// mailbox goroutine (delete on fire, insert in step, read in Snapshot),
// so looking it up anywhere but on the mailbox goroutine is a data race.
// handleRetryJob performs the lookup once the message is dispatched there.
func (a *Actor) armRetryTimer(ctx context.Context, job *instance.Job, delay time.Duration) {
	jobID := job.ID
	timer := a.eng.NewTimer(delay, func() {
		select {
		case a.mailbox <- envelope{cmd: retryJobCommand{jobID: jobID}}:
		case <-a.done:
		}
	})
	a.retries[jobID] = timer
}

// endSpan closes the span opened for jobID in executeJob, if one is still
// open (a Continue/Block override synthesizes an event for a job whose
// span already ended with its original failure, so a missing entry here
// is expected, not an error).
func (a *Actor) endSpan(jobID int64, err error) {
	span, ok := a.spans[jobID]
	if !ok {
		return
	}
	delete(a.spans, jobID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// recordJobTelemetry reports one job outcome's duration and failure count
// through Metrics and Logger, per SPEC_FULL.md's promise that the actor
// "emits spans around job execution and counters for fired/failed/blocked
// transitions."
func (a *Actor) recordJobTelemetry(ctx context.Context, transition petri.TransitionID, outcome string, duration time.Duration, failureCount int) {
	jt := telemetry.JobTelemetry{
		DurationMs:   duration.Milliseconds(),
		Transition:   string(transition),
		FailureCount: failureCount,
	}
	a.opts.Metrics.IncCounter("petriflow.transitions."+outcome, 1, "transition", jt.Transition)
	a.opts.Metrics.RecordTimer("petriflow.transition.duration", duration, "transition", jt.Transition, "outcome", outcome)
	a.opts.Logger.Debug(ctx, "job telemetry", "processId", a.processID, "transition", jt.Transition, "outcome", outcome, "durationMs", jt.DurationMs, "failureCount", jt.FailureCount)
}

// fireSynthesized journals a TransitionFiredEvent built from an operator-
// or policy-supplied Continue strategy, reusing the Running handler's
// event-application path (spec §4.5, "reusing path #6"; §9, open question
// on reusing the Running handler synchronously).
func (a *Actor) fireSynthesized(ctx context.Context, job *instance.Job, produced petri.Marking, output any, sender chan Reply) {
	ev := instance.TransitionFiredEvent{
		JobID:         job.ID,
		Transition:    job.Transition,
		CorrelationID: job.CorrelationID,
		Consumed:      job.Consume,
		Produced:      produced,
		Output:        output,
	}
	a.applyFired(ctx, ev, sender)
}

// failSynthesized journals a TransitionFailedEvent not produced by the
// executor (executor-error path, or a Block override cancelling a retry).
func (a *Actor) failSynthesized(ctx context.Context, job *instance.Job, reason string, strategy instance.ExceptionStrategy, sender chan Reply) {
	ev := instance.TransitionFailedEvent{
		JobID:      job.ID,
		Transition: job.Transition,
		Consumed:   job.Consume,
		Input:      job.Input,
		Reason:     reason,
		Strategy:   strategy,
	}
	a.applyFailed(ctx, ev, sender)
}
