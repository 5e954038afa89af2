package actor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bakerrun/petriflow/actor"
	"github.com/bakerrun/petriflow/engine/inmem"
	"github.com/bakerrun/petriflow/instance"
	journalinmem "github.com/bakerrun/petriflow/journal/inmem"
	"github.com/bakerrun/petriflow/petri"
	"github.com/bakerrun/petriflow/runtimepolicy"
)

// R1/P4: replaying a journal and asking GetState reproduces the same
// marking, state, and jobs snapshot a fresh actor reached live.
func TestRecoverReplaysToEquivalentState(t *testing.T) {
	net := abNet(t)
	j := journalinmem.New()
	policy := runtimepolicy.Policy{
		CreateJob:   runtimepolicy.DefaultCreateJob(),
		JobExecutor: runtimepolicy.JobExecutorFunc(func(_ context.Context, job *instance.Job) (petri.Marking, any, error) { return net.OutMarking(job.Transition), "done", nil }),
		OnFailure:   runtimepolicy.AlwaysBlock(),
		EventSource: func(_ any, output any) any { return output },
	}

	eng1 := inmem.New()
	a1 := actor.New(net, "p1", j, eng1, policy, actor.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	go a1.Run(ctx)

	send(t, a1, actor.Initialize{InitialMarking: initMarking("1")})
	fired := send(t, a1, actor.FireTransition{Transition: "t", CorrelationID: "x"}).(actor.TransitionFired)
	require.Equal(t, petri.TransitionID("t"), fired.Transition)
	liveState := send(t, a1, actor.GetState{}).(actor.InstanceState)
	cancel()
	<-a1.Done()

	eng2 := inmem.New()
	a2 := actor.New(net, "p1", j, eng2, policy, actor.Options{})
	require.NoError(t, a2.Recover(context.Background()))
	ctx2, cancel2 := context.WithCancel(context.Background())
	t.Cleanup(cancel2)
	go a2.Run(ctx2)

	recoveredState := send(t, a2, actor.GetState{}).(actor.InstanceState)
	assert.Equal(t, liveState.SequenceNr, recoveredState.SequenceNr)
	assert.True(t, liveState.Marking.Equal(recoveredState.Marking))
	assert.Equal(t, liveState.State, recoveredState.State)
	assert.Len(t, recoveredState.Jobs, 0)
}

// R1: Initialize followed by a replay-based recovery with no further
// commands reproduces the same state as the freshly initialized instance.
func TestRecoverAfterInitializeOnlyMatchesLiveInstance(t *testing.T) {
	net := abNet(t)
	j := journalinmem.New()
	policy := runtimepolicy.Policy{
		CreateJob:   runtimepolicy.DefaultCreateJob(),
		JobExecutor: runtimepolicy.JobExecutorFunc(func(context.Context, *instance.Job) (petri.Marking, any, error) { return petri.Marking{}, nil, nil }),
		OnFailure:   runtimepolicy.AlwaysBlock(),
		EventSource: func(s, _ any) any { return s },
	}

	eng1 := inmem.New()
	a1 := actor.New(net, "p2", j, eng1, policy, actor.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	go a1.Run(ctx)
	send(t, a1, actor.Initialize{InitialMarking: initMarking("1"), InitialState: "seed"})
	liveState := send(t, a1, actor.GetState{}).(actor.InstanceState)
	cancel()
	<-a1.Done()

	eng2 := inmem.New()
	a2 := actor.New(net, "p2", j, eng2, policy, actor.Options{})
	require.NoError(t, a2.Recover(context.Background()))
	ctx2, cancel2 := context.WithCancel(context.Background())
	t.Cleanup(cancel2)
	go a2.Run(ctx2)

	recoveredState := send(t, a2, actor.GetState{}).(actor.InstanceState)
	assert.Equal(t, liveState, recoveredState)
}

// Recovery re-arms a RetryWithDelay job's timer accounting for elapsed
// time, firing it without any new FireTransition command.
func TestRecoverReArmsRetryTimer(t *testing.T) {
	net := abNet(t)
	j := journalinmem.New()
	calls := 0
	policy := runtimepolicy.Policy{
		CreateJob: runtimepolicy.DefaultCreateJob(),
		JobExecutor: runtimepolicy.JobExecutorFunc(func(_ context.Context, job *instance.Job) (petri.Marking, any, error) {
			calls++
			if calls == 1 {
				return petri.Marking{}, nil, errors.New("transient")
			}
			return net.OutMarking(job.Transition), nil, nil
		}),
		OnFailure:   func(*instance.Job, int, string) instance.ExceptionStrategy { return instance.RetryWithDelay(30 * time.Millisecond) },
		EventSource: func(s, _ any) any { return s },
	}

	eng1 := inmem.New()
	a1 := actor.New(net, "p3", j, eng1, policy, actor.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	go a1.Run(ctx)
	send(t, a1, actor.Initialize{InitialMarking: initMarking("1")})
	failed := send(t, a1, actor.FireTransition{Transition: "t"}).(actor.TransitionFailed)
	require.Equal(t, instance.StrategyRetryWithDelay, failed.Strategy.Kind)
	cancel()
	<-a1.Done()

	eng2 := inmem.New()
	a2 := actor.New(net, "p3", j, eng2, policy, actor.Options{})
	require.NoError(t, a2.Recover(context.Background()))
	ctx2, cancel2 := context.WithCancel(context.Background())
	t.Cleanup(cancel2)
	go a2.Run(ctx2)

	require.Eventually(t, func() bool {
		state := send(t, a2, actor.GetState{}).(actor.InstanceState)
		return state.Marking.Count("B") == 1
	}, time.Second, 10*time.Millisecond)
}
