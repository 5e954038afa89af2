package instance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bakerrun/petriflow/petri"
)

func reducer(state any, output any) any {
	count, _ := state.(int)
	if output == nil {
		return count
	}
	delta, _ := output.(int)
	return count + delta
}

func TestApplyInitializedSeedsMarkingAndState(t *testing.T) {
	inst := NewUninitialized()
	marking := petri.NewMarking()
	marking.Add("A", petri.Token{ID: "1"})

	out, err := Apply(inst, InitializedEvent{InitialMarking: marking, InitialState: 7}, reducer)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), out.SequenceNr)
	assert.Equal(t, 1, out.Marking.Count("A"))
	assert.Equal(t, 7, out.State)
}

func TestApplyInitializedTwiceFails(t *testing.T) {
	inst := NewUninitialized()
	_, err := Apply(inst, InitializedEvent{InitialMarking: petri.NewMarking()}, reducer)
	require.NoError(t, err)
	_, err = Apply(inst, InitializedEvent{InitialMarking: petri.NewMarking()}, reducer)
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestApplyFiredLivePathJobAlreadyReserved(t *testing.T) {
	inst := NewUninitialized()
	marking := petri.NewMarking()
	marking.Add("A", petri.Token{ID: "1"})
	_, err := Apply(inst, InitializedEvent{InitialMarking: marking, InitialState: 0}, reducer)
	require.NoError(t, err)

	consume := petri.NewMarking()
	consume.Add("A", petri.Token{ID: "1"})
	require.NoError(t, inst.Marking.Subtract(consume))
	inst.Jobs[1] = &Job{ID: 1, Transition: "t", Consume: consume}

	produced := petri.NewMarking()
	produced.Add("B", petri.Token{ID: "2"})

	out, err := Apply(inst, TransitionFiredEvent{
		JobID: 1, Transition: "t", CorrelationID: "c1",
		Consumed: consume, Produced: produced, Output: 5,
	}, reducer)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Marking.Count("A"))
	assert.Equal(t, 1, out.Marking.Count("B"))
	assert.Equal(t, 5, out.State)
	assert.NotContains(t, out.Jobs, int64(1))
	assert.True(t, out.HasReceivedCorrelationID("c1"))
	assert.Equal(t, uint64(2), out.SequenceNr)
}

func TestApplyFiredReplayPathSubtractsConsumed(t *testing.T) {
	// Replay: the job was never created in-memory (this is a fresh replay
	// from the journal), so Apply must itself subtract Consumed.
	inst := NewUninitialized()
	marking := petri.NewMarking()
	marking.Add("A", petri.Token{ID: "1"})
	_, err := Apply(inst, InitializedEvent{InitialMarking: marking}, reducer)
	require.NoError(t, err)

	consume := petri.NewMarking()
	consume.Add("A", petri.Token{ID: "1"})
	produced := petri.NewMarking()
	produced.Add("B", petri.Token{ID: "2"})

	out, err := Apply(inst, TransitionFiredEvent{JobID: 99, Transition: "t", Consumed: consume, Produced: produced}, reducer)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Marking.Count("A"))
	assert.Equal(t, 1, out.Marking.Count("B"))
}

func TestApplyFiredReplayInsufficientTokensIsFatal(t *testing.T) {
	inst := NewUninitialized()
	_, err := Apply(inst, InitializedEvent{InitialMarking: petri.NewMarking()}, reducer)
	require.NoError(t, err)

	consume := petri.NewMarking()
	consume.Add("A", petri.Token{ID: "1"})
	_, err = Apply(inst, TransitionFiredEvent{JobID: 1, Transition: "t", Consumed: consume}, reducer)
	assert.Error(t, err)
}

func TestApplyFailedTracksFailureCountAcrossRetries(t *testing.T) {
	inst := NewUninitialized()
	marking := petri.NewMarking()
	marking.Add("A", petri.Token{ID: "1"})
	_, err := Apply(inst, InitializedEvent{InitialMarking: marking}, reducer)
	require.NoError(t, err)

	consume := petri.NewMarking()
	consume.Add("A", petri.Token{ID: "1"})
	inst.Jobs[1] = &Job{ID: 1, Transition: "t", Consume: consume}
	require.NoError(t, inst.Marking.Subtract(consume))

	now := time.Now()
	_, err = Apply(inst, TransitionFailedEvent{JobID: 1, Transition: "t", Consumed: consume, Reason: "boom", EndTime: now, Strategy: RetryWithDelay(time.Second)}, reducer)
	require.NoError(t, err)
	assert.Equal(t, 1, inst.Jobs[1].Failure.FailureCount)
	assert.True(t, inst.Jobs[1].Active())

	_, err = Apply(inst, TransitionFailedEvent{JobID: 1, Transition: "t", Consumed: consume, Reason: "boom again", EndTime: now, Strategy: BlockTransition()}, reducer)
	require.NoError(t, err)
	assert.Equal(t, 2, inst.Jobs[1].Failure.FailureCount)
	assert.True(t, inst.Jobs[1].Blocked())
	assert.False(t, inst.Jobs[1].Active())
}

func TestValidateProducedMatchesOutMarking(t *testing.T) {
	net, err := petri.New("x", []petri.Place{{ID: "A"}, {ID: "B"}}, []petri.Transition{
		{ID: "t", Inputs: []petri.Arc{{Place: "A", Multiplicity: 1}}, Outputs: []petri.Arc{{Place: "B", Multiplicity: 1}}},
	})
	require.NoError(t, err)

	good := petri.NewMarking()
	good.Add("B", petri.Token{ID: "1"})
	assert.True(t, ValidateProduced(net, "t", good))

	bad := petri.NewMarking()
	bad.Add("B", petri.Token{ID: "1"}, petri.Token{ID: "2"})
	assert.False(t, ValidateProduced(net, "t", bad))
}
