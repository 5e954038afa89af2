package runtimepolicy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bakerrun/petriflow/instance"
	"github.com/bakerrun/petriflow/petri"
)

func testNet(t *testing.T) *petri.PetriNet {
	t.Helper()
	net, err := petri.New("x", []petri.Place{{ID: "A"}, {ID: "B"}}, []petri.Transition{
		{ID: "t", Inputs: []petri.Arc{{Place: "A", Multiplicity: 1}}, Outputs: []petri.Arc{{Place: "B", Multiplicity: 1}}},
	})
	require.NoError(t, err)
	return net
}

func TestDefaultCreateJobReservesTokens(t *testing.T) {
	net := testNet(t)
	inst := instance.NewUninitialized()
	inst.Marking.Add("A", petri.Token{ID: "1"})

	var nextID int64
	job, reason := DefaultCreateJob()(net, inst, "t", "input", "c1", func() int64 { nextID++; return nextID })
	require.Empty(t, reason)
	require.NotNil(t, job)
	assert.Equal(t, 0, inst.Marking.Count("A"), "CreateJob must reserve tokens out of the marking")
	assert.Equal(t, "input", job.Input)
	assert.Equal(t, "c1", job.CorrelationID)
	assert.Same(t, job, inst.Jobs[job.ID])
}

func TestDefaultCreateJobRejectsUnknownTransition(t *testing.T) {
	net := testNet(t)
	inst := instance.NewUninitialized()
	_, reason := DefaultCreateJob()(net, inst, "missing", nil, "", func() int64 { return 1 })
	assert.Equal(t, ReasonUnknownTransition, reason)
}

func TestDefaultCreateJobRejectsWhenNotEnabled(t *testing.T) {
	net := testNet(t)
	inst := instance.NewUninitialized()
	_, reason := DefaultCreateJob()(net, inst, "t", nil, "", func() int64 { return 1 })
	assert.Equal(t, ReasonNotEnabled, reason)
	assert.Equal(t, 0, inst.Marking.Count("A"))
}
