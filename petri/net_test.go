package petri

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNet(t *testing.T) *PetriNet {
	t.Helper()
	net, err := New("order", []Place{
		{ID: "A", TokenType: "unit"},
		{ID: "B", TokenType: "unit"},
	}, []Transition{
		{ID: "t", Inputs: []Arc{{Place: "A", Multiplicity: 1}}, Outputs: []Arc{{Place: "B", Multiplicity: 1}}},
	})
	require.NoError(t, err)
	return net
}

func TestNewRejectsDuplicatePlace(t *testing.T) {
	_, err := New("x", []Place{{ID: "A"}, {ID: "A"}}, nil)
	assert.Error(t, err)
}

func TestNewRejectsDuplicateTransition(t *testing.T) {
	_, err := New("x", []Place{{ID: "A"}}, []Transition{
		{ID: "t"}, {ID: "t"},
	})
	assert.Error(t, err)
}

func TestNewRejectsUnknownArcPlace(t *testing.T) {
	_, err := New("x", []Place{{ID: "A"}}, []Transition{
		{ID: "t", Inputs: []Arc{{Place: "missing", Multiplicity: 1}}},
	})
	assert.Error(t, err)
}

func TestNewRejectsNonPositiveMultiplicity(t *testing.T) {
	_, err := New("x", []Place{{ID: "A"}}, []Transition{
		{ID: "t", Inputs: []Arc{{Place: "A", Multiplicity: 0}}},
	})
	assert.Error(t, err)
}

func TestInOutMarking(t *testing.T) {
	net := testNet(t)
	assert.Equal(t, 1, net.InMarking("t").Count("A"))
	assert.Equal(t, 1, net.OutMarking("t").Count("B"))
}

func TestTransitionsPreservesDeclarationOrder(t *testing.T) {
	net, err := New("x", []Place{{ID: "A"}}, []Transition{
		{ID: "t2"}, {ID: "t1"}, {ID: "t3"},
	})
	require.NoError(t, err)
	assert.Equal(t, []TransitionID{"t2", "t1", "t3"}, net.Transitions())
}

func TestUnknownTransitionLookupPanics(t *testing.T) {
	net := testNet(t)
	assert.Panics(t, func() { net.InMarking("nope") })
	assert.Panics(t, func() { net.OutMarking("nope") })
}
