package petri

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkingAddRemoveFIFOOrder(t *testing.T) {
	m := NewMarking()
	m.Add("A", Token{ID: "1"}, Token{ID: "2"}, Token{ID: "3"})

	removed, err := m.Remove("A", 2)
	require.NoError(t, err)
	assert.Equal(t, []Token{{ID: "1"}, {ID: "2"}}, removed)
	assert.Equal(t, 1, m.Count("A"))
}

func TestMarkingRemoveInsufficientTokens(t *testing.T) {
	m := NewMarking()
	m.Add("A", Token{ID: "1"})
	_, err := m.Remove("A", 2)
	assert.ErrorIs(t, err, ErrInsufficientTokens)
	assert.Equal(t, 1, m.Count("A"), "a failed Remove must not mutate the marking")
}

func TestMarkingRemoveZeroIsNoop(t *testing.T) {
	m := NewMarking()
	removed, err := m.Remove("A", 0)
	require.NoError(t, err)
	assert.Nil(t, removed)
}

func TestMarkingCloneIsIndependent(t *testing.T) {
	m := NewMarking()
	m.Add("A", Token{ID: "1"})
	cp := m.Clone()
	cp.Add("A", Token{ID: "2"})
	assert.Equal(t, 1, m.Count("A"))
	assert.Equal(t, 2, cp.Count("A"))
}

func TestMarkingEqualIgnoresAbsentVsZero(t *testing.T) {
	a := NewMarking()
	a.Add("A", Token{ID: "1"})
	b := NewMarking()
	b.Add("A", Token{ID: "1"})
	b.Add("B") // touching B with zero tokens must not affect equality
	assert.True(t, a.Equal(b))
}

func TestMarkingSubtractAllOrNothing(t *testing.T) {
	m := NewMarking()
	m.Add("A", Token{ID: "1"})
	m.Add("B", Token{ID: "2"})

	other := NewMarking()
	other.Add("A", Token{ID: "1"})
	other.Add("B", Token{ID: "1"}, Token{ID: "2"}) // B wants 2, only has 1

	err := m.Subtract(other)
	assert.ErrorIs(t, err, ErrInsufficientTokens)
	assert.Equal(t, 1, m.Count("A"), "partial failure must not consume A's tokens")
	assert.Equal(t, 1, m.Count("B"))
}

func TestMarkingSubtractSucceeds(t *testing.T) {
	m := NewMarking()
	m.Add("A", Token{ID: "1"}, Token{ID: "2"})
	other := NewMarking()
	other.Add("A", Token{ID: "1"})
	require.NoError(t, m.Subtract(other))
	assert.Equal(t, 1, m.Count("A"))
}

func TestMarkingMergeAppends(t *testing.T) {
	m := NewMarking()
	m.Add("A", Token{ID: "1"})
	other := NewMarking()
	other.Add("A", Token{ID: "2"})
	m.Merge(other)
	assert.Equal(t, 2, m.Count("A"))
}

func TestMarkingMatchesMultiplicities(t *testing.T) {
	m := NewMarking()
	m.SetCount("A", 2)
	assert.True(t, m.MatchesMultiplicities(map[PlaceID]int{"A": 2}))
	assert.False(t, m.MatchesMultiplicities(map[PlaceID]int{"A": 1}))
	assert.False(t, m.MatchesMultiplicities(map[PlaceID]int{"A": 2, "B": 1}))
}

func TestMarkingJSONRoundTrip(t *testing.T) {
	m := NewMarking()
	m.Add("A", Token{ID: "1", Value: "payload"})

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var out Marking
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, m.Equal(out))
	assert.Equal(t, []Token{{ID: "1", Value: "payload"}}, out.Tokens("A"))
}
