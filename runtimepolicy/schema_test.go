package runtimepolicy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bakerrun/petriflow/instance"
	"github.com/bakerrun/petriflow/petri"
)

func TestSchemaValidatorAcceptsAndRejects(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","required":["amount"],"properties":{"amount":{"type":"number"}}}`)
	v, err := NewSchemaValidator(map[petri.TransitionID]json.RawMessage{"pay": schema})
	require.NoError(t, err)

	assert.NoError(t, v.Validate("pay", map[string]any{"amount": 10}))
	assert.Error(t, v.Validate("pay", map[string]any{}))
	assert.NoError(t, v.Validate("unvalidated-transition", "anything"), "a transition with no schema always validates")
}

func TestWithSchemaValidationRejectsBeforeReservingTokens(t *testing.T) {
	net := testNet(t)
	schema := json.RawMessage(`{"type":"string"}`)
	v, err := NewSchemaValidator(map[petri.TransitionID]json.RawMessage{"t": schema})
	require.NoError(t, err)

	inst := instance.NewUninitialized()
	inst.Marking.Add("A", petri.Token{ID: "1"})

	wrapped := WithSchemaValidation(DefaultCreateJob(), v)
	_, reason := wrapped(net, inst, "t", 42, "", func() int64 { return 1 })
	assert.Equal(t, ReasonInvalidInput, reason)
	assert.Equal(t, 1, inst.Marking.Count("A"), "a schema rejection must not reserve tokens")
}
