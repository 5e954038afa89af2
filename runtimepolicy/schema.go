package runtimepolicy

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/bakerrun/petriflow/instance"
	"github.com/bakerrun/petriflow/petri"
)

// SchemaValidator holds one compiled JSON Schema per transition, used to
// validate a job's input payload before it is accepted and journaled.
// Grounded on the teacher registry's validatePayloadJSONAgainstSchema
// (registry/service.go), which compiles a schema per toolset call and
// validates the call payload against it before the toolset ever sees it;
// here the same check runs before a transition's JobExecutor ever sees the
// job, keeping malformed input out of the journal entirely.
type SchemaValidator struct {
	schemas map[petri.TransitionID]*jsonschema.Schema
}

// NewSchemaValidator compiles one JSON Schema document (as raw JSON bytes)
// per transition. A transition absent from schemas is left unvalidated.
func NewSchemaValidator(schemas map[petri.TransitionID]json.RawMessage) (*SchemaValidator, error) {
	compiled := make(map[petri.TransitionID]*jsonschema.Schema, len(schemas))
	for transition, raw := range schemas {
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("runtimepolicy: unmarshal schema for %q: %w", transition, err)
		}
		resource := fmt.Sprintf("%s.json", transition)
		c := jsonschema.NewCompiler()
		if err := c.AddResource(resource, doc); err != nil {
			return nil, fmt.Errorf("runtimepolicy: add schema resource for %q: %w", transition, err)
		}
		schema, err := c.Compile(resource)
		if err != nil {
			return nil, fmt.Errorf("runtimepolicy: compile schema for %q: %w", transition, err)
		}
		compiled[transition] = schema
	}
	return &SchemaValidator{schemas: compiled}, nil
}

// Validate reports whether input satisfies the schema registered for
// transition. A transition with no registered schema always validates.
// input must already be JSON-shaped (the result of json.Unmarshal into
// any, or a value json.Marshal can round-trip), matching jsonschema/v6's
// Validate contract.
func (v *SchemaValidator) Validate(transition petri.TransitionID, input any) error {
	schema, ok := v.schemas[transition]
	if !ok {
		return nil
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("runtimepolicy: marshal input for %q: %w", transition, err)
	}
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("runtimepolicy: unmarshal input for %q: %w", transition, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("runtimepolicy: input for %q failed schema validation: %w", transition, err)
	}
	return nil
}

// ReasonInvalidInput is returned when input fails schema validation.
const ReasonInvalidInput Reason = "input failed schema validation"

// WithSchemaValidation wraps a CreateJob so it rejects a FireTransition
// whose input fails schema validation before any tokens are reserved,
// keeping the rejection on the command-domain-error path (spec §7.1)
// rather than turning a malformed payload into a durable
// TransitionFailedEvent.
func WithSchemaValidation(next CreateJob, validator *SchemaValidator) CreateJob {
	return func(net *petri.PetriNet, inst *instance.Instance, transition petri.TransitionID, input any, correlationID string, nextID func() int64) (*instance.Job, Reason) {
		if err := validator.Validate(transition, input); err != nil {
			return nil, ReasonInvalidInput
		}
		return next(net, inst, transition, input, correlationID, nextID)
	}
}
