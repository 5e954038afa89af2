package journal

import (
	"encoding/json"
	"fmt"

	"github.com/bakerrun/petriflow/instance"
)

// Codec converts between instance.Event values and the opaque byte
// payload a Journal implementation stores. Codec choice is explicitly out
// of scope for the core engine (spec §1); this package ships one default,
// JSON-based implementation so the in-memory and Mongo journals are
// runnable out of the box, while callers with other wire-format needs
// (protobuf, CBOR) can supply their own Codec.
type Codec interface {
	Encode(event instance.Event) (instance.EventType, []byte, error)
	Decode(typ instance.EventType, payload []byte) (instance.Event, error)
}

// JSONCodec is the default Codec, encoding each event variant as plain
// JSON. User state, job input, and job output are encoded via their
// concrete Go types' own json.Marshal behavior; callers whose state/input/
// output types are not JSON-round-trippable (e.g. carry unexported fields
// or non-JSON-safe values) must supply a custom Codec instead.
type JSONCodec struct{}

// Encode implements Codec.
func (JSONCodec) Encode(event instance.Event) (instance.EventType, []byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return "", nil, fmt.Errorf("journal: encoding %T: %w", event, err)
	}
	return event.Type(), payload, nil
}

// Decode implements Codec.
func (JSONCodec) Decode(typ instance.EventType, payload []byte) (instance.Event, error) {
	switch typ {
	case instance.EventInitialized:
		var e instance.InitializedEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("journal: decoding InitializedEvent: %w", err)
		}
		return e, nil
	case instance.EventTransitionFired:
		var e instance.TransitionFiredEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("journal: decoding TransitionFiredEvent: %w", err)
		}
		return e, nil
	case instance.EventTransitionFailed:
		var e instance.TransitionFailedEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("journal: decoding TransitionFailedEvent: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("journal: unknown event type %q", typ)
	}
}
