package dispatch

import (
	"encoding/json"

	"github.com/coldbrewlabs/pairhub/internal/wire"
)

// mustMarshal encodes v as a json.RawMessage. The payload types in
// internal/wire are all trivially marshalable plain structs, so a marshal
// failure here would indicate a programming error, not a runtime condition
// a handler can recover from.
func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return b
}

func frame(event string, payload any) wire.Frame {
	return wire.Frame{Event: event, Data: mustMarshal(payload)}
}
