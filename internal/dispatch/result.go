package dispatch

import "github.com/coldbrewlabs/pairhub/internal/wire"

// Emission is a single frame addressed to a single socket, produced by a
// handler call. The dispatcher delivers emissions in the order returned
// (§4.8's "within a single recipient, frames ... appear in the order the
// handler emitted them").
type Emission struct {
	SocketID string
	Frame    wire.Frame
}

// CloseInstruction closes a socket with an application close code, after
// any emissions addressed to it have been delivered.
type CloseInstruction struct {
	SocketID string
	Code     int
	Reason   string
}

// EventResult is the total output of a handler call: zero or more frames to
// zero or more sockets, plus zero or more socket closes. Handlers never
// return a Go error — every failure mode the protocol recognizes is
// represented as an ERROR emission, or for a failed AUTH as an AUTH_FAILED
// emission plus a close (§4.9, "registry operations are total").
type EventResult struct {
	Emissions []Emission
	Closes    []CloseInstruction
}

func emptyResult() EventResult { return EventResult{} }

func toSocket(socketID string, frame wire.Frame) Emission {
	return Emission{SocketID: socketID, Frame: frame}
}

func errorResult(socketID, code, message string) EventResult {
	return EventResult{Emissions: []Emission{toSocket(socketID, wire.Frame{
		Event: "ERROR",
		Data:  mustMarshal(wire.ErrorPayload{Code: code, Message: message}),
	})}}
}
