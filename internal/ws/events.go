package ws

import "encoding/json"

// Client→server event names. The server→client names are
// chat.EventPrivateMessage and EventMessageFailed.
const (
	EventJoin          = "join"
	EventLeave         = "leave"
	EventMessageFailed = "message_failed"
)

// Envelope is the wire framing for every event in both directions:
// {"type": "...", "data": {...}}.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// inboundEvent is the receive-side counterpart of Envelope; Data stays
// raw until the type is known.
type inboundEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type channelPayload struct {
	Channel string `json:"channel"`
}

type sendPayload struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type failurePayload struct {
	To     string `json:"to"`
	Reason string `json:"reason"`
}
