package stream

import "encoding/json"

// Inbound frame types the classifier understands. Anything else is ignored.
const (
	MessageTypeNotification   = "notification"
	MessageTypeBroadcast      = "broadcast"
	MessageTypeSystemAlert    = "system_alert"
	MessageTypeDocumentUpdate = "document_update"
)

// messageTypeSubscribe is the outbound handshake frame type.
const messageTypeSubscribe = "subscribe"

// Envelope is the raw decoded inbound frame before classification.
// Unknown fields are ignored; there is no protocol version field.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// outboundMessage is the wire shape of every application-initiated frame.
type outboundMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// subscribeMessage declares interest in named channels, sent once per
// successful connect.
type subscribeMessage struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels"`
}
