package session

import (
	"encoding/json"
)

// Wire message types used by the session channel.
const (
	MsgConnectionEstablished = "connection_established"
	MsgKickedOut             = "kicked_out"
	MsgForceLogout           = "force_logout"
	MsgPing                  = "ping"
	MsgPong                  = "pong"
	MsgUserStatus            = "user_status"
)

type (
	// Envelope is one decoded inbound frame. Payload keeps the complete
	// decoded object so subscribers see fields beyond the well-known ones.
	Envelope struct {
		Type     string
		Message  string
		Reason   string
		KickedBy string
		Payload  map[string]any
	}

	// Ping is the outbound heartbeat probe.
	Ping struct {
		Type      string `json:"type"`
		Timestamp int64  `json:"timestamp"`
	}

	// DisconnectInfo is the data attached to a disconnected event.
	DisconnectInfo struct {
		Code   int
		Reason string
	}
)

func decodeEnvelope(data []byte) (*Envelope, error) {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	e := &Envelope{
		Type:     stringField(payload, "type"),
		Message:  stringField(payload, "message"),
		Reason:   stringField(payload, "reason"),
		KickedBy: stringField(payload, "kicked_by"),
		Payload:  payload,
	}
	return e, nil
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
