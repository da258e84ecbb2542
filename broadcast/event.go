package broadcast

import (
	"encoding/json"
	"fmt"
)

// Event types sent to real-time clients.
const (
	TypeConnectionSuccess = "CONNECTION_SUCCESS"
	TypeDeviceCreate      = "DEVICE_CREATE"
	TypeDeviceUpdate      = "DEVICE_UPDATE"
	TypeDeviceHeartbeat   = "DEVICE_HEARTBEAT"

	// TypeHeartbeat is the client-to-server frame relayed as TypeDeviceHeartbeat.
	TypeHeartbeat = "HEARTBEAT"
)

// Event is one message on the real-time channel.
type Event struct {
	Type    string          `json:"type"`
	Message string          `json:"message,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent marshals payload into an event of type typ.
func NewEvent(typ string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", typ, err)
	}
	return Event{Type: typ, Payload: raw}, nil
}

// Encode returns the wire form of e.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}
