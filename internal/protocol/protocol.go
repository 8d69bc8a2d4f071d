// Package protocol defines the tradterm gateway WebSocket protocol types.
// The wire format is JSON with serde-style tagged unions: every union value
// is an object of the form {"kind": ..., "data": ...}. Client and server
// must agree on ProtocolVersion exactly; the handshake rejects any mismatch.
package protocol

import (
	"encoding/json"

	"github.com/google/uuid"
)

// ProtocolVersion is the current wire protocol version. It must match the
// server's compiled constant exactly; a mismatch is a fatal, non-retryable
// handshake failure.
const ProtocolVersion = 2

// NullUUID is the zero client id used before the server assigns one.
var NullUUID = uuid.Nil

// CloseProtocolMismatch is the WebSocket close code sent when the server's
// protocol version does not match ours.
const CloseProtocolMismatch = 4000

// Client payload kinds.
const (
	KindUserCommand = "UserCommand"
	KindSystem      = "System"
)

// System message kinds.
const (
	SystemHello                     = "Hello"
	SystemPing                      = "Ping"
	SystemInspectStart              = "InspectStart"
	SystemInspectReadyAck           = "InspectReadyAck"
	SystemSyncDevice                = "SyncDevice"
	SystemTePointsPageRequest       = "TePointsPageRequest"
	SystemListCommandDevicesRequest = "ListCommandDevicesRequest"
	SystemCancelCommand             = "CancelCommand"
	SystemGetDeviceMarketInfo       = "GetDeviceMarketInfo"
)

// ClientMessage is the client-to-server envelope. Every outbound message
// carries the session's client id and a correlation id.
type ClientMessage struct {
	ClientID  uuid.UUID     `json:"client_id"`
	CommandID uuid.UUID     `json:"command_id"`
	Payload   ClientPayload `json:"payload"`
}

// ClientPayload is the tagged client-to-server payload union.
type ClientPayload struct {
	Kind string `json:"kind"`
	Data any    `json:"data,omitempty"`
}

// SystemPayload is the tagged union of internal (non-user) messages.
type SystemPayload struct {
	Kind string `json:"kind"`
	Data any    `json:"data,omitempty"`
}

// UserCommandData wraps a user command together with the raw text the user
// typed, for server-side command history.
type UserCommandData struct {
	RawText string      `json:"raw_text"`
	Command UserCommand `json:"command"`
}

// UserCommand is the tagged union of user-submitted commands.
type UserCommand struct {
	Kind string `json:"kind"`
	Data any    `json:"data,omitempty"`
}

// System builds a System client payload.
func System(kind string, data any) ClientPayload {
	return ClientPayload{
		Kind: KindSystem,
		Data: SystemPayload{Kind: kind, Data: data},
	}
}

// User builds a UserCommand client payload.
func User(kind string, data any, rawText string) ClientPayload {
	return ClientPayload{
		Kind: KindUserCommand,
		Data: UserCommandData{
			RawText: rawText,
			Command: UserCommand{Kind: kind, Data: data},
		},
	}
}

// HelloData opens the protocol handshake after the socket is established.
type HelloData struct {
	ProtocolVersion int     `json:"protocol_version"`
	ClientName      string  `json:"client_name"`
	Build           *string `json:"build,omitempty"`
}

// PingData carries the client's send time (unix millis) so the matching
// Pong can be turned into a round-trip latency sample.
type PingData struct {
	ClientSendTime int64 `json:"client_send_time"`
}

// InspectStartData asks the server to begin the snapshot/resync barrier for
// a command's device tree.
type InspectStartData struct {
	CommandID uuid.UUID `json:"command_id"`
}

// InspectReadyAckData acknowledges an InspectReady barrier marker.
type InspectReadyAckData struct {
	CommandID uuid.UUID `json:"command_id"`
}

// SyncDeviceData requests a fresh snapshot of a single device.
type SyncDeviceData struct {
	DeviceID uuid.UUID `json:"device_id"`
}

// TePointsPageRequestData pages through a trailing entry's stored price
// points, starting at an absolute index.
type TePointsPageRequestData struct {
	DeviceID   uuid.UUID `json:"device_id"`
	SinceIndex int       `json:"since_index"`
	MaxPoints  int       `json:"max_points"`
}

// ListCommandDevicesRequestData lists the devices owned by a command.
type ListCommandDevicesRequestData struct {
	CommandID uuid.UUID `json:"command_id"`
}

// CancelCommandData cancels a running command.
type CancelCommandData struct {
	CommandID uuid.UUID `json:"command_id"`
}

// GetDeviceMarketInfoData requests market metadata for a device.
type GetDeviceMarketInfoData struct {
	DeviceID uuid.UUID `json:"device_id"`
}

// MarketContext identifies which market backend a device trades against.
// The server owns the schema; extra fields round-trip untouched.
type MarketContext map[string]any

// DeviceMarketInfo is display metadata for a device's market.
type DeviceMarketInfo struct {
	Symbol      string `json:"symbol,omitempty"`
	Description string `json:"description,omitempty"`
}

// RawJSON re-encodes a value through encoding/json. Test helpers and the
// inbound debug log use it to normalize payloads.
func RawJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
