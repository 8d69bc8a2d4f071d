package protocol

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Server-to-client payload kinds.
const (
	MsgServerHello        = "ServerHello"
	MsgClientIdAssignment = "ClientIdAssignment"
	MsgWelcome            = "Welcome"
	MsgSetUser            = "SetUser"
	MsgUnsetUser          = "UnsetUser"
	MsgCommandResponse    = "CommandResponse"
	MsgSetCommandStatus   = "SetCommandStatus"
	MsgCommandHistory     = "CommandHistory"
	MsgCommandDevicesList = "CommandDevicesList"
	MsgDeviceSnapshotLite = "DeviceSnapshotLite"
	MsgDeviceTeDelta      = "DeviceTeDelta"
	MsgDeviceMoDelta      = "DeviceMoDelta"
	MsgDeviceSgDelta      = "DeviceSgDelta"
	MsgDeviceSplitDelta   = "DeviceSplitDelta"
	MsgInspectReady       = "InspectReady"
	MsgSplitPreview       = "SplitPreview"
	MsgTePointsPage       = "TePointsPage"
	MsgDeviceMarketInfo   = "DeviceMarketInfoResponse"
	MsgFatalServerError   = "FatalServerError"
	MsgServerError        = "ServerError"
	MsgPong               = "Pong"
	MsgAlert              = "Alert"
	MsgMessage            = "Message"
)

// ServerMessage is the server-to-client envelope.
type ServerMessage struct {
	UUID    uuid.UUID     `json:"uuid"`
	Payload ServerPayload `json:"payload"`
}

// ServerPayload is the tagged server-to-client payload union. Data stays raw
// until the dispatch site knows which struct to decode into; unknown kinds
// keep their raw payload for debug logging.
type ServerPayload struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the payload data into v.
func (p ServerPayload) Decode(v any) error {
	return json.Unmarshal(p.Data, v)
}

// ParseServerMessage decodes one inbound wire frame.
func ParseServerMessage(raw []byte) (*ServerMessage, error) {
	var msg ServerMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ServerHelloData completes the protocol handshake.
type ServerHelloData struct {
	ProtocolVersion int     `json:"protocol_version"`
	ServerName      string  `json:"server_name"`
	Build           *string `json:"build,omitempty"`
}

// ClientIdAssignmentData delivers the server-assigned session client id.
type ClientIdAssignmentData struct {
	NewClientID uuid.UUID `json:"new_client_id"`
}

type WelcomeData struct {
	ServerMessage string `json:"server_message"`
}

// SetUserData confirms a successful authentication.
type SetUserData struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
}

// UnsetUserData clears the session's authenticated user.
type UnsetUserData struct{}

// CommandResponseData acknowledges a previously issued command.
type CommandResponseData struct {
	RequestUUID uuid.UUID `json:"request_uuid"`
	Message     string    `json:"message"`
}

// SetCommandStatusData re-statuses a command history entry.
type SetCommandStatusData struct {
	CommandID uuid.UUID     `json:"command_id"`
	Status    CommandStatus `json:"status"`
}

// CommandHistoryItem is one entry of the server-owned command history.
type CommandHistoryItem struct {
	CommandID uuid.UUID     `json:"command_id"`
	Name      string        `json:"name"`
	Text      string        `json:"text"`
	Status    CommandStatus `json:"status"`
}

type CommandHistoryData struct {
	Items []CommandHistoryItem `json:"items"`
}

// CommandDevicesListData maps a command to the devices it spawned.
type CommandDevicesListData struct {
	CommandID   uuid.UUID                `json:"command_id"`
	DeviceIDs   []uuid.UUID              `json:"device_ids"`
	DeviceKinds map[uuid.UUID]DeviceKind `json:"device_kinds"`
}

// InspectReadyData marks the snapshot/resync barrier: every snapshot for the
// command has been delivered and the live stream resumes from BarrierTs.
type InspectReadyData struct {
	CommandID uuid.UUID `json:"command_id"`
	BarrierTs int64     `json:"barrier_ts"`
}

// SplitPreviewData previews how a split order would be sliced.
type SplitPreviewData struct {
	RequestUUID uuid.UUID `json:"request_uuid"`
	Symbol      string    `json:"symbol"`
	NumSplits   int       `json:"num_splits"`
	Quantities  []float64 `json:"quantities"`
}

// TePointsPageData is one page of a trailing entry's stored price points.
type TePointsPageData struct {
	DeviceID   uuid.UUID `json:"device_id"`
	StartIndex int       `json:"start_index"`
	NextIndex  int       `json:"next_index"`
	TotalLen   int       `json:"total_len"`
	Points     []float64 `json:"points"`
}

type DeviceMarketInfoResponseData struct {
	DeviceID      uuid.UUID        `json:"device_id"`
	MarketContext MarketContext    `json:"market_context"`
	Description   string           `json:"description"`
	Info          DeviceMarketInfo `json:"info"`
}

// FatalServerErrorData terminates the session; the client must not
// auto-reconnect.
type FatalServerErrorData struct {
	Error string `json:"error"`
}

// ServerErrorData reports a recoverable, request-scoped error.
type ServerErrorData struct {
	RequestUUID *uuid.UUID `json:"request_uuid,omitempty"`
	Error       string     `json:"error"`
}

// PongData echoes the client's Ping send time.
type PongData struct {
	ClientSendTime int64 `json:"client_send_time"`
}

type AlertData struct {
	Message string `json:"message"`
}

type MessageData struct {
	Message string `json:"message"`
}
