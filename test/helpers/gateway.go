package test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tradterm/tradterm/internal/protocol"
)

// WireMessage mirrors the client envelope as the gateway sees it.
type WireMessage struct {
	ClientID  uuid.UUID `json:"client_id"`
	CommandID uuid.UUID `json:"command_id"`
	Payload   struct {
		Kind string          `json:"kind"`
		Data json.RawMessage `json:"data"`
	} `json:"payload"`
}

// InnerKind returns the nested kind of a System or UserCommand payload,
// or the outer kind when there is no nesting.
func (m WireMessage) InnerKind() string {
	var inner struct {
		Kind    string `json:"kind"`
		Command *struct {
			Kind string `json:"kind"`
		} `json:"command"`
	}
	if err := json.Unmarshal(m.Payload.Data, &inner); err != nil {
		return m.Payload.Kind
	}
	if inner.Command != nil {
		return inner.Command.Kind
	}
	if inner.Kind != "" {
		return inner.Kind
	}
	return m.Payload.Kind
}

// MockGateway is a scripted in-process gateway. It completes the version
// handshake, echoes Pings as Pongs, records every inbound envelope and lets
// tests push arbitrary server payloads to the connected client.
type MockGateway struct {
	server       *httptest.Server
	HelloVersion int

	mu       sync.Mutex
	conn     *websocket.Conn
	writeMu  sync.Mutex
	received []WireMessage
}

// NewMockGateway starts a gateway speaking the current protocol version.
func NewMockGateway(t *testing.T) *MockGateway {
	t.Helper()

	g := &MockGateway{HelloVersion: protocol.ProtocolVersion}
	upgrader := websocket.Upgrader{}
	g.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		g.mu.Lock()
		g.conn = ws
		g.mu.Unlock()
		defer ws.Close()

		for {
			var msg WireMessage
			if err := ws.ReadJSON(&msg); err != nil {
				return
			}
			g.mu.Lock()
			g.received = append(g.received, msg)
			g.mu.Unlock()
			g.answer(ws, msg)
		}
	}))
	t.Cleanup(g.server.Close)
	return g
}

func (g *MockGateway) answer(ws *websocket.Conn, msg WireMessage) {
	if msg.Payload.Kind != protocol.KindSystem {
		return
	}
	var sys struct {
		Kind string          `json:"kind"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(msg.Payload.Data, &sys); err != nil {
		return
	}
	switch sys.Kind {
	case protocol.SystemHello:
		g.write(ws, protocol.MsgClientIdAssignment, protocol.ClientIdAssignmentData{
			NewClientID: uuid.New(),
		})
		g.write(ws, protocol.MsgServerHello, protocol.ServerHelloData{
			ProtocolVersion: g.HelloVersion,
			ServerName:      "mock-gateway",
		})
	case protocol.SystemPing:
		var ping protocol.PingData
		_ = json.Unmarshal(sys.Data, &ping)
		g.write(ws, protocol.MsgPong, protocol.PongData{ClientSendTime: ping.ClientSendTime})
	}
}

func (g *MockGateway) write(ws *websocket.Conn, kind string, data any) {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	_ = ws.WriteJSON(map[string]any{
		"uuid": uuid.New(),
		"payload": map[string]any{
			"kind": kind,
			"data": data,
		},
	})
}

// URL returns the ws:// address of the gateway.
func (g *MockGateway) URL() string {
	return "ws" + strings.TrimPrefix(g.server.URL, "http")
}

// Push sends one server payload to the connected client. It fails the test
// when no client is connected.
func (g *MockGateway) Push(t *testing.T, kind string, data any) {
	t.Helper()

	g.mu.Lock()
	ws := g.conn
	g.mu.Unlock()
	if ws == nil {
		t.Fatalf("push %s: no client connected", kind)
	}
	g.write(ws, kind, data)
}

// Messages returns a copy of every recorded inbound envelope.
func (g *MockGateway) Messages() []WireMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]WireMessage, len(g.received))
	copy(out, g.received)
	return out
}

// WaitFor blocks until an envelope with the given inner kind arrives.
func (g *MockGateway) WaitFor(t *testing.T, innerKind string, timeout time.Duration) WireMessage {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, m := range g.Messages() {
			if m.InnerKind() == innerKind {
				return m
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no %s message within %s", innerKind, timeout)
	return WireMessage{}
}
