package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradterm/tradterm/internal/protocol"
)

// wireMessage mirrors the client envelope as the gateway sees it.
type wireMessage struct {
	ClientID  uuid.UUID `json:"client_id"`
	CommandID uuid.UUID `json:"command_id"`
	Payload   struct {
		Kind string          `json:"kind"`
		Data json.RawMessage `json:"data"`
	} `json:"payload"`
}

type systemEnvelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// fakeGateway is a scripted in-process gateway. It answers Hello with a
// ServerHello carrying helloVersion and echoes Pings as Pongs.
type fakeGateway struct {
	server       *httptest.Server
	helloVersion int
	helloDelay   time.Duration

	mu       sync.Mutex
	received []wireMessage
}

func newFakeGateway(version int) *fakeGateway {
	g := &fakeGateway{helloVersion: version}
	upgrader := websocket.Upgrader{}
	g.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			var msg wireMessage
			if err := ws.ReadJSON(&msg); err != nil {
				return
			}
			g.mu.Lock()
			g.received = append(g.received, msg)
			g.mu.Unlock()

			if msg.Payload.Kind != protocol.KindSystem {
				continue
			}
			var sys systemEnvelope
			if err := json.Unmarshal(msg.Payload.Data, &sys); err != nil {
				continue
			}
			switch sys.Kind {
			case protocol.SystemHello:
				if g.helloDelay > 0 {
					time.Sleep(g.helloDelay)
				}
				_ = ws.WriteJSON(map[string]any{
					"uuid": uuid.New(),
					"payload": map[string]any{
						"kind": protocol.MsgServerHello,
						"data": map[string]any{
							"protocol_version": g.helloVersion,
							"server_name":      "fake-gateway",
						},
					},
				})
			case protocol.SystemPing:
				var ping protocol.PingData
				_ = json.Unmarshal(sys.Data, &ping)
				_ = ws.WriteJSON(map[string]any{
					"uuid": uuid.New(),
					"payload": map[string]any{
						"kind": protocol.MsgPong,
						"data": map[string]any{"client_send_time": ping.ClientSendTime},
					},
				})
			}
		}
	}))
	return g
}

func (g *fakeGateway) URL() string {
	return "ws" + strings.TrimPrefix(g.server.URL, "http")
}

func (g *fakeGateway) Close() { g.server.Close() }

// systemKinds returns the inner kind of every received payload, in order.
func (g *fakeGateway) systemKinds() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var kinds []string
	for _, m := range g.received {
		if m.Payload.Kind != protocol.KindSystem {
			kinds = append(kinds, m.Payload.Kind)
			continue
		}
		var sys systemEnvelope
		if err := json.Unmarshal(m.Payload.Data, &sys); err == nil {
			kinds = append(kinds, sys.Kind)
		}
	}
	return kinds
}

func TestSession_HandshakeFlushesQueueInOrder(t *testing.T) {
	gw := newFakeGateway(protocol.ProtocolVersion)
	gw.helloDelay = 50 * time.Millisecond
	defer gw.Close()

	c := New(Options{URL: gw.URL(), Logger: zerolog.Nop()})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Disconnect()

	// Queued before the handshake completes.
	first := uuid.New()
	second := uuid.New()
	require.NoError(t, c.Send(protocol.System(protocol.SystemSyncDevice, protocol.SyncDeviceData{DeviceID: first}), first))
	require.NoError(t, c.Send(protocol.System(protocol.SystemSyncDevice, protocol.SyncDeviceData{DeviceID: second}), second))

	require.Eventually(t, func() bool {
		return c.Status() == StatusReady
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		gw.mu.Lock()
		defer gw.mu.Unlock()
		return len(gw.received) >= 3
	}, 2*time.Second, 10*time.Millisecond)

	kinds := gw.systemKinds()
	require.GreaterOrEqual(t, len(kinds), 3)
	assert.Equal(t, protocol.SystemHello, kinds[0])
	assert.Equal(t, protocol.SystemSyncDevice, kinds[1])
	assert.Equal(t, protocol.SystemSyncDevice, kinds[2])

	gw.mu.Lock()
	assert.Equal(t, first, gw.received[1].CommandID)
	assert.Equal(t, second, gw.received[2].CommandID)
	gw.mu.Unlock()
}

func TestSession_VersionMismatchIsFatal(t *testing.T) {
	gw := newFakeGateway(protocol.ProtocolVersion + 1)
	defer gw.Close()

	var fatalReason string
	var fatalMu sync.Mutex
	c := New(Options{
		URL:    gw.URL(),
		Logger: zerolog.Nop(),
		OnFatal: func(reason string) {
			fatalMu.Lock()
			fatalReason = reason
			fatalMu.Unlock()
		},
	})
	require.NoError(t, c.Connect(context.Background()))

	// Queued before the mismatch is detected; must never be delivered.
	require.NoError(t, c.Send(protocol.System(protocol.SystemSyncDevice, protocol.SyncDeviceData{DeviceID: uuid.New()}), uuid.New()))

	require.Eventually(t, func() bool {
		return c.Status() == StatusError
	}, 2*time.Second, 10*time.Millisecond)

	fatalMu.Lock()
	assert.Contains(t, fatalReason, "protocol version mismatch")
	fatalMu.Unlock()

	// The queue is dropped and further sends are rejected.
	err := c.Send(protocol.System(protocol.SystemPing, protocol.PingData{}), uuid.New())
	assert.Error(t, err)

	time.Sleep(100 * time.Millisecond)
	kinds := gw.systemKinds()
	for _, k := range kinds {
		assert.NotEqual(t, protocol.SystemSyncDevice, k, "queued message must not flush after a fatal handshake")
	}
}

func TestSession_HeartbeatMeasuresLatency(t *testing.T) {
	gw := newFakeGateway(protocol.ProtocolVersion)
	defer gw.Close()

	latencies := make(chan time.Duration, 4)
	c := New(Options{
		URL:          gw.URL(),
		Logger:       zerolog.Nop(),
		PingInterval: 20 * time.Millisecond,
		OnLatency: func(rtt time.Duration) {
			select {
			case latencies <- rtt:
			default:
			}
		},
	})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Disconnect()

	select {
	case rtt := <-latencies:
		assert.GreaterOrEqual(t, rtt, time.Duration(0))
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat round trip observed")
	}
	assert.GreaterOrEqual(t, c.Latency(), time.Duration(0))
}

func TestSession_DisconnectIsTerminal(t *testing.T) {
	gw := newFakeGateway(protocol.ProtocolVersion)
	defer gw.Close()

	c := New(Options{URL: gw.URL(), Logger: zerolog.Nop()})
	require.NoError(t, c.Connect(context.Background()))
	require.Eventually(t, func() bool {
		return c.Status() == StatusReady
	}, 2*time.Second, 10*time.Millisecond)

	c.Disconnect()
	assert.Equal(t, StatusIdle, c.Status())

	err := c.Send(protocol.System(protocol.SystemPing, protocol.PingData{}), uuid.New())
	assert.Error(t, err)

	// A fresh Connect revives the session.
	require.NoError(t, c.Connect(context.Background()))
	defer c.Disconnect()
	require.Eventually(t, func() bool {
		return c.Status() == StatusReady
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReconnectDelay_Bounds(t *testing.T) {
	base := 500 * time.Millisecond
	max := 8 * time.Second

	for attempt := 1; attempt <= 12; attempt++ {
		d := reconnectDelay(attempt, base, max, true)
		assert.GreaterOrEqual(t, d, base, "attempt %d below base", attempt)
		assert.LessOrEqual(t, d, max+max/10, "attempt %d above cap plus jitter", attempt)
	}
}

func TestReconnectDelay_ConstantWithoutBackoff(t *testing.T) {
	base := 250 * time.Millisecond
	for attempt := 1; attempt <= 5; attempt++ {
		assert.Equal(t, base, reconnectDelay(attempt, base, 0, false))
	}
}

func TestReconnectDelay_GrowsWithAttempts(t *testing.T) {
	base := time.Second
	max := time.Hour

	// Jitter is at most 10%, so doubling dominates between attempts.
	prev := reconnectDelay(1, base, max, true)
	for attempt := 2; attempt <= 6; attempt++ {
		d := reconnectDelay(attempt, base, max, true)
		assert.Greater(t, d, prev)
		prev = d
	}
}
