// Package session maintains the WebSocket session with a tradterm gateway.
// It owns the socket lifecycle: dialing, the version handshake, the outbound
// queue, heartbeats, and reconnection with exponential backoff. Payload
// semantics live upstream; the session only moves envelopes.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tradterm/tradterm/internal/protocol"
)

// Status is the observable transport state.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusConnecting   Status = "connecting"
	StatusReady        Status = "ready"
	StatusReconnecting Status = "reconnecting"
	StatusError        Status = "error"
)

// Options configures the session transport.
type Options struct {
	URL        string
	ClientName string
	Build      string

	ReconnectDelay     time.Duration
	MaxReconnectDelay  time.Duration
	ExponentialBackoff bool
	PingInterval       time.Duration
	HandshakeTimeout   time.Duration

	Logger zerolog.Logger

	// OnMessage receives every inbound payload the transport does not
	// consume itself (handshake, pong, client id assignment).
	OnMessage func(msg *protocol.ServerMessage)
	// OnStatus fires on every transport state change.
	OnStatus func(status Status)
	// OnLatency fires with each heartbeat round-trip time.
	OnLatency func(rtt time.Duration)
	// OnReconnect fires once per scheduled reconnect attempt.
	OnReconnect func(attempt int)
	// OnFatal fires when the session hits a non-retryable failure.
	OnFatal func(reason string)
}

// Client is the session transport. All exported methods are safe for
// concurrent use; inbound callbacks run on the single reader goroutine.
type Client struct {
	opts Options
	log  zerolog.Logger

	// writeMu serializes socket writes; gorilla allows one writer at a time.
	writeMu sync.Mutex

	mu             sync.RWMutex
	ws             *websocket.Conn
	status         Status
	clientID       uuid.UUID
	helloDone      bool
	fatal          bool
	disconnected   bool
	queue          []protocol.ClientMessage
	attempts       int
	latency        time.Duration
	serverName     string
	reconnectTimer *time.Timer

	pingStop chan struct{}
	wg       sync.WaitGroup
}

// New creates a session transport. Connect must be called before anything
// is delivered.
func New(opts Options) *Client {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultPingInterval
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if opts.ClientName == "" {
		opts.ClientName = "tradterm"
	}
	return &Client{
		opts:   opts,
		log:    opts.Logger.With().Str("component", "session").Logger(),
		status: StatusIdle,
	}
}

// Status returns the current transport state.
func (c *Client) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// ClientID returns the server-assigned session id, or uuid.Nil before
// assignment.
func (c *Client) ClientID() uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientID
}

// Latency returns the most recent heartbeat round-trip time.
func (c *Client) Latency() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latency
}

// ServerName returns the gateway's advertised name after the handshake.
func (c *Client) ServerName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverName
}

// Connect dials the gateway and runs the handshake asynchronously. It
// clears any previous terminal state so a client can be reused after
// Disconnect or a fatal error.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.status == StatusConnecting || c.status == StatusReady {
		c.mu.Unlock()
		return fmt.Errorf("session already active")
	}
	c.disconnected = false
	c.fatal = false
	c.helloDone = false
	c.attempts = 0
	c.setStatusLocked(StatusConnecting)
	c.mu.Unlock()

	return c.dial(ctx)
}

func (c *Client) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.opts.HandshakeTimeout}

	ws, _, err := dialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		c.log.Warn().Err(err).Str("url", c.opts.URL).Msg("dial failed")
		c.handleDrop(err)
		return fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}

	c.mu.Lock()
	c.ws = ws
	c.helloDone = false
	c.pingStop = make(chan struct{})
	c.mu.Unlock()

	c.wg.Add(1)
	go c.readLoop(ws)

	// Protocol handshake opens with our version; the gateway answers with
	// ServerHello or closes the socket.
	hello := protocol.HelloData{
		ProtocolVersion: protocol.ProtocolVersion,
		ClientName:      c.opts.ClientName,
	}
	if c.opts.Build != "" {
		build := c.opts.Build
		hello.Build = &build
	}
	if err := c.writeNow(protocol.System(protocol.SystemHello, hello), uuid.New()); err != nil {
		return err
	}
	return nil
}

// Disconnect tears the session down and stops all reconnection. The client
// stays idle until the next Connect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.disconnected = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	ws := c.ws
	c.ws = nil
	c.stopPingLocked()
	c.setStatusLocked(StatusIdle)
	c.mu.Unlock()

	if ws != nil {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect"),
			time.Now().Add(time.Second))
		_ = ws.Close()
	}
	c.wg.Wait()
}

// Send delivers a payload to the gateway. Before the handshake completes
// the message is queued and flushed in FIFO order on ServerHello. Sending
// after a fatal error or Disconnect is rejected.
func (c *Client) Send(payload protocol.ClientPayload, commandID uuid.UUID) error {
	c.mu.Lock()
	if c.fatal {
		c.mu.Unlock()
		return fmt.Errorf("session failed fatally")
	}
	if c.disconnected {
		c.mu.Unlock()
		return fmt.Errorf("session disconnected")
	}
	msg := protocol.ClientMessage{
		ClientID:  c.clientID,
		CommandID: commandID,
		Payload:   payload,
	}
	if !c.helloDone || c.ws == nil {
		c.queue = append(c.queue, msg)
		c.mu.Unlock()
		return nil
	}
	ws := c.ws
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteJSON(msg)
}

// writeNow bypasses the queue. Only the handshake and heartbeats use it.
func (c *Client) writeNow(payload protocol.ClientPayload, commandID uuid.UUID) error {
	c.mu.RLock()
	ws := c.ws
	clientID := c.clientID
	c.mu.RUnlock()
	if ws == nil {
		return fmt.Errorf("not connected")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteJSON(protocol.ClientMessage{
		ClientID:  clientID,
		CommandID: commandID,
		Payload:   payload,
	})
}

func (c *Client) readLoop(ws *websocket.Conn) {
	defer c.wg.Done()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.mu.RLock()
			current := c.ws
			c.mu.RUnlock()
			if current != ws {
				// A newer socket replaced this one.
				return
			}
			c.handleDrop(err)
			return
		}

		msg, err := protocol.ParseServerMessage(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("discarding malformed frame")
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg *protocol.ServerMessage) {
	switch msg.Payload.Kind {
	case protocol.MsgServerHello:
		c.handleServerHello(msg)
		return

	case protocol.MsgClientIdAssignment:
		var data protocol.ClientIdAssignmentData
		if err := msg.Payload.Decode(&data); err != nil {
			c.log.Warn().Err(err).Msg("bad client id assignment")
			return
		}
		c.mu.Lock()
		c.clientID = data.NewClientID
		c.mu.Unlock()
		c.log.Debug().Str("client_id", data.NewClientID.String()).Msg("client id assigned")

	case protocol.MsgPong:
		var data protocol.PongData
		if err := msg.Payload.Decode(&data); err != nil {
			return
		}
		rtt := time.Duration(time.Now().UnixMilli()-data.ClientSendTime) * time.Millisecond
		if rtt < 0 {
			rtt = 0
		}
		c.mu.Lock()
		c.latency = rtt
		c.mu.Unlock()
		if c.opts.OnLatency != nil {
			c.opts.OnLatency(rtt)
		}
		return

	case protocol.MsgFatalServerError:
		var data protocol.FatalServerErrorData
		_ = msg.Payload.Decode(&data)
		c.failFatal("server: " + data.Error)
		return
	}

	if c.opts.OnMessage != nil {
		c.opts.OnMessage(msg)
	}
}

func (c *Client) handleServerHello(msg *protocol.ServerMessage) {
	var data protocol.ServerHelloData
	if err := msg.Payload.Decode(&data); err != nil {
		c.failFatal(fmt.Sprintf("unreadable server hello: %v", err))
		return
	}

	if data.ProtocolVersion != protocol.ProtocolVersion {
		reason := fmt.Sprintf("protocol version mismatch: server %d, client %d",
			data.ProtocolVersion, protocol.ProtocolVersion)
		c.mu.Lock()
		ws := c.ws
		c.mu.Unlock()
		if ws != nil {
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(protocol.CloseProtocolMismatch, reason),
				time.Now().Add(time.Second))
		}
		c.failFatal(reason)
		return
	}

	c.mu.Lock()
	c.helloDone = true
	c.attempts = 0
	c.serverName = data.ServerName
	queued := c.queue
	c.queue = nil
	ws := c.ws
	c.setStatusLocked(StatusReady)
	c.mu.Unlock()

	c.log.Info().
		Str("server", data.ServerName).
		Int("protocol", data.ProtocolVersion).
		Int("queued", len(queued)).
		Msg("session ready")

	// Flush in the order callers sent. The client id may have been assigned
	// after a message was queued; restamp so nothing goes out under uuid.Nil.
	for _, m := range queued {
		m.ClientID = c.ClientID()
		if ws == nil {
			break
		}
		c.writeMu.Lock()
		err := ws.WriteJSON(m)
		c.writeMu.Unlock()
		if err != nil {
			c.log.Warn().Err(err).Msg("queue flush interrupted")
			break
		}
	}

	c.startPing()

	if c.opts.OnMessage != nil {
		c.opts.OnMessage(msg)
	}
}

func (c *Client) startPing() {
	c.mu.Lock()
	stop := c.pingStop
	interval := c.opts.PingInterval
	c.mu.Unlock()
	if stop == nil {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ping := protocol.PingData{ClientSendTime: time.Now().UnixMilli()}
				if err := c.writeNow(protocol.System(protocol.SystemPing, ping), uuid.New()); err != nil {
					return
				}
			}
		}
	}()
}

func (c *Client) stopPingLocked() {
	if c.pingStop != nil {
		close(c.pingStop)
		c.pingStop = nil
	}
}

// handleDrop reacts to a broken socket. Fatal and deliberate disconnects
// never reconnect; everything else schedules a backed-off retry. Queued
// messages survive the drop and flush after the next handshake.
func (c *Client) handleDrop(err error) {
	c.mu.Lock()
	if c.fatal || c.disconnected {
		c.mu.Unlock()
		return
	}
	if c.ws != nil {
		_ = c.ws.Close()
		c.ws = nil
	}
	c.stopPingLocked()
	c.helloDone = false
	c.attempts++
	attempt := c.attempts
	delay := reconnectDelay(attempt, c.opts.ReconnectDelay, c.opts.MaxReconnectDelay, c.opts.ExponentialBackoff)
	c.setStatusLocked(StatusReconnecting)
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		skip := c.fatal || c.disconnected
		c.mu.Unlock()
		if skip {
			return
		}
		_ = c.dial(context.Background())
	})
	c.mu.Unlock()

	c.log.Warn().Err(err).
		Int("attempt", attempt).
		Dur("delay", delay).
		Msg("connection lost, reconnecting")

	if c.opts.OnReconnect != nil {
		c.opts.OnReconnect(attempt)
	}
}

// failFatal parks the session in the error state. The outbound queue is
// dropped, never flushed: messages written for one protocol dialect must
// not reach a server speaking another.
func (c *Client) failFatal(reason string) {
	c.mu.Lock()
	if c.fatal {
		c.mu.Unlock()
		return
	}
	c.fatal = true
	c.queue = nil
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	ws := c.ws
	c.ws = nil
	c.stopPingLocked()
	c.setStatusLocked(StatusError)
	c.mu.Unlock()

	if ws != nil {
		_ = ws.Close()
	}

	c.log.Error().Str("reason", reason).Msg("session failed")
	if c.opts.OnFatal != nil {
		c.opts.OnFatal(reason)
	}
}

func (c *Client) setStatusLocked(s Status) {
	if c.status == s {
		return
	}
	c.status = s
	if c.opts.OnStatus != nil {
		go c.opts.OnStatus(s)
	}
}
