// Package terminal is the client runtime. It owns the session transport,
// routes every inbound payload kind to the command tracker and the device
// engine, and exposes the observable session state the UI layers read.
// All inbound payloads are handled on a single dispatch goroutine, so the
// tracker and engine only ever see one writer.
package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tradterm/tradterm/internal/auth"
	"github.com/tradterm/tradterm/internal/command"
	"github.com/tradterm/tradterm/internal/config"
	"github.com/tradterm/tradterm/internal/device"
	"github.com/tradterm/tradterm/internal/metrics"
	"github.com/tradterm/tradterm/internal/protocol"
	"github.com/tradterm/tradterm/internal/session"
)

// AnonymousUser is the username before any login succeeds.
const AnonymousUser = "anonymous"

// inboundLogCap bounds the debug ring buffer.
const inboundLogCap = 3000

// Options configures the terminal runtime.
type Options struct {
	Gateway config.GatewayConfig
	Build   string
	Logger  zerolog.Logger

	// Metrics is optional; a nil value disables instrumentation.
	Metrics *metrics.Metrics
	// Tokens is optional; when set, a cached token triggers an automatic
	// TokenLogin after each handshake and auth errors purge it.
	Tokens *auth.Store

	// InboxSize is the dispatch channel depth. Zero means a sane default.
	InboxSize int
}

// InboundRecord is one entry of the inbound debug log.
type InboundRecord struct {
	Ts   time.Time
	Kind string
	Data json.RawMessage
}

// State is a point-in-time copy of the observable session state.
type State struct {
	Status          session.Status
	LastError       string
	Latency         time.Duration
	ClientID        uuid.UUID
	Username        string
	UserID          uuid.UUID
	ProtocolVersion int
	// AuthAccepted is nil until the server has answered a login.
	AuthAccepted   *bool
	AuthError      string
	OutboundCount  int
	ReconnectCount int
}

// Terminal wires the session transport to the command tracker and device
// engine and dispatches inbound payloads on a single goroutine.
type Terminal struct {
	log     zerolog.Logger
	session *session.Client
	tracker *command.Tracker
	engine  *device.Engine
	metrics *metrics.Metrics
	tokens  *auth.Store

	inbox chan *protocol.ServerMessage
	done  chan struct{}
	wg    sync.WaitGroup

	mu              sync.RWMutex
	username        string
	userID          uuid.UUID
	authAccepted    *bool
	authError       string
	lastError       string
	protocolVersion int
	outboundCount   int
	reconnectCount  int
	previews        map[uuid.UUID]protocol.SplitPreviewData
	marketInfo      map[uuid.UUID]protocol.DeviceMarketInfoResponseData
	debugEnabled    bool
	inboundLog      []InboundRecord
	loginWait       chan error
}

func New(opts Options) *Terminal {
	if opts.InboxSize <= 0 {
		opts.InboxSize = 256
	}

	t := &Terminal{
		log:        opts.Logger.With().Str("component", "terminal").Logger(),
		tracker:    command.NewTracker(opts.Logger),
		engine:     device.NewEngine(opts.Logger),
		metrics:    opts.Metrics,
		tokens:     opts.Tokens,
		inbox:      make(chan *protocol.ServerMessage, opts.InboxSize),
		done:       make(chan struct{}),
		username:   AnonymousUser,
		previews:   make(map[uuid.UUID]protocol.SplitPreviewData),
		marketInfo: make(map[uuid.UUID]protocol.DeviceMarketInfoResponseData),
	}

	t.engine.OnAttach = func(commandID, deviceID uuid.UUID, _ protocol.DeviceKind) {
		t.tracker.LinkDevice(commandID, deviceID)
	}

	t.session = session.New(session.Options{
		URL:                opts.Gateway.URL,
		ClientName:         opts.Gateway.ClientName,
		Build:              opts.Build,
		ReconnectDelay:     time.Duration(opts.Gateway.ReconnectDelayMs) * time.Millisecond,
		MaxReconnectDelay:  time.Duration(opts.Gateway.MaxReconnectDelayMs) * time.Millisecond,
		ExponentialBackoff: opts.Gateway.ExponentialBackoff,
		PingInterval:       time.Duration(opts.Gateway.PingIntervalMs) * time.Millisecond,
		Logger:             opts.Logger,
		OnMessage:          t.enqueue,
		OnStatus:           t.onStatus,
		OnLatency:          t.onLatency,
		OnReconnect:        t.onReconnect,
		OnFatal:            t.onFatal,
	})
	return t
}

// Start launches the dispatch goroutine and opens the session.
func (t *Terminal) Start(ctx context.Context) error {
	t.wg.Add(1)
	go t.dispatchLoop()
	return t.session.Connect(ctx)
}

// Close tears down the session and stops dispatching. The terminal cannot
// be restarted afterwards.
func (t *Terminal) Close() {
	t.session.Disconnect()
	close(t.done)
	t.wg.Wait()
}

// Tracker exposes the command correlation state.
func (t *Terminal) Tracker() *command.Tracker { return t.tracker }

// Engine exposes the reconstructed device state.
func (t *Terminal) Engine() *device.Engine { return t.engine }

// State returns a copy of the observable session state.
func (t *Terminal) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var accepted *bool
	if t.authAccepted != nil {
		v := *t.authAccepted
		accepted = &v
	}
	return State{
		Status:          t.session.Status(),
		LastError:       t.lastError,
		Latency:         t.session.Latency(),
		ClientID:        t.session.ClientID(),
		Username:        t.username,
		UserID:          t.userID,
		ProtocolVersion: t.protocolVersion,
		AuthAccepted:    accepted,
		AuthError:       t.authError,
		OutboundCount:   t.outboundCount,
		ReconnectCount:  t.reconnectCount,
	}
}

// SplitPreview returns the cached preview for a request id.
func (t *Terminal) SplitPreview(requestID uuid.UUID) (protocol.SplitPreviewData, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.previews[requestID]
	return p, ok
}

// MarketInfo returns the cached market metadata for a device.
func (t *Terminal) MarketInfo(deviceID uuid.UUID) (protocol.DeviceMarketInfoResponseData, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	info, ok := t.marketInfo[deviceID]
	return info, ok
}

// SetInboundDebug toggles the raw inbound log. Disabling clears it.
func (t *Terminal) SetInboundDebug(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.debugEnabled = enabled
	if !enabled {
		t.inboundLog = nil
	}
}

// InboundLog returns a copy of the inbound debug records.
func (t *Terminal) InboundLog() []InboundRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]InboundRecord, len(t.inboundLog))
	copy(out, t.inboundLog)
	return out
}

func (t *Terminal) enqueue(msg *protocol.ServerMessage) {
	select {
	case t.inbox <- msg:
	default:
		t.log.Warn().Str("kind", msg.Payload.Kind).Msg("inbox full, dropping frame")
		if t.metrics != nil {
			t.metrics.DroppedFrames.Inc()
		}
	}
}

func (t *Terminal) onStatus(s session.Status) {
	if t.metrics != nil {
		t.metrics.SetStatus(string(s))
	}
}

func (t *Terminal) onLatency(rtt time.Duration) {
	if t.metrics != nil {
		t.metrics.ObserveRTT(rtt)
	}
}

func (t *Terminal) onReconnect(attempt int) {
	t.mu.Lock()
	t.reconnectCount++
	t.mu.Unlock()
	if t.metrics != nil {
		t.metrics.Reconnects.Inc()
	}
	t.log.Info().Int("attempt", attempt).Msg("reconnect scheduled")
}

func (t *Terminal) onFatal(reason string) {
	t.mu.Lock()
	t.lastError = reason
	t.mu.Unlock()
	t.resolveLogin(errors.New(reason))
}

func (t *Terminal) dispatchLoop() {
	defer t.wg.Done()
	for {
		select {
		case <-t.done:
			return
		case msg := <-t.inbox:
			t.handle(msg)
		}
	}
}
