package terminal

import (
	"errors"
	"fmt"
	"time"

	"github.com/tradterm/tradterm/internal/auth"
	"github.com/tradterm/tradterm/internal/device"
	"github.com/tradterm/tradterm/internal/protocol"
)

func (t *Terminal) handle(msg *protocol.ServerMessage) {
	kind := msg.Payload.Kind
	if t.metrics != nil {
		t.metrics.InboundByKind.WithLabelValues(kind).Inc()
	}
	t.recordInbound(msg)

	var err error
	switch kind {
	case protocol.MsgServerHello:
		err = t.handleServerHello(msg.Payload)
	case protocol.MsgWelcome:
		err = t.handleWelcome(msg.Payload)
	case protocol.MsgSetUser:
		err = t.handleSetUser(msg.Payload)
	case protocol.MsgUnsetUser:
		t.handleUnsetUser()
	case protocol.MsgCommandResponse:
		err = t.handleCommandResponse(msg.Payload)
	case protocol.MsgSetCommandStatus:
		err = t.handleSetCommandStatus(msg.Payload)
	case protocol.MsgCommandHistory:
		err = t.handleCommandHistory(msg.Payload)
	case protocol.MsgCommandDevicesList:
		err = t.handleCommandDevicesList(msg.Payload)
	case protocol.MsgDeviceSnapshotLite:
		err = t.handleDeviceSnapshot(msg.Payload)
	case protocol.MsgDeviceTeDelta, protocol.MsgDeviceMoDelta,
		protocol.MsgDeviceSgDelta, protocol.MsgDeviceSplitDelta:
		err = t.handleDeviceDelta(kind, msg.Payload)
	case protocol.MsgInspectReady:
		err = t.handleInspectReady(msg.Payload)
	case protocol.MsgSplitPreview:
		err = t.handleSplitPreview(msg.Payload)
	case protocol.MsgTePointsPage:
		err = t.handleTePointsPage(msg.Payload)
	case protocol.MsgDeviceMarketInfo:
		err = t.handleDeviceMarketInfo(msg.Payload)
	case protocol.MsgServerError:
		err = t.handleServerError(msg.Payload)
	case protocol.MsgAlert:
		err = t.handleAlert(msg.Payload)
	case protocol.MsgMessage:
		err = t.handleServerMessage(msg.Payload)
	default:
		t.log.Warn().Str("kind", kind).Msg("unknown server message kind")
	}

	if err != nil {
		if t.metrics != nil {
			t.metrics.DroppedFrames.Inc()
		}
		t.log.Warn().Err(err).Str("kind", kind).Msg("inbound message not applied")
	}
}

func (t *Terminal) recordInbound(msg *protocol.ServerMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.debugEnabled {
		return
	}
	t.inboundLog = append(t.inboundLog, InboundRecord{
		Ts:   time.Now(),
		Kind: msg.Payload.Kind,
		Data: msg.Payload.Data,
	})
	if len(t.inboundLog) > inboundLogCap {
		t.inboundLog = t.inboundLog[1:]
	}
}

func (t *Terminal) handleServerHello(p protocol.ServerPayload) error {
	var data protocol.ServerHelloData
	if err := p.Decode(&data); err != nil {
		return fmt.Errorf("decode ServerHello: %w", err)
	}
	t.mu.Lock()
	t.protocolVersion = data.ProtocolVersion
	t.lastError = ""
	t.mu.Unlock()

	if t.tokens != nil {
		if token := t.tokens.Token(); token != "" {
			t.log.Info().Msg("sending TokenLogin with cached token")
			if _, err := t.TokenLogin(token); err != nil {
				t.log.Warn().Err(err).Msg("cached token login failed to send")
			}
		}
	}
	return nil
}

func (t *Terminal) handleWelcome(p protocol.ServerPayload) error {
	var data protocol.WelcomeData
	if err := p.Decode(&data); err != nil {
		return fmt.Errorf("decode Welcome: %w", err)
	}
	t.log.Info().Str("server_message", data.ServerMessage).Msg("welcome")
	return nil
}

func (t *Terminal) handleSetUser(p protocol.ServerPayload) error {
	var data protocol.SetUserData
	if err := p.Decode(&data); err != nil {
		return fmt.Errorf("decode SetUser: %w", err)
	}
	accepted := true
	t.mu.Lock()
	t.authAccepted = &accepted
	t.authError = ""
	t.username = data.Username
	t.userID = data.UserID
	t.mu.Unlock()

	t.log.Info().
		Str("username", data.Username).
		Stringer("user_id", data.UserID).
		Msg("authenticated")
	t.resolveLogin(nil)
	return nil
}

// UnsetUser is not necessarily an error: logout produces one too. Any
// existing auth error is kept.
func (t *Terminal) handleUnsetUser() {
	accepted := false
	t.mu.Lock()
	t.authAccepted = &accepted
	t.username = AnonymousUser
	t.userID = protocol.NullUUID
	t.mu.Unlock()

	t.log.Info().Msg("session is anonymous")
	t.resolveLogin(errors.New("login rejected"))
}

func (t *Terminal) handleCommandResponse(p protocol.ServerPayload) error {
	var data protocol.CommandResponseData
	if err := p.Decode(&data); err != nil {
		return fmt.Errorf("decode CommandResponse: %w", err)
	}

	pending, wasPending := t.tracker.Pending(data.RequestUUID)
	latency, ok := t.tracker.Resolve(data.RequestUUID, data.Message)
	if ok && t.metrics != nil {
		t.metrics.CommandLatency.Observe(latency.Seconds())
	}

	// A trailing entry spawns a device tree server-side; resync it
	// immediately so the first deltas land on known devices.
	if wasPending && pending.Kind == protocol.CmdTrailingEntryOrder {
		t.Inspect(data.RequestUUID)
	}
	return nil
}

func (t *Terminal) handleSetCommandStatus(p protocol.ServerPayload) error {
	var data protocol.SetCommandStatusData
	if err := p.Decode(&data); err != nil {
		return fmt.Errorf("decode SetCommandStatus: %w", err)
	}
	if !t.tracker.SetStatus(data.CommandID, data.Status) {
		t.log.Debug().Stringer("command_id", data.CommandID).Msg("status for unknown command")
	}
	return nil
}

func (t *Terminal) handleCommandHistory(p protocol.ServerPayload) error {
	var data protocol.CommandHistoryData
	if err := p.Decode(&data); err != nil {
		return fmt.Errorf("decode CommandHistory: %w", err)
	}
	t.tracker.Import(data.Items)
	return nil
}

func (t *Terminal) handleCommandDevicesList(p protocol.ServerPayload) error {
	var data protocol.CommandDevicesListData
	if err := p.Decode(&data); err != nil {
		return fmt.Errorf("decode CommandDevicesList: %w", err)
	}
	t.tracker.ClearDevices(data.CommandID)
	for _, deviceID := range data.DeviceIDs {
		t.tracker.LinkDevice(data.CommandID, deviceID)
	}
	return nil
}

func (t *Terminal) handleDeviceSnapshot(p protocol.ServerPayload) error {
	var data protocol.DeviceSnapshotLiteData
	if err := p.Decode(&data); err != nil {
		return fmt.Errorf("decode DeviceSnapshotLite: %w", err)
	}
	if err := t.engine.ApplySnapshot(data); err != nil {
		return err
	}
	t.updateDeviceGauge()
	return nil
}

func (t *Terminal) handleDeviceDelta(msgKind string, p protocol.ServerPayload) error {
	deviceKind, ok := device.KindForMessage(msgKind)
	if !ok {
		return fmt.Errorf("no device kind for message %s", msgKind)
	}
	var ev protocol.DeltaEvent
	if err := p.Decode(&ev); err != nil {
		return fmt.Errorf("decode %s: %w", msgKind, err)
	}
	if err := t.engine.ApplyDelta(deviceKind, ev); err != nil {
		// Deltas racing a resync barrier hit unknown devices; the next
		// snapshot supersedes them.
		if errors.Is(err, device.ErrUnknownDevice) {
			t.log.Debug().Err(err).Msg("delta for unknown device")
			return nil
		}
		return err
	}
	t.updateDeviceGauge()
	return nil
}

func (t *Terminal) handleInspectReady(p protocol.ServerPayload) error {
	var data protocol.InspectReadyData
	if err := p.Decode(&data); err != nil {
		return fmt.Errorf("decode InspectReady: %w", err)
	}
	applied, err := t.engine.CompleteInspect(data.CommandID)
	if err != nil {
		t.log.Warn().Err(err).Stringer("command_id", data.CommandID).Msg("inspect completion failed")
	} else {
		t.log.Debug().
			Stringer("command_id", data.CommandID).
			Int("snapshots", applied).
			Msg("inspect complete")
	}
	t.updateDeviceGauge()
	return t.sendSystem(protocol.SystemInspectReadyAck, protocol.InspectReadyAckData{
		CommandID: data.CommandID,
	})
}

func (t *Terminal) handleSplitPreview(p protocol.ServerPayload) error {
	var data protocol.SplitPreviewData
	if err := p.Decode(&data); err != nil {
		return fmt.Errorf("decode SplitPreview: %w", err)
	}
	t.mu.Lock()
	t.previews[data.RequestUUID] = data
	t.mu.Unlock()
	return nil
}

func (t *Terminal) handleTePointsPage(p protocol.ServerPayload) error {
	var data protocol.TePointsPageData
	if err := p.Decode(&data); err != nil {
		return fmt.Errorf("decode TePointsPage: %w", err)
	}
	if err := t.engine.ApplyPointsPage(data); err != nil {
		if errors.Is(err, device.ErrUnknownDevice) {
			t.log.Debug().Err(err).Msg("points page for unknown device")
			return nil
		}
		return err
	}
	return nil
}

func (t *Terminal) handleDeviceMarketInfo(p protocol.ServerPayload) error {
	var data protocol.DeviceMarketInfoResponseData
	if err := p.Decode(&data); err != nil {
		return fmt.Errorf("decode DeviceMarketInfoResponse: %w", err)
	}
	t.mu.Lock()
	t.marketInfo[data.DeviceID] = data
	t.mu.Unlock()
	return nil
}

func (t *Terminal) handleServerError(p protocol.ServerPayload) error {
	var data protocol.ServerErrorData
	if err := p.Decode(&data); err != nil {
		return fmt.Errorf("decode ServerError: %w", err)
	}

	accepted := false
	t.mu.Lock()
	t.authAccepted = &accepted
	t.authError = data.Error
	t.lastError = data.Error
	t.mu.Unlock()

	logEvent := t.log.Warn().Str("error", data.Error)
	if data.RequestUUID != nil {
		logEvent = logEvent.Stringer("request_uuid", *data.RequestUUID)
	}
	logEvent.Msg("server error")

	if auth.IsAuthError(data.Error) && t.tokens != nil {
		if err := t.tokens.Purge(); err != nil {
			t.log.Warn().Err(err).Msg("failed to purge cached token")
		}
	}
	t.resolveLogin(errors.New(data.Error))
	return nil
}

func (t *Terminal) handleAlert(p protocol.ServerPayload) error {
	var data protocol.AlertData
	if err := p.Decode(&data); err != nil {
		return fmt.Errorf("decode Alert: %w", err)
	}
	t.log.Warn().Str("message", data.Message).Msg("server alert")
	return nil
}

func (t *Terminal) handleServerMessage(p protocol.ServerPayload) error {
	var data protocol.MessageData
	if err := p.Decode(&data); err != nil {
		return fmt.Errorf("decode Message: %w", err)
	}
	t.log.Info().Str("message", data.Message).Msg("server message")
	return nil
}

func (t *Terminal) updateDeviceGauge() {
	if t.metrics != nil {
		t.metrics.DevicesTracked.Set(float64(t.engine.Len()))
	}
}

func (t *Terminal) resolveLogin(err error) {
	t.mu.Lock()
	wait := t.loginWait
	t.loginWait = nil
	t.mu.Unlock()
	if wait != nil {
		wait <- err
	}
}
