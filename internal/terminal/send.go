package terminal

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tradterm/tradterm/internal/protocol"
)

// SendCommand issues a user command: registers it in the pending table and
// hands the envelope to the session. Before the handshake completes the
// session queues it; the returned id is valid either way.
func (t *Terminal) SendCommand(kind string, data any, rawText string) (uuid.UUID, error) {
	commandID := t.tracker.Issue(kind, rawText)
	if err := t.session.Send(protocol.User(kind, data, rawText), commandID); err != nil {
		return uuid.Nil, fmt.Errorf("send %s: %w", kind, err)
	}
	t.mu.Lock()
	t.outboundCount++
	t.mu.Unlock()
	return commandID, nil
}

func (t *Terminal) sendSystem(kind string, data any) error {
	if err := t.session.Send(protocol.System(kind, data), uuid.New()); err != nil {
		return fmt.Errorf("send %s: %w", kind, err)
	}
	return nil
}

func (t *Terminal) MarketOrder(cmd protocol.MarketOrderCommand, rawText string) (uuid.UUID, error) {
	return t.SendCommand(protocol.CmdMarketOrder, cmd, rawText)
}

func (t *Terminal) SplitMarketOrder(cmd protocol.SplitMarketOrderCommand, rawText string) (uuid.UUID, error) {
	return t.SendCommand(protocol.CmdSplitMarketOrder, cmd, rawText)
}

func (t *Terminal) LimitOrder(cmd protocol.LimitOrderCommand, rawText string) (uuid.UUID, error) {
	return t.SendCommand(protocol.CmdLimitOrder, cmd, rawText)
}

func (t *Terminal) TrailingEntryOrder(cmd protocol.TrailingEntryOrderCommand, rawText string) (uuid.UUID, error) {
	return t.SendCommand(protocol.CmdTrailingEntryOrder, cmd, rawText)
}

func (t *Terminal) CancelDevice(deviceID uuid.UUID) (uuid.UUID, error) {
	cmd := protocol.CancelDeviceCommand{DeviceID: deviceID}
	return t.SendCommand(protocol.CmdCancelDevice, cmd, "cancel device "+deviceID.String())
}

func (t *Terminal) CancelPosition(symbol string) (uuid.UUID, error) {
	cmd := protocol.CancelPositionCommand{Symbol: symbol}
	return t.SendCommand(protocol.CmdCancelPosition, cmd, "cancel position "+symbol)
}

func (t *Terminal) Echo(message string) (uuid.UUID, error) {
	return t.SendCommand(protocol.CmdEcho, protocol.EchoCommand{Message: message}, "echo "+message)
}

// TokenLogin sends the cached or supplied bearer token for authentication.
// The result arrives asynchronously as SetUser or ServerError; use Login
// to wait for it.
func (t *Terminal) TokenLogin(token string) (uuid.UUID, error) {
	return t.SendCommand(protocol.CmdTokenLogin, protocol.TokenLoginCommand{Token: token}, "token login")
}

func (t *Terminal) PasswordLogin(username, password string) (uuid.UUID, error) {
	cmd := protocol.LoginCommand{Username: username, Password: password}
	return t.SendCommand(protocol.CmdLogin, cmd, "login "+username)
}

func (t *Terminal) Logout(allSessions bool) (uuid.UUID, error) {
	cmd := protocol.LogoutCommand{AllSessions: allSessions}
	return t.SendCommand(protocol.CmdLogout, cmd, "logout")
}

func (t *Terminal) GetPrice(symbol string) (uuid.UUID, error) {
	return t.SendCommand(protocol.CmdGetPrice, protocol.GetPriceCommand{Symbol: symbol}, "price "+symbol)
}

func (t *Terminal) GetBalance() (uuid.UUID, error) {
	return t.SendCommand(protocol.CmdGetBalance, nil, "balance")
}

func (t *Terminal) ListDevices(filter protocol.DeviceFilter) (uuid.UUID, error) {
	cmd := protocol.ListDevicesCommand{Filter: filter}
	return t.SendCommand(protocol.CmdListDevices, cmd, "devices "+string(filter))
}

func (t *Terminal) ListPositions() (uuid.UUID, error) {
	return t.SendCommand(protocol.CmdListPositions, nil, "positions")
}

func (t *Terminal) ListAccounts(showConnections bool) (uuid.UUID, error) {
	cmd := protocol.ListAccountsCommand{ShowConnections: showConnections}
	return t.SendCommand(protocol.CmdListAccounts, cmd, "accounts")
}

func (t *Terminal) GetDeviceTree(deviceID uuid.UUID) (uuid.UUID, error) {
	cmd := protocol.GetDeviceTreeCommand{DeviceID: deviceID}
	return t.SendCommand(protocol.CmdGetDeviceTree, cmd, "tree "+deviceID.String())
}

func (t *Terminal) CancelAllDevices() (uuid.UUID, error) {
	return t.SendCommand(protocol.CmdCancelAllDevices, nil, "cancel all")
}

func (t *Terminal) SetLeverage(symbol string, leverage float64) (uuid.UUID, error) {
	cmd := protocol.SetLeverageCommand{Symbol: symbol, Leverage: leverage}
	return t.SendCommand(protocol.CmdSetLeverage, cmd, fmt.Sprintf("leverage %s %g", symbol, leverage))
}

func (t *Terminal) SetHedgeMode(enabled bool) (uuid.UUID, error) {
	cmd := protocol.SetHedgeModeCommand{Enabled: enabled}
	return t.SendCommand(protocol.CmdSetHedgeMode, cmd, fmt.Sprintf("hedge %t", enabled))
}

// Login sends a TokenLogin and blocks until the server accepts or rejects
// it, or ctx expires. Callers impose the timeout through ctx.
func (t *Terminal) Login(ctx context.Context, token string) error {
	wait := make(chan error, 1)
	t.mu.Lock()
	t.loginWait = wait
	t.mu.Unlock()

	if _, err := t.TokenLogin(token); err != nil {
		t.mu.Lock()
		t.loginWait = nil
		t.mu.Unlock()
		return err
	}

	select {
	case err := <-wait:
		return err
	case <-ctx.Done():
		t.mu.Lock()
		t.loginWait = nil
		t.mu.Unlock()
		return ctx.Err()
	}
}

// Inspect opens a resync barrier for a command's device tree and asks the
// server to stream fresh snapshots.
func (t *Terminal) Inspect(commandID uuid.UUID) {
	t.engine.BeginInspect(commandID)
	if err := t.sendSystem(protocol.SystemInspectStart, protocol.InspectStartData{CommandID: commandID}); err != nil {
		t.log.Warn().Err(err).Stringer("command_id", commandID).Msg("inspect request failed")
	}
}

// SyncDevice requests a fresh snapshot for a single device.
func (t *Terminal) SyncDevice(deviceID uuid.UUID) error {
	return t.sendSystem(protocol.SystemSyncDevice, protocol.SyncDeviceData{DeviceID: deviceID})
}

// CancelCommand asks the server to cancel a running command.
func (t *Terminal) CancelCommand(commandID uuid.UUID) error {
	return t.sendSystem(protocol.SystemCancelCommand, protocol.CancelCommandData{CommandID: commandID})
}

// RequestPointsPage pages through a trailing entry's stored price points.
func (t *Terminal) RequestPointsPage(deviceID uuid.UUID, sinceIndex, maxPoints int) error {
	return t.sendSystem(protocol.SystemTePointsPageRequest, protocol.TePointsPageRequestData{
		DeviceID:   deviceID,
		SinceIndex: sinceIndex,
		MaxPoints:  maxPoints,
	})
}

// ListCommandDevices asks the server which devices a command owns.
func (t *Terminal) ListCommandDevices(commandID uuid.UUID) error {
	return t.sendSystem(protocol.SystemListCommandDevicesRequest, protocol.ListCommandDevicesRequestData{
		CommandID: commandID,
	})
}

// GetDeviceMarketInfo requests market metadata for a device; the response
// lands in the MarketInfo cache.
func (t *Terminal) GetDeviceMarketInfo(deviceID uuid.UUID) error {
	return t.sendSystem(protocol.SystemGetDeviceMarketInfo, protocol.GetDeviceMarketInfoData{DeviceID: deviceID})
}
