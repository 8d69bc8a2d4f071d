package device

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tradterm/tradterm/internal/protocol"
)

var (
	// ErrUnknownDevice means a non-Init delta referenced a device this
	// engine has never seen. That is a protocol contract violation, not a
	// condition to paper over.
	ErrUnknownDevice = errors.New("delta for unknown device")

	// ErrMissingCommand means a new device could not be attributed to a
	// command. Every device must belong to one.
	ErrMissingCommand = errors.New("new device without command id")
)

// Engine owns the device table. Deltas and snapshots must be applied from a
// single dispatch goroutine; reads are safe from anywhere.
type Engine struct {
	log zerolog.Logger

	// OnAttach fires the first time a device is attributed to a command.
	OnAttach func(commandID, deviceID uuid.UUID, kind protocol.DeviceKind)

	mu        sync.RWMutex
	devices   map[uuid.UUID]*Device
	byCommand map[uuid.UUID][]uuid.UUID
	inspects  map[uuid.UUID]*inspectEpoch
}

// inspectEpoch buffers snapshots that arrive between InspectStart and
// InspectReady. Deltas from that span belong to the previous observation
// epoch and are discarded; the snapshots are applied once the barrier
// completes and the stale local state has been cleared.
type inspectEpoch struct {
	snapshots []protocol.DeviceSnapshotLiteData
}

// NewEngine creates an empty engine.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{
		log:       logger.With().Str("component", "device").Logger(),
		devices:   make(map[uuid.UUID]*Device),
		byCommand: make(map[uuid.UUID][]uuid.UUID),
		inspects:  make(map[uuid.UUID]*inspectEpoch),
	}
}

// BeginInspect opens a snapshot barrier for a command. Until the matching
// CompleteInspect, live deltas for the command's devices are discarded and
// snapshots are buffered.
func (e *Engine) BeginInspect(commandID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inspects[commandID] = &inspectEpoch{}
	e.log.Debug().Str("command_id", commandID.String()).Msg("inspect barrier opened")
}

// InspectPending reports whether a barrier is open for the command.
func (e *Engine) InspectPending(commandID uuid.UUID) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.inspects[commandID]
	return ok
}

// CompleteInspect closes the barrier: the command's locally cached devices
// are dropped, the buffered snapshots become the authoritative state, and
// deltas apply normally from here on. Returns the number of snapshots
// applied.
func (e *Engine) CompleteInspect(commandID uuid.UUID) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	epoch, ok := e.inspects[commandID]
	if !ok {
		e.log.Warn().Str("command_id", commandID.String()).Msg("inspect ready without open barrier")
		return 0, nil
	}
	delete(e.inspects, commandID)

	e.clearCommandLocked(commandID)

	for _, snap := range epoch.snapshots {
		if err := e.applySnapshotLocked(snap); err != nil {
			return 0, fmt.Errorf("apply buffered snapshot for device %s: %w", snap.DeviceID, err)
		}
	}
	e.log.Debug().
		Str("command_id", commandID.String()).
		Int("snapshots", len(epoch.snapshots)).
		Msg("inspect barrier completed")
	return len(epoch.snapshots), nil
}

// ClearCommand drops all local state for a command's device tree.
func (e *Engine) ClearCommand(commandID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clearCommandLocked(commandID)
}

func (e *Engine) clearCommandLocked(commandID uuid.UUID) {
	for _, id := range e.byCommand[commandID] {
		delete(e.devices, id)
	}
	delete(e.byCommand, commandID)
}

// ApplySnapshot incorporates a full device image. While an inspect barrier
// is open for the owning command the snapshot is buffered instead, so the
// stale state can be cleared first.
func (e *Engine) ApplySnapshot(data protocol.DeviceSnapshotLiteData) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if epoch, ok := e.inspects[data.AssociatedCommandID]; ok {
		epoch.snapshots = append(epoch.snapshots, data)
		return nil
	}
	return e.applySnapshotLocked(data)
}

func (e *Engine) applySnapshotLocked(data protocol.DeviceSnapshotLiteData) error {
	if data.AssociatedCommandID == uuid.Nil {
		return fmt.Errorf("snapshot for device %s: %w", data.DeviceID, ErrMissingCommand)
	}
	d, err := e.ensureDeviceLocked(data.DeviceID, data.Snapshot.Kind, data.AssociatedCommandID)
	if err != nil {
		return err
	}

	d.Complete = data.Complete
	d.Failed = data.Failed
	d.Canceled = data.Canceled
	d.AwaitingChildren = data.AwaitingChildren

	// Topology merges rather than replaces: a snapshot may reference
	// children the engine has not seen yet.
	if data.ParentDevice != nil {
		p := *data.ParentDevice
		d.Parent = &p
		if parent, ok := e.devices[p]; ok && !parent.hasChild(d.ID) {
			parent.Children = append(parent.Children, d.ID)
		}
	}
	for _, childID := range data.ChildrenDevices {
		if !d.hasChild(childID) {
			d.Children = append(d.Children, childID)
		}
		if child, ok := e.devices[childID]; ok {
			id := d.ID
			child.Parent = &id
		}
	}

	switch data.Snapshot.Kind {
	case protocol.KindTrailingEntry:
		var s protocol.TrailingEntrySnapshot
		if err := data.Snapshot.Decode(&s); err != nil {
			return fmt.Errorf("decode trailing entry snapshot: %w", err)
		}
		applyTeSnapshot(d.Te, s)
	case protocol.KindMarketOrder:
		var s protocol.MarketOrderSnapshot
		if err := data.Snapshot.Decode(&s); err != nil {
			return fmt.Errorf("decode market order snapshot: %w", err)
		}
		applyMoSnapshot(d.Mo, s)
	case protocol.KindStopGuard:
		var s protocol.StopGuardSnapshot
		if err := data.Snapshot.Decode(&s); err != nil {
			return fmt.Errorf("decode stop guard snapshot: %w", err)
		}
		applySgSnapshot(d.Sg, s)
	case protocol.KindSplit:
		var s protocol.SplitSnapshot
		if err := data.Snapshot.Decode(&s); err != nil {
			return fmt.Errorf("decode split snapshot: %w", err)
		}
		applySplitSnapshot(d.Split, s)
	default:
		return fmt.Errorf("snapshot with unknown device kind %q", data.Snapshot.Kind)
	}
	return nil
}

// ApplyDelta incorporates one incremental event for a device of the given
// kind. Init deltas may create the device; anything else requires it to
// exist already.
func (e *Engine) ApplyDelta(kind protocol.DeviceKind, ev protocol.DeltaEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, exists := e.devices[ev.DeviceID]

	var commandID uuid.UUID
	var parent *uuid.UUID
	if ev.Delta.Kind == protocol.DeltaInit {
		var probe struct {
			CommandID    uuid.UUID  `json:"command_id"`
			ParentDevice *uuid.UUID `json:"parent_device"`
		}
		if err := ev.Delta.Decode(&probe); err != nil {
			return fmt.Errorf("decode init delta for device %s: %w", ev.DeviceID, err)
		}
		commandID = probe.CommandID
		parent = probe.ParentDevice
	}

	if !exists {
		if ev.Delta.Kind != protocol.DeltaInit {
			return fmt.Errorf("%w: device %s, delta %s", ErrUnknownDevice, ev.DeviceID, ev.Delta.Kind)
		}
		if commandID == uuid.Nil {
			return fmt.Errorf("device %s: %w", ev.DeviceID, ErrMissingCommand)
		}
	} else {
		commandID = d.CommandID
	}

	// Deltas observed while the barrier is open belong to the previous
	// epoch; the buffered snapshots supersede them.
	if _, pending := e.inspects[commandID]; pending {
		e.log.Debug().
			Str("device_id", ev.DeviceID.String()).
			Str("delta", ev.Delta.Kind).
			Msg("pre-barrier delta discarded")
		return nil
	}

	if !exists {
		var err error
		d, err = e.ensureDeviceLocked(ev.DeviceID, kind, commandID)
		if err != nil {
			return err
		}
	}

	if parent != nil {
		e.linkLocked(*parent, d.ID)
	}

	switch kind {
	case protocol.KindTrailingEntry:
		return e.applyTeDelta(d, ev)
	case protocol.KindMarketOrder:
		return e.applyMoDelta(d, ev)
	case protocol.KindStopGuard:
		return e.applySgDelta(d, ev)
	case protocol.KindSplit:
		return e.applySplitDelta(d, ev)
	default:
		return fmt.Errorf("delta for unknown device kind %q", kind)
	}
}

func (e *Engine) ensureDeviceLocked(id uuid.UUID, kind protocol.DeviceKind, commandID uuid.UUID) (*Device, error) {
	if d, ok := e.devices[id]; ok {
		if d.Kind != kind {
			return nil, fmt.Errorf("device %s is %s, event says %s", id, d.Kind, kind)
		}
		return d, nil
	}
	if commandID == uuid.Nil {
		return nil, fmt.Errorf("device %s: %w", id, ErrMissingCommand)
	}
	d := newDevice(id, kind, commandID)
	e.devices[id] = d
	e.byCommand[commandID] = append(e.byCommand[commandID], id)
	if e.OnAttach != nil {
		e.OnAttach(commandID, id, kind)
	}
	return d, nil
}

// linkLocked records the parent/child edge on both ends. Links are
// set-valued; an existing edge is left alone. An unknown parent defers the
// edge until its own Init or snapshot establishes it.
func (e *Engine) linkLocked(parentID, childID uuid.UUID) {
	parent, ok := e.devices[parentID]
	child, okChild := e.devices[childID]
	if !ok || !okChild {
		return
	}
	if !parent.hasChild(childID) {
		parent.Children = append(parent.Children, childID)
	}
	p := parentID
	child.Parent = &p
}

// ApplyPointsPage feeds one page of persisted price points into a trailing
// entry's window. Pages are addressed by absolute index, so replayed or
// overlapping pages land in place.
func (e *Engine) ApplyPointsPage(data protocol.TePointsPageData) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	dev, ok := e.devices[data.DeviceID]
	if !ok {
		return fmt.Errorf("points page: %w: device %s", ErrUnknownDevice, data.DeviceID)
	}
	if dev.Te == nil {
		return fmt.Errorf("points page for %s device %s", dev.Kind, data.DeviceID)
	}
	for i, price := range data.Points {
		dev.Te.Window.Apply(data.StartIndex+i, price)
	}
	if data.TotalLen > dev.Te.Window.TotalPoints {
		dev.Te.Window.TotalPoints = data.TotalLen
	}
	return nil
}

// Device returns an independent copy of one device.
func (e *Engine) Device(id uuid.UUID) (Device, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.devices[id]
	if !ok {
		return Device{}, false
	}
	return d.Clone(), true
}

// Devices returns copies of every known device.
func (e *Engine) Devices() []Device {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Device, 0, len(e.devices))
	for _, d := range e.devices {
		out = append(out, d.Clone())
	}
	return out
}

// CommandDevices returns the ids of a command's devices in first-seen
// order.
func (e *Engine) CommandDevices(commandID uuid.UUID) []uuid.UUID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := e.byCommand[commandID]
	out := make([]uuid.UUID, len(ids))
	copy(out, ids)
	return out
}

// Len returns the number of known devices.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.devices)
}

// KindForMessage maps a delta message kind to its device kind.
func KindForMessage(msgKind string) (protocol.DeviceKind, bool) {
	switch msgKind {
	case protocol.MsgDeviceTeDelta:
		return protocol.KindTrailingEntry, true
	case protocol.MsgDeviceMoDelta:
		return protocol.KindMarketOrder, true
	case protocol.MsgDeviceSgDelta:
		return protocol.KindStopGuard, true
	case protocol.MsgDeviceSplitDelta:
		return protocol.KindSplit, true
	default:
		return "", false
	}
}
