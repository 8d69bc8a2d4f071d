// Package command correlates issued commands with their acknowledgements
// and keeps the append-only command history.
package command

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tradterm/tradterm/internal/protocol"
)

// Pending is a command awaiting its CommandResponse.
type Pending struct {
	CommandID uuid.UUID
	Kind      string
	Text      string
	SentAt    time.Time
}

// HistoryEntry is one record of the append-only command history. Entries
// are never deleted, only re-statused.
type HistoryEntry struct {
	CommandID  uuid.UUID
	Kind       string
	Text       string
	Status     protocol.CommandStatus
	CreatedAt  time.Time
	AckLatency time.Duration
	Response   string
}

// Tracker owns the pending table, the history, and the command-to-device
// association. Safe for concurrent use.
type Tracker struct {
	log zerolog.Logger

	mu      sync.RWMutex
	pending map[uuid.UUID]*Pending
	history []*HistoryEntry
	byID    map[uuid.UUID]*HistoryEntry
	devices map[uuid.UUID]map[uuid.UUID]struct{}
	order   map[uuid.UUID][]uuid.UUID
}

// NewTracker creates an empty tracker.
func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{
		log:     logger.With().Str("component", "command").Logger(),
		pending: make(map[uuid.UUID]*Pending),
		byID:    make(map[uuid.UUID]*HistoryEntry),
		devices: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		order:   make(map[uuid.UUID][]uuid.UUID),
	}
}

// Issue registers a new outbound command and returns its generated
// correlation id. The caller is responsible for actually sending it.
func (t *Tracker) Issue(kind, text string) uuid.UUID {
	id := uuid.New()
	t.mu.Lock()
	t.pending[id] = &Pending{
		CommandID: id,
		Kind:      kind,
		Text:      text,
		SentAt:    time.Now(),
	}
	t.mu.Unlock()
	return id
}

// Resolve matches a CommandResponse to its pending command, moves it into
// history with the ack latency, and returns the latency. A response with no
// pending entry is tolerated as a late or duplicate ack.
func (t *Tracker) Resolve(requestID uuid.UUID, message string) (time.Duration, bool) {
	t.mu.Lock()
	p, ok := t.pending[requestID]
	if !ok {
		t.mu.Unlock()
		t.log.Debug().
			Str("request_uuid", requestID.String()).
			Str("message", message).
			Msg("response without pending command, likely late or duplicate ack")
		return 0, false
	}
	delete(t.pending, requestID)

	latency := time.Since(p.SentAt)
	if latency < 0 {
		latency = 0
	}
	entry := &HistoryEntry{
		CommandID:  p.CommandID,
		Kind:       p.Kind,
		Text:       p.Text,
		Status:     protocol.CommandRunning,
		CreatedAt:  p.SentAt,
		AckLatency: latency,
		Response:   message,
	}
	t.history = append(t.history, entry)
	t.byID[entry.CommandID] = entry
	t.mu.Unlock()

	t.log.Debug().
		Str("command_id", requestID.String()).
		Dur("latency", latency).
		Msg("command acknowledged")
	return latency, true
}

// SetStatus re-statuses a history entry. Unknown ids are ignored; they may
// belong to a previous session.
func (t *Tracker) SetStatus(commandID uuid.UUID, status protocol.CommandStatus) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.byID[commandID]
	if !ok {
		t.log.Debug().
			Str("command_id", commandID.String()).
			Str("status", string(status)).
			Msg("status for unknown command ignored")
		return false
	}
	entry.Status = status
	return true
}

// Import merges server-owned history items. Existing entries keep their
// recorded latency; only the status follows the server.
func (t *Tracker) Import(items []protocol.CommandHistoryItem) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, it := range items {
		if entry, ok := t.byID[it.CommandID]; ok {
			entry.Status = it.Status
			continue
		}
		entry := &HistoryEntry{
			CommandID: it.CommandID,
			Kind:      it.Name,
			Text:      it.Text,
			Status:    it.Status,
			CreatedAt: time.Now(),
		}
		t.history = append(t.history, entry)
		t.byID[it.CommandID] = entry
	}
}

// LinkDevice records that a device belongs to a command. Linking is
// set-valued; relinking the same device is a no-op.
func (t *Tracker) LinkDevice(commandID, deviceID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.devices[commandID]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		t.devices[commandID] = set
	}
	if _, dup := set[deviceID]; dup {
		return
	}
	set[deviceID] = struct{}{}
	t.order[commandID] = append(t.order[commandID], deviceID)
}

// Devices returns the ids of the devices a command spawned, in first-seen
// order.
func (t *Tracker) Devices(commandID uuid.UUID) []uuid.UUID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := t.order[commandID]
	out := make([]uuid.UUID, len(ids))
	copy(out, ids)
	return out
}

// ClearDevices forgets a command's device association. Used when the
// snapshot barrier reestablishes the authoritative device set.
func (t *Tracker) ClearDevices(commandID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.devices, commandID)
	delete(t.order, commandID)
}

// Pending returns a copy of the pending table entry, if present.
func (t *Tracker) Pending(commandID uuid.UUID) (Pending, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.pending[commandID]
	if !ok {
		return Pending{}, false
	}
	return *p, true
}

// PendingCount returns the number of unacknowledged commands.
func (t *Tracker) PendingCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.pending)
}

// History returns a snapshot of the history in append order.
func (t *Tracker) History() []HistoryEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]HistoryEntry, len(t.history))
	for i, e := range t.history {
		out[i] = *e
	}
	return out
}

// Entry returns the history entry for a command id.
func (t *Tracker) Entry(commandID uuid.UUID) (HistoryEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.byID[commandID]
	if !ok {
		return HistoryEntry{}, false
	}
	return *e, true
}
