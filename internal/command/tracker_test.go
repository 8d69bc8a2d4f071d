package command

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradterm/tradterm/internal/protocol"
)

func TestTracker_RoundTrip(t *testing.T) {
	tr := NewTracker(zerolog.Nop())

	id := tr.Issue("MarketOrder", "buy 100 btc")
	assert.Equal(t, 1, tr.PendingCount())

	p, ok := tr.Pending(id)
	require.True(t, ok)
	assert.Equal(t, "MarketOrder", p.Kind)

	latency, ok := tr.Resolve(id, "order accepted")
	require.True(t, ok)
	assert.GreaterOrEqual(t, latency, time.Duration(0))
	assert.Equal(t, 0, tr.PendingCount())

	entry, ok := tr.Entry(id)
	require.True(t, ok)
	assert.Equal(t, protocol.CommandRunning, entry.Status)
	assert.Equal(t, "order accepted", entry.Response)
	assert.GreaterOrEqual(t, entry.AckLatency, time.Duration(0))
}

func TestTracker_LateAckTolerated(t *testing.T) {
	tr := NewTracker(zerolog.Nop())

	_, ok := tr.Resolve(uuid.New(), "stale ack")
	assert.False(t, ok)
	assert.Empty(t, tr.History())

	// A duplicate ack after resolution is equally harmless.
	id := tr.Issue("Echo", "echo hi")
	_, ok = tr.Resolve(id, "hi")
	require.True(t, ok)
	_, ok = tr.Resolve(id, "hi")
	assert.False(t, ok)
	assert.Len(t, tr.History(), 1)
}

func TestTracker_SetStatus(t *testing.T) {
	tr := NewTracker(zerolog.Nop())

	id := tr.Issue("TrailingEntryOrder", "te long btc")
	_, ok := tr.Resolve(id, "running")
	require.True(t, ok)

	assert.True(t, tr.SetStatus(id, protocol.CommandSucceeded))
	entry, _ := tr.Entry(id)
	assert.Equal(t, protocol.CommandSucceeded, entry.Status)

	// Unknown ids may predate this session.
	assert.False(t, tr.SetStatus(uuid.New(), protocol.CommandFailed))
}

func TestTracker_HistoryIsAppendOnly(t *testing.T) {
	tr := NewTracker(zerolog.Nop())

	first := tr.Issue("Echo", "one")
	second := tr.Issue("Echo", "two")
	tr.Resolve(first, "ok")
	tr.Resolve(second, "ok")
	tr.SetStatus(first, protocol.CommandFailed)

	history := tr.History()
	require.Len(t, history, 2)
	assert.Equal(t, first, history[0].CommandID)
	assert.Equal(t, second, history[1].CommandID)
	assert.Equal(t, protocol.CommandFailed, history[0].Status)
}

func TestTracker_Import(t *testing.T) {
	tr := NewTracker(zerolog.Nop())

	local := tr.Issue("Echo", "local")
	_, ok := tr.Resolve(local, "ok")
	require.True(t, ok)

	foreign := uuid.New()
	tr.Import([]protocol.CommandHistoryItem{
		{CommandID: local, Name: "Echo", Text: "local", Status: protocol.CommandSucceeded},
		{CommandID: foreign, Name: "MarketOrder", Text: "buy", Status: protocol.CommandRunning},
	})

	history := tr.History()
	require.Len(t, history, 2)

	entry, _ := tr.Entry(local)
	assert.Equal(t, protocol.CommandSucceeded, entry.Status)
	assert.Equal(t, "ok", entry.Response, "import must not clobber the local record")

	entry, okEntry := tr.Entry(foreign)
	require.True(t, okEntry)
	assert.Equal(t, protocol.CommandRunning, entry.Status)
}

func TestTracker_DeviceLinks(t *testing.T) {
	tr := NewTracker(zerolog.Nop())

	cmd := uuid.New()
	d1 := uuid.New()
	d2 := uuid.New()

	tr.LinkDevice(cmd, d1)
	tr.LinkDevice(cmd, d2)
	tr.LinkDevice(cmd, d1) // relink is a no-op

	assert.Equal(t, []uuid.UUID{d1, d2}, tr.Devices(cmd))

	tr.ClearDevices(cmd)
	assert.Empty(t, tr.Devices(cmd))
}
