// Package device reconstructs current device state from the gateway's
// snapshot and delta stream. Devices are server-owned; this package only
// mirrors them, tolerating duplicate deltas and snapshot-before-topology
// arrival orders.
package device

import (
	"github.com/google/uuid"

	"github.com/tradterm/tradterm/internal/protocol"
)

// Device is the common envelope around one server-owned device. Exactly one
// of the kind-specific state pointers is non-nil, matching Kind.
type Device struct {
	ID        uuid.UUID
	Kind      protocol.DeviceKind
	CommandID uuid.UUID

	Parent   *uuid.UUID
	Children []uuid.UUID

	Complete         bool
	Failed           bool
	Canceled         bool
	AwaitingChildren bool
	FailureReason    *string

	Te    *TrailingEntryState
	Mo    *MarketOrderState
	Sg    *StopGuardState
	Split *SplitState
}

// TrailingEntryState is the reconstructed state of a trailing entry device.
type TrailingEntryState struct {
	Symbol            string
	MarketContext     protocol.MarketContext
	PositionSide      protocol.PositionSide
	ActivationPrice   float64
	JumpFracThreshold float64
	StopLoss          float64
	RiskAmount        float64

	Phase     protocol.TrailingEntryPhase
	Peak      float64
	PeakIndex int

	PositionSize          float64
	ActualActivationPrice float64
	BuyOrSellPrice        float64
	Completed             bool
	Cancelled             bool
	Succeeded             bool
	StopLossHit           bool

	Lifecycle protocol.TrailingEntryLifecycle

	Window            PointsWindow
	StartTriggerIndex *int
	EndTriggerIndex   *int
}

// MarketOrderState is the reconstructed state of a market order device.
type MarketOrderState struct {
	MarketContext protocol.MarketContext
	Symbol        string
	OrderSide     protocol.OrderSide
	Quantity      float64
	PositionSide  protocol.PositionSide
	Price         float64

	Status        protocol.MarketOrderStatus
	RemoteID      *int64
	ClientOrderID *string
}

// StopGuardState is the reconstructed state of a stop guard device.
type StopGuardState struct {
	Symbol        string
	MarketContext protocol.MarketContext
	PositionSide  protocol.PositionSide
	StopPrice     float64

	CoveredQty     float64
	TargetCoverage float64

	Status        protocol.StopGuardStatus
	ClientOrderID *string
	RemoteOrderID *int64

	// TopupSeq strictly increases per submission or replacement.
	// Acknowledgements carrying an older seq are stale and discarded.
	TopupSeq               uint64
	SentAt                 *int64
	LastUpdateSeenAt       *int64
	LastStatusCheckAt      *int64
	LastReplacementAt      *int64
	PendingReplacementFrom *string
}

// SplitState is the reconstructed state of a split device. The split is
// done once the device's children set reaches ExpectedChildren.
type SplitState struct {
	Symbol           string
	Quantity         float64
	Price            float64
	ExpectedChildren int
}

func newDevice(id uuid.UUID, kind protocol.DeviceKind, commandID uuid.UUID) *Device {
	d := &Device{
		ID:        id,
		Kind:      kind,
		CommandID: commandID,
	}
	switch kind {
	case protocol.KindTrailingEntry:
		d.Te = &TrailingEntryState{
			MarketContext: protocol.MarketContext{},
			PositionSide:  protocol.Long,
			Phase:         protocol.PhaseInitial,
			Lifecycle:     protocol.LifecycleRunning,
		}
	case protocol.KindMarketOrder:
		d.Mo = &MarketOrderState{
			MarketContext: protocol.MarketContext{},
			OrderSide:     protocol.Buy,
			PositionSide:  protocol.Long,
			Status:        protocol.MoNotYetSent,
		}
	case protocol.KindStopGuard:
		d.Sg = &StopGuardState{
			MarketContext: protocol.MarketContext{},
			PositionSide:  protocol.Long,
			Status:        protocol.SgNotYetSent,
		}
	case protocol.KindSplit:
		d.Split = &SplitState{}
	}
	return d
}

// Clone returns an independent copy safe to hand across goroutines.
func (d *Device) Clone() Device {
	out := *d
	out.Children = append([]uuid.UUID(nil), d.Children...)
	if d.Parent != nil {
		p := *d.Parent
		out.Parent = &p
	}
	if d.FailureReason != nil {
		r := *d.FailureReason
		out.FailureReason = &r
	}
	if d.Te != nil {
		te := *d.Te
		te.Window = d.Te.Window.Clone()
		out.Te = &te
	}
	if d.Mo != nil {
		mo := *d.Mo
		out.Mo = &mo
	}
	if d.Sg != nil {
		sg := *d.Sg
		out.Sg = &sg
	}
	if d.Split != nil {
		sp := *d.Split
		out.Split = &sp
	}
	return out
}

// hasChild reports whether childID is already linked.
func (d *Device) hasChild(childID uuid.UUID) bool {
	for _, id := range d.Children {
		if id == childID {
			return true
		}
	}
	return false
}
