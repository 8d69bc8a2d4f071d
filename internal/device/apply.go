package device

import (
	"fmt"

	"github.com/tradterm/tradterm/internal/protocol"
)

func (e *Engine) applyTeDelta(d *Device, ev protocol.DeltaEvent) error {
	te := d.Te
	switch ev.Delta.Kind {
	case protocol.DeltaInit:
		var data protocol.TeInitData
		if err := ev.Delta.Decode(&data); err != nil {
			return fmt.Errorf("decode te init: %w", err)
		}
		te.Symbol = data.Symbol
		te.MarketContext = data.MarketContext
		te.PositionSide = data.PositionSide
		te.ActivationPrice = data.ActivationPrice
		te.JumpFracThreshold = data.JumpFracThreshold
		te.StopLoss = data.StopLoss
		te.RiskAmount = data.RiskAmount
		te.Phase = data.Phase
		te.Peak = data.Peak
		te.PeakIndex = data.PeakIndex
		te.Window.BaseIndex = data.BaseIndex
		te.Window.TotalPoints = data.TotalPoints
		if data.Lifecycle != "" {
			te.Lifecycle = data.Lifecycle
		}

	case protocol.DeltaPointsInit:
		var data protocol.PointsInitData
		if err := ev.Delta.Decode(&data); err != nil {
			return fmt.Errorf("decode points init: %w", err)
		}
		te.Window.Init(data.StartIdx, data.Points, data.TotalLen)

	case protocol.DeltaPoint:
		var data protocol.PointData
		if err := ev.Delta.Decode(&data); err != nil {
			return fmt.Errorf("decode point: %w", err)
		}
		te.Window.Apply(data.Idx, data.Price)

	case protocol.DeltaPeak:
		var data protocol.PeakData
		if err := ev.Delta.Decode(&data); err != nil {
			return fmt.Errorf("decode peak: %w", err)
		}
		te.Peak = data.Price
		if data.Index != nil {
			te.PeakIndex = *data.Index
		}

	case protocol.DeltaPhase:
		var data protocol.PhaseData
		if err := ev.Delta.Decode(&data); err != nil {
			return fmt.Errorf("decode phase: %w", err)
		}
		// Triggered is one-way; a regression to Initial is stale.
		if te.Phase == protocol.PhaseTriggered && data.To != protocol.PhaseTriggered {
			e.log.Debug().
				Str("device_id", d.ID.String()).
				Str("to", string(data.To)).
				Msg("phase regression ignored")
			return nil
		}
		te.Phase = data.To

	case protocol.DeltaLifecycle:
		var data protocol.LifecycleData
		if err := ev.Delta.Decode(&data); err != nil {
			return fmt.Errorf("decode lifecycle: %w", err)
		}
		// Lifecycle only moves forward.
		if protocol.LifecycleRank(data.Status) < protocol.LifecycleRank(te.Lifecycle) {
			e.log.Debug().
				Str("device_id", d.ID.String()).
				Str("from", string(te.Lifecycle)).
				Str("to", string(data.Status)).
				Msg("lifecycle regression ignored")
			return nil
		}
		te.Lifecycle = data.Status
		if data.Status == protocol.LifecycleCompleted {
			te.Completed = true
		}

	case protocol.DeltaReview:
		var data protocol.ReviewData
		if err := ev.Delta.Decode(&data); err != nil {
			return fmt.Errorf("decode review: %w", err)
		}
		if data.StartTriggerIndex != nil {
			te.StartTriggerIndex = data.StartTriggerIndex
		}
		if data.EndTriggerIndex != nil {
			te.EndTriggerIndex = data.EndTriggerIndex
		}

	case protocol.DeltaTrailingStop, protocol.DeltaOrderUpdate:
		// presentation hints only, no state to reconstruct

	default:
		e.log.Debug().Str("delta", ev.Delta.Kind).Msg("unhandled trailing entry delta")
	}
	return nil
}

func (e *Engine) applyMoDelta(d *Device, ev protocol.DeltaEvent) error {
	mo := d.Mo
	switch ev.Delta.Kind {
	case protocol.DeltaInit:
		var data protocol.MoInitData
		if err := ev.Delta.Decode(&data); err != nil {
			return fmt.Errorf("decode mo init: %w", err)
		}
		mo.MarketContext = data.MarketContext
		mo.Symbol = data.Symbol
		mo.OrderSide = data.OrderSide
		mo.PositionSide = data.PositionSide
		mo.Quantity = data.Quantity
		mo.Price = data.Price
		mo.Status = data.Status
		mo.ClientOrderID = data.ClientOrderID

	case protocol.DeltaSubmitted:
		if mo.Status.Terminal() {
			return nil
		}
		mo.Status = protocol.MoAwaitingFilling

	case protocol.DeltaPartiallyFilled:
		if mo.Status.Terminal() {
			return nil
		}
		var data protocol.MoFillData
		if err := ev.Delta.Decode(&data); err != nil {
			return fmt.Errorf("decode partial fill: %w", err)
		}
		mo.Status = protocol.MoPartiallyFilled
		// Absent values never null out a known price or quantity.
		if data.Price != nil {
			mo.Price = *data.Price
		}
		if data.Quantity != nil {
			mo.Quantity = *data.Quantity
		}

	case protocol.DeltaFilled:
		if mo.Status.Terminal() && mo.Status != protocol.MoFilled {
			return nil
		}
		var data protocol.MoFillData
		if err := ev.Delta.Decode(&data); err != nil {
			return fmt.Errorf("decode fill: %w", err)
		}
		mo.Status = protocol.MoFilled
		if data.Price != nil {
			mo.Price = *data.Price
		}
		if data.Quantity != nil {
			mo.Quantity = *data.Quantity
		}

	case protocol.DeltaCanceled:
		if mo.Status.Terminal() && mo.Status != protocol.MoCanceled {
			return nil
		}
		mo.Status = protocol.MoCanceled
		d.FailureReason = nil

	case protocol.DeltaRejected:
		if mo.Status.Terminal() && mo.Status != protocol.MoRejected {
			return nil
		}
		var data protocol.RejectedData
		if err := ev.Delta.Decode(&data); err != nil {
			return fmt.Errorf("decode rejection: %w", err)
		}
		mo.Status = protocol.MoRejected
		d.FailureReason = data.Reason

	default:
		e.log.Debug().Str("delta", ev.Delta.Kind).Msg("unhandled market order delta")
	}
	return nil
}

func (e *Engine) applySgDelta(d *Device, ev protocol.DeltaEvent) error {
	sg := d.Sg
	switch ev.Delta.Kind {
	case protocol.DeltaInit:
		var data protocol.SgInitData
		if err := ev.Delta.Decode(&data); err != nil {
			return fmt.Errorf("decode sg init: %w", err)
		}
		sg.Symbol = data.Symbol
		sg.MarketContext = data.MarketContext
		sg.PositionSide = data.PositionSide
		sg.StopPrice = data.StopPrice
		sg.CoveredQty = data.CoveredQty
		sg.TargetCoverage = data.TargetCoverage
		sg.ClientOrderID = data.ClientOrderID
		sg.RemoteOrderID = data.RemoteOrderID
		sg.TopupSeq = data.TopupSeq
		sg.Status = data.Status
		sg.SentAt = data.SentAt
		sg.LastUpdateSeenAt = data.LastUpdateSeenAt
		sg.LastStatusCheckAt = data.LastStatusCheckAt
		sg.LastReplacementAt = data.LastReplacementAt

	case protocol.DeltaSubmitted:
		var data protocol.SgSubmittedData
		if err := ev.Delta.Decode(&data); err != nil {
			return fmt.Errorf("decode sg submitted: %w", err)
		}
		if data.TopupSeq <= sg.TopupSeq && sg.TopupSeq != 0 {
			e.log.Debug().
				Str("device_id", d.ID.String()).
				Uint64("seen", sg.TopupSeq).
				Uint64("got", data.TopupSeq).
				Msg("stale submission ack discarded")
			return nil
		}
		orderID := data.OrderID
		sg.ClientOrderID = &orderID
		sg.CoveredQty = data.Quantity
		sg.TargetCoverage = data.Quantity
		sg.TopupSeq = data.TopupSeq
		sg.Status = protocol.SgWorking
		if ev.Ts != 0 {
			ts := ev.Ts
			sg.SentAt = &ts
		}

	case protocol.DeltaReplaced:
		var data protocol.SgReplacedData
		if err := ev.Delta.Decode(&data); err != nil {
			return fmt.Errorf("decode sg replaced: %w", err)
		}
		if data.TopupSeq <= sg.TopupSeq {
			e.log.Debug().
				Str("device_id", d.ID.String()).
				Uint64("seen", sg.TopupSeq).
				Uint64("got", data.TopupSeq).
				Msg("stale replacement ack discarded")
			return nil
		}
		orderID := data.NewOrderID
		sg.PendingReplacementFrom = sg.ClientOrderID
		sg.ClientOrderID = &orderID
		sg.CoveredQty = data.NewQuantity
		sg.TargetCoverage = data.NewQuantity
		sg.TopupSeq = data.TopupSeq
		sg.Status = protocol.SgWorking
		if ev.Ts != 0 {
			ts := ev.Ts
			sg.LastReplacementAt = &ts
		}

	case protocol.DeltaPartiallyFilled:
		sg.Status = protocol.SgTriggered
		if ev.Ts != 0 {
			ts := ev.Ts
			sg.LastUpdateSeenAt = &ts
		}

	case protocol.DeltaFilled:
		sg.Status = protocol.SgFlat
		sg.CoveredQty = 0
		if ev.Ts != 0 {
			ts := ev.Ts
			sg.LastUpdateSeenAt = &ts
		}

	case protocol.DeltaCanceled:
		sg.Status = protocol.SgCanceled
		sg.PendingReplacementFrom = nil
		d.FailureReason = nil
		if ev.Ts != 0 {
			ts := ev.Ts
			sg.LastUpdateSeenAt = &ts
		}

	case protocol.DeltaRejected:
		var data protocol.RejectedData
		if err := ev.Delta.Decode(&data); err != nil {
			return fmt.Errorf("decode sg rejection: %w", err)
		}
		sg.Status = protocol.SgRejected
		d.FailureReason = data.Reason
		if ev.Ts != 0 {
			ts := ev.Ts
			sg.LastUpdateSeenAt = &ts
		}

	case protocol.DeltaCoverage:
		var data protocol.SgCoverageData
		if err := ev.Delta.Decode(&data); err != nil {
			return fmt.Errorf("decode sg coverage: %w", err)
		}
		if data.TopupSeq < sg.TopupSeq {
			return nil
		}
		sg.CoveredQty = data.CoveredQty
		sg.TargetCoverage = data.TargetCoverage
		sg.TopupSeq = data.TopupSeq

	case protocol.DeltaThreshold, protocol.DeltaTriggered, protocol.DeltaOrderUpdate:
		// reconciliation detail the client does not track

	default:
		e.log.Debug().Str("delta", ev.Delta.Kind).Msg("unhandled stop guard delta")
	}
	return nil
}

func (e *Engine) applySplitDelta(d *Device, ev protocol.DeltaEvent) error {
	sp := d.Split
	switch ev.Delta.Kind {
	case protocol.DeltaInit:
		var data protocol.SplitInitData
		if err := ev.Delta.Decode(&data); err != nil {
			return fmt.Errorf("decode split init: %w", err)
		}
		sp.Symbol = data.Symbol
		sp.Quantity = data.Quantity
		sp.Price = data.Price
		sp.ExpectedChildren = data.ExpectedChildren
		d.AwaitingChildren = data.ExpectedChildren > 0

	case protocol.DeltaChildSpawned:
		var data protocol.SplitChildSpawnedData
		if err := ev.Delta.Decode(&data); err != nil {
			return fmt.Errorf("decode child spawned: %w", err)
		}
		if !d.hasChild(data.ChildDevice) {
			d.Children = append(d.Children, data.ChildDevice)
		}
		if child, ok := e.devices[data.ChildDevice]; ok {
			id := d.ID
			child.Parent = &id
		}
		if sp.ExpectedChildren > 0 && len(d.Children) >= sp.ExpectedChildren {
			d.AwaitingChildren = false
			d.Complete = true
		}

	default:
		e.log.Debug().Str("delta", ev.Delta.Kind).Msg("unhandled split delta")
	}
	return nil
}

func applyTeSnapshot(te *TrailingEntryState, s protocol.TrailingEntrySnapshot) {
	te.Symbol = s.Symbol
	te.MarketContext = s.MarketContext
	te.PositionSide = s.PositionSide
	te.ActivationPrice = s.ActivationPrice
	te.JumpFracThreshold = s.JumpFracThreshold
	te.StopLoss = s.StopLoss
	te.RiskAmount = s.RiskAmount
	te.Phase = s.Phase
	te.Peak = s.Peak
	te.PeakIndex = s.PeakIndex
	te.PositionSize = s.PositionSize
	te.ActualActivationPrice = s.ActualActivationPrice
	te.BuyOrSellPrice = s.BuyOrSellPrice
	te.Completed = s.Completed
	te.Cancelled = s.Cancelled
	te.Succeeded = s.Succeeded
	te.StopLossHit = s.StopLossHit
	te.Window.BaseIndex = s.BaseIndex
	te.Window.TotalPoints = s.TotalPoints
	if s.StartTriggerIndex != nil {
		te.StartTriggerIndex = s.StartTriggerIndex
	}
	if s.EndTriggerIndex != nil {
		te.EndTriggerIndex = s.EndTriggerIndex
	}
	if s.Lifecycle != "" {
		te.Lifecycle = s.Lifecycle
	}
}

func applyMoSnapshot(mo *MarketOrderState, s protocol.MarketOrderSnapshot) {
	mo.MarketContext = s.MarketContext
	mo.Symbol = s.Symbol
	mo.OrderSide = s.OrderSide
	mo.Quantity = s.Quantity
	mo.PositionSide = s.PositionSide
	mo.Price = s.Price
	mo.Status = s.Status
	mo.RemoteID = s.RemoteID
	mo.ClientOrderID = s.ClientOrderID
}

func applySgSnapshot(sg *StopGuardState, s protocol.StopGuardSnapshot) {
	sg.Symbol = s.Symbol
	sg.MarketContext = s.MarketContext
	sg.PositionSide = s.PositionSide
	sg.StopPrice = s.StopPrice
	sg.CoveredQty = s.CoveredQty
	sg.TargetCoverage = s.TargetCoverage
	sg.Status = s.Status
	sg.ClientOrderID = s.ClientOrderID
	sg.RemoteOrderID = s.RemoteOrderID
	sg.TopupSeq = s.TopupSeq
	sg.SentAt = s.SentAt
	sg.LastUpdateSeenAt = s.LastUpdateSeenAt
	sg.LastStatusCheckAt = s.LastStatusCheckAt
	sg.LastReplacementAt = s.LastReplacementAt
	sg.PendingReplacementFrom = s.PendingReplacementFrom
}

func applySplitSnapshot(sp *SplitState, s protocol.SplitSnapshot) {
	sp.Symbol = s.Symbol
	sp.Quantity = s.Quantity
	sp.Price = s.Price
	if s.ExpectedChildren > 0 {
		sp.ExpectedChildren = s.ExpectedChildren
	}
}
