package protocol

import (
	"encoding/json"

	"github.com/google/uuid"
)

// DeviceSnapshotLiteData is a full point-in-time image of one device,
// delivered during the inspect/resync barrier. Parent/children topology is
// best-effort: referenced children may not be known to the client yet.
type DeviceSnapshotLiteData struct {
	DeviceID            uuid.UUID      `json:"device_id"`
	AssociatedCommandID uuid.UUID      `json:"associated_command_id"`
	ParentDevice        *uuid.UUID     `json:"parent_device,omitempty"`
	ChildrenDevices     []uuid.UUID    `json:"children_devices,omitempty"`
	Complete            bool           `json:"complete"`
	Failed              bool           `json:"failed"`
	Canceled            bool           `json:"canceled"`
	AwaitingChildren    bool           `json:"awaiting_children"`
	Snapshot            DeviceSnapshot `json:"snapshot"`
}

// DeviceSnapshot is the tagged per-kind snapshot union.
type DeviceSnapshot struct {
	Kind DeviceKind      `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Decode unmarshals the snapshot data into v.
func (s DeviceSnapshot) Decode(v any) error {
	return json.Unmarshal(s.Data, v)
}

// TrailingEntrySnapshot is the full state image of a trailing entry.
type TrailingEntrySnapshot struct {
	Symbol            string        `json:"symbol"`
	MarketContext     MarketContext `json:"market_context"`
	PositionSide      PositionSide  `json:"position_side"`
	ActivationPrice   float64       `json:"activation_price"`
	JumpFracThreshold float64       `json:"jump_frac_threshold"`
	StopLoss          float64       `json:"stop_loss"`
	RiskAmount        float64       `json:"risk_amount"`

	Phase     TrailingEntryPhase `json:"phase"`
	Peak      float64            `json:"peak"`
	PeakIndex int                `json:"peak_index"`

	PositionSize          float64 `json:"position_size"`
	ActualActivationPrice float64 `json:"actual_activation_price"`
	BuyOrSellPrice        float64 `json:"buy_or_sell_price"`
	Completed             bool    `json:"completed"`
	Cancelled             bool    `json:"cancelled"`
	Succeeded             bool    `json:"succeeded"`
	StopLossHit           bool    `json:"stop_loss_hit"`

	Lifecycle TrailingEntryLifecycle `json:"lifecycle,omitempty"`

	BaseIndex         int  `json:"base_index"`
	TotalPoints       int  `json:"total_points"`
	StartTriggerIndex *int `json:"start_trigger_index,omitempty"`
	EndTriggerIndex   *int `json:"end_trigger_index,omitempty"`
}

// MarketOrderSnapshot is the full state image of a market order.
type MarketOrderSnapshot struct {
	MarketContext MarketContext     `json:"market_context"`
	Symbol        string            `json:"symbol"`
	OrderSide     OrderSide         `json:"order_side"`
	Quantity      float64           `json:"quantity"`
	PositionSide  PositionSide      `json:"position_side"`
	Price         float64           `json:"price"`
	Status        MarketOrderStatus `json:"status"`
	RemoteID      *int64            `json:"remote_id,omitempty"`
	ClientOrderID *string           `json:"client_order_id,omitempty"`
}

// SplitSnapshot is the full state image of a split.
type SplitSnapshot struct {
	Symbol           string  `json:"symbol"`
	Quantity         float64 `json:"quantity"`
	Price            float64 `json:"price"`
	ExpectedChildren int     `json:"expected_children"`
}

// StopGuardSnapshot is the full state image of a stop guard.
type StopGuardSnapshot struct {
	Symbol        string        `json:"symbol"`
	MarketContext MarketContext `json:"market_context"`
	PositionSide  PositionSide  `json:"position_side"`
	StopPrice     float64       `json:"stop_price"`

	CoveredQty     float64 `json:"covered_qty"`
	TargetCoverage float64 `json:"target_coverage"`

	Status        StopGuardStatus `json:"status"`
	ClientOrderID *string         `json:"client_order_id,omitempty"`
	RemoteOrderID *int64          `json:"remote_order_id,omitempty"`

	TopupSeq               uint64  `json:"topup_seq"`
	SentAt                 *int64  `json:"sent_at,omitempty"`
	LastUpdateSeenAt       *int64  `json:"last_update_seen_at,omitempty"`
	LastStatusCheckAt      *int64  `json:"last_status_check_at,omitempty"`
	LastReplacementAt      *int64  `json:"last_replacement_at,omitempty"`
	PendingReplacementFrom *string `json:"pending_replacement_from,omitempty"`
}
