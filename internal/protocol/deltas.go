package protocol

import (
	"encoding/json"

	"github.com/google/uuid"
)

// DeviceKind discriminates the four server-owned device variants.
type DeviceKind string

const (
	KindTrailingEntry DeviceKind = "TrailingEntry"
	KindMarketOrder   DeviceKind = "MarketOrder"
	KindStopGuard     DeviceKind = "StopGuard"
	KindSplit         DeviceKind = "Split"
)

// TrailingEntryPhase is the arming phase of a trailing entry. The only legal
// transition is Initial to Triggered.
type TrailingEntryPhase string

const (
	PhaseInitial   TrailingEntryPhase = "Initial"
	PhaseTriggered TrailingEntryPhase = "Triggered"
)

// TrailingEntryLifecycle advances monotonically through child spawning.
type TrailingEntryLifecycle string

const (
	LifecycleRunning          TrailingEntryLifecycle = "Running"
	LifecycleSpawningChildren TrailingEntryLifecycle = "SpawningChildren"
	LifecycleChildrenSpawned  TrailingEntryLifecycle = "ChildrenSpawned"
	LifecycleCompleted        TrailingEntryLifecycle = "Completed"
)

// LifecycleRank orders lifecycle states so regressions can be rejected.
func LifecycleRank(l TrailingEntryLifecycle) int {
	switch l {
	case LifecycleRunning:
		return 0
	case LifecycleSpawningChildren:
		return 1
	case LifecycleChildrenSpawned:
		return 2
	case LifecycleCompleted:
		return 3
	default:
		return -1
	}
}

// MarketOrderStatus is the fill lifecycle of a market order.
type MarketOrderStatus string

const (
	MoNotYetSent      MarketOrderStatus = "NotYetSent"
	MoAwaitingFilling MarketOrderStatus = "AlreadySentAndAwaitingFilling"
	MoPartiallyFilled MarketOrderStatus = "PartiallyFilled"
	MoFilled          MarketOrderStatus = "Filled"
	MoCanceled        MarketOrderStatus = "Canceled"
	MoRejected        MarketOrderStatus = "Rejected"
)

// Terminal reports whether the status admits no further transitions.
func (s MarketOrderStatus) Terminal() bool {
	return s == MoFilled || s == MoCanceled || s == MoRejected
}

// StopGuardStatus is the lifecycle of a stop-guard's protective order.
type StopGuardStatus string

const (
	SgNotYetSent StopGuardStatus = "NotYetSent"
	SgSubmitting StopGuardStatus = "Submitting"
	SgWorking    StopGuardStatus = "Working"
	SgTriggered  StopGuardStatus = "Triggered"
	SgFlat       StopGuardStatus = "Flat"
	SgCanceled   StopGuardStatus = "Canceled"
	SgRejected   StopGuardStatus = "Rejected"
	SgExpired    StopGuardStatus = "Expired"
)

// DeltaEvent is one incremental state change for a single device. Events
// arrive per-device ordered by Seq; the engine tolerates duplicates but
// never reorders.
type DeltaEvent struct {
	DeviceID uuid.UUID `json:"device_id"`
	Seq      uint64    `json:"seq"`
	Ts       int64     `json:"ts,omitempty"`
	Delta    Delta     `json:"delta"`
}

// Delta is the tagged per-kind delta union.
type Delta struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the delta data into v.
func (d Delta) Decode(v any) error {
	if len(d.Data) == 0 {
		return nil
	}
	return json.Unmarshal(d.Data, v)
}

// Delta kinds shared across device kinds.
const (
	DeltaInit            = "Init"
	DeltaSubmitted       = "Submitted"
	DeltaPartiallyFilled = "PartiallyFilled"
	DeltaFilled          = "Filled"
	DeltaCanceled        = "Canceled"
	DeltaRejected        = "Rejected"
)

// Trailing entry delta kinds.
const (
	DeltaPointsInit   = "PointsInit"
	DeltaPoint        = "Point"
	DeltaPeak         = "Peak"
	DeltaPhase        = "Phase"
	DeltaLifecycle    = "Lifecycle"
	DeltaReview       = "Review"
	DeltaTrailingStop = "TrailingStop"
	DeltaOrderUpdate  = "OrderUpdate"
)

// Stop guard delta kinds.
const (
	DeltaReplaced  = "Replaced"
	DeltaCoverage  = "Coverage"
	DeltaThreshold = "Threshold"
	DeltaTriggered = "Triggered"
)

// Split delta kinds.
const (
	DeltaChildSpawned = "ChildSpawned"
)

// TeInitData initializes a trailing entry device. CommandID attributes the
// device to the command that spawned it.
type TeInitData struct {
	CommandID         uuid.UUID              `json:"command_id"`
	ParentDevice      *uuid.UUID             `json:"parent_device,omitempty"`
	Symbol            string                 `json:"symbol"`
	MarketContext     MarketContext          `json:"market_context"`
	PositionSide      PositionSide           `json:"position_side"`
	ActivationPrice   float64                `json:"activation_price"`
	JumpFracThreshold float64                `json:"jump_frac_threshold"`
	StopLoss          float64                `json:"stop_loss"`
	RiskAmount        float64                `json:"risk_amount"`
	Phase             TrailingEntryPhase     `json:"phase"`
	Peak              float64                `json:"peak"`
	PeakIndex         int                    `json:"peak_index"`
	BaseIndex         int                    `json:"base_index"`
	TotalPoints       int                    `json:"total_points"`
	Lifecycle         TrailingEntryLifecycle `json:"lifecycle"`
}

// PointsInitData replaces the price window wholesale.
type PointsInitData struct {
	StartIdx int       `json:"start_idx"`
	Points   []float64 `json:"points"`
	TotalLen int       `json:"total_len"`
}

// PointData appends or replays a single absolutely-indexed price sample.
type PointData struct {
	Idx   int     `json:"idx"`
	Price float64 `json:"price"`
}

type PeakData struct {
	Price float64 `json:"price"`
	Index *int    `json:"index,omitempty"`
}

type PhaseData struct {
	To TrailingEntryPhase `json:"to"`
}

type LifecycleData struct {
	Status TrailingEntryLifecycle `json:"status"`
}

// ReviewData marks the trigger region for the review chart.
type ReviewData struct {
	StartTriggerIndex *int `json:"start_trigger_index,omitempty"`
	EndTriggerIndex   *int `json:"end_trigger_index,omitempty"`
}

// MoInitData initializes a market order device.
type MoInitData struct {
	CommandID     uuid.UUID         `json:"command_id"`
	ParentDevice  *uuid.UUID        `json:"parent_device,omitempty"`
	MarketContext MarketContext     `json:"market_context"`
	Symbol        string            `json:"symbol"`
	OrderSide     OrderSide         `json:"order_side"`
	PositionSide  PositionSide      `json:"position_side"`
	Quantity      float64           `json:"quantity"`
	Price         float64           `json:"price"`
	Status        MarketOrderStatus `json:"status"`
	ClientOrderID *string           `json:"client_order_id,omitempty"`
}

// MoFillData carries an optional fill price; absent values never clear a
// previously known price.
type MoFillData struct {
	Price    *float64 `json:"price,omitempty"`
	Quantity *float64 `json:"quantity,omitempty"`
}

type RejectedData struct {
	Reason *string `json:"reason,omitempty"`
}

// SgInitData initializes a stop guard device.
type SgInitData struct {
	CommandID         uuid.UUID       `json:"command_id"`
	ParentDevice      *uuid.UUID      `json:"parent_device,omitempty"`
	Symbol            string          `json:"symbol"`
	MarketContext     MarketContext   `json:"market_context"`
	PositionSide      PositionSide    `json:"position_side"`
	StopPrice         float64         `json:"stop_price"`
	CoveredQty        float64         `json:"covered_qty"`
	TargetCoverage    float64         `json:"target_coverage"`
	ClientOrderID     *string         `json:"client_order_id,omitempty"`
	RemoteOrderID     *int64          `json:"remote_order_id,omitempty"`
	TopupSeq          uint64          `json:"topup_seq"`
	Status            StopGuardStatus `json:"status"`
	SentAt            *int64          `json:"sent_at,omitempty"`
	LastUpdateSeenAt  *int64          `json:"last_update_seen_at,omitempty"`
	LastStatusCheckAt *int64          `json:"last_status_check_at,omitempty"`
	LastReplacementAt *int64          `json:"last_replacement_at,omitempty"`
}

// SgSubmittedData confirms a stop order submission. TopupSeq strictly
// increases per submission so stale acknowledgements can be discarded.
type SgSubmittedData struct {
	OrderID  string  `json:"order_id"`
	Quantity float64 `json:"quantity"`
	TopupSeq uint64  `json:"topup_seq"`
}

// SgReplacedData confirms a stop order replacement (topup/resize).
type SgReplacedData struct {
	NewOrderID  string  `json:"new_order_id"`
	NewQuantity float64 `json:"new_quantity"`
	TopupSeq    uint64  `json:"topup_seq"`
}

// SgCoverageData reconciles covered vs. target quantity.
type SgCoverageData struct {
	CoveredQty     float64 `json:"covered_qty"`
	TargetCoverage float64 `json:"target_coverage"`
	TopupSeq       uint64  `json:"topup_seq"`
}

// SplitInitData initializes a split device. The split completes when its
// children set reaches ExpectedChildren.
type SplitInitData struct {
	CommandID        uuid.UUID  `json:"command_id"`
	ParentDevice     *uuid.UUID `json:"parent_device,omitempty"`
	Symbol           string     `json:"symbol"`
	Quantity         float64    `json:"quantity"`
	Price            float64    `json:"price"`
	ExpectedChildren int        `json:"expected_children"`
}

// SplitChildSpawnedData links a freshly spawned child order to its split.
type SplitChildSpawnedData struct {
	ChildDevice uuid.UUID `json:"child_device"`
}
