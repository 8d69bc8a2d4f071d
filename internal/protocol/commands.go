package protocol

import "github.com/google/uuid"

// User command kinds.
const (
	CmdMarketOrder        = "MarketOrder"
	CmdSplitMarketOrder   = "SplitMarketOrder"
	CmdLimitOrder         = "LimitOrder"
	CmdTrailingEntryOrder = "TrailingEntryOrder"
	CmdCancelDevice       = "CancelDevice"
	CmdCancelPosition     = "CancelPosition"
	CmdCancelAllDevices   = "CancelAllDevicesCommand"
	CmdLogin              = "Login"
	CmdTokenLogin         = "TokenLogin"
	CmdLogout             = "Logout"
	CmdEcho               = "Echo"
	CmdGetPrice           = "GetPrice"
	CmdGetBalance         = "GetBalance"
	CmdListDevices        = "ListDevices"
	CmdListPositions      = "ListPositions"
	CmdListAccounts       = "ListAccounts"
	CmdGetDeviceTree      = "GetDeviceTree"
	CmdSetLeverage        = "SetLeverage"
	CmdSetHedgeMode       = "SetHedgeMode"
)

// OrderSide is the side of an individual order.
type OrderSide string

const (
	Buy  OrderSide = "Buy"
	Sell OrderSide = "Sell"
)

// PositionSide is the direction of the position an order affects.
type PositionSide string

const (
	Long  PositionSide = "Long"
	Short PositionSide = "Short"
)

// MarketAction is the action of a market order command.
type MarketAction string

const (
	ActionBuy      MarketAction = "Buy"
	ActionSell     MarketAction = "Sell"
	ActionClose    MarketAction = "Close"
	ActionCloseAll MarketAction = "CloseAll"
)

// DeviceFilter restricts ListDevices output.
type DeviceFilter string

const (
	FilterAll        DeviceFilter = "All"
	FilterComplete   DeviceFilter = "Complete"
	FilterIncomplete DeviceFilter = "Incomplete"
)

// CommandStatus is the lifecycle status of a command history entry.
type CommandStatus string

const (
	CommandUnsent    CommandStatus = "Unsent"
	CommandPending   CommandStatus = "Pending"
	CommandMalformed CommandStatus = "Malformed"
	CommandRunning   CommandStatus = "Running"
	CommandSucceeded CommandStatus = "Succeeded"
	CommandFailed    CommandStatus = "Failed"
)

type MarketOrderCommand struct {
	Action       MarketAction `json:"action"`
	Symbol       string       `json:"symbol"`
	QuantityUSD  float64      `json:"quantity_usd"`
	PositionSide PositionSide `json:"position_side"`
}

type SplitMarketOrderCommand struct {
	NumSplits    int          `json:"num_splits"`
	Action       MarketAction `json:"action"`
	Symbol       string       `json:"symbol"`
	QuantityUSD  float64      `json:"quantity_usd"`
	PositionSide PositionSide `json:"position_side"`
}

type LimitOrderCommand struct {
	Side         OrderSide    `json:"side"`
	Symbol       string       `json:"symbol"`
	Quantity     float64      `json:"quantity"`
	Price        float64      `json:"price"`
	PositionSide PositionSide `json:"position_side"`
}

type TrailingEntryOrderCommand struct {
	PositionSide      PositionSide `json:"position_side"`
	Symbol            string       `json:"symbol"`
	ActivationPrice   float64      `json:"activation_price"`
	JumpFracThreshold float64      `json:"jump_frac_threshold"`
	StopLoss          float64      `json:"stop_loss"`
	RiskAmount        float64      `json:"risk_amount"`
}

type CancelDeviceCommand struct {
	DeviceID uuid.UUID `json:"device_id"`
}

type CancelPositionCommand struct {
	Symbol string `json:"symbol"`
}

type LoginCommand struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenLoginCommand struct {
	Token string `json:"token"`
}

type LogoutCommand struct {
	AllSessions bool `json:"all_sessions"`
}

type EchoCommand struct {
	Message string `json:"message"`
}

type GetPriceCommand struct {
	Symbol string `json:"symbol"`
}

type ListDevicesCommand struct {
	Filter DeviceFilter `json:"filter"`
}

type ListAccountsCommand struct {
	ShowConnections bool `json:"show_connections"`
}

type GetDeviceTreeCommand struct {
	DeviceID uuid.UUID `json:"device_id"`
}

type SetLeverageCommand struct {
	Symbol   string  `json:"symbol"`
	Leverage float64 `json:"leverage"`
}

type SetHedgeModeCommand struct {
	Enabled bool `json:"enabled"`
}
