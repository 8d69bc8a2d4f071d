package protocol

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientMessage_SystemEnvelope(t *testing.T) {
	clientID := uuid.New()
	commandID := uuid.New()

	msg := ClientMessage{
		ClientID:  clientID,
		CommandID: commandID,
		Payload:   System(SystemPing, PingData{ClientSendTime: 1712345678901}),
	}

	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Contains(t, decoded, "client_id")
	require.Contains(t, decoded, "command_id")
	require.Contains(t, decoded, "payload")

	var payload struct {
		Kind string `json:"kind"`
		Data struct {
			Kind string          `json:"kind"`
			Data json.RawMessage `json:"data"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(decoded["payload"], &payload))
	assert.Equal(t, KindSystem, payload.Kind)
	assert.Equal(t, SystemPing, payload.Data.Kind)

	var ping PingData
	require.NoError(t, json.Unmarshal(payload.Data.Data, &ping))
	assert.Equal(t, int64(1712345678901), ping.ClientSendTime)
}

func TestClientMessage_UserCommandEnvelope(t *testing.T) {
	msg := ClientMessage{
		ClientID:  uuid.New(),
		CommandID: uuid.New(),
		Payload: User(CmdMarketOrder, MarketOrderCommand{
			Action:       ActionBuy,
			Symbol:       "BTCUSDT",
			QuantityUSD:  250,
			PositionSide: Long,
		}, "buy 250 btc"),
	}

	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var envelope struct {
		Payload struct {
			Kind string `json:"kind"`
			Data struct {
				RawText string `json:"raw_text"`
				Command struct {
					Kind string          `json:"kind"`
					Data json.RawMessage `json:"data"`
				} `json:"command"`
			} `json:"data"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.Equal(t, KindUserCommand, envelope.Payload.Kind)
	assert.Equal(t, "buy 250 btc", envelope.Payload.Data.RawText)
	assert.Equal(t, CmdMarketOrder, envelope.Payload.Data.Command.Kind)

	var cmd MarketOrderCommand
	require.NoError(t, json.Unmarshal(envelope.Payload.Data.Command.Data, &cmd))
	assert.Equal(t, "BTCUSDT", cmd.Symbol)
	assert.Equal(t, ActionBuy, cmd.Action)
	assert.Equal(t, 250.0, cmd.QuantityUSD)
}

func TestParseServerMessage_Pong(t *testing.T) {
	id := uuid.New()
	raw := []byte(`{"uuid":"` + id.String() + `","payload":{"kind":"Pong","data":{"client_send_time":42}}}`)

	msg, err := ParseServerMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, id, msg.UUID)
	assert.Equal(t, MsgPong, msg.Payload.Kind)

	var pong PongData
	require.NoError(t, msg.Payload.Decode(&pong))
	assert.Equal(t, int64(42), pong.ClientSendTime)
}

func TestParseServerMessage_UnknownKindKeepsRawData(t *testing.T) {
	raw := []byte(`{"uuid":"` + uuid.New().String() + `","payload":{"kind":"SomethingNew","data":{"x":1}}}`)

	msg, err := ParseServerMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, "SomethingNew", msg.Payload.Kind)
	assert.JSONEq(t, `{"x":1}`, string(msg.Payload.Data))
}

func TestParseServerMessage_Malformed(t *testing.T) {
	_, err := ParseServerMessage([]byte(`{"uuid":`))
	assert.Error(t, err)
}

func TestDelta_Decode(t *testing.T) {
	raw := []byte(`{"device_id":"` + uuid.New().String() + `","seq":7,"ts":1700000000000,"delta":{"kind":"Point","data":{"idx":12,"price":64250.5}}}`)

	var ev DeltaEvent
	require.NoError(t, json.Unmarshal(raw, &ev))
	assert.Equal(t, uint64(7), ev.Seq)
	assert.Equal(t, DeltaPoint, ev.Delta.Kind)

	var pt PointData
	require.NoError(t, ev.Delta.Decode(&pt))
	assert.Equal(t, 12, pt.Idx)
	assert.Equal(t, 64250.5, pt.Price)
}

func TestLifecycleRank_Ordering(t *testing.T) {
	order := []TrailingEntryLifecycle{
		LifecycleRunning,
		LifecycleSpawningChildren,
		LifecycleChildrenSpawned,
		LifecycleCompleted,
	}
	for i := 1; i < len(order); i++ {
		assert.Greater(t, LifecycleRank(order[i]), LifecycleRank(order[i-1]),
			"%s should rank above %s", order[i], order[i-1])
	}
	assert.Equal(t, -1, LifecycleRank("nonsense"))
}

func TestMarketOrderStatus_Terminal(t *testing.T) {
	assert.True(t, MoFilled.Terminal())
	assert.True(t, MoCanceled.Terminal())
	assert.True(t, MoRejected.Terminal())
	assert.False(t, MoNotYetSent.Terminal())
	assert.False(t, MoAwaitingFilling.Terminal())
	assert.False(t, MoPartiallyFilled.Terminal())
}

func TestDeviceSnapshot_Decode(t *testing.T) {
	snap := DeviceSnapshot{
		Kind: KindMarketOrder,
		Data: json.RawMessage(`{"symbol":"ETHUSDT","order_side":"Sell","quantity":1.5,"position_side":"Short","price":3200,"status":"Filled","market_context":{}}`),
	}

	var mo MarketOrderSnapshot
	require.NoError(t, snap.Decode(&mo))
	assert.Equal(t, "ETHUSDT", mo.Symbol)
	assert.Equal(t, Sell, mo.OrderSide)
	assert.Equal(t, MoFilled, mo.Status)
}
