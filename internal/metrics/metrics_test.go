package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Instruments(t *testing.T) {
	m := New()

	m.ObserveRTT(150 * time.Millisecond)
	assert.Equal(t, 0.15, testutil.ToFloat64(m.HeartbeatRTT))

	m.Reconnects.Inc()
	m.Reconnects.Inc()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Reconnects))

	m.InboundByKind.WithLabelValues("Pong").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InboundByKind.WithLabelValues("Pong")))
}

func TestMetrics_SetStatusIsExclusive(t *testing.T) {
	m := New()

	m.SetStatus("ready")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionStatus.WithLabelValues("ready")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SessionStatus.WithLabelValues("idle")))

	m.SetStatus("reconnecting")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SessionStatus.WithLabelValues("ready")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionStatus.WithLabelValues("reconnecting")))
}

func TestMetrics_IsolatedRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a := New()
	b := New()
	a.Reconnects.Inc()

	require.Equal(t, 1.0, testutil.ToFloat64(a.Reconnects))
	require.Equal(t, 0.0, testutil.ToFloat64(b.Reconnects))
}
