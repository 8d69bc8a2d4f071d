// Package metrics exposes the terminal's operational metrics over
// Prometheus. Everything here is observational; nothing in the protocol
// path depends on it.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics holds the terminal's instrument set on a private registry so
// tests can run many instances without collisions.
type Metrics struct {
	registry *prometheus.Registry

	HeartbeatRTT   prometheus.Gauge
	Reconnects     prometheus.Counter
	InboundByKind  *prometheus.CounterVec
	CommandLatency prometheus.Histogram
	DevicesTracked prometheus.Gauge
	DroppedFrames  prometheus.Counter
	SessionStatus  *prometheus.GaugeVec
}

// New creates the instrument set.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		HeartbeatRTT: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tradterm",
			Name:      "heartbeat_rtt_seconds",
			Help:      "Round-trip time of the most recent gateway heartbeat.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tradterm",
			Name:      "session_reconnect_attempts_total",
			Help:      "Reconnect attempts scheduled after a dropped connection.",
		}),
		InboundByKind: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradterm",
			Name:      "inbound_messages_total",
			Help:      "Inbound gateway messages by payload kind.",
		}, []string{"kind"}),
		CommandLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tradterm",
			Name:      "command_ack_latency_seconds",
			Help:      "Latency between issuing a command and its acknowledgement.",
			Buckets:   prometheus.DefBuckets,
		}),
		DevicesTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tradterm",
			Name:      "devices_tracked",
			Help:      "Devices currently held in the reconstruction engine.",
		}),
		DroppedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tradterm",
			Name:      "dropped_frames_total",
			Help:      "Inbound frames discarded as malformed.",
		}),
		SessionStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tradterm",
			Name:      "session_status",
			Help:      "Current session state, 1 for the active state and 0 otherwise.",
		}, []string{"status"}),
	}

	registry.MustRegister(
		m.HeartbeatRTT,
		m.Reconnects,
		m.InboundByKind,
		m.CommandLatency,
		m.DevicesTracked,
		m.DroppedFrames,
		m.SessionStatus,
	)
	return m
}

// ObserveRTT records a heartbeat round trip.
func (m *Metrics) ObserveRTT(rtt time.Duration) {
	m.HeartbeatRTT.Set(rtt.Seconds())
}

// SetStatus marks the active session state.
func (m *Metrics) SetStatus(status string) {
	for _, s := range []string{"idle", "connecting", "ready", "reconnecting", "error"} {
		v := 0.0
		if s == status {
			v = 1.0
		}
		m.SessionStatus.WithLabelValues(s).Set(v)
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Server serves the /metrics endpoint.
type Server struct {
	listen string
	log    zerolog.Logger
	server *http.Server
}

// NewServer creates a metrics HTTP server bound to listen.
func NewServer(listen string, m *Metrics, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
	return &Server{
		listen: listen,
		log:    logger.With().Str("component", "metrics").Logger(),
		server: &http.Server{Addr: listen, Handler: mux},
	}
}

// Start serves until Shutdown. It blocks; run it on its own goroutine.
func (s *Server) Start() error {
	s.log.Info().Str("listen", s.listen).Msg("metrics endpoint up")
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
