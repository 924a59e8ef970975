// Package metrics exposes Prometheus metrics for the equalizer host.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"gaiaeq/protocol"
)

// ProtocolMetrics counts GAIA traffic. It implements session.Recorder.
type ProtocolMetrics struct {
	framesSent      *prometheus.CounterVec
	framesReceived  *prometheus.CounterVec
	malformedFrames prometheus.Counter
	rejections      *prometheus.CounterVec
	timeouts        *prometheus.CounterVec
	roundTrip       *prometheus.HistogramVec
	bankFresh       prometheus.Gauge
	connected       prometheus.Gauge
	lastConnectTime prometheus.Gauge
}

// NewProtocolMetrics creates the protocol metrics and registers them
func NewProtocolMetrics(registry *prometheus.Registry) (*ProtocolMetrics, error) {
	m := &ProtocolMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register protocol metrics: %w", err)
	}
	return m, nil
}

func (m *ProtocolMetrics) initMetrics() {
	m.framesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gaiaeq_frames_sent_total",
		Help: "Total number of GAIA command frames written to the device",
	}, []string{"command"})

	m.framesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gaiaeq_frames_received_total",
		Help: "Total number of well formed GAIA frames received from the device",
	}, []string{"command", "kind"})

	m.malformedFrames = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gaiaeq_malformed_frames_total",
		Help: "Total number of received frames dropped as malformed",
	})

	m.rejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gaiaeq_rejections_total",
		Help: "Total number of acknowledgements carrying a non-success status",
	}, []string{"command", "status"})

	m.timeouts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gaiaeq_request_timeouts_total",
		Help: "Total number of requests that were never acknowledged",
	}, []string{"command"})

	m.roundTrip = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gaiaeq_round_trip_seconds",
		Help:    "Time from sending a request to receiving its acknowledgement",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"command"})

	m.bankFresh = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gaiaeq_bank_fresh",
		Help: "1 when every configurable parameter of the mirror is confirmed by the device",
	})

	m.connected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gaiaeq_connected",
		Help: "Current device connection status (1 for connected, 0 for disconnected)",
	})

	m.lastConnectTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gaiaeq_last_connect_time_seconds",
		Help: "Timestamp of the last successful device connection",
	})
}

func (m *ProtocolMetrics) FrameSent(command uint16) {
	m.framesSent.WithLabelValues(protocol.CommandName(command)).Inc()
}

func (m *ProtocolMetrics) FrameReceived(command uint16, ack bool) {
	kind := "notification"
	if ack {
		kind = "ack"
	}
	m.framesReceived.WithLabelValues(protocol.CommandName(command), kind).Inc()
}

func (m *ProtocolMetrics) MalformedFrame() {
	m.malformedFrames.Inc()
}

func (m *ProtocolMetrics) Rejected(command uint16, status protocol.Status) {
	m.rejections.WithLabelValues(protocol.CommandName(command), status.String()).Inc()
}

func (m *ProtocolMetrics) RequestTimeout(command uint16) {
	m.timeouts.WithLabelValues(protocol.CommandName(command)).Inc()
}

func (m *ProtocolMetrics) RoundTrip(command uint16, d time.Duration) {
	m.roundTrip.WithLabelValues(protocol.CommandName(command)).Observe(d.Seconds())
}

func (m *ProtocolMetrics) BankFresh(fresh bool) {
	m.bankFresh.Set(boolToFloat(fresh))
}

// UpdateConnectionStatus records a connection change. The last connect time
// only moves on connect.
func (m *ProtocolMetrics) UpdateConnectionStatus(connected bool) {
	m.connected.Set(boolToFloat(connected))
	if connected {
		m.lastConnectTime.SetToCurrentTime()
	}
}

// Collect implements the prometheus.Collector interface.
func (m *ProtocolMetrics) Collect(ch chan<- prometheus.Metric) {
	m.framesSent.Collect(ch)
	m.framesReceived.Collect(ch)
	ch <- m.malformedFrames
	m.rejections.Collect(ch)
	m.timeouts.Collect(ch)
	m.roundTrip.Collect(ch)
	ch <- m.bankFresh
	ch <- m.connected
	ch <- m.lastConnectTime
}

// Describe implements the prometheus.Collector interface.
func (m *ProtocolMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.framesSent.Describe(ch)
	m.framesReceived.Describe(ch)
	ch <- m.malformedFrames.Desc()
	m.rejections.Describe(ch)
	m.timeouts.Describe(ch)
	m.roundTrip.Describe(ch)
	ch <- m.bankFresh.Desc()
	ch <- m.connected.Desc()
	ch <- m.lastConnectTime.Desc()
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
