package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MQTTMetrics contains the metrics of the MQTT bridge
type MQTTMetrics struct {
	ConnectionStatus  prometheus.Gauge
	MessagesPublished *prometheus.CounterVec
	CommandsReceived  *prometheus.CounterVec
	Errors            prometheus.Counter
	PublishLatency    prometheus.Histogram
}

// NewMQTTMetrics creates the MQTT metrics and registers them
func NewMQTTMetrics(registry *prometheus.Registry) (*MQTTMetrics, error) {
	m := &MQTTMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register MQTT metrics: %w", err)
	}
	return m, nil
}

func (m *MQTTMetrics) initMetrics() {
	m.ConnectionStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gaiaeq_mqtt_connection_status",
		Help: "Current MQTT connection status (1 for connected, 0 for disconnected)",
	})

	m.MessagesPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gaiaeq_mqtt_messages_published_total",
		Help: "Total number of MQTT messages published, by topic suffix",
	}, []string{"topic"})

	m.CommandsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gaiaeq_mqtt_commands_total",
		Help: "Total number of MQTT commands received, by result",
	}, []string{"result"})

	m.Errors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gaiaeq_mqtt_errors_total",
		Help: "Total number of MQTT errors encountered",
	})

	m.PublishLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gaiaeq_mqtt_publish_latency_seconds",
		Help:    "Latency of MQTT publish operations in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
	})
}

func (m *MQTTMetrics) UpdateConnectionStatus(connected bool) {
	m.ConnectionStatus.Set(boolToFloat(connected))
}

func (m *MQTTMetrics) Published(topic string, latency time.Duration) {
	m.MessagesPublished.WithLabelValues(topic).Inc()
	m.PublishLatency.Observe(latency.Seconds())
}

func (m *MQTTMetrics) CommandReceived(ok bool) {
	result := "error"
	if ok {
		result = "ok"
	}
	m.CommandsReceived.WithLabelValues(result).Inc()
}

func (m *MQTTMetrics) IncrementErrors() {
	m.Errors.Inc()
}

// Collect implements the prometheus.Collector interface.
func (m *MQTTMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.ConnectionStatus
	m.MessagesPublished.Collect(ch)
	m.CommandsReceived.Collect(ch)
	ch <- m.Errors
	ch <- m.PublishLatency
}

// Describe implements the prometheus.Collector interface.
func (m *MQTTMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.ConnectionStatus.Desc()
	m.MessagesPublished.Describe(ch)
	m.CommandsReceived.Describe(ch)
	ch <- m.Errors.Desc()
	ch <- m.PublishLatency.Desc()
}
