// Package mqtt bridges an equalizer session to an MQTT broker: the mirror is
// published as retained JSON, alerts are published as they happen and set
// commands are accepted on a command topic.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"gaiaeq/host/logging"
)

const (
	TopicBank    = "bank"
	TopicAlert   = "alert"
	TopicCommand = "set"
	TopicStatus  = "status"
)

var (
	ErrNotConnected   = errors.New("not connected to MQTT broker")
	ErrTimeout        = errors.New("mqtt operation timed out")
	ErrInvalidCommand = errors.New("invalid command")
)

// Client is the part of paho.Client the bridge uses
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Unsubscribe(topics ...string) paho.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Recorder receives bridge counters. metrics.MQTTMetrics implements it.
type Recorder interface {
	UpdateConnectionStatus(connected bool)
	Published(topic string, latency time.Duration)
	CommandReceived(ok bool)
	IncrementErrors()
}

type nopRecorder struct{}

func (nopRecorder) UpdateConnectionStatus(bool)     {}
func (nopRecorder) Published(string, time.Duration) {}
func (nopRecorder) CommandReceived(bool)            {}
func (nopRecorder) IncrementErrors()                {}

// Config holds the broker settings
type Config struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	Topic          string
	QoS            byte
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
	// AlertCooldown suppresses repeats of the same alert; zero disables it
	AlertCooldown time.Duration
}

// DefaultConfig returns a Config with reasonable timeouts
func DefaultConfig() Config {
	return Config{
		Topic:          "gaiaeq",
		QoS:            1,
		ConnectTimeout: 30 * time.Second,
		PublishTimeout: 10 * time.Second,
		AlertCooldown:  5 * time.Second,
	}
}

// Connect dials the broker. An empty client ID gets a random one. The status
// topic carries a retained "online"/"offline" flag with a last will.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger, metrics Recorder) (paho.Client, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("%w: no broker configured", ErrNotConnected)
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "gaiaeq-" + uuid.NewString()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConfig().ConnectTimeout
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	logger = logging.Module(logger, "mqtt").With("broker", cfg.Broker)

	status := cfg.Topic + "/" + TopicStatus

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetWill(status, "offline", cfg.QoS, true)
	opts.SetOnConnectHandler(func(c paho.Client) {
		logger.Info("connected to MQTT broker", "client_id", cfg.ClientID)
		metrics.UpdateConnectionStatus(true)
		c.Publish(status, cfg.QoS, true, "online")
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("connection to MQTT broker lost", "error", err)
		metrics.UpdateConnectionStatus(false)
		metrics.IncrementErrors()
	})

	client := paho.NewClient(opts)
	if err := wait(ctx, client.Connect(), cfg.ConnectTimeout); err != nil {
		metrics.IncrementErrors()
		return nil, fmt.Errorf("connection error: %w", err)
	}
	return client, nil
}

// wait blocks until token completes, the timeout passes or ctx is done
func wait(ctx context.Context, token paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
