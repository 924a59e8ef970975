package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/patrickmn/go-cache"

	"gaiaeq/core"
	"gaiaeq/equalizer"
	"gaiaeq/host/logging"
	"gaiaeq/host/session"
	"gaiaeq/protocol"
)

// Controller is the part of session.Session the bridge drives
type Controller interface {
	Subscribe(name string, fn func(session.Event)) core.Subscription
	Unsubscribe(name string, sub core.Subscription) bool
	Snapshot() equalizer.BankSnapshot
	SetMasterGain(raw int) error
	SetEQParameter(band int, param protocol.ParameterType, value int) error
	SetPreset(n int) error
	SelectBand(n int) error
	Refresh() error
}

// stateEvents change the mirror; each one republishes the bank
var stateEvents = []string{
	session.EventGetMasterGain,
	session.EventGetFilter,
	session.EventGetFrequency,
	session.EventGetGain,
	session.EventGetQuality,
	session.EventGetPreset,
	session.EventSetPreset,
	session.EventSetConfirmed,
}

var alertEvents = []string{
	session.EventIncorrectState,
	session.EventControlNotSupported,
	session.EventRequestTimeout,
	session.EventTransportError,
}

// Command is the JSON accepted on <topic>/set. Values are real values
// (Hz, dB, Q); the filter is named.
type Command struct {
	Action string  `json:"action"`
	Band   int     `json:"band,omitempty"`
	Param  string  `json:"param,omitempty"`
	Value  float64 `json:"value,omitempty"`
	Filter string  `json:"filter,omitempty"`
	Preset int     `json:"preset,omitempty"`
}

// Alert is published on <topic>/alert
type Alert struct {
	Event   string    `json:"event"`
	Command string    `json:"command"`
	Status  string    `json:"status,omitempty"`
	Band    int       `json:"band,omitempty"`
	Param   string    `json:"param,omitempty"`
	Value   int       `json:"value"`
	Error   string    `json:"error,omitempty"`
	Time    time.Time `json:"time"`
}

type subscription struct {
	name string
	sub  core.Subscription
}

// Bridge mirrors a session onto MQTT topics
type Bridge struct {
	client  Client
	ctrl    Controller
	cfg     Config
	logger  *slog.Logger
	metrics Recorder

	// recent holds alert keys published within the cooldown. It has no
	// janitor; expired keys are replaced on Add.
	recent *cache.Cache

	mu      sync.Mutex
	subs    []subscription
	started bool
}

// NewBridge creates a bridge. Start must be called to begin publishing.
func NewBridge(client Client, ctrl Controller, cfg Config, logger *slog.Logger, metrics Recorder) *Bridge {
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultConfig().PublishTimeout
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Bridge{
		client:  client,
		ctrl:    ctrl,
		cfg:     cfg,
		logger:  logging.Module(logger, "mqtt"),
		metrics: metrics,
		recent:  cache.New(cfg.AlertCooldown, 0),
	}
}

func (b *Bridge) topic(suffix string) string {
	return b.cfg.Topic + "/" + suffix
}

// Start subscribes to the command topic and to the session events, then
// publishes the current bank.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return nil
	}

	token := b.client.Subscribe(b.topic(TopicCommand), b.cfg.QoS, b.handleMessage)
	if !token.WaitTimeout(b.cfg.PublishTimeout) {
		return fmt.Errorf("subscribe %s: %w", b.topic(TopicCommand), ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.topic(TopicCommand), err)
	}

	for _, name := range stateEvents {
		b.subs = append(b.subs, subscription{name, b.ctrl.Subscribe(name, b.onStateEvent)})
	}
	for _, name := range alertEvents {
		b.subs = append(b.subs, subscription{name, b.ctrl.Subscribe(name, b.onAlertEvent)})
	}
	b.started = true

	b.logger.Info("bridge started", "topic", b.cfg.Topic)
	if err := b.PublishBank(); err != nil {
		b.logger.Warn("initial bank publish failed", "error", err)
	}
	return nil
}

// Stop removes every subscription. The client stays connected.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return
	}
	for _, s := range b.subs {
		b.ctrl.Unsubscribe(s.name, s.sub)
	}
	b.subs = nil
	b.started = false

	if b.client.IsConnected() {
		token := b.client.Unsubscribe(b.topic(TopicCommand))
		if !token.WaitTimeout(b.cfg.PublishTimeout) {
			b.logger.Warn("unsubscribe timed out")
		}
	}
}

// PublishBank publishes the mirror as retained JSON on <topic>/bank
func (b *Bridge) PublishBank() error {
	payload, err := json.Marshal(b.ctrl.Snapshot())
	if err != nil {
		return fmt.Errorf("marshal bank: %w", err)
	}
	return b.publish(TopicBank, true, payload)
}

func (b *Bridge) publish(suffix string, retained bool, payload []byte) error {
	if !b.client.IsConnected() {
		b.metrics.IncrementErrors()
		return ErrNotConnected
	}

	start := time.Now()
	token := b.client.Publish(b.topic(suffix), b.cfg.QoS, retained, payload)
	if !token.WaitTimeout(b.cfg.PublishTimeout) {
		b.metrics.IncrementErrors()
		return fmt.Errorf("publish %s: %w", b.topic(suffix), ErrTimeout)
	}
	if err := token.Error(); err != nil {
		b.metrics.IncrementErrors()
		return fmt.Errorf("publish %s: %w", b.topic(suffix), err)
	}

	b.metrics.Published(suffix, time.Since(start))
	return nil
}

func (b *Bridge) onStateEvent(session.Event) {
	if err := b.PublishBank(); err != nil {
		b.logger.Debug("bank publish failed", "error", err)
	}
}

func (b *Bridge) onAlertEvent(ev session.Event) {
	if b.cfg.AlertCooldown > 0 {
		key := fmt.Sprintf("%s/%04x/%02x", ev.Name, ev.Command, uint8(ev.ID))
		if err := b.recent.Add(key, struct{}{}, cache.DefaultExpiration); err != nil {
			b.logger.Debug("alert suppressed", "event", ev.Name, "key", key)
			return
		}
	}

	payload, err := json.Marshal(alertFrom(ev))
	if err != nil {
		b.logger.Warn("marshal alert", "error", err)
		return
	}
	if err := b.publish(TopicAlert, false, payload); err != nil {
		b.logger.Debug("alert publish failed", "event", ev.Name, "error", err)
	}
}

func alertFrom(ev session.Event) Alert {
	a := Alert{
		Event:   ev.Name,
		Command: protocol.CommandName(ev.Command),
		Band:    ev.Band,
		Value:   ev.Value,
		Time:    time.Now(),
	}
	if ev.Status != protocol.StatusSuccess {
		a.Status = ev.Status.String()
	}
	if ev.ID != 0 {
		if ev.ID.Param() == protocol.ParamFilter {
			a.Param = "filter"
		} else {
			a.Param = ev.Kind.String()
		}
	}
	if ev.Err != nil {
		a.Error = ev.Err.Error()
	}
	return a
}

func (b *Bridge) handleMessage(_ paho.Client, msg paho.Message) {
	var cmd Command
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		b.logger.Warn("ignoring malformed command", "topic", msg.Topic(), "error", err)
		b.metrics.CommandReceived(false)
		return
	}

	if err := b.Execute(cmd); err != nil {
		b.logger.Warn("command failed", "action", cmd.Action, "error", err)
		b.metrics.CommandReceived(false)
		return
	}
	b.metrics.CommandReceived(true)
}

// Execute applies one command to the session
func (b *Bridge) Execute(cmd Command) error {
	switch cmd.Action {
	case "set":
		return b.executeSet(cmd)
	case "preset":
		return b.ctrl.SetPreset(cmd.Preset)
	case "band":
		return b.ctrl.SelectBand(cmd.Band)
	case "refresh":
		return b.ctrl.Refresh()
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidCommand, cmd.Action)
	}
}

func (b *Bridge) executeSet(cmd Command) error {
	if cmd.Param == "filter" {
		f, err := equalizer.ParseFilterType(cmd.Filter)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}
		return b.ctrl.SetEQParameter(cmd.Band, protocol.ParamFilter, int(f))
	}

	kind, err := equalizer.ParseKind(cmd.Param)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if kind == equalizer.KindMasterGain {
		return b.ctrl.SetMasterGain(kind.Raw(cmd.Value))
	}

	param, _ := session.ParamOf(kind)
	return b.ctrl.SetEQParameter(cmd.Band, param, kind.Raw(cmd.Value))
}
