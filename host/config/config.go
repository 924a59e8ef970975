// Package config loads the gaiaeq host settings with viper: built-in
// defaults, an optional YAML file, GAIAEQ_* environment variables and
// command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"gaiaeq/host/logging"
	"gaiaeq/host/serial"
	"gaiaeq/host/session"
)

const (
	EnvPrefix  = "GAIAEQ"
	ConfigName = "gaiaeq"

	// MaxBands is the most bands the 4-bit band field can address
	MaxBands = 15
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Settings is the full host configuration
type Settings struct {
	Serial  SerialSettings  `mapstructure:"serial"`
	Session SessionSettings `mapstructure:"session"`
	Log     LogSettings     `mapstructure:"log"`
	Metrics MetricsSettings `mapstructure:"metrics"`
	MQTT    MQTTSettings    `mapstructure:"mqtt"`
}

type SerialSettings struct {
	Device      string        `mapstructure:"device"`
	Baud        int           `mapstructure:"baud"`
	ReadTimeout time.Duration `mapstructure:"readtimeout"`
}

type SessionSettings struct {
	Bands          int           `mapstructure:"bands"`
	RequestTimeout time.Duration `mapstructure:"requesttimeout"`
	AutoFetch      bool          `mapstructure:"autofetch"`
}

type LogSettings struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`

	// File, when set, also writes logs to a size-rotated file
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"maxsize"`
	MaxBackups int    `mapstructure:"maxbackups"`
	MaxAge     int    `mapstructure:"maxage"`
}

type MetricsSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

type MQTTSettings struct {
	Enabled       bool          `mapstructure:"enabled"`
	Broker        string        `mapstructure:"broker"`
	ClientID      string        `mapstructure:"clientid"`
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	Topic         string        `mapstructure:"topic"`
	AlertCooldown time.Duration `mapstructure:"alertcooldown"`
}

// New returns a viper instance with defaults and environment binding set up
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.device", serial.DefaultDevice)
	v.SetDefault("serial.baud", 115200)
	v.SetDefault("serial.readtimeout", 100*time.Millisecond)

	v.SetDefault("session.bands", 5)
	v.SetDefault("session.requesttimeout", session.DefaultRequestTimeout)
	v.SetDefault("session.autofetch", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.maxsize", 10)
	v.SetDefault("log.maxbackups", 3)
	v.SetDefault("log.maxage", 28)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", "127.0.0.1:9464")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.clientid", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic", "gaiaeq")
	v.SetDefault("mqtt.alertcooldown", 5*time.Second)
}

// Load reads file (or searches the default locations when file is empty),
// then decodes and validates the settings. A missing default file is not an
// error; a missing explicit file is.
func Load(v *viper.Viper, file string) (*Settings, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/gaiaeq")
		v.AddConfigPath("/etc/gaiaeq")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Validate reports every invalid setting at once
func (s *Settings) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if s.Serial.Device == "" {
		invalid("serial.device is empty")
	}
	if s.Serial.Baud <= 0 {
		invalid("serial.baud must be positive, got %d", s.Serial.Baud)
	}
	if s.Serial.ReadTimeout < 0 {
		invalid("serial.readtimeout must not be negative, got %s", s.Serial.ReadTimeout)
	}
	if s.Session.Bands < 1 || s.Session.Bands > MaxBands {
		invalid("session.bands must be in [1, %d], got %d", MaxBands, s.Session.Bands)
	}
	if s.Session.RequestTimeout <= 0 {
		invalid("session.requesttimeout must be positive, got %s", s.Session.RequestTimeout)
	}
	if s.Log.File != "" && (s.Log.MaxSize < 0 || s.Log.MaxBackups < 0 || s.Log.MaxAge < 0) {
		invalid("log.maxsize, log.maxbackups and log.maxage must not be negative")
	}
	if s.Metrics.Enabled && s.Metrics.Listen == "" {
		invalid("metrics.listen is required when metrics are enabled")
	}
	if s.MQTT.Enabled {
		if s.MQTT.Broker == "" {
			invalid("mqtt.broker is required when mqtt is enabled")
		}
		if s.MQTT.Topic == "" {
			invalid("mqtt.topic is required when mqtt is enabled")
		}
	}

	return errors.Join(errs...)
}

// LogFile converts the log file settings
func (s *Settings) LogFile() logging.FileConfig {
	return logging.FileConfig{
		Path:       s.Log.File,
		MaxSize:    s.Log.MaxSize,
		MaxBackups: s.Log.MaxBackups,
		MaxAge:     s.Log.MaxAge,
	}
}

// SerialConfig converts the serial settings
func (s *Settings) SerialConfig() *serial.Config {
	return &serial.Config{
		Device:      s.Serial.Device,
		Baud:        s.Serial.Baud,
		ReadTimeout: s.Serial.ReadTimeout,
	}
}

// SessionConfig converts the session settings
func (s *Settings) SessionConfig(logger *slog.Logger, metrics session.Recorder) session.Config {
	return session.Config{
		Bands:          s.Session.Bands,
		RequestTimeout: s.Session.RequestTimeout,
		AutoFetch:      s.Session.AutoFetch,
		Logger:         logger,
		Metrics:        metrics,
	}
}
