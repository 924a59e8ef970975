package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gaiaeq/host/config"
	"gaiaeq/host/device"
	"gaiaeq/host/logging"
	"gaiaeq/host/metrics"
	"gaiaeq/host/session"
)

// app carries what every subcommand shares once flags are parsed
type app struct {
	v        *viper.Viper
	cfgFile  string
	debug    bool
	settings *config.Settings
	logger   *slog.Logger
	logFile  io.Closer
	out      io.Writer
}

func newApp() *app {
	return &app{v: config.New(), out: os.Stdout}
}

func newRootCommand() *cobra.Command {
	return newApp().rootCommand()
}

func (a *app) rootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gaiaeq-host",
		Short:         "GAIA headset equalizer host",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.closeLog()
		},
	}

	if err := setupFlags(rootCmd, a); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		consoleCommand(a),
		dumpCommand(a),
		runCommand(a),
		frameCommand(),
	)
	return rootCmd
}

// setupFlags defines the global flags and binds them to their config keys
func setupFlags(rootCmd *cobra.Command, a *app) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "Config file (default searches ./gaiaeq.yaml, ~/.config/gaiaeq, /etc/gaiaeq)")
	flags.BoolVarP(&a.debug, "debug", "d", false, "Enable debug logging")
	flags.String("device", "", "Serial device of the RFCOMM link")
	flags.Int("baud", 0, "Baud rate")
	flags.Int("bands", 0, "Number of equalizer bands")
	flags.Duration("timeout", 0, "Time to wait for each acknowledgement")
	flags.Bool("log-json", false, "Log in JSON")
	flags.String("log-file", "", "Also write logs to this rotated file")

	bindings := map[string]string{
		"serial.device":          "device",
		"serial.baud":            "baud",
		"session.bands":          "bands",
		"session.requesttimeout": "timeout",
		"log.json":               "log-json",
		"log.file":               "log-file",
	}
	for key, name := range bindings {
		if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}

// initialize loads the settings and builds the logger
func (a *app) initialize() error {
	settings, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	if a.debug {
		settings.Log.Level = "debug"
	}

	level, err := logging.ParseLevel(settings.Log.Level)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stderr
	if settings.Log.File != "" {
		f, err := logging.OpenFile(settings.LogFile())
		if err != nil {
			return err
		}
		a.logFile = f
		w = io.MultiWriter(os.Stderr, f)
	}

	a.settings = settings
	a.logger = logging.New(w, level, settings.Log.JSON)
	slog.SetDefault(a.logger)
	return nil
}

func (a *app) closeLog() error {
	if a.logFile == nil {
		return nil
	}
	err := a.logFile.Close()
	a.logFile = nil
	return err
}

// openDevice creates the device, wiring metrics when enabled, and connects it
func (a *app) openDevice() (*device.Device, *metrics.Metrics, error) {
	var (
		m        *metrics.Metrics
		recorder session.Recorder
	)
	if a.settings.Metrics.Enabled {
		var err error
		m, err = metrics.New()
		if err != nil {
			return nil, nil, err
		}
		recorder = m.Protocol
	}

	dev := device.New(a.settings.SessionConfig(a.logger, recorder))
	if m != nil {
		dev.OnStateChange(func(s device.ConnectionState) {
			m.Protocol.UpdateConnectionStatus(s == device.Connected)
		})
	}

	if err := dev.ConnectWithConfig(a.settings.SerialConfig()); err != nil {
		_ = dev.Shutdown()
		return nil, nil, err
	}
	return dev, m, nil
}
