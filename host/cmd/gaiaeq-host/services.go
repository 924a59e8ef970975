package main

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"gaiaeq/host/device"
	"gaiaeq/host/metrics"
	"gaiaeq/host/mqtt"
)

func (a *app) mqttConfig() mqtt.Config {
	cfg := mqtt.DefaultConfig()
	cfg.Broker = a.settings.MQTT.Broker
	cfg.ClientID = a.settings.MQTT.ClientID
	cfg.Username = a.settings.MQTT.Username
	cfg.Password = a.settings.MQTT.Password
	cfg.Topic = a.settings.MQTT.Topic
	cfg.AlertCooldown = a.settings.MQTT.AlertCooldown
	return cfg
}

// startServices starts the metrics endpoint and the MQTT bridge when enabled.
// They run in g until ctx is done.
func (a *app) startServices(ctx context.Context, g *errgroup.Group, dev *device.Device, m *metrics.Metrics) error {
	if m != nil {
		listen := a.settings.Metrics.Listen
		a.logger.Info("serving metrics", "listen", listen)
		g.Go(func() error {
			return m.Serve(ctx, listen, a.logger)
		})
	}

	if !a.settings.MQTT.Enabled {
		return nil
	}

	var recorder mqtt.Recorder
	if m != nil {
		recorder = m.MQTT
	}

	cfg := a.mqttConfig()
	client, err := mqtt.Connect(ctx, cfg, a.logger, recorder)
	if err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	bridge := mqtt.NewBridge(client, dev.Session(), cfg, a.logger, recorder)
	if err := bridge.Start(); err != nil {
		client.Disconnect(250)
		return fmt.Errorf("mqtt: %w", err)
	}

	g.Go(func() error {
		<-ctx.Done()
		bridge.Stop()
		client.Disconnect(250)
		return nil
	})
	return nil
}
