package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"gaiaeq/host/device"
	"gaiaeq/host/metrics"
	"gaiaeq/host/mqtt"
)

func TestServeStopsMetricsWhenBridgeFails(t *testing.T) {
	defer goleak.VerifyNone(t)
	chdir(t, t.TempDir())

	a := newApp()
	root := a.rootCommand()
	require.NoError(t, root.ParseFlags(nil))
	require.NoError(t, a.initialize())
	defer a.closeLog()

	a.settings.Metrics.Enabled = true
	a.settings.Metrics.Listen = "127.0.0.1:0"
	a.settings.MQTT.Enabled = true
	a.settings.MQTT.Broker = ""

	m, err := metrics.New()
	require.NoError(t, err)
	dev := device.New(a.settings.SessionConfig(a.logger, m.Protocol))
	defer dev.Shutdown()

	err = a.serve(testContext(t), dev, m)
	assert.ErrorIs(t, err, mqtt.ErrNotConnected)
}
