package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gaiaeq/host/session"
	"gaiaeq/protocol"
)

var _ session.Recorder = (*ProtocolMetrics)(nil)

func newProtocolMetrics(t *testing.T) *ProtocolMetrics {
	t.Helper()
	m, err := NewProtocolMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func TestFrameCounters(t *testing.T) {
	m := newProtocolMetrics(t)

	m.FrameSent(protocol.CommandSetEQParameter)
	m.FrameSent(protocol.CommandSetEQParameter)
	m.FrameReceived(protocol.CommandGetEQParameter, true)
	m.FrameReceived(0x4003, false)
	m.MalformedFrame()

	assert.InDelta(t, 2, testutil.ToFloat64(m.framesSent.WithLabelValues("set_eq_parameter")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.framesReceived.WithLabelValues("get_eq_parameter", "ack")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.framesReceived.WithLabelValues("unknown", "notification")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.malformedFrames), 0)
}

func TestRejectionsAndTimeouts(t *testing.T) {
	m := newProtocolMetrics(t)

	m.Rejected(protocol.CommandSetEQControl, protocol.StatusIncorrectState)
	m.Rejected(protocol.CommandSetEQParameter, protocol.StatusNotSupported)
	m.RequestTimeout(protocol.CommandGetEQControl)

	assert.InDelta(t, 1, testutil.ToFloat64(m.rejections.WithLabelValues("set_eq_control", "incorrect_state")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.rejections.WithLabelValues("set_eq_parameter", "not_supported")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.timeouts.WithLabelValues("get_eq_control")), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(m.rejections))
}

func TestGauges(t *testing.T) {
	m := newProtocolMetrics(t)

	m.BankFresh(true)
	assert.InDelta(t, 1, testutil.ToFloat64(m.bankFresh), 0)
	m.BankFresh(false)
	assert.InDelta(t, 0, testutil.ToFloat64(m.bankFresh), 0)

	m.UpdateConnectionStatus(true)
	assert.InDelta(t, 1, testutil.ToFloat64(m.connected), 0)
	assert.Greater(t, testutil.ToFloat64(m.lastConnectTime), float64(0))

	m.UpdateConnectionStatus(false)
	assert.InDelta(t, 0, testutil.ToFloat64(m.connected), 0)
}

func TestRoundTripHistogram(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewProtocolMetrics(registry)
	require.NoError(t, err)

	m.RoundTrip(protocol.CommandGetEQParameter, 12*time.Millisecond)
	m.RoundTrip(protocol.CommandGetEQParameter, 30*time.Millisecond)

	families, err := registry.Gather()
	require.NoError(t, err)

	family := findFamily(families, "gaiaeq_round_trip_seconds")
	require.NotNil(t, family)
	require.Len(t, family.GetMetric(), 1)
	hist := family.GetMetric()[0].GetHistogram()
	assert.Equal(t, uint64(2), hist.GetSampleCount())
	assert.InDelta(t, 0.042, hist.GetSampleSum(), 1e-9)
}

func TestDuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewProtocolMetrics(registry)
	require.NoError(t, err)

	_, err = NewProtocolMetrics(registry)
	assert.Error(t, err)
}

func TestMQTTMetrics(t *testing.T) {
	m, err := NewMQTTMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.UpdateConnectionStatus(true)
	m.Published("bank", 3*time.Millisecond)
	m.Published("bank", time.Millisecond)
	m.CommandReceived(true)
	m.CommandReceived(false)
	m.IncrementErrors()

	assert.InDelta(t, 1, testutil.ToFloat64(m.ConnectionStatus), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.MessagesPublished.WithLabelValues("bank")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CommandsReceived.WithLabelValues("ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CommandsReceived.WithLabelValues("error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Errors), 0)
}

func TestHandler(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.Protocol.FrameSent(protocol.CommandGetEQControl)

	rec := httptest.NewRecorder()
	m.Handler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, metricsPath, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `gaiaeq_frames_sent_total{command="get_eq_control"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestServeStopsWithContext(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx, "127.0.0.1:0", nil) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func findFamily(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}
