package main

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gaiaeq/equalizer"
	"gaiaeq/host/session"
	"gaiaeq/protocol"
)

type fakeSender struct {
	mu     sync.Mutex
	frames [][]byte
}

func (f *fakeSender) Send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, append([]byte(nil), frame...))
	return nil
}

func (f *fakeSender) last() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.frames) == 0 {
		return nil
	}
	return f.frames[len(f.frames)-1]
}

func filterReport(band uint8, f equalizer.FilterType) []byte {
	id := protocol.NewParameterID(band, protocol.ParamFilter)
	payload := []byte{byte(protocol.StatusSuccess), protocol.EQParameterFirstByte, byte(id), 0, 0}
	protocol.PutValue(payload[3:], uint16(f))
	return protocol.Encode(protocol.CommandGetEQParameter, payload, true)
}

func newTestConsole(t *testing.T) (*console, *session.Session, *fakeSender, *bytes.Buffer) {
	t.Helper()
	sender := &fakeSender{}
	sess := session.New(sender, session.Config{})
	out := &bytes.Buffer{}
	c := newConsole(sess, out)
	t.Cleanup(func() {
		c.close()
		_ = sess.Close()
	})
	return c, sess, sender, out
}

func exec(t *testing.T, c *console, line string) {
	t.Helper()
	quit, err := c.exec(line)
	require.NoError(t, err, line)
	require.False(t, quit)
}

func TestConsoleSelectBand(t *testing.T) {
	c, sess, sender, _ := newTestConsole(t)

	exec(t, c, "band 2")
	assert.Equal(t, []byte{0xFF, 0xFF, 0x9B, 0x02, 0x01, 0x20}, sender.last())
	assert.Equal(t, 2, sess.Snapshot().CurrentBand)
}

func TestConsoleSetRealValues(t *testing.T) {
	c, sess, sender, _ := newTestConsole(t)
	sess.HandleIncoming(filterReport(1, equalizer.ParametricEQ))

	exec(t, c, "set gain -3.5")
	assert.Equal(t, []byte{0xFF, 0xFF, 0x1B, 0x02, 0x01, 0x12, 0xFE, 0xA2, 0x00}, sender.last())

	exec(t, c, "set q 0.707")
	assert.Equal(t, []byte{0xFF, 0xFF, 0x1B, 0x02, 0x01, 0x13, 0x00, 0x47, 0x00}, sender.last())

	exec(t, c, "set master -12")
	assert.Equal(t, []byte{0xFF, 0xFF, 0x1B, 0x02, 0x01, 0x01, 0xFB, 0x50, 0x00}, sender.last())
}

func TestConsoleFilterAcceptsQuotedName(t *testing.T) {
	c, sess, sender, _ := newTestConsole(t)

	exec(t, c, `filter "LowShelf2"`)
	assert.Equal(t, "LS2", sess.Snapshot().Bands[0].Filter)

	require.GreaterOrEqual(t, len(sender.frames), 1)
	assert.Equal(t, []byte{0xFF, 0xFF, 0x1B, 0x02, 0x01, 0x10, 0x00, byte(equalizer.LowShelf2), 0x00}, sender.frames[0])
}

func TestConsoleSlide(t *testing.T) {
	c, sess, sender, out := newTestConsole(t)
	sess.HandleIncoming(filterReport(1, equalizer.ParametricEQ))

	exec(t, c, "slide gain 0")
	assert.Contains(t, out.String(), "gain -> -36.0dB")
	assert.Equal(t, []byte{0xFF, 0xFF, 0x1B, 0x02, 0x01, 0x12, 0xF1, 0xF0, 0x00}, sender.last())
}

func TestConsoleGetAndPreset(t *testing.T) {
	c, sess, sender, _ := newTestConsole(t)

	exec(t, c, "get master")
	assert.Equal(t, []byte{0xFF, 0xFF, 0x9B, 0x02, 0x01, 0x01}, sender.last())

	exec(t, c, "get filter")
	assert.Equal(t, []byte{0xFF, 0xFF, 0x9B, 0x02, 0x01, 0x10}, sender.last())

	exec(t, c, "preset")
	assert.Equal(t, []byte{0xFF, 0xFF, 0x94, 0x02}, sender.last())

	// the write waits for the outstanding preset read
	exec(t, c, "preset 1")
	assert.Equal(t, []byte{0xFF, 0xFF, 0x94, 0x02}, sender.last())

	sess.HandleIncoming(protocol.Encode(protocol.CommandGetEQControl, []byte{0x00, 0x00}, true))
	assert.Equal(t, []byte{0xFF, 0xFF, 0x14, 0x02, 0x01}, sender.last())
}

func TestConsolePrintsEvents(t *testing.T) {
	c, sess, _, out := newTestConsole(t)
	sess.HandleIncoming(filterReport(1, equalizer.ParametricEQ))
	sess.HandleIncoming(protocol.Encode(protocol.CommandGetEQControl, []byte{0x00, 0x01}, true))

	assert.Contains(t, out.String(), "< band 1 filter PEQ")
	assert.Contains(t, out.String(), "< preset 1")

	out.Reset()
	exec(t, c, "show")
	assert.Contains(t, out.String(), "* band 1  PEQ")
	assert.Contains(t, out.String(), "master gain:")
}

func TestConsoleErrors(t *testing.T) {
	c, _, _, _ := newTestConsole(t)

	_, err := c.exec("set gain")
	assert.ErrorIs(t, err, errUsage)

	_, err = c.exec("band two")
	assert.Error(t, err)

	_, err = c.exec("filter nope")
	assert.Error(t, err)

	_, err = c.exec("frobnicate")
	assert.ErrorContains(t, err, "unknown command")

	_, err = c.exec("preset 9")
	assert.ErrorIs(t, err, session.ErrInvalidPreset)

	// band 1 is still bypass
	_, err = c.exec("set gain 1")
	assert.ErrorIs(t, err, session.ErrNotConfigurable)

	_, err = c.exec("sync")
	assert.Error(t, err)

	_, err = c.exec(`filter "unterminated`)
	assert.Error(t, err)
}

func TestConsoleSyncUsesDevice(t *testing.T) {
	c, _, _, _ := newTestConsole(t)

	var got time.Duration
	c.sync = func(d time.Duration) error {
		got = d
		return nil
	}
	c.syncTimeout = 8 * time.Second

	exec(t, c, "sync")
	assert.Equal(t, 8*time.Second, got)
}

func TestConsoleRunLoop(t *testing.T) {
	c, _, sender, out := newTestConsole(t)

	in := strings.NewReader("\nhelp\nbogus\nband 3\nquit\nband 4\n")
	require.NoError(t, c.run(in))

	assert.Contains(t, out.String(), "Available commands:")
	assert.Contains(t, out.String(), "Error: unknown command: bogus")
	assert.Contains(t, out.String(), "Goodbye!")
	assert.Equal(t, []byte{0xFF, 0xFF, 0x9B, 0x02, 0x01, 0x30}, sender.last())
}
