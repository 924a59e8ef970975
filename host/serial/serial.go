// Package serial opens the byte stream to the device. Bluetooth SPP links are
// reached through an RFCOMM tty (bound with `rfcomm bind`), so a plain serial
// port covers both USB and Bluetooth.
package serial

import (
	"io"
	"time"
)

// DefaultDevice is the first bound RFCOMM channel
const DefaultDevice = "/dev/rfcomm0"

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - In-memory pipes (for testing)
type Port interface {
	io.ReadWriteCloser

	// Flush discards data received but not read
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/rfcomm0", "/dev/ttyUSB0", "COM3")
	Device string

	// Baud rate (RFCOMM ignores it, USB-UART bridges do not)
	Baud int

	// Read timeout (0 = blocking). A timed out read returns io.EOF.
	ReadTimeout time.Duration
}

// DefaultConfig returns the configuration used for a Bluetooth headset
func DefaultConfig(device string) *Config {
	if device == "" {
		device = DefaultDevice
	}
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100 * time.Millisecond,
	}
}
