// Package serialdev opens the serial ports of attached assistive hardware.
package serialdev

import (
	"context"
	"fmt"
	"io"

	"go.bug.st/serial"

	"github.com/pavelanni/able/internal/input"
)

// DefaultBaudRate is the rate used by the switch and braille firmware.
const DefaultBaudRate = 9600

// Open opens port name at baud, 8N1.
func Open(name string, baud int) (serial.Port, error) {
	if name == "" {
		return nil, input.ErrNoDevice
	}
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	return port, nil
}

// Reader returns an opener suitable for a switch adapter.
func Reader(name string, baud int) func(context.Context) (io.ReadCloser, error) {
	return func(context.Context) (io.ReadCloser, error) {
		return Open(name, baud)
	}
}

// Writer returns an opener suitable for a braille transmitter.
func Writer(name string, baud int) func(context.Context) (io.WriteCloser, error) {
	return func(context.Context) (io.WriteCloser, error) {
		return Open(name, baud)
	}
}

// Ports lists the serial ports present on the machine.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}
