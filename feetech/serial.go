package feetech

import (
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// DefaultBaudRate is the factory line speed of STS servos.
const DefaultBaudRate = 1000000

// SerialTransport implements Transport on an OS serial port.
type SerialTransport struct {
	port     serial.Port
	portName string
	mode     serial.Mode
}

// OpenSerial opens path at the default baud rate, 8N1. Callers change the
// rate with SetBaudRate.
func OpenSerial(path string) (Transport, error) {
	if path == "" {
		return nil, errors.New("serial port path is required")
	}

	mode := serial.Mode{
		BaudRate: DefaultBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(path, &mode)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial port %s", path)
	}

	return &SerialTransport{port: port, portName: path, mode: mode}, nil
}

func (t *SerialTransport) Read(p []byte) (int, error) {
	return t.port.Read(p)
}

func (t *SerialTransport) Write(p []byte) (int, error) {
	return t.port.Write(p)
}

func (t *SerialTransport) Close() error {
	return t.port.Close()
}

func (t *SerialTransport) SetBaudRate(rate int) error {
	mode := t.mode
	mode.BaudRate = rate
	if err := t.port.SetMode(&mode); err != nil {
		return errors.Wrapf(err, "failed to set baud rate %d on %s", rate, t.portName)
	}
	t.mode = mode
	return nil
}

func (t *SerialTransport) SetReadTimeout(timeout time.Duration) error {
	return t.port.SetReadTimeout(timeout)
}

func (t *SerialTransport) Flush() error {
	if err := t.port.ResetInputBuffer(); err != nil {
		return errors.Wrap(err, "failed to reset input buffer")
	}
	if err := t.port.ResetOutputBuffer(); err != nil {
		return errors.Wrap(err, "failed to reset output buffer")
	}
	return nil
}

// PortName returns the serial port name.
func (t *SerialTransport) PortName() string {
	return t.portName
}
