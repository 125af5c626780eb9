package feetech

import (
	"io"
	"time"
)

// Transport is the byte-level serial capability a Link runs over.
type Transport interface {
	io.ReadWriteCloser

	// SetBaudRate changes the line speed of an open port.
	SetBaudRate(rate int) error

	// SetReadTimeout bounds how long a single Read may block.
	SetReadTimeout(timeout time.Duration) error

	// Flush discards any buffered input and output.
	Flush() error
}

// Opener opens the transport at path.
type Opener func(path string) (Transport, error)
