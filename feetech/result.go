package feetech

import "fmt"

// CommResult classifies the outcome of one exchange on the wire.
type CommResult int

const (
	Success CommResult = iota
	Timeout
	PortError
	ChecksumError
	TxRxError
)

func (r CommResult) String() string {
	switch r {
	case Success:
		return "success"
	case Timeout:
		return "timeout"
	case PortError:
		return "port error"
	case ChecksumError:
		return "checksum error"
	case TxRxError:
		return "tx/rx error"
	default:
		return fmt.Sprintf("comm result %d", int(r))
	}
}

// ExchangeError reports an exchange that did not succeed cleanly, either at the
// communication level or because the servo raised status flags.
type ExchangeError struct {
	Op     string
	ID     byte
	Result CommResult
	Status StatusError
}

func (e *ExchangeError) Error() string {
	if e.Result == Success && e.Status.HasError() {
		return fmt.Sprintf("servo %d %s failed: %s", e.ID, e.Op, e.Status.Error())
	}
	return fmt.Sprintf("servo %d %s failed: %s", e.ID, e.Op, e.Result)
}

// Unwrap exposes the status flags so errors.Is can match them.
func (e *ExchangeError) Unwrap() error {
	if e.Status.HasError() {
		return e.Status
	}
	return nil
}

// Check returns nil for a clean exchange and an *ExchangeError otherwise.
func Check(op string, id byte, res CommResult, status StatusError) error {
	if res == Success && !status.HasError() {
		return nil
	}
	return &ExchangeError{Op: op, ID: id, Result: res, Status: status}
}
