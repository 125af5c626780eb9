package feetech

import (
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

// Default exchange timing.
const (
	DefaultTimeout       = 100 * time.Millisecond
	DefaultMinCommandGap = time.Millisecond

	turnaroundDelay = 100 * time.Microsecond
)

// LinkConfig holds the timing of a Link.
type LinkConfig struct {
	// Timeout bounds one request/response exchange. Default 100ms.
	Timeout time.Duration

	// MinCommandGap is the minimum time between two requests. Default 1ms.
	MinCommandGap time.Duration
}

// Link owns one open transport and runs request/response exchanges on it.
// Every call makes exactly one attempt and reports its outcome as a
// CommResult plus the servo's status flags; nothing is retried.
type Link struct {
	transport Transport
	timeout   time.Duration
	minCmdGap time.Duration
	logger    logging.Logger

	mu          sync.Mutex
	lastCmdTime time.Time
	closed      bool
}

// NewLink takes ownership of transport.
func NewLink(transport Transport, cfg LinkConfig, logger logging.Logger) *Link {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MinCommandGap <= 0 {
		cfg.MinCommandGap = DefaultMinCommandGap
	}
	if logger == nil {
		logger = logging.NewLogger("feetech")
	}
	return &Link{
		transport: transport,
		timeout:   cfg.Timeout,
		minCmdGap: cfg.MinCommandGap,
		logger:    logger,
	}
}

// Close closes the transport. Closing twice is a no-op.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || l.transport == nil {
		l.closed = true
		return nil
	}
	l.closed = true
	return l.transport.Close()
}

// Ping checks that servo id answers and reads its model number.
func (l *Link) Ping(id byte) (uint16, CommResult, StatusError) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.openLocked() {
		return 0, PortError, 0
	}
	if id > MaxServoID {
		return 0, TxRxError, 0
	}

	resp, res := l.exchangeLocked(id, EncodePing(id), 0)
	if res != Success || resp.Status.HasError() {
		return 0, res, resp.Status
	}

	return l.readLocked(id, RegModelNumber.Address, RegModelNumber.Size)
}

// ReadRegister reads a length-byte register value from servo id.
func (l *Link) ReadRegister(id, address byte, length int) (uint16, CommResult, StatusError) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.openLocked() {
		return 0, PortError, 0
	}
	if id > MaxServoID {
		return 0, TxRxError, 0
	}
	return l.readLocked(id, address, length)
}

// WriteRegister writes a length-byte register value to servo id.
func (l *Link) WriteRegister(id, address byte, value uint16, length int) (CommResult, StatusError) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.openLocked() {
		return PortError, 0
	}
	if id > MaxServoID {
		return TxRxError, 0
	}

	frame, err := EncodeWrite(id, address, value, length)
	if err != nil {
		l.logger.Debugf("servo %d write 0x%02X rejected: %v", id, address, err)
		return TxRxError, 0
	}

	resp, res := l.exchangeLocked(id, frame, 0)
	return res, resp.Status
}

func (l *Link) openLocked() bool {
	return !l.closed && l.transport != nil
}

func (l *Link) readLocked(id, address byte, length int) (uint16, CommResult, StatusError) {
	frame, err := EncodeRead(id, address, length)
	if err != nil {
		l.logger.Debugf("servo %d read 0x%02X rejected: %v", id, address, err)
		return 0, TxRxError, 0
	}

	resp, res := l.exchangeLocked(id, frame, length)
	if res != Success {
		return 0, res, resp.Status
	}
	if len(resp.Params) != length {
		if resp.Status.HasError() {
			return 0, Success, resp.Status
		}
		return 0, TxRxError, resp.Status
	}

	if length == 1 {
		return uint16(resp.Params[0]), Success, resp.Status
	}
	return DecodeWord(resp.Params), Success, resp.Status
}

// exchangeLocked sends one request and waits for one status frame carrying
// dataLen parameter bytes.
func (l *Link) exchangeLocked(id byte, frame []byte, dataLen int) (Response, CommResult) {
	if !l.openLocked() {
		return Response{}, PortError
	}

	if err := l.sendLocked(frame); err != nil {
		l.logger.Debugf("servo %d send failed: %v", id, err)
		return Response{}, PortError
	}

	raw, res := l.receiveLocked(ResponseLength(dataLen))
	if res != Success {
		return Response{}, res
	}

	resp, err := DecodeResponse(raw)
	if err != nil {
		l.logger.Debugf("servo %d bad response % X: %v", id, raw, err)
		if errors.Is(err, ErrChecksumMismatch) {
			return Response{}, ChecksumError
		}
		return Response{}, TxRxError
	}

	if resp.ID != id {
		l.logger.Debugf("unexpected servo ID in response: expected %d, got %d", id, resp.ID)
		return Response{}, TxRxError
	}

	return resp, Success
}

func (l *Link) sendLocked(frame []byte) error {
	if elapsed := time.Since(l.lastCmdTime); elapsed < l.minCmdGap {
		time.Sleep(l.minCmdGap - elapsed)
	}

	// Stale bytes would be taken for the reply.
	if err := l.transport.Flush(); err != nil {
		l.logger.Debugf("flush failed: %v", err)
	}

	n, err := l.transport.Write(frame)
	if err != nil {
		return errors.Wrap(err, "write failed")
	}
	if n != len(frame) {
		return errors.Errorf("incomplete write: %d of %d bytes", n, len(frame))
	}
	l.lastCmdTime = time.Now()

	time.Sleep(turnaroundDelay)
	return nil
}

// receiveLocked reads until expectedLen bytes starting at a frame header have
// arrived or the exchange deadline passes.
func (l *Link) receiveLocked(expectedLen int) ([]byte, CommResult) {
	buf := make([]byte, 0, expectedLen*2)
	chunk := make([]byte, expectedLen*2)
	deadline := time.Now().Add(l.timeout)

	for {
		buf = skipToHeader(buf)
		if len(buf) >= expectedLen {
			return buf[:expectedLen], Success
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, Timeout
		}
		if err := l.transport.SetReadTimeout(remaining); err != nil {
			l.logger.Debugf("set read timeout failed: %v", err)
		}

		n, err := l.transport.Read(chunk[:expectedLen-len(buf)])
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			l.logger.Debugf("read failed: %v", err)
			return nil, PortError
		}
		time.Sleep(time.Millisecond)
	}
}

// skipToHeader drops leading bytes that cannot start a frame.
func skipToHeader(buf []byte) []byte {
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == headerByte && buf[i+1] == headerByte {
			return buf[i:]
		}
	}
	if len(buf) > 0 && buf[len(buf)-1] == headerByte {
		return buf[len(buf)-1:]
	}
	return buf[:0]
}
