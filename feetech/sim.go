package feetech

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrSimClosed is returned by a closed SimBus.
var ErrSimClosed = errors.New("simulated bus is closed")

// SimServo is one simulated servo: a control table plus fault knobs.
type SimServo struct {
	ID    byte
	Table [256]byte

	// Status is attached to every reply.
	Status StatusError
	// Silent servos never reply.
	Silent bool
	// CorruptChecksum flips the checksum of every reply.
	CorruptChecksum bool
	// DropReads and DropWrites suppress the reply for the given addresses.
	DropReads  map[byte]bool
	DropWrites map[byte]bool
}

// NewSimServo returns a servo at id with a factory-like control table.
func NewSimServo(id byte, model uint16) *SimServo {
	s := &SimServo{
		ID:         id,
		DropReads:  map[byte]bool{},
		DropWrites: map[byte]bool{},
	}
	s.SetRegister(RegModelNumber, model)
	s.SetRegister(RegMinAngleLimit, 0)
	s.SetRegister(RegMaxAngleLimit, 4095)
	s.SetRegister(RegPresentPosition, 2048)
	s.SetRegister(RegGoalPosition, 2048)
	return s
}

// Register returns the current value of reg.
func (s *SimServo) Register(reg Register) uint16 {
	if reg.Size == 1 {
		return uint16(s.Table[reg.Address])
	}
	return DecodeWord(s.Table[reg.Address : reg.Address+2])
}

// SetRegister stores value in reg.
func (s *SimServo) SetRegister(reg Register, value uint16) {
	if reg.Size == 1 {
		s.Table[reg.Address] = byte(value)
		return
	}
	copy(s.Table[reg.Address:reg.Address+2], EncodeWord(value))
}

// SimBus is a Transport backed by simulated servos. Each instruction frame
// written to it is answered, if at all, by a status frame queued for Read.
type SimBus struct {
	mu       sync.Mutex
	servos   map[byte]*SimServo
	pending  []byte
	closed   bool
	baudRate int

	// FailBaud makes SetBaudRate fail.
	FailBaud bool

	// Instructions records every decoded instruction in order.
	Instructions []Instruction
}

// NewSimBus returns an open bus with the given servos attached.
func NewSimBus(servos ...*SimServo) *SimBus {
	b := &SimBus{servos: map[byte]*SimServo{}, baudRate: DefaultBaudRate}
	for _, s := range servos {
		b.servos[s.ID] = s
	}
	return b
}

// Servo returns the servo at id, or nil.
func (b *SimBus) Servo(id byte) *SimServo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.servos[id]
}

// Closed reports whether the bus has been closed.
func (b *SimBus) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// BaudRate returns the last baud rate set.
func (b *SimBus) BaudRate() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.baudRate
}

// Writes returns the recorded write instructions addressed to id.
func (b *SimBus) Writes(id byte) []Instruction {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Instruction
	for _, in := range b.Instructions {
		if in.ID == id && in.Instruction == InstWrite {
			out = append(out, in)
		}
	}
	return out
}

func (b *SimBus) reopen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = false
	b.pending = nil
}

func (b *SimBus) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrSimClosed
	}
	n := copy(p, b.pending)
	b.pending = b.pending[n:]
	return n, nil
}

func (b *SimBus) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrSimClosed
	}

	in, err := DecodeInstruction(p)
	if err != nil {
		// Servos ignore frames they cannot parse.
		return len(p), nil
	}
	b.Instructions = append(b.Instructions, in)

	s, ok := b.servos[in.ID]
	if !ok || s.Silent {
		return len(p), nil
	}

	var params []byte
	switch in.Instruction {
	case InstPing:
	case InstRead:
		if len(in.Params) != 2 || s.DropReads[in.Address()] {
			return len(p), nil
		}
		addr, n := int(in.Params[0]), int(in.Params[1])
		if addr+n > len(s.Table) {
			return len(p), nil
		}
		params = append(params, s.Table[addr:addr+n]...)
	case InstWrite:
		if len(in.Params) < 2 || s.DropWrites[in.Address()] {
			return len(p), nil
		}
		addr := int(in.Params[0])
		copy(s.Table[addr:], in.Params[1:])
		if byte(addr) == RegGoalPosition.Address && s.Table[RegTorqueEnable.Address] != 0 {
			s.SetRegister(RegPresentPosition, s.Register(RegGoalPosition))
		}
	default:
		return len(p), nil
	}

	resp := EncodeResponse(s.ID, s.Status, params)
	if s.CorruptChecksum {
		resp[len(resp)-1] ^= 0xFF
	}
	b.pending = append(b.pending, resp...)
	return len(p), nil
}

func (b *SimBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *SimBus) SetBaudRate(rate int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.FailBaud {
		return errors.Errorf("simulated bus rejects baud rate %d", rate)
	}
	b.baudRate = rate
	return nil
}

func (b *SimBus) SetReadTimeout(time.Duration) error {
	return nil
}

func (b *SimBus) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = nil
	return nil
}

// SimOpener returns an Opener that hands out the bus registered for a path
// and fails for any other path.
func SimOpener(buses map[string]*SimBus) Opener {
	return func(path string) (Transport, error) {
		bus, ok := buses[path]
		if !ok {
			return nil, errors.Errorf("failed to open serial port %s: no such device", path)
		}
		bus.reopen()
		return bus, nil
	}
}
