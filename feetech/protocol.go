// Package feetech implements the Feetech STS serial bus protocol used by the
// pan/tilt head: frame encoding, response decoding, and a single-owner link
// that runs request/response exchanges over a serial transport.
package feetech

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Instruction codes.
const (
	InstPing  byte = 0x01
	InstRead  byte = 0x02
	InstWrite byte = 0x03
)

// Special IDs.
const (
	BroadcastID byte = 0xFE
	MaxServoID  byte = 0xFD
)

const (
	headerByte = 0xFF

	// header(2) + id + length + instruction/error + checksum
	minFrameLen = 6
)

// Codec errors.
var (
	ErrMalformedFrame   = errors.New("malformed frame")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrInvalidLength    = errors.New("register length must be 1 or 2")
	ErrValueRange       = errors.New("value does not fit register length")
)

// StatusError holds the hardware error flags a servo reports in a status frame.
type StatusError byte

const (
	ErrVoltage     StatusError = 1 << 0
	ErrAngleLimit  StatusError = 1 << 1
	ErrOverheat    StatusError = 1 << 2
	ErrRange       StatusError = 1 << 3
	ErrChecksum    StatusError = 1 << 4
	ErrOverload    StatusError = 1 << 5
	ErrInstruction StatusError = 1 << 6
)

var statusNames = []struct {
	flag StatusError
	name string
}{
	{ErrVoltage, "voltage"},
	{ErrAngleLimit, "angle limit"},
	{ErrOverheat, "overheat"},
	{ErrRange, "range"},
	{ErrChecksum, "checksum"},
	{ErrOverload, "overload"},
	{ErrInstruction, "instruction"},
}

func (e StatusError) Error() string {
	if e == 0 {
		return "no error"
	}
	var msgs []string
	for _, s := range statusNames {
		if e&s.flag != 0 {
			msgs = append(msgs, s.name)
		}
	}
	return fmt.Sprintf("servo status error: %s", strings.Join(msgs, ", "))
}

// HasError returns true if any error flag is set.
func (e StatusError) HasError() bool {
	return e != 0
}

// Response is a decoded status frame.
type Response struct {
	ID     byte
	Params []byte
	Status StatusError
}

// Instruction is a decoded instruction frame.
type Instruction struct {
	ID          byte
	Instruction byte
	Params      []byte
}

// Address returns the register address of a read or write instruction.
func (in Instruction) Address() byte {
	if len(in.Params) == 0 {
		return 0
	}
	return in.Params[0]
}

// Value returns the register value carried by a write instruction and its
// length in bytes.
func (in Instruction) Value() (uint16, int) {
	if in.Instruction != InstWrite || len(in.Params) < 2 {
		return 0, 0
	}
	data := in.Params[1:]
	if len(data) == 1 {
		return uint16(data[0]), 1
	}
	return DecodeWord(data), len(data)
}

// EncodeWord converts a 16-bit value to little-endian bytes, the STS byte order.
func EncodeWord(value uint16) []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, value)
	return buf
}

// DecodeWord converts little-endian bytes to a 16-bit value.
func DecodeWord(data []byte) uint16 {
	if len(data) < 2 {
		return 0
	}
	return binary.LittleEndian.Uint16(data)
}

// Checksum returns the bitwise complement of the byte sum of data.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return ^sum
}

func encodeFrame(id, inst byte, params []byte) []byte {
	buf := make([]byte, 0, minFrameLen+len(params))
	buf = append(buf, headerByte, headerByte, id, byte(len(params)+2), inst)
	buf = append(buf, params...)
	return append(buf, Checksum(buf[2:]))
}

// EncodePing builds a ping instruction frame.
func EncodePing(id byte) []byte {
	return encodeFrame(id, InstPing, nil)
}

// EncodeRead builds a read instruction frame for length bytes at address.
func EncodeRead(id, address byte, length int) ([]byte, error) {
	if length != 1 && length != 2 {
		return nil, errors.Wrapf(ErrInvalidLength, "read %d bytes", length)
	}
	return encodeFrame(id, InstRead, []byte{address, byte(length)}), nil
}

// EncodeWrite builds a write instruction frame. Two-byte values are sent low
// byte first.
func EncodeWrite(id, address byte, value uint16, length int) ([]byte, error) {
	switch length {
	case 1:
		if value > 0xFF {
			return nil, errors.Wrapf(ErrValueRange, "value %d, length 1", value)
		}
		return encodeFrame(id, InstWrite, []byte{address, byte(value)}), nil
	case 2:
		return encodeFrame(id, InstWrite, append([]byte{address}, EncodeWord(value)...)), nil
	default:
		return nil, errors.Wrapf(ErrInvalidLength, "write %d bytes", length)
	}
}

// ResponseLength returns the wire length of a status frame carrying dataLen
// parameter bytes.
func ResponseLength(dataLen int) int {
	return minFrameLen + dataLen
}

// splitFrame validates framing and checksum and returns id, the
// instruction/error byte, and the parameters.
func splitFrame(frame []byte) (byte, byte, []byte, error) {
	if len(frame) < minFrameLen {
		return 0, 0, nil, errors.Wrapf(ErrMalformedFrame, "%d bytes", len(frame))
	}
	if frame[0] != headerByte || frame[1] != headerByte {
		return 0, 0, nil, errors.Wrapf(ErrMalformedFrame, "header % X", frame[:2])
	}
	length := int(frame[3])
	if length < 2 || len(frame) != 4+length {
		return 0, 0, nil, errors.Wrapf(ErrMalformedFrame, "declared length %d, have %d bytes", length, len(frame)-4)
	}
	want := Checksum(frame[2 : len(frame)-1])
	if got := frame[len(frame)-1]; got != want {
		return 0, 0, nil, errors.Wrapf(ErrChecksumMismatch, "expected 0x%02X, got 0x%02X", want, got)
	}
	var params []byte
	if n := length - 2; n > 0 {
		params = make([]byte, n)
		copy(params, frame[5:5+n])
	}
	return frame[2], frame[4], params, nil
}

// DecodeResponse parses a status frame. Hardware error flags are returned in
// Response.Status and never produce an error.
func DecodeResponse(frame []byte) (Response, error) {
	id, status, params, err := splitFrame(frame)
	if err != nil {
		return Response{}, err
	}
	return Response{ID: id, Params: params, Status: StatusError(status)}, nil
}

// DecodeInstruction parses an instruction frame.
func DecodeInstruction(frame []byte) (Instruction, error) {
	id, inst, params, err := splitFrame(frame)
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{ID: id, Instruction: inst, Params: params}, nil
}

// EncodeResponse builds a status frame, as a servo would send it.
func EncodeResponse(id byte, status StatusError, params []byte) []byte {
	return encodeFrame(id, byte(status), params)
}
