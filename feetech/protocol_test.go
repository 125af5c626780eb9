package feetech

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePing(t *testing.T) {
	// Checksum = ~(01 + 02 + 01) = ~04 = FB
	assert.Equal(t, []byte{0xFF, 0xFF, 0x01, 0x02, 0x01, 0xFB}, EncodePing(0x01))
}

func TestEncodeRead(t *testing.T) {
	frame, err := EncodeRead(0x01, 0x38, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0x01, 0x04, 0x02, 0x38, 0x02, 0xBE}, frame)

	_, err = EncodeRead(0x01, 0x38, 3)
	assert.True(t, errors.Is(err, ErrInvalidLength))
}

func TestEncodeWrite(t *testing.T) {
	frame, err := EncodeWrite(BroadcastID, 0x05, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFE, 0x04, 0x03, 0x05, 0x01, 0xF4}, frame)

	// Goal position 2048 on servo 6, low byte first.
	frame, err = EncodeWrite(6, RegGoalPosition.Address, 2048, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0x06, 0x05, 0x03, 0x2A, 0x00, 0x08}, frame[:8])
	assert.Equal(t, Checksum(frame[2:8]), frame[8])

	_, err = EncodeWrite(6, RegTorqueEnable.Address, 256, 1)
	assert.True(t, errors.Is(err, ErrValueRange))

	_, err = EncodeWrite(6, RegTorqueEnable.Address, 1, 0)
	assert.True(t, errors.Is(err, ErrInvalidLength))
}

func TestDecodeResponse(t *testing.T) {
	t.Run("ping reply", func(t *testing.T) {
		resp, err := DecodeResponse([]byte{0xFF, 0xFF, 0x01, 0x02, 0x00, 0xFC})
		require.NoError(t, err)
		assert.Equal(t, byte(1), resp.ID)
		assert.Empty(t, resp.Params)
		assert.False(t, resp.Status.HasError())
	})

	t.Run("position reply", func(t *testing.T) {
		// 0x0518 = 1304
		resp, err := DecodeResponse([]byte{0xFF, 0xFF, 0x01, 0x04, 0x00, 0x18, 0x05, 0xDD})
		require.NoError(t, err)
		assert.Equal(t, uint16(1304), DecodeWord(resp.Params))
	})

	t.Run("status flags are not a decode error", func(t *testing.T) {
		frame := EncodeResponse(4, ErrOverload|ErrOverheat, nil)
		resp, err := DecodeResponse(frame)
		require.NoError(t, err)
		assert.Equal(t, ErrOverload|ErrOverheat, resp.Status)
		assert.Contains(t, resp.Status.Error(), "overload")
	})

	malformed := map[string][]byte{
		"too short":        {0xFF, 0xFF, 0x01, 0x02},
		"missing header":   {0x00, 0xFF, 0x01, 0x02, 0x00, 0xFC},
		"length too long":  {0xFF, 0xFF, 0x01, 0x05, 0x00, 0xFC},
		"length too short": {0xFF, 0xFF, 0x01, 0x02, 0x00, 0x18, 0x05, 0xDD},
	}
	for name, frame := range malformed {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeResponse(frame)
			assert.True(t, errors.Is(err, ErrMalformedFrame), "got %v", err)
		})
	}

	t.Run("bad checksum", func(t *testing.T) {
		_, err := DecodeResponse([]byte{0xFF, 0xFF, 0x01, 0x02, 0x00, 0xFD})
		assert.True(t, errors.Is(err, ErrChecksumMismatch), "got %v", err)
	})
}

func TestDecodeResponse_SingleByteCorruption(t *testing.T) {
	frame := EncodeResponse(6, 0, EncodeWord(3071))

	for pos := 2; pos < len(frame); pos++ {
		for mask := 1; mask <= 0xFF; mask++ {
			corrupt := append([]byte(nil), frame...)
			corrupt[pos] ^= byte(mask)

			_, err := DecodeResponse(corrupt)
			require.Error(t, err, "pos %d mask %02X accepted", pos, mask)
			if pos == 3 {
				// A changed length byte no longer matches the bytes present.
				assert.True(t, errors.Is(err, ErrMalformedFrame))
				continue
			}
			assert.True(t, errors.Is(err, ErrChecksumMismatch), "pos %d mask %02X: %v", pos, mask, err)
		}
	}

	for pos := 0; pos < 2; pos++ {
		corrupt := append([]byte(nil), frame...)
		corrupt[pos] ^= 0x01
		_, err := DecodeResponse(corrupt)
		assert.Error(t, err)
	}
}

func TestWriteFrameRoundTrip(t *testing.T) {
	check := func(address int, value uint16, length int) {
		frame, err := EncodeWrite(6, byte(address), value, length)
		require.NoError(t, err)

		in, err := DecodeInstruction(frame)
		require.NoError(t, err)
		require.Equal(t, InstWrite, in.Instruction)
		require.Equal(t, byte(address), in.Address())

		got, n := in.Value()
		require.Equal(t, length, n)
		require.Equal(t, value, got, "address %d length %d", address, length)
	}

	for address := 0; address <= 0xFF; address++ {
		for value := 0; value <= 0xFF; value++ {
			check(address, uint16(value), 1)
		}
		for _, value := range []uint16{0, 1, 0xFF, 0x100, 2048, 4095, 0x7FFF, 0xFFFE, 0xFFFF} {
			check(address, value, 2)
		}
	}

	for _, address := range []int{0, int(RegGoalPosition.Address), int(RegGoalSpeed.Address), 0xFF} {
		for value := 0; value <= 0xFFFF; value++ {
			check(address, uint16(value), 2)
		}
	}
}

func TestStatusError(t *testing.T) {
	assert.Equal(t, "no error", StatusError(0).Error())
	assert.Equal(t, "servo status error: voltage, range", (ErrVoltage | ErrRange).Error())
}
