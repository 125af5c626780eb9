package fac1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampedArithmetic(t *testing.T) {
	steps := []uint16{0, 1, 50, 100, 2048, 4095, 65535}
	for p := 0; p <= int(MaxPosition); p++ {
		for _, s := range steps {
			wantDec := p - int(s)
			if wantDec < 0 {
				wantDec = 0
			}
			wantInc := p + int(s)
			if wantInc > int(MaxPosition) {
				wantInc = int(MaxPosition)
			}
			require.Equal(t, uint16(wantDec), ClampedDecrease(uint16(p), s), "decrease %d by %d", p, s)
			require.Equal(t, uint16(wantInc), ClampedIncrease(uint16(p), s), "increase %d by %d", p, s)
		}
	}
}

func TestClampedArithmeticEdges(t *testing.T) {
	assert.Equal(t, uint16(4095), ClampedIncrease(4050, 100))
	assert.Equal(t, uint16(0), ClampedDecrease(50, 100))
	assert.Equal(t, uint16(0), ClampedDecrease(100, 100))
	assert.Equal(t, uint16(4095), ClampedIncrease(3995, 100))
	assert.Equal(t, uint16(4095), ClampedIncrease(65535, 65535))
}

func TestParseAxisAndDirection(t *testing.T) {
	for _, a := range []Axis{Pan, Tilt} {
		parsed, err := ParseAxis(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, parsed)
	}
	_, err := ParseAxis("roll")
	assert.Error(t, err)

	for _, d := range []Direction{Left, Right, Up, Down} {
		parsed, err := ParseDirection(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, parsed)
		assert.Equal(t, d, d.Opposite().Opposite())
		assert.Equal(t, d.Axis(), d.Opposite().Axis())
	}
	_, err = ParseDirection("forward")
	assert.Error(t, err)

	assert.Equal(t, Pan, Left.Axis())
	assert.Equal(t, Pan, Right.Axis())
	assert.Equal(t, Tilt, Up.Axis())
	assert.Equal(t, Tilt, Down.Axis())
}
