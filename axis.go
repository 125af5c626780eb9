package fac1

import (
	"fmt"

	"github.com/pkg/errors"
)

// Position limits in encoder ticks across a full rotation.
const (
	MinPosition    uint16 = 0
	MaxPosition    uint16 = 4095
	CenterPosition uint16 = 2048
)

// Axis is one rotational degree of freedom of the head.
type Axis int

const (
	Pan Axis = iota
	Tilt
)

func (a Axis) String() string {
	switch a {
	case Pan:
		return "pan"
	case Tilt:
		return "tilt"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// ParseAxis accepts "pan" or "tilt".
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "pan":
		return Pan, nil
	case "tilt":
		return Tilt, nil
	default:
		return 0, errors.Errorf("unknown axis %q", s)
	}
}

// Direction is a jog direction. Left and Right belong to pan, Up and Down to
// tilt.
type Direction int

const (
	Left Direction = iota
	Right
	Up
	Down
)

func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ParseDirection accepts "left", "right", "up" or "down".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	default:
		return 0, errors.Errorf("unknown direction %q", s)
	}
}

// Axis returns the axis a direction belongs to.
func (d Direction) Axis() Axis {
	if d == Up || d == Down {
		return Tilt
	}
	return Pan
}

// Opposite returns the reverse direction on the same axis.
func (d Direction) Opposite() Direction {
	switch d {
	case Left:
		return Right
	case Right:
		return Left
	case Up:
		return Down
	default:
		return Up
	}
}

func (d Direction) increases() bool {
	return d == Right || d == Up
}

// ClampedDecrease returns max(0, p-step) without wrapping.
func ClampedDecrease(p, step uint16) uint16 {
	if p > step {
		return p - step
	}
	return MinPosition
}

// ClampedIncrease returns min(4095, p+step) without overflowing.
func ClampedIncrease(p, step uint16) uint16 {
	if sum := uint32(p) + uint32(step); sum < uint32(MaxPosition) {
		return uint16(sum)
	}
	return MaxPosition
}

// AxisState is the controller's runtime view of one servo. It only changes
// after a successful device operation.
type AxisState struct {
	Position      uint16
	Speed         uint16
	Acceleration  uint8
	TorqueEnabled bool

	// Diagnostics from the last initialization.
	ModelNumber   uint16
	MinAngleLimit uint16
	MaxAngleLimit uint16
}
