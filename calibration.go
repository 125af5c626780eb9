package fac1

import (
	"github.com/pkg/errors"

	"fac1/feetech"
)

// CalibrationState tracks the center calibration workflow: release torque,
// position the head by hand, calibrate, then re-enable torque.
type CalibrationState int

const (
	CalibrationIdle CalibrationState = iota
	CalibrationTorqueReleased
	CalibrationCompleted
	CalibrationFailed
)

func (s CalibrationState) String() string {
	switch s {
	case CalibrationIdle:
		return "idle"
	case CalibrationTorqueReleased:
		return "torque_released"
	case CalibrationCompleted:
		return "completed"
	case CalibrationFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CalibrationState returns the current calibration step.
func (c *Controller) CalibrationState() CalibrationState {
	return c.calibration
}

// BeginCalibration releases torque on both axes so the head can be positioned
// by hand.
func (c *Controller) BeginCalibration() error {
	if c.link == nil {
		c.logger.Warn("Not connected")
		return errors.Wrap(ErrNotConnected, "begin calibration")
	}

	c.logger.Info("Releasing torque for calibration")
	c.DisableTorque()
	c.calibration = CalibrationTorqueReleased
	return nil
}

// CalibrateCenter takes the position each axis was moved to by hand as its new
// goal position. Torque is released first if it is still enabled. Runtime
// positions are committed only if every read and write succeeds. Torque stays
// disabled either way; EndCalibration re-enables it.
func (c *Controller) CalibrateCenter() error {
	if c.link == nil {
		c.logger.Warn("Not connected")
		return errors.Wrap(ErrNotConnected, "calibrate center")
	}

	if c.calibration != CalibrationTorqueReleased || c.axes[Pan].TorqueEnabled || c.axes[Tilt].TorqueEnabled {
		c.DisableTorque()
	}

	var positions [2]uint16
	for _, axis := range []Axis{Pan, Tilt} {
		id := c.servoID(axis)

		pos, res, status := c.link.ReadRegister(id, feetech.RegPresentPosition.Address, feetech.RegPresentPosition.Size)
		if err := feetech.Check("read "+axis.String()+" present position", id, res, status); err != nil {
			c.logger.Warnf("Calibration failed reading %s position: %s", axis, describe(res, status))
			c.calibration = CalibrationFailed
			return errors.Wrap(err, "calibrate center")
		}
		pos = clampPosition(pos)

		res, status = c.link.WriteRegister(id, feetech.RegGoalPosition.Address, pos, feetech.RegGoalPosition.Size)
		if err := feetech.Check("write "+axis.String()+" goal position", id, res, status); err != nil {
			c.logger.Warnf("Calibration failed writing %s position: %s", axis, describe(res, status))
			c.calibration = CalibrationFailed
			return errors.Wrap(err, "calibrate center")
		}

		positions[axis] = pos
	}

	for _, axis := range []Axis{Pan, Tilt} {
		c.axes[axis].Position = positions[axis]
	}
	c.calibration = CalibrationCompleted
	c.logger.Infof("Calibrated center: pan=%d tilt=%d", positions[Pan], positions[Tilt])
	return nil
}

// EndCalibration re-enables torque after a completed, failed or cancelled
// calibration and returns to idle. Outside a calibration it does nothing.
func (c *Controller) EndCalibration() {
	if c.calibration == CalibrationIdle {
		return
	}
	c.EnableTorque()
	c.calibration = CalibrationIdle
}
