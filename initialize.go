package fac1

import (
	"fac1/feetech"
)

// initialize configures one servo that answered a ping. Every step is logged
// and no failure aborts the remaining steps. A failed torque enable leaves the
// axis configured but not driven.
func (c *Controller) initialize(axis Axis) {
	id := c.servoID(axis)
	c.logger.Debugf("Initializing %s servo %d", axis, id)

	// Limits read here are diagnostic only; commands clamp to MinPosition and
	// MaxPosition.
	minLimit, maxLimit := c.readLimits(axis, "before")
	c.axes[axis].MinAngleLimit, c.axes[axis].MaxAngleLimit = minLimit, maxLimit

	if c.writeStep(axis, "acceleration", feetech.RegAcceleration, uint16(c.cfg.Acceleration)) {
		c.axes[axis].Acceleration = c.cfg.Acceleration
	}
	if c.writeStep(axis, "speed", feetech.RegGoalSpeed, c.cfg.Speed) {
		c.axes[axis].Speed = c.cfg.Speed
	}

	// Force the full rotation range on the device.
	c.writeStep(axis, "min angle limit", feetech.RegMinAngleLimit, MinPosition)
	c.writeStep(axis, "max angle limit", feetech.RegMaxAngleLimit, MaxPosition)

	minLimit, maxLimit = c.readLimits(axis, "after")
	c.axes[axis].MinAngleLimit, c.axes[axis].MaxAngleLimit = minLimit, maxLimit

	if c.writeTorque(axis, 1) {
		c.logger.Debugf("%s torque enabled", axis)
	}

	pos, res, status := c.link.ReadRegister(id, feetech.RegPresentPosition.Address, feetech.RegPresentPosition.Size)
	if res != feetech.Success || status.HasError() {
		c.logger.Warnf("Failed to read %s present position: %s", axis, describe(res, status))
	} else {
		c.axes[axis].Position = clampPosition(pos)
		c.logger.Debugf("%s present position %d", axis, pos)
	}

	c.logger.Infof("%s servo %d initialized (limits %d..%d, speed %d, acceleration %d)",
		axis, id, c.axes[axis].MinAngleLimit, c.axes[axis].MaxAngleLimit, c.axes[axis].Speed, c.axes[axis].Acceleration)
}

func (c *Controller) readLimits(axis Axis, when string) (uint16, uint16) {
	id := c.servoID(axis)
	state := c.axes[axis]
	minLimit, maxLimit := state.MinAngleLimit, state.MaxAngleLimit

	v, res, status := c.link.ReadRegister(id, feetech.RegMinAngleLimit.Address, feetech.RegMinAngleLimit.Size)
	if res == feetech.Success && !status.HasError() {
		minLimit = v
	} else {
		c.logger.Debugf("Failed to read %s min angle limit (%s): %s", axis, when, describe(res, status))
	}

	v, res, status = c.link.ReadRegister(id, feetech.RegMaxAngleLimit.Address, feetech.RegMaxAngleLimit.Size)
	if res == feetech.Success && !status.HasError() {
		maxLimit = v
	} else {
		c.logger.Debugf("Failed to read %s max angle limit (%s): %s", axis, when, describe(res, status))
	}

	c.logger.Debugf("%s angle limits %s setup: %d..%d", axis, when, minLimit, maxLimit)
	return minLimit, maxLimit
}

func (c *Controller) writeStep(axis Axis, name string, reg feetech.Register, value uint16) bool {
	id := c.servoID(axis)
	res, status := c.link.WriteRegister(id, reg.Address, value, reg.Size)
	if res != feetech.Success || status.HasError() {
		c.logger.Warnf("Failed to set %s for %s servo %d: %s", name, axis, id, describe(res, status))
		return false
	}
	c.logger.Debugf("%s %s set to %d", axis, name, value)
	return true
}

func clampPosition(p uint16) uint16 {
	if p > MaxPosition {
		return MaxPosition
	}
	return p
}
