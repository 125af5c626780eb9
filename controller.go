package fac1

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/utils"

	"fac1/feetech"
)

// Defaults for the FAC1 head.
const (
	DefaultPanID        byte   = 6
	DefaultTiltID       byte   = 4
	DefaultStep         uint16 = 100
	DefaultSpeed        uint16 = 200
	DefaultAcceleration uint8  = 50
	DefaultSettleDelay         = 50 * time.Millisecond
)

var (
	// ErrNotConnected is returned by operations that need an open link.
	ErrNotConnected = errors.New("not connected")
	// ErrInvalidDirection is returned when a direction does not belong to the axis.
	ErrInvalidDirection = errors.New("direction does not belong to axis")
)

// ConnectionState is the live health of the head.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	UsbOnly
	PartialPan
	PartialTilt
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "No USB connection"
	case UsbOnly:
		return "No servos found"
	case PartialPan:
		return "Pan OK, Tilt missing"
	case PartialTilt:
		return "Tilt OK, Pan missing"
	case Connected:
		return "Connected"
	default:
		return "Unknown"
	}
}

// ControllerConfig holds the settings of a Controller. Zero fields take the
// package defaults, so servo ID 0 cannot be addressed.
type ControllerConfig struct {
	PanID  byte
	TiltID byte

	BaudRate     int
	Step         uint16
	Speed        uint16
	Acceleration uint8

	// Timeout bounds each exchange on the wire.
	Timeout time.Duration
	// SettleDelay is waited after opening a port, before the first exchange.
	SettleDelay time.Duration

	Preferences Preferences

	// Enumerator lists candidate ports. Defaults to the OS serial enumerator.
	Enumerator PortEnumerator
	// Opener opens a port. Defaults to feetech.OpenSerial.
	Opener feetech.Opener
}

func (cfg ControllerConfig) withDefaults() ControllerConfig {
	if cfg.PanID == 0 {
		cfg.PanID = DefaultPanID
	}
	if cfg.TiltID == 0 {
		cfg.TiltID = DefaultTiltID
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = feetech.DefaultBaudRate
	}
	if cfg.Step == 0 {
		cfg.Step = DefaultStep
	}
	if cfg.Speed == 0 {
		cfg.Speed = DefaultSpeed
	}
	if cfg.Acceleration == 0 {
		cfg.Acceleration = DefaultAcceleration
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = feetech.DefaultTimeout
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.Enumerator == nil {
		cfg.Enumerator = enumerateSerialPorts
	}
	if cfg.Opener == nil {
		cfg.Opener = feetech.OpenSerial
	}
	return cfg
}

// Controller drives one pan servo and one tilt servo over a single serial
// link. It is not safe for concurrent use; see SafeController.
type Controller struct {
	cfg    ControllerConfig
	logger logging.Logger

	// nil while disconnected
	link     *feetech.Link
	portName string

	axes        [2]AxisState
	prefs       Preferences
	calibration CalibrationState
}

// NewController returns a disconnected controller.
func NewController(cfg ControllerConfig, logger logging.Logger) *Controller {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = logging.NewLogger("fac1")
	}

	c := &Controller{
		cfg:    cfg,
		logger: logger,
		prefs:  cfg.Preferences,
	}
	for i := range c.axes {
		c.axes[i] = AxisState{
			Position:     CenterPosition,
			Speed:        cfg.Speed,
			Acceleration: cfg.Acceleration,
		}
	}
	return c
}

func (c *Controller) servoID(axis Axis) byte {
	if axis == Tilt {
		return c.cfg.TiltID
	}
	return c.cfg.PanID
}

// AutoConnect tries each USB-serial port in turn and keeps the first one whose
// transport opens, whether or not any servo answers on it. It returns false
// and stays disconnected when no candidate opens.
func (c *Controller) AutoConnect(ctx context.Context) bool {
	c.logger.Info("Searching for USB-serial devices...")

	allPorts, err := c.cfg.Enumerator()
	if err != nil {
		c.logger.Warnf("Port enumeration failed: %v", err)
		return false
	}

	candidates := filterCandidatePorts(allPorts)
	c.logger.Debugf("Found %d serial ports, %d candidates: %v", len(allPorts), len(candidates), candidates)

	for _, portName := range candidates {
		if ctx.Err() != nil {
			c.logger.Info("Auto-connect cancelled")
			return false
		}

		c.logger.Infof("Trying to connect to %s", portLabel(portName))
		if c.Connect(ctx, portName) {
			c.logger.Infof("Successfully connected to %s", portName)
			return true
		}
	}

	c.logger.Warn("Could not auto-connect to any USB-serial port")
	return false
}

// Connect replaces any existing link with one on portName, probes both servos
// and initializes those that answer. The result reports only whether the
// transport opened; servo health is reported by ConnectionStatus.
func (c *Controller) Connect(ctx context.Context, portName string) bool {
	c.Disconnect()

	transport, err := c.cfg.Opener(portName)
	if err != nil {
		c.logger.Warnf("Failed to open %s: %v", portName, err)
		return false
	}

	if err := transport.SetBaudRate(c.cfg.BaudRate); err != nil {
		c.logger.Warnf("Failed to set baud rate %d on %s: %v", c.cfg.BaudRate, portName, err)
		if cerr := transport.Close(); cerr != nil {
			c.logger.Debugf("close after failed baud change: %v", cerr)
		}
		return false
	}
	c.logger.Debugf("Baud rate set to %d", c.cfg.BaudRate)

	if err := transport.Flush(); err != nil {
		c.logger.Debugf("Failed to clear buffers on %s: %v", portName, err)
	}

	utils.SelectContextOrWait(ctx, c.cfg.SettleDelay)

	c.link = feetech.NewLink(transport, feetech.LinkConfig{Timeout: c.cfg.Timeout}, c.logger)
	c.portName = portName
	c.calibration = CalibrationIdle
	c.logger.Infof("USB connection established on %s", portName)

	found := 0
	for _, axis := range []Axis{Pan, Tilt} {
		id := c.servoID(axis)
		model, res, status := c.link.Ping(id)
		if res != feetech.Success || status.HasError() {
			c.logger.Warnf("%s servo (ID %d) not responding: %s", axis, id, describe(res, status))
			continue
		}
		c.logger.Infof("%s servo (ID %d) found, model %d (%s)", axis, id, model, feetech.ModelName(model))
		c.axes[axis].ModelNumber = model
		c.initialize(axis)
		found++
	}

	if found == 0 {
		c.logger.Warn("USB connected but no servos detected")
	}
	return true
}

// Disconnect closes the link if one is open. It is safe to call repeatedly.
func (c *Controller) Disconnect() {
	if c.link == nil {
		return
	}
	if err := c.link.Close(); err != nil {
		c.logger.Warnf("Error closing %s: %v", c.portName, err)
	}
	c.logger.Infof("Disconnected from %s", c.portName)
	c.link = nil
	c.portName = ""
}

// IsConnected reports whether a transport is open. It says nothing about the
// servos.
func (c *Controller) IsConnected() bool {
	return c.link != nil
}

// ConnectedPort returns the open port name.
func (c *Controller) ConnectedPort() (string, bool) {
	if c.link == nil {
		return "", false
	}
	return c.portName, true
}

// ConnectionStatus pings both servos and classifies the result. It is
// recomputed on every call so a silently unplugged servo shows up at once.
func (c *Controller) ConnectionStatus() ConnectionState {
	if c.link == nil {
		return Disconnected
	}

	_, panRes, _ := c.link.Ping(c.cfg.PanID)
	_, tiltRes, _ := c.link.Ping(c.cfg.TiltID)
	panOK := panRes == feetech.Success
	tiltOK := tiltRes == feetech.Success

	switch {
	case panOK && tiltOK:
		return Connected
	case panOK:
		return PartialPan
	case tiltOK:
		return PartialTilt
	default:
		return UsbOnly
	}
}

// State returns the runtime state of axis.
func (c *Controller) State(axis Axis) AxisState {
	return c.axes[axis]
}

// MovePan jogs the pan axis one step left or right.
func (c *Controller) MovePan(d Direction) error {
	return c.Move(Pan, d)
}

// MoveTilt jogs the tilt axis one step up or down.
func (c *Controller) MoveTilt(d Direction) error {
	return c.Move(Tilt, d)
}

// Move jogs axis one step in direction d, saturating at the position limits.
// The new position is committed only when the servo acknowledges the goal
// write without status flags.
func (c *Controller) Move(axis Axis, d Direction) error {
	if d.Axis() != axis {
		return errors.Wrapf(ErrInvalidDirection, "%s on %s", d, axis)
	}
	if c.link == nil {
		c.logger.Warn("Not connected")
		return errors.Wrapf(ErrNotConnected, "move %s %s", axis, d)
	}

	current := c.axes[axis].Position
	target := ClampedDecrease(current, c.cfg.Step)
	if d.increases() {
		target = ClampedIncrease(current, c.cfg.Step)
	}

	id := c.servoID(axis)
	res, status := c.link.WriteRegister(id, feetech.RegGoalPosition.Address, target, feetech.RegGoalPosition.Size)
	if err := feetech.Check("move "+axis.String(), id, res, status); err != nil {
		c.logger.Warnf("Failed to move %s: %s", axis, describe(res, status))
		return err
	}

	c.axes[axis].Position = target
	c.logger.Debugf("%s moved to %d", axis, target)
	return nil
}

// EnableTorque drives both servos. Failures are logged only.
func (c *Controller) EnableTorque() {
	c.setTorque(true)
}

// DisableTorque lets both axes be moved by hand. Failures are logged only.
func (c *Controller) DisableTorque() {
	c.setTorque(false)
}

func (c *Controller) setTorque(enable bool) {
	if c.link == nil {
		c.logger.Warn("Not connected")
		return
	}

	value := uint16(0)
	if enable {
		value = 1
	}
	for _, axis := range []Axis{Pan, Tilt} {
		if c.writeTorque(axis, value) {
			c.logger.Debugf("%s torque enabled=%v", axis, enable)
		}
	}
}

func (c *Controller) writeTorque(axis Axis, value uint16) bool {
	id := c.servoID(axis)
	res, status := c.link.WriteRegister(id, feetech.RegTorqueEnable.Address, value, feetech.RegTorqueEnable.Size)
	if res != feetech.Success || status.HasError() {
		c.logger.Warnf("Failed to set torque for %s servo %d: %s", axis, id, describe(res, status))
		return false
	}
	c.axes[axis].TorqueEnabled = value != 0
	return true
}

// Preferences returns the caller's inversion preferences.
func (c *Controller) Preferences() Preferences {
	return c.prefs
}

// InvertPan reports whether the caller maps pan buttons in reverse.
func (c *Controller) InvertPan() bool {
	return c.prefs.InvertPan
}

// SetInvertPan sets the pan inversion preference.
func (c *Controller) SetInvertPan(invert bool) {
	c.prefs.InvertPan = invert
}

// InvertTilt reports whether the caller maps tilt buttons in reverse.
func (c *Controller) InvertTilt() bool {
	return c.prefs.InvertTilt
}

// SetInvertTilt sets the tilt inversion preference.
func (c *Controller) SetInvertTilt(invert bool) {
	c.prefs.InvertTilt = invert
}

// describe renders an exchange outcome for log output.
func describe(res feetech.CommResult, status feetech.StatusError) string {
	if res == feetech.Success && status.HasError() {
		return status.Error()
	}
	return res.String()
}
