package fac1

import (
	"context"
	"sync"

	"go.viam.com/rdk/logging"
)

// SafeController wraps a Controller so that every operation touching the
// transport is serialized. Hosting code that issues commands from more than
// one goroutine shares one SafeController.
type SafeController struct {
	mu   sync.Mutex
	ctrl *Controller
}

// NewSafeController returns a disconnected, serialized controller.
func NewSafeController(cfg ControllerConfig, logger logging.Logger) *SafeController {
	return &SafeController{ctrl: NewController(cfg, logger)}
}

func (s *SafeController) AutoConnect(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.AutoConnect(ctx)
}

func (s *SafeController) Connect(ctx context.Context, portName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.Connect(ctx, portName)
}

func (s *SafeController) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.Disconnect()
}

func (s *SafeController) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.IsConnected()
}

func (s *SafeController) ConnectedPort() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.ConnectedPort()
}

func (s *SafeController) ConnectionStatus() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.ConnectionStatus()
}

func (s *SafeController) State(axis Axis) AxisState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.State(axis)
}

func (s *SafeController) Move(axis Axis, d Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.Move(axis, d)
}

func (s *SafeController) EnableTorque() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.EnableTorque()
}

func (s *SafeController) DisableTorque() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.DisableTorque()
}

func (s *SafeController) CalibrationState() CalibrationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.CalibrationState()
}

func (s *SafeController) BeginCalibration() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.BeginCalibration()
}

func (s *SafeController) CalibrateCenter() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.CalibrateCenter()
}

func (s *SafeController) EndCalibration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.EndCalibration()
}

func (s *SafeController) Preferences() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.Preferences()
}

// SetInverted sets the inversion preference of one axis and returns the
// resulting preferences.
func (s *SafeController) SetInverted(axis Axis, invert bool) Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	if axis == Tilt {
		s.ctrl.SetInvertTilt(invert)
	} else {
		s.ctrl.SetInvertPan(invert)
	}
	return s.ctrl.Preferences()
}
