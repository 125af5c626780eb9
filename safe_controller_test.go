package fac1

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"

	"fac1/feetech"
)

func TestSafeControllerSerializesMoves(t *testing.T) {
	bus := newTestBus(6, 4)
	s := NewSafeController(testControllerConfig(map[string]*feetech.SimBus{testPort: bus}, []string{testPort}), logging.NewTestLogger(t))
	require.True(t, s.AutoConnect(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				assert.NoError(t, s.Move(Pan, Right))
				assert.NoError(t, s.Move(Tilt, Down))
				_ = s.ConnectionStatus()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint16(4048), s.State(Pan).Position)
	assert.Equal(t, uint16(48), s.State(Tilt).Position)
	assert.Equal(t, uint16(4048), bus.Servo(6).Register(feetech.RegGoalPosition))
}

func TestSafeControllerSetInverted(t *testing.T) {
	s := NewSafeController(ControllerConfig{}, logging.NewTestLogger(t))

	prefs := s.SetInverted(Tilt, true)
	assert.Equal(t, Preferences{InvertTilt: true}, prefs)

	prefs = s.SetInverted(Pan, true)
	assert.Equal(t, Preferences{InvertPan: true, InvertTilt: true}, s.Preferences())
	assert.Equal(t, prefs, s.Preferences())
}

func TestSafeControllerLifecycle(t *testing.T) {
	bus := newTestBus(6, 4)
	s := NewSafeController(testControllerConfig(map[string]*feetech.SimBus{testPort: bus}, nil), logging.NewTestLogger(t))

	require.True(t, s.Connect(context.Background(), testPort))
	assert.True(t, s.IsConnected())
	port, ok := s.ConnectedPort()
	assert.True(t, ok)
	assert.Equal(t, testPort, port)

	require.NoError(t, s.BeginCalibration())
	assert.Equal(t, CalibrationTorqueReleased, s.CalibrationState())
	require.NoError(t, s.CalibrateCenter())
	s.EndCalibration()
	assert.True(t, s.State(Pan).TorqueEnabled)

	s.DisableTorque()
	assert.False(t, s.State(Tilt).TorqueEnabled)
	s.EnableTorque()
	assert.True(t, s.State(Tilt).TorqueEnabled)

	s.Disconnect()
	assert.False(t, s.IsConnected())
	assert.True(t, bus.Closed())
}
