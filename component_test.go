package fac1

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/components/generic"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"

	"fac1/feetech"
)

func testPanTilt(t *testing.T, cfg *Config, bus *feetech.SimBus) *panTilt {
	t.Helper()
	_, _, err := cfg.Validate("")
	require.NoError(t, err)

	ctrlCfg := cfg.ControllerConfig()
	test := testControllerConfig(map[string]*feetech.SimBus{testPort: bus}, []string{testPort})
	ctrlCfg.Timeout, ctrlCfg.SettleDelay = test.Timeout, test.SettleDelay
	ctrlCfg.Enumerator, ctrlCfg.Opener = test.Enumerator, test.Opener

	p, err := newPanTilt(context.Background(), resource.NewName(generic.API, "head"), cfg, ctrlCfg, logging.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func TestPanTiltStartup(t *testing.T) {
	t.Run("auto-connects without a port", func(t *testing.T) {
		p := testPanTilt(t, &Config{}, newTestBus(6, 4))

		resp, err := p.DoCommand(context.Background(), map[string]interface{}{"command": "status"})
		require.NoError(t, err)
		assert.Equal(t, "Connected", resp["status"])
		assert.Equal(t, testPort, resp["port"])
		assert.Equal(t, true, resp["connected"])
		assert.Equal(t, 2048, resp["pan_position"])
		assert.Equal(t, "idle", resp["calibration"])
	})

	t.Run("unplugged head is not an error", func(t *testing.T) {
		p := testPanTilt(t, &Config{Port: "/dev/ttyUSB7"}, newTestBus(6, 4))

		resp, err := p.DoCommand(context.Background(), map[string]interface{}{"command": "status"})
		require.NoError(t, err)
		assert.Equal(t, "No USB connection", resp["status"])
		assert.Equal(t, false, resp["connected"])
	})

	t.Run("preferences file overrides attributes", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prefs.toml")
		require.NoError(t, SavePreferences(path, Preferences{InvertTilt: true}))

		p := testPanTilt(t, &Config{InvertPan: true, PreferencesFile: path}, newTestBus(6, 4))
		assert.Equal(t, Preferences{InvertTilt: true}, p.ctrl.Preferences())
	})
}

func TestPanTiltMove(t *testing.T) {
	bus := newTestBus(6, 4)
	p := testPanTilt(t, &Config{Port: testPort, InvertPan: true}, bus)
	ctx := context.Background()

	resp, err := p.DoCommand(ctx, map[string]interface{}{"command": "move", "axis": "pan", "direction": "left"})
	require.NoError(t, err)
	assert.Equal(t, "right", resp["direction"])
	assert.Equal(t, 2148, resp["position"])
	assert.Equal(t, uint16(2148), bus.Servo(6).Register(feetech.RegGoalPosition))

	resp, err = p.DoCommand(ctx, map[string]interface{}{"command": "move", "axis": "tilt", "direction": "up"})
	require.NoError(t, err)
	assert.Equal(t, "up", resp["direction"])
	assert.Equal(t, 2148, resp["position"])

	_, err = p.DoCommand(ctx, map[string]interface{}{"command": "move", "axis": "tilt", "direction": "left"})
	assert.True(t, errors.Is(err, ErrInvalidDirection))

	_, err = p.DoCommand(ctx, map[string]interface{}{"command": "move", "axis": "roll", "direction": "up"})
	assert.Error(t, err)

	bus.Servo(4).DropWrites[feetech.RegGoalPosition.Address] = true
	_, err = p.DoCommand(ctx, map[string]interface{}{"command": "move", "axis": "tilt", "direction": "down"})
	assert.Error(t, err)
	assert.Equal(t, uint16(2148), p.ctrl.State(Tilt).Position)
}

func TestPanTiltSetInvert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	p := testPanTilt(t, &Config{Port: testPort, PreferencesFile: path}, newTestBus(6, 4))
	ctx := context.Background()

	resp, err := p.DoCommand(ctx, map[string]interface{}{"command": "set_invert", "axis": "tilt", "invert": true})
	require.NoError(t, err)
	assert.Equal(t, true, resp["invert_tilt"])
	assert.Equal(t, true, resp["persisted"])

	saved, err := LoadPreferences(path, logging.NewTestLogger(t))
	require.NoError(t, err)
	assert.Equal(t, Preferences{InvertTilt: true}, saved)

	resp, err = p.DoCommand(ctx, map[string]interface{}{"command": "move", "axis": "tilt", "direction": "up"})
	require.NoError(t, err)
	assert.Equal(t, "down", resp["direction"])
	assert.Equal(t, 1948, resp["position"])

	_, err = p.DoCommand(ctx, map[string]interface{}{"command": "set_invert", "axis": "tilt"})
	assert.Error(t, err)
}

func TestPanTiltSetInvertSaveFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	p := testPanTilt(t, &Config{Port: testPort, PreferencesFile: filepath.Join(blocker, "prefs.toml")}, newTestBus(6, 4))

	_, err := p.DoCommand(context.Background(), map[string]interface{}{"command": "set_invert", "axis": "pan", "invert": true})
	require.Error(t, err)
	assert.Equal(t, Preferences{}, p.ctrl.Preferences())

	resp, err := p.DoCommand(context.Background(), map[string]interface{}{"command": "move", "axis": "pan", "direction": "left"})
	require.NoError(t, err)
	assert.Equal(t, "left", resp["direction"])
}

func TestPanTiltCloseKeepsTorqueReleased(t *testing.T) {
	bus := newTestBus(6, 4)
	p := testPanTilt(t, &Config{Port: testPort}, bus)
	ctx := context.Background()

	for _, command := range []string{"calibrate_begin", "calibrate_center", "calibrate_finish", "disable_torque"} {
		_, err := p.DoCommand(ctx, map[string]interface{}{"command": command})
		require.NoError(t, err, command)
	}

	require.NoError(t, p.Close(ctx))
	assert.Equal(t, uint16(0), bus.Servo(6).Register(feetech.RegTorqueEnable))
	assert.Equal(t, uint16(0), bus.Servo(4).Register(feetech.RegTorqueEnable))
}

func TestPanTiltSetInvertWithoutFile(t *testing.T) {
	p := testPanTilt(t, &Config{Port: testPort}, newTestBus(6, 4))

	resp, err := p.DoCommand(context.Background(), map[string]interface{}{"command": "set_invert", "axis": "pan", "invert": true})
	require.NoError(t, err)
	assert.Equal(t, false, resp["persisted"])
	assert.True(t, p.ctrl.Preferences().InvertPan)
}

func TestPanTiltCalibration(t *testing.T) {
	bus := newTestBus(6, 4)
	p := testPanTilt(t, &Config{Port: testPort}, bus)
	ctx := context.Background()

	resp, err := p.DoCommand(ctx, map[string]interface{}{"command": "calibrate_begin"})
	require.NoError(t, err)
	assert.Equal(t, "torque_released", resp["calibration"])

	bus.Servo(6).SetRegister(feetech.RegPresentPosition, 2500)
	resp, err = p.DoCommand(ctx, map[string]interface{}{"command": "calibrate_center"})
	require.NoError(t, err)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "completed", resp["calibration"])
	assert.Equal(t, 2500, resp["pan_position"])

	resp, err = p.DoCommand(ctx, map[string]interface{}{"command": "calibrate_cancel"})
	require.NoError(t, err)
	assert.Equal(t, true, resp["pan_torque"])
	assert.Equal(t, true, resp["tilt_torque"])
	assert.Equal(t, "idle", resp["calibration"])

	bus.Servo(4).DropReads[feetech.RegPresentPosition.Address] = true
	resp, err = p.DoCommand(ctx, map[string]interface{}{"command": "calibrate_center"})
	require.NoError(t, err)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "failed", resp["calibration"])
	assert.Contains(t, resp["error"], "timeout")
}

func TestPanTiltConnectionCommands(t *testing.T) {
	bus := newTestBus(6, 4)
	p := testPanTilt(t, &Config{Port: testPort}, bus)
	ctx := context.Background()

	resp, err := p.DoCommand(ctx, map[string]interface{}{"command": "disconnect"})
	require.NoError(t, err)
	assert.Equal(t, true, resp["success"])
	assert.True(t, bus.Closed())

	_, err = p.DoCommand(ctx, map[string]interface{}{"command": "connect"})
	assert.Error(t, err)

	resp, err = p.DoCommand(ctx, map[string]interface{}{"command": "connect", "port": testPort})
	require.NoError(t, err)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "Connected", resp["status"])

	resp, err = p.DoCommand(ctx, map[string]interface{}{"command": "auto_connect"})
	require.NoError(t, err)
	assert.Equal(t, true, resp["success"])

	resp, err = p.DoCommand(ctx, map[string]interface{}{"command": "disable_torque"})
	require.NoError(t, err)
	assert.Equal(t, false, resp["pan_torque"])

	resp, err = p.DoCommand(ctx, map[string]interface{}{"command": "enable_torque"})
	require.NoError(t, err)
	assert.Equal(t, true, resp["pan_torque"])

	_, err = p.DoCommand(ctx, map[string]interface{}{"command": "jump"})
	assert.Error(t, err)

	require.NoError(t, p.Close(ctx))
	assert.True(t, bus.Closed())
}
