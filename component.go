package fac1

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"go.viam.com/rdk/components/generic"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
)

var (
	// Model is the pan/tilt head served on the generic component API.
	Model = resource.NewModel("fac1", "pantilt", "controller")
)

func init() {
	resource.RegisterComponent(generic.API, Model,
		resource.Registration[resource.Resource, *Config]{
			Constructor: newPanTiltComponent,
		},
	)
}

type panTilt struct {
	resource.Named
	resource.AlwaysRebuild

	logger    logging.Logger
	ctrl      *SafeController
	prefsFile string
}

func newPanTiltComponent(ctx context.Context, deps resource.Dependencies, conf resource.Config, logger logging.Logger) (resource.Resource, error) {
	cfg, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return nil, err
	}
	return newPanTilt(ctx, conf.ResourceName(), cfg, cfg.ControllerConfig(), logger)
}

func newPanTilt(ctx context.Context, name resource.Name, cfg *Config, ctrlCfg ControllerConfig, logger logging.Logger) (*panTilt, error) {
	prefsFile := cfg.ResolvePreferencesFile()
	if prefsFile != "" {
		if _, err := os.Stat(prefsFile); err == nil {
			prefs, err := LoadPreferences(prefsFile, logger)
			if err != nil {
				return nil, err
			}
			ctrlCfg.Preferences = prefs
		}
	}

	p := &panTilt{
		Named:     name.AsNamed(),
		logger:    logger,
		ctrl:      NewSafeController(ctrlCfg, logger),
		prefsFile: prefsFile,
	}

	// A head that is unplugged at startup is not a configuration error; the
	// connect and auto_connect commands retry later.
	if cfg.Port != "" {
		if !p.ctrl.Connect(ctx, cfg.Port) {
			logger.Warnf("Could not open %s, staying disconnected", cfg.Port)
		}
	} else if !p.ctrl.AutoConnect(ctx) {
		logger.Warn("No USB-serial port found, staying disconnected")
	}

	logger.Debugf("Pan/tilt head ready: %s", p.ctrl.ConnectionStatus())
	return p, nil
}

func (p *panTilt) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	switch cmd["command"] {
	case "status":
		return p.status(), nil

	case "connect":
		port, ok := cmd["port"].(string)
		if !ok || port == "" {
			return nil, fmt.Errorf("connect command requires 'port' string parameter")
		}
		ok = p.ctrl.Connect(ctx, port)
		result := p.status()
		result["success"] = ok
		return result, nil

	case "auto_connect":
		ok := p.ctrl.AutoConnect(ctx)
		result := p.status()
		result["success"] = ok
		return result, nil

	case "disconnect":
		p.ctrl.Disconnect()
		return map[string]interface{}{"success": true}, nil

	case "move":
		return p.move(cmd)

	case "enable_torque":
		p.ctrl.EnableTorque()
		return p.torqueStatus(), nil

	case "disable_torque":
		p.ctrl.DisableTorque()
		return p.torqueStatus(), nil

	case "calibrate_begin":
		if err := p.ctrl.BeginCalibration(); err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"calibration": p.ctrl.CalibrationState().String(),
			"message":     "torque released, position the head by hand then send calibrate_center",
		}, nil

	case "calibrate_center":
		err := p.ctrl.CalibrateCenter()
		result := map[string]interface{}{
			"success":     err == nil,
			"calibration": p.ctrl.CalibrationState().String(),
		}
		if err != nil {
			result["error"] = err.Error()
			return result, nil
		}
		result["pan_position"] = int(p.ctrl.State(Pan).Position)
		result["tilt_position"] = int(p.ctrl.State(Tilt).Position)
		return result, nil

	case "calibrate_cancel", "calibrate_finish":
		p.ctrl.EndCalibration()
		return p.torqueStatus(), nil

	case "set_invert":
		return p.setInvert(cmd)

	default:
		return nil, fmt.Errorf("unknown command: %v", cmd["command"])
	}
}

func (p *panTilt) move(cmd map[string]interface{}) (map[string]interface{}, error) {
	axisName, _ := cmd["axis"].(string)
	axis, err := ParseAxis(axisName)
	if err != nil {
		return nil, err
	}
	dirName, _ := cmd["direction"].(string)
	requested, err := ParseDirection(dirName)
	if err != nil {
		return nil, err
	}
	if requested.Axis() != axis {
		return nil, errors.Wrapf(ErrInvalidDirection, "%s on %s", requested, axis)
	}

	d := p.ctrl.Preferences().Apply(requested)
	if err := p.ctrl.Move(axis, d); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"axis":      axis.String(),
		"direction": d.String(),
		"position":  int(p.ctrl.State(axis).Position),
	}, nil
}

func (p *panTilt) setInvert(cmd map[string]interface{}) (map[string]interface{}, error) {
	axisName, _ := cmd["axis"].(string)
	axis, err := ParseAxis(axisName)
	if err != nil {
		return nil, err
	}
	invert, ok := cmd["invert"].(bool)
	if !ok {
		return nil, fmt.Errorf("set_invert command requires 'invert' boolean parameter")
	}

	// A failed save must leave the running mapping unchanged.
	persisted := false
	if p.prefsFile != "" {
		next := p.ctrl.Preferences()
		if axis == Tilt {
			next.InvertTilt = invert
		} else {
			next.InvertPan = invert
		}
		if err := SavePreferences(p.prefsFile, next); err != nil {
			return nil, err
		}
		persisted = true
	}

	prefs := p.ctrl.SetInverted(axis, invert)
	return map[string]interface{}{
		"invert_pan":  prefs.InvertPan,
		"invert_tilt": prefs.InvertTilt,
		"persisted":   persisted,
	}, nil
}

func (p *panTilt) status() map[string]interface{} {
	port, _ := p.ctrl.ConnectedPort()
	pan, tilt := p.ctrl.State(Pan), p.ctrl.State(Tilt)
	prefs := p.ctrl.Preferences()

	return map[string]interface{}{
		"status":        p.ctrl.ConnectionStatus().String(),
		"connected":     p.ctrl.IsConnected(),
		"port":          port,
		"pan_position":  int(pan.Position),
		"tilt_position": int(tilt.Position),
		"pan_torque":    pan.TorqueEnabled,
		"tilt_torque":   tilt.TorqueEnabled,
		"pan_model":     int(pan.ModelNumber),
		"tilt_model":    int(tilt.ModelNumber),
		"invert_pan":    prefs.InvertPan,
		"invert_tilt":   prefs.InvertTilt,
		"calibration":   p.ctrl.CalibrationState().String(),
	}
}

func (p *panTilt) torqueStatus() map[string]interface{} {
	return map[string]interface{}{
		"pan_torque":  p.ctrl.State(Pan).TorqueEnabled,
		"tilt_torque": p.ctrl.State(Tilt).TorqueEnabled,
		"calibration": p.ctrl.CalibrationState().String(),
	}
}

func (p *panTilt) Close(ctx context.Context) error {
	p.ctrl.EndCalibration()
	p.ctrl.Disconnect()
	return nil
}
