package fac1

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"

	"fac1/feetech"
)

// Config holds the attributes of the pan/tilt component.
type Config struct {
	// Port is the serial device. Empty means auto-connect on startup.
	Port     string `json:"port,omitempty"`
	Baudrate int    `json:"baudrate,omitempty"`

	// Default to 6 and 4
	PanID  int `json:"pan_id,omitempty"`
	TiltID int `json:"tilt_id,omitempty"`

	Step         int `json:"step,omitempty"`
	Speed        int `json:"speed,omitempty"`
	Acceleration int `json:"acceleration,omitempty"`
	TimeoutMs    int `json:"timeout_ms,omitempty"`

	InvertPan  bool `json:"invert_pan,omitempty"`
	InvertTilt bool `json:"invert_tilt,omitempty"`

	// PreferencesFile persists inversion toggles made through DoCommand.
	// Relative paths resolve against VIAM_MODULE_DATA.
	PreferencesFile string `json:"preferences_file,omitempty"`
}

// Validate ensures all parts of the config are valid
func (cfg *Config) Validate(path string) ([]string, []string, error) {
	if cfg.Baudrate == 0 {
		cfg.Baudrate = feetech.DefaultBaudRate
	}
	if cfg.PanID == 0 {
		cfg.PanID = int(DefaultPanID)
	}
	if cfg.TiltID == 0 {
		cfg.TiltID = int(DefaultTiltID)
	}
	if cfg.Step == 0 {
		cfg.Step = int(DefaultStep)
	}
	if cfg.Speed == 0 {
		cfg.Speed = int(DefaultSpeed)
	}
	if cfg.Acceleration == 0 {
		cfg.Acceleration = int(DefaultAcceleration)
	}

	for name, id := range map[string]int{"pan_id": cfg.PanID, "tilt_id": cfg.TiltID} {
		if id < 0 || id > int(feetech.MaxServoID) {
			return nil, nil, errors.Errorf("%s must be between 0 and %d, got %d", name, feetech.MaxServoID, id)
		}
	}
	if cfg.PanID == cfg.TiltID {
		return nil, nil, errors.Errorf("pan_id and tilt_id must differ, both are %d", cfg.PanID)
	}
	if cfg.Step < 1 || cfg.Step > int(MaxPosition) {
		return nil, nil, errors.Errorf("step must be between 1 and %d, got %d", MaxPosition, cfg.Step)
	}
	if cfg.Speed < 0 || cfg.Speed > int(MaxPosition) {
		return nil, nil, errors.Errorf("speed must be between 0 and %d, got %d", MaxPosition, cfg.Speed)
	}
	if cfg.Acceleration < 0 || cfg.Acceleration > 254 {
		return nil, nil, errors.Errorf("acceleration must be between 0 and 254, got %d", cfg.Acceleration)
	}
	if cfg.TimeoutMs < 0 {
		return nil, nil, errors.Errorf("timeout_ms must not be negative, got %d", cfg.TimeoutMs)
	}

	return nil, nil, nil
}

// ControllerConfig converts the attributes into controller settings.
func (cfg *Config) ControllerConfig() ControllerConfig {
	return ControllerConfig{
		PanID:        byte(cfg.PanID),
		TiltID:       byte(cfg.TiltID),
		BaudRate:     cfg.Baudrate,
		Step:         uint16(cfg.Step),
		Speed:        uint16(cfg.Speed),
		Acceleration: uint8(cfg.Acceleration),
		Timeout:      time.Duration(cfg.TimeoutMs) * time.Millisecond,
		Preferences:  Preferences{InvertPan: cfg.InvertPan, InvertTilt: cfg.InvertTilt},
	}
}

// ResolvePreferencesFile returns the absolute preferences path, or "" when
// none is configured.
func (cfg *Config) ResolvePreferencesFile() string {
	if cfg.PreferencesFile == "" || filepath.IsAbs(cfg.PreferencesFile) {
		return cfg.PreferencesFile
	}
	moduleDataDir := os.Getenv("VIAM_MODULE_DATA")
	if moduleDataDir == "" {
		moduleDataDir = "/tmp"
	}
	return filepath.Join(moduleDataDir, cfg.PreferencesFile)
}

// Preferences are the operator's direction mapping choices. They change how a
// caller maps buttons to directions and never how positions are encoded.
type Preferences struct {
	InvertPan  bool `toml:"invert_pan"`
	InvertTilt bool `toml:"invert_tilt"`
}

// Inverted reports the inversion flag for axis.
func (p Preferences) Inverted(axis Axis) bool {
	if axis == Tilt {
		return p.InvertTilt
	}
	return p.InvertPan
}

// Apply maps a requested direction through the inversion flag of its axis.
func (p Preferences) Apply(d Direction) Direction {
	if p.Inverted(d.Axis()) {
		return d.Opposite()
	}
	return d
}

// LoadPreferences reads preferences from a TOML file. A missing file yields
// zero preferences.
func LoadPreferences(path string, logger logging.Logger) (Preferences, error) {
	var prefs Preferences
	if path == "" {
		return prefs, nil
	}

	if _, err := toml.DecodeFile(path, &prefs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if logger != nil {
				logger.Debugf("No preferences file at %s, using defaults", path)
			}
			return Preferences{}, nil
		}
		return Preferences{}, errors.Wrapf(err, "failed to parse preferences %s", path)
	}

	if logger != nil {
		logger.Debugf("Loaded preferences from %s: %+v", path, prefs)
	}
	return prefs, nil
}

// SavePreferences writes preferences to a TOML file.
func SavePreferences(path string, prefs Preferences) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(prefs); err != nil {
		return errors.Wrap(err, "failed to encode preferences")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create %s", dir)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrap(err, "failed to write preferences file")
	}
	return nil
}
