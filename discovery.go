package fac1

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial/enumerator"
	"go.viam.com/rdk/components/generic"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/discovery"
	"go.viam.com/utils"

	"fac1/feetech"
)

var DiscoveryModel = resource.NewModel("fac1", "pantilt", "discovery")

func init() {
	resource.RegisterService(
		discovery.API,
		DiscoveryModel,
		resource.Registration[discovery.Service, *DiscoveryConfig]{
			Constructor: newPanTiltDiscovery,
		})
}

// DiscoveryConfig selects the servo IDs probed on each port.
type DiscoveryConfig struct {
	PanID     int `json:"pan_id,omitempty"`
	TiltID    int `json:"tilt_id,omitempty"`
	Baudrate  int `json:"baudrate,omitempty"`
	TimeoutMs int `json:"timeout_ms,omitempty"`
}

// Validate ensures the config is valid
func (cfg *DiscoveryConfig) Validate(path string) ([]string, []string, error) {
	head := Config{PanID: cfg.PanID, TiltID: cfg.TiltID, Baudrate: cfg.Baudrate, TimeoutMs: cfg.TimeoutMs}
	if _, _, err := head.Validate(path); err != nil {
		return nil, nil, err
	}
	cfg.PanID, cfg.TiltID, cfg.Baudrate = head.PanID, head.TiltID, head.Baudrate
	return nil, nil, nil
}

type panTiltDiscovery struct {
	resource.Named
	resource.AlwaysRebuild
	resource.TriviallyCloseable

	cfg    ControllerConfig
	logger logging.Logger
}

func newPanTiltDiscovery(
	ctx context.Context,
	deps resource.Dependencies,
	conf resource.Config,
	logger logging.Logger,
) (discovery.Service, error) {
	cfg, err := resource.NativeConfig[*DiscoveryConfig](conf)
	if err != nil {
		return nil, err
	}

	return newDiscovery(conf.ResourceName(), ControllerConfig{
		PanID:    byte(cfg.PanID),
		TiltID:   byte(cfg.TiltID),
		BaudRate: cfg.Baudrate,
		Timeout:  time.Duration(cfg.TimeoutMs) * time.Millisecond,
	}, logger), nil
}

func newDiscovery(name resource.Name, cfg ControllerConfig, logger logging.Logger) *panTiltDiscovery {
	return &panTiltDiscovery{
		Named:  name.AsNamed(),
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// DiscoverResources probes every USB-serial port and returns a pan/tilt
// component config for each port where at least one axis answers.
func (dis *panTiltDiscovery) DiscoverResources(ctx context.Context, extra map[string]any) ([]resource.Config, error) {
	dis.logger.Info("Starting pan/tilt discovery")

	candidates, err := CandidatePorts(dis.cfg.Enumerator)
	if err != nil {
		return nil, err
	}
	dis.logger.Debugf("Filtered to %d candidate ports", len(candidates))

	var configs []resource.Config
	for _, portPath := range candidates {
		select {
		case <-ctx.Done():
			dis.logger.Info("Discovery cancelled")
			return configs, ctx.Err()
		default:
		}

		if conf, ok := dis.discoverPort(ctx, portPath); ok {
			configs = append(configs, conf)
		}
	}

	if len(configs) == 0 {
		dis.logger.Info("No pan/tilt heads discovered")
	} else {
		dis.logger.Infof("Discovered %d pan/tilt heads", len(configs))
	}
	return configs, nil
}

func (dis *panTiltDiscovery) discoverPort(ctx context.Context, portPath string) (resource.Config, bool) {
	dis.logger.Debugf("Checking port %s", portPath)

	panOK, tiltOK := dis.pingServos(ctx, portPath)
	if !panOK && !tiltOK {
		dis.logger.Debugf("No pan/tilt servos detected on %s", portPath)
		return resource.Config{}, false
	}
	dis.logger.Infof("Discovered pan/tilt head on %s (pan: %v, tilt: %v)", portPath, panOK, tiltOK)

	return resource.Config{
		Name:  "pantilt-" + portLabel(portPath),
		API:   generic.API,
		Model: Model,
		Attributes: map[string]interface{}{
			"port":    portPath,
			"pan_id":  int(dis.cfg.PanID),
			"tilt_id": int(dis.cfg.TiltID),
		},
	}, true
}

// pingServos opens portPath and pings the pan and tilt IDs without
// configuring either servo.
func (dis *panTiltDiscovery) pingServos(ctx context.Context, portPath string) (bool, bool) {
	transport, err := dis.cfg.Opener(portPath)
	if err != nil {
		dis.logger.Debugf("Failed to open port %s: %v", portPath, err)
		return false, false
	}
	if err := transport.SetBaudRate(dis.cfg.BaudRate); err != nil {
		dis.logger.Debugf("Failed to set baud rate on %s: %v", portPath, err)
		transport.Close()
		return false, false
	}
	if err := transport.Flush(); err != nil {
		dis.logger.Debugf("Failed to clear buffers on %s: %v", portPath, err)
	}
	utils.SelectContextOrWait(ctx, dis.cfg.SettleDelay)

	link := feetech.NewLink(transport, feetech.LinkConfig{Timeout: dis.cfg.Timeout}, dis.logger)
	defer link.Close()

	_, panRes, _ := link.Ping(dis.cfg.PanID)
	_, tiltRes, _ := link.Ping(dis.cfg.TiltID)
	return panRes == feetech.Success, tiltRes == feetech.Success
}

// PortEnumerator lists serial device paths.
type PortEnumerator func() ([]string, error)

// enumerateSerialPorts returns a list of all serial ports on the system
func enumerateSerialPorts() ([]string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "failed to enumerate serial ports")
	}

	portPaths := make([]string, 0, len(ports))
	for _, port := range ports {
		portPaths = append(portPaths, port.Name)
	}
	return portPaths, nil
}

// CandidatePorts lists the USB-serial ports AutoConnect would try, in order.
// A nil enumerator uses the system serial port list.
func CandidatePorts(enumerate PortEnumerator) ([]string, error) {
	if enumerate == nil {
		enumerate = enumerateSerialPorts
	}
	ports, err := enumerate()
	if err != nil {
		return nil, err
	}
	return filterCandidatePorts(ports), nil
}

// filterCandidatePorts keeps USB-serial ports, in their original order. When
// macOS lists a device as both /dev/cu.X and /dev/tty.X only the cu. node is
// kept; it opens without waiting for carrier detect.
func filterCandidatePorts(ports []string) []string {
	callout := map[string]bool{}
	for _, port := range ports {
		if strings.HasPrefix(port, "/dev/cu.") {
			callout[strings.TrimPrefix(port, "/dev/cu.")] = true
		}
	}

	candidates := []string{}
	for _, port := range ports {
		if !isCandidatePort(port) {
			continue
		}
		if strings.HasPrefix(port, "/dev/tty.") && callout[strings.TrimPrefix(port, "/dev/tty.")] {
			continue
		}
		candidates = append(candidates, port)
	}
	return candidates
}

// isCandidatePort checks if a port matches USB-serial adapter naming patterns
func isCandidatePort(port string) bool {
	// Linux: /dev/ttyUSB*, /dev/ttyACM*
	if strings.HasPrefix(port, "/dev/ttyUSB") || strings.HasPrefix(port, "/dev/ttyACM") {
		return true
	}
	// macOS: usbserial / usbmodem under either node type
	if strings.Contains(port, "usbserial") || strings.Contains(port, "usbmodem") {
		return strings.HasPrefix(port, "/dev/cu.") || strings.HasPrefix(port, "/dev/tty.")
	}
	// Windows: COM*
	return strings.HasPrefix(port, "COM")
}

// portLabel extracts a friendly name from a port path for log output
// /dev/ttyUSB0 -> "ttyUSB0"
// /dev/cu.usbmodem123 -> "usbmodem123"
func portLabel(portPath string) string {
	base := filepath.Base(portPath)
	for _, prefix := range []string{"tty.", "cu."} {
		if strings.HasPrefix(base, prefix+"usb") {
			return strings.TrimPrefix(base, prefix)
		}
	}
	return base
}
