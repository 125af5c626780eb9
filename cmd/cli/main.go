package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/utils"

	"fac1"
	"fac1/feetech"
)

const simPort = "/dev/ttyUSB-sim"

func main() {
	if err := realMain(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `usage: fac1-cli [flags] <command>

commands:
  ports                        list candidate USB-serial ports
  status                       connect and report servo health
  jog <left|right|up|down> [n] move one axis n steps (default 1)
  torque <on|off>              enable or release both servos
  calibrate                    release torque, wait for Enter, take the current pose as center
  invert <pan|tilt> <on|off>   save a direction inversion preference
  shell                        interactive console; l/r/u/d jog, any command above

flags:
`)
	flag.PrintDefaults()
}

func realMain() error {
	port := flag.String("port", "", "serial port (default: auto-connect)")
	sim := flag.Bool("sim", false, "use a simulated head instead of a serial port")
	prefsFile := flag.String("prefs", "fac1-prefs.toml", "preferences file")
	debug := flag.Bool("debug", false, "debug logging")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		return errors.New("missing command")
	}

	logger := logging.NewLogger("fac1-cli")
	if *debug {
		logger.SetLevel(logging.DEBUG)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	prefs, err := fac1.LoadPreferences(*prefsFile, logger)
	if err != nil {
		return err
	}

	cfg := fac1.ControllerConfig{Preferences: prefs}
	if *sim {
		bus := feetech.NewSimBus(
			feetech.NewSimServo(fac1.DefaultPanID, 777),
			feetech.NewSimServo(fac1.DefaultTiltID, 777),
		)
		cfg.Enumerator = func() ([]string, error) { return []string{simPort}, nil }
		cfg.Opener = feetech.SimOpener(map[string]*feetech.SimBus{simPort: bus})
	}

	switch args[0] {
	case "ports":
		return listPorts(cfg)
	case "invert":
		return invert(*prefsFile, prefs, args[1:])
	}

	ctrl := fac1.NewController(cfg, logger)
	var connected bool
	if *port != "" {
		connected = ctrl.Connect(ctx, *port)
	} else {
		connected = ctrl.AutoConnect(ctx)
	}
	if !connected {
		return errors.New("no connection to the pan/tilt head")
	}
	defer ctrl.Disconnect()

	if args[0] == "shell" {
		return runShell(ctx, ctrl)
	}
	if err := runCommand(ctx, ctrl, args[0], args[1:]); err != nil {
		if errors.Is(err, errUnknownCommand) {
			usage()
		}
		return err
	}
	return nil
}

var errUnknownCommand = errors.New("unknown command")

// runCommand runs one command that needs a connected head.
func runCommand(ctx context.Context, ctrl *fac1.Controller, name string, args []string) error {
	switch name {
	case "status":
		printStatus(ctrl)
		return nil
	case "jog":
		return jog(ctx, ctrl, args)
	case "torque":
		return torque(ctrl, args)
	case "calibrate":
		return calibrate(ctrl)
	default:
		return errors.Wrapf(errUnknownCommand, "%q", name)
	}
}

func listPorts(cfg fac1.ControllerConfig) error {
	ports, err := fac1.CandidatePorts(cfg.Enumerator)
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("no USB-serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return nil
}

func printStatus(ctrl *fac1.Controller) {
	port, _ := ctrl.ConnectedPort()
	fmt.Printf("port:   %s\n", port)
	fmt.Printf("status: %s\n", ctrl.ConnectionStatus())
	for _, axis := range []fac1.Axis{fac1.Pan, fac1.Tilt} {
		st := ctrl.State(axis)
		fmt.Printf("%-5s position=%d torque=%v model=%s limits=%d..%d\n",
			axis, st.Position, st.TorqueEnabled, feetech.ModelName(st.ModelNumber), st.MinAngleLimit, st.MaxAngleLimit)
	}
}

func jog(ctx context.Context, ctrl *fac1.Controller, args []string) error {
	if len(args) == 0 {
		return errors.New("jog needs a direction")
	}
	requested, err := fac1.ParseDirection(args[0])
	if err != nil {
		return err
	}
	count := 1
	if len(args) > 1 {
		if count, err = strconv.Atoi(args[1]); err != nil || count < 1 {
			return errors.Errorf("invalid step count %q", args[1])
		}
	}

	d := ctrl.Preferences().Apply(requested)
	for i := 0; i < count; i++ {
		if err := ctrl.Move(d.Axis(), d); err != nil {
			return err
		}
		fmt.Printf("%s -> %d\n", d.Axis(), ctrl.State(d.Axis()).Position)
		if !utils.SelectContextOrWait(ctx, 50*time.Millisecond) {
			return ctx.Err()
		}
	}
	return nil
}

func torque(ctrl *fac1.Controller, args []string) error {
	if len(args) == 0 {
		return errors.New("torque needs on or off")
	}
	switch args[0] {
	case "on":
		ctrl.EnableTorque()
	case "off":
		ctrl.DisableTorque()
	default:
		return errors.Errorf("torque expects on or off, got %q", args[0])
	}
	printStatus(ctrl)
	return nil
}

func calibrate(ctrl *fac1.Controller) error {
	if err := ctrl.BeginCalibration(); err != nil {
		return err
	}
	defer ctrl.EndCalibration()

	fmt.Print("Torque released. Move the head to its center and press Enter...")
	if _, err := bufio.NewReader(os.Stdin).ReadString('\n'); err != nil {
		return errors.Wrap(err, "waiting for confirmation")
	}

	if err := ctrl.CalibrateCenter(); err != nil {
		return err
	}
	fmt.Printf("Center set: pan=%d tilt=%d\n", ctrl.State(fac1.Pan).Position, ctrl.State(fac1.Tilt).Position)
	return nil
}

func invert(path string, prefs fac1.Preferences, args []string) error {
	if len(args) != 2 {
		return errors.New("invert needs an axis and on or off")
	}
	axis, err := fac1.ParseAxis(args[0])
	if err != nil {
		return err
	}
	var on bool
	switch args[1] {
	case "on":
		on = true
	case "off":
	default:
		return errors.Errorf("invert expects on or off, got %q", args[1])
	}

	if axis == fac1.Tilt {
		prefs.InvertTilt = on
	} else {
		prefs.InvertPan = on
	}
	if err := fac1.SavePreferences(path, prefs); err != nil {
		return err
	}
	fmt.Printf("invert_pan=%v invert_tilt=%v saved to %s\n", prefs.InvertPan, prefs.InvertTilt, path)
	return nil
}
