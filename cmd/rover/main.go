// Rover - obstacle-avoiding car that asks a remote classifier which way to
// turn when something blocks its path.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/teslashibe/go-rover/internal/config"
	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/camera"
	"github.com/teslashibe/go-rover/pkg/navigation"
	"github.com/teslashibe/go-rover/pkg/perception"
	"github.com/teslashibe/go-rover/pkg/rover"
	"github.com/teslashibe/go-rover/pkg/web"
)

// Options holds the command line configuration.
type Options struct {
	ServerURL  string
	ConfigPath string
	LogLevel   string

	Gateway     string
	GatewayURL  string
	FirmataPort string
	FirmataBaud int
	SonarPort   string
	SonarBaud   int
	SimScript   string

	CameraDevice string
	ImagePath    string

	Timeout    time.Duration
	MaxRetries int

	Dashboard string
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}
	opts := parseFlags()
	log.Init(opts.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		log.Error("rover stopped", "error", err)
		os.Exit(1)
	}
	log.Info("rover stopped")
}

// parseFlags parses command line flags, falling back to the environment.
func parseFlags() Options {
	var o Options

	flag.StringVar(&o.ServerURL, "server", config.ServerURL(config.DefaultServerURL), "Classification server URL (ROVER_SERVER_URL)")
	flag.StringVar(&o.ConfigPath, "config", config.String("ROVER_CONFIG", ""), "Navigation config JSON file")
	flag.StringVar(&o.LogLevel, "log-level", config.String("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	flag.StringVar(&o.Gateway, "gateway", config.String("ROVER_GATEWAY", "http"), "Gateway: http, firmata, sim")
	flag.StringVar(&o.GatewayURL, "gateway-url", config.GatewayURL(config.DefaultGatewayURL), "Board daemon URL for -gateway http (ROVER_GATEWAY_URL)")
	flag.StringVar(&o.FirmataPort, "firmata-port", config.String("ROVER_FIRMATA_PORT", "/dev/ttyACM0"), "Serial device of the Firmata board")
	flag.IntVar(&o.FirmataBaud, "firmata-baud", config.Int("ROVER_FIRMATA_BAUD", 57600), "Firmata baud rate")
	flag.StringVar(&o.SonarPort, "sonar-port", config.String("ROVER_SONAR_PORT", ""), "Serial device of the ultrasonic sensor (firmata gateway)")
	flag.IntVar(&o.SonarBaud, "sonar-baud", config.Int("ROVER_SONAR_BAUD", 9600), "Ultrasonic sensor baud rate")
	flag.StringVar(&o.SimScript, "sim-distances", "100", "Comma separated distances in cm for -gateway sim")

	flag.StringVar(&o.CameraDevice, "camera", config.String("ROVER_CAMERA", "0"), "Camera device index or path (needs -tags gocv)")
	flag.StringVar(&o.ImagePath, "image", "", "Send this JPEG instead of camera frames")

	flag.DurationVar(&o.Timeout, "timeout", 5*time.Second, "Classification request timeout")
	flag.IntVar(&o.MaxRetries, "retries", 2, "Classification retries before stopping")

	flag.StringVar(&o.Dashboard, "dashboard", config.String("ROVER_DASHBOARD", ""), "Dashboard listen address, e.g. :8080 (empty disables)")

	flag.Parse()
	return o
}

// run wires the rover together and drives it until ctx is cancelled.
func run(ctx context.Context, o Options) error {
	logger := log.L()

	navCfg := navigation.DefaultConfig()
	if o.ConfigPath != "" {
		var err error
		if navCfg, err = navigation.LoadConfig(o.ConfigPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}

	gw, err := openGateway(o)
	if err != nil {
		return err
	}
	defer closeGateway(gw)

	src, err := openSource(o)
	if err != nil {
		return err
	}

	var dash *web.Server
	if o.Dashboard != "" {
		dash = web.NewServer(o.Dashboard, logger)
		src = camera.Tap(src, dash.SetFrame)
		go func() {
			if err := dash.Start(ctx); err != nil {
				log.Warn("dashboard stopped", "error", err)
			}
		}()
	}

	client, err := perception.NewClient(src,
		perception.WithServerURL(o.ServerURL),
		perception.WithTimeout(o.Timeout),
		perception.WithRetry(o.MaxRetries, perception.DefaultConfig().RetryDelay),
		perception.WithLogger(logger),
	)
	if err != nil {
		if c, ok := src.(interface{ Close() error }); ok {
			c.Close()
		}
		return err
	}

	navOpts := []navigation.Option{navigation.WithLogger(logger)}
	if dash != nil {
		navOpts = append(navOpts, navigation.WithObserver(dash))
	}
	ctrl, err := navigation.NewController(gw, client, navCfg, navOpts...)
	if err != nil {
		client.Close()
		return err
	}

	log.Info("rover starting",
		"gateway", o.Gateway,
		"server", o.ServerURL,
		"dashboard", o.Dashboard,
	)

	err = ctrl.Run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// openGateway builds the actuator/sensor gateway selected by -gateway.
func openGateway(o Options) (rover.Gateway, error) {
	switch strings.ToLower(o.Gateway) {
	case "http":
		return rover.NewHTTPGateway(o.GatewayURL), nil

	case "firmata":
		if o.SonarPort == "" {
			return nil, errors.New("firmata gateway needs -sonar-port")
		}
		board, err := rover.NewFirmataGateway(o.FirmataPort, o.FirmataBaud, rover.DefaultFirmataPins())
		if err != nil {
			return nil, err
		}
		sonar, err := rover.OpenSerialSonar(o.SonarPort, o.SonarBaud)
		if err != nil {
			board.Close()
			return nil, err
		}
		return rover.Compose(board, sonar), nil

	case "sim":
		script, err := parseDistances(o.SimScript)
		if err != nil {
			return nil, err
		}
		return rover.NewSimGateway(script...), nil

	default:
		return nil, fmt.Errorf("unknown gateway %q (want http, firmata or sim)", o.Gateway)
	}
}

func closeGateway(gw rover.Gateway) {
	if c, ok := gw.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			log.Warn("failed to close gateway", "error", err)
		}
	}
}

// openSource returns the frame source for classification requests.
func openSource(o Options) (camera.Source, error) {
	if o.ImagePath != "" {
		if _, err := os.Stat(o.ImagePath); err != nil {
			return nil, err
		}
		return camera.FileSource{Path: o.ImagePath}, nil
	}
	cfg := camera.DefaultConfig()
	cfg.Device = o.CameraDevice
	return camera.Open(cfg)
}

// parseDistances parses "50,50,15" into a distance script.
func parseDistances(s string) ([]float64, error) {
	var out []float64
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		d, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("bad distance %q: %w", f, err)
		}
		out = append(out, d)
	}
	return out, nil
}
