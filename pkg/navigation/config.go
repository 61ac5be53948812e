// Package navigation implements the rover's obstacle-avoidance control loop.
//
// The controller cruises forward while the path is clear. When the range
// sensor reports an obstacle within the threshold it stops, backs up, points
// the camera forward, asks the perception service for a directive and runs
// the matching maneuver before resuming.
package navigation

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-rover/internal/config"
	"github.com/teslashibe/go-rover/pkg/rover"
)

// Maneuver names. Every Config must define all of them.
const (
	ManeuverForward  = "forward"
	ManeuverBackward = "backward"
	ManeuverLeft     = "left"
	ManeuverRight    = "right"
	ManeuverStop     = "stop"
)

var requiredManeuvers = []string{
	ManeuverForward, ManeuverBackward, ManeuverLeft, ManeuverRight, ManeuverStop,
}

// ServoMove positions one servo channel.
type ServoMove struct {
	Channel string `json:"channel"`
	Angle   int    `json:"angle"`
}

// Drive sets both motors.
type Drive struct {
	Left  rover.Direction `json:"left"`
	Right rover.Direction `json:"right"`
	Speed int             `json:"speed"`
}

// Rotates reports whether the motors spin in opposite directions.
func (d Drive) Rotates() bool {
	return d.Left != d.Right && d.Speed > 0
}

// Step is one maneuver instruction: an optional servo move, then either a
// motor stop or a drive command, then a hold.
type Step struct {
	Servo *ServoMove      `json:"servo,omitempty"`
	Stop  bool            `json:"stop,omitempty"`
	Drive *Drive          `json:"drive,omitempty"`
	Hold  config.Duration `json:"hold,omitempty"`
}

// Maneuver is a named, ordered list of steps.
type Maneuver struct {
	Steps []Step `json:"steps"`
}

// Config holds all navigation tuning. Distances are in centimeters.
type Config struct {
	ObstacleThresholdCm float64 `json:"obstacle_threshold_cm"`

	// Servo channels and their reference angles (degrees)
	SensorServo       string `json:"sensor_servo"`
	SensorCruiseAngle int    `json:"sensor_cruise_angle"`
	SensorCameraAngle int    `json:"sensor_camera_angle"`
	SteeringServo     string `json:"steering_servo"`
	SteeringCenter    int    `json:"steering_center"`

	// Timing
	PollInterval      config.Duration `json:"poll_interval"`
	SettleDelay       config.Duration `json:"settle_delay"`        // after stopping for an obstacle
	SensorSettleDelay config.Duration `json:"sensor_settle_delay"` // after pointing the camera forward
	DecisionDelay     config.Duration `json:"decision_delay"`      // after a directive arrives
	TurnSettleDelay   config.Duration `json:"turn_settle_delay"`   // before resuming cruise

	Maneuvers map[string]Maneuver `json:"maneuvers"`

	// MidTurnCheck ends rotation holds early once the path reads clear.
	MidTurnCheck        bool            `json:"mid_turn_check"`
	MidTurnPollInterval config.Duration `json:"mid_turn_poll_interval"`

	// StatusLED drives the indicator LED when the gateway has one.
	StatusLED bool `json:"status_led"`
}

func sec(s float64) config.Duration {
	return config.Duration(time.Duration(s * float64(time.Second)))
}

// DefaultConfig returns the tuning used on the reference rover.
func DefaultConfig() *Config {
	const (
		sensor   = "2"
		steering = "3"
	)
	return &Config{
		ObstacleThresholdCm: 20,

		SensorServo:       sensor,
		SensorCruiseAngle: 10,
		SensorCameraAngle: 90,
		SteeringServo:     steering,
		SteeringCenter:    90,

		PollInterval:      config.Duration(50 * time.Millisecond),
		SettleDelay:       sec(1),
		SensorSettleDelay: sec(0.5),
		DecisionDelay:     sec(1),
		TurnSettleDelay:   sec(1),

		Maneuvers: map[string]Maneuver{
			ManeuverForward: {Steps: []Step{
				{Drive: &Drive{Left: rover.Forward, Right: rover.Forward, Speed: 400}},
			}},
			ManeuverBackward: {Steps: []Step{
				{Drive: &Drive{Left: rover.Backward, Right: rover.Backward, Speed: 500}, Hold: sec(0.3)},
				{Stop: true},
			}},
			ManeuverLeft: {Steps: []Step{
				{Servo: &ServoMove{Channel: sensor, Angle: 10}, Hold: sec(0.5)},
				{Servo: &ServoMove{Channel: steering, Angle: 130}, Hold: sec(0.5)},
				{Drive: &Drive{Left: rover.Forward, Right: rover.Backward, Speed: 490}, Hold: sec(1.3)},
				{Stop: true},
			}},
			ManeuverRight: {Steps: []Step{
				{Servo: &ServoMove{Channel: sensor, Angle: 10}, Hold: sec(0.5)},
				{Servo: &ServoMove{Channel: steering, Angle: 50}, Hold: sec(0.5)},
				{Drive: &Drive{Left: rover.Backward, Right: rover.Forward, Speed: 490}, Hold: sec(1.3)},
				{Stop: true},
			}},
			ManeuverStop: {Steps: []Step{
				{Stop: true, Hold: sec(3)},
			}},
		},

		MidTurnCheck:        false,
		MidTurnPollInterval: config.Duration(100 * time.Millisecond),
		StatusLED:           true,
	}
}

// LoadConfig reads a JSON config file over the defaults. Fields absent from
// the file keep their default values; a maneuver present in the file
// replaces the default maneuver of the same name.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := config.LoadJSON(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	if c.ObstacleThresholdCm <= 0 {
		return fmt.Errorf("navigation: obstacle_threshold_cm must be > 0")
	}
	if c.SensorServo == "" || c.SteeringServo == "" {
		return fmt.Errorf("navigation: sensor_servo and steering_servo are required")
	}
	for name, angle := range map[string]int{
		"sensor_cruise_angle": c.SensorCruiseAngle,
		"sensor_camera_angle": c.SensorCameraAngle,
		"steering_center":     c.SteeringCenter,
	} {
		if angle < 0 || angle > 180 {
			return fmt.Errorf("navigation: %s %d out of range 0-180", name, angle)
		}
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("navigation: poll_interval must be > 0")
	}
	for name, d := range map[string]config.Duration{
		"settle_delay":        c.SettleDelay,
		"sensor_settle_delay": c.SensorSettleDelay,
		"decision_delay":      c.DecisionDelay,
		"turn_settle_delay":   c.TurnSettleDelay,
	} {
		if d < 0 {
			return fmt.Errorf("navigation: %s must be >= 0", name)
		}
	}
	if c.MidTurnCheck && c.MidTurnPollInterval <= 0 {
		return fmt.Errorf("navigation: mid_turn_poll_interval must be > 0 when mid_turn_check is on")
	}

	for _, name := range requiredManeuvers {
		m, ok := c.Maneuvers[name]
		if !ok {
			return fmt.Errorf("navigation: maneuver %q is not defined", name)
		}
		if err := m.validate(); err != nil {
			return fmt.Errorf("navigation: maneuver %q: %w", name, err)
		}
	}
	return nil
}

func (m Maneuver) validate() error {
	if len(m.Steps) == 0 {
		return fmt.Errorf("no steps")
	}
	for i, s := range m.Steps {
		if s.Servo != nil {
			if s.Servo.Channel == "" {
				return fmt.Errorf("step %d: servo channel required", i)
			}
			if s.Servo.Angle < 0 || s.Servo.Angle > 180 {
				return fmt.Errorf("step %d: servo angle %d out of range 0-180", i, s.Servo.Angle)
			}
		}
		if s.Drive != nil {
			if s.Stop {
				return fmt.Errorf("step %d: stop and drive are exclusive", i)
			}
			if s.Drive.Speed < rover.MinSpeed || s.Drive.Speed > rover.MaxSpeed {
				return fmt.Errorf("step %d: speed %d out of range 0-1000", i, s.Drive.Speed)
			}
		}
		if s.Hold < 0 {
			return fmt.Errorf("step %d: negative hold", i)
		}
	}
	return nil
}
