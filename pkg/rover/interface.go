// Package rover provides interfaces and implementations for the rover's
// motors, servos, range sensor and status LED.
//
// The interfaces are deliberately small so consumers depend only on what they
// use: the navigation controller needs a Gateway, a dry-run tool may only need
// a RangeSensor.
package rover

import (
	"fmt"
	"strings"
)

// Speed limits for SetMotor.
const (
	MinSpeed = 0
	MaxSpeed = 1000
)

// Side identifies one of the two drive motors.
type Side int

const (
	LeftMotor Side = iota
	RightMotor
)

func (s Side) String() string {
	if s == RightMotor {
		return "right"
	}
	return "left"
}

// ParseSide converts "left" or "right" into a Side.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left":
		return LeftMotor, nil
	case "right":
		return RightMotor, nil
	}
	return 0, fmt.Errorf("rover: unknown motor side %q", s)
}

// Direction is the spin direction of a drive motor.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// ParseDirection converts "forward" or "backward" into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "forward":
		return Forward, nil
	case "backward":
		return Backward, nil
	}
	return 0, fmt.Errorf("rover: unknown motor direction %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(b []byte) error {
	parsed, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MotorDriver sets the direction and speed of one drive motor.
type MotorDriver interface {
	SetMotor(side Side, dir Direction, speed int) error
}

// ServoDriver positions a named servo channel in degrees.
type ServoDriver interface {
	SetServoAngle(channel string, degrees int) error
}

// RangeSensor reads the forward distance in centimeters.
// A reading of 0 means no echo was received.
type RangeSensor interface {
	ReadDistanceCm() (float64, error)
}

// Indicator drives the RGB status LED. Optional.
type Indicator interface {
	SetLED(r, g, b bool) error
}

// Actuator combines motor and servo control.
type Actuator interface {
	MotorDriver
	ServoDriver
}

// Gateway is the composite interface used by the navigation controller.
type Gateway interface {
	Actuator
	RangeSensor
}

// ClampSpeed restricts speed to [MinSpeed, MaxSpeed].
func ClampSpeed(speed int) int {
	if speed < MinSpeed {
		return MinSpeed
	}
	if speed > MaxSpeed {
		return MaxSpeed
	}
	return speed
}

// StopAll zeros both motors. Both commands are attempted even if the first
// fails; the first error is returned.
func StopAll(m MotorDriver) error {
	errL := m.SetMotor(LeftMotor, Forward, 0)
	errR := m.SetMotor(RightMotor, Forward, 0)
	if errL != nil {
		return errL
	}
	return errR
}

// Ensure implementations satisfy the interfaces.
var (
	_ Gateway     = (*HTTPGateway)(nil)
	_ Indicator   = (*HTTPGateway)(nil)
	_ Actuator    = (*FirmataGateway)(nil)
	_ Indicator   = (*FirmataGateway)(nil)
	_ Gateway     = (*SimGateway)(nil)
	_ Indicator   = (*SimGateway)(nil)
	_ RangeSensor = (*SerialSonar)(nil)
)
