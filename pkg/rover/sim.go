package rover

import (
	"fmt"
	"sync"
)

// CommandKind labels a recorded gateway call.
type CommandKind string

const (
	CmdMotor CommandKind = "motor"
	CmdServo CommandKind = "servo"
	CmdLED   CommandKind = "led"
	CmdRead  CommandKind = "read"
)

// Command is one call recorded by SimGateway.
type Command struct {
	Kind     CommandKind
	Side     Side
	Dir      Direction
	Speed    int
	Channel  string
	Angle    int
	LED      [3]bool
	Distance float64
}

func (c Command) String() string {
	switch c.Kind {
	case CmdMotor:
		return fmt.Sprintf("motor %s %s %d", c.Side, c.Dir, c.Speed)
	case CmdServo:
		return fmt.Sprintf("servo %s %d", c.Channel, c.Angle)
	case CmdLED:
		return fmt.Sprintf("led %v", c.LED)
	default:
		return fmt.Sprintf("read %.1f", c.Distance)
	}
}

// SimGateway is an in-memory Gateway for dry runs and tests. Distances are
// served from a script; once exhausted the last value repeats (or Idle when
// the script is empty). Every call is recorded.
type SimGateway struct {
	mu       sync.Mutex
	script   []float64
	errs     map[int]error
	next     int
	Idle     float64
	commands []Command
	speed    [2]int

	// Fault, when set, is returned by motor and servo commands.
	Fault error
	// OnRead, when set, is called after each distance read with the 0-based
	// read index.
	OnRead func(i int)
}

// NewSimGateway creates a simulator serving the given distance script.
func NewSimGateway(distances ...float64) *SimGateway {
	return &SimGateway{
		script: distances,
		errs:   make(map[int]error),
		Idle:   100,
	}
}

// FailRead makes the i-th read (0-based) return err instead of a distance.
func (s *SimGateway) FailRead(i int, err error) {
	s.mu.Lock()
	s.errs[i] = err
	s.mu.Unlock()
}

// SetMotor records the command.
func (s *SimGateway) SetMotor(side Side, dir Direction, speed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fault != nil {
		return s.Fault
	}
	speed = ClampSpeed(speed)
	s.speed[side] = speed
	s.commands = append(s.commands, Command{Kind: CmdMotor, Side: side, Dir: dir, Speed: speed})
	return nil
}

// SetServoAngle records the command.
func (s *SimGateway) SetServoAngle(channel string, degrees int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fault != nil {
		return s.Fault
	}
	s.commands = append(s.commands, Command{Kind: CmdServo, Channel: channel, Angle: degrees})
	return nil
}

// SetLED records the command.
func (s *SimGateway) SetLED(r, g, b bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, Command{Kind: CmdLED, LED: [3]bool{r, g, b}})
	return nil
}

// ReadDistanceCm serves the next scripted distance.
func (s *SimGateway) ReadDistanceCm() (float64, error) {
	s.mu.Lock()
	i := s.next
	s.next++

	d := s.Idle
	switch {
	case i < len(s.script):
		d = s.script[i]
	case len(s.script) > 0:
		d = s.script[len(s.script)-1]
	}
	err := s.errs[i]
	if err == nil {
		s.commands = append(s.commands, Command{Kind: CmdRead, Distance: d})
	}
	hook := s.OnRead
	s.mu.Unlock()

	if hook != nil {
		hook(i)
	}
	if err != nil {
		return 0, err
	}
	return d, nil
}

// Commands returns a copy of the recorded calls.
func (s *SimGateway) Commands() []Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Command, len(s.commands))
	copy(out, s.commands)
	return out
}

// Reads returns how many distance reads were served.
func (s *SimGateway) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Speeds returns the last commanded speed of the left and right motors.
func (s *SimGateway) Speeds() (left, right int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed[LeftMotor], s.speed[RightMotor]
}
