package rover

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/spencerhhubert/go-firmata"
)

// Firmata defaults.
const (
	DefaultFirmataBaud = 57600

	// sysex payload understood by the PCA9685 sketch on the microcontroller
	pcaSysExCommand = 0x01
	pcaInit         = 0x07
	pcaSetAngle     = 0x08
)

// FirmataPins maps the rover's hardware onto microcontroller pins.
type FirmataPins struct {
	LeftDir   uint8
	LeftPWM   uint8
	RightDir  uint8
	RightPWM  uint8
	LEDRed    uint8
	LEDGreen  uint8
	LEDBlue   uint8
	ServoAddr byte // PCA9685 I2C address
}

// DefaultFirmataPins matches the reference wiring.
func DefaultFirmataPins() FirmataPins {
	return FirmataPins{
		LeftDir:   7,
		LeftPWM:   6,
		RightDir:  4,
		RightPWM:  5,
		LEDRed:    11,
		LEDGreen:  12,
		LEDBlue:   13,
		ServoAddr: 0x40,
	}
}

// pinBoard is the subset of the Firmata client the gateway uses.
type pinBoard interface {
	setOutput(pin uint8) error
	setPWM(pin uint8) error
	digitalWrite(pin uint8, high bool) error
	analogWrite(pin uint8, value byte) error
	initServoBoard(addr byte) error
	servoAngle(addr, channel, angle byte) error
	close()
}

// firmataBoard adapts *firmata.FirmataClient to pinBoard.
type firmataBoard struct {
	c *firmata.FirmataClient
}

func (b firmataBoard) setOutput(pin uint8) error {
	return b.c.SetPinMode(pin, firmata.Output)
}

func (b firmataBoard) setPWM(pin uint8) error {
	return b.c.SetPinMode(pin, firmata.PWM)
}

func (b firmataBoard) digitalWrite(pin uint8, high bool) error {
	return b.c.DigitalWrite(pin, high)
}

func (b firmataBoard) analogWrite(pin uint8, value byte) error {
	return b.c.AnalogWrite(uint(pin), value)
}

func (b firmataBoard) initServoBoard(addr byte) error {
	return b.c.SysEx(pcaSysExCommand, pcaInit, addr)
}

func (b firmataBoard) servoAngle(addr, channel, angle byte) error {
	lo, hi := to7Bit(angle)
	return b.c.SysEx(pcaSysExCommand, pcaSetAngle, addr, channel, lo, hi)
}

func (b firmataBoard) close() {
	b.c.Close()
}

// to7Bit splits a byte into the two 7-bit halves sysex payloads require.
func to7Bit(v byte) (lo, hi byte) {
	return v & 0x7f, (v >> 7) & 0x7f
}

// FirmataGateway drives motors, servos and the LED through a microcontroller
// running StandardFirmata plus a PCA9685 sysex extension. It has no range
// sensor; pair it with a RangeSensor via Compose.
type FirmataGateway struct {
	mu    sync.Mutex
	board pinBoard
	pins  FirmataPins
}

// NewFirmataGateway opens the serial device, configures the pins and
// initializes the servo board.
func NewFirmataGateway(device string, baud int, pins FirmataPins) (*FirmataGateway, error) {
	if baud <= 0 {
		baud = DefaultFirmataBaud
	}
	c, err := firmata.NewClient(device, baud)
	if err != nil {
		return nil, fmt.Errorf("open firmata %s: %w", device, err)
	}
	g, err := newFirmataGateway(firmataBoard{c: c}, pins)
	if err != nil {
		c.Close()
		return nil, err
	}
	return g, nil
}

func newFirmataGateway(board pinBoard, pins FirmataPins) (*FirmataGateway, error) {
	for _, p := range []uint8{pins.LeftDir, pins.RightDir, pins.LEDRed, pins.LEDGreen, pins.LEDBlue} {
		if err := board.setOutput(p); err != nil {
			return nil, fmt.Errorf("set pin %d output: %w", p, err)
		}
	}
	for _, p := range []uint8{pins.LeftPWM, pins.RightPWM} {
		if err := board.setPWM(p); err != nil {
			return nil, fmt.Errorf("set pin %d pwm: %w", p, err)
		}
	}
	if err := board.initServoBoard(pins.ServoAddr); err != nil {
		return nil, fmt.Errorf("init servo board 0x%02x: %w", pins.ServoAddr, err)
	}
	return &FirmataGateway{board: board, pins: pins}, nil
}

// SetMotor writes the direction pin then the PWM duty. Speed 0-1000 is
// scaled to 0-255.
func (g *FirmataGateway) SetMotor(side Side, dir Direction, speed int) error {
	dirPin, pwmPin := g.pins.LeftDir, g.pins.LeftPWM
	if side == RightMotor {
		dirPin, pwmPin = g.pins.RightDir, g.pins.RightPWM
	}
	duty := byte(ClampSpeed(speed) * 255 / MaxSpeed)

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.board.digitalWrite(dirPin, dir == Backward); err != nil {
		return fmt.Errorf("motor %s direction: %w", side, err)
	}
	if err := g.board.analogWrite(pwmPin, duty); err != nil {
		return fmt.Errorf("motor %s speed: %w", side, err)
	}
	return nil
}

// SetServoAngle moves a PCA9685 channel. The channel name is its number.
func (g *FirmataGateway) SetServoAngle(channel string, degrees int) error {
	ch, err := strconv.Atoi(channel)
	if err != nil || ch < 0 || ch > 15 {
		return fmt.Errorf("servo channel %q: must be 0-15", channel)
	}
	if degrees < 0 || degrees > 180 {
		return fmt.Errorf("servo angle %d out of range 0-180", degrees)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.board.servoAngle(g.pins.ServoAddr, byte(ch), byte(degrees))
}

// SetLED drives the three LED pins.
func (g *FirmataGateway) SetLED(r, gr, b bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, w := range []struct {
		pin uint8
		on  bool
	}{{g.pins.LEDRed, r}, {g.pins.LEDGreen, gr}, {g.pins.LEDBlue, b}} {
		if err := g.board.digitalWrite(w.pin, w.on); err != nil {
			return fmt.Errorf("led pin %d: %w", w.pin, err)
		}
	}
	return nil
}

// Close stops the motors and releases the serial port.
func (g *FirmataGateway) Close() error {
	err := StopAll(g)
	g.mu.Lock()
	g.board.close()
	g.mu.Unlock()
	return err
}
