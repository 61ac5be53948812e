package navigation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/directive"
	"github.com/teslashibe/go-rover/pkg/rover"
)

// ErrActuation wraps motor and servo command failures. They stop the
// controller.
var ErrActuation = errors.New("navigation: actuation failed")

// Perceiver returns the steering directive for the scene in front of the
// rover. It is called only while the rover is stationary.
type Perceiver interface {
	Perceive(ctx context.Context) (directive.Directive, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = log.Component(l, "navigation.controller") }
}

// WithObserver registers an event observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observers = append(c.observers, o) }
}

// WithSleep replaces the wait function, e.g. to run a simulation without
// real delays.
func WithSleep(fn SleepFunc) Option {
	return func(c *Controller) { c.sleep = fn }
}

// Controller runs the obstacle-avoidance loop for one rover.
type Controller struct {
	gw        rover.Gateway
	perceiver Perceiver
	cfg       *Config
	logger    *slog.Logger
	observers []Observer
	sleep     SleepFunc

	mu     sync.RWMutex
	status Status
}

// NewController creates a controller. The config is validated.
func NewController(gw rover.Gateway, p Perceiver, cfg *Config, opts ...Option) (*Controller, error) {
	if gw == nil {
		return nil, errors.New("navigation: gateway required")
	}
	if p == nil {
		return nil, errors.New("navigation: perceiver required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		gw:        gw,
		perceiver: p,
		cfg:       cfg,
		logger:    log.Component(nil, "navigation.controller"),
		sleep:     sleepCtx,
		status: Status{
			State:               StateCruising,
			LastDistanceCm:      NoReading,
			ObstacleThresholdCm: cfg.ObstacleThresholdCm,
			ServoAngles:         make(map[string]int),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Status returns a snapshot of the current state.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status.clone()
}

// Run drives the rover until ctx is cancelled or an actuator fails. On
// return both motors have been commanded to zero and the perceiver's
// resources (camera) released. Cancellation returns ctx.Err(); an actuator
// failure returns an error wrapping ErrActuation.
func (c *Controller) Run(ctx context.Context) (err error) {
	defer func() { c.halt(err) }()

	if err := c.start(); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.tick(ctx); err != nil {
			return err
		}
	}
}

// start applies the forward-facing servo positions.
func (c *Controller) start() error {
	c.logger.Info("navigation starting",
		"threshold_cm", c.cfg.ObstacleThresholdCm,
		"mid_turn_check", c.cfg.MidTurnCheck,
	)
	if err := c.setServo(c.cfg.SensorServo, c.cfg.SensorCruiseAngle); err != nil {
		return err
	}
	if err := c.setServo(c.cfg.SteeringServo, c.cfg.SteeringCenter); err != nil {
		return err
	}
	c.setLED(false, false, true)
	c.emit(Event{Kind: EventStart})
	return nil
}

// tick runs one poll and, if needed, one full avoidance sequence.
func (c *Controller) tick(ctx context.Context) error {
	d := c.readDistance()
	if err := ctx.Err(); err != nil {
		return err
	}
	c.emit(Event{Kind: EventPoll})

	if !c.isObstacle(d) {
		if err := c.cruise(ctx); err != nil {
			return err
		}
		return c.sleep(ctx, c.cfg.PollInterval.D())
	}
	return c.avoid(ctx, d)
}

// isObstacle reports whether d is a valid echo within the threshold.
// 0 means no echo and NoReading means a sensor fault; both read as clear.
func (c *Controller) isObstacle(d float64) bool {
	return d > 0 && d <= c.cfg.ObstacleThresholdCm
}

func (c *Controller) cruise(ctx context.Context) error {
	c.mu.RLock()
	steering, known := c.status.ServoAngles[c.cfg.SteeringServo]
	c.mu.RUnlock()

	if !known || steering != c.cfg.SteeringCenter {
		if err := c.setServo(c.cfg.SteeringServo, c.cfg.SteeringCenter); err != nil {
			return err
		}
	}
	return c.runManeuver(ctx, ManeuverForward)
}

// avoid runs STOPPING through TURNING and returns to CRUISING.
func (c *Controller) avoid(ctx context.Context, d float64) error {
	c.mu.Lock()
	c.status.Obstacles++
	n := c.status.Obstacles
	c.mu.Unlock()

	c.logger.Info("obstacle detected", "distance_cm", d, "count", n)
	c.setPhase(StateAvoiding, PhaseStopping)
	c.setLED(true, false, false)
	c.emit(Event{Kind: EventObstacle})

	if err := c.stopMotors(); err != nil {
		return err
	}
	if err := c.sleep(ctx, c.cfg.SettleDelay.D()); err != nil {
		return err
	}

	c.setPhase(StateAvoiding, PhaseBackingUp)
	if err := c.runManeuver(ctx, ManeuverBackward); err != nil {
		return err
	}

	c.setPhase(StateAvoiding, PhaseRepositioningSensor)
	if err := c.setServo(c.cfg.SensorServo, c.cfg.SensorCameraAngle); err != nil {
		return err
	}
	if err := c.sleep(ctx, c.cfg.SensorSettleDelay.D()); err != nil {
		return err
	}

	c.setPhase(StateAvoiding, PhaseAwaitingDirective)
	dir, err := c.decide(ctx)
	if err != nil {
		return err
	}
	if err := c.sleep(ctx, c.cfg.DecisionDelay.D()); err != nil {
		return err
	}

	c.setPhase(StateAvoiding, PhaseTurning)
	c.setLED(false, true, false)
	if err := c.runManeuver(ctx, maneuverFor(dir)); err != nil {
		return err
	}

	if err := c.setServo(c.cfg.SensorServo, c.cfg.SensorCruiseAngle); err != nil {
		return err
	}
	if err := c.sleep(ctx, c.cfg.TurnSettleDelay.D()); err != nil {
		return err
	}

	c.setPhase(StateCruising, PhaseNone)
	c.setLED(false, false, true)
	return nil
}

// decide asks the perceiver for a directive. Failures and unrecognised
// answers become Stop; only cancellation is returned as an error.
func (c *Controller) decide(ctx context.Context) (directive.Directive, error) {
	c.mu.RLock()
	moving := c.status.CurrentSpeed != 0
	c.mu.RUnlock()
	if moving {
		if err := c.stopMotors(); err != nil {
			return directive.Stop, err
		}
	}

	dir, err := c.perceiver.Perceive(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return directive.Stop, ctxErr
	}
	if err != nil {
		c.logger.Warn("perception failed, stopping", "error", err)
		dir = directive.Stop
	}
	if dir == directive.Unknown {
		dir = directive.Stop
	}

	c.mu.Lock()
	c.status.LastDirective = dir
	c.mu.Unlock()

	c.logger.Info("directive", "directive", dir.String())
	c.emit(Event{Kind: EventDirective, Directive: dir})
	return dir, nil
}

// maneuverFor maps a directive onto the maneuver that executes it.
func maneuverFor(d directive.Directive) string {
	switch d {
	case directive.Left:
		return ManeuverLeft
	case directive.Right:
		return ManeuverRight
	default:
		return ManeuverStop
	}
}

// runManeuver issues every step of the named maneuver.
func (c *Controller) runManeuver(ctx context.Context, name string) error {
	m, ok := c.cfg.Maneuvers[name]
	if !ok {
		return fmt.Errorf("navigation: maneuver %q not defined", name)
	}
	if name != ManeuverForward {
		c.logger.Debug("maneuver", "name", name, "steps", len(m.Steps))
		c.emit(Event{Kind: EventManeuver, Maneuver: name})
	}

	for _, s := range m.Steps {
		if s.Servo != nil {
			if err := c.setServo(s.Servo.Channel, s.Servo.Angle); err != nil {
				return err
			}
		}
		if s.Stop {
			if err := c.stopMotors(); err != nil {
				return err
			}
		}
		if s.Drive != nil {
			if err := c.drive(*s.Drive); err != nil {
				return err
			}
		}

		hold := s.Hold.D()
		if hold <= 0 {
			continue
		}
		if c.cfg.MidTurnCheck && s.Drive != nil && s.Drive.Rotates() {
			if err := c.holdUntilClear(ctx, hold); err != nil {
				return err
			}
			continue
		}
		if err := c.sleep(ctx, hold); err != nil {
			return err
		}
	}
	return nil
}

// holdUntilClear waits up to limit, polling the range sensor, and returns
// early once the path reads clear.
func (c *Controller) holdUntilClear(ctx context.Context, limit time.Duration) error {
	interval := c.cfg.MidTurnPollInterval.D()
	var waited time.Duration

	for waited < limit {
		wait := interval
		if remaining := limit - waited; remaining < wait {
			wait = remaining
		}
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
		waited += wait

		if d := c.readDistance(); !c.isObstacle(d) {
			c.logger.Debug("path clear mid-turn", "distance_cm", d, "after", waited)
			return nil
		}
	}
	return nil
}

// halt zeros the motors, releases the perceiver and enters HALTED.
func (c *Controller) halt(cause error) {
	if err := rover.StopAll(c.gw); err != nil {
		c.logger.Error("failed to stop motors on halt", "error", err)
	}
	c.mu.Lock()
	c.status.CurrentSpeed = 0
	c.mu.Unlock()

	c.setLED(false, false, false)

	if cl, ok := c.perceiver.(io.Closer); ok {
		if err := cl.Close(); err != nil {
			c.logger.Warn("failed to release perceiver", "error", err)
		}
	}

	c.setPhase(StateHalted, PhaseNone)

	ev := Event{Kind: EventHalt}
	if cause != nil && !errors.Is(cause, context.Canceled) && !errors.Is(cause, context.DeadlineExceeded) {
		ev.Error = cause.Error()
		c.logger.Error("navigation halted", "error", cause)
	} else {
		c.logger.Info("navigation halted")
	}
	c.emit(ev)
}

// readDistance polls the sensor. Errors and NaN become NoReading.
func (c *Controller) readDistance() float64 {
	d, err := c.gw.ReadDistanceCm()
	if err != nil {
		c.logger.Debug("range sensor read failed", "error", err)
		d = NoReading
	} else if math.IsNaN(d) || d < 0 {
		d = NoReading
	}

	c.mu.Lock()
	c.status.LastDistanceCm = d
	c.status.UpdatedAt = time.Now()
	c.mu.Unlock()
	return d
}

func (c *Controller) drive(d Drive) error {
	if err := c.gw.SetMotor(rover.LeftMotor, d.Left, d.Speed); err != nil {
		return c.actuationFault(err)
	}
	if err := c.gw.SetMotor(rover.RightMotor, d.Right, d.Speed); err != nil {
		return c.actuationFault(err)
	}
	c.mu.Lock()
	c.status.CurrentSpeed = d.Speed
	c.mu.Unlock()
	return nil
}

func (c *Controller) stopMotors() error {
	if err := rover.StopAll(c.gw); err != nil {
		return c.actuationFault(err)
	}
	c.mu.Lock()
	c.status.CurrentSpeed = 0
	c.mu.Unlock()
	return nil
}

func (c *Controller) setServo(channel string, angle int) error {
	if err := c.gw.SetServoAngle(channel, angle); err != nil {
		return c.actuationFault(err)
	}
	c.mu.Lock()
	c.status.ServoAngles[channel] = angle
	c.mu.Unlock()
	return nil
}

// actuationFault attempts an emergency stop and wraps err in ErrActuation.
func (c *Controller) actuationFault(err error) error {
	if stopErr := rover.StopAll(c.gw); stopErr != nil {
		c.logger.Error("emergency stop failed", "error", stopErr)
	}
	return fmt.Errorf("%w: %w", ErrActuation, err)
}

// setLED is cosmetic; failures are logged only.
func (c *Controller) setLED(r, g, b bool) {
	if !c.cfg.StatusLED {
		return
	}
	ind, ok := c.gw.(rover.Indicator)
	if !ok {
		return
	}
	if err := ind.SetLED(r, g, b); err != nil {
		c.logger.Debug("status led failed", "error", err)
	}
}

func (c *Controller) setPhase(s State, p Phase) {
	c.mu.Lock()
	c.status.State = s
	c.status.Phase = p
	c.status.UpdatedAt = time.Now()
	c.mu.Unlock()
}

func (c *Controller) emit(e Event) {
	if len(c.observers) == 0 {
		return
	}
	e.Time = time.Now()
	e.Status = c.Status()
	for _, o := range c.observers {
		o.Observe(e)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
