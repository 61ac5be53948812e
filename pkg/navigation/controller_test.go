package navigation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/directive"
	"github.com/teslashibe/go-rover/pkg/perception"
	"github.com/teslashibe/go-rover/pkg/rover"
)

// sleepRecorder replaces real waits and records requested durations.
type sleepRecorder struct {
	mu        sync.Mutex
	durations []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.durations = append(s.durations, d)
	s.mu.Unlock()
	return nil
}

func (s *sleepRecorder) count(d time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, x := range s.durations {
		if x == d {
			n++
		}
	}
	return n
}

// eventLog records observer events.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Observe(e Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) count(kind EventKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (l *eventLog) maneuvers() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var names []string
	for _, e := range l.events {
		if e.Kind == EventManeuver {
			names = append(names, e.Maneuver)
		}
	}
	return names
}

type harness struct {
	ctrl   *Controller
	sim    *rover.SimGateway
	sleeps *sleepRecorder
	events *eventLog
}

// newHarness builds a controller whose context is cancelled on the
// cancelAt-th distance read (0-based).
func newHarness(t *testing.T, sim *rover.SimGateway, p Perceiver, cfg *Config, cancelAt int) (*harness, context.Context) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	sim.OnRead = func(i int) {
		if i >= cancelAt {
			cancel()
		}
	}

	h := &harness{sim: sim, sleeps: &sleepRecorder{}, events: &eventLog{}}
	ctrl, err := NewController(sim, p, cfg,
		WithLogger(log.Discard()),
		WithObserver(h.events),
		WithSleep(h.sleeps.sleep),
	)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	h.ctrl = ctrl
	return h, ctx
}

func motorCommands(cmds []rover.Command) []rover.Command {
	var out []rover.Command
	for _, c := range cmds {
		if c.Kind == rover.CmdMotor {
			out = append(out, c)
		}
	}
	return out
}

func countSpeed(cmds []rover.Command, speed int) int {
	n := 0
	for _, c := range motorCommands(cmds) {
		if c.Speed == speed {
			n++
		}
	}
	return n
}

func assertStopped(t *testing.T, sim *rover.SimGateway) {
	t.Helper()
	if l, r := sim.Speeds(); l != 0 || r != 0 {
		t.Errorf("motors not stopped: left=%d right=%d", l, r)
	}
	motors := motorCommands(sim.Commands())
	if len(motors) < 2 {
		t.Fatal("no motor commands recorded")
	}
	for _, c := range motors[len(motors)-2:] {
		if c.Speed != 0 {
			t.Errorf("final motor command %v is not a stop", c)
		}
	}
}

func TestRun_ClearClearObstacleScenario(t *testing.T) {
	sim := rover.NewSimGateway(50, 50, 15, 100, 100)
	p := perception.NewMock(directive.Left)

	var speedsAtPerceive [2]int
	p.PerceiveFunc = func(ctx context.Context) (directive.Directive, error) {
		speedsAtPerceive[0], speedsAtPerceive[1] = sim.Speeds()
		return directive.Left, nil
	}

	// cancelled on the fifth read, after one clear poll past the obstacle
	h, ctx := newHarness(t, sim, p, DefaultConfig(), 4)
	err := h.ctrl.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}

	cmds := sim.Commands()

	// Two clear polls, then the obstacle: forward was issued before the stop.
	var firstStop int = -1
	forwardBefore := 0
	for i, c := range motorCommands(cmds) {
		if c.Speed == 0 {
			firstStop = i
			break
		}
		if c.Speed == 400 && c.Dir == rover.Forward {
			forwardBefore++
		}
	}
	if forwardBefore != 4 {
		t.Errorf("forward motor commands before stop = %d, want 4 (two polls x two motors)", forwardBefore)
	}
	if firstStop < 0 {
		t.Fatal("no stop command recorded")
	}

	if p.CallCount("Perceive") != 1 {
		t.Errorf("Perceive called %d times, want 1", p.CallCount("Perceive"))
	}
	if speedsAtPerceive != [2]int{0, 0} {
		t.Errorf("motors at classification = %v, want stationary", speedsAtPerceive)
	}

	if got := h.events.maneuvers(); len(got) != 2 || got[0] != ManeuverBackward || got[1] != ManeuverLeft {
		t.Errorf("maneuvers = %v, want [backward left]", got)
	}
	if countSpeed(cmds, 490) != 2 {
		t.Errorf("rotation commands = %d, want one per motor", countSpeed(cmds, 490))
	}
	if countSpeed(cmds, 500) != 2 {
		t.Errorf("backup commands = %d, want one per motor", countSpeed(cmds, 500))
	}

	// Steering deflected for the turn, then re-centered on the next cruise.
	deflected := false
	recentered := false
	for _, c := range cmds {
		if c.Kind != rover.CmdServo || c.Channel != "3" {
			continue
		}
		if c.Angle == 130 {
			deflected = true
		} else if deflected && c.Angle == 90 {
			recentered = true
		}
	}
	if !deflected || !recentered {
		t.Errorf("steering deflected=%v recentered=%v", deflected, recentered)
	}

	if h.sleeps.count(1300*time.Millisecond) != 1 {
		t.Error("rotation hold should run once")
	}

	assertStopped(t, sim)
	if !p.Closed() {
		t.Error("perceiver should be released on halt")
	}
	if st := h.ctrl.Status(); st.State != StateHalted || st.Obstacles != 1 {
		t.Errorf("status = %+v", st)
	}
	if h.events.count(EventHalt) != 1 {
		t.Error("halt event missing")
	}
}

func TestTick_ForwardVersusObstacle(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		fail     bool
		obstacle bool
	}{
		{"no echo", 0, false, false},
		{"far", 100, false, false},
		{"just over threshold", 20.01, false, false},
		{"at threshold", 20, false, true},
		{"close", 5, false, true},
		{"tiny", 0.1, false, true},
		{"sensor fault", 0, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := rover.NewSimGateway(tt.distance)
			if tt.fail {
				sim.FailRead(0, errors.New("echo timeout"))
			}
			p := perception.NewMock(directive.Stop)
			h, _ := newHarness(t, sim, p, DefaultConfig(), 1000)

			if err := h.ctrl.tick(context.Background()); err != nil {
				t.Fatalf("tick: %v", err)
			}

			gotObstacle := p.CallCount("Perceive") == 1
			if gotObstacle != tt.obstacle {
				t.Errorf("obstacle handling = %v, want %v", gotObstacle, tt.obstacle)
			}
			if !tt.obstacle {
				l, r := sim.Speeds()
				if l != 400 || r != 400 {
					t.Errorf("speeds = %d,%d, want forward at 400", l, r)
				}
			}
		})
	}
}

func TestTick_SensorFaultRecordsNoReading(t *testing.T) {
	sim := rover.NewSimGateway()
	sim.FailRead(0, errors.New("bus error"))
	h, _ := newHarness(t, sim, perception.NewMock(), DefaultConfig(), 1000)

	h.ctrl.tick(context.Background())
	if d := h.ctrl.Status().LastDistanceCm; d != NoReading {
		t.Errorf("LastDistanceCm = %v, want NoReading", d)
	}
}

func TestAvoid_FailSafeDirectives(t *testing.T) {
	tests := []struct {
		name     string
		dir      directive.Directive
		err      error
		recorded directive.Directive
	}{
		{"transport failure", directive.Unknown, errors.New("connection refused"), directive.Stop},
		{"garbled", directive.Unknown, perception.ErrUnrecognized, directive.Stop},
		{"unknown without error", directive.Unknown, nil, directive.Stop},
		{"explicit stop", directive.Stop, nil, directive.Stop},
		{"forward", directive.Forward, nil, directive.Forward},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := rover.NewSimGateway(10)
			p := perception.NewMock()
			p.PerceiveFunc = func(ctx context.Context) (directive.Directive, error) {
				return tt.dir, tt.err
			}
			h, _ := newHarness(t, sim, p, DefaultConfig(), 1000)

			if err := h.ctrl.tick(context.Background()); err != nil {
				t.Fatalf("tick: %v", err)
			}

			got := h.events.maneuvers()
			if len(got) != 2 || got[1] != ManeuverStop {
				t.Errorf("maneuvers = %v, want [backward stop]", got)
			}
			if countSpeed(sim.Commands(), 490) != 0 {
				t.Error("no rotation expected")
			}
			if h.sleeps.count(3*time.Second) != 1 {
				t.Error("stop cooldown should be held once")
			}
			if got := h.ctrl.Status().LastDirective; got != tt.recorded {
				t.Errorf("LastDirective = %v, want %v", got, tt.recorded)
			}
			if st := h.ctrl.Status(); st.State != StateCruising {
				t.Errorf("state after avoidance = %v, want CRUISING", st.State)
			}
		})
	}
}

func TestManeuver_Idempotent(t *testing.T) {
	for _, name := range requiredManeuvers {
		sim := rover.NewSimGateway()
		h, _ := newHarness(t, sim, perception.NewMock(), DefaultConfig(), 1000)

		if err := h.ctrl.runManeuver(context.Background(), name); err != nil {
			t.Fatalf("%s first run: %v", name, err)
		}
		first := sim.Commands()
		if err := h.ctrl.runManeuver(context.Background(), name); err != nil {
			t.Fatalf("%s second run: %v", name, err)
		}
		second := sim.Commands()[len(first):]

		if len(first) != len(second) {
			t.Fatalf("%s: %d commands then %d", name, len(first), len(second))
		}
		for i := range first {
			if first[i] != second[i] {
				t.Errorf("%s command %d: %v then %v", name, i, first[i], second[i])
			}
		}
	}
}

func TestRun_CancelDuringManeuverStopsMotors(t *testing.T) {
	sim := rover.NewSimGateway(10)
	p := perception.NewMock(directive.Right)
	h, ctx := newHarness(t, sim, p, DefaultConfig(), 1000)

	ctx, cancel := context.WithCancel(ctx)
	h.ctrl.sleep = func(c context.Context, d time.Duration) error {
		// Cancel while the right-turn rotation is running.
		if d == 1300*time.Millisecond {
			cancel()
		}
		return h.sleeps.sleep(c, d)
	}

	err := h.ctrl.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}
	assertStopped(t, sim)
	if h.ctrl.Status().State != StateHalted {
		t.Errorf("state = %v, want HALTED", h.ctrl.Status().State)
	}
}

func TestRun_CancelDuringReadDoesNotDrive(t *testing.T) {
	sim := rover.NewSimGateway(100)
	h, ctx := newHarness(t, sim, perception.NewMock(directive.Left), DefaultConfig(), 0)

	if err := h.ctrl.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}

	cmds := sim.Commands()
	read := -1
	for i, c := range cmds {
		if c.Kind == rover.CmdRead {
			read = i
			break
		}
	}
	if read < 0 {
		t.Fatal("no distance read recorded")
	}
	for _, c := range cmds[read+1:] {
		if c.Kind == rover.CmdMotor && c.Speed != 0 {
			t.Errorf("motor driven after cancellation: %v", c)
		}
	}
	assertStopped(t, sim)
}

func TestRun_MidTurnCheckEndsRotationEarly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MidTurnCheck = true

	// Obstacle, still blocked twice mid-turn, then clear.
	sim := rover.NewSimGateway(15, 15, 15, 50)
	h, ctx := newHarness(t, sim, perception.NewMock(directive.Left), cfg, 4)

	h.ctrl.Run(ctx)

	if n := h.sleeps.count(100 * time.Millisecond); n != 3 {
		t.Errorf("mid-turn polls = %d, want 3", n)
	}
	if h.sleeps.count(1300*time.Millisecond) != 0 {
		t.Error("rotation should not run the full open-loop hold")
	}
	if h.ctrl.Status().Obstacles != 1 {
		t.Errorf("obstacles = %d, want 1", h.ctrl.Status().Obstacles)
	}
}

func TestRun_MidTurnCheckRespectsLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MidTurnCheck = true
	cfg.MidTurnPollInterval = cfg.Maneuvers[ManeuverLeft].Steps[2].Hold

	// Path never clears during the turn: the hold stops at its configured limit.
	sim := rover.NewSimGateway(15)
	h, _ := newHarness(t, sim, perception.NewMock(directive.Left), cfg, 1000)

	if err := h.ctrl.tick(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h.sleeps.count(1300*time.Millisecond) != 1 {
		t.Error("hold should be capped at the rotation duration")
	}
}

func TestRun_OpenLoopTurnCanEndFacingObstacle(t *testing.T) {
	// With the mid-turn check off the turn is timed only: the rover may
	// finish the rotation still facing an obstacle and must avoid again.
	sim := rover.NewSimGateway(15, 15, 50)
	p := perception.NewMock(directive.Left)
	h, ctx := newHarness(t, sim, p, DefaultConfig(), 2)

	h.ctrl.Run(ctx)

	if got := h.ctrl.Status().Obstacles; got != 2 {
		t.Errorf("obstacles = %d, want 2", got)
	}
	if p.CallCount("Perceive") != 2 {
		t.Errorf("Perceive called %d times, want 2", p.CallCount("Perceive"))
	}
	if sim.Reads() != 3 {
		t.Errorf("reads = %d: the open-loop turn must not poll the sensor", sim.Reads())
	}
}

func TestRun_ActuationFaultAtStart(t *testing.T) {
	sim := rover.NewSimGateway()
	sim.Fault = errors.New("i2c nack")
	p := perception.NewMock()
	h, ctx := newHarness(t, sim, p, DefaultConfig(), 1000)

	err := h.ctrl.Run(ctx)
	if !errors.Is(err, ErrActuation) {
		t.Fatalf("Run() = %v, want ErrActuation", err)
	}
	if h.ctrl.Status().State != StateHalted {
		t.Error("controller should halt on actuation fault")
	}
	if !p.Closed() {
		t.Error("perceiver should be released")
	}
}

func TestRun_ActuationFaultMidManeuver(t *testing.T) {
	sim := rover.NewSimGateway(10)
	p := perception.NewMock()
	fault := errors.New("servo driver offline")
	p.PerceiveFunc = func(ctx context.Context) (directive.Directive, error) {
		sim.Fault = fault
		return directive.Right, nil
	}
	h, ctx := newHarness(t, sim, p, DefaultConfig(), 1000)

	err := h.ctrl.Run(ctx)
	if !errors.Is(err, ErrActuation) || !errors.Is(err, fault) {
		t.Fatalf("Run() = %v, want ErrActuation wrapping the fault", err)
	}
	if h.events.count(EventHalt) != 1 {
		t.Error("halt event missing")
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	sim := rover.NewSimGateway(100)
	h, _ := newHarness(t, sim, perception.NewMock(), DefaultConfig(), 1000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := h.ctrl.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v", err)
	}
	if sim.Reads() != 0 {
		t.Error("no polls expected after cancellation")
	}
	assertStopped(t, sim)
}

func TestRun_StatusLED(t *testing.T) {
	sim := rover.NewSimGateway(10, 100)
	h, ctx := newHarness(t, sim, perception.NewMock(directive.Left), DefaultConfig(), 1)
	h.ctrl.Run(ctx)

	var colours [][3]bool
	for _, c := range sim.Commands() {
		if c.Kind == rover.CmdLED {
			colours = append(colours, c.LED)
		}
	}
	want := [][3]bool{
		{false, false, true}, // cruising
		{true, false, false}, // obstacle
		{false, true, false}, // turning
		{false, false, true}, // cruising again
		{false, false, false},
	}
	if len(colours) != len(want) {
		t.Fatalf("led commands = %v", colours)
	}
	for i := range want {
		if colours[i] != want[i] {
			t.Errorf("led[%d] = %v, want %v", i, colours[i], want[i])
		}
	}
}

func TestNewController_Validation(t *testing.T) {
	sim := rover.NewSimGateway()
	if _, err := NewController(nil, perception.NewMock(), nil); err == nil {
		t.Error("nil gateway should fail")
	}
	if _, err := NewController(sim, nil, nil); err == nil {
		t.Error("nil perceiver should fail")
	}
	bad := DefaultConfig()
	bad.ObstacleThresholdCm = 0
	if _, err := NewController(sim, perception.NewMock(), bad); err == nil {
		t.Error("invalid config should fail")
	}
}
