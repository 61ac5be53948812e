package navigation

import (
	"encoding/json"
	"math"
	"time"

	"github.com/teslashibe/go-rover/pkg/directive"
)

// State is the controller's top-level mode.
type State int

const (
	StateCruising State = iota
	StateAvoiding
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateCruising:
		return "CRUISING"
	case StateAvoiding:
		return "AVOIDING"
	case StateHalted:
		return "HALTED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Phase is the sub-state while avoiding an obstacle.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseStopping
	PhaseBackingUp
	PhaseRepositioningSensor
	PhaseAwaitingDirective
	PhaseTurning
)

func (p Phase) String() string {
	switch p {
	case PhaseStopping:
		return "STOPPING"
	case PhaseBackingUp:
		return "BACKING_UP"
	case PhaseRepositioningSensor:
		return "REPOSITIONING_SENSOR"
	case PhaseAwaitingDirective:
		return "AWAITING_DIRECTIVE"
	case PhaseTurning:
		return "TURNING"
	default:
		return ""
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// NoReading is the distance recorded when the sensor fails. It compares
// greater than any threshold, so it reads as a clear path.
var NoReading = math.Inf(1)

// Status is a snapshot of the navigation state.
type Status struct {
	State               State
	Phase               Phase
	LastDistanceCm      float64
	ObstacleThresholdCm float64
	CurrentSpeed        int
	ServoAngles         map[string]int
	Obstacles           int
	LastDirective       directive.Directive
	UpdatedAt           time.Time
}

func (s Status) clone() Status {
	angles := make(map[string]int, len(s.ServoAngles))
	for k, v := range s.ServoAngles {
		angles[k] = v
	}
	s.ServoAngles = angles
	return s
}

type statusJSON struct {
	State               State               `json:"state"`
	Phase               Phase               `json:"phase,omitempty"`
	LastDistanceCm      *float64            `json:"last_distance_cm"`
	ObstacleThresholdCm float64             `json:"obstacle_threshold_cm"`
	CurrentSpeed        int                 `json:"current_speed"`
	ServoAngles         map[string]int      `json:"servo_angles"`
	Obstacles           int                 `json:"obstacles"`
	LastDirective       directive.Directive `json:"last_directive"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// MarshalJSON encodes the status. A missing or infinite distance is null.
func (s Status) MarshalJSON() ([]byte, error) {
	out := statusJSON{
		State:               s.State,
		Phase:               s.Phase,
		ObstacleThresholdCm: s.ObstacleThresholdCm,
		CurrentSpeed:        s.CurrentSpeed,
		ServoAngles:         s.ServoAngles,
		Obstacles:           s.Obstacles,
		LastDirective:       s.LastDirective,
		UpdatedAt:           s.UpdatedAt,
	}
	if !math.IsInf(s.LastDistanceCm, 0) && !math.IsNaN(s.LastDistanceCm) {
		d := s.LastDistanceCm
		out.LastDistanceCm = &d
	}
	return json.Marshal(out)
}
