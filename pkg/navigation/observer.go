package navigation

import (
	"time"

	"github.com/teslashibe/go-rover/pkg/directive"
)

// EventKind identifies a controller event.
type EventKind string

const (
	EventStart     EventKind = "start"
	EventPoll      EventKind = "poll"
	EventObstacle  EventKind = "obstacle"
	EventDirective EventKind = "directive"
	EventManeuver  EventKind = "maneuver"
	EventHalt      EventKind = "halt"
)

// Event is delivered to observers as the controller runs.
type Event struct {
	Kind      EventKind           `json:"kind"`
	Time      time.Time           `json:"time"`
	Status    Status              `json:"status"`
	Directive directive.Directive `json:"directive,omitempty"`
	Maneuver  string              `json:"maneuver,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// Observer receives controller events. Observe is called on the control
// goroutine and must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f(e).
func (f ObserverFunc) Observe(e Event) { f(e) }
