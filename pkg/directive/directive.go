// Package directive defines the steering directives exchanged between the
// rover and the classification service.
package directive

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Directive is a high-level steering command.
type Directive int

const (
	Unknown Directive = iota
	Forward
	Left
	Right
	Stop
)

// All lists every known directive except Unknown.
var All = []Directive{Forward, Left, Right, Stop}

// String returns the lower-case wire form.
func (d Directive) String() string {
	switch d {
	case Forward:
		return "forward"
	case Left:
		return "left"
	case Right:
		return "right"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}

// Parse converts a wire string into a Directive. Matching ignores case and
// surrounding whitespace. Anything unrecognised is Unknown.
func Parse(s string) Directive {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "forward":
		return Forward
	case "left":
		return Left
	case "right":
		return Right
	case "stop":
		return Stop
	default:
		return Unknown
	}
}

// IsTurn reports whether d rotates the rover.
func (d Directive) IsTurn() bool {
	return d == Left || d == Right
}

// MarshalText implements encoding.TextMarshaler.
func (d Directive) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unrecognised values
// decode to Unknown rather than failing.
func (d *Directive) UnmarshalText(b []byte) error {
	*d = Parse(string(b))
	return nil
}

// Table maps model class indices to directives.
type Table struct {
	Labels  map[int]Directive
	Default Directive
}

// DefaultTable returns the mapping the stock model was trained with.
func DefaultTable() Table {
	return Table{
		Labels: map[int]Directive{
			0: Stop,
			1: Right,
			2: Left,
		},
		Default: Stop,
	}
}

// Lookup returns the directive for a class index, or the table default when
// the index is unmapped.
func (t Table) Lookup(index int) Directive {
	if d, ok := t.Labels[index]; ok {
		return d
	}
	return t.Default
}

// Validate checks the table for unusable entries.
func (t Table) Validate() error {
	if len(t.Labels) == 0 {
		return fmt.Errorf("directive: label table is empty")
	}
	for i, d := range t.Labels {
		if i < 0 {
			return fmt.Errorf("directive: negative class index %d", i)
		}
		if d == Unknown {
			return fmt.Errorf("directive: class %d maps to unknown", i)
		}
	}
	if t.Default == Unknown {
		return fmt.Errorf("directive: default must be a known directive")
	}
	return nil
}

type tableJSON struct {
	Labels  map[int]Directive `json:"labels"`
	Default Directive         `json:"default"`
}

// MarshalJSON encodes the table as {"labels":{"0":"stop",...},"default":"stop"}.
func (t Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(tableJSON{Labels: t.Labels, Default: t.Default})
}

// UnmarshalJSON decodes a table. A missing default means Stop.
func (t *Table) UnmarshalJSON(b []byte) error {
	raw := tableJSON{Default: Stop}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	t.Labels = raw.Labels
	t.Default = raw.Default
	return nil
}
