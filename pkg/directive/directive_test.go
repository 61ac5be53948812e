package directive

import (
	"encoding/json"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Directive
	}{
		{"left", Left},
		{"LEFT", Left},
		{"  Right\n", Right},
		{"stop", Stop},
		{"forward", Forward},
		{"ff", Unknown},
		{"", Unknown},
		{"left-ish", Unknown},
	}

	for _, tt := range tests {
		if got := Parse(tt.in); got != tt.want {
			t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStringParseAgree(t *testing.T) {
	for _, d := range All {
		if got := Parse(d.String()); got != d {
			t.Errorf("Parse(%q) = %v", d.String(), got)
		}
	}
	if Directive(99).String() != "unknown" {
		t.Errorf("out of range directive should print unknown")
	}
}

func TestIsTurn(t *testing.T) {
	if !Left.IsTurn() || !Right.IsTurn() {
		t.Error("left and right are turns")
	}
	if Stop.IsTurn() || Forward.IsTurn() || Unknown.IsTurn() {
		t.Error("stop, forward and unknown are not turns")
	}
}

func TestJSONString(t *testing.T) {
	data, err := json.Marshal(Right)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"right"` {
		t.Errorf("Marshal(Right) = %s", data)
	}

	var d Directive
	if err := json.Unmarshal([]byte(`"garbage"`), &d); err != nil {
		t.Fatalf("Unmarshal garbage: %v", err)
	}
	if d != Unknown {
		t.Errorf("garbage decoded to %v, want unknown", d)
	}
}

func TestDefaultTable(t *testing.T) {
	tbl := DefaultTable()

	tests := []struct {
		index int
		want  Directive
	}{
		{0, Stop},
		{1, Right},
		{2, Left},
		{5, Stop},
		{-1, Stop},
	}
	for _, tt := range tests {
		if got := tbl.Lookup(tt.index); got != tt.want {
			t.Errorf("Lookup(%d) = %v, want %v", tt.index, got, tt.want)
		}
	}

	if err := tbl.Validate(); err != nil {
		t.Errorf("default table invalid: %v", err)
	}
}

func TestTable_ConfigurableDefault(t *testing.T) {
	tbl := DefaultTable()
	tbl.Default = Left
	if got := tbl.Lookup(7); got != Left {
		t.Errorf("Lookup(7) = %v, want left", got)
	}
}

func TestTable_Validate(t *testing.T) {
	tests := []struct {
		name string
		tbl  Table
	}{
		{"empty", Table{Default: Stop}},
		{"negative index", Table{Labels: map[int]Directive{-1: Stop}, Default: Stop}},
		{"unknown label", Table{Labels: map[int]Directive{0: Unknown}, Default: Stop}},
		{"unknown default", Table{Labels: map[int]Directive{0: Stop}, Default: Unknown}},
	}
	for _, tt := range tests {
		if err := tt.tbl.Validate(); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestTable_JSON(t *testing.T) {
	var tbl Table
	err := json.Unmarshal([]byte(`{"labels":{"0":"stop","1":"right","2":"left"}}`), &tbl)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if tbl.Default != Stop {
		t.Errorf("missing default should be stop, got %v", tbl.Default)
	}
	if tbl.Lookup(1) != Right {
		t.Errorf("Lookup(1) = %v", tbl.Lookup(1))
	}

	data, err := json.Marshal(DefaultTable())
	if err != nil {
		t.Fatal(err)
	}
	var back Table
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Lookup(2) != Left || back.Default != Stop {
		t.Errorf("table did not survive encoding: %s", data)
	}
}
