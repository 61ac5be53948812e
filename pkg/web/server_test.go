package web

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/directive"
	"github.com/teslashibe/go-rover/pkg/navigation"
)

func event(kind navigation.EventKind, obstacles int) navigation.Event {
	return navigation.Event{
		Kind: kind,
		Time: time.Now(),
		Status: navigation.Status{
			State:               navigation.StateAvoiding,
			Phase:               navigation.PhaseAwaitingDirective,
			LastDistanceCm:      15,
			ObstacleThresholdCm: 20,
			ServoAngles:         map[string]int{"2": 90},
			Obstacles:           obstacles,
			LastDirective:       directive.Right,
		},
	}
}

func get(t *testing.T, s *Server, path string) (int, string) {
	t.Helper()
	resp, err := s.App().Test(httptest.NewRequest("GET", path, nil), -1)
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestStatusEndpoint(t *testing.T) {
	s := NewServer(":0", log.Discard())
	s.Observe(event(navigation.EventObstacle, 1))

	code, body := get(t, s, "/api/status")
	if code != 200 {
		t.Fatalf("Status = %d, want 200", code)
	}

	var got map[string]any
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("body %q: %v", body, err)
	}
	if got["state"] != "AVOIDING" || got["phase"] != "AWAITING_DIRECTIVE" {
		t.Errorf("status = %v", got)
	}
	if got["last_directive"] != "right" || got["last_distance_cm"] != 15.0 {
		t.Errorf("status = %v", got)
	}
}

func TestEvents_SkipPollsAndBounded(t *testing.T) {
	s := NewServer(":0", log.Discard())

	s.Observe(event(navigation.EventPoll, 0))
	for i := 0; i < maxEvents+5; i++ {
		s.Observe(event(navigation.EventObstacle, i))
	}

	_, body := get(t, s, "/api/events")
	var events []map[string]any
	if err := json.Unmarshal([]byte(body), &events); err != nil {
		t.Fatalf("body: %v", err)
	}
	if len(events) != maxEvents {
		t.Fatalf("len = %d, want %d", len(events), maxEvents)
	}
	for _, e := range events {
		if e["kind"] == string(navigation.EventPoll) {
			t.Fatal("poll events should not be kept")
		}
	}

	_, body = get(t, s, "/api/events?limit=3")
	var raw []map[string]any
	json.Unmarshal([]byte(body), &raw)
	if len(raw) != 3 {
		t.Fatalf("limit=3 returned %d", len(raw))
	}
	last := raw[2]["status"].(map[string]any)
	if last["obstacles"] != float64(maxEvents+4) {
		t.Errorf("newest event obstacles = %v", last["obstacles"])
	}
}

func TestFrameEndpoint(t *testing.T) {
	s := NewServer(":0", log.Discard())

	if code, _ := get(t, s, "/api/frame"); code != 404 {
		t.Errorf("before any frame: %d, want 404", code)
	}

	s.SetFrame([]byte{0xFF, 0xD8, 0xFF, 0xD9})
	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/frame", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 || resp.Header.Get("Content-Type") != "image/jpeg" {
		t.Errorf("frame: %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
}

func TestIndexAndUpgradeRequired(t *testing.T) {
	s := NewServer(":0", log.Discard())

	code, body := get(t, s, "/")
	if code != 200 || !strings.Contains(body, "/ws/status") {
		t.Errorf("index: %d", code)
	}

	if code, _ := get(t, s, "/ws/status"); code != 426 {
		t.Errorf("plain GET on /ws: %d, want 426", code)
	}
}

func TestStatusWebSocket(t *testing.T) {
	s := NewServer("", log.Discard())
	s.Observe(event(navigation.EventStart, 0))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()
	defer func() {
		cancel()
		<-done
	}()

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/status", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))

	// initial snapshot
	var first map[string]any
	if err := ws.ReadJSON(&first); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if first["state"] != "AVOIDING" {
		t.Errorf("snapshot = %v", first)
	}

	// the client is registered before the snapshot is written
	e := event(navigation.EventObstacle, 7)
	e.Status.State = navigation.StateCruising
	s.Observe(e)

	var update map[string]any
	if err := ws.ReadJSON(&update); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if update["state"] != "CRUISING" || update["obstacles"] != 7.0 {
		t.Errorf("update = %v", update)
	}
}
