package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/teslashibe/go-rover/pkg/rover"
)

func TestParseDistances(t *testing.T) {
	got, err := parseDistances(" 50, 50,15 ,,100")
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{50, 50, 15, 100}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if _, err := parseDistances("50,abc"); err == nil {
		t.Error("expected error for non-numeric distance")
	}
}

func TestOpenGateway(t *testing.T) {
	gw, err := openGateway(Options{Gateway: "SIM", SimScript: "30"})
	if err != nil {
		t.Fatalf("sim: %v", err)
	}
	if _, ok := gw.(*rover.SimGateway); !ok {
		t.Errorf("sim gateway is %T", gw)
	}

	gw, err = openGateway(Options{Gateway: "http", GatewayURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("http: %v", err)
	}
	if _, ok := gw.(*rover.HTTPGateway); !ok {
		t.Errorf("http gateway is %T", gw)
	}

	if _, err := openGateway(Options{Gateway: "firmata"}); err == nil {
		t.Error("firmata without sonar port should fail")
	}
	if _, err := openGateway(Options{Gateway: "can-bus"}); err == nil {
		t.Error("unknown gateway should fail")
	}
}

func TestRun_SimUntilCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`"left"`))
	}))
	defer srv.Close()

	img := filepath.Join(t.TempDir(), "frame.jpg")
	os.WriteFile(img, []byte{0xFF, 0xD8, 0xFF, 0xD9}, 0o644)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := run(ctx, Options{
		ServerURL:  srv.URL,
		LogLevel:   "error",
		Gateway:    "sim",
		SimScript:  "100",
		ImagePath:  img,
		Timeout:    time.Second,
		MaxRetries: 0,
	})
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("run = %v", err)
	}
}
