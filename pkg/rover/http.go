package rover

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-rover/internal/httpc"
)

// DefaultGatewayTimeout bounds every board daemon request.
const DefaultGatewayTimeout = 2 * time.Second

// HTTPGateway implements Gateway against the board daemon's JSON API.
type HTTPGateway struct {
	BaseURL string
	client  *http.Client
}

// NewHTTPGateway creates a gateway for the daemon at baseURL
// (e.g. "http://127.0.0.1:8000").
func NewHTTPGateway(baseURL string) *HTTPGateway {
	return &HTTPGateway{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  httpc.NewClient(DefaultGatewayTimeout),
	}
}

// WithClient replaces the HTTP client. Used by tests.
func (g *HTTPGateway) WithClient(c *http.Client) *HTTPGateway {
	g.client = c
	return g
}

type motorRequest struct {
	Side      string `json:"side"`
	Direction string `json:"direction"`
	Speed     int    `json:"speed"`
}

type servoRequest struct {
	Channel string `json:"channel"`
	Angle   int    `json:"angle"`
}

type ledRequest struct {
	R bool `json:"r"`
	G bool `json:"g"`
	B bool `json:"b"`
}

type sonicResponse struct {
	DistanceCm *float64 `json:"distance_cm"`
}

// SetMotor sets one drive motor. Speed is clamped to [0, 1000].
func (g *HTTPGateway) SetMotor(side Side, dir Direction, speed int) error {
	return g.post("/api/motor", motorRequest{
		Side:      side.String(),
		Direction: dir.String(),
		Speed:     ClampSpeed(speed),
	})
}

// SetServoAngle moves a servo channel to the given angle.
func (g *HTTPGateway) SetServoAngle(channel string, degrees int) error {
	return g.post("/api/servo", servoRequest{Channel: channel, Angle: degrees})
}

// SetLED sets the status LED colour.
func (g *HTTPGateway) SetLED(r, gr, b bool) error {
	return g.post("/api/led", ledRequest{R: r, G: gr, B: b})
}

// ReadDistanceCm returns the ultrasonic reading in centimeters.
func (g *HTTPGateway) ReadDistanceCm() (float64, error) {
	resp, err := g.client.Get(g.BaseURL + "/api/sonic")
	if err != nil {
		return 0, fmt.Errorf("sonic request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("sonic request: status %d", resp.StatusCode)
	}

	var out sonicResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode sonic response: %w", err)
	}
	if out.DistanceCm == nil {
		return 0, fmt.Errorf("sonic response missing distance_cm")
	}
	if math.IsNaN(*out.DistanceCm) || *out.DistanceCm < 0 {
		return 0, fmt.Errorf("sonic response out of range: %v", *out.DistanceCm)
	}
	return *out.DistanceCm, nil
}

// post sends a JSON command to the daemon.
func (g *HTTPGateway) post(path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", path, err)
	}

	resp, err := g.client.Post(g.BaseURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%s request failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := httpc.ReadBody(resp.Body)
		return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
