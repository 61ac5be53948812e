// Package config provides configuration helpers for go-rover commands.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/lpernett/godotenv"
)

// Default endpoints.
const (
	DefaultServerURL  = "http://192.168.1.100:9090"
	DefaultGatewayURL = "http://127.0.0.1:8000"
)

// LoadDotEnv loads environment variables from the given .env files (or ./.env
// when none are given). A missing file is not an error; variables already
// present in the environment are never overwritten.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// String returns the environment variable key, or def when unset.
func String(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Int returns the environment variable key parsed as an int, or def when
// unset or malformed.
func Int(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// ServerURL returns the classification server URL from ROVER_SERVER_URL.
// Falls back to the provided default if not set.
func ServerURL(def string) string {
	return String("ROVER_SERVER_URL", def)
}

// GatewayURL returns the board daemon URL from ROVER_GATEWAY_URL.
func GatewayURL(def string) string {
	return String("ROVER_GATEWAY_URL", def)
}

// LoadJSON decodes the JSON file at path into v. A missing file returns an
// error wrapping fs.ErrNotExist so callers can fall back to defaults.
func LoadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Duration is a time.Duration that reads and writes JSON as a Go duration
// string ("1.3s", "500ms"). Bare numbers are read as milliseconds.
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration {
	return time.Duration(d)
}

// MarshalJSON encodes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts "1.5s" style strings or millisecond numbers.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var ms float64
	if err := json.Unmarshal(b, &ms); err != nil {
		return fmt.Errorf("invalid duration %s", string(b))
	}
	*d = Duration(time.Duration(ms * float64(time.Millisecond)))
	return nil
}
