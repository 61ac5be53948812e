package perception

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/teslashibe/go-rover/pkg/directive"
)

// ParseResponse extracts a directive from a classification response body.
// Accepted forms, tried in order: a JSON string ("left"), a JSON object with
// a "directive" or "label" field, and plain text. Matching ignores case.
// An unrecognised answer returns Unknown and an error wrapping
// ErrUnrecognized.
func ParseResponse(body []byte) (directive.Directive, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return directive.Unknown, fmt.Errorf("%w: empty body", ErrUnrecognized)
	}

	text := string(body)
	switch body[0] {
	case '"':
		var s string
		if err := json.Unmarshal(body, &s); err == nil {
			text = s
		}
	case '{':
		var obj struct {
			Directive string `json:"directive"`
			Label     string `json:"label"`
		}
		if err := json.Unmarshal(body, &obj); err == nil {
			text = obj.Directive
			if text == "" {
				text = obj.Label
			}
		}
	}

	d := directive.Parse(text)
	if d == directive.Unknown {
		return d, fmt.Errorf("%w: %q", ErrUnrecognized, truncate(string(body), 64))
	}
	return d, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
