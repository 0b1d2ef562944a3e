// Package discord delivers rich presence activities to the local Discord
// client and tracks the connection lifecycle.
package discord

import (
	"fmt"
	"slices"
	"time"
)

// TimestampMode selects how activity timestamps are stamped.
type TimestampMode int

const (
	// TimestampNone sends no timestamps.
	TimestampNone TimestampMode = iota
	// TimestampElapsed shows time elapsed since the start time.
	TimestampElapsed
	// TimestampRemaining shows time remaining until start + EndAfter.
	TimestampRemaining
)

// String returns the config name of the mode.
func (m TimestampMode) String() string {
	switch m {
	case TimestampElapsed:
		return "elapsed"
	case TimestampRemaining:
		return "remaining"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m TimestampMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *TimestampMode) UnmarshalText(b []byte) error {
	mode, err := ParseTimestampMode(string(b))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// ParseTimestampMode parses "none", "elapsed" or "remaining".
// The empty string is treated as "none".
func ParseTimestampMode(s string) (TimestampMode, error) {
	switch s {
	case "", "none":
		return TimestampNone, nil
	case "elapsed":
		return TimestampElapsed, nil
	case "remaining":
		return TimestampRemaining, nil
	default:
		return TimestampNone, fmt.Errorf("unknown timestamp mode %q", s)
	}
}

// Button is an action button shown under the presence.
type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// MaxButtons is the number of buttons Discord displays.
const MaxButtons = 2

// Options describes one desired presence.
// Only the first MaxButtons buttons are considered.
type Options struct {
	Details        string        `json:"details,omitempty"`
	State          string        `json:"state,omitempty"`
	LargeImageKey  string        `json:"large_image_key,omitempty"`
	LargeImageText string        `json:"large_image_text,omitempty"`
	SmallImageKey  string        `json:"small_image_key,omitempty"`
	SmallImageText string        `json:"small_image_text,omitempty"`
	TimestampMode  TimestampMode `json:"timestamp_mode"`

	// StartTime anchors elapsed/remaining timestamps. Zero means "now"
	// at transmission time.
	StartTime time.Time `json:"start_time,omitzero"`

	// EndAfter is the remaining duration for TimestampRemaining.
	// Values <= 0 leave the timestamps unset.
	EndAfter time.Duration `json:"end_after,omitempty"`

	Buttons []Button `json:"buttons,omitempty"`
}

// Clone returns a deep copy of o.
func (o *Options) Clone() *Options {
	if o == nil {
		return nil
	}
	cp := *o
	cp.Buttons = slices.Clone(o.Buttons)
	return &cp
}
