package discord

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Discord field limits, in characters.
const (
	MaxDetailsLength     = 128
	MaxStateLength       = 128
	MaxImageTextLength   = 128
	MaxButtonLabelLength = 32
	MinTextLength        = 2
)

// filler pads short text fields. Discord rejects 1-character strings
// but renders U+3164 as blank.
const filler = "\u3164"

const ellipsis = "..."

// Presence is the wire payload for a SET_ACTIVITY command.
type Presence struct {
	Details    string           `json:"details,omitempty"`
	State      string           `json:"state,omitempty"`
	Assets     *Assets          `json:"assets,omitempty"`
	Timestamps *Timestamps      `json:"timestamps,omitempty"`
	Buttons    []PresenceButton `json:"buttons,omitempty"`
}

// Assets holds image keys and their tooltips.
type Assets struct {
	LargeImageKey  string `json:"large_image,omitempty"`
	LargeImageText string `json:"large_text,omitempty"`
	SmallImageKey  string `json:"small_image,omitempty"`
	SmallImageText string `json:"small_text,omitempty"`
}

// Timestamps are unix seconds.
type Timestamps struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

// PresenceButton is a normalized button.
type PresenceButton struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// BuildPresence normalizes o into a wire payload.
// Blank text fields are omitted; others are truncated and padded to
// Discord's limits. now stamps timestamps when o.StartTime is zero.
func BuildPresence(o *Options, now time.Time) *Presence {
	p := &Presence{
		Details: normalizeText(o.Details, MaxDetailsLength),
		State:   normalizeText(o.State, MaxStateLength),
	}

	assets := Assets{
		LargeImageKey:  strings.TrimSpace(o.LargeImageKey),
		LargeImageText: normalizeText(o.LargeImageText, MaxImageTextLength),
		SmallImageKey:  strings.TrimSpace(o.SmallImageKey),
		SmallImageText: normalizeText(o.SmallImageText, MaxImageTextLength),
	}
	if assets != (Assets{}) {
		p.Assets = &assets
	}

	p.Timestamps = buildTimestamps(o, now)
	p.Buttons = buildButtons(o.Buttons)
	return p
}

func buildTimestamps(o *Options, now time.Time) *Timestamps {
	start := o.StartTime
	if start.IsZero() {
		start = now
	}

	switch o.TimestampMode {
	case TimestampElapsed:
		return &Timestamps{Start: start.Unix()}
	case TimestampRemaining:
		if o.EndAfter <= 0 {
			return nil
		}
		return &Timestamps{Start: start.Unix(), End: start.Add(o.EndAfter).Unix()}
	default:
		return nil
	}
}

func buildButtons(buttons []Button) []PresenceButton {
	var out []PresenceButton
	for i, b := range buttons {
		if i >= MaxButtons {
			break
		}
		if isBlank(b.Label) || isBlank(b.URL) {
			continue
		}
		out = append(out, PresenceButton{
			Label: Truncate(b.Label, MaxButtonLabelLength),
			URL:   b.URL,
		})
	}
	return out
}

func normalizeText(s string, max int) string {
	if isBlank(s) {
		return ""
	}
	return PadToMinLength(Truncate(s, max), MinTextLength)
}

// Truncate shortens s to max characters, ending it with "..." when cut.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	keep := max - len(ellipsis)
	if keep < 0 {
		keep = 0
	}
	runes := []rune(s)
	return string(runes[:keep]) + ellipsis
}

// PadToMinLength appends invisible filler characters until s has at least
// min characters. Empty strings are returned unchanged.
func PadToMinLength(s string, min int) string {
	n := utf8.RuneCountInString(s)
	if s == "" || n >= min {
		return s
	}
	return s + strings.Repeat(filler, min-n)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
