// Package event provides the history records shared by the app, api and
// store packages.
package event

import "time"

// Kind constants.
const (
	KindStatus   = "status"
	KindActivity = "activity"
)

// Status records one connection status notification.
type Status struct {
	ID     string    `json:"id"`
	At     time.Time `json:"at"`
	Status string    `json:"status"`
}

// Activity records one activity submitted to Discord.
type Activity struct {
	ID         string    `json:"id"`
	At         time.Time `json:"at"`
	Details    string    `json:"details"`
	State      string    `json:"state"`
	LargeImage string    `json:"large_image,omitempty"`
	SmallImage string    `json:"small_image,omitempty"`
}

// SameContent reports whether a and b would show the same presence.
func (a Activity) SameContent(b Activity) bool {
	return a.Details == b.Details &&
		a.State == b.State &&
		a.LargeImage == b.LargeImage &&
		a.SmallImage == b.SmallImage
}

// Event is the envelope streamed to clients. Exactly one of Status and
// Activity is set, matching Kind.
type Event struct {
	Kind     string    `json:"kind"`
	Status   *Status   `json:"status,omitempty"`
	Activity *Activity `json:"activity,omitempty"`
}

// ID returns the ID of the wrapped record.
func (e *Event) ID() string {
	switch {
	case e.Status != nil:
		return e.Status.ID
	case e.Activity != nil:
		return e.Activity.ID
	default:
		return ""
	}
}
