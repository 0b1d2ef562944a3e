package event

import "testing"

func TestActivity_SameContent(t *testing.T) {
	base := Activity{ID: "a", Details: "Playing as Tyron", State: "3 deaths", LargeImage: "default", SmallImage: "gear"}

	other := base
	other.ID = "b"
	if !base.SameContent(other) {
		t.Error("records differing only by ID should match")
	}

	other.State = "4 deaths"
	if base.SameContent(other) {
		t.Error("different state should not match")
	}
}

func TestEvent_ID(t *testing.T) {
	tests := []struct {
		name string
		e    Event
		want string
	}{
		{"status", Event{Kind: KindStatus, Status: &Status{ID: "s1"}}, "s1"},
		{"activity", Event{Kind: KindActivity, Activity: &Activity{ID: "a1"}}, "a1"},
		{"empty", Event{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.e.ID(); got != tt.want {
				t.Errorf("ID() = %q, want %q", got, tt.want)
			}
		})
	}
}
