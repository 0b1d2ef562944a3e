// Package presence renders user-authored presence templates against a
// snapshot of game state.
package presence

// Context is a display-ready snapshot of game state for one render pass.
// All values are already computed by the host adapter; the engine only
// interpolates and formats them. A Context must not be modified once it has
// been handed to Render.
type Context struct {
	GameMode      string
	Day           *float64
	TimeOfDay     string
	PlayerName    string
	Health        *float64
	MaxHealth     *float64
	Deaths        *int
	OnlinePlayers *int
	Coords        string
	Temperature   *float64
	Weather       string
	Season        string
	ModVersion    string
	GameVersion   string
}

// Float returns a pointer to v, for filling optional Context fields.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v, for filling optional Context fields.
func Int(v int) *int {
	return &v
}
