// Package host holds the world state pushed by the game mod and turns it
// into presence contexts.
package host

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/graaaaa/vintagepresence/internal/presence"
)

// ErrInvalidSnapshot is returned by Validate.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Position is a block position.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Snapshot is a copy of the host's player and world state at one moment.
// Pointer fields are nil when the host could not read the value.
type Snapshot struct {
	InWorld       bool      `json:"in_world"`
	PlayerName    string    `json:"player_name,omitempty"`
	GameMode      string    `json:"game_mode,omitempty"`
	ElapsedDays   *float64  `json:"elapsed_days,omitempty"`
	HourOfDay     *float64  `json:"hour_of_day,omitempty"`
	Season        string    `json:"season,omitempty"`
	Temperature   *float64  `json:"temperature,omitempty"`
	RainDistance  *float64  `json:"rain_distance,omitempty"`
	Health        *float64  `json:"health,omitempty"`
	MaxHealth     *float64  `json:"max_health,omitempty"`
	Deaths        *int      `json:"deaths,omitempty"`
	OnlinePlayers *int      `json:"online_players,omitempty"`
	Position      *Position `json:"position,omitempty"`
	ModVersion    string    `json:"mod_version,omitempty"`
	GameVersion   string    `json:"game_version,omitempty"`
}

// Validate rejects values the game can never report.
func (s *Snapshot) Validate() error {
	if s.HourOfDay != nil && (*s.HourOfDay < 0 || *s.HourOfDay >= 24) {
		return fmt.Errorf("%w: hour_of_day %v out of range", ErrInvalidSnapshot, *s.HourOfDay)
	}
	if s.ElapsedDays != nil && *s.ElapsedDays < 0 {
		return fmt.Errorf("%w: elapsed_days is negative", ErrInvalidSnapshot)
	}
	if s.Deaths != nil && *s.Deaths < 0 {
		return fmt.Errorf("%w: deaths is negative", ErrInvalidSnapshot)
	}
	if s.OnlinePlayers != nil && *s.OnlinePlayers < 0 {
		return fmt.Errorf("%w: online_players is negative", ErrInvalidSnapshot)
	}
	if s.MaxHealth != nil && *s.MaxHealth < 0 {
		return fmt.Errorf("%w: max_health is negative", ErrInvalidSnapshot)
	}
	return nil
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	cp := s
	cp.ElapsedDays = clonePtr(s.ElapsedDays)
	cp.HourOfDay = clonePtr(s.HourOfDay)
	cp.Temperature = clonePtr(s.Temperature)
	cp.RainDistance = clonePtr(s.RainDistance)
	cp.Health = clonePtr(s.Health)
	cp.MaxHealth = clonePtr(s.MaxHealth)
	cp.Deaths = clonePtr(s.Deaths)
	cp.OnlinePlayers = clonePtr(s.OnlinePlayers)
	cp.Position = clonePtr(s.Position)
	return cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Privacy selects which personal values may appear in the presence.
type Privacy struct {
	ShowPlayerName bool
	ShowServerInfo bool
	ShowDeaths     bool
	ShowPlaytime   bool
}

// ShowAll reveals every value.
var ShowAll = Privacy{ShowPlayerName: true, ShowServerInfo: true, ShowDeaths: true, ShowPlaytime: true}

// rainThreshold is the rainfall distance, in blocks, below which it counts
// as raining at the player's position.
const rainThreshold = 5

// BuildContext derives the display context from s. Hidden values are left
// absent so templates fall back.
func BuildContext(s Snapshot, p Privacy) presence.Context {
	ctx := presence.Context{
		GameMode:    s.GameMode,
		TimeOfDay:   timeOfDay(s.HourOfDay),
		Health:      clonePtr(s.Health),
		MaxHealth:   clonePtr(s.MaxHealth),
		Temperature: clonePtr(s.Temperature),
		Weather:     weather(s.Temperature, s.RainDistance),
		Season:      s.Season,
		ModVersion:  s.ModVersion,
		GameVersion: s.GameVersion,
	}
	if s.Position != nil {
		ctx.Coords = formatPosition(*s.Position)
	}
	if p.ShowPlayerName {
		ctx.PlayerName = s.PlayerName
	}
	if p.ShowServerInfo {
		ctx.OnlinePlayers = clonePtr(s.OnlinePlayers)
	}
	if p.ShowDeaths {
		ctx.Deaths = clonePtr(s.Deaths)
	}
	if p.ShowPlaytime && s.ElapsedDays != nil {
		ctx.Day = presence.Float(float64(int64(*s.ElapsedDays)))
	}
	return ctx
}

func timeOfDay(hour *float64) string {
	if hour == nil {
		return ""
	}
	switch h := *hour; {
	case h >= 5 && h < 10:
		return "Morning"
	case h >= 10 && h < 17:
		return "Day"
	case h >= 17 && h < 21:
		return "Evening"
	default:
		return "Night"
	}
}

func weather(temp, rainDistance *float64) string {
	raining := rainDistance != nil && *rainDistance < rainThreshold
	cold := temp != nil && *temp <= 0
	switch {
	case cold && raining:
		return "Snow"
	case cold:
		return "Cold"
	case raining:
		return "Rain"
	default:
		return "Clear"
	}
}

func formatPosition(p Position) string {
	return strings.Join([]string{
		strconv.Itoa(p.X),
		strconv.Itoa(p.Y),
		strconv.Itoa(p.Z),
	}, ", ")
}
