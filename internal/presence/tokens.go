package presence

import (
	"math"
	"strconv"
)

// Resolver maps a context to the display value of one token.
// It returns ok=false when the value is absent.
type Resolver func(ctx *Context) (value string, ok bool)

// DefaultResolvers returns the built-in token table.
// "player" and "online" are aliases kept for the default config templates.
func DefaultResolvers() map[string]Resolver {
	return map[string]Resolver{
		"gamemode":      str(func(c *Context) string { return c.GameMode }),
		"day":           whole(func(c *Context) *float64 { return c.Day }),
		"timeofday":     str(func(c *Context) string { return c.TimeOfDay }),
		"playername":    str(func(c *Context) string { return c.PlayerName }),
		"player":        str(func(c *Context) string { return c.PlayerName }),
		"health":        resolveHealth,
		"healthpercent": resolveHealthPercent,
		"deaths":        count(func(c *Context) *int { return c.Deaths }),
		"players":       count(func(c *Context) *int { return c.OnlinePlayers }),
		"online":        count(func(c *Context) *int { return c.OnlinePlayers }),
		"coords":        str(func(c *Context) string { return c.Coords }),
		"temperature":   oneDecimal(func(c *Context) *float64 { return c.Temperature }),
		"weather":       str(func(c *Context) string { return c.Weather }),
		"season":        str(func(c *Context) string { return c.Season }),
		"modversion":    str(func(c *Context) string { return c.ModVersion }),
		"gameversion":   str(func(c *Context) string { return c.GameVersion }),
		"nl":            func(*Context) (string, bool) { return "\n", true },
	}
}

func str(field func(*Context) string) Resolver {
	return func(c *Context) (string, bool) {
		v := field(c)
		return v, v != ""
	}
}

func count(field func(*Context) *int) Resolver {
	return func(c *Context) (string, bool) {
		v := field(c)
		if v == nil {
			return "", false
		}
		return strconv.Itoa(*v), true
	}
}

func whole(field func(*Context) *float64) Resolver {
	return func(c *Context) (string, bool) {
		v := field(c)
		if v == nil {
			return "", false
		}
		return strconv.FormatFloat(*v, 'f', 0, 64), true
	}
}

func oneDecimal(field func(*Context) *float64) Resolver {
	return func(c *Context) (string, bool) {
		v := field(c)
		if v == nil {
			return "", false
		}
		return FormatOneDecimal(*v), true
	}
}

func resolveHealth(c *Context) (string, bool) {
	if c.Health == nil || c.MaxHealth == nil {
		return "", false
	}
	return FormatOneDecimal(*c.Health) + " / " + FormatOneDecimal(*c.MaxHealth), true
}

func resolveHealthPercent(c *Context) (string, bool) {
	if c.Health == nil || c.MaxHealth == nil || *c.MaxHealth == 0 {
		return "", false
	}
	pct := math.Round(*c.Health / *c.MaxHealth * 100)
	return strconv.FormatFloat(pct, 'f', 0, 64) + "%", true
}

// FormatOneDecimal formats v with at most one decimal place, dropping a
// trailing zero: 45 -> "45", 12.25 -> "12.3".
func FormatOneDecimal(v float64) string {
	r := math.Round(v*10) / 10
	if r == 0 {
		r = 0 // no "-0"
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}
