package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/graaaaa/vintagepresence/internal/appinfo"
	"github.com/graaaaa/vintagepresence/internal/discord"
	"github.com/graaaaa/vintagepresence/internal/host"
)

// CurrentSchemaVersion is the current config schema version.
const CurrentSchemaVersion = 1

// EnvPrefix prefixes every environment override.
// Priority: Environment > Config File > Default
const EnvPrefix = "VINTAGEPRESENCE_"

// Defaults.
const (
	DefaultDetailsTemplate       = "Playing as {player}"
	DefaultStateTemplate         = "{deaths|0} deaths | {online|1} online"
	DefaultLargeImageKey         = "default"
	DefaultLargeImageText        = "Vintage Story"
	DefaultSmallImageKey         = "gear"
	DefaultSmallImageText        = "Vintage Story"
	DefaultUpdateIntervalSeconds = 15
	MinUpdateIntervalSeconds     = 5
	DefaultBridgePort            = 8765
	DefaultHistoryRetentionDays  = 30
)

// NoSmallImage is the small image key that disables the small image.
const NoSmallImage = "none"

// LargeImageKeys are the art assets usable as the large image.
var LargeImageKeys = []string{
	DefaultLargeImageKey,
	"sword",
	"anvil",
	"farming",
	"mining",
	"hammer",
	"coins",
	"map",
	"cooking",
}

// SmallImageKeys are the art assets usable as the small image.
var SmallImageKeys = append([]string{DefaultSmallImageKey, NoSmallImage}, LargeImageKeys...)

// Config holds application configuration.
type Config struct {
	SchemaVersion int    `json:"schema_version"`
	DiscordAppID  string `json:"discord_app_id"`

	DetailsTemplate string `json:"details_template"`
	StateTemplate   string `json:"state_template"`
	LargeImageKey   string `json:"large_image_key"`
	LargeImageText  string `json:"large_image_text"`
	SmallImageKey   string `json:"small_image_key"`
	SmallImageText  string `json:"small_image_text"`

	UpdateIntervalSeconds int  `json:"update_interval_seconds"`
	EnableRichPresence    bool `json:"enable_rich_presence"`

	ShowPlayerName bool `json:"show_player_name"`
	ShowServerInfo bool `json:"show_server_info"`
	ShowDeaths     bool `json:"show_deaths"`
	ShowPlaytime   bool `json:"show_playtime"`
	ShowTimestamp  bool `json:"show_timestamp"`
	ResetOnDeath   bool `json:"reset_on_death"`

	Button1Label string `json:"button1_label"`
	Button1URL   string `json:"button1_url"`
	Button2Label string `json:"button2_label"`
	Button2URL   string `json:"button2_url"`

	BridgePort           int  `json:"bridge_port"`
	HistoryRetentionDays int  `json:"history_retention_days"`
	DebugLogging         bool `json:"debug_logging"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SchemaVersion:         CurrentSchemaVersion,
		DiscordAppID:          appinfo.DefaultApplicationID,
		DetailsTemplate:       DefaultDetailsTemplate,
		StateTemplate:         DefaultStateTemplate,
		LargeImageKey:         DefaultLargeImageKey,
		LargeImageText:        DefaultLargeImageText,
		SmallImageKey:         DefaultSmallImageKey,
		SmallImageText:        DefaultSmallImageText,
		UpdateIntervalSeconds: DefaultUpdateIntervalSeconds,
		EnableRichPresence:    true,
		ShowPlayerName:        true,
		ShowServerInfo:        true,
		ShowDeaths:            true,
		ShowPlaytime:          true,
		ShowTimestamp:         true,
		ResetOnDeath:          false,
		BridgePort:            DefaultBridgePort,
		HistoryRetentionDays:  DefaultHistoryRetentionDays,
		DebugLogging:          false,
	}
}

// LoadConfigFrom reads config from the specified path and validates it.
func LoadConfigFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// File doesn't exist, use defaults (not an error)
			return cfg, nil
		}
		slog.Warn("failed to read config file, using defaults", "path", path, "error", err)
		return cfg, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&cfg); err != nil {
		slog.Warn("config file is corrupt, using defaults", "path", path, "error", err)
		return DefaultConfig(), nil
	}

	if cfg.SchemaVersion != CurrentSchemaVersion {
		slog.Warn("config schema version mismatch, using defaults",
			"got", cfg.SchemaVersion, "expected", CurrentSchemaVersion)
		return DefaultConfig(), nil
	}

	if cfg.Validate() {
		slog.Info("corrected invalid config values", "path", path)
	}
	return cfg, nil
}

// Validate replaces invalid or blank values with defaults and reports
// whether anything was corrected.
func (c *Config) Validate() bool {
	d := DefaultConfig()
	corrected := false
	fix := func(bad bool, apply func()) {
		if bad {
			apply()
			corrected = true
		}
	}

	fix(c.SchemaVersion != CurrentSchemaVersion, func() { c.SchemaVersion = CurrentSchemaVersion })
	fix(isBlank(c.DiscordAppID), func() { c.DiscordAppID = d.DiscordAppID })
	fix(isBlank(c.DetailsTemplate), func() { c.DetailsTemplate = d.DetailsTemplate })
	fix(isBlank(c.StateTemplate), func() { c.StateTemplate = d.StateTemplate })
	fix(!slices.Contains(LargeImageKeys, c.LargeImageKey), func() { c.LargeImageKey = d.LargeImageKey })
	fix(isBlank(c.LargeImageText), func() { c.LargeImageText = d.LargeImageText })
	fix(!slices.Contains(SmallImageKeys, c.SmallImageKey), func() { c.SmallImageKey = d.SmallImageKey })
	fix(isBlank(c.SmallImageText), func() { c.SmallImageText = d.SmallImageText })
	fix(c.UpdateIntervalSeconds < MinUpdateIntervalSeconds, func() { c.UpdateIntervalSeconds = MinUpdateIntervalSeconds })
	fix(c.BridgePort <= 0 || c.BridgePort > 65535, func() { c.BridgePort = d.BridgePort })
	fix(c.HistoryRetentionDays < 0, func() { c.HistoryRetentionDays = d.HistoryRetentionDays })
	fix(!validButton(c.Button1Label, c.Button1URL), func() { c.Button1Label, c.Button1URL = "", "" })
	fix(!validButton(c.Button2Label, c.Button2URL), func() { c.Button2Label, c.Button2URL = "", "" })

	return corrected
}

// validButton accepts an unset button or a labelled absolute http(s) URL.
func validButton(label, rawURL string) bool {
	if label == "" && rawURL == "" {
		return true
	}
	if isBlank(label) || isBlank(rawURL) {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// SaveConfigTo writes config to the specified path atomically.
func SaveConfigTo(cfg Config, path string) error {
	cfg.SchemaVersion = CurrentSchemaVersion

	return writeJSONAtomic(path, cfg)
}

// envOverrides mirrors Config for environment parsing. Nil fields were not
// set in the environment.
type envOverrides struct {
	DiscordAppID          *string `env:"DISCORD_APP_ID"`
	DetailsTemplate       *string `env:"DETAILS_TEMPLATE"`
	StateTemplate         *string `env:"STATE_TEMPLATE"`
	LargeImageKey         *string `env:"LARGE_IMAGE_KEY"`
	SmallImageKey         *string `env:"SMALL_IMAGE_KEY"`
	UpdateIntervalSeconds *int    `env:"UPDATE_INTERVAL_SECONDS"`
	EnableRichPresence    *bool   `env:"ENABLE_RICH_PRESENCE"`
	ShowTimestamp         *bool   `env:"SHOW_TIMESTAMP"`
	BridgePort            *int    `env:"BRIDGE_PORT"`
	HistoryRetentionDays  *int    `env:"HISTORY_RETENTION_DAYS"`
	DebugLogging          *bool   `env:"DEBUG_LOGGING"`
}

// ApplyEnvOverrides applies VINTAGEPRESENCE_* environment variables to cfg
// and re-validates it. Environment variables take priority over file values.
// On a parse error cfg is returned unchanged along with the error.
func ApplyEnvOverrides(cfg Config) (Config, error) {
	var o envOverrides
	if err := env.ParseWithOptions(&o, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	setString(&cfg.DiscordAppID, o.DiscordAppID)
	setString(&cfg.DetailsTemplate, o.DetailsTemplate)
	setString(&cfg.StateTemplate, o.StateTemplate)
	setString(&cfg.LargeImageKey, o.LargeImageKey)
	setString(&cfg.SmallImageKey, o.SmallImageKey)
	set(&cfg.UpdateIntervalSeconds, o.UpdateIntervalSeconds)
	set(&cfg.EnableRichPresence, o.EnableRichPresence)
	set(&cfg.ShowTimestamp, o.ShowTimestamp)
	set(&cfg.BridgePort, o.BridgePort)
	set(&cfg.HistoryRetentionDays, o.HistoryRetentionDays)
	set(&cfg.DebugLogging, o.DebugLogging)

	cfg.Validate()
	return cfg, nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil && !isBlank(*v) {
		*dst = *v
	}
}

// UpdateInterval returns the update period, never below the minimum.
func (c Config) UpdateInterval() time.Duration {
	sec := max(c.UpdateIntervalSeconds, MinUpdateIntervalSeconds)
	return time.Duration(sec) * time.Second
}

// Privacy returns the visibility toggles.
func (c Config) Privacy() host.Privacy {
	return host.Privacy{
		ShowPlayerName: c.ShowPlayerName,
		ShowServerInfo: c.ShowServerInfo,
		ShowDeaths:     c.ShowDeaths,
		ShowPlaytime:   c.ShowPlaytime,
	}
}

// TimestampMode returns the activity timestamp mode.
func (c Config) TimestampMode() discord.TimestampMode {
	if c.ShowTimestamp {
		return discord.TimestampElapsed
	}
	return discord.TimestampNone
}

// Buttons returns the configured buttons.
func (c Config) Buttons() []discord.Button {
	var out []discord.Button
	if c.Button1Label != "" && c.Button1URL != "" {
		out = append(out, discord.Button{Label: c.Button1Label, URL: c.Button1URL})
	}
	if c.Button2Label != "" && c.Button2URL != "" {
		out = append(out, discord.Button{Label: c.Button2Label, URL: c.Button2URL})
	}
	return out
}

// SmallImage returns the small image key, or "" when disabled.
func (c Config) SmallImage() string {
	if c.SmallImageKey == NoSmallImage {
		return ""
	}
	return c.SmallImageKey
}
