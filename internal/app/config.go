package app

import (
	"context"
	"fmt"

	"github.com/graaaaa/vintagepresence/internal/config"
)

// ConfigUsecase defines the configuration management use case.
type ConfigUsecase interface {
	// GetConfig returns the active configuration.
	GetConfig(ctx context.Context) config.Config

	// UpdateConfig applies the given changes, saves and activates the result.
	UpdateConfig(ctx context.Context, req ConfigUpdateRequest) (ConfigUpdateResponse, error)
}

// ConfigUpdateRequest contains optional fields for updating configuration.
type ConfigUpdateRequest struct {
	DiscordAppID          *string `json:"discord_app_id,omitempty"`
	DetailsTemplate       *string `json:"details_template,omitempty"`
	StateTemplate         *string `json:"state_template,omitempty"`
	LargeImageKey         *string `json:"large_image_key,omitempty"`
	LargeImageText        *string `json:"large_image_text,omitempty"`
	SmallImageKey         *string `json:"small_image_key,omitempty"`
	SmallImageText        *string `json:"small_image_text,omitempty"`
	UpdateIntervalSeconds *int    `json:"update_interval_seconds,omitempty"`
	EnableRichPresence    *bool   `json:"enable_rich_presence,omitempty"`
	ShowPlayerName        *bool   `json:"show_player_name,omitempty"`
	ShowServerInfo        *bool   `json:"show_server_info,omitempty"`
	ShowDeaths            *bool   `json:"show_deaths,omitempty"`
	ShowPlaytime          *bool   `json:"show_playtime,omitempty"`
	ShowTimestamp         *bool   `json:"show_timestamp,omitempty"`
	ResetOnDeath          *bool   `json:"reset_on_death,omitempty"`
	Button1Label          *string `json:"button1_label,omitempty"`
	Button1URL            *string `json:"button1_url,omitempty"`
	Button2Label          *string `json:"button2_label,omitempty"`
	Button2URL            *string `json:"button2_url,omitempty"`
	BridgePort            *int    `json:"bridge_port,omitempty"`
	HistoryRetentionDays  *int    `json:"history_retention_days,omitempty"`
	DebugLogging          *bool   `json:"debug_logging,omitempty"`
}

// ConfigUpdateResponse indicates the result of a configuration update.
type ConfigUpdateResponse struct {
	Success         bool          `json:"success"`
	Corrected       bool          `json:"corrected"`
	RestartRequired bool          `json:"restart_required"`
	Config          config.Config `json:"config"`
}

// ConfigService implements ConfigUsecase.
type ConfigService struct {
	ConfigPath string

	// Current returns the active configuration.
	Current func() config.Config

	// Apply activates a saved configuration.
	Apply func(config.Config)
}

// GetConfig returns the active configuration.
func (s ConfigService) GetConfig(ctx context.Context) config.Config {
	return s.current()
}

func (s ConfigService) current() config.Config {
	if s.Current != nil {
		return s.Current()
	}
	cfg, _ := config.LoadConfigFrom(s.ConfigPath)
	return cfg
}

// UpdateConfig applies req over the active configuration. Invalid values
// are corrected to defaults and reported through Corrected.
func (s ConfigService) UpdateConfig(ctx context.Context, req ConfigUpdateRequest) (ConfigUpdateResponse, error) {
	cfg := s.current()
	originalPort := cfg.BridgePort

	apply(&cfg.DiscordAppID, req.DiscordAppID)
	apply(&cfg.DetailsTemplate, req.DetailsTemplate)
	apply(&cfg.StateTemplate, req.StateTemplate)
	apply(&cfg.LargeImageKey, req.LargeImageKey)
	apply(&cfg.LargeImageText, req.LargeImageText)
	apply(&cfg.SmallImageKey, req.SmallImageKey)
	apply(&cfg.SmallImageText, req.SmallImageText)
	apply(&cfg.UpdateIntervalSeconds, req.UpdateIntervalSeconds)
	apply(&cfg.EnableRichPresence, req.EnableRichPresence)
	apply(&cfg.ShowPlayerName, req.ShowPlayerName)
	apply(&cfg.ShowServerInfo, req.ShowServerInfo)
	apply(&cfg.ShowDeaths, req.ShowDeaths)
	apply(&cfg.ShowPlaytime, req.ShowPlaytime)
	apply(&cfg.ShowTimestamp, req.ShowTimestamp)
	apply(&cfg.ResetOnDeath, req.ResetOnDeath)
	apply(&cfg.Button1Label, req.Button1Label)
	apply(&cfg.Button1URL, req.Button1URL)
	apply(&cfg.Button2Label, req.Button2Label)
	apply(&cfg.Button2URL, req.Button2URL)
	apply(&cfg.BridgePort, req.BridgePort)
	apply(&cfg.HistoryRetentionDays, req.HistoryRetentionDays)
	apply(&cfg.DebugLogging, req.DebugLogging)

	corrected := cfg.Validate()

	if err := config.SaveConfigTo(cfg, s.ConfigPath); err != nil {
		return ConfigUpdateResponse{}, fmt.Errorf("save config: %w", err)
	}
	if s.Apply != nil {
		s.Apply(cfg)
	}

	return ConfigUpdateResponse{
		Success:         true,
		Corrected:       corrected,
		RestartRequired: cfg.BridgePort != originalPort,
		Config:          cfg,
	}, nil
}

func apply[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
