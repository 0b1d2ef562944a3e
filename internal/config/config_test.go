package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graaaaa/vintagepresence/internal/discord"
)

func TestLoadConfigFrom_NotExist(t *testing.T) {
	// Load from non-existent file should return defaults
	cfg, err := LoadConfigFrom("/nonexistent/path/config.json")
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	defaults := DefaultConfig()
	if cfg != defaults {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadConfigFrom_Corrupt(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(path, []byte("not valid json{{{"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if cfg.BridgePort != DefaultBridgePort {
		t.Errorf("expected default port %d, got %d", DefaultBridgePort, cfg.BridgePort)
	}
}

func TestLoadConfigFrom_InvalidVersion(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	content := `{"schema_version": 999, "bridge_port": 9999}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if cfg.BridgePort != DefaultBridgePort {
		t.Errorf("expected default port %d, got %d", DefaultBridgePort, cfg.BridgePort)
	}
}

func TestSaveLoadConfig_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	original := DefaultConfig()
	original.DetailsTemplate = "Day {day} in {season}"
	original.LargeImageKey = "anvil"
	original.SmallImageKey = NoSmallImage
	original.UpdateIntervalSeconds = 30
	original.ShowPlayerName = false
	original.Button1Label = "Website"
	original.Button1URL = "https://www.vintagestory.at"

	if err := SaveConfigTo(original, path); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	loaded, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if loaded != original {
		t.Errorf("round trip mismatch:\nwant %+v\ngot  %+v", original, loaded)
	}
}

func TestLoadConfigFrom_CorrectsInvalidValues(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	content := `{"schema_version": 1, "bridge_port": -1, "large_image_key": "dragon", "update_interval_seconds": 1, "details_template": "  "}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultBridgePort, cfg.BridgePort)
	assert.Equal(t, DefaultLargeImageKey, cfg.LargeImageKey)
	assert.Equal(t, MinUpdateIntervalSeconds, cfg.UpdateIntervalSeconds)
	assert.Equal(t, DefaultDetailsTemplate, cfg.DetailsTemplate)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Validate(), "defaults are valid")

	tests := []struct {
		name   string
		mutate func(*Config)
		check  func(*testing.T, Config)
	}{
		{"blank app id", func(c *Config) { c.DiscordAppID = " " }, func(t *testing.T, c Config) {
			assert.Equal(t, DefaultConfig().DiscordAppID, c.DiscordAppID)
		}},
		{"blank state", func(c *Config) { c.StateTemplate = "" }, func(t *testing.T, c Config) {
			assert.Equal(t, DefaultStateTemplate, c.StateTemplate)
		}},
		{"small key not allowed", func(c *Config) { c.SmallImageKey = "dragon" }, func(t *testing.T, c Config) {
			assert.Equal(t, DefaultSmallImageKey, c.SmallImageKey)
		}},
		{"gear is not a large image", func(c *Config) { c.LargeImageKey = "gear" }, func(t *testing.T, c Config) {
			assert.Equal(t, DefaultLargeImageKey, c.LargeImageKey)
		}},
		{"interval below floor", func(c *Config) { c.UpdateIntervalSeconds = 2 }, func(t *testing.T, c Config) {
			assert.Equal(t, 5, c.UpdateIntervalSeconds)
		}},
		{"negative retention", func(c *Config) { c.HistoryRetentionDays = -3 }, func(t *testing.T, c Config) {
			assert.Equal(t, DefaultHistoryRetentionDays, c.HistoryRetentionDays)
		}},
		{"button without url", func(c *Config) { c.Button1Label = "Join" }, func(t *testing.T, c Config) {
			assert.Empty(t, c.Button1Label)
		}},
		{"button with relative url", func(c *Config) { c.Button2Label, c.Button2URL = "Join", "/join" }, func(t *testing.T, c Config) {
			assert.Empty(t, c.Button2URL)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(&c)
			assert.True(t, c.Validate())
			tt.check(t, c)
			assert.False(t, c.Validate(), "second pass finds nothing")
		})
	}
}

func TestValidate_AcceptsAllowListedKeys(t *testing.T) {
	for _, key := range SmallImageKeys {
		c := DefaultConfig()
		c.SmallImageKey = key
		assert.False(t, c.Validate(), "small key %q", key)
	}
	for _, key := range LargeImageKeys {
		c := DefaultConfig()
		c.LargeImageKey = key
		assert.False(t, c.Validate(), "large key %q", key)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("VINTAGEPRESENCE_BRIDGE_PORT", "9999")
	t.Setenv("VINTAGEPRESENCE_ENABLE_RICH_PRESENCE", "false")
	t.Setenv("VINTAGEPRESENCE_DETAILS_TEMPLATE", "Exploring {season}")
	t.Setenv("VINTAGEPRESENCE_UPDATE_INTERVAL_SECONDS", "1")

	cfg, err := ApplyEnvOverrides(DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.BridgePort)
	assert.False(t, cfg.EnableRichPresence)
	assert.Equal(t, "Exploring {season}", cfg.DetailsTemplate)
	assert.Equal(t, MinUpdateIntervalSeconds, cfg.UpdateIntervalSeconds, "overrides are validated")
	assert.True(t, cfg.ShowTimestamp, "unset variables keep file values")
}

func TestApplyEnvOverrides_InvalidValue(t *testing.T) {
	t.Setenv("VINTAGEPRESENCE_BRIDGE_PORT", "not-a-number")

	original := DefaultConfig()
	cfg, err := ApplyEnvOverrides(original)
	require.Error(t, err)
	assert.Equal(t, original, cfg)
}

func TestDerivedValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UpdateIntervalSeconds = 0
	assert.Equal(t, 5*time.Second, cfg.UpdateInterval())

	cfg.ShowTimestamp = false
	assert.Equal(t, discord.TimestampNone, cfg.TimestampMode())

	cfg.SmallImageKey = NoSmallImage
	assert.Empty(t, cfg.SmallImage())

	cfg.Button2Label, cfg.Button2URL = "Wiki", "https://wiki.vintagestory.at"
	assert.Equal(t, []discord.Button{{Label: "Wiki", URL: "https://wiki.vintagestory.at"}}, cfg.Buttons())

	cfg.ShowDeaths = false
	p := cfg.Privacy()
	assert.False(t, p.ShowDeaths)
	assert.True(t, p.ShowPlayerName)
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, SaveConfigTo(DefaultConfig(), path))

	changes := make(chan Config, 4)
	w := NewWatcher(path, func(c Config) { changes <- c }, WithDebounce(20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	updated := DefaultConfig()
	updated.StateTemplate = "In {season}"
	require.NoError(t, SaveConfigTo(updated, path))

	select {
	case c := <-changes:
		assert.Equal(t, "In {season}", c.StateTemplate)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after write")
	}
}
