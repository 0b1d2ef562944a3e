package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/graaaaa/vintagepresence/internal/appinfo"
	"github.com/graaaaa/vintagepresence/internal/config"
	"github.com/graaaaa/vintagepresence/internal/host"
	"github.com/graaaaa/vintagepresence/internal/presence"
)

// newCLIApp creates the CLI application with all commands. Running without
// a command starts the companion.
func newCLIApp(out io.Writer) *cli.App {
	app := &cli.App{
		Name:    "vintagepresence",
		Usage:   "Discord Rich Presence companion for Vintage Story",
		Version: appinfo.Version,
		Writer:  out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Config file path (defaults to the per-user data directory)"},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
		},
		Action: func(c *cli.Context) error {
			return runCmdAction(c)
		},
		Commands: []*cli.Command{
			runCmd(),
			renderCmd(),
			configCmd(),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// runCmd creates the run command.
func runCmd() *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Run the companion (default)",
		Action: runCmdAction,
	}
}

func runCmdAction(c *cli.Context) error {
	cfgPath, err := configPath(c)
	if err != nil {
		return err
	}
	return run(c.Context, runOptions{
		ConfigPath: cfgPath,
		Debug:      c.Bool("debug"),
		Stderr:     os.Stderr,
	})
}

// renderCmd creates the render command.
func renderCmd() *cli.Command {
	return &cli.Command{
		Name:  "render",
		Usage: "Render templates against a snapshot file without contacting Discord",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "template", Aliases: []string{"t"}, Usage: "Template to render (defaults to the configured details and state)"},
			&cli.StringFlag{Name: "snapshot", Aliases: []string{"s"}, Usage: "Snapshot JSON file (omit for an empty context)"},
		},
		Action: func(c *cli.Context) error {
			cfgPath, err := configPath(c)
			if err != nil {
				return err
			}
			cfg, err := config.LoadConfigFrom(cfgPath)
			if err != nil {
				return err
			}

			ctx := presence.Context{}
			if path := c.String("snapshot"); path != "" {
				snap, err := readSnapshot(path)
				if err != nil {
					return err
				}
				ctx = host.BuildContext(snap, cfg.Privacy())
			}

			engine := presence.NewEngine()
			out := c.App.Writer
			if tmpl := c.String("template"); tmpl != "" {
				fmt.Fprintln(out, engine.Render(tmpl, &ctx))
				return nil
			}
			fmt.Fprintln(out, engine.Render(cfg.DetailsTemplate, &ctx))
			fmt.Fprintln(out, engine.Render(cfg.StateTemplate, &ctx))
			return nil
		},
	}
}

// configCmd creates the config command group.
func configCmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect the configuration file",
		Subcommands: []*cli.Command{
			{
				Name:  "path",
				Usage: "Print the config file path",
				Action: func(c *cli.Context) error {
					path, err := configPath(c)
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, path)
					return nil
				},
			},
			{
				Name:  "validate",
				Usage: "Check the config file and print the effective values",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "write", Usage: "Save corrected values back to the file"},
				},
				Action: func(c *cli.Context) error {
					path, err := configPath(c)
					if err != nil {
						return err
					}
					cfg, corrected, err := validateConfigFile(path)
					if err != nil {
						return err
					}

					out := c.App.Writer
					if corrected {
						fmt.Fprintln(out, "config had invalid values; effective config:")
					} else {
						fmt.Fprintln(out, "config is valid")
					}
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					if err := enc.Encode(cfg); err != nil {
						return err
					}

					if corrected && c.Bool("write") {
						if err := config.SaveConfigTo(cfg, path); err != nil {
							return fmt.Errorf("save config: %w", err)
						}
						fmt.Fprintln(out, "corrected config saved")
					}
					return nil
				},
			},
		},
	}
}

// configPath resolves --config, falling back to the per-user data directory.
func configPath(c *cli.Context) (string, error) {
	if p := c.String("config"); p != "" {
		return p, nil
	}
	return config.ConfigPath()
}

// validateConfigFile strictly decodes path and reports whether Validate had
// to correct anything. A missing file is valid and yields defaults.
func validateConfigFile(path string) (config.Config, bool, error) {
	cfg := config.DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, false, nil
		}
		return cfg, false, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, false, fmt.Errorf("parse config: %w", err)
	}
	if cfg.SchemaVersion != config.CurrentSchemaVersion {
		return cfg, false, fmt.Errorf("unsupported schema_version %d (expected %d)",
			cfg.SchemaVersion, config.CurrentSchemaVersion)
	}
	corrected := cfg.Validate()
	return cfg, corrected, nil
}

func readSnapshot(path string) (host.Snapshot, error) {
	var snap host.Snapshot
	data, err := os.ReadFile(path)
	if err != nil {
		return snap, fmt.Errorf("read snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("parse snapshot: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return snap, err
	}
	return snap, nil
}

// newLogger creates the process logger writing text to w.
func newLogger(w io.Writer, level *slog.LevelVar) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
