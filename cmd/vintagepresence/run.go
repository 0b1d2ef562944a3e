package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/graaaaa/vintagepresence/internal/api"
	"github.com/graaaaa/vintagepresence/internal/app"
	"github.com/graaaaa/vintagepresence/internal/appinfo"
	"github.com/graaaaa/vintagepresence/internal/config"
	"github.com/graaaaa/vintagepresence/internal/discord"
	"github.com/graaaaa/vintagepresence/internal/discord/ipc"
	"github.com/graaaaa/vintagepresence/internal/driver"
	"github.com/graaaaa/vintagepresence/internal/host"
	"github.com/graaaaa/vintagepresence/internal/singleinstance"
	"github.com/graaaaa/vintagepresence/internal/store"
)

// errAlreadyRunning is returned when another instance holds the lock.
var errAlreadyRunning = errors.New("another instance is already running")

const shutdownTimeout = 5 * time.Second

type runOptions struct {
	ConfigPath string
	Debug      bool
	Stderr     io.Writer
}

// run starts the companion and blocks until SIGINT/SIGTERM or a fatal
// server error.
func run(parent context.Context, opts runOptions) error {
	level := new(slog.LevelVar)
	logger := newLogger(opts.Stderr, level)
	slog.SetDefault(logger)

	// 1. Single instance check
	dataDir := filepath.Dir(opts.ConfigPath)
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	release, ok, err := singleinstance.AcquireLock(filepath.Join(dataDir, appinfo.LockFileName))
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errAlreadyRunning
	}
	defer release()

	// 2. Load configuration (corrupt config falls back to defaults with warning)
	cfg, _ := config.LoadConfigFrom(opts.ConfigPath)
	cfg, err = config.ApplyEnvOverrides(cfg)
	if err != nil {
		logger.Warn("ignoring environment overrides", "error", err)
	}
	setLevel := func(c config.Config) {
		if opts.Debug || c.DebugLogging {
			level.Set(slog.LevelDebug)
		} else {
			level.Set(slog.LevelInfo)
		}
	}
	setLevel(cfg)

	// 3. Open SQLite store and trim old history
	db, err := store.Open(filepath.Join(dataDir, appinfo.DatabaseFileName), store.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	maintainStore(ctx, db, cfg, logger)

	// 4. Wire the pipeline: snapshot -> driver -> discord service -> history
	hub := api.NewHub(api.WithHubLogger(logger))
	go hub.Run()

	recorder := app.NewRecorder(db,
		app.WithPublisher(hub),
		app.WithRecorderLogger(logger),
	)
	latest := host.NewLatest()

	var (
		drv         *driver.Driver
		presenceSvc *app.PresenceService
	)
	svc := discord.NewService(
		ipc.Factory(
			ipc.WithLogger(logger.With("component", "ipc")),
			ipc.WithLimiter(ipc.NewLimiter()),
		),
		discord.WithLogger(logger.With("component", "discord")),
		discord.WithStatusFunc(func(s discord.Status) {
			logger.Debug("discord status", "status", s)
			presenceSvc.ObserveStatus(s)
			recorder.Status(s)
			drv.HandleStatus(s)
		}),
	)
	drv = driver.New(latest, svc, cfg,
		driver.WithLogger(logger.With("component", "driver")),
		driver.WithActivityFunc(recorder.Activity),
	)
	presenceSvc = app.NewPresenceService(svc, drv, app.WithSnapshotSource(latest))

	applyConfig := func(c config.Config) {
		setLevel(c)
		drv.SetConfig(c)
	}
	watcher := config.NewWatcher(opts.ConfigPath, applyConfig, config.WithWatchLogger(logger))

	// 5. HTTP bridge on loopback only
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.BridgePort))
	server := api.NewServer(addr,
		app.HealthService{Version: appinfo.Version, StartedAt: time.Now()},
		api.WithLogger(logger),
		api.WithSnapshotUsecase(app.SnapshotService{Latest: latest}),
		api.WithPresenceUsecase(presenceSvc),
		api.WithPreviewUsecase(app.PreviewService{Renderer: drv}),
		api.WithHistoryUsecase(&app.HistoryService{Store: db}),
		api.WithStatsUsecase(app.NewStatsService(db)),
		api.WithConfigUsecase(app.ConfigService{
			ConfigPath: opts.ConfigPath,
			Current:    drv.Config,
			Apply:      applyConfig,
		}),
		api.WithHub(hub),
	)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		hub.Stop()
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	// 6. Start background workers
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		_ = recorder.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := watcher.Run(ctx); err != nil {
			logger.Warn("config watcher stopped", "error", err)
		}
	}()
	driverDone := make(chan struct{})
	go func() {
		defer wg.Done()
		defer close(driverDone)
		if err := drv.Run(ctx); err != nil {
			logger.Error("driver stopped", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting "+appinfo.AppName, "version", appinfo.Version, "addr", addr, "config", opts.ConfigPath)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		runErr = fmt.Errorf("server: %w", err)
	}
	stop()

	// Driver first so no update races the shutdown clear.
	<-driverDone
	if err := svc.Close(); err != nil {
		logger.Warn("discord close failed", "error", err)
	}

	// Stop SSE hub (closes all subscriber channels)
	hub.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown error", "error", err)
	}

	wg.Wait()
	logger.Info("stopped")
	return runErr
}

// maintainStore prunes history past the retention window and vacuums when due.
func maintainStore(ctx context.Context, db *store.Store, cfg config.Config, logger *slog.Logger) {
	if cfg.HistoryRetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -cfg.HistoryRetentionDays)
		n, err := db.Prune(ctx, cutoff)
		if err != nil {
			logger.Warn("failed to prune history", "error", err)
		} else if n > 0 {
			logger.Info("pruned history", "records", n, "before", cutoff.Format(time.RFC3339))
		}
	}
	if _, err := db.VacuumIfNeeded(ctx); err != nil {
		logger.Warn("vacuum failed", "error", err)
	}
}
