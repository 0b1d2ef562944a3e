// Package driver runs the periodic render-and-publish cycle and keeps the
// Discord connection alive.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/graaaaa/vintagepresence/internal/config"
	"github.com/graaaaa/vintagepresence/internal/discord"
	"github.com/graaaaa/vintagepresence/internal/host"
	"github.com/graaaaa/vintagepresence/internal/presence"
)

// Source provides the latest host snapshot. ok is false when no player or
// world is available.
type Source interface {
	Get() (snap host.Snapshot, ok bool)
}

// Publisher delivers activities. *discord.Service implements it.
type Publisher interface {
	Init(appID string) error
	Connect() error
	UpdateActivity(opts *discord.Options) error
	ClearActivity()
}

// Render is the result of the most recent published cycle.
type Render struct {
	Details string    `json:"details"`
	State   string    `json:"state"`
	At      time.Time `json:"at"`
}

// Driver renders the configured templates against the latest snapshot on
// every tick and hands the result to the Publisher.
type Driver struct {
	src        Source
	pub        Publisher
	engine     *presence.Engine
	logger     *slog.Logger
	now        func() time.Time
	afterFunc  AfterFunc
	backoff    *BackoffCalculator
	onActivity func(discord.Options)

	cfg        atomic.Pointer[config.Config]
	lastRender atomic.Pointer[Render]

	// cycle state, guarded by cycleMu
	cycleMu      sync.Mutex
	inSession    bool
	sessionStart time.Time
	lastDeaths   *int
	cleared      bool
	lastFailure  string

	reconnectMu    sync.Mutex
	attempt        int
	reconnectTimer TimerHandle
	stopped        bool
	ready          bool
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithNow sets the clock (for testing).
func WithNow(now func() time.Time) Option {
	return func(d *Driver) { d.now = now }
}

// WithAfterFunc sets the timer factory used for reconnects (for testing).
func WithAfterFunc(af AfterFunc) Option {
	return func(d *Driver) { d.afterFunc = af }
}

// WithBackoff sets the reconnect backoff calculator.
func WithBackoff(b *BackoffCalculator) Option {
	return func(d *Driver) {
		if b != nil {
			d.backoff = b
		}
	}
}

// WithEngine replaces the template engine.
func WithEngine(e *presence.Engine) Option {
	return func(d *Driver) {
		if e != nil {
			d.engine = e
		}
	}
}

// WithActivityFunc registers a callback invoked with every published
// activity, after UpdateActivity succeeds.
func WithActivityFunc(fn func(discord.Options)) Option {
	return func(d *Driver) { d.onActivity = fn }
}

// New creates a Driver. cfg is validated.
func New(src Source, pub Publisher, cfg config.Config, opts ...Option) *Driver {
	d := &Driver{
		src:       src,
		pub:       pub,
		engine:    presence.NewEngine(),
		logger:    slog.Default(),
		now:       time.Now,
		afterFunc: DefaultAfterFunc,
		backoff:   NewBackoffCalculator(DefaultBackoffConfig),
	}
	for _, opt := range opts {
		opt(d)
	}
	cfg.Validate()
	d.cfg.Store(&cfg)
	return d
}

// Config returns the active configuration.
func (d *Driver) Config() config.Config {
	return *d.cfg.Load()
}

// SetConfig swaps the configuration. It takes effect on the next cycle;
// a changed application ID re-initializes the connection immediately.
func (d *Driver) SetConfig(cfg config.Config) {
	cfg.Validate()
	old := d.cfg.Swap(&cfg)
	if old.DiscordAppID == cfg.DiscordAppID {
		return
	}

	d.logger.Info("discord application changed, reconnecting")
	d.resetReconnect()
	d.reconnectMu.Lock()
	d.ready = false
	d.reconnectMu.Unlock()
	if err := d.Start(); err != nil {
		d.logger.Warn("reconnect with new application failed", "error", err)
	}
}

// Start initializes the publisher with the configured application and
// begins connecting.
func (d *Driver) Start() error {
	cfg := d.Config()
	if err := d.pub.Init(cfg.DiscordAppID); err != nil {
		return fmt.Errorf("init discord: %w", err)
	}
	if err := d.pub.Connect(); err != nil {
		return fmt.Errorf("connect discord: %w", err)
	}
	return nil
}

// Run starts the publisher and runs a cycle immediately and then once per
// configured interval until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) error {
	d.reconnectMu.Lock()
	d.stopped = false
	d.reconnectMu.Unlock()

	if err := d.Start(); err != nil {
		return err
	}
	defer d.stop()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			d.RunOnce()
			timer.Reset(d.Config().UpdateInterval())
		}
	}
}

// RunOnce performs one render-and-publish cycle. Failures and panics are
// logged and never propagate.
func (d *Driver) RunOnce() {
	d.cycleMu.Lock()
	defer d.cycleMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			d.logFailure(fmt.Sprintf("update cycle panicked: %v", r))
		}
	}()

	if err := d.cycle(); err != nil {
		d.logFailure(err.Error())
		return
	}
	d.lastFailure = ""
}

// cycle must be called with cycleMu held.
func (d *Driver) cycle() error {
	cfg := d.Config()

	if !cfg.EnableRichPresence {
		if !d.cleared {
			d.pub.ClearActivity()
			d.cleared = true
			d.lastRender.Store(nil)
		}
		return nil
	}
	d.cleared = false

	snap, ok := d.src.Get()
	if !ok {
		d.inSession = false
		return nil
	}

	now := d.now()
	if !d.inSession {
		d.inSession = true
		d.sessionStart = now
		d.lastDeaths = nil
	}
	if snap.Deaths != nil {
		if cfg.ResetOnDeath && d.lastDeaths != nil && *snap.Deaths > *d.lastDeaths {
			d.sessionStart = now
		}
		deaths := *snap.Deaths
		d.lastDeaths = &deaths
	}

	ctx := host.BuildContext(snap, cfg.Privacy())
	opts := d.buildOptions(cfg, &ctx)
	if err := d.pub.UpdateActivity(opts); err != nil {
		return fmt.Errorf("update activity: %w", err)
	}

	d.lastRender.Store(&Render{Details: opts.Details, State: opts.State, At: now})
	if d.onActivity != nil {
		d.onActivity(*opts.Clone())
	}
	return nil
}

func (d *Driver) buildOptions(cfg config.Config, ctx *presence.Context) *discord.Options {
	opts := &discord.Options{
		Details:        d.engine.Render(cfg.DetailsTemplate, ctx),
		State:          d.engine.Render(cfg.StateTemplate, ctx),
		LargeImageKey:  cfg.LargeImageKey,
		LargeImageText: d.engine.Render(cfg.LargeImageText, ctx),
		SmallImageKey:  cfg.SmallImage(),
		TimestampMode:  cfg.TimestampMode(),
		StartTime:      d.sessionStart,
		Buttons:        cfg.Buttons(),
	}
	if opts.SmallImageKey != "" {
		opts.SmallImageText = d.engine.Render(cfg.SmallImageText, ctx)
	}
	return opts
}

// Preview renders tmpl against the latest snapshot using the active
// privacy settings. ok is false when no snapshot is available, in which
// case tmpl is rendered against an empty context.
func (d *Driver) Preview(tmpl string) (rendered string, ok bool) {
	snap, ok := d.src.Get()
	if !ok {
		return d.engine.Render(tmpl, &presence.Context{}), false
	}
	ctx := host.BuildContext(snap, d.Config().Privacy())
	return d.engine.Render(tmpl, &ctx), true
}

// LastRender returns the most recently published render, or nil.
func (d *Driver) LastRender() *Render {
	r := d.lastRender.Load()
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

// Tokens lists the template tokens the engine understands.
func (d *Driver) Tokens() []string {
	return d.engine.Tokens()
}

// HandleStatus reacts to delivery status changes: a lost or failed
// connection schedules a reconnect with exponential backoff, ready resets it.
// An error while the session is ready (a rejected command) leaves the
// connection up and is not retried.
func (d *Driver) HandleStatus(s discord.Status) {
	switch s {
	case discord.StatusReady:
		d.reconnectMu.Lock()
		d.ready = true
		d.reconnectMu.Unlock()
		d.resetReconnect()
	case discord.StatusDisconnected:
		d.reconnectMu.Lock()
		d.ready = false
		d.reconnectMu.Unlock()
		d.scheduleReconnect()
	case discord.StatusError:
		d.reconnectMu.Lock()
		ready := d.ready
		d.reconnectMu.Unlock()
		if ready {
			d.logger.Debug("discord error on a ready session, not reconnecting")
			return
		}
		d.scheduleReconnect()
	}
}

func (d *Driver) scheduleReconnect() {
	d.reconnectMu.Lock()
	defer d.reconnectMu.Unlock()
	if d.stopped || d.reconnectTimer != nil {
		return
	}
	delay := d.backoff.Calculate(d.attempt)
	d.attempt++
	d.logger.Debug("scheduling discord reconnect", "attempt", d.attempt, "delay", delay)
	d.reconnectTimer = d.afterFunc(delay, d.reconnect)
}

func (d *Driver) reconnect() {
	d.reconnectMu.Lock()
	d.reconnectTimer = nil
	stopped := d.stopped
	d.reconnectMu.Unlock()
	if stopped {
		return
	}

	if err := d.pub.Connect(); err != nil {
		if errors.Is(err, discord.ErrNotInitialized) {
			d.logger.Debug("reconnect skipped, service not initialized")
			return
		}
		d.logger.Warn("discord reconnect failed", "error", err)
	}
}

func (d *Driver) resetReconnect() {
	d.reconnectMu.Lock()
	defer d.reconnectMu.Unlock()
	d.attempt = 0
	if d.reconnectTimer != nil {
		d.reconnectTimer.Stop()
		d.reconnectTimer = nil
	}
}

func (d *Driver) stop() {
	d.reconnectMu.Lock()
	defer d.reconnectMu.Unlock()
	d.stopped = true
	if d.reconnectTimer != nil {
		d.reconnectTimer.Stop()
		d.reconnectTimer = nil
	}
}

// logFailure must be called with cycleMu held.
func (d *Driver) logFailure(msg string) {
	if d.Config().DebugLogging {
		d.logger.Debug("presence update failed", "error", msg)
		return
	}
	if msg == d.lastFailure {
		return
	}
	d.lastFailure = msg
	d.logger.Warn("presence update failed", "error", msg)
}
