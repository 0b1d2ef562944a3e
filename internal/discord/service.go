package discord

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Sentinel errors for contract violations. Transport failures are never
// returned; they are reported through StatusError.
var (
	// ErrInvalidArgument is returned for a blank application ID or nil options.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotInitialized is returned by Connect before Init.
	ErrNotInitialized = errors.New("discord service not initialized")
)

// Status is a notification sent to the status callback.
type Status string

const (
	StatusConnected       Status = "connected"
	StatusReady           Status = "ready"
	StatusDisconnected    Status = "disconnected"
	StatusError           Status = "error"
	StatusActivityUpdated Status = "activity_updated"
	StatusActivityCleared Status = "activity_cleared"
)

// State is the connection state of the Service.
type State int

const (
	// StateUninitialized means Init has not been called (or Close was).
	StateUninitialized State = iota
	// StateDisconnected means initialized but not connected.
	StateDisconnected
	// StateConnecting means Connect was called and ready has not fired yet.
	StateConnecting
	// StateReady is the only state in which activities are transmitted.
	StateReady
	// StateErrored means the transport reported an error before ready.
	StateErrored
)

// String returns a lowercase name for the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateErrored:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Service keeps the desired activity and delivers it to Discord.
//
// The most recent UpdateActivity call wins: the options are cached and, if
// the connection is not ready, sent when the ready event arrives. All methods
// are safe for concurrent use, including from transport goroutines.
type Service struct {
	factory  TransportFactory
	logger   *slog.Logger
	now      func() time.Time
	onStatus func(Status)

	mu        sync.Mutex
	appID     string
	transport Transport
	gen       uint64 // identifies the current transport; stale callbacks are dropped
	state     State
	current   *Options
	lastSent  *Presence
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStatusFunc sets the status callback. It is called outside the
// service lock and may call back into the Service.
func WithStatusFunc(fn func(Status)) ServiceOption {
	return func(s *Service) { s.onStatus = fn }
}

// WithNow sets the clock used for timestamps (for testing).
func WithNow(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service that builds transports with factory.
func NewService(factory TransportFactory, opts ...ServiceOption) *Service {
	s := &Service{
		factory: factory,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init prepares a transport for appID, releasing any existing one.
// It does not connect.
func (s *Service) Init(appID string) error {
	if strings.TrimSpace(appID) == "" {
		return fmt.Errorf("%w: application id is blank", ErrInvalidArgument)
	}

	s.mu.Lock()
	old := s.detachLocked()
	s.appID = appID
	s.attachLocked()
	s.state = StateDisconnected
	s.mu.Unlock()

	s.release(old)
	return nil
}

// Connect starts connecting. Completion is signaled by StatusReady.
// It is a no-op while connecting or ready.
func (s *Service) Connect() error {
	s.mu.Lock()
	if s.appID == "" {
		s.mu.Unlock()
		return ErrNotInitialized
	}
	if s.state == StateConnecting || s.state == StateReady {
		s.mu.Unlock()
		return nil
	}
	if s.transport == nil {
		s.attachLocked()
	}
	s.state = StateConnecting
	t, gen := s.transport, s.gen
	s.mu.Unlock()

	if err := t.Connect(); err != nil {
		s.handleError(gen, fmt.Errorf("connect: %w", err))
	}
	return nil
}

// Disconnect releases the transport and clears the cached activity.
// The application ID is kept, so a later Connect starts a new connection.
func (s *Service) Disconnect() {
	s.mu.Lock()
	t := s.detachLocked()
	s.current = nil
	s.lastSent = nil
	if s.appID != "" {
		s.state = StateDisconnected
	}
	s.mu.Unlock()

	s.release(t)
	s.notify(StatusDisconnected)
}

// Close shuts the service down: pending activity is cleared on Discord if
// connected, then the transport is released. No transmission is attempted
// afterwards until Init is called again. Close always returns nil.
func (s *Service) Close() error {
	s.mu.Lock()
	wasReady := s.state == StateReady
	t := s.detachLocked()
	s.current = nil
	s.lastSent = nil
	s.appID = ""
	s.state = StateUninitialized
	s.mu.Unlock()

	if t != nil {
		func() {
			defer s.release(t)
			if wasReady {
				s.clearForShutdown(t)
			}
		}()
	}
	s.notify(StatusDisconnected)
	return nil
}

func (s *Service) clearForShutdown(t Transport) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("clear presence panicked during shutdown", "panic", r)
		}
	}()
	if err := t.ClearPresence(); err != nil {
		s.logger.Warn("clear presence failed during shutdown", "error", err)
	}
}

// UpdateActivity caches opts as the current activity and sends it if the
// connection is ready. opts is copied; later changes by the caller have no
// effect.
func (s *Service) UpdateActivity(opts *Options) error {
	if opts == nil {
		return fmt.Errorf("%w: activity options are nil", ErrInvalidArgument)
	}
	cp := opts.Clone()

	s.mu.Lock()
	s.current = cp
	var statuses []Status
	if s.state == StateReady && s.transport != nil {
		statuses = s.transmitLocked(cp)
	}
	s.mu.Unlock()

	s.notify(statuses...)
	return nil
}

// ClearActivity drops the cached activity and, if ready, removes the
// presence from Discord.
func (s *Service) ClearActivity() {
	s.mu.Lock()
	s.current = nil
	s.lastSent = nil
	if s.state != StateReady || s.transport == nil {
		s.mu.Unlock()
		return
	}
	status := StatusActivityCleared
	if err := s.transport.ClearPresence(); err != nil {
		s.logger.Warn("clear presence failed", "error", err)
		status = StatusError
	}
	s.mu.Unlock()

	s.notify(status)
}

// State returns the connection state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connected reports whether activities are currently transmitted.
func (s *Service) Connected() bool {
	return s.State() == StateReady
}

// Current returns a copy of the cached activity, or nil.
func (s *Service) Current() *Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// LastPresence returns the last payload sent to Discord since the cache was
// last cleared, or nil.
func (s *Service) LastPresence() *Presence {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSent == nil {
		return nil
	}
	cp := *s.lastSent
	return &cp
}

// transmitLocked normalizes and sends opts. Must be called with mu held.
func (s *Service) transmitLocked(opts *Options) []Status {
	p := BuildPresence(opts, s.now())
	if err := s.transport.SetPresence(p); err != nil {
		s.logger.Warn("set presence failed", "error", err)
		return []Status{StatusError}
	}
	s.lastSent = p
	return []Status{StatusActivityUpdated}
}

// attachLocked creates a transport for the current appID.
// Must be called with mu held.
func (s *Service) attachLocked() {
	s.gen++
	s.transport = s.factory(s.appID, &lifecycle{s: s, gen: s.gen})
}

// detachLocked forgets the current transport and returns it for release.
// Must be called with mu held.
func (s *Service) detachLocked() Transport {
	t := s.transport
	s.transport = nil
	s.gen++
	return t
}

// release closes a detached transport outside the lock.
func (s *Service) release(t Transport) {
	if t == nil {
		return
	}
	if err := t.Close(); err != nil {
		s.logger.Warn("close transport failed", "error", err)
	}
}

func (s *Service) notify(statuses ...Status) {
	if s.onStatus == nil {
		return
	}
	for _, st := range statuses {
		s.onStatus(st)
	}
}

func (s *Service) handleEstablished(gen uint64) {
	s.mu.Lock()
	stale := gen != s.gen
	s.mu.Unlock()
	if stale {
		return
	}
	s.logger.Debug("discord connection established")
	s.notify(StatusConnected)
}

func (s *Service) handleReady(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.state = StateReady
	statuses := []Status{StatusReady}
	if s.current != nil && s.transport != nil {
		statuses = append(statuses, s.transmitLocked(s.current)...)
	}
	s.mu.Unlock()

	s.logger.Debug("discord ready")
	s.notify(statuses...)
}

func (s *Service) handleClose(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.state = StateDisconnected
	s.mu.Unlock()

	s.logger.Debug("discord connection closed")
	s.notify(StatusDisconnected)
}

func (s *Service) handleError(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	if s.state != StateReady {
		s.state = StateErrored
	}
	s.mu.Unlock()

	s.logger.Warn("discord transport error", "error", err)
	s.notify(StatusError)
}

// lifecycle binds transport callbacks to one transport generation.
type lifecycle struct {
	s   *Service
	gen uint64
}

func (l *lifecycle) OnConnectionEstablished() { l.s.handleEstablished(l.gen) }
func (l *lifecycle) OnReady()                 { l.s.handleReady(l.gen) }
func (l *lifecycle) OnClose()                 { l.s.handleClose(l.gen) }
func (l *lifecycle) OnError(err error)        { l.s.handleError(l.gen, err) }
