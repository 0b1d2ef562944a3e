package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/graaaaa/vintagepresence/internal/discord"
)

// ErrClosed is returned by Connect after Close.
var ErrClosed = errors.New("ipc client closed")

// DialFunc opens a connection to the Discord client.
type DialFunc func(ctx context.Context) (io.ReadWriteCloser, error)

// DefaultHandshakeTimeout bounds the wait for the READY dispatch.
const DefaultHandshakeTimeout = 10 * time.Second

// Client is a discord.Transport over the local IPC socket.
//
// Connect runs a session goroutine that dials, performs the handshake and
// reads frames until the connection ends. SetPresence and ClearPresence
// only fill a single pending slot; a writer goroutine drains it at the
// limiter's pace, so only the latest command is ever sent.
type Client struct {
	appID            string
	handler          discord.Handler
	dial             DialFunc
	logger           *slog.Logger
	limiter          *rate.Limiter
	pid              int
	handshakeTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
	closed  bool
	ready   bool
	conn    io.ReadWriteCloser
	pending *command
	wake    chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Option configures a Client.
type Option func(*Client)

// WithDialer replaces the platform dialer.
func WithDialer(dial DialFunc) Option {
	return func(c *Client) {
		if dial != nil {
			c.dial = dial
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLimiter sets the command rate limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

// WithPID sets the process ID reported with activities.
func WithPID(pid int) Option {
	return func(c *Client) { c.pid = pid }
}

// WithHandshakeTimeout sets how long to wait for READY.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.handshakeTimeout = d
		}
	}
}

// NewLimiter returns a limiter matching Discord's activity rate limit of
// five updates per twenty seconds.
func NewLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(4*time.Second), 5)
}

// New creates a Client. It does not connect.
func New(appID string, h discord.Handler, opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		appID:            appID,
		handler:          h,
		dial:             Dial,
		logger:           slog.Default(),
		limiter:          NewLimiter(),
		pid:              os.Getpid(),
		handshakeTimeout: DefaultHandshakeTimeout,
		ctx:              ctx,
		cancel:           cancel,
		wake:             make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Factory returns a discord.TransportFactory producing Clients.
func Factory(opts ...Option) discord.TransportFactory {
	return func(appID string, h discord.Handler) discord.Transport {
		return New(appID, h, opts...)
	}
}

// Connect starts a session in the background. It is a no-op while a
// session is running.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.running {
		return nil
	}
	c.running = true
	c.wg.Add(1)
	go c.session()
	return nil
}

// SetPresence queues p, replacing any queued command.
func (c *Client) SetPresence(p *discord.Presence) error {
	return c.enqueue(p)
}

// ClearPresence queues an empty activity, replacing any queued command.
func (c *Client) ClearPresence() error {
	return c.enqueue(nil)
}

func (c *Client) enqueue(activity *discord.Presence) error {
	cmd := &command{
		Cmd:   cmdSetActivity,
		Args:  activityArgs{PID: c.pid},
		Nonce: ulid.Make().String(),
	}
	// A nil *Presence inside an interface would not encode as null.
	if activity != nil {
		cmd.Args.Activity = activity
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.pending = cmd
	if c.ready {
		c.signal()
	}
	return nil
}

// signal wakes the writer. Must be called with mu held.
func (c *Client) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Close flushes a queued command if the session is ready, then closes the
// connection and waits for the session to end. It is idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		conn := c.conn
		var cmd *command
		if c.ready {
			cmd = c.pending
		}
		c.pending = nil
		c.mu.Unlock()

		if conn != nil && cmd != nil {
			if err := c.write(conn, OpFrame, cmd); err != nil {
				c.logger.Debug("flush on close failed", "error", err)
			}
		}
		c.cancel()
		if conn != nil {
			if err := c.write(conn, OpClose, struct{}{}); err != nil {
				c.logger.Debug("close frame failed", "error", err)
			}
			_ = conn.Close()
		}
		c.wg.Wait()
	})
	return nil
}

func (c *Client) session() {
	defer c.wg.Done()

	conn, err := c.dial(c.ctx)
	if err != nil {
		c.end(nil, fmt.Errorf("dial discord: %w", err), false)
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		c.end(nil, nil, false)
		return
	}
	c.conn = conn
	c.mu.Unlock()

	if !c.isClosed() {
		c.handler.OnConnectionEstablished()
	}

	if err := c.write(conn, OpHandshake, handshake{Version: 1, ClientID: c.appID}); err != nil {
		_ = conn.Close()
		c.end(conn, fmt.Errorf("handshake: %w", err), false)
		return
	}

	timer := time.AfterFunc(c.handshakeTimeout, func() {
		c.mu.Lock()
		ready := c.ready
		c.mu.Unlock()
		if !ready {
			c.logger.Debug("handshake timed out")
			_ = conn.Close()
		}
	})
	defer timer.Stop()

	sessionDone := make(chan struct{})
	defer close(sessionDone)

	readyAt := false
	for {
		f, err := readFrame(conn)
		if err != nil {
			_ = conn.Close()
			if readyAt {
				c.end(conn, nil, true)
			} else {
				c.end(conn, fmt.Errorf("waiting for ready: %w", err), false)
			}
			return
		}

		switch f.op {
		case OpPing:
			if err := c.writeRaw(conn, OpPong, f.body); err != nil {
				c.logger.Debug("pong failed", "error", err)
			}
		case OpClose:
			rpcErr := decodeError(f.body)
			_ = conn.Close()
			if readyAt {
				c.logger.Debug("discord closed the connection", "code", rpcErr.Code, "message", rpcErr.Message)
				c.end(conn, nil, true)
			} else {
				c.end(conn, rpcErr, false)
			}
			return
		case OpFrame:
			var msg message
			if err := json.Unmarshal(f.body, &msg); err != nil {
				c.logger.Debug("undecodable frame", "error", err)
				continue
			}
			switch {
			case msg.Cmd == cmdDispatch && msg.Evt == evtReady && !readyAt:
				readyAt = true
				timer.Stop()
				c.markReady(conn, sessionDone)
			case msg.Evt == evtError:
				if !c.isClosed() {
					c.handler.OnError(decodeError(msg.Data))
				}
			}
		}
	}
}

func (c *Client) markReady(conn io.ReadWriteCloser, done <-chan struct{}) {
	c.mu.Lock()
	c.ready = true
	if c.pending != nil {
		c.signal()
	}
	closed := c.closed
	c.mu.Unlock()

	c.wg.Add(1)
	go c.writer(conn, done)

	if !closed {
		c.handler.OnReady()
	}
}

func (c *Client) writer(conn io.ReadWriteCloser, done <-chan struct{}) {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-done:
			return
		case <-c.wake:
		}

		if err := c.limiter.Wait(c.ctx); err != nil {
			return
		}

		c.mu.Lock()
		cmd := c.pending
		c.pending = nil
		c.mu.Unlock()
		if cmd == nil {
			continue
		}

		if err := c.write(conn, OpFrame, cmd); err != nil {
			c.logger.Debug("write command failed", "error", err)
			_ = conn.Close()
			return
		}
	}
}

// end records that the session for conn is over and fires the terminal
// callback unless the client is closing.
func (c *Client) end(conn io.ReadWriteCloser, err error, wasReady bool) {
	c.mu.Lock()
	c.running = false
	c.ready = false
	c.pending = nil
	if conn != nil && c.conn == conn {
		c.conn = nil
	}
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return
	}
	if wasReady {
		c.handler.OnClose()
		return
	}
	if err != nil {
		c.handler.OnError(err)
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) write(w io.Writer, op Opcode, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writeFrame(w, op, v)
}

func (c *Client) writeRaw(w io.Writer, op Opcode, body []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writeRawFrame(w, op, body)
}
