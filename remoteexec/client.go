// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remoteexec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/singleflight"

	"github.com/bureau-foundation/gondolin/lib/clock"
	"github.com/bureau-foundation/gondolin/lib/metrics"
	"github.com/bureau-foundation/gondolin/lib/netutil"
)

// ErrTooManySessions is returned by Exec when every session id is in
// use.
var ErrTooManySessions = errors.New("remoteexec: no free session ids")

const (
	// DefaultMaxOutputBytes caps buffered output per execution.
	DefaultMaxOutputBytes = 64 << 20

	// DefaultDialTimeout bounds the background connect started by Exec.
	DefaultDialTimeout = 30 * time.Second

	// readLimit bounds a single WebSocket message.
	readLimit = 16 << 20
)

// State is the connection state of a Client.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config configures a Client.
type Config struct {
	// SocketPath is the Unix socket the guest exec server listens on.
	SocketPath string

	// Dial overrides the default WebSocket-over-Unix-socket dialer.
	Dial func(ctx context.Context) (*websocket.Conn, error)

	// Clock drives execution timeouts. Defaults to clock.Real().
	Clock clock.Clock

	// MaxOutputBytes caps buffered stdout+stderr per execution.
	// Zero uses DefaultMaxOutputBytes; negative disables the cap.
	MaxOutputBytes int64

	// DefaultTimeout applies to executions that set no Timeout. Zero
	// means no timeout.
	DefaultTimeout time.Duration

	// DialTimeout bounds the connect Exec starts on a Disconnected
	// client. Zero uses DefaultDialTimeout.
	DialTimeout time.Duration

	// Shims rewrite commands the guest cannot run. Nil uses
	// DefaultShellShims; an empty non-nil slice disables rewriting.
	Shims []ShellShim

	Logger  *slog.Logger
	Metrics *metrics.Collector
}

// Client multiplexes executions over one connection to a guest.
type Client struct {
	socketPath     string
	dialFunc       func(ctx context.Context) (*websocket.Conn, error)
	clock          clock.Clock
	maxOutput      int64
	defaultTimeout time.Duration
	dialTimeout    time.Duration
	shims          []ShellShim
	logger         *slog.Logger
	metrics        *metrics.Collector

	connectGroup singleflight.Group

	// writeMu serializes writes to the connection, including the
	// flush of queued messages. Acquired before mu.
	writeMu sync.Mutex

	mu         sync.Mutex
	state      State
	conn       *websocket.Conn
	connCancel context.CancelFunc
	queue      [][]byte
	sessions   map[uint32]*Exec
	nextID     uint32
	status     StatusMessage
	hasStatus  bool
}

// NewClient returns a Disconnected client. No connection is made until
// Connect or Exec.
func NewClient(config Config) (*Client, error) {
	if config.SocketPath == "" && config.Dial == nil {
		return nil, errors.New("remoteexec: SocketPath is required")
	}
	c := &Client{
		socketPath:     config.SocketPath,
		dialFunc:       config.Dial,
		clock:          config.Clock,
		maxOutput:      config.MaxOutputBytes,
		defaultTimeout: config.DefaultTimeout,
		dialTimeout:    config.DialTimeout,
		shims:          config.Shims,
		logger:         config.Logger,
		metrics:        config.Metrics,
		sessions:       make(map[uint32]*Exec),
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	if c.maxOutput == 0 {
		c.maxOutput = DefaultMaxOutputBytes
	} else if c.maxOutput < 0 {
		c.maxOutput = 0
	}
	if c.dialTimeout <= 0 {
		c.dialTimeout = DefaultDialTimeout
	}
	if c.shims == nil {
		c.shims = DefaultShellShims
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns the last status message the guest sent, if any.
func (c *Client) Status() (StatusMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.hasStatus
}

// Connect establishes the connection. It returns immediately when
// already connected; concurrent callers share one handshake. On a
// Closed client it reconnects.
func (c *Client) Connect(ctx context.Context) error {
	return c.connectShared(ctx, true)
}

// autoConnect is the connect Exec starts on a Disconnected client. A
// client that reached Closed in the meantime stays Closed.
func (c *Client) autoConnect(ctx context.Context) error {
	return c.connectShared(ctx, false)
}

func (c *Client) connectShared(ctx context.Context, reconnect bool) error {
	if c.State() == StateConnected {
		return nil
	}
	_, err, _ := c.connectGroup.Do("connect", func() (any, error) {
		return nil, c.connect(ctx, reconnect)
	})
	return err
}

func (c *Client) connect(ctx context.Context, reconnect bool) error {
	c.mu.Lock()
	switch {
	case c.state == StateConnected:
		c.mu.Unlock()
		return nil
	case c.state == StateClosed && !reconnect:
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	c.state = StateConnecting
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		c.teardown(nil, err)
		return err
	}

	connCtx, connCancel := context.WithCancel(context.Background())

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	if c.state != StateConnecting {
		// Closed while dialing.
		c.mu.Unlock()
		connCancel()
		conn.CloseNow()
		return ErrConnectionClosed
	}
	queue := c.queue
	c.queue = nil
	c.conn = conn
	c.connCancel = connCancel
	c.mu.Unlock()

	for _, message := range queue {
		if err := conn.Write(connCtx, websocket.MessageText, message); err != nil {
			c.teardown(conn, fmt.Errorf("flushing queued message: %w", err))
			return ErrConnectionClosed
		}
	}

	c.mu.Lock()
	c.state = StateConnected
	c.mu.Unlock()

	c.logger.Debug("remote exec connected",
		"socket", c.socketPath,
		"flushed", len(queue),
	)
	go c.readLoop(connCtx, conn)
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	if c.dialFunc != nil {
		return c.dialFunc(ctx)
	}
	socketPath := c.socketPath
	httpClient := &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var dialer net.Dialer
				return dialer.DialContext(ctx, "unix", socketPath)
			},
		},
	}
	conn, _, err := websocket.Dial(ctx, "ws://guest/exec", &websocket.DialOptions{
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("dialing exec socket %s: %w", socketPath, err)
	}
	conn.SetReadLimit(readLimit)
	return conn, nil
}

// Exec starts command in the guest. On a Disconnected client it starts
// connecting in the background and queues the request; on a Closed
// client it fails with ErrConnectionClosed.
//
// Cancelling ctx rejects the execution with the context's error. The
// guest process is not signalled.
func (c *Client) Exec(ctx context.Context, command string, options ExecOptions) (*Exec, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	command, args, env := applyShims(c.shims, command, options.Args, options.Env)

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil, ErrConnectionClosed
	}
	id, err := c.allocateIDLocked()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	exec := newExec(id, c.maxOutput, c.metrics)
	c.sessions[id] = exec
	startConnect := c.state == StateDisconnected
	c.mu.Unlock()
	c.metrics.ExecSessionStarted()

	timeout := options.Timeout
	if timeout == 0 {
		timeout = c.defaultTimeout
	}
	var timer *clock.Timer
	if timeout > 0 {
		timer = c.clock.AfterFunc(timeout, func() {
			c.reject(exec, ErrTimeout)
		})
	}
	stopCtx := context.AfterFunc(ctx, func() {
		c.reject(exec, ctx.Err())
	})
	exec.setCancellation(timer, stopCtx)

	message, err := json.Marshal(ExecMessage{
		Type: MessageExec,
		ID:   id,
		Cmd:  command,
		Argv: args,
		Env:  env,
		Cwd:  options.Cwd,
	})
	if err != nil {
		c.reject(exec, err)
		return nil, fmt.Errorf("encoding exec message: %w", err)
	}
	if err := c.send(message); err != nil {
		c.reject(exec, err)
		return nil, err
	}

	if startConnect {
		go func() {
			connectCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.dialTimeout)
			defer cancel()
			if err := c.autoConnect(connectCtx); err != nil && !errors.Is(err, ErrConnectionClosed) {
				c.logger.Warn("remote exec connect failed", "error", err)
			}
		}()
	}
	return exec, nil
}

// allocateIDLocked returns the next free session id, skipping 0 and ids
// still in use after wraparound.
func (c *Client) allocateIDLocked() (uint32, error) {
	if uint64(len(c.sessions)) >= math.MaxUint32 {
		return 0, ErrTooManySessions
	}
	for {
		c.nextID++
		if c.nextID == 0 {
			continue
		}
		if _, busy := c.sessions[c.nextID]; !busy {
			return c.nextID, nil
		}
	}
}

// send writes a control message, or queues it while the connection is
// not yet up.
func (c *Client) send(message []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	switch c.state {
	case StateDisconnected, StateConnecting:
		c.queue = append(c.queue, message)
		c.mu.Unlock()
		return nil
	case StateClosed:
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	conn := c.conn
	c.mu.Unlock()

	// The read loop owns the connection context; a write that fails
	// here tears the connection down for everyone.
	if err := conn.Write(context.Background(), websocket.MessageText, message); err != nil {
		c.teardown(conn, fmt.Errorf("writing control message: %w", err))
		return ErrConnectionClosed
	}
	return nil
}

// reject removes exec from the session table and finishes it with err.
func (c *Client) reject(exec *Exec, err error) {
	c.removeSession(exec)
	exec.finish(ExecResult{}, err)
}

func (c *Client) removeSession(exec *Exec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessions[exec.id] == exec {
		delete(c.sessions, exec.id)
	}
}

func (c *Client) lookupSession(id uint32) *Exec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[id]
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		messageType, data, err := conn.Read(ctx)
		if err != nil {
			c.teardown(conn, err)
			return
		}
		switch messageType {
		case websocket.MessageBinary:
			c.handleFrame(data)
		case websocket.MessageText:
			c.handleControl(data)
		}
	}
}

func (c *Client) handleFrame(data []byte) {
	frame, err := DecodeFrame(data)
	if err != nil {
		c.logger.Warn("dropping malformed frame", "error", err, "length", len(data))
		c.metrics.ExecFrameDropped()
		return
	}
	exec := c.lookupSession(frame.Session)
	if exec == nil {
		c.metrics.ExecFrameDropped()
		return
	}
	if err := exec.appendFrame(frame.Channel, frame.Payload); err != nil {
		c.logger.Warn("rejecting remote exec",
			"session", frame.Session,
			"error", err,
		)
		c.reject(exec, err)
	}
}

func (c *Client) handleControl(data []byte) {
	var message inboundMessage
	if err := json.Unmarshal(data, &message); err != nil {
		c.logger.Warn("invalid control message", "error", err)
		return
	}

	switch message.Type {
	case MessageExecResponse:
		exec := c.lookupSession(message.ID)
		if exec == nil {
			c.logger.Debug("exec response for unknown session", "session", message.ID)
			return
		}
		result := ExecResult{ExitCode: message.ExitCode}
		if message.Signal != nil {
			result.Signal = *message.Signal
			result.HasSignal = true
		}
		c.removeSession(exec)
		exec.finish(result, nil)

	case MessageError:
		exec := c.lookupSession(message.ID)
		if message.ID == 0 || exec == nil {
			c.logger.Warn("remote exec error",
				"session", message.ID,
				"code", message.Code,
				"message", message.Message,
			)
			return
		}
		c.reject(exec, &ExecError{Code: message.Code, Message: message.Message})

	case MessageStatus:
		c.mu.Lock()
		c.status = StatusMessage{Type: message.Type, State: message.State, Message: message.Message}
		c.hasStatus = true
		c.mu.Unlock()
		c.logger.Debug("remote exec status", "state", message.State)

	default:
		c.logger.Debug("ignoring control message", "type", message.Type)
	}
}

// teardown moves the client to Closed and rejects every pending
// execution. conn identifies the connection that failed; a teardown for
// a connection that was already replaced is ignored.
func (c *Client) teardown(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.state == StateClosed || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	c.conn = nil
	cancel := c.connCancel
	c.connCancel = nil
	sessions := c.sessions
	c.sessions = make(map[uint32]*Exec)
	c.queue = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.CloseNow()
	}

	if errors.Is(cause, ErrConnectionClosed) || netutil.IsExpectedCloseError(cause) {
		c.logger.Debug("remote exec connection closed", "pending", len(sessions))
	} else {
		c.logger.Warn("remote exec connection failed",
			"error", cause,
			"pending", len(sessions),
		)
	}
	for _, exec := range sessions {
		exec.finish(ExecResult{}, ErrConnectionClosed)
	}
}

// Close closes the connection and rejects every pending execution with
// ErrConnectionClosed. A later Connect reconnects.
func (c *Client) Close() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		if err := conn.Close(websocket.StatusNormalClosure, "client closed"); err != nil && !netutil.IsExpectedCloseError(err) {
			c.logger.Debug("closing remote exec connection", "error", err)
		}
	}
	c.teardown(conn, ErrConnectionClosed)
}
