package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/omniboard/livefeed/pkg/broadcast"
	"github.com/omniboard/livefeed/pkg/logger"
	"github.com/omniboard/livefeed/pkg/statemachine"
)

// ConnectionState is the connection lifecycle state. Exactly one value holds
// at any time; it is owned exclusively by the Controller.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
	// StateFailed is terminal for the controller instance: no further
	// automatic retries happen until a new session creates a new controller.
	StateFailed ConnectionState = "failed"
)

func (s ConnectionState) state() statemachine.StringState {
	return statemachine.StringState(s)
}

const (
	eventSessionActive = statemachine.StringEvent("session_active")
	eventSocketOpen    = statemachine.StringEvent("socket_open")
	eventSocketError   = statemachine.StringEvent("socket_error")
	eventRetryElapsed  = statemachine.StringEvent("retry_elapsed")
	eventTeardown      = statemachine.StringEvent("teardown")
)

// stateBuffer is the per-subscriber buffer for connection state updates.
const stateBuffer = 8

// Controller owns the connection lifecycle: it dials, recovers from
// disconnects with capped exponential backoff, performs the subscription
// handshake, and pumps inbound frames into the FrameHandler.
//
// All lifecycle events (socket callbacks, retry timers, explicit teardown)
// are serialized under one mutex, so transitions and their side effects never
// interleave. The socket is owned exclusively by the controller; no other
// component holds a reference to it.
type Controller struct {
	cfg     Config
	session SessionProvider
	handler FrameHandler
	dialer  Dialer
	logger  *slog.Logger

	machine statemachine.StateMachine
	states  *broadcast.MemoryBroadcaster[ConnectionState]

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	conn       Conn
	gen        uint64 // connection generation; callbacks from stale dials are dropped
	attempts   int
	delay      time.Duration
	retryTimer *time.Timer

	// afterFunc schedules the reconnect timer; replaced in tests to drive
	// the backoff path without real time.
	afterFunc func(d time.Duration, f func()) *time.Timer
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger for the Controller.
func WithLogger(log *slog.Logger) Option {
	return func(c *Controller) {
		if log != nil {
			c.logger = log
		}
	}
}

// WithDialer overrides the transport dialer. Tests use this to drive the
// state machine without a real socket.
func WithDialer(d Dialer) Option {
	return func(c *Controller) {
		if d != nil {
			c.dialer = d
		}
	}
}

// New creates a controller for the given session. The controller starts in
// StateDisconnected; call Connect once the session is active, and Close when
// the session ends.
func New(cfg Config, session SessionProvider, handler FrameHandler, opts ...Option) *Controller {
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:       cfg,
		session:   session,
		handler:   handler,
		dialer:    &WebSocketDialer{HandshakeTimeout: cfg.HandshakeTimeout},
		logger:    slog.Default(),
		states:    broadcast.NewMemoryBroadcaster[ConnectionState](stateBuffer),
		ctx:       ctx,
		cancel:    cancel,
		delay:     cfg.InitialBackoff,
		afterFunc: time.AfterFunc,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.machine = c.buildMachine()
	return c
}

// buildMachine declares the lifecycle as a transition table. Transition
// ordering matters for the socket-error branches: retry wins while under the
// attempt cap, fail takes over once it is exhausted.
func (c *Controller) buildMachine() statemachine.StateMachine {
	hasIdentity := func(ctx context.Context, from statemachine.State, event statemachine.Event, data any) bool {
		_, ok := c.session.Identity()
		return ok && c.session.IsActive()
	}
	underAttemptCap := func(ctx context.Context, from statemachine.State, event statemachine.Event, data any) bool {
		return c.attempts < c.cfg.MaxAttempts
	}

	return statemachine.MustNew(StateDisconnected.state(),
		statemachine.WithTransition(StateDisconnected.state(), StateConnecting.state(), eventSessionActive,
			statemachine.WithGuard(hasIdentity),
			statemachine.WithAction(c.actionDial),
		),
		statemachine.WithTransition(StateConnecting.state(), StateConnected.state(), eventSocketOpen,
			statemachine.WithAction(c.actionEstablish),
		),
		statemachine.WithTransition(StateConnecting.state(), StateReconnecting.state(), eventSocketError,
			statemachine.WithGuard(underAttemptCap),
			statemachine.WithAction(c.actionScheduleRetry),
		),
		statemachine.WithTransition(StateConnecting.state(), StateFailed.state(), eventSocketError,
			statemachine.WithAction(c.actionFail),
		),
		statemachine.WithTransition(StateConnected.state(), StateReconnecting.state(), eventSocketError,
			statemachine.WithGuard(underAttemptCap),
			statemachine.WithAction(c.actionScheduleRetry),
		),
		statemachine.WithTransition(StateConnected.state(), StateFailed.state(), eventSocketError,
			statemachine.WithAction(c.actionFail),
		),
		statemachine.WithTransition(StateReconnecting.state(), StateConnecting.state(), eventRetryElapsed,
			statemachine.WithAction(c.actionRetryDial),
		),
		statemachine.WithTransition(StateConnecting.state(), StateDisconnected.state(), eventTeardown,
			statemachine.WithAction(c.actionTeardown),
		),
		statemachine.WithTransition(StateConnected.state(), StateDisconnected.state(), eventTeardown,
			statemachine.WithAction(c.actionTeardown),
		),
		statemachine.WithTransition(StateReconnecting.state(), StateDisconnected.state(), eventTeardown,
			statemachine.WithAction(c.actionTeardown),
		),
	)
}

// Connect drives the controller out of StateDisconnected once the session is
// active. Without an authenticated principal it logs, refuses, and stays
// disconnected. Duplicate calls while already connecting or connected are
// harmless no-ops.
func (c *Controller) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.session.Identity(); !ok || !c.session.IsActive() {
		c.logger.LogAttrs(c.ctx, slog.LevelWarn, "Refusing to connect without an authenticated session")
		return ErrNoActiveSession
	}

	c.fire(eventSessionActive, nil)
	return nil
}

// Close tears the controller down: it cancels any pending reconnect timer,
// closes any open socket, and moves to StateDisconnected. Teardown wins over
// every pending transition. Close is idempotent.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.fire(eventTeardown, nil)
	c.mu.Unlock()

	c.cancel()
	return c.states.Close()
}

// Send writes an application message while connected. While in any other
// state it logs a warning and drops the message: no error, no queueing.
// Messages sent while disconnected are silently lost by design.
func (c *Controller) Send(msgType string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ConnectionState(c.machine.Current().Name()) != StateConnected || c.conn == nil {
		c.logger.LogAttrs(c.ctx, slog.LevelWarn, "Dropping outbound message while not connected",
			logger.EventType(msgType),
			logger.State(c.machine.Current().Name()),
		)
		return
	}

	if err := c.conn.WriteJSON(outboundMessage{Type: msgType, Data: data}); err != nil {
		// The read loop will observe the dead socket and drive reconnection.
		c.logger.LogAttrs(c.ctx, slog.LevelWarn, "Outbound write failed",
			logger.EventType(msgType),
			logger.Error(err),
		)
	}
}

// State returns the current connection state.
func (c *Controller) State() ConnectionState {
	return ConnectionState(c.machine.Current().Name())
}

// SubscribeStates returns a subscriber delivering connection state changes.
// The UI uses this to surface StateFailed as a persistent error; the
// controller itself never talks to the alert surface.
func (c *Controller) SubscribeStates(ctx context.Context) broadcast.Subscriber[ConnectionState] {
	return c.states.Subscribe(ctx)
}

// fire runs one event through the machine under c.mu. Events with no valid
// transition in the current state are dropped: stale socket callbacks and
// duplicate triggers are expected, not errors.
func (c *Controller) fire(event statemachine.Event, data any) {
	from := c.machine.Current().Name()

	if err := c.machine.Fire(c.ctx, event, data); err != nil {
		c.logger.LogAttrs(c.ctx, slog.LevelDebug, "Ignoring lifecycle event",
			logger.EventType(event.Name()),
			logger.State(from),
			logger.Error(err),
		)
		return
	}

	to := c.machine.Current().Name()
	if to != from {
		c.logger.LogAttrs(c.ctx, slog.LevelInfo, "Connection state changed",
			slog.String("from", from),
			logger.State(to),
		)
		_ = c.states.Broadcast(c.ctx, broadcast.Message[ConnectionState]{Data: ConnectionState(to)})
	}
}

// Transition actions. All of them run with c.mu held.

func (c *Controller) actionDial(ctx context.Context, from, to statemachine.State, event statemachine.Event, data any) error {
	c.cancelRetryTimer()

	identity, ok := c.session.Identity()
	if !ok {
		return ErrNoActiveSession
	}

	c.gen++
	gen := c.gen
	endpoint := c.cfg.endpointFor(identity)
	go c.dial(gen, endpoint)
	return nil
}

func (c *Controller) actionRetryDial(ctx context.Context, from, to statemachine.State, event statemachine.Event, data any) error {
	c.attempts++
	c.logger.LogAttrs(c.ctx, slog.LevelInfo, "Reconnecting",
		logger.Attempt(c.attempts),
	)
	return c.actionDial(ctx, from, to, event, data)
}

func (c *Controller) actionEstablish(ctx context.Context, from, to statemachine.State, event statemachine.Event, data any) error {
	conn, ok := data.(Conn)
	if !ok {
		return fmt.Errorf("socket open event without a connection")
	}

	c.cancelRetryTimer()
	c.conn = conn
	c.attempts = 0
	c.delay = c.cfg.InitialBackoff

	// Subscription handshake: fire-and-forget. The server delivers only
	// what this principal is authorized to see; no client-side filtering.
	if err := conn.WriteJSON(subscribeMessage{Type: messageTypeSubscribe, Channels: c.cfg.Channels}); err != nil {
		c.logger.LogAttrs(c.ctx, slog.LevelWarn, "Subscription handshake write failed",
			logger.Error(err),
		)
	}

	go c.readPump(c.gen, conn)
	return nil
}

func (c *Controller) actionScheduleRetry(ctx context.Context, from, to statemachine.State, event statemachine.Event, data any) error {
	c.closeConn()

	delay := c.delay
	c.delay = min(c.delay*2, c.cfg.MaxBackoff)

	c.cancelRetryTimer()
	c.retryTimer = c.afterFunc(delay, c.handleRetryElapsed)

	c.logger.LogAttrs(c.ctx, slog.LevelInfo, "Connection lost, retry scheduled",
		logger.Attempt(c.attempts),
		logger.Duration(delay),
	)
	return nil
}

func (c *Controller) actionFail(ctx context.Context, from, to statemachine.State, event statemachine.Event, data any) error {
	c.cancelRetryTimer()
	c.closeConn()
	c.gen++

	c.logger.LogAttrs(c.ctx, slog.LevelError, "Live update feed unavailable: reconnect attempts exhausted",
		logger.Attempt(c.attempts),
	)
	return nil
}

func (c *Controller) actionTeardown(ctx context.Context, from, to statemachine.State, event statemachine.Event, data any) error {
	c.cancelRetryTimer()
	c.closeConn()
	c.gen++
	return nil
}

// dial opens the transport off the lock and reports the outcome back into
// the state machine.
func (c *Controller) dial(gen uint64, endpoint string) {
	conn, err := c.dialer.Dial(c.ctx, endpoint)
	if err != nil {
		c.handleSocketError(gen, err)
		return
	}
	c.handleSocketOpen(gen, conn)
}

// readPump delivers inbound frames to the handler until the connection dies.
// Undecodable frames are dropped; a handler panic is contained so a bad frame
// can never take the process down with it.
func (c *Controller) readPump(gen uint64, conn Conn) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.LogAttrs(c.ctx, slog.LevelError, "Recovered from panic while handling frame",
				slog.Any("panic", r),
			)
			_ = conn.Close()
			c.handleSocketError(gen, fmt.Errorf("frame handler panic: %v", r))
		}
	}()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			c.handleSocketError(gen, err)
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.LogAttrs(c.ctx, slog.LevelWarn, "Dropping undecodable frame",
				logger.Error(err),
			)
			continue
		}

		c.handler.Dispatch(env)
	}
}

func (c *Controller) handleSocketOpen(gen uint64, conn Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		// A teardown raced this dial; the session is gone.
		_ = conn.Close()
		return
	}

	c.fire(eventSocketOpen, conn)
}

func (c *Controller) handleSocketError(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return
	}

	c.logger.LogAttrs(c.ctx, slog.LevelDebug, "Socket error",
		logger.Error(err),
	)
	c.fire(eventSocketError, err)
}

func (c *Controller) handleRetryElapsed() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.retryTimer = nil
	c.fire(eventRetryElapsed, nil)
}

// cancelRetryTimer enforces the single-pending-timer invariant: entering any
// state other than Reconnecting cancels a previously scheduled retry.
func (c *Controller) cancelRetryTimer() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

func (c *Controller) closeConn() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}
