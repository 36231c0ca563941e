package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testConfig() Config {
	return Config{EndpointURL: "wss://example.com/feed"}
}

func activeSession() StaticSession {
	return StaticSession{UserID: "user-1", Active: true}
}

// nopHandler ignores every frame.
type nopHandler struct{}

func (nopHandler) Dispatch(env Envelope) {}

// recordingHandler collects dispatched envelopes.
type recordingHandler struct {
	mu   sync.Mutex
	envs []Envelope
}

func (h *recordingHandler) Dispatch(env Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.envs = append(h.envs, env)
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.envs)
}

// fakeConn is an in-memory Conn driven by the test.
type fakeConn struct {
	mu     sync.Mutex
	reads  chan []byte
	done   chan struct{}
	writes []any
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		reads: make(chan []byte, 16),
		done:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.reads:
		return data, nil
	case <-c.done:
		return nil, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrNotConnected
	}
	c.writes = append(c.writes, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) writtenMessages() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.writes))
	copy(out, c.writes)
	return out
}

// fakeDialer replays a scripted sequence of outcomes; once the script is
// exhausted, every further dial fails.
type fakeDialer struct {
	mu       sync.Mutex
	script   []error // nil entry = successful dial
	dials    int
	conns    []*fakeConn
	lastURL  string
	failWith error
}

func newFakeDialer(script ...error) *fakeDialer {
	return &fakeDialer{script: script, failWith: errors.New("dial refused")}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lastURL = url
	idx := d.dials
	d.dials++

	if idx < len(d.script) && d.script[idx] == nil {
		conn := newFakeConn()
		d.conns = append(d.conns, conn)
		return conn, nil
	}
	if idx < len(d.script) {
		return nil, d.script[idx]
	}
	return nil, d.failWith
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

// timerRecorder captures scheduled reconnect timers so tests can fire them
// deterministically.
type timerRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
	fns    []func()
}

func (r *timerRecorder) afterFunc(d time.Duration, f func()) *time.Timer {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	r.fns = append(r.fns, f)
	// The returned timer never fires on its own; tests drive the callbacks.
	return time.AfterFunc(24*time.Hour, func() {})
}

func (r *timerRecorder) scheduled() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fns)
}

func (r *timerRecorder) fire(i int) {
	r.mu.Lock()
	f := r.fns[i]
	r.mu.Unlock()
	f()
}

func (r *timerRecorder) recordedDelays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.delays))
	copy(out, r.delays)
	return out
}

func waitForState(t *testing.T, c *Controller, want ConnectionState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.State() == want
	}, 2*time.Second, 5*time.Millisecond, "waiting for state %s, still %s", want, c.State())
}

func waitForScheduled(t *testing.T, rec *timerRecorder, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return rec.scheduled() >= n
	}, 2*time.Second, 5*time.Millisecond, "waiting for %d scheduled timers", n)
}

func TestController_ConnectRequiresIdentity(t *testing.T) {
	t.Parallel()

	dialer := newFakeDialer()
	c := New(testConfig(), StaticSession{}, nopHandler{},
		WithDialer(dialer), WithLogger(discardLogger()))
	defer c.Close()

	err := c.Connect()
	require.ErrorIs(t, err, ErrNoActiveSession)
	assert.Equal(t, StateDisconnected, c.State())
	assert.Zero(t, dialer.dialCount())
}

func TestController_ConnectAndHandshake(t *testing.T) {
	t.Parallel()

	dialer := newFakeDialer(nil)
	c := New(testConfig(), activeSession(), nopHandler{},
		WithDialer(dialer), WithLogger(discardLogger()))
	defer c.Close()

	require.NoError(t, c.Connect())
	waitForState(t, c, StateConnected)

	// The endpoint carries the authenticated principal.
	assert.Contains(t, dialer.lastURL, "principal=user-1")

	// Exactly one subscription handshake with the default channel set.
	writes := dialer.conn(0).writtenMessages()
	require.Len(t, writes, 1)
	sub, ok := writes[0].(subscribeMessage)
	require.True(t, ok)
	assert.Equal(t, messageTypeSubscribe, sub.Type)
	assert.Equal(t, DefaultChannels, sub.Channels)
}

func TestController_DuplicateConnectIsNoOp(t *testing.T) {
	t.Parallel()

	dialer := newFakeDialer(nil)
	c := New(testConfig(), activeSession(), nopHandler{},
		WithDialer(dialer), WithLogger(discardLogger()))
	defer c.Close()

	require.NoError(t, c.Connect())
	waitForState(t, c, StateConnected)

	require.NoError(t, c.Connect())
	assert.Equal(t, StateConnected, c.State())
	assert.Equal(t, 1, dialer.dialCount())
}

func TestController_InboundFramesReachHandler(t *testing.T) {
	t.Parallel()

	dialer := newFakeDialer(nil)
	handler := &recordingHandler{}
	c := New(testConfig(), activeSession(), handler,
		WithDialer(dialer), WithLogger(discardLogger()))
	defer c.Close()

	require.NoError(t, c.Connect())
	waitForState(t, c, StateConnected)

	conn := dialer.conn(0)
	conn.reads <- []byte(`{"type":"notification","data":{"title":"hi"}}`)
	conn.reads <- []byte(`not json at all`) // dropped, must not kill the loop
	conn.reads <- []byte(`{"type":"broadcast","data":{"message":"all hands"}}`)

	require.Eventually(t, func() bool { return handler.count() == 2 }, 2*time.Second, 5*time.Millisecond)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	assert.Equal(t, MessageTypeNotification, handler.envs[0].Type)
	assert.Equal(t, MessageTypeBroadcast, handler.envs[1].Type)
}

func TestController_BackoffSequenceUntilFailed(t *testing.T) {
	t.Parallel()

	dialer := newFakeDialer() // every dial fails
	c := New(testConfig(), activeSession(), nopHandler{},
		WithDialer(dialer), WithLogger(discardLogger()))
	defer c.Close()

	rec := &timerRecorder{}
	c.afterFunc = rec.afterFunc

	require.NoError(t, c.Connect())

	// Five retries get scheduled; firing the fifth one leads to the sixth
	// consecutive failure, which exhausts the attempt cap.
	for i := range 5 {
		waitForScheduled(t, rec, i+1)
		rec.fire(i)
	}
	waitForState(t, c, StateFailed)

	want := []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		16000 * time.Millisecond,
	}
	assert.Equal(t, want, rec.recordedDelays())
	assert.Equal(t, 6, dialer.dialCount())

	// Failed is terminal: no more timers, no more dials.
	assert.Equal(t, 5, rec.scheduled())
}

func TestController_BackoffDelayIsCapped(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxAttempts = 10
	dialer := newFakeDialer()
	c := New(cfg, activeSession(), nopHandler{},
		WithDialer(dialer), WithLogger(discardLogger()))
	defer c.Close()

	rec := &timerRecorder{}
	c.afterFunc = rec.afterFunc

	require.NoError(t, c.Connect())

	for i := range 8 {
		waitForScheduled(t, rec, i+1)
		rec.fire(i)
	}
	waitForScheduled(t, rec, 9)

	delays := rec.recordedDelays()
	for _, d := range delays {
		assert.LessOrEqual(t, d, 30*time.Second)
	}
	assert.Equal(t, 30*time.Second, delays[len(delays)-1])
}

func TestController_ConnectedResetsBackoff(t *testing.T) {
	t.Parallel()

	// Two failures, then a successful connect.
	dialer := newFakeDialer(errors.New("down"), errors.New("down"), nil)
	c := New(testConfig(), activeSession(), nopHandler{},
		WithDialer(dialer), WithLogger(discardLogger()))
	defer c.Close()

	rec := &timerRecorder{}
	c.afterFunc = rec.afterFunc

	require.NoError(t, c.Connect())

	waitForScheduled(t, rec, 1)
	rec.fire(0)
	waitForScheduled(t, rec, 2)
	rec.fire(1)

	waitForState(t, c, StateConnected)

	c.mu.Lock()
	attempts, delay := c.attempts, c.delay
	c.mu.Unlock()
	assert.Zero(t, attempts)
	assert.Equal(t, time.Second, delay)
}

func TestController_ReconnectsAfterEstablishedConnectionDrops(t *testing.T) {
	t.Parallel()

	dialer := newFakeDialer(nil, nil)
	c := New(testConfig(), activeSession(), nopHandler{},
		WithDialer(dialer), WithLogger(discardLogger()))
	defer c.Close()

	rec := &timerRecorder{}
	c.afterFunc = rec.afterFunc

	require.NoError(t, c.Connect())
	waitForState(t, c, StateConnected)

	// Kill the live connection; the read loop reports the error.
	dialer.conn(0).Close()
	waitForState(t, c, StateReconnecting)

	waitForScheduled(t, rec, 1)
	rec.fire(0)
	waitForState(t, c, StateConnected)
	assert.Equal(t, 2, dialer.dialCount())
}

func TestController_TeardownCancelsPendingRetry(t *testing.T) {
	t.Parallel()

	dialer := newFakeDialer()
	c := New(testConfig(), activeSession(), nopHandler{},
		WithDialer(dialer), WithLogger(discardLogger()))

	rec := &timerRecorder{}
	c.afterFunc = rec.afterFunc

	require.NoError(t, c.Connect())
	waitForScheduled(t, rec, 1)
	waitForState(t, c, StateReconnecting)

	dialsBefore := dialer.dialCount()
	require.NoError(t, c.Close())
	assert.Equal(t, StateDisconnected, c.State())

	c.mu.Lock()
	assert.Nil(t, c.retryTimer)
	c.mu.Unlock()

	// A timer callback racing the teardown must be ignored: no transition,
	// no new dial.
	rec.fire(0)
	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, dialsBefore, dialer.dialCount())
}

func TestController_TeardownClosesLiveConnection(t *testing.T) {
	t.Parallel()

	dialer := newFakeDialer(nil)
	c := New(testConfig(), activeSession(), nopHandler{},
		WithDialer(dialer), WithLogger(discardLogger()))

	require.NoError(t, c.Connect())
	waitForState(t, c, StateConnected)

	require.NoError(t, c.Close())
	assert.Equal(t, StateDisconnected, c.State())
	assert.True(t, dialer.conn(0).isClosed())

	// Close is idempotent.
	require.NoError(t, c.Close())
}

func TestController_StaleDialOutcomeIsDropped(t *testing.T) {
	t.Parallel()

	dialer := newFakeDialer()
	c := New(testConfig(), activeSession(), nopHandler{},
		WithDialer(dialer), WithLogger(discardLogger()))
	defer c.Close()

	stale := newFakeConn()
	c.handleSocketOpen(42, stale) // generation that never existed

	assert.Equal(t, StateDisconnected, c.State())
	assert.True(t, stale.isClosed())
}

func TestController_Send(t *testing.T) {
	t.Parallel()

	t.Run("while connected writes the frame", func(t *testing.T) {
		t.Parallel()

		dialer := newFakeDialer(nil)
		c := New(testConfig(), activeSession(), nopHandler{},
			WithDialer(dialer), WithLogger(discardLogger()))
		defer c.Close()

		require.NoError(t, c.Connect())
		waitForState(t, c, StateConnected)

		c.Send("mark_read", map[string]string{"id": "n-1"})

		writes := dialer.conn(0).writtenMessages()
		require.Len(t, writes, 2) // handshake + send
		out, ok := writes[1].(outboundMessage)
		require.True(t, ok)
		assert.Equal(t, "mark_read", out.Type)
	})

	t.Run("while disconnected is a silent no-op", func(t *testing.T) {
		t.Parallel()

		dialer := newFakeDialer()
		c := New(testConfig(), activeSession(), nopHandler{},
			WithDialer(dialer), WithLogger(discardLogger()))
		defer c.Close()

		assert.NotPanics(t, func() {
			c.Send("mark_read", map[string]string{"id": "n-1"})
		})
		assert.Equal(t, StateDisconnected, c.State())
		assert.Zero(t, dialer.dialCount())
	})
}

func TestController_StateChangesAreBroadcast(t *testing.T) {
	t.Parallel()

	dialer := newFakeDialer(nil)
	c := New(testConfig(), activeSession(), nopHandler{},
		WithDialer(dialer), WithLogger(discardLogger()))
	defer c.Close()

	ctx := context.Background()
	sub := c.SubscribeStates(ctx)

	require.NoError(t, c.Connect())

	var seen []ConnectionState
	for state := range sub.Receive(ctx) {
		seen = append(seen, state.Data)
		if state.Data == StateConnected {
			break
		}
	}
	assert.Equal(t, []ConnectionState{StateConnecting, StateConnected}, seen)
}

func TestController_HandlerPanicDoesNotKillProcess(t *testing.T) {
	t.Parallel()

	dialer := newFakeDialer(nil)
	panicking := panicHandler{}
	c := New(testConfig(), activeSession(), panicking,
		WithDialer(dialer), WithLogger(discardLogger()))
	defer c.Close()

	rec := &timerRecorder{}
	c.afterFunc = rec.afterFunc

	require.NoError(t, c.Connect())
	waitForState(t, c, StateConnected)

	dialer.conn(0).reads <- []byte(`{"type":"notification","data":{}}`)

	// The panic is contained and treated as a socket error.
	waitForState(t, c, StateReconnecting)
}

type panicHandler struct{}

func (panicHandler) Dispatch(env Envelope) {
	panic(fmt.Sprintf("boom on %s", env.Type))
}
