// Package realtime owns the client side of the brainstorm gateway's event
// channel: per-namespace websocket connections with bounded exponential
// reconnect, outbound commands, and the session tracker that folds inbound
// events into session state through the reducer.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"

	apperrors "github.com/stormloop-dev/stormloop/pkg/errors"
)

// Status describes the connectivity of one namespace.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
	StatusDisconnected Status = "disconnected"
	StatusFailed       Status = "failed"
)

// Handler receives every inbound frame of a namespace, serially, in arrival
// order. It must not block for long; the read loop delivers one frame at a
// time.
type Handler func(event string, payload json.RawMessage)

// Options configures a Manager.
type Options struct {
	// URL is the gateway base, e.g. "ws://localhost:3000". The namespace
	// is appended as a path.
	URL string

	DialTimeout time.Duration
	BackoffBase time.Duration
	BackoffCap  time.Duration
	MaxAttempts int

	// TokenFunc supplies the bearer token for the handshake, when set.
	TokenFunc func() string

	Logger logr.Logger

	// OnStatus is invoked on every connectivity change of a namespace.
	OnStatus func(namespace string, status Status)

	// OnFatal is invoked once when a namespace exhausts its reconnect
	// budget. No further automatic retries happen; the caller may call
	// Connect again.
	OnFatal func(namespace string, err error)
}

func (o *Options) withDefaults() {
	if o.DialTimeout == 0 {
		o.DialTimeout = 20 * time.Second
	}
	if o.BackoffBase == 0 {
		o.BackoffBase = DefaultBackoffBase
	}
	if o.BackoffCap == 0 {
		o.BackoffCap = DefaultBackoffCap
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Logger.GetSink() == nil {
		o.Logger = logr.Discard()
	}
}

// Manager owns at most one connection per namespace.
type Manager struct {
	opts Options

	mu    sync.Mutex
	conns map[string]*Conn
}

// NewManager creates a connection manager.
func NewManager(opts Options) *Manager {
	opts.withDefaults()
	return &Manager{
		opts:  opts,
		conns: make(map[string]*Conn),
	}
}

// Connect establishes (or returns) the connection for a namespace. The
// initial dial is retried with the same backoff budget as reconnects;
// cancelling ctx aborts the attempt without scheduling further retries.
func (m *Manager) Connect(ctx context.Context, namespace string, handler Handler) (*Conn, error) {
	m.mu.Lock()
	if existing, ok := m.conns[namespace]; ok {
		m.mu.Unlock()
		// Another caller owns this namespace, possibly still dialing.
		// Wait for its dial to settle instead of racing a second socket.
		select {
		case <-ctx.Done():
			return nil, apperrors.New(apperrors.ErrCodeConnection, "connect cancelled", ctx.Err())
		case <-existing.ready:
		}
		if existing.isConnected() {
			return existing, nil
		}
		return nil, apperrors.New(apperrors.ErrCodeConnection,
			fmt.Sprintf("namespace %s is not connected", namespace), existing.dialError())
	}
	conn := &Conn{
		namespace: namespace,
		mgr:       m,
		handler:   handler,
		log:       m.opts.Logger.WithName("realtime").WithValues("namespace", namespace),
		ready:     make(chan struct{}),
	}
	m.conns[namespace] = conn
	m.mu.Unlock()

	m.setStatus(namespace, StatusConnecting)

	ws, err := conn.dialWithRetry(ctx)
	if err != nil {
		conn.setDialError(err)
		close(conn.ready)
		m.setStatus(namespace, StatusFailed)
		m.removeConn(namespace, conn)
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	conn.mu.Lock()
	conn.ws = ws
	conn.connected = true
	conn.cancel = cancel
	conn.mu.Unlock()
	close(conn.ready)

	m.setStatus(namespace, StatusConnected)
	go conn.readLoop(loopCtx)
	return conn, nil
}

// Disconnect closes the connection for a namespace and cancels any pending
// reconnect. Safe to call for an unknown namespace.
func (m *Manager) Disconnect(namespace string) {
	m.mu.Lock()
	conn, ok := m.conns[namespace]
	if ok {
		delete(m.conns, namespace)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	conn.close()
	m.setStatus(namespace, StatusDisconnected)
}

// DisconnectAll closes every namespace connection.
func (m *Manager) DisconnectAll() {
	m.mu.Lock()
	conns := m.conns
	m.conns = make(map[string]*Conn)
	m.mu.Unlock()
	for namespace, conn := range conns {
		conn.close()
		m.setStatus(namespace, StatusDisconnected)
	}
}

// IsConnected reports whether the namespace has a live connection.
func (m *Manager) IsConnected(namespace string) bool {
	m.mu.Lock()
	conn, ok := m.conns[namespace]
	m.mu.Unlock()
	return ok && conn.isConnected()
}

func (m *Manager) setStatus(namespace string, status Status) {
	if m.opts.OnStatus != nil {
		m.opts.OnStatus(namespace, status)
	}
}

func (m *Manager) removeConn(namespace string, conn *Conn) {
	m.mu.Lock()
	if m.conns[namespace] == conn {
		delete(m.conns, namespace)
	}
	m.mu.Unlock()
}

// Conn is one namespace connection. Frames are delivered to the handler
// serially; writes are mutex-guarded.
type Conn struct {
	namespace string
	mgr       *Manager
	handler   Handler
	log       logr.Logger

	// ready is closed once the initial dial settles, successfully or not.
	ready chan struct{}

	mu        sync.Mutex
	ws        *websocket.Conn
	connected bool
	closed    bool
	cancel    context.CancelFunc
	dialErr   error
}

// Namespace returns the namespace this connection serves.
func (c *Conn) Namespace() string {
	return c.namespace
}

func (c *Conn) isConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && !c.closed
}

func (c *Conn) setDialError(err error) {
	c.mu.Lock()
	c.dialErr = err
	c.mu.Unlock()
}

func (c *Conn) dialError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dialErr
}

// Emit sends one outbound frame. Returns a connection error when the
// namespace is not currently connected.
func (c *Conn) Emit(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return apperrors.New(apperrors.ErrCodeValidation, "failed to marshal event payload", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.connected || c.ws == nil {
		return apperrors.New(apperrors.ErrCodeConnection,
			fmt.Sprintf("namespace %s is not connected", c.namespace), nil)
	}
	if err := c.ws.WriteJSON(frame{Event: event, Data: payload}); err != nil {
		return apperrors.New(apperrors.ErrCodeConnection, "failed to write frame", err)
	}
	return nil
}

// Join subscribes this connection to a session room.
func (c *Conn) Join(sessionID int) error {
	return c.Emit(outRoomJoin, roomPayload{SessionID: sessionID})
}

// Leave unsubscribes this connection from a session room.
func (c *Conn) Leave(sessionID int) error {
	return c.Emit(outRoomLeave, roomPayload{SessionID: sessionID})
}

func (c *Conn) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.connected = false
	if c.cancel != nil {
		c.cancel()
	}
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	if ws != nil {
		ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		ws.Close()
	}
}

func (c *Conn) readLoop(ctx context.Context) {
	for {
		c.mu.Lock()
		ws := c.ws
		c.mu.Unlock()
		if ws == nil {
			return
		}

		_, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || !c.markDisconnected() {
				return
			}
			c.log.V(1).Info("connection lost, reconnecting", "error", err.Error())
			c.mgr.setStatus(c.namespace, StatusReconnecting)
			go c.reconnectLoop(ctx)
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.log.V(1).Info("dropping unparseable frame", "error", err.Error())
			continue
		}
		if c.handler != nil {
			c.handler(f.Event, f.Data)
		}
	}
}

// markDisconnected flips connected off and reports whether a reconnect
// should be attempted (false after an explicit close).
func (c *Conn) markDisconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return !c.closed
}

// reconnectLoop retries the dial on the backoff schedule until success,
// cancellation, or attempt exhaustion. Exhaustion reports a terminal
// connection error through OnFatal; nothing retries after that.
func (c *Conn) reconnectLoop(ctx context.Context) {
	ws, err := c.dialWithRetry(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.mgr.setStatus(c.namespace, StatusFailed)
		c.mgr.removeConn(c.namespace, c)
		if c.mgr.opts.OnFatal != nil {
			c.mgr.opts.OnFatal(c.namespace, err)
		}
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ws.Close()
		return
	}
	c.ws = ws
	c.connected = true
	c.mu.Unlock()

	c.mgr.setStatus(c.namespace, StatusConnected)
	c.readLoop(ctx)
}

// dialWithRetry dials the namespace endpoint, retrying on the backoff
// schedule up to the attempt budget. The first attempt happens immediately.
func (c *Conn) dialWithRetry(ctx context.Context) (*websocket.Conn, error) {
	opts := c.mgr.opts
	policy := newBackoffPolicy(opts.BackoffBase, opts.BackoffCap)

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := policy.NextBackOff()
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, apperrors.New(apperrors.ErrCodeConnection, "connect cancelled", ctx.Err())
			case <-timer.C:
			}
		}

		ws, err := c.dial(ctx)
		if err == nil {
			return ws, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, apperrors.New(apperrors.ErrCodeConnection, "connect cancelled", ctx.Err())
		}
		c.log.V(1).Info("dial failed", "attempt", attempt, "error", err.Error())
	}

	return nil, apperrors.New(apperrors.ErrCodeConnection,
		fmt.Sprintf("namespace %s unreachable after %d attempts", c.namespace, opts.MaxAttempts), lastErr)
}

func (c *Conn) dial(ctx context.Context) (*websocket.Conn, error) {
	opts := c.mgr.opts
	dialer := websocket.Dialer{HandshakeTimeout: opts.DialTimeout}

	var header map[string][]string
	if opts.TokenFunc != nil {
		if token := opts.TokenFunc(); token != "" {
			header = map[string][]string{"Authorization": {"Bearer " + token}}
		}
	}

	ws, _, err := dialer.DialContext(ctx, opts.URL+c.namespace, header)
	return ws, err
}
