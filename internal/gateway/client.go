// ABOUTME: WebSocket gateway client owning one persistent connection.
// ABOUTME: Runs the single reader loop and routes frames to the correlator or broadcaster.

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// ErrNotConnected indicates an operation was attempted before Connect
// succeeded or after the connection was lost.
var ErrNotConnected = errors.New("gateway: not connected")

// ErrConnectionClosed resolves pending requests when the connection is
// lost or the client is disposed.
var ErrConnectionClosed = errors.New("gateway: connection closed")

// ErrTimeout indicates the client-side deadline for a request elapsed
// before a response arrived. It is a cancellation-class outcome,
// distinct from an agent-reported error.
var ErrTimeout = errors.New("gateway: request timed out")

const (
	defaultCallTimeout = 30 * time.Second
	maxFrameSize       = 1 << 20
)

// Config holds gateway client configuration.
type Config struct {
	// URL is the gateway WebSocket endpoint, e.g. "ws://host:18789/gateway".
	URL string

	// Token, when non-empty, is sent as a bearer credential at connect time.
	Token string

	// CallTimeout bounds requests whose context carries no deadline.
	// Zero means 30s.
	CallTimeout time.Duration

	Logger *slog.Logger
}

// Client is a gateway protocol client over one WebSocket connection.
// Requests from multiple goroutines are safe and resolve independently;
// the write path is serialized, and exactly one reader loop classifies
// every inbound frame as either a response or a push event.
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool

	writeMu sync.Mutex

	pending *pendingTable
	events  *Broadcaster
}

// NewClient creates a client for the given gateway. Call Connect before
// issuing requests.
func NewClient(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "gateway")

	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}

	return &Client{
		cfg:     cfg,
		logger:  logger,
		pending: newPendingTable(),
		events:  NewBroadcaster(logger),
	}
}

// Connect establishes the WebSocket connection, attaching the bearer
// token when one is configured. There is no automatic retry; the caller
// decides whether and when to reconnect.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	opts := &websocket.DialOptions{HTTPHeader: http.Header{}}
	if c.cfg.Token != "" {
		opts.HTTPHeader.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	conn, _, err := websocket.Dial(ctx, c.cfg.URL, opts)
	if err != nil {
		return fmt.Errorf("gateway: dial %s: %w", c.cfg.URL, err)
	}
	conn.SetReadLimit(maxFrameSize)

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readLoop(conn)

	c.logger.Info("connected", "url", c.cfg.URL)
	return nil
}

// Connected reports whether the connection is currently established.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Call sends {id, method, params} and awaits the matching
// {id, result|error} frame. The caller's context deadline is enforced
// client-side; without one, CallTimeout applies. On timeout or
// cancellation the pending slot is removed so a late response is
// discarded harmlessly.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	c.mu.Unlock()

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("gateway: encoding %s params: %w", method, err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()
	}

	// Register before writing so the response cannot arrive unclaimed.
	call := c.pending.register(method)

	req := frame{ID: call.id, Method: method, Params: raw}
	if err := c.writeFrame(ctx, &req); err != nil {
		c.pending.remove(call.id)
		return nil, fmt.Errorf("gateway: sending %s: %w", method, err)
	}

	c.logger.Debug("request sent", "method", method, "id", call.id)

	select {
	case res := <-call.done:
		if res.err != nil {
			return nil, res.err
		}
		return res.result, nil
	case <-ctx.Done():
		c.pending.remove(call.id)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("gateway: %s after %s: %w", method, time.Since(call.sentAt).Round(time.Millisecond), ErrTimeout)
		}
		return nil, ctx.Err()
	}
}

// Subscribe returns a live, single-consumer view of the connection's
// push events. The subscription detaches when ctx is cancelled.
func (c *Client) Subscribe(ctx context.Context) (<-chan *PushEvent, string) {
	return c.events.Subscribe(ctx)
}

// Unsubscribe detaches a subscription by ID.
func (c *Client) Unsubscribe(subID string) {
	c.events.Unsubscribe(subID)
}

// Close disposes the connection, resolves all pending requests as
// cancelled, and releases all active subscriptions.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	conn := c.conn
	c.mu.Unlock()

	c.pending.failAll(ErrConnectionClosed)
	c.events.Close()

	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "client closing")
	}
	return nil
}

// writeFrame serializes one outbound frame. Writes from concurrent
// callers share the connection, so they are serialized here.
func (c *Client) writeFrame(ctx context.Context, f *frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsjson.Write(ctx, c.conn, f)
}

// readLoop is the single inbound-frame reader for the connection. Every
// frame is routed to exactly one of the correlator or the broadcaster;
// malformed frames are logged and dropped, never fatal.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var f frame
		if err := wsjson.Read(context.Background(), conn, &f); err != nil {
			c.handleDisconnect(err)
			return
		}
		c.route(&f)
	}
}

func (c *Client) route(f *frame) {
	switch {
	case f.ID != "":
		var err error
		if f.Error != nil {
			err = &ProtocolError{Code: f.Error.Code, Message: f.Error.Message}
		}
		if !c.pending.resolve(f.ID, f.Result, err) {
			c.logger.Debug("response for unknown request", "id", f.ID)
		}
	case f.Event != "":
		event, err := parsePushEvent(f)
		if err != nil {
			c.logger.Warn("dropping malformed push frame", "event", f.Event, "error", err)
			return
		}
		if event == nil {
			c.logger.Debug("ignoring unrecognized event", "event", f.Event)
			return
		}
		c.events.Publish(event)
	default:
		c.logger.Warn("dropping unroutable frame")
	}
}

// handleDisconnect marks the connection lost and fails everything still
// in flight. Subscribers observe the loss as channel closure.
func (c *Client) handleDisconnect(err error) {
	c.mu.Lock()
	wasClosed := c.closed
	c.connected = false
	c.mu.Unlock()

	if !wasClosed {
		c.logger.Warn("connection lost", "error", err)
	}

	c.pending.failAll(ErrConnectionClosed)
	c.events.Close()
}
