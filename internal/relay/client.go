package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned by SendTo when the client has no live
// connection to the hub.
var ErrNotConnected = errors.New("not connected to relay server")

// DefaultReconnectDelay is the pause between reconnect attempts.
const DefaultReconnectDelay = 5 * time.Second

// Handler processes one delivery from the hub. It runs on the client's
// read loop; long work should be handed off.
type Handler func(ctx context.Context, d Delivery)

// Client maintains one identified connection to the relay hub,
// reconnecting with a fixed delay whenever the connection drops.
type Client struct {
	url     string
	id      string
	handler Handler
	logger  *slog.Logger
	delay   time.Duration

	mu   sync.Mutex
	conn *websocket.Conn
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithReconnectDelay overrides the reconnect pause.
func WithReconnectDelay(d time.Duration) ClientOption {
	return func(c *Client) { c.delay = d }
}

// WithClientLogger sets the client's logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client that will identify as id and pass
// deliveries to handler. A nil handler logs and drops deliveries.
func NewClient(url, id string, handler Handler, opts ...ClientOption) *Client {
	c := &Client{
		url:     url,
		id:      id,
		handler: handler,
		logger:  slog.Default(),
		delay:   DefaultReconnectDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the client's identity on the hub.
func (c *Client) ID() string {
	return c.id
}

// Run connects and serves deliveries until ctx is cancelled. Every
// connection failure waits the reconnect delay and tries again.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := c.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("relay connection lost", "error", err, "retry_in", c.delay)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.delay):
		}
	}
}

// runOnce performs one connect-identify-listen cycle.
func (c *Client) runOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", c.url, err)
	}
	defer conn.Close()

	ident, err := json.Marshal(Identification{ClientID: c.id})
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, ident); err != nil {
		return fmt.Errorf("identifying: %w", err)
	}

	c.setConn(conn)
	defer c.setConn(nil)
	c.logger.Info("connected to relay", "url", c.url, "client_id", c.id)

	// Close the connection when ctx is cancelled so ReadMessage
	// unblocks.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading: %w", err)
		}

		var d Delivery
		if err := json.Unmarshal(raw, &d); err != nil || d.Sender == "" {
			// Welcome banners and server error texts arrive as plain
			// text frames.
			c.logger.Info("server notice", "text", string(raw))
			continue
		}
		if c.handler == nil {
			c.logger.Warn("dropping delivery, no handler", "sender", d.Sender)
			continue
		}
		c.handler(ctx, d)
	}
}

// SendTo serializes payload and addresses it to the named peer. The
// payload travels as an encoded string inside the envelope so the hub
// can re-wrap it for the target.
func (c *Client) SendTo(target string, payload any) error {
	conn := c.getConn()
	if conn == nil {
		return ErrNotConnected
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}
	env, err := json.Marshal(Envelope{TargetID: target, Message: string(body)})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteMessage(websocket.TextMessage, env)
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

func (c *Client) getConn() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}
