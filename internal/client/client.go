package client

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/orufy/signbridge/internal/observability"
	"github.com/orufy/signbridge/internal/protocol"
	"github.com/orufy/signbridge/internal/reliability"
	"github.com/orufy/signbridge/internal/session"
)

// Handler consumes one inbound envelope. Handlers are invoked from the read
// loop, one message at a time; a handler always returns before the next
// message is dispatched.
type Handler func(msg any)

// Config tunes the session protocol connection.
type Config struct {
	// BaseURL is the websocket origin, e.g. ws://127.0.0.1:8000.
	BaseURL string
	// Namespace is the endpoint path segment, e.g. "cv" for
	// /ws/cv/<sessionId>/<userId>.
	Namespace string
	// ReconnectAttempts bounds dials per disconnection event.
	ReconnectAttempts int
	// ReconnectDelay is the fixed wait between attempts.
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
	// WriteTimeout bounds a single frame write so a wedged peer cannot
	// stall the capture scheduler's teardown.
	WriteTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Namespace == "" {
		c.Namespace = "cv"
	}
	if c.ReconnectAttempts <= 0 {
		c.ReconnectAttempts = 3
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
}

// Client owns the single bidirectional connection of a capture session. It
// frames outbound video frames as typed JSON envelopes, demultiplexes
// inbound envelopes to registered handlers and drives bounded reconnection
// through the session state machine.
type Client struct {
	cfg     Config
	sess    *session.Session
	metrics *observability.Metrics

	handlers map[protocol.MessageType]Handler

	connMu  sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	stopped   atomic.Bool
	stopCh    chan struct{}
	stopOnce  sync.Once
	fatalOnce sync.Once

	pubMu    sync.Mutex
	onChange func(connected bool)
	lastPub  bool
	pubSeen  bool
}

func New(cfg Config, sess *session.Session, metrics *observability.Metrics) *Client {
	cfg.applyDefaults()
	return &Client{
		cfg:      cfg,
		sess:     sess,
		metrics:  metrics,
		handlers: make(map[protocol.MessageType]Handler),
		stopCh:   make(chan struct{}),
	}
}

// RegisterHandler binds an envelope type to its handler. Must be called
// before Connect; there is exactly one handler per type.
func (c *Client) RegisterHandler(t protocol.MessageType, h Handler) {
	c.handlers[t] = h
}

// OnConnectionChange registers the single connection-state callback. It is
// invoked only when the connected/not-connected state actually flips.
func (c *Client) OnConnectionChange(fn func(connected bool)) {
	c.onChange = fn
}

// Connect dials the recognition service, retrying up to the configured
// bound with a fixed delay between attempts. It returns once connected or
// after exhausting attempts, in which case the session is closed and one
// fatal INVALID_SESSION event has been dispatched.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := c.dialWithRetry(ctx, false)
	if err != nil {
		return err
	}
	c.adopt(conn)
	go c.readLoop(conn)
	return nil
}

// Connected reports whether frames may currently be sent.
func (c *Client) Connected() bool {
	return c.sess.State() == session.StateConnected
}

// SendFrame transmits one encoded frame, fire-and-forget. When the session
// is not connected the frame is silently dropped, never buffered: the
// protocol favors freshness over completeness.
func (c *Client) SendFrame(ctx context.Context, payload string, capturedAt time.Time) error {
	if c.sess.State() != session.StateConnected {
		return nil
	}
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return nil
	}

	env := protocol.VideoFrame{
		Type:        protocol.TypeVideoFrame,
		FrameID:     c.sess.NextFrameID(),
		TimestampMS: capturedAt.UnixMilli(),
		ImageBase64: payload,
		SessionID:   c.sess.ID,
		UserID:      c.sess.UserID,
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline := time.Now().Add(c.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(env); err != nil {
		return fmt.Errorf("write frame %d: %w", env.FrameID, err)
	}
	return nil
}

// Close tears the connection down deliberately: the session transitions to
// closed, no reconnection is attempted. Idempotent.
func (c *Client) Close() error {
	c.stopped.Store(true)
	c.stopOnce.Do(func() { close(c.stopCh) })

	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()

	if c.sess.State() != session.StateClosed {
		_ = c.sess.Transition(session.StateClosed)
	}
	c.metrics.Connected.Set(0)
	c.publish(false)
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (c *Client) endpoint() string {
	return strings.TrimRight(c.cfg.BaseURL, "/") +
		"/ws/" + url.PathEscape(c.cfg.Namespace) +
		"/" + url.PathEscape(c.sess.ID) +
		"/" + url.PathEscape(c.sess.UserID)
}

// dialWithRetry performs one bounded connection sequence. Every attempt
// (re-)enters the connecting state so the bound is visible on the state
// machine; exhaustion closes the session and emits the fatal exactly once.
func (c *Client) dialWithRetry(ctx context.Context, isReconnect bool) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	endpoint := c.endpoint()

	var lastErr error
	for attempt := 1; attempt <= c.cfg.ReconnectAttempts; attempt++ {
		if c.stopped.Load() {
			return nil, fmt.Errorf("client closed")
		}
		if err := c.sess.Transition(session.StateConnecting); err != nil {
			return nil, err
		}
		if isReconnect {
			c.metrics.ReconnectAttempts.Inc()
		}

		conn, _, err := dialer.DialContext(ctx, endpoint, nil)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		log.Printf("client: dial %s attempt %d/%d: %v", endpoint, attempt, c.cfg.ReconnectAttempts, err)

		if attempt == c.cfg.ReconnectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.stopCh:
			return nil, fmt.Errorf("client closed")
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}

	c.fail()
	return nil, fmt.Errorf("connect %s: attempts exhausted: %w", endpoint, lastErr)
}

// fail closes the session after attempt exhaustion and reports the fatal
// INVALID_SESSION through the registered error handler, exactly once.
func (c *Client) fail() {
	if c.sess.State() != session.StateClosed {
		_ = c.sess.Transition(session.StateClosed)
	}
	c.metrics.Connected.Set(0)
	c.publish(false)
	c.fatalOnce.Do(func() {
		evt := protocol.ErrorEvent{
			Type:        protocol.TypeError,
			Code:        reliability.CodeInvalidSession,
			Message:     "reconnection attempts exhausted",
			Severity:    string(reliability.SeverityFatal),
			TimestampMS: time.Now().UnixMilli(),
		}
		if h := c.handlers[protocol.TypeError]; h != nil {
			h(evt)
		}
	})
}

func (c *Client) adopt(conn *websocket.Conn) {
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	_ = c.sess.Transition(session.StateConnected)
	c.metrics.Connected.Set(1)
	c.publish(true)
}

// readLoop serializes all inbound dispatch: handler invocation for one
// message completes before the next message is read.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.metrics.Connected.Set(0)
			c.publish(false)
			if c.stopped.Load() {
				return
			}

			log.Printf("client: connection lost: %v", err)
			next, derr := c.dialWithRetry(context.Background(), true)
			if derr != nil {
				return
			}
			c.adopt(next)
			conn = next
			continue
		}
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	msg, err := protocol.ParseServerMessage(data)
	if err != nil {
		// Unknown and malformed envelopes are ignored, not errors.
		c.metrics.InboundMessages.WithLabelValues("unknown").Inc()
		return
	}

	var t protocol.MessageType
	switch msg.(type) {
	case protocol.Caption:
		t = protocol.TypeCaption
	case protocol.Audio:
		t = protocol.TypeAudio
	case protocol.ErrorEvent:
		t = protocol.TypeError
	default:
		c.metrics.InboundMessages.WithLabelValues("unknown").Inc()
		return
	}
	c.metrics.InboundMessages.WithLabelValues(string(t)).Inc()

	if h := c.handlers[t]; h != nil {
		h(msg)
	}
}

func (c *Client) publish(connected bool) {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	if c.pubSeen && c.lastPub == connected {
		return
	}
	c.pubSeen = true
	c.lastPub = connected
	if c.onChange != nil {
		c.onChange(connected)
	}
}
