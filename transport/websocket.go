package transport

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vinayprograms/agentdir/auth"
	"github.com/vinayprograms/agentdir/bus"
	"github.com/vinayprograms/agentdir/directory"
	"github.com/vinayprograms/agentdir/errors"
	"github.com/vinayprograms/agentdir/logging"
	"github.com/vinayprograms/agentdir/registry"
)

// FrameType identifies one websocket frame.
type FrameType string

const (
	// FrameSnapshot is the first frame on every connection. Clients apply
	// it as current truth before consuming deltas.
	FrameSnapshot FrameType = "snapshot"

	// FrameEvent is one live delta.
	FrameEvent FrameType = "event"

	// FrameDegraded tells the client events were dropped and it must
	// reconnect to re-snapshot.
	FrameDegraded FrameType = "degraded"

	// FrameError carries a problem document before the connection closes.
	FrameError FrameType = "error"
)

// Frame is the wire envelope for one websocket message.
type Frame struct {
	Type    FrameType          `json:"type"`
	Records []*registry.Record `json:"records,omitempty"`
	Counts  *registry.Counts   `json:"counts,omitempty"`
	Event   *bus.Event         `json:"event,omitempty"`
	Dropped int64              `json:"dropped,omitempty"`
	Problem *errors.Problem    `json:"problem,omitempty"`
}

// WebSocketConfig holds gateway configuration.
type WebSocketConfig struct {
	// WriteTimeout for write operations. Default: 10s
	WriteTimeout time.Duration

	// PingInterval for keepalive pings. Default: 30s
	PingInterval time.Duration

	// MaxMessageSize limits incoming message size. Default: 4KB; clients
	// only ever send control traffic.
	MaxMessageSize int64
}

// DefaultWebSocketConfig returns configuration with sensible defaults.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 4 * 1024,
	}
}

func (c WebSocketConfig) withDefaults() WebSocketConfig {
	d := DefaultWebSocketConfig()
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	return c
}

// Gateway upgrades HTTP requests to websocket subscriptions on the
// directory's event topics. Every connection starts with a snapshot
// frame, then streams live events until the client disconnects. A
// disconnect immediately frees the subscription buffer.
type Gateway struct {
	svc *directory.Service
	cfg WebSocketConfig
	log *logging.Logger

	upgrader websocket.Upgrader
}

// NewGateway creates a websocket gateway over the directory facade.
func NewGateway(svc *directory.Service, cfg WebSocketConfig, log *logging.Logger) *Gateway {
	if log == nil {
		log = logging.New()
	}
	return &Gateway{
		svc: svc,
		cfg: cfg.withDefaults(),
		log: log.WithComponent("transport"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // Override in production
		},
	}
}

// identity extracts the caller identity from request headers.
func identity(r *http.Request) auth.Identity {
	token := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(token) > len(prefix) && token[:len(prefix)] == prefix {
		token = token[len(prefix):]
	}
	return auth.Identity{
		Token:     token,
		PIN:       r.Header.Get("X-Admin-PIN"),
		RequestID: r.Header.Get("X-Request-ID"),
	}
}

// ServeHTTP handles GET /v1/events?topic=<public|agent|admin>.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	topic := bus.Topic(r.URL.Query().Get("topic"))
	if topic == "" {
		topic = bus.TopicPublic
	}
	ident := identity(r)

	sub, err := g.svc.Subscribe(r.Context(), ident, topic)
	if err != nil {
		writeProblem(w, err)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Unsubscribe()
		g.log.Warn("upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}
	conn.SetReadLimit(g.cfg.MaxMessageSize)

	c := &client{
		conn: conn,
		sub:  sub,
		cfg:  g.cfg,
		log:  g.log,
		done: make(chan struct{}),
	}

	if err := c.writeSnapshot(r, g.svc, ident, topic); err != nil {
		c.close()
		return
	}

	go c.readLoop()
	c.writeLoop()
}

// writeProblem sends an RFC 7807 response for pre-upgrade failures.
func writeProblem(w http.ResponseWriter, err error) {
	problem := errors.ToProblem(err, "")
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)
	json.NewEncoder(w).Encode(problem)
}

// client is one connected subscriber.
type client struct {
	conn *websocket.Conn
	sub  *bus.Subscription
	cfg  WebSocketConfig
	log  *logging.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// writeSnapshot sends the initial state frame. Public subscribers get
// liveness counts; agent and admin subscribers also get the projected
// record list so they can resume without a separate fetch.
func (c *client) writeSnapshot(r *http.Request, svc *directory.Service, ident auth.Identity, topic bus.Topic) error {
	counts := svc.Counts()
	frame := Frame{Type: FrameSnapshot, Counts: &counts}

	if topic != bus.TopicPublic {
		records, err := svc.List(r.Context(), ident, registry.Filter{IncludeExpired: true})
		if err != nil {
			return err
		}
		frame.Records = records
	}
	return c.write(frame)
}

// readLoop consumes client frames only to detect disconnects.
func (c *client) readLoop() {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.close()
			return
		}
	}
}

// writeLoop streams events until the subscription or connection ends.
func (c *client) writeLoop() {
	defer c.close()

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			if !c.closed {
				c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
			}
			c.mu.Unlock()
		case ev, ok := <-c.sub.Events():
			if !ok {
				return
			}
			if c.sub.Degraded() {
				c.write(Frame{Type: FrameDegraded, Dropped: c.sub.Dropped()})
				c.log.SubscriberDegraded(string(c.sub.Topic()), int(c.sub.Dropped()))
				return
			}
			if err := c.write(Frame{Type: FrameEvent, Event: &ev}); err != nil {
				return
			}
		}
	}
}

func (c *client) write(frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// close tears down the connection and frees the subscription buffer.
func (c *client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	c.sub.Unsubscribe()
	c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.conn.Close()
}
