package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/arvind-99/commune/internal/chat"
	"github.com/arvind-99/commune/internal/metrics"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong before the connection is
	// considered dead.
	pongWait = 60 * time.Second

	// Ping interval; must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096

	// Outbound buffer per connection. Dispatch drops frames rather
	// than block once this fills.
	sendBufferSize = 64

	// Sustained sends per second per connection, with a small burst.
	sendRate  = rate.Limit(5)
	sendBurst = 10
)

// Identity is the user bound to a connection at handshake time.
// Resolved once; immutable for the connection's lifetime.
type Identity struct {
	UserID   int64
	Username string
}

// ChatService is the slice of the chat service the connection needs.
// Satisfied by *chat.Service.
type ChatService interface {
	SendPrivate(ctx context.Context, senderID int64, senderUsername, toUsername, content string) error
}

// Presence is satisfied by *presence.Tracker.
type Presence interface {
	Online(ctx context.Context, username string)
	Offline(ctx context.Context, username string)
}

// Client is one live realtime connection and its channel memberships.
//
// Lifecycle: Connecting (transport up, identity maybe unresolved) →
// Authenticated (identity bound, may join/leave/send) → Disconnected
// (removed from every channel). A connection that never authenticated
// stays connected but every event it sends is a no-op — the fail-safe
// policy is to drop, not to error or hang up.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	identity *Identity // nil until/unless authenticated
	chat     ChatService
	presence Presence

	send    chan []byte
	limiter *rate.Limiter

	// channels this client joined; guarded by hub.mu.
	channels map[string]struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	metrics *metrics.Collector
	logger  *zap.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, identity *Identity, chatSvc ChatService, pres Presence, collector *metrics.Collector, logger *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:      hub,
		conn:     conn,
		identity: identity,
		chat:     chatSvc,
		presence: pres,
		send:     make(chan []byte, sendBufferSize),
		limiter:  rate.NewLimiter(sendRate, sendBurst),
		channels: make(map[string]struct{}),
		ctx:      ctx,
		cancel:   cancel,
		metrics:  collector,
		logger:   logger,
	}
}

// Name identifies the client in logs.
func (c *Client) Name() string {
	if c.identity == nil {
		return "anonymous"
	}
	return c.identity.Username
}

// readPump consumes events from the peer until the connection dies.
// One goroutine per connection: events from a single sender are handled
// strictly in arrival order, which is what gives the per-pair delivery
// ordering guarantee.
func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("read error", zap.String("client", c.Name()), zap.Error(err))
			}
			return
		}
		c.handleEvent(raw)
	}
}

// handleEvent routes one inbound frame. Malformed frames and events
// from unauthenticated connections are dropped without reply.
func (c *Client) handleEvent(raw []byte) {
	var ev inboundEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		c.logger.Debug("malformed event", zap.String("client", c.Name()), zap.Error(err))
		return
	}

	if c.identity == nil {
		if ev.Type == chat.EventPrivateMessage {
			c.metrics.MessageDropped(metrics.DropUnauthenticated)
		}
		c.logger.Debug("dropping event from unauthenticated connection", zap.String("type", ev.Type))
		return
	}

	switch ev.Type {
	case EventJoin:
		c.handleJoin(ev.Data)
	case EventLeave:
		c.handleLeave(ev.Data)
	case chat.EventPrivateMessage:
		c.handleSend(ev.Data)
	default:
		c.logger.Debug("unknown event type", zap.String("type", ev.Type))
	}
}

// handleJoin honors a join only for the channel named after the
// client's own identity. A user's channel is their mailbox; letting a
// connection join someone else's name would let it read messages
// addressed to them.
func (c *Client) handleJoin(data json.RawMessage) {
	var p channelPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	if p.Channel != c.identity.Username {
		c.logger.Warn("join refused for foreign channel",
			zap.String("client", c.Name()),
			zap.String("channel", p.Channel),
		)
		return
	}
	c.hub.Join(c, p.Channel)
}

func (c *Client) handleLeave(data json.RawMessage) {
	var p channelPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	c.hub.Leave(c, p.Channel)
}

func (c *Client) handleSend(data json.RawMessage) {
	var p sendPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}

	if !c.limiter.Allow() {
		c.metrics.MessageDropped(metrics.DropRateLimited)
		c.logger.Warn("rate limiting sender", zap.String("client", c.Name()))
		return
	}

	err := c.chat.SendPrivate(c.ctx, c.identity.UserID, c.identity.Username, p.To, p.Message)
	if err == nil {
		return
	}
	if errors.Is(err, chat.ErrEmptyMessage) || errors.Is(err, chat.ErrUnknownReceiver) {
		// Dropped by design; the sender gets no indication.
		return
	}

	// Persistence or lookup failure: nothing was delivered, tell the
	// sender's own connection so the loss isn't silent.
	c.enqueue(EventMessageFailed, failurePayload{
		To:     p.To,
		Reason: "message not delivered",
	})
}

// enqueue marshals an event onto this connection's send buffer.
func (c *Client) enqueue(event string, payload any) {
	data, err := json.Marshal(Envelope{Type: event, Data: payload})
	if err != nil {
		c.logger.Error("marshal event", zap.String("event", event), zap.Error(err))
		return
	}
	select {
	case c.send <- data:
	default:
		c.metrics.MessageDropped(metrics.DropSlowConsumer)
	}
}

// writePump flushes the send buffer and keeps the connection alive with
// pings. The ping tick doubles as the presence heartbeat.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			if c.identity != nil {
				c.presence.Online(c.ctx, c.identity.Username)
			}
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		}
	}
}

// close tears the connection down: out of every channel, presence
// cleared, transport closed. Idempotent — both pumps call it on exit.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.hub.Disconnect(c)
		if c.identity != nil {
			// The per-connection context is about to cancel; presence
			// cleanup gets its own short deadline.
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			c.presence.Offline(ctx, c.identity.Username)
		}
		c.cancel()
		c.conn.Close()
		c.metrics.ConnClosed()
	})
}
