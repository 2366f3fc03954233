package server

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"parley/internal/events"
	"parley/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// Per-minute budgets for client-originated control messages.
type RateLimits struct {
	MaxTypingEvents int
	MaxReadReceipts int
	MaxPingMessages int
}

var DefaultRateLimits = RateLimits{
	MaxTypingEvents: 60,
	MaxReadReceipts: 120,
	MaxPingMessages: 60,
}

type ClientRateLimiter struct {
	typingTokens int
	readTokens   int
	pingTokens   int
	lastRefill   time.Time
	mu           sync.Mutex
}

func NewClientRateLimiter() *ClientRateLimiter {
	return &ClientRateLimiter{
		typingTokens: DefaultRateLimits.MaxTypingEvents,
		readTokens:   DefaultRateLimits.MaxReadReceipts,
		pingTokens:   DefaultRateLimits.MaxPingMessages,
		lastRefill:   time.Now(),
	}
}

func (rl *ClientRateLimiter) Allow(msgType string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastRefill) >= time.Minute {
		rl.typingTokens = DefaultRateLimits.MaxTypingEvents
		rl.readTokens = DefaultRateLimits.MaxReadReceipts
		rl.pingTokens = DefaultRateLimits.MaxPingMessages
		rl.lastRefill = now
	}

	switch msgType {
	case "typing:start", "typing:stop":
		if rl.typingTokens > 0 {
			rl.typingTokens--
			return true
		}
	case "read", "read:conversation":
		if rl.readTokens > 0 {
			rl.readTokens--
			return true
		}
	case "ping":
		if rl.pingTokens > 0 {
			rl.pingTokens--
			return true
		}
	}
	return false
}

// Client is one WebSocket connection for one user.
type Client struct {
	hub          *Hub
	conn         *websocket.Conn
	send         chan []byte
	userID       uuid.UUID
	clientID     string
	rateLimiter  *ClientRateLimiter
	isClosing    int32
	connectedAt  time.Time
	lastActivity time.Time
	log          *logger.Logger

	// Highest message sequence delivered per conversation. Events at or
	// below it are duplicates of what HTTP catch-up already returned.
	seqMu   sync.Mutex
	lastSeq map[uuid.UUID]int64
}

// ClientMessage is the inbound control frame format.
type ClientMessage struct {
	Type           string    `json:"type"`
	ConversationID uuid.UUID `json:"conversation_id,omitempty"`
	MessageID      uuid.UUID `json:"message_id,omitempty"`
	UpToSeq        int64     `json:"up_to_seq,omitempty"`
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, clientID string, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	now := time.Now()
	return &Client{
		hub:          hub,
		conn:         conn,
		send:         make(chan []byte, 256),
		userID:       userID,
		clientID:     clientID,
		rateLimiter:  NewClientRateLimiter(),
		connectedAt:  now,
		lastActivity: now,
		log:          log,
		lastSeq:      make(map[uuid.UUID]int64),
	}
}

// markDelivered advances the per-conversation high-water mark. Returns
// false when seq was already delivered to this connection.
func (c *Client) markDelivered(conversationID uuid.UUID, seq int64) bool {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()
	if seq <= c.lastSeq[conversationID] {
		return false
	}
	c.lastSeq[conversationID] = seq
	return true
}

// ResumeFrom seeds the dedupe mark from the client's last seen sequence so
// events already fetched over HTTP are not replayed on the socket.
func (c *Client) ResumeFrom(conversationID uuid.UUID, seq int64) {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()
	if seq > c.lastSeq[conversationID] {
		c.lastSeq[conversationID] = seq
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.lastActivity = time.Now()
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Errorf("websocket unexpected close user=%s: %v", c.userID, err)
			}
			break
		}

		message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
		c.lastActivity = time.Now()

		if err := c.handleMessage(message); err != nil {
			c.log.Errorf("handle client message user=%s: %v", c.userID, err)
		}
	}
}

func (c *Client) handleMessage(message []byte) error {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return err
	}

	if !c.rateLimiter.Allow(msg.Type) {
		c.log.Warnf("rate limit exceeded user=%s type=%s", c.userID, msg.Type)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch msg.Type {
	case "typing:start":
		return c.handleTyping(ctx, msg.ConversationID, true)
	case "typing:stop":
		return c.handleTyping(ctx, msg.ConversationID, false)
	case "read":
		if c.hub.ledger == nil {
			return nil
		}
		return c.hub.ledger.MarkRead(ctx, c.userID, msg.MessageID)
	case "read:conversation":
		if c.hub.ledger == nil {
			return nil
		}
		_, err := c.hub.ledger.MarkConversationRead(ctx, c.userID, msg.ConversationID, msg.UpToSeq)
		return err
	case "ping":
		if c.hub.presence != nil {
			_ = c.hub.presence.Heartbeat(ctx, c.userID)
		}
		c.enqueue([]byte(`{"type":"pong"}`))
		return nil
	default:
		c.log.Warnf("unknown message type user=%s type=%s", c.userID, msg.Type)
		return nil
	}
}

func (c *Client) handleTyping(ctx context.Context, conversationID uuid.UUID, isTyping bool) error {
	if c.hub.convs == nil {
		return nil
	}
	recipients, err := c.hub.convs.ActiveParticipants(ctx, conversationID)
	if err != nil {
		return err
	}
	isMember := false
	filtered := recipients[:0]
	for _, id := range recipients {
		if id == c.userID {
			isMember = true
			continue
		}
		filtered = append(filtered, id)
	}
	if !isMember {
		return nil
	}

	if c.hub.presence != nil {
		if err := c.hub.presence.SetTyping(ctx, conversationID, c.userID, isTyping); err != nil {
			c.log.Warnf("typing store update failed: %v", err)
		}
	}

	eventType := events.EventTypingStarted
	if !isTyping {
		eventType = events.EventTypingStopped
	}
	return c.hub.bus.Publish(ctx, &events.TypingEvent{
		BaseEvent: events.BaseEvent{
			EventTypeVal: eventType,
			TimestampVal: time.Now(),
			RecipientIDs: filtered,
		},
		ConversationID: conversationID,
		UserID:         c.userID,
		IsTyping:       isTyping,
	})
}

func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write(newline)
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			if time.Since(c.lastActivity) > pongWait*2 {
				c.log.Infof("client idle timeout user=%s", c.userID)
				return
			}
		}
	}
}
