package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"parley/internal/events"
	"parley/internal/redis"
	"parley/internal/services"
	"parley/pkg/logger"
)

// Hub tracks connected clients and fans events out to them. Routing is by
// recipient: every event arrives with the user ids it is meant for, and the
// hub delivers to whichever of those users hold live connections here.
type Hub struct {
	clients    map[uuid.UUID]map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	bus      events.EventBus
	convs    *services.ConversationService
	ledger   *services.LedgerService
	presence *redis.PresenceStore
	log      *logger.Logger

	mu        sync.RWMutex
	stopChan  chan struct{}
	wg        sync.WaitGroup
	isRunning int32
}

type BroadcastMessage struct {
	Event events.Event
}

func NewHub(bus events.EventBus, convs *services.ConversationService, ledger *services.LedgerService, presence *redis.PresenceStore, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{
		clients:    make(map[uuid.UUID]map[string]*Client),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		broadcast:  make(chan *BroadcastMessage, 256),
		bus:        bus,
		convs:      convs,
		ledger:     ledger,
		presence:   presence,
		log:        log,
		stopChan:   make(chan struct{}),
	}
}

func (h *Hub) Run() {
	atomic.StoreInt32(&h.isRunning, 1)
	defer atomic.StoreInt32(&h.isRunning, 0)

	h.subscribeToEvents()

	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case msg := <-h.broadcast:
			h.handleBroadcast(msg)

		case <-h.stopChan:
			h.wg.Wait()
			return
		}
	}
}

func (h *Hub) Register(client *Client)   { h.register <- client }
func (h *Hub) Unregister(client *Client) { h.unregister <- client }

const maxConnectionsPerUser = 10

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()

	if h.clients[client.userID] == nil {
		h.clients[client.userID] = make(map[string]*Client)
	}
	if len(h.clients[client.userID]) >= maxConnectionsPerUser {
		// Evict the oldest connection rather than refusing the new one.
		var oldest *Client
		for _, c := range h.clients[client.userID] {
			if oldest == nil || c.connectedAt.Before(oldest.connectedAt) {
				oldest = c
			}
		}
		if oldest != nil {
			delete(h.clients[client.userID], oldest.clientID)
			h.removeClient(oldest)
		}
	}
	h.clients[client.userID][client.clientID] = client
	h.mu.Unlock()

	h.log.Infof("client connected user=%s client=%s", client.userID, client.clientID)

	go client.writePump()
	go client.readPump()

	if h.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		first, err := h.presence.Connect(ctx, client.userID, client.clientID)
		if err != nil {
			h.log.Warnf("presence connect failed: %v", err)
			return
		}
		if first {
			h.publishPresence(ctx, client.userID, "online")
		}
	}
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	userClients, ok := h.clients[client.userID]
	if ok {
		if _, ok := userClients[client.clientID]; ok {
			delete(userClients, client.clientID)
			h.removeClient(client)
			if len(userClients) == 0 {
				delete(h.clients, client.userID)
			}
		}
	}
	h.mu.Unlock()

	h.log.Infof("client disconnected user=%s client=%s", client.userID, client.clientID)

	if h.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		last, err := h.presence.Disconnect(ctx, client.userID, client.clientID)
		if err != nil {
			h.log.Warnf("presence disconnect failed: %v", err)
			return
		}
		if last {
			h.publishPresence(ctx, client.userID, "offline")
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	if atomic.CompareAndSwapInt32(&client.isClosing, 0, 1) {
		close(client.send)
	}
	client.conn.Close()
}

func (h *Hub) handleBroadcast(msg *BroadcastMessage) {
	data, err := events.Wrap(msg.Event)
	if err != nil {
		h.log.Errorf("encode event %s: %v", msg.Event.Type(), err)
		return
	}

	// Message events carry a conversation sequence number the client uses
	// to drop duplicates after a reconnect catch-up.
	var dedupeConv uuid.UUID
	var dedupeSeq int64
	switch e := msg.Event.(type) {
	case *events.MessageSentEvent:
		dedupeConv, dedupeSeq = e.ConversationID, e.Seq
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, userID := range msg.Event.Recipients() {
		userClients, ok := h.clients[userID]
		if !ok {
			continue
		}
		for _, client := range userClients {
			if dedupeSeq > 0 && !client.markDelivered(dedupeConv, dedupeSeq) {
				continue
			}
			select {
			case client.send <- data:
			default:
				h.log.Warnf("send buffer full user=%s client=%s", client.userID, client.clientID)
			}
		}
	}
}

func (h *Hub) subscribeToEvents() {
	eventTypes := []events.EventType{
		events.EventMessageSent,
		events.EventMessageUpdated,
		events.EventMessageDeleted,
		events.EventReactionAdded,
		events.EventReactionRemoved,
		events.EventConversationCreated,
		events.EventConversationRead,
		events.EventParticipantAdded,
		events.EventParticipantRemoved,
		events.EventTypingStarted,
		events.EventTypingStopped,
		events.EventPresenceChanged,
		events.EventUserBlocked,
		events.EventUserUnblocked,
	}
	handler := events.EventHandlerFunc(func(ctx context.Context, event events.Event) error {
		select {
		case h.broadcast <- &BroadcastMessage{Event: event}:
		case <-h.stopChan:
		}
		return nil
	})
	for _, eventType := range eventTypes {
		h.bus.Subscribe(eventType, handler)
	}
}

// publishPresence tells the user's conversation partners they came online
// or went offline.
func (h *Hub) publishPresence(ctx context.Context, userID uuid.UUID, status string) {
	if h.bus == nil || h.convs == nil {
		return
	}
	recipients, err := h.presenceAudience(ctx, userID)
	if err != nil {
		h.log.Warnf("presence audience for %s failed: %v", userID, err)
		return
	}
	if len(recipients) == 0 {
		return
	}
	_ = h.bus.Publish(ctx, &events.PresenceEvent{
		BaseEvent: events.BaseEvent{
			EventTypeVal: events.EventPresenceChanged,
			TimestampVal: time.Now(),
			RecipientIDs: recipients,
		},
		UserID: userID,
		Status: status,
	})
}

func (h *Hub) presenceAudience(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	convIDs, err := h.convs.ConversationIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	seen := map[uuid.UUID]bool{userID: true}
	var out []uuid.UUID
	for _, convID := range convIDs {
		participants, err := h.convs.ActiveParticipants(ctx, convID)
		if err != nil {
			continue
		}
		for _, id := range participants {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out, nil
}

func (h *Hub) Stop() {
	close(h.stopChan)
	h.wg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, userClients := range h.clients {
		for _, client := range userClients {
			h.removeClient(client)
		}
	}
	h.clients = make(map[uuid.UUID]map[string]*Client)
}
