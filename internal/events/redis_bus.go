package events

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisEventBus carries events across nodes via Redis Pub/Sub. Every event
// is published once per recipient on that user's channel; the subscribing
// side restores the recipient from the channel name. A single listen
// goroutine dispatches in arrival order, preserving per-channel ordering.
type RedisEventBus struct {
	client   *redis.Client
	handlers map[EventType][]EventHandler
	pubsub   *redis.PubSub
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewRedisEventBus(client *redis.Client) *RedisEventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		client:   client,
		handlers: make(map[EventType][]EventHandler),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (b *RedisEventBus) Start() error {
	b.pubsub = b.client.PSubscribe(b.ctx, ChannelPatternAll)
	go b.listen()
	return nil
}

func (b *RedisEventBus) Stop() error {
	b.cancel()
	if b.pubsub != nil {
		return b.pubsub.Close()
	}
	return nil
}

func (b *RedisEventBus) Publish(ctx context.Context, event Event) error {
	data, err := Wrap(event)
	if err != nil {
		return err
	}

	for _, userID := range event.Recipients() {
		channel := ChannelPrefixUser + userID.String()
		if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
			// Best-effort fan-out: a failed publish to one recipient does
			// not abort the rest.
			continue
		}
	}
	return nil
}

func (b *RedisEventBus) Subscribe(eventType EventType, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

type recipientSetter interface {
	SetRecipients(ids []uuid.UUID)
}

func (b *RedisEventBus) listen() {
	ch := b.pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok || msg == nil {
				return
			}
			b.dispatch(msg.Channel, []byte(msg.Payload))
		}
	}
}

func (b *RedisEventBus) dispatch(channel string, data []byte) {
	var env Envelope
	if err := unmarshalEnvelope(data, &env); err != nil {
		return
	}

	event := env.Unwrap()
	if event == nil {
		return
	}

	if userID, err := uuid.Parse(strings.TrimPrefix(channel, ChannelPrefixUser)); err == nil {
		if setter, ok := event.(recipientSetter); ok {
			setter.SetRecipients([]uuid.UUID{userID})
		}
	}

	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.handlers[env.EventType]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		_ = h.Handle(b.ctx, event)
	}
}
