package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBusPreservesPublishOrder(t *testing.T) {
	bus := NewMemoryBus()
	var seen []int64

	bus.Subscribe(EventMessageSent, EventHandlerFunc(func(ctx context.Context, event Event) error {
		seen = append(seen, event.(*MessageSentEvent).Seq)
		return nil
	}))

	for i := int64(1); i <= 5; i++ {
		err := bus.Publish(context.Background(), &MessageSentEvent{
			BaseEvent: BaseEvent{EventTypeVal: EventMessageSent, TimestampVal: time.Now()},
			Seq:       i,
		})
		require.NoError(t, err)
	}

	assert.Equal(t, []int64{1, 2, 3, 4, 5}, seen)
}

func TestMemoryBusRoutesByType(t *testing.T) {
	bus := NewMemoryBus()
	var sent, deleted int

	bus.Subscribe(EventMessageSent, EventHandlerFunc(func(ctx context.Context, event Event) error {
		sent++
		return nil
	}))
	bus.Subscribe(EventMessageDeleted, EventHandlerFunc(func(ctx context.Context, event Event) error {
		deleted++
		return nil
	}))

	bus.Publish(context.Background(), &MessageSentEvent{BaseEvent: BaseEvent{EventTypeVal: EventMessageSent}})
	bus.Publish(context.Background(), &MessageDeletedEvent{BaseEvent: BaseEvent{EventTypeVal: EventMessageDeleted}})
	bus.Publish(context.Background(), &MessageSentEvent{BaseEvent: BaseEvent{EventTypeVal: EventMessageSent}})

	assert.Equal(t, 2, sent)
	assert.Equal(t, 1, deleted)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	original := &MessageSentEvent{
		BaseEvent: BaseEvent{
			EventTypeVal: EventMessageSent,
			TimestampVal: time.Now().UTC().Truncate(time.Millisecond),
			RecipientIDs: []uuid.UUID{uuid.New()},
		},
		MessageID:      uuid.New(),
		ConversationID: uuid.New(),
		SenderID:       uuid.New(),
		Seq:            42,
		Content:        "over the wire",
		MessageType:    "TEXT",
	}

	data, err := Wrap(original)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, EventMessageSent, env.EventType)

	decoded := env.Unwrap()
	require.NotNil(t, decoded)
	sent, ok := decoded.(*MessageSentEvent)
	require.True(t, ok)
	assert.Equal(t, original.MessageID, sent.MessageID)
	assert.EqualValues(t, 42, sent.Seq)
	assert.Equal(t, "over the wire", sent.Content)

	// Recipients are routing metadata and never cross the wire.
	assert.Empty(t, sent.Recipients())
}

func TestEnvelopeUnknownTypeIsNil(t *testing.T) {
	env := Envelope{EventType: "message.materialized", Payload: json.RawMessage(`{}`)}
	assert.Nil(t, env.Unwrap())
}
