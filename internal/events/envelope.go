package events

import (
	"encoding/json"
	"time"
)

type Envelope struct {
	EventType  EventType       `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Unwrap decodes the envelope payload back into its typed event. Unknown
// types return nil so stale producers never crash a consumer.
func (e Envelope) Unwrap() Event {
	decode := func(v Event) Event {
		if err := json.Unmarshal(e.Payload, v); err != nil {
			return nil
		}
		return v
	}

	switch e.EventType {
	case EventMessageSent:
		return decode(&MessageSentEvent{})
	case EventMessageUpdated:
		return decode(&MessageUpdatedEvent{})
	case EventMessageDeleted:
		return decode(&MessageDeletedEvent{})
	case EventReactionAdded, EventReactionRemoved:
		return decode(&ReactionEvent{})
	case EventConversationCreated:
		return decode(&ConversationCreatedEvent{})
	case EventConversationRead:
		return decode(&ConversationReadEvent{})
	case EventParticipantAdded, EventParticipantRemoved:
		return decode(&ParticipantEvent{})
	case EventTypingStarted, EventTypingStopped:
		return decode(&TypingEvent{})
	case EventPresenceChanged:
		return decode(&PresenceEvent{})
	case EventUserBlocked, EventUserUnblocked:
		return decode(&BlockEvent{})
	}
	return nil
}

func unmarshalEnvelope(data []byte, env *Envelope) error {
	return json.Unmarshal(data, env)
}

func Wrap(event Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		EventType:  event.Type(),
		OccurredAt: event.OccurredAt(),
		Payload:    payload,
	})
}
