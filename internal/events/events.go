package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is anything that can be fanned out to connected participants.
// Recipients carries routing only and is never serialized to the wire.
type Event interface {
	Type() EventType
	OccurredAt() time.Time
	Recipients() []uuid.UUID
}

type EventHandler interface {
	Handle(ctx context.Context, event Event) error
}

type EventHandlerFunc func(ctx context.Context, event Event) error

func (f EventHandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// EventBus decouples the write path from delivery. Publish is best-effort:
// persistence success never depends on it.
type EventBus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

type BaseEvent struct {
	EventTypeVal EventType   `json:"event_type"`
	TimestampVal time.Time   `json:"timestamp"`
	RecipientIDs []uuid.UUID `json:"-"`
}

func (e BaseEvent) Type() EventType         { return e.EventTypeVal }
func (e BaseEvent) OccurredAt() time.Time   { return e.TimestampVal }
func (e BaseEvent) Recipients() []uuid.UUID { return e.RecipientIDs }

// SetRecipients restores routing after an event crosses the wire, where
// recipient lists are implied by the channel rather than serialized.
func (e *BaseEvent) SetRecipients(ids []uuid.UUID) { e.RecipientIDs = ids }

type MessageSentEvent struct {
	BaseEvent
	MessageID      uuid.UUID  `json:"message_id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	SenderID       uuid.UUID  `json:"sender_id"`
	Seq            int64      `json:"seq"`
	Content        string     `json:"content"`
	MessageType    string     `json:"message_type"`
	ReplyToID      *uuid.UUID `json:"reply_to_id,omitempty"`
	AttachmentURL  *string    `json:"attachment_url,omitempty"`
	AttachmentName *string    `json:"attachment_name,omitempty"`
	AttachmentSize *int64     `json:"attachment_size,omitempty"`
	SentAt         time.Time  `json:"sent_at"`
}

type MessageUpdatedEvent struct {
	BaseEvent
	MessageID      uuid.UUID `json:"message_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	Seq            int64     `json:"seq"`
	Content        string    `json:"content"`
	EditedAt       time.Time `json:"edited_at"`
}

// MessageDeletedEvent deliberately carries no content so deleted text is
// never echoed to observers.
type MessageDeletedEvent struct {
	BaseEvent
	MessageID      uuid.UUID `json:"message_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Seq            int64     `json:"seq"`
}

type ReactionEvent struct {
	BaseEvent
	MessageID      uuid.UUID `json:"message_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	Emoji          string    `json:"emoji"`
	Action         string    `json:"action"` // add or remove
}

type ConversationCreatedEvent struct {
	BaseEvent
	ConversationID   uuid.UUID   `json:"conversation_id"`
	ConversationType string      `json:"conversation_type"`
	Title            *string     `json:"title,omitempty"`
	CreatedBy        uuid.UUID   `json:"created_by"`
	ParticipantIDs   []uuid.UUID `json:"participant_ids"`
}

// ConversationReadEvent is the aggregate "read up to" signal; per-message
// read receipts are pulled, not pushed.
type ConversationReadEvent struct {
	BaseEvent
	ConversationID uuid.UUID `json:"conversation_id"`
	ReaderID       uuid.UUID `json:"reader_id"`
	UpToSeq        int64     `json:"up_to_seq"`
}

type ParticipantEvent struct {
	BaseEvent
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	Action         string    `json:"action"` // added or removed
}

type TypingEvent struct {
	BaseEvent
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	IsTyping       bool      `json:"is_typing"`
}

type PresenceEvent struct {
	BaseEvent
	UserID uuid.UUID `json:"user_id"`
	Status string    `json:"status"` // online, away, offline
}

type BlockEvent struct {
	BaseEvent
	BlockerID uuid.UUID `json:"blocker_id"`
	BlockedID uuid.UUID `json:"blocked_id"`
	Action    string    `json:"action"` // blocked or unblocked
}
