package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"parley/internal/domain/conversation"
	"parley/internal/domain/message"
	"parley/internal/domain/user"
)

type ConversationRepository interface {
	Create(ctx context.Context, c *conversation.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	Update(ctx context.Context, c conversation.Conversation) error
	GetByDirectKey(ctx context.Context, key string) (conversation.Conversation, error)
	GetUserConversations(ctx context.Context, userID uuid.UUID, page, limit int) ([]conversation.Conversation, int64, error)

	AddParticipant(ctx context.Context, p *conversation.Participant) error
	DeactivateParticipant(ctx context.Context, conversationID, userID uuid.UUID, leftAt time.Time) error
	GetParticipant(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Participant, error)
	GetParticipants(ctx context.Context, conversationID uuid.UUID) ([]conversation.Participant, error)
	GetActiveParticipants(ctx context.Context, conversationID uuid.UUID) ([]conversation.Participant, error)
	IsActiveParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
	CountActiveParticipants(ctx context.Context, conversationID uuid.UUID) (int64, error)

	// IncrementSequence bumps and returns the per-conversation sequence.
	// Must be called inside the same transaction as the message insert.
	IncrementSequence(ctx context.Context, conversationID uuid.UUID) (int64, error)
	// AdvanceLastMessageAt moves last_message_at forward, never backwards.
	AdvanceLastMessageAt(ctx context.Context, conversationID uuid.UUID, at time.Time) error
}

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)
	// UpdateContent applies an edit only if the row still matches the
	// version read (updated_at) and is not deleted. Returns the number of
	// rows touched so the caller can distinguish a lost race.
	UpdateContent(ctx context.Context, id uuid.UUID, content string, editedAt time.Time, expectedUpdatedAt time.Time) (int64, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	GetConversationMessages(ctx context.Context, conversationID uuid.UUID, beforeSeq int64, limit int) ([]message.Message, error)
	GetMessagesSinceSeq(ctx context.Context, conversationID uuid.UUID, afterSeq int64, limit int) ([]message.Message, error)
	SearchMessages(ctx context.Context, userID uuid.UUID, query string, conversationID *uuid.UUID, page, limit int) ([]message.Message, int64, error)

	// AddReaction inserts the (message,user,emoji) triple or does nothing
	// if it already exists. Reports whether a row was inserted.
	AddReaction(ctx context.Context, r *message.Reaction) (bool, error)
	RemoveReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (bool, error)
	GetMessageReactions(ctx context.Context, messageID uuid.UUID) ([]message.Reaction, error)

	// UpsertReceipt records a read receipt, keeping the latest readAt.
	// Reports whether stored state changed.
	UpsertReceipt(ctx context.Context, messageID, userID uuid.UUID, readAt time.Time) (bool, error)
	GetMessageReceipts(ctx context.Context, messageID uuid.UUID) ([]message.ReadReceipt, error)
	GetUnreadMessages(ctx context.Context, conversationID, userID uuid.UUID, upToSeq int64) ([]message.Message, error)
	CountUnread(ctx context.Context, conversationID, userID uuid.UUID) (int64, error)
}

type BlockRepository interface {
	Upsert(ctx context.Context, b *user.Block) error
	Delete(ctx context.Context, blockerID, blockedID uuid.UUID) (bool, error)
	ExistsBetween(ctx context.Context, userA, userB uuid.UUID) (bool, error)
	BlockedEitherDirection(ctx context.Context, userID uuid.UUID, others []uuid.UUID) (map[uuid.UUID]bool, error)
	GetUserBlocks(ctx context.Context, blockerID uuid.UUID) ([]user.Block, error)
}
