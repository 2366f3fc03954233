package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"parley/internal/domain/conversation"
	"parley/internal/domain/message"
	parley_errors "parley/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	res := r.db.WithContext(ctx).Create(m)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return parley_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	var m message.Message
	err := withRetry(ctx, func() error {
		return r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.Message{}, parley_errors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}

func (r *PostgresMessageRepository) UpdateContent(ctx context.Context, id uuid.UUID, content string, editedAt time.Time, expectedUpdatedAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ? AND is_deleted = ? AND updated_at = ?", id, false, expectedUpdatedAt).
		Updates(map[string]interface{}{
			"content":    content,
			"is_edited":  true,
			"edited_at":  editedAt,
			"updated_at": editedAt,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *PostgresMessageRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return parley_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresMessageRepository) GetConversationMessages(ctx context.Context, conversationID uuid.UUID, beforeSeq int64, limit int) ([]message.Message, error) {
	var messages []message.Message
	q := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID)

	if beforeSeq > 0 {
		q = q.Where("seq < ?", beforeSeq)
	}

	err := withRetry(ctx, func() error {
		return q.Order("seq DESC").Limit(limit).Find(&messages).Error
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PostgresMessageRepository) GetMessagesSinceSeq(ctx context.Context, conversationID uuid.UUID, afterSeq int64, limit int) ([]message.Message, error) {
	var messages []message.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND seq > ?", conversationID, afterSeq).
		Order("seq ASC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PostgresMessageRepository) SearchMessages(ctx context.Context, userID uuid.UUID, query string, conversationID *uuid.UUID, page, limit int) ([]message.Message, int64, error) {
	var messages []message.Message
	var total int64

	// Scope to conversations the caller is an active participant of; the
	// client-supplied conversation id alone is never trusted.
	sub := r.db.Model(&conversation.Participant{}).
		Select("conversation_id").
		Where("user_id = ? AND is_active = ?", userID, true)

	pattern := "%" + strings.ToLower(query) + "%"
	q := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("LOWER(content) LIKE ? AND is_deleted = ? AND conversation_id IN (?)", pattern, false, sub)

	if conversationID != nil {
		q = q.Where("conversation_id = ?", *conversationID)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := q.Order("created_at DESC").Offset(pageOffset(page, limit)).Limit(limit).Find(&messages).Error; err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

func (r *PostgresMessageRepository) AddReaction(ctx context.Context, reaction *message.Reaction) (bool, error) {
	var inserted bool
	err := withRetry(ctx, func() error {
		res := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}, {Name: "emoji"}},
				DoNothing: true,
			}).
			Create(reaction)
		if res.Error != nil {
			return res.Error
		}
		inserted = res.RowsAffected > 0
		return nil
	})
	return inserted, err
}

func (r *PostgresMessageRepository) RemoveReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (bool, error) {
	res := r.db.WithContext(ctx).
		Delete(&message.Reaction{}, "message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *PostgresMessageRepository) GetMessageReactions(ctx context.Context, messageID uuid.UUID) ([]message.Reaction, error) {
	var reactions []message.Reaction
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("created_at ASC").
		Find(&reactions).Error
	if err != nil {
		return nil, err
	}
	return reactions, nil
}

func (r *PostgresMessageRepository) UpsertReceipt(ctx context.Context, messageID, userID uuid.UUID, readAt time.Time) (bool, error) {
	var existing message.ReadReceipt
	err := r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		receipt := message.ReadReceipt{MessageID: messageID, UserID: userID, ReadAt: readAt}
		res := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
				DoNothing: true,
			}).
			Create(&receipt)
		if res.Error != nil {
			return false, res.Error
		}
		return res.RowsAffected > 0, nil
	}
	if err != nil {
		return false, err
	}

	// Monotonic: an earlier readAt never regresses the stored one.
	if !readAt.After(existing.ReadAt) {
		return false, nil
	}
	res := r.db.WithContext(ctx).
		Model(&message.ReadReceipt{}).
		Where("message_id = ? AND user_id = ? AND read_at < ?", messageID, userID, readAt).
		Update("read_at", readAt)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *PostgresMessageRepository) GetMessageReceipts(ctx context.Context, messageID uuid.UUID) ([]message.ReadReceipt, error) {
	var receipts []message.ReadReceipt
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("read_at ASC").
		Find(&receipts).Error
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

func (r *PostgresMessageRepository) GetUnreadMessages(ctx context.Context, conversationID, userID uuid.UUID, upToSeq int64) ([]message.Message, error) {
	sub := r.db.Model(&message.ReadReceipt{}).
		Select("message_id").
		Where("user_id = ?", userID)

	q := r.db.WithContext(ctx).
		Where("conversation_id = ? AND sender_id != ? AND is_deleted = ? AND id NOT IN (?)",
			conversationID, userID, false, sub)
	if upToSeq > 0 {
		q = q.Where("seq <= ?", upToSeq)
	}

	var messages []message.Message
	if err := q.Order("seq ASC").Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PostgresMessageRepository) CountUnread(ctx context.Context, conversationID, userID uuid.UUID) (int64, error) {
	sub := r.db.Model(&message.ReadReceipt{}).
		Select("message_id").
		Where("user_id = ?", userID)

	var count int64
	err := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("conversation_id = ? AND sender_id != ? AND is_deleted = ? AND id NOT IN (?)",
			conversationID, userID, false, sub).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
