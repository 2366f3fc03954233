package repository

import (
	"context"
	"errors"
	"time"

	"parley/internal/domain/conversation"
	parley_errors "parley/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

func (r *PostgresConversationRepository) Create(ctx context.Context, c *conversation.Conversation) error {
	res := r.db.WithContext(ctx).Create(c)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return parley_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := withRetry(ctx, func() error {
		return r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Conversation{}, parley_errors.ErrNotFound
		}
		return conversation.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresConversationRepository) Update(ctx context.Context, c conversation.Conversation) error {
	res := r.db.WithContext(ctx).Save(&c)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return parley_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) GetByDirectKey(ctx context.Context, key string) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := withRetry(ctx, func() error {
		return r.db.WithContext(ctx).
			Where("direct_key = ? AND is_active = ?", key, true).
			First(&c).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Conversation{}, parley_errors.ErrNotFound
		}
		return conversation.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresConversationRepository) GetUserConversations(ctx context.Context, userID uuid.UUID, page, limit int) ([]conversation.Conversation, int64, error) {
	var conversations []conversation.Conversation
	var total int64

	sub := r.db.Model(&conversation.Participant{}).
		Select("conversation_id").
		Where("user_id = ? AND is_active = ?", userID, true)

	q := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id IN (?) AND is_active = ?", sub, true)

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Preload("Participants", "is_active = ?", true).
		Order("last_message_at DESC NULLS LAST").
		Offset(pageOffset(page, limit)).
		Limit(limit).
		Find(&conversations).Error
	if err != nil {
		return nil, 0, err
	}
	return conversations, total, nil
}

func (r *PostgresConversationRepository) AddParticipant(ctx context.Context, p *conversation.Participant) error {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "conversation_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"is_active": true,
				"left_at":   nil,
			}),
		}).
		Create(p)
	return res.Error
}

func (r *PostgresConversationRepository) DeactivateParticipant(ctx context.Context, conversationID, userID uuid.UUID, leftAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ? AND user_id = ? AND is_active = ?", conversationID, userID, true).
		Updates(map[string]interface{}{
			"is_active": false,
			"left_at":   leftAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return parley_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) GetParticipant(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Participant, error) {
	var p conversation.Participant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Participant{}, parley_errors.ErrNotFound
		}
		return conversation.Participant{}, err
	}
	return p, nil
}

func (r *PostgresConversationRepository) GetParticipants(ctx context.Context, conversationID uuid.UUID) ([]conversation.Participant, error) {
	var participants []conversation.Participant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Find(&participants).Error
	if err != nil {
		return nil, err
	}
	return participants, nil
}

func (r *PostgresConversationRepository) GetActiveParticipants(ctx context.Context, conversationID uuid.UUID) ([]conversation.Participant, error) {
	var participants []conversation.Participant
	err := withRetry(ctx, func() error {
		return r.db.WithContext(ctx).
			Where("conversation_id = ? AND is_active = ?", conversationID, true).
			Find(&participants).Error
	})
	if err != nil {
		return nil, err
	}
	return participants, nil
}

func (r *PostgresConversationRepository) IsActiveParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ? AND user_id = ? AND is_active = ?", conversationID, userID, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PostgresConversationRepository) CountActiveParticipants(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ? AND is_active = ?", conversationID, true).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PostgresConversationRepository) IncrementSequence(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	// Compare-and-swap on last_sequence. A lost race re-reads and retries
	// rather than surfacing a conflict to the sender.
	for attempt := 0; attempt < 5; attempt++ {
		var seq conversation.ConversationSequence
		err := r.db.WithContext(ctx).
			Where("conversation_id = ?", conversationID).
			First(&seq).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			seq = conversation.ConversationSequence{ConversationID: conversationID}
			if err := r.db.WithContext(ctx).Create(&seq).Error; err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
				return 0, err
			}
		} else if err != nil {
			return 0, err
		}

		next := seq.LastSequence + 1
		res := r.db.WithContext(ctx).
			Model(&conversation.ConversationSequence{}).
			Where("conversation_id = ? AND last_sequence = ?", conversationID, seq.LastSequence).
			Updates(map[string]interface{}{
				"last_sequence": next,
				"updated_at":    time.Now(),
			})
		if res.Error != nil {
			return 0, res.Error
		}
		if res.RowsAffected == 1 {
			return next, nil
		}
	}
	return 0, parley_errors.ErrConflict
}

func (r *PostgresConversationRepository) AdvanceLastMessageAt(ctx context.Context, conversationID uuid.UUID, at time.Time) error {
	// Guarded so retried out-of-order persistence never moves the cursor back.
	return r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ? AND (last_message_at IS NULL OR last_message_at < ?)", conversationID, at).
		Updates(map[string]interface{}{
			"last_message_at": at,
			"updated_at":      time.Now(),
		}).Error
}
