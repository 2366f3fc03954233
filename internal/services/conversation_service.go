package services

import (
	"context"
	"errors"
	"time"

	"parley/internal/domain/conversation"
	"parley/internal/domain/message"
	"parley/internal/events"
	"parley/internal/repository"
	parley_errors "parley/pkg/errors"
	"parley/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ConversationService struct {
	db      *gorm.DB
	repo    repository.ConversationRepository
	msgRepo repository.MessageRepository
	bus     events.EventBus
	log     *logger.Logger
}

func NewConversationService(db *gorm.DB, repo repository.ConversationRepository, msgRepo repository.MessageRepository, bus events.EventBus, log *logger.Logger) *ConversationService {
	if log == nil {
		log = logger.NewNop()
	}
	return &ConversationService{db: db, repo: repo, msgRepo: msgRepo, bus: bus, log: log}
}

type CreateConversationInput struct {
	CreatorID      uuid.UUID
	ParticipantIDs []uuid.UUID
	Type           string
	Title          *string
}

// ConversationSummary is a user-scoped listing row: the conversation plus
// the derived fields clients render in a conversation list.
type ConversationSummary struct {
	Conversation conversation.Conversation
	LastMessage  *message.Message
	UnreadCount  int64
}

// Create makes a new conversation with the creator as ADMIN. DIRECT
// creation is idempotent: the existing active conversation for the same
// unordered pair is returned instead of a duplicate.
func (s *ConversationService) Create(ctx context.Context, input CreateConversationInput) (conversation.Conversation, error) {
	participantIDs := dedupeWith(input.CreatorID, input.ParticipantIDs)

	convType := input.Type
	if convType == "" {
		convType = conversation.TypeDirect
	}

	var directKey *string
	if convType == conversation.TypeDirect {
		if len(participantIDs) != 2 {
			return conversation.Conversation{}, parley_errors.ErrInvalidParticipantCount
		}
		key := conversation.DirectKeyFor(participantIDs[0], participantIDs[1])
		directKey = &key

		if existing, err := s.repo.GetByDirectKey(ctx, key); err == nil {
			return existing, nil
		} else if !errors.Is(err, parley_errors.ErrNotFound) {
			return conversation.Conversation{}, err
		}
	} else if len(participantIDs) < 1 {
		return conversation.Conversation{}, parley_errors.ErrInvalidParticipantCount
	}

	now := time.Now()
	conv := conversation.Conversation{
		ID:        uuid.New(),
		Type:      convType,
		Title:     input.Title,
		DirectKey: directKey,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewConversationRepository(tx)
		if err := repo.Create(ctx, &conv); err != nil {
			return err
		}
		for _, participantID := range participantIDs {
			role := conversation.RoleMember
			if participantID == input.CreatorID {
				role = conversation.RoleAdmin
			}
			p := &conversation.Participant{
				ConversationID: conv.ID,
				UserID:         participantID,
				Role:           role,
				JoinedAt:       now,
				IsActive:       true,
			}
			if err := repo.AddParticipant(ctx, p); err != nil {
				return err
			}
			conv.Participants = append(conv.Participants, *p)
		}
		return nil
	})
	if err != nil {
		// Two racing creates for the same DIRECT pair: the unique
		// direct_key index rejects the loser, which resolves to the
		// winner's conversation.
		if directKey != nil && errors.Is(err, parley_errors.ErrAlreadyExists) {
			return s.repo.GetByDirectKey(ctx, *directKey)
		}
		return conversation.Conversation{}, err
	}

	s.publishCreated(ctx, conv, input.CreatorID, participantIDs)
	return conv, nil
}

func (s *ConversationService) Get(ctx context.Context, userID, conversationID uuid.UUID) (conversation.Conversation, error) {
	ok, err := s.repo.IsActiveParticipant(ctx, conversationID, userID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if !ok {
		return conversation.Conversation{}, parley_errors.ErrNotParticipant
	}

	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	conv.Participants, err = s.repo.GetParticipants(ctx, conversationID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	return conv, nil
}

// ListForUser returns the caller's active conversations ordered by recency,
// with last-message preview and unread count. Counts are computed from the
// ledger on every call, never cached.
func (s *ConversationService) ListForUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]ConversationSummary, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	conversations, total, err := s.repo.GetUserConversations(ctx, userID, page, limit)
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]ConversationSummary, 0, len(conversations))
	for _, conv := range conversations {
		summary := ConversationSummary{Conversation: conv}

		latest, err := s.msgRepo.GetConversationMessages(ctx, conv.ID, 0, 1)
		if err == nil && len(latest) > 0 {
			summary.LastMessage = &latest[0]
		}
		if count, err := s.msgRepo.CountUnread(ctx, conv.ID, userID); err == nil {
			summary.UnreadCount = count
		}
		summaries = append(summaries, summary)
	}
	return summaries, total, nil
}

// ConversationIDs returns the ids of every active conversation the user is
// in. Used by the realtime layer to scope typing and presence fan-out.
func (s *ConversationService) ConversationIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	conversations, _, err := s.repo.GetUserConversations(ctx, userID, 1, 1000)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(conversations))
	for _, conv := range conversations {
		ids = append(ids, conv.ID)
	}
	return ids, nil
}

func (s *ConversationService) AddParticipant(ctx context.Context, actorID, conversationID, userID uuid.UUID) error {
	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.Type == conversation.TypeDirect {
		return parley_errors.ErrInvalidParticipantCount
	}

	ok, err := s.repo.IsActiveParticipant(ctx, conversationID, actorID)
	if err != nil {
		return err
	}
	if !ok {
		return parley_errors.ErrNotParticipant
	}

	// A previously-left user is reactivated in place; the upsert never
	// inserts a duplicate membership row.
	p := &conversation.Participant{
		ConversationID: conversationID,
		UserID:         userID,
		Role:           conversation.RoleMember,
		JoinedAt:       time.Now(),
		IsActive:       true,
	}
	if err := s.repo.AddParticipant(ctx, p); err != nil {
		return err
	}

	s.publishParticipant(ctx, events.EventParticipantAdded, conversationID, userID, "added", actorID)
	return nil
}

func (s *ConversationService) RemoveParticipant(ctx context.Context, actorID, conversationID, userID uuid.UUID) error {
	if actorID != userID {
		actor, err := s.repo.GetParticipant(ctx, conversationID, actorID)
		if err != nil {
			return parley_errors.ErrNotParticipant
		}
		if actor.Role != conversation.RoleAdmin && actor.Role != conversation.RoleModerator {
			return parley_errors.ErrForbidden
		}
	}

	if err := s.repo.DeactivateParticipant(ctx, conversationID, userID, time.Now()); err != nil {
		return err
	}

	s.publishParticipant(ctx, events.EventParticipantRemoved, conversationID, userID, "removed", actorID)
	return nil
}

// ActiveParticipants resolves the fan-out audience: everyone who has not
// left. Left participants stay visible in history but receive nothing.
func (s *ConversationService) ActiveParticipants(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	participants, err := s.repo.GetActiveParticipants(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.UserID)
	}
	return ids, nil
}

func (s *ConversationService) publishCreated(ctx context.Context, conv conversation.Conversation, creatorID uuid.UUID, participantIDs []uuid.UUID) {
	if s.bus == nil {
		return
	}
	recipients := make([]uuid.UUID, 0, len(participantIDs))
	for _, id := range participantIDs {
		if id != creatorID {
			recipients = append(recipients, id)
		}
	}
	_ = s.bus.Publish(ctx, &events.ConversationCreatedEvent{
		BaseEvent: events.BaseEvent{
			EventTypeVal: events.EventConversationCreated,
			TimestampVal: time.Now(),
			RecipientIDs: recipients,
		},
		ConversationID:   conv.ID,
		ConversationType: conv.Type,
		Title:            conv.Title,
		CreatedBy:        creatorID,
		ParticipantIDs:   participantIDs,
	})
}

func (s *ConversationService) publishParticipant(ctx context.Context, eventType events.EventType, conversationID, userID uuid.UUID, action string, actorID uuid.UUID) {
	if s.bus == nil {
		return
	}
	recipients, err := s.ActiveParticipants(ctx, conversationID)
	if err != nil {
		s.log.Errorf("resolve participants for %s failed: %v", eventType, err)
		return
	}
	filtered := recipients[:0]
	for _, id := range recipients {
		if id != actorID {
			filtered = append(filtered, id)
		}
	}
	_ = s.bus.Publish(ctx, &events.ParticipantEvent{
		BaseEvent: events.BaseEvent{
			EventTypeVal: eventType,
			TimestampVal: time.Now(),
			RecipientIDs: filtered,
		},
		ConversationID: conversationID,
		UserID:         userID,
		Action:         action,
	})
}

func dedupeWith(first uuid.UUID, rest []uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]bool{first: true}
	out := []uuid.UUID{first}
	for _, id := range rest {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
