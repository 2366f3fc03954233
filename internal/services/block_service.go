package services

import (
	"context"
	"time"

	"parley/internal/domain/user"
	"parley/internal/events"
	"parley/internal/repository"
	parley_errors "parley/pkg/errors"
	"parley/pkg/logger"

	"github.com/google/uuid"
)

// BlockService owns the directed block ledger. A block never rewrites
// history; it only gates writes from the moment it exists.
type BlockService struct {
	repo repository.BlockRepository
	bus  events.EventBus
	log  *logger.Logger
}

func NewBlockService(repo repository.BlockRepository, bus events.EventBus, log *logger.Logger) *BlockService {
	if log == nil {
		log = logger.NewNop()
	}
	return &BlockService{repo: repo, bus: bus, log: log}
}

func (s *BlockService) Block(ctx context.Context, blockerID, blockedID uuid.UUID, reason *string) error {
	if blockerID == blockedID {
		return parley_errors.ErrInvalidInput
	}

	b := &user.Block{
		ID:        uuid.New(),
		BlockerID: blockerID,
		BlockedID: blockedID,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
	if err := s.repo.Upsert(ctx, b); err != nil {
		return err
	}

	s.publish(ctx, events.EventUserBlocked, blockerID, blockedID, "blocked")
	return nil
}

func (s *BlockService) Unblock(ctx context.Context, blockerID, blockedID uuid.UUID) error {
	removed, err := s.repo.Delete(ctx, blockerID, blockedID)
	if err != nil {
		return err
	}
	if removed {
		s.publish(ctx, events.EventUserUnblocked, blockerID, blockedID, "unblocked")
	}
	return nil
}

// IsBlockedEitherDirection is the single check used by the message and
// ledger write paths: one block in either direction stops new activity
// between the pair.
func (s *BlockService) IsBlockedEitherDirection(ctx context.Context, userA, userB uuid.UUID) (bool, error) {
	return s.repo.ExistsBetween(ctx, userA, userB)
}

func (s *BlockService) ListBlocked(ctx context.Context, blockerID uuid.UUID) ([]user.Block, error) {
	return s.repo.GetUserBlocks(ctx, blockerID)
}

func (s *BlockService) publish(ctx context.Context, eventType events.EventType, blockerID, blockedID uuid.UUID, action string) {
	if s.bus == nil {
		return
	}
	// Only the blocker is notified; the blocked side is never told.
	_ = s.bus.Publish(ctx, &events.BlockEvent{
		BaseEvent: events.BaseEvent{
			EventTypeVal: eventType,
			TimestampVal: time.Now(),
			RecipientIDs: []uuid.UUID{blockerID},
		},
		BlockerID: blockerID,
		BlockedID: blockedID,
		Action:    action,
	})
}
