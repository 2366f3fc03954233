package repository

import (
	"context"

	"parley/internal/domain/user"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresBlockRepository struct {
	db *gorm.DB
}

func NewBlockRepository(db *gorm.DB) BlockRepository {
	return &PostgresBlockRepository{db: db}
}

func (r *PostgresBlockRepository) Upsert(ctx context.Context, b *user.Block) error {
	return withRetry(ctx, func() error {
		return r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "blocker_id"}, {Name: "blocked_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"reason"}),
			}).
			Create(b).Error
	})
}

func (r *PostgresBlockRepository) Delete(ctx context.Context, blockerID, blockedID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Delete(&user.Block{}, "blocker_id = ? AND blocked_id = ?", blockerID, blockedID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *PostgresBlockRepository) ExistsBetween(ctx context.Context, userA, userB uuid.UUID) (bool, error) {
	var count int64
	err := withRetry(ctx, func() error {
		return r.db.WithContext(ctx).
			Model(&user.Block{}).
			Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)",
				userA, userB, userB, userA).
			Count(&count).Error
	})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PostgresBlockRepository) BlockedEitherDirection(ctx context.Context, userID uuid.UUID, others []uuid.UUID) (map[uuid.UUID]bool, error) {
	result := make(map[uuid.UUID]bool, len(others))
	if len(others) == 0 {
		return result, nil
	}

	var blocks []user.Block
	err := r.db.WithContext(ctx).
		Where("(blocker_id = ? AND blocked_id IN (?)) OR (blocked_id = ? AND blocker_id IN (?))",
			userID, others, userID, others).
		Find(&blocks).Error
	if err != nil {
		return nil, err
	}

	for _, b := range blocks {
		if b.BlockerID == userID {
			result[b.BlockedID] = true
		} else {
			result[b.BlockerID] = true
		}
	}
	return result, nil
}

func (r *PostgresBlockRepository) GetUserBlocks(ctx context.Context, blockerID uuid.UUID) ([]user.Block, error) {
	var blocks []user.Block
	err := r.db.WithContext(ctx).
		Where("blocker_id = ?", blockerID).
		Order("created_at DESC").
		Find(&blocks).Error
	if err != nil {
		return nil, err
	}
	return blocks, nil
}
