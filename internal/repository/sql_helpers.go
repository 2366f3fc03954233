package repository

import (
	"context"
	"errors"

	parley_errors "parley/pkg/errors"

	"gorm.io/gorm"
)

// withRetry runs op and retries it exactly once when the failure looks
// transient. A second failure surfaces as ErrStoreUnavailable so callers see
// one stable error kind for store outages.
func withRetry(ctx context.Context, op func() error) error {
	err := op()
	if err == nil || !isTransient(err) {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err = op(); err != nil {
		if isTransient(err) {
			return parley_errors.ErrStoreUnavailable
		}
		return err
	}
	return nil
}

func isTransient(err error) bool {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, gorm.ErrDuplicatedKey),
		errors.Is(err, gorm.ErrForeignKeyViolated),
		errors.Is(err, gorm.ErrInvalidData),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

func pageOffset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}
