package httpdto

import (
	"time"

	"github.com/google/uuid"
)

type BlockUserRequest struct {
	UserID string  `json:"user_id" binding:"required"`
	Reason *string `json:"reason,omitempty"`
}

type BlockView struct {
	BlockedID uuid.UUID `json:"blocked_id"`
	Reason    *string   `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type BlockListResponse struct {
	Blocks []BlockView `json:"blocks"`
}
