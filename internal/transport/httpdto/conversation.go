package httpdto

import (
	"time"

	"github.com/google/uuid"

	"parley/internal/domain/conversation"
)

// CreateConversationRequest creates a conversation. The caller is added as
// a participant implicitly.
type CreateConversationRequest struct {
	Type           string   `json:"type"`
	Title          *string  `json:"title,omitempty"`
	ParticipantIDs []string `json:"participant_ids" binding:"required"`
}

type AddParticipantRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type ParticipantView struct {
	UserID   uuid.UUID  `json:"user_id"`
	Role     string     `json:"role"`
	JoinedAt time.Time  `json:"joined_at"`
	LeftAt   *time.Time `json:"left_at,omitempty"`
	IsActive bool       `json:"is_active"`
}

type ConversationView struct {
	ID            uuid.UUID         `json:"id"`
	Type          string            `json:"type"`
	Title         *string           `json:"title,omitempty"`
	IsActive      bool              `json:"is_active"`
	LastMessageAt *time.Time        `json:"last_message_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	Participants  []ParticipantView `json:"participants,omitempty"`
}

type ConversationSummaryView struct {
	ConversationView
	LastMessage *MessageView `json:"last_message,omitempty"`
	UnreadCount int64        `json:"unread_count"`
}

type ConversationListResponse struct {
	Conversations []ConversationSummaryView `json:"conversations"`
	Total         int64                     `json:"total"`
	Page          int                       `json:"page"`
	Limit         int                       `json:"limit"`
}

func ToConversationView(c conversation.Conversation) ConversationView {
	view := ConversationView{
		ID:            c.ID,
		Type:          c.Type,
		Title:         c.Title,
		IsActive:      c.IsActive,
		LastMessageAt: c.LastMessageAt,
		CreatedAt:     c.CreatedAt,
	}
	for _, p := range c.Participants {
		view.Participants = append(view.Participants, ParticipantView{
			UserID:   p.UserID,
			Role:     p.Role,
			JoinedAt: p.JoinedAt,
			LeftAt:   p.LeftAt,
			IsActive: p.IsActive,
		})
	}
	return view
}
