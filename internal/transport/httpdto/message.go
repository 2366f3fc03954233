package httpdto

import (
	"time"

	"github.com/google/uuid"

	"parley/internal/domain/message"
)

type SendMessageRequest struct {
	ConversationID string  `json:"conversation_id" binding:"required"`
	Type           string  `json:"type,omitempty"`
	Content        *string `json:"content,omitempty"`
	AttachmentURL  *string `json:"attachment_url,omitempty"`
	AttachmentName *string `json:"attachment_name,omitempty"`
	AttachmentSize *int64  `json:"attachment_size,omitempty"`
	ReplyToID      *string `json:"reply_to_id,omitempty"`
}

type EditMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type AddReactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

type MarkConversationReadRequest struct {
	UpToSeq int64 `json:"up_to_seq,omitempty"`
}

// MessageView is the wire shape of a message. Deleted messages keep their
// place in history but expose a placeholder instead of the original text.
type MessageView struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	SenderID       uuid.UUID  `json:"sender_id"`
	Seq            int64      `json:"seq"`
	Type           string     `json:"type"`
	Content        *string    `json:"content,omitempty"`
	AttachmentURL  *string    `json:"attachment_url,omitempty"`
	AttachmentName *string    `json:"attachment_name,omitempty"`
	AttachmentSize *int64     `json:"attachment_size,omitempty"`
	ReplyToID      *uuid.UUID `json:"reply_to_id,omitempty"`
	IsEdited       bool       `json:"is_edited"`
	IsDeleted      bool       `json:"is_deleted"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`

	// Populated on single-message fetches only.
	Reactions    []ReactionView `json:"reactions,omitempty"`
	ReadReceipts []ReceiptView  `json:"read_receipts,omitempty"`
}

type ReactionView struct {
	Emoji    string      `json:"emoji"`
	Count    int         `json:"count"`
	UserIDs  []uuid.UUID `json:"user_ids"`
	DidReact bool        `json:"did_react"`
}

type MessageListResponse struct {
	Messages []MessageView `json:"messages"`
}

type SearchResponse struct {
	Messages []MessageView `json:"messages"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	Limit    int           `json:"limit"`
}

type ReceiptView struct {
	UserID uuid.UUID `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}

func ToMessageView(m message.Message) MessageView {
	view := MessageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Seq:            m.Seq,
		Type:           m.Type,
		Content:        m.Content,
		AttachmentURL:  m.AttachmentURL,
		AttachmentName: m.AttachmentName,
		AttachmentSize: m.AttachmentSize,
		ReplyToID:      m.ReplyToID,
		IsEdited:       m.IsEdited,
		IsDeleted:      m.IsDeleted,
		EditedAt:       m.EditedAt,
		CreatedAt:      m.CreatedAt,
	}
	if m.IsDeleted {
		placeholder := message.DeletedPlaceholder
		view.Content = &placeholder
		view.AttachmentURL = nil
		view.AttachmentName = nil
		view.AttachmentSize = nil
	}
	return view
}

func ToMessageViews(msgs []message.Message) []MessageView {
	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, ToMessageView(m))
	}
	return views
}
