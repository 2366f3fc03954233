package message

import (
	"time"

	"github.com/google/uuid"
)

// Message type values
const (
	TypeText     = "TEXT"
	TypeImage    = "IMAGE"
	TypeAudio    = "AUDIO"
	TypeFile     = "FILE"
	TypeVoice    = "VOICE"
	TypeVideo    = "VIDEO"
	TypeSystem   = "SYSTEM"
	TypeLocation = "LOCATION"
	TypePoll     = "POLL"
)

// DeletedPlaceholder is what clients see in place of the content of a
// soft-deleted message. The original content stays in the row so replies
// keep resolving.
const DeletedPlaceholder = "This message was deleted"

// RequiresContent reports whether a message of the given type must carry
// non-empty text content. SYSTEM, LOCATION and POLL messages carry their
// payload in attachment/metadata fields instead.
func RequiresContent(msgType string) bool {
	switch msgType {
	case TypeSystem, TypeLocation, TypePoll:
		return false
	default:
		return true
	}
}

type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index:idx_messages_history,priority:1" json:"conversation_id"`
	SenderID       uuid.UUID `gorm:"type:uuid;not null" json:"sender_id"`
	// Seq is the per-conversation commit order, assigned inside the send
	// transaction from conversation_sequences.
	Seq            int64      `gorm:"not null;index:idx_messages_history,priority:2" json:"seq"`
	Type           string     `gorm:"type:varchar(16);not null;default:'TEXT'" json:"type"`
	Content        *string    `gorm:"type:text" json:"content,omitempty"`
	AttachmentURL  *string    `gorm:"type:text" json:"attachment_url,omitempty"`
	AttachmentName *string    `gorm:"type:varchar(255)" json:"attachment_name,omitempty"`
	AttachmentSize *int64     `json:"attachment_size,omitempty"`
	ReplyToID      *uuid.UUID `gorm:"type:uuid" json:"reply_to_id,omitempty"`
	IsEdited       bool       `gorm:"not null;default:false" json:"is_edited"`
	IsDeleted      bool       `gorm:"not null;default:false" json:"is_deleted"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Relations
	Reactions []Reaction    `gorm:"foreignKey:MessageID" json:"reactions,omitempty"`
	Receipts  []ReadReceipt `gorm:"foreignKey:MessageID" json:"receipts,omitempty"`
}

type Reaction struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reactions_triple,priority:1;index:idx_reactions_message" json:"message_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reactions_triple,priority:2" json:"user_id"`
	Emoji     string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_reactions_triple,priority:3" json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

type ReadReceipt struct {
	MessageID uuid.UUID `gorm:"type:uuid;primaryKey;index:idx_receipts_message" json:"message_id"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	ReadAt    time.Time `gorm:"not null" json:"read_at"`
}

func (Message) TableName() string {
	return "messages"
}

func (Reaction) TableName() string {
	return "message_reactions"
}

func (ReadReceipt) TableName() string {
	return "message_read_receipts"
}
