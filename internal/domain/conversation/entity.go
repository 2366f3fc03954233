package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Conversation type values
const (
	TypeDirect  = "DIRECT"
	TypeGroup   = "GROUP"
	TypeSession = "SESSION"
	TypeSupport = "SUPPORT"
)

// Participant role values
const (
	RoleAdmin     = "ADMIN"
	RoleModerator = "MODERATOR"
	RoleMember    = "MEMBER"
)

type Conversation struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Type  string    `gorm:"type:varchar(16);not null;default:'DIRECT'" json:"type"`
	Title *string   `gorm:"type:varchar(255)" json:"title,omitempty"`
	// DirectKey is the unordered participant-pair fingerprint for DIRECT
	// conversations; the unique index makes 1:1 creation idempotent.
	DirectKey     *string    `gorm:"type:varchar(80);uniqueIndex:idx_conversations_direct_key" json:"-"`
	IsActive      bool       `gorm:"not null;default:true" json:"is_active"`
	LastMessageAt *time.Time `gorm:"index:idx_conversations_last_message" json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// Relations
	Participants []Participant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
}

type Participant struct {
	ConversationID uuid.UUID  `gorm:"type:uuid;primaryKey" json:"conversation_id"`
	UserID         uuid.UUID  `gorm:"type:uuid;primaryKey;index:idx_participants_user" json:"user_id"`
	Role           string     `gorm:"type:varchar(16);not null;default:'MEMBER'" json:"role"`
	JoinedAt       time.Time  `gorm:"not null" json:"joined_at"`
	LeftAt         *time.Time `json:"left_at,omitempty"`
	IsActive       bool       `gorm:"not null;default:true" json:"is_active"`
}

// ConversationSequence hands out the per-conversation monotonic sequence
// stamped on every committed message and fan-out event.
type ConversationSequence struct {
	ConversationID uuid.UUID `gorm:"type:uuid;primaryKey"`
	LastSequence   int64     `gorm:"not null;default:0"`
	UpdatedAt      time.Time
}

func (Conversation) TableName() string {
	return "conversations"
}

func (Participant) TableName() string {
	return "participants"
}

func (ConversationSequence) TableName() string {
	return "conversation_sequences"
}

// DirectKeyFor builds the unordered pair fingerprint for a DIRECT
// conversation. Order of the arguments does not matter.
func DirectKeyFor(a, b uuid.UUID) string {
	if b.String() < a.String() {
		a, b = b, a
	}
	return a.String() + ":" + b.String()
}
