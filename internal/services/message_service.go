package services

import (
	"context"
	"strings"
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

type MessageService struct {
	db       *gorm.DB
	msgRepo  repository.MessageRepository
	convRepo repository.ConversationRepository
	blocks   repository.BlockRepository
	bus      events.EventBus
	log      *logger.Logger
}

func NewMessageService(db *gorm.DB, msgRepo repository.MessageRepository, convRepo repository.ConversationRepository, blocks repository.BlockRepository, bus events.EventBus, log *logger.Logger) *MessageService {
	if log == nil {
		log = logger.NewNop()
	}
	return &MessageService{db: db, msgRepo: msgRepo, convRepo: convRepo, blocks: blocks, bus: bus, log: log}
}

type SendMessageInput struct {
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	Type           string
	Content        *string
	AttachmentURL  *string
	AttachmentName *string
	AttachmentSize *int64
	ReplyToID      *uuid.UUID
}

type EditMessageInput struct {
	MessageID uuid.UUID
	SenderID  uuid.UUID
	Content   string
}

// Send validates, assigns the next per-conversation sequence number, and
// persists the message atomically. Fan-out happens after commit and never
// affects the result.
func (s *MessageService) Send(ctx context.Context, input SendMessageInput) (message.Message, error) {
	msgType := input.Type
	if msgType == "" {
		msgType = message.TypeText
	}
	if message.RequiresContent(msgType) {
		if input.Content == nil || strings.TrimSpace(*input.Content) == "" {
			return message.Message{}, parley_errors.ErrEmptyContent
		}
	}

	conv, err := s.convRepo.GetByID(ctx, input.ConversationID)
	if err != nil {
		return message.Message{}, err
	}

	ok, err := s.convRepo.IsActiveParticipant(ctx, input.ConversationID, input.SenderID)
	if err != nil {
		return message.Message{}, err
	}
	if !ok {
		return message.Message{}, parley_errors.ErrNotParticipant
	}

	if input.ReplyToID != nil {
		target, err := s.msgRepo.GetByID(ctx, *input.ReplyToID)
		if err != nil || target.ConversationID != input.ConversationID {
			return message.Message{}, parley_errors.ErrInvalidReplyTarget
		}
	}

	now := time.Now()
	msg := message.Message{
		ID:             uuid.New(),
		ConversationID: input.ConversationID,
		SenderID:       input.SenderID,
		Type:           msgType,
		Content:        input.Content,
		AttachmentURL:  input.AttachmentURL,
		AttachmentName: input.AttachmentName,
		AttachmentSize: input.AttachmentSize,
		ReplyToID:      input.ReplyToID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txConv := repository.NewConversationRepository(tx)
		txMsg := repository.NewMessageRepository(tx)
		txBlocks := repository.NewBlockRepository(tx)

		// For DIRECT conversations a block in either direction rejects the
		// send outright. Checked inside the transaction so a concurrent
		// block cannot slip past.
		if conv.Type == conversation.TypeDirect {
			participants, err := txConv.GetActiveParticipants(ctx, input.ConversationID)
			if err != nil {
				return err
			}
			for _, p := range participants {
				if p.UserID == input.SenderID {
					continue
				}
				blocked, err := txBlocks.ExistsBetween(ctx, input.SenderID, p.UserID)
				if err != nil {
					return err
				}
				if blocked {
					return parley_errors.ErrBlocked
				}
			}
		}

		seq, err := txConv.IncrementSequence(ctx, input.ConversationID)
		if err != nil {
			return err
		}
		msg.Seq = seq

		if err := txMsg.Create(ctx, &msg); err != nil {
			return err
		}
		return txConv.AdvanceLastMessageAt(ctx, input.ConversationID, now)
	})
	if err != nil {
		return message.Message{}, err
	}

	s.publishSent(ctx, conv, msg)
	return msg, nil
}

// Edit replaces a message's content. Only the sender may edit, deleted
// messages are immutable, and a concurrent edit loses cleanly.
func (s *MessageService) Edit(ctx context.Context, input EditMessageInput) (message.Message, error) {
	if strings.TrimSpace(input.Content) == "" {
		return message.Message{}, parley_errors.ErrEmptyContent
	}

	msg, err := s.msgRepo.GetByID(ctx, input.MessageID)
	if err != nil {
		return message.Message{}, err
	}
	if msg.SenderID != input.SenderID {
		return message.Message{}, parley_errors.ErrNotSender
	}
	if msg.IsDeleted {
		return message.Message{}, parley_errors.ErrMessageDeleted
	}
	if msg.Content != nil && *msg.Content == input.Content {
		return msg, nil
	}

	editedAt := time.Now()
	rows, err := s.msgRepo.UpdateContent(ctx, msg.ID, input.Content, editedAt, msg.UpdatedAt)
	if err != nil {
		return message.Message{}, err
	}
	if rows == 0 {
		current, err := s.msgRepo.GetByID(ctx, msg.ID)
		if err != nil {
			return message.Message{}, err
		}
		if current.IsDeleted {
			return message.Message{}, parley_errors.ErrMessageDeleted
		}
		return message.Message{}, parley_errors.ErrEditConflict
	}

	msg.Content = &input.Content
	msg.IsEdited = true
	msg.EditedAt = &editedAt
	msg.UpdatedAt = editedAt

	s.publishUpdated(ctx, msg)
	return msg, nil
}

// Delete soft-deletes a message: the row and its sequence position remain
// so replies stay resolvable. Deleting twice is a no-op.
func (s *MessageService) Delete(ctx context.Context, messageID, senderID uuid.UUID) error {
	msg, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != senderID {
		return parley_errors.ErrNotSender
	}
	if msg.IsDeleted {
		return nil
	}

	if err := s.msgRepo.SoftDelete(ctx, messageID); err != nil {
		return err
	}

	s.publishDeleted(ctx, msg)
	return nil
}

// List pages a conversation's history backwards from beforeSeq (0 means the
// tip) and returns messages in ascending sequence order.
func (s *MessageService) List(ctx context.Context, userID, conversationID uuid.UUID, beforeSeq int64, limit int) ([]message.Message, error) {
	ok, err := s.convRepo.IsActiveParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, parley_errors.ErrNotParticipant
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	msgs, err := s.msgRepo.GetConversationMessages(ctx, conversationID, beforeSeq, limit)
	if err != nil {
		return nil, err
	}
	// Repo returns newest-first for efficient paging; clients want
	// chronological.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// CatchUp returns messages a reconnecting client missed, strictly after the
// last sequence number it saw.
func (s *MessageService) CatchUp(ctx context.Context, userID, conversationID uuid.UUID, afterSeq int64, limit int) ([]message.Message, error) {
	ok, err := s.convRepo.IsActiveParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, parley_errors.ErrNotParticipant
	}
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	return s.msgRepo.GetMessagesSinceSeq(ctx, conversationID, afterSeq, limit)
}

// Search finds non-deleted messages by substring, scoped to conversations
// the caller participates in.
func (s *MessageService) Search(ctx context.Context, userID uuid.UUID, query string, conversationID *uuid.UUID, page, limit int) ([]message.Message, int64, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, 0, parley_errors.ErrInvalidInput
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if conversationID != nil {
		ok, err := s.convRepo.IsActiveParticipant(ctx, *conversationID, userID)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			return nil, 0, parley_errors.ErrNotParticipant
		}
	}
	return s.msgRepo.SearchMessages(ctx, userID, query, conversationID, page, limit)
}

func (s *MessageService) Get(ctx context.Context, userID, messageID uuid.UUID) (message.Message, error) {
	msg, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return message.Message{}, err
	}
	ok, err := s.convRepo.IsActiveParticipant(ctx, msg.ConversationID, userID)
	if err != nil {
		return message.Message{}, err
	}
	if !ok {
		return message.Message{}, parley_errors.ErrNotParticipant
	}
	return msg, nil
}

// recipientsFor resolves who should hear about activity in a conversation:
// active participants minus the actor minus anyone in a block relationship
// with the actor.
func (s *MessageService) recipientsFor(ctx context.Context, conversationID, actorID uuid.UUID) []uuid.UUID {
	participants, err := s.convRepo.GetActiveParticipants(ctx, conversationID)
	if err != nil {
		s.log.Errorf("resolve recipients for conversation %s failed: %v", conversationID, err)
		return nil
	}
	others := make([]uuid.UUID, 0, len(participants))
	for _, p := range participants {
		if p.UserID != actorID {
			others = append(others, p.UserID)
		}
	}
	if len(others) == 0 {
		return nil
	}
	blocked, err := s.blocks.BlockedEitherDirection(ctx, actorID, others)
	if err != nil {
		s.log.Warnf("block lookup failed, delivering unfiltered: %v", err)
		return others
	}
	out := others[:0]
	for _, id := range others {
		if !blocked[id] {
			out = append(out, id)
		}
	}
	return out
}

func (s *MessageService) publishSent(ctx context.Context, conv conversation.Conversation, msg message.Message) {
	if s.bus == nil {
		return
	}
	content := ""
	if msg.Content != nil {
		content = *msg.Content
	}
	_ = s.bus.Publish(ctx, &events.MessageSentEvent{
		BaseEvent: events.BaseEvent{
			EventTypeVal: events.EventMessageSent,
			TimestampVal: time.Now(),
			RecipientIDs: s.recipientsFor(ctx, conv.ID, msg.SenderID),
		},
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Seq:            msg.Seq,
		Content:        content,
		MessageType:    msg.Type,
		ReplyToID:      msg.ReplyToID,
		AttachmentURL:  msg.AttachmentURL,
		AttachmentName: msg.AttachmentName,
		AttachmentSize: msg.AttachmentSize,
		SentAt:         msg.CreatedAt,
	})
}

func (s *MessageService) publishUpdated(ctx context.Context, msg message.Message) {
	if s.bus == nil {
		return
	}
	content := ""
	if msg.Content != nil {
		content = *msg.Content
	}
	_ = s.bus.Publish(ctx, &events.MessageUpdatedEvent{
		BaseEvent: events.BaseEvent{
			EventTypeVal: events.EventMessageUpdated,
			TimestampVal: time.Now(),
			RecipientIDs: s.recipientsFor(ctx, msg.ConversationID, msg.SenderID),
		},
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Seq:            msg.Seq,
		Content:        content,
		EditedAt:       *msg.EditedAt,
	})
}

func (s *MessageService) publishDeleted(ctx context.Context, msg message.Message) {
	if s.bus == nil {
		return
	}
	_ = s.bus.Publish(ctx, &events.MessageDeletedEvent{
		BaseEvent: events.BaseEvent{
			EventTypeVal: events.EventMessageDeleted,
			TimestampVal: time.Now(),
			RecipientIDs: s.recipientsFor(ctx, msg.ConversationID, msg.SenderID),
		},
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		Seq:            msg.Seq,
	})
}
