package services

import (
	"context"
	"time"

	"parley/internal/domain/message"
	"parley/internal/events"
	"parley/internal/repository"
	parley_errors "parley/pkg/errors"
	"parley/pkg/logger"

	"github.com/google/uuid"
)

// LedgerService owns the per-message bookkeeping that accumulates around a
// message after it is sent: reactions and read receipts.
type LedgerService struct {
	msgRepo  repository.MessageRepository
	convRepo repository.ConversationRepository
	blocks   repository.BlockRepository
	bus      events.EventBus
	log      *logger.Logger
}

func NewLedgerService(msgRepo repository.MessageRepository, convRepo repository.ConversationRepository, blocks repository.BlockRepository, bus events.EventBus, log *logger.Logger) *LedgerService {
	if log == nil {
		log = logger.NewNop()
	}
	return &LedgerService{msgRepo: msgRepo, convRepo: convRepo, blocks: blocks, bus: bus, log: log}
}

// ReactionSummary aggregates one emoji on one message.
type ReactionSummary struct {
	Emoji    string      `json:"emoji"`
	Count    int         `json:"count"`
	UserIDs  []uuid.UUID `json:"userIds"`
	DidReact bool        `json:"didReact"`
}

// AddReaction records a reaction. Reacting twice with the same emoji is a
// no-op and emits no event.
func (s *LedgerService) AddReaction(ctx context.Context, userID, messageID uuid.UUID, emoji string) error {
	if emoji == "" {
		return parley_errors.ErrInvalidInput
	}

	msg, err := s.scopedMessage(ctx, userID, messageID)
	if err != nil {
		return err
	}
	if msg.IsDeleted {
		return parley_errors.ErrMessageDeleted
	}
	if msg.SenderID != userID {
		blocked, err := s.blocks.ExistsBetween(ctx, userID, msg.SenderID)
		if err != nil {
			return err
		}
		if blocked {
			return parley_errors.ErrBlocked
		}
	}

	inserted, err := s.msgRepo.AddReaction(ctx, &message.Reaction{
		ID:        uuid.New(),
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return err
	}
	if inserted {
		s.publishReaction(ctx, msg, userID, emoji, "add")
	}
	return nil
}

func (s *LedgerService) RemoveReaction(ctx context.Context, userID, messageID uuid.UUID, emoji string) error {
	msg, err := s.scopedMessage(ctx, userID, messageID)
	if err != nil {
		return err
	}

	removed, err := s.msgRepo.RemoveReaction(ctx, messageID, userID, emoji)
	if err != nil {
		return err
	}
	if removed {
		s.publishReaction(ctx, msg, userID, emoji, "remove")
	}
	return nil
}

// Reactions returns the per-emoji aggregate for a message, flagging the
// caller's own reactions.
func (s *LedgerService) Reactions(ctx context.Context, userID, messageID uuid.UUID) ([]ReactionSummary, error) {
	if _, err := s.scopedMessage(ctx, userID, messageID); err != nil {
		return nil, err
	}

	reactions, err := s.msgRepo.GetMessageReactions(ctx, messageID)
	if err != nil {
		return nil, err
	}

	byEmoji := map[string]*ReactionSummary{}
	order := []string{}
	for _, r := range reactions {
		summary, ok := byEmoji[r.Emoji]
		if !ok {
			summary = &ReactionSummary{Emoji: r.Emoji}
			byEmoji[r.Emoji] = summary
			order = append(order, r.Emoji)
		}
		summary.Count++
		summary.UserIDs = append(summary.UserIDs, r.UserID)
		if r.UserID == userID {
			summary.DidReact = true
		}
	}

	out := make([]ReactionSummary, 0, len(order))
	for _, emoji := range order {
		out = append(out, *byEmoji[emoji])
	}
	return out, nil
}

// MarkRead records that the user has read one message. Reading your own
// message is a silent no-op, and readAt never moves backwards.
func (s *LedgerService) MarkRead(ctx context.Context, userID, messageID uuid.UUID) error {
	msg, err := s.scopedMessage(ctx, userID, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID == userID {
		return nil
	}

	_, err = s.msgRepo.UpsertReceipt(ctx, messageID, userID, time.Now())
	return err
}

// MarkConversationRead receipts every unread message up to and including
// upToSeq (0 means everything) and emits a single aggregate read event.
func (s *LedgerService) MarkConversationRead(ctx context.Context, userID, conversationID uuid.UUID, upToSeq int64) (int, error) {
	ok, err := s.convRepo.IsActiveParticipant(ctx, conversationID, userID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, parley_errors.ErrNotParticipant
	}

	unread, err := s.msgRepo.GetUnreadMessages(ctx, conversationID, userID, upToSeq)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	marked := 0
	var highestSeq int64
	for _, msg := range unread {
		changed, err := s.msgRepo.UpsertReceipt(ctx, msg.ID, userID, now)
		if err != nil {
			return marked, err
		}
		if changed {
			marked++
		}
		if msg.Seq > highestSeq {
			highestSeq = msg.Seq
		}
	}

	if marked > 0 {
		s.publishRead(ctx, conversationID, userID, highestSeq)
	}
	return marked, nil
}

func (s *LedgerService) Receipts(ctx context.Context, userID, messageID uuid.UUID) ([]message.ReadReceipt, error) {
	if _, err := s.scopedMessage(ctx, userID, messageID); err != nil {
		return nil, err
	}
	return s.msgRepo.GetMessageReceipts(ctx, messageID)
}

func (s *LedgerService) UnreadCount(ctx context.Context, userID, conversationID uuid.UUID) (int64, error) {
	ok, err := s.convRepo.IsActiveParticipant(ctx, conversationID, userID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, parley_errors.ErrNotParticipant
	}
	return s.msgRepo.CountUnread(ctx, conversationID, userID)
}

// scopedMessage loads a message only if the caller is an active participant
// of its conversation.
func (s *LedgerService) scopedMessage(ctx context.Context, userID, messageID uuid.UUID) (message.Message, error) {
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

func (s *LedgerService) publishReaction(ctx context.Context, msg message.Message, userID uuid.UUID, emoji, action string) {
	if s.bus == nil {
		return
	}
	eventType := events.EventReactionAdded
	if action == "remove" {
		eventType = events.EventReactionRemoved
	}
	_ = s.bus.Publish(ctx, &events.ReactionEvent{
		BaseEvent: events.BaseEvent{
			EventTypeVal: eventType,
			TimestampVal: time.Now(),
			RecipientIDs: s.recipientsFor(ctx, msg.ConversationID, userID),
		},
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		UserID:         userID,
		Emoji:          emoji,
		Action:         action,
	})
}

func (s *LedgerService) publishRead(ctx context.Context, conversationID, readerID uuid.UUID, upToSeq int64) {
	if s.bus == nil {
		return
	}
	_ = s.bus.Publish(ctx, &events.ConversationReadEvent{
		BaseEvent: events.BaseEvent{
			EventTypeVal: events.EventConversationRead,
			TimestampVal: time.Now(),
			RecipientIDs: s.recipientsFor(ctx, conversationID, readerID),
		},
		ConversationID: conversationID,
		ReaderID:       readerID,
		UpToSeq:        upToSeq,
	})
}

func (s *LedgerService) recipientsFor(ctx context.Context, conversationID, actorID uuid.UUID) []uuid.UUID {
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
