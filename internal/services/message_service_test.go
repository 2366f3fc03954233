package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/events"
	parley_errors "parley/pkg/errors"
)

func sendText(t *testing.T, env *testEnv, conversationID, senderID uuid.UUID, text string) uuid.UUID {
	t.Helper()
	msg, err := env.msgs.Send(context.Background(), SendMessageInput{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        &text,
	})
	require.NoError(t, err)
	return msg.ID
}

func TestSendAssignsMonotonicSequence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.directConversation(t)

	var lastSeq int64
	for i, text := range []string{"one", "two", "three"} {
		msg, err := env.msgs.Send(ctx, SendMessageInput{
			ConversationID: conv.ID,
			SenderID:       env.userA,
			Content:        &text,
		})
		require.NoError(t, err)
		assert.EqualValues(t, i+1, msg.Seq)
		assert.Greater(t, msg.Seq, lastSeq)
		lastSeq = msg.Seq
	}
}

func TestSendRequiresMembership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.directConversation(t)

	text := "intruder"
	_, err := env.msgs.Send(ctx, SendMessageInput{
		ConversationID: conv.ID,
		SenderID:       env.userC,
		Content:        &text,
	})
	assert.ErrorIs(t, err, parley_errors.ErrNotParticipant)
}

func TestSendRequiresContentForTextMessages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.directConversation(t)

	_, err := env.msgs.Send(ctx, SendMessageInput{
		ConversationID: conv.ID,
		SenderID:       env.userA,
	})
	assert.ErrorIs(t, err, parley_errors.ErrEmptyContent)

	blank := "   "
	_, err = env.msgs.Send(ctx, SendMessageInput{
		ConversationID: conv.ID,
		SenderID:       env.userA,
		Content:        &blank,
	})
	assert.ErrorIs(t, err, parley_errors.ErrEmptyContent)
}

func TestSendRejectedWhenBlockedEitherDirection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.directConversation(t)

	require.NoError(t, env.blocks.Block(ctx, env.userB, env.userA, nil))

	// The blocked user cannot send, and neither can the blocker.
	text := "hello"
	_, err := env.msgs.Send(ctx, SendMessageInput{
		ConversationID: conv.ID,
		SenderID:       env.userA,
		Content:        &text,
	})
	assert.ErrorIs(t, err, parley_errors.ErrBlocked)

	_, err = env.msgs.Send(ctx, SendMessageInput{
		ConversationID: conv.ID,
		SenderID:       env.userB,
		Content:        &text,
	})
	assert.ErrorIs(t, err, parley_errors.ErrBlocked)

	// Unblocking restores delivery.
	require.NoError(t, env.blocks.Unblock(ctx, env.userB, env.userA))
	_, err = env.msgs.Send(ctx, SendMessageInput{
		ConversationID: conv.ID,
		SenderID:       env.userA,
		Content:        &text,
	})
	assert.NoError(t, err)
}

func TestGroupSendExcludesBlockedFromFanOut(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.groupConversation(t)
	captured := collectEvents(env.bus, events.EventMessageSent)

	require.NoError(t, env.blocks.Block(ctx, env.userC, env.userA, nil))

	// Group sends succeed even with a block in the room; the blocked pair
	// just drops out of the recipient list.
	sendText(t, env, conv.ID, env.userA, "to the group")

	require.Len(t, *captured, 1)
	assert.ElementsMatch(t, []uuid.UUID{env.userB}, (*captured)[0].Recipients())
}

func TestReplyMustTargetSameConversation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	direct := env.directConversation(t)
	group := env.groupConversation(t)

	targetID := sendText(t, env, direct.ID, env.userA, "original")

	text := "reply"
	_, err := env.msgs.Send(ctx, SendMessageInput{
		ConversationID: group.ID,
		SenderID:       env.userA,
		Content:        &text,
		ReplyToID:      &targetID,
	})
	assert.ErrorIs(t, err, parley_errors.ErrInvalidReplyTarget)

	bogus := uuid.New()
	_, err = env.msgs.Send(ctx, SendMessageInput{
		ConversationID: direct.ID,
		SenderID:       env.userA,
		Content:        &text,
		ReplyToID:      &bogus,
	})
	assert.ErrorIs(t, err, parley_errors.ErrInvalidReplyTarget)

	msg, err := env.msgs.Send(ctx, SendMessageInput{
		ConversationID: direct.ID,
		SenderID:       env.userB,
		Content:        &text,
		ReplyToID:      &targetID,
	})
	require.NoError(t, err)
	assert.Equal(t, targetID, *msg.ReplyToID)
}

func TestEditOnlyBySender(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.directConversation(t)
	msgID := sendText(t, env, conv.ID, env.userA, "draft")

	_, err := env.msgs.Edit(ctx, EditMessageInput{
		MessageID: msgID,
		SenderID:  env.userB,
		Content:   "hijacked",
	})
	assert.ErrorIs(t, err, parley_errors.ErrNotSender)

	edited, err := env.msgs.Edit(ctx, EditMessageInput{
		MessageID: msgID,
		SenderID:  env.userA,
		Content:   "final",
	})
	require.NoError(t, err)
	assert.True(t, edited.IsEdited)
	require.NotNil(t, edited.EditedAt)
	assert.Equal(t, "final", *edited.Content)
}

func TestEditUnchangedContentIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.directConversation(t)
	msgID := sendText(t, env, conv.ID, env.userA, "same")
	captured := collectEvents(env.bus, events.EventMessageUpdated)

	msg, err := env.msgs.Edit(ctx, EditMessageInput{
		MessageID: msgID,
		SenderID:  env.userA,
		Content:   "same",
	})
	require.NoError(t, err)
	assert.False(t, msg.IsEdited)
	assert.Empty(t, *captured)
}

func TestEditDeletedMessageRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.directConversation(t)
	msgID := sendText(t, env, conv.ID, env.userA, "gone soon")

	require.NoError(t, env.msgs.Delete(ctx, msgID, env.userA))

	_, err := env.msgs.Edit(ctx, EditMessageInput{
		MessageID: msgID,
		SenderID:  env.userA,
		Content:   "too late",
	})
	assert.ErrorIs(t, err, parley_errors.ErrMessageDeleted)
}

func TestDeleteIsSoftAndIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.directConversation(t)
	originalID := sendText(t, env, conv.ID, env.userA, "to be removed")
	replyText := "still points at the original"
	reply, err := env.msgs.Send(ctx, SendMessageInput{
		ConversationID: conv.ID,
		SenderID:       env.userB,
		Content:        &replyText,
		ReplyToID:      &originalID,
	})
	require.NoError(t, err)

	require.NoError(t, env.msgs.Delete(ctx, originalID, env.userA))

	// The row survives with its sequence position and the reply link stays
	// resolvable.
	deleted, err := env.msgs.Get(ctx, env.userB, originalID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	assert.EqualValues(t, 1, deleted.Seq)

	got, err := env.msgs.Get(ctx, env.userA, reply.ID)
	require.NoError(t, err)
	assert.Equal(t, originalID, *got.ReplyToID)

	// Deleting again is a no-op, editing is not.
	assert.NoError(t, env.msgs.Delete(ctx, originalID, env.userA))
	_, err = env.msgs.Edit(ctx, EditMessageInput{
		MessageID: originalID,
		SenderID:  env.userA,
		Content:   "resurrect",
	})
	assert.ErrorIs(t, err, parley_errors.ErrMessageDeleted)
}

func TestDeleteOnlyBySender(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.directConversation(t)
	msgID := sendText(t, env, conv.ID, env.userA, "mine")

	err := env.msgs.Delete(ctx, msgID, env.userB)
	assert.ErrorIs(t, err, parley_errors.ErrNotSender)
}

func TestListReturnsAscendingAndPages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.directConversation(t)

	for _, text := range []string{"a", "b", "c", "d", "e"} {
		sendText(t, env, conv.ID, env.userA, text)
	}

	msgs, err := env.msgs.List(ctx, env.userB, conv.ID, 0, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.EqualValues(t, 3, msgs[0].Seq)
	assert.EqualValues(t, 5, msgs[2].Seq)

	// Page backwards from the oldest seq of the previous page.
	older, err := env.msgs.List(ctx, env.userB, conv.ID, msgs[0].Seq, 3)
	require.NoError(t, err)
	require.Len(t, older, 2)
	assert.EqualValues(t, 1, older[0].Seq)
	assert.EqualValues(t, 2, older[1].Seq)
}

func TestCatchUpReturnsOnlyNewerMessages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.directConversation(t)

	for _, text := range []string{"a", "b", "c", "d"} {
		sendText(t, env, conv.ID, env.userA, text)
	}

	msgs, err := env.msgs.CatchUp(ctx, env.userB, conv.ID, 2, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.EqualValues(t, 3, msgs[0].Seq)
	assert.EqualValues(t, 4, msgs[1].Seq)
}

func TestSearchScopesAndFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	direct := env.directConversation(t)
	group := env.groupConversation(t)

	sendText(t, env, direct.ID, env.userA, "the quarterly report is ready")
	sendText(t, env, group.ID, env.userA, "report for the whole team")
	deletedID := sendText(t, env, direct.ID, env.userB, "old report draft")
	require.NoError(t, env.msgs.Delete(ctx, deletedID, env.userB))

	// Case-insensitive substring match across the caller's conversations,
	// deleted messages excluded.
	msgs, total, err := env.msgs.Search(ctx, env.userA, "REPORT", nil, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, msgs, 2)

	// userC is only in the group, so the direct hit is invisible.
	msgs, total, err = env.msgs.Search(ctx, env.userC, "report", nil, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, msgs, 1)
	assert.Equal(t, group.ID, msgs[0].ConversationID)

	// Conversation filter narrows further.
	msgs, total, err = env.msgs.Search(ctx, env.userA, "report", &direct.ID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, msgs, 1)
	assert.Equal(t, direct.ID, msgs[0].ConversationID)

	_, _, err = env.msgs.Search(ctx, env.userA, "   ", nil, 1, 10)
	assert.ErrorIs(t, err, parley_errors.ErrInvalidInput)
}

func TestSendEventCarriesSequence(t *testing.T) {
	env := newTestEnv(t)
	conv := env.directConversation(t)
	captured := collectEvents(env.bus, events.EventMessageSent)

	sendText(t, env, conv.ID, env.userA, "first")
	sendText(t, env, conv.ID, env.userB, "second")

	require.Len(t, *captured, 2)
	first := (*captured)[0].(*events.MessageSentEvent)
	second := (*captured)[1].(*events.MessageSentEvent)
	assert.EqualValues(t, 1, first.Seq)
	assert.EqualValues(t, 2, second.Seq)
	assert.Equal(t, []uuid.UUID{env.userB}, first.Recipients())
	assert.Equal(t, []uuid.UUID{env.userA}, second.Recipients())
}
