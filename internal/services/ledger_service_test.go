package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/domain/message"
	"parley/internal/events"
	parley_errors "parley/pkg/errors"
)

func TestAddReactionIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.directConversation(t)
	msgID := sendText(t, env, conv.ID, env.userA, "react to me")
	captured := collectEvents(env.bus, events.EventReactionAdded)

	require.NoError(t, env.ledger.AddReaction(ctx, env.userB, msgID, "👍"))
	require.NoError(t, env.ledger.AddReaction(ctx, env.userB, msgID, "👍"))

	reactions, err := env.ledger.Reactions(ctx, env.userB, msgID)
	require.NoError(t, err)
	require.Len(t, reactions, 1)
	assert.Equal(t, 1, reactions[0].Count)
	assert.True(t, reactions[0].DidReact)

	// The duplicate emits no event.
	assert.Len(t, *captured, 1)
}

func TestDifferentEmojisAccumulate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.groupConversation(t)
	msgID := sendText(t, env, conv.ID, env.userA, "popular")

	require.NoError(t, env.ledger.AddReaction(ctx, env.userB, msgID, "👍"))
	require.NoError(t, env.ledger.AddReaction(ctx, env.userC, msgID, "👍"))
	require.NoError(t, env.ledger.AddReaction(ctx, env.userB, msgID, "🎉"))

	reactions, err := env.ledger.Reactions(ctx, env.userA, msgID)
	require.NoError(t, err)
	require.Len(t, reactions, 2)

	byEmoji := map[string]ReactionSummary{}
	for _, r := range reactions {
		byEmoji[r.Emoji] = r
	}
	assert.Equal(t, 2, byEmoji["👍"].Count)
	assert.Equal(t, 1, byEmoji["🎉"].Count)
	assert.False(t, byEmoji["👍"].DidReact) // userA never reacted
}

func TestRemoveReactionOnlyRemovesOwn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.groupConversation(t)
	msgID := sendText(t, env, conv.ID, env.userA, "contested")
	captured := collectEvents(env.bus, events.EventReactionRemoved)

	require.NoError(t, env.ledger.AddReaction(ctx, env.userB, msgID, "👍"))
	require.NoError(t, env.ledger.AddReaction(ctx, env.userC, msgID, "👍"))

	require.NoError(t, env.ledger.RemoveReaction(ctx, env.userB, msgID, "👍"))

	reactions, err := env.ledger.Reactions(ctx, env.userC, msgID)
	require.NoError(t, err)
	require.Len(t, reactions, 1)
	assert.Equal(t, 1, reactions[0].Count)
	assert.True(t, reactions[0].DidReact)

	// Removing a reaction that is not there is quiet.
	require.NoError(t, env.ledger.RemoveReaction(ctx, env.userB, msgID, "👍"))
	assert.Len(t, *captured, 1)
}

func TestReactionRequiresMembership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.directConversation(t)
	msgID := sendText(t, env, conv.ID, env.userA, "private")

	err := env.ledger.AddReaction(ctx, env.userC, msgID, "👀")
	assert.ErrorIs(t, err, parley_errors.ErrNotParticipant)
}

func TestReactionBlockedAgainstSender(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.groupConversation(t)
	msgID := sendText(t, env, conv.ID, env.userA, "no thanks")

	require.NoError(t, env.blocks.Block(ctx, env.userA, env.userC, nil))

	err := env.ledger.AddReaction(ctx, env.userC, msgID, "👍")
	assert.ErrorIs(t, err, parley_errors.ErrBlocked)
}

func TestReactionOnDeletedMessageRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.directConversation(t)
	msgID := sendText(t, env, conv.ID, env.userA, "ephemeral")
	require.NoError(t, env.msgs.Delete(ctx, msgID, env.userA))

	err := env.ledger.AddReaction(ctx, env.userB, msgID, "👍")
	assert.ErrorIs(t, err, parley_errors.ErrMessageDeleted)
}

func TestMarkReadOwnMessageIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.directConversation(t)
	msgID := sendText(t, env, conv.ID, env.userA, "mine")

	require.NoError(t, env.ledger.MarkRead(ctx, env.userA, msgID))

	receipts, err := env.ledger.Receipts(ctx, env.userA, msgID)
	require.NoError(t, err)
	assert.Empty(t, receipts)
}

func TestMarkReadReadAtNeverMovesBackwards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.directConversation(t)
	msgID := sendText(t, env, conv.ID, env.userA, "read me")

	require.NoError(t, env.ledger.MarkRead(ctx, env.userB, msgID))
	receipts, err := env.ledger.Receipts(ctx, env.userB, msgID)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	firstReadAt := receipts[0].ReadAt

	// A later mark may advance the timestamp but never rewinds it.
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, env.ledger.MarkRead(ctx, env.userB, msgID))
	receipts, err = env.ledger.Receipts(ctx, env.userB, msgID)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.False(t, receipts[0].ReadAt.Before(firstReadAt))
}

func TestUnreadCountAndMarkConversationRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.directConversation(t)
	captured := collectEvents(env.bus, events.EventConversationRead)

	for _, text := range []string{"a", "b", "c"} {
		sendText(t, env, conv.ID, env.userA, text)
	}
	sendText(t, env, conv.ID, env.userB, "own message does not count")

	count, err := env.ledger.UnreadCount(ctx, env.userB, conv.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	// Partial read up to seq 2.
	marked, err := env.ledger.MarkConversationRead(ctx, env.userB, conv.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, marked)

	count, err = env.ledger.UnreadCount(ctx, env.userB, conv.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	// Then everything; marking again finds nothing new.
	marked, err = env.ledger.MarkConversationRead(ctx, env.userB, conv.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	marked, err = env.ledger.MarkConversationRead(ctx, env.userB, conv.ID, 0)
	require.NoError(t, err)
	assert.Zero(t, marked)

	count, err = env.ledger.UnreadCount(ctx, env.userB, conv.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	// One aggregate event per marking pass that changed anything.
	require.Len(t, *captured, 2)
	first := (*captured)[0].(*events.ConversationReadEvent)
	assert.EqualValues(t, 2, first.UpToSeq)
	assert.Equal(t, env.userB, first.ReaderID)
}

func TestDeletedMessagesDoNotCountAsUnread(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.directConversation(t)

	keepID := sendText(t, env, conv.ID, env.userA, "keep")
	dropID := sendText(t, env, conv.ID, env.userA, "drop")
	require.NoError(t, env.msgs.Delete(ctx, dropID, env.userA))

	count, err := env.ledger.UnreadCount(ctx, env.userB, conv.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	var kept message.Message
	require.NoError(t, env.db.Where("id = ?", keepID).First(&kept).Error)
	assert.False(t, kept.IsDeleted)
}
