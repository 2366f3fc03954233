package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/events"
	parley_errors "parley/pkg/errors"
)

func TestBlockSelfRejected(t *testing.T) {
	env := newTestEnv(t)
	err := env.blocks.Block(context.Background(), env.userA, env.userA, nil)
	assert.ErrorIs(t, err, parley_errors.ErrInvalidInput)
}

func TestBlockIsDirectedButEnforcedBothWays(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.blocks.Block(ctx, env.userA, env.userB, nil))

	blocked, err := env.blocks.IsBlockedEitherDirection(ctx, env.userA, env.userB)
	require.NoError(t, err)
	assert.True(t, blocked)
	blocked, err = env.blocks.IsBlockedEitherDirection(ctx, env.userB, env.userA)
	require.NoError(t, err)
	assert.True(t, blocked)

	// Only the blocker sees it in their list.
	list, err := env.blocks.ListBlocked(ctx, env.userA)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, env.userB, list[0].BlockedID)

	list, err = env.blocks.ListBlocked(ctx, env.userB)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBlockTwiceUpdatesReason(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.blocks.Block(ctx, env.userA, env.userB, nil))
	reason := "spam"
	require.NoError(t, env.blocks.Block(ctx, env.userA, env.userB, &reason))

	list, err := env.blocks.ListBlocked(ctx, env.userA)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Reason)
	assert.Equal(t, "spam", *list[0].Reason)
}

func TestUnblockIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	captured := collectEvents(env.bus, events.EventUserUnblocked)

	require.NoError(t, env.blocks.Block(ctx, env.userA, env.userB, nil))
	require.NoError(t, env.blocks.Unblock(ctx, env.userA, env.userB))
	require.NoError(t, env.blocks.Unblock(ctx, env.userA, env.userB))

	blocked, err := env.blocks.IsBlockedEitherDirection(ctx, env.userA, env.userB)
	require.NoError(t, err)
	assert.False(t, blocked)

	// The second unblock removed nothing and stays silent.
	assert.Len(t, *captured, 1)
}

func TestBlockDoesNotRewriteHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.directConversation(t)
	msgID := sendText(t, env, conv.ID, env.userA, "before the fallout")

	require.NoError(t, env.blocks.Block(ctx, env.userB, env.userA, nil))

	// Existing messages remain readable by both sides.
	msg, err := env.msgs.Get(ctx, env.userB, msgID)
	require.NoError(t, err)
	assert.Equal(t, "before the fallout", *msg.Content)
}
