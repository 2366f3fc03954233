package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/domain/conversation"
	"parley/internal/events"
	parley_errors "parley/pkg/errors"
)

func TestCreateDirectConversation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.convs.Create(ctx, CreateConversationInput{
		CreatorID:      env.userA,
		ParticipantIDs: []uuid.UUID{env.userB},
		Type:           conversation.TypeDirect,
	})
	require.NoError(t, err)
	assert.Equal(t, conversation.TypeDirect, conv.Type)
	assert.Len(t, conv.Participants, 2)

	roles := map[uuid.UUID]string{}
	for _, p := range conv.Participants {
		roles[p.UserID] = p.Role
	}
	assert.Equal(t, conversation.RoleAdmin, roles[env.userA])
	assert.Equal(t, conversation.RoleMember, roles[env.userB])
}

func TestCreateDirectConversationIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.convs.Create(ctx, CreateConversationInput{
		CreatorID:      env.userA,
		ParticipantIDs: []uuid.UUID{env.userB},
		Type:           conversation.TypeDirect,
	})
	require.NoError(t, err)

	// Same pair from the other side resolves to the same conversation.
	second, err := env.convs.Create(ctx, CreateConversationInput{
		CreatorID:      env.userB,
		ParticipantIDs: []uuid.UUID{env.userA},
		Type:           conversation.TypeDirect,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestCreateDirectConversationRequiresExactlyTwo(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.convs.Create(ctx, CreateConversationInput{
		CreatorID:      env.userA,
		ParticipantIDs: []uuid.UUID{env.userB, env.userC},
		Type:           conversation.TypeDirect,
	})
	assert.ErrorIs(t, err, parley_errors.ErrInvalidParticipantCount)

	_, err = env.convs.Create(ctx, CreateConversationInput{
		CreatorID:      env.userA,
		ParticipantIDs: nil,
		Type:           conversation.TypeDirect,
	})
	assert.ErrorIs(t, err, parley_errors.ErrInvalidParticipantCount)
}

func TestCreateConversationNotifiesOtherParticipants(t *testing.T) {
	env := newTestEnv(t)
	captured := collectEvents(env.bus, events.EventConversationCreated)

	env.groupConversation(t)

	require.Len(t, *captured, 1)
	event := (*captured)[0].(*events.ConversationCreatedEvent)
	assert.ElementsMatch(t, []uuid.UUID{env.userB, env.userC}, event.Recipients())
}

func TestAddParticipantToDirectRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.directConversation(t)

	err := env.convs.AddParticipant(ctx, env.userA, conv.ID, env.userC)
	assert.ErrorIs(t, err, parley_errors.ErrInvalidParticipantCount)
}

func TestRemoveAndReAddParticipant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.groupConversation(t)

	require.NoError(t, env.convs.RemoveParticipant(ctx, env.userA, conv.ID, env.userC))

	active, err := env.convs.ActiveParticipants(ctx, conv.ID)
	require.NoError(t, err)
	assert.NotContains(t, active, env.userC)

	// Left participants stay in history with a left_at stamp.
	got, err := env.convs.Get(ctx, env.userA, conv.ID)
	require.NoError(t, err)
	var found bool
	for _, p := range got.Participants {
		if p.UserID == env.userC {
			found = true
			assert.False(t, p.IsActive)
			assert.NotNil(t, p.LeftAt)
		}
	}
	assert.True(t, found)

	// Re-adding reactivates the same membership row.
	require.NoError(t, env.convs.AddParticipant(ctx, env.userA, conv.ID, env.userC))
	active, err = env.convs.ActiveParticipants(ctx, conv.ID)
	require.NoError(t, err)
	assert.Contains(t, active, env.userC)
}

func TestRemoveParticipantRequiresPrivilege(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.groupConversation(t)

	// A plain member cannot remove someone else.
	err := env.convs.RemoveParticipant(ctx, env.userB, conv.ID, env.userC)
	assert.ErrorIs(t, err, parley_errors.ErrForbidden)

	// But anyone may leave on their own.
	assert.NoError(t, env.convs.RemoveParticipant(ctx, env.userB, conv.ID, env.userB))
}

func TestGetConversationRequiresMembership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.directConversation(t)

	_, err := env.convs.Get(ctx, env.userC, conv.ID)
	assert.ErrorIs(t, err, parley_errors.ErrNotParticipant)
}

func TestListForUserOrdersByActivity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	direct := env.directConversation(t)
	group := env.groupConversation(t)

	content := "hello"
	_, err := env.msgs.Send(ctx, SendMessageInput{
		ConversationID: direct.ID,
		SenderID:       env.userA,
		Content:        &content,
	})
	require.NoError(t, err)

	summaries, total, err := env.convs.ListForUser(ctx, env.userB, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, summaries, 2)

	// The conversation with the newest message sorts first and carries an
	// unread count for the listing user.
	assert.Equal(t, direct.ID, summaries[0].Conversation.ID)
	assert.EqualValues(t, 1, summaries[0].UnreadCount)
	require.NotNil(t, summaries[0].LastMessage)
	assert.Equal(t, content, *summaries[0].LastMessage.Content)
	assert.Equal(t, group.ID, summaries[1].Conversation.ID)
}
