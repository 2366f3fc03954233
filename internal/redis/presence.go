package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// PresenceStore tracks who is connected and who is typing. State lives in
// Redis with TTLs so a crashed node's users age out on their own.
type PresenceStore struct {
	client      *goredis.Client
	presenceTTL time.Duration
	typingTTL   time.Duration
}

const (
	presenceOnlineSet = "presence:online"
	connectionsPrefix = "connections:"
	typingPrefix      = "typing:"
	lastSeenPrefix    = "last_seen:"
)

func NewPresenceStore(client *goredis.Client, presenceTTL, typingTTL time.Duration) *PresenceStore {
	if presenceTTL == 0 {
		presenceTTL = 5 * time.Minute
	}
	if typingTTL == 0 {
		typingTTL = 5 * time.Second
	}
	return &PresenceStore{client: client, presenceTTL: presenceTTL, typingTTL: typingTTL}
}

// Connect registers one WebSocket connection for a user and reports whether
// this was the user's first live connection.
func (p *PresenceStore) Connect(ctx context.Context, userID uuid.UUID, clientID string) (bool, error) {
	key := connectionsPrefix + userID.String()

	pipe := p.client.Pipeline()
	countCmd := pipe.HLen(ctx, key)
	pipe.HSet(ctx, key, clientID, time.Now().UTC().Format(time.RFC3339))
	pipe.Expire(ctx, key, p.presenceTTL)
	pipe.SAdd(ctx, presenceOnlineSet, userID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return countCmd.Val() == 0, nil
}

// Disconnect drops one connection and reports whether the user has gone
// fully offline.
func (p *PresenceStore) Disconnect(ctx context.Context, userID uuid.UUID, clientID string) (bool, error) {
	key := connectionsPrefix + userID.String()

	if err := p.client.HDel(ctx, key, clientID).Err(); err != nil {
		return false, err
	}
	remaining, err := p.client.HLen(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if remaining > 0 {
		return false, nil
	}

	pipe := p.client.Pipeline()
	pipe.SRem(ctx, presenceOnlineSet, userID.String())
	pipe.Set(ctx, lastSeenPrefix+userID.String(), time.Now().UTC().Format(time.RFC3339), 0)
	_, err = pipe.Exec(ctx)
	return true, err
}

// Heartbeat refreshes the connection TTL so an idle but live socket does
// not age out.
func (p *PresenceStore) Heartbeat(ctx context.Context, userID uuid.UUID) error {
	return p.client.Expire(ctx, connectionsPrefix+userID.String(), p.presenceTTL).Err()
}

func (p *PresenceStore) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	return p.client.SIsMember(ctx, presenceOnlineSet, userID.String()).Result()
}

func (p *PresenceStore) OnlineUsers(ctx context.Context) ([]string, error) {
	return p.client.SMembers(ctx, presenceOnlineSet).Result()
}

func (p *PresenceStore) LastSeen(ctx context.Context, userID uuid.UUID) (time.Time, error) {
	raw, err := p.client.Get(ctx, lastSeenPrefix+userID.String()).Result()
	if err == goredis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, raw)
}

// SetTyping records a typing indicator. The key expires on its own, so a
// client that vanishes mid-keystroke stops "typing" without a stop signal.
func (p *PresenceStore) SetTyping(ctx context.Context, conversationID, userID uuid.UUID, isTyping bool) error {
	key := typingKey(conversationID)
	if !isTyping {
		return p.client.SRem(ctx, key, userID.String()).Err()
	}
	pipe := p.client.Pipeline()
	pipe.SAdd(ctx, key, userID.String())
	pipe.Expire(ctx, key, p.typingTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (p *PresenceStore) TypingUsers(ctx context.Context, conversationID uuid.UUID) ([]string, error) {
	return p.client.SMembers(ctx, typingKey(conversationID)).Result()
}

func typingKey(conversationID uuid.UUID) string {
	return fmt.Sprintf("%s%s", typingPrefix, conversationID)
}
