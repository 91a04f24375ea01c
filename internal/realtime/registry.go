package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionRegistry tracks which sessions belong to which user across instances.
type SessionRegistry interface {
	Register(ctx context.Context, sessionID, userID string) error
	// Unregister returns how many sessions the user still has.
	Unregister(ctx context.Context, sessionID, userID string) (int64, error)
	// Touch extends the presence of a live session.
	Touch(ctx context.Context, sessionID, userID string) error
	SessionCount(ctx context.Context, userID string) (int64, error)
}

// RedisSessionRegistry keeps a session->user hash and a per-user session set.
// The per-user set expires after ttl without a Touch, so a crashed instance cannot pin a user online.
type RedisSessionRegistry struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisSessionRegistry(client *redis.Client, prefix string, ttl time.Duration) *RedisSessionRegistry {
	return &RedisSessionRegistry{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisSessionRegistry) sessionsKey() string {
	return r.prefix + "sessions"
}

func (r *RedisSessionRegistry) userKey(userID string) string {
	return r.prefix + "user_sessions:" + userID
}

func (r *RedisSessionRegistry) Register(ctx context.Context, sessionID, userID string) error {
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.sessionsKey(), sessionID, userID)
	pipe.SAdd(ctx, r.userKey(userID), sessionID)
	if r.ttl > 0 {
		pipe.Expire(ctx, r.userKey(userID), r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("register session %s: %w", sessionID, err)
	}
	return nil
}

func (r *RedisSessionRegistry) Unregister(ctx context.Context, sessionID, userID string) (int64, error) {
	pipe := r.client.TxPipeline()
	pipe.HDel(ctx, r.sessionsKey(), sessionID)
	pipe.SRem(ctx, r.userKey(userID), sessionID)
	remaining := pipe.SCard(ctx, r.userKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("unregister session %s: %w", sessionID, err)
	}
	return remaining.Val(), nil
}

func (r *RedisSessionRegistry) Touch(ctx context.Context, sessionID, userID string) error {
	if r.ttl <= 0 {
		return nil
	}
	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, r.userKey(userID), sessionID)
	pipe.Expire(ctx, r.userKey(userID), r.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisSessionRegistry) SessionCount(ctx context.Context, userID string) (int64, error) {
	return r.client.SCard(ctx, r.userKey(userID)).Result()
}

// MemorySessionRegistry is the single-instance registry.
type MemorySessionRegistry struct {
	mu    sync.Mutex
	users map[string]map[string]struct{}
}

func NewMemorySessionRegistry() *MemorySessionRegistry {
	return &MemorySessionRegistry{users: make(map[string]map[string]struct{})}
}

func (r *MemorySessionRegistry) Register(_ context.Context, sessionID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessions, ok := r.users[userID]
	if !ok {
		sessions = make(map[string]struct{})
		r.users[userID] = sessions
	}
	sessions[sessionID] = struct{}{}
	return nil
}

func (r *MemorySessionRegistry) Unregister(_ context.Context, sessionID, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessions := r.users[userID]
	delete(sessions, sessionID)
	if len(sessions) == 0 {
		delete(r.users, userID)
	}
	return int64(len(sessions)), nil
}

func (r *MemorySessionRegistry) Touch(context.Context, string, string) error {
	return nil
}

func (r *MemorySessionRegistry) SessionCount(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users[userID])), nil
}
