package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"voicecal/internal/models"
)

const sessionKeyPrefix = "voice_session:"

// NewRedisClient connects to Redis and checks the connection
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}

// RedisSessionStore keeps open voice sessions in Redis so they survive a restart.
// Every operation is a single Redis command, so concurrent events for one member
// cannot interleave.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore creates a session store on an existing client
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func redisSessionKey(guildID, userID string) string {
	return sessionKeyPrefix + guildID + ":" + userID
}

// Open stores s unless the member already has a session
func (r *RedisSessionStore) Open(ctx context.Context, s models.VoiceSession) (bool, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return false, fmt.Errorf("failed to encode session: %w", err)
	}
	created, err := r.client.SetNX(ctx, redisSessionKey(s.GuildID, s.UserID), data, 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to open session: %w", err)
	}
	return created, nil
}

// Replace stores s and returns the session it replaced
func (r *RedisSessionStore) Replace(ctx context.Context, s models.VoiceSession) (models.VoiceSession, bool, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return models.VoiceSession{}, false, fmt.Errorf("failed to encode session: %w", err)
	}
	prev, err := r.client.GetSet(ctx, redisSessionKey(s.GuildID, s.UserID), data).Result()
	return decodeSession(prev, err)
}

// Get returns the member's open session
func (r *RedisSessionStore) Get(ctx context.Context, guildID, userID string) (models.VoiceSession, bool, error) {
	return decodeSession(r.client.Get(ctx, redisSessionKey(guildID, userID)).Result())
}

// Take removes and returns the member's open session
func (r *RedisSessionStore) Take(ctx context.Context, guildID, userID string) (models.VoiceSession, bool, error) {
	return decodeSession(r.client.GetDel(ctx, redisSessionKey(guildID, userID)).Result())
}

func decodeSession(raw string, err error) (models.VoiceSession, bool, error) {
	if errors.Is(err, redis.Nil) {
		return models.VoiceSession{}, false, nil
	}
	if err != nil {
		return models.VoiceSession{}, false, fmt.Errorf("failed to read session: %w", err)
	}
	var s models.VoiceSession
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return models.VoiceSession{}, false, fmt.Errorf("failed to decode session: %w", err)
	}
	return s, true, nil
}
