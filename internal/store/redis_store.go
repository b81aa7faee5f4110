package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/barathRC/databricks-mcq-copilot-agent/internal/model"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each user's sessions in a Redis hash, one field per exam
// code. Like the Postgres driver, every Put touches only its own key.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a RedisStore on an existing client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func sessionsKey(username string) string {
	return fmt.Sprintf("sessions:%s", username)
}

// Get returns the saved session for (username, examCode), or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, username, examCode string) (*model.Session, error) {
	data, err := s.rdb.HGet(ctx, sessionsKey(username), examCode).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch session: %w", err)
	}

	var session model.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

// Put overwrites the session stored for (username, examCode).
func (s *RedisStore) Put(ctx context.Context, username, examCode string, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if err := s.rdb.HSet(ctx, sessionsKey(username), examCode, data).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
