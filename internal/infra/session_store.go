package infra

// Login sessions held in Redis as presence keys.
// session:<uuid> → user id, with a sliding TTL refreshed on every request.

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sessionPrefix = "session:"

// ErrSessionNotFound is returned when a session id is unknown or expired.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore keeps session presence flags in Redis.
type SessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSessionStore(rdb *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{rdb: rdb, ttl: ttl}
}

// TTL is the sliding lifetime applied on create and on every touch.
func (s *SessionStore) TTL() time.Duration { return s.ttl }

// Create stores a new session for userID and returns its id.
func (s *SessionStore) Create(ctx context.Context, userID uint) (string, error) {
	id := uuid.NewString()
	if err := s.rdb.Set(ctx, sessionPrefix+id, userID, s.ttl).Err(); err != nil {
		return "", err
	}
	return id, nil
}

// Touch returns the user id bound to id and extends its TTL.
func (s *SessionStore) Touch(ctx context.Context, id string) (uint, error) {
	key := sessionPrefix + id
	val, err := s.rdb.GetEx(ctx, key, s.ttl).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrSessionNotFound
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, ErrSessionNotFound
	}
	return uint(n), nil
}

// Delete removes a session. Unknown ids are ignored.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, sessionPrefix+id).Err()
}
