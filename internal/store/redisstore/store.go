package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	client *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

// AllowAssistantTurn implements a fixed-window counter keyed by user.
// Returns false once the user exceeds limit turns per window.
func (s *Store) AllowAssistantTurn(ctx context.Context, userID uint64, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	key := fmt.Sprintf("assistant:rate:%d:%d", userID, time.Now().Unix()/int64(window.Seconds()))

	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		// first hit in the window owns the expiry
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return n <= int64(limit), nil
}
