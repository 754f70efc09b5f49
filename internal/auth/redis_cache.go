package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-events/internal/logger"
)

const refreshKeyPrefix = "refresh_token:"

// InitializeRedis connects to Redis and checks the connection.
func InitializeRedis(redisAddr, password string, db int, log *logger.Logger) (*redis.Client, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		log.Error("AUTH", fmt.Sprintf("Failed to connect to Redis at %s: %v", redisAddr, err))
		return nil, err
	}

	log.Info("AUTH", fmt.Sprintf("Connected to Redis at %s for refresh tokens", redisAddr))
	return redisClient, nil
}

// RefreshStore tracks outstanding refresh tokens by id. Each token can be
// consumed once, which makes refresh rotation single use.
type RefreshStore struct {
	Client *redis.Client
}

func NewRefreshStore(client *redis.Client) *RefreshStore {
	return &RefreshStore{Client: client}
}

func (s *RefreshStore) Save(ctx context.Context, tokenID, userID string, ttl time.Duration) error {
	if s.Client == nil {
		return errors.New("redis client not initialized")
	}
	if err := s.Client.Set(ctx, refreshKeyPrefix+tokenID, userID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

// Consume deletes the token and returns its owner. A missing token yields
// ErrUnauthenticated.
func (s *RefreshStore) Consume(ctx context.Context, tokenID string) (string, error) {
	if s.Client == nil {
		return "", errors.New("redis client not initialized")
	}
	userID, err := s.Client.GetDel(ctx, refreshKeyPrefix+tokenID).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("%w: refresh token is blacklisted or expired", ErrUnauthenticated)
	}
	if err != nil {
		return "", fmt.Errorf("failed to consume refresh token: %w", err)
	}
	return userID, nil
}
