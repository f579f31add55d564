package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "fountainhead:lock:"

type redisHolder struct {
	UserID      string `json:"user_id"`
	DeviceID    string `json:"device_id"`
	DisplayName string `json:"display_name"`
}

// RedisService is a Service backed by redis SET NX EX. The heartbeat's
// read-then-expire is not atomic; the lock is advisory, and a lost
// heartbeat only shortens the holder's grace period.
type RedisService struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisServiceConfig configures the redis lock service.
type RedisServiceConfig struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewRedisService constructs a RedisService.
func NewRedisService(cfg RedisServiceConfig) (*RedisService, error) {
	if cfg.Client == nil {
		return nil, errors.New("lock: redis client required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisService{client: cfg.Client, ttl: ttl}, nil
}

// Acquire implements Service.
func (s *RedisService) Acquire(ctx context.Context, claim Claim) (Status, error) {
	if err := claim.validate(); err != nil {
		return Status{}, err
	}

	payload, err := json.Marshal(redisHolder{
		UserID:      claim.UserID,
		DeviceID:    claim.DeviceID,
		DisplayName: claim.DisplayName,
	})
	if err != nil {
		return Status{}, fmt.Errorf("lock: encode holder: %w", err)
	}

	key := redisKeyPrefix + claim.DocumentID
	acquired, err := s.client.SetNX(ctx, key, payload, s.ttl).Result()
	if err != nil {
		return Status{}, fmt.Errorf("lock: acquire: %w", err)
	}
	if acquired {
		return statusFor(claim), nil
	}

	current, err := s.Status(ctx, claim.DocumentID)
	if err != nil {
		return Status{}, err
	}
	if current.HeldBySelf(claim) || !current.Held {
		if err := s.client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
			return Status{}, fmt.Errorf("lock: refresh: %w", err)
		}
		return statusFor(claim), nil
	}
	return current, nil
}

// Heartbeat implements Service.
func (s *RedisService) Heartbeat(ctx context.Context, claim Claim) error {
	if err := claim.validate(); err != nil {
		return err
	}
	current, err := s.Status(ctx, claim.DocumentID)
	if err != nil {
		return err
	}
	if !current.HeldBySelf(claim) {
		return nil
	}
	return s.client.Expire(ctx, redisKeyPrefix+claim.DocumentID, s.ttl).Err()
}

// Release implements Service.
func (s *RedisService) Release(ctx context.Context, claim Claim) error {
	if err := claim.validate(); err != nil {
		return err
	}
	current, err := s.Status(ctx, claim.DocumentID)
	if err != nil {
		return err
	}
	if !current.HeldBySelf(claim) {
		return nil
	}
	return s.client.Del(ctx, redisKeyPrefix+claim.DocumentID).Err()
}

// Status implements Service.
func (s *RedisService) Status(ctx context.Context, documentID string) (Status, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+documentID).Result()
	if errors.Is(err, redis.Nil) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("lock: status: %w", err)
	}
	var holder redisHolder
	if err := json.Unmarshal([]byte(raw), &holder); err != nil {
		return Status{}, fmt.Errorf("lock: decode holder: %w", err)
	}
	return Status{
		Held:           true,
		HolderUserID:   holder.UserID,
		HolderDeviceID: holder.DeviceID,
		HolderName:     holder.DisplayName,
	}, nil
}
